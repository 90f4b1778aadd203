// Package export renders confirmed orders into the xlsx formats the
// warehouses and carriers consume, and parses the completion workbook
// they send back.
package export

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/NZSopa/orderdhash-sub001/internal/apperr"
	"github.com/NZSopa/orderdhash-sub001/internal/ingest"
	"github.com/NZSopa/orderdhash-sub001/internal/models"
	"github.com/NZSopa/orderdhash-sub001/internal/store"
)

// Export formats
const (
	FormatPicking  = "picking"
	FormatTracking = "tracking"
	FormatKSE      = "kse"
	FormatSSS      = "sss"
)

// ValidFormat reports whether f names a known export format.
func ValidFormat(f string) bool {
	switch f {
	case FormatPicking, FormatTracking, FormatKSE, FormatSSS:
		return true
	}
	return false
}

// Build renders the rows into the named format. KSE is only defined
// for the aus_kn location; the caller enforces that before loading rows.
func Build(format string, rows []store.ExportRow) ([]byte, error) {
	switch format {
	case FormatPicking:
		return buildPickingList(rows)
	case FormatTracking:
		return buildTrackingTemplate(rows)
	case FormatKSE:
		return buildKSE(rows)
	case FormatSSS:
		return buildSSS(rows)
	default:
		return nil, apperr.NewValidation("unknown export format", format)
	}
}

// buildPickingList renders the warehouse picking list. Row 1 is the
// dispatch-date input cell the warehouse fills in before uploading the
// file back; data starts at row 4.
func buildPickingList(rows []store.ExportRow) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Shipments"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}

	if err := f.SetSheetRow(sheet, "A1", &[]interface{}{
		"출하날짜", "YYYY-MM-DD 형식으로 입력해주세요",
	}); err != nil {
		return nil, err
	}
	if err := f.SetSheetRow(sheet, "A3", &[]interface{}{
		"출하번호", "상품코드", "상품명", "상품수", "무게", "메모",
	}); err != nil {
		return nil, err
	}

	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+4)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(sheet, cell, &[]interface{}{
			r.ShipmentNo,
			r.ProductCode,
			ingest.StripSetSuffix(r.ProductName),
			totalUnits(r),
			"",
			"",
		}); err != nil {
			return nil, err
		}
	}

	return writeBuffer(f)
}

// buildTrackingTemplate renders the tracking number input sheet the
// carrier fills in, one row per shipment number.
func buildTrackingTemplate(rows []store.ExportRow) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Shipments"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}

	if err := f.SetSheetRow(sheet, "A1", &[]interface{}{
		"주문번호", "출하번호", "상품코드", "상품명", "상품수", "무게", "운송장번호",
	}); err != nil {
		return nil, err
	}

	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(sheet, cell, &[]interface{}{
			r.ReferenceNo,
			r.ShipmentNo,
			r.ProductCode,
			ingest.StripSetSuffix(r.ProductName),
			totalUnits(r),
			"",
			r.TrackingNumber,
		}); err != nil {
			return nil, err
		}
	}

	return writeBuffer(f)
}

// Fixed sender identity for the KSE manifest.
const (
	kseSenderName    = "International Network and Trading Ltd.,"
	kseSenderAddress = "Unit D3 27-29, William Pickering Drive Albany, Auckland, 0632"
	kseSenderPhone   = "021-0292-3057"
)

var kseHeaders = []interface{}{
	"ORDER_NO1", "ORDER_NO2", "SHIPPING_TYPE", "SENDER_NAME", "SENDER_ADDRESS",
	"SENDER_PHONENO", "RECEIVER_NAME", "YOMIGANA", "RECEIVER_ADDRESS",
	"RECEIVER_ZIPCODE", "RECEIVER_PHONENO", "RECEIVER_EMAILID", "DELIVERY_DATE",
	"DELIVERY_TIME", "BOX_COUNT", "WEIGHT", "COD_AMOUNT", "WIDTH", "LENGTH",
	"HEIGHT", "UPLOAD_DATE", "USER_DATA", "CURRENCY UNIT", "ITEM_CODE",
	"ITEM_NAME", "MATERIAL", "ITEM_COUNT", "UNIT_PRICE", "ITEM_ORIGIN", "PURCHASE_URL", "SALES_SITE",
	"PRODUCT_ORDERNO", "HSCODE", "OPTION", "OPTION_CODE",
}

// buildKSE renders the KSE carrier manifest used for aus_kn dispatches.
func buildKSE(rows []store.ExportRow) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "KSE"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}

	if err := f.SetSheetRow(sheet, "A1", &kseHeaders); err != nil {
		return nil, err
	}

	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}

		var weight interface{} = ""
		if r.Weight != 0 {
			weight = r.Weight
		}

		if err := f.SetSheetRow(sheet, cell, &[]interface{}{
			r.ShipmentNo,       // ORDER_NO1
			"",                 // ORDER_NO2
			"KSE",              // SHIPPING_TYPE
			kseSenderName,      // SENDER_NAME
			kseSenderAddress,   // SENDER_ADDRESS
			kseSenderPhone,     // SENDER_PHONENO
			r.ConsigneeName,    // RECEIVER_NAME
			r.Kana,             // YOMIGANA
			r.ConsigneeAddress, // RECEIVER_ADDRESS
			r.PostalCode,       // RECEIVER_ZIPCODE
			r.PhoneNumber,      // RECEIVER_PHONENO
			"",                 // RECEIVER_EMAILID
			"",                 // DELIVERY_DATE
			"",                 // DELIVERY_TIME
			1,                  // BOX_COUNT
			weight,             // WEIGHT
			0,                  // COD_AMOUNT
			10,                 // WIDTH
			10,                 // LENGTH
			10,                 // HEIGHT
			"",                 // UPLOAD_DATE
			"",                 // USER_DATA
			"JPY",              // CURRENCY UNIT
			r.SKU,              // ITEM_CODE
			kseItemName(r),     // ITEM_NAME
			"",                 // MATERIAL
			r.Quantity,         // ITEM_COUNT
			r.UnitValue,        // UNIT_PRICE
			"NZ",               // ITEM_ORIGIN
			"",                 // PURCHASE_URL
			kseSalesSite(r.SalesSite),
			r.ReferenceNo, // PRODUCT_ORDERNO
			"",            // HSCODE
			"",            // OPTION
			"",            // OPTION_CODE
		}); err != nil {
			return nil, err
		}
	}

	return writeBuffer(f)
}

// kseItemName renders the customs item name: "<name> N SETS" for set
// products, the plain name otherwise.
func kseItemName(r store.ExportRow) string {
	name := ingest.StripSetSuffix(r.ProductName)
	if r.SetQty > 1 {
		return fmt.Sprintf("%s %d SETS", name, r.SetQty)
	}
	return name
}

func kseSalesSite(site string) string {
	switch site {
	case "NZP", "SKY", "ARH":
		return "Amazon"
	case "YAH":
		return "Yahoo"
	default:
		return ""
	}
}

// buildSSS renders the SSS carrier manifest.
func buildSSS(rows []store.ExportRow) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Shipments"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}

	if err := f.SetSheetRow(sheet, "A1", &[]interface{}{
		"ShipmentNo", "TrackingNo", "ConsigneeName", "PostalCode", "Address",
		"ProductCode", "ProductName", "Quantity", "Weight",
	}); err != nil {
		return nil, err
	}

	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(sheet, cell, &[]interface{}{
			r.ShipmentNo,
			r.TrackingNumber,
			r.ConsigneeName,
			r.PostalCode,
			r.ConsigneeAddress,
			r.SKU,
			r.ProductName,
			r.Quantity,
			r.Weight,
		}); err != nil {
			return nil, err
		}
	}

	return writeBuffer(f)
}

func writeBuffer(f *excelize.File) ([]byte, error) {
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// Completion upload header aliases; Korean headers come from the
// templates above, English ones from hand-built sheets.
var completionAliases = map[string]string{
	"출하번호":            "shipment_no",
	"shipment_no":     "shipment_no",
	"운송장번호":           "tracking_number",
	"tracking_number": "tracking_number",
	"중량":              "weight",
	"무게":              "weight",
	"weight":          "weight",
	"메모":              "memo",
	"memo":            "memo",
}

// ParseCompletionUpload reads a completion workbook and returns its
// rows. The header row is located by scanning for a shipment number
// column, so the picking list's date preamble is tolerated. Rows with
// no shipment number are skipped.
func ParseCompletionUpload(data []byte) ([]models.CompletionRow, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, apperr.NewValidation("file is not a readable xlsx workbook")
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, apperr.NewValidation("workbook has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}

	headerIdx := -1
	columns := map[string]int{}
	for i, row := range rows {
		cols := map[string]int{}
		for j, cell := range row {
			key := strings.ToLower(strings.TrimSpace(cell))
			if canonical, ok := completionAliases[key]; ok {
				if _, dup := cols[canonical]; !dup {
					cols[canonical] = j
				}
			}
		}
		if _, ok := cols["shipment_no"]; ok {
			headerIdx = i
			columns = cols
			break
		}
	}
	if headerIdx < 0 {
		return nil, apperr.NewValidation("no shipment number column found in upload")
	}

	var parsed []models.CompletionRow
	for _, row := range rows[headerIdx+1:] {
		shipmentNo := cellAt(row, columns, "shipment_no")
		if shipmentNo == "" {
			continue
		}

		cr := models.CompletionRow{
			ShipmentNo:     shipmentNo,
			TrackingNumber: cellAt(row, columns, "tracking_number"),
			Memo:           cellAt(row, columns, "memo"),
		}
		if w := cellAt(row, columns, "weight"); w != "" {
			weight, err := strconv.ParseFloat(w, 64)
			if err != nil {
				return nil, apperr.NewValidation(fmt.Sprintf(
					"unparseable weight %q for shipment %s", w, shipmentNo))
			}
			cr.Weight = weight
		}
		parsed = append(parsed, cr)
	}

	if len(parsed) == 0 {
		return nil, apperr.NewValidation("no completion rows in upload")
	}
	return parsed, nil
}

func cellAt(row []string, columns map[string]int, key string) string {
	idx, ok := columns[key]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func totalUnits(r store.ExportRow) int {
	setQty := r.SetQty
	if setQty < 1 {
		setQty = 1
	}
	return r.Quantity * setQty
}
