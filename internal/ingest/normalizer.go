// Package ingest turns heterogeneous marketplace export files into
// canonical order lines and runs the advisory anomaly checks over a
// closed batch.
package ingest

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"

	"github.com/NZSopa/orderdhash-sub001/internal/apperr"
	"github.com/NZSopa/orderdhash-sub001/internal/models"
)

// Supported ingestion channels
const (
	ChannelAmazon = "amazon"
	ChannelYahoo  = "yahoo"
)

// CatalogResolver resolves a channel sales code to the canonical product.
type CatalogResolver interface {
	ResolveSKU(ctx context.Context, sku string) (*models.CatalogEntry, error)
}

// NormalizeRequest carries the raw file bytes and the channel tag that
// selects the schema. Amazon exports are a single tab-delimited file;
// Yahoo exports are an order file and a product file joined on order id.
type NormalizeRequest struct {
	Channel string
	Files   [][]byte
}

// RowError reports one rejected input row with its 1-based row number.
type RowError struct {
	Row         int    `json:"row"`
	ReferenceNo string `json:"reference_no,omitempty"`
	Reason      string `json:"reason"`
}

// Result is the outcome of normalizing one upload: the accepted lines
// plus the per-row rejections. Together they cover every input row.
type Result struct {
	Lines     []models.Order `json:"lines"`
	RowErrors []RowError     `json:"row_errors"`
}

// Normalizer parses channel exports into canonical order lines.
type Normalizer struct {
	catalog CatalogResolver
}

// NewNormalizer creates a Normalizer backed by the given catalog.
func NewNormalizer(catalog CatalogResolver) *Normalizer {
	return &Normalizer{catalog: catalog}
}

// Normalize parses the request's files according to the channel schema.
// Missing required columns fail the whole file; row-level defects are
// collected and the rows excluded.
func (n *Normalizer) Normalize(ctx context.Context, req NormalizeRequest) (*Result, error) {
	switch req.Channel {
	case ChannelAmazon:
		if len(req.Files) != 1 {
			return nil, apperr.NewValidation("amazon ingestion expects exactly one file")
		}
		return n.normalizeAmazon(ctx, req.Files[0])
	case ChannelYahoo:
		if len(req.Files) != 2 {
			return nil, apperr.NewValidation("yahoo ingestion expects an order file and a product file")
		}
		return n.normalizeYahoo(ctx, req.Files[0], req.Files[1])
	default:
		return nil, apperr.NewValidation("unknown channel", req.Channel)
	}
}

// canonical fields resolved from channel headers
const (
	fieldReferenceNo   = "reference_no"
	fieldSKU           = "sku"
	fieldQuantity      = "quantity"
	fieldUnitValue     = "unit_value"
	fieldConsigneeName = "consignee_name"
	fieldKana          = "kana"
	fieldPostalCode    = "postal_code"
	fieldPhoneNumber   = "phone_number"
)

// Each canonical field maps to the header spellings the channels have
// used over time; matching is case-insensitive on trimmed headers.
var amazonAliases = map[string][]string{
	fieldReferenceNo:   {"order-id", "reference no.", "reference_no"},
	fieldSKU:           {"sku"},
	fieldQuantity:      {"quantity-purchased", "quantity"},
	fieldUnitValue:     {"item-price", "unit value", "unit_value"},
	fieldConsigneeName: {"recipient-name", "consignees name"},
	fieldKana:          {"buyer-name", "kana"},
	fieldPostalCode:    {"ship-postal-code", "consigneespost", "postal_code"},
	fieldPhoneNumber:   {"buyer-phone-number", "consigneesphonenumber"},
}

var amazonRequired = []string{
	fieldReferenceNo, fieldSKU, fieldQuantity, fieldUnitValue, fieldConsigneeName,
}

var amazonAddressColumns = []string{
	"ship-state", "ship-city", "ship-address-1", "ship-address-2", "ship-address-3",
}

var yahooOrderAliases = map[string][]string{
	fieldReferenceNo:   {"id"},
	fieldConsigneeName: {"shipname"},
	fieldKana:          {"shipnamekana"},
	fieldPostalCode:    {"shipzipcode"},
	fieldPhoneNumber:   {"shipphonenumber"},
}

var yahooOrderRequired = []string{fieldReferenceNo, fieldConsigneeName}

var yahooOrderAddressColumns = []string{
	"shipprefecture", "shipcity", "shipaddress1", "shipaddress2",
}

var yahooProductAliases = map[string][]string{
	fieldReferenceNo: {"id"},
	fieldSKU:         {"itemid"},
	fieldQuantity:    {"quantity"},
	fieldUnitValue:   {"unitprice"},
}

var yahooProductRequired = []string{fieldReferenceNo, fieldSKU, fieldQuantity, fieldUnitValue}

// table is one parsed file: the resolved header index plus data rows.
type table struct {
	fields  map[string]int // canonical field -> column index
	columns map[string]int // raw lowercase header -> column index
	rows    [][]string
}

// parseTable decodes Shift_JIS, parses the delimited text and resolves
// the header row against the alias table once per file.
func parseTable(raw []byte, delimiter rune, aliases map[string][]string, required []string) (*table, error) {
	decoded, err := io.ReadAll(transform.NewReader(bytes.NewReader(raw), japanese.ShiftJIS.NewDecoder()))
	if err != nil {
		return nil, apperr.NewValidation(fmt.Sprintf("failed to decode file: %v", err))
	}

	r := csv.NewReader(bytes.NewReader(decoded))
	r.Comma = delimiter
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, apperr.NewValidation(fmt.Sprintf("failed to parse file: %v", err))
	}
	if len(records) == 0 {
		return nil, apperr.NewValidation("file is empty")
	}

	columns := make(map[string]int, len(records[0]))
	for i, h := range records[0] {
		columns[strings.ToLower(strings.TrimSpace(h))] = i
	}

	fields := make(map[string]int, len(aliases))
	for field, names := range aliases {
		for _, name := range names {
			if idx, ok := columns[name]; ok {
				fields[field] = idx
				break
			}
		}
	}

	var missing []string
	for _, field := range required {
		if _, ok := fields[field]; !ok {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return nil, apperr.NewValidation("missing required columns", missing...)
	}

	return &table{fields: fields, columns: columns, rows: records[1:]}, nil
}

func (t *table) get(row []string, field string) string {
	idx, ok := t.fields[field]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func (t *table) getColumn(row []string, name string) string {
	idx, ok := t.columns[name]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func (t *table) joinColumns(row []string, names []string, sep string) string {
	var parts []string
	for _, name := range names {
		if v := t.getColumn(row, name); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, sep)
}

func (n *Normalizer) normalizeAmazon(ctx context.Context, file []byte) (*Result, error) {
	t, err := parseTable(file, '\t', amazonAliases, amazonRequired)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	for i, row := range t.rows {
		rowNum := i + 1
		line, rowErr := n.buildLine(ctx, lineInput{
			row:              rowNum,
			referenceNo:      t.get(row, fieldReferenceNo),
			sku:              t.get(row, fieldSKU),
			quantity:         t.get(row, fieldQuantity),
			unitValue:        t.get(row, fieldUnitValue),
			consigneeName:    t.get(row, fieldConsigneeName),
			kana:             t.get(row, fieldKana),
			postalCode:       t.get(row, fieldPostalCode),
			phoneNumber:      t.get(row, fieldPhoneNumber),
			consigneeAddress: t.joinColumns(row, amazonAddressColumns, " "),
		})
		if rowErr != nil {
			result.RowErrors = append(result.RowErrors, *rowErr)
			continue
		}
		result.Lines = append(result.Lines, *line)
	}
	return result, nil
}

func (n *Normalizer) normalizeYahoo(ctx context.Context, orderFile, productFile []byte) (*Result, error) {
	orders, err := parseTable(orderFile, ',', yahooOrderAliases, yahooOrderRequired)
	if err != nil {
		return nil, err
	}
	products, err := parseTable(productFile, ',', yahooProductAliases, yahooProductRequired)
	if err != nil {
		return nil, err
	}

	// Order rows are keyed by id; product rows carry the line items.
	type consignee struct {
		name, kana, zip, address, phone string
	}
	byID := make(map[string]consignee, len(orders.rows))
	for _, row := range orders.rows {
		id := orders.get(row, fieldReferenceNo)
		if id == "" {
			continue
		}
		byID[id] = consignee{
			name:    orders.get(row, fieldConsigneeName),
			kana:    orders.get(row, fieldKana),
			zip:     orders.get(row, fieldPostalCode),
			address: orders.joinColumns(row, yahooOrderAddressColumns, ""),
			phone:   orders.get(row, fieldPhoneNumber),
		}
	}

	result := &Result{}
	for i, row := range products.rows {
		rowNum := i + 1
		id := products.get(row, fieldReferenceNo)
		cons, ok := byID[id]
		if id != "" && !ok {
			result.RowErrors = append(result.RowErrors, RowError{
				Row: rowNum, ReferenceNo: id, Reason: "no matching order row for product row",
			})
			continue
		}

		line, rowErr := n.buildLine(ctx, lineInput{
			row:              rowNum,
			referenceNo:      id,
			sku:              products.get(row, fieldSKU),
			quantity:         products.get(row, fieldQuantity),
			unitValue:        products.get(row, fieldUnitValue),
			consigneeName:    cons.name,
			kana:             cons.kana,
			postalCode:       cons.zip,
			phoneNumber:      cons.phone,
			consigneeAddress: cons.address,
		})
		if rowErr != nil {
			result.RowErrors = append(result.RowErrors, *rowErr)
			continue
		}
		result.Lines = append(result.Lines, *line)
	}
	return result, nil
}

type lineInput struct {
	row              int
	referenceNo      string
	sku              string
	quantity         string
	unitValue        string
	consigneeName    string
	kana             string
	postalCode       string
	phoneNumber      string
	consigneeAddress string
}

// buildLine converts one raw row into a canonical order line, resolving
// the SKU through the catalog. Defective rows come back as a RowError.
func (n *Normalizer) buildLine(ctx context.Context, in lineInput) (*models.Order, *RowError) {
	if in.referenceNo == "" {
		return nil, &RowError{Row: in.row, Reason: "missing reference number"}
	}
	if in.sku == "" {
		return nil, &RowError{Row: in.row, ReferenceNo: in.referenceNo, Reason: "missing sku"}
	}

	quantity, err := strconv.Atoi(in.quantity)
	if err != nil || quantity <= 0 {
		return nil, &RowError{Row: in.row, ReferenceNo: in.referenceNo,
			Reason: fmt.Sprintf("unparseable quantity %q", in.quantity)}
	}

	unitValue, err := strconv.ParseFloat(in.unitValue, 64)
	if err != nil {
		return nil, &RowError{Row: in.row, ReferenceNo: in.referenceNo,
			Reason: fmt.Sprintf("unparseable unit value %q", in.unitValue)}
	}

	entry, err := n.catalog.ResolveSKU(ctx, in.sku)
	if err != nil {
		if apperr.IsNotFound(err) {
			return nil, &RowError{Row: in.row, ReferenceNo: in.referenceNo,
				Reason: fmt.Sprintf("unknown sku %q", in.sku)}
		}
		return nil, &RowError{Row: in.row, ReferenceNo: in.referenceNo,
			Reason: fmt.Sprintf("catalog lookup failed: %v", err)}
	}

	return &models.Order{
		ReferenceNo:      in.referenceNo,
		SalesSite:        entry.SalesSite,
		SKU:              in.sku,
		ProductCode:      entry.ProductCode,
		ProductName:      ApplySetSuffix(entry.ProductName, entry.SetQty),
		Quantity:         quantity,
		SetQty:           entry.SetQty,
		SalesPrice:       entry.SalesPrice,
		UnitValue:        unitValue,
		ConsigneeName:    in.consigneeName,
		ConsigneeAddress: in.consigneeAddress,
		Kana:             in.kana,
		PostalCode:       in.postalCode,
		PhoneNumber:      in.phoneNumber,
		ShipmentLocation: models.LocationForShippingFrom(entry.ShippingFrom),
		Status:           models.OrderStatusOrdered,
	}, nil
}

var setSuffixRe = regexp.MustCompile(` \(\d+ SETS\)$`)

// ApplySetSuffix appends the "(N SETS)" marker for multi-unit set
// products. Any existing marker is stripped first so re-imports never
// stack suffixes.
func ApplySetSuffix(name string, setQty int) string {
	name = setSuffixRe.ReplaceAllString(name, "")
	if setQty >= 2 {
		return fmt.Sprintf("%s (%d SETS)", name, setQty)
	}
	return name
}

// StripSetSuffix removes the "(N SETS)" marker for export templates that
// render the bare product name.
func StripSetSuffix(name string) string {
	return setSuffixRe.ReplaceAllString(name, "")
}
