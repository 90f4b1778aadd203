package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/NZSopa/orderdhash-sub001/internal/apperr"
	"github.com/NZSopa/orderdhash-sub001/internal/store"
)

func sampleRows() []store.ExportRow {
	return []store.ExportRow{
		{
			ReferenceNo:      "111-001",
			ShipmentNo:       "HS240115001",
			SKU:              "AMZ-SET",
			ProductCode:      "P-200",
			ProductName:      "Propolis Drops (3 SETS)",
			Quantity:         2,
			SetQty:           3,
			UnitValue:        9800,
			ConsigneeName:    "Tanaka Taro",
			Kana:             "タナカ タロウ",
			PostalCode:       "100-0001",
			ConsigneeAddress: "Tokyo Chiyoda 1-1-1",
			PhoneNumber:      "090-1111-2222",
			SalesSite:        "NZP",
		},
		{
			ReferenceNo:   "111-002",
			ShipmentNo:    "HS240115002",
			SKU:           "AMZ-001",
			ProductCode:   "P-100",
			ProductName:   "Manuka Honey 500g",
			Quantity:      1,
			SetQty:        1,
			UnitValue:     4200,
			ConsigneeName: "Suzuki Jiro",
			SalesSite:     "YAH",
		},
	}
}

func readSheet(t *testing.T, data []byte) [][]string {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetList()[0])
	require.NoError(t, err)
	return rows
}

func TestBuildPickingList(t *testing.T) {
	data, err := Build(FormatPicking, sampleRows())
	require.NoError(t, err)

	rows := readSheet(t, data)
	require.GreaterOrEqual(t, len(rows), 5)

	assert.Equal(t, "출하날짜", rows[0][0])
	assert.Equal(t, "출하번호", rows[2][0])
	assert.Equal(t, "상품명", rows[2][2])

	// Set suffix stripped, quantity expanded to physical units.
	assert.Equal(t, "HS240115001", rows[3][0])
	assert.Equal(t, "Propolis Drops", rows[3][2])
	assert.Equal(t, "6", rows[3][3])
	assert.Equal(t, "Manuka Honey 500g", rows[4][2])
	assert.Equal(t, "1", rows[4][3])
}

func TestBuildTrackingTemplate(t *testing.T) {
	data, err := Build(FormatTracking, sampleRows())
	require.NoError(t, err)

	rows := readSheet(t, data)
	require.GreaterOrEqual(t, len(rows), 3)

	assert.Equal(t, []string{"주문번호", "출하번호", "상품코드", "상품명", "상품수", "무게", "운송장번호"}, rows[0][:7])
	assert.Equal(t, "111-001", rows[1][0])
	assert.Equal(t, "HS240115001", rows[1][1])
	assert.Equal(t, "Propolis Drops", rows[1][3])
}

func TestBuildKSE(t *testing.T) {
	data, err := Build(FormatKSE, sampleRows())
	require.NoError(t, err)

	rows := readSheet(t, data)
	require.GreaterOrEqual(t, len(rows), 3)

	header := rows[0]
	require.Len(t, header, 35)
	assert.Equal(t, "ORDER_NO1", header[0])
	assert.Equal(t, "ITEM_NAME", header[24])

	first := rows[1]
	assert.Equal(t, "HS240115001", first[0])
	assert.Equal(t, "KSE", first[2])
	assert.Equal(t, kseSenderName, first[3])
	assert.Equal(t, "Propolis Drops 3 SETS", first[24])
	assert.Equal(t, "Amazon", first[30])

	second := rows[2]
	assert.Equal(t, "Manuka Honey 500g", second[24])
	assert.Equal(t, "Yahoo", second[30])
}

func TestBuildSSS(t *testing.T) {
	data, err := Build(FormatSSS, sampleRows())
	require.NoError(t, err)

	rows := readSheet(t, data)
	require.GreaterOrEqual(t, len(rows), 2)

	assert.Equal(t, "ShipmentNo", rows[0][0])
	assert.Equal(t, "HS240115001", rows[1][0])
	assert.Equal(t, "Tanaka Taro", rows[1][2])
	assert.Equal(t, "AMZ-SET", rows[1][5])
}

func TestBuildUnknownFormat(t *testing.T) {
	_, err := Build("pdf", nil)
	require.Error(t, err)
	assert.True(t, apperr.IsValidation(err))
}

func buildCompletionWorkbook(t *testing.T, rows [][]interface{}) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestParseCompletionUpload(t *testing.T) {
	data := buildCompletionWorkbook(t, [][]interface{}{
		{"출하번호", "운송장번호", "중량", "메모"},
		{"HS240115001", "TRK-001", 1.5, "fragile"},
		{"HS240115002", "TRK-002", 0.8, ""},
	})

	rows, err := ParseCompletionUpload(data)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "HS240115001", rows[0].ShipmentNo)
	assert.Equal(t, "TRK-001", rows[0].TrackingNumber)
	assert.Equal(t, 1.5, rows[0].Weight)
	assert.Equal(t, "fragile", rows[0].Memo)
}

func TestParseCompletionUploadEnglishHeaders(t *testing.T) {
	data := buildCompletionWorkbook(t, [][]interface{}{
		{"shipment_no", "tracking_number", "weight"},
		{"SKA240115001", "TRK-100", 2},
	})

	rows, err := ParseCompletionUpload(data)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "SKA240115001", rows[0].ShipmentNo)
	assert.Equal(t, 2.0, rows[0].Weight)
}

func TestParseCompletionUploadWithPreamble(t *testing.T) {
	// Picking list round trips: the date preamble sits above the header.
	data := buildCompletionWorkbook(t, [][]interface{}{
		{"출하날짜", "2024-01-15"},
		{},
		{"출하번호", "상품코드", "상품명", "상품수", "무게", "메모"},
		{"HS240115001", "P-200", "Propolis Drops", 6, 1.2, ""},
		{"", "", "", "", "", ""},
	})

	rows, err := ParseCompletionUpload(data)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "HS240115001", rows[0].ShipmentNo)
	assert.Equal(t, 1.2, rows[0].Weight)
}

func TestParseCompletionUploadNoHeader(t *testing.T) {
	data := buildCompletionWorkbook(t, [][]interface{}{
		{"foo", "bar"},
		{"x", "y"},
	})

	_, err := ParseCompletionUpload(data)
	require.Error(t, err)
	assert.True(t, apperr.IsValidation(err))
}

func TestParseCompletionUploadNotXlsx(t *testing.T) {
	_, err := ParseCompletionUpload([]byte("not a workbook"))
	require.Error(t, err)
	assert.True(t, apperr.IsValidation(err))
}
