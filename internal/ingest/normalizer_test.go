package ingest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"

	"github.com/NZSopa/orderdhash-sub001/internal/apperr"
	"github.com/NZSopa/orderdhash-sub001/internal/models"
)

// shiftJIS encodes a test fixture the way the marketplaces deliver it.
func shiftJIS(t *testing.T, s string) []byte {
	t.Helper()
	encoded, _, err := transform.String(japanese.ShiftJIS.NewEncoder(), s)
	require.NoError(t, err)
	return []byte(encoded)
}

// fakeCatalog resolves SKUs from an in-memory map.
type fakeCatalog struct {
	entries map[string]*models.CatalogEntry
}

func (f *fakeCatalog) ResolveSKU(_ context.Context, sku string) (*models.CatalogEntry, error) {
	if entry, ok := f.entries[sku]; ok {
		return entry, nil
	}
	return nil, apperr.NewNotFound("catalog entry", sku)
}

func testCatalog() *fakeCatalog {
	return &fakeCatalog{entries: map[string]*models.CatalogEntry{
		"AMZ-001": {
			SalesCode:    "AMZ-001",
			ProductCode:  "P-100",
			ProductName:  "Manuka Honey 500g",
			SetQty:       1,
			SalesPrice:   4200,
			SalesSite:    "NZP",
			ShippingFrom: models.ShippingFromNZ,
		},
		"AMZ-SET": {
			SalesCode:    "AMZ-SET",
			ProductCode:  "P-200",
			ProductName:  "Propolis Drops",
			SetQty:       3,
			SalesPrice:   9800,
			SalesSite:    "NZP",
			ShippingFrom: models.ShippingFromAus,
		},
		"YAH-001": {
			SalesCode:    "YAH-001",
			ProductCode:  "P-300",
			ProductName:  "Deer Placenta",
			SetQty:       1,
			SalesPrice:   5600,
			SalesSite:    "YAH",
			ShippingFrom: models.ShippingFromNZ,
		},
	}}
}

func TestNormalizeAmazon(t *testing.T) {
	n := NewNormalizer(testCatalog())

	file := "order-id\tsku\tquantity-purchased\titem-price\trecipient-name\tbuyer-name\tship-postal-code\tship-state\tship-city\tship-address-1\tbuyer-phone-number\n" +
		"111-001\tAMZ-001\t2\t8400\tTanaka Taro\tタナカ タロウ\t100-0001\tTokyo\tChiyoda\t1-1-1\t090-1111-2222\n" +
		"111-002\tNO-SUCH\t1\t1000\tSuzuki Jiro\t\t150-0002\tTokyo\tShibuya\t2-2-2\t090-3333-4444\n" +
		"111-003\tAMZ-001\tabc\t1000\tSato Saburo\t\t160-0003\tTokyo\tShinjuku\t3-3-3\t090-5555-6666\n"

	result, err := n.Normalize(context.Background(), NormalizeRequest{
		Channel: ChannelAmazon,
		Files:   [][]byte{shiftJIS(t, file)},
	})
	require.NoError(t, err)

	// Every input row is either a line or a row error.
	assert.Len(t, result.Lines, 1)
	assert.Len(t, result.RowErrors, 2)

	line := result.Lines[0]
	assert.Equal(t, "111-001", line.ReferenceNo)
	assert.Equal(t, "P-100", line.ProductCode)
	assert.Equal(t, "Manuka Honey 500g", line.ProductName)
	assert.Equal(t, 2, line.Quantity)
	assert.Equal(t, 1, line.SetQty)
	assert.Equal(t, 8400.0, line.UnitValue)
	assert.Equal(t, "Tokyo Chiyoda 1-1-1", line.ConsigneeAddress)
	assert.Equal(t, models.LocationNZBis, line.ShipmentLocation)
	assert.Equal(t, models.OrderStatusOrdered, line.Status)

	assert.Equal(t, 2, result.RowErrors[0].Row)
	assert.Contains(t, result.RowErrors[0].Reason, "unknown sku")
	assert.Equal(t, 3, result.RowErrors[1].Row)
	assert.Contains(t, result.RowErrors[1].Reason, "unparseable quantity")
}

func TestNormalizeAmazonSetProduct(t *testing.T) {
	n := NewNormalizer(testCatalog())

	file := "order-id\tsku\tquantity-purchased\titem-price\trecipient-name\n" +
		"222-001\tAMZ-SET\t2\t19600\tYamada Hanako\n"

	result, err := n.Normalize(context.Background(), NormalizeRequest{
		Channel: ChannelAmazon,
		Files:   [][]byte{shiftJIS(t, file)},
	})
	require.NoError(t, err)
	require.Len(t, result.Lines, 1)

	line := result.Lines[0]
	assert.Equal(t, "Propolis Drops (3 SETS)", line.ProductName)
	assert.Equal(t, 3, line.SetQty)
	assert.Equal(t, models.LocationAusKN, line.ShipmentLocation)
	assert.Equal(t, 6, line.TotalUnits())
}

func TestNormalizeAmazonMissingColumns(t *testing.T) {
	n := NewNormalizer(testCatalog())

	file := "order-id\tsku\n111-001\tAMZ-001\n"

	_, err := n.Normalize(context.Background(), NormalizeRequest{
		Channel: ChannelAmazon,
		Files:   [][]byte{shiftJIS(t, file)},
	})
	require.Error(t, err)
	assert.True(t, apperr.IsValidation(err))
	assert.Contains(t, err.Error(), "missing required columns")
}

func TestNormalizeYahoo(t *testing.T) {
	n := NewNormalizer(testCatalog())

	orderFile := "Id,ShipName,ShipNameKana,ShipZipCode,ShipPrefecture,ShipCity,ShipAddress1,ShipAddress2,ShipPhoneNumber\n" +
		"Y-001,山田太郎,ヤマダタロウ,100-0001,東京都,千代田区,1-1-1,ビル2F,03-1111-2222\n"

	productFile := "Id,ItemId,Title,Quantity,UnitPrice\n" +
		"Y-001,YAH-001,Deer Placenta,1,5600\n" +
		"Y-999,YAH-001,Deer Placenta,1,5600\n"

	result, err := n.Normalize(context.Background(), NormalizeRequest{
		Channel: ChannelYahoo,
		Files:   [][]byte{shiftJIS(t, orderFile), shiftJIS(t, productFile)},
	})
	require.NoError(t, err)

	require.Len(t, result.Lines, 1)
	line := result.Lines[0]
	assert.Equal(t, "Y-001", line.ReferenceNo)
	assert.Equal(t, "山田太郎", line.ConsigneeName)
	assert.Equal(t, "ヤマダタロウ", line.Kana)
	// Japanese address segments are concatenated without separators.
	assert.Equal(t, "東京都千代田区1-1-1ビル2F", line.ConsigneeAddress)

	require.Len(t, result.RowErrors, 1)
	assert.Equal(t, "Y-999", result.RowErrors[0].ReferenceNo)
	assert.Contains(t, result.RowErrors[0].Reason, "no matching order row")
}

func TestNormalizeYahooWrongFileCount(t *testing.T) {
	n := NewNormalizer(testCatalog())

	_, err := n.Normalize(context.Background(), NormalizeRequest{
		Channel: ChannelYahoo,
		Files:   [][]byte{[]byte("Id\n")},
	})
	require.Error(t, err)
	assert.True(t, apperr.IsValidation(err))
}

func TestNormalizeUnknownChannel(t *testing.T) {
	n := NewNormalizer(testCatalog())

	_, err := n.Normalize(context.Background(), NormalizeRequest{
		Channel: "rakuten",
		Files:   [][]byte{[]byte("x")},
	})
	require.Error(t, err)
	assert.True(t, apperr.IsValidation(err))
}

func TestApplySetSuffix(t *testing.T) {
	assert.Equal(t, "Propolis Drops (3 SETS)", ApplySetSuffix("Propolis Drops", 3))
	assert.Equal(t, "Propolis Drops", ApplySetSuffix("Propolis Drops", 1))

	// Re-applying never stacks suffixes.
	once := ApplySetSuffix("Propolis Drops", 3)
	assert.Equal(t, once, ApplySetSuffix(once, 3))
}

func TestStripSetSuffix(t *testing.T) {
	assert.Equal(t, "Propolis Drops", StripSetSuffix("Propolis Drops (3 SETS)"))
	assert.Equal(t, "Propolis Drops", StripSetSuffix("Propolis Drops"))
}
