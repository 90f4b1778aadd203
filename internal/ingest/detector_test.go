package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NZSopa/orderdhash-sub001/internal/models"
)

func TestDetectHighValue(t *testing.T) {
	orders := []models.Order{
		{ReferenceNo: "R-1", ConsigneeName: "A", Quantity: 1, UnitValue: 16600},
		{ReferenceNo: "R-2", ConsigneeName: "B", Quantity: 1, UnitValue: 16601},
		{ReferenceNo: "R-3", ConsigneeName: "C", Quantity: 3, UnitValue: 6000},
	}

	report := Detect(orders, 16600)

	assert.Equal(t, 3, report.Total)
	// Exactly at the threshold is not flagged.
	require.Equal(t, 2, report.HighValue.Count)
	assert.Equal(t, "R-2", report.HighValue.Orders[0].ReferenceNo)
	assert.Equal(t, "R-3", report.HighValue.Orders[1].ReferenceNo)
}

func TestDetectDuplicateRefs(t *testing.T) {
	orders := []models.Order{
		{ReferenceNo: "R-100", ConsigneeName: "A", Quantity: 1, UnitValue: 100},
		{ReferenceNo: "R-200", ConsigneeName: "B", Quantity: 1, UnitValue: 100},
		{ReferenceNo: "R-100", ConsigneeName: "C", Quantity: 2, UnitValue: 100},
	}

	report := Detect(orders, 16600)

	require.Equal(t, 1, report.DuplicateRefs.Count)
	assert.Equal(t, []string{"R-100"}, report.DuplicateRefs.Refs)

	// The group carries every occurrence, the first one included.
	require.Len(t, report.DuplicateRefs.Orders, 2)
	assert.Equal(t, 1, report.DuplicateRefs.Orders[0].Quantity)
	assert.Equal(t, 2, report.DuplicateRefs.Orders[1].Quantity)
}

func TestDetectDuplicateConsignees(t *testing.T) {
	orders := []models.Order{
		{ReferenceNo: "R-1", ConsigneeName: "Tanaka Taro", Quantity: 1, UnitValue: 100},
		{ReferenceNo: "R-2", ConsigneeName: "Suzuki Jiro", Quantity: 1, UnitValue: 100},
		{ReferenceNo: "R-3", ConsigneeName: "Tanaka Taro", Quantity: 1, UnitValue: 100},
		{ReferenceNo: "R-4", ConsigneeName: "Tanaka Taro", Quantity: 1, UnitValue: 100},
	}

	report := Detect(orders, 16600)

	require.Equal(t, 1, report.DuplicateConsignees.Count)
	group := report.DuplicateConsignees.Consignees[0]
	assert.Equal(t, "Tanaka Taro", group.Name)
	assert.Equal(t, 3, group.Count)
	assert.Len(t, group.Orders, 3)
	assert.Len(t, report.DuplicateConsignees.Orders, 3)
}

func TestDetectSkipsBlankConsignees(t *testing.T) {
	orders := []models.Order{
		{ReferenceNo: "R-1", ConsigneeName: "", Quantity: 1, UnitValue: 100},
		{ReferenceNo: "R-2", ConsigneeName: "", Quantity: 1, UnitValue: 100},
		{ReferenceNo: "R-3", ConsigneeName: "Tanaka Taro", Quantity: 1, UnitValue: 100},
	}

	report := Detect(orders, 16600)

	// Blank names are not the same consignee.
	assert.Equal(t, 0, report.DuplicateConsignees.Count)
	assert.Empty(t, report.DuplicateConsignees.Orders)
}

func TestDetectEmptyBatch(t *testing.T) {
	report := Detect(nil, 16600)

	assert.Equal(t, 0, report.Total)
	assert.Equal(t, 0, report.HighValue.Count)
	assert.Equal(t, 0, report.DuplicateRefs.Count)
	assert.Equal(t, 0, report.DuplicateConsignees.Count)
}
