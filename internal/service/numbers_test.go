package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NZSopa/orderdhash-sub001/internal/apperr"
	"github.com/NZSopa/orderdhash-sub001/internal/models"
)

func TestPrefixForLocation(t *testing.T) {
	prefix, err := PrefixForLocation(models.LocationAusKN)
	require.NoError(t, err)
	assert.Equal(t, "HS", prefix)

	prefix, err = PrefixForLocation(models.LocationNZBis)
	require.NoError(t, err)
	assert.Equal(t, "SKA", prefix)

	_, err = PrefixForLocation("us_east")
	require.Error(t, err)
	assert.True(t, apperr.IsValidation(err))
}

func TestFormatShipmentNo(t *testing.T) {
	date := DatePart(time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC))
	assert.Equal(t, "240115", date)
	assert.Equal(t, "HS240115001", FormatShipmentNo("HS", date, 1))
	assert.Equal(t, "SKA240115042", FormatShipmentNo("SKA", date, 42))
}

func TestSequenceFromShipmentNo(t *testing.T) {
	assert.Equal(t, 7, SequenceFromShipmentNo("HS240115007"))
	assert.Equal(t, 999, SequenceFromShipmentNo("SKA240115999"))
	assert.Equal(t, 0, SequenceFromShipmentNo(""))
	assert.Equal(t, 0, SequenceFromShipmentNo("HS2401xyz"))
}

func TestPlanNumberAssignments(t *testing.T) {
	orders := []models.Order{
		{ID: 1, ProductName: "zinc tablets"},
		{ID: 2, ProductName: "Manuka Honey"},
		{ID: 3, ProductName: "propolis drops"},
	}

	assignments := PlanNumberAssignments(orders, "HS", "240115", 1)
	require.Len(t, assignments, 3)

	// Numbers follow the case-insensitive product name order so the
	// same product picks adjacent slots.
	assert.Equal(t, int64(2), assignments[0].OrderID)
	assert.Equal(t, "HS240115001", assignments[0].ShipmentNo)
	assert.Equal(t, int64(3), assignments[1].OrderID)
	assert.Equal(t, "HS240115002", assignments[1].ShipmentNo)
	assert.Equal(t, int64(1), assignments[2].OrderID)
	assert.Equal(t, "HS240115003", assignments[2].ShipmentNo)
}

func TestPlanNumberAssignmentsContinuesSequence(t *testing.T) {
	orders := []models.Order{
		{ID: 10, ProductName: "Manuka Honey"},
		{ID: 11, ProductName: "Manuka Honey"},
	}

	assignments := PlanNumberAssignments(orders, "SKA", "240115", 13)
	require.Len(t, assignments, 2)
	assert.Equal(t, "SKA240115013", assignments[0].ShipmentNo)
	assert.Equal(t, "SKA240115014", assignments[1].ShipmentNo)
}
