package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTotalUnits(t *testing.T) {
	assert.Equal(t, 6, (&Order{Quantity: 2, SetQty: 3}).TotalUnits())
	// A zero set quantity counts as one unit per item.
	assert.Equal(t, 2, (&Order{Quantity: 2, SetQty: 0}).TotalUnits())
}

func TestWarehouseLocationMapping(t *testing.T) {
	assert.Equal(t, LocationAusKN, LocationForShippingFrom(ShippingFromAus))
	assert.Equal(t, LocationNZBis, LocationForShippingFrom(ShippingFromNZ))
	assert.Equal(t, "", LocationForShippingFrom("mars"))

	// The reverse mapping must return a shipment to the warehouse its
	// stock was deducted from.
	assert.Equal(t, ShippingFromAus, ShippingFromForLocation(LocationAusKN))
	assert.Equal(t, ShippingFromNZ, ShippingFromForLocation(LocationNZBis))
	assert.Equal(t, "", ShippingFromForLocation("nowhere"))
}
