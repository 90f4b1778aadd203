package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationError(t *testing.T) {
	err := NewValidation("missing required columns", "sku", "quantity")
	assert.Equal(t, "missing required columns: sku, quantity", err.Error())
	assert.True(t, IsValidation(err))

	bare := NewValidation("no rows")
	assert.Equal(t, "no rows", bare.Error())
}

func TestTransactionErrorUnwrap(t *testing.T) {
	cause := NewValidation("insufficient nz stock")
	err := NewTransaction("confirm", cause)

	// The taxonomy checks traverse wrapped causes, so a validation
	// failure inside a rolled-back transaction is still recognizable.
	assert.True(t, IsValidation(err))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "confirm")
	assert.Contains(t, err.Error(), "insufficient nz stock")
}

func TestNotFoundAndConflict(t *testing.T) {
	nf := NewNotFound("order", "42")
	assert.True(t, IsNotFound(nf))
	assert.False(t, IsConflict(nf))
	assert.Equal(t, "order not found: 42", nf.Error())

	cf := NewConflict("shipment_no", "HS240115001")
	assert.True(t, IsConflict(cf))
	assert.False(t, IsNotFound(cf))
}

func TestWrappedThroughFmt(t *testing.T) {
	inner := NewNotFound("catalog entry", "SKU-1")
	wrapped := fmt.Errorf("resolving row 3: %w", inner)

	assert.True(t, IsNotFound(wrapped))

	var nf *NotFoundError
	assert.True(t, errors.As(wrapped, &nf))
	assert.Equal(t, "SKU-1", nf.Key)
}
