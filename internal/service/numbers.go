package service

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/NZSopa/orderdhash-sub001/internal/apperr"
	"github.com/NZSopa/orderdhash-sub001/internal/models"
)

// Shipment numbers are <prefix><YYMMDD><NNN>: a fixed per-location
// prefix, the allocation date, and a 3-digit daily sequence. The
// sequence ceiling of 999 per prefix+day is accepted as-is.

// PrefixForLocation returns the shipment number prefix for a location.
func PrefixForLocation(location string) (string, error) {
	switch location {
	case models.LocationAusKN:
		return "HS", nil
	case models.LocationNZBis:
		return "SKA", nil
	default:
		return "", apperr.NewValidation("unknown shipment location", location)
	}
}

// DatePart formats the YYMMDD segment of a shipment number.
func DatePart(t time.Time) string {
	return t.Format("060102")
}

// FormatShipmentNo builds a shipment number from its parts.
func FormatShipmentNo(prefix, datePart string, seq int) string {
	return fmt.Sprintf("%s%s%03d", prefix, datePart, seq)
}

// SequenceFromShipmentNo extracts the trailing 3-digit sequence, or 0
// when the number does not parse.
func SequenceFromShipmentNo(no string) int {
	if len(no) < 3 {
		return 0
	}
	seq, err := strconv.Atoi(no[len(no)-3:])
	if err != nil {
		return 0
	}
	return seq
}

// NumberAssignment pairs an order with its newly allocated number.
type NumberAssignment struct {
	OrderID    int64  `json:"id"`
	ShipmentNo string `json:"shipment_no"`
}

// PlanNumberAssignments allocates sequential numbers starting at
// startSeq to the given orders sorted case-insensitively by product
// name, so same-product orders receive adjacent numbers.
func PlanNumberAssignments(orders []models.Order, prefix, datePart string, startSeq int) []NumberAssignment {
	sorted := make([]models.Order, len(orders))
	copy(sorted, orders)
	sort.SliceStable(sorted, func(i, j int) bool {
		return strings.ToLower(sorted[i].ProductName) < strings.ToLower(sorted[j].ProductName)
	})

	assignments := make([]NumberAssignment, 0, len(sorted))
	seq := startSeq
	for _, o := range sorted {
		assignments = append(assignments, NumberAssignment{
			OrderID:    o.ID,
			ShipmentNo: FormatShipmentNo(prefix, datePart, seq),
		})
		seq++
	}
	return assignments
}
