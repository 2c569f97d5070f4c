package validation

import (
	"fmt"
	"math"

	"receipt-schema-api/internal/models"
)

// amountTolerance absorbs float rounding on two-decimal amounts.
const amountTolerance = 0.005

// WarningCode identifies a consistency hint.
type WarningCode string

const (
	WarnAmountBelowSubtotal WarningCode = "amount_below_subtotal"
	WarnLineTotalMismatch   WarningCode = "line_total_mismatch"
)

// Warning is a non-fatal observation about a valid receipt.
type Warning struct {
	Code    WarningCode
	Field   string
	Message string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s (%s)", w.Field, w.Message, w.Code)
}

// CheckConsistency reports arithmetic relationships that usually hold on a
// receipt but are not part of its contract. It never rejects anything.
func CheckConsistency(r models.Receipt) []Warning {
	var warnings []Warning

	if r.Amount+amountTolerance < r.Subtotal {
		warnings = append(warnings, Warning{
			Code:    WarnAmountBelowSubtotal,
			Field:   "amount",
			Message: fmt.Sprintf("amount %.2f is below subtotal %.2f", r.Amount, r.Subtotal),
		})
	}

	for i, item := range r.LineItems {
		qty, hasQty := item.Quantity.Get()
		unitCost, hasCost := item.UnitCost.Get()
		if !hasQty || !hasCost {
			continue
		}
		expected := qty * unitCost
		if math.Abs(expected-item.Total) > amountTolerance {
			warnings = append(warnings, Warning{
				Code:    WarnLineTotalMismatch,
				Field:   Index("line_items", i) + ".total",
				Message: fmt.Sprintf("total %.2f differs from quantity x unit_cost %.2f", item.Total, expected),
			})
		}
	}

	return warnings
}
