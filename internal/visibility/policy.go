// Package visibility decides how much of a quotation's cost breakup a
// viewer may see. The policy wraps every read path that serializes lines;
// it is a cross-cutting filter, not a one-time check.
package visibility

import (
	"github.com/shopspring/decimal"

	"github.com/voyagecrm/voyagecrm/internal/pricing"
	"github.com/voyagecrm/voyagecrm/internal/shared"
)

// Level is the visibility decision for a viewer.
type Level string

const (
	// LevelFull exposes supplier, unit price and quantity per line.
	LevelFull Level = "FULL"
	// LevelAggregateOnly exposes only item name and line total.
	LevelAggregateOnly Level = "AGGREGATE_ONLY"
)

// Decide returns the visibility level for an actor.
//
// Customers are always aggregate-only; that rule is not overridable by the
// permission flag. Sales see full detail only when admin granted it.
func Decide(actor shared.Actor) Level {
	switch actor.Role {
	case shared.RoleOperations, shared.RoleAdmin, shared.RoleAccountant:
		return LevelFull
	case shared.RoleSales:
		if actor.CanSeeCostBreakup {
			return LevelFull
		}
		return LevelAggregateOnly
	default:
		return LevelAggregateOnly
	}
}

// LineItemFull is the detailed read DTO.
type LineItemFull struct {
	Name      string          `json:"name"`
	Supplier  string          `json:"supplier"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  decimal.Decimal `json:"quantity"`
	Total     decimal.Decimal `json:"total"`
}

// LineItemAggregate is the reduced read DTO.
type LineItemAggregate struct {
	Name  string          `json:"name"`
	Total decimal.Decimal `json:"total"`
}

// FullLines maps pricing lines to the detailed DTO.
func FullLines(lines []pricing.Line) []LineItemFull {
	out := make([]LineItemFull, 0, len(lines))
	for _, l := range lines {
		out = append(out, LineItemFull{
			Name:      l.Name,
			Supplier:  l.Supplier,
			UnitPrice: l.UnitCost,
			Quantity:  l.Quantity,
			Total:     l.Total(),
		})
	}
	return out
}

// AggregateLines maps pricing lines to the reduced DTO.
func AggregateLines(lines []pricing.Line) []LineItemAggregate {
	out := make([]LineItemAggregate, 0, len(lines))
	for _, l := range lines {
		out = append(out, LineItemAggregate{Name: l.Name, Total: l.Total()})
	}
	return out
}

// FilterLines applies the level and returns the serializable slice.
func FilterLines(level Level, lines []pricing.Line) any {
	if level == LevelFull {
		return FullLines(lines)
	}
	return AggregateLines(lines)
}
