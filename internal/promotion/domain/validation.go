package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ValidationError describes one structural invariant violation in a
// promotion definition. Violations are surfaced to the promotion author at
// save time; evaluation assumes validated definitions.
type ValidationError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// DefinitionError aggregates the violations of an invalid definition so
// the API can show the author everything wrong at once.
type DefinitionError struct {
	Violations []ValidationError `json:"violations"`
}

func (e *DefinitionError) Error() string {
	if len(e.Violations) == 1 {
		return e.Violations[0].Error()
	}
	return fmt.Sprintf("invalid promotion definition: %d violations", len(e.Violations))
}

func (e *DefinitionError) Unwrap() error { return ErrInvalidDefinition }

var hundred = decimal.NewFromInt(100)

// ValidateDefinition checks the structural invariants of a promotion
// definition and returns every violation found.
func ValidateDefinition(p *Promotion) []ValidationError {
	if p == nil {
		return []ValidationError{{Field: "promotion", Rule: "required", Message: "promotion is required"}}
	}

	var errs []ValidationError

	switch p.Type {
	case PromotionTypePercentage, PromotionTypeSpecialClub, PromotionTypeBuyXGetY:
	default:
		errs = append(errs, ValidationError{
			Field:   "type",
			Rule:    "enum",
			Message: fmt.Sprintf("unknown promotion type %q", p.Type),
		})
	}

	if len(p.ApplicationProducts) == 0 {
		errs = append(errs, ValidationError{
			Field:   "application_products",
			Rule:    "required",
			Message: "at least one application product is required",
		})
	}
	for i, ap := range p.ApplicationProducts {
		if ap.ProductID == 0 {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("application_products[%d].product_id", i),
				Rule:    "required",
				Message: "product id is required",
			})
		}
		if ap.MinimumQuantity < 1 {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("application_products[%d].minimum_quantity", i),
				Rule:    "min",
				Message: "minimum quantity must be at least 1",
			})
		}
	}

	for i, rp := range p.RewardProducts {
		field := fmt.Sprintf("reward_products[%d]", i)
		if rp.ProductID == 0 {
			errs = append(errs, ValidationError{
				Field:   field + ".product_id",
				Rule:    "required",
				Message: "product id is required",
			})
		}
		if rp.MaxQuantity != nil && *rp.MaxQuantity < 1 {
			errs = append(errs, ValidationError{
				Field:   field + ".max_quantity",
				Rule:    "min",
				Message: "max quantity must be at least 1 when set",
			})
		}
		errs = append(errs, validateRewardValue(field, rp.DiscountMethod, rp.DiscountValue)...)
	}

	errs = append(errs, validateClientRanges(p.ClientRanges)...)

	return errs
}

func validateRewardValue(field string, method RewardMethod, value decimal.Decimal) []ValidationError {
	switch method {
	case RewardMethodFree:
		if !value.IsZero() {
			return []ValidationError{{
				Field:   field + ".discount_value",
				Rule:    "zero",
				Message: "discount value must be 0 for the free method",
			}}
		}
	case RewardMethodPercentage:
		if value.LessThanOrEqual(decimal.Zero) || value.GreaterThan(hundred) {
			return []ValidationError{{
				Field:   field + ".discount_value",
				Rule:    "range",
				Message: "percentage discount must be in (0, 100]",
			}}
		}
	case RewardMethodFixed:
		if value.LessThanOrEqual(decimal.Zero) {
			return []ValidationError{{
				Field:   field + ".discount_value",
				Rule:    "positive",
				Message: "fixed discount must be greater than 0",
			}}
		}
	default:
		return []ValidationError{{
			Field:   field + ".discount_method",
			Rule:    "enum",
			Message: fmt.Sprintf("unknown reward method %q", method),
		}}
	}
	return nil
}

// validateClientRanges enforces the partition invariant: ranges sorted by
// MinQuantity ascending, contiguous and non-overlapping, with at most one
// open-ended range which must come last.
func validateClientRanges(ranges []ClientRange) []ValidationError {
	var errs []ValidationError
	for i, r := range ranges {
		field := fmt.Sprintf("client_ranges[%d]", i)

		if r.MinQuantity < 1 {
			errs = append(errs, ValidationError{
				Field:   field + ".min_quantity",
				Rule:    "min",
				Message: "minimum quantity must be at least 1",
			})
		}
		if r.MaxQuantity != nil && *r.MaxQuantity < r.MinQuantity {
			errs = append(errs, ValidationError{
				Field:   field + ".max_quantity",
				Rule:    "range",
				Message: "max quantity must be at least min quantity",
			})
		}
		errs = append(errs, validateRewardValue(field, r.RewardMethod, r.RewardValue)...)

		if i == 0 {
			continue
		}
		prev := ranges[i-1]
		if prev.MaxQuantity == nil {
			errs = append(errs, ValidationError{
				Field:   field,
				Rule:    "open_ended_last",
				Message: "only the last range may be open-ended",
			})
			continue
		}
		if r.MinQuantity != *prev.MaxQuantity+1 {
			errs = append(errs, ValidationError{
				Field:   field + ".min_quantity",
				Rule:    "contiguous",
				Message: fmt.Sprintf("range must start at %d to continue the previous range", *prev.MaxQuantity+1),
			})
		}
	}
	return errs
}
