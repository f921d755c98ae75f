package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func validPromotion() *Promotion {
	max4 := int64(4)
	return &Promotion{
		Type: PromotionTypeSpecialClub,
		ApplicationProducts: []ApplicationProduct{
			{ProductID: 100, MinimumQuantity: 1},
		},
		ClientRanges: []ClientRange{
			{MinQuantity: 1, MaxQuantity: &max4, RewardValue: decimal.NewFromInt(10), RewardMethod: RewardMethodPercentage},
			{MinQuantity: 5, RewardValue: decimal.NewFromInt(20), RewardMethod: RewardMethodPercentage},
		},
	}
}

func hasViolation(errs []ValidationError, rule string) bool {
	for _, e := range errs {
		if e.Rule == rule {
			return true
		}
	}
	return false
}

func TestValidateDefinitionAcceptsValidPromotion(t *testing.T) {
	if errs := ValidateDefinition(validPromotion()); len(errs) != 0 {
		t.Fatalf("unexpected violations: %v", errs)
	}
}

func TestValidateDefinitionRequiresApplicationProducts(t *testing.T) {
	p := validPromotion()
	p.ApplicationProducts = nil
	errs := ValidateDefinition(p)
	if !hasViolation(errs, "required") {
		t.Fatalf("missing application products should be rejected, got %v", errs)
	}
}

func TestValidateDefinitionRejectsUnknownType(t *testing.T) {
	p := validPromotion()
	p.Type = "seasonal"
	if errs := ValidateDefinition(p); !hasViolation(errs, "enum") {
		t.Fatalf("unknown type should be rejected, got %v", errs)
	}
}

func TestValidateDefinitionRejectsRangeGap(t *testing.T) {
	p := validPromotion()
	p.ClientRanges[1].MinQuantity = 7
	if errs := ValidateDefinition(p); !hasViolation(errs, "contiguous") {
		t.Fatalf("gap between ranges should be rejected, got %v", errs)
	}
}

func TestValidateDefinitionRejectsRangeOverlap(t *testing.T) {
	p := validPromotion()
	p.ClientRanges[1].MinQuantity = 4
	if errs := ValidateDefinition(p); !hasViolation(errs, "contiguous") {
		t.Fatalf("overlapping ranges should be rejected, got %v", errs)
	}
}

func TestValidateDefinitionOpenEndedMustBeLast(t *testing.T) {
	max8 := int64(8)
	p := validPromotion()
	p.ClientRanges = []ClientRange{
		{MinQuantity: 1, RewardValue: decimal.NewFromInt(10), RewardMethod: RewardMethodPercentage},
		{MinQuantity: 5, MaxQuantity: &max8, RewardValue: decimal.NewFromInt(20), RewardMethod: RewardMethodPercentage},
	}
	if errs := ValidateDefinition(p); !hasViolation(errs, "open_ended_last") {
		t.Fatalf("open-ended range before the last should be rejected, got %v", errs)
	}
}

func TestValidateDefinitionRewardValueRules(t *testing.T) {
	cases := []struct {
		name   string
		method RewardMethod
		value  decimal.Decimal
		rule   string
	}{
		{"free nonzero", RewardMethodFree, decimal.NewFromInt(5), "zero"},
		{"percentage zero", RewardMethodPercentage, decimal.Zero, "range"},
		{"percentage over 100", RewardMethodPercentage, decimal.NewFromInt(101), "range"},
		{"fixed zero", RewardMethodFixed, decimal.Zero, "positive"},
		{"fixed negative", RewardMethodFixed, decimal.NewFromInt(-3), "positive"},
		{"unknown method", RewardMethod("rebate"), decimal.NewFromInt(1), "enum"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := validPromotion()
			p.RewardProducts = []RewardProduct{
				{ProductID: 200, DiscountMethod: tc.method, DiscountValue: tc.value},
			}
			if errs := ValidateDefinition(p); !hasViolation(errs, tc.rule) {
				t.Fatalf("want violation %q, got %v", tc.rule, errs)
			}
		})
	}
}

func TestValidateDefinitionPercentageBoundary(t *testing.T) {
	p := validPromotion()
	p.RewardProducts = []RewardProduct{
		{ProductID: 200, DiscountMethod: RewardMethodPercentage, DiscountValue: decimal.NewFromInt(100)},
	}
	if errs := ValidateDefinition(p); len(errs) != 0 {
		t.Fatalf("100%% is a valid percentage, got %v", errs)
	}
}
