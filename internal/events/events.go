package events

// Promotion event types emitted through the outbox.
const (
	EventPromotionApplied  = "promotion.applied"
	EventPromotionReversed = "promotion.reversed"
	EventPromotionFinished = "promotion.finished"
)

// ApplicationPayload captures the minimal data downstream consumers need
// to attribute one promotion application or its reversal.
type ApplicationPayload struct {
	PromotionID string `json:"promotion_id"`
	ClientID    string `json:"client_id"`
	OrderID     string `json:"order_id,omitempty"`
	Amount      string `json:"amount"`
	Pieces      int64  `json:"pieces,omitempty"`
}

// ToMap converts a payload into an outbox-friendly map.
func (p ApplicationPayload) ToMap() map[string]any {
	payload := map[string]any{
		"promotion_id": p.PromotionID,
		"client_id":    p.ClientID,
		"amount":       p.Amount,
	}
	if p.OrderID != "" {
		payload["order_id"] = p.OrderID
	}
	if p.Pieces != 0 {
		payload["pieces"] = p.Pieces
	}
	return payload
}

// FinishedPayload reports why a promotion left the Active status.
type FinishedPayload struct {
	PromotionID string `json:"promotion_id"`
	Cause       string `json:"cause"` // end_date | max_total_usage | max_budget
}

// ToMap converts a payload into an outbox-friendly map.
func (p FinishedPayload) ToMap() map[string]any {
	return map[string]any{
		"promotion_id": p.PromotionID,
		"cause":        p.Cause,
	}
}
