package models

// Plan is a subscription offer from GET /api/subscriptions/plans/.
type Plan struct {
	ID            ID       `json:"id"`
	Name          string   `json:"name"`
	Title         string   `json:"title,omitempty"`
	Subtitle      string   `json:"subtitle,omitempty"`
	Price         string   `json:"price"`
	Services      []string `json:"services,omitempty"`
	Recommended   bool     `json:"recommended,omitempty"`
	StripePriceID string   `json:"stripe_price_id,omitempty"`
}

// CheckoutSession points at the external payment page.
type CheckoutSession struct {
	URL string `json:"url"`
}

// Review is a testimonial from GET /api/reviews/.
type Review struct {
	ID     ID     `json:"id"`
	Name   string `json:"name"`
	Text   string `json:"review"`
	Rating int    `json:"rating,omitempty"`
}
