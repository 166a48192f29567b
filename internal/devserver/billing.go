package devserver

import (
	"net/http"
	"strconv"
)

var plans = []map[string]any{
	{
		"id": 1, "name": "monthly", "title": "Monthly", "subtitle": "Cancel anytime",
		"price": "9.99", "services": []string{"Unlimited chat", "Mindset mantra", "Journaling"},
		"stripe_price_id": "price_monthly",
	},
	{
		"id": 2, "name": "yearly", "title": "Yearly", "subtitle": "Two months free",
		"price": "99.99", "services": []string{"Everything in monthly", "Internal challenges"},
		"recommended": true, "stripe_price_id": "price_yearly",
	},
}

var reviews = []map[string]any{
	{"id": 1, "name": "Ava", "review": "Calmer evenings since I started journaling.", "rating": 5},
	{"id": 2, "name": "Noah", "review": "The mantras actually stick.", "rating": 4},
}

func (s *Server) handlePlans(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, plans)
}

func (s *Server) handleReviews(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, reviews)
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var in struct {
		PlanID jsonID `json:"plan_id"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	// the web client sends the stripe price id, older builds the plan id
	known := false
	for _, p := range plans {
		if p["stripe_price_id"] == string(in.PlanID) || strconv.Itoa(p["id"].(int)) == string(in.PlanID) {
			known = true
		}
	}
	if !known {
		writeJSON(w, http.StatusBadRequest, map[string][]string{"plan_id": {"Unknown plan."}})
		return
	}

	a := accountFrom(r.Context())

	s.mu.Lock()
	defer s.mu.Unlock()

	id := "cs_" + strconv.Itoa(s.nextID())
	s.checkouts[id] = a.ID
	s.lastCheckout = id
	writeJSON(w, http.StatusOK, map[string]string{"url": "https://checkout.innerwell.test/pay/" + id})
}

func (s *Server) handleVerifySubscription(w http.ResponseWriter, r *http.Request) {
	var in struct {
		SessionID string `json:"session_id"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	a := accountFrom(r.Context())

	s.mu.Lock()
	defer s.mu.Unlock()

	if owner, ok := s.checkouts[in.SessionID]; !ok || owner != a.ID {
		writeError(w, http.StatusBadRequest, "invalid_session", "Checkout session not found.")
		return
	}
	delete(s.checkouts, in.SessionID)
	a.IsSubscribed = true
	writeJSON(w, http.StatusOK, map[string]string{"status": "active", "message": "Subscription activated."})
}
