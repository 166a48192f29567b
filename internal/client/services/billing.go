package services

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/innerwell/internal/client/models"
	"github.com/dmitrijs2005/innerwell/internal/logging"
)

const (
	pathPlans    = "/api/subscriptions/plans/"
	pathCheckout = "/api/subscriptions/create-checkout-session/"
	pathVerify   = "/api/subscriptions/verify-subscription/"
	pathReviews  = "/api/reviews/"
)

// ProfileRefresher reloads the signed-in profile; *AuthService implements it.
type ProfileRefresher interface {
	RefreshUser(ctx context.Context) error
}

// BillingService lists plans and runs the external checkout.
type BillingService struct {
	api     API
	profile ProfileRefresher
	logger  logging.Logger
}

func NewBillingService(api API, profile ProfileRefresher, logger logging.Logger) *BillingService {
	if logger == nil {
		logger = logging.Nop()
	}
	return &BillingService{api: api, profile: profile, logger: logger.With("component", "billing")}
}

func (s *BillingService) Plans(ctx context.Context) ([]models.Plan, error) {
	var out []models.Plan
	if err := s.api.Get(ctx, pathPlans, nil, &out); err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	return out, nil
}

// Checkout creates a payment session for plan and returns the URL of the
// external payment page.
func (s *BillingService) Checkout(ctx context.Context, plan models.Plan) (models.CheckoutSession, error) {
	id := plan.StripePriceID
	if id == "" {
		id = plan.ID.String()
	}
	if err := requireText("plan", id); err != nil {
		return models.CheckoutSession{}, err
	}

	var out models.CheckoutSession
	if err := s.api.PostJSON(ctx, pathCheckout, map[string]string{"plan_id": id}, &out); err != nil {
		return out, fmt.Errorf("create checkout session: %w", err)
	}
	if out.URL == "" {
		return out, fmt.Errorf("create checkout session: response has no url")
	}
	return out, nil
}

// Verify confirms a finished checkout and reloads the profile so the new
// subscription is visible.
func (s *BillingService) Verify(ctx context.Context, sessionID string) error {
	if err := requireText("session", sessionID); err != nil {
		return err
	}
	if err := s.api.PostJSON(ctx, pathVerify, map[string]string{"session_id": sessionID}, nil); err != nil {
		return fmt.Errorf("verify subscription: %w", err)
	}
	s.logger.Info(ctx, "subscription verified")
	return s.profile.RefreshUser(ctx)
}

type ReviewService struct {
	api API
}

func NewReviewService(api API) *ReviewService {
	return &ReviewService{api: api}
}

func (s *ReviewService) List(ctx context.Context) ([]models.Review, error) {
	var out []models.Review
	if err := s.api.Get(ctx, pathReviews, nil, &out); err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	return out, nil
}
