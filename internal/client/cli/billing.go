package cli

import (
	"context"
	"strconv"
	"strings"
)

func (a *App) listPlans(ctx context.Context, _ []string) error {
	plans, err := a.billing.Plans(ctx)
	if err != nil {
		return err
	}
	a.plans = plans

	for i, p := range plans {
		mark := ""
		if p.Recommended {
			mark = " (recommended)"
		}
		title := p.Title
		if title == "" {
			title = p.Name
		}
		a.printf("%d. %s %s%s\n", i+1, title, p.Price, mark)
		if len(p.Services) > 0 {
			a.printf("   %s\n", strings.Join(p.Services, ", "))
		}
	}
	return nil
}

func (a *App) subscribe(ctx context.Context, args []string) error {
	if len(args) != 1 {
		a.println("Usage: subscribe <plan-number>")
		return nil
	}
	if len(a.plans) == 0 {
		if err := a.listPlans(ctx, nil); err != nil {
			return err
		}
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 || n > len(a.plans) {
		a.println("Unknown plan:", args[0])
		return nil
	}

	session, err := a.billing.Checkout(ctx, a.plans[n-1])
	if err != nil {
		return err
	}
	a.println("Complete the payment in your browser:")
	a.println(session.URL)
	a.println("Then run 'confirm <checkout-session-id>'.")
	return nil
}

func (a *App) confirmPayment(ctx context.Context, args []string) error {
	if len(args) != 1 {
		a.println("Usage: confirm <checkout-session-id>")
		return nil
	}
	if err := a.billing.Verify(ctx, args[0]); err != nil {
		return err
	}
	a.println("Subscription active. Enjoy InnerWell!")
	return nil
}

func (a *App) listReviews(ctx context.Context, _ []string) error {
	reviews, err := a.reviews.List(ctx)
	if err != nil {
		return err
	}
	for _, r := range reviews {
		a.printf("%s %s: %s\n", stars(r.Rating), r.Name, r.Text)
	}
	return nil
}

const maxRating = 5

// stars renders a rating, clamped to 0..5 whatever the backend sends.
func stars(rating int) string {
	return strings.Repeat("*", min(max(rating, 0), maxRating))
}
