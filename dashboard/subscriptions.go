package dashboard

import (
	"context"
	"net/http"
	"net/url"

	"github.com/luxesuite/luxeapi"
)

// Subscriptions lists the account's subscriptions.
func (s *Service) Subscriptions(ctx context.Context) ([]Subscription, error) {
	var out envelope[[]Subscription]
	if err := s.get(ctx, "/api/subscriptions", nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// Subscription accepts both a bare subscription and a {data} envelope.
func (s *Service) Subscription(ctx context.Context, id string) (*Subscription, error) {
	var raw []byte
	if err := s.get(ctx, pathID("/api/subscriptions", id, ""), nil, &raw); err != nil {
		return nil, err
	}
	return decodeMaybeEnveloped[Subscription](raw)
}

// CreateSubscription starts a paid subscription and returns the checkout
// link. A 409 means a pending subscription already exists; see
// AsPendingSubscription.
func (s *Service) CreateSubscription(ctx context.Context, sub NewSubscription) (*Checkout, error) {
	if sub.PlanID == "" {
		return nil, validationError("plan_id", "plan is required")
	}
	if sub.Duration <= 0 {
		return nil, validationError("duration", "duration must be positive")
	}
	var out Checkout
	err := s.sendOnce(ctx, &luxeapi.Request{Method: http.MethodPost, Path: "/api/subscriptions", JSON: sub}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateTrialSubscription activates the free trial.
func (s *Service) CreateTrialSubscription(ctx context.Context) (map[string]any, error) {
	out := map[string]any{}
	err := s.sendOnce(ctx, &luxeapi.Request{Method: http.MethodPost, Path: "/api/subscriptions/trial"}, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) CreateCustomSubscription(ctx context.Context, sub CustomSubscription) (*Checkout, error) {
	var out Checkout
	err := s.sendOnce(ctx, &luxeapi.Request{Method: http.MethodPost, Path: "/api/subscriptions/custom", JSON: sub}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Service) UpdateSubscription(ctx context.Context, id string, update SubscriptionUpdate) (*Subscription, error) {
	var raw []byte
	if err := s.send(ctx, http.MethodPut, pathID("/api/subscriptions", id, ""), update, &raw); err != nil {
		return nil, err
	}
	return decodeMaybeEnveloped[Subscription](raw)
}

func (s *Service) CancelSubscription(ctx context.Context, id string) error {
	return s.doer.Do(ctx, &luxeapi.Request{Method: http.MethodDelete, Path: pathID("/api/subscriptions", id, "")}, nil)
}

// UpgradeSubscription moves a subscription to planID for duration months.
func (s *Service) UpgradeSubscription(ctx context.Context, id, planID string, duration int) (*Subscription, error) {
	if duration <= 0 {
		return nil, validationError("duration", "duration must be positive")
	}
	body := map[string]any{"plan_id": planID, "duration": duration}
	var raw []byte
	if err := s.send(ctx, http.MethodPut, pathID("/api/subscriptions", id, "/upgrade"), body, &raw); err != nil {
		return nil, err
	}
	return decodeMaybeEnveloped[Subscription](raw)
}

// Plans lists the subscription plans.
func (s *Service) Plans(ctx context.Context) ([]SubscriptionPlan, error) {
	var raw []byte
	if err := s.get(ctx, "/api/subscription-plans", nil, &raw); err != nil {
		return nil, err
	}
	plans, err := decodeMaybeEnveloped[[]SubscriptionPlan](raw)
	if err != nil {
		return nil, err
	}
	return *plans, nil
}

func (s *Service) ChangePlan(ctx context.Context, planID string) error {
	return s.send(ctx, http.MethodPost, "/api/subscription-plans/change", map[string]string{"planId": planID}, nil)
}

func (s *Service) CustomUserLimits(ctx context.Context) ([]CustomUserLimit, error) {
	var raw []byte
	if err := s.get(ctx, "/api/plan/custom-limit", nil, &raw); err != nil {
		return nil, err
	}
	limits, err := decodeMaybeEnveloped[[]CustomUserLimit](raw)
	if err != nil {
		return nil, err
	}
	return *limits, nil
}

// Analytics returns the usage analytics for a subscription. An empty period
// means Period30Days.
func (s *Service) Analytics(ctx context.Context, id string, period AnalyticsPeriod) (map[string]any, error) {
	switch period {
	case "":
		period = Period30Days
	case Period7Days, Period30Days, Period90Days:
	default:
		return nil, validationError("period", "must be one of 7d, 30d, 90d")
	}
	out := map[string]any{}
	query := url.Values{"period": {string(period)}}
	if err := s.get(ctx, pathID("/api/subscriptions", id, "/analytics"), query, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AsPendingSubscription reports whether err is the 409 returned when the
// account already has a subscription awaiting payment. The payment URL is
// passed through exactly as the backend sent it.
func AsPendingSubscription(err error) (*PendingSubscription, bool) {
	apiErr, ok := luxeapi.AsAPIError(err)
	if !ok || !apiErr.IsConflict() {
		return nil, false
	}
	return &PendingSubscription{
		Message:    apiErr.Message,
		PaymentURL: apiErr.String("payment_url"),
	}, true
}
