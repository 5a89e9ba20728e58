package store

import (
	"context"
	"errors"
	"time"

	"medroute/internal/model"
)

// Store is the persistence interface used by the API server.
type Store interface {
	// Transport requests
	CreateRequests(ctx context.Context, reqs []model.RequestIn) ([]model.StoredRequest, error)
	ListRequests(ctx context.Context, status string) ([]model.StoredRequest, error)
	GetRequest(ctx context.Context, id string) (model.StoredRequest, error)
	MarkRequests(ctx context.Context, ids []string, status string) error

	// Plans
	SavePlan(ctx context.Context, plan model.Plan) error
	GetPlan(ctx context.Context, id string) (model.Plan, error)
	ListPlans(ctx context.Context, limit int) ([]model.PlanSummary, error)

	// Subscriptions
	CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error)
	GetSubscriptionsForEvent(ctx context.Context, eventType string) ([]model.Subscription, error)
	ListSubscriptions(ctx context.Context) ([]model.Subscription, error)
	DeleteSubscription(ctx context.Context, id string) error

	// Webhook deliveries
	EnqueueWebhook(ctx context.Context, subscriptionID, eventType, url, secret string, payload []byte) (string, error)
	FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error)
	MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error
	FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error
}

var ErrNotFound = errors.New("not found")
