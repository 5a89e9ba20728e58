package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"medroute/internal/model"
)

// Postgres persists requests, plans, subscriptions and the webhook
// delivery queue. Plans are stored whole as jsonb: they are written once
// and read back whole, never queried by inner structure.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	p := &Postgres{db: db}
	if err := p.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Postgres) Close() error { return p.db.Close() }

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

func (p *Postgres) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS transport_requests (
			id uuid PRIMARY KEY,
			external_ref text,
			patient text NOT NULL,
			pickup_address text NOT NULL,
			delivery_address text NOT NULL,
			category text NOT NULL,
			appointment text,
			companion boolean NOT NULL DEFAULT false,
			notes text,
			status text NOT NULL DEFAULT 'pending',
			created_at timestamptz NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS transport_requests_status_idx ON transport_requests (status, created_at)`,
		`CREATE TABLE IF NOT EXISTS plans (
			id uuid PRIMARY KEY,
			created_at timestamptz NOT NULL DEFAULT now(),
			served int NOT NULL,
			unassigned int NOT NULL,
			travel_min int NOT NULL,
			wait_min int NOT NULL,
			body jsonb NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS subscriptions (
			id uuid PRIMARY KEY,
			url text NOT NULL,
			events jsonb NOT NULL,
			secret text,
			created_at timestamptz NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS webhook_deliveries (
			id uuid PRIMARY KEY,
			subscription_id uuid,
			event_type text NOT NULL,
			url text NOT NULL,
			secret text,
			payload jsonb NOT NULL,
			status text NOT NULL DEFAULT 'pending',
			attempts int NOT NULL DEFAULT 0,
			next_attempt_at timestamptz NOT NULL DEFAULT now(),
			last_error text,
			response_code int,
			latency_ms int,
			delivered_at timestamptz,
			updated_at timestamptz NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS webhook_deliveries_due_idx ON webhook_deliveries (status, next_attempt_at)`,
	}
	for _, stmt := range stmts {
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func (p *Postgres) CreateRequests(ctx context.Context, reqs []model.RequestIn) ([]model.StoredRequest, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	out := make([]model.StoredRequest, 0, len(reqs))
	for _, r := range reqs {
		id := uuid.New().String()
		_, err := tx.ExecContext(ctx, `INSERT INTO transport_requests
			(id, external_ref, patient, pickup_address, delivery_address, category, appointment, companion, notes, status, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
			id, nullIfEmpty(r.ExternalRef), r.Patient, r.PickupAddress, r.DeliveryAddress,
			r.Category, nullIfEmpty(r.Appointment), r.Companion, nullIfEmpty(r.Notes), model.RequestPending, now)
		if err != nil {
			return nil, err
		}
		out = append(out, model.StoredRequest{ID: id, RequestIn: r, Status: model.RequestPending, CreatedAt: now})
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Postgres) ListRequests(ctx context.Context, status string) ([]model.StoredRequest, error) {
	q := `SELECT id::text, COALESCE(external_ref,''), patient, pickup_address, delivery_address,
		category, COALESCE(appointment,''), companion, COALESCE(notes,''), status, created_at
		FROM transport_requests`
	var rows *sql.Rows
	var err error
	if status != "" {
		rows, err = p.db.QueryContext(ctx, q+` WHERE status=$1 ORDER BY created_at, id`, status)
	} else {
		rows, err = p.db.QueryContext(ctx, q+` ORDER BY created_at, id`)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.StoredRequest{}
	for rows.Next() {
		var r model.StoredRequest
		if err := rows.Scan(&r.ID, &r.ExternalRef, &r.Patient, &r.PickupAddress, &r.DeliveryAddress,
			&r.Category, &r.Appointment, &r.Companion, &r.Notes, &r.Status, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *Postgres) GetRequest(ctx context.Context, id string) (model.StoredRequest, error) {
	var r model.StoredRequest
	err := p.db.QueryRowContext(ctx, `SELECT id::text, COALESCE(external_ref,''), patient, pickup_address,
		delivery_address, category, COALESCE(appointment,''), companion, COALESCE(notes,''), status, created_at
		FROM transport_requests WHERE id=$1`, id).
		Scan(&r.ID, &r.ExternalRef, &r.Patient, &r.PickupAddress, &r.DeliveryAddress,
			&r.Category, &r.Appointment, &r.Companion, &r.Notes, &r.Status, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.StoredRequest{}, ErrNotFound
	}
	return r, err
}

func (p *Postgres) MarkRequests(ctx context.Context, ids []string, status string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := p.db.ExecContext(ctx, `UPDATE transport_requests SET status=$1 WHERE id = ANY($2::uuid[])`, status, ids)
	return err
}

func (p *Postgres) SavePlan(ctx context.Context, plan model.Plan) error {
	body, err := json.Marshal(plan)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, `INSERT INTO plans (id, created_at, served, unassigned, travel_min, wait_min, body)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (id) DO UPDATE SET served=EXCLUDED.served, unassigned=EXCLUDED.unassigned,
			travel_min=EXCLUDED.travel_min, wait_min=EXCLUDED.wait_min, body=EXCLUDED.body`,
		plan.ID, plan.CreatedAt, plan.Stats.Served, len(plan.Unassigned),
		plan.Stats.TravelMin, plan.Stats.WaitMin, body)
	return err
}

func (p *Postgres) GetPlan(ctx context.Context, id string) (model.Plan, error) {
	var body []byte
	err := p.db.QueryRowContext(ctx, `SELECT body FROM plans WHERE id=$1`, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Plan{}, ErrNotFound
	}
	if err != nil {
		return model.Plan{}, err
	}
	var plan model.Plan
	if err := json.Unmarshal(body, &plan); err != nil {
		return model.Plan{}, err
	}
	return plan, nil
}

func (p *Postgres) ListPlans(ctx context.Context, limit int) ([]model.PlanSummary, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := p.db.QueryContext(ctx, `SELECT id::text, created_at, served, unassigned, travel_min, wait_min
		FROM plans ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.PlanSummary{}
	for rows.Next() {
		var s model.PlanSummary
		if err := rows.Scan(&s.ID, &s.CreatedAt, &s.Served, &s.Unassigned, &s.TravelMin, &s.WaitMin); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *Postgres) CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error) {
	id := uuid.New().String()
	ev, _ := json.Marshal(req.Events)
	_, err := p.db.ExecContext(ctx, `INSERT INTO subscriptions (id, url, events, secret) VALUES ($1,$2,$3,$4)`,
		id, req.URL, ev, req.Secret)
	if err != nil {
		return model.Subscription{}, err
	}
	return model.Subscription{ID: id, URL: req.URL, Events: req.Events, Secret: req.Secret}, nil
}

func (p *Postgres) GetSubscriptionsForEvent(ctx context.Context, eventType string) ([]model.Subscription, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id::text, url, COALESCE(secret,''), events
		FROM subscriptions WHERE events @> $1::jsonb`, fmt.Sprintf("[%q]", eventType))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Subscription{}
	for rows.Next() {
		var s model.Subscription
		var ev []byte
		if err := rows.Scan(&s.ID, &s.URL, &s.Secret, &ev); err != nil {
			return nil, err
		}
		_ = json.Unmarshal(ev, &s.Events)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *Postgres) ListSubscriptions(ctx context.Context) ([]model.Subscription, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id::text, url, COALESCE(secret,''), events FROM subscriptions ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Subscription{}
	for rows.Next() {
		var s model.Subscription
		var ev []byte
		if err := rows.Scan(&s.ID, &s.URL, &s.Secret, &ev); err != nil {
			return nil, err
		}
		_ = json.Unmarshal(ev, &s.Events)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *Postgres) DeleteSubscription(ctx context.Context, id string) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE id=$1`, id)
	return err
}

func (p *Postgres) EnqueueWebhook(ctx context.Context, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
	id := uuid.New().String()
	_, err := p.db.ExecContext(ctx, `INSERT INTO webhook_deliveries
		(id, subscription_id, event_type, url, secret, payload, status, attempts, next_attempt_at)
		VALUES ($1,$2,$3,$4,$5,$6,'pending',0,now())`,
		id, nullIfEmpty(subscriptionID), eventType, url, nullIfEmpty(secret), payload)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (p *Postgres) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id::text, COALESCE(subscription_id::text,''), event_type, url,
		COALESCE(secret,''), payload, status, attempts
		FROM webhook_deliveries WHERE status IN ('pending','retry') AND next_attempt_at <= now()
		ORDER BY next_attempt_at ASC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []WebhookDelivery{}
	for rows.Next() {
		var d WebhookDelivery
		if err := rows.Scan(&d.ID, &d.SubscriptionID, &d.EventType, &d.URL, &d.Secret, &d.Payload, &d.Status, &d.Attempts); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (p *Postgres) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
	if !success {
		if nextAttemptAt == nil {
			t := time.Now().Add(1 * time.Minute)
			nextAttemptAt = &t
		}
		_, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='retry',
			last_error=$2, next_attempt_at=$3, response_code=$4, latency_ms=$5, updated_at=now() WHERE id=$1`,
			id, nullIfEmpty(lastError), *nextAttemptAt, responseCode, latencyMs)
		return err
	}
	_, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='delivered',
		delivered_at=now(), response_code=$2, latency_ms=$3, updated_at=now() WHERE id=$1`, id, responseCode, latencyMs)
	return err
}

func (p *Postgres) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
	_, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET status='failed', last_error=$2,
		response_code=$3, latency_ms=$4, updated_at=now() WHERE id=$1`, id, nullIfEmpty(lastError), responseCode, latencyMs)
	return err
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
