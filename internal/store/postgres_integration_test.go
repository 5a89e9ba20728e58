//go:build postgres_integration

package store

import (
	"os"
	"testing"

	"medroute/internal/model"
)

func TestPostgresRoundTrip(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set; skipping integration test")
	}
	p, err := NewPostgres(t.Context(), dsn)
	if err != nil {
		t.Fatalf("NewPostgres: %v", err)
	}
	defer p.Close()

	created, err := p.CreateRequests(t.Context(), []model.RequestIn{{
		Patient:         "integration",
		PickupAddress:   "Calle Mayor 1",
		DeliveryAddress: "Hospital",
		Category:        "seated",
	}})
	if err != nil {
		t.Fatalf("CreateRequests: %v", err)
	}
	got, err := p.GetRequest(t.Context(), created[0].ID)
	if err != nil || got.Patient != "integration" {
		t.Fatalf("GetRequest: %v %+v", err, got)
	}
	if _, err := p.ListPlans(t.Context(), 1); err != nil {
		t.Fatalf("ListPlans: %v", err)
	}
}
