package api

import (
	"fmt"
	"strings"

	"medroute/internal/model"
)

func validateSolveRequest(req *model.SolveRequest) error {
	if req.TimeBudgetMs < 0 {
		return fmt.Errorf("timeBudgetMs must be >= 0")
	}
	if req.MaxIterations < 0 {
		return fmt.Errorf("maxIterations must be >= 0")
	}
	for _, id := range req.RequestIDs {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("requestIds must not contain empty ids")
		}
	}
	return nil
}

func validateRequestIn(r *model.RequestIn) error {
	if strings.TrimSpace(r.Patient) == "" {
		return fmt.Errorf("patient is required")
	}
	if strings.TrimSpace(r.PickupAddress) == "" {
		return fmt.Errorf("pickupAddress is required")
	}
	if strings.TrimSpace(r.DeliveryAddress) == "" {
		return fmt.Errorf("deliveryAddress is required")
	}
	if strings.TrimSpace(r.Category) == "" {
		return fmt.Errorf("category is required")
	}
	return nil
}
