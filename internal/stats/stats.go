package stats

import (
	"context"
	"fmt"

	broadcastmodels "io.winapps.pushcast/internal/models/broadcast"
)

// RoleCounter reports valid endpoint counts; a nil role counts every role.
type RoleCounter interface {
	Count(ctx context.Context, role *broadcastmodels.Role) (int, error)
}

// Historian serves recent delivery records, most recent first.
type Historian interface {
	History(ctx context.Context, limit int) ([]broadcastmodels.DeliveryRecord, error)
}

// TokenStats is the current valid-endpoint breakdown by role.
type TokenStats struct {
	Passengers int `json:"passengers"`
	Drivers    int `json:"drivers"`
	Total      int `json:"total"`
}

// Aggregator derives read-only views from the registry and the ledger. It
// holds no state of its own, so repeated reads with no intervening mutation
// return identical values.
type Aggregator struct {
	registry RoleCounter
	ledger   Historian
}

func NewAggregator(registry RoleCounter, ledger Historian) *Aggregator {
	return &Aggregator{registry: registry, ledger: ledger}
}

// TokenStats passes the registry counts through unchanged.
func (a *Aggregator) TokenStats(ctx context.Context) (TokenStats, error) {
	passengerRole := broadcastmodels.RolePassenger
	driverRole := broadcastmodels.RoleDriver

	passengers, err := a.registry.Count(ctx, &passengerRole)
	if err != nil {
		return TokenStats{}, fmt.Errorf("failed to count passenger endpoints: %w", err)
	}
	drivers, err := a.registry.Count(ctx, &driverRole)
	if err != nil {
		return TokenStats{}, fmt.Errorf("failed to count driver endpoints: %w", err)
	}
	total, err := a.registry.Count(ctx, nil)
	if err != nil {
		return TokenStats{}, fmt.Errorf("failed to count endpoints: %w", err)
	}

	return TokenStats{Passengers: passengers, Drivers: drivers, Total: total}, nil
}

// RecentHistory passes the ledger history through unchanged.
func (a *Aggregator) RecentHistory(ctx context.Context, limit int) ([]broadcastmodels.DeliveryRecord, error) {
	return a.ledger.History(ctx, limit)
}
