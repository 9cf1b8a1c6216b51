package registry

import (
	"context"
	"fmt"

	broadcastmodels "io.winapps.pushcast/internal/models/broadcast"
)

// endpointLister is the slice of the registry the resolver needs.
type endpointLister interface {
	ListValid(ctx context.Context, role *broadcastmodels.Role) ([]broadcastmodels.DeviceEndpoint, error)
}

// Resolver turns an audience selector into a concrete, deduplicated token set.
// It reads a point-in-time snapshot: endpoints registered concurrently may be
// missed, but an already-invalidated endpoint is never included.
type Resolver struct {
	registry endpointLister
}

func NewResolver(registry endpointLister) *Resolver {
	return &Resolver{registry: registry}
}

// Resolve returns the tokens of every valid endpoint matching the target.
func (r *Resolver) Resolve(ctx context.Context, target broadcastmodels.TargetSpec) ([]string, error) {
	var role *broadcastmodels.Role
	switch target {
	case broadcastmodels.TargetAll:
		// nil role lists both passenger and driver endpoints.
	case broadcastmodels.TargetPassengers:
		role = rolePtr(broadcastmodels.RolePassenger)
	case broadcastmodels.TargetDrivers:
		role = rolePtr(broadcastmodels.RoleDriver)
	default:
		return nil, broadcastmodels.ErrInvalidTarget
	}

	endpoints, err := r.registry.ListValid(ctx, role)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve audience: %w", err)
	}

	seen := make(map[string]struct{}, len(endpoints))
	tokens := make([]string, 0, len(endpoints))
	for _, e := range endpoints {
		if _, ok := seen[e.Token]; ok {
			continue
		}
		seen[e.Token] = struct{}{}
		tokens = append(tokens, e.Token)
	}
	return tokens, nil
}
