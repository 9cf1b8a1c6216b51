package registry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	broadcastmodels "io.winapps.pushcast/internal/models/broadcast"
	"io.winapps.pushcast/internal/registry"
)

type fakeLister struct {
	endpoints []broadcastmodels.DeviceEndpoint
	err       error
	lastRole  *broadcastmodels.Role
	called    bool
}

func (f *fakeLister) ListValid(ctx context.Context, role *broadcastmodels.Role) ([]broadcastmodels.DeviceEndpoint, error) {
	f.called = true
	f.lastRole = role
	if f.err != nil {
		return nil, f.err
	}
	if role == nil {
		return f.endpoints, nil
	}
	var filtered []broadcastmodels.DeviceEndpoint
	for _, e := range f.endpoints {
		if e.OwnerRole == *role {
			filtered = append(filtered, e)
		}
	}
	return filtered, nil
}

func endpoint(token string, role broadcastmodels.Role, ownerID string) broadcastmodels.DeviceEndpoint {
	return broadcastmodels.DeviceEndpoint{Token: token, OwnerRole: role, OwnerID: ownerID, Valid: true}
}

func TestResolveAllUnionsBothRoles(t *testing.T) {
	lister := &fakeLister{endpoints: []broadcastmodels.DeviceEndpoint{
		endpoint("p-1", broadcastmodels.RolePassenger, "u1"),
		endpoint("p-2", broadcastmodels.RolePassenger, "u2"),
		endpoint("d-1", broadcastmodels.RoleDriver, "u3"),
	}}
	resolver := registry.NewResolver(lister)

	tokens, err := resolver.Resolve(context.Background(), broadcastmodels.TargetAll)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"p-1", "p-2", "d-1"}, tokens)
	assert.Nil(t, lister.lastRole)
}

func TestResolveFiltersByRole(t *testing.T) {
	lister := &fakeLister{endpoints: []broadcastmodels.DeviceEndpoint{
		endpoint("p-1", broadcastmodels.RolePassenger, "u1"),
		endpoint("d-1", broadcastmodels.RoleDriver, "u2"),
		endpoint("d-2", broadcastmodels.RoleDriver, "u3"),
	}}
	resolver := registry.NewResolver(lister)

	tokens, err := resolver.Resolve(context.Background(), broadcastmodels.TargetDrivers)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"d-1", "d-2"}, tokens)
	require.NotNil(t, lister.lastRole)
	assert.Equal(t, broadcastmodels.RoleDriver, *lister.lastRole)

	tokens, err = resolver.Resolve(context.Background(), broadcastmodels.TargetPassengers)
	require.NoError(t, err)
	assert.Equal(t, []string{"p-1"}, tokens)
}

func TestResolveDeduplicatesTokens(t *testing.T) {
	lister := &fakeLister{endpoints: []broadcastmodels.DeviceEndpoint{
		endpoint("t-1", broadcastmodels.RolePassenger, "u1"),
		endpoint("t-1", broadcastmodels.RolePassenger, "u1"),
		endpoint("t-2", broadcastmodels.RoleDriver, "u2"),
	}}
	resolver := registry.NewResolver(lister)

	tokens, err := resolver.Resolve(context.Background(), broadcastmodels.TargetAll)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"t-1", "t-2"}, tokens)
}

func TestResolveRejectsUnknownTarget(t *testing.T) {
	lister := &fakeLister{}
	resolver := registry.NewResolver(lister)

	_, err := resolver.Resolve(context.Background(), broadcastmodels.TargetSpec(99))
	assert.ErrorIs(t, err, broadcastmodels.ErrInvalidTarget)
	assert.False(t, lister.called)
}

func TestResolvePropagatesListError(t *testing.T) {
	lister := &fakeLister{err: errors.New("db down")}
	resolver := registry.NewResolver(lister)

	_, err := resolver.Resolve(context.Background(), broadcastmodels.TargetAll)
	assert.Error(t, err)
}
