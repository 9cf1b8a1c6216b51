package registry

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	broadcastmodels "io.winapps.pushcast/internal/models/broadcast"
)

const countCacheTTL = time.Hour

// Registry owns the durable set of device endpoints and their validity.
// Role counts are served through a redis cache that is dropped on every
// mutation; everything else reads Postgres directly.
type Registry struct {
	db     *pgxpool.Pool
	redis  *redis.Client
	logger *zap.SugaredLogger
}

func New(db *pgxpool.Pool, redisClient *redis.Client, logger *zap.SugaredLogger) *Registry {
	return &Registry{db: db, redis: redisClient, logger: logger}
}

// Register upserts the endpoint for (role, ownerID). Any other valid endpoint
// for the same owner is superseded, so there is never more than one valid
// endpoint per owner.
func (r *Registry) Register(ctx context.Context, token string, role broadcastmodels.Role, ownerID string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin registration: %w", err)
	}
	defer tx.Rollback(ctx)

	supersede := `
		UPDATE device_endpoints
		SET valid = FALSE
		WHERE owner_role = $1 AND owner_id = $2 AND token <> $3 AND valid`
	if _, err := tx.Exec(ctx, supersede, role, ownerID, token); err != nil {
		return fmt.Errorf("failed to supersede previous endpoint: %w", err)
	}

	upsert := `
		INSERT INTO device_endpoints (token, owner_role, owner_id, registered_at, last_seen_at, valid)
		VALUES ($1, $2, $3, NOW(), NOW(), TRUE)
		ON CONFLICT (token)
		DO UPDATE SET
			owner_role = EXCLUDED.owner_role,
			owner_id = EXCLUDED.owner_id,
			last_seen_at = NOW(),
			valid = TRUE`
	if _, err := tx.Exec(ctx, upsert, token, role, ownerID); err != nil {
		return fmt.Errorf("failed to register endpoint: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit registration: %w", err)
	}

	r.dropCountCache(ctx)
	return nil
}

// Invalidate marks the endpoint undeliverable. Invalidation is convergent:
// an unknown or already-invalid token is reported as success.
func (r *Registry) Invalidate(ctx context.Context, token string) error {
	tag, err := r.db.Exec(ctx, `UPDATE device_endpoints SET valid = FALSE WHERE token = $1 AND valid`, token)
	if err != nil {
		return fmt.Errorf("failed to invalidate endpoint: %w", err)
	}
	if tag.RowsAffected() > 0 {
		r.dropCountCache(ctx)
	}
	return nil
}

// ListValid returns a snapshot of the currently valid endpoints, optionally
// filtered by role. The slice is a copy, not a live view.
func (r *Registry) ListValid(ctx context.Context, role *broadcastmodels.Role) ([]broadcastmodels.DeviceEndpoint, error) {
	query := `
		SELECT token, owner_role, owner_id, registered_at, last_seen_at, valid
		FROM device_endpoints
		WHERE valid`
	args := []interface{}{}
	if role != nil {
		query += ` AND owner_role = $1`
		args = append(args, *role)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list endpoints: %w", err)
	}
	defer rows.Close()

	var endpoints []broadcastmodels.DeviceEndpoint
	for rows.Next() {
		var e broadcastmodels.DeviceEndpoint
		if err := rows.Scan(&e.Token, &e.OwnerRole, &e.OwnerID, &e.RegisteredAt, &e.LastSeenAt, &e.Valid); err != nil {
			return nil, fmt.Errorf("failed to scan endpoint: %w", err)
		}
		endpoints = append(endpoints, e)
	}
	return endpoints, rows.Err()
}

// Count returns the number of valid endpoints for a role; a nil role counts
// all valid endpoints. Counts are cached in redis and fall back to Postgres
// when redis is unavailable.
func (r *Registry) Count(ctx context.Context, role *broadcastmodels.Role) (int, error) {
	key := countCacheKey(role)
	if cached, err := r.redis.Get(ctx, key).Result(); err == nil {
		if n, err := strconv.Atoi(cached); err == nil {
			return n, nil
		}
	}

	query := `SELECT COUNT(*) FROM device_endpoints WHERE valid`
	args := []interface{}{}
	if role != nil {
		query += ` AND owner_role = $1`
		args = append(args, *role)
	}

	var n int
	if err := r.db.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count endpoints: %w", err)
	}

	if err := r.redis.Set(ctx, key, strconv.Itoa(n), countCacheTTL).Err(); err != nil {
		r.logger.Warnw("failed to cache endpoint count", "key", key, "error", err)
	}
	return n, nil
}

// InvalidateStale invalidates valid endpoints that have not been seen within
// the given duration and reports how many were affected.
func (r *Registry) InvalidateStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	tag, err := r.db.Exec(ctx, `UPDATE device_endpoints SET valid = FALSE WHERE valid AND last_seen_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to invalidate stale endpoints: %w", err)
	}
	if tag.RowsAffected() > 0 {
		r.dropCountCache(ctx)
	}
	return tag.RowsAffected(), nil
}

// PruneInvalid deletes invalid endpoint rows that have been untouched for the
// given duration. Delivery records are never pruned, only endpoints.
func (r *Registry) PruneInvalid(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	tag, err := r.db.Exec(ctx, `DELETE FROM device_endpoints WHERE NOT valid AND last_seen_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune invalid endpoints: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *Registry) dropCountCache(ctx context.Context) {
	keys := []string{
		countCacheKey(nil),
		countCacheKey(rolePtr(broadcastmodels.RolePassenger)),
		countCacheKey(rolePtr(broadcastmodels.RoleDriver)),
	}
	if err := r.redis.Del(ctx, keys...).Err(); err != nil {
		r.logger.Warnw("failed to drop endpoint count cache", "error", err)
	}
}

func countCacheKey(role *broadcastmodels.Role) string {
	if role == nil {
		return "endpoint_count:all"
	}
	return fmt.Sprintf("endpoint_count:%s", *role)
}

func rolePtr(role broadcastmodels.Role) *broadcastmodels.Role {
	return &role
}
