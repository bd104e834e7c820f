package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"royalbot/internal/model"
)

const resourceColumns = `
	id, kind, creator_id, total_value, total_slots, remaining_value,
	remaining_slots, status, expires_at, created_at`

// ResourceRepository handles contested resource persistence.
type ResourceRepository struct {
	db DBTX
}

// NewResourceRepository creates a new ResourceRepository instance.
func NewResourceRepository(db DBTX) *ResourceRepository {
	return &ResourceRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *ResourceRepository) WithTx(tx DBTX) *ResourceRepository {
	return &ResourceRepository{db: tx}
}

func scanResource(row pgx.Row) (*model.Resource, error) {
	var res model.Resource
	err := row.Scan(
		&res.ID, &res.Kind, &res.CreatorID, &res.TotalValue, &res.TotalSlots,
		&res.RemainingValue, &res.RemainingSlots, &res.Status, &res.ExpiresAt,
		&res.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrResourceNotFound
		}
		return nil, err
	}
	return &res, nil
}

// Create inserts a new active resource.
func (r *ResourceRepository) Create(ctx context.Context, res *model.Resource) (*model.Resource, error) {
	query := `
		INSERT INTO resources
			(id, kind, creator_id, total_value, total_slots, remaining_value,
			 remaining_slots, status, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $4, $5, 'active', $6, NOW())
		RETURNING ` + resourceColumns

	created, err := scanResource(r.db.QueryRow(ctx, query,
		res.ID, res.Kind, res.CreatorID, res.TotalValue, res.TotalSlots, res.ExpiresAt))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	return created, nil
}

// Get retrieves a resource by id.
func (r *ResourceRepository) Get(ctx context.Context, id string) (*model.Resource, error) {
	query := `SELECT ` + resourceColumns + ` FROM resources WHERE id = $1`

	res, err := scanResource(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, ErrResourceNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get resource: %w", err)
	}
	return res, nil
}

// GetForUpdate retrieves a resource under a row lock. Must be called inside
// a transaction; concurrent claims against the same resource serialize here.
func (r *ResourceRepository) GetForUpdate(ctx context.Context, id string) (*model.Resource, error) {
	query := `SELECT ` + resourceColumns + ` FROM resources WHERE id = $1 FOR UPDATE`

	res, err := scanResource(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, ErrResourceNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to lock resource: %w", err)
	}
	return res, nil
}

// ApplyClaim decrements one slot and the claimed value, transitioning the
// resource to exhausted when the last slot goes. Guarded by the remaining
// slot/value predicates as a second line behind the row lock.
func (r *ResourceRepository) ApplyClaim(ctx context.Context, id string, amount int64) (*model.Resource, error) {
	query := `
		UPDATE resources
		SET remaining_value = remaining_value - $2,
			remaining_slots = remaining_slots - 1,
			status = CASE WHEN remaining_slots - 1 = 0 THEN 'exhausted' ELSE status END
		WHERE id = $1 AND remaining_slots > 0 AND remaining_value >= $2
		RETURNING ` + resourceColumns

	res, err := scanResource(r.db.QueryRow(ctx, query, id, amount))
	if err != nil {
		if errors.Is(err, ErrResourceNotFound) {
			return nil, ErrResourceNotFound
		}
		return nil, fmt.Errorf("failed to apply claim: %w", err)
	}
	return res, nil
}

// GetClaim retrieves a claimant's existing claim on a resource, if any.
func (r *ResourceRepository) GetClaim(ctx context.Context, resourceID string, claimantID int64) (*model.ResourceClaim, bool, error) {
	const query = `
		SELECT id, resource_id, claimant_id, amount, created_at
		FROM resource_claims
		WHERE resource_id = $1 AND claimant_id = $2`

	var c model.ResourceClaim
	err := r.db.QueryRow(ctx, query, resourceID, claimantID).Scan(
		&c.ID, &c.ResourceID, &c.ClaimantID, &c.Amount, &c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get claim: %w", err)
	}
	return &c, true, nil
}

// InsertClaim records a claimant's share. The UNIQUE(resource_id, claimant_id)
// constraint makes a duplicate insert fail rather than double-claim.
func (r *ResourceRepository) InsertClaim(ctx context.Context, resourceID string, claimantID, amount int64) (*model.ResourceClaim, error) {
	const query = `
		INSERT INTO resource_claims (resource_id, claimant_id, amount, created_at)
		VALUES ($1, $2, $3, NOW())
		RETURNING id, resource_id, claimant_id, amount, created_at`

	var c model.ResourceClaim
	err := r.db.QueryRow(ctx, query, resourceID, claimantID, amount).Scan(
		&c.ID, &c.ResourceID, &c.ClaimantID, &c.Amount, &c.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert claim: %w", err)
	}
	return &c, nil
}

// Claims lists all claims on a resource in claim order.
func (r *ResourceRepository) Claims(ctx context.Context, resourceID string) ([]*model.ResourceClaim, error) {
	const query = `
		SELECT id, resource_id, claimant_id, amount, created_at
		FROM resource_claims
		WHERE resource_id = $1
		ORDER BY id`

	rows, err := r.db.Query(ctx, query, resourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list claims: %w", err)
	}
	defer rows.Close()

	var claims []*model.ResourceClaim
	for rows.Next() {
		var c model.ResourceClaim
		if err := rows.Scan(&c.ID, &c.ResourceID, &c.ClaimantID, &c.Amount, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan claim: %w", err)
		}
		claims = append(claims, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating claims: %w", err)
	}
	return claims, nil
}

// ClaimCount returns the number of claims registered on a resource.
func (r *ResourceRepository) ClaimCount(ctx context.Context, resourceID string) (int64, error) {
	const query = `SELECT COUNT(*) FROM resource_claims WHERE resource_id = $1`

	var count int64
	if err := r.db.QueryRow(ctx, query, resourceID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count claims: %w", err)
	}
	return count, nil
}

// Due lists the ids of active resources past their deadline.
func (r *ResourceRepository) Due(ctx context.Context, now time.Time) ([]string, error) {
	const query = `SELECT id FROM resources WHERE status = 'active' AND expires_at <= $1`

	rows, err := r.db.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list due resources: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan due resource: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating due resources: %w", err)
	}
	return ids, nil
}

// MarkExpired transitions an active resource to expired and returns it with
// the remaining value for the refund. A resource that is no longer active
// returns ErrResourceNotFound.
func (r *ResourceRepository) MarkExpired(ctx context.Context, id string) (*model.Resource, error) {
	query := `
		UPDATE resources
		SET status = 'expired'
		WHERE id = $1 AND status = 'active'
		RETURNING ` + resourceColumns

	res, err := scanResource(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, ErrResourceNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to mark resource expired: %w", err)
	}
	return res, nil
}

// FirstPlayResource resolves the resource id registered for a media item.
func (r *ResourceRepository) FirstPlayResource(ctx context.Context, itemID string) (string, bool, error) {
	const query = `SELECT resource_id FROM firstplay_items WHERE item_id = $1`

	var resourceID string
	err := r.db.QueryRow(ctx, query, itemID).Scan(&resourceID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to resolve first-play resource: %w", err)
	}
	return resourceID, true, nil
}

// RegisterFirstPlay binds a media item to its race resource. Returns false
// when another process registered the item first.
func (r *ResourceRepository) RegisterFirstPlay(ctx context.Context, itemID, resourceID string) (bool, error) {
	const query = `
		INSERT INTO firstplay_items (item_id, resource_id, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (item_id) DO NOTHING`

	tag, err := r.db.Exec(ctx, query, itemID, resourceID)
	if err != nil {
		return false, fmt.Errorf("failed to register first-play item: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
