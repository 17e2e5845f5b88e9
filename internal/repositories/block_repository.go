package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"dm-service/internal/apperr"
)

// BlockRepository stores directed block relations.
type BlockRepository interface {
	Block(ctx context.Context, blockerID, blockedID int) (bool, error)
	Unblock(ctx context.Context, blockerID, blockedID int) error
	IsBlockedEitherDirection(ctx context.Context, userA, userB int) (bool, error)
	ListBlockedBy(ctx context.Context, userID int) ([]int, error)
	BlockedPartners(ctx context.Context, userID int) ([]int, error)
}

// BlockRepo is a sqlx implementation of BlockRepository.
type BlockRepo struct {
	db *sqlx.DB
}

// NewBlockRepo constructs a BlockRepo.
func NewBlockRepo(db *sqlx.DB) *BlockRepo {
	return &BlockRepo{db: db}
}

// Block creates the relation if missing and reports whether it was created.
func (r *BlockRepo) Block(ctx context.Context, blockerID, blockedID int) (bool, error) {
	if blockerID == blockedID {
		return false, apperr.Validation("cannot block yourself")
	}
	res, err := r.db.ExecContext(ctx, `INSERT INTO blocked_users (blocker_id, blocked_id) VALUES ($1, $2)
        ON CONFLICT (blocker_id, blocked_id) DO NOTHING`, blockerID, blockedID)
	if err != nil {
		return false, errors.Wrap(err, "insert block")
	}
	count, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "insert block")
	}
	return count > 0, nil
}

// Unblock removes blockerID's outgoing relation; absent relations are ignored.
func (r *BlockRepo) Unblock(ctx context.Context, blockerID, blockedID int) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM blocked_users WHERE blocker_id=$1 AND blocked_id=$2`, blockerID, blockedID)
	return errors.Wrap(err, "delete block")
}

// IsBlockedEitherDirection reports whether either user blocks the other.
func (r *BlockRepo) IsBlockedEitherDirection(ctx context.Context, userA, userB int) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM blocked_users
        WHERE (blocker_id=$1 AND blocked_id=$2) OR (blocker_id=$2 AND blocked_id=$1))`, userA, userB)
	return exists, errors.Wrap(err, "check block")
}

// ListBlockedBy returns the users blocked by userID, newest first.
func (r *BlockRepo) ListBlockedBy(ctx context.Context, userID int) ([]int, error) {
	var ids []int
	err := r.db.SelectContext(ctx, &ids, `SELECT blocked_id FROM blocked_users WHERE blocker_id=$1 ORDER BY created_at DESC`, userID)
	return ids, errors.Wrap(err, "list blocked")
}

// BlockedPartners returns every user on either side of a relation with userID.
func (r *BlockRepo) BlockedPartners(ctx context.Context, userID int) ([]int, error) {
	var ids []int
	err := r.db.SelectContext(ctx, &ids, `SELECT CASE WHEN blocker_id=$1 THEN blocked_id ELSE blocker_id END
        FROM blocked_users WHERE blocker_id=$1 OR blocked_id=$1`, userID)
	return ids, errors.Wrap(err, "list block partners")
}
