package repositories

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"dm-service/internal/apperr"
	"dm-service/internal/models"
)

var ErrUserNotFound = apperr.NotFound("user not found")

// UserDirectory resolves profiles and records the online flag.
type UserDirectory interface {
	Resolve(ctx context.Context, userID int) (models.User, error)
	ResolveMany(ctx context.Context, ids []int) (map[int]models.User, error)
	SetOnline(ctx context.Context, userID int, online bool) error
}

// UserRepo reads the users table shared with the account service.
type UserRepo struct {
	db *sqlx.DB
}

// NewUserRepo constructs a UserRepo.
func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

const selectUser = `SELECT id, name, phone, profile_image, is_online, last_seen FROM users`

func (r *UserRepo) Resolve(ctx context.Context, userID int) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, selectUser+` WHERE id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, errors.Wrap(err, "resolve user")
}

// ResolveMany fetches several users in one query; unknown ids are absent from the result.
func (r *UserRepo) ResolveMany(ctx context.Context, ids []int) (map[int]models.User, error) {
	result := make(map[int]models.User, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	id64s := make([]int64, 0, len(ids))
	for _, id := range ids {
		id64s = append(id64s, int64(id))
	}

	var users []models.User
	if err := r.db.SelectContext(ctx, &users, selectUser+` WHERE id = ANY($1)`, pq.Array(id64s)); err != nil {
		return nil, errors.Wrap(err, "resolve users")
	}
	for _, u := range users {
		result[u.ID] = u
	}
	return result, nil
}

// SetOnline updates the online flag and stamps last_seen.
func (r *UserRepo) SetOnline(ctx context.Context, userID int, online bool) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET is_online=$1, last_seen=NOW() WHERE id=$2`, online, userID)
	if err != nil {
		return errors.Wrap(err, "set online")
	}
	count, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "set online")
	}
	if count == 0 {
		return ErrUserNotFound
	}
	return nil
}
