package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/digkill/campusgigs/internal/database"
	"github.com/digkill/campusgigs/internal/models"
)

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	const query = `SELECT id, name, email, role, created_at FROM users WHERE id = ?`
	row := database.Conn(ctx, r.db).QueryRowContext(ctx, query, id)
	var u models.User
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

// LockForUpdate takes a row lock on the user for the rest of the surrounding
// transaction. It reports false when the user does not exist.
func (r *UserRepository) LockForUpdate(ctx context.Context, id int64) (bool, error) {
	row := database.Conn(ctx, r.db).QueryRowContext(ctx, `SELECT id FROM users WHERE id = ? FOR UPDATE`, id)
	var locked int64
	if err := row.Scan(&locked); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("lock user: %w", err)
	}
	return true, nil
}
