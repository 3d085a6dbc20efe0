package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/digkill/campusgigs/internal/database"
	"github.com/digkill/campusgigs/internal/models"
)

type PlanRepository struct {
	db *sql.DB
}

func NewPlanRepository(db *sql.DB) *PlanRepository {
	return &PlanRepository{db: db}
}

const planColumns = "id, `key`, label, price, max_posts, created_at, updated_at"

func scanPlan(row interface{ Scan(...any) error }) (models.Plan, error) {
	var plan models.Plan
	var maxPosts sql.NullInt64
	if err := row.Scan(&plan.ID, &plan.Key, &plan.Label, &plan.Price, &maxPosts, &plan.CreatedAt, &plan.UpdatedAt); err != nil {
		return plan, err
	}
	if maxPosts.Valid {
		v := int(maxPosts.Int64)
		plan.MaxPosts = &v
	}
	return plan, nil
}

func (r *PlanRepository) List(ctx context.Context) ([]models.Plan, error) {
	query := "SELECT " + planColumns + " FROM plans ORDER BY price ASC, id ASC"
	rows, err := database.Conn(ctx, r.db).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	defer rows.Close()

	var plans []models.Plan
	for rows.Next() {
		plan, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan plan: %w", err)
		}
		plans = append(plans, plan)
	}
	return plans, rows.Err()
}

func (r *PlanRepository) GetByID(ctx context.Context, id int64) (*models.Plan, error) {
	query := "SELECT " + planColumns + " FROM plans WHERE id = ?"
	plan, err := scanPlan(database.Conn(ctx, r.db).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get plan: %w", err)
	}
	return &plan, nil
}

func (r *PlanRepository) GetByKey(ctx context.Context, key string) (*models.Plan, error) {
	query := "SELECT " + planColumns + " FROM plans WHERE `key` = ?"
	plan, err := scanPlan(database.Conn(ctx, r.db).QueryRowContext(ctx, query, key))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get plan by key: %w", err)
	}
	return &plan, nil
}

func (r *PlanRepository) Create(ctx context.Context, plan *models.Plan) (*models.Plan, error) {
	const query = "INSERT INTO plans (`key`, label, price, max_posts) VALUES (?, ?, ?, ?)"
	res, err := database.Conn(ctx, r.db).ExecContext(ctx, query, plan.Key, plan.Label, plan.Price, nullableInt(plan.MaxPosts))
	if err != nil {
		return nil, fmt.Errorf("create plan: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("plan last insert id: %w", err)
	}
	return r.GetByID(ctx, id)
}

func (r *PlanRepository) Update(ctx context.Context, plan *models.Plan) (*models.Plan, error) {
	const query = "UPDATE plans SET `key` = ?, label = ?, price = ?, max_posts = ?, updated_at = NOW() WHERE id = ?"
	if _, err := database.Conn(ctx, r.db).ExecContext(ctx, query, plan.Key, plan.Label, plan.Price, nullableInt(plan.MaxPosts), plan.ID); err != nil {
		return nil, fmt.Errorf("update plan: %w", err)
	}
	return r.GetByID(ctx, plan.ID)
}

// Delete reports whether a row was removed.
func (r *PlanRepository) Delete(ctx context.Context, id int64) (bool, error) {
	const query = `DELETE FROM plans WHERE id = ?`
	res, err := database.Conn(ctx, r.db).ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("delete plan: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete plan rows affected: %w", err)
	}
	return n > 0, nil
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}
