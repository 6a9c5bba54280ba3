package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/feedback-portal/feedback-service/internal/domain"
)

// BranchRepository stores the RO branch directory.
type BranchRepository interface {
	Create(ctx context.Context, branch *domain.Branch) error
	Delete(ctx context.Context, roCode string) error
	List(ctx context.Context) ([]domain.Branch, error)
	Get(ctx context.Context, roCode string) (*domain.Branch, error)
}

type branchRepository struct {
	db DB
}

// NewBranchRepository builds repository.
func NewBranchRepository(db DB) BranchRepository {
	return &branchRepository{db: db}
}

func (r *branchRepository) Create(ctx context.Context, branch *domain.Branch) error {
	const query = `
        INSERT INTO branches (ro_code, name, city)
        VALUES ($1,$2,$3)
        RETURNING created_at`
	err := r.db.QueryRow(ctx, query, branch.ROCode, branch.Name, branch.City).Scan(&branch.CreatedAt)
	return translateWriteError(err)
}

func (r *branchRepository) Delete(ctx context.Context, roCode string) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM branches WHERE ro_code=$1`, roCode)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *branchRepository) Get(ctx context.Context, roCode string) (*domain.Branch, error) {
	var branch domain.Branch
	if err := r.db.QueryRow(ctx, `SELECT ro_code, name, city, created_at FROM branches WHERE ro_code=$1`, roCode).
		Scan(&branch.ROCode, &branch.Name, &branch.City, &branch.CreatedAt); err != nil {
		return nil, err
	}
	return &branch, nil
}

func (r *branchRepository) List(ctx context.Context) ([]domain.Branch, error) {
	rows, err := r.db.Query(ctx, `SELECT ro_code, name, city, created_at FROM branches ORDER BY ro_code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.Branch{}
	for rows.Next() {
		var branch domain.Branch
		if err := rows.Scan(&branch.ROCode, &branch.Name, &branch.City, &branch.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, branch)
	}
	return result, rows.Err()
}
