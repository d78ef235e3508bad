package repository

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/autolot/vehicle-exchange-backend/internal/domain/account"
	"github.com/autolot/vehicle-exchange-backend/internal/domain/errors"
)

// accountRepository implements the identity directory over PostgreSQL. Only
// active accounts resolve; suspended or closed accounts behave as unknown.
type accountRepository struct {
	db *sql.DB
}

// NewAccountRepository creates an account repository.
func NewAccountRepository(db *sql.DB) *accountRepository {
	return &accountRepository{db: db}
}

func (r *accountRepository) Create(ctx context.Context, a *account.Account) error {
	query := `
		INSERT INTO accounts (id, email, role, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query,
		a.ID, a.Email, a.Role.String(), a.Status.String(), a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return errors.NewConflictError("account already exists")
		}
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

func (r *accountRepository) GetByID(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	query := `
		SELECT id, email, role, status, created_at, updated_at
		FROM accounts
		WHERE id = $1
	`

	var a account.Account
	var roleStr, statusStr string
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&a.ID, &a.Email, &roleStr, &statusStr, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewNotFoundError("account")
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	a.Role, _ = account.ParseRole(roleStr)
	a.Status = account.ParseStatus(statusStr)
	return &a, nil
}

// Exists reports whether the user resolves to an active account.
func (r *accountRepository) Exists(ctx context.Context, userID uuid.UUID) (bool, error) {
	query := `SELECT 1 FROM accounts WHERE id = $1 AND status = 'active'`

	var one int
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&one)
	if stderrors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to resolve account: %w", err)
	}
	return true, nil
}

// RoleOf returns the role of an active account.
func (r *accountRepository) RoleOf(ctx context.Context, userID uuid.UUID) (account.Role, error) {
	query := `SELECT role FROM accounts WHERE id = $1 AND status = 'active'`

	var roleStr string
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&roleStr)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return 0, errors.NewNotFoundError("account")
		}
		return 0, fmt.Errorf("failed to resolve role: %w", err)
	}

	role, ok := account.ParseRole(roleStr)
	if !ok {
		return 0, errors.NewInternalError("account has unknown role " + roleStr)
	}
	return role, nil
}
