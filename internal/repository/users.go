package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/finzap/finzap/internal/domain"
)

type Users struct {
	pool *pgxpool.Pool
}

func NewUsers(pool *pgxpool.Pool) *Users {
	return &Users{pool: pool}
}

const userColumns = `id, phone, first_name, last_name, country_code, default_payment_method_id, created_at, updated_at`

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Phone, &u.FirstName, &u.LastName, &u.CountryCode,
		&u.DefaultPaymentMethodID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *Users) GetByPhone(ctx context.Context, phone string) (*domain.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE phone = $1`, phone))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user by phone: %w", err)
	}
	return u, nil
}

func (r *Users) Create(ctx context.Context, phone, firstName, lastName string, countryCode *string) (*domain.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `
		INSERT INTO users (phone, first_name, last_name, country_code)
		VALUES ($1, $2, $3, $4)
		RETURNING `+userColumns,
		phone, firstName, lastName, countryCode))
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

func (r *Users) UpdateName(ctx context.Context, userID int64, firstName, lastName string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE users SET first_name = $2, last_name = $3, updated_at = now()
		WHERE id = $1`, userID, firstName, lastName)
	if err != nil {
		return fmt.Errorf("update user name: %w", err)
	}
	return nil
}

func (r *Users) SetDefaultPaymentMethod(ctx context.Context, userID, paymentMethodID int64) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE users SET default_payment_method_id = $2, updated_at = now()
		WHERE id = $1`, userID, paymentMethodID)
	if err != nil {
		return fmt.Errorf("set default payment method: %w", err)
	}
	return nil
}
