package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spbu-ds-practicum-2025/example-project/services/lending-service/internal/domain"
)

// UserRepository implements domain.UserDirectory using PostgreSQL.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// GetUser retrieves a user by id.
func (r *UserRepository) GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	query := `
		SELECT id, full_name, email, national_id, role, active
		FROM users
		WHERE id = $1
	`

	var u domain.User
	var role string
	err := conn(ctx, r.pool).QueryRow(ctx, query, id).Scan(&u.ID, &u.FullName, &u.Email, &u.NationalID, &role, &u.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	u.Role = domain.Role(role)
	return &u, nil
}

// FindClients returns clients whose national id contains fragment, ordered by name.
func (r *UserRepository) FindClients(ctx context.Context, nationalIDFragment string) ([]domain.User, error) {
	query := `
		SELECT id, full_name, email, national_id, role, active
		FROM users
		WHERE role = $1 AND strpos(national_id, $2) > 0
		ORDER BY full_name
	`

	rows, err := conn(ctx, r.pool).Query(ctx, query, string(domain.RoleClient), nationalIDFragment)
	if err != nil {
		return nil, fmt.Errorf("failed to find clients: %w", err)
	}
	defer rows.Close()

	out := []domain.User{}
	for rows.Next() {
		var u domain.User
		var role string
		if err := rows.Scan(&u.ID, &u.FullName, &u.Email, &u.NationalID, &role, &u.Active); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		u.Role = domain.Role(role)
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}
	return out, nil
}

// Create inserts a user. Users are owned by the identity service; this
// seeds the local directory.
func (r *UserRepository) Create(ctx context.Context, u domain.User) error {
	query := `
		INSERT INTO users (id, full_name, email, national_id, role, active)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	if _, err := conn(ctx, r.pool).Exec(ctx, query, u.ID, u.FullName, u.Email, u.NationalID, string(u.Role), u.Active); err != nil {
		return translate(err, "create user")
	}
	return nil
}
