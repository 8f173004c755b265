package memstore

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/spbu-ds-practicum-2025/example-project/services/lending-service/internal/domain"
)

// UserRepository implements domain.UserDirectory in memory.
type UserRepository struct {
	s *Store
}

// GetUser returns the user with the given id.
func (r *UserRepository) GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	var user *domain.User
	err := r.s.view(ctx, func(t *tables) error {
		u, ok := t.users[id]
		if !ok {
			return domain.ErrUserNotFound
		}
		user = &u
		return nil
	})
	return user, err
}

// FindClients returns clients whose national id contains fragment, ordered by name.
func (r *UserRepository) FindClients(ctx context.Context, nationalIDFragment string) ([]domain.User, error) {
	var out []domain.User
	err := r.s.view(ctx, func(t *tables) error {
		for _, u := range t.users {
			if u.Role == domain.RoleClient && strings.Contains(u.NationalID, nationalIDFragment) {
				out = append(out, u)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	return out, err
}
