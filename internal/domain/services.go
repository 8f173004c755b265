package domain

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// maxNumberAttempts bounds the retries when a random number collides.
const maxNumberAttempts = 10

// uniqueNumber draws numbers from next until exists reports a free one.
func uniqueNumber(ctx context.Context, next func() (string, error), exists func(context.Context, string) (bool, error)) (string, error) {
	for i := 0; i < maxNumberAttempts; i++ {
		candidate, err := next()
		if err != nil {
			return "", fmt.Errorf("failed to generate number: %w", err)
		}
		taken, err := exists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("failed to check number: %w", err)
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", ErrNumberSpaceExhausted
}

// eligibleClient resolves a user that may receive a product.
func eligibleClient(ctx context.Context, users UserDirectory, id uuid.UUID) (*User, error) {
	user, err := users.GetUser(ctx, id)
	if err != nil {
		if KindOf(err) == KindNotFound {
			return nil, fmt.Errorf("%w: user %s not found", ErrClientIneligible, id)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if !user.IsEligibleClient() {
		return nil, fmt.Errorf("%w: user %s", ErrClientIneligible, id)
	}
	return user, nil
}

// userIndex caches user lookups while enriching list results.
type userIndex struct {
	users UserDirectory
	log   logrus.FieldLogger
	byID  map[uuid.UUID]*User
}

func newUserIndex(users UserDirectory, log logrus.FieldLogger, known []User) *userIndex {
	idx := &userIndex{users: users, log: log, byID: make(map[uuid.UUID]*User, len(known))}
	for i := range known {
		idx.byID[known[i].ID] = &known[i]
	}
	return idx
}

// get returns the user or an empty one when the lookup fails; list views
// should not fail because a user record is missing.
func (x *userIndex) get(ctx context.Context, id uuid.UUID) *User {
	if u, ok := x.byID[id]; ok {
		return u
	}
	u, err := x.users.GetUser(ctx, id)
	if err != nil {
		x.log.WithError(err).WithField("user_id", id).Warn("user lookup failed")
		u = &User{ID: id}
	}
	x.byID[id] = u
	return u
}

func userIDs(users []User) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	return ids
}

func orDiscard(log logrus.FieldLogger) logrus.FieldLogger {
	if log != nil {
		return log
	}
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
