package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type countCollection interface {
	CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error)
}

// UserStats is the snapshot the admin console's stats command renders.
type UserStats struct {
	Total        int64
	CreatedToday int64
	ActiveToday  int64
}

// StatsProvider exposes user-collection counts for the admin console without
// leaking MongoDB internals to callers.
type StatsProvider struct {
	users countCollection
	now   func() time.Time
}

// NewStatsProvider constructs a StatsProvider backed by the users collection.
func NewStatsProvider(users countCollection) *StatsProvider {
	return &StatsProvider{
		users: users,
		now:   time.Now,
	}
}

// UserStats counts all users plus those created or active since local
// midnight.
func (p *StatsProvider) UserStats(ctx context.Context) (UserStats, error) {
	if ctx == nil {
		return UserStats{}, errors.New("context is required")
	}
	if p == nil || p.users == nil {
		return UserStats{}, errors.New("stats provider is not initialized")
	}

	total, err := p.users.CountDocuments(ctx, bson.M{})
	if err != nil {
		return UserStats{}, fmt.Errorf("count users: %w", err)
	}

	now := p.now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).UnixMilli()

	created, err := p.users.CountDocuments(ctx, bson.M{"created": bson.M{"$gte": midnight}})
	if err != nil {
		return UserStats{}, fmt.Errorf("count created users: %w", err)
	}

	active, err := p.users.CountDocuments(ctx, bson.M{"last_activity": bson.M{"$gte": midnight}})
	if err != nil {
		return UserStats{}, fmt.Errorf("count active users: %w", err)
	}

	return UserStats{
		Total:        total,
		CreatedToday: created,
		ActiveToday:  active,
	}, nil
}
