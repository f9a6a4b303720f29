package store

import (
	"context"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type fakeCountCollection struct {
	counts map[string]int64
}

func (f *fakeCountCollection) CountDocuments(_ context.Context, filter interface{}, _ ...*options.CountOptions) (int64, error) {
	doc, _ := filter.(bson.M)
	if len(doc) == 0 {
		return f.counts["total"], nil
	}
	if _, ok := doc["created"]; ok {
		return f.counts["created"], nil
	}
	if _, ok := doc["last_activity"]; ok {
		return f.counts["active"], nil
	}
	return 0, nil
}

func TestUserStatsCountsSinceMidnight(t *testing.T) {
	coll := &fakeCountCollection{counts: map[string]int64{
		"total":   120,
		"created": 3,
		"active":  17,
	}}

	provider := NewStatsProvider(coll)
	provider.now = func() time.Time {
		return time.Date(2025, 8, 31, 15, 4, 5, 0, time.UTC)
	}

	stats, err := provider.UserStats(context.Background())
	if err != nil {
		t.Fatalf("UserStats returned error: %v", err)
	}

	if stats.Total != 120 || stats.CreatedToday != 3 || stats.ActiveToday != 17 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestUserStatsRequiresContext(t *testing.T) {
	provider := NewStatsProvider(&fakeCountCollection{counts: map[string]int64{}})

	if _, err := provider.UserStats(nil); err == nil { //nolint:staticcheck
		t.Fatalf("expected error for nil context")
	}
}
