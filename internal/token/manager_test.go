package token

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"

	"imshaby_bot/internal/domain"
)

type fakeSource struct {
	token string
	err   error
	calls int
}

func (f *fakeSource) RetrieveAccessToken(ctx context.Context, email string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.token, nil
}

type fakeUserStore struct {
	id         string
	token      string
	expiresAt  int64
	parishKeys []string
	err        error
	calls      int
}

func (f *fakeUserStore) SetTokens(ctx context.Context, id, accessToken string, expiresAt int64, parishKeys []string) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	f.id = id
	f.token = accessToken
	f.expiresAt = expiresAt
	f.parishKeys = parishKeys
	return nil
}

func newTestManager(source *fakeSource, users *fakeUserStore) *Manager {
	logger, _ := test.NewNullLogger()
	return NewManager(source, users, logger.WithField("test", true))
}

func TestValidTokenReturnsFreshCachedToken(t *testing.T) {
	now := time.Date(2026, time.August, 31, 12, 0, 0, 0, time.UTC)
	timeNow = func() time.Time { return now }
	defer func() { timeNow = time.Now }()

	source := &fakeSource{}
	users := &fakeUserStore{}
	mgr := newTestManager(source, users)

	user := &domain.User{
		ID:             "42",
		Email:          "rector@example.test",
		EmailVerified:  true,
		AccessToken:    "cached-token",
		TokenExpiresAt: now.Add(10 * time.Minute).UnixMilli(),
	}

	got, err := mgr.ValidToken(context.Background(), user)
	if err != nil {
		t.Fatalf("ValidToken returned error: %v", err)
	}
	if got != "cached-token" {
		t.Fatalf("expected cached token, got %q", got)
	}
	if source.calls != 0 {
		t.Fatalf("expected no identity provider call, got %d", source.calls)
	}
	if users.calls != 0 {
		t.Fatalf("expected no store write, got %d", users.calls)
	}
}

func TestValidTokenRefreshesInsideBuffer(t *testing.T) {
	now := time.Date(2026, time.August, 31, 12, 0, 0, 0, time.UTC)
	timeNow = func() time.Time { return now }
	defer func() { timeNow = time.Now }()

	fresh := makeToken(t, map[string]interface{}{
		"exp":      now.Add(time.Hour).Unix(),
		"parishes": []interface{}{"minsk-cathedral"},
	})
	source := &fakeSource{token: fresh}
	users := &fakeUserStore{}
	mgr := newTestManager(source, users)

	user := &domain.User{
		ID:             "42",
		Email:          "rector@example.test",
		EmailVerified:  true,
		AccessToken:    "stale-token",
		TokenExpiresAt: now.Add(2 * time.Minute).UnixMilli(),
	}

	got, err := mgr.ValidToken(context.Background(), user)
	if err != nil {
		t.Fatalf("ValidToken returned error: %v", err)
	}
	if got != fresh {
		t.Fatalf("expected refreshed token, got %q", got)
	}
	if source.calls != 1 {
		t.Fatalf("expected one identity provider call, got %d", source.calls)
	}

	wantExpiry := now.Add(time.Hour).Unix() * 1000
	if users.id != "42" || users.token != fresh || users.expiresAt != wantExpiry {
		t.Fatalf("expected refreshed token persisted, got %+v", users)
	}
	if !reflect.DeepEqual(users.parishKeys, []string{"minsk-cathedral"}) {
		t.Fatalf("expected parish keys persisted, got %v", users.parishKeys)
	}

	if user.AccessToken != fresh || user.TokenExpiresAt != wantExpiry {
		t.Fatalf("expected in-memory user updated, got %+v", user)
	}
	if !reflect.DeepEqual(user.ObservableParishKeys, []string{"minsk-cathedral"}) {
		t.Fatalf("expected in-memory parish keys updated, got %v", user.ObservableParishKeys)
	}
}

func TestValidTokenRefreshesMissingToken(t *testing.T) {
	fresh := makeToken(t, map[string]interface{}{
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	source := &fakeSource{token: fresh}
	users := &fakeUserStore{}
	mgr := newTestManager(source, users)

	user := &domain.User{ID: "42", Email: "rector@example.test", EmailVerified: true}

	got, err := mgr.ValidToken(context.Background(), user)
	if err != nil {
		t.Fatalf("ValidToken returned error: %v", err)
	}
	if got != fresh {
		t.Fatalf("expected refreshed token, got %q", got)
	}
}

func TestValidTokenFailsForUnverifiedUser(t *testing.T) {
	source := &fakeSource{token: "never"}
	mgr := newTestManager(source, &fakeUserStore{})

	cases := []*domain.User{
		{ID: "1"},
		{ID: "2", Email: "someone@example.test", EmailVerified: false},
		{ID: "3", EmailVerified: true},
	}

	for _, user := range cases {
		if _, err := mgr.ValidToken(context.Background(), user); !errors.Is(err, ErrNotVerified) {
			t.Errorf("user %s: expected ErrNotVerified, got %v", user.ID, err)
		}
	}
	if source.calls != 0 {
		t.Fatalf("expected no identity provider call, got %d", source.calls)
	}
}

func TestValidTokenFailsWhenProviderFails(t *testing.T) {
	source := &fakeSource{err: errors.New("identity provider down")}
	users := &fakeUserStore{}
	mgr := newTestManager(source, users)

	user := &domain.User{ID: "42", Email: "rector@example.test", EmailVerified: true}

	if _, err := mgr.ValidToken(context.Background(), user); err == nil {
		t.Fatalf("expected error when provider fails")
	}
	if users.calls != 0 {
		t.Fatalf("expected no store write on provider failure, got %d", users.calls)
	}
	if user.AccessToken != "" {
		t.Fatalf("expected in-memory user untouched, got %q", user.AccessToken)
	}
}

func TestValidTokenFailsWhenPersistFails(t *testing.T) {
	fresh := makeToken(t, map[string]interface{}{
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	source := &fakeSource{token: fresh}
	users := &fakeUserStore{err: errors.New("write concern error")}
	mgr := newTestManager(source, users)

	user := &domain.User{ID: "42", Email: "rector@example.test", EmailVerified: true}

	if _, err := mgr.ValidToken(context.Background(), user); err == nil {
		t.Fatalf("expected error when persistence fails")
	}
	if user.AccessToken != "" {
		t.Fatalf("expected in-memory user untouched on persist failure, got %q", user.AccessToken)
	}
}

func TestValidTokenGuards(t *testing.T) {
	mgr := newTestManager(&fakeSource{}, &fakeUserStore{})

	if _, err := mgr.ValidToken(nil, &domain.User{}); err == nil {
		t.Fatalf("expected error for nil context")
	}
	if _, err := mgr.ValidToken(context.Background(), nil); err == nil {
		t.Fatalf("expected error for nil user")
	}

	var uninitialized *Manager
	if _, err := uninitialized.ValidToken(context.Background(), &domain.User{}); err == nil {
		t.Fatalf("expected error for uninitialized manager")
	}
}
