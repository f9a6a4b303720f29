package scene

import (
	"context"
	"testing"

	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"imshaby_bot/internal/session"
	"imshaby_bot/internal/telegram/action"
)

type fakeSender struct {
	sent     []string
	edited   []string
	deleted  []int
	answered []string
	nextID   int
}

func (f *fakeSender) SendMessage(ctx context.Context, chatID int64, text string, markup models.ReplyMarkup) (int, error) {
	f.sent = append(f.sent, text)
	f.nextID++
	return f.nextID, nil
}

func (f *fakeSender) EditMessage(ctx context.Context, chatID int64, messageID int, text string, markup models.ReplyMarkup) error {
	f.edited = append(f.edited, text)
	return nil
}

func (f *fakeSender) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	f.deleted = append(f.deleted, messageID)
	return nil
}

func (f *fakeSender) AnswerCallback(ctx context.Context, callbackID string) error {
	f.answered = append(f.answered, callbackID)
	return nil
}

func newTestManager(t *testing.T, defs ...*Definition) *Manager {
	t.Helper()

	logger, _ := logtest.NewNullLogger()
	m := NewManager(logrus.NewEntry(logger))
	if err := m.Register(defs...); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	return m
}

func newTestContext() (*Context, *fakeSender) {
	sender := &fakeSender{}
	return &Context{
		Sender:  sender,
		Session: &session.Session{},
		ChatID:  100,
		UserID:  200,
	}, sender
}

func TestEnterRunsHookAndSetsScene(t *testing.T) {
	var entered bool
	m := newTestManager(t, &Definition{
		Name: "greeting",
		Enter: func(ctx context.Context, tc *Context) error {
			entered = true
			return tc.Reply(ctx, "hello", nil)
		},
	})

	tc, sender := newTestContext()
	if err := m.Enter(context.Background(), tc, "greeting"); err != nil {
		t.Fatalf("Enter returned error: %v", err)
	}

	if !entered {
		t.Fatalf("expected enter hook to run")
	}
	if tc.Session.Scene != "greeting" {
		t.Fatalf("expected active scene set, got %q", tc.Session.Scene)
	}
	if len(sender.sent) != 1 || sender.sent[0] != "hello" {
		t.Fatalf("expected greeting sent, got %v", sender.sent)
	}
}

func TestEnterUnknownSceneIsNoOp(t *testing.T) {
	m := newTestManager(t, &Definition{Name: "greeting"})

	tc, sender := newTestContext()
	tc.Session.Scene = "greeting"

	if err := m.Enter(context.Background(), tc, "missing"); err != nil {
		t.Fatalf("expected unknown scene to be swallowed, got %v", err)
	}
	if tc.Session.Scene != "greeting" {
		t.Fatalf("expected active scene untouched, got %q", tc.Session.Scene)
	}
	if len(sender.sent) != 0 {
		t.Fatalf("expected no messages, got %v", sender.sent)
	}
}

func TestEnterLeavesPreviousScene(t *testing.T) {
	var left bool
	m := newTestManager(t,
		&Definition{
			Name: "first",
			Leave: func(ctx context.Context, tc *Context) error {
				left = true
				return nil
			},
		},
		&Definition{Name: "second"},
	)

	tc, sender := newTestContext()
	tc.Session.Scene = "first"
	tc.Session.PushCleanup(41)
	tc.Session.PushCleanup(42)

	if err := m.Enter(context.Background(), tc, "second"); err != nil {
		t.Fatalf("Enter returned error: %v", err)
	}

	if !left {
		t.Fatalf("expected previous leave hook to run")
	}
	if tc.Session.Scene != "second" {
		t.Fatalf("expected second scene active, got %q", tc.Session.Scene)
	}
	if len(sender.deleted) != 2 || sender.deleted[0] != 41 {
		t.Fatalf("expected tracked messages deleted, got %v", sender.deleted)
	}
}

func TestLeaveClearsSceneState(t *testing.T) {
	m := newTestManager(t, &Definition{Name: "greeting"})

	tc, _ := newTestContext()
	tc.Session.Scene = "greeting"
	tc.Session.AwaitEmail()

	if err := m.Leave(context.Background(), tc); err != nil {
		t.Fatalf("Leave returned error: %v", err)
	}

	if tc.Session.Scene != "" {
		t.Fatalf("expected no active scene, got %q", tc.Session.Scene)
	}
	if tc.Session.AuthInProgress() {
		t.Fatalf("expected auth state cleared on leave")
	}
}

func TestDispatchPrefersActionsOverText(t *testing.T) {
	var actionRan, textRan bool
	m := newTestManager(t, &Definition{
		Name: "greeting",
		Actions: map[string]HandlerFunc{
			action.Back: func(ctx context.Context, tc *Context) error {
				actionRan = true
				return nil
			},
		},
		OnText: func(ctx context.Context, tc *Context) error {
			textRan = true
			return nil
		},
	})

	tc, _ := newTestContext()
	tc.Session.Scene = "greeting"
	tc.Text = "also has text"
	tc.Action = action.Action{Name: action.Back}

	handled, err := m.Dispatch(context.Background(), tc)
	if err != nil {
		t.Fatalf("Dispatch returned error: %v", err)
	}
	if !handled || !actionRan || textRan {
		t.Fatalf("expected action handler only, got handled=%v action=%v text=%v", handled, actionRan, textRan)
	}
}

func TestDispatchTextHandler(t *testing.T) {
	var got string
	m := newTestManager(t, &Definition{
		Name: "greeting",
		OnText: func(ctx context.Context, tc *Context) error {
			got = tc.Text
			return nil
		},
	})

	tc, _ := newTestContext()
	tc.Session.Scene = "greeting"
	tc.Text = "hello there"

	handled, err := m.Dispatch(context.Background(), tc)
	if err != nil {
		t.Fatalf("Dispatch returned error: %v", err)
	}
	if !handled || got != "hello there" {
		t.Fatalf("expected text handler to run, handled=%v text=%q", handled, got)
	}
}

func TestDispatchWithoutActiveScene(t *testing.T) {
	m := newTestManager(t, &Definition{Name: "greeting"})

	tc, _ := newTestContext()
	tc.Text = "anything"

	handled, err := m.Dispatch(context.Background(), tc)
	if err != nil {
		t.Fatalf("Dispatch returned error: %v", err)
	}
	if handled {
		t.Fatalf("expected update unhandled without active scene")
	}
}

func TestDispatchUnknownAction(t *testing.T) {
	m := newTestManager(t, &Definition{
		Name:    "greeting",
		Actions: map[string]HandlerFunc{},
	})

	tc, _ := newTestContext()
	tc.Session.Scene = "greeting"
	tc.Action = action.Action{Name: "stale_button"}

	handled, err := m.Dispatch(context.Background(), tc)
	if err != nil {
		t.Fatalf("Dispatch returned error: %v", err)
	}
	if handled {
		t.Fatalf("expected stale action to be unhandled")
	}
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	m := NewManager(logrus.NewEntry(logger))

	if err := m.Register(&Definition{Name: "greeting"}); err != nil {
		t.Fatalf("first Register returned error: %v", err)
	}
	if err := m.Register(&Definition{Name: "greeting"}); err == nil {
		t.Fatalf("expected duplicate registration to fail")
	}
	if err := m.Register(&Definition{}); err == nil {
		t.Fatalf("expected unnamed scene to fail")
	}
}

func TestReplyTrackedRecordsCleanup(t *testing.T) {
	tc, sender := newTestContext()

	if err := tc.ReplyTracked(context.Background(), "temporary", nil); err != nil {
		t.Fatalf("ReplyTracked returned error: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected message sent, got %v", sender.sent)
	}
	if len(tc.Session.CleanUpMessages) != 1 {
		t.Fatalf("expected message tracked for cleanup, got %v", tc.Session.CleanUpMessages)
	}
}
