package notifier

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/go-telegram/bot/models"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"imshaby_bot/internal/domain"
	"imshaby_bot/internal/imsha"
)

type sentMessage struct {
	chatID int64
	text   string
}

type fakeSender struct {
	sent    []sentMessage
	failFor map[int64]error
}

func (f *fakeSender) SendMessage(_ context.Context, chatID int64, text string, _ models.ReplyMarkup) (int, error) {
	if err, ok := f.failFor[chatID]; ok {
		return 0, err
	}
	f.sent = append(f.sent, sentMessage{chatID: chatID, text: text})
	return len(f.sent), nil
}

type fakeScanner struct {
	report imsha.ExpiryReport
	err    error
}

func (f *fakeScanner) ExpiredParishes(context.Context) (imsha.ExpiryReport, error) {
	return f.report, f.err
}

type fakeUsers struct {
	byKey map[string][]domain.User
	err   error
}

func (f *fakeUsers) FindByParishKey(_ context.Context, key string) ([]domain.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byKey[key], nil
}

func newTestNotifier(t *testing.T, sender *fakeSender, scanner *fakeScanner, users *fakeUsers) *Notifier {
	t.Helper()
	logger, _ := logtest.NewNullLogger()
	n := New(sender, scanner, users, logger.WithField("test", t.Name()))
	n.sleep = func(time.Duration) {}
	return n
}

func TestCheckParishesNotifiesObservers(t *testing.T) {
	sender := &fakeSender{}
	scanner := &fakeScanner{report: imsha.ExpiryReport{
		ExpiredParishes: []domain.ExpiredParish{
			{Key: "minsk-cathedral", Name: "Архикафедральный костел"},
		},
		AlmostExpiredParishes: []domain.ExpiredParish{
			{Key: "grodno-fara", Name: "Фарны касцёл", ShortName: "Фара"},
		},
	}}
	users := &fakeUsers{byKey: map[string][]domain.User{
		"minsk-cathedral": {
			{ID: "101", Language: "ru"},
			{ID: "102", Language: "en"},
		},
		"grodno-fara": {
			{ID: "103", Language: "ru"},
		},
	}}

	n := newTestNotifier(t, sender, scanner, users)

	if err := n.CheckParishes(context.Background()); err != nil {
		t.Fatalf("CheckParishes: %v", err)
	}

	if len(sender.sent) != 3 {
		t.Fatalf("sent %d messages, want 3", len(sender.sent))
	}
	if sender.sent[0].chatID != 101 || !strings.Contains(sender.sent[0].text, "састарэў") {
		t.Errorf("first reminder = %+v", sender.sent[0])
	}
	if sender.sent[1].chatID != 102 || !strings.Contains(sender.sent[1].text, "out of date") {
		t.Errorf("english reminder = %+v", sender.sent[1])
	}
	if !strings.Contains(sender.sent[2].text, "Фара") {
		t.Errorf("almost-expired reminder should use the short name: %+v", sender.sent[2])
	}
	if !strings.Contains(sender.sent[2].text, "хутка") {
		t.Errorf("almost-expired reminder should be the softer variant: %+v", sender.sent[2])
	}
}

func TestCheckParishesSkipsUnreachableRecipients(t *testing.T) {
	sender := &fakeSender{failFor: map[int64]error{101: errors.New("blocked")}}
	scanner := &fakeScanner{report: imsha.ExpiryReport{
		ExpiredParishes: []domain.ExpiredParish{{Key: "minsk-cathedral", Name: "Cathedral"}},
	}}
	users := &fakeUsers{byKey: map[string][]domain.User{
		"minsk-cathedral": {
			{ID: "101", Language: "ru"},
			{ID: "102", Language: "ru"},
		},
	}}

	n := newTestNotifier(t, sender, scanner, users)

	if err := n.CheckParishes(context.Background()); err != nil {
		t.Fatalf("CheckParishes: %v", err)
	}

	if len(sender.sent) != 1 || sender.sent[0].chatID != 102 {
		t.Errorf("sent = %+v, want only chat 102", sender.sent)
	}
}

func TestCheckParishesPropagatesScanError(t *testing.T) {
	n := newTestNotifier(t, &fakeSender{}, &fakeScanner{err: errors.New("api down")}, &fakeUsers{})

	if err := n.CheckParishes(context.Background()); err == nil {
		t.Fatal("expected scan error")
	}
}

func TestNotifyGroupChat(t *testing.T) {
	sender := &fakeSender{}
	n := newTestNotifier(t, sender, &fakeScanner{}, &fakeUsers{})

	if err := n.NotifyGroupChat(context.Background(), -100500, "Фара"); err != nil {
		t.Fatalf("NotifyGroupChat: %v", err)
	}

	if len(sender.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(sender.sent))
	}
	if sender.sent[0].chatID != -100500 || !strings.Contains(sender.sent[0].text, "<b>Фара</b>") {
		t.Errorf("announcement = %+v", sender.sent[0])
	}
}

func TestNotifyGroupChatRequiresChatID(t *testing.T) {
	n := newTestNotifier(t, &fakeSender{}, &fakeScanner{}, &fakeUsers{})

	if err := n.NotifyGroupChat(context.Background(), 0, "Фара"); err == nil {
		t.Fatal("expected error for missing chat id")
	}
}
