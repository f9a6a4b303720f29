package telegram

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"imshaby_bot/internal/config"
)

type fakeRunner struct {
	started        bool
	webhookStarted bool
	setWebhook     *bot.SetWebhookParams
	setWebhookErr  error
	webhookDeleted bool

	sendErr   error
	nextMsgID int
	sent      []sentMessage
	edited    []sentMessage
	deleted   []int
	answered  []string
}

type sentMessage struct {
	chatID    int64
	messageID int
	text      string
	markup    models.ReplyMarkup
}

func (f *fakeRunner) Start(context.Context)        { f.started = true }
func (f *fakeRunner) StartWebhook(context.Context) { f.webhookStarted = true }

func (f *fakeRunner) WebhookHandler() http.HandlerFunc {
	return func(http.ResponseWriter, *http.Request) {}
}

func (f *fakeRunner) SetWebhook(_ context.Context, params *bot.SetWebhookParams) (bool, error) {
	f.setWebhook = params
	return f.setWebhookErr == nil, f.setWebhookErr
}

func (f *fakeRunner) DeleteWebhook(context.Context, *bot.DeleteWebhookParams) (bool, error) {
	f.webhookDeleted = true
	return true, nil
}

func (f *fakeRunner) SendMessage(_ context.Context, params *bot.SendMessageParams) (*models.Message, error) {
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.nextMsgID++
	f.sent = append(f.sent, sentMessage{
		chatID: params.ChatID.(int64),
		text:   params.Text,
		markup: params.ReplyMarkup,
	})
	return &models.Message{ID: f.nextMsgID}, nil
}

func (f *fakeRunner) EditMessageText(_ context.Context, params *bot.EditMessageTextParams) (*models.Message, error) {
	f.edited = append(f.edited, sentMessage{
		chatID:    params.ChatID.(int64),
		messageID: params.MessageID,
		text:      params.Text,
		markup:    params.ReplyMarkup,
	})
	return &models.Message{ID: params.MessageID}, nil
}

func (f *fakeRunner) DeleteMessage(_ context.Context, params *bot.DeleteMessageParams) (bool, error) {
	f.deleted = append(f.deleted, params.MessageID)
	return true, nil
}

func (f *fakeRunner) AnswerCallbackQuery(_ context.Context, params *bot.AnswerCallbackQueryParams) (bool, error) {
	f.answered = append(f.answered, params.CallbackQueryID)
	return true, nil
}

func stubCreateBot(t *testing.T, runner *fakeRunner, err error) {
	t.Helper()
	original := createBot
	createBot = func(string, ...bot.Option) (botRunner, error) {
		if err != nil {
			return nil, err
		}
		return runner, nil
	}
	t.Cleanup(func() { createBot = original })
}

func clientConfig() config.Config {
	return config.Config{
		TelegramToken: "123:ABC",
		WebhookURL:    "https://bot.example.org",
		WebhookPath:   "/webhook",
	}
}

func noopHandler(context.Context, *bot.Bot, *models.Update) {}

func TestNewClientRequiresToken(t *testing.T) {
	logger, _ := logtest.NewNullLogger()

	cfg := clientConfig()
	cfg.TelegramToken = "  "

	if _, err := NewClient(cfg, noopHandler, logger.WithField("test", t.Name())); err == nil {
		t.Fatal("expected error for blank token")
	}
}

func TestNewClientRequiresHandler(t *testing.T) {
	logger, _ := logtest.NewNullLogger()

	if _, err := NewClient(clientConfig(), nil, logger.WithField("test", t.Name())); err == nil {
		t.Fatal("expected error for nil handler")
	}
}

func TestNewClientWrapsCreateError(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	stubCreateBot(t, nil, errors.New("boom"))

	if _, err := NewClient(clientConfig(), noopHandler, logger.WithField("test", t.Name())); err == nil {
		t.Fatal("expected creation error")
	}
}

func TestStartDeletesWebhookAndPolls(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	runner := &fakeRunner{}
	stubCreateBot(t, runner, nil)

	client, err := NewClient(clientConfig(), noopHandler, logger.WithField("test", t.Name()))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	client.Start(context.Background())

	if !runner.webhookDeleted {
		t.Error("expected webhook deletion before polling")
	}
	if !runner.started {
		t.Error("expected polling to start")
	}
}

func TestStartWebhookRegistersURL(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	runner := &fakeRunner{}
	stubCreateBot(t, runner, nil)

	client, err := NewClient(clientConfig(), noopHandler, logger.WithField("test", t.Name()))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	if err := client.StartWebhook(context.Background()); err != nil {
		t.Fatalf("StartWebhook: %v", err)
	}

	if runner.setWebhook == nil {
		t.Fatal("expected SetWebhook call")
	}
	if got, want := runner.setWebhook.URL, "https://bot.example.org/webhook"; got != want {
		t.Errorf("webhook url = %q, want %q", got, want)
	}
	if !runner.webhookStarted {
		t.Error("expected webhook loop to start")
	}
}

func TestStartWebhookPropagatesRegistrationError(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	runner := &fakeRunner{setWebhookErr: errors.New("telegram says no")}
	stubCreateBot(t, runner, nil)

	client, err := NewClient(clientConfig(), noopHandler, logger.WithField("test", t.Name()))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	err = client.StartWebhook(context.Background())
	if err == nil || !strings.Contains(err.Error(), "register webhook") {
		t.Fatalf("expected registration error, got %v", err)
	}
	if runner.webhookStarted {
		t.Error("webhook loop must not start after a failed registration")
	}
}

func TestSenderRoundTrip(t *testing.T) {
	runner := &fakeRunner{}
	snd := newSender(runner)

	id, err := snd.SendMessage(context.Background(), 77, "hello", nil)
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if id != 1 {
		t.Errorf("message id = %d, want 1", id)
	}

	if err := snd.EditMessage(context.Background(), 77, id, "edited", nil); err != nil {
		t.Fatalf("EditMessage: %v", err)
	}
	if err := snd.DeleteMessage(context.Background(), 77, id); err != nil {
		t.Fatalf("DeleteMessage: %v", err)
	}
	if err := snd.AnswerCallback(context.Background(), "cb-1"); err != nil {
		t.Fatalf("AnswerCallback: %v", err)
	}

	if len(runner.sent) != 1 || runner.sent[0].text != "hello" {
		t.Errorf("unexpected sent messages: %+v", runner.sent)
	}
	if len(runner.edited) != 1 || runner.edited[0].messageID != 1 {
		t.Errorf("unexpected edits: %+v", runner.edited)
	}
	if len(runner.deleted) != 1 || runner.deleted[0] != 1 {
		t.Errorf("unexpected deletions: %v", runner.deleted)
	}
	if len(runner.answered) != 1 || runner.answered[0] != "cb-1" {
		t.Errorf("unexpected callback answers: %v", runner.answered)
	}
}

func TestSenderSendFailure(t *testing.T) {
	runner := &fakeRunner{sendErr: errors.New("blocked")}
	snd := newSender(runner)

	if _, err := snd.SendMessage(context.Background(), 77, "hello", nil); err == nil {
		t.Fatal("expected send error")
	}
}
