package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/polybets/polybet/internal/domain"
)

type recordingSender struct {
	name  string
	err   error
	sent  []string
	calls int
}

func (r *recordingSender) Send(_ context.Context, title, _ string) error {
	r.calls++
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, title)
	return nil
}

func (r *recordingSender) Name() string { return r.name }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNotifierFiltersEvents(t *testing.T) {
	ctx := context.Background()
	s := &recordingSender{name: "rec"}
	n := NewNotifier([]Sender{s}, []string{EventAlertTriggered, " "}, testLogger())

	if err := n.Notify(ctx, EventScrapeFailed, "ignored", ""); err != nil {
		t.Fatal(err)
	}
	if err := n.Notify(ctx, EventAlertTriggered, "sent", ""); err != nil {
		t.Fatal(err)
	}
	if err := n.NotifyAll(ctx, "forced", ""); err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(s.sent, ","); got != "sent,forced" {
		t.Errorf("sent = %q", got)
	}

	open := NewNotifier([]Sender{s}, nil, testLogger())
	_ = open.Notify(ctx, "anything", "any", "")
	if len(s.sent) != 3 {
		t.Errorf("empty event list should allow everything, sent = %v", s.sent)
	}
}

func TestNotifierCollectsFailures(t *testing.T) {
	bad := &recordingSender{name: "bad", err: errors.New("down")}
	good := &recordingSender{name: "good"}
	n := NewNotifier([]Sender{bad, good}, nil, testLogger())

	err := n.NotifyAll(context.Background(), "t", "m")
	if err == nil || !strings.Contains(err.Error(), "bad: down") {
		t.Fatalf("error = %v", err)
	}
	if len(good.sent) != 1 {
		t.Error("healthy sender skipped after a failure")
	}
	if NewNotifier(nil, nil, testLogger()).Enabled() {
		t.Error("notifier without senders reports enabled")
	}
}

func TestFormatAlert(t *testing.T) {
	evt := domain.AlertEvent{
		MarketID:   "m1",
		Title:      "Will Arsenal win?",
		Category:   "Sports",
		Direction:  domain.AlertDirectionLoss,
		EntryPrice: 0.8,
		Price:      0.6,
		PnLPct:     -25,
		FiredAt:    time.Date(2026, 1, 10, 12, 30, 0, 0, time.UTC),
	}
	title, msg := FormatAlert(evt)
	if title != "Loss alert: Will Arsenal win?" {
		t.Errorf("title = %q", title)
	}
	want := "Category: Sports\nPrice: 0.80 -> 0.60 (-25.0%)\nFired: 2026-01-10 12:30 UTC"
	if msg != want {
		t.Errorf("message = %q, want %q", msg, want)
	}

	evt.Title, evt.Direction = "", domain.AlertDirectionProfit
	if title, _ := FormatAlert(evt); title != "Profit alert: m1" {
		t.Errorf("untitled title = %q", title)
	}
}

func TestNotifyAlertUsesAlertEvent(t *testing.T) {
	s := &recordingSender{name: "rec"}
	n := NewNotifier([]Sender{s}, []string{EventAlertTriggered}, testLogger())
	if err := n.NotifyAlert(context.Background(), domain.AlertEvent{Title: "X", Direction: domain.AlertDirectionProfit}); err != nil {
		t.Fatal(err)
	}
	if len(s.sent) != 1 || s.sent[0] != "Profit alert: X" {
		t.Errorf("sent = %v", s.sent)
	}
}

func TestDiscordSender(t *testing.T) {
	var got discordPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("content type = %q", r.Header.Get("Content-Type"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	d := NewDiscordSender(srv.URL)
	d.now = func() time.Time { return time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC) }
	if err := d.Send(context.Background(), "Profit alert: X", "body"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if len(got.Embeds) != 1 {
		t.Fatalf("embeds = %+v", got.Embeds)
	}
	e := got.Embeds[0]
	if e.Title != "Profit alert: X" || e.Description != "body" || e.Color != discordColorProfit || e.Timestamp != "2026-01-10T00:00:00Z" {
		t.Errorf("embed = %+v", e)
	}
}

func TestDiscordSenderStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	err := NewDiscordSender(srv.URL).Send(context.Background(), "t", "m")
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Errorf("error = %v, want status 429", err)
	}
}

type fakeBot struct {
	failures int
	calls    int
	last     tgbotapi.MessageConfig
}

func (f *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.calls++
	f.last = c.(tgbotapi.MessageConfig)
	if f.calls <= f.failures {
		return tgbotapi.Message{}, errors.New("flood wait")
	}
	return tgbotapi.Message{MessageID: f.calls}, nil
}

func TestTelegramSender(t *testing.T) {
	bot := &fakeBot{failures: 1}
	s, err := newTelegramSender(bot, "-100123")
	if err != nil {
		t.Fatal(err)
	}
	s.retryDelay = 0

	if err := s.Send(context.Background(), "Loss alert: 1.5 goals", "Price: 0.80 -> 0.60 (-25.0%)"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if bot.calls != 2 {
		t.Errorf("calls = %d, want 2", bot.calls)
	}
	if bot.last.ChatID != -100123 || bot.last.ParseMode != tgbotapi.ModeMarkdownV2 {
		t.Errorf("message = %+v", bot.last)
	}
	want := "*Loss alert: 1\\.5 goals*\nPrice: 0\\.80 \\-\\> 0\\.60 \\(\\-25\\.0%\\)"
	if bot.last.Text != want {
		t.Errorf("text = %q, want %q", bot.last.Text, want)
	}

	always := &fakeBot{failures: 10}
	s, _ = newTelegramSender(always, "1")
	s.retryDelay = 0
	if err := s.Send(context.Background(), "t", "m"); err == nil || always.calls != 3 {
		t.Errorf("Send() = %v after %d calls, want failure after 3", err, always.calls)
	}

	if _, err := newTelegramSender(bot, "not-a-number"); err == nil {
		t.Error("invalid chat id accepted")
	}
}
