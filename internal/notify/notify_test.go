package notify

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/mosshollow/questwick/internal/database"
	"github.com/mosshollow/questwick/internal/model"
	"github.com/mosshollow/questwick/internal/push"
	"github.com/mosshollow/questwick/internal/store"
	"github.com/mosshollow/questwick/internal/websocket"
)

type fakeSender struct {
	sent    []push.Payload
	failAll error
}

func (f *fakeSender) Configured() bool { return true }

func (f *fakeSender) Send(sub *model.PushSubscription, payload push.Payload) error {
	if f.failAll != nil {
		return f.failAll
	}
	f.sent = append(f.sent, payload)
	return nil
}

func setupNotifyTest(t *testing.T, sender PushSender) (*Dispatcher, *store.NotificationStore, *websocket.Hub) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := store.NewHouseholdStore(db).Create("Shire"); err != nil {
		t.Fatalf("create household: %v", err)
	}
	if _, err := store.NewUserStore(db).Create(1, "frodo@shire.test", "Frodo", model.RoleChild, model.AgeBandKid); err != nil {
		t.Fatalf("create user: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	notifications := store.NewNotificationStore(db)
	hub := websocket.NewHub(logger)

	d := NewDispatcher(notifications, sender, hub, logger)
	d.SetSynchronous()
	return d, notifications, hub
}

func TestDispatchRecordsAndSends(t *testing.T) {
	sender := &fakeSender{}
	d, notifications, _ := setupNotifyTest(t, sender)

	if _, err := notifications.CreateSubscription(1, 1, "https://push.test/a", "p256dh", "auth", "tablet"); err != nil {
		t.Fatalf("create subscription: %v", err)
	}

	if err := d.Dispatch(1, 1, model.NotifQuestApproved, "Quest approved", "Feed the cat: +5 points"); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	if len(sender.sent) != 1 {
		t.Fatalf("expected 1 push, got %d", len(sender.sent))
	}
	if sender.sent[0].Tag != model.NotifQuestApproved {
		t.Errorf("payload tag = %q, want %q", sender.sent[0].Tag, model.NotifQuestApproved)
	}

	list, err := notifications.ListForUser(1, 10)
	if err != nil {
		t.Fatalf("list notifications: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 outbox record, got %d", len(list))
	}
	if list[0].SentAt == nil {
		t.Error("outbox record not marked sent")
	}
}

func TestDispatchSurvivesPushFailure(t *testing.T) {
	sender := &fakeSender{failAll: errSend}
	d, notifications, _ := setupNotifyTest(t, sender)

	if _, err := notifications.CreateSubscription(1, 1, "https://push.test/a", "p256dh", "auth", "tablet"); err != nil {
		t.Fatalf("create subscription: %v", err)
	}

	if err := d.Dispatch(1, 1, model.NotifBadgeAwarded, "New badge", "Streak Spark earned"); err != nil {
		t.Fatalf("dispatch should absorb push failures, got %v", err)
	}
}

var errSend = &pushError{}

type pushError struct{}

func (*pushError) Error() string { return "push endpoint unreachable" }

func TestDispatchPrunesExpiredSubscription(t *testing.T) {
	sender := &fakeSender{failAll: push.ErrExpired}
	d, notifications, _ := setupNotifyTest(t, sender)

	if _, err := notifications.CreateSubscription(1, 1, "https://push.test/gone", "p256dh", "auth", "tablet"); err != nil {
		t.Fatalf("create subscription: %v", err)
	}

	if err := d.Dispatch(1, 1, model.NotifQuestSubmitted, "Quest submitted", "Feed the cat"); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	subs, err := notifications.ListSubscriptionsForUser(1)
	if err != nil {
		t.Fatalf("list subscriptions: %v", err)
	}
	if len(subs) != 0 {
		t.Errorf("expired subscription not pruned, %d remain", len(subs))
	}
}

type fakeEmailer struct {
	to      []string
	sendErr error
}

func (f *fakeEmailer) Configured() bool { return true }

func (f *fakeEmailer) SendNotification(toEmail, title, body string) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.to = append(f.to, toEmail)
	return nil
}

func TestDispatchMirrorsToEmail(t *testing.T) {
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := store.NewHouseholdStore(db).Create("Shire"); err != nil {
		t.Fatalf("create household: %v", err)
	}
	users := store.NewUserStore(db)
	if _, err := users.Create(1, "frodo@shire.test", "Frodo", model.RoleChild, model.AgeBandKid); err != nil {
		t.Fatalf("create user: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	d := NewDispatcher(store.NewNotificationStore(db), &fakeSender{}, websocket.NewHub(logger), logger)
	d.SetSynchronous()

	emailer := &fakeEmailer{}
	d.SetEmailer(emailer, users)

	if err := d.Dispatch(1, 1, model.NotifQuestApproved, "Quest approved", "+5 points"); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	if len(emailer.to) != 1 || emailer.to[0] != "frodo@shire.test" {
		t.Errorf("email recipients = %v, want [frodo@shire.test]", emailer.to)
	}

	// Email failures are absorbed like push failures.
	emailer.sendErr = errSend
	if err := d.Dispatch(1, 1, model.NotifQuestApproved, "Quest approved", "again"); err != nil {
		t.Fatalf("dispatch should absorb email failures, got %v", err)
	}
}

func TestReplayWindow(t *testing.T) {
	sender := &fakeSender{}
	d, notifications, _ := setupNotifyTest(t, sender)

	if _, err := notifications.CreateSubscription(1, 1, "https://push.test/a", "p256dh", "auth", "tablet"); err != nil {
		t.Fatalf("create subscription: %v", err)
	}
	if err := d.Dispatch(1, 1, model.NotifQuestApproved, "Quest approved", "first"); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if err := d.Dispatch(1, 1, model.NotifQuestApproved, "Quest approved", "second"); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	sender.sent = nil

	count, err := d.Replay(time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if count != 2 {
		t.Errorf("replay count = %d, want 2", count)
	}
	if len(sender.sent) != 2 {
		t.Errorf("expected 2 re-sent pushes, got %d", len(sender.sent))
	}

	// Window excluding everything replays nothing.
	count, err = d.Replay(time.Now().Add(-48*time.Hour), time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("replay empty window: %v", err)
	}
	if count != 0 {
		t.Errorf("empty window replayed %d records", count)
	}
}
