package notify

import (
	"errors"
	"log/slog"
	"time"

	"github.com/mosshollow/questwick/internal/model"
	"github.com/mosshollow/questwick/internal/push"
	"github.com/mosshollow/questwick/internal/store"
	"github.com/mosshollow/questwick/internal/websocket"
)

// PushSender is the part of the push service the dispatcher needs.
type PushSender interface {
	Configured() bool
	Send(sub *model.PushSubscription, payload push.Payload) error
}

// Emailer mirrors notifications to email when configured.
type Emailer interface {
	Configured() bool
	SendNotification(toEmail, title, body string) error
}

// Dispatcher records notifications in the outbox and delivers them over
// web push and the WebSocket hub. Delivery is best-effort: a quest approval
// succeeds even when every push endpoint is unreachable.
type Dispatcher struct {
	notifications *store.NotificationStore
	sender        PushSender
	hub           *websocket.Hub
	emailer       Emailer
	users         *store.UserStore
	logger        *slog.Logger

	// async controls whether push delivery runs in a goroutine. Tests set
	// it to false to make delivery observable without sleeping.
	async bool
}

func NewDispatcher(notifications *store.NotificationStore, sender PushSender, hub *websocket.Hub, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		notifications: notifications,
		sender:        sender,
		hub:           hub,
		logger:        logger,
		async:         true,
	}
}

// SetSynchronous makes Dispatch deliver inline instead of in a goroutine.
func (d *Dispatcher) SetSynchronous() {
	d.async = false
}

// SetEmailer enables the email channel. The user store resolves recipient
// addresses at delivery time.
func (d *Dispatcher) SetEmailer(emailer Emailer, users *store.UserStore) {
	d.emailer = emailer
	d.users = users
}

// Dispatch records an outbox entry for a user and delivers it. The outbox
// write is the only part that can fail the call; delivery failures are
// logged and absorbed.
func (d *Dispatcher) Dispatch(userID, householdID int64, kind, title, body string) error {
	n, err := d.notifications.Create(userID, householdID, kind, title, body)
	if err != nil {
		return err
	}

	if d.hub != nil {
		d.hub.Broadcast(householdID, websocket.NewEvent("notification", "created", userID, map[string]any{
			"kind":  kind,
			"title": title,
		}))
	}

	if d.async {
		go d.deliver(n)
	} else {
		d.deliver(n)
	}
	return nil
}

// deliver sends one outbox record over every configured channel and marks
// it sent. Expired push subscriptions are pruned as they are discovered.
func (d *Dispatcher) deliver(n *model.Notification) {
	d.deliverPush(n)
	d.deliverEmail(n)

	if err := d.notifications.MarkSent(n.ID); err != nil {
		d.logger.Warn("mark notification sent", "id", n.ID, "error", err)
	}
}

func (d *Dispatcher) deliverPush(n *model.Notification) {
	if d.sender == nil || !d.sender.Configured() {
		return
	}

	subs, err := d.notifications.ListSubscriptionsForUser(n.UserID)
	if err != nil {
		d.logger.Warn("list push subscriptions", "user_id", n.UserID, "error", err)
		return
	}

	payload := push.Payload{
		Title: n.Title,
		Body:  n.Body,
		Tag:   n.Kind,
	}
	for i := range subs {
		if err := d.sender.Send(&subs[i], payload); err != nil {
			if errors.Is(err, push.ErrExpired) {
				if derr := d.notifications.DeleteSubscriptionByEndpoint(subs[i].Endpoint); derr != nil {
					d.logger.Warn("prune expired subscription", "error", derr)
				}
				continue
			}
			d.logger.Warn("send push", "user_id", n.UserID, "error", err)
		}
	}
}

func (d *Dispatcher) deliverEmail(n *model.Notification) {
	if d.emailer == nil || !d.emailer.Configured() || d.users == nil {
		return
	}

	user, err := d.users.GetByID(n.UserID)
	if err != nil || user == nil {
		d.logger.Warn("resolve email recipient", "user_id", n.UserID, "error", err)
		return
	}
	if err := d.emailer.SendNotification(user.Email, n.Title, n.Body); err != nil {
		d.logger.Warn("send email", "user_id", n.UserID, "error", err)
	}
}

// Replay re-delivers every outbox record created inside the window. Records
// are replayed whether or not they were sent before; push endpoints
// deduplicate by tag.
func (d *Dispatcher) Replay(from, to time.Time) (int, error) {
	records, err := d.notifications.ListWindow(from, to)
	if err != nil {
		return 0, err
	}

	for i := range records {
		d.deliver(&records[i])
	}
	return len(records), nil
}
