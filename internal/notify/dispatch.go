package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// ErrSubscriptionGone marks a permanent primary-channel failure: the push
// endpoint no longer exists and the subscription should be pruned rather
// than retried.
var ErrSubscriptionGone = errors.New("push subscription gone")

// DispatchStore is the mutable-store surface one run needs. Id-set methods
// take one batch at a time; the dispatcher chunks before calling.
type DispatchStore interface {
	// DueNotifications returns unsent notifications with scheduled_for <= now,
	// ordered by scheduled_for ascending, capped at limit.
	DueNotifications(ctx context.Context, now time.Time, limit int) ([]Notification, error)
	// MarkSent flips sent=true for one notification.
	MarkSent(ctx context.Context, id string) error
	// AcceptedUserIDs narrows userIDs to users who accepted their invitation.
	AcceptedUserIDs(ctx context.Context, userIDs []string) ([]string, error)
	// SubscriptionsForUsers returns every push subscription owned by userIDs.
	SubscriptionsForUsers(ctx context.Context, userIDs []string) ([]Subscription, error)
	// DeleteSubscription prunes one subscription. Deleting an absent id is
	// not an error.
	DeleteSubscription(ctx context.Context, id string) error
	// EmailAddresses returns the contact address per user id; users without
	// an address are absent from the map.
	EmailAddresses(ctx context.Context, userIDs []string) (map[string]string, error)
}

// PushSender delivers one payload to one subscription. A permanent failure
// is reported by wrapping ErrSubscriptionGone.
type PushSender interface {
	Send(ctx context.Context, sub Subscription, p Payload) error
}

// EmailSender is the secondary channel. Configured must be consulted before
// any send attempt.
type EmailSender interface {
	Configured() bool
	Send(ctx context.Context, to, subject, textBody, htmlBody string) error
}

// Dispatcher orchestrates one dispatch run. Zero-value fields fall back to
// defaults; Store, Audience and Prefs are required.
type Dispatcher struct {
	Store    DispatchStore
	Audience *Resolver
	Prefs    *PreferenceFilter
	Push     PushSender
	Email    EmailSender
	Links    *LinkResolver
	Logger   *slog.Logger

	BatchSize       int // due notifications per run, default 25
	StoreBatchSize  int // ids per store query, default 500
	PushConcurrency int // parallel push sends, default 1 (sequential)

	// Now overrides the run clock; captured once per run so every step of a
	// run sees the same instant.
	Now func() time.Time
}

// Run processes one batch of due notifications and returns the aggregate
// counters. A store error fetching the due batch aborts the run; every other
// failure is isolated to its notification or recipient and tallied. Each
// processed notification is marked sent regardless of delivery outcome; a
// crash between partial delivery and the mark can re-deliver on the next run.
func (d *Dispatcher) Run(ctx context.Context) (Summary, error) {
	now := time.Now()
	if d.Now != nil {
		now = d.Now()
	}

	batch := d.BatchSize
	if batch <= 0 {
		batch = defaultDispatchBatch
	}

	due, err := d.Store.DueNotifications(ctx, now, batch)
	if err != nil {
		return Summary{}, fmt.Errorf("fetch due notifications: %w", err)
	}

	var sum Summary
	for _, n := range due {
		d.processOne(ctx, n, &sum)
		sum.Processed++
		if err := d.Store.MarkSent(ctx, n.ID); err != nil {
			d.logger().Error("mark sent failed, notification may re-deliver",
				"notification_id", n.ID, "error", err)
		}
	}

	recordSummary(sum)
	return sum, nil
}

// processOne runs the pipeline for a single notification: resolve → filter →
// push → fallback email. Errors are logged and tallied, never propagated.
func (d *Dispatcher) processOne(ctx context.Context, n Notification, sum *Summary) {
	audience, err := d.Audience.Resolve(ctx, n.Target)
	if err != nil {
		d.logger().Warn("audience resolution failed",
			"notification_id", n.ID, "target", string(n.Target.Type), "error", err)
		return
	}

	accepted, err := d.acceptedOnly(ctx, audience)
	if err != nil {
		d.logger().Warn("acceptance filter failed", "notification_id", n.ID, "error", err)
		return
	}

	optedIn, err := d.Prefs.Filter(ctx, accepted, n.Category)
	if err != nil {
		d.logger().Warn("preference filter failed", "notification_id", n.ID, "error", err)
		return
	}
	if len(optedIn) == 0 {
		return
	}

	subs, err := d.subscriptions(ctx, optedIn)
	if err != nil {
		d.logger().Warn("subscription lookup failed", "notification_id", n.ID, "error", err)
		return
	}

	reached, hasSub := d.sendPush(ctx, n, subs, sum)

	// Fallback: opted-in users the primary channel could not reach AND who
	// had no subscription at all. A failed send with a surviving
	// subscription is deliberately not retried over email.
	var fallback []string
	for id := range optedIn {
		if !reached.Has(id) && !hasSub.Has(id) {
			fallback = append(fallback, id)
		}
	}
	if len(fallback) == 0 {
		return
	}
	sort.Strings(fallback)

	if d.Email == nil || !d.Email.Configured() {
		sum.EmailSkipped += len(fallback)
		return
	}
	d.sendEmails(ctx, n, fallback, sum)
}

// sendPush attempts primary delivery for every subscription with a bounded
// worker pool and returns the users reached plus the users that had any
// subscription. Permanent failures prune the subscription; transient ones
// are counted and left intact.
func (d *Dispatcher) sendPush(ctx context.Context, n Notification, subs []Subscription, sum *Summary) (reached, hasSub IDSet) {
	reached = make(IDSet)
	hasSub = make(IDSet)
	for _, sub := range subs {
		hasSub.Add(sub.UserID)
	}
	if len(subs) == 0 || d.Push == nil {
		return reached, hasSub
	}

	payload := Payload{Title: n.Title, Body: n.Body}
	if d.Links != nil {
		if href, ok := d.Links.Resolve(n.Link); ok {
			payload.Link = href
		}
	}

	workers := d.PushConcurrency
	if workers < 1 {
		workers = 1
	}
	if workers > len(subs) {
		workers = len(subs)
	}

	ch := make(chan Subscription, len(subs))
	for _, sub := range subs {
		ch <- sub
	}
	close(ch)

	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sub := range ch {
				err := d.Push.Send(ctx, sub, payload)

				pruned := false
				if errors.Is(err, ErrSubscriptionGone) {
					if derr := d.Store.DeleteSubscription(ctx, sub.ID); derr != nil {
						d.logger().Warn("prune subscription failed",
							"subscription_id", sub.ID, "error", derr)
					} else {
						pruned = true
					}
				}

				mu.Lock()
				switch {
				case err == nil:
					reached.Add(sub.UserID)
					sum.Sent++
				case pruned:
					sum.RemovedSubscriptions++
				case errors.Is(err, ErrSubscriptionGone):
					// prune failed; nothing else to count
				default:
					sum.Failed++
					d.logger().Warn("push send failed",
						"notification_id", n.ID, "subscription_id", sub.ID, "error", err)
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return reached, hasSub
}

// sendEmails delivers the fallback message over the secondary channel.
// Missing addresses count as failed.
func (d *Dispatcher) sendEmails(ctx context.Context, n Notification, fallback []string, sum *Summary) {
	addrs := make(map[string]string, len(fallback))
	for _, batch := range chunkIDs(fallback, d.storeBatch()) {
		m, err := d.Store.EmailAddresses(ctx, batch)
		if err != nil {
			d.logger().Warn("email address lookup failed",
				"notification_id", n.ID, "error", err)
			continue
		}
		for id, addr := range m {
			addrs[id] = addr
		}
	}

	msg := ComposeEmail(n, d.Links)
	for _, id := range fallback {
		to, ok := addrs[id]
		if !ok || to == "" {
			sum.EmailFailed++
			continue
		}
		if err := d.Email.Send(ctx, to, msg.Subject, msg.TextBody, msg.HTMLBody); err != nil {
			d.logger().Warn("email send failed",
				"notification_id", n.ID, "user_id", id, "error", err)
			sum.EmailFailed++
			continue
		}
		sum.EmailSent++
	}
}

// acceptedOnly narrows an audience to users who accepted their club
// invitation.
func (d *Dispatcher) acceptedOnly(ctx context.Context, audience IDSet) (IDSet, error) {
	out := make(IDSet, len(audience))
	for _, batch := range chunkIDs(audience.Slice(), d.storeBatch()) {
		ids, err := d.Store.AcceptedUserIDs(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("acceptance filter: %w", err)
		}
		out.Add(ids...)
	}
	return out, nil
}

func (d *Dispatcher) subscriptions(ctx context.Context, users IDSet) ([]Subscription, error) {
	var subs []Subscription
	for _, batch := range chunkIDs(users.Slice(), d.storeBatch()) {
		part, err := d.Store.SubscriptionsForUsers(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("subscription lookup: %w", err)
		}
		subs = append(subs, part...)
	}
	return subs, nil
}

func (d *Dispatcher) storeBatch() int {
	if d.StoreBatchSize > 0 {
		return d.StoreBatchSize
	}
	return defaultStoreBatch
}

func (d *Dispatcher) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

// StartWorker runs a background loop that dispatches due notifications.
// Blocks until ctx is cancelled. Intended to be called with `go`.
func StartWorker(ctx context.Context, d *Dispatcher, interval time.Duration, logger *slog.Logger) {
	logger.Info("Notification dispatch worker started", "interval", interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			sum, err := d.Run(ctx)
			if err != nil {
				logger.Error("dispatch error", "error", err)
			} else if sum.Processed > 0 {
				logger.Info("dispatch batch",
					"processed", sum.Processed,
					"sent", sum.Sent,
					"failed", sum.Failed,
					"removed_subscriptions", sum.RemovedSubscriptions,
					"email_sent", sum.EmailSent,
					"email_failed", sum.EmailFailed,
					"email_skipped", sum.EmailSkipped)
			}
		case <-ctx.Done():
			logger.Info("Notification dispatch worker stopped")
			return
		}
	}
}
