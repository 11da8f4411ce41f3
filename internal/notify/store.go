package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrEventNotFound is returned when a referenced event does not exist.
var ErrEventNotFound = errors.New("event not found")

// Store implements AudienceStore, PreferenceStore, and DispatchStore over
// pgxpool using the prepared statements registered in internal/db.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a Store over pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// --------------------------------------------------------------------------
// AudienceStore
// --------------------------------------------------------------------------

func (s *Store) AllUserIDs(ctx context.Context) ([]string, error) {
	return s.queryIDs(ctx, "all_user_ids")
}

func (s *Store) GroupAdultIDs(ctx context.Context, groupID string) ([]string, error) {
	return s.queryIDs(ctx, "group_adult_ids", groupID)
}

func (s *Store) GroupCoachIDs(ctx context.Context, groupID string) ([]string, error) {
	return s.queryIDs(ctx, "group_coach_ids", groupID)
}

func (s *Store) GroupGuardianships(ctx context.Context, groupID string) ([]Guardianship, error) {
	rows, err := s.pool.Query(ctx, "group_guardianships", groupID)
	if err != nil {
		return nil, fmt.Errorf("group guardianships: %w", err)
	}
	defer rows.Close()

	var out []Guardianship
	for rows.Next() {
		var g Guardianship
		if err := rows.Scan(&g.UserID, &g.RiderID); err != nil {
			return nil, fmt.Errorf("scan guardianship: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s *Store) EventGroupIDs(ctx context.Context, eventID string) ([]string, error) {
	return s.queryIDs(ctx, "event_group_ids", eventID)
}

func (s *Store) EventRSVPActorIDs(ctx context.Context, eventID string) ([]string, error) {
	return s.queryIDs(ctx, "event_rsvp_actor_ids", eventID)
}

func (s *Store) EventSelfRSVPUserIDs(ctx context.Context, eventID string) ([]string, error) {
	return s.queryIDs(ctx, "event_self_rsvp_ids", eventID)
}

func (s *Store) EventRiderRSVPIDs(ctx context.Context, eventID string) ([]string, error) {
	return s.queryIDs(ctx, "event_rider_rsvp_ids", eventID)
}

func (s *Store) UngroupedPoolIDs(ctx context.Context, includeAdmins bool) ([]string, error) {
	coaches, err := s.queryIDs(ctx, "ungrouped_coach_ids")
	if err != nil {
		return nil, err
	}
	if !includeAdmins {
		return coaches, nil
	}
	admins, err := s.queryIDs(ctx, "admin_user_ids")
	if err != nil {
		return nil, err
	}
	return append(coaches, admins...), nil
}

// --------------------------------------------------------------------------
// PreferenceStore
// --------------------------------------------------------------------------

// optedOutStatements guards against a field name reaching SQL unvalidated.
var optedOutStatements = map[string]string{
	PrefNewEvent:      "opted_out_new_event",
	PrefEventUpdate:   "opted_out_event_update",
	PrefRSVPReminder:  "opted_out_rsvp_reminder",
	PrefCustomMessage: "opted_out_custom_message",
}

func (s *Store) OptedOut(ctx context.Context, userIDs []string, field string) ([]string, error) {
	stmt, ok := optedOutStatements[field]
	if !ok {
		return nil, fmt.Errorf("unknown preference field %q", field)
	}
	return s.queryIDs(ctx, stmt, userIDs)
}

// --------------------------------------------------------------------------
// DispatchStore
// --------------------------------------------------------------------------

func (s *Store) DueNotifications(ctx context.Context, now time.Time, limit int) ([]Notification, error) {
	rows, err := s.pool.Query(ctx, "due_notifications", now, limit)
	if err != nil {
		return nil, fmt.Errorf("due notifications: %w", err)
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(
			&n.ID, &n.Title, &n.Body, &n.Link, &n.ScheduledFor,
			&n.Target.Type, &n.Target.ID, &n.Category, &n.EventID,
			&n.Sent, &n.CreatedBy, &n.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *Store) MarkSent(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, "mark_notification_sent", id)
	return err
}

func (s *Store) AcceptedUserIDs(ctx context.Context, userIDs []string) ([]string, error) {
	return s.queryIDs(ctx, "accepted_user_ids", userIDs)
}

func (s *Store) SubscriptionsForUsers(ctx context.Context, userIDs []string) ([]Subscription, error) {
	rows, err := s.pool.Query(ctx, "subscriptions_for_users", userIDs)
	if err != nil {
		return nil, fmt.Errorf("subscriptions for users: %w", err)
	}
	defer rows.Close()

	var subs []Subscription
	for rows.Next() {
		var sub Subscription
		if err := rows.Scan(&sub.ID, &sub.UserID, &sub.Endpoint, &sub.P256dh, &sub.Auth); err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

func (s *Store) DeleteSubscription(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, "delete_subscription", id)
	return err
}

func (s *Store) EmailAddresses(ctx context.Context, userIDs []string) (map[string]string, error) {
	rows, err := s.pool.Query(ctx, "emails_for_users", userIDs)
	if err != nil {
		return nil, fmt.Errorf("emails for users: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string, len(userIDs))
	for rows.Next() {
		var id, email string
		if err := rows.Scan(&id, &email); err != nil {
			return nil, fmt.Errorf("scan email: %w", err)
		}
		out[id] = email
	}
	return out, rows.Err()
}

// --------------------------------------------------------------------------
// Scheduling and subscription registration (HTTP surface)
// --------------------------------------------------------------------------

// CreateNotification persists a new unsent notification and fills in its
// CreatedAt.
func (s *Store) CreateNotification(ctx context.Context, n *Notification) error {
	err := s.pool.QueryRow(ctx, "insert_notification",
		n.ID, n.Title, n.Body, n.Link, n.ScheduledFor,
		string(n.Target.Type), n.Target.ID,
		string(n.Category), n.EventID, n.CreatedBy,
	).Scan(&n.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// EventStartsAt returns the start time of an event.
func (s *Store) EventStartsAt(ctx context.Context, eventID string) (time.Time, error) {
	var t time.Time
	err := s.pool.QueryRow(ctx, "event_starts_at", eventID).Scan(&t)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, ErrEventNotFound
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("event starts_at: %w", err)
	}
	return t, nil
}

// SaveSubscription registers (or refreshes) a push subscription. Endpoints
// are unique; re-registering moves the endpoint to the given user.
func (s *Store) SaveSubscription(ctx context.Context, sub Subscription) error {
	_, err := s.pool.Exec(ctx, "insert_subscription",
		sub.ID, sub.UserID, sub.Endpoint, sub.P256dh, sub.Auth)
	if err != nil {
		return fmt.Errorf("insert subscription: %w", err)
	}
	return nil
}

// DeleteSubscriptionByEndpoint removes a subscription by its endpoint.
// Idempotent.
func (s *Store) DeleteSubscriptionByEndpoint(ctx context.Context, endpoint string) error {
	_, err := s.pool.Exec(ctx, "delete_subscription_by_endpoint", endpoint)
	return err
}

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

func (s *Store) queryIDs(ctx context.Context, stmt string, args ...any) ([]string, error) {
	rows, err := s.pool.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", stmt, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%s scan: %w", stmt, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
