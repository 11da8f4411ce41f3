// Package notify implements scheduled notification processing for the club:
// audience resolution over the membership graphs, per-user preference
// filtering, and multi-channel delivery.
//
// Pipeline per run: fetch due notifications → resolve audience → filter by
// acceptance and preference → push per subscription → email fallback →
// mark sent. A background dispatch worker drives runs on a ticker; the
// HTTP trigger drives one run on demand.
package notify

import "time"

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	// minLead is the safety margin: every computed schedule time must be at
	// least this far in the future.
	minLead = 5 * time.Minute

	// lateHour (local): announcements requested at or after this hour roll
	// over to the next morning.
	lateHour = 21
	// morningHour (local): the rolled-over announcement time.
	morningHour = 9

	defaultDispatchBatch = 25
	defaultStoreBatch    = 500
)

// reminderOffsets, largest first, so kept candidates come out in ascending
// chronological order.
var reminderOffsets = []time.Duration{
	7 * 24 * time.Hour,
	3 * 24 * time.Hour,
	24 * time.Hour,
}

// --------------------------------------------------------------------------
// Types
// --------------------------------------------------------------------------

// TargetType scopes a notification's audience.
type TargetType string

const (
	TargetAll           TargetType = "all"
	TargetGroup         TargetType = "group"
	TargetEventAll      TargetType = "event_all"
	TargetEventRSVPd    TargetType = "event_rsvpd"
	TargetEventNotRSVPd TargetType = "event_not_rsvpd"
)

// Valid reports whether t is a known target type.
func (t TargetType) Valid() bool {
	switch t {
	case TargetAll, TargetGroup, TargetEventAll, TargetEventRSVPd, TargetEventNotRSVPd:
		return true
	}
	return false
}

// NeedsID reports whether the target type requires a scope id
// (group id or event id).
func (t TargetType) NeedsID() bool {
	return t != TargetAll
}

// Target is a (type, scope id) pair describing who should receive a
// notification.
type Target struct {
	Type TargetType
	ID   string // group id or event id; empty for TargetAll
}

// Category classifies a notification and maps to a preference field.
type Category string

const (
	CategoryAnnouncement  Category = "announcement"
	CategoryReminder      Category = "reminder"
	CategoryEventUpdate   Category = "event_update"
	CategoryCustomMessage Category = "custom_message"
)

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryAnnouncement, CategoryReminder, CategoryEventUpdate, CategoryCustomMessage:
		return true
	}
	return false
}

// Notification is one scheduled notification row. Sent is monotonic: the
// dispatcher flips it to true after one processing attempt and it is never
// reset.
type Notification struct {
	ID           string
	Title        string
	Body         string
	Link         string // optional path or absolute URL
	ScheduledFor time.Time
	Target       Target
	Category     Category
	EventID      string // optional
	Sent         bool
	CreatedBy    string
	CreatedAt    time.Time
}

// Subscription is one primary-channel (web push) subscription record.
type Subscription struct {
	ID       string
	UserID   string
	Endpoint string
	P256dh   string
	Auth     string
}

// Payload is what the primary channel delivers.
type Payload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Link  string `json:"link,omitempty"`
}

// Guardianship links a guardian user to a minor rider.
type Guardianship struct {
	UserID  string
	RiderID string
}

// Summary aggregates the counters of one dispatch run.
type Summary struct {
	Processed            int `json:"processed"`
	Sent                 int `json:"sent,omitempty"`
	Failed               int `json:"failed,omitempty"`
	RemovedSubscriptions int `json:"removed_subscriptions,omitempty"`
	EmailSent            int `json:"email_sent,omitempty"`
	EmailFailed          int `json:"email_failed,omitempty"`
	EmailSkipped         int `json:"email_skipped,omitempty"`
}

// --------------------------------------------------------------------------
// ID sets
// --------------------------------------------------------------------------

// IDSet is a deduplicated set of user (or rider) identifiers.
type IDSet map[string]struct{}

// NewIDSet builds a set from ids.
func NewIDSet(ids ...string) IDSet {
	s := make(IDSet, len(ids))
	s.Add(ids...)
	return s
}

// Add inserts ids into the set.
func (s IDSet) Add(ids ...string) {
	for _, id := range ids {
		s[id] = struct{}{}
	}
}

// Has reports membership.
func (s IDSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Slice returns the members in unspecified order.
func (s IDSet) Slice() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	return out
}
