package notify

import (
	"context"
	"fmt"
)

// PreferenceStore reads explicit opt-outs. userIDs is one batch, already
// capped by the caller.
type PreferenceStore interface {
	// OptedOut returns the ids among userIDs whose preference row has field
	// explicitly set to false. Missing rows and NULL fields opt in.
	OptedOut(ctx context.Context, userIDs []string, field string) ([]string, error)
}

// Preference field names as stored.
const (
	PrefNewEvent      = "new_event"
	PrefEventUpdate   = "event_update"
	PrefRSVPReminder  = "rsvp_reminder"
	PrefCustomMessage = "custom_message"
)

// PreferenceField maps a notification category to the preference field that
// controls it. Unknown categories fall back to the custom-message opt-out.
func PreferenceField(c Category) string {
	switch c {
	case CategoryAnnouncement:
		return PrefNewEvent
	case CategoryReminder:
		return PrefRSVPReminder
	case CategoryEventUpdate:
		return PrefEventUpdate
	}
	return PrefCustomMessage
}

// PreferenceFilter narrows a recipient set to users who have not opted out
// of a category. Lookups are chunked to respect store query-size limits; the
// union of per-batch opt-outs makes the result independent of where the
// batch boundaries fall.
type PreferenceFilter struct {
	store     PreferenceStore
	batchSize int
}

// NewPreferenceFilter creates a filter. batchSize <= 0 uses the default cap.
func NewPreferenceFilter(store PreferenceStore, batchSize int) *PreferenceFilter {
	if batchSize <= 0 {
		batchSize = defaultStoreBatch
	}
	return &PreferenceFilter{store: store, batchSize: batchSize}
}

// Filter returns the subset of candidates that has not explicitly opted out
// of category.
func (f *PreferenceFilter) Filter(ctx context.Context, candidates IDSet, category Category) (IDSet, error) {
	if len(candidates) == 0 {
		return make(IDSet), nil
	}

	field := PreferenceField(category)
	optedOut := make(IDSet)
	for _, batch := range chunkIDs(candidates.Slice(), f.batchSize) {
		ids, err := f.store.OptedOut(ctx, batch, field)
		if err != nil {
			return nil, fmt.Errorf("preference lookup %s: %w", field, err)
		}
		optedOut.Add(ids...)
	}

	kept := make(IDSet, len(candidates))
	for id := range candidates {
		if !optedOut.Has(id) {
			kept.Add(id)
		}
	}
	return kept, nil
}
