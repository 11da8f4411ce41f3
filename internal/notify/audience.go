package notify

import (
	"context"
	"fmt"
)

// AudienceStore reads the relationship graphs audience resolution traverses.
// All methods return raw id lists; deduplication happens in the resolver.
type AudienceStore interface {
	AllUserIDs(ctx context.Context) ([]string, error)
	GroupAdultIDs(ctx context.Context, groupID string) ([]string, error)
	GroupCoachIDs(ctx context.Context, groupID string) ([]string, error)
	GroupGuardianships(ctx context.Context, groupID string) ([]Guardianship, error)
	EventGroupIDs(ctx context.Context, eventID string) ([]string, error)
	EventRSVPActorIDs(ctx context.Context, eventID string) ([]string, error)
	EventSelfRSVPUserIDs(ctx context.Context, eventID string) ([]string, error)
	EventRiderRSVPIDs(ctx context.Context, eventID string) ([]string, error)
	// UngroupedPoolIDs is the audience for events with no linked groups:
	// every coach, plus administrators when includeAdmins is set.
	UngroupedPoolIDs(ctx context.Context, includeAdmins bool) ([]string, error)
}

// ResolverOptions parametrizes behaviors that historically diverged between
// call sites.
type ResolverOptions struct {
	// AdminsInUngroupedPool folds administrators into the audience of events
	// with no linked groups. The event-cancellation flow always did this;
	// the generic scheduler did not. One flag, one implementation.
	AdminsInUngroupedPool bool
}

// Resolver computes the raw candidate recipient set for a target
// specification, before invitation-acceptance and preference filtering.
type Resolver struct {
	store AudienceStore
	opts  ResolverOptions
}

// NewResolver creates a Resolver over store.
func NewResolver(store AudienceStore, opts ResolverOptions) *Resolver {
	return &Resolver{store: store, opts: opts}
}

// Resolve returns the deduplicated user-id set for target. A user reachable
// via multiple paths (coach and guardian, say) appears once.
func (r *Resolver) Resolve(ctx context.Context, target Target) (IDSet, error) {
	switch target.Type {
	case TargetAll:
		ids, err := r.store.AllUserIDs(ctx)
		if err != nil {
			return nil, fmt.Errorf("resolve all: %w", err)
		}
		return NewIDSet(ids...), nil

	case TargetGroup:
		set := make(IDSet)
		if err := r.addGroup(ctx, target.ID, set); err != nil {
			return nil, err
		}
		return set, nil

	case TargetEventRSVPd:
		ids, err := r.store.EventRSVPActorIDs(ctx, target.ID)
		if err != nil {
			return nil, fmt.Errorf("resolve event rsvps: %w", err)
		}
		return NewIDSet(ids...), nil

	case TargetEventAll:
		return r.resolveEvent(ctx, target.ID, false)

	case TargetEventNotRSVPd:
		return r.resolveEvent(ctx, target.ID, true)
	}
	return nil, fmt.Errorf("unknown target type %q", target.Type)
}

// addGroup unions a single group's audience into set: adults homed in the
// group, its coaches, and guardians of any minor rider homed in the group.
func (r *Resolver) addGroup(ctx context.Context, groupID string, set IDSet) error {
	adults, err := r.store.GroupAdultIDs(ctx, groupID)
	if err != nil {
		return fmt.Errorf("group %s adults: %w", groupID, err)
	}
	set.Add(adults...)

	coaches, err := r.store.GroupCoachIDs(ctx, groupID)
	if err != nil {
		return fmt.Errorf("group %s coaches: %w", groupID, err)
	}
	set.Add(coaches...)

	guardianships, err := r.store.GroupGuardianships(ctx, groupID)
	if err != nil {
		return fmt.Errorf("group %s guardians: %w", groupID, err)
	}
	for _, g := range guardianships {
		set.Add(g.UserID)
	}
	return nil
}

// resolveEvent unions group audiences over every group linked to the event.
// With excludeRSVPd set, adults (coaches included) drop out once they have a
// self-RSVP, and a guardian drops out only when every linked minor they
// guard has an RSVP already. Events with no linked groups fall back to the
// ungrouped pool.
func (r *Resolver) resolveEvent(ctx context.Context, eventID string, excludeRSVPd bool) (IDSet, error) {
	groupIDs, err := r.store.EventGroupIDs(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("event %s groups: %w", eventID, err)
	}

	var selfRSVPd, riderRSVPd IDSet
	if excludeRSVPd {
		self, err := r.store.EventSelfRSVPUserIDs(ctx, eventID)
		if err != nil {
			return nil, fmt.Errorf("event %s self rsvps: %w", eventID, err)
		}
		selfRSVPd = NewIDSet(self...)

		riders, err := r.store.EventRiderRSVPIDs(ctx, eventID)
		if err != nil {
			return nil, fmt.Errorf("event %s rider rsvps: %w", eventID, err)
		}
		riderRSVPd = NewIDSet(riders...)
	}

	if len(groupIDs) == 0 {
		pool, err := r.store.UngroupedPoolIDs(ctx, r.opts.AdminsInUngroupedPool)
		if err != nil {
			return nil, fmt.Errorf("event %s ungrouped pool: %w", eventID, err)
		}
		set := make(IDSet)
		for _, id := range pool {
			if excludeRSVPd && selfRSVPd.Has(id) {
				continue
			}
			set.Add(id)
		}
		return set, nil
	}

	set := make(IDSet)
	// Guardians accumulate riders across all linked groups before the
	// every-rider-RSVPd exclusion is applied.
	guardianRiders := make(map[string][]string)

	for _, groupID := range groupIDs {
		adults, err := r.store.GroupAdultIDs(ctx, groupID)
		if err != nil {
			return nil, fmt.Errorf("group %s adults: %w", groupID, err)
		}
		coaches, err := r.store.GroupCoachIDs(ctx, groupID)
		if err != nil {
			return nil, fmt.Errorf("group %s coaches: %w", groupID, err)
		}
		for _, id := range append(adults, coaches...) {
			if excludeRSVPd && selfRSVPd.Has(id) {
				continue
			}
			set.Add(id)
		}

		guardianships, err := r.store.GroupGuardianships(ctx, groupID)
		if err != nil {
			return nil, fmt.Errorf("group %s guardians: %w", groupID, err)
		}
		for _, g := range guardianships {
			if !excludeRSVPd {
				set.Add(g.UserID)
				continue
			}
			guardianRiders[g.UserID] = append(guardianRiders[g.UserID], g.RiderID)
		}
	}

	for userID, riders := range guardianRiders {
		if !allRSVPd(riders, riderRSVPd) {
			set.Add(userID)
		}
	}
	return set, nil
}

func allRSVPd(riderIDs []string, rsvpd IDSet) bool {
	for _, id := range riderIDs {
		if !rsvpd.Has(id) {
			return false
		}
	}
	return true
}
