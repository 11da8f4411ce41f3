package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockAudienceStore struct{ mock.Mock }

func (m *mockAudienceStore) AllUserIDs(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	ids, _ := args.Get(0).([]string)
	return ids, args.Error(1)
}
func (m *mockAudienceStore) GroupAdultIDs(ctx context.Context, groupID string) ([]string, error) {
	args := m.Called(ctx, groupID)
	ids, _ := args.Get(0).([]string)
	return ids, args.Error(1)
}
func (m *mockAudienceStore) GroupCoachIDs(ctx context.Context, groupID string) ([]string, error) {
	args := m.Called(ctx, groupID)
	ids, _ := args.Get(0).([]string)
	return ids, args.Error(1)
}
func (m *mockAudienceStore) GroupGuardianships(ctx context.Context, groupID string) ([]Guardianship, error) {
	args := m.Called(ctx, groupID)
	gs, _ := args.Get(0).([]Guardianship)
	return gs, args.Error(1)
}
func (m *mockAudienceStore) EventGroupIDs(ctx context.Context, eventID string) ([]string, error) {
	args := m.Called(ctx, eventID)
	ids, _ := args.Get(0).([]string)
	return ids, args.Error(1)
}
func (m *mockAudienceStore) EventRSVPActorIDs(ctx context.Context, eventID string) ([]string, error) {
	args := m.Called(ctx, eventID)
	ids, _ := args.Get(0).([]string)
	return ids, args.Error(1)
}
func (m *mockAudienceStore) EventSelfRSVPUserIDs(ctx context.Context, eventID string) ([]string, error) {
	args := m.Called(ctx, eventID)
	ids, _ := args.Get(0).([]string)
	return ids, args.Error(1)
}
func (m *mockAudienceStore) EventRiderRSVPIDs(ctx context.Context, eventID string) ([]string, error) {
	args := m.Called(ctx, eventID)
	ids, _ := args.Get(0).([]string)
	return ids, args.Error(1)
}
func (m *mockAudienceStore) UngroupedPoolIDs(ctx context.Context, includeAdmins bool) ([]string, error) {
	args := m.Called(ctx, includeAdmins)
	ids, _ := args.Get(0).([]string)
	return ids, args.Error(1)
}

func resolver(store AudienceStore) *Resolver {
	return NewResolver(store, ResolverOptions{AdminsInUngroupedPool: true})
}

// --- all ---

func TestResolve_All(t *testing.T) {
	store := &mockAudienceStore{}
	store.On("AllUserIDs", mock.Anything).Return([]string{"u1", "u2", "u1"}, nil)

	set, err := resolver(store).Resolve(context.Background(), Target{Type: TargetAll})

	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"u1", "u2"}, set.Slice())
}

// --- group ---

// Coach, guardian of a minor in the group, and an adult homed in the group
// each appear exactly once; an overlapping coach-and-guardian appears once.
func TestResolve_GroupUnionsPathsOnce(t *testing.T) {
	store := &mockAudienceStore{}
	store.On("GroupAdultIDs", mock.Anything, "g1").Return([]string{"adult"}, nil)
	store.On("GroupCoachIDs", mock.Anything, "g1").Return([]string{"coach", "both"}, nil)
	store.On("GroupGuardianships", mock.Anything, "g1").Return([]Guardianship{
		{UserID: "parent", RiderID: "m1"},
		{UserID: "parent", RiderID: "m2"},
		{UserID: "both", RiderID: "m3"},
	}, nil)

	set, err := resolver(store).Resolve(context.Background(), Target{Type: TargetGroup, ID: "g1"})

	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"adult", "coach", "both", "parent"}, set.Slice())
}

func TestResolve_GroupStoreError(t *testing.T) {
	store := &mockAudienceStore{}
	store.On("GroupAdultIDs", mock.Anything, "g1").Return(nil, assert.AnError)

	_, err := resolver(store).Resolve(context.Background(), Target{Type: TargetGroup, ID: "g1"})

	assert.Error(t, err)
}

// --- event_rsvpd ---

func TestResolve_EventRSVPd(t *testing.T) {
	store := &mockAudienceStore{}
	store.On("EventRSVPActorIDs", mock.Anything, "e1").Return([]string{"u1", "u2", "u2"}, nil)

	set, err := resolver(store).Resolve(context.Background(), Target{Type: TargetEventRSVPd, ID: "e1"})

	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"u1", "u2"}, set.Slice())
}

// --- event_all ---

func TestResolve_EventAllUnionsLinkedGroups(t *testing.T) {
	store := &mockAudienceStore{}
	store.On("EventGroupIDs", mock.Anything, "e1").Return([]string{"g1", "g2"}, nil)
	store.On("GroupAdultIDs", mock.Anything, "g1").Return([]string{"a1"}, nil)
	store.On("GroupCoachIDs", mock.Anything, "g1").Return([]string{"c1"}, nil)
	store.On("GroupGuardianships", mock.Anything, "g1").Return([]Guardianship{{UserID: "p1", RiderID: "m1"}}, nil)
	store.On("GroupAdultIDs", mock.Anything, "g2").Return([]string{"a1", "a2"}, nil)
	store.On("GroupCoachIDs", mock.Anything, "g2").Return([]string(nil), nil)
	store.On("GroupGuardianships", mock.Anything, "g2").Return([]Guardianship(nil), nil)

	set, err := resolver(store).Resolve(context.Background(), Target{Type: TargetEventAll, ID: "e1"})

	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a1", "a2", "c1", "p1"}, set.Slice())
}

func TestResolve_EventAllNoGroupsUsesUngroupedPool(t *testing.T) {
	store := &mockAudienceStore{}
	store.On("EventGroupIDs", mock.Anything, "e1").Return([]string(nil), nil)
	store.On("UngroupedPoolIDs", mock.Anything, true).Return([]string{"c1", "admin1"}, nil)

	set, err := resolver(store).Resolve(context.Background(), Target{Type: TargetEventAll, ID: "e1"})

	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"c1", "admin1"}, set.Slice())
}

func TestResolve_UngroupedPoolAdminsFlagPassedThrough(t *testing.T) {
	store := &mockAudienceStore{}
	store.On("EventGroupIDs", mock.Anything, "e1").Return([]string(nil), nil)
	store.On("UngroupedPoolIDs", mock.Anything, false).Return([]string{"c1"}, nil)

	r := NewResolver(store, ResolverOptions{AdminsInUngroupedPool: false})
	set, err := r.Resolve(context.Background(), Target{Type: TargetEventAll, ID: "e1"})

	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"c1"}, set.Slice())
	store.AssertCalled(t, "UngroupedPoolIDs", mock.Anything, false)
}

// --- event_not_rsvpd ---

func TestResolve_EventNotRSVPdExcludesSelfRSVPs(t *testing.T) {
	store := &mockAudienceStore{}
	store.On("EventGroupIDs", mock.Anything, "e1").Return([]string{"g1"}, nil)
	store.On("EventSelfRSVPUserIDs", mock.Anything, "e1").Return([]string{"a1", "c1"}, nil)
	store.On("EventRiderRSVPIDs", mock.Anything, "e1").Return([]string(nil), nil)
	store.On("GroupAdultIDs", mock.Anything, "g1").Return([]string{"a1", "a2"}, nil)
	store.On("GroupCoachIDs", mock.Anything, "g1").Return([]string{"c1", "c2"}, nil)
	store.On("GroupGuardianships", mock.Anything, "g1").Return([]Guardianship(nil), nil)

	set, err := resolver(store).Resolve(context.Background(), Target{Type: TargetEventNotRSVPd, ID: "e1"})

	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a2", "c2"}, set.Slice())
}

// A guardian stays in the audience until every minor they guard across all
// linked groups has an RSVP.
func TestResolve_EventNotRSVPdGuardianAllRidersCovered(t *testing.T) {
	store := &mockAudienceStore{}
	store.On("EventGroupIDs", mock.Anything, "e1").Return([]string{"g1", "g2"}, nil)
	store.On("EventSelfRSVPUserIDs", mock.Anything, "e1").Return([]string(nil), nil)
	store.On("EventRiderRSVPIDs", mock.Anything, "e1").Return([]string{"m1", "m2"}, nil)
	store.On("GroupAdultIDs", mock.Anything, mock.Anything).Return([]string(nil), nil)
	store.On("GroupCoachIDs", mock.Anything, mock.Anything).Return([]string(nil), nil)
	// p1 guards m1 in g1 and m2 in g2, both RSVPd: excluded.
	// p2 guards m1 (RSVPd) and m3 (not): included.
	store.On("GroupGuardianships", mock.Anything, "g1").Return([]Guardianship{
		{UserID: "p1", RiderID: "m1"},
		{UserID: "p2", RiderID: "m1"},
	}, nil)
	store.On("GroupGuardianships", mock.Anything, "g2").Return([]Guardianship{
		{UserID: "p1", RiderID: "m2"},
		{UserID: "p2", RiderID: "m3"},
	}, nil)

	set, err := resolver(store).Resolve(context.Background(), Target{Type: TargetEventNotRSVPd, ID: "e1"})

	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"p2"}, set.Slice())
}

func TestResolve_EventNotRSVPdUngroupedPoolFiltersSelfRSVPs(t *testing.T) {
	store := &mockAudienceStore{}
	store.On("EventGroupIDs", mock.Anything, "e1").Return([]string(nil), nil)
	store.On("EventSelfRSVPUserIDs", mock.Anything, "e1").Return([]string{"c1"}, nil)
	store.On("EventRiderRSVPIDs", mock.Anything, "e1").Return([]string(nil), nil)
	store.On("UngroupedPoolIDs", mock.Anything, true).Return([]string{"c1", "c2"}, nil)

	set, err := resolver(store).Resolve(context.Background(), Target{Type: TargetEventNotRSVPd, ID: "e1"})

	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"c2"}, set.Slice())
}

// --- misc ---

func TestResolve_UnknownTargetType(t *testing.T) {
	_, err := resolver(&mockAudienceStore{}).Resolve(context.Background(), Target{Type: "household"})
	assert.Error(t, err)
}

// Resolving the same target twice yields the same set.
func TestResolve_Deterministic(t *testing.T) {
	store := &mockAudienceStore{}
	store.On("GroupAdultIDs", mock.Anything, "g1").Return([]string{"a1", "a2"}, nil)
	store.On("GroupCoachIDs", mock.Anything, "g1").Return([]string{"c1"}, nil)
	store.On("GroupGuardianships", mock.Anything, "g1").Return([]Guardianship{{UserID: "p1", RiderID: "m1"}}, nil)

	r := resolver(store)
	first, err := r.Resolve(context.Background(), Target{Type: TargetGroup, ID: "g1"})
	require.NoError(t, err)
	second, err := r.Resolve(context.Background(), Target{Type: TargetGroup, ID: "g1"})
	require.NoError(t, err)

	assert.ElementsMatch(t, first.Slice(), second.Slice())
}
