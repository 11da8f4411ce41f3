package notify

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePrefStore records batch sizes and answers from a fixed opt-out set.
// A hand-rolled fake instead of mock.Mock because the batch contents depend
// on map iteration order.
type fakePrefStore struct {
	optedOut   map[string]bool
	batchSizes []int
	field      string
	err        error
}

func (f *fakePrefStore) OptedOut(ctx context.Context, userIDs []string, field string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.batchSizes = append(f.batchSizes, len(userIDs))
	f.field = field
	var out []string
	for _, id := range userIDs {
		if f.optedOut[id] {
			out = append(out, id)
		}
	}
	return out, nil
}

func TestPreferenceFilter_DefaultAllow(t *testing.T) {
	store := &fakePrefStore{optedOut: map[string]bool{"u2": true}}
	f := NewPreferenceFilter(store, 0)

	kept, err := f.Filter(context.Background(), NewIDSet("u1", "u2", "u3"), CategoryAnnouncement)

	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"u1", "u3"}, kept.Slice())
	assert.Equal(t, PrefNewEvent, store.field)
}

func TestPreferenceFilter_EmptyInput(t *testing.T) {
	store := &fakePrefStore{}
	f := NewPreferenceFilter(store, 10)

	kept, err := f.Filter(context.Background(), NewIDSet(), CategoryReminder)

	require.NoError(t, err)
	assert.Empty(t, kept)
	assert.Empty(t, store.batchSizes, "no lookup for an empty candidate set")
}

// The result must not depend on where batch boundaries fall.
func TestPreferenceFilter_BatchBoundaryInvariance(t *testing.T) {
	ids := make([]string, 0, 23)
	optedOut := map[string]bool{}
	for i := 0; i < 23; i++ {
		id := fmt.Sprintf("u%02d", i)
		ids = append(ids, id)
		if i%3 == 0 {
			optedOut[id] = true
		}
	}

	var want []string
	for _, id := range ids {
		if !optedOut[id] {
			want = append(want, id)
		}
	}

	for _, batchSize := range []int{1, 5, 23, 500} {
		store := &fakePrefStore{optedOut: optedOut}
		f := NewPreferenceFilter(store, batchSize)

		kept, err := f.Filter(context.Background(), NewIDSet(ids...), CategoryCustomMessage)

		require.NoError(t, err)
		assert.ElementsMatch(t, want, kept.Slice(), "batchSize=%d", batchSize)
		for _, n := range store.batchSizes {
			assert.LessOrEqual(t, n, batchSize)
		}
	}
}

func TestPreferenceFilter_StoreError(t *testing.T) {
	store := &fakePrefStore{err: assert.AnError}
	f := NewPreferenceFilter(store, 10)

	_, err := f.Filter(context.Background(), NewIDSet("u1"), CategoryReminder)

	assert.Error(t, err)
}

func TestPreferenceField_Mapping(t *testing.T) {
	assert.Equal(t, PrefNewEvent, PreferenceField(CategoryAnnouncement))
	assert.Equal(t, PrefRSVPReminder, PreferenceField(CategoryReminder))
	assert.Equal(t, PrefEventUpdate, PreferenceField(CategoryEventUpdate))
	assert.Equal(t, PrefCustomMessage, PreferenceField(CategoryCustomMessage))
	assert.Equal(t, PrefCustomMessage, PreferenceField(Category("whatever")))
}

func TestChunkIDs(t *testing.T) {
	assert.Nil(t, chunkIDs(nil, 3))
	assert.Equal(t, [][]string{{"a"}}, chunkIDs([]string{"a"}, 3))
	assert.Equal(t,
		[][]string{{"a", "b", "c"}, {"d", "e"}},
		chunkIDs([]string{"a", "b", "c", "d", "e"}, 3))
}
