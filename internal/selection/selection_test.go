package selection

import (
	"math/rand/v2"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodescope/area-compare/internal/mapview"
	"github.com/nodescope/area-compare/internal/model"
)

func area(id string) model.Area {
	return model.Area{ID: id}
}

func emphasis(r *mapview.Recorder) map[string]bool {
	out := map[string]bool{}
	for _, p := range r.Snapshot().Polygons {
		out[p.Area.ID] = p.Emphasis
	}
	return out
}

func TestToggle_AddRemove(t *testing.T) {
	rec := mapview.NewRecorder()
	for _, id := range []string{"a", "b", "c"} {
		rec.DrawPolygon(area(id), "#fff")
	}
	s := New(rec)

	ch, err := s.Toggle(area("a"))
	require.NoError(t, err)
	assert.Equal(t, Added, ch)
	ch, err = s.Toggle(area("b"))
	require.NoError(t, err)
	assert.Equal(t, Added, ch)
	assert.Equal(t, []string{"a", "b"}, s.IDs())
	assert.Equal(t, map[string]bool{"a": true, "b": true, "c": false}, emphasis(rec))

	ch, err = s.Toggle(area("a"))
	require.NoError(t, err)
	assert.Equal(t, Removed, ch)
	assert.Equal(t, []string{"b"}, s.IDs())
	assert.False(t, emphasis(rec)["a"])
}

func TestToggle_CapacityRejected(t *testing.T) {
	s := New(nil)
	_, _ = s.Toggle(area("a"))
	_, _ = s.Toggle(area("b"))

	_, err := s.Toggle(area("c"))
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrCapacity))
	assert.Equal(t, 2, s.Len())
	assert.False(t, s.Contains("c"))
	assert.Equal(t, []string{"a", "b"}, s.IDs())
}

func TestToggle_NeverExceedsCapacity(t *testing.T) {
	s := New(nil)
	ids := []string{"a", "b", "c", "d", "e"}
	r := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 500; i++ {
		before := s.Len()
		id := ids[r.IntN(len(ids))]
		present := s.Contains(id)

		_, err := s.Toggle(area(id))
		assert.LessOrEqual(t, s.Len(), Capacity)
		switch {
		case present:
			require.NoError(t, err)
			assert.Equal(t, before-1, s.Len())
		case before == Capacity:
			assert.ErrorIs(t, err, ErrCapacity)
			assert.Equal(t, before, s.Len())
		default:
			require.NoError(t, err)
			assert.Equal(t, before+1, s.Len())
		}
	}
}

func TestRemoveAndClear(t *testing.T) {
	rec := mapview.NewRecorder()
	rec.DrawPolygon(area("a"), "#fff")
	rec.DrawPolygon(area("b"), "#fff")
	s := New(rec)
	_, _ = s.Toggle(area("a"))
	_, _ = s.Toggle(area("b"))

	assert.True(t, s.Remove("a"))
	assert.False(t, s.Remove("a"))
	assert.Equal(t, 1, s.Len())

	s.Clear()
	assert.Equal(t, 0, s.Len())
	assert.Empty(t, s.Areas())
	assert.Equal(t, map[string]bool{"a": false, "b": false}, emphasis(rec))
}

func TestAreas_ReturnsCopy(t *testing.T) {
	s := New(nil)
	_, _ = s.Toggle(area("a"))
	got := s.Areas()
	got[0].ID = "mutated"
	assert.True(t, s.Contains("a"))
}
