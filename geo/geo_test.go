package geo

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistanceZeroForSamePoint(t *testing.T) {
	assert.Equal(t, 0.0, Distance(77.5946, 12.9716, 77.5946, 12.9716))
}

func TestDistanceKnownPairs(t *testing.T) {
	// Bangalore to Chennai is roughly 290km.
	d := Distance(77.5946, 12.9716, 80.2707, 13.0827)
	assert.InDelta(t, 290_000, d, 10_000)

	// One degree of latitude at the equator is roughly 111km.
	d = Distance(0, 0, 0, 1)
	assert.InDelta(t, 111_195, d, 500)
}

func TestDistanceSymmetry(t *testing.T) {
	a := Distance(77.5946, 12.9716, 80.2707, 13.0827)
	b := Distance(80.2707, 13.0827, 77.5946, 12.9716)
	assert.InDelta(t, a, b, 1e-6)
}

func TestIndexWithinRadiusAndOrdering(t *testing.T) {
	ix := NewIndex()
	ix.Insert("at-center", 77.5946, 12.9716)
	ix.Insert("near", 77.60, 12.975)      // well under 5km away
	ix.Insert("far", 77.70, 13.05)        // over 10km away
	ix.Insert("other-city", 80.27, 13.08) // hundreds of km away

	matches := ix.Within(77.5946, 12.9716, 5000)
	require.Len(t, matches, 2)

	assert.Equal(t, "at-center", matches[0].ID)
	assert.Equal(t, 0.0, matches[0].Meters)
	assert.Equal(t, "near", matches[1].ID)
	assert.LessOrEqual(t, matches[1].Meters, 5000.0)

	// Ordering is ascending by distance.
	for i := 1; i < len(matches); i++ {
		assert.GreaterOrEqual(t, matches[i].Meters, matches[i-1].Meters)
	}
}

func TestIndexWithinExcludesBeyondRadius(t *testing.T) {
	ix := NewIndex()
	ix.Insert("a", 77.5946, 12.9716)

	matches := ix.Within(0, 0, 5000)
	assert.Empty(t, matches)
}

func TestIndexRemove(t *testing.T) {
	ix := NewIndex()
	ix.Insert("a", 10, 10)
	require.Equal(t, 1, ix.Len())

	ix.Remove("a")
	assert.Equal(t, 0, ix.Len())
	assert.Empty(t, ix.Within(10, 10, 1000))

	// Removing twice is harmless.
	ix.Remove("a")
}

func TestIndexReinsertMovesEntry(t *testing.T) {
	ix := NewIndex()
	ix.Insert("a", 10, 10)
	ix.Insert("a", 50, 50)

	require.Equal(t, 1, ix.Len())
	assert.Empty(t, ix.Within(10, 10, 1000))
	assert.Len(t, ix.Within(50, 50, 1000), 1)
}

func TestIndexCrossesCellBoundaries(t *testing.T) {
	ix := NewIndex()
	// Points straddling a one-degree cell boundary but within a few km.
	ix.Insert("west", 0.999, 10.0)
	ix.Insert("east", 1.001, 10.0)

	matches := ix.Within(1.0, 10.0, 5000)
	assert.Len(t, matches, 2)
}

func TestIndexAntimeridian(t *testing.T) {
	ix := NewIndex()
	ix.Insert("west-side", 179.99, 0)
	ix.Insert("east-side", -179.99, 0)

	// Both sit within a few km of the antimeridian at the equator.
	matches := ix.Within(179.995, 0, 10_000)
	assert.Len(t, matches, 2)
}

func TestIndexLongitude180IsQueryable(t *testing.T) {
	ix := NewIndex()
	ix.Insert("on-the-line", 180.0, 0)

	// Longitude 180 and -180 name the same meridian; a point stored at either
	// spelling is a distance-zero match for queries at both.
	for _, lng := range []float64{180.0, -180.0} {
		matches := ix.Within(lng, 0, 5000)
		require.Len(t, matches, 1, "query lng %v", lng)
		assert.Equal(t, "on-the-line", matches[0].ID)
		assert.InDelta(t, 0.0, matches[0].Meters, 1e-6)
	}

	ix.Insert("other-spelling", -180.0, 0)
	assert.Len(t, ix.Within(180.0, 0, 5000), 2)
}

func TestIndexLargeRadiusDoesNotDuplicate(t *testing.T) {
	ix := NewIndex()
	for i := 0; i < 10; i++ {
		ix.Insert(fmt.Sprintf("p%d", i), float64(i*30-150), 0)
	}

	// A radius spanning the whole ring must return each point once.
	matches := ix.Within(0, 0, 21_000_000)
	assert.Len(t, matches, 10)
}
