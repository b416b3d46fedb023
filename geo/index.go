package geo

import (
	"math"
	"sort"
	"sync"
)

// cellSizeDeg is the grid cell edge in degrees. One degree of latitude is
// roughly 111km, so radius queries up to tens of kilometers touch only a few
// neighboring cells.
const cellSizeDeg = 1.0

// metersPerDegree is the approximate length of one degree of latitude.
const metersPerDegree = 111320.0

type cellKey struct {
	x, y int
}

type point struct {
	lng, lat float64
}

// Match is an index hit with its spherical distance from the query point.
type Match struct {
	ID     string
	Meters float64
}

// Index is a concurrency-safe grid index over longitude/latitude points.
// Radius queries visit only the cells overlapping the query's bounding box
// instead of scanning every entry.
type Index struct {
	mu    sync.RWMutex
	cells map[cellKey]map[string]point
	byID  map[string]cellKey
}

func NewIndex() *Index {
	return &Index{
		cells: make(map[cellKey]map[string]point),
		byID:  make(map[string]cellKey),
	}
}

const cellsPerRing = int(360 / cellSizeDeg)

// wrapCellX maps a longitude cell onto the canonical ring so that the cells
// on either side of the antimeridian, and longitude 180 itself, land where
// lookups expect them.
func wrapCellX(x int) int {
	return ((x+cellsPerRing/2)%cellsPerRing+cellsPerRing)%cellsPerRing - cellsPerRing/2
}

func keyFor(lng, lat float64) cellKey {
	return cellKey{
		x: wrapCellX(int(math.Floor(lng / cellSizeDeg))),
		y: int(math.Floor(lat / cellSizeDeg)),
	}
}

// Insert adds or repositions an entry.
func (ix *Index) Insert(id string, lng, lat float64) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if old, ok := ix.byID[id]; ok {
		delete(ix.cells[old], id)
	}

	key := keyFor(lng, lat)
	cell, ok := ix.cells[key]
	if !ok {
		cell = make(map[string]point)
		ix.cells[key] = cell
	}
	cell[id] = point{lng: lng, lat: lat}
	ix.byID[id] = key
}

// Remove deletes an entry; unknown ids are ignored.
func (ix *Index) Remove(id string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if key, ok := ix.byID[id]; ok {
		delete(ix.cells[key], id)
		delete(ix.byID, id)
	}
}

// Len returns the number of indexed entries.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.byID)
}

// Within returns every entry whose great-circle distance from (lng, lat) is
// at most radiusMeters, ordered nearest first. A point exactly at the query
// location is always included.
func (ix *Index) Within(lng, lat, radiusMeters float64) []Match {
	if radiusMeters < 0 {
		return nil
	}

	latSpan := radiusMeters / metersPerDegree
	// Longitude degrees shrink with latitude; clamp near the poles where the
	// bounding box degenerates into the full ring.
	cosLat := math.Cos(lat * math.Pi / 180)
	lngSpan := 180.0
	if cosLat > 0.01 {
		lngSpan = radiusMeters / (metersPerDegree * cosLat)
	}

	yMin := int(math.Floor((lat - latSpan) / cellSizeDeg))
	yMax := int(math.Floor((lat + latSpan) / cellSizeDeg))
	xMin := int(math.Floor((lng - lngSpan) / cellSizeDeg))
	xMax := int(math.Floor((lng + lngSpan) / cellSizeDeg))

	if xMax-xMin+1 > cellsPerRing {
		xMin = 0
		xMax = cellsPerRing - 1
	}

	ix.mu.RLock()
	var matches []Match
	for y := yMin; y <= yMax; y++ {
		for x := xMin; x <= xMax; x++ {
			// Wrap longitude cells across the antimeridian.
			for id, p := range ix.cells[cellKey{x: wrapCellX(x), y: y}] {
				if d := Distance(lng, lat, p.lng, p.lat); d <= radiusMeters {
					matches = append(matches, Match{ID: id, Meters: d})
				}
			}
		}
	}
	ix.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool { return matches[i].Meters < matches[j].Meters })
	return matches
}
