// Package route turns a shipment and its transit history into geometry a
// map can draw. Everything here is pure.
package route

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/RaikyD/blockroute-client/internal/domain"
)

const (
	// padding added on each side of the bounding box, as a share of its span
	boundsPadding = 0.1
	minPadding    = 0.01
)

type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type Bounds struct {
	South float64 `json:"south"`
	West  float64 `json:"west"`
	North float64 `json:"north"`
	East  float64 `json:"east"`
}

type Marker struct {
	Point
	Name      string `json:"name"`
	Timestamp int64  `json:"timestamp"`
}

type Markers struct {
	Origin      *Marker `json:"origin,omitempty"`
	Destination *Marker `json:"destination,omitempty"`
	Current     *Marker `json:"current,omitempty"`
}

type Projection struct {
	Path    []Point `json:"path"`
	Bounds  Bounds  `json:"bounds"`
	Markers Markers `json:"markers"`
	// names of locations whose coordinates could not be used
	Dropped []string `json:"dropped,omitempty"`
}

// ParsePoint parses decimal degree strings and checks their range.
func ParsePoint(lat, lng string) (Point, error) {
	la, err := parseDegrees(lat, 90)
	if err != nil {
		return Point{}, fmt.Errorf("latitude: %w", err)
	}
	ln, err := parseDegrees(lng, 180)
	if err != nil {
		return Point{}, fmt.Errorf("longitude: %w", err)
	}
	return Point{Lat: la, Lng: ln}, nil
}

func parseDegrees(s string, limit float64) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", s)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v < -limit || v > limit {
		return 0, fmt.Errorf("%q is outside [-%g, %g]", s, limit, limit)
	}
	return v, nil
}

// Project builds the path origin -> history (ledger order) -> destination.
// Invalid points are dropped one by one; fewer than two usable points is
// ErrInsufficientGeometry.
func Project(s domain.Shipment, history []domain.Location) (*Projection, error) {
	p := &Projection{Path: make([]Point, 0, len(history)+2)}

	add := func(l domain.Location) (Point, bool) {
		pt, err := ParsePoint(l.Latitude, l.Longitude)
		if err != nil {
			p.Dropped = append(p.Dropped, l.Name)
			return Point{}, false
		}
		p.Path = append(p.Path, pt)
		return pt, true
	}

	origin, originOK := add(s.Origin)
	for _, l := range history {
		add(l)
	}
	dest, destOK := add(s.Destination)

	if len(p.Path) < 2 {
		return nil, fmt.Errorf("%w: shipment %d has %d usable points", domain.ErrInsufficientGeometry, s.ID, len(p.Path))
	}

	if originOK {
		p.Markers.Origin = &Marker{Point: origin, Name: s.Origin.Name, Timestamp: s.Origin.Timestamp}
	}
	if destOK {
		p.Markers.Destination = &Marker{Point: dest, Name: s.Destination.Name, Timestamp: s.Destination.Timestamp}
	}
	if len(history) > 0 {
		last := history[len(history)-1]
		if pt, err := ParsePoint(last.Latitude, last.Longitude); err == nil &&
			(!originOK || pt != origin) && (!destOK || pt != dest) {
			p.Markers.Current = &Marker{Point: pt, Name: last.Name, Timestamp: last.Timestamp}
		}
	}

	p.Bounds = boundsOf(p.Path)
	return p, nil
}

func boundsOf(path []Point) Bounds {
	b := Bounds{South: path[0].Lat, North: path[0].Lat, West: path[0].Lng, East: path[0].Lng}
	for _, pt := range path[1:] {
		b.South = math.Min(b.South, pt.Lat)
		b.North = math.Max(b.North, pt.Lat)
		b.West = math.Min(b.West, pt.Lng)
		b.East = math.Max(b.East, pt.Lng)
	}

	padLat := math.Max((b.North-b.South)*boundsPadding, minPadding)
	padLng := math.Max((b.East-b.West)*boundsPadding, minPadding)

	return Bounds{
		South: math.Max(b.South-padLat, -90),
		North: math.Min(b.North+padLat, 90),
		West:  math.Max(b.West-padLng, -180),
		East:  math.Min(b.East+padLng, 180),
	}
}
