package route

import (
	"testing"

	"github.com/RaikyD/blockroute-client/internal/domain"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var approx = cmpopts.EquateApprox(0, 1e-9)

func loc(name, lat, lng string) domain.Location {
	return domain.Location{Name: name, Latitude: lat, Longitude: lng, Timestamp: 1700000000}
}

func nyToLA() domain.Shipment {
	return domain.Shipment{
		ID:          1,
		Origin:      loc("New York", "40.7128", "-74.0060"),
		Destination: loc("Los Angeles", "34.0522", "-118.2437"),
	}
}

func TestProject_NoHistory(t *testing.T) {
	p, err := Project(nyToLA(), nil)
	require.NoError(t, err)

	want := []Point{{40.7128, -74.0060}, {34.0522, -118.2437}}
	if diff := cmp.Diff(want, p.Path, approx); diff != "" {
		t.Fatalf("path (-want +got):\n%s", diff)
	}

	wantBounds := Bounds{South: 33.38614, West: -122.66747, North: 41.37886, East: -69.58223}
	if diff := cmp.Diff(wantBounds, p.Bounds, cmpopts.EquateApprox(0, 1e-6)); diff != "" {
		t.Fatalf("bounds (-want +got):\n%s", diff)
	}

	require.NotNil(t, p.Markers.Origin)
	require.NotNil(t, p.Markers.Destination)
	assert.Equal(t, "New York", p.Markers.Origin.Name)
	assert.Equal(t, "Los Angeles", p.Markers.Destination.Name)
	assert.Nil(t, p.Markers.Current)
	assert.Empty(t, p.Dropped)
}

func TestProject_WaypointsInLedgerOrder(t *testing.T) {
	history := []domain.Location{
		loc("Chicago", "41.8781", "-87.6298"),
		loc("Denver", "39.7392", "-104.9903"),
	}

	p, err := Project(nyToLA(), history)
	require.NoError(t, err)

	want := []Point{
		{40.7128, -74.0060},
		{41.8781, -87.6298},
		{39.7392, -104.9903},
		{34.0522, -118.2437},
	}
	if diff := cmp.Diff(want, p.Path, approx); diff != "" {
		t.Fatalf("path (-want +got):\n%s", diff)
	}

	require.NotNil(t, p.Markers.Current)
	assert.Equal(t, "Denver", p.Markers.Current.Name)

	// Chicago is the northernmost point now
	assert.InDelta(t, 41.8781+(41.8781-34.0522)*0.1, p.Bounds.North, 1e-9)
}

func TestProject_DropsInvalidPoints(t *testing.T) {
	history := []domain.Location{
		loc("Nowhere", "abc", "10"),
		loc("Too far north", "91", "0"),
		loc("NaN", "NaN", "0"),
		loc("Chicago", "41.8781", "-87.6298"),
	}

	p, err := Project(nyToLA(), history)
	require.NoError(t, err)
	assert.Len(t, p.Path, 3)
	assert.Equal(t, []string{"Nowhere", "Too far north", "NaN"}, p.Dropped)
	require.NotNil(t, p.Markers.Current)
	assert.Equal(t, "Chicago", p.Markers.Current.Name)
}

func TestProject_InvalidLatestEntryHasNoCurrentMarker(t *testing.T) {
	history := []domain.Location{
		loc("Chicago", "41.8781", "-87.6298"),
		loc("Broken", "", ""),
	}

	p, err := Project(nyToLA(), history)
	require.NoError(t, err)
	assert.Nil(t, p.Markers.Current)
}

func TestProject_CurrentAtEndpointIsHidden(t *testing.T) {
	history := []domain.Location{loc("Arrived", "34.0522", "-118.2437")}

	p, err := Project(nyToLA(), history)
	require.NoError(t, err)
	assert.Nil(t, p.Markers.Current)
}

func TestProject_InsufficientGeometry(t *testing.T) {
	s := nyToLA()
	s.Destination = loc("Unknown", "", "")

	_, err := Project(s, nil)
	assert.ErrorIs(t, err, domain.ErrInsufficientGeometry)

	// a single valid waypoint makes it drawable again
	p, err := Project(s, []domain.Location{loc("Chicago", "41.8781", "-87.6298")})
	require.NoError(t, err)
	assert.Len(t, p.Path, 2)
	assert.Nil(t, p.Markers.Destination)
	require.NotNil(t, p.Markers.Current)
}

func TestProject_BoundsClampedAndPaddedForSinglePointSpan(t *testing.T) {
	s := domain.Shipment{
		Origin:      loc("Pole", "90", "180"),
		Destination: loc("Pole again", "90", "180"),
	}

	p, err := Project(s, nil)
	require.NoError(t, err)
	want := Bounds{South: 89.99, West: 179.99, North: 90, East: 180}
	if diff := cmp.Diff(want, p.Bounds, approx); diff != "" {
		t.Fatalf("bounds (-want +got):\n%s", diff)
	}
}

func TestParsePoint(t *testing.T) {
	tests := []struct {
		lat, lng string
		ok       bool
	}{
		{"0", "0", true},
		{" 45.5 ", "-73.6", true},
		{"-90", "180", true},
		{"90.0001", "0", false},
		{"0", "-180.5", false},
		{"Inf", "0", false},
		{"", "0", false},
		{"12,5", "0", false},
	}

	for _, tt := range tests {
		t.Run(tt.lat+"/"+tt.lng, func(t *testing.T) {
			_, err := ParsePoint(tt.lat, tt.lng)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
