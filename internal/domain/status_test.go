package domain

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The contract stores these numbers; changing any of them breaks decoding of
// every shipment already on chain.
func TestStatusOrdinalsArePinned(t *testing.T) {
	want := map[string]uint8{
		"Created":          0,
		"QualityChecked":   1,
		"InTransit":        2,
		"Delayed":          3,
		"Disputed":         4,
		"ResolvingDispute": 5,
		"Delivered":        6,
		"Rejected":         7,
		"Cancelled":        8,
	}

	require.Len(t, Statuses(), len(want))
	for _, s := range Statuses() {
		o, ok := want[s.Label()]
		require.True(t, ok, "unexpected label %q", s.Label())
		assert.Equal(t, o, s.Ordinal(), s.Label())

		parsed, err := ParseStatus(s.Label())
		require.NoError(t, err)
		assert.Equal(t, s, parsed)
		assert.Equal(t, s, StatusFromOrdinal(s.Ordinal()))
	}
}

func TestStatusLabelsAreUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, s := range Statuses() {
		assert.False(t, seen[s.Label()], s.Label())
		seen[s.Label()] = true
	}
}

func TestIsTerminal(t *testing.T) {
	terminal := map[ShipmentStatus]bool{
		StatusDelivered: true,
		StatusRejected:  true,
		StatusCancelled: true,
	}
	for _, s := range Statuses() {
		assert.Equal(t, terminal[s], s.IsTerminal(), s.Label())
	}
	assert.False(t, StatusFromOrdinal(42).IsTerminal())
}

func TestColor(t *testing.T) {
	tests := []struct {
		status ShipmentStatus
		want   ColorClass
	}{
		{StatusCreated, ColorBlue},
		{StatusQualityChecked, ColorGreen},
		{StatusInTransit, ColorOrange},
		{StatusDelayed, ColorYellow},
		{StatusDisputed, ColorRed},
		{StatusResolvingDispute, ColorPurple},
		{StatusDelivered, ColorGreen},
		{StatusRejected, ColorRed},
		{StatusCancelled, ColorGray},
		{StatusFromOrdinal(9), ColorGray},
		{StatusFromOrdinal(255), ColorGray},
	}
	for _, tt := range tests {
		t.Run(tt.status.Label(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.Color())
		})
	}
}

func TestUnknownOrdinalIsPreserved(t *testing.T) {
	s := StatusFromOrdinal(12)
	assert.False(t, s.Known())
	assert.Equal(t, uint8(12), s.Ordinal())
	assert.Equal(t, "Unknown(12)", s.Label())
}

func TestCanPropose(t *testing.T) {
	assert.ErrorIs(t, StatusCreated.CanPropose(), ErrInvalidArgument)
	assert.ErrorIs(t, StatusFromOrdinal(9).CanPropose(), ErrInvalidArgument)
	for _, s := range Statuses()[1:] {
		assert.NoError(t, s.CanPropose(), s.Label())
	}
}

func TestParseStatus_Unknown(t *testing.T) {
	_, err := ParseStatus("Lost")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestShortAddress(t *testing.T) {
	a := common.HexToAddress("0x1234567890123456789012345678901234567890")
	assert.Equal(t, "0x1234...7890", ShortAddress(a))
}
