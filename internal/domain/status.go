package domain

import (
	"fmt"
	"strconv"
)

// ShipmentStatus mirrors the contract enum. The numeric values go over the
// wire as uint8, so existing constants are never reordered; new ones append.
type ShipmentStatus uint8

const (
	StatusCreated ShipmentStatus = iota
	StatusQualityChecked
	StatusInTransit
	StatusDelayed
	StatusDisputed
	StatusResolvingDispute
	StatusDelivered
	StatusRejected
	StatusCancelled
)

var statusLabels = [...]string{
	StatusCreated:          "Created",
	StatusQualityChecked:   "QualityChecked",
	StatusInTransit:        "InTransit",
	StatusDelayed:          "Delayed",
	StatusDisputed:         "Disputed",
	StatusResolvingDispute: "ResolvingDispute",
	StatusDelivered:        "Delivered",
	StatusRejected:         "Rejected",
	StatusCancelled:        "Cancelled",
}

// ColorClass is a presentation hint, the UI maps it onto its palette.
type ColorClass string

const (
	ColorBlue   ColorClass = "blue"
	ColorGreen  ColorClass = "green"
	ColorOrange ColorClass = "orange"
	ColorYellow ColorClass = "yellow"
	ColorRed    ColorClass = "red"
	ColorPurple ColorClass = "purple"
	ColorGray   ColorClass = "gray"
)

var statusColors = [...]ColorClass{
	StatusCreated:          ColorBlue,
	StatusQualityChecked:   ColorGreen,
	StatusInTransit:        ColorOrange,
	StatusDelayed:          ColorYellow,
	StatusDisputed:         ColorRed,
	StatusResolvingDispute: ColorPurple,
	StatusDelivered:        ColorGreen,
	StatusRejected:         ColorRed,
	StatusCancelled:        ColorGray,
}

// StatusFromOrdinal keeps values the client doesn't know about yet; they
// report Known() == false instead of failing the decode.
func StatusFromOrdinal(o uint8) ShipmentStatus {
	return ShipmentStatus(o)
}

func (s ShipmentStatus) Ordinal() uint8 {
	return uint8(s)
}

func (s ShipmentStatus) Known() bool {
	return int(s) < len(statusLabels)
}

func (s ShipmentStatus) IsTerminal() bool {
	switch s {
	case StatusDelivered, StatusRejected, StatusCancelled:
		return true
	}
	return false
}

func (s ShipmentStatus) Label() string {
	if !s.Known() {
		return "Unknown(" + strconv.Itoa(int(s)) + ")"
	}
	return statusLabels[s]
}

func (s ShipmentStatus) String() string {
	return s.Label()
}

func (s ShipmentStatus) Color() ColorClass {
	if !s.Known() {
		return ColorGray
	}
	return statusColors[s]
}

// CanPropose reports whether a client may request s as a new status.
// Created is only ever set by createShipment; anything else the ledger
// decides on.
func (s ShipmentStatus) CanPropose() error {
	if !s.Known() {
		return fmt.Errorf("%w: unknown status %d", ErrInvalidArgument, s)
	}
	if s == StatusCreated {
		return fmt.Errorf("%w: status Created cannot be proposed", ErrInvalidArgument)
	}
	return nil
}

func ParseStatus(label string) (ShipmentStatus, error) {
	for i, l := range statusLabels {
		if l == label {
			return ShipmentStatus(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown status %q", ErrInvalidArgument, label)
}

// Statuses returns every known status in ordinal order.
func Statuses() []ShipmentStatus {
	out := make([]ShipmentStatus, len(statusLabels))
	for i := range statusLabels {
		out[i] = ShipmentStatus(i)
	}
	return out
}
