package ledger

import (
	_ "embed"
	"fmt"
	"math/big"
	"strings"

	"github.com/RaikyD/blockroute-client/internal/domain"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Contract methods used by the client.
const (
	MethodGetTotalShipments = "getTotalShipments"
	MethodGetShipment       = "getShipment"
	MethodGetTransitHistory = "getTransitHistory"
	MethodCreateShipment    = "createShipment"
	MethodUpdateStatus      = "updateShipmentStatus"
	MethodUpdateEnvironment = "updateTemperatureAndHumidity"
)

const shipmentOutputs = 11

//go:embed blockroute.abi.json
var abiJSON string

// ContractABI is the parsed BlockRoute contract interface.
var ContractABI = mustParseABI()

func mustParseABI() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		panic(fmt.Sprintf("blockroute abi: %v", err))
	}
	return parsed
}

// LocationTuple is the on-chain BlockRoute.Location struct. Field order
// follows the tuple components: decoding copies fields by position.
type LocationTuple struct {
	Latitude  string
	Longitude string
	Name      string
	Timestamp *big.Int
	UpdatedBy common.Address
}

func ToLocationTuple(l domain.Location) LocationTuple {
	return LocationTuple{
		Latitude:  l.Latitude,
		Longitude: l.Longitude,
		Name:      l.Name,
		Timestamp: big.NewInt(l.Timestamp),
		UpdatedBy: l.UpdatedBy,
	}
}

func (t LocationTuple) Location() (domain.Location, error) {
	ts, err := toInt64(t.Timestamp)
	if err != nil {
		return domain.Location{}, fmt.Errorf("location timestamp: %w", err)
	}
	return domain.Location{
		Name:      t.Name,
		Latitude:  t.Latitude,
		Longitude: t.Longitude,
		Timestamp: ts,
		UpdatedBy: t.UpdatedBy,
	}, nil
}

func toInt64(v *big.Int) (int64, error) {
	if v == nil {
		return 0, nil
	}
	if !v.IsInt64() {
		return 0, fmt.Errorf("value %s does not fit int64", v)
	}
	return v.Int64(), nil
}

func decodeShipment(out []interface{}) (*domain.Shipment, error) {
	if len(out) != shipmentOutputs {
		return nil, fmt.Errorf("getShipment returned %d values, want %d", len(out), shipmentOutputs)
	}

	id, err := toInt64(abi.ConvertType(out[0], new(big.Int)).(*big.Int))
	if err != nil {
		return nil, fmt.Errorf("id: %w", err)
	}
	eta, err := toInt64(abi.ConvertType(out[9], new(big.Int)).(*big.Int))
	if err != nil {
		return nil, fmt.Errorf("estimatedDeliveryDate: %w", err)
	}
	origin, err := (*abi.ConvertType(out[7], new(LocationTuple)).(*LocationTuple)).Location()
	if err != nil {
		return nil, fmt.Errorf("origin: %w", err)
	}
	dest, err := (*abi.ConvertType(out[8], new(LocationTuple)).(*LocationTuple)).Location()
	if err != nil {
		return nil, fmt.Errorf("destination: %w", err)
	}

	return &domain.Shipment{
		ID:                    id,
		ProductName:           *abi.ConvertType(out[1], new(string)).(*string),
		Description:           *abi.ConvertType(out[2], new(string)).(*string),
		Manufacturer:          *abi.ConvertType(out[3], new(common.Address)).(*common.Address),
		Supplier:              *abi.ConvertType(out[4], new(common.Address)).(*common.Address),
		Carrier:               *abi.ConvertType(out[5], new(common.Address)).(*common.Address),
		Receiver:              *abi.ConvertType(out[6], new(common.Address)).(*common.Address),
		Origin:                origin,
		Destination:           dest,
		EstimatedDeliveryDate: eta,
		Status:                domain.StatusFromOrdinal(*abi.ConvertType(out[10], new(uint8)).(*uint8)),
	}, nil
}

func decodeHistory(out []interface{}) ([]domain.Location, error) {
	if len(out) != 1 {
		return nil, fmt.Errorf("getTransitHistory returned %d values, want 1", len(out))
	}
	tuples := *abi.ConvertType(out[0], new([]LocationTuple)).(*[]LocationTuple)

	history := make([]domain.Location, 0, len(tuples))
	for i, t := range tuples {
		l, err := t.Location()
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		history = append(history, l)
	}
	return history, nil
}
