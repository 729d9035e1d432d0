package domain

import "github.com/ethereum/go-ethereum/common"

type Location struct {
	Name      string         `json:"name" validate:"required"`
	Latitude  string         `json:"latitude" validate:"required"`
	Longitude string         `json:"longitude" validate:"required"`
	Timestamp int64          `json:"timestamp" validate:"required,gt=0"`
	UpdatedBy common.Address `json:"updated_by"`
}

type Shipment struct {
	ID                    int64          `json:"id"`
	ProductName           string         `json:"product_name"`
	Description           string         `json:"description"`
	Manufacturer          common.Address `json:"manufacturer"`
	Supplier              common.Address `json:"supplier"`
	Carrier               common.Address `json:"carrier"`
	Receiver              common.Address `json:"receiver"`
	Origin                Location       `json:"origin"`
	Destination           Location       `json:"destination"`
	EstimatedDeliveryDate int64          `json:"estimated_delivery_date"`
	Status                ShipmentStatus `json:"status"`
}

// ShortAddress renders an address as 0x1234...abcd.
func ShortAddress(a common.Address) string {
	h := a.Hex()
	return h[:6] + "..." + h[len(h)-4:]
}
