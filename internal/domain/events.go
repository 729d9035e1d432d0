package domain

import "time"

// WriteEvent is published for every state a ledger write reaches.
type WriteEvent struct {
	WriteID    string    `json:"write_id"`
	Method     string    `json:"method"`
	ShipmentID int64     `json:"shipment_id,omitempty"`
	State      string    `json:"state"`
	TxHash     string    `json:"tx_hash,omitempty"`
	Error      string    `json:"error,omitempty"`
	At         time.Time `json:"at"`
}

// LedgerEvent is a change notification emitted by a chain indexer when a
// shipment changes on the ledger.
type LedgerEvent struct {
	ShipmentID int64  `json:"shipmentId"`
	Event      string `json:"event"`
	TxHash     string `json:"txHash,omitempty"`
}
