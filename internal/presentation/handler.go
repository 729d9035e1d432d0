package presentation

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/RaikyD/blockroute-client/internal/application"
	"github.com/RaikyD/blockroute-client/internal/domain"
	"github.com/RaikyD/blockroute-client/internal/ledger"
	"github.com/RaikyD/blockroute-client/internal/presentation/helpers"
	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type Service interface {
	Dashboard(ctx context.Context) (*application.Dashboard, error)
	Track(ctx context.Context, id int64) (*application.Tracking, error)
	History(ctx context.Context, id int64) ([]domain.Location, error)
	UpdateStatus(ctx context.Context, id int64, status domain.ShipmentStatus, notes string) (*ledger.PendingWrite, error)
	CreateShipment(ctx context.Context, f application.CreateForm) (*ledger.PendingWrite, error)
	UpdateEnvironment(ctx context.Context, id int64, temperature, humidity int64) (*ledger.PendingWrite, error)
	Write(id uuid.UUID) (*ledger.PendingWrite, bool)
	Statuses() []application.StatusOption
	Session() application.SessionView
}

var _ Service = (*application.TrackingService)(nil)

type ShipmentsHandler struct {
	svc Service
}

func NewShipmentsHandler(svc Service) *ShipmentsHandler {
	return &ShipmentsHandler{svc: svc}
}

func (h *ShipmentsHandler) Register(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/dashboard", h.Dashboard)
		r.Get("/session", h.Session)
		r.Get("/statuses", h.Statuses)

		r.Post("/shipments", h.CreateShipment)
		r.Get("/shipments/{id}", h.GetShipment)
		r.Get("/shipments/{id}/history", h.GetHistory)
		r.Post("/shipments/{id}/status", h.UpdateStatus)
		r.Post("/shipments/{id}/environment", h.UpdateEnvironment)

		r.Get("/writes/{writeID}", h.GetWrite)
	})
}

type locationRequest struct {
	Name      string `json:"name" validate:"required"`
	Latitude  string `json:"latitude" validate:"required"`
	Longitude string `json:"longitude" validate:"required"`
	// unix seconds
	Date int64 `json:"date" validate:"required,gt=0"`
}

type createRequest struct {
	ProductName          string          `json:"product_name" validate:"required"`
	Description          string          `json:"description" validate:"required"`
	Origin               locationRequest `json:"origin"`
	Destination          locationRequest `json:"destination"`
	EstimatedDelivery    int64           `json:"estimated_delivery" validate:"gte=0"`
	TemperatureSensitive bool            `json:"temperature_sensitive"`
	HumiditySensitive    bool            `json:"humidity_sensitive"`
	Supplier             string          `json:"supplier" validate:"omitempty,eth_addr"`
	Carrier              string          `json:"carrier" validate:"omitempty,eth_addr"`
	Receiver             string          `json:"receiver" validate:"omitempty,eth_addr"`
	DocumentsHash        string          `json:"documents_hash" validate:"omitempty,hexadecimal"`
}

type statusRequest struct {
	// label ("InTransit") or ordinal ("2")
	Status string `json:"status" validate:"required"`
	Notes  string `json:"notes"`
}

type environmentRequest struct {
	Temperature *int64 `json:"temperature" validate:"required,gte=0"`
	Humidity    *int64 `json:"humidity" validate:"required,gte=0"`
}

type writeView struct {
	ID         string    `json:"id"`
	Method     string    `json:"method"`
	ShipmentID int64     `json:"shipment_id,omitempty"`
	State      string    `json:"state"`
	TxHash     string    `json:"tx_hash,omitempty"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func viewOf(w *ledger.PendingWrite) writeView {
	v := writeView{
		ID:         w.ID.String(),
		Method:     w.Method,
		ShipmentID: w.ShipmentID,
		State:      w.State().String(),
		CreatedAt:  w.CreatedAt,
	}
	if tx := w.TxHash(); tx != (common.Hash{}) {
		v.TxHash = tx.Hex()
	}
	if err := w.Err(); err != nil {
		v.Error = err.Error()
	}
	return v
}

func (h *ShipmentsHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.Dashboard(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, d)
}

func (h *ShipmentsHandler) Session(w http.ResponseWriter, r *http.Request) {
	helpers.WriteJSON(w, http.StatusOK, h.svc.Session())
}

func (h *ShipmentsHandler) Statuses(w http.ResponseWriter, r *http.Request) {
	helpers.WriteJSON(w, http.StatusOK, h.svc.Statuses())
}

func (h *ShipmentsHandler) GetShipment(w http.ResponseWriter, r *http.Request) {
	id, err := helpers.IDParam(r, "id")
	if err != nil {
		helpers.HttpError(w, http.StatusBadRequest, err.Error())
		return
	}
	t, err := h.svc.Track(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, t)
}

func (h *ShipmentsHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	id, err := helpers.IDParam(r, "id")
	if err != nil {
		helpers.HttpError(w, http.StatusBadRequest, err.Error())
		return
	}
	hist, err := h.svc.History(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if hist == nil {
		hist = []domain.Location{}
	}
	helpers.WriteJSON(w, http.StatusOK, hist)
}

func (h *ShipmentsHandler) CreateShipment(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := helpers.DecodeAndValidate(r.Body, &req); err != nil {
		helpers.HttpError(w, http.StatusBadRequest, err.Error())
		return
	}

	f := application.CreateForm{
		ProductName:          req.ProductName,
		Description:          req.Description,
		OriginName:           req.Origin.Name,
		OriginLat:            req.Origin.Latitude,
		OriginLng:            req.Origin.Longitude,
		DestinationName:      req.Destination.Name,
		DestinationLat:       req.Destination.Latitude,
		DestinationLng:       req.Destination.Longitude,
		ShippedAt:            req.Origin.Date,
		ArrivesAt:            req.Destination.Date,
		EstimatedDelivery:    req.EstimatedDelivery,
		TemperatureSensitive: req.TemperatureSensitive,
		HumiditySensitive:    req.HumiditySensitive,
	}
	if req.Supplier != "" {
		f.Supplier = common.HexToAddress(req.Supplier)
	}
	if req.Carrier != "" {
		f.Carrier = common.HexToAddress(req.Carrier)
	}
	if req.Receiver != "" {
		f.Receiver = common.HexToAddress(req.Receiver)
	}
	if req.DocumentsHash != "" {
		f.DocumentsHash = common.HexToHash(req.DocumentsHash)
	}

	pw, err := h.svc.CreateShipment(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusAccepted, viewOf(pw))
}

func (h *ShipmentsHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := helpers.IDParam(r, "id")
	if err != nil {
		helpers.HttpError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req statusRequest
	if err := helpers.DecodeAndValidate(r.Body, &req); err != nil {
		helpers.HttpError(w, http.StatusBadRequest, err.Error())
		return
	}
	status, err := parseStatus(req.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}

	pw, err := h.svc.UpdateStatus(r.Context(), id, status, req.Notes)
	if err != nil {
		writeError(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusAccepted, viewOf(pw))
}

func (h *ShipmentsHandler) UpdateEnvironment(w http.ResponseWriter, r *http.Request) {
	id, err := helpers.IDParam(r, "id")
	if err != nil {
		helpers.HttpError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req environmentRequest
	if err := helpers.DecodeAndValidate(r.Body, &req); err != nil {
		helpers.HttpError(w, http.StatusBadRequest, err.Error())
		return
	}

	pw, err := h.svc.UpdateEnvironment(r.Context(), id, *req.Temperature, *req.Humidity)
	if err != nil {
		writeError(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusAccepted, viewOf(pw))
}

func (h *ShipmentsHandler) GetWrite(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "writeID"))
	if err != nil {
		helpers.HttpError(w, http.StatusBadRequest, "writeID must be a uuid")
		return
	}
	pw, ok := h.svc.Write(id)
	if !ok {
		helpers.HttpError(w, http.StatusNotFound, "write not found")
		return
	}
	helpers.WriteJSON(w, http.StatusOK, viewOf(pw))
}

func parseStatus(s string) (domain.ShipmentStatus, error) {
	if n, err := strconv.ParseUint(s, 10, 8); err == nil {
		return domain.StatusFromOrdinal(uint8(n)), nil
	}
	return domain.ParseStatus(s)
}
