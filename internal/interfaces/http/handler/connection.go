package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rezintelhelp-hub/hotel-booking-system-sub000/internal/domain/channel"
	"github.com/rezintelhelp-hub/hotel-booking-system-sub000/internal/interfaces/http/dto"
)

// SyncRunner runs one full synchronization pass inline.
type SyncRunner interface {
	FullSync(ctx context.Context, connectionID uuid.UUID) (*channel.SyncLog, error)
}

// SyncTrigger enqueues an incremental sync on the background scheduler.
type SyncTrigger interface {
	Submit(connectionID uuid.UUID) error
}

// ConnectionHandler handles PMS connection API endpoints
type ConnectionHandler struct {
	BaseHandler
	connections  channel.ConnectionRepository
	syncLogs     channel.SyncLogRepository
	reservations channel.ReservationRepository
	registry     channel.AdapterRegistry
	runner       SyncRunner
	trigger      SyncTrigger
}

// NewConnectionHandler creates a new ConnectionHandler
func NewConnectionHandler(
	connections channel.ConnectionRepository,
	syncLogs channel.SyncLogRepository,
	reservations channel.ReservationRepository,
	registry channel.AdapterRegistry,
	runner SyncRunner,
	trigger SyncTrigger,
) *ConnectionHandler {
	return &ConnectionHandler{
		connections:  connections,
		syncLogs:     syncLogs,
		reservations: reservations,
		registry:     registry,
		runner:       runner,
		trigger:      trigger,
	}
}

// TriggerSyncRequest selects the sync type for a manual trigger.
type TriggerSyncRequest struct {
	Type string `json:"type" binding:"omitempty,oneof=full incremental"`
}

// ListIntegrations returns every integration code the registry can resolve.
func (h *ConnectionHandler) ListIntegrations(c *gin.Context) {
	codes := h.registry.SupportedCodes()
	out := make([]string, 0, len(codes))
	for _, code := range codes {
		out = append(out, code.String())
	}
	h.Success(c, out)
}

// Create registers a connection, verifies its credentials against the live
// PMS API, and persists it in connected status.
func (h *ConnectionHandler) Create(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.BadRequest(c, "Invalid user ID")
		return
	}

	var req dto.CreateConnectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	conn, err := channel.NewConnection(userID, channel.IntegrationCode(req.IntegrationCode), req.Credentials)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if err := applySettings(conn, req.SyncInterval, req.DefaultCurrency, req.LookaheadDays, req.Toggles); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	adapter, err := h.registry.GetAdapter(conn)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if err := adapter.TestConnection(c.Request.Context()); err != nil {
		h.HandleError(c, err)
		return
	}
	conn.MarkConnected()

	if err := h.connections.Save(c.Request.Context(), conn); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, dto.NewConnectionResponse(conn))
}

// Get returns one connection by ID.
func (h *ConnectionHandler) Get(c *gin.Context) {
	id, ok := h.connectionID(c)
	if !ok {
		return
	}
	conn, err := h.connections.FindByID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewConnectionResponse(conn))
}

// Update changes sync settings on an existing connection.
func (h *ConnectionHandler) Update(c *gin.Context) {
	id, ok := h.connectionID(c)
	if !ok {
		return
	}
	var req dto.UpdateConnectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	conn, err := h.connections.FindByID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if err := applySettings(conn, req.SyncInterval, req.DefaultCurrency, req.LookaheadDays, req.Toggles); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	conn.UpdatedAt = time.Now()

	if err := h.connections.Save(c.Request.Context(), conn); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewConnectionResponse(conn))
}

// Reconnect re-verifies credentials and clears the error state so the
// scheduler picks the connection up again.
func (h *ConnectionHandler) Reconnect(c *gin.Context) {
	id, ok := h.connectionID(c)
	if !ok {
		return
	}
	conn, err := h.connections.FindByID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	adapter, err := h.registry.GetAdapter(conn)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if err := adapter.TestConnection(c.Request.Context()); err != nil {
		h.HandleError(c, err)
		return
	}
	conn.MarkConnected()

	if err := h.connections.Save(c.Request.Context(), conn); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewConnectionResponse(conn))
}

// TriggerSync starts a sync for the connection. Full syncs run inline and
// return the completed log; incremental syncs are handed to the scheduler.
func (h *ConnectionHandler) TriggerSync(c *gin.Context) {
	id, ok := h.connectionID(c)
	if !ok {
		return
	}
	var req TriggerSyncRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		h.BadRequest(c, err.Error())
		return
	}

	if req.Type == channel.SyncTypeFull.String() {
		log, err := h.runner.FullSync(c.Request.Context(), id)
		if err != nil {
			h.HandleError(c, err)
			return
		}
		h.Success(c, dto.NewSyncLogResponse(log))
		return
	}

	if err := h.trigger.Submit(id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Accepted(c, gin.H{"status": "queued"})
}

// ListSyncLogs returns the connection's recent sync history, newest first.
func (h *ConnectionHandler) ListSyncLogs(c *gin.Context) {
	id, ok := h.connectionID(c)
	if !ok {
		return
	}
	req := dto.DefaultListRequest()
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	logs, err := h.syncLogs.ListByConnection(c.Request.Context(), id, req.PageSize)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	out := make([]dto.SyncLogResponse, 0, len(logs))
	for i := range logs {
		out = append(out, dto.NewSyncLogResponse(&logs[i]))
	}
	h.Success(c, out)
}

// ListReservations returns the connection's synced reservations.
func (h *ConnectionHandler) ListReservations(c *gin.Context) {
	id, ok := h.connectionID(c)
	if !ok {
		return
	}
	req := dto.DefaultListRequest()
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	opts := channel.ListOptions{Page: req.Page, PageSize: req.PageSize}
	opts.Validate()
	reservations, err := h.reservations.ListByConnection(c.Request.Context(), id, opts)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	out := make([]dto.ReservationResponse, 0, len(reservations))
	for i := range reservations {
		out = append(out, dto.NewReservationResponse(&reservations[i]))
	}
	h.Success(c, out)
}

// connectionID binds and parses the :id path parameter.
func (h *ConnectionHandler) connectionID(c *gin.Context) (uuid.UUID, bool) {
	var req dto.IDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		h.BadRequest(c, "Invalid connection ID")
		return uuid.Nil, false
	}
	id, err := uuid.Parse(req.ID)
	if err != nil {
		h.BadRequest(c, "Invalid connection ID")
		return uuid.Nil, false
	}
	return id, true
}

// applySettings copies optional request settings onto the connection.
func applySettings(conn *channel.Connection, interval, currency string, lookahead int, toggles *dto.SyncTogglesRequest) error {
	if interval != "" {
		d, err := time.ParseDuration(interval)
		if err != nil {
			return err
		}
		conn.SyncInterval = d
	}
	if currency != "" {
		conn.DefaultCurrency = currency
	}
	if lookahead > 0 {
		conn.LookaheadDays = lookahead
	}
	if toggles != nil {
		conn.Toggles = channel.SyncToggles{
			Properties:   toggles.Properties,
			Reservations: toggles.Reservations,
			Availability: toggles.Availability,
			Rates:        toggles.Rates,
		}
	}
	return nil
}
