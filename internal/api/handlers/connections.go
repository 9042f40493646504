package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/acme/call-connection/internal/audio"
	"github.com/acme/call-connection/internal/bluetooth"
	"github.com/acme/call-connection/internal/domain"
	connsvc "github.com/acme/call-connection/internal/service/connection"
)

type createConnectionRequest struct {
	Address       string            `json:"address"`
	Extras        map[string]string `json:"extras"`
	Direction     domain.Direction  `json:"direction"`
	AccountID     string            `json:"account_id"`
	ActivityClass string            `json:"activity_class"`
}

type answerRequest struct {
	VideoState *int `json:"video_state"`
}

type rejectRequest struct {
	Reason  *int   `json:"reason"`
	Message string `json:"message"`
}

type audioRouteRequest struct {
	Muted            bool               `json:"muted"`
	Route            int                `json:"route"`
	SupportedMask    int                `json:"supported_mask"`
	BluetoothDevices []bluetooth.Device `json:"bluetooth_devices"`
	ActiveBluetooth  *bluetooth.Device  `json:"active_bluetooth"`
}

type audioEndpointsRequest struct {
	Endpoints []audio.Endpoint `json:"endpoints"`
}

type muteRequest struct {
	Muted bool `json:"muted"`
}

type activityRequest struct {
	ActivityClass string `json:"activity_class"`
}

type connectionResponse struct {
	ID        uuid.UUID               `json:"id"`
	AccountID string                  `json:"account_id"`
	Address   string                  `json:"address"`
	Direction domain.Direction        `json:"direction"`
	Status    domain.ConnectionStatus `json:"status"`
	Cause     domain.DisconnectCause  `json:"cause,omitempty"`
	CallState domain.CallState        `json:"call_state"`
	Audio     domain.AudioRouteSet    `json:"audio"`
	Active    bool                    `json:"active"`
	CreatedAt time.Time               `json:"created_at"`
}

type eventResponse struct {
	ID         uuid.UUID                  `json:"id"`
	Type       domain.ConnectionEventType `json:"type"`
	Status     domain.ConnectionStatus    `json:"status"`
	Cause      domain.DisconnectCause     `json:"cause,omitempty"`
	OccurredAt time.Time                  `json:"occurred_at"`
}

func (h *HandlerSet) createConnection(ctx *fiber.Ctx) error {
	var req createConnectionRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}

	snap, err := h.connections.Create(ctx.UserContext(), connsvc.CreateInput{
		Address:       req.Address,
		Extras:        req.Extras,
		Direction:     req.Direction,
		AccountID:     req.AccountID,
		ActivityClass: req.ActivityClass,
	})
	if err != nil {
		return translateError(err)
	}

	return ctx.Status(http.StatusCreated).JSON(toConnectionResponse(snap))
}

func (h *HandlerSet) listConnections(ctx *fiber.Ctx) error {
	snaps := h.connections.List(ctx.UserContext())
	resp := make([]connectionResponse, 0, len(snaps))
	for _, snap := range snaps {
		resp = append(resp, toConnectionResponse(snap))
	}
	return ctx.Status(http.StatusOK).JSON(resp)
}

func (h *HandlerSet) getConnection(ctx *fiber.Ctx) error {
	id, err := connectionID(ctx)
	if err != nil {
		return err
	}
	snap, err := h.connections.Get(ctx.UserContext(), id)
	if err != nil {
		return translateError(err)
	}
	return ctx.Status(http.StatusOK).JSON(toConnectionResponse(snap))
}

func (h *HandlerSet) listConnectionEvents(ctx *fiber.Ctx) error {
	if h.events == nil {
		return fiber.NewError(http.StatusServiceUnavailable, "event history unavailable")
	}
	id, err := connectionID(ctx)
	if err != nil {
		return err
	}

	limit := 100
	if raw := ctx.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return fiber.NewError(http.StatusBadRequest, "invalid limit")
		}
		limit = parsed
	}

	events, err := h.events.ListEvents(ctx.UserContext(), id, limit)
	if err != nil {
		return translateError(err)
	}
	resp := make([]eventResponse, 0, len(events))
	for _, ev := range events {
		resp = append(resp, eventResponse{
			ID:         ev.ID,
			Type:       ev.Type,
			Status:     ev.Status,
			Cause:      ev.Cause,
			OccurredAt: ev.OccurredAt,
		})
	}
	return ctx.Status(http.StatusOK).JSON(resp)
}

func (h *HandlerSet) answer(ctx *fiber.Ctx) error {
	var req answerRequest
	if len(ctx.Body()) > 0 {
		if err := ctx.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, "invalid request body")
		}
	}
	return h.gesture(ctx, func(id uuid.UUID) (connsvc.Snapshot, error) {
		return h.connections.Answer(ctx.UserContext(), id, req.VideoState)
	})
}

func (h *HandlerSet) reject(ctx *fiber.Ctx) error {
	var req rejectRequest
	if len(ctx.Body()) > 0 {
		if err := ctx.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, "invalid request body")
		}
	}
	return h.gesture(ctx, func(id uuid.UUID) (connsvc.Snapshot, error) {
		return h.connections.Reject(ctx.UserContext(), id, connsvc.RejectInput{Reason: req.Reason, Message: req.Message})
	})
}

func (h *HandlerSet) hold(ctx *fiber.Ctx) error {
	return h.gesture(ctx, func(id uuid.UUID) (connsvc.Snapshot, error) {
		return h.connections.Hold(ctx.UserContext(), id)
	})
}

func (h *HandlerSet) abort(ctx *fiber.Ctx) error {
	return h.gesture(ctx, func(id uuid.UUID) (connsvc.Snapshot, error) {
		return h.connections.Abort(ctx.UserContext(), id)
	})
}

func (h *HandlerSet) disconnect(ctx *fiber.Ctx) error {
	return h.gesture(ctx, func(id uuid.UUID) (connsvc.Snapshot, error) {
		return h.connections.Disconnect(ctx.UserContext(), id)
	})
}

func (h *HandlerSet) showIncomingUI(ctx *fiber.Ctx) error {
	return h.gesture(ctx, func(id uuid.UUID) (connsvc.Snapshot, error) {
		return h.connections.ShowIncomingCallUI(ctx.UserContext(), id)
	})
}

func (h *HandlerSet) silence(ctx *fiber.Ctx) error {
	return h.gesture(ctx, func(id uuid.UUID) (connsvc.Snapshot, error) {
		return h.connections.Silence(ctx.UserContext(), id)
	})
}

func (h *HandlerSet) pushCallState(ctx *fiber.Ctx) error {
	var req domain.CallState
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	return h.gesture(ctx, func(id uuid.UUID) (connsvc.Snapshot, error) {
		return h.connections.PushCallState(ctx.UserContext(), id, req)
	})
}

func (h *HandlerSet) gesture(ctx *fiber.Ctx, fn func(id uuid.UUID) (connsvc.Snapshot, error)) error {
	id, err := connectionID(ctx)
	if err != nil {
		return err
	}
	snap, err := fn(id)
	if err != nil {
		return translateError(err)
	}
	return ctx.Status(http.StatusOK).JSON(toConnectionResponse(snap))
}

func (h *HandlerSet) getAudio(ctx *fiber.Ctx) error {
	id, err := connectionID(ctx)
	if err != nil {
		return err
	}
	snap, err := h.connections.Get(ctx.UserContext(), id)
	if err != nil {
		return translateError(err)
	}
	return ctx.Status(http.StatusOK).JSON(snap.Audio)
}

func (h *HandlerSet) audioRoute(ctx *fiber.Ctx) error {
	var req audioRouteRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	return h.applyAudio(ctx, audio.BitmaskEvent{
		Muted:            req.Muted,
		Route:            audio.Route(req.Route),
		SupportedMask:    audio.Route(req.SupportedMask),
		BluetoothDevices: req.BluetoothDevices,
		ActiveBluetooth:  req.ActiveBluetooth,
	})
}

func (h *HandlerSet) audioEndpoints(ctx *fiber.Ctx) error {
	var req audioEndpointsRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	return h.applyAudio(ctx, audio.EndpointsEvent{Endpoints: req.Endpoints})
}

func (h *HandlerSet) audioEndpoint(ctx *fiber.Ctx) error {
	var req audio.Endpoint
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	return h.applyAudio(ctx, audio.EndpointChangedEvent{Endpoint: req})
}

func (h *HandlerSet) audioMute(ctx *fiber.Ctx) error {
	var req muteRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	return h.applyAudio(ctx, audio.MuteEvent{Muted: req.Muted})
}

func (h *HandlerSet) applyAudio(ctx *fiber.Ctx, event audio.RouteEvent) error {
	id, err := connectionID(ctx)
	if err != nil {
		return err
	}
	routes, err := h.connections.ApplyAudio(ctx.UserContext(), id, event)
	if err != nil {
		return translateError(err)
	}
	return ctx.Status(http.StatusOK).JSON(routes)
}

func (h *HandlerSet) audioOutput(ctx *fiber.Ctx) error {
	var req domain.AudioOutput
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	id, err := connectionID(ctx)
	if err != nil {
		return err
	}
	routes, err := h.connections.SetAudioOutput(ctx.UserContext(), id, req)
	if err != nil {
		return translateError(err)
	}
	return ctx.Status(http.StatusAccepted).JSON(routes)
}

func (h *HandlerSet) activity(ctx *fiber.Ctx) error {
	var req activityRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	id, err := connectionID(ctx)
	if err != nil {
		return err
	}
	routes, err := h.connections.Activity(ctx.UserContext(), id, connsvc.ActivityKind(ctx.Params("event")), req.ActivityClass)
	if err != nil {
		return translateError(err)
	}
	return ctx.Status(http.StatusOK).JSON(routes)
}

func (h *HandlerSet) disconnectStats(ctx *fiber.Ctx) error {
	if h.stats == nil {
		return fiber.NewError(http.StatusServiceUnavailable, "statistics unavailable")
	}
	stats, err := h.stats.Get(ctx.UserContext(), ctx.Params("account"))
	if err != nil {
		return translateError(err)
	}
	return ctx.Status(http.StatusOK).JSON(fiber.Map{
		"account_id": stats.AccountID,
		"counts":     stats.Counts,
		"total":      stats.Total,
		"updated_at": stats.UpdatedAt,
	})
}

func connectionID(ctx *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return uuid.Nil, fiber.NewError(http.StatusBadRequest, "invalid connection id")
	}
	return id, nil
}

func toConnectionResponse(snap connsvc.Snapshot) connectionResponse {
	return connectionResponse{
		ID:        snap.ID,
		AccountID: snap.AccountID,
		Address:   snap.Address,
		Direction: snap.Direction,
		Status:    snap.State.Status,
		Cause:     snap.State.Cause,
		CallState: snap.CallState,
		Audio:     snap.Audio,
		Active:    snap.ScopeAlive,
		CreatedAt: snap.CreatedAt,
	}
}
