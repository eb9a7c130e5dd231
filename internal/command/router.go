// Package command maps the inbound command surface onto the session manager
// and broadcast controller. Front ends (cobra CLI, a future GUI) call
// Dispatch with a method name and JSON params and get back a payload or a
// structured error; no session logic lives on their side.
package command

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/nextlevelbuilder/livectl/internal/live"
	"github.com/nextlevelbuilder/livectl/internal/request"
	"github.com/nextlevelbuilder/livectl/internal/session"
	"github.com/nextlevelbuilder/livectl/pkg/protocol"
)

// Handler processes one method invocation.
type Handler func(ctx context.Context, params json.RawMessage) (any, error)

// Router dispatches command-surface methods.
type Router struct {
	sessions *session.Manager
	rooms    *live.Controller
	handlers map[string]Handler
}

// NewRouter wires the command surface over the core components.
func NewRouter(sessions *session.Manager, rooms *live.Controller) *Router {
	r := &Router{
		sessions: sessions,
		rooms:    rooms,
		handlers: make(map[string]Handler),
	}
	r.handlers[protocol.MethodLoginStart] = r.handleLoginStart
	r.handlers[protocol.MethodLoginPoll] = r.handleLoginPoll
	r.handlers[protocol.MethodLoginRefresh] = r.handleLoginRefresh
	r.handlers[protocol.MethodLogout] = r.handleLogout
	r.handlers[protocol.MethodRoomInfo] = r.handleRoomInfo
	r.handlers[protocol.MethodRoomUpdate] = r.handleRoomUpdate
	r.handlers[protocol.MethodLiveStart] = r.handleLiveStart
	r.handlers[protocol.MethodLiveStop] = r.handleLiveStop
	r.handlers[protocol.MethodAreasList] = r.handleAreasList
	r.handlers[protocol.MethodAccountInfo] = r.handleAccountInfo
	return r
}

// Dispatch routes one invocation and shapes the outcome.
func (r *Router) Dispatch(ctx context.Context, method string, params json.RawMessage) *protocol.Response {
	handler, ok := r.handlers[method]
	if !ok {
		slog.Warn("unknown method", "method", method)
		return protocol.NewErrorResponse(protocol.ErrInvalidRequest, "unknown method: "+method)
	}

	payload, err := handler(ctx, params)
	if err != nil {
		return &protocol.Response{OK: false, Error: shapeError(err)}
	}
	return protocol.NewOKResponse(payload)
}

func (r *Router) handleLoginStart(ctx context.Context, _ json.RawMessage) (any, error) {
	snap, err := r.sessions.Start(ctx)
	if err != nil {
		return nil, err
	}
	return snap, nil
}

func (r *Router) handleLoginPoll(ctx context.Context, _ json.RawMessage) (any, error) {
	snap, err := r.sessions.Poll(ctx)
	if err != nil {
		return nil, err
	}
	return snap, nil
}

func (r *Router) handleLoginRefresh(ctx context.Context, _ json.RawMessage) (any, error) {
	snap, err := r.sessions.Refresh(ctx)
	if err != nil {
		return nil, err
	}
	return snap, nil
}

func (r *Router) handleLogout(_ context.Context, _ json.RawMessage) (any, error) {
	if err := r.sessions.Logout(); err != nil {
		return nil, err
	}
	return r.sessions.Snapshot(), nil
}

func (r *Router) handleRoomInfo(ctx context.Context, _ json.RawMessage) (any, error) {
	return r.rooms.RoomInfo(ctx)
}

func (r *Router) handleRoomUpdate(ctx context.Context, params json.RawMessage) (any, error) {
	var p struct {
		Title        *string `json:"title"`
		ParentAreaID *int64  `json:"parent_area_id"`
		AreaID       *int64  `json:"area_id"`
	}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, request.Validation("bad params: %v", err)
		}
	}

	room, audit, err := r.rooms.UpdateRoom(ctx, live.UpdateRequest{
		Title:        p.Title,
		ParentAreaID: p.ParentAreaID,
		AreaID:       p.AreaID,
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"room": room, "audit": audit}, nil
}

func (r *Router) handleLiveStart(ctx context.Context, params json.RawMessage) (any, error) {
	var p struct {
		AreaID int64 `json:"area_id"`
	}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, request.Validation("bad params: %v", err)
		}
	}
	if p.AreaID == 0 {
		return nil, request.Validation("area_id is required")
	}
	return r.rooms.StartBroadcast(ctx, p.AreaID)
}

func (r *Router) handleLiveStop(ctx context.Context, _ json.RawMessage) (any, error) {
	if err := r.rooms.StopBroadcast(ctx); err != nil {
		return nil, err
	}
	return map[string]any{"stopped": true}, nil
}

func (r *Router) handleAreasList(ctx context.Context, params json.RawMessage) (any, error) {
	var p struct {
		Refresh bool `json:"refresh"`
	}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, request.Validation("bad params: %v", err)
		}
	}
	if p.Refresh {
		if err := r.rooms.RefreshAreas(ctx); err != nil {
			// The shipped table still answers; refresh failure is advisory.
			slog.Warn("area refresh failed", "error", err)
		}
	}
	return r.rooms.Areas(), nil
}

func (r *Router) handleAccountInfo(ctx context.Context, _ json.RawMessage) (any, error) {
	return r.rooms.AccountInfo(ctx)
}

// shapeError converts core errors into the wire error shape.
func shapeError(err error) *protocol.ErrorShape {
	re, ok := request.As(err)
	if !ok {
		return &protocol.ErrorShape{Code: protocol.ErrInternal, Message: err.Error()}
	}

	shape := &protocol.ErrorShape{Message: re.Message}
	switch re.Kind {
	case request.KindValidation:
		shape.Code = protocol.ErrInvalidRequest
	case request.KindAuthRejected:
		shape.Code = protocol.ErrUnauthorized
	case request.KindNetworkTransient:
		shape.Code = protocol.ErrUnavailable
		shape.Retryable = true
	case request.KindRiskControl:
		shape.Code = protocol.ErrResourceExhausted
		shape.Retryable = true
		shape.RetryAfterMs = 30_000
	case request.KindRemoteBusiness:
		shape.Code = protocol.ErrFailedPrecondition
		if re.Code != 0 {
			shape.Details = map[string]int64{"remote_code": re.Code}
		}
	case request.KindPersistence:
		shape.Code = protocol.ErrStorage
	default:
		shape.Code = protocol.ErrInternal
	}
	return shape
}
