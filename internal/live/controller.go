// Package live is the broadcast controller: room metadata reads and
// mutations, broadcast start/stop, and area validation. The remote service is
// the source of truth for room state; nothing here is cached beyond a single
// call.
package live

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nextlevelbuilder/livectl/internal/credential"
	"github.com/nextlevelbuilder/livectl/internal/platform"
	"github.com/nextlevelbuilder/livectl/internal/request"
)

// RoomAPI is the slice of the platform client the controller needs.
type RoomAPI interface {
	RoomInfo(ctx context.Context, cred *credential.Credential) (*platform.Room, error)
	UpdateRoom(ctx context.Context, cred *credential.Credential, roomID int64, title *string, areaID *int64) (*platform.AuditInfo, error)
	StartLive(ctx context.Context, cred *credential.Credential, roomID, areaID int64) (*platform.StreamCredential, error)
	StopLive(ctx context.Context, cred *credential.Credential, roomID int64) error
	AreaList(ctx context.Context) ([]platform.AreaGroup, error)
	AccountInfo(ctx context.Context, cred *credential.Credential) (*platform.Account, error)
}

// Session is the hook back into the lifecycle manager: the controller needs
// the current credential and must report remote auth rejections.
type Session interface {
	Credential() (*credential.Credential, error)
	Expire()
}

// UpdateRequest carries the optional room mutation fields. Nil fields are
// left untouched server-side.
type UpdateRequest struct {
	Title        *string
	ParentAreaID *int64
	AreaID       *int64
}

// Controller mediates all room operations. Mutating calls are serialized;
// reads may run concurrently.
type Controller struct {
	api     RoomAPI
	session Session
	areas   *AreaTable

	mu sync.Mutex // at-most-one in-flight mutating call
}

// NewController creates a controller over the given API and session.
func NewController(api RoomAPI, session Session, areas *AreaTable) *Controller {
	if areas == nil {
		areas = NewAreaTable()
	}
	return &Controller{api: api, session: session, areas: areas}
}

// Areas returns the current partition hierarchy.
func (c *Controller) Areas() []platform.AreaGroup {
	return c.areas.Groups()
}

// RefreshAreas replaces the shipped hierarchy with the remote one.
func (c *Controller) RefreshAreas(ctx context.Context) error {
	groups, err := c.api.AreaList(ctx)
	if err != nil {
		return err
	}
	c.areas.Replace(groups)
	slog.Debug("area table refreshed", "parents", len(groups))
	return nil
}

// RoomInfo fetches the operator's room. Read-only, safe concurrently.
func (c *Controller) RoomInfo(ctx context.Context) (*platform.Room, error) {
	cred, err := c.session.Credential()
	if err != nil {
		return nil, err
	}
	room, err := c.api.RoomInfo(ctx, cred)
	return room, c.observe(err)
}

// AccountInfo fetches the logged-in account profile.
func (c *Controller) AccountInfo(ctx context.Context) (*platform.Account, error) {
	cred, err := c.session.Credential()
	if err != nil {
		return nil, err
	}
	acct, err := c.api.AccountInfo(ctx, cred)
	return acct, c.observe(err)
}

// UpdateRoom applies the provided fields and returns the resulting room
// state. An area change requires both halves of the pair and is validated
// locally before any request is issued.
func (c *Controller) UpdateRoom(ctx context.Context, req UpdateRequest) (*platform.Room, *platform.AuditInfo, error) {
	if req.Title == nil && req.AreaID == nil {
		return nil, nil, request.Validation("nothing to update")
	}
	if req.Title != nil && *req.Title == "" {
		return nil, nil, request.Validation("title must not be empty")
	}
	if req.AreaID != nil {
		if req.ParentAreaID == nil {
			return nil, nil, request.Validation("area change requires the parent area")
		}
		if !c.areas.ValidatePair(*req.ParentAreaID, *req.AreaID) {
			return nil, nil, request.Validation("area %d does not belong to parent %d", *req.AreaID, *req.ParentAreaID)
		}
	}

	cred, err := c.session.Credential()
	if err != nil {
		return nil, nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	room, err := c.api.RoomInfo(ctx, cred)
	if err != nil {
		return nil, nil, c.observe(err)
	}

	audit, err := c.api.UpdateRoom(ctx, cred, room.RoomID, req.Title, req.AreaID)
	if err != nil {
		return nil, nil, c.observe(err)
	}

	updated, err := c.api.RoomInfo(ctx, cred)
	if err != nil {
		return nil, audit, c.observe(err)
	}
	return updated, audit, nil
}

// StartBroadcast switches the room live in the given area and returns the
// short-lived RTMP ingest credential. Fails when the room is already live;
// callers are expected to check RoomInfo first.
func (c *Controller) StartBroadcast(ctx context.Context, areaID int64) (*platform.StreamCredential, error) {
	if _, ok := c.areas.Lookup(areaID); !ok {
		return nil, request.Validation("unknown area %d", areaID)
	}

	cred, err := c.session.Credential()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	room, err := c.api.RoomInfo(ctx, cred)
	if err != nil {
		return nil, c.observe(err)
	}
	if room.Live {
		return nil, request.Business(0, "room is already live")
	}

	stream, err := c.api.StartLive(ctx, cred, room.RoomID, areaID)
	if err != nil {
		return nil, c.observe(err)
	}
	slog.Info("broadcast started", "room", room.RoomID, "area", areaID)
	return stream, nil
}

// StopBroadcast switches the room offline. Fails when the room is not live;
// any cached stream credential must be discarded by the caller.
func (c *Controller) StopBroadcast(ctx context.Context) error {
	cred, err := c.session.Credential()
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	room, err := c.api.RoomInfo(ctx, cred)
	if err != nil {
		return c.observe(err)
	}
	if !room.Live {
		return request.Business(0, "room is not live")
	}

	if err := c.api.StopLive(ctx, cred, room.RoomID); err != nil {
		return c.observe(err)
	}
	slog.Info("broadcast stopped", "room", room.RoomID)
	return nil
}

// observe funnels remote auth rejections into the session lifecycle: the
// credential is dead, the caller must re-authenticate.
func (c *Controller) observe(err error) error {
	if err == nil {
		return nil
	}
	if request.IsKind(err, request.KindAuthRejected) {
		c.session.Expire()
		return fmt.Errorf("session expired: %w", err)
	}
	return err
}
