package controller

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sharetube/watchparty/internal/service/room"
)

func (c *controller) healthz(w http.ResponseWriter, r *http.Request) {
	if err := c.roomService.Ping(r.Context()); err != nil {
		c.logger.WarnContext(r.Context(), "health check failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("UNAVAILABLE"))
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

type createRoomRequest struct {
	Title string `json:"title" validate:"max=256"`
}

func (c *controller) createRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if err := c.readJSON(r, &req); err != nil {
		c.writeError(w, r, err)
		return
	}

	if validationErrors, ok := c.validate.Validate(req); !ok {
		c.writeValidationErrors(w, validationErrors)
		return
	}

	res, err := c.roomService.CreateRoom(r.Context(), &room.CreateRoomParams{
		Principal: c.getPrincipalFromCtx(r.Context()),
		Title:     req.Title,
	})
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	c.writeJSON(w, http.StatusCreated, envelope{"data": envelope{
		"room":  res.Room,
		"owner": res.Owner,
	}})
}

func (c *controller) getRoom(w http.ResponseWriter, r *http.Request) {
	res, err := c.roomService.GetRoomState(r.Context(), &room.GetRoomStateParams{
		Principal: c.getPrincipalFromCtx(r.Context()),
		RoomId:    chi.URLParam(r, "room-id"),
	})
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	c.writeJSON(w, http.StatusOK, envelope{"data": envelope{
		"room":    res.Room,
		"members": res.Members,
	}})
}

func (c *controller) deleteRoom(w http.ResponseWriter, r *http.Request) {
	if err := c.roomService.DeleteRoom(r.Context(), &room.DeleteRoomParams{
		Principal: c.getPrincipalFromCtx(r.Context()),
		RoomId:    chi.URLParam(r, "room-id"),
	}); err != nil {
		c.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type inviteMemberRequest struct {
	UserId     string `json:"userId" validate:"required,max=64"`
	Name       string `json:"name" validate:"max=64"`
	CanControl bool   `json:"canControl"`
	CanInvite  bool   `json:"canInvite"`
}

func (c *controller) inviteMember(w http.ResponseWriter, r *http.Request) {
	var req inviteMemberRequest
	if err := c.readJSON(r, &req); err != nil {
		c.writeError(w, r, err)
		return
	}

	if validationErrors, ok := c.validate.Validate(req); !ok {
		c.writeValidationErrors(w, validationErrors)
		return
	}

	member, err := c.roomService.InviteMember(r.Context(), &room.InviteMemberParams{
		Principal:  c.getPrincipalFromCtx(r.Context()),
		RoomId:     chi.URLParam(r, "room-id"),
		UserId:     req.UserId,
		Username:   req.Name,
		CanControl: req.CanControl,
		CanInvite:  req.CanInvite,
	})
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	c.writeJSON(w, http.StatusOK, envelope{"data": member})
}

func (c *controller) listSyncEvents(w http.ResponseWriter, r *http.Request) {
	since, err := c.getQueryInt(r, "since")
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	limit, err := c.getQueryInt(r, "limit")
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	params := &room.ListSyncEventsParams{
		Principal: c.getPrincipalFromCtx(r.Context()),
		RoomId:    chi.URLParam(r, "room-id"),
		Limit:     int(limit),
	}
	if since > 0 {
		params.Since = time.UnixMilli(since)
	}

	events, err := c.roomService.ListSyncEvents(r.Context(), params)
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	c.writeJSON(w, http.StatusOK, envelope{"data": events})
}
