package rest

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/zeebo/xxh3"

	"github.com/totegamma/sketchroom/internal/present/realtime"
	"github.com/totegamma/sketchroom/internal/present/rest/middleware"
	"github.com/totegamma/sketchroom/internal/present/rest/presenter"
	"github.com/totegamma/sketchroom/internal/usecase"
)

type Handler struct {
	session *usecase.Session
	hub     *realtime.Hub
	admin   *middleware.AdminMiddleware
}

func NewHandler(
	session *usecase.Session,
	hub *realtime.Hub,
	admin *middleware.AdminMiddleware,
) *Handler {
	return &Handler{
		session: session,
		hub:     hub,
		admin:   admin,
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws", h.handleRealtime)
	e.GET("/healthz", h.handleHealth)
	e.GET("/history", h.handleHistory)
	e.GET("/snapshot", h.handleSnapshot)
	e.GET("/presence", h.handlePresence)
	e.POST("/admin/reset", h.handleReset, h.admin.RequireAdmin)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func (h *Handler) handleRealtime(c echo.Context) error {
	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Error(
			"Failed to upgrade WebSocket",
			slog.String("error", err.Error()),
			slog.String("module", "socket"),
		)
		return err
	}

	h.hub.Serve(c.Request().Context(), ws, h.session)
	return nil
}

func (h *Handler) handleHealth(c echo.Context) error {
	stats := h.session.Stats()
	return presenter.OK(c, echo.Map{
		"status":      "ok",
		"connections": stats.Connections,
		"sockets":     h.hub.Count(),
		"strokes":     stats.Strokes,
	})
}

func (h *Handler) handleHistory(c echo.Context) error {
	return presenter.OK(c, h.session.History())
}

func (h *Handler) handleSnapshot(c echo.Context) error {
	ctx := c.Request().Context()

	snapshot, ok, err := h.session.Snapshot(ctx)
	if err != nil {
		return presenter.InternalError(c, err)
	}
	if !ok {
		return presenter.NotFound(c, "no snapshot yet")
	}

	etag := `"` + strconv.FormatUint(xxh3.HashString(snapshot.ImageData), 16) + `"`
	c.Response().Header().Set("ETag", etag)
	c.Response().Header().Set("Cache-Control", "no-cache")
	if c.Request().Header.Get("If-None-Match") == etag {
		return c.NoContent(http.StatusNotModified)
	}
	return presenter.OK(c, snapshot)
}

func (h *Handler) handlePresence(c echo.Context) error {
	return presenter.OK(c, h.session.Presence())
}

func (h *Handler) handleReset(c echo.Context) error {
	ctx := c.Request().Context()

	err := h.session.Reset(ctx)
	if err != nil {
		return presenter.InternalError(c, err)
	}
	return presenter.OK(c, echo.Map{"status": "ok"})
}
