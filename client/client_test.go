package client

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/totegamma/sketchroom"
	"github.com/totegamma/sketchroom/internal/domain"
	"github.com/totegamma/sketchroom/internal/infra/repository"
	"github.com/totegamma/sketchroom/internal/present/realtime"
	"github.com/totegamma/sketchroom/internal/present/rest"
	"github.com/totegamma/sketchroom/internal/present/rest/middleware"
	"github.com/totegamma/sketchroom/internal/usecase"
)

func newServer(t *testing.T) (*httptest.Server, *usecase.Session) {
	t.Helper()
	hub := realtime.NewHub(sketchroom.DefaultLimits())
	session := usecase.NewSession(domain.DefaultCanvasConfig(), repository.NewMemorySnapshotRepository(), hub)

	e := echo.New()
	rest.NewHandler(session, hub, middleware.NewAdminMiddleware("secret")).RegisterRoutes(e)

	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return srv, session
}

func TestClientReadsCanvas(t *testing.T) {
	srv, session := newServer(t)
	ctx := context.Background()

	session.Connect(ctx, "c1")
	require.NoError(t, session.Handle(ctx, "c1", sketchroom.AddStroke{
		ID:       "s1",
		Segments: []domain.Segment{{X1: 1, Y1: 1, Color: "red", Size: 2}},
	}))

	c := New(srv.URL+"/", "secret")

	health, err := c.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, 1, health.Strokes)

	history, err := c.History(ctx)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "s1", history[0].ID)

	// a connection that never moved its cursor is not shown
	presence, err := c.Presence(ctx)
	require.NoError(t, err)
	assert.NotContains(t, presence, "c1")

	require.NoError(t, session.Handle(ctx, "c1", sketchroom.MouseMove{X: 0.2, Y: 0.3}))
	session.Connect(ctx, "c2")

	presence, err = c.Presence(ctx)
	require.NoError(t, err)
	require.Contains(t, presence, "c1")
	assert.NotContains(t, presence, "c2")
	assert.Equal(t, 0.2, presence["c1"].X)
	assert.Equal(t, 0.3, presence["c1"].Y)
}

func TestClientSnapshotRevalidates(t *testing.T) {
	srv, session := newServer(t)
	ctx := context.Background()
	c := New(srv.URL, "secret")

	_, ok, err := c.Snapshot(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	session.Connect(ctx, "c1")
	require.NoError(t, session.Handle(ctx, "c1", sketchroom.CanvasSnapshot{DataURL: "data:image/png;base64,AAAA"}))

	first, ok, err := c.Snapshot(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "data:image/png;base64,AAAA", first.ImageData)

	second, ok, err := c.Snapshot(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, first, second)
}

func TestClientReset(t *testing.T) {
	srv, session := newServer(t)
	ctx := context.Background()

	session.Connect(ctx, "c1")
	require.NoError(t, session.Handle(ctx, "c1", sketchroom.AddStroke{
		ID:       "s1",
		Segments: []domain.Segment{{X1: 1, Y1: 1, Color: "red", Size: 2}},
	}))

	assert.Error(t, New(srv.URL, "wrong").Reset(ctx))
	assert.Len(t, session.History(), 1)

	require.NoError(t, New(srv.URL, "secret").Reset(ctx))
	assert.Empty(t, session.History())
}
