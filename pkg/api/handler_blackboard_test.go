package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	echo "github.com/labstack/echo/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripsmith/tripsmith/pkg/blackboard"
	"github.com/tripsmith/tripsmith/pkg/config"
	"github.com/tripsmith/tripsmith/pkg/events"
	"github.com/tripsmith/tripsmith/pkg/models"
)

func newBoardServer(t *testing.T) (*blackboard.Blackboard, *echo.Echo) {
	t.Helper()
	bus := events.NewBus()
	t.Cleanup(bus.Close)
	board, err := blackboard.New(config.DefaultBlackboardConfig(), bus)
	require.NoError(t, err)

	s := &Server{board: board}
	e := echo.New()
	e.GET("/api/v1/blackboard/:namespace", s.queryBlackboardHandler)
	e.GET("/api/v1/blackboard/:namespace/:key", s.getBlackboardEntryHandler)
	return board, e
}

func TestGetBlackboardEntryHandler(t *testing.T) {
	board, e := newBoardServer(t)
	_, err := board.Write(context.Background(), models.NamespaceCandidates, "hotels-wf-1",
		map[string]any{"name": "Grand Plaza"}, blackboard.WriteOptions{})
	require.NoError(t, err)

	t.Run("existing entry", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/blackboard/candidates/hotels-wf-1", nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var entry blackboard.Entry
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entry))
		assert.Equal(t, models.NamespaceCandidates, entry.Namespace)
		assert.Equal(t, "hotels-wf-1", entry.Key)
		assert.NotEmpty(t, entry.ETag)
	})

	t.Run("missing entry returns 404", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/blackboard/candidates/nope", nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("unknown namespace returns 400", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/blackboard/bogus/key", nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestQueryBlackboardHandler(t *testing.T) {
	board, e := newBoardServer(t)
	ctx := context.Background()
	for _, key := range []string{"hotels-wf-1", "hotels-wf-2", "flights-wf-1"} {
		_, err := board.Write(ctx, models.NamespaceCandidates, key, key, blackboard.WriteOptions{})
		require.NoError(t, err)
	}

	t.Run("key pattern filter", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/blackboard/candidates?key_pattern=hotels*", nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var entries []blackboard.Entry
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
		assert.Len(t, entries, 2)
	})

	t.Run("created_after excludes older entries", func(t *testing.T) {
		future := time.Now().Add(time.Hour).Format(time.RFC3339)
		req := httptest.NewRequest(http.MethodGet, "/api/v1/blackboard/candidates?created_after="+future, nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var entries []blackboard.Entry
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
		assert.Empty(t, entries)
	})

	t.Run("invalid created_after returns 400", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/blackboard/candidates?created_after=yesterday", nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown namespace returns 400", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/blackboard/bogus", nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
