package httpmon

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quietgrid/gridopt/internal/coordinator"
	"github.com/quietgrid/gridopt/internal/persistence"
	"github.com/quietgrid/gridopt/internal/world"
)

func testCoordinator(t *testing.T) *coordinator.Coordinator {
	t.Helper()
	store := persistence.NewFileStore()
	w := world.NewWithStaticData(world.DefaultStaticData(), false)
	return coordinator.New(store, w, coordinator.Config{
		Iterations:         1,
		CheckpointRoot:     t.TempDir(),
		CheckpointInterval: 1,
		ProgressInterval:   1,
	})
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func TestHealthEndpointReportsHealthy(t *testing.T) {
	coord := testCoordinator(t)
	cfg := DefaultConfig()
	cfg.Port = freePort(t)
	srv, err := New(cfg, coord)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	srv.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var out healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.True(t, out.Healthy)
}

func TestNewRejectsBusyPort(t *testing.T) {
	coord := testCoordinator(t)
	port := freePort(t)
	l, err := net.Listen("tcp", "127.0.0.1:"+strconv.Itoa(port))
	require.NoError(t, err)
	defer l.Close()

	cfg := DefaultConfig()
	cfg.Port = port
	_, err = New(cfg, coord)
	require.Error(t, err)
}

func TestProgressEndpointReturnsJSON(t *testing.T) {
	coord := testCoordinator(t)
	cfg := DefaultConfig()
	cfg.Port = freePort(t)
	srv, err := New(cfg, coord)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/progress", nil)
	srv.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var out progressResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
}

func TestBestEndpointReportsNoBestInitially(t *testing.T) {
	coord := testCoordinator(t)
	cfg := DefaultConfig()
	cfg.Port = freePort(t)
	srv, err := New(cfg, coord)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/best", nil)
	srv.router.ServeHTTP(rec, req)

	var out bestResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.False(t, out.HasBest)
}

func TestUnknownRouteReturns404(t *testing.T) {
	coord := testCoordinator(t)
	cfg := DefaultConfig()
	cfg.Port = freePort(t)
	srv, err := New(cfg, coord)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	srv.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}
