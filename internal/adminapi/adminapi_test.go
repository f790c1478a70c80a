package adminapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ridematch/scheduler/internal/common/health"
	"github.com/ridematch/scheduler/internal/common/logging"
	"github.com/ridematch/scheduler/internal/common/middleware"
	"github.com/ridematch/scheduler/internal/directions"
	"github.com/ridematch/scheduler/internal/geo"
	"github.com/ridematch/scheduler/internal/model"
	"github.com/ridematch/scheduler/internal/scheduler"
	"github.com/ridematch/scheduler/internal/solver"
)

type fakeStore struct {
	settings    model.SchedulingSettings
	destination model.Destination
	vehicles    []model.Vehicle
	passengers  []model.Passenger
	runs        []model.RunLogEntry
}

func (f *fakeStore) GetSchedulingSettings(ctx context.Context) (model.SchedulingSettings, error) {
	return f.settings, nil
}
func (f *fakeStore) GetDestination(ctx context.Context) (model.Destination, error) {
	return f.destination, nil
}
func (f *fakeStore) GetAvailableVehicles(ctx context.Context) ([]model.Vehicle, error) {
	return f.vehicles, nil
}
func (f *fakeStore) GetAvailablePassengers(ctx context.Context) ([]model.Passenger, error) {
	return f.passengers, nil
}
func (f *fakeStore) SaveSolution(ctx context.Context, solution *model.Solution, solutionDate string) (int64, error) {
	return 1, nil
}
func (f *fakeStore) LogSchedulingRun(ctx context.Context, entry model.RunLogEntry) error {
	f.runs = append(f.runs, entry)
	return nil
}
func (f *fakeStore) RecentRuns(ctx context.Context, limit int) ([]model.RunLogEntry, error) {
	return f.runs, nil
}
func (f *fakeStore) UpdateSchedulingSettings(ctx context.Context, settings model.SchedulingSettings) error {
	f.settings = settings
	return nil
}
func (f *fakeStore) Close() error { return nil }

type fakeProvider struct{}

func (fakeProvider) GetRouteDetails(ctx context.Context, waypoints []geo.Coordinate) (*directions.Route, error) {
	return &directions.Route{}, nil
}

func newTestRouter(t *testing.T, adminToken string) (*gin.Engine, *fakeStore) {
	gin.SetMode(gin.TestMode)
	logging.InitDefaultLogger(logging.DefaultLoggerConfig())

	st := &fakeStore{
		settings:    model.SchedulingSettings{Enabled: true, ScheduledTime: 6 * time.Hour},
		destination: model.Destination{Name: "Office"},
	}
	sch := scheduler.New(st, solver.New(), fakeProvider{}, logging.GetLogger(), solver.DefaultOptions())
	audit := logging.NewAuditLogger(logging.GetLogger(), nil)
	handler := NewHandler(st, sch, logging.GetLogger(), audit)
	healthHandler := health.NewHandler(health.NewHealthChecker(nil, nil, "ridematch-scheduler", "test"))

	r := gin.New()
	r.Use(middleware.ErrorHandler())
	Register(r, handler, healthHandler, adminToken, nil)
	return r, st
}

func TestGetSettings_ReturnsCurrentSettings(t *testing.T) {
	r, _ := newTestRouter(t, "secret")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/settings", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "06:00")
}

func TestPutSettings_RequiresBearerToken(t *testing.T) {
	r, _ := newTestRouter(t, "secret")

	req := httptest.NewRequest(http.MethodPut, "/api/v1/settings", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPostRunNow_RejectsWrongToken(t *testing.T) {
	r, _ := newTestRouter(t, "secret")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/run-now", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPostRunNow_WithValidTokenTriggersRun(t *testing.T) {
	r, st := newTestRouter(t, "secret")
	st.vehicles = []model.Vehicle{{ID: 1, Capacity: 2}}
	st.passengers = nil // empty passengers -> Skipped, fast path, no GA run

	req := httptest.NewRequest(http.MethodPost, "/api/v1/run-now", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Skipped")
}

func TestGetRuns_ReturnsLoggedRuns(t *testing.T) {
	r, st := newTestRouter(t, "secret")
	st.runs = []model.RunLogEntry{{Status: model.RunStatusSuccess, RoutesGenerated: 2}}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Success")
}
