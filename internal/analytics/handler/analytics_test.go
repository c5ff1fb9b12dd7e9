package handler_test

import (
	"bytes"
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/attendtrack/attendance-backend/internal/analytics/domain"
	"github.com/attendtrack/attendance-backend/internal/analytics/handler"
	"github.com/attendtrack/attendance-backend/internal/analytics/service"
	attendancedomain "github.com/attendtrack/attendance-backend/internal/attendance/domain"
	userdomain "github.com/attendtrack/attendance-backend/internal/user/domain"
	"github.com/attendtrack/attendance-backend/pkg/errors"
	"github.com/attendtrack/attendance-backend/pkg/logger"
	"github.com/attendtrack/attendance-backend/pkg/testutil"
)

type directory []*userdomain.User

func (d directory) ListUsers(_ context.Context, excludeAdmins bool) ([]*userdomain.User, error) {
	var out []*userdomain.User
	for _, u := range d {
		if excludeAdmins && u.IsAdmin {
			continue
		}
		out = append(out, u)
	}
	return out, nil
}

func (d directory) GetByID(_ context.Context, id string) (*userdomain.User, error) {
	for _, u := range d {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, errors.NotFound("user")
}

type records []*attendancedomain.Record

func (rs records) ListForUsersInRange(_ context.Context, _ []string, _, _ time.Time) ([]*attendancedomain.Record, error) {
	return rs, nil
}

func newRouter(t *testing.T) http.Handler {
	t.Helper()

	users := directory{
		{ID: "admin", Name: "Admin", IsAdmin: true},
		{ID: "u1", Name: "Alice", Email: "alice@example.com"},
	}
	checkIn := testutil.At(2024, time.March, 4, 8, 30, 0)
	checkOut := testutil.At(2024, time.March, 4, 17, 0, 0)
	store := records{
		{ID: "r1", UserID: "u1", WorkDate: testutil.Date(2024, time.March, 4), CheckInAt: &checkIn, CheckOutAt: &checkOut, CreatedAt: checkIn},
	}

	svc := service.NewAnalyticsService(users, store, service.DefaultPolicy(), 30, logger.Nop())
	h := handler.NewAnalyticsHandler(svc, logger.Nop())

	r := chi.NewRouter()
	r.Get("/api/v1/analytics", h.Get)
	r.Get("/api/v1/analytics/export", h.Export)
	return r
}

func TestAnalyticsHandler_Get(t *testing.T) {
	router := newRouter(t)

	req := testutil.AsUser(testutil.NewHTTPRequest(http.MethodGet, "/api/v1/analytics?start_date=2024-03-04&end_date=2024-03-08", nil), "admin", true)
	rr := testutil.ExecuteRequest(router, req)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var result domain.AttendanceAnalytics
	env := testutil.ParseEnvelope(t, rr, &result)
	assert.True(t, env.Success)
	assert.Equal(t, "2024-03-04", result.StartDate)
	assert.Equal(t, "2024-03-08", result.EndDate)
	assert.Equal(t, 1, result.TotalEmployees)
	require.Len(t, result.EmployeePerformances, 1)

	alice := result.EmployeePerformances[0]
	assert.Equal(t, "Alice", alice.UserName)
	assert.Equal(t, 5, alice.TotalWorkingDays)
	assert.Equal(t, 1, alice.DaysPresent)
	assert.Equal(t, 4, alice.DaysAbsent)
	assert.Equal(t, 8.5, alice.TotalHoursWorked)
	assert.Equal(t, 20.0, alice.AttendancePercentage)
	assert.Equal(t, 4, alice.ConsecutiveAbsences)
	assert.Equal(t, domain.CategoryCritical, alice.PerformanceCategory)
	require.Len(t, result.PoorPerformers, 1)
}

func TestAnalyticsHandler_Get_Errors(t *testing.T) {
	router := newRouter(t)

	tests := []struct {
		name       string
		query      string
		userID     string
		wantStatus int
		wantCode   string
	}{
		{"non-admin", "", "u1", http.StatusForbidden, "FORBIDDEN"},
		{"unauthenticated", "", "", http.StatusUnauthorized, "UNAUTHORIZED"},
		{"malformed start", "?start_date=03/04/2024", "admin", http.StatusBadRequest, "VALIDATION_ERROR"},
		{"malformed end", "?end_date=2024-13-01", "admin", http.StatusBadRequest, "VALIDATION_ERROR"},
		{"start after end", "?start_date=2024-03-08&end_date=2024-03-04", "admin", http.StatusBadRequest, "BAD_REQUEST"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testutil.NewHTTPRequest(http.MethodGet, "/api/v1/analytics"+tt.query, nil)
			if tt.userID != "" {
				req = testutil.AsUser(req, tt.userID, false)
			}
			rr := testutil.ExecuteRequest(router, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
			env := testutil.ParseEnvelope(t, rr, nil)
			assert.False(t, env.Success)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.wantCode, env.Error.Code)
		})
	}
}

func TestAnalyticsHandler_Export(t *testing.T) {
	router := newRouter(t)

	req := testutil.AsUser(testutil.NewHTTPRequest(http.MethodGet, "/api/v1/analytics/export?start_date=2024-03-04&end_date=2024-03-08", nil), "admin", true)
	rr := testutil.ExecuteRequest(router, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, service.XLSXContentType, rr.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="attendance-analytics_2024-03-04_2024-03-08.xlsx"`, rr.Header().Get("Content-Disposition"))

	f, err := excelize.OpenReader(bytes.NewReader(rr.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(service.SheetEmployees)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Alice", rows[1][0])
}

func TestAnalyticsHandler_Export_Forbidden(t *testing.T) {
	router := newRouter(t)

	req := testutil.AsUser(testutil.NewHTTPRequest(http.MethodGet, "/api/v1/analytics/export", nil), "u1", false)
	rr := testutil.ExecuteRequest(router, req)

	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")
}
