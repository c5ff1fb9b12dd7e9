package handler

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/attendtrack/attendance-backend/internal/analytics/domain"
	"github.com/attendtrack/attendance-backend/internal/analytics/service"
	"github.com/attendtrack/attendance-backend/pkg/errors"
	"github.com/attendtrack/attendance-backend/pkg/httputil"
	"github.com/attendtrack/attendance-backend/pkg/logger"
)

// AnalyticsHandler handles analytics endpoints
type AnalyticsHandler struct {
	service *service.AnalyticsService
	logger  *logger.Logger
}

// NewAnalyticsHandler creates a new analytics handler
func NewAnalyticsHandler(svc *service.AnalyticsService, log *logger.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		service: svc,
		logger:  log,
	}
}

// Get returns attendance analytics for ?start_date&end_date
func (h *AnalyticsHandler) Get(w http.ResponseWriter, r *http.Request) {
	result, err := h.load(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, result)
}

// Export returns the same analytics as an XLSX download
func (h *AnalyticsHandler) Export(w http.ResponseWriter, r *http.Request) {
	result, err := h.load(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	var buf bytes.Buffer
	if err := service.WriteXLSX(&buf, result); err != nil {
		h.logger.Error().Err(err).Msg("failed to render analytics workbook")
		httputil.Error(w, errors.Internal("failed to export analytics", err))
		return
	}

	w.Header().Set("Content-Type", service.XLSXContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", service.ExportFilename(result)))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w)
}

func (h *AnalyticsHandler) load(r *http.Request) (*domain.AttendanceAnalytics, error) {
	start, err := httputil.QueryDate(r, "start_date")
	if err != nil {
		return nil, err
	}
	end, err := httputil.QueryDate(r, "end_date")
	if err != nil {
		return nil, err
	}

	return h.service.Get(r.Context(), httputil.GetUserID(r.Context()), start, end)
}
