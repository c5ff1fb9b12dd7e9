package handler

import (
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/attendtrack/attendance-backend/internal/attendance/domain"
	"github.com/attendtrack/attendance-backend/internal/attendance/service"
	"github.com/attendtrack/attendance-backend/pkg/errors"
	"github.com/attendtrack/attendance-backend/pkg/httputil"
	"github.com/attendtrack/attendance-backend/pkg/logger"
)

// multipartMemory is how much of a multipart form is kept in memory before spilling to disk.
const multipartMemory = 1 << 20

// AttendanceHandler handles attendance endpoints
type AttendanceHandler struct {
	service       *service.AttendanceService
	maxUploadSize int64
	logger        *logger.Logger
}

// NewAttendanceHandler creates a new attendance handler
func NewAttendanceHandler(svc *service.AttendanceService, maxUploadSize int64, log *logger.Logger) *AttendanceHandler {
	return &AttendanceHandler{
		service:       svc,
		maxUploadSize: maxUploadSize,
		logger:        log,
	}
}

// CheckIn opens today's record. Accepts JSON or multipart with an "image" part.
func (h *AttendanceHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	var req domain.CheckInRequest
	photo, cleanup, err := h.decode(w, r, &req.Latitude, &req.Longitude, &req.Notes, &req)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	defer cleanup()

	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	view, err := h.service.CheckIn(r.Context(), httputil.GetUserID(r.Context()), &req, photo)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, view)
}

// CheckOut closes today's record. Accepts JSON or multipart with an "image" part.
func (h *AttendanceHandler) CheckOut(w http.ResponseWriter, r *http.Request) {
	var req domain.CheckOutRequest
	photo, cleanup, err := h.decode(w, r, &req.Latitude, &req.Longitude, &req.Notes, &req)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	defer cleanup()

	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	view, err := h.service.CheckOut(r.Context(), httputil.GetUserID(r.Context()), &req, photo)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, view)
}

// Today returns the caller's record for today, or null
func (h *AttendanceHandler) Today(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Today(r.Context(), httputil.GetUserID(r.Context()))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, view)
}

// History returns a page of the caller's records
func (h *AttendanceHandler) History(w http.ResponseWriter, r *http.Request) {
	var q domain.HistoryQuery
	var err error
	if q.Page, err = httputil.QueryInt(r, "page", 1); err != nil {
		httputil.Error(w, err)
		return
	}
	if q.Limit, err = httputil.QueryInt(r, "limit", service.DefaultHistoryLimit); err != nil {
		httputil.Error(w, err)
		return
	}
	if q.StartDate, err = httputil.QueryDate(r, "start_date"); err != nil {
		httputil.Error(w, err)
		return
	}
	if q.EndDate, err = httputil.QueryDate(r, "end_date"); err != nil {
		httputil.Error(w, err)
		return
	}

	views, total, q, err := h.service.History(r.Context(), httputil.GetUserID(r.Context()), q)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, views, httputil.NewMeta(q.Page, q.Limit, total))
}

// MonthlyStats returns the caller's statistics for ?year&month, defaulting to the current month
func (h *AttendanceHandler) MonthlyStats(w http.ResponseWriter, r *http.Request) {
	year, err := httputil.QueryInt(r, "year", 0)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	month, err := httputil.QueryInt(r, "month", 0)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	stats, err := h.service.MonthlyStats(r.Context(), httputil.GetUserID(r.Context()), year, month)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, stats)
}

// Recent returns the caller's latest records
func (h *AttendanceHandler) Recent(w http.ResponseWriter, r *http.Request) {
	limit, err := httputil.QueryInt(r, "limit", service.DefaultRecentLimit)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	views, err := h.service.Recent(r.Context(), httputil.GetUserID(r.Context()), limit)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, views)
}

// Photo returns a presigned URL for ?kind=check_in|check_out of record {id}
func (h *AttendanceHandler) Photo(w http.ResponseWriter, r *http.Request) {
	kind := domain.PhotoKind(r.URL.Query().Get("kind"))
	if kind == "" {
		kind = domain.PhotoCheckIn
	}

	ctx := r.Context()
	link, err := h.service.PhotoURL(ctx, httputil.GetUserID(ctx), httputil.IsAdmin(ctx), chi.URLParam(r, "id"), kind)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, link)
}

// decode fills a check-in or check-out request from either body format.
// An empty body is an empty request. The returned cleanup releases the upload.
func (h *AttendanceHandler) decode(w http.ResponseWriter, r *http.Request, lat, lng **float64, notes *string, jsonTarget interface{}) (*domain.Photo, func(), error) {
	noop := func() {}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		if r.Body == nil || r.ContentLength == 0 {
			return nil, noop, nil
		}
		return nil, noop, httputil.DecodeJSON(r, jsonTarget)
	}

	if h.maxUploadSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize+multipartMemory)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, noop, errors.Validation(map[string]string{
				"image": "must be at most " + strconv.FormatInt(h.maxUploadSize, 10) + " bytes",
			})
		}
		return nil, noop, errors.BadRequest("invalid multipart form")
	}
	cleanup := func() { r.MultipartForm.RemoveAll() }

	var err error
	if *lat, err = formFloat(r, "latitude"); err != nil {
		cleanup()
		return nil, noop, err
	}
	if *lng, err = formFloat(r, "longitude"); err != nil {
		cleanup()
		return nil, noop, err
	}
	*notes = r.FormValue("notes")

	file, header, err := r.FormFile("image")
	if err == http.ErrMissingFile {
		return nil, cleanup, nil
	}
	if err != nil {
		cleanup()
		return nil, noop, errors.BadRequest("invalid image upload")
	}

	photo := &domain.Photo{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	}
	return photo, func() {
		file.Close()
		cleanup()
	}, nil
}

func formFloat(r *http.Request, key string) (*float64, error) {
	raw := strings.TrimSpace(r.FormValue(key))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, errors.Validation(map[string]string{key: "must be a number"})
	}
	return &v, nil
}
