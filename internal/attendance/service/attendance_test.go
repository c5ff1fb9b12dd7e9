package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attendtrack/attendance-backend/internal/attendance/domain"
	"github.com/attendtrack/attendance-backend/pkg/errors"
	"github.com/attendtrack/attendance-backend/pkg/logger"
	"github.com/attendtrack/attendance-backend/pkg/testutil"
)

const (
	aliceID = "6f1c2b9e-3c1a-4d8e-9f00-1a2b3c4d5e6f"
	bobID   = "7a0d6c1e-0000-4000-8000-000000000001"
)

type fakeRecords struct {
	byID      map[string]*domain.Record
	createErr error
	closeErr  error
	lostRace  bool
	history   domain.HistoryQuery
	listStart time.Time
	listEnd   time.Time
	recentN   int
}

func newFakeRecords(records ...*domain.Record) *fakeRecords {
	f := &fakeRecords{byID: map[string]*domain.Record{}}
	for _, r := range records {
		f.byID[r.ID] = r
	}
	return f
}

func (f *fakeRecords) Create(_ context.Context, rec *domain.Record) error {
	if f.createErr != nil {
		return f.createErr
	}
	for _, r := range f.byID {
		if r.UserID == rec.UserID && r.WorkDate.Equal(rec.WorkDate) {
			return errors.Conflict("already checked in today")
		}
	}
	cp := *rec
	f.byID[rec.ID] = &cp
	return nil
}

func (f *fakeRecords) CheckOut(_ context.Context, rec *domain.Record) (bool, error) {
	if f.closeErr != nil {
		return false, f.closeErr
	}
	stored, ok := f.byID[rec.ID]
	if !ok || stored.CheckOutAt != nil || f.lostRace {
		return false, nil
	}
	cp := *rec
	f.byID[rec.ID] = &cp
	return true, nil
}

func (f *fakeRecords) GetByID(_ context.Context, id string) (*domain.Record, error) {
	if r, ok := f.byID[id]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, errors.NotFound("attendance record")
}

func (f *fakeRecords) GetForDay(_ context.Context, userID string, day time.Time) (*domain.Record, error) {
	for _, r := range f.byID {
		if r.UserID == userID && r.WorkDate.Equal(day) {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeRecords) History(_ context.Context, userID string, q domain.HistoryQuery) ([]*domain.Record, int64, error) {
	f.history = q
	var out []*domain.Record
	for _, r := range f.byID {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, int64(len(out)), nil
}

func (f *fakeRecords) ListForUser(_ context.Context, userID string, start, end time.Time) ([]*domain.Record, error) {
	f.listStart, f.listEnd = start, end
	var out []*domain.Record
	for _, r := range f.byID {
		if r.UserID == userID && !r.WorkDate.Before(start) && !r.WorkDate.After(end) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRecords) Recent(_ context.Context, _ string, limit int) ([]*domain.Record, error) {
	f.recentN = limit
	return nil, nil
}

type fakePhotos struct {
	objects map[string][]byte
	types   map[string]string
	deleted []string
	putErr  error
}

func newFakePhotos() *fakePhotos {
	return &fakePhotos{objects: map[string][]byte{}, types: map[string]string{}}
}

func (p *fakePhotos) Put(_ context.Context, key string, r io.Reader, _ int64, contentType string) error {
	if p.putErr != nil {
		return p.putErr
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	p.objects[key] = b
	p.types[key] = contentType
	return nil
}

func (p *fakePhotos) Delete(_ context.Context, key string) error {
	p.deleted = append(p.deleted, key)
	delete(p.objects, key)
	return nil
}

func (p *fakePhotos) PresignedURL(_ context.Context, key string) (string, time.Time, error) {
	return "https://photos.example.com/" + key + "?sig=abc", testutil.At(2024, time.March, 4, 10, 0, 0), nil
}

type fakeEvents struct {
	checkedIn  []*domain.Record
	checkedOut []*domain.Record
}

func (e *fakeEvents) PublishCheckedIn(_ context.Context, rec *domain.Record) {
	e.checkedIn = append(e.checkedIn, rec)
}

func (e *fakeEvents) PublishCheckedOut(_ context.Context, rec *domain.Record) {
	e.checkedOut = append(e.checkedOut, rec)
}

type fixture struct {
	svc     *AttendanceService
	records *fakeRecords
	photos  *fakePhotos
	events  *fakeEvents
}

func newFixture(now time.Time, records ...*domain.Record) *fixture {
	f := &fixture{records: newFakeRecords(records...), photos: newFakePhotos(), events: &fakeEvents{}}
	f.svc = NewAttendanceService(f.records, f.photos, f.events, Options{MaxUploadSize: 1 << 20}, logger.Nop())
	f.svc.now = testutil.FixedClock(now)
	return f
}

// pngBytes is a PNG signature followed by padding, enough for content sniffing.
func pngBytes() []byte {
	return append([]byte("\x89PNG\x0D\x0A\x1A\x0A"), bytes.Repeat([]byte{0}, 64)...)
}

func photo(b []byte) *domain.Photo {
	return &domain.Photo{Filename: "selfie.png", ContentType: "image/png", Size: int64(len(b)), Body: bytes.NewReader(b)}
}

func openRecord(id, userID string, checkIn time.Time, notes string) *domain.Record {
	return &domain.Record{
		ID:        id,
		UserID:    userID,
		WorkDate:  domain.CivilDate(checkIn, time.UTC),
		CheckInAt: &checkIn,
		Notes:     notes,
		CreatedAt: checkIn,
	}
}

func TestAttendanceService_CheckIn(t *testing.T) {
	now := testutil.At(2024, time.March, 4, 8, 45, 0)

	t.Run("creates today's record", func(t *testing.T) {
		f := newFixture(now)

		view, err := f.svc.CheckIn(context.Background(), aliceID, &domain.CheckInRequest{
			Latitude: testutil.PtrFloat(-6.2), Longitude: testutil.PtrFloat(106.8), Notes: "  on site ",
		}, nil)

		require.NoError(t, err)
		assert.Equal(t, domain.StatusCheckedIn, view.Status)
		assert.Equal(t, "2024-03-04", view.Date)
		assert.Equal(t, now, *view.CheckInAt)
		assert.Equal(t, "on site", view.Notes)
		assert.Nil(t, view.TotalHours)
		assert.False(t, view.HasCheckInPhoto)
		assert.Len(t, f.records.byID, 1)
		require.Len(t, f.events.checkedIn, 1)
	})

	t.Run("second check-in the same day is a conflict", func(t *testing.T) {
		f := newFixture(now, openRecord("r1", aliceID, now.Add(-time.Hour), ""))

		_, err := f.svc.CheckIn(context.Background(), aliceID, &domain.CheckInRequest{}, nil)

		var appErr *errors.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, 409, appErr.StatusCode)
		assert.Empty(t, f.events.checkedIn)
	})

	t.Run("another user's record does not block", func(t *testing.T) {
		f := newFixture(now, openRecord("r1", bobID, now.Add(-time.Hour), ""))

		_, err := f.svc.CheckIn(context.Background(), aliceID, &domain.CheckInRequest{}, nil)

		require.NoError(t, err)
	})

	t.Run("concurrent insert loses to the unique key", func(t *testing.T) {
		f := newFixture(now)
		f.records.createErr = errors.Conflict("already checked in today")

		_, err := f.svc.CheckIn(context.Background(), aliceID, &domain.CheckInRequest{}, photo(pngBytes()))

		assert.True(t, errors.Is(err, errors.ErrConflict))
		require.Len(t, f.photos.deleted, 1, "uploaded photo is removed")
		assert.Empty(t, f.photos.objects)
	})

	t.Run("store failure is internal", func(t *testing.T) {
		f := newFixture(now)
		f.records.createErr = fmt.Errorf("connection reset")

		_, err := f.svc.CheckIn(context.Background(), aliceID, &domain.CheckInRequest{}, nil)

		assert.True(t, errors.Is(err, errors.ErrInternal))
	})

	t.Run("stores the photo under the user's prefix", func(t *testing.T) {
		f := newFixture(now)
		img := pngBytes()

		view, err := f.svc.CheckIn(context.Background(), aliceID, &domain.CheckInRequest{}, photo(img))

		require.NoError(t, err)
		assert.True(t, view.HasCheckInPhoto)
		require.NotNil(t, view.CheckInImagePath)
		key := *view.CheckInImagePath
		assert.True(t, strings.HasPrefix(key, aliceID+"/2024-03-04/check-in-"), key)
		assert.True(t, strings.HasSuffix(key, ".png"), key)
		assert.Equal(t, img, f.photos.objects[key], "sniffed bytes are not lost")
		assert.Equal(t, "image/png", f.photos.types[key])
	})

	t.Run("rejects non-image uploads", func(t *testing.T) {
		f := newFixture(now)

		_, err := f.svc.CheckIn(context.Background(), aliceID, &domain.CheckInRequest{}, photo([]byte("#!/bin/sh\necho hi\n")))

		var appErr *errors.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, "VALIDATION_ERROR", appErr.Code)
		assert.Contains(t, appErr.Details, "image")
		assert.Empty(t, f.records.byID)
	})

	t.Run("rejects oversized uploads", func(t *testing.T) {
		f := newFixture(now)
		p := photo(pngBytes())
		p.Size = 2 << 20

		_, err := f.svc.CheckIn(context.Background(), aliceID, &domain.CheckInRequest{}, p)

		assert.True(t, errors.Is(err, errors.ErrValidation))
	})

	t.Run("rejects empty uploads", func(t *testing.T) {
		f := newFixture(now)

		_, err := f.svc.CheckIn(context.Background(), aliceID, &domain.CheckInRequest{}, photo(nil))

		assert.True(t, errors.Is(err, errors.ErrValidation))
	})

	t.Run("photo store failure aborts the check-in", func(t *testing.T) {
		f := newFixture(now)
		f.photos.putErr = fmt.Errorf("bucket unavailable")

		_, err := f.svc.CheckIn(context.Background(), aliceID, &domain.CheckInRequest{}, photo(pngBytes()))

		assert.True(t, errors.Is(err, errors.ErrInternal))
		assert.Empty(t, f.records.byID)
	})
}

func TestAttendanceService_CheckInUsesReferenceDay(t *testing.T) {
	wib := time.FixedZone("WIB", 7*3600)
	// 18:30 UTC on the 3rd is 01:30 on the 4th in WIB.
	now := testutil.At(2024, time.March, 3, 18, 30, 0)
	f := newFixture(now)
	f.svc = NewAttendanceService(f.records, f.photos, f.events, Options{Location: wib}, logger.Nop())
	f.svc.now = testutil.FixedClock(now)

	view, err := f.svc.CheckIn(context.Background(), aliceID, &domain.CheckInRequest{}, nil)

	require.NoError(t, err)
	assert.Equal(t, "2024-03-04", view.Date)
	assert.Equal(t, testutil.Date(2024, time.March, 4), view.WorkDate)
}

func TestAttendanceService_CheckOut(t *testing.T) {
	checkIn := testutil.At(2024, time.March, 4, 8, 0, 0)
	now := testutil.At(2024, time.March, 4, 16, 30, 0)

	t.Run("closes the open record and appends notes", func(t *testing.T) {
		f := newFixture(now, openRecord("r1", aliceID, checkIn, "arrived early"))

		view, err := f.svc.CheckOut(context.Background(), aliceID, &domain.CheckOutRequest{
			Latitude: testutil.PtrFloat(-6.21), Notes: "left on time",
		}, nil)

		require.NoError(t, err)
		assert.Equal(t, domain.StatusCheckedOut, view.Status)
		assert.Equal(t, "arrived early; left on time", view.Notes)
		require.NotNil(t, view.TotalHours)
		assert.Equal(t, 8.5, *view.TotalHours)
		assert.Equal(t, checkIn, *view.CheckInAt, "check-in is not touched")
		assert.Equal(t, now, *f.records.byID["r1"].CheckOutAt)
		require.Len(t, f.events.checkedOut, 1)
	})

	t.Run("notes start fresh when check-in had none", func(t *testing.T) {
		f := newFixture(now, openRecord("r1", aliceID, checkIn, ""))

		view, err := f.svc.CheckOut(context.Background(), aliceID, &domain.CheckOutRequest{Notes: "done"}, nil)

		require.NoError(t, err)
		assert.Equal(t, "done", view.Notes)
	})

	t.Run("longest notes on both ends fit the record", func(t *testing.T) {
		f := newFixture(now, openRecord("r1", aliceID, checkIn, strings.Repeat("a", domain.MaxNoteLength)))

		view, err := f.svc.CheckOut(context.Background(), aliceID, &domain.CheckOutRequest{
			Notes: strings.Repeat("b", domain.MaxNoteLength),
		}, nil)

		require.NoError(t, err)
		assert.Len(t, view.Notes, domain.MaxNotesLength)
		assert.Equal(t, 1002, domain.MaxNotesLength)
	})

	t.Run("without check-in", func(t *testing.T) {
		f := newFixture(now)

		_, err := f.svc.CheckOut(context.Background(), aliceID, &domain.CheckOutRequest{}, nil)

		var appErr *errors.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, 400, appErr.StatusCode)
		assert.Equal(t, "you have not checked in today", appErr.Message)
	})

	t.Run("yesterday's open record does not count", func(t *testing.T) {
		f := newFixture(now, openRecord("r0", aliceID, checkIn.AddDate(0, 0, -1), ""))

		_, err := f.svc.CheckOut(context.Background(), aliceID, &domain.CheckOutRequest{}, nil)

		assert.True(t, errors.Is(err, errors.ErrBadRequest))
	})

	t.Run("twice", func(t *testing.T) {
		closed := openRecord("r1", aliceID, checkIn, "")
		out := checkIn.Add(4 * time.Hour)
		closed.CheckOutAt = &out
		f := newFixture(now, closed)

		_, err := f.svc.CheckOut(context.Background(), aliceID, &domain.CheckOutRequest{}, nil)

		var appErr *errors.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, "you have already checked out today", appErr.Message)
		assert.Equal(t, out, *f.records.byID["r1"].CheckOutAt)
	})

	t.Run("lost race with a concurrent check-out", func(t *testing.T) {
		f := newFixture(now, openRecord("r1", aliceID, checkIn, ""))
		f.records.lostRace = true

		_, err := f.svc.CheckOut(context.Background(), aliceID, &domain.CheckOutRequest{}, photo(pngBytes()))

		assert.True(t, errors.Is(err, errors.ErrBadRequest))
		assert.Len(t, f.photos.deleted, 1)
		assert.Empty(t, f.events.checkedOut)
	})

	t.Run("constraint errors pass through", func(t *testing.T) {
		f := newFixture(now, openRecord("r1", aliceID, checkIn, ""))
		f.records.closeErr = errors.Validation(map[string]string{"notes": "combined notes are too long"})

		_, err := f.svc.CheckOut(context.Background(), aliceID, &domain.CheckOutRequest{Notes: "x"}, nil)

		assert.True(t, errors.Is(err, errors.ErrValidation))
	})

	t.Run("with photo", func(t *testing.T) {
		f := newFixture(now, openRecord("r1", aliceID, checkIn, ""))

		view, err := f.svc.CheckOut(context.Background(), aliceID, &domain.CheckOutRequest{}, photo(pngBytes()))

		require.NoError(t, err)
		assert.True(t, view.HasCheckOutPhoto)
		assert.True(t, strings.HasPrefix(*view.CheckOutImagePath, aliceID+"/2024-03-04/check-out-"))
	})
}

func TestAttendanceService_FullDay(t *testing.T) {
	morning := testutil.At(2024, time.March, 4, 9, 0, 0)
	f := newFixture(morning)

	_, err := f.svc.CheckIn(context.Background(), aliceID, &domain.CheckInRequest{Notes: "in"}, nil)
	require.NoError(t, err)

	today, err := f.svc.Today(context.Background(), aliceID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCheckedIn, today.Status)

	f.svc.now = testutil.FixedClock(morning.Add(8*time.Hour + 15*time.Minute))
	_, err = f.svc.CheckOut(context.Background(), aliceID, &domain.CheckOutRequest{Notes: "out"}, nil)
	require.NoError(t, err)

	today, err = f.svc.Today(context.Background(), aliceID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCheckedOut, today.Status)
	assert.Equal(t, "in; out", today.Notes)
	assert.Equal(t, 8.25, *today.TotalHours)

	_, err = f.svc.CheckIn(context.Background(), aliceID, &domain.CheckInRequest{}, nil)
	assert.True(t, errors.Is(err, errors.ErrConflict), "no way back from checked out")

	f.svc.now = testutil.FixedClock(morning.AddDate(0, 0, 1))
	today, err = f.svc.Today(context.Background(), aliceID)
	require.NoError(t, err)
	assert.Nil(t, today)
}

func TestAttendanceService_History(t *testing.T) {
	f := newFixture(testutil.At(2024, time.March, 4, 9, 0, 0), openRecord("r1", aliceID, testutil.At(2024, time.March, 1, 8, 0, 0), ""))

	views, total, q, err := f.svc.History(context.Background(), aliceID, domain.HistoryQuery{Page: 0, Limit: 500})

	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, views, 1)
	assert.Equal(t, 1, q.Page)
	assert.Equal(t, MaxHistoryLimit, q.Limit)
	assert.Equal(t, MaxHistoryLimit, f.records.history.Limit)

	_, _, q, err = f.svc.History(context.Background(), aliceID, domain.HistoryQuery{})
	require.NoError(t, err)
	assert.Equal(t, DefaultHistoryLimit, q.Limit)

	_, _, q, err = f.svc.History(context.Background(), aliceID, domain.HistoryQuery{Page: math.MaxInt, Limit: MaxHistoryLimit})
	require.NoError(t, err)
	assert.Equal(t, MaxHistoryPage, q.Page)
	assert.Positive(t, (f.records.history.Page-1)*f.records.history.Limit, "offset stays positive")

	start := testutil.Date(2024, time.March, 10)
	end := testutil.Date(2024, time.March, 1)
	_, _, _, err = f.svc.History(context.Background(), aliceID, domain.HistoryQuery{StartDate: &start, EndDate: &end})
	assert.True(t, errors.Is(err, errors.ErrBadRequest))
}

func TestAttendanceService_MonthlyStats(t *testing.T) {
	day := func(d, inH, outH int) *domain.Record {
		in := testutil.At(2024, time.February, d, inH, 0, 0)
		rec := openRecord(fmt.Sprintf("r%d", d), aliceID, in, "")
		if outH > 0 {
			out := testutil.At(2024, time.February, d, outH, 0, 0)
			rec.CheckOutAt = &out
		}
		return rec
	}
	f := newFixture(testutil.At(2024, time.March, 4, 9, 0, 0),
		day(1, 8, 16),
		day(2, 9, 17),
		day(5, 8, 15),
		day(6, 9, 0),
		openRecord("march", aliceID, testutil.At(2024, time.March, 1, 8, 0, 0), ""),
	)

	stats, err := f.svc.MonthlyStats(context.Background(), aliceID, 2024, 2)

	require.NoError(t, err)
	assert.Equal(t, 29, stats.TotalDays)
	assert.Equal(t, 4, stats.PresentDays)
	assert.Equal(t, 23.0, stats.TotalHours)
	assert.Equal(t, 5.75, stats.AverageHours)
	assert.Equal(t, testutil.Date(2024, time.February, 1), f.records.listStart)
	assert.Equal(t, testutil.Date(2024, time.February, 29), f.records.listEnd)

	current, err := f.svc.MonthlyStats(context.Background(), aliceID, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 2024, current.Year)
	assert.Equal(t, 3, current.Month)
	assert.Equal(t, 31, current.TotalDays)
	assert.Equal(t, 1, current.PresentDays)
	assert.Equal(t, 0.0, current.AverageHours)

	_, err = f.svc.MonthlyStats(context.Background(), aliceID, 2024, 13)
	assert.True(t, errors.Is(err, errors.ErrValidation))
}

func TestAttendanceService_Recent(t *testing.T) {
	f := newFixture(time.Now())

	_, err := f.svc.Recent(context.Background(), aliceID, 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultRecentLimit, f.records.recentN)

	_, err = f.svc.Recent(context.Background(), aliceID, 1000)
	require.NoError(t, err)
	assert.Equal(t, MaxRecentLimit, f.records.recentN)
}

func TestAttendanceService_PhotoURL(t *testing.T) {
	recordID := "0b7c9a52-8d0f-4c55-9c44-6a3e2f1d0e9b"
	rec := openRecord(recordID, aliceID, testutil.At(2024, time.March, 4, 8, 0, 0), "")
	rec.CheckInImagePath = testutil.PtrString(aliceID + "/2024-03-04/check-in-x.png")
	f := newFixture(time.Now(), rec)

	tests := []struct {
		name      string
		requester string
		isAdmin   bool
		id        string
		kind      domain.PhotoKind
		wantErr   error
	}{
		{"owner", aliceID, false, recordID, domain.PhotoCheckIn, nil},
		{"admin", bobID, true, recordID, domain.PhotoCheckIn, nil},
		{"other user", bobID, false, recordID, domain.PhotoCheckIn, errors.ErrForbidden},
		{"missing photo", aliceID, false, recordID, domain.PhotoCheckOut, errors.ErrNotFound},
		{"unknown record", aliceID, false, "1c6a1c9e-0000-4000-8000-00000000abcd", domain.PhotoCheckIn, errors.ErrNotFound},
		{"malformed id", aliceID, false, "not-a-uuid", domain.PhotoCheckIn, errors.ErrNotFound},
		{"bad kind", aliceID, false, recordID, domain.PhotoKind("selfie"), errors.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			link, err := f.svc.PhotoURL(context.Background(), tt.requester, tt.isAdmin, tt.id, tt.kind)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				assert.Nil(t, link)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, recordID, link.RecordID)
			assert.Contains(t, link.URL, *rec.CheckInImagePath)
			assert.False(t, link.ExpiresAt.IsZero())
		})
	}
}
