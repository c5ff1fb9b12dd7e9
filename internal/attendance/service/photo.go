package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/attendtrack/attendance-backend/internal/attendance/domain"
	"github.com/attendtrack/attendance-backend/pkg/errors"
)

// sniffLen is how much of an upload http.DetectContentType looks at.
const sniffLen = 512

var photoExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// PhotoKey is the object key of a photo: <user>/<work date>/<stage>-<uuid><ext>.
// Every photo of a user shares the "<user>/" prefix.
func PhotoKey(userID string, day time.Time, stage, ext string) string {
	return fmt.Sprintf("%s/%s/%s-%s%s", userID, day.Format(domain.DateLayout), stage, uuid.New().String(), ext)
}

// storePhoto checks the upload by content, not by its declared type, and stores it.
func (s *AttendanceService) storePhoto(ctx context.Context, userID string, day time.Time, stage string, photo *domain.Photo) (string, error) {
	if s.photos == nil {
		return "", errors.BadRequest("photo uploads are disabled")
	}
	if s.maxUploadSize > 0 && photo.Size > s.maxUploadSize {
		return "", errors.Validation(map[string]string{
			"image": fmt.Sprintf("must be at most %d bytes", s.maxUploadSize),
		})
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(photo.Body, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", errors.BadRequest("failed to read image")
	}
	if n == 0 {
		return "", errors.Validation(map[string]string{"image": "must not be empty"})
	}
	head = head[:n]

	contentType := http.DetectContentType(head)
	ext, ok := photoExtensions[contentType]
	if !ok {
		return "", errors.Validation(map[string]string{"image": "must be a JPEG, PNG, GIF or WebP image"})
	}

	size := photo.Size
	if size <= 0 {
		size = -1
	}

	key := PhotoKey(userID, day, stage, ext)
	body := io.MultiReader(bytes.NewReader(head), photo.Body)
	if err := s.photos.Put(ctx, key, body, size, contentType); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Str("key", key).Msg("failed to store photo")
		return "", errors.Internal("failed to store photo", err)
	}
	return key, nil
}

// discardPhoto removes a photo whose record was never written.
func (s *AttendanceService) discardPhoto(ctx context.Context, key *string) {
	if key == nil || s.photos == nil {
		return
	}
	if err := s.photos.Delete(ctx, *key); err != nil {
		s.logger.Warn().Err(err).Str("key", *key).Msg("failed to remove orphaned photo")
	}
}
