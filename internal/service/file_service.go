package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	apperrors "fileportal/internal/errors"
	"fileportal/internal/gate"
	"fileportal/internal/metrics"
	"fileportal/internal/model"
	"fileportal/internal/repository"
	"fileportal/internal/storage"
)

// User-facing messages returned by FileService.
const (
	MsgNoFileSelected  = "No file selected."
	MsgInvalidFileType = "Invalid file type!"
	MsgFileTooLarge    = "File is too large."
	MsgFileNotFound    = "File not found."
)

// UploadRecord describes a stored object to be added to the registry.
type UploadRecord struct {
	OriginalName string
	Location     string
	StoredName   string
	UploaderID   uint
	ContentType  string
	Size         int64
}

// FileService keeps the registry of uploaded files and moves their bytes
// in and out of the storage provider.
type FileService interface {
	List(ctx context.Context) ([]model.File, error)
	Get(ctx context.Context, id uint) (*model.File, error)
	RecordUpload(ctx context.Context, rec UploadRecord) (*model.File, error)
	Upload(ctx context.Context, uploader *model.User, fh *multipart.FileHeader) (*model.File, error)
	Open(ctx context.Context, user *model.User, id uint) (*model.File, *storage.Object, error)
}

type fileService struct {
	files    repository.FileRepository
	store    storage.Provider
	maxBytes int64
	metrics  *metrics.Metrics
	log      zerolog.Logger
}

// NewFileService creates a file service writing to store. Uploads larger
// than maxBytes are refused.
func NewFileService(files repository.FileRepository, store storage.Provider, maxBytes int64, m *metrics.Metrics, log zerolog.Logger) FileService {
	return &fileService{
		files:    files,
		store:    store,
		maxBytes: maxBytes,
		metrics:  m,
		log:      log.With().Str("component", "files").Logger(),
	}
}

func (s *fileService) List(ctx context.Context) ([]model.File, error) {
	files, err := s.files.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	return files, nil
}

func (s *fileService) Get(ctx context.Context, id uint) (*model.File, error) {
	file, err := s.files.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound(MsgFileNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find file: %w", err)
	}
	return file, nil
}

func (s *fileService) RecordUpload(ctx context.Context, rec UploadRecord) (*model.File, error) {
	file := &model.File{
		StoredName:   rec.StoredName,
		OriginalName: rec.OriginalName,
		Path:         rec.Location,
		ContentType:  rec.ContentType,
		Size:         rec.Size,
		UploadedBy:   rec.UploaderID,
	}
	if err := s.files.Create(ctx, file); err != nil {
		return nil, fmt.Errorf("record upload: %w", err)
	}
	return file, nil
}

// Upload validates and stores one file for an administrator. Nothing is
// written when validation fails, and the stored object is removed again if
// the registry insert fails.
func (s *fileService) Upload(ctx context.Context, uploader *model.User, fh *multipart.FileHeader) (*model.File, error) {
	file, err := s.upload(ctx, uploader, fh)
	if err != nil {
		s.metrics.Uploads.WithLabelValues(uploadOutcome(err)).Inc()
		return nil, err
	}

	s.metrics.Uploads.WithLabelValues(metrics.OutcomeSuccess).Inc()
	s.metrics.UploadBytes.Add(float64(file.Size))
	s.log.Info().
		Uint("file_id", file.ID).
		Uint("uploaded_by", file.UploadedBy).
		Str("original_name", file.OriginalName).
		Int64("size", file.Size).
		Msg("file uploaded")
	return file, nil
}

func (s *fileService) upload(ctx context.Context, uploader *model.User, fh *multipart.FileHeader) (*model.File, error) {
	if err := gate.Authorize(uploader, gate.Admin()...); err != nil {
		return nil, err
	}
	if fh == nil || fh.Filename == "" {
		return nil, apperrors.Validation(MsgNoFileSelected)
	}
	if !storage.AllowedFile(fh.Filename) {
		return nil, apperrors.Validation(MsgInvalidFileType)
	}
	originalName := storage.SecureFilename(fh.Filename)
	if originalName == "" || !storage.AllowedFile(originalName) {
		return nil, apperrors.Validation(MsgInvalidFileType)
	}
	if fh.Size > s.maxBytes {
		return nil, apperrors.New(apperrors.ErrPayloadTooLarge, MsgFileTooLarge)
	}

	src, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	mtype, err := mimetype.DetectReader(src)
	if err != nil {
		return nil, fmt.Errorf("detect content type: %w", err)
	}
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind upload: %w", err)
	}

	storedName := storage.StoredName(originalName)
	location, err := s.store.Put(ctx, storedName, io.LimitReader(src, s.maxBytes), fh.Size, mtype.String())
	if err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}

	file, err := s.RecordUpload(ctx, UploadRecord{
		OriginalName: originalName,
		Location:     location,
		StoredName:   storedName,
		UploaderID:   uploader.ID,
		ContentType:  mtype.String(),
		Size:         fh.Size,
	})
	if err != nil {
		if delErr := s.store.Delete(context.WithoutCancel(ctx), location); delErr != nil {
			s.log.Error().Err(delErr).Str("location", location).Msg("remove orphaned object")
		}
		return nil, err
	}
	return file, nil
}

func uploadOutcome(err error) string {
	if errors.Is(err, apperrors.ErrForbidden) || errors.Is(err, apperrors.ErrUnauthenticated) {
		return metrics.OutcomeDenied
	}
	return metrics.OutcomeFailure
}

// Open returns the record and stored bytes of a file for an approved user.
// The caller closes the object body. A record whose location escapes the
// storage root is refused with ErrForbidden.
func (s *fileService) Open(ctx context.Context, user *model.User, id uint) (*model.File, *storage.Object, error) {
	file, obj, err := s.open(ctx, user, id)
	if err != nil {
		s.metrics.Downloads.WithLabelValues(downloadOutcome(err)).Inc()
		return nil, nil, err
	}
	s.metrics.Downloads.WithLabelValues(metrics.OutcomeSuccess).Inc()
	return file, obj, nil
}

func (s *fileService) open(ctx context.Context, user *model.User, id uint) (*model.File, *storage.Object, error) {
	if err := gate.Authorize(user, gate.Approved()...); err != nil {
		return nil, nil, err
	}

	file, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	if !s.store.Contains(file.Path) {
		s.log.Warn().Uint("file_id", file.ID).Str("location", file.Path).Msg("file location outside storage root")
		return nil, nil, apperrors.ErrForbidden
	}

	obj, err := s.store.Open(ctx, file.Path)
	switch {
	case errors.Is(err, storage.ErrObjectNotFound):
		s.log.Warn().Uint("file_id", file.ID).Msg("stored object missing")
		return nil, nil, apperrors.NotFound(MsgFileNotFound)
	case errors.Is(err, storage.ErrOutsideRoot):
		return nil, nil, apperrors.ErrForbidden
	case err != nil:
		return nil, nil, fmt.Errorf("open stored file: %w", err)
	}

	if file.ContentType != "" {
		obj.ContentType = file.ContentType
	}
	return file, obj, nil
}

func downloadOutcome(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrForbidden), errors.Is(err, apperrors.ErrUnauthenticated):
		return metrics.OutcomeDenied
	default:
		return metrics.OutcomeFailure
	}
}
