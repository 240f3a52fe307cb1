package service

import (
	"context"
	"fmt"
	"mime/multipart"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/weiawesome/wes-gig-live/pkg/log"
	"github.com/weiawesome/wes-gig-live/pkg/storage"
	"github.com/weiawesome/wes-gig-live/realtime-service/internal/domain"
)

type attachmentService struct {
	store   storage.Storage
	maxSize int64
	urlTTL  time.Duration
	now     func() time.Time
	ids     IDGenerator
}

func NewAttachmentService(store storage.Storage, maxSize int64, urlTTL time.Duration, opts ...Option) AttachmentService {
	o := newOptions(opts)
	return &attachmentService{
		store:   store,
		maxSize: maxSize,
		urlTTL:  urlTTL,
		now:     o.now,
		ids:     o.ids,
	}
}

// Upload keys objects by thread: <kind>/<thread id>/<ulid><ext>.
func (s *attachmentService) Upload(ctx context.Context, ref domain.ThreadRef, file *multipart.FileHeader) (*Attachment, error) {
	if err := ref.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if file == nil || file.Size == 0 {
		return nil, fmt.Errorf("%w: empty attachment", ErrInvalidMessage)
	}
	if s.maxSize > 0 && file.Size > s.maxSize {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", ErrAttachmentTooLarge, file.Size, s.maxSize)
	}

	id, err := s.ids.Generate(s.now())
	if err != nil {
		return nil, err
	}
	ext := strings.ToLower(filepath.Ext(file.Filename))
	key := path.Join(string(ref.Kind), ref.ID, id+ext)

	contentType := file.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	src, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open upload: %w", err)
	}
	defer src.Close()

	if err := s.store.Write(ctx, key, src, file.Size, contentType); err != nil {
		return nil, fmt.Errorf("failed to store attachment: %w", err)
	}

	url, err := s.store.GetURL(ctx, key, s.urlTTL)
	if err != nil {
		s.delete(ctx, key)
		return nil, fmt.Errorf("failed to build attachment url: %w", err)
	}

	typ := domain.MessageFile
	if strings.HasPrefix(contentType, "image/") {
		typ = domain.MessageImage
	}
	return &Attachment{Key: key, URL: url, Type: typ}, nil
}

func (s *attachmentService) Discard(ctx context.Context, a *Attachment) {
	if a == nil {
		return
	}
	s.delete(ctx, a.Key)
}

func (s *attachmentService) delete(ctx context.Context, key string) {
	if err := s.store.Delete(ctx, key); err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Str("key", key).Msg("failed to delete orphaned attachment")
	}
}
