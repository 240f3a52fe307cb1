package service

import (
	"crypto/rand"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Option customises a service.
type Option func(*options)

type options struct {
	now func() time.Time
	ids IDGenerator
}

func newOptions(opts []Option) options {
	o := options{
		now: func() time.Time { return time.Now().UTC() },
		ids: NewULIDGenerator(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithClock overrides the time source. Returned times are converted to UTC.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = func() time.Time { return now().UTC() }
	}
}

// WithIDGenerator overrides message id generation.
func WithIDGenerator(ids IDGenerator) Option {
	return func(o *options) { o.ids = ids }
}

// IDGenerator produces message ids.
type IDGenerator interface {
	Generate(at time.Time) (string, error)
}

// ULIDGenerator produces ULIDs that increase monotonically within the
// process, so ids sort in insertion order even within one millisecond.
type ULIDGenerator struct {
	mu      sync.Mutex
	entropy io.Reader
}

func NewULIDGenerator() *ULIDGenerator {
	return &ULIDGenerator{entropy: ulid.Monotonic(rand.Reader, 0)}
}

func (g *ULIDGenerator) Generate(at time.Time) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	id, err := ulid.New(ulid.Timestamp(at), g.entropy)
	if err != nil {
		return "", fmt.Errorf("failed to generate ULID: %w", err)
	}
	return id.String(), nil
}

// pageBounds clamps page and limit and returns the row offset.
func pageBounds(page, limit, defaultLimit, maxLimit int) (int, int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultLimit
	}
	if maxLimit > 0 && limit > maxLimit {
		limit = maxLimit
	}
	return page, limit, (page - 1) * limit
}

func totalPages(total int64, limit int) int {
	if limit <= 0 {
		return 0
	}
	return int((total + int64(limit) - 1) / int64(limit))
}
