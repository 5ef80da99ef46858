// Package surface models the embedded simulation viewport. The simulation
// owns its rendering; the controller only records which foreign window
// handle is hosted and at what fixed size, and exposes that descriptor to
// the UI. Frame contents are never inspected or buffered here.
package surface

import (
	"errors"
	"fmt"
	"time"

	"github.com/orbitctl/orbitctl/internal/log"
)

// Embedding errors
var (
	// ErrInvalidHandle is returned when the window handle cannot identify a
	// real window. Fatal to startup.
	ErrInvalidHandle = errors.New("invalid window handle")
)

// Default viewport dimensions, matching the simulation's own window.
const (
	DefaultWidth  = 600
	DefaultHeight = 600
)

// Size is the fixed viewport size of an embedded surface.
type Size struct {
	Width  int
	Height int
}

// DefaultSize returns the standard 600x600 viewport.
func DefaultSize() Size {
	return Size{Width: DefaultWidth, Height: DefaultHeight}
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// Surface is a hosted simulation viewport. Once embedded, its handle and
// size never change for the lifetime of the process instance.
type Surface struct {
	handle     int64
	size       Size
	embeddedAt time.Time
}

// Embed hosts the foreign window identified by handle at the given fixed
// size. A non-positive handle can never identify a window and fails with
// ErrInvalidHandle. A zero size falls back to the default viewport.
func Embed(handle int64, size Size) (*Surface, error) {
	if handle <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidHandle, handle)
	}
	if size.Width <= 0 || size.Height <= 0 {
		size = DefaultSize()
	}

	s := &Surface{
		handle:     handle,
		size:       size,
		embeddedAt: time.Now(),
	}

	log.Info(log.CatSurface, "Surface embedded",
		"handle", handle,
		"size", size.String())

	return s, nil
}

// Handle returns the hosted window handle.
func (s *Surface) Handle() int64 {
	return s.handle
}

// Size returns the fixed viewport size.
func (s *Surface) Size() Size {
	return s.size
}

// EmbeddedAt returns when the surface was embedded.
func (s *Surface) EmbeddedAt() time.Time {
	return s.embeddedAt
}
