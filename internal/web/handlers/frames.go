package handlers

import (
	"context"
	"sync"

	"github.com/kozaktomas/clock-in/internal/capture"
)

// FrameBuffer is a capture.VideoSource fed by frames the kiosk browser
// uploads. It keeps only the latest frame.
type FrameBuffer struct {
	mu     sync.Mutex
	frame  []byte
	err    error
	closed bool
}

// NewFrameBuffer creates an empty frame buffer.
func NewFrameBuffer() *FrameBuffer {
	return &FrameBuffer{}
}

// Push replaces the latest frame. Frames pushed after Close are dropped.
func (b *FrameBuffer) Push(frame []byte) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return false
	}
	b.frame = frame
	return true
}

// Fail records a camera error. ReadFrame returns it from now on.
func (b *FrameBuffer) Fail(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.err = err
	b.frame = nil
}

// ReadFrame returns a copy of the latest frame.
func (b *FrameBuffer) ReadFrame(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	switch {
	case b.closed:
		return nil, capture.ErrNoCamera
	case b.err != nil:
		return nil, b.err
	case b.frame == nil:
		return nil, capture.ErrNoFrame
	}
	return append([]byte(nil), b.frame...), nil
}

// Close releases the buffered frame.
func (b *FrameBuffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.frame = nil
	return nil
}
