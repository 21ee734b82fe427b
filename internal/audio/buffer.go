package audio

import (
	"sync"
)

// FrameBuffer accumulates float samples and emits fixed-size blocks.
// It is safe to write from an audio callback thread.
type FrameBuffer struct {
	mu    sync.Mutex
	block []float32
	fill  int
}

// NewFrameBuffer creates a buffer that emits blocks of size samples.
func NewFrameBuffer(size int) *FrameBuffer {
	if size <= 0 {
		size = 4096
	}
	return &FrameBuffer{
		block: make([]float32, size),
	}
}

// Write appends samples and calls emit once for every completed block.
// Each emitted slice is freshly allocated and owned by the receiver.
// Returns the number of blocks emitted.
func (fb *FrameBuffer) Write(samples []float32, emit func(block []float32)) int {
	var ready [][]float32

	fb.mu.Lock()
	for len(samples) > 0 {
		n := copy(fb.block[fb.fill:], samples)
		fb.fill += n
		samples = samples[n:]

		if fb.fill == len(fb.block) {
			ready = append(ready, fb.block)
			fb.block = make([]float32, len(fb.block))
			fb.fill = 0
		}
	}
	fb.mu.Unlock()

	// Emit outside the lock so emit may call back into the buffer.
	for _, block := range ready {
		emit(block)
	}
	return len(ready)
}

// Buffered returns the number of samples waiting for a full block.
func (fb *FrameBuffer) Buffered() int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.fill
}

// Size returns the block size.
func (fb *FrameBuffer) Size() int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return len(fb.block)
}

// Reset drops any partial block.
func (fb *FrameBuffer) Reset() {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.fill = 0
}
