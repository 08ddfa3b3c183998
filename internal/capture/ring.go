package capture

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/smallnest/ringbuffer"
)

const bytesPerSample = 4

// sampleRing carries little-endian float32 bytes from the device callback to
// the pump goroutine. Writes never block; a write that does not fit is dropped
// whole.
type sampleRing struct {
	rb  *ringbuffer.RingBuffer
	raw []byte
}

func newSampleRing(capacitySamples, blockSamples int) *sampleRing {
	return &sampleRing{
		rb:  ringbuffer.New(capacitySamples * bytesPerSample).SetBlocking(true),
		raw: make([]byte, blockSamples*bytesPerSample),
	}
}

// write reports false when p was dropped for lack of space. Must only be
// called from one goroutine, so the free space checked here can only grow
// before Write runs.
func (r *sampleRing) write(p []byte) bool {
	if len(p) == 0 {
		return true
	}
	if r.rb.Free() < len(p) {
		return false
	}
	n, err := r.rb.Write(p)
	return err == nil && n == len(p)
}

// readBlock blocks until dst is full or the writer is closed.
func (r *sampleRing) readBlock(dst []float32) error {
	raw := r.raw[:len(dst)*bytesPerSample]
	if _, err := io.ReadFull(r.rb, raw); err != nil {
		return err
	}
	for i := range dst {
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*bytesPerSample:]))
	}
	return nil
}

func (r *sampleRing) closeWriter() {
	r.rb.CloseWriter()
}
