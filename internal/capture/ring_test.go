package capture

import (
	"encoding/binary"
	"math"
	"testing"
)

func encode(samples ...float32) []byte {
	out := make([]byte, len(samples)*bytesPerSample)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(out[i*bytesPerSample:], math.Float32bits(s))
	}
	return out
}

func TestSampleRing_ReadsWholeBlocks(t *testing.T) {
	t.Parallel()
	r := newSampleRing(16, 4)

	if !r.write(encode(0.1, 0.2, 0.3)) {
		t.Fatal("first write dropped")
	}
	if !r.write(encode(0.4, 0.5)) {
		t.Fatal("second write dropped")
	}

	block := make([]float32, 4)
	if err := r.readBlock(block); err != nil {
		t.Fatalf("readBlock: %v", err)
	}
	want := []float32{0.1, 0.2, 0.3, 0.4}
	for i := range want {
		if block[i] != want[i] {
			t.Errorf("block[%d] = %v, want %v", i, block[i], want[i])
		}
	}
}

func TestSampleRing_DropsWriteThatDoesNotFit(t *testing.T) {
	t.Parallel()
	r := newSampleRing(4, 4)

	if !r.write(encode(1, 2, 3)) {
		t.Fatal("write dropped")
	}
	if r.write(encode(4, 5)) {
		t.Fatal("oversized write should be dropped")
	}
	if !r.write(encode(4)) {
		t.Fatal("fitting write dropped")
	}

	block := make([]float32, 4)
	if err := r.readBlock(block); err != nil {
		t.Fatalf("readBlock: %v", err)
	}
	if block[3] != 4 {
		t.Errorf("block = %v, want [1 2 3 4]", block)
	}
}

func TestSampleRing_CloseWriterEndsReader(t *testing.T) {
	t.Parallel()
	r := newSampleRing(8, 4)
	r.write(encode(1, 2))

	done := make(chan error, 1)
	go func() {
		block := make([]float32, 4)
		done <- r.readBlock(block)
	}()
	r.closeWriter()

	if err := <-done; err == nil {
		t.Fatal("readBlock should fail once the writer closes with a partial block")
	}
}
