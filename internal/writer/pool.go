package writer

// bufferPool is an arena of fixed-size buffers addressed by index.
// All buffers share one contiguous backing array and are never resized.
type bufferPool struct {
	buffers    [][]byte
	recordSize int
	capacity   int
}

func newBufferPool(bufferCount, recordsPerBuffer, recordSize int) *bufferPool {
	stride := recordsPerBuffer * recordSize
	backing := make([]byte, bufferCount*stride)

	buffers := make([][]byte, bufferCount)
	for i := range buffers {
		off := i * stride
		buffers[i] = backing[off : off+stride : off+stride]
	}

	return &bufferPool{
		buffers:    buffers,
		recordSize: recordSize,
		capacity:   recordsPerBuffer,
	}
}

// slot returns the record window for a 1-based slot index.
func (p *bufferPool) slot(buffer, slot int) []byte {
	off := (slot - 1) * p.recordSize
	return p.buffers[buffer][off : off+p.recordSize : off+p.recordSize]
}

// filled returns the first count records of a buffer.
func (p *bufferPool) filled(buffer, count int) []byte {
	return p.buffers[buffer][:count*p.recordSize]
}

// full returns the whole buffer.
func (p *bufferPool) full(buffer int) []byte {
	return p.buffers[buffer]
}
