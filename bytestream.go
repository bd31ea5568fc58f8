package stcp

// ByteStream is a bounded byte pipe with one writer and one reader.
// The writer pushes until it closes the stream, the reader peeks and
// pops; interleaving two concurrent writers or two concurrent readers
// is undefined.
type ByteStream struct {
	capacity uint64
	buf      []byte
	pushed   uint64
	popped   uint64
	closed   bool
	err      bool
}

func NewByteStream(capacity uint64) *ByteStream {
	return &ByteStream{capacity: capacity}
}

// Push appends up to AvailableCapacity bytes of data and silently
// discards the excess. It is a no-op once the stream is closed or has
// errored.
func (s *ByteStream) Push(data []byte) {
	if s.closed || s.err {
		return
	}
	if avail := s.AvailableCapacity(); uint64(len(data)) > avail {
		data = data[:avail]
	}
	s.buf = append(s.buf, data...)
	s.pushed += uint64(len(data))
}

// Close ends the writer side. Buffered bytes remain readable.
func (s *ByteStream) Close() {
	s.closed = true
}

// SetError marks the stream broken. The flag is sticky and does not
// close the stream.
func (s *ByteStream) SetError() {
	s.err = true
}

// Peek returns a view of the buffered bytes. The view is valid until
// the next mutating operation.
func (s *ByteStream) Peek() []byte {
	return s.buf
}

// Pop removes min(n, BytesBuffered) bytes from the front.
func (s *ByteStream) Pop(n uint64) {
	if n > uint64(len(s.buf)) {
		n = uint64(len(s.buf))
	}
	s.buf = s.buf[n:]
	s.popped += n
}

func (s *ByteStream) BytesPushed() uint64 {
	return s.pushed
}

func (s *ByteStream) BytesPopped() uint64 {
	return s.popped
}

func (s *ByteStream) BytesBuffered() uint64 {
	return uint64(len(s.buf))
}

func (s *ByteStream) AvailableCapacity() uint64 {
	return s.capacity - uint64(len(s.buf))
}

func (s *ByteStream) IsClosed() bool {
	return s.closed
}

// IsFinished reports whether the stream is closed and fully drained.
func (s *ByteStream) IsFinished() bool {
	return s.closed && len(s.buf) == 0
}

func (s *ByteStream) HasError() bool {
	return s.err
}
