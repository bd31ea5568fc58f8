package stcp

// SeqNum is a sequence number as it appears on the wire: a 32-bit
// value relative to a zero point, wrapping modulo 2^32.
type SeqNum uint32

// WrapSeqNum converts an absolute sequence number to its wire form.
func WrapSeqNum(n uint64, zeroPoint SeqNum) SeqNum {
	return zeroPoint + SeqNum(n)
}

// Unwrap returns the absolute sequence number that wraps to s and lies
// closest to checkpoint. Ties break toward the smaller value, and the
// result is never negative even when checkpoint sits near zero.
func (s SeqNum) Unwrap(zeroPoint SeqNum, checkpoint uint64) uint64 {
	offset := uint64(s - WrapSeqNum(checkpoint, zeroPoint))
	n := checkpoint + offset
	if offset >= 1<<31 && n >= 1<<32 {
		n -= 1 << 32
	}
	return n
}
