package stcp

import "github.com/google/btree"

// fragment is a stretch of payload bytes waiting for the gap before it
// to close. first is the absolute index of its first byte.
type fragment struct {
	first uint64
	data  []byte
}

func (f fragment) last() uint64 {
	return f.first + uint64(len(f.data)) - 1
}

func fragmentLess(a, b fragment) bool {
	return a.first < b.first
}

// Reassembler accepts substrings of a byte stream at arbitrary
// offsets, possibly out of order and overlapping, and writes the
// longest contiguous prefix into its output stream. Future fragments
// are held in an ordered set keyed by start index; bytes beyond the
// output's available capacity are discarded for good.
type Reassembler struct {
	output       *ByteStream
	pending      *btree.BTreeG[fragment]
	bytesPending uint64
	totalLen     uint64
	haveTotalLen bool
}

func NewReassembler(output *ByteStream) *Reassembler {
	return &Reassembler{
		output:  output,
		pending: btree.NewG(8, fragmentLess),
	}
}

func (r *Reassembler) Output() *ByteStream {
	return r.output
}

// BytesPending is the number of bytes held back waiting for gaps.
func (r *Reassembler) BytesPending() uint64 {
	return r.bytesPending
}

// Insert offers the substring data starting at absolute index
// firstIndex. isLast marks the substring holding the final byte of the
// stream; the output closes once every byte up to that point has been
// written.
func (r *Reassembler) Insert(firstIndex uint64, data []byte, isLast bool) {
	if isLast && !r.haveTotalLen {
		r.totalLen = firstIndex + uint64(len(data))
		r.haveTotalLen = true
	}

	next := r.output.BytesPushed()
	windowEnd := next + r.output.AvailableCapacity()

	if firstIndex < next {
		skip := next - firstIndex
		if skip >= uint64(len(data)) {
			data = nil
		} else {
			data = data[skip:]
			firstIndex = next
		}
	}
	if len(data) > 0 {
		if firstIndex >= windowEnd {
			data = nil
		} else if firstIndex+uint64(len(data)) > windowEnd {
			data = data[:windowEnd-firstIndex]
		}
	}

	if len(data) > 0 {
		if firstIndex == next {
			r.output.Push(data)
			r.drain()
		} else {
			r.store(firstIndex, data)
		}
	}

	if r.haveTotalLen && r.output.BytesPushed() == r.totalLen {
		r.output.Close()
	}
}

// drain writes every pending fragment that has become contiguous with
// the output. The minimum entry is removed before it is written, so
// the pending count strictly decreases and the loop terminates.
func (r *Reassembler) drain() {
	for {
		f, ok := r.pending.Min()
		if !ok {
			return
		}
		next := r.output.BytesPushed()
		if f.first > next {
			return
		}
		r.pending.Delete(f)
		r.bytesPending -= uint64(len(f.data))
		data := f.data
		if f.first < next {
			skip := next - f.first
			if skip >= uint64(len(data)) {
				continue
			}
			data = data[skip:]
		}
		r.output.Push(data)
	}
}

// store merges a future fragment into the pending set, keeping the set
// pairwise disjoint.
func (r *Reassembler) store(firstIndex uint64, data []byte) {
	// the caller may reuse its buffer; pending fragments own their bytes
	owned := make([]byte, len(data))
	copy(owned, data)
	newFrag := fragment{first: firstIndex, data: owned}
	end := newFrag.last()

	// an existing fragment that already covers the new one wins
	contained := false
	r.pending.DescendLessOrEqual(fragment{first: firstIndex}, func(f fragment) bool {
		contained = f.last() >= end
		return false
	})
	if contained {
		return
	}

	// fragments fully covered by the new one are replaced by it
	var covered []fragment
	r.pending.AscendGreaterOrEqual(fragment{first: firstIndex}, func(f fragment) bool {
		if f.first > end {
			return false
		}
		if f.last() <= end {
			covered = append(covered, f)
		}
		return true
	})
	for _, f := range covered {
		r.pending.Delete(f)
		r.bytesPending -= uint64(len(f.data))
	}

	r.pending.ReplaceOrInsert(newFrag)
	r.bytesPending += uint64(len(data))

	// at most one partial overlap can remain on either side; the
	// earlier fragment loses its tail
	if prev, ok := r.predecessor(firstIndex); ok && prev.last() >= firstIndex {
		r.trimTail(prev, prev.last()-firstIndex+1)
	}
	if succ, ok := r.successor(firstIndex); ok && succ.first <= end {
		r.trimTail(newFrag, end-succ.first+1)
	}
}

// predecessor returns the pending fragment with the largest start
// index strictly below first.
func (r *Reassembler) predecessor(first uint64) (fragment, bool) {
	var out fragment
	found := false
	if first == 0 {
		return out, false
	}
	r.pending.DescendLessOrEqual(fragment{first: first - 1}, func(f fragment) bool {
		out, found = f, true
		return false
	})
	return out, found
}

// successor returns the pending fragment with the smallest start index
// strictly above first.
func (r *Reassembler) successor(first uint64) (fragment, bool) {
	var out fragment
	found := false
	r.pending.AscendGreaterOrEqual(fragment{first: first + 1}, func(f fragment) bool {
		out, found = f, true
		return false
	})
	return out, found
}

func (r *Reassembler) trimTail(f fragment, overlap uint64) {
	f.data = f.data[:uint64(len(f.data))-overlap]
	r.pending.ReplaceOrInsert(f)
	r.bytesPending -= overlap
}
