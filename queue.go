package stcp

import "container/list"

// outstandingSegment is a transmitted message together with the
// absolute sequence number of its first position.
type outstandingSegment struct {
	msg SenderMessage
	seq uint64
}

func (o outstandingSegment) end() uint64 {
	return o.seq + o.msg.SequenceLength()
}

// outstandingQueue is a FIFO of transmitted-but-unacknowledged
// segments in sequence order.
type outstandingQueue struct {
	list list.List
}

func (q *outstandingQueue) Enqueue(seg outstandingSegment) {
	q.list.PushBack(seg)
}

func (q *outstandingQueue) Dequeue() outstandingSegment {
	elem := q.list.Front()
	q.list.Remove(elem)
	return elem.Value.(outstandingSegment)
}

func (q *outstandingQueue) Peek() (outstandingSegment, bool) {
	if q.IsEmpty() {
		return outstandingSegment{}, false
	}
	return q.list.Front().Value.(outstandingSegment), true
}

func (q *outstandingQueue) IsEmpty() bool {
	return q.list.Len() == 0
}

func (q *outstandingQueue) Len() int {
	return q.list.Len()
}
