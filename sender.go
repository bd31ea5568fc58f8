package stcp

// TransmitFunc delivers one segment toward the peer. It is invoked
// exactly once per emitted or retransmitted segment.
type TransmitFunc func(SenderMessage)

type senderState int

const (
	stateClosed senderState = iota
	stateSynSent
	stateEstablished
	stateFinSent
	stateDone
)

// Sender segments its input stream under the peer-advertised window,
// tracks what is in flight, and retransmits the oldest outstanding
// segment on timeout with exponential backoff. Time only advances
// through Tick.
type Sender struct {
	input      *ByteStream
	isn        SeqNum
	initialRTO uint64

	state           senderState
	nextSeq         uint64
	ackno           uint64
	inFlight        uint64
	windowSize      uint16
	rto             uint64
	clock           uint64
	expiry          uint64
	timerRunning    bool
	consecutiveRetx uint64
	outstanding     outstandingQueue
}

// NewSender builds a sender reading from input, with the given initial
// sequence number and retransmission timeout in milliseconds. The
// window starts at one sequence position until the peer advertises.
func NewSender(input *ByteStream, isn SeqNum, initialRTOMs uint64) *Sender {
	return &Sender{
		input:      input,
		isn:        isn,
		initialRTO: initialRTOMs,
		rto:        initialRTOMs,
		windowSize: 1,
	}
}

func (snd *Sender) Input() *ByteStream {
	return snd.input
}

// SequenceNumbersInFlight is the number of sequence positions sent but
// not yet acknowledged.
func (snd *Sender) SequenceNumbersInFlight() uint64 {
	return snd.inFlight
}

// ConsecutiveRetransmissions counts back-to-back retransmissions since
// the last acknowledged progress. Retransmissions made while the peer
// advertises a zero window are not counted.
func (snd *Sender) ConsecutiveRetransmissions() uint64 {
	return snd.consecutiveRetx
}

// MakeEmptyMessage returns a zero-length segment at the current send
// position, carrying RST if the input stream has errored. The adapter
// uses it to acknowledge or reset without occupying sequence space.
func (snd *Sender) MakeEmptyMessage() SenderMessage {
	return SenderMessage{
		Seqno: WrapSeqNum(snd.nextSeq, snd.isn),
		RST:   snd.input.HasError(),
	}
}

// Push emits as many segments as the current window permits. A zero
// advertised window is treated as one so a single probe byte can keep
// the connection alive.
func (snd *Sender) Push(transmit TransmitFunc) {
	if snd.input.HasError() {
		transmit(SenderMessage{Seqno: WrapSeqNum(snd.nextSeq, snd.isn), RST: true})
		return
	}
	for {
		window := uint64(snd.windowSize)
		if window == 0 {
			window = 1
		}
		if snd.inFlight >= window || snd.state >= stateFinSent {
			return
		}
		budget := window - snd.inFlight

		var msg SenderMessage
		if snd.state == stateClosed {
			msg.SYN = true
			budget--
		}
		n := budget
		if n > maxPayloadSize {
			n = maxPayloadSize
		}
		if buffered := snd.input.BytesBuffered(); n > buffered {
			n = buffered
		}
		if n > 0 {
			payload := make([]byte, n)
			copy(payload, snd.input.Peek())
			snd.input.Pop(n)
			msg.Payload = payload
		}
		if snd.input.IsFinished() && budget-n >= 1 {
			msg.FIN = true
		}
		if msg.SequenceLength() == 0 {
			return
		}

		msg.Seqno = WrapSeqNum(snd.nextSeq, snd.isn)
		snd.outstanding.Enqueue(outstandingSegment{msg: msg, seq: snd.nextSeq})
		snd.nextSeq += msg.SequenceLength()
		snd.inFlight += msg.SequenceLength()
		if msg.FIN {
			snd.state = stateFinSent
		} else if msg.SYN {
			snd.state = stateSynSent
		}
		transmit(msg)
		if !snd.timerRunning {
			snd.timerRunning = true
			snd.expiry = snd.clock + snd.rto
		}
	}
}

// Receive processes an acknowledgment from the peer. Acks beyond the
// next unsent position are impossible and ignored; RST errors the
// input stream and suppresses ack processing.
func (snd *Sender) Receive(msg ReceiverMessage) {
	snd.windowSize = msg.WindowSize
	if msg.RST {
		snd.input.SetError()
		return
	}
	if !msg.ACK {
		return
	}
	ack := msg.Ackno.Unwrap(snd.isn, snd.nextSeq)
	if ack > snd.nextSeq || ack <= snd.ackno {
		return
	}
	snd.ackno = ack
	for {
		front, ok := snd.outstanding.Peek()
		if !ok || front.end() > ack {
			break
		}
		snd.outstanding.Dequeue()
		snd.inFlight -= front.msg.SequenceLength()
	}
	snd.rto = snd.initialRTO
	snd.consecutiveRetx = 0
	if snd.state == stateSynSent {
		snd.state = stateEstablished
	}
	if snd.outstanding.IsEmpty() {
		snd.timerRunning = false
		if snd.state == stateFinSent && ack == snd.nextSeq {
			snd.state = stateDone
		}
	} else {
		snd.timerRunning = true
		snd.expiry = snd.clock + snd.rto
	}
}

// Tick advances the clock by ms milliseconds and retransmits the
// oldest outstanding segment if the timer has expired. Backoff only
// applies while the peer advertises a non-zero window; a zero window
// keeps probing at the unchanged timeout.
func (snd *Sender) Tick(ms uint64, transmit TransmitFunc) {
	snd.clock += ms
	if !snd.timerRunning || snd.clock < snd.expiry {
		return
	}
	front, ok := snd.outstanding.Peek()
	if !ok {
		snd.timerRunning = false
		return
	}
	transmit(front.msg)
	if snd.windowSize > 0 {
		snd.consecutiveRetx++
		snd.rto *= 2
	}
	snd.expiry = snd.clock + snd.rto
}
