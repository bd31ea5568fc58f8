package stcp

// Receiver turns inbound segments into writes on its reassembler and
// reports the acknowledgment point and advertised window back to the
// peer.
type Receiver struct {
	reassembler *Reassembler
	zeroPoint   SeqNum
	synReceived bool
	rst         bool
}

func NewReceiver(reassembler *Reassembler) *Receiver {
	return &Receiver{reassembler: reassembler}
}

func (rcv *Receiver) Output() *ByteStream {
	return rcv.reassembler.Output()
}

func (rcv *Receiver) Reassembler() *Reassembler {
	return rcv.reassembler
}

// Receive processes one inbound segment. Segments before the peer's
// SYN and after an RST are ignored.
func (rcv *Receiver) Receive(msg SenderMessage) {
	if msg.RST {
		rcv.reassembler.Output().SetError()
		rcv.rst = true
		return
	}
	if rcv.rst {
		return
	}
	seqno := msg.Seqno
	if msg.SYN {
		if !rcv.synReceived {
			rcv.zeroPoint = msg.Seqno
			rcv.synReceived = true
		}
		// the SYN occupies one sequence number; payload starts after it
		seqno++
	}
	if !rcv.synReceived {
		return
	}
	checkpoint := rcv.reassembler.Output().BytesPushed() + 1
	abs := seqno.Unwrap(rcv.zeroPoint, checkpoint)
	if abs == 0 {
		// payload claims the slot the SYN consumed
		return
	}
	rcv.reassembler.Insert(abs-1, msg.Payload, msg.FIN)
}

// Send reports the current acknowledgment point, the advertised
// window, and whether the inbound stream has errored.
func (rcv *Receiver) Send() ReceiverMessage {
	out := rcv.reassembler.Output()
	msg := ReceiverMessage{RST: out.HasError()}
	if rcv.synReceived {
		ackAbs := out.BytesPushed() + 1
		if out.IsClosed() {
			ackAbs++
		}
		msg.Ackno = WrapSeqNum(ackAbs, rcv.zeroPoint)
		msg.ACK = true
	}
	if wnd := out.AvailableCapacity(); wnd > 65535 {
		msg.WindowSize = 65535
	} else {
		msg.WindowSize = uint16(wnd)
	}
	return msg
}
