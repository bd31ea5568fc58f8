package stcp

// SenderMessage is the sender-to-receiver half of a segment. SYN, each
// payload byte, and FIN occupy one position of sequence space each.
type SenderMessage struct {
	Seqno   SeqNum
	SYN     bool
	Payload []byte
	FIN     bool
	RST     bool
}

// SequenceLength is the number of sequence positions the message
// occupies.
func (m SenderMessage) SequenceLength() uint64 {
	n := uint64(len(m.Payload))
	if m.SYN {
		n++
	}
	if m.FIN {
		n++
	}
	return n
}

// ReceiverMessage is the receiver-to-sender half of a segment. Ackno
// is meaningful only while ACK is set, as on the wire.
type ReceiverMessage struct {
	Ackno      SeqNum
	ACK        bool
	WindowSize uint16
	RST        bool
}
