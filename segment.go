package stcp

import "encoding/binary"

// Wire form of one segment, both directions of control in a single
// fixed header:
//
//	dataOffset(1) flags(1) seqno(4) ackno(4) window(2) checksum(2) payload
//
// dataOffset is the header length in bytes, so the format can grow
// without breaking old parsers.

func isFlaggedAs(input byte, flag byte) bool {
	return input&flag == flag
}

// marshalSegment encodes the sender half and the piggybacked receiver
// half into one wire segment, checksum included.
func marshalSegment(snd SenderMessage, rcv ReceiverMessage) []byte {
	buffer := make([]byte, headerLength+len(snd.Payload))
	buffer[dataOffsetPosition.Start] = headerLength
	var flags byte
	if snd.SYN {
		flags |= flagSYN
	}
	if snd.FIN {
		flags |= flagFIN
	}
	if snd.RST || rcv.RST {
		flags |= flagRST
	}
	if rcv.ACK {
		flags |= flagACK
	}
	buffer[flagPosition.Start] = flags
	binary.BigEndian.PutUint32(buffer[sequenceNumberPosition.Start:sequenceNumberPosition.End], uint32(snd.Seqno))
	binary.BigEndian.PutUint32(buffer[ackNumberPosition.Start:ackNumberPosition.End], uint32(rcv.Ackno))
	binary.BigEndian.PutUint16(buffer[windowSizePosition.Start:windowSizePosition.End], rcv.WindowSize)
	copy(buffer[headerLength:], snd.Payload)
	checksum := calculateChecksum(buffer)
	binary.BigEndian.PutUint16(buffer[checksumPosition.Start:checksumPosition.End], checksum)
	return buffer
}

// unmarshalSegment decodes one wire segment. Segments that are too
// short, claim an impossible header, or fail the checksum come back as
// invalidSegment.
func unmarshalSegment(buffer []byte) (SenderMessage, ReceiverMessage, statusCode) {
	var snd SenderMessage
	var rcv ReceiverMessage
	if len(buffer) < headerLength {
		return snd, rcv, invalidSegment
	}
	offset := int(buffer[dataOffsetPosition.Start])
	if offset < headerLength || offset > len(buffer) {
		return snd, rcv, invalidSegment
	}
	if !verifyChecksum(buffer) {
		return snd, rcv, invalidSegment
	}
	flags := buffer[flagPosition.Start]
	snd.Seqno = SeqNum(binary.BigEndian.Uint32(buffer[sequenceNumberPosition.Start:sequenceNumberPosition.End]))
	snd.SYN = isFlaggedAs(flags, flagSYN)
	snd.FIN = isFlaggedAs(flags, flagFIN)
	snd.RST = isFlaggedAs(flags, flagRST)
	if len(buffer) > offset {
		snd.Payload = buffer[offset:]
	}
	rcv.Ackno = SeqNum(binary.BigEndian.Uint32(buffer[ackNumberPosition.Start:ackNumberPosition.End]))
	rcv.ACK = isFlaggedAs(flags, flagACK)
	rcv.WindowSize = binary.BigEndian.Uint16(buffer[windowSizePosition.Start:windowSizePosition.End])
	rcv.RST = isFlaggedAs(flags, flagRST)
	return snd, rcv, success
}

// calculateChecksum folds the buffer into the one's-complement 16-bit
// sum, checksum field taken as zero.
func calculateChecksum(buffer []byte) uint16 {
	var cksum uint32
	for i := 0; i+1 < len(buffer); i += 2 {
		if i == checksumPosition.Start {
			continue
		}
		cksum += uint32(binary.BigEndian.Uint16(buffer[i : i+2]))
	}
	if len(buffer)%2 != 0 {
		cksum += uint32(buffer[len(buffer)-1]) << 8
	}
	cksum = (cksum >> 16) + (cksum & 0xffff)
	cksum += cksum >> 16
	return ^uint16(cksum)
}

func verifyChecksum(buffer []byte) bool {
	received := binary.BigEndian.Uint16(buffer[checksumPosition.Start:checksumPosition.End])
	return received == calculateChecksum(buffer)
}
