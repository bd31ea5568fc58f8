package stcp

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type ReceiverTestSuite struct {
	stcpTestSuite
}

func newTestReceiver(capacity uint64) *Receiver {
	return NewReceiver(NewReassembler(NewByteStream(capacity)))
}

func (suite *ReceiverTestSuite) TestNoAcknoBeforeSyn() {
	rcv := newTestReceiver(10)
	msg := rcv.Send()
	suite.False(msg.ACK)
	suite.Equal(uint16(10), msg.WindowSize)
}

func (suite *ReceiverTestSuite) TestDataBeforeSynIgnored() {
	rcv := newTestReceiver(10)
	rcv.Receive(SenderMessage{Seqno: 42, Payload: []byte("abc")})
	suite.Equal(uint64(0), rcv.Output().BytesPushed())
	suite.False(rcv.Send().ACK)
}

func (suite *ReceiverTestSuite) TestSynSetsZeroPoint() {
	rcv := newTestReceiver(10)
	rcv.Receive(SenderMessage{Seqno: 1000, SYN: true})
	msg := rcv.Send()
	suite.True(msg.ACK)
	suite.Equal(SeqNum(1001), msg.Ackno)
}

func (suite *ReceiverTestSuite) TestSynWithPayload() {
	rcv := newTestReceiver(10)
	rcv.Receive(SenderMessage{Seqno: 1000, SYN: true, Payload: []byte("ab")})
	suite.Equal("ab", string(rcv.Output().Peek()))
	suite.Equal(SeqNum(1003), rcv.Send().Ackno)
}

func (suite *ReceiverTestSuite) TestInOrderData() {
	rcv := newTestReceiver(10)
	rcv.Receive(SenderMessage{Seqno: 1000, SYN: true})
	rcv.Receive(SenderMessage{Seqno: 1001, Payload: []byte("abcd")})
	suite.Equal("abcd", string(rcv.Output().Peek()))
	suite.Equal(SeqNum(1005), rcv.Send().Ackno)
}

func (suite *ReceiverTestSuite) TestOutOfOrderDataHeldBack() {
	rcv := newTestReceiver(10)
	rcv.Receive(SenderMessage{Seqno: 1000, SYN: true})
	rcv.Receive(SenderMessage{Seqno: 1003, Payload: []byte("cd")})
	suite.Equal(uint64(0), rcv.Output().BytesPushed())
	suite.Equal(SeqNum(1001), rcv.Send().Ackno)

	rcv.Receive(SenderMessage{Seqno: 1001, Payload: []byte("ab")})
	suite.Equal("abcd", string(rcv.Output().Peek()))
	suite.Equal(SeqNum(1005), rcv.Send().Ackno)
}

func (suite *ReceiverTestSuite) TestFinClosesStream() {
	rcv := newTestReceiver(10)
	rcv.Receive(SenderMessage{Seqno: 1000, SYN: true})
	rcv.Receive(SenderMessage{Seqno: 1001, Payload: []byte("ab"), FIN: true})
	suite.True(rcv.Output().IsClosed())
	// SYN, two payload bytes, and FIN are all acknowledged
	suite.Equal(SeqNum(1004), rcv.Send().Ackno)
}

func (suite *ReceiverTestSuite) TestSegmentAtSynSlotDropped() {
	rcv := newTestReceiver(10)
	rcv.Receive(SenderMessage{Seqno: 1000, SYN: true})
	rcv.Receive(SenderMessage{Seqno: 1000, Payload: []byte("xyz")})
	suite.Equal(uint64(0), rcv.Output().BytesPushed())
}

func (suite *ReceiverTestSuite) TestRetransmittedSynHarmless() {
	rcv := newTestReceiver(10)
	rcv.Receive(SenderMessage{Seqno: 1000, SYN: true})
	rcv.Receive(SenderMessage{Seqno: 1001, Payload: []byte("ab")})
	rcv.Receive(SenderMessage{Seqno: 1000, SYN: true})
	suite.Equal("ab", string(rcv.Output().Peek()))
	suite.Equal(SeqNum(1003), rcv.Send().Ackno)
}

func (suite *ReceiverTestSuite) TestWindowClampedToUint16() {
	rcv := newTestReceiver(1 << 20)
	suite.Equal(uint16(65535), rcv.Send().WindowSize)
}

func (suite *ReceiverTestSuite) TestWindowShrinksWithBufferedBytes() {
	rcv := newTestReceiver(10)
	rcv.Receive(SenderMessage{Seqno: 1000, SYN: true, Payload: []byte("abcd")})
	suite.Equal(uint16(6), rcv.Send().WindowSize)
}

func (suite *ReceiverTestSuite) TestRstLatchesAndErrors() {
	rcv := newTestReceiver(10)
	rcv.Receive(SenderMessage{Seqno: 1000, SYN: true})
	rcv.Receive(SenderMessage{RST: true})
	suite.True(rcv.Output().HasError())
	suite.True(rcv.Send().RST)

	rcv.Receive(SenderMessage{Seqno: 1001, Payload: []byte("ab")})
	suite.Equal(uint64(0), rcv.Output().BytesPushed())
}

func (suite *ReceiverTestSuite) TestIsnNearWrap() {
	zero := SeqNum(1<<32 - 2)
	rcv := newTestReceiver(10)
	rcv.Receive(SenderMessage{Seqno: zero, SYN: true})
	rcv.Receive(SenderMessage{Seqno: zero + 1, Payload: []byte("ab")})
	suite.Equal("ab", string(rcv.Output().Peek()))
	// the ackno has wrapped past zero
	suite.Equal(SeqNum(1), rcv.Send().Ackno)
}

func TestReceiver(t *testing.T) {
	suite.Run(t, new(ReceiverTestSuite))
}
