package stcp

import (
	"container/list"
	"encoding/binary"
	"time"

	"github.com/stretchr/testify/suite"
)

type stcpTestSuite struct {
	suite.Suite
}

func (suite *stcpTestSuite) handleTestError(err error) {
	suite.Require().NoError(err)
}

func collectSegments(dst *[]SenderMessage) TransmitFunc {
	return func(msg SenderMessage) {
		*dst = append(*dst, msg)
	}
}

// channelConnector shuttles datagrams over a pair of buffered channels
// so two endpoints can talk in-memory and fully deterministically.
type channelConnector struct {
	in      chan []byte
	out     chan []byte
	timeout time.Duration
}

func (connector *channelConnector) Close() error {
	close(connector.in)
	return nil
}

func (connector *channelConnector) Write(buffer []byte, timestamp time.Time) (statusCode, int, error) {
	buff := make([]byte, len(buffer))
	copy(buff, buffer)
	connector.out <- buff
	return success, len(buffer), nil
}

func (connector *channelConnector) Read(buffer []byte, timestamp time.Time) (statusCode, int, error) {
	if connector.timeout == 0 {
		buff := <-connector.in
		return success, copy(buffer, buff), nil
	}
	select {
	case buff := <-connector.in:
		return success, copy(buffer, buff), nil
	case <-time.After(connector.timeout):
		return timeout, 0, nil
	}
}

func (connector *channelConnector) SetReadTimeout(t time.Duration) {
	connector.timeout = t
}

// segmentManipulator drops chosen segments on their first pass so
// tests can force retransmission.
type segmentManipulator struct {
	extension  connector
	toDropOnce list.List
}

func (manipulator *segmentManipulator) DropOnce(sequenceNumber uint32) {
	manipulator.toDropOnce.PushFront(sequenceNumber)
}

func (manipulator *segmentManipulator) Write(buffer []byte, timestamp time.Time) (statusCode, int, error) {
	seqno := binary.BigEndian.Uint32(buffer[sequenceNumberPosition.Start:sequenceNumberPosition.End])
	for elem := manipulator.toDropOnce.Front(); elem != nil; elem = elem.Next() {
		if elem.Value.(uint32) == seqno {
			manipulator.toDropOnce.Remove(elem)
			return success, len(buffer), nil
		}
	}
	return manipulator.extension.Write(buffer, timestamp)
}

func (manipulator *segmentManipulator) Read(buffer []byte, timestamp time.Time) (statusCode, int, error) {
	return manipulator.extension.Read(buffer, timestamp)
}

func (manipulator *segmentManipulator) Close() error {
	return manipulator.extension.Close()
}

func (manipulator *segmentManipulator) SetReadTimeout(t time.Duration) {
	manipulator.extension.SetReadTimeout(t)
}
