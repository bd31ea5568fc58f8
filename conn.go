package stcp

import (
	"crypto/rand"
	"encoding/binary"
	"time"
)

// Conn couples a Sender and a Receiver over a connector. Outgoing
// segments always piggyback the local receiver's ackno and window;
// inbound segments feed both halves. The caller drives time through
// Tick and serializes all calls.
type Conn struct {
	sender     *Sender
	receiver   *Receiver
	conn       connector
	readBuffer []byte
}

func newConn(conn connector, isn SeqNum, cfg *Config) *Conn {
	return &Conn{
		sender:     NewSender(NewByteStream(cfg.Capacity), isn, cfg.InitialRTOMs),
		receiver:   NewReceiver(NewReassembler(NewByteStream(cfg.Capacity))),
		conn:       conn,
		readBuffer: make([]byte, cfg.MTU),
	}
}

// Dial opens a UDP-backed connection to the peer described by cfg.
// With cfg.Secure set, the endpoint runs the Noise handshake before
// returning; exactly one of the two peers must set SecureInitiator.
// The SYN goes out with the first Write or flush the window admits.
func Dial(cfg *Config) (*Conn, error) {
	var transport connector
	transport, err := newUDPConnector(cfg.RemoteAddress, cfg.RemotePort, cfg.LocalPort)
	if err != nil {
		return nil, err
	}
	if cfg.Secure {
		sec, err := newSecureConnector(transport, cfg.SecureInitiator)
		if err != nil {
			transport.Close()
			return nil, err
		}
		if err := sec.Handshake(time.Now()); err != nil {
			transport.Close()
			return nil, err
		}
		transport = sec
	}
	isn, err := randomISN()
	if err != nil {
		transport.Close()
		return nil, err
	}
	return newConn(transport, isn, cfg), nil
}

func randomISN() (SeqNum, error) {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return 0, err
	}
	return SeqNum(binary.BigEndian.Uint32(b)), nil
}

func (c *Conn) Sender() *Sender {
	return c.sender
}

func (c *Conn) Receiver() *Receiver {
	return c.receiver
}

// Write queues data on the outbound stream and pushes what the window
// allows. When the stream cannot take all of data, the accepted count
// comes back with windowFull.
func (c *Conn) Write(data []byte, timestamp time.Time) (statusCode, int, error) {
	in := c.sender.Input()
	before := in.BytesPushed()
	in.Push(data)
	n := in.BytesPushed() - before
	_, err := c.flush(timestamp)
	if err != nil {
		return fail, int(n), err
	}
	if n < uint64(len(data)) {
		return windowFull, int(n), nil
	}
	return success, int(n), nil
}

// Read waits for one inbound segment, processes it, and drains
// whatever the reassembler has made contiguous into buffer.
func (c *Conn) Read(buffer []byte, timestamp time.Time) (statusCode, int, error) {
	status, n, err := c.conn.Read(c.readBuffer, timestamp)
	if status != success || err != nil {
		return status, 0, err
	}
	if status := c.ProcessSegment(c.readBuffer[:n], timestamp); status != success {
		return status, 0, nil
	}
	out := c.receiver.Output()
	m := uint64(len(buffer))
	if buffered := out.BytesBuffered(); m > buffered {
		m = buffered
	}
	copy(buffer[:m], out.Peek())
	out.Pop(m)
	return success, int(m), nil
}

// ProcessSegment feeds one decoded datagram through the receiver and
// sender halves, flushes anything the acknowledgment freed up, and
// acknowledges inbound sequence space when nothing else went out.
func (c *Conn) ProcessSegment(buffer []byte, timestamp time.Time) statusCode {
	snd, rcv, status := unmarshalSegment(buffer)
	if status != success {
		return status
	}
	c.receiver.Receive(snd)
	c.sender.Receive(rcv)
	transmitted, err := c.flush(timestamp)
	if err != nil {
		return fail
	}
	if transmitted == 0 && snd.SequenceLength() > 0 {
		if err := c.ack(timestamp); err != nil {
			return fail
		}
	}
	return success
}

// Tick advances the retransmission clock by d.
func (c *Conn) Tick(d time.Duration, timestamp time.Time) error {
	var transmitErr error
	c.sender.Tick(uint64(d/time.Millisecond), func(msg SenderMessage) {
		if err := c.transmit(msg, timestamp); err != nil && transmitErr == nil {
			transmitErr = err
		}
	})
	return transmitErr
}

// CloseWrite ends the outbound stream; the FIN goes out with the next
// push the window admits.
func (c *Conn) CloseWrite(timestamp time.Time) error {
	c.sender.Input().Close()
	_, err := c.flush(timestamp)
	return err
}

// Abort errors the outbound stream and notifies the peer with RST.
func (c *Conn) Abort(timestamp time.Time) error {
	c.sender.Input().SetError()
	_, err := c.flush(timestamp)
	return err
}

func (c *Conn) Close() error {
	return c.conn.Close()
}

func (c *Conn) flush(timestamp time.Time) (int, error) {
	transmitted := 0
	var transmitErr error
	c.sender.Push(func(msg SenderMessage) {
		transmitted++
		if err := c.transmit(msg, timestamp); err != nil && transmitErr == nil {
			transmitErr = err
		}
	})
	return transmitted, transmitErr
}

func (c *Conn) ack(timestamp time.Time) error {
	return c.transmit(c.sender.MakeEmptyMessage(), timestamp)
}

func (c *Conn) transmit(msg SenderMessage, timestamp time.Time) error {
	_, _, err := c.conn.Write(marshalSegment(msg, c.receiver.Send()), timestamp)
	return err
}
