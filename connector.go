package stcp

import (
	"net"
	"strconv"
	"time"
)

// connector is one layer of the transport stack below a Conn.
// Extensions wrap another connector and transform the datagrams
// passing through. Timestamps are supplied by the caller so tests can
// run on an artificial clock.
type connector interface {
	Read(buffer []byte, timestamp time.Time) (statusCode, int, error)
	Write(buffer []byte, timestamp time.Time) (statusCode, int, error)
	Close() error
	SetReadTimeout(t time.Duration)
}

type udpConnector struct {
	udpSender   *net.UDPConn
	udpReceiver *net.UDPConn
	readTimeout time.Duration
}

func createUDPAddress(addressString string, port int) (*net.UDPAddr, error) {
	address := addressString + ":" + strconv.Itoa(port)
	return net.ResolveUDPAddr("udp4", address)
}

func newUDPConnector(remoteAddress string, remotePort, localPort int) (*udpConnector, error) {
	remoteUDPAddress, err := createUDPAddress(remoteAddress, remotePort)
	if err != nil {
		return nil, err
	}
	localUDPAddress, err := createUDPAddress("localhost", localPort)
	if err != nil {
		return nil, err
	}
	sender, err := net.DialUDP("udp4", nil, remoteUDPAddress)
	if err != nil {
		return nil, err
	}
	receiver, err := net.ListenUDP("udp4", localUDPAddress)
	if err != nil {
		sender.Close()
		return nil, err
	}
	return &udpConnector{udpSender: sender, udpReceiver: receiver}, nil
}

func (connector *udpConnector) Close() error {
	senderError := connector.udpSender.Close()
	receiverError := connector.udpReceiver.Close()
	if senderError != nil {
		return senderError
	}
	return receiverError
}

func (connector *udpConnector) Write(buffer []byte, timestamp time.Time) (statusCode, int, error) {
	n, err := connector.udpSender.Write(buffer)
	if err != nil {
		return fail, n, err
	}
	return success, n, nil
}

func (connector *udpConnector) Read(buffer []byte, timestamp time.Time) (statusCode, int, error) {
	if connector.readTimeout > 0 {
		if err := connector.udpReceiver.SetReadDeadline(time.Now().Add(connector.readTimeout)); err != nil {
			return fail, 0, err
		}
	}
	n, err := connector.udpReceiver.Read(buffer)
	if err != nil {
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			return timeout, 0, nil
		}
		return fail, n, err
	}
	return success, n, nil
}

func (connector *udpConnector) SetReadTimeout(t time.Duration) {
	connector.readTimeout = t
}
