package stcp

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/flynn/noise"
)

// secureConnector encrypts every datagram passing through the
// underlying connector with a Noise XX session. Each ciphertext is
// prefixed with its 8-byte nonce; a reused nonce is rejected.
type secureConnector struct {
	extension  connector
	initiator  bool
	handshake  *noise.HandshakeState
	encrypter  *noise.CipherState
	decrypter  *noise.CipherState
	writeNonce uint64
	usedNonces map[uint64]struct{}
	readBuffer []byte
}

func newSecureConnector(extension connector, initiator bool) (*secureConnector, error) {
	suite := noise.NewCipherSuite(noise.DH25519, noise.CipherChaChaPoly, noise.HashBLAKE2b)
	key, err := suite.GenerateKeypair(rand.Reader)
	if err != nil {
		return nil, err
	}
	handshake, err := noise.NewHandshakeState(noise.Config{
		CipherSuite:   suite,
		Random:        rand.Reader,
		Pattern:       noise.HandshakeXX,
		Initiator:     initiator,
		StaticKeypair: key,
	})
	if err != nil {
		return nil, err
	}
	return &secureConnector{
		extension:  extension,
		initiator:  initiator,
		handshake:  handshake,
		usedNonces: make(map[uint64]struct{}),
		readBuffer: make([]byte, defaultMTU+64),
	}, nil
}

// Handshake runs the three-message XX exchange over the underlying
// connector. The initiator writes first; both sides must call this
// before any Read or Write.
func (sec *secureConnector) Handshake(timestamp time.Time) error {
	if sec.initiator {
		if err := sec.writeHandshakeMessage(timestamp); err != nil {
			return err
		}
		if err := sec.readHandshakeMessage(timestamp); err != nil {
			return err
		}
		return sec.writeHandshakeMessage(timestamp)
	}
	if err := sec.readHandshakeMessage(timestamp); err != nil {
		return err
	}
	if err := sec.writeHandshakeMessage(timestamp); err != nil {
		return err
	}
	return sec.readHandshakeMessage(timestamp)
}

func (sec *secureConnector) writeHandshakeMessage(timestamp time.Time) error {
	msg, cs0, cs1, err := sec.handshake.WriteMessage(nil, nil)
	if err != nil {
		return err
	}
	if cs0 != nil {
		sec.setCipherStates(cs0, cs1)
	}
	_, _, err = sec.extension.Write(msg, timestamp)
	return err
}

func (sec *secureConnector) readHandshakeMessage(timestamp time.Time) error {
	status, n, err := sec.extension.Read(sec.readBuffer, timestamp)
	if err != nil {
		return err
	}
	if status != success {
		return fmt.Errorf("handshake read failed with status %d", status)
	}
	_, cs0, cs1, err := sec.handshake.ReadMessage(nil, sec.readBuffer[:n])
	if err != nil {
		return err
	}
	if cs0 != nil {
		sec.setCipherStates(cs0, cs1)
	}
	return nil
}

// The initiator sends on the first cipher state, the responder on the
// second.
func (sec *secureConnector) setCipherStates(cs0, cs1 *noise.CipherState) {
	if sec.initiator {
		sec.encrypter, sec.decrypter = cs0, cs1
	} else {
		sec.encrypter, sec.decrypter = cs1, cs0
	}
}

func (sec *secureConnector) Write(buffer []byte, timestamp time.Time) (statusCode, int, error) {
	if sec.encrypter == nil {
		return fail, 0, fmt.Errorf("connection not secured")
	}
	encrypted := sec.encrypter.Cipher().Encrypt(nil, sec.writeNonce, nil, buffer)
	out := make([]byte, 8+len(encrypted))
	binary.BigEndian.PutUint64(out, sec.writeNonce)
	copy(out[8:], encrypted)
	sec.writeNonce++
	status, _, err := sec.extension.Write(out, timestamp)
	return status, len(buffer), err
}

func (sec *secureConnector) Read(buffer []byte, timestamp time.Time) (statusCode, int, error) {
	if sec.decrypter == nil {
		return fail, 0, fmt.Errorf("connection not secured")
	}
	status, n, err := sec.extension.Read(sec.readBuffer, timestamp)
	if status != success || err != nil {
		return status, 0, err
	}
	if n < 8 {
		return invalidSegment, 0, nil
	}
	nonce := binary.BigEndian.Uint64(sec.readBuffer[:8])
	if !sec.syncNonces(nonce) {
		return invalidSegment, 0, fmt.Errorf("nonce reuse detected")
	}
	decrypted, err := sec.decrypter.Cipher().Decrypt(nil, nonce, nil, sec.readBuffer[8:n])
	if err != nil {
		return invalidSegment, 0, fmt.Errorf("decryption failed")
	}
	copy(buffer, decrypted)
	return success, len(decrypted), nil
}

// syncNonces reports whether the received nonce is fresh and records
// it.
func (sec *secureConnector) syncNonces(nonce uint64) bool {
	if _, ok := sec.usedNonces[nonce]; ok {
		return false
	}
	sec.usedNonces[nonce] = struct{}{}
	return true
}

func (sec *secureConnector) Close() error {
	return sec.extension.Close()
}

func (sec *secureConnector) SetReadTimeout(t time.Duration) {
	sec.extension.SetReadTimeout(t)
}
