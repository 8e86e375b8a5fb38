// Package tlspump drives an external TLS engine as a record-framing
// pump over a transport.StreamConn: it does not implement TLS itself,
// only the handshake-driving loop and application-data framing the
// HTTP layer needs to run over a TLS connection.
package tlspump

// SessionState mirrors the external TLS engine's own session state
// machine; the pump both drives transitions (by feeding it records) and
// reads it back to know when the handshake has finished or failed.
type SessionState int

const (
	SessionNotStarted SessionState = iota
	SessionHandshaking
	SessionDataTransferring
	SessionClosing
	SessionError
)

// SessionDataKind selects which piece of session configuration
// SetSessionData/GetSessionData reads or writes.
type SessionDataKind int

const (
	DataConnectionEnd SessionDataKind = iota
	DataVerifyMethod
	DataVerifyHost
	DataSessionState
	DataCipherList
)

// VerifyHostData is the value paired with DataVerifyHost.
type VerifyHostData struct {
	Flags    int
	HostName string
}

// ProcessMode selects the direction ProcessPacket runs a record through.
type ProcessMode int

const (
	ProcessEncrypt ProcessMode = iota
	ProcessDecrypt
)

// Engine is the external TLS cryptographic engine this pump drives.
// Only its interface is in scope here; no concrete implementation of
// the cryptographic protocol itself is part of this core.
type Engine interface {
	// SetSessionData configures one session parameter before the
	// handshake starts (connection end, verify method, verify host,
	// cipher list).
	SetSessionData(kind SessionDataKind, value interface{}) error

	// GetSessionData reads back one session parameter, most commonly
	// DataSessionState to observe handshake progress.
	GetSessionData(kind SessionDataKind) (interface{}, error)

	// BuildResponsePacket drives the handshake state machine: fed the
	// bytes of a record just received (nil to kick off the initial
	// ClientHello), it returns the next record to transmit, if any.
	BuildResponsePacket(in []byte) (out []byte, err error)

	// ProcessPacket runs bytes through the engine in the given
	// direction: plaintext to encrypt, or one whole wire record (header
	// included) to decrypt, returning the resulting fragment(s).
	ProcessPacket(record []byte, mode ProcessMode) ([]byte, error)
}
