// Package radio defines the capability contract the MAC engine drives.
// Concrete SX127x/SX126x drivers implement Transceiver; this package
// names only the calls the MAC needs and the error kinds a driver may
// report. No register I/O or board wiring lives here.
package radio

import "time"

// SyncWord selects the LoRa sync word: public network vs. private.
type SyncWord byte

const (
	SyncWordPublic  SyncWord = 0x34
	SyncWordPrivate SyncWord = 0x12
)

// Modulation carries the parameters needed to configure a LoRa modem for
// one transmission or receive window.
type Modulation struct {
	SpreadFactor int
	BandwidthKHz int
	CodingRate   int // 5-8, denominator of 4/x
	CRCOn        bool
	IQInverted   bool // downlinks use inverted IQ; uplinks do not
}

// ErrKind classifies a Transceiver error so the MAC can decide whether to
// retry, discard a frame, or surface a fatal condition.
type ErrKind int

const (
	ErrOther ErrKind = iota
	ErrSPI
	ErrCS
	ErrTimeout
	ErrCRC
	ErrInvalidParam
)

// Error wraps a driver-reported failure with its kind.
type Error struct {
	Kind ErrKind
	Err  error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsTimeout reports whether err is a radio.Error of kind ErrTimeout.
func IsTimeout(err error) bool {
	re, ok := err.(*Error)
	return ok && re.Kind == ErrTimeout
}

// Transceiver is the capability set the MAC consumes from a concrete
// radio driver. Implementations are expected to be synchronous from the
// caller's point of view: Transmit blocks (or the driver may implement
// it event-driven internally) until the frame is on air, and the
// receive calls block up to the given deadline.
//
// Concrete drivers (SX127x, SX126x) are interchangeable; the MAC never
// names a specific chip.
type Transceiver interface {
	Init() error
	Sleep() error
	Standby() error

	SetFrequency(hz uint32) error
	SetTXPower(dBm int8) error
	SetModulation(m Modulation) error
	SetSyncWord(w SyncWord) error

	// Transmit sends payload and returns once it is fully on air.
	Transmit(payload []byte) error

	// ReceiveSingle opens a single receive window for up to timeout and
	// reads into buf. It returns the number of bytes read, or a
	// radio.Error of kind ErrTimeout if nothing arrived.
	ReceiveSingle(timeout time.Duration, buf []byte) (int, error)

	// ReceiveContinuous blocks until a frame arrives and reads into buf.
	ReceiveContinuous(buf []byte) (int, error)

	GetRSSI() (int16, error)
	GetSNR() (int8, error)
}
