package lorawan

import "github.com/pkg/errors"

// MType represents the message type.
type MType byte

// Supported message types (MType), per §3.
const (
	JoinRequest MType = iota
	JoinAccept
	UnconfirmedDataUp
	UnconfirmedDataDown
	ConfirmedDataUp
	ConfirmedDataDown
	RFU
	Proprietary
)

func (m MType) String() string {
	switch m {
	case JoinRequest:
		return "JoinRequest"
	case JoinAccept:
		return "JoinAccept"
	case UnconfirmedDataUp:
		return "UnconfirmedDataUp"
	case UnconfirmedDataDown:
		return "UnconfirmedDataDown"
	case ConfirmedDataUp:
		return "ConfirmedDataUp"
	case ConfirmedDataDown:
		return "ConfirmedDataDown"
	case Proprietary:
		return "Proprietary"
	default:
		return "RFU"
	}
}

// Major defines the major version of the data message.
type Major byte

// LoRaWANR1 is the only major version this stack speaks.
const LoRaWANR1 Major = 0

// MHDR represents the MAC header.
type MHDR struct {
	MType MType
	Major Major
}

// MarshalBinary marshals the object in binary form.
func (h MHDR) MarshalBinary() ([]byte, error) {
	return []byte{byte(h.Major) ^ (byte(h.MType) << 5)}, nil
}

// UnmarshalBinary decodes the object from binary form.
func (h *MHDR) UnmarshalBinary(data []byte) error {
	if len(data) != 1 {
		return errors.New("lorawan: 1 byte of data is expected")
	}
	h.Major = Major(data[0] & 0x03)
	h.MType = MType((data[0] & 0xE0) >> 5)
	return nil
}

// IsUplink reports whether the MType is an uplink message type.
func (m MType) IsUplink() bool {
	switch m {
	case JoinRequest, UnconfirmedDataUp, ConfirmedDataUp:
		return true
	default:
		return false
	}
}
