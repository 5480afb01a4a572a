package lorawan

import (
	"encoding/hex"

	"github.com/pkg/errors"
)

// EUI64 represents a 64 bit EUI value, used for DevEUI and AppEUI/JoinEUI.
type EUI64 [8]byte

// String implements fmt.Stringer.
func (e EUI64) String() string {
	return hex.EncodeToString(e[:])
}

// MarshalText implements encoding.TextMarshaler.
func (e EUI64) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (e *EUI64) UnmarshalText(text []byte) error {
	b, err := hex.DecodeString(string(text))
	if err != nil {
		return errors.Wrap(err, "lorawan: decode EUI64")
	}
	if len(b) != len(e) {
		return errors.Errorf("lorawan: exactly %d bytes are expected", len(e))
	}
	copy(e[:], b)
	return nil
}

// MarshalBinary marshals the EUI64 in little-endian wire order.
func (e EUI64) MarshalBinary() ([]byte, error) {
	b := make([]byte, len(e))
	for i, v := range e {
		b[len(e)-i-1] = v
	}
	return b, nil
}

// UnmarshalBinary decodes the EUI64 from little-endian wire order.
func (e *EUI64) UnmarshalBinary(data []byte) error {
	if len(data) != len(e) {
		return errors.Errorf("lorawan: %d bytes of data are expected", len(e))
	}
	for i, v := range data {
		e[len(e)-i-1] = v
	}
	return nil
}

// DevAddr represents the 32 bit device address assigned by the network.
type DevAddr [4]byte

// String implements fmt.Stringer.
func (a DevAddr) String() string {
	return hex.EncodeToString(a[:])
}

// MarshalText implements encoding.TextMarshaler.
func (a DevAddr) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *DevAddr) UnmarshalText(text []byte) error {
	b, err := hex.DecodeString(string(text))
	if err != nil {
		return errors.Wrap(err, "lorawan: decode DevAddr")
	}
	if len(b) != len(a) {
		return errors.Errorf("lorawan: exactly %d bytes are expected", len(a))
	}
	copy(a[:], b)
	return nil
}

// MarshalBinary marshals the DevAddr in little-endian wire order, per §3.
func (a DevAddr) MarshalBinary() ([]byte, error) {
	b := make([]byte, len(a))
	for i, v := range a {
		b[len(a)-i-1] = v
	}
	return b, nil
}

// UnmarshalBinary decodes the DevAddr from little-endian wire order.
func (a *DevAddr) UnmarshalBinary(data []byte) error {
	if len(data) != len(a) {
		return errors.Errorf("lorawan: %d bytes of data are expected", len(a))
	}
	for i, v := range data {
		a[len(a)-i-1] = v
	}
	return nil
}

// Uint32 returns the DevAddr as a big-endian host value, as used for
// arithmetic (e.g. ping-slot channel selection).
func (a DevAddr) Uint32() uint32 {
	return uint32(a[0])<<24 | uint32(a[1])<<16 | uint32(a[2])<<8 | uint32(a[3])
}

// AES128Key represents a 128 bit AES key: AppKey, NwkSKey or AppSKey.
type AES128Key [16]byte

// String implements fmt.Stringer.
func (k AES128Key) String() string {
	return hex.EncodeToString(k[:])
}

// MarshalText implements encoding.TextMarshaler.
func (k AES128Key) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *AES128Key) UnmarshalText(text []byte) error {
	b, err := hex.DecodeString(string(text))
	if err != nil {
		return errors.Wrap(err, "lorawan: decode AES128Key")
	}
	if len(b) != len(k) {
		return errors.Errorf("lorawan: exactly %d bytes are expected", len(k))
	}
	copy(k[:], b)
	return nil
}

// MIC represents the 4-byte message integrity code.
type MIC [4]byte

// String implements fmt.Stringer.
func (m MIC) String() string {
	return hex.EncodeToString(m[:])
}

// MarshalText implements encoding.TextMarshaler.
func (m MIC) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// DevNonce is a 2-byte value generated by the device for each join
// request. Per §3, values MUST NOT repeat for a given device in the
// network server's memory.
type DevNonce uint16

// MarshalBinary encodes the DevNonce in little-endian wire order.
func (d DevNonce) MarshalBinary() ([]byte, error) {
	return []byte{byte(d), byte(d >> 8)}, nil
}

// UnmarshalBinary decodes the DevNonce from little-endian wire order.
func (d *DevNonce) UnmarshalBinary(data []byte) error {
	if len(data) != 2 {
		return errors.New("lorawan: 2 bytes of data are expected")
	}
	*d = DevNonce(uint16(data[0]) | uint16(data[1])<<8)
	return nil
}
