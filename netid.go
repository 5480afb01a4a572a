package lorawan

import (
	"encoding/hex"

	"github.com/pkg/errors"
)

// NetID is the 3-byte network identifier carried in a JoinAccept.
type NetID [3]byte

// String implements fmt.Stringer.
func (n NetID) String() string {
	return hex.EncodeToString(n[:])
}

// MarshalText implements encoding.TextMarshaler.
func (n NetID) MarshalText() ([]byte, error) {
	return []byte(n.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (n *NetID) UnmarshalText(text []byte) error {
	b, err := hex.DecodeString(string(text))
	if err != nil {
		return errors.Wrap(err, "lorawan: decode NetID")
	}
	if len(b) != len(n) {
		return errors.Errorf("lorawan: exactly %d bytes are expected", len(n))
	}
	copy(n[:], b)
	return nil
}

// MarshalBinary implements encoding.BinaryMarshaler (little-endian wire order).
func (n NetID) MarshalBinary() ([]byte, error) {
	out := make([]byte, len(n))
	for i, v := range n {
		out[len(n)-1-i] = v
	}
	return out, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler (little-endian wire order).
func (n *NetID) UnmarshalBinary(data []byte) error {
	if len(data) != len(n) {
		return errors.Errorf("lorawan: %d bytes of data are expected", len(n))
	}
	for i, v := range data {
		n[len(n)-1-i] = v
	}
	return nil
}
