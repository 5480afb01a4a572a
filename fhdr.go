package lorawan

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// FCtrl represents the frame control field.
type FCtrl struct {
	ADR       bool
	ADRACKReq bool
	ACK       bool
	FPending  bool // downlink only (ClassB bit on uplink, unused by this stack)
	fOptsLen  uint8
}

// MarshalBinary marshals the object in binary form.
func (c FCtrl) MarshalBinary() ([]byte, error) {
	if c.fOptsLen > 15 {
		return nil, errors.New("lorawan: max FOptsLen is 15")
	}

	var b byte
	if c.ADR {
		b |= 1 << 7
	}
	if c.ADRACKReq {
		b |= 1 << 6
	}
	if c.ACK {
		b |= 1 << 5
	}
	if c.FPending {
		b |= 1 << 4
	}
	b |= c.fOptsLen & 0x0F

	return []byte{b}, nil
}

// UnmarshalBinary decodes the object from binary form.
func (c *FCtrl) UnmarshalBinary(data []byte) error {
	if len(data) != 1 {
		return errors.New("lorawan: 1 byte of data is expected")
	}
	b := data[0]
	c.ADR = b&(1<<7) > 0
	c.ADRACKReq = b&(1<<6) > 0
	c.ACK = b&(1<<5) > 0
	c.FPending = b&(1<<4) > 0
	c.fOptsLen = b & 0x0F
	return nil
}

// FHDR represents the frame header: DevAddr | FCtrl | FCnt(16b on the wire)
// | FOpts. FCnt here is the full 32-bit counter; MarshalBinary truncates it
// to the 16 least-significant bits per §3.
type FHDR struct {
	DevAddr DevAddr
	FCtrl   FCtrl
	FCnt    uint32
	FOpts   []Payload // decoded MAC commands, max 15 encoded bytes
}

// MarshalBinary marshals the object in binary form.
func (h FHDR) MarshalBinary() ([]byte, error) {
	var optsB []byte
	for _, opt := range h.FOpts {
		b, err := opt.MarshalBinary()
		if err != nil {
			return nil, errors.Wrap(err, "lorawan: marshal FOpts")
		}
		optsB = append(optsB, b...)
	}
	if len(optsB) > 15 {
		return nil, errors.New("lorawan: max size of FOpts is 15 bytes")
	}
	h.FCtrl.fOptsLen = uint8(len(optsB))

	out := make([]byte, 0, 7+len(optsB))

	addr, err := h.DevAddr.MarshalBinary()
	if err != nil {
		return nil, err
	}
	out = append(out, addr...)

	ctrl, err := h.FCtrl.MarshalBinary()
	if err != nil {
		return nil, err
	}
	out = append(out, ctrl...)

	fcnt := make([]byte, 2)
	binary.LittleEndian.PutUint16(fcnt, uint16(h.FCnt))
	out = append(out, fcnt...)

	out = append(out, optsB...)

	return out, nil
}

// UnmarshalBinary decodes the object from binary form. The returned FCnt
// holds only the 16 least-significant bits; the MAC engine is responsible
// for extending it to 32 bits against session state.
func (h *FHDR) UnmarshalBinary(uplink bool, data []byte) error {
	if len(data) < 7 {
		return errors.New("lorawan: at least 7 bytes are expected")
	}

	if err := h.DevAddr.UnmarshalBinary(data[0:4]); err != nil {
		return err
	}
	if err := h.FCtrl.UnmarshalBinary(data[4:5]); err != nil {
		return err
	}
	h.FCnt = uint32(binary.LittleEndian.Uint16(data[5:7]))

	optsLen := int(h.FCtrl.fOptsLen)
	if len(data) < 7+optsLen {
		return errors.New("lorawan: FOpts shorter than FOptsLen indicates")
	}

	opts, err := decodeMACCommands(uplink, data[7:7+optsLen])
	if err != nil {
		return err
	}
	h.FOpts = opts

	return nil
}
