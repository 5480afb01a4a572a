// Package devcmd implements the host-facing downlink command set described
// in the core's external interfaces: SetInterval, ShowFirmwareVersion,
// Reboot and Custom. The MAC engine decrypts FRMPayload on the
// application FPort and hands the raw bytes here for decoding; the core
// itself never interprets them beyond this envelope.
package devcmd

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// CID identifies a downlink application command.
type CID byte

// DefaultFPort is a default application FPort for these commands. A
// device is free to use any non-zero, non-MAC-command FPort; the MAC
// engine decodes commands from any such port and does not consult this
// constant.
const DefaultFPort uint8 = 10

// Available command identifiers.
const (
	SetInterval         CID = 0x01
	ShowFirmwareVersion CID = 0x02
	Reboot              CID = 0x03
	Custom              CID = 0x80
)

// Payload is the interface every command payload implements.
type Payload interface {
	MarshalBinary() (data []byte, err error)
	UnmarshalBinary(data []byte) error
}

type payloadInfo struct {
	size    int // exact payload size in bytes, -1 for variable length
	payload func() Payload
}

var payloadRegistry = map[CID]payloadInfo{
	SetInterval:         {4, func() Payload { return &SetIntervalPayload{} }},
	ShowFirmwareVersion: {0, nil},
	Reboot:              {0, nil},
	Custom:              {-1, func() Payload { return &CustomPayload{} }},
}

// GetPayloadAndSize returns a new, empty Payload for the given CID along
// with its expected encoded size (-1 when the command is variable length).
func GetPayloadAndSize(c CID) (Payload, int, error) {
	v, ok := payloadRegistry[c]
	if !ok {
		return nil, 0, errors.Errorf("devcmd: unknown command identifier %#x", byte(c))
	}
	if v.payload == nil {
		return nil, v.size, nil
	}
	return v.payload(), v.size, nil
}

// Command represents a single downlink application command.
type Command struct {
	CID     CID
	Payload Payload
}

// MarshalBinary encodes the command to a slice of bytes.
func (c Command) MarshalBinary() ([]byte, error) {
	b := []byte{byte(c.CID)}

	if c.Payload != nil {
		p, err := c.Payload.MarshalBinary()
		if err != nil {
			return nil, errors.Wrap(err, "devcmd: marshal payload")
		}
		b = append(b, p...)
	}

	return b, nil
}

// UnmarshalBinary decodes a slice of bytes into a Command.
func (c *Command) UnmarshalBinary(data []byte) error {
	if len(data) == 0 {
		return errors.New("devcmd: at least 1 byte is expected")
	}

	c.CID = CID(data[0])

	p, size, err := GetPayloadAndSize(c.CID)
	if err != nil {
		return err
	}

	rest := data[1:]
	if size >= 0 && len(rest) != size {
		return errors.Errorf("devcmd: %d bytes expected for CID %#x, got %d", size, byte(c.CID), len(rest))
	}

	if p == nil {
		return nil
	}

	c.Payload = p
	return c.Payload.UnmarshalBinary(rest)
}

// SetIntervalPayload carries the new uplink interval, in seconds.
type SetIntervalPayload struct {
	Seconds uint32
}

// MarshalBinary encodes the payload to a slice of bytes.
func (p SetIntervalPayload) MarshalBinary() ([]byte, error) {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, p.Seconds)
	return b, nil
}

// UnmarshalBinary decodes the payload from a slice of bytes.
func (p *SetIntervalPayload) UnmarshalBinary(data []byte) error {
	if len(data) != 4 {
		return errors.New("devcmd: exactly 4 bytes are expected")
	}
	p.Seconds = binary.LittleEndian.Uint32(data)
	return nil
}

// CustomPayload passes the remaining bytes through unparsed, for
// application-defined commands the core has no knowledge of.
type CustomPayload struct {
	Bytes []byte
}

// MarshalBinary encodes the payload to a slice of bytes.
func (p CustomPayload) MarshalBinary() ([]byte, error) {
	return p.Bytes, nil
}

// UnmarshalBinary decodes the payload from a slice of bytes.
func (p *CustomPayload) UnmarshalBinary(data []byte) error {
	p.Bytes = make([]byte, len(data))
	copy(p.Bytes, data)
	return nil
}
