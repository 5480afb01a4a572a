package lorawan

import "github.com/pkg/errors"

// DLSettings represents the downlink settings byte of a JoinAccept.
type DLSettings struct {
	OptNeg      bool // LoRaWAN 1.1 key negotiation flag; always false for 1.0.3
	RX1DROffset uint8
	RX2DataRate uint8
}

// MarshalBinary marshals the object in binary form.
func (s DLSettings) MarshalBinary() ([]byte, error) {
	if s.RX1DROffset > 7 {
		return nil, errors.New("lorawan: max RX1DROffset is 7")
	}
	if s.RX2DataRate > 15 {
		return nil, errors.New("lorawan: max RX2DataRate is 15")
	}

	var b byte
	if s.OptNeg {
		b |= 1 << 7
	}
	b |= (s.RX1DROffset & 0x07) << 4
	b |= s.RX2DataRate & 0x0F

	return []byte{b}, nil
}

// UnmarshalBinary decodes the object from binary form.
func (s *DLSettings) UnmarshalBinary(data []byte) error {
	if len(data) != 1 {
		return errors.New("lorawan: 1 byte of data is expected")
	}
	b := data[0]
	s.OptNeg = b&(1<<7) > 0
	s.RX1DROffset = (b >> 4) & 0x07
	s.RX2DataRate = b & 0x0F
	return nil
}

// CFList is the optional list of extra channels/channel-mask carried in a
// JoinAccept. For US915 (a fixed-channel-plan region) the network sends a
// channel-mask-type CFList (CFListType == 1): a bitmap over the 72 uplink
// channels telling the device which ones remain enabled, rather than a
// list of frequencies.
type CFList struct {
	Type byte // 0 = frequency list (dynamic-channel regions), 1 = channel mask (US915/AU915/CN470)
	Raw  [15]byte
}

// ChannelMask decodes a type-1 CFList into a per-channel enabled bitmap
// covering the first 72 (9*8) uplink channels. Bytes beyond the 9th are
// RFU for US915 and are ignored.
func (c CFList) ChannelMask() ([72]bool, error) {
	var mask [72]bool
	if c.Type != 1 {
		return mask, errors.New("lorawan: CFList is not a channel-mask list")
	}
	for i := 0; i < 9; i++ {
		b := c.Raw[i]
		for bit := 0; bit < 8; bit++ {
			idx := i*8 + bit
			if idx >= len(mask) {
				break
			}
			mask[idx] = b&(1<<uint(bit)) > 0
		}
	}
	return mask, nil
}

// MarshalBinary marshals the object in binary form.
func (c CFList) MarshalBinary() ([]byte, error) {
	out := make([]byte, 16)
	copy(out[0:15], c.Raw[:])
	out[15] = c.Type
	return out, nil
}

// UnmarshalBinary decodes the object from binary form.
func (c *CFList) UnmarshalBinary(data []byte) error {
	if len(data) != 16 {
		return errors.New("lorawan: 16 bytes of data are expected")
	}
	copy(c.Raw[:], data[0:15])
	c.Type = data[15]
	return nil
}

// JoinAcceptPayload represents the (decrypted) join-accept payload:
// AppNonce | NetID | DevAddr | DLSettings | RxDelay | [CFList], per §3.
type JoinAcceptPayload struct {
	AppNonce   [3]byte
	NetID      NetID
	DevAddr    DevAddr
	DLSettings DLSettings
	RxDelay    uint8 // seconds; 0 is treated as 1 per LoRaWAN convention
	CFList     *CFList
}

// Clone returns a copy of the payload.
func (p JoinAcceptPayload) Clone() Payload {
	cp := p
	if p.CFList != nil {
		cf := *p.CFList
		cp.CFList = &cf
	}
	return &cp
}

// MarshalBinary marshals the object in binary form.
func (p JoinAcceptPayload) MarshalBinary() ([]byte, error) {
	out := make([]byte, 0, 16)
	out = append(out, p.AppNonce[:]...)

	netID, err := p.NetID.MarshalBinary()
	if err != nil {
		return nil, err
	}
	out = append(out, netID...)

	devAddr, err := p.DevAddr.MarshalBinary()
	if err != nil {
		return nil, err
	}
	out = append(out, devAddr...)

	dlSettings, err := p.DLSettings.MarshalBinary()
	if err != nil {
		return nil, err
	}
	out = append(out, dlSettings...)

	out = append(out, p.RxDelay)

	if p.CFList != nil {
		cfList, err := p.CFList.MarshalBinary()
		if err != nil {
			return nil, err
		}
		out = append(out, cfList...)
	}

	return out, nil
}

// UnmarshalBinary decodes the object from binary form. The uplink flag is
// accepted to satisfy Payload but is unused: a JoinAccept is always
// downlink.
func (p *JoinAcceptPayload) UnmarshalBinary(uplink bool, data []byte) error {
	if len(data) != 12 && len(data) != 28 {
		return errors.New("lorawan: 12 or 28 bytes of data are expected")
	}

	copy(p.AppNonce[:], data[0:3])
	if err := p.NetID.UnmarshalBinary(data[3:6]); err != nil {
		return err
	}
	if err := p.DevAddr.UnmarshalBinary(data[6:10]); err != nil {
		return err
	}
	if err := p.DLSettings.UnmarshalBinary(data[10:11]); err != nil {
		return err
	}
	p.RxDelay = data[11]

	if len(data) == 28 {
		var cfList CFList
		if err := cfList.UnmarshalBinary(data[12:28]); err != nil {
			return err
		}
		p.CFList = &cfList
	}

	return nil
}
