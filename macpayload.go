package lorawan

import "github.com/pkg/errors"

// MACPayload represents the MAC payload of a data frame: FHDR | [FPort] |
// [FRMPayload]. Per §3, FOpts and FRMPayload on FPort 0 are mutually
// exclusive, and FRMPayload is encrypted with NwkSKey when FPort == 0,
// AppSKey otherwise.
type MACPayload struct {
	FHDR       FHDR
	FPort      *uint8
	FRMPayload []Payload // single DataPayload (ciphertext) or decoded MACCommands on FPort 0
}

// Clone returns a copy of the payload.
func (m MACPayload) Clone() Payload {
	cp := m
	cp.FHDR.FOpts = append([]Payload(nil), m.FHDR.FOpts...)
	cp.FRMPayload = append([]Payload(nil), m.FRMPayload...)
	return &cp
}

func (m MACPayload) marshalFRMPayload() ([]byte, error) {
	var out []byte
	for _, p := range m.FRMPayload {
		b, err := p.MarshalBinary()
		if err != nil {
			return nil, errors.Wrap(err, "lorawan: marshal FRMPayload")
		}
		out = append(out, b...)
	}
	return out, nil
}

// MarshalBinary marshals the object in binary form.
func (m MACPayload) MarshalBinary() ([]byte, error) {
	if m.FPort != nil && *m.FPort == 0 && len(m.FHDR.FOpts) > 0 && len(m.FRMPayload) > 0 {
		return nil, errors.New("lorawan: FOpts and FRMPayload on FPort 0 are mutually exclusive")
	}

	out, err := m.FHDR.MarshalBinary()
	if err != nil {
		return nil, err
	}

	if m.FPort != nil {
		out = append(out, *m.FPort)
	}

	frm, err := m.marshalFRMPayload()
	if err != nil {
		return nil, err
	}
	out = append(out, frm...)

	return out, nil
}

// UnmarshalBinary decodes the object from binary form. Note that
// FRMPayload is left as a single opaque DataPayload (ciphertext); the MAC
// engine decrypts it and, for FPort 0, decodes it into MAC commands.
func (m *MACPayload) UnmarshalBinary(uplink bool, data []byte) error {
	if err := m.FHDR.UnmarshalBinary(uplink, data); err != nil {
		return err
	}

	optsLen := int(m.FHDR.FCtrl.fOptsLen)
	rest := data[7+optsLen:]

	if len(rest) == 0 {
		m.FPort = nil
		m.FRMPayload = nil
		return nil
	}

	port := rest[0]
	m.FPort = &port

	if len(rest) > 1 {
		m.FRMPayload = []Payload{&DataPayload{Bytes: append([]byte(nil), rest[1:]...)}}
	}

	return nil
}
