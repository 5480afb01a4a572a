package lorawan

// Payload is the interface implemented by every MACPayload constituent:
// JoinRequestPayload, JoinAcceptPayload, MACCommand and DataPayload. The
// uplink flag lets MACCommand pick the right Req/Ans payload registry;
// other implementers ignore it.
type Payload interface {
	MarshalBinary() ([]byte, error)
	UnmarshalBinary(uplink bool, data []byte) error
	Clone() Payload
}

// DataPayload is an opaque byte payload, used for FRMPayload before it has
// been classified as either application bytes or a MAC-command list, and
// for ciphertext the MAC engine hands to the radio.
type DataPayload struct {
	Bytes []byte
}

// Clone returns a copy of the payload.
func (p DataPayload) Clone() Payload {
	cp := make([]byte, len(p.Bytes))
	copy(cp, p.Bytes)
	return &DataPayload{Bytes: cp}
}

// MarshalBinary marshals the object in binary form.
func (p DataPayload) MarshalBinary() ([]byte, error) {
	return p.Bytes, nil
}

// UnmarshalBinary decodes the object from binary form.
func (p *DataPayload) UnmarshalBinary(uplink bool, data []byte) error {
	p.Bytes = make([]byte, len(data))
	copy(p.Bytes, data)
	return nil
}
