package lorawan

import (
	"encoding/base64"
	"fmt"

	"github.com/pkg/errors"

	"github.com/loraedge/lorawan-mcu/internal/crypto"
)

// PHYPayload represents the physical payload: MHDR | MACPayload | MIC.
type PHYPayload struct {
	MHDR       MHDR
	MACPayload Payload
	MIC        MIC
}

// MarshalBinary marshals the object in binary form.
func (p PHYPayload) MarshalBinary() ([]byte, error) {
	if p.MACPayload == nil {
		return nil, errors.New("lorawan: MACPayload must not be nil")
	}

	h, err := p.MHDR.MarshalBinary()
	if err != nil {
		return nil, err
	}
	m, err := p.MACPayload.MarshalBinary()
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(h)+len(m)+4)
	out = append(out, h...)
	out = append(out, m...)
	out = append(out, p.MIC[:]...)
	return out, nil
}

// UnmarshalBinary decodes the object from binary form. JoinAccept payloads
// are left as an opaque DataPayload: they arrive encrypted and must be
// passed through DecryptJoinAcceptPayload before the fields are readable.
func (p *PHYPayload) UnmarshalBinary(data []byte) error {
	if len(data) < 5 {
		return errors.New("lorawan: at least 5 bytes are expected")
	}

	if err := p.MHDR.UnmarshalBinary(data[0:1]); err != nil {
		return err
	}

	switch p.MHDR.MType {
	case JoinRequest:
		p.MACPayload = &JoinRequestPayload{}
	case JoinAccept:
		p.MACPayload = &DataPayload{}
	case Proprietary:
		p.MACPayload = &DataPayload{}
	default:
		p.MACPayload = &MACPayload{}
	}

	uplink := p.MHDR.MType.IsUplink()
	if err := p.MACPayload.UnmarshalBinary(uplink, data[1:len(data)-4]); err != nil {
		return errors.Wrap(err, "lorawan: unmarshal MACPayload")
	}

	copy(p.MIC[:], data[len(data)-4:])
	return nil
}

// MarshalText encodes the PHYPayload as base64, for logging.
func (p PHYPayload) MarshalText() ([]byte, error) {
	b, err := p.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return []byte(base64.StdEncoding.EncodeToString(b)), nil
}

// micBytes returns MHDR || MACPayload, the message the MIC is computed
// over for both join and data frames.
func (p PHYPayload) micBytes() ([]byte, error) {
	h, err := p.MHDR.MarshalBinary()
	if err != nil {
		return nil, err
	}
	m, err := p.MACPayload.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return append(h, m...), nil
}

// SetUplinkJoinMIC calculates and sets the MIC of a join-request frame:
// cmac(AppKey, MHDR | AppEUI | DevEUI | DevNonce)[0:4].
func (p *PHYPayload) SetUplinkJoinMIC(appKey AES128Key) error {
	mic, err := p.calculateJoinMIC(appKey)
	if err != nil {
		return err
	}
	p.MIC = mic
	return nil
}

// ValidateUplinkJoinMIC reports whether the frame's MIC matches.
func (p PHYPayload) ValidateUplinkJoinMIC(appKey AES128Key) (bool, error) {
	mic, err := p.calculateJoinMIC(appKey)
	if err != nil {
		return false, err
	}
	return p.MIC == mic, nil
}

func (p PHYPayload) calculateJoinMIC(appKey AES128Key) (MIC, error) {
	var mic MIC
	if _, ok := p.MACPayload.(*JoinRequestPayload); !ok {
		return mic, errors.New("lorawan: MACPayload must be *JoinRequestPayload")
	}

	b, err := p.micBytes()
	if err != nil {
		return mic, err
	}

	sum, err := crypto.CMAC(appKey, b)
	if err != nil {
		return mic, err
	}
	copy(mic[:], sum[0:4])
	return mic, nil
}

// SetDownlinkJoinMIC calculates and sets the MIC of a (decrypted)
// join-accept frame: cmac(AppKey, MHDR | JoinAcceptPayload)[0:4].
func (p *PHYPayload) SetDownlinkJoinMIC(appKey AES128Key) error {
	mic, err := p.calculateDownlinkJoinMIC(appKey)
	if err != nil {
		return err
	}
	p.MIC = mic
	return nil
}

// ValidateDownlinkJoinMIC reports whether the (decrypted) join-accept's
// MIC matches.
func (p PHYPayload) ValidateDownlinkJoinMIC(appKey AES128Key) (bool, error) {
	mic, err := p.calculateDownlinkJoinMIC(appKey)
	if err != nil {
		return false, err
	}
	return p.MIC == mic, nil
}

func (p PHYPayload) calculateDownlinkJoinMIC(appKey AES128Key) (MIC, error) {
	var mic MIC
	if _, ok := p.MACPayload.(*JoinAcceptPayload); !ok {
		return mic, errors.New("lorawan: MACPayload must be *JoinAcceptPayload")
	}

	b, err := p.micBytes()
	if err != nil {
		return mic, err
	}

	sum, err := crypto.CMAC(appKey, b)
	if err != nil {
		return mic, err
	}
	copy(mic[:], sum[0:4])
	return mic, nil
}

// b0Block builds the B0 block the data-frame MIC is keyed on, per §3:
// 0x49 | 0x00000000 | dir | DevAddr(LE) | FCnt(LE,32bit) | 0x00 | msgLen.
func b0Block(uplink bool, devAddr DevAddr, fCnt uint32, msgLen int) ([]byte, error) {
	b := make([]byte, 16)
	b[0] = 0x49

	dir := crypto.DirUplink
	if !uplink {
		dir = crypto.DirDownlink
	}
	b[5] = dir

	addr, err := devAddr.MarshalBinary()
	if err != nil {
		return nil, err
	}
	copy(b[6:10], addr)

	b[10] = byte(fCnt)
	b[11] = byte(fCnt >> 8)
	b[12] = byte(fCnt >> 16)
	b[13] = byte(fCnt >> 24)

	b[15] = byte(msgLen)
	return b, nil
}

// SetUplinkDataMIC calculates and sets the MIC of an uplink data frame:
// cmac(NwkSKey, B0 | MHDR | MACPayload)[0:4]. fCnt must be the full
// 32-bit frame counter (the MAC engine extends it before calling this).
func (p *PHYPayload) SetUplinkDataMIC(nwkSKey AES128Key, fCnt uint32) error {
	mic, err := p.calculateDataMIC(true, nwkSKey, fCnt)
	if err != nil {
		return err
	}
	p.MIC = mic
	return nil
}

// ValidateUplinkDataMIC reports whether an uplink data frame's MIC matches.
func (p PHYPayload) ValidateUplinkDataMIC(nwkSKey AES128Key, fCnt uint32) (bool, error) {
	mic, err := p.calculateDataMIC(true, nwkSKey, fCnt)
	if err != nil {
		return false, err
	}
	return p.MIC == mic, nil
}

// SetDownlinkDataMIC calculates and sets the MIC of a downlink data frame.
func (p *PHYPayload) SetDownlinkDataMIC(nwkSKey AES128Key, fCnt uint32) error {
	mic, err := p.calculateDataMIC(false, nwkSKey, fCnt)
	if err != nil {
		return err
	}
	p.MIC = mic
	return nil
}

// ValidateDownlinkDataMIC reports whether a downlink data frame's MIC matches.
func (p PHYPayload) ValidateDownlinkDataMIC(nwkSKey AES128Key, fCnt uint32) (bool, error) {
	mic, err := p.calculateDataMIC(false, nwkSKey, fCnt)
	if err != nil {
		return false, err
	}
	return p.MIC == mic, nil
}

func (p PHYPayload) calculateDataMIC(uplink bool, nwkSKey AES128Key, fCnt uint32) (MIC, error) {
	var mic MIC

	macPL, ok := p.MACPayload.(*MACPayload)
	if !ok {
		return mic, errors.New("lorawan: MACPayload must be *MACPayload")
	}

	msg, err := p.micBytes()
	if err != nil {
		return mic, err
	}

	b0, err := b0Block(uplink, macPL.FHDR.DevAddr, fCnt, len(msg))
	if err != nil {
		return mic, err
	}

	sum, err := crypto.CMAC(nwkSKey, append(b0, msg...))
	if err != nil {
		return mic, err
	}
	copy(mic[:], sum[0:4])
	return mic, nil
}

// EncryptJoinAcceptPayload encrypts a (plaintext) join-accept payload with
// AppKey. Must be called after SetDownlinkJoinMIC, since the MIC is part
// of the encrypted block. Per §3, join-accept is "encrypted" with the AES
// decrypt primitive so that a constrained end device only needs to embed
// the encrypt direction to undo it.
func (p *PHYPayload) EncryptJoinAcceptPayload(appKey AES128Key) error {
	if _, ok := p.MACPayload.(*JoinAcceptPayload); !ok {
		return errors.New("lorawan: MACPayload must be *JoinAcceptPayload")
	}

	pt, err := p.MACPayload.MarshalBinary()
	if err != nil {
		return err
	}
	pt = append(pt, p.MIC[:]...)
	if len(pt)%crypto.BlockSize != 0 {
		return errors.New("lorawan: join-accept plaintext must be a multiple of 16 bytes")
	}

	ct, err := crypto.ECBCrypt(appKey, pt, false)
	if err != nil {
		return err
	}

	p.MACPayload = &DataPayload{Bytes: ct[0 : len(ct)-4]}
	copy(p.MIC[:], ct[len(ct)-4:])
	return nil
}

// DecryptJoinAcceptPayload decrypts a join-accept payload with AppKey and
// decodes it into a *JoinAcceptPayload. The MIC must still be validated
// afterwards with ValidateDownlinkJoinMIC.
func (p *PHYPayload) DecryptJoinAcceptPayload(appKey AES128Key) error {
	dp, ok := p.MACPayload.(*DataPayload)
	if !ok {
		return errors.New("lorawan: MACPayload must be *DataPayload")
	}

	ct := append(append([]byte(nil), dp.Bytes...), p.MIC[:]...)
	if len(ct)%crypto.BlockSize != 0 {
		return errors.New("lorawan: join-accept ciphertext must be a multiple of 16 bytes")
	}

	pt, err := crypto.ECBCrypt(appKey, ct, true)
	if err != nil {
		return err
	}

	copy(p.MIC[:], pt[len(pt)-4:])
	p.MACPayload = &JoinAcceptPayload{}
	return p.MACPayload.UnmarshalBinary(false, pt[0:len(pt)-4])
}

// EncryptFOpts encrypts (or decrypts: the cipher is an involution) the
// FOpts mac-commands in place with NwkSKey.
func (p *PHYPayload) EncryptFOpts(nwkSKey AES128Key) error {
	macPL, ok := p.MACPayload.(*MACPayload)
	if !ok {
		return errors.New("lorawan: MACPayload must be *MACPayload")
	}
	if len(macPL.FHDR.FOpts) == 0 {
		return nil
	}

	var raw []byte
	for _, opt := range macPL.FHDR.FOpts {
		b, err := opt.MarshalBinary()
		if err != nil {
			return err
		}
		raw = append(raw, b...)
	}
	if len(raw) > 15 {
		return errors.New("lorawan: max size of FOpts is 15 bytes")
	}

	uplink := p.MHDR.MType.IsUplink()
	out, err := crypto.CryptPayload(nwkSKey, dirByte(uplink), macPL.FHDR.DevAddr.Uint32(), macPL.FHDR.FCnt, raw)
	if err != nil {
		return err
	}

	macPL.FHDR.FOpts = []Payload{&DataPayload{Bytes: out}}
	return nil
}

// DecryptFOpts decrypts the FOpts bytes and decodes them into MAC commands.
func (p *PHYPayload) DecryptFOpts(nwkSKey AES128Key) error {
	if err := p.EncryptFOpts(nwkSKey); err != nil {
		return err
	}
	return p.DecodeFOptsToMACCommands()
}

// DecodeFOptsToMACCommands decodes decrypted FOpts bytes into MACCommands.
func (p *PHYPayload) DecodeFOptsToMACCommands() error {
	macPL, ok := p.MACPayload.(*MACPayload)
	if !ok {
		return errors.New("lorawan: MACPayload must be *MACPayload")
	}
	if len(macPL.FHDR.FOpts) == 0 {
		return nil
	}

	uplink := p.MHDR.MType.IsUplink()
	opts, err := decodeDataPayloadToMACCommands(uplink, macPL.FHDR.FOpts)
	if err != nil {
		return err
	}
	macPL.FHDR.FOpts = opts
	return nil
}

// EncryptFRMPayload encrypts (or decrypts) the FRMPayload in place with
// the given key: AppSKey for FPort > 0, NwkSKey for FPort == 0.
func (p *PHYPayload) EncryptFRMPayload(key AES128Key) error {
	macPL, ok := p.MACPayload.(*MACPayload)
	if !ok {
		return errors.New("lorawan: MACPayload must be *MACPayload")
	}
	if len(macPL.FRMPayload) == 0 {
		return nil
	}

	data, err := macPL.marshalFRMPayload()
	if err != nil {
		return err
	}

	uplink := p.MHDR.MType.IsUplink()
	out, err := crypto.CryptPayload(key, dirByte(uplink), macPL.FHDR.DevAddr.Uint32(), macPL.FHDR.FCnt, data)
	if err != nil {
		return err
	}

	macPL.FRMPayload = []Payload{&DataPayload{Bytes: out}}
	return nil
}

// DecryptFRMPayload decrypts the FRMPayload with key and, when FPort is 0,
// decodes the result into MAC commands.
func (p *PHYPayload) DecryptFRMPayload(key AES128Key) error {
	if err := p.EncryptFRMPayload(key); err != nil {
		return err
	}
	return p.DecodeFRMPayloadToMACCommands()
}

// DecodeFRMPayloadToMACCommands decodes a decrypted, FPort-0 FRMPayload
// into MACCommands. No-op when FPort is unset or non-zero.
func (p *PHYPayload) DecodeFRMPayloadToMACCommands() error {
	macPL, ok := p.MACPayload.(*MACPayload)
	if !ok {
		return errors.New("lorawan: MACPayload must be *MACPayload")
	}
	if macPL.FPort == nil || *macPL.FPort != 0 || len(macPL.FRMPayload) == 0 {
		return nil
	}

	uplink := p.MHDR.MType.IsUplink()
	cmds, err := decodeDataPayloadToMACCommands(uplink, macPL.FRMPayload)
	if err != nil {
		return err
	}
	macPL.FRMPayload = cmds
	return nil
}

// decodeDataPayloadToMACCommands decodes a single opaque DataPayload
// (already decrypted) into a run of MACCommands.
func decodeDataPayloadToMACCommands(uplink bool, payloads []Payload) ([]Payload, error) {
	if len(payloads) != 1 {
		return nil, errors.New("lorawan: exactly one Payload expected")
	}
	dp, ok := payloads[0].(*DataPayload)
	if !ok {
		return nil, fmt.Errorf("lorawan: expected *DataPayload, got %T", payloads[0])
	}
	return decodeMACCommands(uplink, dp.Bytes)
}

func dirByte(uplink bool) byte {
	if uplink {
		return crypto.DirUplink
	}
	return crypto.DirDownlink
}
