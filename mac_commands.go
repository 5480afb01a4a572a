package lorawan

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/pkg/errors"
)

// macPayloadMutex guards macPayloadRegistry.
var macPayloadMutex sync.RWMutex

// CID identifies a MAC command. Req and Ans share the same value; which one
// applies depends on the frame direction.
type CID byte

// MAC commands implemented by this stack. LoRaWAN 1.1-only commands
// (RekeyInd/Conf, ADRParamSetupReq, ForceRejoinReq,
// RejoinParamSetupReq/Ans) are not present: this stack targets
// LoRaWAN 1.0.3 end devices only.
const (
	LinkCheckReq     CID = 0x02
	LinkCheckAns     CID = 0x02
	LinkADRReq       CID = 0x03
	LinkADRAns       CID = 0x03
	DutyCycleReq     CID = 0x04
	DutyCycleAns     CID = 0x04
	RXParamSetupReq  CID = 0x05
	RXParamSetupAns  CID = 0x05
	DevStatusReq     CID = 0x06
	DevStatusAns     CID = 0x06
	NewChannelReq    CID = 0x07
	NewChannelAns    CID = 0x07
	RXTimingSetupReq CID = 0x08
	RXTimingSetupAns CID = 0x08
	TXParamSetupReq  CID = 0x09
	TXParamSetupAns  CID = 0x09
	PingSlotInfoReq  CID = 0x10
	PingSlotInfoAns  CID = 0x10
	BeaconTimingReq  CID = 0x12
	BeaconTimingAns  CID = 0x12
	BeaconFreqReq    CID = 0x13
	BeaconFreqAns    CID = 0x13
	// 0x80-0xFF reserved for proprietary network command extensions.
)

// String returns a human-readable name for the CID.
func (c CID) String() string {
	switch c {
	case LinkCheckReq:
		return "LinkCheck"
	case LinkADRReq:
		return "LinkADR"
	case DutyCycleReq:
		return "DutyCycle"
	case RXParamSetupReq:
		return "RXParamSetup"
	case DevStatusReq:
		return "DevStatus"
	case NewChannelReq:
		return "NewChannel"
	case RXTimingSetupReq:
		return "RXTimingSetup"
	case TXParamSetupReq:
		return "TXParamSetup"
	case PingSlotInfoReq:
		return "PingSlotInfo"
	case BeaconTimingReq:
		return "BeaconTiming"
	case BeaconFreqReq:
		return "BeaconFreq"
	default:
		return fmt.Sprintf("CID(0x%02X)", byte(c))
	}
}

// macCommandInfo describes the wire size and constructor of a MAC command
// payload.
type macCommandInfo struct {
	size    int
	payload func() Payload
}

// macPayloadRegistry maps [uplink][CID] to the payload it carries. A CID
// absent from a direction's map is unknown in that direction, and
// GetMACPayloadAndSize returns an error for it. Commands without a
// payload that are decoded in a direction are registered there with size
// 0 and a nil constructor, and decode with a nil Payload.
var macPayloadRegistry = map[bool]map[CID]macCommandInfo{
	false: { // downlink: *Req payloads and LinkCheckAns
		LinkCheckAns:     {2, func() Payload { return &LinkCheckAnsPayload{} }},
		LinkADRReq:       {4, func() Payload { return &LinkADRReqPayload{} }},
		DutyCycleReq:     {1, func() Payload { return &DutyCycleReqPayload{} }},
		RXParamSetupReq:  {4, func() Payload { return &RXParamSetupReqPayload{} }},
		DevStatusReq:     {0, nil},
		NewChannelReq:    {5, func() Payload { return &NewChannelReqPayload{} }},
		RXTimingSetupReq: {1, func() Payload { return &RXTimingSetupReqPayload{} }},
		TXParamSetupReq:  {1, func() Payload { return &TXParamSetupReqPayload{} }},
		BeaconTimingReq:  {0, nil},
		BeaconFreqReq:    {3, func() Payload { return &BeaconFreqReqPayload{} }},
	},
	true: { // uplink: *Ans payloads
		LinkADRAns:      {1, func() Payload { return &LinkADRAnsPayload{} }},
		RXParamSetupAns: {1, func() Payload { return &RXParamSetupAnsPayload{} }},
		DevStatusAns:    {2, func() Payload { return &DevStatusAnsPayload{} }},
		NewChannelAns:   {1, func() Payload { return &NewChannelAnsPayload{} }},
		PingSlotInfoReq: {1, func() Payload { return &PingSlotInfoReqPayload{} }},
		BeaconTimingAns: {3, func() Payload { return &BeaconTimingAnsPayload{} }},
		BeaconFreqAns:   {1, func() Payload { return &BeaconFreqAnsPayload{} }},
	},
}

// DwellTime is the dwell-time mode negotiated by TXParamSetupReq.
type DwellTime int

// Possible dwell-time settings.
const (
	DwellTimeNoLimit DwellTime = iota
	DwellTime400ms
)

// GetMACPayloadAndSize returns a fresh Payload instance for the given CID
// and its wire size, or an error when the CID/direction pair is unknown.
func GetMACPayloadAndSize(uplink bool, c CID) (Payload, int, error) {
	macPayloadMutex.RLock()
	defer macPayloadMutex.RUnlock()

	v, ok := macPayloadRegistry[uplink][c]
	if !ok {
		return nil, 0, errors.Errorf("lorawan: payload unknown for uplink=%v and CID=%v", uplink, c)
	}
	if v.payload == nil {
		return nil, v.size, nil
	}
	return v.payload(), v.size, nil
}

// MACCommand represents a single MAC command: CID plus optional payload.
type MACCommand struct {
	CID     CID
	Payload Payload
}

// Clone returns a copy of the command.
func (m MACCommand) Clone() Payload {
	cp := m
	if m.Payload != nil {
		cp.Payload = m.Payload.Clone()
	}
	return &cp
}

// MarshalBinary marshals the object in binary form.
func (m MACCommand) MarshalBinary() ([]byte, error) {
	b := []byte{byte(m.CID)}
	if m.Payload != nil {
		p, err := m.Payload.MarshalBinary()
		if err != nil {
			return nil, err
		}
		b = append(b, p...)
	}
	return b, nil
}

// UnmarshalBinary decodes the object from binary form. uplink selects
// whether data[0] is resolved against the Req or Ans payload registry.
func (m *MACCommand) UnmarshalBinary(uplink bool, data []byte) error {
	if len(data) == 0 {
		return errors.New("lorawan: at least 1 byte of data is expected")
	}
	m.CID = CID(data[0])

	if len(data) > 1 {
		p, _, err := GetMACPayloadAndSize(uplink, m.CID)
		if err != nil {
			return err
		}
		if p != nil {
			if err := p.UnmarshalBinary(uplink, data[1:]); err != nil {
				return err
			}
		}
		m.Payload = p
	}
	return nil
}

// decodeMACCommands decodes a run of concatenated MAC commands (as found
// in FOpts, or in FRMPayload on FPort 0) into individual MACCommands. An
// unrecognized CID with no way to determine its payload size aborts
// decoding of the remaining bytes, since their boundary can no longer be
// established.
func decodeMACCommands(uplink bool, data []byte) ([]Payload, error) {
	var out []Payload

	for i := 0; i < len(data); {
		cid := CID(data[i])
		_, size, err := GetMACPayloadAndSize(uplink, cid)
		if err != nil {
			return nil, errors.Wrapf(err, "lorawan: decode mac-command at offset %d", i)
		}
		if i+1+size > len(data) {
			return nil, errors.Errorf("lorawan: mac-command %s truncated", cid)
		}

		mc := &MACCommand{}
		if err := mc.UnmarshalBinary(uplink, data[i:i+1+size]); err != nil {
			return nil, errors.Wrapf(err, "lorawan: unmarshal mac-command %s", cid)
		}
		out = append(out, mc)
		i += 1 + size
	}

	return out, nil
}

// LinkCheckAnsPayload represents the LinkCheckAns payload.
type LinkCheckAnsPayload struct {
	Margin uint8
	GwCnt  uint8
}

// Clone returns a copy of the payload.
func (p LinkCheckAnsPayload) Clone() Payload { return &p }

// MarshalBinary marshals the object in binary form.
func (p LinkCheckAnsPayload) MarshalBinary() ([]byte, error) {
	return []byte{p.Margin, p.GwCnt}, nil
}

// UnmarshalBinary decodes the object from binary form.
func (p *LinkCheckAnsPayload) UnmarshalBinary(uplink bool, data []byte) error {
	if len(data) != 2 {
		return errors.New("lorawan: 2 bytes of data are expected")
	}
	p.Margin = data[0]
	p.GwCnt = data[1]
	return nil
}

// ChMask is a 16-channel enable bitmap, used by LinkADRReq against a
// 16-channel sub-block of the US915 uplink plan.
type ChMask [16]bool

// MarshalBinary marshals the object in binary form.
func (m ChMask) MarshalBinary() ([]byte, error) {
	b := make([]byte, 2)
	for i := uint(0); i < 16; i++ {
		if m[i] {
			b[i/8] |= 1 << (i % 8)
		}
	}
	return b, nil
}

// UnmarshalBinary decodes the object from binary form.
func (m *ChMask) UnmarshalBinary(data []byte) error {
	if len(data) != 2 {
		return errors.New("lorawan: 2 bytes of data are expected")
	}
	for i, b := range data {
		for j := uint(0); j < 8; j++ {
			if b&(1<<j) > 0 {
				m[uint(i)*8+j] = true
			}
		}
	}
	return nil
}

// Redundancy carries NbRep and the ChMaskCntl sub-block selector used by
// US915's 72-channel plan.
type Redundancy struct {
	ChMaskCntl uint8
	NbRep      uint8
}

// MarshalBinary marshals the object in binary form.
func (r Redundancy) MarshalBinary() ([]byte, error) {
	if r.NbRep > 15 {
		return nil, errors.New("lorawan: max value of NbRep is 15")
	}
	if r.ChMaskCntl > 7 {
		return nil, errors.New("lorawan: max value of ChMaskCntl is 7")
	}
	return []byte{r.NbRep | (r.ChMaskCntl << 4)}, nil
}

// UnmarshalBinary decodes the object from binary form.
func (r *Redundancy) UnmarshalBinary(data []byte) error {
	if len(data) != 1 {
		return errors.New("lorawan: 1 byte of data is expected")
	}
	r.NbRep = data[0] & 0x0F
	r.ChMaskCntl = (data[0] >> 4) & 0x07
	return nil
}

// LinkADRReqPayload represents the LinkADRReq payload.
type LinkADRReqPayload struct {
	DataRate   uint8
	TXPower    uint8
	ChMask     ChMask
	Redundancy Redundancy
}

// Clone returns a copy of the payload.
func (p LinkADRReqPayload) Clone() Payload { return &p }

// MarshalBinary marshals the object in binary form.
func (p LinkADRReqPayload) MarshalBinary() ([]byte, error) {
	if p.DataRate > 15 {
		return nil, errors.New("lorawan: max value of DataRate is 15")
	}
	if p.TXPower > 15 {
		return nil, errors.New("lorawan: max value of TXPower is 15")
	}

	cm, err := p.ChMask.MarshalBinary()
	if err != nil {
		return nil, err
	}
	r, err := p.Redundancy.MarshalBinary()
	if err != nil {
		return nil, err
	}

	b := make([]byte, 0, 4)
	b = append(b, p.TXPower|(p.DataRate<<4))
	b = append(b, cm...)
	b = append(b, r...)
	return b, nil
}

// UnmarshalBinary decodes the object from binary form.
func (p *LinkADRReqPayload) UnmarshalBinary(uplink bool, data []byte) error {
	if len(data) != 4 {
		return errors.New("lorawan: 4 bytes of data are expected")
	}
	p.DataRate = data[0] >> 4
	p.TXPower = data[0] & 0x0F
	if err := p.ChMask.UnmarshalBinary(data[1:3]); err != nil {
		return err
	}
	return p.Redundancy.UnmarshalBinary(data[3:4])
}

// LinkADRAnsPayload represents the LinkADRAns payload.
type LinkADRAnsPayload struct {
	ChannelMaskACK bool
	DataRateACK    bool
	PowerACK       bool
}

// Clone returns a copy of the payload.
func (p LinkADRAnsPayload) Clone() Payload { return &p }

// MarshalBinary marshals the object in binary form.
func (p LinkADRAnsPayload) MarshalBinary() ([]byte, error) {
	var b byte
	if p.ChannelMaskACK {
		b |= 1 << 0
	}
	if p.DataRateACK {
		b |= 1 << 1
	}
	if p.PowerACK {
		b |= 1 << 2
	}
	return []byte{b}, nil
}

// UnmarshalBinary decodes the object from binary form.
func (p *LinkADRAnsPayload) UnmarshalBinary(uplink bool, data []byte) error {
	if len(data) != 1 {
		return errors.New("lorawan: 1 byte of data is expected")
	}
	p.ChannelMaskACK = data[0]&(1<<0) > 0
	p.DataRateACK = data[0]&(1<<1) > 0
	p.PowerACK = data[0]&(1<<2) > 0
	return nil
}

// DutyCycleReqPayload represents the DutyCycleReq payload.
type DutyCycleReqPayload struct {
	MaxDCycle uint8
}

// Clone returns a copy of the payload.
func (p DutyCycleReqPayload) Clone() Payload { return &p }

// MarshalBinary marshals the object in binary form.
func (p DutyCycleReqPayload) MarshalBinary() ([]byte, error) {
	if p.MaxDCycle > 15 && p.MaxDCycle != 255 {
		return nil, errors.New("lorawan: only 0-15 and 255 are valid MaxDCycle values")
	}
	return []byte{p.MaxDCycle}, nil
}

// UnmarshalBinary decodes the object from binary form.
func (p *DutyCycleReqPayload) UnmarshalBinary(uplink bool, data []byte) error {
	if len(data) != 1 {
		return errors.New("lorawan: 1 byte of data is expected")
	}
	p.MaxDCycle = data[0]
	return nil
}

// RXParamSetupReqPayload represents the RXParamSetupReq payload.
type RXParamSetupReqPayload struct {
	Frequency  uint32 // Hz
	DLSettings DLSettings
}

// Clone returns a copy of the payload.
func (p RXParamSetupReqPayload) Clone() Payload { return &p }

// MarshalBinary marshals the object in binary form.
func (p RXParamSetupReqPayload) MarshalBinary() ([]byte, error) {
	if p.Frequency%100 != 0 {
		return nil, errors.New("lorawan: Frequency must be a multiple of 100")
	}
	if p.Frequency/100 >= 1<<24 {
		return nil, errors.New("lorawan: max value of Frequency is 2^24-1 * 100 Hz")
	}

	s, err := p.DLSettings.MarshalBinary()
	if err != nil {
		return nil, err
	}

	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, p.Frequency/100)

	out := make([]byte, 0, 4)
	out = append(out, s...)
	out = append(out, b[0:3]...)
	return out, nil
}

// UnmarshalBinary decodes the object from binary form.
func (p *RXParamSetupReqPayload) UnmarshalBinary(uplink bool, data []byte) error {
	if len(data) != 4 {
		return errors.New("lorawan: 4 bytes of data are expected")
	}
	if err := p.DLSettings.UnmarshalBinary(data[0:1]); err != nil {
		return err
	}
	b := make([]byte, 4)
	copy(b, data[1:4])
	p.Frequency = binary.LittleEndian.Uint32(b) * 100
	return nil
}

// RXParamSetupAnsPayload represents the RXParamSetupAns payload.
type RXParamSetupAnsPayload struct {
	ChannelACK     bool
	RX2DataRateACK bool
	RX1DROffsetACK bool
}

// Clone returns a copy of the payload.
func (p RXParamSetupAnsPayload) Clone() Payload { return &p }

// MarshalBinary marshals the object in binary form.
func (p RXParamSetupAnsPayload) MarshalBinary() ([]byte, error) {
	var b byte
	if p.ChannelACK {
		b |= 1 << 0
	}
	if p.RX2DataRateACK {
		b |= 1 << 1
	}
	if p.RX1DROffsetACK {
		b |= 1 << 2
	}
	return []byte{b}, nil
}

// UnmarshalBinary decodes the object from binary form.
func (p *RXParamSetupAnsPayload) UnmarshalBinary(uplink bool, data []byte) error {
	if len(data) != 1 {
		return errors.New("lorawan: 1 byte of data is expected")
	}
	p.ChannelACK = data[0]&(1<<0) > 0
	p.RX2DataRateACK = data[0]&(1<<1) > 0
	p.RX1DROffsetACK = data[0]&(1<<2) > 0
	return nil
}

// DevStatusAnsPayload represents the DevStatusAns payload.
type DevStatusAnsPayload struct {
	Battery uint8
	Margin  int8 // -32..31
}

// Clone returns a copy of the payload.
func (p DevStatusAnsPayload) Clone() Payload { return &p }

// MarshalBinary marshals the object in binary form.
func (p DevStatusAnsPayload) MarshalBinary() ([]byte, error) {
	if p.Margin < -32 || p.Margin > 31 {
		return nil, errors.New("lorawan: Margin must be in -32..31")
	}
	m := uint8(p.Margin)
	if p.Margin < 0 {
		m = uint8(64 + p.Margin)
	}
	return []byte{p.Battery, m}, nil
}

// UnmarshalBinary decodes the object from binary form.
func (p *DevStatusAnsPayload) UnmarshalBinary(uplink bool, data []byte) error {
	if len(data) != 2 {
		return errors.New("lorawan: 2 bytes of data are expected")
	}
	p.Battery = data[0]
	if data[1] > 31 {
		p.Margin = int8(data[1]) - 64
	} else {
		p.Margin = int8(data[1])
	}
	return nil
}

// NewChannelReqPayload represents the NewChannelReq payload.
type NewChannelReqPayload struct {
	ChIndex uint8
	Freq    uint32 // Hz
	MaxDR   uint8
	MinDR   uint8
}

// Clone returns a copy of the payload.
func (p NewChannelReqPayload) Clone() Payload { return &p }

// MarshalBinary marshals the object in binary form.
func (p NewChannelReqPayload) MarshalBinary() ([]byte, error) {
	if p.Freq%100 != 0 {
		return nil, errors.New("lorawan: Freq must be a multiple of 100")
	}
	if p.Freq/100 >= 1<<24 {
		return nil, errors.New("lorawan: max value of Freq is 2^24-1 * 100 Hz")
	}
	if p.MaxDR > 15 || p.MinDR > 15 {
		return nil, errors.New("lorawan: max value of MinDR/MaxDR is 15")
	}

	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, p.Freq/100)

	out := make([]byte, 0, 5)
	out = append(out, p.ChIndex)
	out = append(out, b[0:3]...)
	out = append(out, p.MinDR|(p.MaxDR<<4))
	return out, nil
}

// UnmarshalBinary decodes the object from binary form.
func (p *NewChannelReqPayload) UnmarshalBinary(uplink bool, data []byte) error {
	if len(data) != 5 {
		return errors.New("lorawan: 5 bytes of data are expected")
	}
	p.ChIndex = data[0]
	b := make([]byte, 4)
	copy(b, data[1:4])
	p.Freq = binary.LittleEndian.Uint32(b) * 100
	p.MinDR = data[4] & 0x0F
	p.MaxDR = data[4] >> 4
	return nil
}

// NewChannelAnsPayload represents the NewChannelAns payload.
type NewChannelAnsPayload struct {
	ChannelFrequencyOK bool
	DataRateRangeOK    bool
}

// Clone returns a copy of the payload.
func (p NewChannelAnsPayload) Clone() Payload { return &p }

// MarshalBinary marshals the object in binary form.
func (p NewChannelAnsPayload) MarshalBinary() ([]byte, error) {
	var b byte
	if p.ChannelFrequencyOK {
		b |= 1 << 0
	}
	if p.DataRateRangeOK {
		b |= 1 << 1
	}
	return []byte{b}, nil
}

// UnmarshalBinary decodes the object from binary form.
func (p *NewChannelAnsPayload) UnmarshalBinary(uplink bool, data []byte) error {
	if len(data) != 1 {
		return errors.New("lorawan: 1 byte of data is expected")
	}
	p.ChannelFrequencyOK = data[0]&(1<<0) > 0
	p.DataRateRangeOK = data[0]&(1<<1) > 0
	return nil
}

// RXTimingSetupReqPayload represents the RXTimingSetupReq payload.
type RXTimingSetupReqPayload struct {
	Delay uint8 // seconds; 0 means 1s
}

// Clone returns a copy of the payload.
func (p RXTimingSetupReqPayload) Clone() Payload { return &p }

// MarshalBinary marshals the object in binary form.
func (p RXTimingSetupReqPayload) MarshalBinary() ([]byte, error) {
	if p.Delay > 15 {
		return nil, errors.New("lorawan: max value of Delay is 15")
	}
	return []byte{p.Delay}, nil
}

// UnmarshalBinary decodes the object from binary form.
func (p *RXTimingSetupReqPayload) UnmarshalBinary(uplink bool, data []byte) error {
	if len(data) != 1 {
		return errors.New("lorawan: 1 byte of data is expected")
	}
	p.Delay = data[0]
	return nil
}

// eirpSteps is the EIRP table shared with eirp.go's
// GetTXParamSetupEIRPIndex/GetTXParamSetupEIRP.
var eirpSteps = []uint8{8, 10, 12, 13, 14, 16, 18, 20, 21, 24, 26, 27, 29, 30, 33, 36}

// TXParamSetupReqPayload represents the TXParamSetupReq payload: the
// server telling the device which dwell-time/EIRP limits the regional
// sub-band requires. The MAC engine decodes it but does not apply its
// fields; uplinks are always held to the fixed 400ms dwell time that
// region.EnforceDwellTime checks.
type TXParamSetupReqPayload struct {
	DownlinkDwellTime DwellTime
	UplinkDwellTime   DwellTime
	MaxEIRP           uint8
}

// Clone returns a copy of the payload.
func (p TXParamSetupReqPayload) Clone() Payload { return &p }

// MarshalBinary marshals the object in binary form.
func (p TXParamSetupReqPayload) MarshalBinary() ([]byte, error) {
	idx := -1
	for i, v := range eirpSteps {
		if v == p.MaxEIRP {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, errors.New("lorawan: invalid MaxEIRP value")
	}

	b := uint8(idx)
	if p.UplinkDwellTime == DwellTime400ms {
		b |= 1 << 4
	}
	if p.DownlinkDwellTime == DwellTime400ms {
		b |= 1 << 5
	}
	return []byte{b}, nil
}

// UnmarshalBinary decodes the object from binary form.
func (p *TXParamSetupReqPayload) UnmarshalBinary(uplink bool, data []byte) error {
	if len(data) != 1 {
		return errors.New("lorawan: 1 byte of data is expected")
	}
	if data[0]&(1<<4) > 0 {
		p.UplinkDwellTime = DwellTime400ms
	}
	if data[0]&(1<<5) > 0 {
		p.DownlinkDwellTime = DwellTime400ms
	}
	p.MaxEIRP = eirpSteps[data[0]&0x0F]
	return nil
}

// PingSlotInfoReqPayload represents the PingSlotInfoReq payload: the
// device advertising its Class B ping periodicity.
type PingSlotInfoReqPayload struct {
	Periodicity uint8 // 0..7; pingNb = 2^(7-Periodicity) slots per beacon period
}

// Clone returns a copy of the payload.
func (p PingSlotInfoReqPayload) Clone() Payload { return &p }

// MarshalBinary marshals the object in binary form.
func (p PingSlotInfoReqPayload) MarshalBinary() ([]byte, error) {
	if p.Periodicity > 7 {
		return nil, errors.New("lorawan: max value of Periodicity is 7")
	}
	return []byte{p.Periodicity}, nil
}

// UnmarshalBinary decodes the object from binary form.
func (p *PingSlotInfoReqPayload) UnmarshalBinary(uplink bool, data []byte) error {
	if len(data) != 1 {
		return errors.New("lorawan: 1 byte of data is expected")
	}
	p.Periodicity = data[0] & 0x07
	return nil
}

// BeaconTimingAnsPayload represents the BeaconTimingAns payload: time to
// the next beacon (in 30ms units) plus the index of the beacon's
// transmitting channel.
type BeaconTimingAnsPayload struct {
	Delay   uint16 // 30ms units until the next beacon
	Channel uint8
}

// Clone returns a copy of the payload.
func (p BeaconTimingAnsPayload) Clone() Payload { return &p }

// MarshalBinary marshals the object in binary form.
func (p BeaconTimingAnsPayload) MarshalBinary() ([]byte, error) {
	b := make([]byte, 3)
	binary.LittleEndian.PutUint16(b[0:2], p.Delay)
	b[2] = p.Channel
	return b, nil
}

// UnmarshalBinary decodes the object from binary form.
func (p *BeaconTimingAnsPayload) UnmarshalBinary(uplink bool, data []byte) error {
	if len(data) != 3 {
		return errors.New("lorawan: 3 bytes of data are expected")
	}
	p.Delay = binary.LittleEndian.Uint16(data[0:2])
	p.Channel = data[2]
	return nil
}

// BeaconFreqReqPayload represents the BeaconFreqReq payload.
type BeaconFreqReqPayload struct {
	Frequency uint32 // Hz
}

// Clone returns a copy of the payload.
func (p BeaconFreqReqPayload) Clone() Payload { return &p }

// MarshalBinary marshals the object in binary form.
func (p BeaconFreqReqPayload) MarshalBinary() ([]byte, error) {
	if p.Frequency%100 != 0 {
		return nil, errors.New("lorawan: Frequency must be a multiple of 100")
	}
	if p.Frequency/100 >= 1<<24 {
		return nil, errors.New("lorawan: max value of Frequency is 2^24-1 * 100 Hz")
	}
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, p.Frequency/100)
	return b[0:3], nil
}

// UnmarshalBinary decodes the object from binary form.
func (p *BeaconFreqReqPayload) UnmarshalBinary(uplink bool, data []byte) error {
	if len(data) != 3 {
		return errors.New("lorawan: 3 bytes of data are expected")
	}
	b := make([]byte, 4)
	copy(b, data)
	p.Frequency = binary.LittleEndian.Uint32(b) * 100
	return nil
}

// BeaconFreqAnsPayload represents the BeaconFreqAns payload.
type BeaconFreqAnsPayload struct {
	BeaconFrequencyOK bool
}

// Clone returns a copy of the payload.
func (p BeaconFreqAnsPayload) Clone() Payload { return &p }

// MarshalBinary marshals the object in binary form.
func (p BeaconFreqAnsPayload) MarshalBinary() ([]byte, error) {
	var b byte
	if p.BeaconFrequencyOK {
		b = 1
	}
	return []byte{b}, nil
}

// UnmarshalBinary decodes the object from binary form.
func (p *BeaconFreqAnsPayload) UnmarshalBinary(uplink bool, data []byte) error {
	if len(data) != 1 {
		return errors.New("lorawan: 1 byte of data is expected")
	}
	p.BeaconFrequencyOK = data[0]&1 != 0
	return nil
}
