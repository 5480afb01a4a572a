// Package region implements the US915 channel plan: the 64+8 uplink
// channels, the 8 downlink channels, data-rate/(SF,BW) mapping, RX1/RX2
// parameter derivation and sub-band-scoped channel selection. Other
// regions are out of scope: this stack targets US915 end devices only.
package region

import (
	"math/rand"
	"time"

	"github.com/pkg/errors"

	"github.com/loraedge/lorawan-mcu/duty"
)

// DataRate describes the modulation parameters for a DR index.
type DataRate struct {
	SpreadFactor int
	BandwidthKHz int
}

// dataRates is the US915 DR table, per §3: DR0-3 on the 125kHz uplink
// plan, DR4 on the 500kHz uplink plan, DR8-13 on the 500kHz downlink plan.
var dataRates = map[uint8]DataRate{
	0:  {SpreadFactor: 10, BandwidthKHz: 125},
	1:  {SpreadFactor: 9, BandwidthKHz: 125},
	2:  {SpreadFactor: 8, BandwidthKHz: 125},
	3:  {SpreadFactor: 7, BandwidthKHz: 125},
	4:  {SpreadFactor: 8, BandwidthKHz: 500},
	8:  {SpreadFactor: 12, BandwidthKHz: 500},
	9:  {SpreadFactor: 11, BandwidthKHz: 500},
	10: {SpreadFactor: 10, BandwidthKHz: 500},
	11: {SpreadFactor: 9, BandwidthKHz: 500},
	12: {SpreadFactor: 8, BandwidthKHz: 500},
	13: {SpreadFactor: 7, BandwidthKHz: 500},
}

// maxPayloadSize is the MACPayload size ceiling (M) per DR, repeater-
// compatible values per the LoRaWAN 1.0.3A regional parameters.
var maxPayloadSize = map[uint8]int{
	0:  19,
	1:  61,
	2:  133,
	3:  250,
	4:  250,
	8:  41,
	9:  117,
	10: 230,
	11: 230,
	12: 230,
	13: 230,
}

// rx1DataRateTable maps an uplink DR and RX1DROffset to the RX1 DR.
var rx1DataRateTable = map[uint8][]uint8{
	0: {10, 9, 8, 8},
	1: {11, 10, 9, 8},
	2: {12, 11, 10, 9},
	3: {13, 12, 11, 10},
	4: {13, 13, 12, 11},
}

const (
	uplink125kHzBase  = 902300000 // Hz, channel 0
	uplink125kHzStep  = 200000
	uplink125kHzCount = 64

	uplink500kHzBase  = 903000000 // Hz, channel 64
	uplink500kHzStep  = 1600000
	uplink500kHzCount = 8

	downlinkBase  = 923300000 // Hz, channel 0
	downlinkStep  = 600000
	downlinkCount = 8

	// RX2Frequency and RX2DataRate are the US915 fixed RX2 defaults.
	RX2Frequency = 923300000
	RX2DataRate  = 8
)

// channel is one uplink channel's frequency and enablement.
type channel struct {
	frequency uint32
	minDR     uint8
	maxDR     uint8
	enabled   bool
}

// US915 holds the device's view of the 72-channel uplink plan and the
// 8-channel downlink plan, scoped to a single enabled sub-band (a gateway
// only listens on one 8+1 channel group; the device must match it).
type US915 struct {
	uplink   [72]channel
	downlink [8]channel
	lastUsed int
}

// NewUS915 builds the channel plan with only the given sub-band (0-7)
// enabled: the 8 125kHz channels sub*8..sub*8+7, plus the paired 500kHz
// channel 64+sub. This matches common network deployments (e.g. The
// Things Network's US915 sub-band 2, channels 8-15 and channel 65, is
// subBand 1 here, since this index counts from 0).
func NewUS915(subBand int) (*US915, error) {
	if subBand < 0 || subBand > 7 {
		return nil, errors.Errorf("region: sub-band must be 0-7, got %d", subBand)
	}

	u := &US915{lastUsed: -1}

	for i := 0; i < uplink125kHzCount; i++ {
		u.uplink[i] = channel{
			frequency: uplink125kHzBase + uint32(i)*uplink125kHzStep,
			minDR:     0,
			maxDR:     3,
			enabled:   i/8 == subBand,
		}
	}
	for i := 0; i < uplink500kHzCount; i++ {
		u.uplink[64+i] = channel{
			frequency: uplink500kHzBase + uint32(i)*uplink500kHzStep,
			minDR:     4,
			maxDR:     4,
			enabled:   i == subBand,
		}
	}
	for i := 0; i < downlinkCount; i++ {
		u.downlink[i] = channel{
			frequency: downlinkBase + uint32(i)*downlinkStep,
			minDR:     8,
			maxDR:     13,
			enabled:   true,
		}
	}

	return u, nil
}

// EnableChannel enables or disables an uplink channel index (0-71), as
// driven by NewChannelReq and a join-accept CFList.
func (u *US915) EnableChannel(index int, enabled bool) error {
	if index < 0 || index >= len(u.uplink) {
		return errors.Errorf("region: invalid channel index %d", index)
	}
	u.uplink[index].enabled = enabled
	return nil
}

// PickUplinkChannel pseudo-randomly selects an enabled uplink channel
// compatible with dr, excluding the previously used channel
// (anti-stickiness: §4.2 requires no channel repeat on consecutive
// uplinks, since FCC frequency-hopping rules forbid it).
func (u *US915) PickUplinkChannel(rng *rand.Rand, dr uint8) (index int, freqHz uint32, err error) {
	var candidates []int
	for i, c := range u.uplink {
		if c.enabled && dr >= c.minDR && dr <= c.maxDR && i != u.lastUsed {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		// only the previously used channel qualifies; re-use is forced
		for i, c := range u.uplink {
			if c.enabled && dr >= c.minDR && dr <= c.maxDR {
				candidates = append(candidates, i)
			}
		}
	}
	if len(candidates) == 0 {
		return 0, 0, errors.Errorf("region: no enabled channel for DR%d", dr)
	}

	index = candidates[rng.Intn(len(candidates))]
	u.lastUsed = index
	return index, u.uplink[index].frequency, nil
}

// RX1Params returns the RX1 frequency and data-rate for an uplink sent on
// uplinkChannel at uplinkDR, offset by rx1DROffset. Per §4.2, the RX1
// downlink channel is uplinkChannel mod 8 of the 500kHz downlink set.
func (u *US915) RX1Params(uplinkChannel int, uplinkDR uint8, rx1DROffset uint8) (freqHz uint32, dr uint8, err error) {
	if uplinkChannel < 0 || uplinkChannel >= len(u.uplink) {
		return 0, 0, errors.Errorf("region: invalid uplink channel %d", uplinkChannel)
	}

	dlIndex := uplinkChannel % 8
	freqHz = u.downlink[dlIndex].frequency

	offsets, ok := rx1DataRateTable[uplinkDR]
	if !ok {
		return 0, 0, errors.Errorf("region: no RX1 data-rate table entry for DR%d", uplinkDR)
	}
	if int(rx1DROffset) >= len(offsets) {
		return 0, 0, errors.Errorf("region: RX1DROffset %d out of range", rx1DROffset)
	}

	return freqHz, offsets[rx1DROffset], nil
}

// RX2Defaults returns the fixed RX2 frequency and data-rate.
func (u *US915) RX2Defaults() (freqHz uint32, dr uint8) {
	return RX2Frequency, RX2DataRate
}

// DRToModulation returns the (SF, bandwidth) pair for a DR index.
func DRToModulation(dr uint8) (sf int, bwKHz int, err error) {
	d, ok := dataRates[dr]
	if !ok {
		return 0, 0, errors.Errorf("region: unknown data rate DR%d", dr)
	}
	return d.SpreadFactor, d.BandwidthKHz, nil
}

// MaxPayloadSize returns the maximum MACPayload size for a DR index.
func MaxPayloadSize(dr uint8) (int, error) {
	m, ok := maxPayloadSize[dr]
	if !ok {
		return 0, errors.Errorf("region: unknown data rate DR%d", dr)
	}
	return m, nil
}

// maxDwellTime is the per-transmission airtime budget; a (dr, payloadLen)
// combination whose time-on-air would exceed it is rejected.
const maxDwellTime = 400 * time.Millisecond

// ErrDwellTimeExceeded indicates a (dr, payloadLen) combination whose
// time-on-air would exceed the 400ms dwell-time budget.
var ErrDwellTimeExceeded = errors.New("region: transmission would exceed 400ms dwell-time budget")

// EnforceDwellTime reports whether a frame of payloadLen bytes at dr may
// be transmitted without exceeding the 400ms dwell-time budget. Frames
// that would exceed it are rejected with ErrDwellTimeExceeded.
func EnforceDwellTime(dr uint8, payloadLen int) error {
	sf, bw, err := DRToModulation(dr)
	if err != nil {
		return err
	}

	airtime, err := duty.CalculateLoRaAirtime(payloadLen, sf, bw, 8, duty.CodingRate45, true, sf >= 11)
	if err != nil {
		return err
	}
	if airtime > maxDwellTime {
		return ErrDwellTimeExceeded
	}
	return nil
}

// BeaconChannel returns the downlink channel frequency a beacon is
// expected on for a given beacon period index, rotating through the
// 500kHz downlink channels the same way ping slots do.
func (u *US915) BeaconChannel(beaconPeriodIndex uint32) uint32 {
	idx := beaconPeriodIndex % uint32(len(u.downlink))
	return u.downlink[idx].frequency
}

// PingSlotChannel returns the Class B ping-slot downlink channel for a
// device address and beacon period index, per §4.2/§4.6: the channel
// rotates with (DevAddr + beaconPeriod) mod 8, matching the downlink
// channel a gateway would pick for that slot.
func (u *US915) PingSlotChannel(devAddrU32 uint32, beaconPeriod uint32) uint32 {
	idx := (devAddrU32 + beaconPeriod) % uint32(len(u.downlink))
	return u.downlink[idx].frequency
}
