// Package classb implements the Class B beacon-acquisition state
// machine and ping-slot offset derivation: ColdStart -> Scanning ->
// Acquired -> Tracking <-> Lost.
package classb

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/loraedge/lorawan-mcu/internal/crypto"
)

// BeaconPeriod is the interval between consecutive beacons, in seconds.
const BeaconPeriod = 128

// BeaconWindowMillis is how long Scanning listens per beacon period.
const BeaconWindowMillis = 122880

// maxDriftSeconds is the acceptable beacon-time drift before a beacon is
// rejected; out-of-range drift is not fully specified, so the policy
// applied here is to reject and stay in Tracking until two consecutive
// bad beacons downgrade to Lost.
const maxDriftSeconds = 0.5

// State is a point in the beacon-acquisition state machine.
type State int

const (
	ColdStart State = iota
	Scanning
	Acquired
	Tracking
	Lost
)

func (s State) String() string {
	switch s {
	case ColdStart:
		return "ColdStart"
	case Scanning:
		return "Scanning"
	case Acquired:
		return "Acquired"
	case Tracking:
		return "Tracking"
	case Lost:
		return "Lost"
	default:
		return "Unknown"
	}
}

// Beacon is the parsed beacon frame payload: GPS time, CRC, gateway
// spec byte and seven info bytes (contents vary with gwspec; not
// interpreted here).
type Beacon struct {
	Time   uint32
	CRC    uint16
	GwSpec uint8
	Info   [7]byte
}

// ParseBeacon decodes and CRC-validates a raw beacon frame.
func ParseBeacon(data []byte) (Beacon, error) {
	var b Beacon
	if len(data) != 17 {
		return b, errors.New("classb: beacon frame must be 17 bytes")
	}

	b.Time = binary.LittleEndian.Uint32(data[0:4])
	b.GwSpec = data[4]
	copy(b.Info[:], data[5:12])
	b.CRC = binary.LittleEndian.Uint16(data[12:14])

	if crc16CCITT(data[0:12]) != b.CRC {
		return b, errors.New("classb: beacon CRC mismatch")
	}
	return b, nil
}

// crc16CCITT computes the CRC16-CCITT (poly 0x1021, init 0) used over
// the beacon's time/gwspec/info fields. No corpus library covers this
// narrow CRC width, so it is hand-rolled against the stdlib only.
func crc16CCITT(data []byte) uint16 {
	var crc uint16
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// Scheduler tracks beacon acquisition and derives the Class B ping
// schedule from the last accepted beacon.
type Scheduler struct {
	state              State
	lastBeaconTime     uint32
	driftPPM           int16
	badBeaconStreak    int
	pingPeriodSlots    uint32 // pingNb = 2^(7-periodicity), per §3
	beaconFreqOverride uint32 // Hz; 0 means use the region's default rotation
}

// New returns a Scheduler in ColdStart with the given ping periodicity
// (0..7, as advertised by PingSlotInfoReq; pingNb = 2^(7-periodicity)).
func New(periodicity uint8) *Scheduler {
	return &Scheduler{
		state:           ColdStart,
		pingPeriodSlots: 1 << (7 - uint(periodicity&0x07)),
	}
}

// State reports the current beacon-acquisition state.
func (s *Scheduler) State() State {
	return s.state
}

// StartScanning transitions from ColdStart (or Lost) into Scanning.
func (s *Scheduler) StartScanning() {
	s.state = Scanning
}

// HandleBeacon processes a freshly parsed, CRC-valid beacon. It verifies
// the observed time against the expected schedule (once one exists),
// applies the two-consecutive-bad-beacons-to-Lost policy, and advances
// Scanning -> Acquired -> Tracking on first success.
func (s *Scheduler) HandleBeacon(b Beacon) error {
	if s.lastBeaconTime != 0 {
		expected := s.lastBeaconTime + BeaconPeriod
		drift := float64(int64(b.Time) - int64(expected))
		if drift < -maxDriftSeconds || drift > maxDriftSeconds {
			s.badBeaconStreak++
			if s.badBeaconStreak >= 2 {
				s.state = Lost
			}
			return errors.Errorf("classb: beacon time drift %.1fs exceeds tolerance", drift)
		}
		s.driftPPM = int16(drift * 1e6 / BeaconPeriod)
	}

	s.badBeaconStreak = 0
	s.lastBeaconTime = b.Time

	switch s.state {
	case ColdStart, Scanning:
		s.state = Acquired
	default:
		s.state = Tracking
	}
	return nil
}

// LastBeaconTime returns the GPS time of the last accepted beacon.
func (s *Scheduler) LastBeaconTime() uint32 {
	return s.lastBeaconTime
}

// SetPeriodicity renegotiates the ping periodicity (0..7), recomputing
// pingNb = 2^(7-periodicity) slots per beacon period, per PingSlotInfoReq.
func (s *Scheduler) SetPeriodicity(periodicity uint8) {
	s.pingPeriodSlots = 1 << (7 - uint(periodicity&0x07))
}

// BeaconFrequencyOverride returns the network-assigned beacon/ping-slot
// channel frequency set by BeaconFreqReq, or 0 if none is set.
func (s *Scheduler) BeaconFrequencyOverride() uint32 {
	return s.beaconFreqOverride
}

// SetBeaconFrequencyOverride pins the beacon/ping-slot channel to a
// network-assigned frequency, per BeaconFreqReq.
func (s *Scheduler) SetBeaconFrequencyOverride(hz uint32) {
	s.beaconFreqOverride = hz
}

// DriftPPM returns the last computed clock drift estimate.
func (s *Scheduler) DriftPPM() int16 {
	return s.driftPPM
}

// NextPingSlotOffset derives the pseudo-random ping-slot offset (in
// slots, within the current beacon period) for devAddr, per the
// network-synchronized ping-slot randomization scheme: key =
// AES128(0x00*16, beaconTime(4B LE) | devAddr(4B LE) | 0x00*8);
// ping_offset = (key[0] + key[1]*256) mod pingPeriodSlots.
func (s *Scheduler) NextPingSlotOffset(devAddr uint32) (uint32, error) {
	var zeroKey [16]byte
	block := make([]byte, 16)
	binary.LittleEndian.PutUint32(block[0:4], s.lastBeaconTime)
	binary.LittleEndian.PutUint32(block[4:8], devAddr)

	enc, err := crypto.EncryptBlock(zeroKey, block)
	if err != nil {
		return 0, errors.Wrap(err, "classb: derive ping-slot offset")
	}

	offset := uint32(enc[0]) + uint32(enc[1])*256
	return offset % s.pingPeriodSlots, nil
}
