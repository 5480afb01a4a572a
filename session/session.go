// Package session holds the per-device identity and session state the
// MAC engine owns: keys, DevAddr, frame counters and the bounded queue
// of pending MAC-command answers. No other subsystem may write to it.
package session

import (
	"github.com/pkg/errors"

	"github.com/loraedge/lorawan-mcu"
	"github.com/loraedge/lorawan-mcu/region"
)

// pendingAnswersCap is the bounded ring size for queued MAC-command
// answer bytes, per the no-dynamic-allocation constraint.
const pendingAnswersCap = 15

// maxFCntDownGap is the largest forward jump in the downlink frame
// counter accepted as a legitimate gap rather than a replay/desync; a
// larger jump is rejected with ErrFcntRollover and the frame discarded.
const maxFCntDownGap = 1 << 14

// ErrFcntRollover indicates a downlink frame counter that either failed
// to increase (replay) or jumped forward by more than maxFCntDownGap.
var ErrFcntRollover = errors.New("session: downlink frame counter rollover or excessive gap")

// Identity is the device's long-term identifiers, set once at
// construction. AppKey is consumed by the join accept to derive session
// keys and is otherwise never transmitted.
type Identity struct {
	DevEUI  lorawan.EUI64
	AppEUI  lorawan.EUI64
	AppKey  lorawan.AES128Key
	IsOTAA  bool
	DevAddr lorawan.DevAddr      // ABP only
	NwkSKey lorawan.AES128Key    // ABP only
	AppSKey lorawan.AES128Key    // ABP only
}

// State is the mutable session data the MAC engine maintains across the
// device's lifetime: keys, frame counters, ADR parameters and any MAC
// answers awaiting piggyback on the next uplink.
type State struct {
	DevAddr lorawan.DevAddr
	NwkSKey lorawan.AES128Key
	AppSKey lorawan.AES128Key

	FCntUp   uint32
	FCntDown uint32
	Joined   bool

	pendingAnswers [][]byte

	ADREnabled   bool
	DataRate     uint8
	TXPowerIndex uint8
	RX1DROffset  uint8
	RX2DR        uint8
	RXDelaySec   uint32

	LastUplinkChannel int
	DevNonce          lorawan.DevNonce
}

// New builds a fresh, unjoined session with US915 defaults (DR3,
// RX1DROffset 0, RX2 at the default DR8, RxDelay 1s).
func New() *State {
	return &State{
		DataRate:    3,
		RX1DROffset: 0,
		RX2DR:       region.RX2DataRate,
		RXDelaySec:  1,
	}
}

// ActivateABP installs statically-provisioned session keys, bypassing
// the join procedure. Frame counters start at zero.
func (s *State) ActivateABP(devAddr lorawan.DevAddr, nwkSKey, appSKey lorawan.AES128Key) {
	s.DevAddr = devAddr
	s.NwkSKey = nwkSKey
	s.AppSKey = appSKey
	s.FCntUp = 0
	s.FCntDown = 0
	s.Joined = true
}

// CompleteOTAA installs the session keys and DevAddr derived from a
// join-accept. Both frame counters reset to zero, per the join
// invariant.
func (s *State) CompleteOTAA(devAddr lorawan.DevAddr, nwkSKey, appSKey lorawan.AES128Key, rxDelay uint32, rx1DROffset, rx2DR uint8) {
	s.DevAddr = devAddr
	s.NwkSKey = nwkSKey
	s.AppSKey = appSKey
	s.FCntUp = 0
	s.FCntDown = 0
	s.Joined = true
	s.RX1DROffset = rx1DROffset
	s.RX2DR = rx2DR
	if rxDelay == 0 {
		rxDelay = 1
	}
	s.RXDelaySec = rxDelay
}

// NextFCntUp returns the counter value the next uplink must use and
// reports whether the session has expired (wrapped past 0xFFFFFFFF).
// A wrapped session requires re-join before any further uplink.
func (s *State) NextFCntUp() (uint32, error) {
	if !s.Joined {
		return 0, errors.New("session: not joined")
	}
	return s.FCntUp, nil
}

// AdvanceFCntUp increments the uplink counter after a successful build.
// On wrap past 0xFFFFFFFF the session is marked expired.
func (s *State) AdvanceFCntUp() {
	if s.FCntUp == 0xFFFFFFFF {
		s.Joined = false
		s.FCntUp = 0
		return
	}
	s.FCntUp++
}

// AcceptFCntDown validates and installs a newly received downlink frame
// counter. The 16-bit wire value is extended against the last accepted
// counter; the result must be strictly greater and not more than
// maxFCntDownGap ahead, or the frame is a replay/desync and is rejected
// with ErrFcntRollover.
func (s *State) AcceptFCntDown(fCnt16 uint16) (uint32, error) {
	extended := extendFCnt(s.FCntDown, fCnt16)
	if extended <= s.FCntDown && !(s.FCntDown == 0 && extended == 0) {
		return 0, ErrFcntRollover
	}
	if extended > s.FCntDown+maxFCntDownGap {
		return 0, ErrFcntRollover
	}
	s.FCntDown = extended
	return extended, nil
}

// extendFCnt reconstructs a 32-bit counter from the 16-bit wire value
// and the last known 32-bit value, choosing the candidate nearest to
// (and not behind) prev.
func extendFCnt(prev uint32, wire uint16) uint32 {
	hi := prev &^ 0xFFFF
	candidate := hi | uint32(wire)
	if candidate < prev {
		candidate += 0x10000
	}
	return candidate
}

// QueueMACAnswer appends a MAC-command answer's marshaled bytes to the
// pending queue, to be piggybacked on the next uplink. It is dropped
// (and an error returned) if it would overflow the 15-byte FOpts ring.
func (s *State) QueueMACAnswer(answer []byte) error {
	total := len(answer)
	for _, a := range s.pendingAnswers {
		total += len(a)
	}
	if total > pendingAnswersCap {
		return errors.New("session: pending MAC answer queue full")
	}
	cp := make([]byte, len(answer))
	copy(cp, answer)
	s.pendingAnswers = append(s.pendingAnswers, cp)
	return nil
}

// DrainMACAnswers returns the queued MAC-command answers concatenated,
// up to the FOpts 15-byte limit, and clears the entries that were
// drained. Answers that do not fit are left queued for the next uplink.
func (s *State) DrainMACAnswers() []byte {
	var out []byte
	drained := 0
	for _, a := range s.pendingAnswers {
		if len(out)+len(a) > pendingAnswersCap {
			break
		}
		out = append(out, a...)
		drained++
	}
	s.pendingAnswers = s.pendingAnswers[drained:]
	return out
}

// PendingMACAnswerBytes reports the total size of queued MAC answers,
// used to decide whether they must move to a port-0 FRMPayload instead
// of FOpts.
func (s *State) PendingMACAnswerBytes() int {
	total := 0
	for _, a := range s.pendingAnswers {
		total += len(a)
	}
	return total
}
