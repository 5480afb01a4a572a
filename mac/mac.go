// Package mac implements the LoRaWAN 1.0.3 end-device MAC engine: join
// procedure, uplink construction, downlink dispatch and the
// MAC-command processor. It is generic over a radio.Transceiver; the
// concrete SX127x/SX126x driver is a collaborator it never names.
package mac

import (
	"math/rand"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/loraedge/lorawan-mcu"
	"github.com/loraedge/lorawan-mcu/applayer/devcmd"
	"github.com/loraedge/lorawan-mcu/classa"
	"github.com/loraedge/lorawan-mcu/classb"
	"github.com/loraedge/lorawan-mcu/classc"
	"github.com/loraedge/lorawan-mcu/duty"
	"github.com/loraedge/lorawan-mcu/internal/crypto"
	"github.com/loraedge/lorawan-mcu/radio"
	"github.com/loraedge/lorawan-mcu/region"
	"github.com/loraedge/lorawan-mcu/session"
)

// Clock is the host-provided monotonic time source.
type Clock interface {
	Now() time.Time
}

// Class selects which receive scheduler is active.
type Class int

const (
	ClassA Class = iota
	ClassB
	ClassC
)

// Sentinel errors, per the documented error taxonomy. Radio errors pass
// through unwrapped as *radio.Error.
var (
	// Configuration errors.
	ErrNotJoined       = errors.New("mac: not joined")
	ErrPayloadTooLarge = errors.New("mac: payload exceeds max size for data rate")

	// Protocol errors. Frame-level violations (InvalidMic, FcntRollover,
	// UnexpectedFrame) are never returned to the caller: per §4.3/§4.4 a
	// protocol violation on a received frame is logged and the frame
	// discarded, never fatal to the uplink in progress.
	ErrInvalidMic      = errors.New("mac: downlink MIC validation failed")
	ErrFcntRollover    = session.ErrFcntRollover
	ErrUnexpectedFrame = errors.New("mac: downlink frame did not match the expected type or address")
	ErrJoinFailed      = errors.New("mac: join failed")
	ErrConfirmUnacked  = errors.New("mac: confirmed uplink exhausted retries without ack")

	// Resource errors.
	ErrTxBusy            = errors.New("mac: transmitter busy")
	ErrDutyCycleExceeded = errors.New("mac: duty-cycle budget exceeded")
	ErrBeaconLost        = errors.New("mac: class B beacon lost, falling back to Class A")
)

// maxFRMPayload is the PHY buffer ceiling; no dynamic allocation beyond
// this fits in a single frame.
const maxFRMPayload = 250

// joinAcceptDelay1 and joinAcceptDelay2 are the US915 default join-accept
// receive-window delays.
const (
	joinAcceptDelay1 = 5 * time.Second
	joinAcceptDelay2 = 6 * time.Second
	rx1SymbolWindow  = 100 * time.Millisecond
)

// Downlink is an application-visible decoded downlink command, surfaced
// from Process after a downlink frame is dispatched.
type Downlink struct {
	Port    uint8
	Command devcmd.Command
}

// Device is the MAC engine for a single end device.
type Device struct {
	identity session.Identity
	Session  *session.State

	region  *region.US915
	radio   radio.Transceiver
	clock   Clock
	rng     *rand.Rand
	subBand int
	duty    *duty.Tracker
	log     *logrus.Entry

	class  Class
	classA *classa.Scheduler
	classB *classb.Scheduler
	classC *classc.Scheduler

	transmitting bool
	pending      *pendingUplink

	onDownlinkCmd   func(Downlink)
	pendingDownlink *Downlink
}

// pendingUplink tracks an in-flight confirmed uplink across retries.
type pendingUplink struct {
	frmPayload []byte
	port       *uint8
	confirmed  bool
	triesLeft  int
	triesDone  int
	dr         uint8
}

// New constructs a Device bound to a radio driver, sub-band and host
// clock. identity.IsOTAA selects whether a join is required before the
// first uplink; ABP identities are activated immediately.
func New(identity session.Identity, r radio.Transceiver, clk Clock, subBand int, rng *rand.Rand, log *logrus.Entry) (*Device, error) {
	reg, err := region.NewUS915(subBand)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	sess := session.New()
	if !identity.IsOTAA {
		sess.ActivateABP(identity.DevAddr, identity.NwkSKey, identity.AppSKey)
	}

	return &Device{
		identity: identity,
		Session:  sess,
		region:   reg,
		radio:    r,
		clock:    clk,
		rng:      rng,
		subBand:  subBand,
		duty:     duty.NewTracker(0),
		log:      log,
		class:    ClassA,
		classA:   classa.New(),
	}, nil
}

// SetClass changes the active receive scheduler.
func (d *Device) SetClass(c Class) {
	d.class = c
}

// OnDownlinkCmd registers the application callback HandleDownlinkCmd
// invokes whenever a downlink application command is decoded.
func (d *Device) OnDownlinkCmd(fn func(Downlink)) {
	d.onDownlinkCmd = fn
}

// HandleDownlinkCmd dispatches a decoded downlink application command
// (SetInterval, ShowFirmwareVersion, Reboot, Custom) to the registered
// application handler, if any.
func (d *Device) HandleDownlinkCmd(dl Downlink) {
	if d.onDownlinkCmd != nil {
		d.onDownlinkCmd(dl)
	}
}

// EnableClassB switches the device into Class B operation, arming the
// beacon-acquisition state machine with the given ping periodicity
// (0-7, as would be advertised via PingSlotInfoReq).
func (d *Device) EnableClassB(periodicity uint8) {
	d.classB = classb.New(periodicity)
	d.class = ClassB
}

// EnableClassC switches the device into Class C continuous-RX2
// operation.
func (d *Device) EnableClassC() {
	d.classC = classc.New()
	d.class = ClassC
}

// JoinOTAA runs the OTAA join procedure, retrying up to maxTries times.
// On success the session is activated with freshly derived keys and
// reset frame counters.
func (d *Device) JoinOTAA(maxTries int) error {
	if !d.identity.IsOTAA {
		return errors.New("mac: device identity is not configured for OTAA")
	}
	if maxTries <= 0 {
		maxTries = 1
	}

	for attempt := 0; attempt < maxTries; attempt++ {
		if err := d.joinAttempt(); err == nil {
			return nil
		} else {
			d.log.WithError(err).Warn("join attempt failed")
		}
	}
	return ErrJoinFailed
}

func (d *Device) joinAttempt() error {
	devNonce := lorawan.DevNonce(d.rng.Intn(1 << 16))

	phy := lorawan.PHYPayload{
		MHDR: lorawan.MHDR{MType: lorawan.JoinRequest, Major: lorawan.LoRaWANR1},
		MACPayload: &lorawan.JoinRequestPayload{
			AppEUI:   d.identity.AppEUI,
			DevEUI:   d.identity.DevEUI,
			DevNonce: devNonce,
		},
	}
	if err := phy.SetUplinkJoinMIC(d.identity.AppKey); err != nil {
		return err
	}

	b, err := phy.MarshalBinary()
	if err != nil {
		return err
	}
	_, freqHz, err := d.region.PickUplinkChannel(d.rng, 3)
	if err != nil {
		return err
	}
	if err := d.setFrequencyDR(freqHz, 3); err != nil {
		return err
	}
	if err := d.radio.Transmit(b); err != nil {
		return wrapRadioErr(err)
	}
	txEnd := d.clock.Now()

	buf := make([]byte, maxFRMPayload)
	n, err := d.radio.ReceiveSingle(joinAcceptDelay1-d.clock.Now().Sub(txEnd)+rx1SymbolWindow, buf)
	if err != nil || n == 0 {
		freq, dr := d.region.RX2Defaults()
		if setErr := d.setFrequencyDR(freq, dr); setErr != nil {
			return setErr
		}
		n, err = d.radio.ReceiveSingle(joinAcceptDelay2-joinAcceptDelay1, buf)
		if err != nil {
			return wrapRadioErr(err)
		}
	}
	if n == 0 {
		return errors.New("mac: no join-accept received")
	}

	var accept lorawan.PHYPayload
	if err := accept.UnmarshalBinary(buf[:n]); err != nil {
		return errors.Wrap(err, "mac: decode join-accept")
	}
	if accept.MHDR.MType != lorawan.JoinAccept {
		return errors.New("mac: expected JoinAccept")
	}
	if err := accept.DecryptJoinAcceptPayload(d.identity.AppKey); err != nil {
		return err
	}
	ok, err := accept.ValidateDownlinkJoinMIC(d.identity.AppKey)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("mac: join-accept MIC invalid")
	}

	ja := accept.MACPayload.(*lorawan.JoinAcceptPayload)

	nwkSKey, err := crypto.DeriveNwkSKey(d.identity.AppKey, ja.AppNonce, [3]byte(ja.NetID), uint16(devNonce))
	if err != nil {
		return err
	}
	appSKey, err := crypto.DeriveAppSKey(d.identity.AppKey, ja.AppNonce, [3]byte(ja.NetID), uint16(devNonce))
	if err != nil {
		return err
	}

	rxDelay := uint32(ja.RxDelay)
	d.Session.CompleteOTAA(ja.DevAddr, lorawan.AES128Key(nwkSKey), lorawan.AES128Key(appSKey), rxDelay, ja.DLSettings.RX1DROffset, ja.DLSettings.RX2DataRate)
	d.Session.DevNonce = devNonce

	if ja.CFList != nil {
		mask, err := ja.CFList.ChannelMask()
		if err == nil {
			for i, enabled := range mask {
				_ = d.region.EnableChannel(i, enabled)
			}
		}
	}
	return nil
}

// ActivateABP installs statically-provisioned keys, bypassing the join
// procedure.
func (d *Device) ActivateABP(devAddr lorawan.DevAddr, nwkSKey, appSKey lorawan.AES128Key) {
	d.Session.ActivateABP(devAddr, nwkSKey, appSKey)
}

// SendUplink builds and transmits a data frame carrying payload on port,
// waits for the RX1/RX2 windows and, for a confirmed uplink, retries up
// to NbTrans-1 additional times, stepping the data rate down after every
// two unacknowledged tries.
func (d *Device) SendUplink(port uint8, payload []byte, confirmed bool, nbTrans int) error {
	if !d.Session.Joined {
		return ErrNotJoined
	}
	if d.transmitting {
		return ErrTxBusy
	}
	if nbTrans <= 0 {
		nbTrans = 1
	}

	maxSize, err := region.MaxPayloadSize(d.Session.DataRate)
	if err != nil {
		return err
	}
	if len(payload) > maxSize {
		return ErrPayloadTooLarge
	}

	d.transmitting = true
	defer func() { d.transmitting = false }()

	dr := d.Session.DataRate
	triesLeft := nbTrans
	triesDone := 0
	ackd := false

	for triesLeft > 0 && !ackd {
		fCnt, err := d.Session.NextFCntUp()
		if err != nil {
			return err
		}

		channel, freqHz, err := d.region.PickUplinkChannel(d.rng, dr)
		if err != nil {
			return err
		}
		sf, bw, err := region.DRToModulation(dr)
		if err != nil {
			return err
		}

		fOpts := d.Session.DrainMACAnswers()
		phy, err := d.buildDataFrame(port, payload, fCnt, fOpts, confirmed)
		if err != nil {
			return err
		}

		b, err := phy.MarshalBinary()
		if err != nil {
			return err
		}

		if err := region.EnforceDwellTime(dr, len(b)); err != nil {
			return ErrPayloadTooLarge
		}

		airtime, _ := duty.CalculateLoRaAirtime(len(b), sf, bw, 8, duty.CodingRate45, true, false)
		if err := d.duty.Reserve(d.clock.Now(), d.subBand, airtime); err != nil {
			return ErrDutyCycleExceeded
		}

		if d.class == ClassC && d.classC != nil {
			d.classC.BeginTX()
		}
		if err := d.setFrequencyDR(freqHz, dr); err != nil {
			return err
		}
		if err := d.radio.Transmit(b); err != nil {
			return wrapRadioErr(err)
		}
		txEnd := d.clock.Now()
		d.Session.AdvanceFCntUp()
		d.Session.LastUplinkChannel = channel

		var dl *Downlink
		ackd, dl, err = d.awaitDownlink(txEnd, channel, dr, confirmed)
		if err != nil {
			d.log.WithError(err).Debug("no valid downlink in RX1/RX2")
		}
		if dl != nil {
			d.pendingDownlink = dl
		}
		if d.class == ClassC && d.classC != nil {
			d.classC.EndTX(txEnd, time.Duration(d.Session.RXDelaySec)*time.Second, rx1SymbolWindow)
			d.classC.Advance(d.clock.Now(), ackd)
		}

		triesDone++
		triesLeft--
		if !confirmed {
			break
		}
		if !ackd && triesLeft > 0 {
			if triesDone%2 == 0 && dr > 0 {
				dr--
			}
		}
	}

	if confirmed && !ackd {
		d.log.Warn("confirmed uplink exhausted retries without ack")
		return ErrConfirmUnacked
	}
	return nil
}

// awaitDownlink runs the Class A RX1/RX2 sequence and reports whether a
// confirmed uplink was acknowledged, along with any application command
// decoded from the received frame.
func (d *Device) awaitDownlink(txEnd time.Time, uplinkChannel int, uplinkDR uint8, confirmed bool) (acked bool, dl *Downlink, err error) {
	rxDelay := time.Duration(d.Session.RXDelaySec) * time.Second
	d.classA.Begin(txEnd, rxDelay, rx1SymbolWindow, rx1SymbolWindow)

	buf := make([]byte, maxFRMPayload)
	for d.classA.State() != classa.Idle {
		deadline := d.classA.NextDeadline()
		now := d.clock.Now()
		if deadline.After(now) {
			now = deadline
		}

		received := false
		if d.classA.State() == classa.RX1Open {
			freq, dr, rerr := d.region.RX1Params(uplinkChannel, uplinkDR, d.Session.RX1DROffset)
			if rerr == nil {
				if serr := d.setFrequencyDR(freq, dr); serr == nil {
					if n, rxErr := d.radio.ReceiveSingle(rx1SymbolWindow, buf); rxErr == nil && n > 0 {
						ackedFrame, frameDl := d.handleDownlinkFrame(buf[:n], confirmed)
						if ackedFrame {
							acked = true
						}
						if frameDl != nil {
							dl = frameDl
						}
						received = true
					}
				}
			}
		} else if d.classA.State() == classa.RX2Open {
			freq, dr := d.region.RX2Defaults()
			if serr := d.setFrequencyDR(freq, dr); serr == nil {
				if n, rxErr := d.radio.ReceiveSingle(rx1SymbolWindow, buf); rxErr == nil && n > 0 {
					ackedFrame, frameDl := d.handleDownlinkFrame(buf[:n], confirmed)
					if ackedFrame {
						acked = true
					}
					if frameDl != nil {
						dl = frameDl
					}
					received = true
				}
			}
		}

		if done := d.classA.Advance(now, received); done {
			break
		}
	}

	return acked, dl, nil
}

// Process services the active class scheduler and reports any downlink
// command decoded along the way. It is a no-op while a transmission is
// in flight; the host is expected to call it from its own timer/event
// loop whenever a class scheduler deadline or a ping-slot wake fires.
func (d *Device) Process(now time.Time) (*Downlink, error) {
	if dl := d.pendingDownlink; dl != nil {
		d.pendingDownlink = nil
		d.HandleDownlinkCmd(*dl)
		return dl, nil
	}
	if d.transmitting {
		return nil, nil
	}

	var (
		dl  *Downlink
		err error
	)
	switch d.class {
	case ClassB:
		dl, err = d.processClassB(now)
	case ClassC:
		dl, err = d.processClassC(now)
	}
	if dl != nil {
		d.HandleDownlinkCmd(*dl)
	}
	return dl, err
}

// processClassB drives beacon acquisition and tracking. ColdStart moves
// straight to Scanning; once a beacon is captured and validated the
// scheduler tracks it, and a Lost transition downgrades the device to
// Class A operation (per §4.6: beacon loss does not halt the device,
// it falls back to Class A and continues).
func (d *Device) processClassB(now time.Time) (*Downlink, error) {
	if d.classB == nil {
		return nil, nil
	}

	if d.classB.State() == classb.ColdStart {
		d.classB.StartScanning()
	}

	period := uint32(now.Unix()) / classb.BeaconPeriod
	freqHz := d.region.BeaconChannel(period)
	if override := d.classB.BeaconFrequencyOverride(); override != 0 {
		freqHz = override
	}
	if err := d.setFrequencyDR(freqHz, region.RX2DataRate); err != nil {
		return nil, err
	}

	buf := make([]byte, 17)
	n, err := d.radio.ReceiveSingle(classb.BeaconWindowMillis*time.Millisecond, buf)
	if err != nil || n == 0 {
		return nil, nil
	}

	b, err := classb.ParseBeacon(buf[:n])
	if err != nil {
		d.log.WithError(err).Debug("discarding invalid beacon frame")
		return nil, nil
	}
	if err := d.classB.HandleBeacon(b); err != nil {
		d.log.WithError(err).Debug("beacon rejected")
	}
	if d.classB.State() == classb.Lost {
		d.log.WithError(ErrBeaconLost).Warn("falling back to Class A")
		d.class = ClassA
	}
	return nil, nil
}

// processClassC services the continuous-RX2 window, dispatching any
// received frame through the normal downlink pipeline.
func (d *Device) processClassC(now time.Time) (*Downlink, error) {
	if d.classC == nil || d.classC.State() != classc.ContinuousRX2 {
		return nil, nil
	}

	freq, dr := d.region.RX2Defaults()
	if err := d.setFrequencyDR(freq, dr); err != nil {
		return nil, err
	}

	buf := make([]byte, maxFRMPayload)
	n, err := d.radio.ReceiveContinuous(buf)
	if err != nil || n == 0 {
		return nil, nil
	}

	_, dl := d.handleDownlinkFrame(buf[:n], false)
	return dl, nil
}

// NextPingSlotTime derives the next Class B ping-slot wake offset (in
// slots within the current beacon period) for the host's timer.
func (d *Device) NextPingSlotTime() (uint32, error) {
	if d.classB == nil {
		return 0, errors.New("mac: device is not in Class B operation")
	}
	return d.classB.NextPingSlotOffset(d.Session.DevAddr.Uint32())
}

// handleDownlinkFrame decodes and dispatches a received downlink frame.
// It reports whether the frame carried an ACK for a confirmed uplink and
// any application command decoded from its application-port FRMPayload.
// Protocol violations are logged and the frame discarded, never fatal.
func (d *Device) handleDownlinkFrame(data []byte, expectAck bool) (acked bool, dl *Downlink) {
	var phy lorawan.PHYPayload
	if err := phy.UnmarshalBinary(data); err != nil {
		d.log.WithError(err).Debug("discarding undecodable downlink frame")
		return false, nil
	}

	switch phy.MHDR.MType {
	case lorawan.UnconfirmedDataDown, lorawan.ConfirmedDataDown:
	default:
		d.log.WithError(ErrUnexpectedFrame).Debug("discarding downlink with unexpected MType")
		return false, nil
	}

	macPL, ok := phy.MACPayload.(*lorawan.MACPayload)
	if !ok || macPL.FHDR.DevAddr != d.Session.DevAddr {
		d.log.WithError(ErrUnexpectedFrame).Debug("discarding downlink for a different DevAddr")
		return false, nil
	}

	fCnt, err := d.Session.AcceptFCntDown(uint16(macPL.FHDR.FCnt))
	if err != nil {
		d.log.WithError(err).Debug("discarding downlink with stale or out-of-range frame counter")
		return false, nil
	}

	ok, err = phy.ValidateDownlinkDataMIC(d.Session.NwkSKey, fCnt)
	if err != nil || !ok {
		d.log.WithError(ErrInvalidMic).Debug("discarding downlink with invalid MIC")
		return false, nil
	}

	if err := phy.DecryptFOpts(d.Session.NwkSKey); err != nil {
		d.log.WithError(err).Debug("failed to decrypt FOpts")
	} else {
		for _, opt := range macPL.FHDR.FOpts {
			d.processMACCommand(opt)
		}
	}

	key := d.Session.AppSKey
	if macPL.FPort != nil && *macPL.FPort == 0 {
		key = d.Session.NwkSKey
	}
	if err := phy.DecryptFRMPayload(key); err != nil {
		d.log.WithError(err).Debug("failed to decrypt FRMPayload")
		return expectAck && macPL.FHDR.FCtrl.ACK, nil
	}

	if macPL.FPort != nil && *macPL.FPort == 0 {
		for _, cmd := range macPL.FRMPayload {
			d.processMACCommand(cmd)
		}
	} else if macPL.FPort != nil && len(macPL.FRMPayload) == 1 {
		if raw, ok := macPL.FRMPayload[0].(*lorawan.DataPayload); ok && len(raw.Bytes) > 0 {
			var cmd devcmd.Command
			if err := cmd.UnmarshalBinary(raw.Bytes); err != nil {
				d.log.WithError(err).Debug("discarding undecodable downlink application command")
			} else {
				dl = &Downlink{Port: *macPL.FPort, Command: cmd}
			}
		}
	}

	return expectAck && macPL.FHDR.FCtrl.ACK, dl
}

// processMACCommand dispatches a single decoded MAC command and queues
// the corresponding answer, per §4.4. TXParamSetupReq and PingSlotInfoReq
// get no answer, and neither does BeaconTimingReq outside Class B.
func (d *Device) processMACCommand(p lorawan.Payload) {
	mc, ok := p.(*lorawan.MACCommand)
	if !ok {
		return
	}

	var ans lorawan.Payload
	ackOnly := false
	switch mc.CID {
	case lorawan.LinkADRReq:
		req := mc.Payload.(*lorawan.LinkADRReqPayload)
		ans = &lorawan.LinkADRAnsPayload{ChannelMaskACK: true, DataRateACK: true, PowerACK: true}
		d.Session.DataRate = req.DataRate
		d.Session.TXPowerIndex = req.TXPower
	case lorawan.DutyCycleReq:
		// Ack only: budget policy is a host concern, not enforced here.
		ackOnly = true
	case lorawan.RXParamSetupReq:
		req := mc.Payload.(*lorawan.RXParamSetupReqPayload)
		d.Session.RX1DROffset = req.DLSettings.RX1DROffset
		d.Session.RX2DR = req.DLSettings.RX2DataRate
		ans = &lorawan.RXParamSetupAnsPayload{ChannelACK: true, RX2DataRateACK: true, RX1DROffsetACK: true}
	case lorawan.DevStatusReq:
		ans = &lorawan.DevStatusAnsPayload{Battery: 255, Margin: 0}
	case lorawan.NewChannelReq:
		req := mc.Payload.(*lorawan.NewChannelReqPayload)
		ans = &lorawan.NewChannelAnsPayload{ChannelFrequencyOK: true, DataRateRangeOK: true}
		_ = d.region.EnableChannel(int(req.ChIndex), true)
	case lorawan.RXTimingSetupReq:
		req := mc.Payload.(*lorawan.RXTimingSetupReqPayload)
		delay := uint32(req.Delay)
		if delay == 0 {
			delay = 1
		}
		d.Session.RXDelaySec = delay
		ackOnly = true
	case lorawan.TXParamSetupReq:
		// Dwell time is enforced directly against the fixed 400ms budget
		// in region.EnforceDwellTime; the requested limits, including
		// MaxEIRP, are not applied.
	case lorawan.PingSlotInfoReq:
		if req, ok := mc.Payload.(*lorawan.PingSlotInfoReqPayload); ok && d.classB != nil {
			d.classB.SetPeriodicity(req.Periodicity)
		}
	case lorawan.BeaconTimingReq:
		if d.classB != nil {
			ans = d.beaconTimingAns()
		}
	case lorawan.BeaconFreqReq:
		req, ok := mc.Payload.(*lorawan.BeaconFreqReqPayload)
		ans = &lorawan.BeaconFreqAnsPayload{BeaconFrequencyOK: ok}
		if ok && d.classB != nil {
			d.classB.SetBeaconFrequencyOverride(req.Frequency)
		}
	case lorawan.LinkCheckAns:
		// Answer to a LinkCheckReq this device itself sent; nothing to do.
	}

	if ans != nil || ackOnly {
		answer := lorawan.MACCommand{CID: mc.CID, Payload: ans}
		b, err := answer.MarshalBinary()
		if err == nil {
			if err := d.Session.QueueMACAnswer(b); err != nil {
				d.log.WithError(err).Warn("dropping MAC answer, queue full")
			}
		}
	}
}

// beaconTimingAns computes the BeaconTimingAns payload: delay to the next
// expected beacon in 30ms units, and the downlink channel it rotates to.
func (d *Device) beaconTimingAns() *lorawan.BeaconTimingAnsPayload {
	next := d.classB.LastBeaconTime() + classb.BeaconPeriod
	now := uint32(d.clock.Now().Unix())

	var delayUnits uint16
	if next > now {
		delayUnits = uint16(uint32(next-now) * 1000 / 30)
	}
	return &lorawan.BeaconTimingAnsPayload{
		Delay:   delayUnits,
		Channel: uint8((next / classb.BeaconPeriod) % 8),
	}
}

// buildDataFrame assembles a PHYPayload data frame at the given frame
// counter and FOpts, setting MIC and encrypting FRMPayload appropriately.
func (d *Device) buildDataFrame(port uint8, payload []byte, fCnt uint32, fOptsBytes []byte, confirmed bool) (*lorawan.PHYPayload, error) {
	mtype := lorawan.UnconfirmedDataUp
	if confirmed {
		mtype = lorawan.ConfirmedDataUp
	}

	var fOpts []lorawan.Payload
	if len(fOptsBytes) > 0 {
		fOpts = []lorawan.Payload{&lorawan.DataPayload{Bytes: fOptsBytes}}
	}

	macPL := &lorawan.MACPayload{
		FHDR: lorawan.FHDR{
			DevAddr: d.Session.DevAddr,
			FCtrl:   lorawan.FCtrl{ADR: d.Session.ADREnabled},
			FCnt:    fCnt,
			FOpts:   fOpts,
		},
	}
	if len(payload) > 0 || port != 0 {
		macPL.FPort = &port
		macPL.FRMPayload = []lorawan.Payload{&lorawan.DataPayload{Bytes: payload}}
	}

	phy := &lorawan.PHYPayload{
		MHDR:       lorawan.MHDR{MType: mtype, Major: lorawan.LoRaWANR1},
		MACPayload: macPL,
	}

	key := d.Session.AppSKey
	if port == 0 {
		key = d.Session.NwkSKey
	}
	if err := phy.EncryptFOpts(d.Session.NwkSKey); err != nil {
		return nil, err
	}
	if err := phy.EncryptFRMPayload(key); err != nil {
		return nil, err
	}
	if err := phy.SetUplinkDataMIC(d.Session.NwkSKey, fCnt); err != nil {
		return nil, err
	}
	return phy, nil
}

func (d *Device) configureForDR(dr uint8) error {
	sf, bw, err := region.DRToModulation(dr)
	if err != nil {
		return err
	}
	return d.radio.SetModulation(radio.Modulation{SpreadFactor: sf, BandwidthKHz: bw, CodingRate: 5, CRCOn: true})
}

func (d *Device) setFrequencyDR(freqHz uint32, dr uint8) error {
	if err := d.radio.SetFrequency(freqHz); err != nil {
		return wrapRadioErr(err)
	}
	return d.configureForDR(dr)
}

func wrapRadioErr(err error) error {
	if _, ok := err.(*radio.Error); ok {
		return err
	}
	return &radio.Error{Kind: radio.ErrOther, Err: err}
}
