package mac_test

import (
	"math/rand"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/loraedge/lorawan-mcu"
	"github.com/loraedge/lorawan-mcu/mac"
	"github.com/loraedge/lorawan-mcu/radio"
	"github.com/loraedge/lorawan-mcu/session"
)

type fakeClock struct{ t time.Time }

func (c fakeClock) Now() time.Time { return c.t }

type fakeRadio struct {
	transmitted [][]byte
	rxQueue     [][]byte // nil entry = timeout
	rxCalls     int

	continuousResp []byte

	// onTransmit, when set, runs after Transmit records the frame and lets
	// a test synthesize a reply (e.g. a join-accept keyed off the
	// DevNonce the device just sent) before the next ReceiveSingle call.
	onTransmit func(payload []byte)
}

func (r *fakeRadio) Init() error                           { return nil }
func (r *fakeRadio) Sleep() error                           { return nil }
func (r *fakeRadio) Standby() error                         { return nil }
func (r *fakeRadio) SetFrequency(hz uint32) error           { return nil }
func (r *fakeRadio) SetTXPower(dBm int8) error              { return nil }
func (r *fakeRadio) SetModulation(m radio.Modulation) error { return nil }
func (r *fakeRadio) SetSyncWord(w radio.SyncWord) error     { return nil }
func (r *fakeRadio) GetRSSI() (int16, error)                { return 0, nil }
func (r *fakeRadio) GetSNR() (int8, error)                  { return 0, nil }

func (r *fakeRadio) Transmit(payload []byte) error {
	cp := make([]byte, len(payload))
	copy(cp, payload)
	r.transmitted = append(r.transmitted, cp)
	if r.onTransmit != nil {
		r.onTransmit(cp)
	}
	return nil
}

func (r *fakeRadio) ReceiveSingle(timeout time.Duration, buf []byte) (int, error) {
	if r.rxCalls >= len(r.rxQueue) {
		return 0, &radio.Error{Kind: radio.ErrTimeout}
	}
	resp := r.rxQueue[r.rxCalls]
	r.rxCalls++
	if resp == nil {
		return 0, &radio.Error{Kind: radio.ErrTimeout}
	}
	return copy(buf, resp), nil
}

func (r *fakeRadio) ReceiveContinuous(buf []byte) (int, error) {
	if r.continuousResp == nil {
		return 0, &radio.Error{Kind: radio.ErrTimeout}
	}
	return copy(buf, r.continuousResp), nil
}

func testIdentity(devAddr lorawan.DevAddr, nwkSKey, appSKey lorawan.AES128Key) session.Identity {
	return session.Identity{
		DevAddr: devAddr,
		NwkSKey: nwkSKey,
		AppSKey: appSKey,
	}
}

func buildAckDownlink(t *testing.T, devAddr lorawan.DevAddr, nwkSKey lorawan.AES128Key, fCnt uint32) []byte {
	t.Helper()
	phy := lorawan.PHYPayload{
		MHDR: lorawan.MHDR{MType: lorawan.UnconfirmedDataDown, Major: lorawan.LoRaWANR1},
		MACPayload: &lorawan.MACPayload{
			FHDR: lorawan.FHDR{
				DevAddr: devAddr,
				FCtrl:   lorawan.FCtrl{ACK: true},
				FCnt:    fCnt,
			},
		},
	}
	require := func(err error) {
		if err != nil {
			t.Fatalf("buildAckDownlink: %v", err)
		}
	}
	require(phy.SetDownlinkDataMIC(nwkSKey, fCnt))
	b, err := phy.MarshalBinary()
	require(err)
	return b
}

func newTestDevice(t *testing.T, r *fakeRadio) (*mac.Device, lorawan.DevAddr, lorawan.AES128Key) {
	t.Helper()
	devAddr := lorawan.DevAddr{0x01, 0x02, 0x03, 0x04}
	nwkSKey := lorawan.AES128Key{}
	appSKey := lorawan.AES128Key{}
	copy(nwkSKey[:], []byte("nwkSKeynwkSKey01"))
	copy(appSKey[:], []byte("appSKeyappSKey01"))

	identity := testIdentity(devAddr, nwkSKey, appSKey)
	log := logrus.NewEntry(logrus.New())
	rng := rand.New(rand.NewSource(1))

	d, err := mac.New(identity, r, fakeClock{t: time.Unix(1000, 0)}, 0, rng, log)
	if err != nil {
		t.Fatalf("mac.New: %v", err)
	}
	return d, devAddr, nwkSKey
}

func TestSendUplinkRequiresJoin(t *testing.T) {
	Convey("Given a device whose session has never joined", t, func() {
		r := &fakeRadio{}
		devAddr := lorawan.DevAddr{}
		identity := session.Identity{IsOTAA: true, DevAddr: devAddr}
		log := logrus.NewEntry(logrus.New())
		d, err := mac.New(identity, r, fakeClock{t: time.Unix(0, 0)}, 0, rand.New(rand.NewSource(1)), log)
		So(err, ShouldBeNil)

		Convey("SendUplink is refused with ErrNotJoined", func() {
			err = d.SendUplink(1, []byte("hi"), false, 1)
			So(err, ShouldEqual, mac.ErrNotJoined)
		})
	})
}

func TestSendUplinkRejectsOversizedPayload(t *testing.T) {
	Convey("Given a joined device", t, func() {
		r := &fakeRadio{}
		d, _, _ := newTestDevice(t, r)

		Convey("A payload beyond the region's max size is rejected", func() {
			err := d.SendUplink(1, make([]byte, 300), false, 1)
			So(err, ShouldEqual, mac.ErrPayloadTooLarge)
		})
	})
}

func TestSendUplinkConfirmedReceivesAckOnRX1(t *testing.T) {
	Convey("Given a joined device and a network that ACKs on RX1", t, func() {
		r := &fakeRadio{}
		d, devAddr, nwkSKey := newTestDevice(t, r)

		ack := buildAckDownlink(t, devAddr, nwkSKey, 0)
		r.rxQueue = [][]byte{ack}

		Convey("The confirmed uplink completes without error", func() {
			err := d.SendUplink(10, []byte("hello"), true, 1)
			So(err, ShouldBeNil)
			So(r.transmitted, ShouldHaveLength, 1)
		})
	})
}

func TestSendUplinkConfirmedWithTamperedMicIsNotAcked(t *testing.T) {
	Convey("Given a joined device and a network reply with a corrupted MIC", t, func() {
		r := &fakeRadio{}
		d, devAddr, nwkSKey := newTestDevice(t, r)

		ack := buildAckDownlink(t, devAddr, nwkSKey, 0)
		ack[len(ack)-1] ^= 0xFF // flip a bit in the trailing MIC byte
		r.rxQueue = [][]byte{ack, nil}

		Convey("The tampered frame is discarded on both RX windows and the uplink goes unacked", func() {
			err := d.SendUplink(10, []byte("hello"), true, 1)
			So(err, ShouldEqual, mac.ErrConfirmUnacked)
		})
	})
}

func TestSendUplinkUnconfirmedDoesNotRetryWithoutDownlink(t *testing.T) {
	Convey("Given a joined device sending an unconfirmed uplink", t, func() {
		r := &fakeRadio{}
		d, _, _ := newTestDevice(t, r)

		Convey("It transmits exactly once regardless of RX activity", func() {
			err := d.SendUplink(10, []byte("hello"), false, 1)
			So(err, ShouldBeNil)
			So(r.transmitted, ShouldHaveLength, 1)
		})
	})
}

func TestEnableClassBAndProcess(t *testing.T) {
	Convey("Given a joined device with Class B enabled", t, func() {
		r := &fakeRadio{}
		d, _, _ := newTestDevice(t, r)
		d.EnableClassB(0)

		Convey("Process succeeds and a ping-slot offset within the period is derivable", func() {
			_, err := d.Process(time.Unix(1000, 0))
			So(err, ShouldBeNil)

			offset, err := d.NextPingSlotTime()
			So(err, ShouldBeNil)
			So(offset, ShouldBeLessThan, uint32(128))
		})
	})
}

func TestEnableClassCAndProcess(t *testing.T) {
	Convey("Given a joined device with Class C enabled", t, func() {
		r := &fakeRadio{}
		d, _, _ := newTestDevice(t, r)
		d.EnableClassC()

		Convey("Process succeeds", func() {
			_, err := d.Process(time.Unix(1000, 0))
			So(err, ShouldBeNil)
		})
	})
}

// buildJoinAccept encrypts and MICs a join-accept payload the way a network
// server would, so JoinOTAA can be exercised end-to-end against a fake
// radio that plays the network's part.
func buildJoinAccept(t *testing.T, appKey lorawan.AES128Key, appNonce [3]byte, netID lorawan.NetID, devAddr lorawan.DevAddr, rxDelay uint8) []byte {
	t.Helper()
	phy := lorawan.PHYPayload{
		MHDR: lorawan.MHDR{MType: lorawan.JoinAccept, Major: lorawan.LoRaWANR1},
		MACPayload: &lorawan.JoinAcceptPayload{
			AppNonce:   appNonce,
			NetID:      netID,
			DevAddr:    devAddr,
			DLSettings: lorawan.DLSettings{RX1DROffset: 0, RX2DataRate: 8},
			RxDelay:    rxDelay,
		},
	}
	fail := func(err error) {
		if err != nil {
			t.Fatalf("buildJoinAccept: %v", err)
		}
	}
	fail(phy.SetDownlinkJoinMIC(appKey))
	fail(phy.EncryptJoinAcceptPayload(appKey))
	b, err := phy.MarshalBinary()
	fail(err)
	return b
}

func TestJoinOTAACompletesWithDerivedSessionKeys(t *testing.T) {
	Convey("Given an OTAA-provisioned device and a network ready to accept its join", t, func() {
		var devEUI lorawan.EUI64
		var appEUI lorawan.EUI64
		var appKey lorawan.AES128Key
		for i := 0; i < 8; i++ {
			devEUI[i] = byte(i + 1)
			appEUI[i] = byte(i + 0x10)
		}
		for i := 0; i < 16; i++ {
			appKey[i] = byte(i + 0x20)
		}

		appNonce := [3]byte{0xA1, 0xA2, 0xA3}
		netID := lorawan.NetID{0x00, 0x00, 0x01}
		wantDevAddr := lorawan.DevAddr{0x26, 0x01, 0x12, 0x34}

		identity := session.Identity{IsOTAA: true, DevEUI: devEUI, AppEUI: appEUI, AppKey: appKey}
		log := logrus.NewEntry(logrus.New())
		r := &fakeRadio{}
		var gotDevNonce lorawan.DevNonce
		r.onTransmit = func(payload []byte) {
			var req lorawan.PHYPayload
			if err := req.UnmarshalBinary(payload); err != nil {
				t.Fatalf("decode join-request: %v", err)
			}
			gotDevNonce = req.MACPayload.(*lorawan.JoinRequestPayload).DevNonce
			r.rxQueue = [][]byte{buildJoinAccept(t, appKey, appNonce, netID, wantDevAddr, 1)}
			r.rxCalls = 0
		}

		d, err := mac.New(identity, r, fakeClock{t: time.Unix(1000, 0)}, 0, rand.New(rand.NewSource(7)), log)
		So(err, ShouldBeNil)

		Convey("JoinOTAA succeeds and activates the session with the accepted DevAddr", func() {
			err := d.JoinOTAA(1)
			So(err, ShouldBeNil)
			So(gotDevNonce, ShouldNotBeZeroValue)
			So(d.Session.Joined, ShouldBeTrue)
			So(d.Session.DevAddr, ShouldResemble, wantDevAddr)
			So(d.Session.RXDelaySec, ShouldEqual, uint32(1))
		})
	})
}

func TestJoinOTAAFailsWithoutAnyJoinAccept(t *testing.T) {
	Convey("Given an OTAA-provisioned device and a network that never replies", t, func() {
		identity := session.Identity{IsOTAA: true}
		log := logrus.NewEntry(logrus.New())
		r := &fakeRadio{}
		d, err := mac.New(identity, r, fakeClock{t: time.Unix(1000, 0)}, 0, rand.New(rand.NewSource(1)), log)
		So(err, ShouldBeNil)

		Convey("JoinOTAA exhausts its retries and reports ErrJoinFailed", func() {
			err := d.JoinOTAA(2)
			So(err, ShouldEqual, mac.ErrJoinFailed)
			So(d.Session.Joined, ShouldBeFalse)
		})
	})
}
