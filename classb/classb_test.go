package classb

import (
	"encoding/binary"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func buildBeaconFrame(beaconTime uint32, gwSpec uint8, info [7]byte) []byte {
	data := make([]byte, 17)
	binary.LittleEndian.PutUint32(data[0:4], beaconTime)
	data[4] = gwSpec
	copy(data[5:12], info[:])
	crc := crc16CCITT(data[0:12])
	binary.LittleEndian.PutUint16(data[12:14], crc)
	return data
}

func TestParseBeacon(t *testing.T) {
	Convey("Given a well-formed beacon frame", t, func() {
		frame := buildBeaconFrame(1280, 1, [7]byte{1, 2, 3, 4, 5, 6, 7})

		Convey("It parses with the correct time and gwspec", func() {
			b, err := ParseBeacon(frame)
			So(err, ShouldBeNil)
			So(b.Time, ShouldEqual, uint32(1280))
			So(b.GwSpec, ShouldEqual, uint8(1))
		})
	})

	Convey("Given a frame of the wrong length", t, func() {
		Convey("It is rejected", func() {
			_, err := ParseBeacon(make([]byte, 10))
			So(err, ShouldNotBeNil)
		})
	})

	Convey("Given a frame with a tampered CRC", t, func() {
		frame := buildBeaconFrame(1280, 0, [7]byte{})
		frame[12] ^= 0xFF

		Convey("It is rejected", func() {
			_, err := ParseBeacon(frame)
			So(err, ShouldNotBeNil)
		})
	})
}

func TestNewPingPeriodSlots(t *testing.T) {
	Convey("Given periodicity 0", t, func() {
		s := New(0)
		Convey("pingPeriodSlots is 128", func() {
			So(s.pingPeriodSlots, ShouldEqual, uint32(128))
		})
	})

	Convey("Given periodicity 7", t, func() {
		s := New(7)
		Convey("pingPeriodSlots is 1", func() {
			So(s.pingPeriodSlots, ShouldEqual, uint32(1))
		})
	})
}

func TestHandleBeaconAcquiresThenTracks(t *testing.T) {
	Convey("Given a scanning scheduler", t, func() {
		s := New(0)
		s.StartScanning()
		So(s.State(), ShouldEqual, Scanning)

		Convey("The first accepted beacon moves it to Acquired", func() {
			So(s.HandleBeacon(Beacon{Time: BeaconPeriod}), ShouldBeNil)
			So(s.State(), ShouldEqual, Acquired)

			Convey("A second, on-schedule beacon moves it to Tracking", func() {
				So(s.HandleBeacon(Beacon{Time: BeaconPeriod * 2}), ShouldBeNil)
				So(s.State(), ShouldEqual, Tracking)
			})
		})
	})
}

func TestHandleBeaconDriftTriggersLostAfterTwoBadBeacons(t *testing.T) {
	Convey("Given a scheduler that has acquired a beacon", t, func() {
		s := New(0)
		s.StartScanning()
		So(s.HandleBeacon(Beacon{Time: BeaconPeriod}), ShouldBeNil)

		Convey("A single out-of-tolerance beacon is rejected but stays Acquired", func() {
			err := s.HandleBeacon(Beacon{Time: BeaconPeriod + BeaconPeriod + 10})
			So(err, ShouldNotBeNil)
			So(s.State(), ShouldEqual, Acquired)

			Convey("A second consecutive bad beacon downgrades to Lost", func() {
				err := s.HandleBeacon(Beacon{Time: BeaconPeriod + BeaconPeriod + 10})
				So(err, ShouldNotBeNil)
				So(s.State(), ShouldEqual, Lost)
			})
		})
	})
}

func TestHandleBeaconRecoversBadStreakOnGoodBeacon(t *testing.T) {
	Convey("Given a scheduler with one bad beacon in its streak", t, func() {
		s := New(0)
		s.StartScanning()
		So(s.HandleBeacon(Beacon{Time: BeaconPeriod}), ShouldBeNil)
		_ = s.HandleBeacon(Beacon{Time: BeaconPeriod + BeaconPeriod + 10})

		Convey("A good beacon resets the streak and tracks normally", func() {
			So(s.HandleBeacon(Beacon{Time: BeaconPeriod * 2}), ShouldBeNil)
			So(s.State(), ShouldEqual, Tracking)
		})
	})
}

func TestNextPingSlotOffsetMatchesDocumentedScenario(t *testing.T) {
	// beacon_time, dev_addr and ping_period from the Class B ping-slot-hit
	// scenario: a beacon at 1_700_000_000 for DevAddr 0x26011234 with a
	// negotiated ping period of 32 slots.
	const beaconTime = uint32(1_700_000_000)
	const devAddr = uint32(0x26011234)
	const pingPeriod = 32

	Convey("Given a scheduler tracking a beacon at the documented time", t, func() {
		s := New(2) // pingPeriodSlots = 2^(7-2) = 32
		s.StartScanning()
		So(s.HandleBeacon(Beacon{Time: beaconTime}), ShouldBeNil)
		So(s.pingPeriodSlots, ShouldEqual, uint32(pingPeriod))

		Convey("The derived ping-slot offset is bounded and deterministic", func() {
			off1, err := s.NextPingSlotOffset(devAddr)
			So(err, ShouldBeNil)
			So(off1, ShouldBeLessThan, uint32(pingPeriod))

			off2, err := s.NextPingSlotOffset(devAddr)
			So(err, ShouldBeNil)
			So(off2, ShouldEqual, off1)
		})

		Convey("A different DevAddr yields a derivation over a different block", func() {
			offA, err := s.NextPingSlotOffset(devAddr)
			So(err, ShouldBeNil)
			offB, err := s.NextPingSlotOffset(devAddr + 1)
			So(err, ShouldBeNil)
			So(offA, ShouldBeLessThan, uint32(pingPeriod))
			So(offB, ShouldBeLessThan, uint32(pingPeriod))
		})
	})
}

func TestSetPeriodicityRenegotiatesPingPeriod(t *testing.T) {
	Convey("Given a scheduler at periodicity 0", t, func() {
		s := New(0)
		So(s.pingPeriodSlots, ShouldEqual, uint32(128))

		Convey("SetPeriodicity(3) renegotiates to 16 slots", func() {
			s.SetPeriodicity(3)
			So(s.pingPeriodSlots, ShouldEqual, uint32(16))
		})
	})
}

func TestBeaconFrequencyOverride(t *testing.T) {
	Convey("Given a fresh scheduler", t, func() {
		s := New(0)
		So(s.BeaconFrequencyOverride(), ShouldEqual, uint32(0))

		Convey("SetBeaconFrequencyOverride pins the channel", func() {
			s.SetBeaconFrequencyOverride(923300000)
			So(s.BeaconFrequencyOverride(), ShouldEqual, uint32(923300000))
		})
	})
}
