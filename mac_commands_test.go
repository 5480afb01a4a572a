package lorawan

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestMACCommand(t *testing.T) {
	Convey("Given a downlink LinkADRReq command", t, func() {
		cmd := MACCommand{
			CID: LinkADRReq,
			Payload: &LinkADRReqPayload{
				DataRate: 3,
				TXPower:  1,
				ChMask:   ChMask{true, true},
			},
		}

		Convey("It marshals to CID followed by the 4-byte payload", func() {
			b, err := cmd.MarshalBinary()
			So(err, ShouldBeNil)
			So(b, ShouldHaveLength, 5)
			So(b[0], ShouldEqual, byte(LinkADRReq))
		})

		Convey("Unmarshaling it back against the downlink registry recovers the payload", func() {
			b, err := cmd.MarshalBinary()
			So(err, ShouldBeNil)

			var out MACCommand
			So(out.UnmarshalBinary(false, b), ShouldBeNil)
			So(out.CID, ShouldEqual, LinkADRReq)
			adr, ok := out.Payload.(*LinkADRReqPayload)
			So(ok, ShouldBeTrue)
			So(adr.DataRate, ShouldEqual, uint8(3))
			So(adr.TXPower, ShouldEqual, uint8(1))
		})
	})

	Convey("Given an uplink LinkADRAns command", t, func() {
		cmd := MACCommand{
			CID:     LinkADRAns,
			Payload: &LinkADRAnsPayload{ChannelMaskACK: true, PowerACK: true},
		}

		Convey("Marshal then unmarshal against the uplink registry round-trips", func() {
			b, err := cmd.MarshalBinary()
			So(err, ShouldBeNil)

			var out MACCommand
			So(out.UnmarshalBinary(true, b), ShouldBeNil)
			ans, ok := out.Payload.(*LinkADRAnsPayload)
			So(ok, ShouldBeTrue)
			So(ans.ChannelMaskACK, ShouldBeTrue)
			So(ans.DataRateACK, ShouldBeFalse)
			So(ans.PowerACK, ShouldBeTrue)
		})
	})

	Convey("Given a CID unknown to the selected direction's registry", t, func() {
		Convey("Unmarshal with a payload byte following it fails", func() {
			var out MACCommand
			So(out.UnmarshalBinary(false, []byte{byte(PingSlotInfoReq), 0x05}), ShouldNotBeNil)
		})
	})

	Convey("Given zero bytes of input", t, func() {
		Convey("Unmarshal fails", func() {
			var out MACCommand
			So(out.UnmarshalBinary(true, nil), ShouldNotBeNil)
		})
	})
}

func TestDecodeMACCommands(t *testing.T) {
	Convey("Given a run of two concatenated downlink MAC commands", t, func() {
		adr := MACCommand{CID: LinkADRReq, Payload: &LinkADRReqPayload{DataRate: 5, ChMask: ChMask{true}}}
		adrB, err := adr.MarshalBinary()
		So(err, ShouldBeNil)

		dc := MACCommand{CID: DutyCycleReq, Payload: &DutyCycleReqPayload{MaxDCycle: 4}}
		dcB, err := dc.MarshalBinary()
		So(err, ShouldBeNil)

		data := append(append([]byte{}, adrB...), dcB...)

		Convey("decodeMACCommands splits them back into two commands in order", func() {
			out, err := decodeMACCommands(false, data)
			So(err, ShouldBeNil)
			So(out, ShouldHaveLength, 2)

			first, ok := out[0].(*MACCommand)
			So(ok, ShouldBeTrue)
			So(first.CID, ShouldEqual, LinkADRReq)

			second, ok := out[1].(*MACCommand)
			So(ok, ShouldBeTrue)
			So(second.CID, ShouldEqual, DutyCycleReq)
		})
	})

	Convey("Given a truncated MAC command (payload shorter than its fixed size)", t, func() {
		Convey("decodeMACCommands fails rather than silently misaligning", func() {
			_, err := decodeMACCommands(false, []byte{byte(LinkADRReq), 0x01, 0x02})
			So(err, ShouldNotBeNil)
		})
	})

	Convey("Given no bytes at all", t, func() {
		Convey("decodeMACCommands returns an empty, non-error result", func() {
			out, err := decodeMACCommands(false, nil)
			So(err, ShouldBeNil)
			So(out, ShouldBeEmpty)
		})
	})
}

func TestGetMACPayloadAndSize(t *testing.T) {
	Convey("Given the downlink LinkADRReq CID", t, func() {
		Convey("It resolves to a 4-byte payload constructor", func() {
			p, size, err := GetMACPayloadAndSize(false, LinkADRReq)
			So(err, ShouldBeNil)
			So(size, ShouldEqual, 4)
			So(p, ShouldNotBeNil)
		})
	})

	Convey("Given a CID with no registered payload for the direction", t, func() {
		Convey("It returns an error", func() {
			_, _, err := GetMACPayloadAndSize(false, PingSlotInfoAns)
			So(err, ShouldNotBeNil)
		})
	})
}

func TestCIDString(t *testing.T) {
	Convey("Given a known CID", t, func() {
		Convey("String returns its short name", func() {
			So(LinkADRReq.String(), ShouldEqual, "LinkADR")
		})
	})

	Convey("Given an unrecognized CID", t, func() {
		Convey("String falls back to a hex rendering", func() {
			So(CID(0x80).String(), ShouldEqual, "CID(0x80)")
		})
	})
}
