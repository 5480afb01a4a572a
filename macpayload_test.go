package lorawan

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestMACPayload(t *testing.T) {
	Convey("Given a MACPayload with an FPort and an opaque FRMPayload", t, func() {
		port := uint8(10)
		m := MACPayload{
			FHDR:       FHDR{DevAddr: DevAddr{0x26, 0x01, 0x12, 0x34}, FCnt: 1},
			FPort:      &port,
			FRMPayload: []Payload{&DataPayload{Bytes: []byte("hello world")}},
		}

		Convey("It marshals to FHDR | FPort | FRMPayload", func() {
			b, err := m.MarshalBinary()
			So(err, ShouldBeNil)
			So(b, ShouldHaveLength, 7+1+11)
			So(b[7], ShouldEqual, port)
		})

		Convey("Unmarshaling it back recovers the FPort and the raw FRMPayload bytes", func() {
			b, err := m.MarshalBinary()
			So(err, ShouldBeNil)

			var out MACPayload
			So(out.UnmarshalBinary(true, b), ShouldBeNil)
			So(*out.FPort, ShouldEqual, port)
			So(out.FRMPayload, ShouldHaveLength, 1)
			dp, ok := out.FRMPayload[0].(*DataPayload)
			So(ok, ShouldBeTrue)
			So(dp.Bytes, ShouldResemble, []byte("hello world"))
		})
	})

	Convey("Given a MACPayload with no FPort and no FRMPayload", t, func() {
		m := MACPayload{FHDR: FHDR{DevAddr: DevAddr{1, 2, 3, 4}}}

		Convey("It marshals to just the 7-byte FHDR", func() {
			b, err := m.MarshalBinary()
			So(err, ShouldBeNil)
			So(b, ShouldHaveLength, 7)
		})

		Convey("Unmarshaling leaves FPort nil", func() {
			b, err := m.MarshalBinary()
			So(err, ShouldBeNil)

			var out MACPayload
			So(out.UnmarshalBinary(true, b), ShouldBeNil)
			So(out.FPort, ShouldBeNil)
		})
	})

	Convey("Given a MACPayload with both FOpts and FRMPayload on FPort 0", t, func() {
		port := uint8(0)
		m := MACPayload{
			FHDR: FHDR{
				DevAddr: DevAddr{1, 2, 3, 4},
				FOpts:   []Payload{&MACCommand{CID: LinkCheckReq}},
			},
			FPort:      &port,
			FRMPayload: []Payload{&DataPayload{Bytes: []byte("x")}},
		}

		Convey("Marshal rejects it: FOpts and FPort-0 FRMPayload are mutually exclusive", func() {
			_, err := m.MarshalBinary()
			So(err, ShouldNotBeNil)
		})
	})
}
