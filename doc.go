/*

Package lorawan implements the LoRaWAN 1.0.3 frame codec: PHY payload
layout, FHDR/FPort/FRMPayload encode/decode, MIC computation, payload
encryption and the MAC-command catalogue. It is the wire format shared by
every other package in this module (region, radio, session, mac, the
class schedulers and duty accounting) and has no knowledge of any of
them — it only knows how to turn bytes into LoRaWAN frames and back.

*/
package lorawan
