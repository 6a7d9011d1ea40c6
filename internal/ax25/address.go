// Package ax25 implements AX.25 UI frame parsing, mutation, and emission
// for APRS digipeating. It replaces the teacher's cgo transliteration of
// ax25_pad.c/ax25_pad2.c with a value-oriented API: a Frame is parsed once
// from bytes, and servicing an address returns a mutated copy, leaving the
// parsed frame unchanged.
package ax25

import (
	"fmt"
	"strings"
)

// Callsign is a base of 1-6 uppercase alphanumerics plus an SSID 0-15.
type Callsign struct {
	Base string
	SSID uint8
}

func (c Callsign) String() string {
	if c.SSID == 0 {
		return c.Base
	}
	return fmt.Sprintf("%s-%d", c.Base, c.SSID)
}

// Equal compares by (base, ssid) per spec: equality for dedup and address
// matching ignores everything else.
func (c Callsign) Equal(o Callsign) bool {
	return c.Base == o.Base && c.SSID == o.SSID
}

// ParseCallsign accepts "BASE" or "BASE-SSID" in canonical text form.
func ParseCallsign(s string) (Callsign, error) {
	base, ssidPart, hasDash := strings.Cut(s, "-")
	base = strings.ToUpper(strings.TrimSpace(base))
	if len(base) == 0 || len(base) > 6 {
		return Callsign{}, fmt.Errorf("ax25: callsign base %q must be 1-6 characters", base)
	}
	for _, r := range base {
		if !(r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return Callsign{}, fmt.Errorf("ax25: callsign base %q has invalid character %q", base, r)
		}
	}
	var ssid uint64
	if hasDash {
		var err error
		ssid, err = parseUint(ssidPart)
		if err != nil || ssid > 15 {
			return Callsign{}, fmt.Errorf("ax25: invalid SSID in %q", s)
		}
	}
	return Callsign{Base: base, SSID: uint8(ssid)}, nil
}

func parseUint(s string) (uint64, error) {
	var n uint64
	if len(s) == 0 {
		return 0, fmt.Errorf("empty")
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("not a digit: %q", r)
		}
		n = n*10 + uint64(r-'0')
	}
	return n, nil
}

// Address is one 7-byte AX.25 address field, decoded.
type Address struct {
	Callsign Callsign
	// HBit is the "has been repeated" flag (bit 7 of the SSID octet) set
	// by each digipeater that services this hop.
	HBit bool
	// EBit marks the last address in the list (bit 0 of the SSID octet).
	EBit bool
}

const addressFieldLen = 7

// decodeAddress decodes one 7-byte address field.
func decodeAddress(b []byte) (Address, error) {
	if len(b) < addressFieldLen {
		return Address{}, ErrFrameTooShort
	}
	var sb strings.Builder
	for i := 0; i < 6; i++ {
		ch := byte(b[i] >> 1)
		sb.WriteByte(ch)
	}
	base := strings.TrimRight(sb.String(), " ")
	ssidOctet := b[6]
	a := Address{
		Callsign: Callsign{Base: base, SSID: uint8((ssidOctet >> 1) & 0x0F)},
		HBit:     ssidOctet&0x80 != 0,
		EBit:     ssidOctet&0x01 != 0,
	}
	return a, nil
}

// encodeAddress is the inverse of decodeAddress, writing exactly 7 bytes.
func encodeAddress(a Address, dst []byte) {
	var padded [6]byte
	for i := range padded {
		padded[i] = ' '
	}
	copy(padded[:], a.Callsign.Base)
	for i := 0; i < 6; i++ {
		dst[i] = padded[i] << 1
	}
	ssidOctet := byte(0x60) // reserved bits per spec: RR = 11
	ssidOctet |= (a.Callsign.SSID & 0x0F) << 1
	if a.HBit {
		ssidOctet |= 0x80
	}
	if a.EBit {
		ssidOctet |= 0x01
	}
	dst[6] = ssidOctet
}
