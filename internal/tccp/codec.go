// Package tccp frames and parses packets of the text protocol spoken by the
// D-Cerno microphone controller.
//
// A packet is STX, a fixed-width header, a four digit total length, ':', a
// JSON body and ETX. The gunits request, spaced out for reading:
//
//	\x02 02:get0002020O00000C0000000000 0048 : {"nam":"gunits"} \x03
//
// The functions here do no I/O.
package tccp

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/camtrack/dcerno-vhd/internal/errors"
)

// Control bytes and fixed header fields.
const (
	STX = '\x02'
	ETX = '\x03'

	ProtocolID = "02"
	QoS        = "0"
	TxType     = "O" // application
	TxID       = "00000"
	RxType     = "C" // central unit
	RxID       = "00000"
	TxProp     = "0"
	TxSession  = "0"
	RoomID     = "000"
)

// Packet types, ids and body formats used by the client.
const (
	TypeConnect = "con"
	TypeGet     = "get"
	TypeReply   = "rep"

	IDConnect   = "0001"
	IDUnits     = "0002"
	IDMicStatus = "0003"

	FormatJSON = "02"
)

// MaxTotalLength is the largest value the four digit length field can carry.
const MaxTotalLength = 9999

// field widths of the variable header parts
const (
	typeWidth   = 3
	idWidth     = 4
	formatWidth = 2
	lengthWidth = 4
)

// Header builds the fixed-layout header for a packet.
func Header(packetType, packetID, bodyFormat string) string {
	var b strings.Builder
	b.Grow(len(ProtocolID) + 1 + typeWidth + idWidth + formatWidth + 23)
	b.WriteString(ProtocolID)
	b.WriteByte(':')
	b.WriteString(packetType)
	b.WriteString(packetID)
	b.WriteString(bodyFormat)
	b.WriteString(QoS)
	b.WriteString(TxType)
	b.WriteString(TxID)
	b.WriteString(RxType)
	b.WriteString(RxID)
	b.WriteString(TxProp)
	b.WriteString(TxSession)
	b.WriteString(RoomID)
	return b.String()
}

// TotalLength is the value carried in the length field: header, body and the two control bytes.
func TotalLength(header, body string) int {
	return len(header) + len(body) + 2
}

// Encode frames body into a packet. Field widths are checked and a total
// length above MaxTotalLength is rejected instead of overflowing the field.
func Encode(packetType, packetID, bodyFormat, body string) (string, error) {
	if len(packetType) != typeWidth || len(packetID) != idWidth || len(bodyFormat) != formatWidth {
		return "", errors.Newf("invalid header fields type=%q id=%q format=%q", packetType, packetID, bodyFormat).
			Category(errors.CategoryValidation).
			Component("tccp").
			Build()
	}

	header := Header(packetType, packetID, bodyFormat)
	total := TotalLength(header, body)
	if total > MaxTotalLength {
		return "", errors.Newf("packet length %d exceeds %d", total, MaxTotalLength).
			Category(errors.CategoryLimit).
			Component("tccp").
			Context("body_bytes", len(body)).
			Build()
	}

	var b strings.Builder
	b.Grow(total + lengthWidth + 1)
	b.WriteByte(STX)
	b.WriteString(header)
	fmt.Fprintf(&b, "%04d", total)
	b.WriteByte(':')
	b.WriteString(body)
	b.WriteByte(ETX)
	return b.String(), nil
}

// FrameHeader is the parsed variable part of a received packet header.
type FrameHeader struct {
	Type        string
	ID          string
	Format      string
	TotalLength int
}

// ParseHeader reads the header of a framed packet. It reports false when raw
// does not start with a well-formed header; replies are still usable then.
func ParseHeader(raw string) (FrameHeader, bool) {
	raw = strings.TrimPrefix(raw, string(STX))
	prefix := ProtocolID + ":"
	if !strings.HasPrefix(raw, prefix) {
		return FrameHeader{}, false
	}

	headerLen := len(Header("xxx", "xxxx", "xx"))
	if len(raw) < headerLen+lengthWidth+1 || raw[headerLen+lengthWidth] != ':' {
		return FrameHeader{}, false
	}

	total, err := strconv.Atoi(raw[headerLen : headerLen+lengthWidth])
	if err != nil {
		return FrameHeader{}, false
	}

	rest := raw[len(prefix):]
	return FrameHeader{
		Type:        rest[:typeWidth],
		ID:          rest[typeWidth : typeWidth+idWidth],
		Format:      rest[typeWidth+idWidth : typeWidth+idWidth+formatWidth],
		TotalLength: total,
	}, true
}

// IsReply reports whether raw is an application reply.
func IsReply(raw string) bool {
	return strings.Contains(raw, TypeReply)
}

// ExtractJSON returns the first brace-balanced {...} region of raw.
// Braces inside JSON strings are skipped.
func ExtractJSON(raw string) (string, bool) {
	start := strings.IndexByte(raw, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(raw); i++ {
		c := raw[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return raw[start : i+1], true
			}
		}
	}
	return "", false
}
