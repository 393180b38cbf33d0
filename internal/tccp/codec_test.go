package tccp

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camtrack/dcerno-vhd/internal/errors"
)

func TestEncodeLayout(t *testing.T) {
	t.Parallel()

	packet, err := Encode(TypeGet, IDUnits, FormatJSON, `{"nam":"gunits"}`)
	require.NoError(t, err)

	assert.Equal(t, "\x0202:get0002020O00000C00000000000048:{\"nam\":\"gunits\"}\x03", packet)
}

func TestEncodeLengthField(t *testing.T) {
	t.Parallel()

	header := Header(TypeGet, IDUnits, FormatJSON)
	for _, size := range []int{0, 1, 999, 1000, 5000} {
		t.Run(strconv.Itoa(size), func(t *testing.T) {
			t.Parallel()

			body := strings.Repeat("x", size)
			packet, err := Encode(TypeGet, IDUnits, FormatJSON, body)
			require.NoError(t, err)

			lengthField := packet[1+len(header) : 1+len(header)+4]
			assert.Equal(t, len(header)+size+2, mustAtoi(t, lengthField))
			assert.Len(t, lengthField, 4, "length is zero padded to four digits")
			assert.Equal(t, byte(':'), packet[1+len(header)+4])
			assert.Equal(t, byte(ETX), packet[len(packet)-1])
		})
	}
}

func TestEncodeRejectsOverflow(t *testing.T) {
	t.Parallel()

	header := Header(TypeGet, IDUnits, FormatJSON)
	largest := MaxTotalLength - len(header) - 2

	_, err := Encode(TypeGet, IDUnits, FormatJSON, strings.Repeat("x", largest))
	require.NoError(t, err)

	_, err = Encode(TypeGet, IDUnits, FormatJSON, strings.Repeat("x", largest+1))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryLimit))
}

func TestEncodeRejectsBadFieldWidths(t *testing.T) {
	t.Parallel()

	_, err := Encode("gets", IDUnits, FormatJSON, "{}")
	require.Error(t, err)
	_, err = Encode(TypeGet, "2", FormatJSON, "{}")
	require.Error(t, err)
}

func TestDecodeRoundTrip(t *testing.T) {
	t.Parallel()

	body := `{"nam":"units","s":[{"uid":"A1","stat":"1"},{"uid":"B2","stat":"0"}]}`
	raw, err := Encode(TypeReply, IDUnits, FormatJSON, body)
	require.NoError(t, err)

	packet, err := Decode(raw)
	require.NoError(t, err)

	assert.True(t, packet.IsReply)
	assert.Equal(t, body, packet.JSON)
	assert.Equal(t, NameUnits, packet.Name())
	assert.Equal(t, FrameHeader{Type: TypeReply, ID: IDUnits, Format: FormatJSON, TotalLength: TotalLength(Header(TypeReply, IDUnits, FormatJSON), body)}, packet.Header)

	reply, err := ParseUnits(packet)
	require.NoError(t, err)
	assert.Equal(t, []Unit{{UID: "A1", Stat: "1"}, {UID: "B2", Stat: "0"}}, reply.Units)
	assert.True(t, reply.Units[0].Active())
	assert.False(t, reply.Units[1].Active())
}

func TestDecodeErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"no json", "\x0202:rep0002020O00000C000000000000032:\x03"},
		{"unbalanced", `rep {"nam":"units","s":[`},
		{"invalid json", `rep {"nam": units}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Decode(tt.raw)
			require.Error(t, err)
			assert.True(t, errors.IsCategory(err, errors.CategoryDecode))
		})
	}
}

func TestExtractJSONSkipsBracesInStrings(t *testing.T) {
	t.Parallel()

	raw := "rep:{\"nam\":\"units\",\"inf\":\"a}b{\\\"c\"} trailing {\"x\":1}"
	got, ok := ExtractJSON(raw)
	require.True(t, ok)
	assert.Equal(t, "{\"nam\":\"units\",\"inf\":\"a}b{\\\"c\"}", got)
}

func TestParseUnitsNormalizesMicStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		want []Unit
	}{
		{"single micstat", `{"nam":"micstat","uid":"A1","stat":"1"}`, []Unit{{UID: "A1", Stat: "1"}}},
		{"numeric stat", `{"nam":"micstat","uid":"A1","stat":1}`, []Unit{{UID: "A1", Stat: "1"}}},
		{"micstat list", `{"nam":"micstat","s":[{"uid":"A1","stat":"0"}]}`, []Unit{{UID: "A1", Stat: "0"}}},
		{"numeric uid", `{"nam":"units","s":[{"uid":1234,"stat":"1"}]}`, []Unit{{UID: "1234", Stat: "1"}}},
		{"missing stat", `{"nam":"units","s":[{"uid":"A1"}]}`, []Unit{{UID: "A1"}}},
		{"empty list", `{"nam":"units","s":[]}`, []Unit{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			packet, err := Decode("rep" + tt.body)
			require.NoError(t, err)

			reply, err := ParseUnits(packet)
			require.NoError(t, err)
			assert.Equal(t, NameUnits, reply.Name)
			assert.Equal(t, tt.want, reply.Units)
		})
	}
}

func TestParseUnitsRejectsUnknownShape(t *testing.T) {
	t.Parallel()

	packet, err := Decode(`rep{"nam":"err","code":3}`)
	require.NoError(t, err)

	_, err = ParseUnits(packet)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryDecode))
}

func TestRequestBodies(t *testing.T) {
	t.Parallel()

	assert.JSONEq(t, `{"nam":"gunits"}`, UnitsRequestBody())
	assert.JSONEq(t, `{"nam":"gmicstat","uid":"0"}`, MicStatusRequestBody("0"))
	assert.JSONEq(t,
		`{"typ":"Application","nam":"DU","ver":"1.01","inf":"","svr":0,"tim":"2026-01-02T03:04:05Z"}`,
		HandshakeBody("DU", "1.01", "2026-01-02T03:04:05Z"))
}

func mustAtoi(t *testing.T, s string) int {
	t.Helper()
	n, err := strconv.Atoi(s)
	require.NoError(t, err)
	return n
}
