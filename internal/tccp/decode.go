package tccp

import (
	"encoding/json"
	"fmt"

	"github.com/antonholmquist/jason"

	"github.com/camtrack/dcerno-vhd/internal/errors"
)

// Reply names carried in the "nam" field.
const (
	NameUnits     = "units"
	NameMicStatus = "micstat"
)

// Packet is a decoded controller message.
type Packet struct {
	Raw     string
	Header  FrameHeader // zero when the raw text had no parsable header
	IsReply bool
	JSON    string
	Payload *jason.Object
}

// Name returns the payload's "nam" field, or "" when absent.
func (p *Packet) Name() string {
	name, err := p.Payload.GetString("nam")
	if err != nil {
		return ""
	}
	return name
}

// Decode extracts and parses the JSON payload of raw.
// A missing or malformed payload is a DecodeError.
func Decode(raw string) (*Packet, error) {
	body, ok := ExtractJSON(raw)
	if !ok {
		return nil, errors.DecodeError(fmt.Errorf("no JSON object in reply of %d bytes", len(raw)))
	}

	payload, err := jason.NewObjectFromBytes([]byte(body))
	if err != nil {
		return nil, errors.DecodeError(fmt.Errorf("invalid JSON payload: %w", err))
	}

	header, _ := ParseHeader(raw)
	return &Packet{
		Raw:     raw,
		Header:  header,
		IsReply: IsReply(raw),
		JSON:    body,
		Payload: payload,
	}, nil
}

// Unit is one microphone entry of a units reply.
type Unit struct {
	UID  string
	Stat string
}

// Active reports whether the microphone is open.
func (u Unit) Active() bool {
	return u.Stat == "1"
}

// UnitsReply is the single shape both units and micstat replies are normalized to.
type UnitsReply struct {
	Name  string
	Units []Unit
}

// ParseUnits normalizes a reply into UnitsReply. A micstat reply describing a
// single unit becomes a one-element list.
func ParseUnits(p *Packet) (*UnitsReply, error) {
	if p == nil || p.Payload == nil {
		return nil, errors.DecodeError(errors.NewStd("empty packet"))
	}

	reply := &UnitsReply{Name: NameUnits}

	if entries, err := p.Payload.GetObjectArray("s"); err == nil {
		reply.Units = make([]Unit, 0, len(entries))
		for i, entry := range entries {
			unit, err := parseUnit(entry)
			if err != nil {
				return nil, errors.DecodeError(fmt.Errorf("unit %d: %w", i, err))
			}
			reply.Units = append(reply.Units, unit)
		}
		return reply, nil
	}

	if p.Name() == NameMicStatus {
		unit, err := parseUnit(p.Payload)
		if err != nil {
			return nil, errors.DecodeError(fmt.Errorf("micstat reply: %w", err))
		}
		reply.Units = []Unit{unit}
		return reply, nil
	}

	return nil, errors.DecodeError(fmt.Errorf("reply %q carries no unit list", p.Name()))
}

func parseUnit(obj *jason.Object) (Unit, error) {
	uid, err := scalarString(obj, "uid")
	if err != nil {
		return Unit{}, err
	}
	// units without a stat field are reported as closed
	stat, _ := scalarString(obj, "stat")
	return Unit{UID: uid, Stat: stat}, nil
}

// scalarString reads a field that firmware sends either as a string or a number.
func scalarString(obj *jason.Object, key string) (string, error) {
	value, err := obj.GetValue(key)
	if err != nil {
		return "", fmt.Errorf("missing %q", key)
	}
	if s, err := value.String(); err == nil {
		return s, nil
	}
	if n, err := value.Number(); err == nil {
		return n.String(), nil
	}
	if b, err := value.Boolean(); err == nil {
		if b {
			return "1", nil
		}
		return "0", nil
	}
	return "", fmt.Errorf("field %q is not a scalar", key)
}

// Request bodies

type handshakeBody struct {
	Type    string `json:"typ"`
	Name    string `json:"nam"`
	Version string `json:"ver"`
	Info    string `json:"inf"`
	Server  int    `json:"svr"`
	Time    string `json:"tim"`
}

type namedBody struct {
	Name string `json:"nam"`
	UID  string `json:"uid,omitempty"`
}

// HandshakeBody is the payload of the con packet.
func HandshakeBody(clientName, clientVersion, timestamp string) string {
	return mustJSON(handshakeBody{
		Type:    "Application",
		Name:    clientName,
		Version: clientVersion,
		Info:    "",
		Server:  0,
		Time:    timestamp,
	})
}

// UnitsRequestBody lists all units.
func UnitsRequestBody() string {
	return mustJSON(namedBody{Name: "gunits"})
}

// MicStatusRequestBody asks for one unit; uid "0" means all units.
func MicStatusRequestBody(uid string) string {
	return mustJSON(namedBody{Name: "gmicstat", UID: uid})
}

func mustJSON(v any) string {
	// fixed string-only structs always marshal
	data, _ := json.Marshal(v)
	return string(data)
}
