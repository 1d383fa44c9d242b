// Package protocol implements the length-prefixed, kind-tagged binary wire
// format that carries logs, status updates, events and fatal suite errors
// between a runner and the orchestrator.
//
// Wire layout (all multi-byte integers little-endian unless noted):
//
//	header:
//	  kind      4 bits (low nibble of first byte)
//	  reserved  4 bits (high nibble of first byte), must be zero
//	  suite_id  14 bytes, UTF-8, NUL padded
//	  runner_id 14 bytes, UTF-8, NUL padded
//	  timestamp u32le length + UTF-8 ISO-8601 string
//	payload: kind-specific, see encodeLog/encodeError/encodeStatus/encodeEvents.
package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/xjet/xjet/errors"
)

// Kind identifies the payload shape carried by a Packet.
type Kind uint8

// Recognized packet kinds.
const (
	KindLog    Kind = 1
	KindError  Kind = 2
	KindStatus Kind = 3
	KindEvents Kind = 4
)

// IDLen is the fixed, NUL-padded width of suite_id and runner_id fields.
const IDLen = 14

func (k Kind) String() string {
	switch k {
	case KindLog:
		return "log"
	case KindError:
		return "error"
	case KindStatus:
		return "status"
	case KindEvents:
		return "events"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

func (k Kind) valid() bool {
	switch k {
	case KindLog, KindError, KindStatus, KindEvents:
		return true
	default:
		return false
	}
}

// StatusType enumerates Status.Type values.
type StatusType uint8

// Recognized status types.
const (
	StatusTestStart    StatusType = 1
	StatusDescribe     StatusType = 2
	StatusEndSuite     StatusType = 3
	StatusStartSuite   StatusType = 4
	StatusCompileSuite StatusType = 5
)

// Invocation is a captured source position attached to a Log payload.
type Invocation struct {
	Line   uint32
	Column uint32
	Source string
}

// LogPayload is the Log(1) packet payload.
type LogPayload struct {
	Level      uint8
	Message    string
	Ancestry   string // comma-delimited
	Invocation Invocation
}

// ErrorPayload is the Error(2) packet payload.
type ErrorPayload struct {
	Error string // JSON-encoded error or error array
}

// StatusPayload is the Status(3) packet payload.
type StatusPayload struct {
	Type        StatusType
	Todo        bool
	Skipped     bool
	DurationMS  uint32
	Ancestry    string
	Description string
}

// EventsPayload is the Events(4) packet payload.
type EventsPayload struct {
	Type        StatusType
	Passed      bool
	DurationMS  uint32
	Ancestry    string
	Description string
	Errors      string // JSON array or empty
}

// Packet is a fully decoded wire message.
type Packet struct {
	Kind      Kind
	SuiteID   string
	RunnerID  string
	Timestamp string

	Log    *LogPayload
	Error  *ErrorPayload
	Status *StatusPayload
	Events *EventsPayload
}

// Header carries the fields common to every packet, used as input to Encode.
type Header struct {
	SuiteID   string
	RunnerID  string
	Timestamp string
}

// Encode serializes kind and payload into a framed message. payload must be
// one of *LogPayload, *ErrorPayload, *StatusPayload or *EventsPayload,
// matching kind. Encode rejects unknown kinds with a ProtocolError.
func Encode(kind Kind, hdr Header, payload interface{}) ([]byte, error) {
	if !kind.valid() {
		return nil, errors.NewKind(errors.KindProtocol, fmt.Sprintf("encode: unknown packet kind %d", kind))
	}

	var buf bytes.Buffer
	if err := writeHeader(&buf, kind, hdr); err != nil {
		return nil, err
	}

	switch kind {
	case KindLog:
		p, ok := payload.(*LogPayload)
		if !ok {
			return nil, errors.NewKind(errors.KindProtocol, "encode: payload does not match Log kind")
		}
		if err := encodeLog(&buf, p); err != nil {
			return nil, err
		}
	case KindError:
		p, ok := payload.(*ErrorPayload)
		if !ok {
			return nil, errors.NewKind(errors.KindProtocol, "encode: payload does not match Error kind")
		}
		encodeError(&buf, p)
	case KindStatus:
		p, ok := payload.(*StatusPayload)
		if !ok {
			return nil, errors.NewKind(errors.KindProtocol, "encode: payload does not match Status kind")
		}
		encodeStatus(&buf, p)
	case KindEvents:
		p, ok := payload.(*EventsPayload)
		if !ok {
			return nil, errors.NewKind(errors.KindProtocol, "encode: payload does not match Events kind")
		}
		encodeEvents(&buf, p)
	}

	return buf.Bytes(), nil
}

func writeHeader(buf *bytes.Buffer, kind Kind, hdr Header) error {
	if len(hdr.SuiteID) > IDLen || len(hdr.RunnerID) > IDLen {
		return errors.NewKind(errors.KindProtocol, "encode: suite_id/runner_id exceed 14 bytes")
	}
	buf.WriteByte(byte(kind) & 0x0f)
	buf.Write(padID(hdr.SuiteID))
	buf.Write(padID(hdr.RunnerID))
	writeString(buf, hdr.Timestamp)
	return nil
}

func padID(s string) []byte {
	b := make([]byte, IDLen)
	copy(b, s)
	return b
}

func writeString(buf *bytes.Buffer, s string) {
	var n [4]byte
	binary.LittleEndian.PutUint32(n[:], uint32(len(s)))
	buf.Write(n[:])
	buf.WriteString(s)
}

func writeBool(buf *bytes.Buffer, b bool) {
	if b {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var n [4]byte
	binary.LittleEndian.PutUint32(n[:], v)
	buf.Write(n[:])
}

func encodeLog(buf *bytes.Buffer, p *LogPayload) error {
	buf.WriteByte(p.Level)
	writeString(buf, p.Message)
	writeString(buf, p.Ancestry)
	writeU32(buf, p.Invocation.Line)
	writeU32(buf, p.Invocation.Column)
	writeString(buf, p.Invocation.Source)
	return nil
}

func encodeError(buf *bytes.Buffer, p *ErrorPayload) {
	writeString(buf, p.Error)
}

func encodeStatus(buf *bytes.Buffer, p *StatusPayload) {
	buf.WriteByte(byte(p.Type))
	writeBool(buf, p.Todo)
	writeBool(buf, p.Skipped)
	writeU32(buf, p.DurationMS)
	writeString(buf, p.Ancestry)
	writeString(buf, p.Description)
}

func encodeEvents(buf *bytes.Buffer, p *EventsPayload) {
	buf.WriteByte(byte(p.Type))
	writeBool(buf, p.Passed)
	writeU32(buf, p.DurationMS)
	writeString(buf, p.Ancestry)
	writeString(buf, p.Description)
	writeString(buf, p.Errors)
}

// reader wraps a byte slice with bounds-checked reads, converting underruns
// into ProtocolError.
type reader struct {
	b   []byte
	pos int
}

func (r *reader) need(n int) error {
	if r.pos+n > len(r.b) {
		return errors.NewKind(errors.KindProtocol, "decode: payload length exceeds buffer")
	}
	return nil
}

func (r *reader) readByte() (byte, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.b[r.pos]
	r.pos++
	return v, nil
}

func (r *reader) readBool() (bool, error) {
	v, err := r.readByte()
	return v != 0, err
}

func (r *reader) readU32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.b[r.pos : r.pos+4])
	r.pos += 4
	return v, nil
}

func (r *reader) readFixed(n int) (string, error) {
	if err := r.need(n); err != nil {
		return "", err
	}
	raw := r.b[r.pos : r.pos+n]
	r.pos += n
	return string(bytes.TrimRight(raw, "\x00")), nil
}

func (r *reader) readString() (string, error) {
	n, err := r.readU32()
	if err != nil {
		return "", err
	}
	if err := r.need(int(n)); err != nil {
		return "", err
	}
	s := string(r.b[r.pos : r.pos+int(n)])
	r.pos += int(n)
	return s, nil
}

// Decode parses a framed message previously produced by Encode. It rejects
// bytes whose kind is unrecognized or whose payload runs past the end of
// the buffer.
func Decode(data []byte) (*Packet, error) {
	r := &reader{b: data}

	kindByte, err := r.readByte()
	if err != nil {
		return nil, err
	}
	kind := Kind(kindByte & 0x0f)
	if !kind.valid() {
		return nil, errors.NewKind(errors.KindProtocol, fmt.Sprintf("decode: unknown packet kind %d", kind))
	}

	suiteID, err := r.readFixed(IDLen)
	if err != nil {
		return nil, err
	}
	runnerID, err := r.readFixed(IDLen)
	if err != nil {
		return nil, err
	}
	timestamp, err := r.readString()
	if err != nil {
		return nil, err
	}

	pkt := &Packet{Kind: kind, SuiteID: suiteID, RunnerID: runnerID, Timestamp: timestamp}

	switch kind {
	case KindLog:
		p, err := decodeLog(r)
		if err != nil {
			return nil, err
		}
		pkt.Log = p
	case KindError:
		p, err := decodeError(r)
		if err != nil {
			return nil, err
		}
		pkt.Error = p
	case KindStatus:
		p, err := decodeStatus(r)
		if err != nil {
			return nil, err
		}
		pkt.Status = p
	case KindEvents:
		p, err := decodeEvents(r)
		if err != nil {
			return nil, err
		}
		pkt.Events = p
	}
	return pkt, nil
}

func decodeLog(r *reader) (*LogPayload, error) {
	level, err := r.readByte()
	if err != nil {
		return nil, err
	}
	msg, err := r.readString()
	if err != nil {
		return nil, err
	}
	ancestry, err := r.readString()
	if err != nil {
		return nil, err
	}
	line, err := r.readU32()
	if err != nil {
		return nil, err
	}
	col, err := r.readU32()
	if err != nil {
		return nil, err
	}
	source, err := r.readString()
	if err != nil {
		return nil, err
	}
	return &LogPayload{
		Level:    level,
		Message:  msg,
		Ancestry: ancestry,
		Invocation: Invocation{
			Line:   line,
			Column: col,
			Source: source,
		},
	}, nil
}

func decodeError(r *reader) (*ErrorPayload, error) {
	s, err := r.readString()
	if err != nil {
		return nil, err
	}
	return &ErrorPayload{Error: s}, nil
}

func decodeStatus(r *reader) (*StatusPayload, error) {
	t, err := r.readByte()
	if err != nil {
		return nil, err
	}
	todo, err := r.readBool()
	if err != nil {
		return nil, err
	}
	skipped, err := r.readBool()
	if err != nil {
		return nil, err
	}
	dur, err := r.readU32()
	if err != nil {
		return nil, err
	}
	ancestry, err := r.readString()
	if err != nil {
		return nil, err
	}
	desc, err := r.readString()
	if err != nil {
		return nil, err
	}
	return &StatusPayload{
		Type:        StatusType(t),
		Todo:        todo,
		Skipped:     skipped,
		DurationMS:  dur,
		Ancestry:    ancestry,
		Description: desc,
	}, nil
}

func decodeEvents(r *reader) (*EventsPayload, error) {
	t, err := r.readByte()
	if err != nil {
		return nil, err
	}
	passed, err := r.readBool()
	if err != nil {
		return nil, err
	}
	dur, err := r.readU32()
	if err != nil {
		return nil, err
	}
	ancestry, err := r.readString()
	if err != nil {
		return nil, err
	}
	desc, err := r.readString()
	if err != nil {
		return nil, err
	}
	errs, err := r.readString()
	if err != nil {
		return nil, err
	}
	return &EventsPayload{
		Type:        StatusType(t),
		Passed:      passed,
		DurationMS:  dur,
		Ancestry:    ancestry,
		Description: desc,
		Errors:      errs,
	}, nil
}
