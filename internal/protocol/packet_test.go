package protocol_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/xjet/xjet/internal/protocol"
)

func TestRoundTripStatus(t *testing.T) {
	hdr := protocol.Header{
		SuiteID:   "abcdefghijklmn",
		RunnerID:  "runner000000aa",
		Timestamp: "2024-01-01T00:00:00.000Z",
	}
	payload := &protocol.StatusPayload{
		Type:        protocol.StatusStartSuite,
		Todo:        false,
		Skipped:     false,
		DurationMS:  0,
		Ancestry:    "A,B",
		Description: "S",
	}

	wire, err := protocol.Encode(protocol.KindStatus, hdr, payload)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	got, err := protocol.Decode(wire)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	want := &protocol.Packet{
		Kind:      protocol.KindStatus,
		SuiteID:   hdr.SuiteID,
		RunnerID:  hdr.RunnerID,
		Timestamp: hdr.Timestamp,
		Status:    payload,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestRoundTripAllKinds(t *testing.T) {
	hdr := protocol.Header{SuiteID: "s", RunnerID: "r", Timestamp: "2024-01-01T00:00:00.000Z"}

	cases := []struct {
		name    string
		kind    protocol.Kind
		payload interface{}
	}{
		{"log", protocol.KindLog, &protocol.LogPayload{
			Level: 2, Message: "hello", Ancestry: "a,b",
			Invocation: protocol.Invocation{Line: 3, Column: 4, Source: "file.ts"},
		}},
		{"error", protocol.KindError, &protocol.ErrorPayload{Error: `{"name":"Error"}`}},
		{"events", protocol.KindEvents, &protocol.EventsPayload{
			Type: protocol.StatusTestStart, Passed: true, DurationMS: 42,
			Ancestry: "a,b", Description: "does a thing", Errors: "",
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			wire, err := protocol.Encode(tc.kind, hdr, tc.payload)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			pkt, err := protocol.Decode(wire)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if pkt.Kind != tc.kind {
				t.Errorf("Kind = %v, want %v", pkt.Kind, tc.kind)
			}
		})
	}
}

func TestDecodeRejectsUnknownKind(t *testing.T) {
	hdr := protocol.Header{SuiteID: "s", RunnerID: "r", Timestamp: "t"}
	wire, err := protocol.Encode(protocol.KindLog, hdr, &protocol.LogPayload{})
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	// Corrupt the kind nibble to an unrecognized value.
	wire[0] = 0x09
	if _, err := protocol.Decode(wire); err == nil {
		t.Errorf("Decode() with unknown kind succeeded, want error")
	}
}

func TestDecodeRejectsTruncatedPayload(t *testing.T) {
	hdr := protocol.Header{SuiteID: "s", RunnerID: "r", Timestamp: "t"}
	wire, err := protocol.Encode(protocol.KindLog, hdr, &protocol.LogPayload{Message: "hello world"})
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	truncated := wire[:len(wire)-4]
	if _, err := protocol.Decode(truncated); err == nil {
		t.Errorf("Decode() with truncated payload succeeded, want error")
	}
}

func TestEncodeRejectsUnknownKind(t *testing.T) {
	hdr := protocol.Header{SuiteID: "s", RunnerID: "r", Timestamp: "t"}
	if _, err := protocol.Encode(protocol.Kind(9), hdr, &protocol.LogPayload{}); err == nil {
		t.Errorf("Encode() with unknown kind succeeded, want error")
	}
}

func TestEncodeRejectsOversizeID(t *testing.T) {
	hdr := protocol.Header{SuiteID: "this-id-is-way-too-long", RunnerID: "r", Timestamp: "t"}
	if _, err := protocol.Encode(protocol.KindLog, hdr, &protocol.LogPayload{}); err == nil {
		t.Errorf("Encode() with oversize suite_id succeeded, want error")
	}
}
