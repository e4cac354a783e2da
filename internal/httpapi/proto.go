package httpapi

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"unicode/utf8"

	"google.golang.org/protobuf/encoding/protowire"
)

// maxRequestBody caps the request body size for both protobuf and JSON
// payloads.  A registration is well under 1 KiB in JSON.
const maxRequestBody = 4096

const protobufContentType = "application/x-protobuf"

// Sensor check-in messages.  The schema is
//
//	message CheckInRequest  { int64 biometric_key = 1; string requested_at = 2; }
//	message CheckInResponse { Outcome outcome = 1; string name = 2; string phone = 3;
//	                          int64 recorded_at_ms = 4; int64 event_id = 5; }
//	enum Outcome { OUTCOME_UNSPECIFIED = 0; OUTCOME_RECORDED = 1; OUTCOME_ALREADY_RECORDED = 2; }
//
// and is encoded by hand with protowire.
type CheckInRequestPB struct {
	BiometricKey int64
	RequestedAt  string
}

type OutcomePB int32

const (
	OutcomeUnspecifiedPB     OutcomePB = 0
	OutcomeRecordedPB        OutcomePB = 1
	OutcomeAlreadyRecordedPB OutcomePB = 2
)

type CheckInResponsePB struct {
	Outcome      OutcomePB
	Name         string
	Phone        string
	RecordedAtMs int64
	EventID      int64
}

var errInvalidUTF8 = errors.New("proto: string field contains invalid UTF-8")

// isProtobuf returns true if the request's Content-Type indicates a
// protobuf payload.
func isProtobuf(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	return ct == protobufContentType ||
		ct == "application/protobuf" ||
		ct == "application/octet-stream"
}

func readProtoBody(r *http.Request) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
}

// writeProto writes an encoded message with the given HTTP status.
func writeProto(w http.ResponseWriter, status int, data []byte) {
	w.Header().Set("Content-Type", protobufContentType)
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func (m CheckInRequestPB) Marshal() []byte {
	var b []byte
	if m.BiometricKey != 0 {
		b = protowire.AppendTag(b, 1, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(m.BiometricKey))
	}
	if m.RequestedAt != "" {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendString(b, m.RequestedAt)
	}
	return b
}

func (m *CheckInRequestPB) Unmarshal(b []byte) error {
	*m = CheckInRequestPB{}
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == 1 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			m.BiometricKey = int64(v)
			return n, nil
		case num == 2 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n >= 0 && !utf8.Valid(v) {
				return n, errInvalidUTF8
			}
			m.RequestedAt = string(v)
			return n, nil
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
}

func (m CheckInResponsePB) Marshal() []byte {
	var b []byte
	if m.Outcome != 0 {
		b = protowire.AppendTag(b, 1, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(m.Outcome))
	}
	if m.Name != "" {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendString(b, m.Name)
	}
	if m.Phone != "" {
		b = protowire.AppendTag(b, 3, protowire.BytesType)
		b = protowire.AppendString(b, m.Phone)
	}
	if m.RecordedAtMs != 0 {
		b = protowire.AppendTag(b, 4, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(m.RecordedAtMs))
	}
	if m.EventID != 0 {
		b = protowire.AppendTag(b, 5, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(m.EventID))
	}
	return b
}

func (m *CheckInResponsePB) Unmarshal(b []byte) error {
	*m = CheckInResponsePB{}
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if typ == protowire.VarintType {
			v, n := protowire.ConsumeVarint(b)
			switch num {
			case 1:
				m.Outcome = OutcomePB(int32(v))
			case 4:
				m.RecordedAtMs = int64(v)
			case 5:
				m.EventID = int64(v)
			}
			return n, nil
		}
		if typ == protowire.BytesType && (num == 2 || num == 3) {
			v, n := protowire.ConsumeBytes(b)
			if n >= 0 && !utf8.Valid(v) {
				return n, errInvalidUTF8
			}
			if num == 2 {
				m.Name = string(v)
			} else {
				m.Phone = string(v)
			}
			return n, nil
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
}

// consumeFields walks a message, handing each field's value bytes to fn.
// fn returns the number of bytes it consumed, or a negative protowire code.
// Unknown fields are skipped.
func consumeFields(b []byte, fn func(protowire.Number, protowire.Type, []byte) (int, error)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("proto: %w", protowire.ParseError(n))
		}
		b = b[n:]

		n, err := fn(num, typ, b)
		if n < 0 {
			return fmt.Errorf("proto: field %d: %w", num, protowire.ParseError(n))
		}
		if err != nil {
			return err
		}
		b = b[n:]
	}
	return nil
}
