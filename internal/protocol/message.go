// ABOUTME: Line-delimited JSON message codec for the engine protocol
// ABOUTME: Classifies a line into Request, Response, or Notification by field presence

package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Message is one decoded protocol line: *Request, *Response, or *Notification.
type Message interface {
	isMessage()
}

// Request expects a Response carrying the same ID. IDs are scoped to the sender.
type Request struct {
	ID     uint64          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

// Response answers a Request. Exactly one of Result and Error is set.
type Response struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  json.RawMessage `json:"error,omitempty"`
}

// IsErr reports whether the response carries an error payload.
func (r *Response) IsErr() bool { return r.Error != nil }

// Notification is fire-and-forget: no ID, no reply.
type Notification struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

func (*Request) isMessage()      {}
func (*Response) isMessage()     {}
func (*Notification) isMessage() {}

// Decode parses one line. Classification, in order:
// id+method is a Request, id alone is a Response, method alone is a Notification.
func Decode(line []byte) (Message, error) {
	line = bytes.TrimRight(line, "\r\n")

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(line, &fields); err != nil {
		if !json.Valid(line) {
			return nil, &DecodeError{Kind: KindParse, Line: string(line), Err: err}
		}
		return nil, invalidShape(line, "not a JSON object")
	}
	if fields == nil {
		return nil, invalidShape(line, "null message")
	}

	rawID, hasID := fields["id"]
	rawMethod, hasMethod := fields["method"]

	var id uint64
	if hasID {
		if err := json.Unmarshal(rawID, &id); err != nil || isNull(rawID) {
			return nil, invalidShape(line, "id is not an unsigned integer")
		}
	}
	var method string
	if hasMethod {
		if err := json.Unmarshal(rawMethod, &method); err != nil || isNull(rawMethod) {
			return nil, invalidShape(line, "method is not a string")
		}
	}

	switch {
	case hasID && hasMethod:
		return &Request{ID: id, Method: method, Params: fields["params"]}, nil
	case hasID:
		// A null error counts as absent.
		errPayload, hasErr := fields["error"]
		hasErr = hasErr && !isNull(errPayload)
		result, hasResult := fields["result"]
		switch {
		case hasErr && hasResult && !isNull(result):
			return nil, invalidShape(line, "response with both result and error")
		case hasErr:
			return &Response{ID: id, Error: errPayload}, nil
		case hasResult:
			return &Response{ID: id, Result: result}, nil
		}
		return nil, invalidShape(line, "response without result or error")
	case hasMethod:
		return &Notification{Method: method, Params: fields["params"]}, nil
	default:
		return nil, invalidShape(line, "neither id nor method")
	}
}

// EncodeNotification renders {"method":..,"params":..} plus a trailing newline.
func EncodeNotification(method string, params any) ([]byte, error) {
	raw, err := marshalParams(params)
	if err != nil {
		return nil, err
	}
	return encodeLine(&Notification{Method: method, Params: raw})
}

// EncodeRequest renders a Notification shape with an extra "id" field.
func EncodeRequest(id uint64, method string, params any) ([]byte, error) {
	raw, err := marshalParams(params)
	if err != nil {
		return nil, err
	}
	return encodeLine(&Request{ID: id, Method: method, Params: raw})
}

// EncodeResponse renders {"id":..,"result":..}.
func EncodeResponse(id uint64, result any) ([]byte, error) {
	raw, err := marshalParams(result)
	if err != nil {
		return nil, err
	}
	return encodeLine(&Response{ID: id, Result: raw})
}

// EncodeErrorResponse renders {"id":..,"error":..}.
func EncodeErrorResponse(id uint64, e *Error) ([]byte, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshaling error object: %w", err)
	}
	return encodeLine(&Response{ID: id, Error: raw})
}

func encodeLine(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshaling message: %w", err)
	}
	return append(data, '\n'), nil
}

// marshalParams converts an arbitrary params value into json.RawMessage.
// A nil value encodes as JSON null.
func marshalParams(params any) (json.RawMessage, error) {
	switch p := params.(type) {
	case nil:
		return json.RawMessage("null"), nil
	case json.RawMessage:
		if len(p) == 0 {
			return json.RawMessage("null"), nil
		}
		return p, nil
	}
	data, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshaling params: %w", err)
	}
	return data, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func invalidShape(line []byte, reason string) *DecodeError {
	return &DecodeError{Kind: KindInvalidShape, Line: string(line), Reason: reason}
}
