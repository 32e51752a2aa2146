// ABOUTME: Decodes notification and request method names into typed operations
// ABOUTME: Unknown notifications map to Unrecognized; unknown requests are reported as unsupported

package ops

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnsupportedRequest is returned by DecodeRequest for methods the client
// does not answer.
var ErrUnsupportedRequest = errors.New("unsupported request")

type decodeFunc func(params json.RawMessage) (Operation, error)

var notifications = map[string]decodeFunc{
	MethodUpdate:             as[Update],
	MethodScrollTo:           as[ScrollTo],
	MethodDefStyle:           as[DefStyle],
	MethodAvailablePlugins:   as[AvailablePlugins],
	MethodUpdateCmds:         as[UpdateCmds],
	MethodPluginStarted:      as[PluginStarted],
	MethodPluginStopped:      as[PluginStopped],
	MethodConfigChanged:      as[ConfigChanged],
	MethodThemeChanged:       as[ThemeChanged],
	MethodAlert:              as[Alert],
	MethodAvailableThemes:    as[AvailableThemes],
	MethodFindStatus:         as[FindStatus],
	MethodReplaceStatus:      as[ReplaceStatus],
	MethodAvailableLanguages: as[AvailableLanguages],
	MethodLanguageChanged:    as[LanguageChanged],
}

// Decode maps a notification to its typed operation. An unknown method is
// not an error: it yields Unrecognized. A known method whose params do not
// fit its payload type returns an error.
func Decode(method string, params json.RawMessage) (Operation, error) {
	fn, ok := notifications[method]
	if !ok {
		return Unrecognized{Name: method, Params: params}, nil
	}
	op, err := fn(params)
	if err != nil {
		return nil, fmt.Errorf("decoding %s params: %w", method, err)
	}
	return op, nil
}

// DecodeRequest maps an inbound request to its typed operation. Only
// measure_width is answered by the client.
func DecodeRequest(id uint64, method string, params json.RawMessage) (Operation, error) {
	switch method {
	case MethodMeasureWidth:
		var reqs []MeasureRequest
		if err := json.Unmarshal(orNull(params), &reqs); err != nil {
			return nil, fmt.Errorf("decoding %s params: %w", method, err)
		}
		return MeasureWidth{ID: id, Requests: reqs}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedRequest, method)
	}
}

// Known reports whether method is one of the recognized notifications.
func Known(method string) bool {
	_, ok := notifications[method]
	return ok
}

func as[T Operation](params json.RawMessage) (Operation, error) {
	var v T
	if err := json.Unmarshal(orNull(params), &v); err != nil {
		return nil, err
	}
	return v, nil
}

func orNull(params json.RawMessage) json.RawMessage {
	if len(bytes.TrimSpace(params)) == 0 {
		return json.RawMessage("null")
	}
	return params
}

func unmarshalListOrObject(data []byte, list *[]string, obj any) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return json.Unmarshal(trimmed, list)
	}
	return json.Unmarshal(trimmed, obj)
}
