package auxcloud

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
)

// Directive envelope wire types. The device control endpoints wrap
// every request in directive/header/endpoint/payload nesting inherited
// from the BroadLink DNA SDK.

type directiveHeader struct {
	Namespace        string `json:"namespace"`
	Name             string `json:"name"`
	MessageType      string `json:"messageType,omitempty"`
	SenderID         string `json:"senderId"`
	MessageID        string `json:"messageId"`
	InterfaceVersion string `json:"interfaceVersion"`
	// "timstamp" is the vendor's spelling, not ours.
	Timestamp string `json:"timstamp,omitempty"`
}

type devicePairedInfo struct {
	DID            string `json:"did"`
	PID            string `json:"pid"`
	Mac            string `json:"mac"`
	DeviceTypeFlag int    `json:"devicetypeflag"`
	Cookie         string `json:"cookie"`
}

type directiveEndpoint struct {
	DevicePairedInfo devicePairedInfo `json:"devicePairedInfo"`
	EndpointID       string           `json:"endpointId"`
	Cookie           struct{}         `json:"cookie"`
	DevSession       string           `json:"devSession"`
}

type directive struct {
	Header   directiveHeader    `json:"header"`
	Endpoint *directiveEndpoint `json:"endpoint,omitempty"`
	Payload  any                `json:"payload"`
}

type directiveEnvelope struct {
	Directive directive `json:"directive"`
}

// paramValue is the single-element wrapper around each value slot. The
// index is a fixed protocol quirk, always 1.
type paramValue struct {
	Idx int `json:"idx"`
	Val any `json:"val"`
}

type controlPayload struct {
	Act    string         `json:"act"`
	Params []string       `json:"params"`
	Vals   [][]paramValue `json:"vals"`
	DID    string         `json:"did"`
}

type stateQueryEntry struct {
	DID        string `json:"did"`
	DevSession string `json:"devSession"`
}

type stateQueryPayload struct {
	StuData []stateQueryEntry `json:"studata"`
	MsgType string            `json:"msgtype"`
}

// eventResponse is the generic response wrapper of the directive
// endpoints. For sdkcontrol the data field is a JSON-encoded string
// needing a second parse pass; for querystate it is a plain array.
type eventResponse struct {
	Event struct {
		Payload struct {
			Status *int            `json:"status,omitempty"`
			Data   json.RawMessage `json:"data,omitempty"`
		} `json:"payload"`
	} `json:"event"`
}

type deviceState struct {
	DID   string `json:"did"`
	State int    `json:"state"`
}

// pairingCookie is the JSON inside a device's base64 cookie blob as
// issued at pairing time.
type pairingCookie struct {
	TerminalID string `json:"terminalid"`
	AESKey     string `json:"aeskey"`
}

// directiveCodec builds and parses directive envelopes. The clock is
// injectable so tests get stable message ids.
type directiveCodec struct {
	now func() time.Time
}

func newDirectiveCodec() *directiveCodec {
	return &directiveCodec{now: time.Now}
}

// buildCookiePayload decodes the pairing cookie and re-shapes it into
// the nested form the envelope wants. A straight pass-through of the
// original blob is rejected by the cloud.
func buildCookiePayload(handle DeviceHandle) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(handle.Cookie)
	if err != nil {
		return "", &MalformedResponseError{Reason: fmt.Sprintf("device cookie is not base64: %v", err)}
	}

	var cookie pairingCookie
	if err := json.Unmarshal(raw, &cookie); err != nil {
		return "", &MalformedResponseError{Reason: fmt.Sprintf("device cookie is not JSON: %v", err)}
	}

	mapped, err := json.Marshal(map[string]any{
		"device": map[string]any{
			"id":         cookie.TerminalID,
			"key":        cookie.AESKey,
			"devSession": handle.DevSession,
			"aeskey":     cookie.AESKey,
			"did":        handle.EndpointID,
			"pid":        handle.ProductID,
			"mac":        handle.Mac,
		},
	})
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(mapped), nil
}

func (dc *directiveCodec) controlEnvelope(handle DeviceHandle, payload controlPayload) (*directiveEnvelope, error) {
	cookie, err := buildCookiePayload(handle)
	if err != nil {
		return nil, err
	}

	return &directiveEnvelope{Directive: directive{
		Header: directiveHeader{
			Namespace:        "DNA.KeyValueControl",
			Name:             "KeyValueControl",
			SenderID:         "sdk",
			MessageID:        fmt.Sprintf("%s-%d", handle.EndpointID, dc.now().UnixMilli()),
			InterfaceVersion: "2",
		},
		Endpoint: &directiveEndpoint{
			DevicePairedInfo: devicePairedInfo{
				DID:            handle.EndpointID,
				PID:            handle.ProductID,
				Mac:            handle.Mac,
				DeviceTypeFlag: handle.DeviceTypeFlag,
				Cookie:         cookie,
			},
			EndpointID: handle.EndpointID,
			DevSession: handle.DevSession,
		},
		Payload: payload,
	}}, nil
}

// buildGetDirective builds the envelope asking for the named
// parameters. An empty name list asks for every parameter the device
// reports.
func (dc *directiveCodec) buildGetDirective(handle DeviceHandle, paramNames []string) (*directiveEnvelope, error) {
	if paramNames == nil {
		paramNames = []string{}
	}
	return dc.controlEnvelope(handle, controlPayload{
		Act:    "get",
		Params: paramNames,
		Vals:   [][]paramValue{},
		DID:    handle.EndpointID,
	})
}

// buildSetDirective builds the envelope writing the given parameters,
// encoded as parallel positional name and value sequences.
func (dc *directiveCodec) buildSetDirective(handle DeviceHandle, params []Parameter) (*directiveEnvelope, error) {
	names := make([]string, 0, len(params))
	vals := make([][]paramValue, 0, len(params))
	for _, p := range params {
		names = append(names, p.Name)
		vals = append(vals, []paramValue{{Idx: 1, Val: p.Value}})
	}
	return dc.controlEnvelope(handle, controlPayload{
		Act:    "set",
		Params: names,
		Vals:   vals,
		DID:    handle.EndpointID,
	})
}

// buildStateQuery builds the batched online-state query for all
// devices of a listing in one request.
func (dc *directiveCodec) buildStateQuery(userID string, devices []Device) *directiveEnvelope {
	entries := make([]stateQueryEntry, 0, len(devices))
	for _, d := range devices {
		entries = append(entries, stateQueryEntry{DID: d.EndpointID, DevSession: d.DevSession})
	}

	timestamp := dc.now().Unix()
	return &directiveEnvelope{Directive: directive{
		Header: directiveHeader{
			Namespace:        "DNA.QueryState",
			Name:             "queryState",
			MessageType:      "controlgw.batch",
			SenderID:         "sdk",
			MessageID:        fmt.Sprintf("%s-%d", userID, timestamp),
			InterfaceVersion: "2",
			Timestamp:        fmt.Sprintf("%d", timestamp),
		},
		Payload: stateQueryPayload{StuData: entries, MsgType: "batch"},
	}}
}

// parseGetResponse unwraps the double-encoded data field and zips the
// positional params/vals sequences back into a map. Each value slot is
// a one-element list whose entry carries the actual value under "val";
// that nesting is part of the wire format.
func parseGetResponse(resp *eventResponse) (map[string]any, error) {
	if len(resp.Event.Payload.Data) == 0 {
		return nil, &MalformedResponseError{Reason: "response has no data field"}
	}

	var inner string
	if err := json.Unmarshal(resp.Event.Payload.Data, &inner); err != nil {
		return nil, &MalformedResponseError{Reason: fmt.Sprintf("data field is not a JSON string: %v", err)}
	}

	var data struct {
		Params []string `json:"params"`
		Vals   [][]struct {
			Val any `json:"val"`
		} `json:"vals"`
	}
	if err := json.Unmarshal([]byte(inner), &data); err != nil {
		return nil, &MalformedResponseError{Reason: fmt.Sprintf("inner data is not JSON: %v", err)}
	}

	if len(data.Params) != len(data.Vals) {
		return nil, &MalformedResponseError{
			Reason: fmt.Sprintf("params/vals length mismatch: %d vs %d", len(data.Params), len(data.Vals)),
		}
	}

	params := make(map[string]any, len(data.Params))
	for i, name := range data.Params {
		if len(data.Vals[i]) == 0 {
			return nil, &MalformedResponseError{Reason: fmt.Sprintf("empty value slot for %q", name)}
		}
		params[name] = data.Vals[i][0].Val
	}
	return params, nil
}

// parseSetResponse reports whether a set directive was accepted. The
// cloud signals success by echoing updated state in data, or sometimes
// with an explicit zero status; any other shape means the write did
// not take, which is a false result rather than an error.
func parseSetResponse(resp *eventResponse) bool {
	if len(resp.Event.Payload.Data) > 0 && string(resp.Event.Payload.Data) != `""` && string(resp.Event.Payload.Data) != "null" {
		return true
	}
	return resp.Event.Payload.Status != nil && *resp.Event.Payload.Status == 0
}

// parseStateResponse maps endpoint ids to reported online state.
// Devices missing from the response are simply absent from the map and
// default to offline at the caller, matching the app's behavior.
func parseStateResponse(resp *eventResponse) map[string]bool {
	states := map[string]bool{}
	if resp.Event.Payload.Status == nil || *resp.Event.Payload.Status != 0 {
		return states
	}

	var list []deviceState
	if err := json.Unmarshal(resp.Event.Payload.Data, &list); err != nil {
		return states
	}
	for _, s := range list {
		states[s.DID] = s.State == 1
	}
	return states
}
