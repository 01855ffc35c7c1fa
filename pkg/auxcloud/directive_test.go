package auxcloud

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testHandle() DeviceHandle {
	cookie := base64.StdEncoding.EncodeToString([]byte(`{"terminalid":"term-1","aeskey":"key-1"}`))
	return DeviceHandle{
		EndpointID:     "did-1",
		ProductID:      "000000000000000000000000c0620000",
		Mac:            "aa:bb:cc:dd:ee:ff",
		DeviceTypeFlag: 1,
		Cookie:         cookie,
		DevSession:     "sess-1",
	}
}

func testCodec() *directiveCodec {
	return &directiveCodec{now: func() time.Time { return time.Unix(1700000000, 0) }}
}

func TestBuildCookiePayload(t *testing.T) {
	payload, err := buildCookiePayload(testHandle())
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(payload)
	require.NoError(t, err)

	var mapped struct {
		Device map[string]any `json:"device"`
	}
	require.NoError(t, json.Unmarshal(raw, &mapped))

	// The pairing cookie is re-shaped, not passed through.
	assert.Equal(t, "term-1", mapped.Device["id"])
	assert.Equal(t, "key-1", mapped.Device["key"])
	assert.Equal(t, "key-1", mapped.Device["aeskey"])
	assert.Equal(t, "sess-1", mapped.Device["devSession"])
	assert.Equal(t, "did-1", mapped.Device["did"])
	assert.Equal(t, "000000000000000000000000c0620000", mapped.Device["pid"])
	assert.Equal(t, "aa:bb:cc:dd:ee:ff", mapped.Device["mac"])
}

func TestBuildCookiePayloadRejectsGarbage(t *testing.T) {
	handle := testHandle()
	handle.Cookie = "not base64!"

	_, err := buildCookiePayload(handle)
	var malformed *MalformedResponseError
	assert.ErrorAs(t, err, &malformed)
}

func TestBuildGetDirective(t *testing.T) {
	envelope, err := testCodec().buildGetDirective(testHandle(), []string{"temp", "pwr"})
	require.NoError(t, err)

	header := envelope.Directive.Header
	assert.Equal(t, "DNA.KeyValueControl", header.Namespace)
	assert.Equal(t, "KeyValueControl", header.Name)
	assert.Equal(t, "sdk", header.SenderID)
	assert.Equal(t, "2", header.InterfaceVersion)
	assert.Equal(t, fmt.Sprintf("did-1-%d", time.Unix(1700000000, 0).UnixMilli()), header.MessageID)

	require.NotNil(t, envelope.Directive.Endpoint)
	assert.Equal(t, "did-1", envelope.Directive.Endpoint.EndpointID)
	assert.Equal(t, "sess-1", envelope.Directive.Endpoint.DevSession)
	assert.Equal(t, "did-1", envelope.Directive.Endpoint.DevicePairedInfo.DID)

	payload := envelope.Directive.Payload.(controlPayload)
	assert.Equal(t, "get", payload.Act)
	assert.Equal(t, []string{"temp", "pwr"}, payload.Params)
	assert.Empty(t, payload.Vals)
	assert.Equal(t, "did-1", payload.DID)
}

func TestBuildGetDirectiveNilParams(t *testing.T) {
	envelope, err := testCodec().buildGetDirective(testHandle(), nil)
	require.NoError(t, err)

	// Marshals as [] not null; the cloud rejects null params.
	data, err := json.Marshal(envelope)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"params":[]`)
}

func TestBuildSetDirectivePositionalEncoding(t *testing.T) {
	params := []Parameter{
		{Name: "pwr", Value: 1},
		{Name: "temp", Value: 240},
		{Name: "ac_mode", Value: ModeHeating},
	}

	envelope, err := testCodec().buildSetDirective(testHandle(), params)
	require.NoError(t, err)

	payload := envelope.Directive.Payload.(controlPayload)
	assert.Equal(t, "set", payload.Act)
	require.Equal(t, len(payload.Params), len(payload.Vals), "names and values must stay parallel")

	assert.Equal(t, []string{"pwr", "temp", "ac_mode"}, payload.Params)
	for _, val := range payload.Vals {
		require.Len(t, val, 1, "each value slot is a one-element list")
		assert.Equal(t, 1, val[0].Idx)
	}
	assert.Equal(t, 1, payload.Vals[0][0].Val)
	assert.Equal(t, 240, payload.Vals[1][0].Val)
	assert.Equal(t, ModeHeating, payload.Vals[2][0].Val)
}

func TestBuildStateQuery(t *testing.T) {
	devices := []Device{
		{EndpointID: "did-1", DevSession: "sess-1"},
		{EndpointID: "did-2", DevSession: "sess-2"},
	}

	envelope := testCodec().buildStateQuery("user-1", devices)

	header := envelope.Directive.Header
	assert.Equal(t, "DNA.QueryState", header.Namespace)
	assert.Equal(t, "queryState", header.Name)
	assert.Equal(t, "controlgw.batch", header.MessageType)
	assert.Equal(t, "user-1-1700000000", header.MessageID)
	assert.Equal(t, "1700000000", header.Timestamp)
	assert.Nil(t, envelope.Directive.Endpoint)

	payload := envelope.Directive.Payload.(stateQueryPayload)
	assert.Equal(t, "batch", payload.MsgType)
	require.Len(t, payload.StuData, 2)
	assert.Equal(t, "did-2", payload.StuData[1].DID)
	assert.Equal(t, "sess-2", payload.StuData[1].DevSession)

	// The misspelled timstamp key is part of the wire format.
	data, err := json.Marshal(envelope)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"timstamp":"1700000000"`)
}

func eventResponseWithData(t *testing.T, inner string) *eventResponse {
	t.Helper()
	quoted, err := json.Marshal(inner)
	require.NoError(t, err)

	var resp eventResponse
	resp.Event.Payload.Data = quoted
	return &resp
}

func TestParseGetResponse(t *testing.T) {
	resp := eventResponseWithData(t, `{"params":["temp","pwr"],"vals":[[{"val":240}],[{"val":1}]]}`)

	params, err := parseGetResponse(resp)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"temp": float64(240), "pwr": float64(1)}, params)
}

func TestParseGetResponseStringValues(t *testing.T) {
	resp := eventResponseWithData(t, `{"params":["mode"],"vals":[[{"val":"cooling"}]]}`)

	params, err := parseGetResponse(resp)
	require.NoError(t, err)
	assert.Equal(t, "cooling", params["mode"])
}

func TestParseGetResponseLengthMismatch(t *testing.T) {
	resp := eventResponseWithData(t, `{"params":["temp","pwr"],"vals":[[{"val":240}]]}`)

	_, err := parseGetResponse(resp)
	var malformed *MalformedResponseError
	assert.ErrorAs(t, err, &malformed)
}

func TestParseGetResponseMissingData(t *testing.T) {
	_, err := parseGetResponse(&eventResponse{})
	var malformed *MalformedResponseError
	assert.ErrorAs(t, err, &malformed)
}

func TestParseSetResponse(t *testing.T) {
	// Updated state echoed back means the write took.
	withData := eventResponseWithData(t, `{"params":["pwr"],"vals":[[{"val":1}]]}`)
	assert.True(t, parseSetResponse(withData))

	// Explicit zero status also counts as success.
	zero := 0
	var withStatus eventResponse
	withStatus.Event.Payload.Status = &zero
	assert.True(t, parseSetResponse(&withStatus))

	// An empty payload is a rejected write, not an error.
	assert.False(t, parseSetResponse(&eventResponse{}))
}

func TestSetGetRoundTrip(t *testing.T) {
	// Values written by a set directive survive the positional wire
	// encoding when echoed back and parsed as a get response.
	params := []Parameter{
		{Name: "pwr", Value: 1},
		{Name: "temp", Value: 240},
		{Name: "envtemp", Value: 215},
	}

	envelope, err := testCodec().buildSetDirective(testHandle(), params)
	require.NoError(t, err)
	payload := envelope.Directive.Payload.(controlPayload)

	// Mirror the directive into a response the way the cloud does.
	echo, err := json.Marshal(map[string]any{
		"params": payload.Params,
		"vals":   payload.Vals,
	})
	require.NoError(t, err)

	parsed, err := parseGetResponse(eventResponseWithData(t, string(echo)))
	require.NoError(t, err)

	require.Len(t, parsed, len(params))
	for _, p := range params {
		assert.EqualValues(t, p.Value, parsed[p.Name], p.Name)
	}
}

func TestParseStateResponse(t *testing.T) {
	zero := 0
	var resp eventResponse
	resp.Event.Payload.Status = &zero
	resp.Event.Payload.Data = json.RawMessage(`[{"did":"did-1","state":1},{"did":"did-2","state":0}]`)

	states := parseStateResponse(&resp)
	assert.True(t, states["did-1"])
	assert.False(t, states["did-2"])

	// Devices missing from the response are not present at all and
	// default to offline at the caller.
	_, present := states["did-3"]
	assert.False(t, present)
}
