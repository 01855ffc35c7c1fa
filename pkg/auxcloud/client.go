package auxcloud

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"aux-cloud-terminal/pkg/core"
)

// apiResponse is the flat status/msg/data wrapper used by the account
// and appsync endpoints.
type apiResponse struct {
	Status int             `json:"status"`
	Msg    string          `json:"msg"`
	Data   json.RawMessage `json:"data"`
}

func (r *apiResponse) errorMsg() string {
	if r.Msg != "" {
		return r.Msg
	}
	return "unknown error"
}

// Client is the AUX Cloud protocol client. One Client holds one login
// session; callers with multiple accounts create multiple clients.
// Methods serialize internally, so a Client is safe for concurrent use,
// but calls sharing one instance queue behind the same cooldown clock.
type Client struct {
	mu sync.Mutex

	region    Region
	transport *transport
	limiter   *rateLimiter
	session   *sessionManager
	retry     *retrier
	codec     *directiveCodec
	log       zerolog.Logger
}

// NewClient creates a client against the given regional API cluster.
// Unknown regions fall back to Europe, mirroring the mobile app.
func NewClient(region Region) *Client {
	baseURL, ok := apiServers[region]
	if !ok {
		region = RegionEU
		baseURL = apiServers[RegionEU]
	}
	return newClient(region, newTransport(baseURL), core.Logger)
}

func newClient(region Region, t *transport, log zerolog.Logger) *Client {
	limiter := newRateLimiter()
	sm := newSessionManager(t, limiter)
	return &Client{
		region:    region,
		transport: t,
		limiter:   limiter,
		session:   sm,
		retry:     newRetrier(sm),
		codec:     newDirectiveCodec(),
		log:       log,
	}
}

// Login authenticates with email and password. Unlike the other
// operations it is not retried: a failed login surfaces immediately so
// the caller can distinguish bad credentials from throttling.
func (c *Client) Login(ctx context.Context, email, password string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.login(ctx, email, password)
}

// RestoreSession installs a previously persisted session token so the
// client can skip the login exchange. The stored credentials stay
// empty, so an expired restored session cannot be renewed silently.
func (c *Client) RestoreSession(token, userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session.restore(token, userID)
}

// SessionToken returns the current session token and user id, for
// callers that persist sessions across runs.
func (c *Client) SessionToken() (token, userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.session.Token, c.session.session.UserID
}

// Region returns the regional cluster this client talks to.
func (c *Client) Region() Region {
	return c.region
}

func (c *Client) IsLoggedIn() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.isLoggedIn()
}

func (c *Client) IsRateLimited() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.limiter.isRateLimited()
}

// ListFamilies returns the homes the account has access to.
func (c *Client) ListFamilies(ctx context.Context) ([]Family, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var families []Family
	err := c.retry.withRetry(ctx, func(ctx context.Context) error {
		if err := c.limiter.awaitCooldown(ctx, cooldownRequest); err != nil {
			return err
		}

		var resp apiResponse
		err := c.transport.do(ctx, "appsync/group/member/getfamilylist", requestOptions{
			session: &c.session.session,
		}, &resp)
		if err != nil {
			return err
		}
		if resp.Status != 0 {
			return fmt.Errorf("failed to get families: %s", resp.errorMsg())
		}

		var data struct {
			FamilyList []Family `json:"familyList"`
		}
		if err := json.Unmarshal(resp.Data, &data); err != nil {
			return &MalformedResponseError{Reason: fmt.Sprintf("family list: %v", err)}
		}
		families = data.FamilyList
		return nil
	})
	return families, err
}

// ListDevices returns the devices of one family, each with its online
// state resolved through a single batched query and, for online
// devices, its current parameter map. A parameter fetch failing for
// one device does not abort the rest of the listing.
func (c *Client) ListDevices(ctx context.Context, familyID string, shared bool) ([]Device, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	devices, err := c.fetchDeviceList(ctx, familyID, shared)
	if err != nil {
		return nil, err
	}
	if len(devices) == 0 {
		return devices, nil
	}

	states, err := c.queryDeviceStates(ctx, devices)
	if err != nil {
		c.log.Warn().Err(err).Str("familyid", familyID).Msg("Bulk state query failed, treating devices as offline")
		states = map[string]bool{}
	}

	for i := range devices {
		devices[i].Online = states[devices[i].EndpointID]
		devices[i].Params = map[string]any{}
		if !devices[i].Online {
			continue
		}

		params, err := c.getDeviceParams(ctx, devices[i].Handle(), nil)
		if err != nil {
			c.log.Warn().Err(err).Str("did", devices[i].EndpointID).Msg("Failed to get device parameters")
			continue
		}
		devices[i].Params = params
	}

	return devices, nil
}

func (c *Client) fetchDeviceList(ctx context.Context, familyID string, shared bool) ([]Device, error) {
	endpoint := "appsync/group/dev/query?action=select"
	body := `{"pids":[]}`
	if shared {
		endpoint = "appsync/group/sharedev/querylist?querytype=shared"
		body = `{"endpointId":""}`
	}

	var devices []Device
	err := c.retry.withRetry(ctx, func(ctx context.Context) error {
		if err := c.limiter.awaitCooldown(ctx, cooldownRequest); err != nil {
			return err
		}

		var resp apiResponse
		err := c.transport.do(ctx, endpoint, requestOptions{
			rawBody: []byte(body),
			headers: map[string]string{"familyid": familyID},
			session: &c.session.session,
		}, &resp)
		if err != nil {
			return err
		}
		if resp.Status != 0 {
			return fmt.Errorf("failed to get devices: %s", resp.errorMsg())
		}

		var data struct {
			Endpoints      []Device `json:"endpoints"`
			ShareFromOther []struct {
				DevInfo Device `json:"devinfo"`
			} `json:"shareFromOther"`
		}
		if err := json.Unmarshal(resp.Data, &data); err != nil {
			return &MalformedResponseError{Reason: fmt.Sprintf("device list: %v", err)}
		}

		devices = data.Endpoints
		for _, item := range data.ShareFromOther {
			devices = append(devices, item.DevInfo)
		}
		return nil
	})
	return devices, err
}

// queryDeviceStates resolves online state for all devices in one
// batched querystate directive. Devices the response does not mention
// stay offline.
func (c *Client) queryDeviceStates(ctx context.Context, devices []Device) (map[string]bool, error) {
	var states map[string]bool
	err := c.retry.withRetry(ctx, func(ctx context.Context) error {
		if err := c.limiter.awaitCooldown(ctx, cooldownRequest); err != nil {
			return err
		}

		envelope := c.codec.buildStateQuery(c.session.session.UserID, devices)
		var resp eventResponse
		err := c.transport.do(ctx, "device/control/v2/querystate", requestOptions{
			jsonBody: envelope,
			session:  &c.session.session,
		}, &resp)
		if err != nil {
			return err
		}
		states = parseStateResponse(&resp)
		return nil
	})
	return states, err
}

// GetDeviceParams reads the named parameters from one device. A nil or
// empty name list reads every parameter the device reports.
func (c *Client) GetDeviceParams(ctx context.Context, handle DeviceHandle, names []string) (map[string]any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getDeviceParams(ctx, handle, names)
}

func (c *Client) getDeviceParams(ctx context.Context, handle DeviceHandle, names []string) (map[string]any, error) {
	var params map[string]any
	err := c.retry.withRetry(ctx, func(ctx context.Context) error {
		if err := c.limiter.awaitCooldown(ctx, cooldownRequest); err != nil {
			return err
		}

		envelope, err := c.codec.buildGetDirective(handle, names)
		if err != nil {
			return err
		}

		var resp eventResponse
		err = c.transport.do(ctx, "device/control/v2/sdkcontrol", requestOptions{
			jsonBody: envelope,
			session:  &c.session.session,
		}, &resp)
		if err != nil {
			return err
		}

		params, err = parseGetResponse(&resp)
		return err
	})
	return params, err
}

// SetDeviceParams writes the given parameters to one device. The
// returned bool reports whether the cloud accepted the write; a
// rejected write is not an error.
func (c *Client) SetDeviceParams(ctx context.Context, handle DeviceHandle, params []Parameter) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var accepted bool
	err := c.retry.withRetry(ctx, func(ctx context.Context) error {
		if err := c.limiter.awaitCooldown(ctx, cooldownRequest); err != nil {
			return err
		}

		envelope, err := c.codec.buildSetDirective(handle, params)
		if err != nil {
			return err
		}

		var resp eventResponse
		err = c.transport.do(ctx, "device/control/v2/sdkcontrol", requestOptions{
			jsonBody: envelope,
			session:  &c.session.session,
		}, &resp)
		if err != nil {
			return err
		}

		accepted = parseSetResponse(&resp)
		return nil
	})
	return accepted, err
}

// QueryDeviceData fetches a statistics report (for example daily power
// consumption) for one device over a time range.
func (c *Client) QueryDeviceData(ctx context.Context, handle DeviceHandle, report, start, end string) (*StatsReport, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	payload := map[string]any{
		"report": report,
		"device": []map[string]any{{
			"did":    handle.EndpointID,
			"offset": 0,
			"step":   0,
			"param":  []string{},
			"start":  start,
			"end":    end,
		}},
	}

	var stats *StatsReport
	err := c.retry.withRetry(ctx, func(ctx context.Context) error {
		if err := c.limiter.awaitCooldown(ctx, cooldownRequest); err != nil {
			return err
		}

		var resp apiResponse
		err := c.transport.do(ctx, "dataservice/v1/device/stats", requestOptions{
			jsonBody: payload,
			session:  &c.session.session,
		}, &resp)
		if err != nil {
			return err
		}
		if resp.Status != 0 {
			return fmt.Errorf("failed to query device data: %s", resp.errorMsg())
		}

		var table StatsReport
		if err := json.Unmarshal(resp.Data, &table); err != nil {
			return &MalformedResponseError{Reason: fmt.Sprintf("stats report: %v", err)}
		}
		stats = &table
		return nil
	})
	return stats, err
}

// RefreshDeviceSession re-lists the family to pick up a fresh
// devSession and cookie for one device. Returns nil when the device is
// no longer part of the family.
func (c *Client) RefreshDeviceSession(ctx context.Context, familyID, deviceID string) (*Device, error) {
	devices, err := c.ListDevices(ctx, familyID, false)
	if err != nil {
		return nil, err
	}
	for i := range devices {
		if devices[i].EndpointID == deviceID {
			return &devices[i], nil
		}
	}
	return nil, nil
}
