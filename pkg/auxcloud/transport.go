package auxcloud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"time"

	"golang.org/x/net/publicsuffix"
)

// transport issues signed HTTP requests against one regional API
// server. It is stateless aside from the session credentials handed to
// each call.
type transport struct {
	baseURL    string
	httpClient *http.Client
}

func newTransport(baseURL string) *transport {
	jar, _ := cookiejar.New(&cookiejar.Options{
		PublicSuffixList: publicsuffix.List,
	})
	return &transport{
		baseURL: baseURL,
		httpClient: &http.Client{
			Jar:     jar,
			Timeout: 30 * time.Second,
		},
	}
}

// requestOptions shapes one API call. Exactly one of jsonBody/rawBody
// may be set; jsonBody switches the content type to application/json.
type requestOptions struct {
	jsonBody any
	rawBody  []byte
	headers  map[string]string
	session  *session
}

// do posts to an endpoint and decodes the JSON response into out. A
// network failure maps to TransportError, an undecodable body to
// MalformedResponseError.
func (t *transport) do(ctx context.Context, endpoint string, opts requestOptions, out any) error {
	var body []byte
	contentType := "application/x-java-serialized-object"

	switch {
	case opts.jsonBody != nil:
		b, err := json.Marshal(opts.jsonBody)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		body = b
		contentType = "application/json"
	case opts.rawBody != nil:
		body = opts.rawBody
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/"+endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", contentType)
	req.Header.Set("licenseId", licenseID)
	req.Header.Set("lid", licenseID)
	req.Header.Set("language", "en")
	req.Header.Set("appVersion", appVersion)
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("system", "android")
	req.Header.Set("appPlatform", "android")

	if opts.session != nil {
		req.Header.Set("loginsession", opts.session.Token)
		req.Header.Set("userid", opts.session.UserID)
	}
	for k, v := range opts.headers {
		req.Header.Set(k, v)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return &TransportError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Endpoint: endpoint, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return &TransportError{
			Endpoint: endpoint,
			Err:      fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(raw)),
		}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return &MalformedResponseError{Reason: fmt.Sprintf("undecodable body from %s: %v", endpoint, err)}
	}
	return nil
}
