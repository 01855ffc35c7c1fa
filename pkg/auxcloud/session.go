package auxcloud

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// session is the live login state for one account.
type session struct {
	Token  string
	UserID string
}

func (s *session) valid() bool {
	return s.Token != "" && s.UserID != ""
}

type loginRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	CompanyID string `json:"companyid"`
	LID       string `json:"lid"`
}

type loginResponse struct {
	Status       int    `json:"status"`
	LoginSession string `json:"loginsession"`
	UserID       string `json:"userid"`
	Msg          string `json:"msg"`
}

// Marker substrings in server error messages. The cloud reports errors
// in Chinese with no machine readable code.
const (
	throttledMarkerCN   = "尝试次数过多" // too many attempts
	throttledMarkerEN   = "too many"
	badPasswordMarkerCN = "帐号或密码不正确" // wrong account or password
	badPasswordMarkerEN = "password"
)

// sessionManager owns the login state: it performs the encrypted login
// exchange, remembers the credentials for re-authentication and clears
// the session when a downstream call reports it expired.
type sessionManager struct {
	transport *transport
	limiter   *rateLimiter

	session  session
	email    string
	password string

	now func() time.Time
}

func newSessionManager(t *transport, rl *rateLimiter) *sessionManager {
	return &sessionManager{transport: t, limiter: rl, now: time.Now}
}

// login authenticates against account/login. The body is the login
// JSON encrypted with AES-128-CBC under a timestamp-derived key; the
// timestamp and a salted MD5 of the plaintext travel in headers so the
// server can validate and decrypt.
func (sm *sessionManager) login(ctx context.Context, email, password string) error {
	if err := sm.limiter.awaitCooldown(ctx, cooldownLogin); err != nil {
		return err
	}

	sm.email = email
	sm.password = password

	// Fractional unix seconds, matching the app's time.time() format.
	timestamp := strconv.FormatFloat(float64(sm.now().UnixMilli())/1000, 'f', -1, 64)

	body, err := json.Marshal(loginRequest{
		Email:     email,
		Password:  hashPassword(password),
		CompanyID: companyID,
		LID:       licenseID,
	})
	if err != nil {
		return err
	}

	encrypted, err := encryptBody(encryptionKey(timestamp), body)
	if err != nil {
		return err
	}

	var resp loginResponse
	err = sm.transport.do(ctx, "account/login", requestOptions{
		rawBody: encrypted,
		headers: map[string]string{
			"timestamp": timestamp,
			"token":     bodyToken(body),
		},
	}, &resp)
	if err != nil {
		return err
	}

	if resp.Status == 0 {
		sm.session = session{Token: resp.LoginSession, UserID: resp.UserID}
		sm.limiter.onSuccess()
		return nil
	}

	msg := resp.Msg
	if msg == "" {
		msg = "unknown error"
	}

	switch {
	case strings.Contains(msg, throttledMarkerCN) || strings.Contains(msg, throttledMarkerEN):
		sm.limiter.onThrottled()
		return &RateLimitedError{Remaining: sm.limiter.remaining()}
	case strings.Contains(msg, badPasswordMarkerCN) || strings.Contains(msg, badPasswordMarkerEN):
		return ErrInvalidCredentials
	default:
		return &LoginError{Msg: msg}
	}
}

func (sm *sessionManager) isLoggedIn() bool {
	return sm.session.valid()
}

// ensureLoggedIn re-authenticates with the stored credentials if the
// session was invalidated. A no-op when logged in or when no
// credentials were ever supplied.
func (sm *sessionManager) ensureLoggedIn(ctx context.Context) error {
	if sm.isLoggedIn() || sm.email == "" || sm.password == "" {
		return nil
	}
	return sm.login(ctx, sm.email, sm.password)
}

// invalidate drops the session so the next ensureLoggedIn logs in
// again. Called when a downstream call detects server-side expiry.
func (sm *sessionManager) invalidate() {
	sm.session = session{}
}

// restore installs a previously saved session without a network call.
func (sm *sessionManager) restore(token, userID string) {
	sm.session = session{Token: token, UserID: userID}
}
