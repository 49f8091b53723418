package portal

import (
	"context"
	"encoding/base64"
	"strings"
	"sync"
	"time"

	"github.com/W1ndysBot/QFNUGetFreeClassrooms/internal/model"
	"github.com/sirupsen/logrus"
)

// maxCaptchaAttempts bounds the login loop. CAPTCHA OCR is fallible, so
// a wrong solution earns another round; three misses in a row end the
// query. Credential rejections never retry.
const maxCaptchaAttempts = 3

// SessionStore persists session cookies between process runs. A load
// with no stored session returns (nil, nil).
type SessionStore interface {
	LoadSession(account string) (*model.SessionState, error)
	SaveSession(state *model.SessionState) error
}

type sessionPhase int

const (
	phaseNoSession sessionPhase = iota
	phaseAuthenticating
	phaseAuthenticated
)

func (p sessionPhase) String() string {
	switch p {
	case phaseAuthenticating:
		return "authenticating"
	case phaseAuthenticated:
		return "authenticated"
	default:
		return "no-session"
	}
}

// SessionManager guarantees an authenticated portal transport. It owns
// the client's cookie jar exclusively and serializes all state
// transitions, so concurrent queries cannot race on cookie persistence.
type SessionManager struct {
	mu sync.Mutex

	client *Client
	solver Solver
	store  SessionStore

	account  string
	password string

	phase    sessionPhase
	restored bool // persisted session already attempted this process

	loginTimeout   time.Duration
	attemptTimeout time.Duration
}

// NewSessionManager wires the manager to its collaborators. store may be
// nil, in which case sessions live only for the process lifetime.
func NewSessionManager(client *Client, solver Solver, store SessionStore, account, password string, loginTimeout time.Duration) *SessionManager {
	attempt := loginTimeout / maxCaptchaAttempts
	if attempt <= 0 {
		attempt = 15 * time.Second
	}
	return &SessionManager{
		client:         client,
		solver:         solver,
		store:          store,
		account:        account,
		password:       password,
		loginTimeout:   loginTimeout,
		attemptTimeout: attempt,
	}
}

// Client exposes the authenticated transport. Valid only after a
// successful EnsureLogin.
func (m *SessionManager) Client() *Client { return m.client }

// Invalidate drops the in-memory session and skips the persisted copy,
// forcing the next EnsureLogin to run a real login. Called when the
// portal rejects a request mid-query: the persisted cookies are the same
// ones that just failed.
func (m *SessionManager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.phase = phaseNoSession
	m.restored = true
}

// EnsureLogin brings the session to the authenticated state, reusing a
// still-valid session when possible. The whole operation is bounded by
// the configured login timeout; each CAPTCHA attempt additionally by its
// own shorter timeout.
func (m *SessionManager) EnsureLogin(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, m.loginTimeout)
	defer cancel()

	// Live session: a cheap probe decides between reuse and reset.
	if m.phase == phaseAuthenticated {
		ok, err := m.client.ProbeAuthenticated(ctx)
		if err == nil && ok {
			return nil
		}
		logrus.Debug("session expired, re-authenticating")
		m.phase = phaseNoSession
	}

	// Cold start: a persisted session skips straight to the probe.
	if !m.restored {
		m.restored = true
		if m.tryRestore(ctx) {
			return nil
		}
	}

	return m.authenticate(ctx)
}

func (m *SessionManager) tryRestore(ctx context.Context) bool {
	if m.store == nil {
		return false
	}
	saved, err := m.store.LoadSession(m.account)
	if err != nil {
		logrus.WithError(err).Warn("loading persisted session failed")
		return false
	}
	if saved == nil || len(saved.Cookies) == 0 {
		return false
	}

	m.client.SetCookies(saved.Cookies)
	ok, err := m.client.ProbeAuthenticated(ctx)
	if err != nil || !ok {
		logrus.Debug("persisted session no longer valid")
		return false
	}

	m.phase = phaseAuthenticated
	m.persist()
	logrus.WithField("account", m.account).Info("restored persisted session")
	return true
}

// authenticate runs the CAPTCHA/login loop. Outcome handling follows the
// portal's text responses: a CAPTCHA rejection earns a fresh attempt, a
// credential rejection is terminal immediately since retrying cannot fix
// wrong credentials.
func (m *SessionManager) authenticate(ctx context.Context) error {
	m.phase = phaseAuthenticating

	encoded := base64.StdEncoding.EncodeToString([]byte(m.account)) +
		"%%%" +
		base64.StdEncoding.EncodeToString([]byte(m.password))

	for attempt := 1; attempt <= maxCaptchaAttempts; attempt++ {
		outcome, err := m.loginAttempt(ctx, encoded)
		if err != nil {
			m.phase = phaseNoSession
			return err
		}

		switch outcome {
		case outcomeSuccess:
			m.phase = phaseAuthenticated
			m.persist()
			logrus.WithFields(logrus.Fields{"account": m.account, "attempt": attempt}).
				Info("portal login succeeded")
			return nil
		case outcomeCaptchaRejected:
			logrus.WithField("attempt", attempt).Debug("captcha rejected")
			continue
		case outcomeCredentialsRejected:
			m.phase = phaseNoSession
			return &LoginFailedError{Reason: "credentials rejected, check username and password"}
		default:
			m.phase = phaseNoSession
			return &LoginFailedError{Reason: "portal response did not confirm login"}
		}
	}

	m.phase = phaseNoSession
	return &LoginFailedError{Reason: "captcha rejected 3 times, OCR service may be failing"}
}

type loginOutcome int

const (
	outcomeSuccess loginOutcome = iota
	outcomeCaptchaRejected
	outcomeCredentialsRejected
	outcomeAmbiguous
)

func (m *SessionManager) loginAttempt(ctx context.Context, encoded string) (loginOutcome, error) {
	ctx, cancel := context.WithTimeout(ctx, m.attemptTimeout)
	defer cancel()

	// Each CAPTCHA image is single-use: the portal binds it to the
	// session cookie that fetched it.
	image, err := m.client.CaptchaImage(ctx)
	if err != nil {
		return outcomeAmbiguous, err
	}

	code, err := m.solver.Solve(ctx, image)
	if err != nil {
		return outcomeAmbiguous, &TransportError{Op: "solve captcha", Err: err}
	}

	body, err := m.client.SubmitLogin(ctx, encoded, code)
	if err != nil {
		return outcomeAmbiguous, err
	}

	switch {
	case strings.Contains(body, "验证码错误"):
		return outcomeCaptchaRejected, nil
	case strings.Contains(body, "密码错误"), strings.Contains(body, "用户名或密码错误"), strings.Contains(body, "该帐号不存在"):
		return outcomeCredentialsRejected, nil
	}

	// The portal answers 200 either way; the authenticated-page probe is
	// the only trustworthy success signal.
	ok, err := m.client.ProbeAuthenticated(ctx)
	if err != nil {
		return outcomeAmbiguous, err
	}
	if ok {
		return outcomeSuccess, nil
	}
	return outcomeAmbiguous, nil
}

// persist writes the cookie snapshot on every transition into the
// authenticated phase. Failures are logged, not fatal: the live session
// still works, only the next process start pays for it.
func (m *SessionManager) persist() {
	if m.store == nil {
		return
	}
	state := &model.SessionState{
		Account:         m.account,
		Cookies:         m.client.Cookies(),
		LastValidatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if err := m.store.SaveSession(state); err != nil {
		logrus.WithError(err).Warn("persisting session failed")
	}
}
