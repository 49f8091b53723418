package portal

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/W1ndysBot/QFNUGetFreeClassrooms/internal/model"
)

const loginPage = `<html><head><title>登录</title></head><body>用户登录</body></html>`
const mainPage = `<html><head><title>学生个人中心</title></head><body>欢迎</body></html>`

// fakePortal mimics the timetable portal's login surface: a single-use
// CAPTCHA endpoint, a login POST that answers 200 with the outcome in
// the body, and a main page that serves the login page to anyone
// without a live session cookie.
type fakePortal struct {
	mu sync.Mutex

	correctCode       string
	rejectCredentials bool

	captchaHits int
	loginHits   int
	sessions    map[string]bool
}

func (p *fakePortal) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch r.URL.Path {
	case "/jsxsd/verifycode.servlet":
		p.captchaHits++
		w.Write([]byte("png-bytes"))
	case "/jsxsd/xk/LoginToXk":
		p.loginHits++
		r.ParseForm()
		switch {
		case p.rejectCredentials:
			w.Write([]byte("用户名或密码错误"))
		case r.PostFormValue("RANDOMCODE") != p.correctCode:
			w.Write([]byte("验证码错误"))
		default:
			token := "session-" + r.PostFormValue("RANDOMCODE")
			p.sessions[token] = true
			http.SetCookie(w, &http.Cookie{Name: "JSESSIONID", Value: token, Path: "/"})
			w.Write([]byte(mainPage))
		}
	case "/jsxsd/framework/xsMain.jsp":
		if ck, err := r.Cookie("JSESSIONID"); err == nil && p.sessions[ck.Value] {
			w.Write([]byte(mainPage))
		} else {
			w.Write([]byte(loginPage))
		}
	default:
		http.NotFound(w, r)
	}
}

func (p *fakePortal) counts() (captcha, login int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.captchaHits, p.loginHits
}

type fixedSolver struct {
	code  string
	calls int
}

func (s *fixedSolver) Solve(ctx context.Context, image []byte) (string, error) {
	s.calls++
	return s.code, nil
}

type memStore struct {
	state *model.SessionState
	saves int
}

func (s *memStore) LoadSession(account string) (*model.SessionState, error) {
	return s.state, nil
}

func (s *memStore) SaveSession(state *model.SessionState) error {
	s.state = state
	s.saves++
	return nil
}

func newTestPortal(t *testing.T) (*fakePortal, *Client) {
	t.Helper()
	portal := &fakePortal{correctCode: "abcd", sessions: map[string]bool{}}
	srv := httptest.NewServer(portal)
	t.Cleanup(srv.Close)

	client, err := NewClient(srv.URL, 1000, 5*time.Second)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return portal, client
}

func TestEnsureLogin_Success(t *testing.T) {
	portal, client := newTestPortal(t)
	solver := &fixedSolver{code: "abcd"}
	store := &memStore{}
	m := NewSessionManager(client, solver, store, "2023001", "secret", 30*time.Second)

	if err := m.EnsureLogin(context.Background()); err != nil {
		t.Fatalf("EnsureLogin: %v", err)
	}

	if captcha, login := portal.counts(); captcha != 1 || login != 1 {
		t.Errorf("captcha=%d login=%d, want one of each", captcha, login)
	}
	if store.state == nil {
		t.Fatal("session was not persisted")
	}
	if store.state.Account != "2023001" {
		t.Errorf("persisted account = %q", store.state.Account)
	}
	if len(store.state.Cookies) == 0 {
		t.Error("persisted session has no cookies")
	}
}

func TestEnsureLogin_CaptchaRetriesExactlyThree(t *testing.T) {
	portal, client := newTestPortal(t)
	solver := &fixedSolver{code: "wrong"}
	m := NewSessionManager(client, solver, nil, "2023001", "secret", 30*time.Second)

	err := m.EnsureLogin(context.Background())
	if err == nil {
		t.Fatal("expected login failure")
	}
	var lf *LoginFailedError
	if !errors.As(err, &lf) {
		t.Fatalf("error = %v, want LoginFailedError", err)
	}

	if captcha, login := portal.counts(); captcha != 3 || login != 3 {
		t.Errorf("captcha=%d login=%d, want exactly 3 of each", captcha, login)
	}
	if solver.calls != 3 {
		t.Errorf("solver calls = %d, want 3", solver.calls)
	}
}

func TestEnsureLogin_CredentialRejectionIsImmediate(t *testing.T) {
	portal, client := newTestPortal(t)
	portal.rejectCredentials = true
	solver := &fixedSolver{code: "abcd"}
	m := NewSessionManager(client, solver, nil, "2023001", "badpass", 30*time.Second)

	err := m.EnsureLogin(context.Background())
	var lf *LoginFailedError
	if !errors.As(err, &lf) {
		t.Fatalf("error = %v, want LoginFailedError", err)
	}

	// No retry: wrong credentials cannot become right.
	if _, login := portal.counts(); login != 1 {
		t.Errorf("login attempts = %d, want 1", login)
	}
}

func TestEnsureLogin_ReusesLiveSession(t *testing.T) {
	portal, client := newTestPortal(t)
	solver := &fixedSolver{code: "abcd"}
	m := NewSessionManager(client, solver, nil, "2023001", "secret", 30*time.Second)

	if err := m.EnsureLogin(context.Background()); err != nil {
		t.Fatalf("first EnsureLogin: %v", err)
	}
	if err := m.EnsureLogin(context.Background()); err != nil {
		t.Fatalf("second EnsureLogin: %v", err)
	}

	// The second call probes the main page but never touches the
	// CAPTCHA or login endpoints again.
	if captcha, login := portal.counts(); captcha != 1 || login != 1 {
		t.Errorf("captcha=%d login=%d after reuse, want 1/1", captcha, login)
	}
}

func TestEnsureLogin_RestoresPersistedSession(t *testing.T) {
	portal, client := newTestPortal(t)
	portal.sessions["restored-token"] = true

	store := &memStore{state: &model.SessionState{
		Account: "2023001",
		Cookies: map[string]string{"JSESSIONID": "restored-token"},
	}}
	solver := &fixedSolver{code: "abcd"}
	m := NewSessionManager(client, solver, store, "2023001", "secret", 30*time.Second)

	if err := m.EnsureLogin(context.Background()); err != nil {
		t.Fatalf("EnsureLogin: %v", err)
	}

	if captcha, login := portal.counts(); captcha != 0 || login != 0 {
		t.Errorf("captcha=%d login=%d, restore should skip login entirely", captcha, login)
	}
	if store.saves == 0 {
		t.Error("restored session should refresh the persisted copy")
	}
}

func TestEnsureLogin_StaleRestoreFallsThroughToLogin(t *testing.T) {
	portal, client := newTestPortal(t)
	// The stored token is not known to the portal anymore.
	store := &memStore{state: &model.SessionState{
		Account: "2023001",
		Cookies: map[string]string{"JSESSIONID": "expired-token"},
	}}
	solver := &fixedSolver{code: "abcd"}
	m := NewSessionManager(client, solver, store, "2023001", "secret", 30*time.Second)

	if err := m.EnsureLogin(context.Background()); err != nil {
		t.Fatalf("EnsureLogin: %v", err)
	}
	if _, login := portal.counts(); login != 1 {
		t.Errorf("login attempts = %d, want fallthrough to a real login", login)
	}
}

func TestInvalidate_ForcesRealLogin(t *testing.T) {
	portal, client := newTestPortal(t)
	portal.sessions["restored-token"] = true
	store := &memStore{state: &model.SessionState{
		Account: "2023001",
		Cookies: map[string]string{"JSESSIONID": "restored-token"},
	}}
	solver := &fixedSolver{code: "abcd"}
	m := NewSessionManager(client, solver, store, "2023001", "secret", 30*time.Second)

	m.Invalidate()
	if err := m.EnsureLogin(context.Background()); err != nil {
		t.Fatalf("EnsureLogin: %v", err)
	}

	// Invalidate skips the persisted session, so a real login runs even
	// though the stored token is still valid portal-side.
	if _, login := portal.counts(); login != 1 {
		t.Errorf("login attempts = %d, want 1", login)
	}
}

func TestIsLoginPage(t *testing.T) {
	if !IsLoginPage(loginPage) {
		t.Error("login page not detected")
	}
	if IsLoginPage(mainPage) {
		t.Error("main page misdetected as login page")
	}
}
