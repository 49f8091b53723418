package portal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Portal endpoints, relative to the configured base URL. The request
// shapes are fixed: this client targets one known portal, not the web at
// large.
const (
	captchaPath       = "/jsxsd/verifycode.servlet"
	loginPath         = "/jsxsd/xk/LoginToXk"
	mainPagePath      = "/jsxsd/framework/xsMain.jsp"
	classroomPagePath = "/jsxsd/kbcx/kbxx_classroom"
	initPath          = "/jsxsd/kbxx/initJc"
	gridQueryPath     = "/jsxsd/kbcx/kbxx_classroom_ifr"

	// kbjcmsid identifies the portal's timetable base mode; the value is
	// fixed server-side.
	timetableModeID = "94786EE0ABE2D3B2E0531E64A8C09931"

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/134.0.0.0 Safari/537.36"
)

// Client owns the HTTP transport and cookie jar for the portal. The jar
// is deliberately not shared: session cookies have a single writer, the
// session manager.
type Client struct {
	base    *url.URL
	http    *http.Client
	jar     *cookiejar.Jar
	limiter *rate.Limiter
}

// NewClient builds a portal client with a fresh cookie jar and a token
// bucket allowing rps requests per second.
func NewClient(baseURL string, rps float64, timeout time.Duration) (*Client, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing portal base URL: %w", err)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}
	return &Client{
		base:    base,
		jar:     jar,
		http:    &http.Client{Jar: jar, Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}, nil
}

// Cookies snapshots the jar's cookies for the portal host.
func (c *Client) Cookies() map[string]string {
	out := make(map[string]string)
	for _, ck := range c.jar.Cookies(c.base) {
		out[ck.Name] = ck.Value
	}
	return out
}

// SetCookies replaces the jar's cookies for the portal host.
func (c *Client) SetCookies(cookies map[string]string) {
	list := make([]*http.Cookie, 0, len(cookies))
	for name, value := range cookies {
		list = append(list, &http.Cookie{Name: name, Value: value, Path: "/"})
	}
	c.jar.SetCookies(c.base, list)
}

// CaptchaImage fetches a fresh CAPTCHA image. Each image is single-use:
// the portal binds it to the session that requested it.
func (c *Client) CaptchaImage(ctx context.Context) ([]byte, error) {
	body, err := c.get(ctx, captchaPath, nil)
	if err != nil {
		return nil, err
	}
	return body, nil
}

// SubmitLogin posts the encoded credentials and solved CAPTCHA text and
// returns the response body for outcome inspection. The portal answers
// 200 for every outcome and encodes success/failure in the page text.
func (c *Client) SubmitLogin(ctx context.Context, encoded, captcha string) (string, error) {
	form := url.Values{
		"userAccount":  {""},
		"userPassword": {""},
		"RANDOMCODE":   {captcha},
		"encoded":      {encoded},
	}
	body, err := c.postForm(ctx, loginPath, form)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// ProbeAuthenticated requests the main authenticated page and reports
// whether the session is still live.
func (c *Client) ProbeAuthenticated(ctx context.Context) (bool, error) {
	body, err := c.get(ctx, mainPagePath, nil)
	if err != nil {
		return false, err
	}
	return !IsLoginPage(string(body)), nil
}

// GridQuery are the portal's form parameters for one timetable query.
// Week and weekday are submitted twice (a range of one) because the form
// models ranges.
type GridQuery struct {
	Term        string
	RoomPrefix  string
	Week        int
	Weekday     int // 0 queries the whole week
	PeriodStart string
	PeriodEnd   string
}

// FetchGrid runs the portal's three-step grid query: visit the classroom
// query page, preload the timetable frame, then post the query form. The
// returned body is the HTML grid. ErrSessionInvalid is returned when any
// step lands on the login page.
func (c *Client) FetchGrid(ctx context.Context, q GridQuery) (string, error) {
	if _, err := c.get(ctx, classroomPagePath, nil); err != nil {
		return "", err
	}

	initQuery := url.Values{"xnxq": {q.Term}, "kbjcmsid": {timetableModeID}}
	if _, err := c.get(ctx, initPath, initQuery); err != nil {
		return "", err
	}

	day := ""
	if q.Weekday > 0 {
		day = strconv.Itoa(q.Weekday)
	}
	form := url.Values{
		"xnxqh":    {q.Term},
		"kbjcmsid": {timetableModeID},
		"skyx":     {""},
		"xqid":     {""},
		"jzwid":    {""},
		"skjsid":   {""},
		"skjs":     {q.RoomPrefix},
		"zc1":      {strconv.Itoa(q.Week)},
		"zc2":      {strconv.Itoa(q.Week)},
		"skxq1":    {day},
		"skxq2":    {day},
		"jc1":      {q.PeriodStart},
		"jc2":      {q.PeriodEnd},
	}

	body, err := c.postForm(ctx, gridQueryPath, form)
	if err != nil {
		return "", err
	}
	page := string(body)
	if IsLoginPage(page) {
		return "", ErrSessionInvalid
	}
	return page, nil
}

// ErrSessionInvalid signals that the portal redirected to its login
// page. Callers re-authenticate and retry; it is not a LoginFailedError.
var ErrSessionInvalid = errors.New("portal: session invalidated")

// IsLoginPage detects the portal's login page, which it serves with
// status 200 in place of any authenticated content.
func IsLoginPage(body string) bool {
	return strings.Contains(body, "<title>登录</title>") || strings.Contains(body, "用户登录")
}

func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &TransportError{Op: "GET " + path, Err: err}
	}
	u := c.base.JoinPath(path)
	if query != nil {
		u.RawQuery = query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &TransportError{Op: "GET " + path, Err: err}
	}
	req.Header.Set("User-Agent", userAgent)
	return c.do(req)
}

func (c *Client) postForm(ctx context.Context, path string, form url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &TransportError{Op: "POST " + path, Err: err}
	}
	u := c.base.JoinPath(path)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &TransportError{Op: "POST " + path, Err: err}
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Referer", c.base.JoinPath(classroomPagePath).String())
	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	op := req.Method + " " + req.URL.Path
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &TransportError{Op: op, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	return body, nil
}
