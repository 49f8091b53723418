package freerooms

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/W1ndysBot/QFNUGetFreeClassrooms/internal/portal"
	"github.com/W1ndysBot/QFNUGetFreeClassrooms/internal/roster"
)

const testLoginPage = `<html><head><title>登录</title></head><body>用户登录</body></html>`

// testGridHTML is the portal grid for one week with two slots per day:
// 格物楼A101 is occupied Wednesday 0102, everything else is free.
func testGridHTML() string {
	var b strings.Builder
	b.WriteString(`<html><body><table id="kbtable"><thead>`)
	b.WriteString("<tr><th>教室</th>")
	for _, day := range []string{"星期一", "星期二", "星期三", "星期四", "星期五", "星期六", "星期日"} {
		fmt.Fprintf(&b, `<th colspan="2">%s</th>`, day)
	}
	b.WriteString(`</tr><tr><td>教室\节次</td>`)
	for i := 0; i < 7; i++ {
		b.WriteString("<td>0102</td><td>0304</td>")
	}
	b.WriteString("</tr></thead>")

	b.WriteString("<tr><td>格物楼A101</td>")
	for col := 0; col < 14; col++ {
		if col == 4 {
			b.WriteString(`<td><div class="kbcontent1">高等数学李雷<br/>(1-18周)<br/>23数学班<br/>格物楼A101</div></td>`)
		} else {
			b.WriteString("<td>&nbsp;</td>")
		}
	}
	b.WriteString("</tr><tr><td>格物楼A102</td>")
	for col := 0; col < 14; col++ {
		b.WriteString("<td>&nbsp;</td>")
	}
	b.WriteString("</tr></table></body></html>")
	return b.String()
}

// gridPortal fakes the whole portal surface a query touches: login flow,
// the classroom query page, the frame preload, and the grid POST.
type gridPortal struct {
	mu sync.Mutex

	loginHits int
	gridHits  int

	// dropSessions makes the first N grid POSTs answer with the login
	// page, simulating a mid-query session expiry.
	dropSessions int

	lastGridForm map[string]string
}

func (p *gridPortal) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch r.URL.Path {
	case "/jsxsd/verifycode.servlet":
		w.Write([]byte("png-bytes"))
	case "/jsxsd/xk/LoginToXk":
		p.loginHits++
		http.SetCookie(w, &http.Cookie{Name: "JSESSIONID", Value: "tok", Path: "/"})
		w.Write([]byte("<html>学生个人中心</html>"))
	case "/jsxsd/framework/xsMain.jsp":
		if ck, err := r.Cookie("JSESSIONID"); err == nil && ck.Value == "tok" {
			w.Write([]byte("<html>学生个人中心</html>"))
		} else {
			w.Write([]byte(testLoginPage))
		}
	case "/jsxsd/kbcx/kbxx_classroom", "/jsxsd/kbxx/initJc":
		w.Write([]byte("<html>ok</html>"))
	case "/jsxsd/kbcx/kbxx_classroom_ifr":
		p.gridHits++
		if p.dropSessions > 0 {
			p.dropSessions--
			w.Write([]byte(testLoginPage))
			return
		}
		r.ParseForm()
		p.lastGridForm = map[string]string{}
		for key := range r.PostForm {
			p.lastGridForm[key] = r.PostFormValue(key)
		}
		w.Write([]byte(testGridHTML()))
	default:
		http.NotFound(w, r)
	}
}

type okSolver struct{}

func (okSolver) Solve(ctx context.Context, image []byte) (string, error) { return "abcd", nil }

func newTestService(t *testing.T) (*gridPortal, *Service) {
	t.Helper()
	fp := &gridPortal{}
	srv := httptest.NewServer(fp)
	t.Cleanup(srv.Close)

	client, err := portal.NewClient(srv.URL, 1000, 5*time.Second)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	sessions := portal.NewSessionManager(client, okSolver{}, nil, "2023001", "secret", 30*time.Second)

	svc := &Service{
		Sessions:   sessions,
		Roster:     roster.FromNames([]string{"格物楼A101", "格物楼A102"}),
		StartDates: map[string]string{"2024-2025-2": "2025-02-24"},
		// Wednesday of week 3.
		Now: func() time.Time {
			return time.Date(2025, time.March, 12, 10, 0, 0, 0, time.Local)
		},
	}
	return fp, svc
}

func TestGetFreeRooms(t *testing.T) {
	fp, svc := newTestService(t)

	result, err := svc.GetFreeRooms(context.Background(), QueryOptions{Period: "0102"})
	if err != nil {
		t.Fatalf("GetFreeRooms: %v", err)
	}

	if result.Term != "2024-2025-2" || result.Week != 3 || result.Weekday != 3 {
		t.Errorf("resolved term/week/weekday = %s/%d/%d", result.Term, result.Week, result.Weekday)
	}
	if !reflect.DeepEqual(result.FreeRooms, []string{"格物楼A102"}) {
		t.Errorf("free rooms = %v, want [格物楼A102]", result.FreeRooms)
	}

	form := fp.lastGridForm
	if form["xnxqh"] != "2024-2025-2" {
		t.Errorf("grid form term = %q", form["xnxqh"])
	}
	if form["zc1"] != "3" || form["zc2"] != "3" {
		t.Errorf("grid form week range = %q-%q", form["zc1"], form["zc2"])
	}
	if form["skxq1"] != "3" || form["skxq2"] != "3" {
		t.Errorf("grid form weekday range = %q-%q", form["skxq1"], form["skxq2"])
	}
	if form["jc1"] != "1" || form["jc2"] != "2" {
		t.Errorf("grid form period range = %q-%q", form["jc1"], form["jc2"])
	}
}

func TestGetFreeRooms_WeekdayOverride(t *testing.T) {
	_, svc := newTestService(t)

	result, err := svc.GetFreeRooms(context.Background(), QueryOptions{WeekdayOverride: 5, Period: "0102"})
	if err != nil {
		t.Fatalf("GetFreeRooms: %v", err)
	}
	if result.Weekday != 5 {
		t.Errorf("weekday = %d, want override 5", result.Weekday)
	}
	// A101's Wednesday class does not occupy Friday.
	if len(result.FreeRooms) != 2 {
		t.Errorf("free rooms = %v, want both", result.FreeRooms)
	}
}

func TestGetFreeRooms_InvalidOverride(t *testing.T) {
	_, svc := newTestService(t)
	if _, err := svc.GetFreeRooms(context.Background(), QueryOptions{WeekdayOverride: 8}); err == nil {
		t.Fatal("expected error for weekday override out of range")
	}
}

func TestGetFreeRooms_BuildingPrefix(t *testing.T) {
	fp, svc := newTestService(t)
	svc.Roster = roster.FromNames([]string{"格物楼A101", "格物楼A102", "JS102"})

	result, err := svc.GetFreeRooms(context.Background(), QueryOptions{BuildingPrefix: "格物楼", Period: "0102"})
	if err != nil {
		t.Fatalf("GetFreeRooms: %v", err)
	}
	if !reflect.DeepEqual(result.FreeRooms, []string{"格物楼A102"}) {
		t.Errorf("free rooms = %v", result.FreeRooms)
	}
	if fp.lastGridForm["skjs"] != "格物楼" {
		t.Errorf("grid form room prefix = %q", fp.lastGridForm["skjs"])
	}
}

func TestGetFreeRooms_RetriesOnceOnSessionDrop(t *testing.T) {
	fp, svc := newTestService(t)
	fp.dropSessions = 1

	result, err := svc.GetFreeRooms(context.Background(), QueryOptions{Period: "0102"})
	if err != nil {
		t.Fatalf("GetFreeRooms: %v", err)
	}
	if !reflect.DeepEqual(result.FreeRooms, []string{"格物楼A102"}) {
		t.Errorf("free rooms = %v", result.FreeRooms)
	}

	fp.mu.Lock()
	defer fp.mu.Unlock()
	if fp.gridHits != 2 {
		t.Errorf("grid fetches = %d, want retry after re-login", fp.gridHits)
	}
	if fp.loginHits != 2 {
		t.Errorf("logins = %d, want a fresh login for the retry", fp.loginHits)
	}
}
