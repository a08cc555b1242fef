package admin

import (
	"errors"
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"magma.io/key"
	"magma.io/ring"
	"magma.io/routing"
)

func TestHandlerServesStatusPage(t *testing.T) {
	r := routing.New(func(addr string) (net.Conn, error) { return nil, errors.New("unused") })
	n := &ring.Node{Name: "n0", FQDN: "n0.example.com", IP: net.ParseIP("127.0.0.1"), Port: 12000, Start: key.Zero, Stop: key.Max}
	r.Ring().Load().Insert(n)

	s := New(r, "## changelog\n\nfirst release")
	s.RecordRefresh(RefreshEvent{At: time.Now(), Participants: 1})

	req := httptest.NewRequest("GET", "/", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "n0") {
		t.Errorf("body missing node name n0: %s", body)
	}
}
