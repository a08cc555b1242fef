// Package admin implements a small HTTP status page exposing the
// current ring topology and recent refresh history, gzip-compressed.
// Not present in the original distillation; added because the
// configuration surface already exposes debug-mask/debug-all/foreground
// (§6) and a daemonized node otherwise has no visible operational state.
// Grounded on upspin.io/serverutil/frontend's gziphandler+blackfriday
// pattern (serverutil/frontend/frontend.go), generalized from "serve
// go-get meta tags" to "serve ring/topology status"; it is pure
// observability, decoupled from the storage/routing path exactly as the
// teacher ships frontend alongside, not inside, its RPC services.
package admin // import "magma.io/admin"

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"
	"sync"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/russross/blackfriday"

	"magma.io/log"
	"magma.io/ring"
	"magma.io/routing"
)

// RefreshEvent records one completed topology refresh for the status
// page's history panel.
type RefreshEvent struct {
	At           time.Time
	Participants int
	Err          error
}

// Server serves the status page.
type Server struct {
	router *routing.Router
	notes  string // Markdown changelog/notes panel content.

	mu      sync.Mutex
	history []RefreshEvent
}

// New returns a Server reporting on router's installed ring. notes is
// rendered as the page's Markdown changelog/notes panel.
func New(router *routing.Router, notes string) *Server {
	return &Server{router: router, notes: notes}
}

// RecordRefresh appends ev to the server's refresh history, retaining
// the most recent 20 events.
func (s *Server) RecordRefresh(ev RefreshEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, ev)
	if len(s.history) > 20 {
		s.history = s.history[len(s.history)-20:]
	}
}

// Handler returns the gzip-compressed HTTP handler for the status page
// (the same gziphandler.GzipHandler wrapping the teacher's frontend
// server applies to its whole mux).
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleStatus)
	return gziphandler.GzipHandler(mux)
}

var pageTmpl = template.Must(template.New("status").Parse(`<!DOCTYPE html>
<html><head><title>magma node status</title></head><body>
<h1>Ring topology</h1>
<p>{{.Participants}} participant(s)</p>
<table border="1">
<tr><th>Name</th><th>FQDN</th><th>Addr</th><th>Start</th><th>Stop</th></tr>
{{range .Nodes}}<tr><td>{{.Name}}</td><td>{{.FQDN}}</td><td>{{.Addr}}</td><td>{{.Start}}</td><td>{{.Stop}}</td></tr>
{{end}}
</table>
<h1>Recent refreshes</h1>
<table border="1">
<tr><th>At</th><th>Participants</th><th>Error</th></tr>
{{range .History}}<tr><td>{{.At}}</td><td>{{.Participants}}</td><td>{{.Err}}</td></tr>
{{end}}
</table>
<h1>Notes</h1>
{{.NotesHTML}}
</body></html>
`))

type nodeRow struct {
	Name, FQDN, Addr, Start, Stop string
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	r2 := s.router.Ring().Load()
	nodes := make([]nodeRow, 0, r2.Participants())
	for _, n := range nodesOf(r2) {
		nodes = append(nodes, nodeRow{
			Name: n.Name, FQDN: n.FQDN, Addr: n.Addr(),
			Start: n.Start.Armour(), Stop: n.Stop.Armour(),
		})
	}

	s.mu.Lock()
	history := append([]RefreshEvent(nil), s.history...)
	s.mu.Unlock()

	notesHTML := blackfriday.MarkdownCommon([]byte(s.notes))

	data := struct {
		Participants int
		Nodes        []nodeRow
		History      []RefreshEvent
		NotesHTML    template.HTML
	}{
		Participants: r2.Participants(),
		Nodes:        nodes,
		History:      history,
		NotesHTML:    template.HTML(notesHTML),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	var buf bytes.Buffer
	if err := pageTmpl.Execute(&buf, data); err != nil {
		log.Chan(log.ChannelAdmin, "admin: rendering status page: %v", err)
		http.Error(w, fmt.Sprintf("internal error: %v", err), http.StatusInternalServerError)
		return
	}
	buf.WriteTo(w)
}

func nodesOf(r *ring.Ring) []*ring.Node {
	return r.Nodes()
}
