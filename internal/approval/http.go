package approval

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/codefionn/werkbank/internal/logger"
)

// HTTPGate exposes pending approval requests over a local HTTP endpoint,
// for operators driving the sandbox from another process. One request is
// pending at a time; GET /approval shows it, POST /approval/decision
// resolves it.
type HTTPGate struct {
	server   *http.Server
	listener net.Listener

	mu       sync.Mutex
	pending  *pendingRequest
	sequence uint64
}

type pendingRequest struct {
	id       uint64
	req      Request
	decision chan bool
}

type pendingPayload struct {
	ID      uint64 `json:"id"`
	Kind    string `json:"kind"`
	Path    string `json:"path"`
	Preview string `json:"preview"`
}

type decisionPayload struct {
	ID      uint64 `json:"id"`
	Approve bool   `json:"approve"`
}

// NewHTTPGate binds the approval endpoint to addr and starts serving.
func NewHTTPGate(addr string) (*HTTPGate, error) {
	g := &HTTPGate{}

	router := httprouter.New()
	router.GET("/approval", g.handleGet)
	router.POST("/approval/decision", g.handlePost)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	g.listener = ln
	g.server = &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := g.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			logger.Error("approval: http gate stopped: %v", err)
		}
	}()

	logger.Info("approval: http gate listening on %s", ln.Addr())
	return g, nil
}

// Addr returns the address the gate is listening on.
func (g *HTTPGate) Addr() string {
	return g.listener.Addr().String()
}

// Close shuts the endpoint down. A pending Decide call returns denial.
func (g *HTTPGate) Close() error {
	g.mu.Lock()
	if g.pending != nil {
		close(g.pending.decision)
		g.pending = nil
	}
	g.mu.Unlock()
	return g.server.Close()
}

func (g *HTTPGate) Decide(ctx context.Context, req Request) (bool, error) {
	g.mu.Lock()
	g.sequence++
	p := &pendingRequest{
		id:       g.sequence,
		req:      req,
		decision: make(chan bool, 1),
	}
	g.pending = p
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		if g.pending == p {
			g.pending = nil
		}
		g.mu.Unlock()
	}()

	select {
	case <-ctx.Done():
		logger.Info("approval: timed out waiting for decision on %s", req.Path)
		return false, nil
	case approved, ok := <-p.decision:
		if !ok {
			return false, nil
		}
		return approved, nil
	}
}

func (g *HTTPGate) handleGet(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	g.mu.Lock()
	p := g.pending
	g.mu.Unlock()

	if p == nil {
		http.Error(w, "no pending request", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(pendingPayload{
		ID:      p.id,
		Kind:    string(p.req.Kind),
		Path:    p.req.Path,
		Preview: p.req.Preview,
	})
}

func (g *HTTPGate) handlePost(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var payload decisionPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid decision payload", http.StatusBadRequest)
		return
	}

	g.mu.Lock()
	p := g.pending
	if p == nil || p.id != payload.ID {
		g.mu.Unlock()
		http.Error(w, "no matching pending request", http.StatusConflict)
		return
	}
	g.pending = nil
	g.mu.Unlock()

	p.decision <- payload.Approve
	w.WriteHeader(http.StatusNoContent)
}
