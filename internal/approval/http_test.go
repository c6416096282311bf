package approval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"
)

func startTestGate(t *testing.T) *HTTPGate {
	t.Helper()
	gate, err := NewHTTPGate("127.0.0.1:0")
	if err != nil {
		t.Fatalf("NewHTTPGate failed: %v", err)
	}
	t.Cleanup(func() { gate.Close() })
	return gate
}

func TestHTTPGateRoundTrip(t *testing.T) {
	gate := startTestGate(t)

	type result struct {
		ok  bool
		err error
	}
	done := make(chan result, 1)
	go func() {
		ok, err := gate.Decide(context.Background(), Request{
			Kind:    KindUpdate,
			Path:    "pkg/a.go",
			Preview: "-x\n+y",
		})
		done <- result{ok, err}
	}()

	// Poll until the pending request is visible.
	base := "http://" + gate.Addr()
	var pending pendingPayload
	deadline := time.Now().Add(2 * time.Second)
	for {
		resp, err := http.Get(base + "/approval")
		if err == nil && resp.StatusCode == http.StatusOK {
			err = json.NewDecoder(resp.Body).Decode(&pending)
			resp.Body.Close()
			if err != nil {
				t.Fatalf("decode pending: %v", err)
			}
			break
		}
		if resp != nil {
			resp.Body.Close()
		}
		if time.Now().After(deadline) {
			t.Fatal("pending request never appeared")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if pending.Kind != "update" || pending.Path != "pkg/a.go" {
		t.Errorf("unexpected pending payload: %+v", pending)
	}

	body, _ := json.Marshal(decisionPayload{ID: pending.ID, Approve: true})
	resp, err := http.Post(base+"/approval/decision", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post decision: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("decision status: %d", resp.StatusCode)
	}

	select {
	case r := <-done:
		if r.err != nil || !r.ok {
			t.Errorf("Decide returned ok=%v err=%v", r.ok, r.err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Decide did not return after decision")
	}
}

func TestHTTPGateNoPending(t *testing.T) {
	gate := startTestGate(t)

	resp, err := http.Get(fmt.Sprintf("http://%s/approval", gate.Addr()))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 with no pending request, got %d", resp.StatusCode)
	}
}

func TestHTTPGateStaleDecisionRejected(t *testing.T) {
	gate := startTestGate(t)

	body, _ := json.Marshal(decisionPayload{ID: 99, Approve: true})
	resp, err := http.Post(fmt.Sprintf("http://%s/approval/decision", gate.Addr()),
		"application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("expected 409 for unmatched decision, got %d", resp.StatusCode)
	}
}

func TestHTTPGateContextTimeout(t *testing.T) {
	gate := startTestGate(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	ok, err := gate.Decide(ctx, Request{Kind: KindDelete, Path: "gone.txt"})
	if err != nil {
		t.Fatalf("Decide failed: %v", err)
	}
	if ok {
		t.Error("timeout must deny")
	}
}
