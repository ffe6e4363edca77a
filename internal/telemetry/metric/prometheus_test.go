package metric

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func scrape(t *testing.T, h http.Handler) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	return string(body)
}

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()
	if r == nil {
		t.Fatal("NewRegistry() returned nil")
	}
	if r.registry == nil {
		t.Error("registry field is nil")
	}
	if r.FramesAdvanced == nil || r.Rollbacks == nil || r.DatagramsDropped == nil {
		t.Error("metric fields not initialized")
	}
}

func TestGlobal(t *testing.T) {
	if Global() != Global() {
		t.Error("Global() should return the same instance")
	}
}

func TestHandler(t *testing.T) {
	body := scrape(t, Handler())

	if !strings.Contains(body, "go_goroutines") {
		t.Error("expected go_goroutines metric")
	}
	if !strings.Contains(body, "process_") {
		t.Error("expected process metrics")
	}
}

func TestSimulationMetrics(t *testing.T) {
	r := NewRegistry()

	r.ObserveAdvance()
	r.ObserveAdvance()
	r.ObserveRollback(3)
	r.AddPredicted(4)
	r.IncStall()
	r.SetConfirmedFrame(99)
	r.IncDesync()

	body := scrape(t, r.Handler())

	for _, want := range []string{
		"goudanet_frames_advanced_total 2",
		"goudanet_rollbacks_total 1",
		"goudanet_rollback_depth_frames_sum 3",
		"goudanet_predicted_inputs_total 4",
		"goudanet_prediction_stalls_total 1",
		"goudanet_confirmed_frame 99",
		"goudanet_desyncs_total 1",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in scrape output", want)
		}
	}
}

func TestNetworkMetrics(t *testing.T) {
	r := NewRegistry()

	r.IncDropped("malformed")
	r.IncDropped("malformed")
	r.IncDropped("unknown_peer")
	r.RecordInput("accepted")
	r.RecordInput("stale")
	r.RecordDiscovery("malformed")
	r.SetPeersConnected(2)
	r.AddJournalBytes(128)

	body := scrape(t, r.Handler())

	for _, want := range []string{
		`goudanet_datagrams_dropped_total{reason="malformed"} 2`,
		`goudanet_datagrams_dropped_total{reason="unknown_peer"} 1`,
		`goudanet_inputs_received_total{result="accepted"} 1`,
		`goudanet_inputs_received_total{result="stale"} 1`,
		`goudanet_discovery_messages_total{result="malformed"} 1`,
		"goudanet_peers_connected 2",
		"goudanet_journal_write_bytes_total 128",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in scrape output", want)
		}
	}
}

func TestNilRegistry(t *testing.T) {
	var r *Registry

	// None of these may panic.
	r.ObserveAdvance()
	r.ObserveRollback(2)
	r.AddPredicted(1)
	r.IncStall()
	r.SetConfirmedFrame(1)
	r.IncDesync()
	r.IncDropped("x")
	r.RecordInput("x")
	r.RecordDiscovery("x")
	r.SetPeersConnected(1)
	r.AddJournalBytes(1)
}

func TestCollector(t *testing.T) {
	r := NewRegistry()
	c := NewCollector(func() Status {
		return Status{CurrentFrame: 120, ConfirmedFrame: 115, FrameAdvantage: 2}
	})
	if err := r.Register(c); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	body := scrape(t, r.Handler())

	for _, want := range []string{
		"goudanet_session_current_frame 120",
		"goudanet_session_frame_advantage 2",
		"goudanet_session_unconfirmed_frames 4",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in scrape output", want)
		}
	}
}
