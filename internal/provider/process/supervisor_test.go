package process

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func collect(t *testing.T, s *Supervisor) []Record {
	t.Helper()
	var records []Record
	for rec := range s.Records() {
		records = append(records, rec)
	}
	return records
}

func TestSingleRecord(t *testing.T) {
	s, err := Start(context.Background(), Config{
		Command: "echo",
		Args:    []string{`{"type":"message","text":"hello"}`},
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	records := collect(t, s)
	if err := s.Err(); err != nil {
		t.Fatalf("Err() = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}

	obj, ok := records[0].Object()
	if !ok {
		t.Fatal("record is not an object")
	}
	if obj["type"] != "message" || obj["text"] != "hello" {
		t.Errorf("record = %v", obj)
	}
}

func TestMalformedLinesDropped(t *testing.T) {
	script := `echo '{"n":1}'; echo 'not json'; echo '{"n":2}'; echo '{broken'; echo '{"n":3}'`
	s, err := Start(context.Background(), Config{
		Command: "sh",
		Args:    []string{"-c", script},
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	records := collect(t, s)
	if err := s.Err(); err != nil {
		t.Fatalf("Err() = %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}
	for i, rec := range records {
		obj, _ := rec.Object()
		if n, _ := obj["n"].(float64); int(n) != i+1 {
			t.Errorf("record %d = %v, order not preserved", i, obj)
		}
		if rec.Seq != i+1 {
			t.Errorf("record %d Seq = %d", i, rec.Seq)
		}
	}
}

func TestStallTimeout(t *testing.T) {
	start := time.Now()
	s, err := Start(context.Background(), Config{
		Command:      "sh",
		Args:         []string{"-c", `echo '{"n":1}'; sleep 10`},
		StallTimeout: 200 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	records := collect(t, s)
	elapsed := time.Since(start)

	if len(records) != 1 {
		t.Errorf("got %d records, want 1", len(records))
	}
	if err := s.Err(); !errors.Is(err, ErrStalled) {
		t.Errorf("Err() = %v, want ErrStalled", err)
	}
	if elapsed > 5*time.Second {
		t.Errorf("stall kill took %v", elapsed)
	}
}

func TestStallTimerResetsOnUnparseableLines(t *testing.T) {
	// Lines arrive every 100ms but none parse; the 300ms stall timer must
	// keep resetting on arrival and the run must end cleanly at exit 0.
	script := `for i in 1 2 3 4 5; do echo "noise $i"; sleep 0.1; done`
	s, err := Start(context.Background(), Config{
		Command:      "sh",
		Args:         []string{"-c", script},
		StallTimeout: 300 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	records := collect(t, s)
	if len(records) != 0 {
		t.Errorf("got %d records, want 0", len(records))
	}
	if err := s.Err(); err != nil {
		t.Errorf("Err() = %v, want nil", err)
	}
}

func TestNonZeroExitCarriesStderrTail(t *testing.T) {
	script := `echo '{"ok":true}'; echo 'fatal: credentials rotted' >&2; exit 3`
	s, err := Start(context.Background(), Config{
		Command: "sh",
		Args:    []string{"-c", script},
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	records := collect(t, s)
	if len(records) != 1 {
		t.Errorf("got %d records, want 1", len(records))
	}

	var exitErr *ExitError
	if !errors.As(s.Err(), &exitErr) {
		t.Fatalf("Err() = %v, want *ExitError", s.Err())
	}
	if exitErr.Code != 3 {
		t.Errorf("Code = %d, want 3", exitErr.Code)
	}
	if !strings.Contains(exitErr.Stderr, "credentials rotted") {
		t.Errorf("Stderr = %q, missing diagnostic", exitErr.Stderr)
	}
}

func TestCleanExitEndsWithoutError(t *testing.T) {
	s, err := Start(context.Background(), Config{
		Command: "sh",
		Args:    []string{"-c", `echo '{"done":true}'`},
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	collect(t, s)
	if err := s.Err(); err != nil {
		t.Errorf("Err() = %v, want nil", err)
	}
}

func TestCancellationIsGraceful(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s, err := Start(ctx, Config{
		Command:   "sh",
		Args:      []string{"-c", `echo '{"n":1}'; sleep 30`},
		KillGrace: 200 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	// Take the first record, then cancel mid-stream.
	select {
	case <-s.Records():
	case <-time.After(5 * time.Second):
		t.Fatal("no first record")
	}
	cancel()

	start := time.Now()
	for range s.Records() {
	}
	if err := s.Err(); err != nil {
		t.Errorf("Err() after cancellation = %v, want nil", err)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("termination after cancel took %v", elapsed)
	}
}

func TestStopKillsAbandonedProcess(t *testing.T) {
	s, err := Start(context.Background(), Config{
		Command:   "sleep",
		Args:      []string{"30"},
		KillGrace: 200 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	// Consumer abandons without reading anything.
	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return")
	}

	for range s.Records() {
	}
	if err := s.Err(); err != nil {
		t.Errorf("Err() after Stop = %v, want nil", err)
	}

	// Idempotent.
	s.Stop()
}

func TestStdinDelivered(t *testing.T) {
	s, err := Start(context.Background(), Config{
		Command: "sh",
		Args:    []string{"-c", "cat"},
		Stdin:   strings.NewReader(`{"from":"stdin"}` + "\n"),
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	records := collect(t, s)
	if err := s.Err(); err != nil {
		t.Fatalf("Err() = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	obj, _ := records[0].Object()
	if obj["from"] != "stdin" {
		t.Errorf("record = %v", obj)
	}
}

func TestLargeLine(t *testing.T) {
	// A record bigger than the scanner's initial buffer must still parse.
	script := `printf '{"pad":"'; head -c 100000 /dev/zero | tr '\0' 'x'; printf '"}\n'`
	s, err := Start(context.Background(), Config{
		Command: "sh",
		Args:    []string{"-c", script},
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	records := collect(t, s)
	if err := s.Err(); err != nil {
		t.Fatalf("Err() = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	obj, _ := records[0].Object()
	pad, _ := obj["pad"].(string)
	if len(pad) != 100000 {
		t.Errorf("pad length = %d, want 100000", len(pad))
	}
}

func TestEmptyCommandRejected(t *testing.T) {
	if _, err := Start(context.Background(), Config{}); err == nil {
		t.Error("Start accepted empty command")
	}
}
