package runlog

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestSink_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.txt")

	sink, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer sink.Close()

	start := time.Now().Truncate(time.Second)
	sink.LogStart(start)
	sink.Append(Record{
		Sequence:   0,
		PID:        1234,
		StartTime:  start,
		EndTime:    start.Add(2 * time.Second),
		ExitCode:   0,
		ExitReason: "success",
	})
	sink.LogStart(start.Add(30 * time.Second))
	sink.Append(Record{
		Sequence:   1,
		PID:        1250,
		StartTime:  start.Add(30 * time.Second),
		EndTime:    start.Add(31 * time.Second),
		ExitCode:   1,
		ExitReason: "error",
	})

	records, err := ReadRecords(path)
	if err != nil {
		t.Fatalf("ReadRecords() failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Sequence != 0 || records[1].Sequence != 1 {
		t.Errorf("sequences = %d, %d", records[0].Sequence, records[1].Sequence)
	}
	if records[1].ExitCode != 1 {
		t.Errorf("record 1 exit code = %d, expected 1", records[1].ExitCode)
	}
	if records[0].Duration() != 2*time.Second {
		t.Errorf("record 0 duration = %v, expected 2s", records[0].Duration())
	}
}

func TestSink_StartLineFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.txt")

	sink, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer sink.Close()

	ts := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	sink.LogStart(ts)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log: %v", err)
	}
	expected := "Running at 2026-08-24T12:00:00Z\n"
	if string(data) != expected {
		t.Errorf("start line = %q, expected %q", string(data), expected)
	}
}

func TestReadRecords_SkipsChildOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.txt")

	content := strings.Join([]string{
		"Running at 2026-08-24T12:00:00Z",
		"some child stdout noise",
		"{not valid json",
		`{"sequence":0,"start_time":"2026-08-24T12:00:00Z","end_time":"2026-08-24T12:00:01Z","exit_code":0}`,
		`{"unrelated":"json without a start_time"}`,
	}, "\n") + "\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to seed log: %v", err)
	}

	records, err := ReadRecords(path)
	if err != nil {
		t.Fatalf("ReadRecords() failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].ExitCode != 0 {
		t.Errorf("exit code = %d, expected 0", records[0].ExitCode)
	}
}

func TestSink_ChildWriterSharesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.txt")

	sink, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer sink.Close()

	if _, err := sink.ChildWriter().Write([]byte("child says hello\n")); err != nil {
		t.Fatalf("ChildWriter write failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log: %v", err)
	}
	if !strings.Contains(string(data), "child says hello") {
		t.Errorf("child output missing from log: %q", string(data))
	}
	if sink.Degraded() {
		t.Error("sink should not be degraded after a successful write")
	}
}

func TestSink_DegradedModeFallsBackToStderr(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.txt")

	sink, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer sink.Close()

	origStderr := os.Stderr
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("failed to create pipe: %v", err)
	}
	os.Stderr = w
	defer func() { os.Stderr = origStderr }()

	// Make the sink unwritable mid-run, as if the filesystem went away.
	sink.file.Close()

	start := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	sink.LogStart(start)
	if !sink.Degraded() {
		t.Error("sink should report degraded after a failed write")
	}

	// The next write reopens the path and recovers.
	sink.Append(Record{
		Sequence:   0,
		StartTime:  start,
		EndTime:    start.Add(time.Second),
		ExitCode:   0,
		ExitReason: "success",
	})
	if sink.Degraded() {
		t.Error("sink should recover once the log is writable again")
	}

	w.Close()
	os.Stderr = origStderr
	captured, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("failed to read captured stderr: %v", err)
	}
	if !strings.Contains(string(captured), "unwritable") {
		t.Errorf("degraded sink should surface the failure on stderr, got %q", string(captured))
	}
	if !strings.Contains(string(captured), "Running at ") {
		t.Errorf("degraded write should land on stderr, got %q", string(captured))
	}
	if !strings.Contains(string(captured), "writable again") {
		t.Errorf("recovery should be announced on stderr, got %q", string(captured))
	}

	// The record written after recovery is on disk and readable.
	records, err := ReadRecords(path)
	if err != nil {
		t.Fatalf("ReadRecords() failed: %v", err)
	}
	if len(records) != 1 || records[0].ExitReason != "success" {
		t.Errorf("records after recovery = %+v, expected the one appended record", records)
	}
}

func TestReadRecords_MissingFile(t *testing.T) {
	if _, err := ReadRecords("/nonexistent/log.txt"); err == nil {
		t.Error("expected error for missing log file")
	}
}
