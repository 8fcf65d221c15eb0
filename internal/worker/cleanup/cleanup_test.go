package cleanup

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

// --- モック ---

type fakeResult struct {
	rowsAffected int64
	err          error
}

func (r *fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (r *fakeResult) RowsAffected() (int64, error) { return r.rowsAffected, r.err }

type execCall struct {
	query string
	args  []interface{}
}

// mockExecutor はクエリごとの結果を返すExecutorのモック。
type mockExecutor struct {
	mu      sync.Mutex
	calls   []execCall
	results map[string]sql.Result // テーブル名 -> 結果
	errs    map[string]error
}

func (m *mockExecutor) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, execCall{query: query, args: args})
	for table, err := range m.errs {
		if strings.Contains(query, table) {
			return nil, err
		}
	}
	for table, res := range m.results {
		if strings.Contains(query, table) {
			return res, nil
		}
	}
	return &fakeResult{}, nil
}

func (m *mockExecutor) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

type recordedDelete struct {
	target string
	count  int64
}

// recordingMetrics はRecordCleanupDeletedの呼び出しを記録する。
type recordingMetrics struct {
	deletes []recordedDelete
}

func (r *recordingMetrics) RecordHTTPStatus(int)                      {}
func (r *recordingMetrics) RecordRequestLatency(time.Duration)        {}
func (r *recordingMetrics) RecordEntryCreated()                       {}
func (r *recordingMetrics) RecordReportLatency(string, time.Duration) {}
func (r *recordingMetrics) RecordOTPIssued()                          {}
func (r *recordingMetrics) RecordCleanupDeleted(target string, count int64) {
	r.deletes = append(r.deletes, recordedDelete{target, count})
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// --- テスト ---

func TestNewCleanupJob_Defaults(t *testing.T) {
	job := NewCleanupJob(&mockExecutor{}, nil, nil)

	if job == nil {
		t.Fatal("NewCleanupJob は nil を返してはならない")
	}
	if job.SessionRetention != 24*time.Hour {
		t.Errorf("SessionRetention = %v, want 24h", job.SessionRetention)
	}
}

func TestCleanupJob_Run_DeletesSessionsAndOTPCodes(t *testing.T) {
	var buf bytes.Buffer
	mock := &mockExecutor{
		results: map[string]sql.Result{
			"sessions":  &fakeResult{rowsAffected: 4},
			"otp_codes": &fakeResult{rowsAffected: 2},
		},
	}
	rec := &recordingMetrics{}
	job := NewCleanupJob(mock, newTestLogger(&buf), rec)
	job.SessionRetention = 48 * time.Hour

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(mock.calls) != 2 {
		t.Fatalf("ExecContext calls = %d, want 2", len(mock.calls))
	}
	sessionCall := mock.calls[0]
	if !strings.Contains(sessionCall.query, "DELETE FROM sessions") || !strings.Contains(sessionCall.query, "expires_at") {
		t.Errorf("unexpected session query: %s", sessionCall.query)
	}
	if len(sessionCall.args) != 1 || sessionCall.args[0] != "172800 seconds" {
		t.Errorf("session args = %v, want [172800 seconds]", sessionCall.args)
	}
	if !strings.Contains(mock.calls[1].query, "DELETE FROM otp_codes") {
		t.Errorf("unexpected otp query: %s", mock.calls[1].query)
	}

	want := []recordedDelete{{TargetSessions, 4}, {TargetOTPCodes, 2}}
	if len(rec.deletes) != len(want) {
		t.Fatalf("metrics = %v, want %v", rec.deletes, want)
	}
	for i := range want {
		if rec.deletes[i] != want[i] {
			t.Errorf("metrics[%d] = %v, want %v", i, rec.deletes[i], want[i])
		}
	}

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("ログ出力がJSON形式ではありません: %v\nraw: %s", err, buf.String())
	}
	if entry["deleted_count"] != float64(6) {
		t.Errorf("deleted_count = %v, want 6", entry["deleted_count"])
	}
	if entry["deleted_sessions"] != float64(4) || entry["deleted_otp_codes"] != float64(2) {
		t.Errorf("log entry = %v", entry)
	}
}

func TestCleanupJob_Run_SessionError_StopsBeforeOTP(t *testing.T) {
	var buf bytes.Buffer
	mock := &mockExecutor{
		errs: map[string]error{"sessions": errors.New("connection refused")},
	}
	job := NewCleanupJob(mock, newTestLogger(&buf), nil)

	err := job.Run(context.Background())
	if err == nil {
		t.Fatal("Run() should return error")
	}
	if len(mock.calls) != 1 {
		t.Errorf("ExecContext calls = %d, want 1", len(mock.calls))
	}
	if !strings.Contains(buf.String(), "connection refused") {
		t.Errorf("error should be logged, got %s", buf.String())
	}
}

func TestCleanupJob_Run_RowsAffectedError(t *testing.T) {
	var buf bytes.Buffer
	mock := &mockExecutor{
		results: map[string]sql.Result{
			"otp_codes": &fakeResult{err: errors.New("driver does not support RowsAffected")},
		},
	}
	job := NewCleanupJob(mock, newTestLogger(&buf), nil)

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("Run() should return error when RowsAffected fails")
	}
}

func TestCleanupJob_Run_Idempotent(t *testing.T) {
	var buf bytes.Buffer
	job := NewCleanupJob(&mockExecutor{}, newTestLogger(&buf), nil)

	for i := 0; i < 2; i++ {
		if err := job.Run(context.Background()); err != nil {
			t.Fatalf("Run() #%d error = %v", i+1, err)
		}
	}
}

func TestCleanupJob_Start_RunsImmediatelyAndStopsOnCancel(t *testing.T) {
	var buf bytes.Buffer
	mock := &mockExecutor{}
	job := NewCleanupJob(mock, newTestLogger(&buf), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		job.Start(ctx, time.Hour)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for mock.callCount() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if mock.callCount() < 2 {
		t.Fatalf("initial run did not execute, calls = %d", mock.callCount())
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
}
