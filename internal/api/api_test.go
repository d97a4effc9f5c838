package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"jobspool/internal/store"
	logx "jobspool/pkg/logx"
)

type fakeScheduler struct {
	submitted []string
	cancelled []string
	snap      store.Snapshot
	submitErr error
	cancelErr error
}

func (f *fakeScheduler) Submit(_ context.Context, name, command string, priority int) error {
	if f.submitErr != nil {
		return f.submitErr
	}
	f.submitted = append(f.submitted, name)
	return nil
}

func (f *fakeScheduler) Cancel(_ context.Context, name string) error {
	if f.cancelErr != nil {
		return f.cancelErr
	}
	f.cancelled = append(f.cancelled, name)
	return nil
}

func (f *fakeScheduler) ReapOnce(context.Context) int { return 2 }

func (f *fakeScheduler) Snapshot() store.Snapshot { return f.snap }

func doRequest(t *testing.T, sched Scheduler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	r := NewRouter(sched, logx.Nop())
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestSubmitAccepted(t *testing.T) {
	t.Parallel()
	f := &fakeScheduler{}
	rec := doRequest(t, f, http.MethodPost, "/jobs", `{"name":"etl","command":"true","priority":5}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	if len(f.submitted) != 1 || f.submitted[0] != "etl" {
		t.Fatalf("submitted = %v", f.submitted)
	}
}

func TestSubmitDuplicateConflict(t *testing.T) {
	t.Parallel()
	f := &fakeScheduler{submitErr: store.ErrDuplicate}
	rec := doRequest(t, f, http.MethodPost, "/jobs", `{"name":"etl","command":"true"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
}

func TestSubmitMalformedBody(t *testing.T) {
	t.Parallel()
	f := &fakeScheduler{}
	rec := doRequest(t, f, http.MethodPost, "/jobs", `{"name":`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if len(f.submitted) != 0 {
		t.Fatalf("submitted = %v, want none", f.submitted)
	}
}

func TestCancel(t *testing.T) {
	t.Parallel()
	f := &fakeScheduler{}
	rec := doRequest(t, f, http.MethodDelete, "/jobs/etl", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(f.cancelled) != 1 || f.cancelled[0] != "etl" {
		t.Fatalf("cancelled = %v", f.cancelled)
	}
}

func TestCancelUnknown(t *testing.T) {
	t.Parallel()
	f := &fakeScheduler{cancelErr: store.ErrNotFound}
	rec := doRequest(t, f, http.MethodDelete, "/jobs/ghost", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestStatus(t *testing.T) {
	t.Parallel()
	f := &fakeScheduler{snap: store.Snapshot{
		QueueLen: 1,
		Queue:    []store.QueuedJob{{Name: "etl", Priority: 4, Command: "true"}},
	}}
	rec := doRequest(t, f, http.MethodGet, "/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var snap store.Snapshot
	if err := json.NewDecoder(rec.Body).Decode(&snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.QueueLen != 1 || len(snap.Queue) != 1 || snap.Queue[0].Name != "etl" {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestReap(t *testing.T) {
	t.Parallel()
	rec := doRequest(t, &fakeScheduler{}, http.MethodPost, "/reap", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var out map[string]int
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out["reaped"] != 2 {
		t.Fatalf("reaped = %d, want 2", out["reaped"])
	}
}

func TestHealthz(t *testing.T) {
	t.Parallel()
	rec := doRequest(t, &fakeScheduler{}, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}
