package remote

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rthompson/todosync/internal/model"
)

// newTestGraph points a Graph adapter at a local test server.
func newTestGraph(t *testing.T, handler http.HandlerFunc) *Graph {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	g := NewGraph(StaticToken("test-token"), srv.Client())
	g.SetBaseURL(srv.URL)
	return g
}

func TestListContainers(t *testing.T) {
	g := newTestGraph(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/me/todo/lists" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Authorization = %q", got)
		}
		io.WriteString(w, `{"value":[
			{"id":"l1","displayName":"Tasks"},
			{"id":"l2","displayName":"Groceries"}
		]}`)
	})

	got, err := g.ListContainers(context.Background())
	if err != nil {
		t.Fatalf("ListContainers failed: %v", err)
	}
	if len(got) != 2 || got[0].RemoteID != "l1" || got[1].Name != "Groceries" {
		t.Errorf("containers = %+v", got)
	}
}

func TestListTasksMapsWireFields(t *testing.T) {
	g := newTestGraph(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/me/todo/lists/l1/tasks" {
			t.Errorf("path = %s", r.URL.Path)
		}
		io.WriteString(w, `{"value":[{
			"id":"t1",
			"title":"Homework",
			"status":"completed",
			"importance":"high",
			"body":{"content":"chapter 4","contentType":"text"},
			"dueDateTime":{"dateTime":"2026-09-01T00:00:00.0000000","timeZone":"UTC"},
			"reminderDateTime":{"dateTime":"2026-08-31T18:00:00","timeZone":"UTC"},
			"isReminderOn":true
		}]}`)
	})

	got, err := g.ListTasks(context.Background(), "l1")
	if err != nil {
		t.Fatalf("ListTasks failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d tasks", len(got))
	}
	task := got[0]
	if task.RemoteID != "t1" || task.Title != "Homework" {
		t.Errorf("identity fields: %+v", task)
	}
	if !task.Completed || !task.Important {
		t.Errorf("status mapping: completed=%v important=%v", task.Completed, task.Important)
	}
	if task.Notes != "chapter 4" {
		t.Errorf("Notes = %q", task.Notes)
	}
	wantDue := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	if task.DueAt == nil || !task.DueAt.Equal(wantDue) {
		t.Errorf("DueAt = %v, want %v", task.DueAt, wantDue)
	}
	if task.ReminderAt == nil {
		t.Error("ReminderAt not parsed")
	}
}

func TestListTasksIgnoresReminderWhenOff(t *testing.T) {
	g := newTestGraph(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"value":[{
			"id":"t1","title":"x",
			"reminderDateTime":{"dateTime":"2026-08-31T18:00:00","timeZone":"UTC"},
			"isReminderOn":false
		}]}`)
	})

	got, err := g.ListTasks(context.Background(), "l1")
	if err != nil {
		t.Fatalf("ListTasks failed: %v", err)
	}
	if got[0].ReminderAt != nil {
		t.Error("reminder kept despite isReminderOn=false")
	}
}

func TestCreateTaskPayload(t *testing.T) {
	due := time.Date(2026, 9, 15, 10, 30, 0, 0, time.FixedZone("CEST", 2*3600))
	var body map[string]json.RawMessage

	g := newTestGraph(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("bad body: %v", err)
		}
		io.WriteString(w, `{"id":"t9","title":"file taxes","status":"notStarted","importance":"high"}`)
	})

	got, err := g.CreateTask(context.Background(), "l1", model.Draft{
		Title:     "file taxes",
		Notes:     "gather receipts",
		Important: true,
		DueAt:     &due,
	})
	if err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	if got.RemoteID != "t9" || !got.Important {
		t.Errorf("created = %+v", got)
	}

	var wd wireDateTime
	if err := json.Unmarshal(body["dueDateTime"], &wd); err != nil {
		t.Fatalf("dueDateTime missing: %v", err)
	}
	// Timestamps go over the wire in UTC.
	if wd.DateTime != "2026-09-15T08:30:00" || wd.TimeZone != "UTC" {
		t.Errorf("dueDateTime = %+v", wd)
	}
	if string(body["importance"]) != `"high"` {
		t.Errorf("importance = %s", body["importance"])
	}
}

func TestCreateTaskRejectsEmptyTitle(t *testing.T) {
	g := newTestGraph(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("request reached the server")
	})

	_, err := g.CreateTask(context.Background(), "l1", model.Draft{})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestUpdateTaskPatchBody(t *testing.T) {
	var body map[string]json.RawMessage

	g := newTestGraph(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch || r.URL.Path != "/me/todo/lists/l1/tasks/t1" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("bad body: %v", err)
		}
		io.WriteString(w, `{"id":"t1","title":"x","status":"completed"}`)
	})

	done := true
	_, err := g.UpdateTask(context.Background(), "l1", "t1", model.Patch{
		Completed: &done,
		ClearDue:  true,
	})
	if err != nil {
		t.Fatalf("UpdateTask failed: %v", err)
	}

	if string(body["status"]) != `"completed"` {
		t.Errorf("status = %s", body["status"])
	}
	// Cleared timestamps must serialize as explicit nulls, and untouched
	// fields must be absent entirely.
	if string(body["dueDateTime"]) != "null" {
		t.Errorf("dueDateTime = %s, want null", body["dueDateTime"])
	}
	if _, ok := body["title"]; ok {
		t.Error("untouched title sent in PATCH body")
	}
	if _, ok := body["importance"]; ok {
		t.Error("untouched importance sent in PATCH body")
	}
}

func TestDeleteTask(t *testing.T) {
	g := newTestGraph(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("method = %s", r.Method)
		}
		w.WriteHeader(http.StatusNoContent)
	})

	if err := g.DeleteTask(context.Background(), "l1", "t1"); err != nil {
		t.Fatalf("DeleteTask failed: %v", err)
	}
}

func TestErrorClassification(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, ErrAuth},
		{http.StatusForbidden, ErrAuth},
		{http.StatusNotFound, ErrNotFound},
		{http.StatusGone, ErrNotFound},
		{http.StatusBadRequest, ErrValidation},
		{http.StatusUnprocessableEntity, ErrValidation},
		{http.StatusInternalServerError, ErrUnknown},
	}
	for _, tc := range cases {
		g := newTestGraph(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			io.WriteString(w, `{"error":{"code":"x","message":"boom"}}`)
		})
		err := g.DeleteTask(context.Background(), "l1", "t1")
		if !errors.Is(err, tc.want) {
			t.Errorf("status %d: got %v, want %v", tc.status, err, tc.want)
		}
		var ce *CallError
		if !errors.As(err, &ce) || ce.Status != tc.status || ce.Detail != "boom" {
			t.Errorf("status %d: CallError = %+v", tc.status, ce)
		}
	}
}

func TestNetworkErrorIsRetryable(t *testing.T) {
	g := NewGraph(StaticToken("tok"), &http.Client{Timeout: 50 * time.Millisecond})
	g.SetBaseURL("http://127.0.0.1:1") // nothing listens here

	_, err := g.ListContainers(context.Background())
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("expected ErrNetwork, got %v", err)
	}
	if !IsRetryable(err) {
		t.Error("network error not retryable")
	}
}

func TestAuthFailureShortCircuits(t *testing.T) {
	g := newTestGraph(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("request made without a token")
	})
	g.creds = StaticToken("")

	_, err := g.ListContainers(context.Background())
	if !errors.Is(err, ErrAuth) {
		t.Fatalf("expected ErrAuth, got %v", err)
	}
	if IsRetryable(err) {
		t.Error("auth error must not be retryable")
	}
}
