package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rthompson/todosync/internal/model"
)

// DefaultBaseURL is the Microsoft Graph v1.0 endpoint.
const DefaultBaseURL = "https://graph.microsoft.com/v1.0"

// graphTimeLayout is the wall-clock layout Graph uses inside
// dateTimeTimeZone values. Responses may carry up to seven fractional
// digits, which time.Parse accepts with this layout.
const graphTimeLayout = "2006-01-02T15:04:05"

// Graph implements Adapter against the Microsoft Graph To Do API
// (/me/todo/lists and /me/todo/lists/{id}/tasks).
type Graph struct {
	baseURL string
	creds   CredentialProvider
	client  *http.Client
}

// NewGraph creates a Graph adapter. If client is nil, a client with a
// 30 second timeout is used; individual calls are otherwise not cancelled.
func NewGraph(creds CredentialProvider, client *http.Client) *Graph {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Graph{
		baseURL: DefaultBaseURL,
		creds:   creds,
		client:  client,
	}
}

// SetBaseURL overrides the Graph endpoint. Used by tests to point the
// adapter at a local server.
func (g *Graph) SetBaseURL(u string) {
	g.baseURL = u
}

// Wire types. Field names are owned by the Graph API.

type wireList struct {
	ID          string `json:"id,omitempty"`
	DisplayName string `json:"displayName"`
}

type wireBody struct {
	Content     string `json:"content"`
	ContentType string `json:"contentType"`
}

type wireDateTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

type wireTask struct {
	ID               string        `json:"id,omitempty"`
	Title            string        `json:"title"`
	Status           string        `json:"status,omitempty"`     // notStarted, completed
	Importance       string        `json:"importance,omitempty"` // low, normal, high
	Body             *wireBody     `json:"body,omitempty"`
	DueDateTime      *wireDateTime `json:"dueDateTime,omitempty"`
	ReminderDateTime *wireDateTime `json:"reminderDateTime,omitempty"`
	IsReminderOn     bool          `json:"isReminderOn,omitempty"`
}

type wireCollection[T any] struct {
	Value []T `json:"value"`
}

type wireError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ListContainers implements Adapter.ListContainers.
func (g *Graph) ListContainers(ctx context.Context) ([]model.Container, error) {
	var resp wireCollection[wireList]
	if err := g.do(ctx, "ListContainers", http.MethodGet, "me/todo/lists", nil, &resp); err != nil {
		return nil, err
	}

	containers := make([]model.Container, 0, len(resp.Value))
	for _, wl := range resp.Value {
		containers = append(containers, model.Container{
			RemoteID: wl.ID,
			Name:     wl.DisplayName,
		})
	}
	return containers, nil
}

// ListTasks implements Adapter.ListTasks.
func (g *Graph) ListTasks(ctx context.Context, containerRemoteID string) ([]model.Task, error) {
	path := fmt.Sprintf("me/todo/lists/%s/tasks", url.PathEscape(containerRemoteID))

	var resp wireCollection[wireTask]
	if err := g.do(ctx, "ListTasks", http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}

	tasks := make([]model.Task, 0, len(resp.Value))
	for _, wt := range resp.Value {
		tasks = append(tasks, taskFromWire(wt))
	}
	return tasks, nil
}

// CreateTask implements Adapter.CreateTask.
func (g *Graph) CreateTask(ctx context.Context, containerRemoteID string, draft model.Draft) (model.Task, error) {
	if err := draft.Validate(); err != nil {
		return model.Task{}, &CallError{Op: "CreateTask", Err: ErrValidation, Detail: err.Error()}
	}
	path := fmt.Sprintf("me/todo/lists/%s/tasks", url.PathEscape(containerRemoteID))

	var resp wireTask
	if err := g.do(ctx, "CreateTask", http.MethodPost, path, draftToWire(draft), &resp); err != nil {
		return model.Task{}, err
	}
	return taskFromWire(resp), nil
}

// UpdateTask implements Adapter.UpdateTask.
func (g *Graph) UpdateTask(ctx context.Context, containerRemoteID, taskRemoteID string, patch model.Patch) (model.Task, error) {
	path := fmt.Sprintf("me/todo/lists/%s/tasks/%s",
		url.PathEscape(containerRemoteID), url.PathEscape(taskRemoteID))

	var resp wireTask
	if err := g.do(ctx, "UpdateTask", http.MethodPatch, path, patchToWire(patch), &resp); err != nil {
		return model.Task{}, err
	}
	return taskFromWire(resp), nil
}

// DeleteTask implements Adapter.DeleteTask.
func (g *Graph) DeleteTask(ctx context.Context, containerRemoteID, taskRemoteID string) error {
	path := fmt.Sprintf("me/todo/lists/%s/tasks/%s",
		url.PathEscape(containerRemoteID), url.PathEscape(taskRemoteID))
	return g.do(ctx, "DeleteTask", http.MethodDelete, path, nil, nil)
}

// CreateContainer implements Adapter.CreateContainer.
func (g *Graph) CreateContainer(ctx context.Context, name string) (model.Container, error) {
	if name == "" {
		return model.Container{}, &CallError{Op: "CreateContainer", Err: ErrValidation, Detail: "name is required"}
	}

	var resp wireList
	err := g.do(ctx, "CreateContainer", http.MethodPost, "me/todo/lists", wireList{DisplayName: name}, &resp)
	if err != nil {
		return model.Container{}, err
	}
	return model.Container{RemoteID: resp.ID, Name: resp.DisplayName}, nil
}

// do performs one authenticated round trip and decodes the response into
// out (when non-nil). There is no retry and no internal timeout beyond the
// HTTP client's own.
func (g *Graph) do(ctx context.Context, op, method, path string, body, out any) error {
	token, err := g.creds.Token(ctx)
	if err != nil {
		return &CallError{Op: op, Err: ErrAuth, Detail: err.Error()}
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &CallError{Op: op, Err: ErrValidation, Detail: err.Error()}
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+"/"+path, reqBody)
	if err != nil {
		return &CallError{Op: op, Err: ErrUnknown, Detail: err.Error()}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return &CallError{Op: op, Err: ErrNetwork, Detail: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail := ""
		var we wireError
		if data, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024)); err == nil {
			if json.Unmarshal(data, &we) == nil && we.Error.Message != "" {
				detail = we.Error.Message
			}
		}
		return &CallError{Op: op, Status: resp.StatusCode, Detail: detail, Err: classifyStatus(resp.StatusCode)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &CallError{Op: op, Status: resp.StatusCode, Err: ErrUnknown, Detail: err.Error()}
	}
	return nil
}

// taskFromWire maps a Graph task to the local model. LocalID, ContainerID
// and SyncStatus are left for the store to assign.
func taskFromWire(wt wireTask) model.Task {
	t := model.Task{
		RemoteID:  wt.ID,
		Title:     wt.Title,
		Completed: wt.Status == "completed",
		Important: wt.Importance == "high",
	}
	if wt.Body != nil {
		t.Notes = wt.Body.Content
	}
	t.DueAt = timeFromWire(wt.DueDateTime)
	if wt.IsReminderOn {
		t.ReminderAt = timeFromWire(wt.ReminderDateTime)
	}
	return t
}

// draftToWire maps a create request to the Graph payload.
func draftToWire(d model.Draft) wireTask {
	wt := wireTask{Title: d.Title}
	if d.Notes != "" {
		wt.Body = &wireBody{Content: d.Notes, ContentType: "text"}
	}
	if d.Important {
		wt.Importance = "high"
	}
	wt.DueDateTime = timeToWire(d.DueAt)
	if d.ReminderAt != nil {
		wt.ReminderDateTime = timeToWire(d.ReminderAt)
		wt.IsReminderOn = true
	}
	return wt
}

// patchToWire maps a partial edit to a Graph PATCH body. A map is used so
// untouched fields stay absent and cleared timestamps serialize as null.
func patchToWire(p model.Patch) map[string]any {
	body := make(map[string]any)
	if p.Title != nil {
		body["title"] = *p.Title
	}
	if p.Notes != nil {
		body["body"] = wireBody{Content: *p.Notes, ContentType: "text"}
	}
	if p.Completed != nil {
		if *p.Completed {
			body["status"] = "completed"
		} else {
			body["status"] = "notStarted"
		}
	}
	if p.Important != nil {
		if *p.Important {
			body["importance"] = "high"
		} else {
			body["importance"] = "normal"
		}
	}
	if p.ClearDue {
		body["dueDateTime"] = nil
	} else if p.DueAt != nil {
		body["dueDateTime"] = timeToWire(p.DueAt)
	}
	if p.ClearReminder {
		body["reminderDateTime"] = nil
		body["isReminderOn"] = false
	} else if p.ReminderAt != nil {
		body["reminderDateTime"] = timeToWire(p.ReminderAt)
		body["isReminderOn"] = true
	}
	return body
}

// timeToWire converts a timestamp to Graph's dateTimeTimeZone shape, in UTC.
func timeToWire(t *time.Time) *wireDateTime {
	if t == nil {
		return nil
	}
	return &wireDateTime{
		DateTime: t.UTC().Format(graphTimeLayout),
		TimeZone: "UTC",
	}
}

// timeFromWire parses Graph's dateTimeTimeZone shape. Non-UTC zones are
// resolved via the zone database; unparseable values are dropped rather
// than failing the whole listing.
func timeFromWire(wd *wireDateTime) *time.Time {
	if wd == nil || wd.DateTime == "" {
		return nil
	}
	loc := time.UTC
	if wd.TimeZone != "" && wd.TimeZone != "UTC" {
		if l, err := time.LoadLocation(wd.TimeZone); err == nil {
			loc = l
		}
	}
	t, err := time.ParseInLocation(graphTimeLayout, wd.DateTime, loc)
	if err != nil {
		return nil
	}
	u := t.UTC()
	return &u
}
