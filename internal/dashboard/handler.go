package dashboard

import (
	"encoding/json"
	"log"
	"time"

	"github.com/rthompson/todosync/internal/engine"
	"github.com/rthompson/todosync/internal/model"
)

// Handler bridges engine events to dashboard broadcasts. It implements
// engine.Notifier.
type Handler struct {
	server *Server
	logger *log.Logger
}

// PhaseData is the payload of a phase_change message.
type PhaseData struct {
	Phase        string     `json:"phase"`
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`
}

// TaskUpdateData is the payload of a task_update message.
type TaskUpdateData struct {
	LocalID string `json:"local_id"`
	Action  string `json:"action"` // created, updated, deleted
}

// NewHandler creates an event handler connected to a dashboard server.
func NewHandler(server *Server, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{
		server: server,
		logger: logger,
	}
}

// PhaseChanged implements engine.Notifier.
func (h *Handler) PhaseChanged(session model.SyncSession) {
	h.broadcast(MessageTypePhase, PhaseData{
		Phase:        string(session.Phase),
		LastSyncedAt: session.LastSyncedAt,
	})
}

// TaskChanged implements engine.Notifier.
func (h *Handler) TaskChanged(localID, action string) {
	h.broadcast(MessageTypeTaskUpdate, TaskUpdateData{
		LocalID: localID,
		Action:  action,
	})
}

// SyncCompleted implements engine.Notifier.
func (h *Handler) SyncCompleted(result engine.FullSyncResult) {
	h.broadcast(MessageTypeSyncComplete, result)
}

func (h *Handler) broadcast(typ MessageType, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		h.logger.Printf("Failed to marshal %s data: %v", typ, err)
		return
	}
	h.server.Broadcast(Message{
		Type:      typ,
		Timestamp: time.Now(),
		Data:      payload,
	})
}
