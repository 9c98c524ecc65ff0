package audit

import (
	"encoding/json"
	"log/slog"

	"github.com/mosshollow/questwick/internal/store"
)

// Recorder appends audit entries for state-changing operations. Writes are
// best-effort: a failed append must never roll back the mutation it
// describes, so Record logs and surfaces the failure without returning it
// as the operation's error.
type Recorder struct {
	store  *store.AuditStore
	logger *slog.Logger
}

func NewRecorder(st *store.AuditStore, logger *slog.Logger) *Recorder {
	return &Recorder{store: st, logger: logger}
}

// Record appends an entry, marshalling before/after snapshots to JSON.
// The returned error reports an audit failure only; callers surface it as
// a secondary error, not as the failure of the audited mutation.
func (r *Recorder) Record(actorID int64, actorEmail, actionType, entityType string, entityID int64, before, after any) error {
	beforeJSON := marshalSnapshot(before)
	afterJSON := marshalSnapshot(after)

	_, err := r.store.Append(store.AppendAuditParams{
		ActorID:    actorID,
		ActorEmail: actorEmail,
		ActionType: actionType,
		EntityType: entityType,
		EntityID:   entityID,
		BeforeJSON: beforeJSON,
		AfterJSON:  afterJSON,
	})
	if err != nil {
		r.logger.Error("audit append failed",
			"action", actionType, "entity", entityType, "entity_id", entityID, "error", err)
		return err
	}
	return nil
}

func marshalSnapshot(v any) string {
	if v == nil {
		return ""
	}
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}
