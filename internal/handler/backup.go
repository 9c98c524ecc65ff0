package handler

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/mosshollow/questwick/internal/backup"
	"github.com/mosshollow/questwick/internal/core"
	"github.com/mosshollow/questwick/internal/model"
	"github.com/mosshollow/questwick/internal/store"
)

// BackupHandler exposes the encrypted snapshot machinery to admins.
type BackupHandler struct {
	manager *backup.Manager
	backups *store.BackupStore
	logger  *slog.Logger
}

func NewBackupHandler(manager *backup.Manager, backups *store.BackupStore, logger *slog.Logger) *BackupHandler {
	return &BackupHandler{manager: manager, backups: backups, logger: logger}
}

// Status reports the manager state and last successful backup.
func (h *BackupHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, http.StatusOK, "backup", h.manager.Status())
}

// List returns recent backup records, newest first.
func (h *BackupHandler) List(w http.ResponseWriter, r *http.Request) {
	backups, err := h.backups.List(50)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if backups == nil {
		backups = []model.Backup{}
	}
	writeSuccess(w, http.StatusOK, "backups", backups)
}

// Run starts a backup immediately.
func (h *BackupHandler) Run(w http.ResponseWriter, r *http.Request) {
	if !h.manager.Configured() {
		writeError(w, h.logger, core.Validation("backups are not configured"))
		return
	}

	id, err := h.manager.RunNow(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusAccepted, "backup_id", id)
}

// Download streams the encrypted snapshot for offline safekeeping.
func (h *BackupHandler) Download(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		badID(w)
		return
	}

	body, size, err := h.manager.Download(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", fmt.Sprintf("%d", size))
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="backup-%d.db.enc"`, id))
	io.Copy(w, body)
}

// Restore replaces the live database with a snapshot and exits the process.
func (h *BackupHandler) Restore(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		badID(w)
		return
	}

	if err := h.manager.Restore(r.Context(), id); err != nil {
		writeError(w, h.logger, err)
		return
	}
	// Unreachable on success: Restore exits the process.
	writeSuccess(w, http.StatusOK, "", nil)
}
