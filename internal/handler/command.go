package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/almanac/internal/command"
)

// CommandHandler runs lines of the command language over HTTP.
type CommandHandler struct {
	exec   *command.Executor
	logger *slog.Logger
}

func NewCommandHandler(exec *command.Executor, logger *slog.Logger) *CommandHandler {
	return &CommandHandler{exec: exec, logger: logger}
}

type commandRequest struct {
	Command string `json:"command"`
}

func (h *CommandHandler) Run(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	req.Command = strings.TrimSpace(req.Command)
	if req.Command == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "command is required"})
		return
	}

	res, err := h.exec.Execute(r.Context(), req.Command)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
