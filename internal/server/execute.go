package server

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

const maxBodyBytes = 1 << 16

// ExecuteResponse reports the outcome of a remote command.
type ExecuteResponse struct {
	Succeeded bool   `json:"succeeded"`
	Response  string `json:"response"`
}

// ErrorResponse describes a rejected request.
type ErrorResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	slog.Info("remote execution", "uri", r.URL.Path, "address", r.RemoteAddr)

	tok, msg := s.authenticate(r)
	if msg != "" {
		writeError(w, http.StatusUnauthorized, msg)
		return
	}
	if !tok.Manager {
		writeError(w, http.StatusUnauthorized, "Authenticated user is not a manager")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Failed to read command: %v", err))
		return
	}
	command := strings.TrimSpace(string(body))
	if command == "" {
		writeError(w, http.StatusBadRequest, "Missing command")
		return
	}
	// The limit applies to the body as sent, padding included.
	if limit := s.console.MaxCommandLength(); len(body) > limit {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("The given command exceeds allowed length (%d > %d)", len(body), limit))
		return
	}

	slog.Info("requested command", "alias", tok.Alias, "address", r.RemoteAddr, "command", command)

	out, err := s.console.Execute(r.Context(), command)
	if err != nil {
		slog.Debug("command failed", "alias", tok.Alias, "error", err)
		writeJSON(w, http.StatusOK, ExecuteResponse{Succeeded: false, Response: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, ExecuteResponse{Succeeded: true, Response: out})
}

// authenticate resolves basic auth credentials to a token. The returned
// message is empty on success.
func (s *Server) authenticate(r *http.Request) (Token, string) {
	alias, secret, ok := r.BasicAuth()
	if !ok {
		return Token{}, "Missing authorization credentials"
	}
	tok, found := s.tokens[alias]
	if !found || subtle.ConstantTimeCompare([]byte(tok.Secret), []byte(secret)) != 1 {
		return Token{}, "Invalid authorization credentials"
	}
	return tok, ""
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Status: status, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to write response", "error", err)
	}
}
