package api

import (
	"cad-lab/errors"
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"os"
	"strconv"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shirou/gopsutil/process"
)

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var body ChatRequest
	if err := s.decode(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: PROMPT is required", err))
		return
	}
	team := r.URL.Query().Get("team")
	if team == "" {
		team = s.defaultTeam
	}

	ctx := r.Context()
	if s.chatTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.chatTimeout)
		defer cancel()
	}
	outcome, err := s.chats.Run(ctx, team, body.Prompt)
	if err != nil {
		s.log.Error("Design chat failed", "team", team, "error", err)
		switch {
		case stderrors.Is(err, errors.ErrEmptyPrompt):
			writeError(w, http.StatusBadRequest, err)
		case stderrors.Is(err, errors.ErrUnknownTeam):
			writeError(w, http.StatusNotFound, err)
		default:
			partial := toChatResponse(outcome)
			writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Outcome: &partial})
		}
		return
	}
	writeJSON(w, http.StatusOK, toChatResponse(outcome))
}

func (s *Server) handleAgent(w http.ResponseWriter, r *http.Request) {
	agent, err := strconv.Atoi(r.PathValue("agent"))
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, fmt.Errorf("%w: agent must be an integer", errors.ErrInvalidRequest))
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"coder": agent})
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	if s.messages == nil {
		writeError(w, http.StatusServiceUnavailable, errors.ErrNoTranscripts)
		return
	}
	session, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: session id must be a UUID", errors.ErrInvalidRequest))
		return
	}
	var cursor *string
	if c := r.URL.Query().Get("cursor"); c != "" {
		cursor = &c
	}

	messages, next, err := s.messages.GetMessages(session, cursor)
	if err != nil {
		s.log.Error("Unable to read transcript", "session", session, "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, MessagesResponse{
		Messages:   lo.Map(messages, toMessageResponse),
		NextCursor: next,
	})
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	if s.docs == nil {
		writeError(w, http.StatusServiceUnavailable, errors.ErrStoreNotBuilt)
		return
	}
	var body AskRequest
	if err := s.decode(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: question is required", err))
		return
	}
	answer, err := s.docs.Ask(r.Context(), body.Question)
	switch {
	case stderrors.Is(err, errors.ErrEmptyPrompt):
		writeError(w, http.StatusBadRequest, err)
	case err != nil:
		s.log.Error("Documentation question failed", "error", err)
		writeError(w, http.StatusBadGateway, err)
	default:
		writeJSON(w, http.StatusOK, toAnswerResponse(answer))
	}
}

type HealthResponse struct {
	Status     string  `json:"status"`
	PID        int     `json:"pid"`
	CPUPercent float64 `json:"cpu_percent"`
	RAMPercent float32 `json:"ram_percent"`
	Stats      any     `json:"stats,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	res := HealthResponse{Status: "ok", PID: os.Getpid()}
	if proc, err := process.NewProcess(int32(res.PID)); err == nil {
		if cpu, err := proc.CPUPercent(); err == nil {
			res.CPUPercent = cpu
		}
		if ram, err := proc.MemoryPercent(); err == nil {
			res.RAMPercent = ram
		}
	} else {
		s.log.Warn("Unable to sample server process", "error", err)
	}
	if s.stats != nil {
		res.Stats = s.stats.Snapshot()
	}
	writeJSON(w, http.StatusOK, res)
}
