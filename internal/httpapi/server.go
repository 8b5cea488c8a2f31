package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/tapgate/server/internal/auth"
	"github.com/tapgate/server/internal/tapgate/service"
	"github.com/tapgate/server/internal/tapgate/types"
)

type Dependencies struct {
	Logger      *log.Logger
	Addr        string
	PassService *service.PassService
	Auth        *auth.Authenticator
}

type Server struct {
	httpServer *http.Server
	logger     *log.Logger
	mux        *http.ServeMux
	passes     *service.PassService
	auth       *auth.Authenticator
}

func NewServer(d Dependencies) *Server {
	mux := http.NewServeMux()

	s := &Server{
		logger: d.Logger,
		mux:    mux,
		passes: d.PassService,
		auth:   d.Auth,
	}

	mux.HandleFunc("POST /v1/login", s.handleLogin)
	mux.HandleFunc("GET /v1/pass/search", s.authed(s.handleSearch))
	mux.HandleFunc("POST /v1/pass/verify", s.authed(s.handleVerify))
	mux.HandleFunc("POST /v1/pass/consume-prompt", s.authed(s.handleConsumePrompt))
	mux.HandleFunc("POST /v1/pass/cancel-prompt", s.authed(s.handleCancelPrompt))
	mux.HandleFunc("POST /v1/pass", s.authedRole(s.handleEnroll, types.RoleAdmin, types.RoleManager))
	mux.HandleFunc("PATCH /v1/pass/{id}/reset", s.authedRole(s.handleReset, types.RoleAdmin, types.RoleManager))
	mux.HandleFunc("DELETE /v1/pass/{id}", s.authedRole(s.handleDelete, types.RoleAdmin))

	handler := loggingMiddleware(d.Logger, limitBodyMiddleware(mux))

	s.httpServer = &http.Server{
		Addr:              d.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req types.LoginRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}

	token, op, err := s.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid_credentials", err.Error())
			return
		}
		s.logger.Printf("login error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		return
	}

	writeJSON(w, http.StatusOK, types.LoginResponse{
		Token:    token,
		Role:     op.Role,
		Category: op.Category,
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request, _ types.Operator) {
	uid := r.URL.Query().Get("uid")

	pass, err := s.passes.Search(r.Context(), uid)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidUID):
			writeError(w, http.StatusBadRequest, "invalid_uid", err.Error())
		case errors.Is(err, service.ErrPassNotFound):
			writeError(w, http.StatusNotFound, "not_found", "no pass for uid")
		default:
			s.logger.Printf("search error: %v", err)
			writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]types.Pass{"pass": pass})
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request, op types.Operator) {
	var req types.VerifyRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}

	result, err := s.passes.Verify(r.Context(), req, op)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidUID):
			writeError(w, http.StatusBadRequest, "invalid_uid", err.Error())
		case errors.Is(err, service.ErrInvalidGateID):
			writeError(w, http.StatusBadRequest, "invalid_gate_id", err.Error())
		case errors.Is(err, service.ErrCategoryMismatch):
			writeError(w, http.StatusForbidden, "category_mismatch", err.Error())
		default:
			s.logger.Printf("verify error: %v", err)
			writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		}
		return
	}

	// All classified outcomes are 200 with the taxonomy in the status
	// field; only a truly unknown uid is a 404.
	if result.Status == types.StatusInvalid {
		writeJSON(w, http.StatusNotFound, result)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleConsumePrompt(w http.ResponseWriter, r *http.Request, op types.Operator) {
	var req types.ConsumePromptRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}

	result, err := s.passes.ConsumePrompt(r.Context(), req, op)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidPromptToken):
			writeError(w, http.StatusBadRequest, "invalid_prompt_token", err.Error())
		case errors.Is(err, service.ErrInvalidGateID):
			writeError(w, http.StatusBadRequest, "invalid_gate_id", err.Error())
		case errors.Is(err, service.ErrPromptNotFound):
			writeError(w, http.StatusNotFound, "prompt_not_found", err.Error())
		case errors.Is(err, service.ErrPromptExpired):
			writeError(w, http.StatusGone, "prompt_expired", err.Error())
		case errors.Is(err, service.ErrPromptConsumed):
			writeError(w, http.StatusConflict, "prompt_already_consumed", err.Error())
		case errors.Is(err, service.ErrCountOutOfRange):
			writeError(w, http.StatusBadRequest, "prompt_count_out_of_range", err.Error())
		default:
			s.logger.Printf("consume-prompt error: %v", err)
			writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		}
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleCancelPrompt(w http.ResponseWriter, r *http.Request, _ types.Operator) {
	var req types.CancelPromptRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}

	if err := s.passes.CancelPrompt(r.Context(), req); err != nil {
		if errors.Is(err, service.ErrInvalidPromptToken) {
			writeError(w, http.StatusBadRequest, "invalid_prompt_token", err.Error())
			return
		}
		s.logger.Printf("cancel-prompt error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleEnroll(w http.ResponseWriter, r *http.Request, op types.Operator) {
	var req types.EnrollRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}

	pass, err := s.passes.Enroll(r.Context(), req, op)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidUID):
			writeError(w, http.StatusBadRequest, "invalid_uid", err.Error())
		case errors.Is(err, service.ErrInvalidPassType):
			writeError(w, http.StatusBadRequest, "invalid_pass_type", err.Error())
		case errors.Is(err, service.ErrInvalidCategory):
			writeError(w, http.StatusBadRequest, "invalid_category", err.Error())
		case errors.Is(err, service.ErrInvalidPeopleAllowed):
			writeError(w, http.StatusBadRequest, "invalid_people_allowed", err.Error())
		case errors.Is(err, service.ErrDuplicateUID):
			writeError(w, http.StatusConflict, "duplicate_uid", err.Error())
		default:
			s.logger.Printf("enroll error: %v", err)
			writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		}
		return
	}

	writeJSON(w, http.StatusCreated, map[string]types.Pass{"pass": pass})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request, op types.Operator) {
	var req types.ResetRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	// An empty body is allowed; the reason is optional.
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}

	pass, err := s.passes.Reset(r.Context(), r.PathValue("id"), req.Reason, op)
	if err != nil {
		if errors.Is(err, service.ErrPassNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "no pass for id")
			return
		}
		s.logger.Printf("reset error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]types.Pass{"pass": pass})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request, op types.Operator) {
	if err := s.passes.Delete(r.Context(), r.PathValue("id"), op); err != nil {
		if errors.Is(err, service.ErrPassNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "no pass for id")
			return
		}
		s.logger.Printf("delete error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
