package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/maneesh/filesmanager/internal/common"
	"github.com/maneesh/filesmanager/internal/users"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// UserHandler serves signup and the session endpoints
type UserHandler struct {
	service *users.Service
	log     logrus.FieldLogger
}

// NewUserHandler creates a new user handler
func NewUserHandler(service *users.Service, log logrus.FieldLogger) *UserHandler {
	return &UserHandler{service: service, log: log}
}

type signUpRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignUp handles POST /users
func (uh *UserHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "sign_up",
		trace.WithSpanKind(trace.SpanKindServer),
	)
	defer span.End()

	var req signUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, uh.log, common.NewValidationError("Invalid request body"))
		return
	}

	user, err := uh.service.SignUp(ctx, req.Email, req.Password)
	if err != nil {
		writeError(w, uh.log, err)
		return
	}
	span.SetAttributes(attribute.Int64("user_id", int64(user.ID)))
	writeJSON(w, http.StatusCreated, user)
}

// Connect handles GET /connect with HTTP basic credentials
func (uh *UserHandler) Connect(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "connect",
		trace.WithSpanKind(trace.SpanKindServer),
	)
	defer span.End()

	email, password, ok := r.BasicAuth()
	if !ok {
		writeError(w, uh.log, common.ErrUnauthenticated)
		return
	}

	token, err := uh.service.Connect(ctx, email, password)
	if err != nil {
		writeError(w, uh.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// Disconnect handles GET /disconnect
func (uh *UserHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "disconnect",
		trace.WithSpanKind(trace.SpanKindServer),
	)
	defer span.End()

	if err := uh.service.Disconnect(ctx, r.Header.Get(TokenHeader)); err != nil {
		writeError(w, uh.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /users/me
func (uh *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "me",
		trace.WithSpanKind(trace.SpanKindServer),
	)
	defer span.End()

	user, err := uh.service.Me(ctx, r.Header.Get(TokenHeader))
	if err != nil {
		writeError(w, uh.log, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
