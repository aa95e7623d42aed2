package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"

	"github.com/filedrop/service/internal/middleware"
	"github.com/filedrop/service/internal/response"
)

// emailRegex is a permissive sanity check; the unique constraint is the
// real gatekeeper.
var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

const minPasswordLength = 8

// Handler holds HTTP handlers for auth endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates a new auth Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type credentialsRequest struct {
	Email    string `json:"email"    example:"user@example.com"`
	Password string `json:"password" example:"s3cret-pass"`
}

type tokenData struct {
	AccessToken string `json:"accessToken" example:"eyJhbGci..."`
}

// Signup godoc
//
//	@Summary		Sign up
//	@Description	Create a new account and return an access token for it.
//	@Tags			auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		credentialsRequest	true	"Email and password"
//	@Success		201		{object}	response.Envelope{data=tokenData}
//	@Failure		400		{object}	response.Envelope
//	@Failure		409		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/auth/signup [post]
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeCredentials(w, r)
	if !ok {
		return
	}

	token, err := h.svc.Signup(r.Context(), req.Email, req.Password)
	if errors.Is(err, ErrEmailTaken) {
		response.Conflict(w, "email already registered")
		return
	}
	if err != nil {
		response.InternalError(w)
		return
	}

	response.Created(w, tokenData{AccessToken: token})
}

// Signin godoc
//
//	@Summary		Sign in
//	@Description	Verify credentials and return an access token.
//	@Tags			auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		credentialsRequest	true	"Email and password"
//	@Success		200		{object}	response.Envelope{data=tokenData}
//	@Failure		400		{object}	response.Envelope
//	@Failure		401		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/auth/signin [post]
func (h *Handler) Signin(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeCredentials(w, r)
	if !ok {
		return
	}

	token, err := h.svc.Signin(r.Context(), req.Email, req.Password)
	if errors.Is(err, ErrInvalidCredentials) {
		response.Unauthorized(w, "invalid email or password")
		return
	}
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, tokenData{AccessToken: token})
}

// GetMe godoc
//
//	@Summary		Get current account
//	@Description	Returns the currently authenticated account.
//	@Tags			auth
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	response.Envelope{data=Account}
//	@Failure		401	{object}	response.Envelope
//	@Failure		404	{object}	response.Envelope
//	@Failure		500	{object}	response.Envelope
//	@Router			/auth/me [get]
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.AccountID(r.Context())
	if accountID == "" {
		response.Unauthorized(w, "unauthorized")
		return
	}

	account, err := h.svc.GetAccount(r.Context(), accountID)
	if errors.Is(err, ErrNotFound) {
		response.NotFound(w, "account not found")
		return
	}
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, account)
}

// DeleteMe godoc
//
//	@Summary		Delete current account
//	@Description	Deletes the authenticated account, all its upload metadata, and every stored object under its namespace.
//	@Tags			auth
//	@Security		BearerAuth
//	@Success		204
//	@Failure		401	{object}	response.Envelope
//	@Failure		500	{object}	response.Envelope
//	@Router			/auth/me [delete]
func (h *Handler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.AccountID(r.Context())
	if accountID == "" {
		response.Unauthorized(w, "unauthorized")
		return
	}

	if err := h.svc.DeleteAccount(r.Context(), accountID); err != nil {
		response.InternalError(w)
		return
	}

	response.NoContent(w)
}

// decodeCredentials parses and validates the signup/signin request body.
// It writes the error response itself and returns ok=false on failure.
func decodeCredentials(w http.ResponseWriter, r *http.Request) (credentialsRequest, bool) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return req, false
	}
	if !emailRegex.MatchString(req.Email) {
		response.BadRequest(w, "invalid email format")
		return req, false
	}
	if len(req.Password) < minPasswordLength {
		response.BadRequest(w, "password must be at least 8 characters long")
		return req, false
	}
	return req, true
}
