package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filedrop/service/internal/db"
	"github.com/filedrop/service/internal/response"
)

func postJSON(t *testing.T, handler http.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) response.Envelope {
	t.Helper()
	var env response.Envelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	return env
}

func TestSignupHandlerValidation(t *testing.T) {
	h := NewHandler(NewService(&fakeAccountStore{createStatus: db.SavedSuccess}, &fakeCleaner{}, testConfig()))

	tests := []struct {
		name string
		body string
	}{
		{"malformed body", `{`},
		{"invalid email", `{"email":"not-an-email","password":"longenough"}`},
		{"short password", `{"email":"a@x.com","password":"short"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postJSON(t, h.Signup, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestSignupHandlerSuccess(t *testing.T) {
	h := NewHandler(NewService(&fakeAccountStore{createStatus: db.SavedSuccess}, &fakeCleaner{}, testConfig()))

	rec := postJSON(t, h.Signup, `{"email":"a@x.com","password":"longenough"}`)

	assert.Equal(t, http.StatusCreated, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.True(t, env.Success)
	data, ok := env.Data.(map[string]interface{})
	require.True(t, ok)
	assert.NotEmpty(t, data["accessToken"])
}

func TestSignupHandlerDuplicateEmail(t *testing.T) {
	h := NewHandler(NewService(&fakeAccountStore{createStatus: db.SavedConflict}, &fakeCleaner{}, testConfig()))

	rec := postJSON(t, h.Signup, `{"email":"a@x.com","password":"longenough"}`)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSigninHandlerInvalidCredentials(t *testing.T) {
	h := NewHandler(NewService(&fakeAccountStore{byEmailErr: ErrNotFound}, &fakeCleaner{}, testConfig()))

	rec := postJSON(t, h.Signin, `{"email":"a@x.com","password":"longenough"}`)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.False(t, env.Success)
	assert.Equal(t, "invalid email or password", env.Error)
}
