package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cyclopcam/logs"
	"github.com/stretchr/testify/require"
)

func newProviderStub(t *testing.T, status int, response any) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "POST", r.Method)
		require.Equal(t, "secret-key", r.URL.Query().Get("key"))
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(response)
	}))
}

func TestIdentitySignInSuccess(t *testing.T) {
	stub := newProviderStub(t, http.StatusOK, map[string]any{"idToken": "tok123"})
	defer stub.Close()

	c := NewGoogleIdentityClient(logs.NewTestingLog(t), "secret-key", stub.URL)
	token, err := c.SignIn("jane@example.com", "hunter22")
	require.NoError(t, err)
	require.Equal(t, "tok123", token)
}

func TestIdentitySignUpRejected(t *testing.T) {
	stub := newProviderStub(t, http.StatusBadRequest, map[string]any{
		"error": map[string]any{"message": "EMAIL_EXISTS"},
	})
	defer stub.Close()

	c := NewGoogleIdentityClient(logs.NewTestingLog(t), "secret-key", stub.URL)
	_, err := c.SignUp("jane@example.com", "hunter22")
	var idErr *IdentityError
	require.ErrorAs(t, err, &idErr)
	// The provider's message is what the user sees
	require.Equal(t, "EMAIL_EXISTS", idErr.Message)
}

func TestIdentityErrorUnparseable(t *testing.T) {
	stub := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("not json"))
	}))
	defer stub.Close()

	c := NewGoogleIdentityClient(logs.NewTestingLog(t), "secret-key", stub.URL)
	_, err := c.SignIn("jane@example.com", "hunter22")
	var idErr *IdentityError
	require.ErrorAs(t, err, &idErr)
	require.Equal(t, "An unknown error occurred.", idErr.Message)
}

func TestIdentityPasswordReset(t *testing.T) {
	stub := newProviderStub(t, http.StatusOK, map[string]any{"email": "jane@example.com"})
	defer stub.Close()

	c := NewGoogleIdentityClient(logs.NewTestingLog(t), "secret-key", stub.URL)
	require.NoError(t, c.SendPasswordReset("jane@example.com"))
}
