package handlers

import (
	"net/http"
	"testing"

	"github.com/cloudvault/backend/internal/models"
)

func TestRegisterCreatesPlainUser(t *testing.T) {
	env := setupTestEnv(t)

	resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/register", map[string]any{
		"name":     "Alice",
		"email":    "alice@example.com",
		"password": "correcthorse",
		// Role in the payload must be ignored.
		"role": "superadmin",
	}, nil)
	assertStatus(t, resp, http.StatusCreated)

	body := decodeJSONMap(t, resp)
	data, _ := body["data"].(map[string]any)
	if data["role"] != "user" {
		t.Fatalf("expected role user, got %v", data["role"])
	}
	if data["storageQuotaGB"] != float64(2) {
		t.Fatalf("expected registration quota of 2 GB, got %v", data["storageQuotaGB"])
	}
	if _, present := data["passwordHash"]; present {
		t.Fatal("password hash must never appear in responses")
	}
}

func TestRegisterValidation(t *testing.T) {
	env := setupTestEnv(t)

	cases := []struct {
		name    string
		payload map[string]any
		wantErr string
	}{
		{"missing name", map[string]any{"email": "a@b.com", "password": "longenough"}, "name is required"},
		{"missing email", map[string]any{"name": "A", "password": "longenough"}, "email and password are required"},
		{"bad email", map[string]any{"name": "A", "email": "not-an-email", "password": "longenough"}, "invalid email address"},
		{"short password", map[string]any{"name": "A", "email": "a@b.com", "password": "short"}, "password must be at least 8 characters"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/register", tc.payload, nil)
			assertStatus(t, resp, http.StatusBadRequest)
			assertEnvelopeError(t, decodeJSONMap(t, resp), tc.wantErr)
		})
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	env := setupTestEnv(t)
	createTestUser(t, env.db, "taken@example.com", "password123", models.UserRoleUser, 2)

	resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/register", map[string]any{
		"name":     "Bob",
		"email":    "taken@example.com",
		"password": "password123",
	}, nil)
	assertStatus(t, resp, http.StatusConflict)
	assertEnvelopeError(t, decodeJSONMap(t, resp), "email is already in use")
}

func TestRegisterReusesEmailOfDeletedUser(t *testing.T) {
	env := setupTestEnv(t)
	user, _ := createTestUser(t, env.db, "gone@example.com", "password123", models.UserRoleUser, 2)

	if err := env.db.Delete(user).Error; err != nil {
		t.Fatalf("failed soft deleting user: %v", err)
	}

	resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/register", map[string]any{
		"name":     "Returning",
		"email":    "gone@example.com",
		"password": "password123",
	}, nil)
	assertStatus(t, resp, http.StatusCreated)
}

func TestLoginReturnsToken(t *testing.T) {
	env := setupTestEnv(t)
	createTestUser(t, env.db, "carol@example.com", "password123", models.UserRoleUser, 2)

	resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/login", map[string]any{
		"email":    "carol@example.com",
		"password": "password123",
	}, nil)
	assertStatus(t, resp, http.StatusOK)

	body := decodeJSONMap(t, resp)
	data, _ := body["data"].(map[string]any)
	token, _ := data["token"].(string)
	if token == "" {
		t.Fatal("expected a token in the login response")
	}

	me := performRequest(t, env.app, http.MethodGet, "/api/auth/me", nil, authHeaders(token))
	assertStatus(t, me, http.StatusOK)
}

func TestLoginSameErrorForUnknownEmailAndBadPassword(t *testing.T) {
	env := setupTestEnv(t)
	createTestUser(t, env.db, "dave@example.com", "password123", models.UserRoleUser, 2)

	for _, payload := range []map[string]any{
		{"email": "nobody@example.com", "password": "password123"},
		{"email": "dave@example.com", "password": "wrongpass1"},
	} {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/login", payload, nil)
		assertStatus(t, resp, http.StatusUnauthorized)
		assertEnvelopeError(t, decodeJSONMap(t, resp), "invalid email or password")
	}
}

func TestLoginRejectedForDeletedUser(t *testing.T) {
	env := setupTestEnv(t)
	user, token := createTestUser(t, env.db, "erin@example.com", "password123", models.UserRoleUser, 2)

	if err := env.db.Delete(user).Error; err != nil {
		t.Fatalf("failed soft deleting user: %v", err)
	}

	resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/login", map[string]any{
		"email":    "erin@example.com",
		"password": "password123",
	}, nil)
	assertStatus(t, resp, http.StatusUnauthorized)

	// Tokens issued before the deletion die with the account.
	me := performRequest(t, env.app, http.MethodGet, "/api/auth/me", nil, authHeaders(token))
	assertStatus(t, me, http.StatusUnauthorized)
}

func TestMeRequiresAuth(t *testing.T) {
	env := setupTestEnv(t)

	resp := performRequest(t, env.app, http.MethodGet, "/api/auth/me", nil, nil)
	assertStatus(t, resp, http.StatusUnauthorized)

	resp = performRequest(t, env.app, http.MethodGet, "/api/auth/me", nil, authHeaders("not-a-token"))
	assertStatus(t, resp, http.StatusUnauthorized)
}

func TestUpdateMe(t *testing.T) {
	env := setupTestEnv(t)
	_, token := createTestUser(t, env.db, "frank@example.com", "password123", models.UserRoleUser, 2)

	resp := performJSONRequest(t, env.app, http.MethodPut, "/api/auth/me", map[string]any{
		"name":  "Frank Renamed",
		"email": "frank.new@example.com",
	}, authHeaders(token))
	assertStatus(t, resp, http.StatusOK)

	body := decodeJSONMap(t, resp)
	data, _ := body["data"].(map[string]any)
	if data["name"] != "Frank Renamed" || data["email"] != "frank.new@example.com" {
		t.Fatalf("unexpected profile after update: %+v", data)
	}
}

func TestUpdateMeRejectsTakenEmail(t *testing.T) {
	env := setupTestEnv(t)
	createTestUser(t, env.db, "first@example.com", "password123", models.UserRoleUser, 2)
	_, token := createTestUser(t, env.db, "second@example.com", "password123", models.UserRoleUser, 2)

	resp := performJSONRequest(t, env.app, http.MethodPut, "/api/auth/me", map[string]any{
		"email": "first@example.com",
	}, authHeaders(token))
	assertStatus(t, resp, http.StatusConflict)
	assertEnvelopeError(t, decodeJSONMap(t, resp), "email is already in use")
}

func TestChangePassword(t *testing.T) {
	env := setupTestEnv(t)
	_, token := createTestUser(t, env.db, "grace@example.com", "password123", models.UserRoleUser, 2)

	resp := performJSONRequest(t, env.app, http.MethodPut, "/api/auth/password", map[string]any{
		"currentPassword": "wrong",
		"newPassword":     "newpassword1",
	}, authHeaders(token))
	assertStatus(t, resp, http.StatusUnauthorized)
	assertEnvelopeError(t, decodeJSONMap(t, resp), "current password is incorrect")

	resp = performJSONRequest(t, env.app, http.MethodPut, "/api/auth/password", map[string]any{
		"currentPassword": "password123",
		"newPassword":     "newpassword1",
	}, authHeaders(token))
	assertStatus(t, resp, http.StatusOK)

	login := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/login", map[string]any{
		"email":    "grace@example.com",
		"password": "newpassword1",
	}, nil)
	assertStatus(t, login, http.StatusOK)
}
