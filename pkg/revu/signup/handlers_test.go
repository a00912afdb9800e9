package signup

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/revuhq/revu/pkg/revu/auth"
	"github.com/revuhq/revu/pkg/revu/config"
)

func setupTestRouter(db *gorm.DB, mode config.SignupMode) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := NewHandler(db, newProvisioner(db, mode))
	group := r.Group("/auth")
	handler.RegisterRoutes(group)
	return r
}

func postRegister(t *testing.T, router *gin.Engine, body RegisterRequest) *httptest.ResponseRecorder {
	jsonBody, _ := json.Marshal(body)
	req, _ := http.NewRequest("POST", "/auth/register", bytes.NewBuffer(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestRegister(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db, config.SignupInviteOnly)

	resp := postRegister(t, router, RegisterRequest{
		Email:    "alice@acme.com",
		Password: "password123",
		Name:     "Alice",
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", resp.Code, resp.Body.String())
	}

	var response auth.AuthResponse
	json.Unmarshal(resp.Body.Bytes(), &response)
	if response.Token == "" {
		t.Error("Expected token in response")
	}
	if response.User.Role != "client_admin" {
		t.Errorf("First signup should come back as client_admin, got %s", response.User.Role)
	}

	claims, err := auth.ValidateToken(response.Token)
	if err != nil {
		t.Fatalf("Returned token does not validate: %v", err)
	}
	if claims.OrganizationID != response.User.OrganizationID {
		t.Error("Token organization should match the created user")
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db, config.SignupOpenDomain)

	body := RegisterRequest{Email: "alice@acme.com", Password: "password123", Name: "Alice"}
	postRegister(t, router, body)

	resp := postRegister(t, router, body)
	if resp.Code != http.StatusConflict {
		t.Errorf("Expected status 409, got %d", resp.Code)
	}
}

func TestRegisterUninvited(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db, config.SignupInviteOnly)

	postRegister(t, router, RegisterRequest{Email: "alice@acme.com", Password: "password123", Name: "Alice"})

	resp := postRegister(t, router, RegisterRequest{Email: "bob@acme.com", Password: "password123", Name: "Bob"})
	if resp.Code != http.StatusForbidden {
		t.Errorf("Expected status 403, got %d", resp.Code)
	}
}

func TestRegisterBadToken(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db, config.SignupInviteOnly)

	resp := postRegister(t, router, RegisterRequest{
		Email:       "bob@acme.com",
		Password:    "password123",
		Name:        "Bob",
		InviteToken: "not-a-real-token",
	})
	if resp.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", resp.Code)
	}
	if bytes.Contains(resp.Body.Bytes(), []byte("not found")) {
		t.Error("Response should not reveal why the token was rejected")
	}
}
