package auth

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/revuhq/revu/pkg/revu/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	models.AutoMigrate(db)
	return db
}

func setupTestRouter(db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := NewHandler(db)
	auth := r.Group("/auth")
	handler.RegisterRoutes(auth)
	return r
}

func seedUser(t *testing.T, db *gorm.DB, email, password string, role models.Role, orgID uint) *models.User {
	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	user := models.User{Email: email, Name: "Test User", PasswordHash: hash, Role: role, OrganizationID: orgID}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("Failed to seed user: %v", err)
	}
	return &user
}

func TestPasswordHashing(t *testing.T) {
	password := "testpassword123"

	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}

	if hash == password {
		t.Error("Hash should not equal plain password")
	}

	if !CheckPassword(password, hash) {
		t.Error("CheckPassword should return true for correct password")
	}

	if CheckPassword("wrongpassword", hash) {
		t.Error("CheckPassword should return false for incorrect password")
	}
}

func TestJWTToken(t *testing.T) {
	token, err := GenerateToken(1, "test@acme.com", "client_admin", 42)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	claims, err := ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}

	if claims.UserID != 1 {
		t.Errorf("Expected UserID 1, got %d", claims.UserID)
	}

	if claims.Email != "test@acme.com" {
		t.Errorf("Expected email test@acme.com, got %s", claims.Email)
	}

	if claims.Role != "client_admin" {
		t.Errorf("Expected role client_admin, got %s", claims.Role)
	}

	if claims.OrganizationID != 42 {
		t.Errorf("Expected organization 42, got %d", claims.OrganizationID)
	}
}

func TestInvalidToken(t *testing.T) {
	_, err := ValidateToken("invalid-token")
	if err == nil {
		t.Error("Expected error for invalid token")
	}
}

func TestLogin(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	seedUser(t, db, "test@acme.com", "password123", models.RoleUser, 1)

	loginBody := LoginRequest{
		Email:    "test@acme.com",
		Password: "password123",
	}
	jsonBody, _ := json.Marshal(loginBody)
	req, _ := http.NewRequest("POST", "/auth/login", bytes.NewBuffer(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var response AuthResponse
	json.Unmarshal(resp.Body.Bytes(), &response)

	if response.Token == "" {
		t.Error("Expected token in response")
	}
	if response.User.Role != "user" {
		t.Errorf("Expected role user in response, got %s", response.User.Role)
	}
	if response.User.OrganizationID != 1 {
		t.Errorf("Expected organization 1 in response, got %d", response.User.OrganizationID)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	seedUser(t, db, "test@acme.com", "password123", models.RoleUser, 1)

	loginBody := LoginRequest{
		Email:    "test@acme.com",
		Password: "wrongpassword",
	}
	jsonBody, _ := json.Marshal(loginBody)
	req, _ := http.NewRequest("POST", "/auth/login", bytes.NewBuffer(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", resp.Code)
	}
}

func TestLoginUnknownEmail(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)

	loginBody := LoginRequest{
		Email:    "nobody@acme.com",
		Password: "password123",
	}
	jsonBody, _ := json.Marshal(loginBody)
	req, _ := http.NewRequest("POST", "/auth/login", bytes.NewBuffer(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", resp.Code)
	}
}

func TestMe(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	user := seedUser(t, db, "test@acme.com", "password123", models.RoleClientAdmin, 7)

	token, err := GenerateToken(user.ID, user.Email, string(user.Role), user.OrganizationID)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	req, _ := http.NewRequest("GET", "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var userResponse UserResponse
	json.Unmarshal(resp.Body.Bytes(), &userResponse)

	if userResponse.Email != "test@acme.com" {
		t.Errorf("Expected email test@acme.com, got %s", userResponse.Email)
	}
	if userResponse.Role != "client_admin" {
		t.Errorf("Expected role client_admin, got %s", userResponse.Role)
	}
}

func TestMeWithoutAuth(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)

	req, _ := http.NewRequest("GET", "/auth/me", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", resp.Code)
	}
}

func TestRequireSuperAdmin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/admin", AuthMiddleware(), RequireSuperAdmin(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	adminToken, _ := GenerateToken(1, "root@revu.local", "super_admin", 0)
	userToken, _ := GenerateToken(2, "user@acme.com", "user", 1)

	req, _ := http.NewRequest("GET", "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Errorf("Super admin should pass, got %d", resp.Code)
	}

	req, _ = http.NewRequest("GET", "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+userToken)
	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Errorf("Plain user should be rejected with 403, got %d", resp.Code)
	}
}

func TestRequireOrgAdmin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/org", AuthMiddleware(), RequireOrgAdmin(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	cases := []struct {
		role string
		want int
	}{
		{"super_admin", http.StatusOK},
		{"client_admin", http.StatusOK},
		{"area_admin", http.StatusForbidden},
		{"user", http.StatusForbidden},
	}

	for _, tc := range cases {
		token, _ := GenerateToken(1, "x@acme.com", tc.role, 1)
		req, _ := http.NewRequest("GET", "/org", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, req)
		if resp.Code != tc.want {
			t.Errorf("Role %s: expected %d, got %d", tc.role, tc.want, resp.Code)
		}
	}
}
