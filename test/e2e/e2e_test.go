//go:build e2e
// +build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/stemsi/conduct-console/internal/access"
	"github.com/stemsi/conduct-console/internal/conduct"
	"github.com/stemsi/conduct-console/internal/credstore"
	"github.com/stemsi/conduct-console/internal/model"
	"github.com/stemsi/conduct-console/internal/session"
	"github.com/stemsi/conduct-console/internal/transport"
)

// These tests run against a freshly started dev server (go run ./cmd/devserver).
const (
	defaultBaseURL = "http://localhost:8080/api/v1"
	demoPassword   = "pw1"
	defaultAdmin   = "admin123"
)

var (
	baseURL       string
	adminPassword string
	teacherTokens model.TokenResponse
	studentID     int
)

func TestMain(m *testing.M) {
	// Load .env if present (ignore error)
	_ = godotenv.Load("../../.env")

	baseURL = strings.TrimRight(os.Getenv("API_BASE_URL"), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	adminPassword = os.Getenv("ADMIN_PASSWORD")
	if adminPassword == "" {
		adminPassword = defaultAdmin
	}

	resp, err := get(strings.TrimSuffix(baseURL, "/api/v1")+"/health", "")
	if err != nil {
		fmt.Printf("Dev server not reachable at %s: %v\n", baseURL, err)
		os.Exit(1)
	}
	resp.Body.Close()

	os.Exit(m.Run())
}

func TestE2EFlow(t *testing.T) {
	// Step 1: Login as teacher
	t.Run("TeacherLogin", func(t *testing.T) {
		resp, err := post("/auth/login", model.LoginRequest{Username: "t1", Password: demoPassword}, "")
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status %d: %s", resp.StatusCode, readBody(resp))
		}
		if cc := resp.Header.Get("Cache-Control"); cc != "no-store" {
			t.Errorf("Cache-Control = %q, want no-store", cc)
		}

		var body struct {
			Data model.TokenResponse `json:"data"`
		}
		decodeJSON(t, resp, &body)
		teacherTokens = body.Data
		if teacherTokens.AccessToken == "" || teacherTokens.RefreshToken == "" {
			t.Fatal("token pair missing")
		}
		if teacherTokens.User == nil || teacherTokens.User.Role != model.RoleTeacher {
			t.Fatalf("unexpected user: %+v", teacherTokens.User)
		}
	})

	// Step 2: Wrong password keeps the server's message
	t.Run("WrongPassword", func(t *testing.T) {
		resp, err := post("/auth/login", model.LoginRequest{Username: "t1", Password: "nope"}, "")
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("status %d: %s", resp.StatusCode, readBody(resp))
		}
		if code := errorCode(t, resp); code != "INVALID_CREDENTIALS" {
			t.Errorf("code = %s, want INVALID_CREDENTIALS", code)
		}
	})

	// Step 3: Missing token is expiry shaped
	t.Run("MissingToken", func(t *testing.T) {
		resp, err := get("/users/profile", "")
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()

		if code := errorCode(t, resp); code != "TOKEN_REQUIRED" {
			t.Errorf("code = %s, want TOKEN_REQUIRED", code)
		}
	})

	// Step 4: Refresh rotates and the old refresh token dies
	t.Run("RefreshRotation", func(t *testing.T) {
		resp, err := post("/auth/refresh", nil, teacherTokens.RefreshToken)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		var body struct {
			Data model.TokenResponse `json:"data"`
		}
		decodeJSON(t, resp, &body)
		resp.Body.Close()
		if body.Data.RefreshToken == "" || body.Data.RefreshToken == teacherTokens.RefreshToken {
			t.Fatalf("refresh token not rotated")
		}

		replay, err := post("/auth/refresh", nil, teacherTokens.RefreshToken)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer replay.Body.Close()
		if code := errorCode(t, replay); code != "REFRESH_TOKEN_INVALID" {
			t.Errorf("replayed refresh code = %s, want REFRESH_TOKEN_INVALID", code)
		}
		teacherTokens = body.Data
	})

	// Step 5: Students are kept out of staff routes
	t.Run("StudentForbiddenFromClassrooms", func(t *testing.T) {
		tokens := login(t, "s2", demoPassword)
		resp, err := get("/classrooms", tokens.AccessToken)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusForbidden {
			t.Fatalf("status %d: %s", resp.StatusCode, readBody(resp))
		}
		if code := errorCode(t, resp); code != "STAFF_ACCESS_ONLY" {
			t.Errorf("code = %s, want STAFF_ACCESS_ONLY", code)
		}
	})

	// Step 6: Teacher renews and revokes a grant through the console core
	t.Run("GrantLifecycle", func(t *testing.T) {
		ctx := context.Background()
		teacher := newConsole(t, "t1", demoPassword)
		student := newConsole(t, "s4", demoPassword)

		decision, err := student.gate.CheckEventPermission(ctx, student.identity)
		if err != nil {
			t.Fatalf("check: %v", err)
		}
		studentID = decision.Student.ID

		if _, err := teacher.conduct.GrantEventPermission(ctx, studentID, time.Hour, "e2e"); err != nil {
			t.Fatalf("grant: %v", err)
		}
		decision, err = student.gate.CheckEventPermission(ctx, student.identity)
		if err != nil {
			t.Fatalf("check: %v", err)
		}
		if decision.Outcome != access.OutcomeGranted {
			t.Fatalf("outcome after grant = %s", decision.Outcome)
		}
		if _, err := student.gate.CreateOwnEvent(ctx, student.identity, 1, "e2e"); err != nil {
			t.Fatalf("create own event: %v", err)
		}

		if err := teacher.conduct.RevokeEventPermission(ctx, studentID); err != nil {
			t.Fatalf("revoke: %v", err)
		}
		decision, err = student.gate.CheckEventPermission(ctx, student.identity)
		if err != nil {
			t.Fatalf("check: %v", err)
		}
		if decision.Outcome != access.OutcomeInactive {
			t.Errorf("outcome after revoke = %s", decision.Outcome)
		}
	})

	// Step 7: Logout kills the session server side
	t.Run("Logout", func(t *testing.T) {
		resp, err := post("/auth/logout", nil, teacherTokens.AccessToken)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()

		after, err := get("/users/profile", teacherTokens.AccessToken)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer after.Body.Close()
		if code := errorCode(t, after); code != "SESSION_INVALIDATED" {
			t.Errorf("code = %s, want SESSION_INVALIDATED", code)
		}
	})
}

func TestAdminSeesEverySection(t *testing.T) {
	c := newConsole(t, "admin", adminPassword)
	if got := c.gate.Sections(&c.identity); len(got) != len(access.Sections(model.RoleAdmin)) {
		t.Errorf("admin sections = %d", len(got))
	}
}

// Helpers

type console struct {
	session  *session.Manager
	gate     *access.Gate
	conduct  *conduct.Service
	identity model.Identity
}

func newConsole(t *testing.T, username, password string) *console {
	t.Helper()
	client := transport.NewClient(baseURL, 10*time.Second)
	m := session.NewManager(client, credstore.NewMemoryStore(), zerolog.Nop())
	identity, err := m.Login(context.Background(), username, password)
	if err != nil {
		t.Fatalf("login %s: %v", username, err)
	}
	return &console{session: m, gate: access.NewGate(m), conduct: conduct.NewService(m), identity: identity}
}

func login(t *testing.T, username, password string) model.TokenResponse {
	t.Helper()
	resp, err := post("/auth/login", model.LoginRequest{Username: username, Password: password}, "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login %s: status %d: %s", username, resp.StatusCode, readBody(resp))
	}
	var body struct {
		Data model.TokenResponse `json:"data"`
	}
	decodeJSON(t, resp, &body)
	return body.Data
}

func post(path string, body interface{}, token string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		bodyReader = bytes.NewBuffer(jsonBytes)
	}

	req, err := http.NewRequest("POST", baseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	client := &http.Client{Timeout: 10 * time.Second}
	return client.Do(req)
}

func get(url string, token string) (*http.Response, error) {
	if strings.HasPrefix(url, "/") {
		url = baseURL + url
	}
	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	client := &http.Client{Timeout: 10 * time.Second}
	return client.Do(req)
}

func readBody(resp *http.Response) string {
	b, _ := io.ReadAll(resp.Body)
	return string(b)
}

func decodeJSON(t *testing.T, resp *http.Response, v interface{}) {
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("json decode: %v", err)
	}
}

func errorCode(t *testing.T, resp *http.Response) string {
	var body struct {
		Error *struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	decodeJSON(t, resp, &body)
	if body.Error == nil {
		t.Fatalf("status %d without error body", resp.StatusCode)
	}
	return body.Error.Code
}
