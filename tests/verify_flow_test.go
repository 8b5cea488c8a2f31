package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/tapgate/server/internal/auth"
	"github.com/tapgate/server/internal/db"
	"github.com/tapgate/server/internal/httpapi"
	"github.com/tapgate/server/internal/tapgate/service"
	"github.com/tapgate/server/internal/tapgate/store"
	"github.com/tapgate/server/internal/tapgate/store/sqlite"
	"github.com/tapgate/server/internal/tapgate/types"
)

// startServer boots the full stack against a throwaway SQLite database and
// returns the test server base URL.  One admin operator ("admin"/"admin-pw")
// is seeded.
func startServer(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	conn, err := db.Open(ctx, db.Config{
		Path: filepath.Join(t.TempDir(), "tapgate.db"),
		Env:  "dev",
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	writer := db.NewWorker(conn)
	t.Cleanup(func() { writer.Close() })

	passes := sqlite.NewPassStore(conn, writer)
	prompts := sqlite.NewPromptStore(conn, writer)
	events := sqlite.NewScanEventStore(conn, writer)
	operators := sqlite.NewOperatorStore(conn, writer)

	hash, err := auth.HashPassword("admin-pw")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	err = operators.Create(ctx, store.OperatorRecord{
		Username:     "admin",
		PasswordHash: hash,
		Role:         types.RoleAdmin,
	})
	if err != nil {
		t.Fatalf("seed admin: %v", err)
	}

	svc := service.NewPassService(passes, prompts, events, service.Config{})
	authn := auth.NewAuthenticator(operators, []byte("e2e-secret"), time.Hour)

	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger:      log.New(io.Discard, "", 0),
		Addr:        ":0",
		PassService: svc,
		Auth:        authn,
	})

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts.URL
}

func postJSON(t *testing.T, url, token string, body any, out any) int {
	t.Helper()

	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

// TestFullVerifyFlow walks a session pass through its whole life over HTTP:
// login, enrollment, a first consuming tap, a repeat tap that prompts,
// prompt confirmation for a party of two, and finally an admin reset.
func TestFullVerifyFlow(t *testing.T) {
	base := startServer(t)

	// Login.
	var loginResp types.LoginResponse
	code := postJSON(t, base+"/v1/login", "", types.LoginRequest{
		Username: "admin", Password: "admin-pw",
	}, &loginResp)
	if code != http.StatusOK {
		t.Fatalf("login: status %d", code)
	}
	token := loginResp.Token

	// Enroll a session pass for a party of four.
	var enrollResp struct {
		Pass types.Pass `json:"pass"`
	}
	code = postJSON(t, base+"/v1/pass", token, types.EnrollRequest{
		UID: "04AABBCC", PassType: types.PassTypeSession,
		Category: "General", PeopleAllowed: 4, MaxUses: 4,
	}, &enrollResp)
	if code != http.StatusCreated {
		t.Fatalf("enroll: status %d", code)
	}
	passID := enrollResp.Pass.PassID

	// First tap consumes one use.
	var verifyResp types.VerificationResult
	code = postJSON(t, base+"/v1/pass/verify", token, types.VerifyRequest{
		UID: "04AABBCC", GateID: "gate-a",
	}, &verifyResp)
	if code != http.StatusOK || verifyResp.Status != types.StatusValid {
		t.Fatalf("first tap: status %d, outcome %q", code, verifyResp.Status)
	}
	if verifyResp.RemainingUses != 3 {
		t.Fatalf("first tap: expected 3 remaining, got %d", verifyResp.RemainingUses)
	}

	// A repeat tap inside the recency window prompts instead of consuming.
	code = postJSON(t, base+"/v1/pass/verify", token, types.VerifyRequest{
		UID: "04AABBCC", GateID: "gate-a",
	}, &verifyResp)
	if code != http.StatusOK || verifyResp.Status != types.StatusPromptMultiUse {
		t.Fatalf("repeat tap: status %d, outcome %q", code, verifyResp.Status)
	}
	if verifyResp.PromptToken == "" {
		t.Fatal("repeat tap: expected a prompt token")
	}
	if verifyResp.RemainingUses != 3 {
		t.Fatalf("prompting must not consume, got %d remaining", verifyResp.RemainingUses)
	}
	promptToken := verifyResp.PromptToken

	// Confirm the prompt for two people.
	code = postJSON(t, base+"/v1/pass/consume-prompt", token, types.ConsumePromptRequest{
		PromptToken: promptToken, ConsumeCount: 2, GateID: "gate-a",
	}, &verifyResp)
	if code != http.StatusOK || verifyResp.Status != types.StatusValid {
		t.Fatalf("consume: status %d, outcome %q", code, verifyResp.Status)
	}
	if verifyResp.RemainingUses != 1 {
		t.Fatalf("consume: expected 1 remaining, got %d", verifyResp.RemainingUses)
	}

	// The same token cannot be spent twice.
	code = postJSON(t, base+"/v1/pass/consume-prompt", token, types.ConsumePromptRequest{
		PromptToken: promptToken, ConsumeCount: 1, GateID: "gate-a",
	}, nil)
	if code != http.StatusConflict {
		t.Fatalf("replay: expected 409, got %d", code)
	}

	// Admin reset restores the counters.
	req, err := http.NewRequest(http.MethodPatch, base+"/v1/pass/"+passID+"/reset", nil)
	if err != nil {
		t.Fatalf("reset request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reset: status %d", resp.StatusCode)
	}

	var resetResp struct {
		Pass types.Pass `json:"pass"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&resetResp); err != nil {
		t.Fatalf("decode reset: %v", err)
	}
	if resetResp.Pass.UsedCount != 0 || resetResp.Pass.Status != types.PassStatusActive {
		t.Fatalf("reset did not restore the pass: %+v", resetResp.Pass)
	}
}
