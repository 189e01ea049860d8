package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"agent-bounty-market/models"
	"agent-bounty-market/services"
	"agent-bounty-market/utils"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type testServer struct {
	t   *testing.T
	app *fiber.App
}

func newTestServer(t *testing.T, tiers map[services.Tier]services.TierLimit) *testServer {
	t.Helper()
	return newTestServerWithEvidence(t, tiers, nil, "")
}

func newTestServerWithEvidence(t *testing.T, tiers map[services.Tier]services.TierLimit, evidence services.EvidenceStore, uploadsDir string) *testServer {
	t.Helper()
	dsn := fmt.Sprintf("file:http_%s?mode=memory&cache=shared", uuid.NewString()[:8])
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true, Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	ledger := services.NewReputationLedger(db)
	app := NewApp(Deps{
		DB:            db,
		Resolver:      services.NewIdentityResolver(db, services.NewIdentityClient("http://127.0.0.1:0", "")),
		Quota:         services.NewQuotaGuard(tiers, clockwork.NewFakeClock()),
		Agents:        services.NewAgentService(db),
		Bounties:      services.NewBountyService(db),
		Reports:       services.NewReportService(db, evidence),
		Verification:  services.NewVerificationService(db, ledger),
		Ledger:        ledger,
		Payouts:       services.NewPayoutService(db),
		Webhooks:      services.NewWebhookService(db),
		InternalToken: "internal-secret",
		UploadsDir:    uploadsDir,
	})
	return &testServer{t: t, app: app}
}

// call sends a JSON request and decodes the JSON response.
func (s *testServer) call(method, path, token string, body interface{}) (int, map[string]interface{}) {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			s.t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.app.Test(req, int((5 * time.Second).Milliseconds()))
	if err != nil {
		s.t.Fatalf("%s %s: %v", method, path, err)
	}
	var out map[string]interface{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func (s *testServer) register(name string) (token, id string) {
	s.t.Helper()
	status, body := s.call("POST", "/api/v1/agents/register", "", fiber.Map{"name": name})
	if status != fiber.StatusCreated {
		s.t.Fatalf("register %s: %d %v", name, status, body)
	}
	agent := body["agent"].(map[string]interface{})
	return body["token"].(string), agent["id"].(string)
}

func field(m map[string]interface{}, path ...string) interface{} {
	var cur interface{} = m
	for _, p := range path {
		obj, ok := cur.(map[string]interface{})
		if !ok {
			return nil
		}
		cur = obj[p]
	}
	return cur
}

func TestBountyToPayoutOverHTTP(t *testing.T) {
	s := newTestServer(t, nil)
	ownerTok, _ := s.register("owner")
	reporterTok, reporterID := s.register("reporter")
	verifierTok, verifierID := s.register("verifier")

	status, body := s.call("POST", "/api/v1/bounties", ownerTok, fiber.Map{
		"title":  "Audit the payments API",
		"reward": "500",
	})
	if status != fiber.StatusCreated {
		t.Fatalf("create bounty: %d %v", status, body)
	}
	bountyID := field(body, "bounty", "id").(string)
	slug := field(body, "bounty", "slug").(string)

	status, body = s.call("GET", "/api/v1/bounties/"+slug, "", nil)
	if status != fiber.StatusOK || field(body, "bounty", "id") != bountyID {
		t.Fatalf("get by slug: %d %v", status, body)
	}

	status, body = s.call("POST", "/api/v1/reports", reporterTok, fiber.Map{
		"bounty_id":   bountyID,
		"vuln_type":   "idor",
		"title":       "Invoices readable across tenants",
		"description": "Changing the invoice id in GET /invoices/:id returns invoices of other tenants.",
		"poc":         "curl -H 'Authorization: ...' /invoices/2",
		"severity":    8,
	})
	if status != fiber.StatusCreated {
		t.Fatalf("submit report: %d %v", status, body)
	}
	reportID := field(body, "report", "id").(string)
	jobID := field(body, "job", "id").(string)
	if field(body, "job", "status") != "pending" {
		t.Fatalf("job status = %v", field(body, "job", "status"))
	}

	status, body = s.call("GET", "/api/v1/verification/jobs", reporterTok, nil)
	if status != fiber.StatusOK || len(body["jobs"].([]interface{})) != 0 {
		t.Fatalf("reporter job list: %d %v", status, body)
	}
	status, body = s.call("GET", "/api/v1/verification/jobs", verifierTok, nil)
	if status != fiber.StatusOK || len(body["jobs"].([]interface{})) != 1 {
		t.Fatalf("verifier job list: %d %v", status, body)
	}

	status, _ = s.call("POST", "/api/v1/verification", reporterTok, fiber.Map{"action": "claim", "job_id": jobID})
	if status != fiber.StatusForbidden {
		t.Fatalf("self claim status = %d, want 403", status)
	}
	status, body = s.call("POST", "/api/v1/verification", verifierTok, fiber.Map{"action": "claim", "job_id": jobID})
	if status != fiber.StatusOK || field(body, "job", "status") != "assigned" {
		t.Fatalf("claim: %d %v", status, body)
	}
	status, _ = s.call("POST", "/api/v1/verification", ownerTok, fiber.Map{"action": "claim", "job_id": jobID})
	if status != fiber.StatusConflict {
		t.Fatalf("second claim status = %d, want 409", status)
	}

	status, body = s.call("POST", "/api/v1/verification", verifierTok, fiber.Map{"action": "complete", "job_id": jobID})
	if status != fiber.StatusBadRequest {
		t.Fatalf("complete without verdict: %d %v", status, body)
	}

	status, body = s.call("POST", "/api/v1/verification", verifierTok, fiber.Map{
		"action": "complete", "job_id": jobID, "is_valid": true, "notes": "confirmed",
	})
	if status != fiber.StatusOK {
		t.Fatalf("complete: %d %v", status, body)
	}
	if field(body, "report", "is_verified") != true || field(body, "awards", "reporter") != float64(10) {
		t.Fatalf("complete body = %v", body)
	}

	status, body = s.call("GET", "/api/v1/agents/"+reporterID, "", nil)
	if status != fiber.StatusOK || field(body, "agent", "reputation") != float64(10) {
		t.Fatalf("reporter profile: %d %v", status, body)
	}
	status, body = s.call("GET", "/api/v1/agents/"+verifierID, "", nil)
	if status != fiber.StatusOK || field(body, "agent", "reputation") != float64(5) {
		t.Fatalf("verifier profile: %d %v", status, body)
	}

	status, body = s.call("POST", "/api/v1/reports/"+reportID+"/payout", reporterTok, nil)
	if status != fiber.StatusOK || field(body, "payout", "amount") != "500" {
		t.Fatalf("payout: %d %v", status, body)
	}
	status, _ = s.call("POST", "/api/v1/reports/"+reportID+"/payout", reporterTok, nil)
	if status != fiber.StatusConflict {
		t.Fatalf("second payout status = %d, want 409", status)
	}

	status, body = s.call("GET", "/api/v1/agents/me/reputation", reporterTok, nil)
	if status != fiber.StatusOK || len(body["events"].([]interface{})) != 1 {
		t.Fatalf("reputation history: %d %v", status, body)
	}
}

func TestValidationErrorsListIssues(t *testing.T) {
	s := newTestServer(t, nil)
	tok, _ := s.register("reporter")

	status, body := s.call("POST", "/api/v1/reports", tok, fiber.Map{"vuln_type": "xss", "severity": 0})
	if status != fiber.StatusBadRequest || body["success"] != false {
		t.Fatalf("status = %d body = %v", status, body)
	}
	issues, _ := body["issues"].([]interface{})
	if len(issues) != 5 {
		t.Fatalf("issues = %v, want bounty_id, title, description, poc and severity", issues)
	}

	status, _ = s.call("GET", "/api/v1/reports/not-a-uuid", tok, nil)
	if status != fiber.StatusBadRequest {
		t.Fatalf("bad id status = %d, want 400", status)
	}

	status, body = s.call("GET", "/api/v1/bounties?owner_id=abc", "", nil)
	if status != fiber.StatusBadRequest || field(body, "issues") == nil {
		t.Fatalf("bad owner_id: %d %v", status, body)
	}
}

func TestAuthFailures(t *testing.T) {
	s := newTestServer(t, nil)

	status, _ := s.call("GET", "/api/v1/agents/me", "", nil)
	if status != fiber.StatusUnauthorized {
		t.Fatalf("no token status = %d", status)
	}
	status, body := s.call("GET", "/api/v1/agents/me", "hub_tooshort", nil)
	if status != fiber.StatusUnauthorized || body["error"] != "malformed credential" {
		t.Fatalf("malformed token: %d %v", status, body)
	}
	status, _ = s.call("GET", "/api/v1/agents/leaderboard", "local_definitely_not_a_real_token_value", nil)
	if status != fiber.StatusOK {
		t.Fatalf("optional route with bad token status = %d, want 200", status)
	}
}

func TestRepeatedBadRemoteTokensStopReachingIdentityService(t *testing.T) {
	s := newTestServer(t, map[services.Tier]services.TierLimit{
		services.TierAuthFailure: {Limit: 3, Window: time.Minute},
	})
	garbage := services.RemoteTokenPrefix + strings.Repeat("ab", 32)

	// The identity service address is unreachable, so each resolved attempt surfaces as 502.
	for i := 0; i < 3; i++ {
		if status, body := s.call("GET", "/api/v1/agents/me", garbage, nil); status != fiber.StatusBadGateway {
			t.Fatalf("attempt %d: %d %v", i+1, status, body)
		}
	}
	status, body := s.call("GET", "/api/v1/agents/me", garbage, nil)
	if status != fiber.StatusTooManyRequests || body["error"] != "too many failed authentication attempts" {
		t.Fatalf("after budget: %d %v", status, body)
	}

	// Local registration from the same origin is unaffected by the failure budget.
	if _, id := s.register("fresh"); id == "" {
		t.Fatal("register returned no id")
	}
}

func TestSensitiveTierIsRateLimited(t *testing.T) {
	s := newTestServer(t, map[services.Tier]services.TierLimit{
		services.TierSensitive: {Limit: 2, Window: time.Minute},
	})
	tok, _ := s.register("agent")

	for i := 0; i < 2; i++ {
		status, body := s.call("POST", "/api/v1/agents/me/token", tok, nil)
		if status != fiber.StatusOK {
			t.Fatalf("rotation %d status = %d", i+1, status)
		}
		// Each rotation invalidates the previous token.
		tok = body["token"].(string)
	}
	status, body := s.call("POST", "/api/v1/agents/me/token", tok, nil)
	if status != fiber.StatusTooManyRequests || body["retry_after_seconds"] != float64(60) {
		t.Fatalf("third rotation: %d %v", status, body)
	}
}

func TestInternalQuotaRoutes(t *testing.T) {
	s := newTestServer(t, nil)
	s.register("agent")

	req := httptest.NewRequest("GET", "/internal/quota", nil)
	resp, err := s.app.Test(req)
	if err != nil || resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("unauthenticated internal call: %v %v", resp.StatusCode, err)
	}

	req = httptest.NewRequest("GET", "/internal/quota", nil)
	req.Header.Set("X-Service-Token", "internal-secret")
	resp, err = s.app.Test(req)
	if err != nil || resp.StatusCode != fiber.StatusOK {
		t.Fatalf("internal quota: %v %v", resp.StatusCode, err)
	}
	var body map[string]interface{}
	_ = json.NewDecoder(resp.Body).Decode(&body)
	if field(body, "quota", "windows") != float64(1) {
		t.Fatalf("quota stats = %v", body)
	}
}

func (s *testServer) upload(path, token, filename string, content []byte) (int, map[string]interface{}) {
	s.t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		s.t.Fatalf("create form file: %v", err)
	}
	_, _ = part.Write(content)
	_ = w.Close()

	req := httptest.NewRequest("POST", path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := s.app.Test(req, int((5 * time.Second).Milliseconds()))
	if err != nil {
		s.t.Fatalf("POST %s: %v", path, err)
	}
	var out map[string]interface{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func TestEvidenceUploadToDisk(t *testing.T) {
	dir := t.TempDir()
	s := newTestServerWithEvidence(t, nil, &utils.DiskStore{Root: dir, BaseURL: "/uploads"}, dir)
	ownerTok, _ := s.register("owner")
	reporterTok, _ := s.register("reporter")

	_, body := s.call("POST", "/api/v1/bounties", ownerTok, fiber.Map{"title": "Audit the upload API", "reward": "50"})
	bountyID := field(body, "bounty", "id").(string)
	status, body := s.call("POST", "/api/v1/reports", reporterTok, fiber.Map{
		"bounty_id":   bountyID,
		"vuln_type":   "ssrf",
		"title":       "Avatar fetcher reaches metadata service",
		"description": "The avatar URL fetcher follows redirects into 169.254.169.254 and echoes the body.",
		"poc":         "avatar_url=http://redirector/meta",
		"severity":    7,
	})
	if status != fiber.StatusCreated {
		t.Fatalf("submit report: %d %v", status, body)
	}
	reportID := field(body, "report", "id").(string)
	path := "/api/v1/reports/" + reportID + "/attachments"

	status, body = s.call("GET", "/api/v1/reports/"+reportID, reporterTok, nil)
	if status != fiber.StatusOK {
		t.Fatalf("get report: %d %v", status, body)
	}

	if status, body := s.upload(path, ownerTok, "trace.txt", []byte("not mine")); status != fiber.StatusForbidden {
		t.Fatalf("owner upload: %d %v", status, body)
	}

	content := []byte("GET /meta HTTP/1.1\nHost: 169.254.169.254\n")
	status, body = s.upload(path, reporterTok, "Trace.TXT", content)
	if status != fiber.StatusCreated {
		t.Fatalf("reporter upload: %d %v", status, body)
	}
	url, _ := field(body, "attachment", "url").(string)
	prefix := "/uploads/evidence/" + reportID + "/"
	if !strings.HasPrefix(url, prefix) || !strings.HasSuffix(url, ".txt") {
		t.Fatalf("attachment url = %q, want %s*.txt", url, prefix)
	}

	resp, err := s.app.Test(httptest.NewRequest("GET", url, nil))
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	served, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != fiber.StatusOK || !bytes.Equal(served, content) {
		t.Fatalf("served %d %q, want %q", resp.StatusCode, served, content)
	}

	status, body = s.call("GET", "/api/v1/reports/"+reportID, ownerTok, nil)
	if status != fiber.StatusOK {
		t.Fatalf("owner get report: %d %v", status, body)
	}
	if list, _ := body["attachments"].([]interface{}); len(list) != 1 {
		t.Fatalf("attachments = %v, want one", body["attachments"])
	}
}

func TestEvidenceUploadDisabled(t *testing.T) {
	s := newTestServer(t, nil)
	reporterTok, _ := s.register("reporter")
	status, body := s.upload("/api/v1/reports/"+uuid.NewString()+"/attachments", reporterTok, "a.txt", []byte("x"))
	if status != fiber.StatusBadGateway {
		t.Fatalf("upload without storage: %d %v", status, body)
	}
}
