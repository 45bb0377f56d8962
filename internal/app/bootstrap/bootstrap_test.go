package bootstrap

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dalemusser/blockhub/internal/testutil"
	"go.uber.org/zap"
)

func validAppConfig() AppConfig {
	return AppConfig{
		MongoURI:         "mongodb://localhost:27017",
		MongoDatabase:    "block_hub",
		AutosaveInterval: 30 * time.Second,
		PingInterval:     5 * time.Second,
		PingTimeout:      30 * time.Second,
	}
}

func TestValidateConfig(t *testing.T) {
	log := zap.NewNop()

	if err := ValidateConfig(nil, validAppConfig(), log); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	bad := validAppConfig()
	bad.MongoURI = "not-a-mongo-uri"
	if err := ValidateConfig(nil, bad, log); err == nil {
		t.Error("expected error for malformed mongo URI")
	}

	bad = validAppConfig()
	bad.PingTimeout = bad.PingInterval
	if err := ValidateConfig(nil, bad, log); err == nil {
		t.Error("expected error when ping_timeout does not exceed ping_interval")
	}

	bad = validAppConfig()
	bad.AutosaveInterval = 0
	if err := ValidateConfig(nil, bad, log); err == nil {
		t.Error("expected error for zero autosave_interval")
	}
}

func TestBuildHandlerServesHealth(t *testing.T) {
	db := testutil.SetupTestDB(t)
	deps := DBDeps{MongoClient: db.Client(), MongoDatabase: db}

	h, err := BuildHandler(nil, validAppConfig(), deps, zap.NewNop())
	if err != nil {
		t.Fatalf("BuildHandler failed: %v", err)
	}

	srv := httptest.NewServer(h)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 from /health, got %d", resp.StatusCode)
	}
}
