package bigeye

import (
	"strings"
	"testing"
)

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"BIGEYE_API_KEY",
		"BIGEYE_WORKSPACE_ID",
		"BIGEYE_BASE_URL",
		"BIGEYE_API_URL",
		"BIGEYE_DEBUG",
		"MCP_AGENT_NAME",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadConfig(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("BIGEYE_API_KEY", "test-key")
	t.Setenv("BIGEYE_WORKSPACE_ID", "123")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.APIKey != "test-key" {
		t.Errorf("APIKey = %q, want %q", cfg.APIKey, "test-key")
	}
	if cfg.WorkspaceID != 123 {
		t.Errorf("WorkspaceID = %d, want 123", cfg.WorkspaceID)
	}
	if cfg.BaseURL != DefaultBaseURL {
		t.Errorf("BaseURL = %q, want default %q", cfg.BaseURL, DefaultBaseURL)
	}
	if cfg.Debug {
		t.Error("Debug = true, want false by default")
	}
}

func TestLoadConfigMissingVars(t *testing.T) {
	clearConfigEnv(t)

	_, err := LoadConfig()
	if err == nil {
		t.Fatal("LoadConfig succeeded without required variables")
	}
	for _, want := range []string{"BIGEYE_WORKSPACE_ID", "BIGEYE_API_KEY"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not name %s", err, want)
		}
	}
}

func TestLoadConfigBaseURLPrecedence(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("BIGEYE_API_KEY", "k")
	t.Setenv("BIGEYE_WORKSPACE_ID", "1")
	t.Setenv("BIGEYE_BASE_URL", "https://primary.bigeye.com")
	t.Setenv("BIGEYE_API_URL", "https://legacy.bigeye.com")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.BaseURL != "https://primary.bigeye.com" {
		t.Errorf("BaseURL = %q, want BIGEYE_BASE_URL to win", cfg.BaseURL)
	}
}

func TestLoadConfigLegacyURLVar(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("BIGEYE_API_KEY", "k")
	t.Setenv("BIGEYE_WORKSPACE_ID", "1")
	t.Setenv("BIGEYE_API_URL", "https://legacy.bigeye.com")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.BaseURL != "https://legacy.bigeye.com" {
		t.Errorf("BaseURL = %q, want BIGEYE_API_URL fallback", cfg.BaseURL)
	}
}

func TestLoadConfigTrimsTrailingSlash(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("BIGEYE_API_KEY", "k")
	t.Setenv("BIGEYE_WORKSPACE_ID", "1")
	t.Setenv("BIGEYE_BASE_URL", "https://app.bigeye.com/")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.BaseURL != "https://app.bigeye.com" {
		t.Errorf("BaseURL = %q, want trailing slash removed", cfg.BaseURL)
	}
}

func TestLoadConfigInvalidWorkspace(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("BIGEYE_API_KEY", "k")
	t.Setenv("BIGEYE_WORKSPACE_ID", "not-a-number")

	_, err := LoadConfig()
	if err == nil {
		t.Fatal("LoadConfig succeeded with non-numeric workspace")
	}
	if !strings.Contains(err.Error(), "BIGEYE_WORKSPACE_ID") {
		t.Errorf("error %q does not name the workspace variable", err)
	}
}

func TestLoadConfigAgentName(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("BIGEYE_API_KEY", "k")
	t.Setenv("BIGEYE_WORKSPACE_ID", "1")
	t.Setenv("USER", "jordan")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.AgentName != "AI Agent - jordan" {
		t.Errorf("AgentName = %q, want %q", cfg.AgentName, "AI Agent - jordan")
	}

	t.Setenv("MCP_AGENT_NAME", "Pipeline Bot")
	cfg, err = LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.AgentName != "Pipeline Bot" {
		t.Errorf("AgentName = %q, want MCP_AGENT_NAME override", cfg.AgentName)
	}
}

func TestLoadConfigDebugFlag(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("BIGEYE_API_KEY", "k")
	t.Setenv("BIGEYE_WORKSPACE_ID", "1")

	for _, value := range []string{"true", "1", "yes", "TRUE"} {
		t.Setenv("BIGEYE_DEBUG", value)
		cfg, err := LoadConfig()
		if err != nil {
			t.Fatalf("LoadConfig with BIGEYE_DEBUG=%s: %v", value, err)
		}
		if !cfg.Debug {
			t.Errorf("Debug = false with BIGEYE_DEBUG=%s", value)
		}
	}

	t.Setenv("BIGEYE_DEBUG", "false")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Debug {
		t.Error("Debug = true with BIGEYE_DEBUG=false")
	}
}

func TestLoadConfigKeyLookupFallback(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("BIGEYE_WORKSPACE_ID", "42")

	var askedInstance string
	var askedWorkspace int64
	lookup := func(instance string, workspaceID int64) (string, bool) {
		askedInstance = instance
		askedWorkspace = workspaceID
		return "stored-key", true
	}

	cfg, err := LoadConfigWithKeyLookup(lookup)
	if err != nil {
		t.Fatalf("LoadConfigWithKeyLookup: %v", err)
	}
	if cfg.APIKey != "stored-key" {
		t.Errorf("APIKey = %q, want stored key", cfg.APIKey)
	}
	if askedInstance != DefaultBaseURL || askedWorkspace != 42 {
		t.Errorf("lookup called with (%q, %d), want (%q, 42)", askedInstance, askedWorkspace, DefaultBaseURL)
	}
}

func TestLoadConfigEnvKeyBeatsLookup(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("BIGEYE_API_KEY", "env-key")
	t.Setenv("BIGEYE_WORKSPACE_ID", "1")

	called := false
	lookup := func(string, int64) (string, bool) {
		called = true
		return "stored-key", true
	}

	cfg, err := LoadConfigWithKeyLookup(lookup)
	if err != nil {
		t.Fatalf("LoadConfigWithKeyLookup: %v", err)
	}
	if cfg.APIKey != "env-key" {
		t.Errorf("APIKey = %q, want environment to win", cfg.APIKey)
	}
	if called {
		t.Error("lookup was consulted despite BIGEYE_API_KEY being set")
	}
}

func TestRedactedAPIKey(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"abcdefgh1234", "***1234"},
		{"abcd", "****"},
		{"", "****"},
	}
	for _, tt := range tests {
		cfg := &Config{APIKey: tt.key}
		if got := cfg.RedactedAPIKey(); got != tt.want {
			t.Errorf("RedactedAPIKey(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}
