package bigeye

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// DefaultBaseURL is used when no instance URL is configured.
const DefaultBaseURL = "https://app.bigeye.com"

// Config holds the Bigeye connection settings. It is loaded once at process
// start and passed into the client and tracker constructors.
type Config struct {
	// BaseURL is the Bigeye instance URL, e.g. https://app.bigeye.com.
	BaseURL string

	// APIKey authenticates requests via the "apikey" authorization scheme.
	APIKey string

	// WorkspaceID scopes issue and catalog queries.
	WorkspaceID int64

	// AgentName identifies this agent in the lineage graph.
	AgentName string

	// Debug enables request/response payload logging.
	Debug bool
}

// KeyLookup resolves an API key for an instance and workspace from a source
// other than the environment, such as the local credential store.
type KeyLookup func(instance string, workspaceID int64) (string, bool)

// LoadConfig reads the configuration from environment variables.
// BIGEYE_API_KEY and BIGEYE_WORKSPACE_ID are required; BIGEYE_BASE_URL takes
// precedence over BIGEYE_API_URL for the instance URL.
func LoadConfig() (*Config, error) {
	return LoadConfigWithKeyLookup(nil)
}

// LoadConfigWithKeyLookup is LoadConfig with a fallback source for the API
// key, consulted only when BIGEYE_API_KEY is unset.
func LoadConfigWithKeyLookup(lookup KeyLookup) (*Config, error) {
	cfg := &Config{
		BaseURL:   DefaultBaseURL,
		APIKey:    os.Getenv("BIGEYE_API_KEY"),
		AgentName: agentNameFromEnv(),
		Debug:     envBool("BIGEYE_DEBUG"),
	}

	if url := os.Getenv("BIGEYE_BASE_URL"); url != "" {
		cfg.BaseURL = url
	} else if url := os.Getenv("BIGEYE_API_URL"); url != "" {
		cfg.BaseURL = url
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	var missing []string

	wsRaw := strings.TrimSpace(os.Getenv("BIGEYE_WORKSPACE_ID"))
	if wsRaw == "" {
		missing = append(missing, "BIGEYE_WORKSPACE_ID")
	} else {
		ws, err := strconv.ParseInt(wsRaw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid BIGEYE_WORKSPACE_ID %q: must be a number", wsRaw)
		}
		cfg.WorkspaceID = ws
	}

	if cfg.APIKey == "" && lookup != nil && cfg.WorkspaceID != 0 {
		if key, ok := lookup(cfg.BaseURL, cfg.WorkspaceID); ok {
			cfg.APIKey = key
		}
	}
	if cfg.APIKey == "" {
		missing = append(missing, "BIGEYE_API_KEY")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	return cfg, nil
}

// RedactedAPIKey returns the API key with all but the last four characters
// masked, for safe logging.
func (c *Config) RedactedAPIKey() string {
	if len(c.APIKey) > 4 {
		return "***" + c.APIKey[len(c.APIKey)-4:]
	}
	return "****"
}

func agentNameFromEnv() string {
	if name := os.Getenv("MCP_AGENT_NAME"); name != "" {
		return name
	}
	user := os.Getenv("USER")
	if user == "" {
		user = "Unknown"
	}
	return "AI Agent - " + user
}

func envBool(key string) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "true", "1", "yes":
		return true
	}
	return false
}
