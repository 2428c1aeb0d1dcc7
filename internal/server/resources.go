package server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/bigeyedata/bigeye-mcp-server/internal/bigeye"
)

// registerResources registers the read-only status resources.
func (s *Server) registerResources() {
	authResource := mcp.NewResource("bigeye://auth/status", "Authentication Status",
		mcp.WithResourceDescription("Current Bigeye authentication status"),
		mcp.WithMIMEType("text/plain"),
	)
	s.mcpServer.AddResource(authResource, s.handleAuthStatusResource)

	healthResource := mcp.NewResource("bigeye://health", "API Health",
		mcp.WithResourceDescription("Health status of the Bigeye API"),
		mcp.WithMIMEType("text/plain"),
	)
	s.mcpServer.AddResource(healthResource, s.handleHealthResource)

	configResource := mcp.NewResource("bigeye://config", "Server Configuration",
		mcp.WithResourceDescription("Current Bigeye connection configuration"),
		mcp.WithMIMEType("application/json"),
	)
	s.mcpServer.AddResource(configResource, s.handleConfigResource)

	issuesResource := mcp.NewResource("bigeye://issues", "Workspace Issues",
		mcp.WithResourceDescription("All issues from the configured workspace"),
		mcp.WithMIMEType("application/json"),
	)
	s.mcpServer.AddResource(issuesResource, s.handleIssuesResource)
}

func textResource(uri, mimeType, text string) []mcp.ResourceContents {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: mimeType,
			Text:     text,
		},
	}
}

// handleAuthStatusResource serves bigeye://auth/status.
func (s *Server) handleAuthStatusResource(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	if s.cfg.APIKey == "" || s.cfg.WorkspaceID == 0 {
		return textResource(request.Params.URI, "text/plain",
			"ERROR: Bigeye credentials not configured.\n\nSet BIGEYE_API_KEY and BIGEYE_WORKSPACE_ID in the environment."), nil
	}
	text := fmt.Sprintf("Connected to Bigeye:\n- Instance: %s\n- Workspace ID: %d\n- Status: Authenticated via environment variables",
		s.cfg.BaseURL, s.cfg.WorkspaceID)
	return textResource(request.Params.URI, "text/plain", text), nil
}

// handleHealthResource serves bigeye://health.
func (s *Server) handleHealthResource(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	status, err := s.client.CheckHealth(ctx)
	if err != nil {
		return textResource(request.Params.URI, "text/plain",
			fmt.Sprintf("Error checking API health: %v", err)), nil
	}
	return textResource(request.Params.URI, "text/plain",
		fmt.Sprintf("API Health Status: %s", status.Status)), nil
}

// handleConfigResource serves bigeye://config.
func (s *Server) handleConfigResource(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	data, err := json.Marshal(map[string]interface{}{
		"authenticated": s.cfg.APIKey != "",
		"instance":      s.cfg.BaseURL,
		"workspace_id":  s.cfg.WorkspaceID,
		"api_base_url":  s.cfg.BaseURL + "/api/v1",
	})
	if err != nil {
		return nil, err
	}
	return textResource(request.Params.URI, "application/json", string(data)), nil
}

// handleIssuesResource serves bigeye://issues.
func (s *Server) handleIssuesResource(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	s.logger.Debug("Fetching all issues for workspace %d", s.cfg.WorkspaceID)
	raw, err := s.client.FetchIssues(ctx, bigeye.FetchIssuesRequest{
		WorkspaceID: s.cfg.WorkspaceID,
	})
	if err != nil {
		return nil, fmt.Errorf("fetching issues: %w", err)
	}
	return textResource(request.Params.URI, "application/json", string(raw)), nil
}
