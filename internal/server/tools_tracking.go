package server

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// handleTrackDataAccess handles the lineage_track_data_access tool request.
func (s *Server) handleTrackDataAccess(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := requestArgs(request)

	qualifiedNames := stringListArg(args, "qualified_names")
	if len(qualifiedNames) == 0 {
		return mcp.NewToolResultError("missing or invalid 'qualified_names' argument"), nil
	}

	if agentName := stringArg(args, "agent_name"); agentName != "" {
		s.tracker.SetAgentName(agentName)
	}

	s.tracker.Track(qualifiedNames)
	tracked := s.tracker.TrackedAssets()

	return jsonResult(map[string]interface{}{
		"success":        true,
		"agent_name":     s.tracker.AgentName(),
		"assets_tracked": tracked,
		"message": fmt.Sprintf("Tracked %d tables and %d columns",
			tracked.TotalTables, tracked.TotalColumns),
	})
}

// handleTrackingStatus handles the lineage_get_tracking_status tool request.
func (s *Server) handleTrackingStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tracked := s.tracker.TrackedAssets()

	return jsonResult(map[string]interface{}{
		"success":         true,
		"agent_name":      s.tracker.AgentName(),
		"session_id":      s.tracker.SessionID(),
		"tracked_assets":  tracked,
		"ready_to_commit": tracked.TotalTables > 0,
	})
}

// handleCommitAgent handles the lineage_commit_agent tool request. Tracked
// assets are cleared only after a fully successful commit, so a partial
// failure can be retried.
func (s *Server) handleCommitAgent(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := requestArgs(request)

	rebuildGraph := boolArg(args, "rebuild_graph", true)
	clearAfterCommit := boolArg(args, "clear_after_commit", true)

	result := s.tracker.CreateLineageEdges(ctx, rebuildGraph)
	if clearAfterCommit && result.Success {
		s.tracker.Clear()
		result.AssetsCleared = true
	}
	return jsonResult(result)
}

// handleClearTrackedAssets handles the lineage_clear_tracked_assets tool
// request.
func (s *Server) handleClearTrackedAssets(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tracked := s.tracker.TrackedAssets()
	s.tracker.Clear()

	return jsonResult(map[string]interface{}{
		"success":    true,
		"message":    fmt.Sprintf("Cleared %d tracked tables", tracked.TotalTables),
		"agent_name": s.tracker.AgentName(),
	})
}

// handleCleanupAgentEdges handles the lineage_cleanup_agent_edges tool
// request.
func (s *Server) handleCleanupAgentEdges(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := requestArgs(request)

	retentionDays := intArg(args, "retention_days", 30)
	result := s.tracker.CleanupOldEdges(ctx, retentionDays)
	return jsonResult(result)
}
