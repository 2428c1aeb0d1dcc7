package lineage

import (
	"context"
	"fmt"
	"time"
)

// CleanupResult reports the outcome of a retention sweep.
type CleanupResult struct {
	Success            bool     `json:"success"`
	Error              string   `json:"error,omitempty"`
	EdgesDeleted       int      `json:"edges_deleted"`
	AgentEdgesChecked  int      `json:"agent_edges_checked"`
	TotalEdgesReturned int      `json:"total_edges_returned"`
	RetentionDays      int      `json:"retention_days"`
	CutoffDate         string   `json:"cutoff_date,omitempty"`
	Errors             []string `json:"errors,omitempty"`
}

// CleanupOldEdges deletes agent edges older than the retention window. A
// retention of zero days makes every agent edge eligible.
//
// Only edges with the agent node as an endpoint are ever deleted. The
// endpoint check below is the sole guard against deleting lineage between two
// ordinary data assets that the API happens to return; it must never be
// weakened.
func (t *Tracker) CleanupOldEdges(ctx context.Context, retentionDays int) *CleanupResult {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.api == nil {
		return &CleanupResult{Error: "No Bigeye client configured"}
	}

	agentID := t.ensureAgentNode(ctx)
	if agentID == 0 {
		return &CleanupResult{Error: "Failed to find agent node"}
	}

	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	t.logger.Debug("Cleaning up edges older than %d days for agent %s (cutoff %s)",
		retentionDays, t.agentName, cutoff.Format(time.RFC3339))

	edges, err := t.api.EdgesForNode(ctx, agentID, "both")
	if err != nil {
		return &CleanupResult{Error: fmt.Sprintf("Failed to get edges: %v", err)}
	}

	result := &CleanupResult{
		TotalEdgesReturned: len(edges),
		RetentionDays:      retentionDays,
		CutoffDate:         cutoff.Format(time.RFC3339),
	}

	for _, edge := range edges {
		if edge.UpstreamNodeID != agentID && edge.DownstreamNodeID != agentID {
			t.logger.Debug("Skipping edge %d - agent not involved", edge.ID)
			continue
		}
		result.AgentEdgesChecked++

		if edge.CreatedAt == "" {
			continue
		}
		createdAt, err := time.Parse(time.RFC3339, edge.CreatedAt)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Error processing edge %d: %v", edge.ID, err))
			continue
		}
		if !createdAt.Before(cutoff) {
			continue
		}

		if edge.UpstreamNodeID == agentID {
			t.logger.Debug("Deleting old edge %d: agent -> node %d, created at %s", edge.ID, edge.DownstreamNodeID, edge.CreatedAt)
		} else {
			t.logger.Debug("Deleting old edge %d: node %d -> agent, created at %s", edge.ID, edge.UpstreamNodeID, edge.CreatedAt)
		}
		if err := t.api.DeleteEdge(ctx, edge.ID); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Failed to delete edge %d: %v", edge.ID, err))
			continue
		}
		result.EdgesDeleted++
	}

	t.logger.Debug("Cleanup complete: deleted %d of %d agent-related edges", result.EdgesDeleted, result.AgentEdgesChecked)
	result.Success = len(result.Errors) == 0
	return result
}
