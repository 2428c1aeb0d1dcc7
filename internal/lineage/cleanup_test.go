package lineage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bigeyedata/bigeye-mcp-server/internal/bigeye"
)

func ageDays(days int) string {
	return time.Now().AddDate(0, 0, -days).Format(time.RFC3339)
}

// cleanupFixture returns a tracker whose agent node 300 already exists.
func cleanupFixture() (*fakeGraph, *Tracker) {
	api := newFakeGraph()
	api.nodesByName["Test Agent"] = []bigeye.Node{{ID: 300, NodeName: "Test Agent", NodeType: bigeye.NodeTypeCustom}}
	return api, newTestTracker(api)
}

func TestCleanupWithoutClient(t *testing.T) {
	tracker := NewTracker(nil, "Test Agent", 7, testLogger())

	result := tracker.CleanupOldEdges(context.Background(), 30)
	if result.Error != "No Bigeye client configured" {
		t.Errorf("Error = %q, want %q", result.Error, "No Bigeye client configured")
	}
}

func TestCleanupAgentNodeFailure(t *testing.T) {
	api := newFakeGraph()
	api.createNodeErr = errors.New("boom")
	tracker := newTestTracker(api)

	result := tracker.CleanupOldEdges(context.Background(), 30)
	if result.Error != "Failed to find agent node" {
		t.Errorf("Error = %q, want %q", result.Error, "Failed to find agent node")
	}
}

func TestCleanupDeletesOnlyOldAgentEdges(t *testing.T) {
	api, tracker := cleanupFixture()
	api.edges = []bigeye.Edge{
		// Old edge touching the agent: deleted.
		{ID: 1, UpstreamNodeID: 10, DownstreamNodeID: 300, CreatedAt: ageDays(40)},
		// Recent edge touching the agent: kept.
		{ID: 2, UpstreamNodeID: 300, DownstreamNodeID: 11, CreatedAt: ageDays(5)},
		// Old edge between two ordinary assets: never deleted.
		{ID: 3, UpstreamNodeID: 10, DownstreamNodeID: 11, CreatedAt: ageDays(400)},
	}

	result := tracker.CleanupOldEdges(context.Background(), 30)
	if !result.Success {
		t.Fatalf("Success = false, errors: %v", result.Errors)
	}
	if result.EdgesDeleted != 1 {
		t.Errorf("EdgesDeleted = %d, want 1", result.EdgesDeleted)
	}
	if result.AgentEdgesChecked != 2 {
		t.Errorf("AgentEdgesChecked = %d, want 2", result.AgentEdgesChecked)
	}
	if result.TotalEdgesReturned != 3 {
		t.Errorf("TotalEdgesReturned = %d, want 3", result.TotalEdgesReturned)
	}
	if len(api.deletedEdges) != 1 || api.deletedEdges[0] != 1 {
		t.Errorf("deleted edges = %v, want [1]", api.deletedEdges)
	}
}

func TestCleanupRetentionZeroDeletesAllAgentEdges(t *testing.T) {
	api, tracker := cleanupFixture()
	api.edges = []bigeye.Edge{
		{ID: 1, UpstreamNodeID: 10, DownstreamNodeID: 300, CreatedAt: ageDays(1)},
		{ID: 2, UpstreamNodeID: 300, DownstreamNodeID: 11, CreatedAt: ageDays(0)},
	}

	result := tracker.CleanupOldEdges(context.Background(), 0)
	if result.EdgesDeleted != 2 {
		t.Errorf("EdgesDeleted = %d, want 2 with zero retention", result.EdgesDeleted)
	}
}

func TestCleanupSkipsEdgesWithoutTimestamp(t *testing.T) {
	api, tracker := cleanupFixture()
	api.edges = []bigeye.Edge{
		{ID: 1, UpstreamNodeID: 10, DownstreamNodeID: 300},
	}

	result := tracker.CleanupOldEdges(context.Background(), 30)
	if !result.Success {
		t.Fatalf("Success = false, errors: %v", result.Errors)
	}
	if result.EdgesDeleted != 0 {
		t.Errorf("EdgesDeleted = %d, want 0", result.EdgesDeleted)
	}
	if result.AgentEdgesChecked != 1 {
		t.Errorf("AgentEdgesChecked = %d, want 1", result.AgentEdgesChecked)
	}
}

func TestCleanupRecordsMalformedTimestamps(t *testing.T) {
	api, tracker := cleanupFixture()
	api.edges = []bigeye.Edge{
		{ID: 1, UpstreamNodeID: 10, DownstreamNodeID: 300, CreatedAt: "not-a-date"},
	}

	result := tracker.CleanupOldEdges(context.Background(), 30)
	if result.Success {
		t.Error("Success = true, want false with parse errors")
	}
	if len(result.Errors) != 1 {
		t.Fatalf("Errors = %v, want exactly one", result.Errors)
	}
	if len(api.deletedEdges) != 0 {
		t.Errorf("deleted edges = %v, want none", api.deletedEdges)
	}
}

func TestCleanupRecordsDeleteFailures(t *testing.T) {
	api, tracker := cleanupFixture()
	api.edges = []bigeye.Edge{
		{ID: 1, UpstreamNodeID: 10, DownstreamNodeID: 300, CreatedAt: ageDays(40)},
		{ID: 2, UpstreamNodeID: 11, DownstreamNodeID: 300, CreatedAt: ageDays(40)},
	}
	api.deleteErrFor[1] = errors.New("remote failure")

	result := tracker.CleanupOldEdges(context.Background(), 30)
	if result.Success {
		t.Error("Success = true, want false with delete failure")
	}
	if result.EdgesDeleted != 1 {
		t.Errorf("EdgesDeleted = %d, want 1 (sweep continues past failures)", result.EdgesDeleted)
	}
	if len(result.Errors) != 1 {
		t.Errorf("Errors = %v, want exactly one", result.Errors)
	}
}

func TestCleanupEdgesFetchFailure(t *testing.T) {
	api, tracker := cleanupFixture()
	api.edgesErr = errors.New("listing unavailable")

	result := tracker.CleanupOldEdges(context.Background(), 30)
	if result.Success {
		t.Error("Success = true, want false")
	}
	if result.Error == "" {
		t.Error("Error is empty, want fetch failure message")
	}
}
