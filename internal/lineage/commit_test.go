package lineage

import (
	"context"
	"errors"
	"testing"

	"github.com/bigeyedata/bigeye-mcp-server/internal/bigeye"
)

func TestCommitWithoutClient(t *testing.T) {
	tracker := NewTracker(nil, "Test Agent", 7, testLogger())
	tracker.Track([]string{"SALES.PUBLIC.ORDERS"})

	result := tracker.CreateLineageEdges(context.Background(), false)
	if result.Error != "No Bigeye client configured" {
		t.Errorf("Error = %q, want %q", result.Error, "No Bigeye client configured")
	}
	if result.Success {
		t.Error("Success = true, want false")
	}
}

func TestCommitNothingTracked(t *testing.T) {
	tracker := newTestTracker(newFakeGraph())

	result := tracker.CreateLineageEdges(context.Background(), false)
	if !result.Success {
		t.Error("Success = false, want true for empty commit")
	}
	if result.Message != "No assets tracked" {
		t.Errorf("Message = %q, want %q", result.Message, "No assets tracked")
	}
	if result.EdgesCreated != 0 {
		t.Errorf("EdgesCreated = %d, want 0", result.EdgesCreated)
	}
}

func TestCommitAgentNodeFailure(t *testing.T) {
	api := newFakeGraph()
	api.createNodeErr = errors.New("boom")
	tracker := newTestTracker(api)
	tracker.Track([]string{"SALES.PUBLIC.ORDERS"})

	result := tracker.CreateLineageEdges(context.Background(), false)
	if result.Error != "Failed to create or find agent node" {
		t.Errorf("Error = %q, want %q", result.Error, "Failed to create or find agent node")
	}
	if result.EdgesCreated != 0 {
		t.Errorf("EdgesCreated = %d, want 0", result.EdgesCreated)
	}
}

func TestCommitCreatesEdges(t *testing.T) {
	api := newFakeGraph()
	api.tableNodes["SALES.PUBLIC.ORDERS"] = 10
	api.columnNodes["SALES.PUBLIC.CUSTOMERS.NAME"] = 20
	tracker := newTestTracker(api)
	tracker.Track([]string{
		"SALES.PUBLIC.ORDERS",
		"SALES.PUBLIC.CUSTOMERS.name",
	})

	result := tracker.CreateLineageEdges(context.Background(), false)
	if !result.Success {
		t.Fatalf("Success = false, errors: %v", result.Errors)
	}
	if result.EdgesCreated != 2 {
		t.Fatalf("EdgesCreated = %d, want 2", result.EdgesCreated)
	}

	// One agent node was created under the custom type.
	if len(api.createdNodes) != 1 {
		t.Fatalf("created %d nodes, want 1", len(api.createdNodes))
	}
	if api.createdNodes[0].Type != bigeye.NodeTypeCustom {
		t.Errorf("agent node type = %q, want %q", api.createdNodes[0].Type, bigeye.NodeTypeCustom)
	}

	// All edges point asset -> agent.
	agentID := api.nextNodeID
	for _, edge := range api.createdEdges {
		if edge[1] != agentID {
			t.Errorf("edge downstream = %d, want agent %d", edge[1], agentID)
		}
	}
}

func TestCommitColumnFallsBackToTable(t *testing.T) {
	api := newFakeGraph()
	// Column missing from the catalog, table present.
	api.tableNodes["SALES.PUBLIC.ORDERS"] = 10
	tracker := newTestTracker(api)
	tracker.Track([]string{"SALES.PUBLIC.ORDERS.order_id"})

	result := tracker.CreateLineageEdges(context.Background(), false)
	if !result.Success {
		t.Fatalf("Success = false, errors: %v", result.Errors)
	}
	if result.EdgesCreated != 1 {
		t.Fatalf("EdgesCreated = %d, want 1", result.EdgesCreated)
	}
	if len(result.AssetsNotInCatalog) != 0 {
		t.Errorf("AssetsNotInCatalog = %v, want empty", result.AssetsNotInCatalog)
	}
	if api.createdEdges[0][0] != 10 {
		t.Errorf("edge upstream = %d, want table node 10", api.createdEdges[0][0])
	}
}

func TestCommitRecordsMissingAssets(t *testing.T) {
	api := newFakeGraph()
	tracker := newTestTracker(api)
	tracker.Track([]string{
		"SALES.PUBLIC.GHOST",
		"SALES.PUBLIC.PHANTOM.col_a",
	})

	result := tracker.CreateLineageEdges(context.Background(), false)
	if !result.Success {
		t.Fatalf("Success = false, errors: %v", result.Errors)
	}
	if result.EdgesCreated != 0 {
		t.Errorf("EdgesCreated = %d, want 0", result.EdgesCreated)
	}
	want := map[string]bool{
		"SALES.PUBLIC.GHOST":         true,
		"SALES.PUBLIC.PHANTOM.COL_A": true,
	}
	if len(result.AssetsNotInCatalog) != len(want) {
		t.Fatalf("AssetsNotInCatalog = %v, want %d entries", result.AssetsNotInCatalog, len(want))
	}
	for _, name := range result.AssetsNotInCatalog {
		if !want[name] {
			t.Errorf("unexpected missing asset %q", name)
		}
	}
}

func TestCommitTwiceDeduplicatesEdges(t *testing.T) {
	api := newFakeGraph()
	api.tableNodes["SALES.PUBLIC.ORDERS"] = 10
	tracker := newTestTracker(api)
	tracker.Track([]string{"SALES.PUBLIC.ORDERS"})

	first := tracker.CreateLineageEdges(context.Background(), false)
	if first.EdgesCreated != 1 {
		t.Fatalf("first EdgesCreated = %d, want 1", first.EdgesCreated)
	}

	second := tracker.CreateLineageEdges(context.Background(), false)
	if !second.Success {
		t.Fatalf("second Success = false, errors: %v", second.Errors)
	}
	if second.EdgesCreated != 0 {
		t.Errorf("second EdgesCreated = %d, want 0 (dedup)", second.EdgesCreated)
	}
	if len(api.createdEdges) != 1 {
		t.Errorf("remote edge creations = %d, want 1", len(api.createdEdges))
	}
}

func TestCommitClearResetsDedup(t *testing.T) {
	api := newFakeGraph()
	api.tableNodes["SALES.PUBLIC.ORDERS"] = 10
	tracker := newTestTracker(api)

	tracker.Track([]string{"SALES.PUBLIC.ORDERS"})
	tracker.CreateLineageEdges(context.Background(), false)
	tracker.Clear()

	tracker.Track([]string{"SALES.PUBLIC.ORDERS"})
	result := tracker.CreateLineageEdges(context.Background(), false)
	if result.EdgesCreated != 1 {
		t.Errorf("EdgesCreated after Clear = %d, want 1", result.EdgesCreated)
	}
}

func TestCommitPartialFailure(t *testing.T) {
	api := newFakeGraph()
	api.tableNodes["SALES.PUBLIC.BAD"] = 10
	api.tableNodes["SALES.PUBLIC.GOOD"] = 11
	api.failEdgeFor[10] = errors.New("edge rejected")
	tracker := newTestTracker(api)
	tracker.Track([]string{
		"SALES.PUBLIC.BAD",
		"SALES.PUBLIC.GOOD",
	})

	result := tracker.CreateLineageEdges(context.Background(), false)
	if result.Success {
		t.Error("Success = true, want false with per-asset errors")
	}
	if result.EdgesCreated != 1 {
		t.Errorf("EdgesCreated = %d, want 1 (other assets still processed)", result.EdgesCreated)
	}
	if len(result.Errors) != 1 {
		t.Fatalf("Errors = %v, want exactly one", result.Errors)
	}
	if result.Errors[0] != "Failed to create edge for table SALES.PUBLIC.BAD" {
		t.Errorf("Errors[0] = %q", result.Errors[0])
	}
}

func TestCommitRecoversExistingAgentNode(t *testing.T) {
	api := newFakeGraph()
	api.createNodeErr = &bigeye.APIError{
		StatusCode: 409,
		Message:    "node already exists: DataNodeEntity(42)",
	}
	api.entityNodes[42] = bigeye.Node{ID: 500, NodeName: "Test Agent"}
	api.tableNodes["SALES.PUBLIC.ORDERS"] = 10
	tracker := newTestTracker(api)
	tracker.Track([]string{"SALES.PUBLIC.ORDERS"})

	result := tracker.CreateLineageEdges(context.Background(), false)
	if !result.Success {
		t.Fatalf("Success = false, errors: %v, error: %s", result.Errors, result.Error)
	}
	if len(api.createdEdges) != 1 || api.createdEdges[0][1] != 500 {
		t.Errorf("edges = %v, want one edge to recovered agent 500", api.createdEdges)
	}
}

func TestCommitReusesExistingAgentNode(t *testing.T) {
	api := newFakeGraph()
	api.nodesByName["Test Agent"] = []bigeye.Node{{ID: 300, NodeName: "Test Agent", NodeType: bigeye.NodeTypeCustom}}
	api.tableNodes["SALES.PUBLIC.ORDERS"] = 10
	tracker := newTestTracker(api)
	tracker.Track([]string{"SALES.PUBLIC.ORDERS"})

	result := tracker.CreateLineageEdges(context.Background(), false)
	if !result.Success {
		t.Fatalf("Success = false, errors: %v", result.Errors)
	}
	if len(api.createdNodes) != 0 {
		t.Errorf("created %d nodes, want 0 (existing node reused)", len(api.createdNodes))
	}
	if api.createdEdges[0][1] != 300 {
		t.Errorf("edge downstream = %d, want 300", api.createdEdges[0][1])
	}
}
