package bigeye

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/bigeyedata/bigeye-mcp-server/internal/logging"
)

func newTestClient(handler http.Handler) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	cfg := &Config{
		BaseURL:     srv.URL,
		APIKey:      "test-key",
		WorkspaceID: 1,
	}
	client := NewClient(cfg, logging.NewLoggerWithWriter(false, false, false, io.Discard))
	return client, srv
}

func TestAuthorizationHeader(t *testing.T) {
	var gotAuth string
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte("OK"))
	}))
	defer srv.Close()

	if _, err := client.CheckHealth(context.Background()); err != nil {
		t.Fatalf("CheckHealth: %v", err)
	}
	if gotAuth != "apikey test-key" {
		t.Errorf("Authorization = %q, want %q", gotAuth, "apikey test-key")
	}
}

func TestCheckHealth(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "ok body is healthy", body: "OK", want: "healthy"},
		{name: "anything else is unhealthy", body: `{"status":"degraded"}`, want: "unhealthy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			health, err := client.CheckHealth(context.Background())
			if err != nil {
				t.Fatalf("CheckHealth: %v", err)
			}
			if health.Status != tt.want {
				t.Errorf("Status = %q, want %q", health.Status, tt.want)
			}
		})
	}
}

func TestErrorResponseIsAPIError(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("workspace access denied"))
	}))
	defer srv.Close()

	_, err := client.FetchIssues(context.Background(), FetchIssuesRequest{WorkspaceID: 1})
	if err == nil {
		t.Fatal("expected error for 403 response")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T: %v", err, err)
	}
	if apiErr.StatusCode != http.StatusForbidden {
		t.Errorf("StatusCode = %d, want 403", apiErr.StatusCode)
	}
	if !strings.Contains(apiErr.Message, "workspace access denied") {
		t.Errorf("Message = %q, want response body", apiErr.Message)
	}
}

func TestFetchIssuesPayload(t *testing.T) {
	var gotPath string
	var gotPayload map[string]interface{}
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotPayload)
		_, _ = w.Write([]byte(`{"issues":[]}`))
	}))
	defer srv.Close()

	_, err := client.FetchIssues(context.Background(), FetchIssuesRequest{
		WorkspaceID: 42,
		Statuses:    []string{IssueStatusNew},
		SchemaNames: []string{"PUBLIC"},
		PageSize:    50,
	})
	if err != nil {
		t.Fatalf("FetchIssues: %v", err)
	}
	if gotPath != "/api/v1/issues/fetch" {
		t.Errorf("path = %q", gotPath)
	}
	if gotPayload["workspaceId"] != float64(42) {
		t.Errorf("workspaceId = %v, want 42", gotPayload["workspaceId"])
	}
	if gotPayload["pageSize"] != float64(50) {
		t.Errorf("pageSize = %v, want 50", gotPayload["pageSize"])
	}
	statuses, _ := gotPayload["currentStatus"].([]interface{})
	if len(statuses) != 1 || statuses[0] != IssueStatusNew {
		t.Errorf("currentStatus = %v", gotPayload["currentStatus"])
	}
}

func TestUpdateIssueRequiresClosingLabel(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not reach the server")
	}))
	defer srv.Close()

	_, err := client.UpdateIssue(context.Background(), 7, UpdateIssueRequest{NewStatus: IssueStatusClosed})
	if err == nil {
		t.Fatal("expected error without closing label")
	}
	if !strings.Contains(err.Error(), "closing label") {
		t.Errorf("error = %q, want closing label mention", err)
	}
}

func TestUpdateIssueRequiresSomeUpdate(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not reach the server")
	}))
	defer srv.Close()

	if _, err := client.UpdateIssue(context.Background(), 7, UpdateIssueRequest{}); err == nil {
		t.Fatal("expected error for empty update")
	}
}

func TestUnmergeIssuesRequiresIDs(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not reach the server")
	}))
	defer srv.Close()

	if _, err := client.UnmergeIssues(context.Background(), UnmergeIssuesRequest{WorkspaceID: 1}); err == nil {
		t.Fatal("expected error without issue or parent IDs")
	}
}

func TestFindNodeByNameRetriesWithoutTypeFilter(t *testing.T) {
	var requests []url.Values
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, r.URL.Query())
		if r.URL.Query().Get("nodeType") != "" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"nodes":[{"id":9,"nodeName":"Agent"}]}`))
	}))
	defer srv.Close()

	page, err := client.FindNodeByName(context.Background(), "Agent", NodeTypeCustom)
	if err != nil {
		t.Fatalf("FindNodeByName: %v", err)
	}
	if len(requests) != 2 {
		t.Fatalf("made %d requests, want 2 (filtered then unfiltered)", len(requests))
	}
	if requests[1].Get("nodeType") != "" {
		t.Error("retry still carried the nodeType filter")
	}
	if len(page.Nodes) != 1 || page.Nodes[0].ID != 9 {
		t.Errorf("Nodes = %+v, want the retried result", page.Nodes)
	}
}

func TestNodeByEntityIDListingFallback(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v2/lineage/nodes/entity/42":
			w.WriteHeader(http.StatusNotFound)
		case "/api/v2/lineage/nodes":
			_, _ = w.Write([]byte(`{"nodes":[
				{"id":1,"nodeEntityId":41,"nodeName":"other"},
				{"id":2,"nodeEntityId":42,"nodeName":"wanted"}
			]}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	page, err := client.NodeByEntityID(context.Background(), 42)
	if err != nil {
		t.Fatalf("NodeByEntityID: %v", err)
	}
	if len(page.Nodes) != 1 || page.Nodes[0].ID != 2 {
		t.Errorf("Nodes = %+v, want the listing match", page.Nodes)
	}
}

func TestFindTableNodeTriesNameFormats(t *testing.T) {
	var searched []string
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Query().Get("nodeName")
		searched = append(searched, name)
		if name == "PUBLIC.ORDERS" {
			_, _ = w.Write([]byte(`{"nodes":[{"id":10,"nodeName":"PUBLIC.ORDERS"}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"nodes":[]}`))
	}))
	defer srv.Close()

	page, err := client.FindTableNode(context.Background(), "SALES", "PUBLIC", "ORDERS")
	if err != nil {
		t.Fatalf("FindTableNode: %v", err)
	}
	if len(page.Nodes) != 1 || page.Nodes[0].ID != 10 {
		t.Fatalf("Nodes = %+v, want one hit", page.Nodes)
	}
	want := []string{"SALES.PUBLIC.ORDERS", "PUBLIC.ORDERS"}
	if len(searched) != len(want) {
		t.Fatalf("searched %v, want stop after first hit %v", searched, want)
	}
	for i := range want {
		if searched[i] != want[i] {
			t.Errorf("searched[%d] = %q, want %q", i, searched[i], want[i])
		}
	}
}

func TestEdgesForNodeGraphFallback(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v2/lineage/nodes/5/edges":
			w.WriteHeader(http.StatusNotFound)
		case "/api/v2/lineage/nodes/5/graph":
			if got := r.URL.Query().Get("direction"); got != "ALL" {
				t.Errorf("graph direction = %q, want ALL", got)
			}
			_, _ = w.Write([]byte(`{"nodes":{
				"5":{"lineageNode":{"id":5,"nodeName":"agent"},
					"upstreamEdges":[{"id":100,"upstreamNodeId":3,"downstreamNodeId":5}]}
			}}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	edges, err := client.EdgesForNode(context.Background(), 5, "both")
	if err != nil {
		t.Fatalf("EdgesForNode: %v", err)
	}
	if len(edges) != 1 || edges[0].ID != 100 {
		t.Errorf("edges = %+v, want graph-derived edge 100", edges)
	}
}

func TestGetLineageGraphDirections(t *testing.T) {
	var gotDirection string
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotDirection = r.URL.Query().Get("direction")
		_, _ = w.Write([]byte(`{"nodes":{}}`))
	}))
	defer srv.Close()

	tests := []struct {
		direction string
		want      string
	}{
		{DirectionUpstream, "UPSTREAM"},
		{DirectionDownstream, "DOWNSTREAM"},
		{DirectionBidirectional, "ALL"},
	}
	for _, tt := range tests {
		if _, err := client.GetLineageGraph(context.Background(), 1, tt.direction, 0); err != nil {
			t.Fatalf("GetLineageGraph(%s): %v", tt.direction, err)
		}
		if gotDirection != tt.want {
			t.Errorf("direction param for %s = %q, want %q", tt.direction, gotDirection, tt.want)
		}
	}

	if _, err := client.GetLineageGraph(context.Background(), 1, "sideways", 0); err == nil {
		t.Error("expected error for unknown direction")
	}
}

func TestGetLineageGraphRawPassthrough(t *testing.T) {
	raw := `{"nodes":{"1":{"lineageNode":{"id":1,"nodeName":"t"},"issueCount":2}},"extra":"kept"}`
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(raw))
	}))
	defer srv.Close()

	graph, err := client.GetLineageGraph(context.Background(), 1, DirectionUpstream, 0)
	if err != nil {
		t.Fatalf("GetLineageGraph: %v", err)
	}
	if string(graph.Raw()) != raw {
		t.Errorf("Raw() = %s, want unmodified body", graph.Raw())
	}
	if graph.Nodes["1"].IssueCount != 2 {
		t.Errorf("IssueCount = %d, want 2", graph.Nodes["1"].IssueCount)
	}
}

func TestCreateEdgePayload(t *testing.T) {
	var gotPayload map[string]interface{}
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotPayload)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	if err := client.CreateEdge(context.Background(), 3, 5, "", false); err != nil {
		t.Fatalf("CreateEdge: %v", err)
	}
	if gotPayload["upstreamDataNodeId"] != float64(3) {
		t.Errorf("upstreamDataNodeId = %v, want 3", gotPayload["upstreamDataNodeId"])
	}
	if gotPayload["downstreamDataNodeId"] != float64(5) {
		t.Errorf("downstreamDataNodeId = %v, want 5", gotPayload["downstreamDataNodeId"])
	}
	if gotPayload["relationshipType"] != RelationshipTypeLineage {
		t.Errorf("relationshipType = %v, want default lineage type", gotPayload["relationshipType"])
	}
	if gotPayload["rebuildGraph"] != false {
		t.Errorf("rebuildGraph = %v, want false", gotPayload["rebuildGraph"])
	}
}

func TestIssuesForTable(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/catalog/tables":
			_, _ = w.Write([]byte(`{"tables":[
				{"id":1,"tableName":"ORDERS","schemaName":"PUBLIC"},
				{"id":2,"tableName":"CUSTOMERS","schemaName":"PUBLIC"}
			]}`))
		case "/api/v1/issues/fetch":
			_, _ = w.Write([]byte(`{"issues":[
				{"id":11,"metric":{"tableName":"ORDERS"}},
				{"id":12,"metric":{"tableName":"CUSTOMERS"}},
				{"id":13,"metric":{"tableName":"orders"}}
			]}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	issues, err := client.IssuesForTable(context.Background(), 1, "ORDERS", "", "PUBLIC", nil)
	if err != nil {
		t.Fatalf("IssuesForTable: %v", err)
	}
	if issues.TotalIssues != 2 {
		t.Errorf("TotalIssues = %d, want 2 (case-insensitive table match)", issues.TotalIssues)
	}
	if issues.Schema != "PUBLIC" {
		t.Errorf("Schema = %q, want PUBLIC", issues.Schema)
	}
}

func TestIssuesForTableNotFound(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"tables":[]}`))
	}))
	defer srv.Close()

	_, err := client.IssuesForTable(context.Background(), 1, "GHOST", "", "PUBLIC", nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound {
		t.Fatalf("err = %v, want 404 *APIError", err)
	}
}

func TestSearchLineageDefaults(t *testing.T) {
	var gotPayload map[string]interface{}
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotPayload)
		_, _ = w.Write([]byte(`{"results":[{"id":1,"nodeName":"ORDERS"}]}`))
	}))
	defer srv.Close()

	result, err := client.SearchLineage(context.Background(), "*ORDERS*", 1, 0)
	if err != nil {
		t.Fatalf("SearchLineage: %v", err)
	}
	if gotPayload["limit"] != float64(100) {
		t.Errorf("limit = %v, want default 100", gotPayload["limit"])
	}
	if len(result.Results) != 1 {
		t.Errorf("Results = %+v, want one node", result.Results)
	}
}
