package bigeye

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Lineage node types used by the v2 lineage API.
const (
	NodeTypeTable  = "DATA_NODE_TYPE_TABLE"
	NodeTypeColumn = "DATA_NODE_TYPE_COLUMN"
	NodeTypeCustom = "DATA_NODE_TYPE_CUSTOM"
)

// RelationshipTypeLineage is the edge relationship type for lineage edges.
const RelationshipTypeLineage = "RELATIONSHIP_TYPE_LINEAGE"

// Directions accepted by graph and edge queries.
const (
	DirectionUpstream      = "upstream"
	DirectionDownstream    = "downstream"
	DirectionBidirectional = "bidirectional"
)

// CatalogPath locates a node within the warehouse hierarchy.
type CatalogPath struct {
	PathParts []string `json:"pathParts,omitempty"`
}

// Node is a lineage graph node.
type Node struct {
	ID                int64        `json:"id"`
	NodeEntityID      int64        `json:"nodeEntityId,omitempty"`
	NodeName          string       `json:"nodeName"`
	NodeType          string       `json:"nodeType"`
	NodeContainerName string       `json:"nodeContainerName,omitempty"`
	CatalogPath       *CatalogPath `json:"catalogPath,omitempty"`
	Source            *NodeSource  `json:"source,omitempty"`
}

// NodeSource identifies the system a node was ingested from.
type NodeSource struct {
	Name string `json:"name,omitempty"`
}

// NodesPage is the response shape of node search and lookup endpoints.
type NodesPage struct {
	Nodes []Node `json:"nodes"`
}

// Edge is a lineage edge as returned by the edges-for-node endpoint.
type Edge struct {
	ID               int64  `json:"id"`
	UpstreamNodeID   int64  `json:"upstream_node_id"`
	DownstreamNodeID int64  `json:"downstream_node_id"`
	CreatedAt        string `json:"created_at"`
}

// GraphEdge is an edge reference embedded in a lineage graph response.
type GraphEdge struct {
	ID               int64 `json:"id"`
	UpstreamNodeID   int64 `json:"upstreamNodeId"`
	DownstreamNodeID int64 `json:"downstreamNodeId"`
}

// GraphNode is a node entry of a lineage graph response, combining the node
// with its issue and metric counts and its adjacent edges.
type GraphNode struct {
	LineageNode     Node        `json:"lineageNode"`
	IssueCount      int         `json:"issueCount"`
	MetricCount     int         `json:"metricCount"`
	UpstreamEdges   []GraphEdge `json:"upstreamEdges,omitempty"`
	DownstreamEdges []GraphEdge `json:"downstreamEdges,omitempty"`
}

// LineageGraph is a lineage graph response, keyed by node ID.
type LineageGraph struct {
	Nodes map[string]GraphNode `json:"nodes"`

	raw json.RawMessage
}

// Raw returns the unmodified graph response for pass-through to callers.
func (g *LineageGraph) Raw() json.RawMessage {
	return g.raw
}

// GetLineageGraph retrieves the lineage graph around a node. Direction is one
// of DirectionUpstream, DirectionDownstream, or DirectionBidirectional; a
// maxDepth of zero uses the API default.
func (c *Client) GetLineageGraph(ctx context.Context, nodeID int64, direction string, maxDepth int) (*LineageGraph, error) {
	query := url.Values{}
	switch direction {
	case DirectionUpstream:
		query.Set("direction", "UPSTREAM")
	case DirectionDownstream:
		query.Set("direction", "DOWNSTREAM")
	case DirectionBidirectional:
		query.Set("direction", "ALL")
	default:
		return nil, fmt.Errorf("direction must be %q, %q, or %q", DirectionUpstream, DirectionDownstream, DirectionBidirectional)
	}
	if maxDepth > 0 {
		query.Set("depth", fmt.Sprintf("%d", maxDepth))
	}

	path := fmt.Sprintf("/api/v2/lineage/nodes/%d/graph", nodeID)
	var raw json.RawMessage
	if err := c.doJSON(ctx, http.MethodGet, path, query, nil, &raw); err != nil {
		return nil, err
	}

	graph := &LineageGraph{raw: raw}
	if err := json.Unmarshal(raw, graph); err != nil {
		return nil, fmt.Errorf("decoding lineage graph: %w", err)
	}
	return graph, nil
}

// GetLineageNode retrieves a single lineage node by ID.
func (c *Client) GetLineageNode(ctx context.Context, nodeID int64) (*Node, error) {
	var node Node
	path := fmt.Sprintf("/api/v2/lineage/nodes/%d", nodeID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, nil, &node); err != nil {
		return nil, err
	}
	return &node, nil
}

// GetLineageNodeIssues retrieves the issues affecting a lineage node.
func (c *Client) GetLineageNodeIssues(ctx context.Context, nodeID int64) (json.RawMessage, error) {
	var out json.RawMessage
	path := fmt.Sprintf("/api/v2/lineage/nodes/%d/issues", nodeID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpstreamApplicableMetricTypes retrieves the metric types applicable to
// upstream analysis of a node.
func (c *Client) UpstreamApplicableMetricTypes(ctx context.Context, nodeID int64) (json.RawMessage, error) {
	var out json.RawMessage
	path := fmt.Sprintf("/api/v2/lineage/nodes/%d/upstream-applicable-metric-types", nodeID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateNodeRequest describes a custom lineage node to create.
type CreateNodeRequest struct {
	Name          string
	ContainerName string
	Type          string
	WorkspaceID   int64
	RebuildGraph  bool
}

// CreateNode creates a custom lineage node.
func (c *Client) CreateNode(ctx context.Context, req CreateNodeRequest) (*Node, error) {
	nodeType := req.Type
	if nodeType == "" {
		nodeType = NodeTypeCustom
	}
	payload := map[string]interface{}{
		"nodeType":          nodeType,
		"nodeName":          req.Name,
		"nodeContainerName": req.ContainerName,
		"rebuildGraph":      req.RebuildGraph,
	}
	if req.WorkspaceID != 0 {
		payload["workspaceId"] = req.WorkspaceID
	}

	var node Node
	if err := c.doJSON(ctx, http.MethodPost, "/api/v2/lineage/nodes", nil, payload, &node); err != nil {
		return nil, err
	}
	return &node, nil
}

// DeleteNode deletes a custom lineage node.
func (c *Client) DeleteNode(ctx context.Context, nodeID int64, force bool) (json.RawMessage, error) {
	var query url.Values
	if force {
		query = url.Values{"force": []string{"true"}}
	}

	var out json.RawMessage
	path := fmt.Sprintf("/api/v2/lineage/nodes/%d", nodeID)
	if err := c.doJSON(ctx, http.MethodDelete, path, query, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FindNodeByName searches lineage nodes by exact name with an optional type
// filter. When the filtered search 404s, the search is retried without the
// type filter; some instances reject the nodeType parameter.
func (c *Client) FindNodeByName(ctx context.Context, name, nodeType string) (*NodesPage, error) {
	query := url.Values{}
	query.Set("nodeName", name)
	if nodeType != "" {
		query.Set("nodeType", nodeType)
	}

	var page NodesPage
	err := c.doJSON(ctx, http.MethodGet, "/api/v2/lineage/nodes/search", query, nil, &page)
	if err != nil && nodeType != "" && isNotFound(err) {
		query.Del("nodeType")
		page = NodesPage{}
		err = c.doJSON(ctx, http.MethodGet, "/api/v2/lineage/nodes/search", query, nil, &page)
	}
	if err != nil {
		return nil, err
	}
	return &page, nil
}

// NodeByEntityID resolves a lineage node by its entity ID. When the entity
// endpoint is unavailable, the full node listing is scanned instead.
func (c *Client) NodeByEntityID(ctx context.Context, entityID int64) (*NodesPage, error) {
	var page NodesPage
	path := fmt.Sprintf("/api/v2/lineage/nodes/entity/%d", entityID)
	err := c.doJSON(ctx, http.MethodGet, path, nil, nil, &page)
	if err == nil {
		return &page, nil
	}
	if !isNotFound(err) {
		return nil, err
	}

	var all NodesPage
	if listErr := c.doJSON(ctx, http.MethodGet, "/api/v2/lineage/nodes", nil, nil, &all); listErr != nil {
		return nil, err
	}
	for _, node := range all.Nodes {
		if node.NodeEntityID == entityID {
			return &NodesPage{Nodes: []Node{node}}, nil
		}
	}
	return nil, err
}

// FindTableNode searches for the lineage node of a table, trying the name
// formats Bigeye is known to catalog tables under.
func (c *Client) FindTableNode(ctx context.Context, database, schema, table string) (*NodesPage, error) {
	nameFormats := []string{
		fmt.Sprintf("%s.%s.%s", database, schema, table),
		fmt.Sprintf("%s.%s", schema, table),
		table,
		fmt.Sprintf("SNOWFLAKE.%s.%s.%s", database, schema, table),
	}

	var lastErr error
	for _, name := range nameFormats {
		query := url.Values{}
		query.Set("nodeName", strings.ToUpper(name))
		query.Set("nodeType", NodeTypeTable)

		var page NodesPage
		if err := c.doJSON(ctx, http.MethodGet, "/api/v2/lineage/nodes/search", query, nil, &page); err != nil {
			lastErr = err
			continue
		}
		if len(page.Nodes) > 0 {
			return &page, nil
		}
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return &NodesPage{}, nil
}

// FindColumnNode searches for the lineage node of a column by its fully
// qualified name.
func (c *Client) FindColumnNode(ctx context.Context, database, schema, table, column string) (*NodesPage, error) {
	query := url.Values{}
	query.Set("nodeName", strings.ToUpper(fmt.Sprintf("%s.%s.%s.%s", database, schema, table, column)))
	query.Set("nodeType", NodeTypeColumn)

	var page NodesPage
	if err := c.doJSON(ctx, http.MethodGet, "/api/v2/lineage/nodes/search", query, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// SearchNodesByPattern searches lineage nodes by a loose name pattern.
func (c *Client) SearchNodesByPattern(ctx context.Context, pattern, nodeType string) (*NodesPage, error) {
	query := url.Values{}
	query.Set("nodeName", strings.ToUpper(pattern))
	if nodeType != "" {
		query.Set("nodeType", nodeType)
	}

	var page NodesPage
	if err := c.doJSON(ctx, http.MethodGet, "/api/v2/lineage/nodes/search", query, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// CreateEdge creates a lineage edge between two nodes.
func (c *Client) CreateEdge(ctx context.Context, upstreamID, downstreamID int64, relationshipType string, rebuildGraph bool) error {
	if relationshipType == "" {
		relationshipType = RelationshipTypeLineage
	}
	payload := map[string]interface{}{
		"upstreamDataNodeId":   upstreamID,
		"downstreamDataNodeId": downstreamID,
		"relationshipType":     relationshipType,
		"rebuildGraph":         rebuildGraph,
	}
	return c.doJSON(ctx, http.MethodPost, "/api/v2/lineage/edges", nil, payload, nil)
}

// EdgesForNode retrieves all edges connected to a node. When the dedicated
// edge endpoint is unavailable, edges are extracted from a depth-1 lineage
// graph instead.
func (c *Client) EdgesForNode(ctx context.Context, nodeID int64, direction string) ([]Edge, error) {
	query := url.Values{}
	query.Set("direction", direction)

	var page struct {
		Edges []Edge `json:"edges"`
	}
	path := fmt.Sprintf("/api/v2/lineage/nodes/%d/edges", nodeID)
	err := c.doJSON(ctx, http.MethodGet, path, query, nil, &page)
	if err == nil {
		return page.Edges, nil
	}
	if !isNotFound(err) {
		return nil, err
	}

	graphDirection := direction
	if graphDirection == "both" {
		graphDirection = DirectionBidirectional
	}
	graph, graphErr := c.GetLineageGraph(ctx, nodeID, graphDirection, 1)
	if graphErr != nil {
		return nil, err
	}

	var edges []Edge
	for _, node := range graph.Nodes {
		for _, e := range node.UpstreamEdges {
			edges = append(edges, Edge{ID: e.ID, UpstreamNodeID: e.UpstreamNodeID, DownstreamNodeID: e.DownstreamNodeID})
		}
		for _, e := range node.DownstreamEdges {
			edges = append(edges, Edge{ID: e.ID, UpstreamNodeID: e.UpstreamNodeID, DownstreamNodeID: e.DownstreamNodeID})
		}
	}
	return edges, nil
}

// DeleteEdge deletes a lineage edge by ID.
func (c *Client) DeleteEdge(ctx context.Context, edgeID int64) error {
	path := fmt.Sprintf("/api/v2/lineage/edges/%d", edgeID)
	return c.doJSON(ctx, http.MethodDelete, path, nil, nil, nil)
}
