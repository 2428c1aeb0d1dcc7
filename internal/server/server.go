// Package server exposes the Bigeye API and the agent lineage tracker over
// MCP.
package server

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/bigeyedata/bigeye-mcp-server/internal/bigeye"
	"github.com/bigeyedata/bigeye-mcp-server/internal/lineage"
	"github.com/bigeyedata/bigeye-mcp-server/internal/logging"
)

// Server wraps the Bigeye client and lineage tracker and exposes them via MCP.
type Server struct {
	client    *bigeye.Client
	cfg       *bigeye.Config
	tracker   *lineage.Tracker
	logger    *logging.Logger
	mcpServer *server.MCPServer
	transport string
}

// New creates an MCP server over the given Bigeye client and tracker.
func New(cfg *bigeye.Config, client *bigeye.Client, tracker *lineage.Tracker, transport string, logger *logging.Logger) (*Server, error) {
	mcpServer := server.NewMCPServer(
		"bigeye-mcp-server",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithPromptCapabilities(false),
	)

	s := &Server{
		client:    client,
		cfg:       cfg,
		tracker:   tracker,
		logger:    logger,
		mcpServer: mcpServer,
		transport: transport,
	}

	s.registerIssueTools()
	s.registerLineageTools()
	s.registerCatalogTools()
	s.registerTrackingTools()
	s.registerResources()
	s.registerPrompts()

	return s, nil
}

// Start starts the MCP server using stdio or streamable-http transport.
func (s *Server) Start(ctx context.Context, listenAddr string) error {
	switch s.transport {
	case "stdio":
		return server.ServeStdio(s.mcpServer)
	case "streamable-http":
		httpServer := server.NewStreamableHTTPServer(
			s.mcpServer,
			server.WithEndpointPath("/mcp"),
		)
		return httpServer.Start(listenAddr)
	default:
		return fmt.Errorf("unsupported server transport: %s", s.transport)
	}
}

// registerIssueTools registers the health and issue management tools.
func (s *Server) registerIssueTools() {
	checkHealthTool := mcp.NewTool("check_health",
		mcp.WithDescription("Check the health of the Bigeye API"),
	)
	s.mcpServer.AddTool(checkHealthTool, s.handleCheckHealth)

	getIssuesTool := mcp.NewTool("get_issues",
		mcp.WithDescription("Get data quality issues from the configured Bigeye workspace"),
		mcp.WithArray("statuses",
			mcp.Description("Issue statuses to filter by (ISSUE_STATUS_NEW, ISSUE_STATUS_ACKNOWLEDGED, ISSUE_STATUS_CLOSED, ISSUE_STATUS_MONITORING, ISSUE_STATUS_MERGED)"),
		),
		mcp.WithArray("schema_names",
			mcp.Description("Schema names to filter issues by"),
		),
		mcp.WithNumber("page_size",
			mcp.Description("Number of issues to return per page"),
		),
		mcp.WithString("page_cursor",
			mcp.Description("Cursor for pagination"),
		),
	)
	s.mcpServer.AddTool(getIssuesTool, s.handleGetIssues)

	getTableIssuesTool := mcp.NewTool("get_table_issues",
		mcp.WithDescription("Get data quality issues for a specific table"),
		mcp.WithString("table_name",
			mcp.Required(),
			mcp.Description("Name of the table (e.g. ORDERS)"),
		),
		mcp.WithString("warehouse_name",
			mcp.Description("Warehouse name (e.g. SNOWFLAKE)"),
		),
		mcp.WithString("schema_name",
			mcp.Description("Schema name (e.g. PROD_REPL)"),
		),
		mcp.WithArray("statuses",
			mcp.Description("Issue statuses to filter by"),
		),
	)
	s.mcpServer.AddTool(getTableIssuesTool, s.handleGetTableIssues)

	analyzeTableTool := mcp.NewTool("analyze_table_data_quality",
		mcp.WithDescription("Analyze data quality for a table: catalog presence, configured metrics, and issues"),
		mcp.WithString("table_name",
			mcp.Required(),
			mcp.Description("Name of the table to analyze"),
		),
		mcp.WithString("schema_name",
			mcp.Description("Schema name"),
		),
		mcp.WithString("warehouse_name",
			mcp.Description("Warehouse name"),
		),
	)
	s.mcpServer.AddTool(analyzeTableTool, s.handleAnalyzeTableDataQuality)

	mergeIssuesTool := mcp.NewTool("merge_issues",
		mcp.WithDescription("Merge multiple issues into a single incident"),
		mcp.WithArray("issue_ids",
			mcp.Required(),
			mcp.Description("IDs of the issues to merge"),
		),
		mcp.WithNumber("existing_incident_id",
			mcp.Description("Merge into this existing incident instead of creating a new one"),
		),
		mcp.WithString("incident_name",
			mcp.Description("Name for the new incident"),
		),
	)
	s.mcpServer.AddTool(mergeIssuesTool, s.handleMergeIssues)

	unmergeIssuesTool := mcp.NewTool("unmerge_issues",
		mcp.WithDescription("Remove issues from incidents they have been merged into"),
		mcp.WithArray("issue_ids",
			mcp.Description("IDs of the issues to unmerge"),
		),
		mcp.WithArray("parent_issue_ids",
			mcp.Description("Unmerge all issues from these incidents"),
		),
		mcp.WithNumber("assignee_id",
			mcp.Description("Assignee for the unmerged issues"),
		),
		mcp.WithString("new_status",
			mcp.Description("Status to apply to the unmerged issues"),
		),
	)
	s.mcpServer.AddTool(unmergeIssuesTool, s.handleUnmergeIssues)

	updateIssueTool := mcp.NewTool("update_issue",
		mcp.WithDescription("Update an issue's status or priority, or add a timeline message"),
		mcp.WithNumber("issue_id",
			mcp.Required(),
			mcp.Description("ID of the issue to update"),
		),
		mcp.WithString("new_status",
			mcp.Description("New status for the issue"),
		),
		mcp.WithString("closing_label",
			mcp.Description("Closing label, required when closing an issue (e.g. MONITOR_CLOSING_LABEL_EXPECTED, MONITOR_CLOSING_LABEL_UNEXPECTED)"),
		),
		mcp.WithString("priority",
			mcp.Description("New priority for the issue"),
		),
		mcp.WithString("message",
			mcp.Description("Message to add to the issue timeline"),
		),
	)
	s.mcpServer.AddTool(updateIssueTool, s.handleUpdateIssue)

	resolutionStepsTool := mcp.NewTool("get_issue_resolution_steps",
		mcp.WithDescription("Get the recommended resolution steps for an issue or incident"),
		mcp.WithNumber("issue_id",
			mcp.Required(),
			mcp.Description("ID of the issue or incident"),
		),
	)
	s.mcpServer.AddTool(resolutionStepsTool, s.handleIssueResolutionSteps)
}

// registerLineageTools registers the lineage graph and analysis tools.
func (s *Server) registerLineageTools() {
	getGraphTool := mcp.NewTool("lineage_get_graph",
		mcp.WithDescription("Get the lineage graph around a node, upstream, downstream, or both"),
		mcp.WithNumber("node_id",
			mcp.Required(),
			mcp.Description("ID of the lineage node to analyze"),
		),
		mcp.WithString("direction",
			mcp.Description("Traversal direction: bidirectional (default), upstream, or downstream"),
		),
		mcp.WithNumber("max_depth",
			mcp.Description("Maximum traversal depth"),
		),
	)
	s.mcpServer.AddTool(getGraphTool, s.handleLineageGetGraph)

	getNodeTool := mcp.NewTool("lineage_get_node",
		mcp.WithDescription("Get details for a specific lineage node"),
		mcp.WithNumber("node_id",
			mcp.Required(),
			mcp.Description("ID of the lineage node"),
		),
	)
	s.mcpServer.AddTool(getNodeTool, s.handleLineageGetNode)

	getNodeIssuesTool := mcp.NewTool("lineage_get_node_issues",
		mcp.WithDescription("Get all data quality issues affecting a lineage node"),
		mcp.WithNumber("node_id",
			mcp.Required(),
			mcp.Description("ID of the lineage node"),
		),
	)
	s.mcpServer.AddTool(getNodeIssuesTool, s.handleLineageGetNodeIssues)

	upstreamTool := mcp.NewTool("lineage_analyze_upstream_causes",
		mcp.WithDescription("Analyze upstream lineage to identify root causes of data quality issues"),
		mcp.WithNumber("node_id",
			mcp.Required(),
			mcp.Description("ID of the lineage node where issues are occurring"),
		),
		mcp.WithNumber("max_depth",
			mcp.Description("Maximum depth to search upstream (default 5)"),
		),
	)
	s.mcpServer.AddTool(upstreamTool, s.handleAnalyzeUpstreamCauses)

	downstreamTool := mcp.NewTool("lineage_analyze_downstream_impact",
		mcp.WithDescription("Analyze how data quality issues in a node affect downstream consumers"),
		mcp.WithNumber("node_id",
			mcp.Required(),
			mcp.Description("ID of the lineage node with potential data quality issues"),
		),
		mcp.WithNumber("max_depth",
			mcp.Description("Maximum depth to search downstream (default 5)"),
		),
		mcp.WithBoolean("include_integration_entities",
			mcp.Description("Include BI tools, dashboards, and applications (default true)"),
		),
	)
	s.mcpServer.AddTool(downstreamTool, s.handleAnalyzeDownstreamImpact)

	traceTool := mcp.NewTool("lineage_trace_issue_path",
		mcp.WithDescription("Trace the complete lineage path for an issue, from root cause to downstream impact"),
		mcp.WithNumber("issue_id",
			mcp.Required(),
			mcp.Description("ID of the issue to trace"),
		),
		mcp.WithBoolean("include_root_cause_analysis",
			mcp.Description("Perform upstream root cause analysis (default true)"),
		),
		mcp.WithBoolean("include_impact_analysis",
			mcp.Description("Perform downstream impact analysis (default true)"),
		),
		mcp.WithNumber("max_depth",
			mcp.Description("Maximum depth for lineage traversal (default 5)"),
		),
	)
	s.mcpServer.AddTool(traceTool, s.handleTraceIssuePath)
}

// registerCatalogTools registers catalog discovery and node maintenance tools.
func (s *Server) registerCatalogTools() {
	findNodeTool := mcp.NewTool("lineage_find_node",
		mcp.WithDescription("Find lineage nodes by path-based search and get their IDs"),
		mcp.WithString("search_string",
			mcp.Description("Path search string, e.g. SNOWFLAKE/PROD_REPL/DIM_CUSTOMER or *CUSTOMER* (default \"*\")"),
		),
		mcp.WithString("node_type",
			mcp.Description("Node type filter: DATA_NODE_TYPE_TABLE, DATA_NODE_TYPE_COLUMN, or DATA_NODE_TYPE_CUSTOM"),
		),
		mcp.WithNumber("workspace_id",
			mcp.Description("Workspace ID override; defaults to the configured workspace"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of results (default 20)"),
		),
	)
	s.mcpServer.AddTool(findNodeTool, s.handleLineageFindNode)

	exploreCatalogTool := mcp.NewTool("lineage_explore_catalog",
		mcp.WithDescription("Explore tables in the Bigeye catalog to discover naming and structure"),
		mcp.WithString("schema_name",
			mcp.Description("Schema name to filter by"),
		),
		mcp.WithString("warehouse_name",
			mcp.Description("Warehouse name to filter by"),
		),
		mcp.WithString("search_term",
			mcp.Description("Substring to filter table names by"),
		),
		mcp.WithNumber("page_size",
			mcp.Description("Number of results to fetch (default 50)"),
		),
	)
	s.mcpServer.AddTool(exploreCatalogTool, s.handleLineageExploreCatalog)

	deleteNodeTool := mcp.NewTool("lineage_delete_node",
		mcp.WithDescription("Delete a custom lineage node. Only custom nodes can be deleted; this cannot be undone"),
		mcp.WithNumber("node_id",
			mcp.Required(),
			mcp.Description("ID of the custom lineage node to delete"),
		),
		mcp.WithBoolean("force",
			mcp.Description("Delete even when the node has active edges (default false)"),
		),
	)
	s.mcpServer.AddTool(deleteNodeTool, s.handleLineageDeleteNode)
}

// registerTrackingTools registers the agent lineage tracking tools.
func (s *Server) registerTrackingTools() {
	trackTool := mcp.NewTool("lineage_track_data_access",
		mcp.WithDescription("Track data assets accessed by an AI agent for later lineage commit"),
		mcp.WithArray("qualified_names",
			mcp.Required(),
			mcp.Description("Qualified asset names: db.schema.table, db.schema.table.column, warehouse.db.schema.table, or warehouse.db.schema.table.column"),
		),
		mcp.WithString("agent_name",
			mcp.Description("Custom display name for the agent"),
		),
	)
	s.mcpServer.AddTool(trackTool, s.handleTrackDataAccess)

	statusTool := mcp.NewTool("lineage_get_tracking_status",
		mcp.WithDescription("Get the data assets currently tracked by the agent, before commit"),
	)
	s.mcpServer.AddTool(statusTool, s.handleTrackingStatus)

	commitTool := mcp.NewTool("lineage_commit_agent",
		mcp.WithDescription("Commit tracked data access to the Bigeye lineage graph as agent edges"),
		mcp.WithBoolean("rebuild_graph",
			mcp.Description("Rebuild the lineage graph after creating edges (default true)"),
		),
		mcp.WithBoolean("clear_after_commit",
			mcp.Description("Clear tracked assets after a fully successful commit (default true)"),
		),
	)
	s.mcpServer.AddTool(commitTool, s.handleCommitAgent)

	clearTool := mcp.NewTool("lineage_clear_tracked_assets",
		mcp.WithDescription("Clear all tracked data assets without committing"),
	)
	s.mcpServer.AddTool(clearTool, s.handleClearTrackedAssets)

	cleanupTool := mcp.NewTool("lineage_cleanup_agent_edges",
		mcp.WithDescription("Delete agent lineage edges older than the retention period. Only edges touching the agent node are removed"),
		mcp.WithNumber("retention_days",
			mcp.Description("Days of edges to retain (default 30)"),
		),
	)
	s.mcpServer.AddTool(cleanupTool, s.handleCleanupAgentEdges)
}
