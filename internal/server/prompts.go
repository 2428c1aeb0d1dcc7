package server

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

// registerPrompts registers the usage example prompts.
func (s *Server) registerPrompts() {
	connectionPrompt := mcp.NewPrompt("check_connection_info",
		mcp.WithPromptDescription("How to verify the connection to the Bigeye API"),
	)
	s.mcpServer.AddPrompt(connectionPrompt, s.handleConnectionPrompt)

	mergePrompt := mcp.NewPrompt("merge_issues_example",
		mcp.WithPromptDescription("Example of merging issues into an incident"),
	)
	s.mcpServer.AddPrompt(mergePrompt, s.handleMergePrompt)

	lineagePrompt := mcp.NewPrompt("lineage_analysis_examples",
		mcp.WithPromptDescription("Examples of root cause and impact analysis with the lineage tools"),
	)
	s.mcpServer.AddPrompt(lineagePrompt, s.handleLineagePrompt)
}

func promptResult(description, text string) *mcp.GetPromptResult {
	return mcp.NewGetPromptResult(description, []mcp.PromptMessage{
		mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(text)),
	})
}

func (s *Server) handleConnectionPrompt(ctx context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	return promptResult("Verifying the Bigeye connection", `The Bigeye MCP server is pre-configured with credentials from the environment.

To verify the connection:

1. Read the resource "bigeye://auth/status" to confirm the configured instance and workspace.
2. Call the "check_health" tool to confirm the API is reachable.
3. Call "get_issues" with a small page_size (e.g. 5) to confirm workspace access.

All credentials are managed via environment variables (BIGEYE_API_KEY, BIGEYE_WORKSPACE_ID). No manual authentication is needed.`), nil
}

func (s *Server) handleMergePrompt(ctx context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	return promptResult("Merging issues into a single incident", `# Merging Issues into a Single Incident

Bigeye allows merging multiple related issues into one incident.

## Workflow

1. Find candidate issues:
   call get_issues with schema_names=["ORDERS"] and statuses=["ISSUE_STATUS_NEW"]

2. Collect the "id" values from the returned issues.

3. With at least two issue IDs, call merge_issues:
   issue_ids=[101, 102, 103], incident_name="Order data quality issues"

The response contains the created incident under "incident", including its ID. To merge further issues into the same incident later, pass existing_incident_id instead of incident_name.`), nil
}

func (s *Server) handleLineagePrompt(ctx context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	return promptResult("Lineage analysis workflows", `# Data Lineage Analysis for Root Cause and Impact Assessment

## Complete investigation for one issue

Call lineage_trace_issue_path with:
  issue_id=12345, include_root_cause_analysis=true, include_impact_analysis=true, max_depth=7

The result combines:
- analysis_summary: the issue's name, status, and priority
- root_cause_analysis.root_causes: upstream nodes with issues but no upstream issues of their own
- impact_analysis.impact_summary: downstream blast radius and severity level
- remediation_plan: suggested next steps

## Focused root cause analysis

When you already know the problem table's node ID:
  call lineage_analyze_upstream_causes with node_id=67890 and max_depth=10

The analysis_summary reports how many upstream nodes were searched and how many root causes were identified.

## Finding node IDs

Use lineage_find_node with a path search such as "SNOWFLAKE/PROD_REPL/DIM_CUSTOMER" or a wildcard like "*CUSTOMER*". The returned "id" fields feed into every other lineage tool.`), nil
}
