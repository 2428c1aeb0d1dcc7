package server

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/bigeyedata/bigeye-mcp-server/internal/bigeye"
)

// handleCheckHealth handles the check_health tool request.
func (s *Server) handleCheckHealth(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.logger.Debug("Checking API health")
	status, err := s.client.CheckHealth(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("health check failed: %v", err)), nil
	}
	return jsonResult(status)
}

// handleGetIssues handles the get_issues tool request.
func (s *Server) handleGetIssues(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := requestArgs(request)

	req := bigeye.FetchIssuesRequest{
		WorkspaceID: s.cfg.WorkspaceID,
		Statuses:    stringListArg(args, "statuses"),
		SchemaNames: stringListArg(args, "schema_names"),
		PageSize:    intArg(args, "page_size", 0),
		PageCursor:  stringArg(args, "page_cursor"),
	}

	s.logger.Debug("Fetching issues for workspace %d", req.WorkspaceID)
	raw, err := s.client.FetchIssues(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to fetch issues: %v", err)), nil
	}
	return mcp.NewToolResultText(string(raw)), nil
}

// handleGetTableIssues handles the get_table_issues tool request.
func (s *Server) handleGetTableIssues(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := requestArgs(request)

	tableName := stringArg(args, "table_name")
	if tableName == "" {
		return mcp.NewToolResultError("missing or invalid 'table_name' argument"), nil
	}

	s.logger.Debug("Fetching issues for table %s", tableName)
	issues, err := s.client.IssuesForTable(ctx, s.cfg.WorkspaceID,
		tableName,
		stringArg(args, "warehouse_name"),
		stringArg(args, "schema_name"),
		stringListArg(args, "statuses"),
	)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to fetch table issues: %v", err)), nil
	}

	result := struct {
		*bigeye.TableIssues
		Summary *issueSummary `json:"summary,omitempty"`
	}{TableIssues: issues}
	if issues.TotalIssues > 0 {
		result.Summary = &issueSummary{
			TotalIssues: issues.TotalIssues,
			ByStatus:    countIssuesByStatus(issues.Issues),
		}
	}
	return jsonResult(result)
}

// issueSummary groups a table's issues by their current status.
type issueSummary struct {
	TotalIssues int            `json:"total_issues"`
	ByStatus    map[string]int `json:"by_status"`
}

func countIssuesByStatus(issues []json.RawMessage) map[string]int {
	counts := map[string]int{}
	for _, raw := range issues {
		var issue struct {
			CurrentStatus string `json:"currentStatus"`
		}
		status := "UNKNOWN"
		if err := json.Unmarshal(raw, &issue); err == nil && issue.CurrentStatus != "" {
			status = issue.CurrentStatus
		}
		counts[status]++
	}
	return counts
}

// handleAnalyzeTableDataQuality handles the analyze_table_data_quality tool
// request. It combines catalog presence, configured metrics, and open issues
// into a single analysis.
func (s *Server) handleAnalyzeTableDataQuality(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := requestArgs(request)

	tableName := stringArg(args, "table_name")
	if tableName == "" {
		return mcp.NewToolResultError("missing or invalid 'table_name' argument"), nil
	}
	schemaName := stringArg(args, "schema_name")
	warehouseName := stringArg(args, "warehouse_name")

	s.logger.Debug("Analyzing data quality for table %s", tableName)

	catalog, err := s.client.CatalogTables(ctx, bigeye.CatalogTablesRequest{
		WorkspaceID:   s.cfg.WorkspaceID,
		SchemaName:    schemaName,
		WarehouseName: warehouseName,
		PageSize:      100,
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to check catalog: %v", err)), nil
	}

	var match *bigeye.CatalogTable
	for i := range catalog.Tables {
		if strings.EqualFold(catalog.Tables[i].TableName, tableName) {
			match = &catalog.Tables[i]
			break
		}
	}
	if match == nil {
		available := make([]string, 0, 10)
		for _, t := range catalog.Tables {
			if len(available) == 10 {
				break
			}
			available = append(available, t.TableName)
		}
		return jsonResult(map[string]interface{}{
			"error":                      true,
			"message":                    fmt.Sprintf("Table %s not found in Bigeye catalog", tableName),
			"available_tables_in_schema": available,
			"hint":                       "Make sure the table name is correct and has been imported into Bigeye",
		})
	}

	issues, err := s.client.IssuesForTable(ctx, s.cfg.WorkspaceID,
		tableName, warehouseName, orDefault(schemaName, match.SchemaName), nil)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to fetch table issues: %v", err)), nil
	}

	metrics, metricsErr := s.client.TableMetrics(ctx, s.cfg.WorkspaceID, tableName, orDefault(schemaName, match.SchemaName))

	analysis := map[string]interface{}{
		"table": map[string]interface{}{
			"table_name":     match.TableName,
			"schema_name":    match.SchemaName,
			"warehouse_name": match.WarehouseName,
			"table_id":       match.ID,
		},
		"data_quality_summary": map[string]interface{}{
			"total_issues":     issues.TotalIssues,
			"issues_by_status": countIssuesByStatus(issues.Issues),
			"has_metrics":      metricsErr == nil,
		},
		"issues": issues.Issues,
	}
	if metricsErr == nil {
		analysis["metrics"] = metrics
	}

	s.logger.Debug("Analysis complete for %s: %d issues found", tableName, issues.TotalIssues)
	return jsonResult(analysis)
}

// handleMergeIssues handles the merge_issues tool request.
func (s *Server) handleMergeIssues(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := requestArgs(request)

	issueIDs := int64ListArg(args, "issue_ids")
	if len(issueIDs) == 0 {
		return mcp.NewToolResultError("missing or invalid 'issue_ids' argument"), nil
	}

	s.logger.Debug("Merging %d issues", len(issueIDs))
	raw, err := s.client.MergeIssues(ctx, s.cfg.WorkspaceID, issueIDs,
		int64Arg(args, "existing_incident_id"),
		stringArg(args, "incident_name"),
	)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to merge issues: %v", err)), nil
	}
	return mcp.NewToolResultText(string(raw)), nil
}

// handleUnmergeIssues handles the unmerge_issues tool request.
func (s *Server) handleUnmergeIssues(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := requestArgs(request)

	req := bigeye.UnmergeIssuesRequest{
		WorkspaceID:    s.cfg.WorkspaceID,
		IssueIDs:       int64ListArg(args, "issue_ids"),
		ParentIssueIDs: int64ListArg(args, "parent_issue_ids"),
		AssigneeID:     int64Arg(args, "assignee_id"),
		NewStatus:      stringArg(args, "new_status"),
	}
	if len(req.IssueIDs) == 0 && len(req.ParentIssueIDs) == 0 {
		return mcp.NewToolResultError("either 'issue_ids' or 'parent_issue_ids' must be provided"), nil
	}

	raw, err := s.client.UnmergeIssues(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to unmerge issues: %v", err)), nil
	}
	return mcp.NewToolResultText(string(raw)), nil
}

// handleUpdateIssue handles the update_issue tool request.
func (s *Server) handleUpdateIssue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := requestArgs(request)

	issueID := int64Arg(args, "issue_id")
	if issueID == 0 {
		return mcp.NewToolResultError("missing or invalid 'issue_id' argument"), nil
	}

	raw, err := s.client.UpdateIssue(ctx, issueID, bigeye.UpdateIssueRequest{
		NewStatus:    stringArg(args, "new_status"),
		ClosingLabel: stringArg(args, "closing_label"),
		Priority:     stringArg(args, "priority"),
		Message:      stringArg(args, "message"),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to update issue: %v", err)), nil
	}
	return mcp.NewToolResultText(string(raw)), nil
}

// handleIssueResolutionSteps handles the get_issue_resolution_steps tool
// request.
func (s *Server) handleIssueResolutionSteps(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := requestArgs(request)

	issueID := int64Arg(args, "issue_id")
	if issueID == 0 {
		return mcp.NewToolResultError("missing or invalid 'issue_id' argument"), nil
	}

	raw, err := s.client.IssueResolutionSteps(ctx, issueID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to get resolution steps: %v", err)), nil
	}
	return mcp.NewToolResultText(string(raw)), nil
}

func orDefault(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}
