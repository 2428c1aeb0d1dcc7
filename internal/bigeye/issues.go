package bigeye

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Issue status constants accepted by the issues endpoints.
const (
	IssueStatusNew          = "ISSUE_STATUS_NEW"
	IssueStatusAcknowledged = "ISSUE_STATUS_ACKNOWLEDGED"
	IssueStatusClosed       = "ISSUE_STATUS_CLOSED"
	IssueStatusMonitoring   = "ISSUE_STATUS_MONITORING"
	IssueStatusMerged       = "ISSUE_STATUS_MERGED"
)

// FetchIssuesRequest filters the issues returned by FetchIssues.
type FetchIssuesRequest struct {
	WorkspaceID int64
	Statuses    []string
	SchemaNames []string
	PageSize    int
	PageCursor  string
}

// FetchIssues retrieves issues for a workspace, optionally filtered by status
// and schema. The response is passed through unmodified.
func (c *Client) FetchIssues(ctx context.Context, req FetchIssuesRequest) (json.RawMessage, error) {
	payload := map[string]interface{}{
		"workspaceId": req.WorkspaceID,
	}
	if req.PageSize > 0 {
		payload["pageSize"] = req.PageSize
	}
	if len(req.Statuses) > 0 {
		payload["currentStatus"] = req.Statuses
	}
	if len(req.SchemaNames) > 0 {
		payload["schemaNames"] = req.SchemaNames
	}
	if req.PageCursor != "" {
		payload["pageCursor"] = req.PageCursor
	}

	var out json.RawMessage
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/issues/fetch", nil, payload, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// MergeIssues merges the given issues into a single incident. Either a new
// incident is created or, when existingIncidentID is non-zero, the issues are
// merged into that incident.
func (c *Client) MergeIssues(ctx context.Context, workspaceID int64, issueIDs []int64, existingIncidentID int64, incidentName string) (json.RawMessage, error) {
	payload := map[string]interface{}{
		"where": map[string]interface{}{
			"ids":         issueIDs,
			"workspaceId": workspaceID,
		},
	}
	if existingIncidentID != 0 {
		payload["existingIncident"] = existingIncidentID
	}
	if incidentName != "" {
		payload["incidentName"] = incidentName
	}

	var out json.RawMessage
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/issues/merge", nil, payload, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UnmergeIssuesRequest selects issues to remove from their incidents, either
// directly by issue ID or by the incident ("parent issue") they belong to.
type UnmergeIssuesRequest struct {
	WorkspaceID    int64
	IssueIDs       []int64
	ParentIssueIDs []int64
	AssigneeID     int64
	NewStatus      string
}

// UnmergeIssues removes issues from incidents they have been merged into.
func (c *Client) UnmergeIssues(ctx context.Context, req UnmergeIssuesRequest) (json.RawMessage, error) {
	if len(req.IssueIDs) == 0 && len(req.ParentIssueIDs) == 0 {
		return nil, fmt.Errorf("either issue IDs or parent issue IDs must be provided")
	}

	where := map[string]interface{}{
		"workspaceId": req.WorkspaceID,
	}
	if len(req.IssueIDs) > 0 {
		where["ids"] = req.IssueIDs
	}
	if len(req.ParentIssueIDs) > 0 {
		where["parentIssueIds"] = req.ParentIssueIDs
	}

	payload := map[string]interface{}{"where": where}
	if req.AssigneeID != 0 {
		payload["assignee"] = req.AssigneeID
	}
	if req.NewStatus != "" {
		payload["status"] = req.NewStatus
	}

	var out json.RawMessage
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/issues/unmerge", nil, payload, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateIssueRequest describes a partial issue update. At least one of
// NewStatus, Priority, or Message must be set; ClosingLabel is required when
// closing an issue.
type UpdateIssueRequest struct {
	NewStatus    string
	ClosingLabel string
	Priority     string
	Message      string
}

// UpdateIssue updates an issue's status or priority, or appends a timeline
// message.
func (c *Client) UpdateIssue(ctx context.Context, issueID int64, req UpdateIssueRequest) (json.RawMessage, error) {
	payload := map[string]interface{}{}

	if req.NewStatus != "" {
		statusUpdate := map[string]interface{}{"newStatus": req.NewStatus}
		if req.NewStatus == IssueStatusClosed {
			if req.ClosingLabel == "" {
				return nil, fmt.Errorf("closing label is required when the new status is %s", IssueStatusClosed)
			}
			statusUpdate["closingLabel"] = req.ClosingLabel
		}
		payload["statusUpdate"] = statusUpdate
	}
	if req.Priority != "" {
		payload["priorityUpdate"] = map[string]interface{}{"issuePriority": req.Priority}
	}
	if req.Message != "" {
		payload["messageUpdate"] = map[string]interface{}{"message": req.Message}
	}

	if len(payload) == 0 {
		return nil, fmt.Errorf("at least one update (status, priority, or message) must be provided")
	}

	var out json.RawMessage
	path := fmt.Sprintf("/api/v1/issues/%d", issueID)
	if err := c.doJSON(ctx, http.MethodPut, path, nil, payload, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// IssueResolutionSteps retrieves the recommended resolution steps for an
// issue or incident.
func (c *Client) IssueResolutionSteps(ctx context.Context, issueID int64) (json.RawMessage, error) {
	var out json.RawMessage
	path := fmt.Sprintf("/api/v1/issues/resolution/%d", issueID)
	if err := c.doJSON(ctx, http.MethodPost, path, nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// TableIssues holds the issues matched to a single table.
type TableIssues struct {
	Table       string            `json:"table"`
	Schema      string            `json:"schema"`
	TotalIssues int               `json:"total_issues"`
	Issues      []json.RawMessage `json:"issues"`
}

// IssuesForTable locates a table in the catalog and returns the issues whose
// metric references it. Issue filtering happens client-side because the
// issues endpoint only filters by schema.
func (c *Client) IssuesForTable(ctx context.Context, workspaceID int64, tableName, warehouseName, schemaName string, statuses []string) (*TableIssues, error) {
	catalog, err := c.CatalogTables(ctx, CatalogTablesRequest{
		WorkspaceID:   workspaceID,
		SchemaName:    schemaName,
		WarehouseName: warehouseName,
		PageSize:      100,
	})
	if err != nil {
		return nil, err
	}

	var match *CatalogTable
	for i := range catalog.Tables {
		if strings.EqualFold(catalog.Tables[i].TableName, tableName) {
			match = &catalog.Tables[i]
			break
		}
	}
	if match == nil {
		return nil, &APIError{
			StatusCode: http.StatusNotFound,
			Message:    fmt.Sprintf("table %s not found in catalog", tableName),
		}
	}

	raw, err := c.FetchIssues(ctx, FetchIssuesRequest{
		WorkspaceID: workspaceID,
		Statuses:    statuses,
		SchemaNames: []string{match.SchemaName},
	})
	if err != nil {
		return nil, err
	}

	var page struct {
		Issues []json.RawMessage `json:"issues"`
	}
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, fmt.Errorf("decoding issues response: %w", err)
	}

	result := &TableIssues{
		Table:  tableName,
		Schema: match.SchemaName,
		Issues: []json.RawMessage{},
	}
	for _, rawIssue := range page.Issues {
		var issue struct {
			Metric struct {
				TableName string `json:"tableName"`
			} `json:"metric"`
		}
		if err := json.Unmarshal(rawIssue, &issue); err != nil {
			continue
		}
		if strings.EqualFold(issue.Metric.TableName, tableName) {
			result.Issues = append(result.Issues, rawIssue)
		}
	}
	result.TotalIssues = len(result.Issues)
	return result, nil
}

// TableMetrics retrieves the metrics configured for a table.
func (c *Client) TableMetrics(ctx context.Context, workspaceID int64, tableName, schemaName string) (json.RawMessage, error) {
	query := url.Values{}
	query.Set("workspaceId", fmt.Sprintf("%d", workspaceID))
	query.Set("tableName", tableName)
	if schemaName != "" {
		query.Set("schemaName", schemaName)
	}

	var out json.RawMessage
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/metrics", query, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
