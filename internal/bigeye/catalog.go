package bigeye

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// CatalogTable is a table entry from the catalog endpoint.
type CatalogTable struct {
	ID            int64        `json:"id"`
	TableName     string       `json:"tableName"`
	SchemaName    string       `json:"schemaName"`
	WarehouseName string       `json:"warehouseName"`
	CatalogPath   *CatalogPath `json:"catalogPath,omitempty"`
}

// CatalogTablesPage is the response of the catalog tables endpoint.
type CatalogTablesPage struct {
	Tables []CatalogTable `json:"tables"`
}

// CatalogTablesRequest filters the catalog tables listing.
type CatalogTablesRequest struct {
	WorkspaceID   int64
	SchemaName    string
	WarehouseName string
	PageSize      int
}

// CatalogTables lists tables from the Bigeye catalog.
func (c *Client) CatalogTables(ctx context.Context, req CatalogTablesRequest) (*CatalogTablesPage, error) {
	pageSize := req.PageSize
	if pageSize == 0 {
		pageSize = 100
	}
	payload := map[string]interface{}{
		"workspaceId": req.WorkspaceID,
		"pageSize":    pageSize,
	}
	if req.SchemaName != "" {
		payload["schemaName"] = req.SchemaName
	}
	if req.WarehouseName != "" {
		payload["warehouseName"] = req.WarehouseName
	}

	var page CatalogTablesPage
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/catalog/tables", nil, payload, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// SearchType filters workspace search results by either a system object type
// or a data node type.
type SearchType struct {
	SystemSearchType string `json:"systemSearchType,omitempty"`
	DataNodeType     string `json:"dataNodeType,omitempty"`
}

// Search runs the workspace-wide search over schemas, tables, columns,
// issues, and other objects.
func (c *Client) Search(ctx context.Context, workspaceID int64, searchTerm string, types []SearchType, limit int) (json.RawMessage, error) {
	body := map[string]interface{}{}
	if searchTerm != "" {
		body["search"] = searchTerm
	}
	if len(types) > 0 {
		body["types"] = types
	}
	if limit > 0 {
		body["limit"] = limit
	}

	query := url.Values{}
	query.Set("workspaceId", fmt.Sprintf("%d", workspaceID))

	var out json.RawMessage
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/search", query, body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// LineageSearchResult is the response of the v2 path-based lineage search.
type LineageSearchResult struct {
	Results []Node `json:"results"`
}

// SearchLineage runs the v2 path-based lineage search. The search string uses
// slash-separated path segments with optional wildcards, e.g.
// "SNOWFLAKE/SALES/ORDERS" or "*CUSTOMER*".
func (c *Client) SearchLineage(ctx context.Context, searchString string, workspaceID int64, limit int) (*LineageSearchResult, error) {
	if limit == 0 {
		limit = 100
	}
	payload := map[string]interface{}{
		"search":      searchString,
		"workspaceId": workspaceID,
		"limit":       limit,
	}

	var result LineageSearchResult
	if err := c.doJSON(ctx, http.MethodPost, "/api/v2/lineage/search", nil, payload, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
