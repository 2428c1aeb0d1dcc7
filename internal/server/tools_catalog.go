package server

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/bigeyedata/bigeye-mcp-server/internal/bigeye"
)

// foundNode is a search hit with the fields callers need to feed into other
// lineage tools.
type foundNode struct {
	ID          int64               `json:"id"`
	Name        string              `json:"name"`
	Type        string              `json:"type"`
	Path        string              `json:"path"`
	Container   string              `json:"container,omitempty"`
	CatalogPath *bigeye.CatalogPath `json:"catalog_path,omitempty"`
}

// handleLineageFindNode handles the lineage_find_node tool request.
func (s *Server) handleLineageFindNode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := requestArgs(request)

	searchString := stringArg(args, "search_string")
	if searchString == "" {
		searchString = "*"
	}
	nodeType := stringArg(args, "node_type")
	limit := intArg(args, "limit", 20)
	workspaceID := int64Arg(args, "workspace_id")
	if workspaceID == 0 {
		workspaceID = s.cfg.WorkspaceID
	}

	// Trim whitespace around path separators; clients often paste
	// "WAREHOUSE / SCHEMA / TABLE".
	normalized := strings.TrimSpace(searchString)
	normalized = strings.ReplaceAll(normalized, " / ", "/")
	normalized = strings.ReplaceAll(normalized, "/ ", "/")
	normalized = strings.ReplaceAll(normalized, " /", "/")

	s.logger.Debug("Searching lineage nodes: %q (workspace %d)", normalized, workspaceID)
	searchResult, err := s.client.SearchLineage(ctx, normalized, workspaceID, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}

	nodes := []foundNode{}
	for _, node := range searchResult.Results {
		if nodeType != "" && node.NodeType != nodeType {
			continue
		}
		displayPath := node.NodeName
		if node.CatalogPath != nil && len(node.CatalogPath.PathParts) > 0 {
			displayPath = strings.Join(node.CatalogPath.PathParts, " / ")
		}
		nodes = append(nodes, foundNode{
			ID:          node.ID,
			Name:        node.NodeName,
			Type:        node.NodeType,
			Path:        displayPath,
			Container:   node.NodeContainerName,
			CatalogPath: node.CatalogPath,
		})
	}
	s.logger.Debug("Found %d matching nodes", len(nodes))

	return jsonResult(map[string]interface{}{
		"search_string":     searchString,
		"normalized_search": normalized,
		"node_type_filter":  nodeType,
		"found_count":       len(nodes),
		"nodes":             nodes,
		"hint":              "Use the 'id' field from results with other lineage tools",
	})
}

// handleLineageExploreCatalog handles the lineage_explore_catalog tool
// request.
func (s *Server) handleLineageExploreCatalog(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := requestArgs(request)

	schemaName := stringArg(args, "schema_name")
	warehouseName := stringArg(args, "warehouse_name")
	searchTerm := stringArg(args, "search_term")

	catalog, err := s.client.CatalogTables(ctx, bigeye.CatalogTablesRequest{
		WorkspaceID:   s.cfg.WorkspaceID,
		SchemaName:    schemaName,
		WarehouseName: warehouseName,
		PageSize:      intArg(args, "page_size", 50),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("catalog exploration failed: %v", err)), nil
	}

	type catalogEntry struct {
		ID          int64               `json:"id"`
		Name        string              `json:"name"`
		Schema      string              `json:"schema"`
		Warehouse   string              `json:"warehouse"`
		FullName    string              `json:"full_name"`
		CatalogPath *bigeye.CatalogPath `json:"catalog_path,omitempty"`
	}

	entries := []catalogEntry{}
	searchUpper := strings.ToUpper(searchTerm)
	for _, table := range catalog.Tables {
		if searchTerm != "" && !strings.Contains(strings.ToUpper(table.TableName), searchUpper) {
			continue
		}
		entries = append(entries, catalogEntry{
			ID:          table.ID,
			Name:        table.TableName,
			Schema:      table.SchemaName,
			Warehouse:   table.WarehouseName,
			FullName:    fmt.Sprintf("%s.%s.%s", table.WarehouseName, table.SchemaName, table.TableName),
			CatalogPath: table.CatalogPath,
		})
	}

	shown := entries
	if len(shown) > 20 {
		shown = shown[:20]
	}
	return jsonResult(map[string]interface{}{
		"schema_filter":    schemaName,
		"warehouse_filter": warehouseName,
		"search_term":      searchTerm,
		"found_count":      len(entries),
		"tables":           shown,
		"note":             fmt.Sprintf("Showing first %d of %d tables", len(shown), len(entries)),
	})
}

// handleLineageDeleteNode handles the lineage_delete_node tool request. Only
// custom nodes may be deleted; catalog-managed tables and columns are off
// limits.
func (s *Server) handleLineageDeleteNode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := requestArgs(request)

	nodeID := int64Arg(args, "node_id")
	if nodeID == 0 {
		return mcp.NewToolResultError("missing or invalid 'node_id' argument"), nil
	}
	force := boolArg(args, "force", false)

	node, err := s.client.GetLineageNode(ctx, nodeID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("cannot find node %d: %v", nodeID, err)), nil
	}
	if node.NodeType != bigeye.NodeTypeCustom {
		return mcp.NewToolResultError(fmt.Sprintf(
			"cannot delete node %d: only custom nodes can be deleted, this node is type %s",
			nodeID, node.NodeType)), nil
	}

	if !force {
		edges, err := s.client.EdgesForNode(ctx, nodeID, "both")
		if err == nil && len(edges) > 0 {
			return jsonResult(map[string]interface{}{
				"error":      true,
				"message":    fmt.Sprintf("Node %d has %d active edges. Use force=true to delete anyway.", nodeID, len(edges)),
				"node_name":  node.NodeName,
				"edge_count": len(edges),
			})
		}
	}

	if _, err := s.client.DeleteNode(ctx, nodeID, force); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to delete node %d: %v", nodeID, err)), nil
	}

	return jsonResult(map[string]interface{}{
		"success":   true,
		"message":   "Successfully deleted custom lineage node",
		"node_id":   nodeID,
		"node_name": node.NodeName,
		"node_type": node.NodeType,
	})
}
