package lineage

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/bigeyedata/bigeye-mcp-server/internal/bigeye"
)

// entityIDPattern extracts the entity ID embedded in the "already exists"
// error message of the node creation endpoint.
var entityIDPattern = regexp.MustCompile(`DataNodeEntity\((\d+)\)`)

// ensureAgentNode resolves the agent's node ID, creating the node when it
// does not exist yet. Returns 0 when resolution fails; callers must treat
// that as "lineage unavailable" and abort, never as a silent no-op.
//
// The node creation endpoint is not idempotent: a concurrent or earlier
// creation surfaces as an "already exists" error whose message embeds an
// entity ID. The recovery chain (entity lookup, then a name search without
// the type filter) is part of the contract with the API and must be kept.
// Callers must hold t.mu.
func (t *Tracker) ensureAgentNode(ctx context.Context) int64 {
	if t.api == nil {
		t.logger.Debug("No Bigeye client configured")
		return 0
	}
	if t.agentNodeID != 0 {
		return t.agentNodeID
	}

	t.logger.Debug("Looking for existing agent node: %s", t.agentName)
	if page, err := t.api.FindNodeByName(ctx, t.agentName, bigeye.NodeTypeCustom); err == nil && len(page.Nodes) > 0 {
		t.agentNodeID = page.Nodes[0].ID
		t.logger.Debug("Found existing agent node with ID %d", t.agentNodeID)
		return t.agentNodeID
	}

	t.logger.Debug("Creating new agent node: %s", t.agentName)
	node, err := t.api.CreateNode(ctx, bigeye.CreateNodeRequest{
		Name:          t.agentName,
		ContainerName: agentContainerName,
		Type:          bigeye.NodeTypeCustom,
		WorkspaceID:   t.workspaceID,
		RebuildGraph:  false,
	})
	if err == nil {
		t.agentNodeID = node.ID
		t.logger.Debug("Created agent node with ID %d", t.agentNodeID)
		return t.agentNodeID
	}

	if id := t.recoverExistingAgentNode(ctx, err); id != 0 {
		t.agentNodeID = id
		return id
	}

	t.logger.Warning("Failed to create agent node: %v", err)
	return 0
}

// recoverExistingAgentNode handles the already-exists failure mode of node
// creation. Returns 0 when the node cannot be recovered.
func (t *Tracker) recoverExistingAgentNode(ctx context.Context, createErr error) int64 {
	var apiErr *bigeye.APIError
	if !errors.As(createErr, &apiErr) || !strings.Contains(apiErr.Message, "already exists") {
		return 0
	}

	if match := entityIDPattern.FindStringSubmatch(apiErr.Message); match != nil {
		entityID, err := strconv.ParseInt(match[1], 10, 64)
		if err == nil {
			t.logger.Debug("Node already exists with entity ID %d", entityID)
			if page, err := t.api.NodeByEntityID(ctx, entityID); err == nil && len(page.Nodes) > 0 {
				t.logger.Debug("Resolved agent node via entity ID: %d", page.Nodes[0].ID)
				return page.Nodes[0].ID
			}
		}
	}

	// Last resort: search by name without the type filter.
	t.logger.Debug("Trying to find agent node without type filter")
	if page, err := t.api.FindNodeByName(ctx, t.agentName, ""); err == nil && len(page.Nodes) > 0 {
		t.logger.Debug("Resolved agent node via untyped search: %d", page.Nodes[0].ID)
		return page.Nodes[0].ID
	}
	return 0
}

// findAssetNodeID resolves a table or column to its lineage node ID, caching
// confirmed IDs under the upper-cased fully qualified name. Returns 0 when
// the asset is not in the catalog or the lookup fails; the caller decides the
// fallback. Callers must hold t.mu.
func (t *Tracker) findAssetNodeID(ctx context.Context, database, schema, table, column string) int64 {
	if t.api == nil {
		return 0
	}

	var cacheKey string
	if column != "" {
		cacheKey = strings.ToUpper(database + "." + schema + "." + table + "." + column)
	} else {
		cacheKey = strings.ToUpper(database + "." + schema + "." + table)
	}
	if id, ok := t.nodeCache[cacheKey]; ok {
		return id
	}

	var (
		page *bigeye.NodesPage
		err  error
	)
	if column != "" {
		t.logger.Debug("Searching for column node: %s", cacheKey)
		page, err = t.api.FindColumnNode(ctx, database, schema, table, column)
	} else {
		t.logger.Debug("Searching for table node: %s", cacheKey)
		page, err = t.api.FindTableNode(ctx, database, schema, table)
	}
	if err != nil {
		t.logger.Debug("Node lookup failed for %s: %v", cacheKey, err)
		return 0
	}
	if len(page.Nodes) == 0 {
		t.logger.Debug("Asset not found in catalog: %s", cacheKey)
		return 0
	}

	id := page.Nodes[0].ID
	t.nodeCache[cacheKey] = id
	t.logger.Debug("Resolved %s to node ID %d", cacheKey, id)
	return id
}
