package lineage

import (
	"context"
	"fmt"

	"github.com/bigeyedata/bigeye-mcp-server/internal/bigeye"
)

// CommitResult reports the outcome of committing tracked assets as lineage
// edges. Success is true only when no per-asset errors occurred; callers must
// surface Errors and AssetsNotInCatalog alongside Success so a partial commit
// is distinguishable from total failure.
type CommitResult struct {
	Success            bool          `json:"success"`
	Error              string        `json:"error,omitempty"`
	Message            string        `json:"message,omitempty"`
	EdgesCreated       int           `json:"edges_created"`
	AssetsTracked      *AssetSummary `json:"assets_tracked,omitempty"`
	AssetsNotInCatalog []string      `json:"assets_not_in_catalog,omitempty"`
	Errors             []string      `json:"errors,omitempty"`
	Summary            string        `json:"summary,omitempty"`
	AssetsCleared      bool          `json:"assets_cleared,omitempty"`
}

// CreateLineageEdges ensures an (asset → agent) edge exists for every tracked
// asset. Edge creation is best-effort: one asset's failure never aborts the
// rest of the batch. Edges already created in this process lifetime are
// skipped.
//
// Columns that have no node in the catalog fall back to a table-level edge;
// granular column lineage may not exist even when table lineage does.
func (t *Tracker) CreateLineageEdges(ctx context.Context, rebuildGraph bool) *CommitResult {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.api == nil {
		return &CommitResult{Error: "No Bigeye client configured"}
	}
	if len(t.assets) == 0 {
		// Explicit no-op, distinct from failure.
		return &CommitResult{
			Success:      true,
			Message:      "No assets tracked",
			EdgesCreated: 0,
		}
	}

	agentID := t.ensureAgentNode(ctx)
	if agentID == 0 {
		return &CommitResult{Error: "Failed to create or find agent node"}
	}

	var (
		edgesCreated int
		errs         []string
		notInCatalog []string
	)

	for _, database := range sortedKeys(t.assets) {
		schemas := t.assets[database]
		for _, schema := range sortedKeys(schemas) {
			tables := schemas[schema]
			for _, table := range sortedKeys(tables) {
				columns := tables[table]
				tableName := fmt.Sprintf("%s.%s.%s", database, schema, table)

				if _, wildcard := columns[AllColumns]; wildcard {
					nodeID := t.findAssetNodeID(ctx, database, schema, table, "")
					if nodeID == 0 {
						notInCatalog = append(notInCatalog, tableName)
						continue
					}
					if created, err := t.createEdgeOnce(ctx, nodeID, agentID, tableName); err != nil {
						errs = append(errs, fmt.Sprintf("Failed to create edge for table %s", tableName))
					} else if created {
						edgesCreated++
					}
					continue
				}

				for _, column := range sortedKeys(columns) {
					columnName := tableName + "." + column
					nodeID := t.findAssetNodeID(ctx, database, schema, table, column)
					if nodeID != 0 {
						if created, err := t.createEdgeOnce(ctx, nodeID, agentID, columnName); err != nil {
							errs = append(errs, fmt.Sprintf("Failed to create edge for column %s", columnName))
						} else if created {
							edgesCreated++
						}
						continue
					}

					// Column not in the catalog: fall back to a
					// table-level edge.
					tableNodeID := t.findAssetNodeID(ctx, database, schema, table, "")
					if tableNodeID == 0 {
						notInCatalog = append(notInCatalog, columnName)
						continue
					}
					if created, err := t.createEdgeOnce(ctx, tableNodeID, agentID, tableName); err != nil {
						errs = append(errs, fmt.Sprintf("Failed to create edge for table %s", tableName))
					} else if created {
						edgesCreated++
					}
				}
			}
		}
	}

	summary := t.summaryLocked()
	return &CommitResult{
		Success:            len(errs) == 0,
		EdgesCreated:       edgesCreated,
		AssetsTracked:      &summary,
		AssetsNotInCatalog: notInCatalog,
		Errors:             errs,
		Summary:            fmt.Sprintf("Created %d lineage edges", edgesCreated),
	}
}

// createEdgeOnce creates an (upstream → agent) edge unless the pair was
// already created in this process. Returns whether a new edge was created.
// Callers must hold t.mu.
func (t *Tracker) createEdgeOnce(ctx context.Context, upstreamID, agentID int64, assetName string) (bool, error) {
	key := edgeKey{upstream: upstreamID, downstream: agentID}
	if _, done := t.createdEdges[key]; done {
		return false, nil
	}

	t.logger.Debug("Creating edge: %s -> %s", assetName, t.agentName)
	// Graph rebuilds are deferred; rebuilding per edge is wasteful for
	// large batches.
	if err := t.api.CreateEdge(ctx, upstreamID, agentID, bigeye.RelationshipTypeLineage, false); err != nil {
		t.logger.Debug("Failed to create edge for %s: %v", assetName, err)
		return false, err
	}
	t.createdEdges[key] = struct{}{}
	return true, nil
}
