package lineage

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/bigeyedata/bigeye-mcp-server/internal/bigeye"
	"github.com/bigeyedata/bigeye-mcp-server/internal/logging"
)

// AllColumns is the column-set marker for whole-table access. Consumers must
// check for it before interpreting individual column entries.
const AllColumns = "*"

// agentContainerName is the container custom agent nodes are created under.
const agentContainerName = "AI Agents"

// GraphAPI is the remote lineage graph capability the tracker depends on.
// *bigeye.Client implements it.
type GraphAPI interface {
	FindNodeByName(ctx context.Context, name, nodeType string) (*bigeye.NodesPage, error)
	CreateNode(ctx context.Context, req bigeye.CreateNodeRequest) (*bigeye.Node, error)
	NodeByEntityID(ctx context.Context, entityID int64) (*bigeye.NodesPage, error)
	FindTableNode(ctx context.Context, database, schema, table string) (*bigeye.NodesPage, error)
	FindColumnNode(ctx context.Context, database, schema, table, column string) (*bigeye.NodesPage, error)
	CreateEdge(ctx context.Context, upstreamID, downstreamID int64, relationshipType string, rebuildGraph bool) error
	EdgesForNode(ctx context.Context, nodeID int64, direction string) ([]bigeye.Edge, error)
	DeleteEdge(ctx context.Context, edgeID int64) error
}

type edgeKey struct {
	upstream   int64
	downstream int64
}

// Tracker accumulates the data assets one agent session has accessed and
// commits them as lineage edges. One Tracker serves one session; all methods
// are safe for concurrent use.
type Tracker struct {
	mu          sync.Mutex
	api         GraphAPI
	logger      *logging.Logger
	agentName   string
	workspaceID int64
	sessionID   string

	// assets is keyed database → schema → table → set of columns. All keys
	// are upper-cased at insertion.
	assets map[string]map[string]map[string]map[string]struct{}

	// nodeCache maps upper-cased fully qualified names to confirmed node
	// IDs. Entries live for the life of the tracker; a catalog change
	// mid-session can leave them stale.
	nodeCache map[string]int64

	agentNodeID int64

	// createdEdges dedups edge creation within this process lifetime. Not
	// persisted: a restart re-attempts edges that already exist remotely.
	createdEdges map[edgeKey]struct{}
}

// NewTracker creates a tracker for one agent session. A nil api means no
// remote client is configured; tracking still works locally but commit and
// cleanup fail with an explicit error.
func NewTracker(api GraphAPI, agentName string, workspaceID int64, logger *logging.Logger) *Tracker {
	return &Tracker{
		api:          api,
		logger:       logger,
		agentName:    agentName,
		workspaceID:  workspaceID,
		sessionID:    uuid.NewString(),
		assets:       make(map[string]map[string]map[string]map[string]struct{}),
		nodeCache:    make(map[string]int64),
		createdEdges: make(map[edgeKey]struct{}),
	}
}

// AgentName returns the agent's display name.
func (t *Tracker) AgentName() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.agentName
}

// SetAgentName overrides the agent's display name. The agent node is
// re-resolved on the next commit or cleanup under the new name.
func (t *Tracker) SetAgentName(name string) {
	if name == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if name != t.agentName {
		t.agentName = name
		t.agentNodeID = 0
	}
}

// SessionID returns the identifier of this tracking session.
func (t *Tracker) SessionID() string {
	return t.sessionID
}

// Track records access to the given qualified asset names. Names that fail to
// parse are logged and skipped; they never fail the call. A name without a
// column marks whole-table access.
func (t *Tracker) Track(qualifiedNames []string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, name := range qualifiedNames {
		parsed, err := ParseQualifiedName(name)
		if err != nil {
			t.logger.Warning("Skipping unparseable asset name: %v", err)
			continue
		}

		database := strings.ToUpper(parsed.Database)
		schema := strings.ToUpper(parsed.Schema)
		table := strings.ToUpper(parsed.Table)

		columns := t.columnSet(database, schema, table)
		if parsed.Column != "" {
			column := strings.ToUpper(parsed.Column)
			columns[column] = struct{}{}
			t.logger.Debug("Tracked column access: %s.%s.%s.%s", database, schema, table, column)
		} else {
			columns[AllColumns] = struct{}{}
			t.logger.Debug("Tracked table access: %s.%s.%s", database, schema, table)
		}
	}
}

// columnSet returns the column set for a table, creating intermediate levels
// as needed. Callers must hold t.mu.
func (t *Tracker) columnSet(database, schema, table string) map[string]struct{} {
	schemas, ok := t.assets[database]
	if !ok {
		schemas = make(map[string]map[string]map[string]struct{})
		t.assets[database] = schemas
	}
	tables, ok := schemas[schema]
	if !ok {
		tables = make(map[string]map[string]struct{})
		schemas[schema] = tables
	}
	columns, ok := tables[table]
	if !ok {
		columns = make(map[string]struct{})
		tables[table] = columns
	}
	return columns
}

// TableAccess summarizes tracked access to one table. Columns is ["*"] when
// the whole table was accessed.
type TableAccess struct {
	Database string   `json:"database"`
	Schema   string   `json:"schema"`
	Table    string   `json:"table"`
	Columns  []string `json:"columns"`
}

// AssetSummary is the flattened view of all tracked assets. Wildcarded tables
// do not contribute to TotalColumns.
type AssetSummary struct {
	Tables       []TableAccess `json:"tables"`
	TotalTables  int           `json:"total_tables"`
	TotalColumns int           `json:"total_columns"`
}

// TrackedAssets returns a summary of everything tracked so far. Output is
// sorted for stable results.
func (t *Tracker) TrackedAssets() AssetSummary {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.summaryLocked()
}

func (t *Tracker) summaryLocked() AssetSummary {
	summary := AssetSummary{Tables: []TableAccess{}}

	for _, database := range sortedKeys(t.assets) {
		schemas := t.assets[database]
		for _, schema := range sortedKeys(schemas) {
			tables := schemas[schema]
			for _, table := range sortedKeys(tables) {
				columns := tables[table]
				access := TableAccess{
					Database: database,
					Schema:   schema,
					Table:    table,
				}
				if _, wildcard := columns[AllColumns]; wildcard {
					access.Columns = []string{AllColumns}
				} else {
					access.Columns = sortedKeys(columns)
					summary.TotalColumns += len(access.Columns)
				}
				summary.Tables = append(summary.Tables, access)
				summary.TotalTables++
			}
		}
	}
	return summary
}

// Clear discards all tracked assets and the created-edge set. The two are
// cleared together because the edge dedup state is only meaningful relative
// to the tracked assets.
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.assets = make(map[string]map[string]map[string]map[string]struct{})
	t.createdEdges = make(map[edgeKey]struct{})
	t.logger.Debug("Cleared all tracked assets")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
