// Package console implements an interactive console for exercising the
// Bigeye client and the agent lineage tracker without an MCP client attached.
package console

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/bigeyedata/bigeye-mcp-server/internal/bigeye"
	"github.com/bigeyedata/bigeye-mcp-server/internal/lineage"
	"github.com/bigeyedata/bigeye-mcp-server/internal/logging"
)

// errExit is a sentinel error used to signal console exit
var errExit = errors.New("exit")

// Console is a readline loop over the Bigeye client and lineage tracker.
type Console struct {
	client          *bigeye.Client
	cfg             *bigeye.Config
	tracker         *lineage.Tracker
	logger          *logging.Logger
	commandHandlers map[string]commandHandler
}

// New creates a console bound to the given client and tracker.
func New(cfg *bigeye.Config, client *bigeye.Client, tracker *lineage.Tracker, logger *logging.Logger) *Console {
	c := &Console{
		client:  client,
		cfg:     cfg,
		tracker: tracker,
		logger:  logger,
	}
	c.commandHandlers = c.buildCommandHandlers()
	return c
}

// Run starts the console loop.
func (c *Console) Run(ctx context.Context) error {
	historyFile := filepath.Join(os.TempDir(), ".bigeye_mcp_history")

	config := &readline.Config{
		Prompt:          "bigeye> ",
		HistoryFile:     historyFile,
		AutoComplete:    c.createCompleter(),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",

		HistorySearchFold:   true,
		FuncFilterInputRune: filterInput,
	}

	rl, err := readline.NewEx(config)
	if err != nil {
		return fmt.Errorf("failed to create readline instance: %w", err)
	}
	defer func() { _ = rl.Close() }()

	c.logger.Info("Bigeye console started. Type 'help' for available commands. Use TAB for completion.")
	fmt.Println()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Console shutting down...")
			return nil
		default:
		}

		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			if len(line) == 0 {
				continue
			}
		} else if err == io.EOF {
			c.logger.Info("Goodbye!")
			return nil
		} else if err != nil {
			return fmt.Errorf("readline error: %w", err)
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		if err := c.executeCommand(ctx, input); err != nil {
			if errors.Is(err, errExit) {
				c.logger.Info("Goodbye!")
				return nil
			}
			c.logger.Error("Error: %v", err)
		}

		fmt.Println()
	}
}

// createCompleter creates the tab completion configuration.
func (c *Console) createCompleter() *readline.PrefixCompleter {
	return readline.NewPrefixCompleter(
		readline.PcItem("help"),
		readline.PcItem("?"),
		readline.PcItem("exit"),
		readline.PcItem("quit"),
		readline.PcItem("health"),
		readline.PcItem("issues"),
		readline.PcItem("table"),
		readline.PcItem("track"),
		readline.PcItem("status"),
		readline.PcItem("commit"),
		readline.PcItem("clear"),
		readline.PcItem("cleanup"),
		readline.PcItem("search"),
		readline.PcItem("catalog"),
		readline.PcItem("agent"),
	)
}

// filterInput filters input characters for readline.
func filterInput(r rune) (rune, bool) {
	switch r {
	// block CtrlZ feature
	case readline.CharCtrlZ:
		return r, false
	}
	return r, true
}

// commandHandler defines a console command with its handler and argument
// requirements.
type commandHandler struct {
	minArgs int
	usage   string
	handler func(ctx context.Context, parts []string) error
}

// buildCommandHandlers creates the map of command handlers.
func (c *Console) buildCommandHandlers() map[string]commandHandler {
	return map[string]commandHandler{
		"help": {minArgs: 1, handler: func(ctx context.Context, parts []string) error {
			return c.showHelp()
		}},
		"?": {minArgs: 1, handler: func(ctx context.Context, parts []string) error {
			return c.showHelp()
		}},
		"exit": {minArgs: 1, handler: func(ctx context.Context, parts []string) error {
			return errExit
		}},
		"quit": {minArgs: 1, handler: func(ctx context.Context, parts []string) error {
			return errExit
		}},
		"health": {minArgs: 1, handler: func(ctx context.Context, parts []string) error {
			return c.handleHealth(ctx)
		}},
		"issues": {minArgs: 1, handler: func(ctx context.Context, parts []string) error {
			return c.handleIssues(ctx, parts[1:])
		}},
		"table": {
			minArgs: 2,
			usage:   "usage: table <table-name> [schema-name]",
			handler: func(ctx context.Context, parts []string) error {
				schema := ""
				if len(parts) > 2 {
					schema = parts[2]
				}
				return c.handleTable(ctx, parts[1], schema)
			},
		},
		"track": {
			minArgs: 2,
			usage:   "usage: track <qualified-name> [more-names...]",
			handler: func(ctx context.Context, parts []string) error {
				return c.handleTrack(parts[1:])
			},
		},
		"status": {minArgs: 1, handler: func(ctx context.Context, parts []string) error {
			return c.handleStatus()
		}},
		"commit": {minArgs: 1, handler: func(ctx context.Context, parts []string) error {
			return c.handleCommit(ctx)
		}},
		"clear": {minArgs: 1, handler: func(ctx context.Context, parts []string) error {
			c.tracker.Clear()
			fmt.Println("Tracked assets cleared.")
			return nil
		}},
		"cleanup": {minArgs: 1, handler: func(ctx context.Context, parts []string) error {
			days := 30
			if len(parts) > 1 {
				n, err := strconv.Atoi(parts[1])
				if err != nil || n < 0 {
					return fmt.Errorf("invalid retention days: %s", parts[1])
				}
				days = n
			}
			return c.handleCleanup(ctx, days)
		}},
		"search": {
			minArgs: 2,
			usage:   "usage: search <pattern> (e.g. */SALES/* or *CUSTOMER*)",
			handler: func(ctx context.Context, parts []string) error {
				return c.handleSearch(ctx, strings.Join(parts[1:], " "))
			},
		},
		"catalog": {minArgs: 1, handler: func(ctx context.Context, parts []string) error {
			schema := ""
			if len(parts) > 1 {
				schema = parts[1]
			}
			return c.handleCatalog(ctx, schema)
		}},
		"agent": {minArgs: 1, handler: func(ctx context.Context, parts []string) error {
			if len(parts) > 1 {
				c.tracker.SetAgentName(strings.Join(parts[1:], " "))
			}
			fmt.Printf("Agent: %s (session %s)\n", c.tracker.AgentName(), c.tracker.SessionID())
			return nil
		}},
	}
}

// executeCommand parses and executes a command.
func (c *Console) executeCommand(ctx context.Context, input string) error {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return nil
	}

	command := strings.ToLower(parts[0])

	handler, exists := c.commandHandlers[command]
	if !exists {
		return fmt.Errorf("unknown command: %s. Type 'help' for available commands", command)
	}

	if len(parts) < handler.minArgs {
		return errors.New(handler.usage)
	}

	return handler.handler(ctx, parts)
}

// showHelp displays available commands.
func (c *Console) showHelp() error {
	fmt.Println("Available commands:")
	fmt.Println("  help, ?                      - Show this help message")
	fmt.Println("  health                       - Check Bigeye API health")
	fmt.Println("  issues [status...]           - List workspace issues, optionally filtered by status")
	fmt.Println("  table <name> [schema]        - Show issues for a table")
	fmt.Println("  track <name> [names...]      - Track access to qualified asset names")
	fmt.Println("  status                       - Show tracked assets")
	fmt.Println("  commit                       - Commit tracked assets as lineage edges")
	fmt.Println("  clear                        - Discard tracked assets")
	fmt.Println("  cleanup [days]               - Delete agent edges older than N days (default 30)")
	fmt.Println("  search <pattern>             - Search lineage nodes by path pattern")
	fmt.Println("  catalog [schema]             - List catalog tables")
	fmt.Println("  agent [name]                 - Show or set the agent name")
	fmt.Println("  exit, quit                   - Exit the console")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  track SALES.PUBLIC.ORDERS.ORDER_ID SALES.PUBLIC.CUSTOMERS")
	fmt.Println("  issues ISSUE_STATUS_NEW")
	fmt.Println("  search SNOWFLAKE/PROD_REPL/*")
	return nil
}

func (c *Console) handleHealth(ctx context.Context) error {
	status, err := c.client.CheckHealth(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("API health: %s\n", status.Status)
	return nil
}

func (c *Console) handleIssues(ctx context.Context, statuses []string) error {
	raw, err := c.client.FetchIssues(ctx, bigeye.FetchIssuesRequest{
		WorkspaceID: c.cfg.WorkspaceID,
		Statuses:    statuses,
		PageSize:    25,
	})
	if err != nil {
		return err
	}

	var page struct {
		Issues []struct {
			ID            int64  `json:"id"`
			Name          string `json:"name"`
			CurrentStatus string `json:"currentStatus"`
			TableName     string `json:"tableName"`
		} `json:"issues"`
	}
	if err := json.Unmarshal(raw, &page); err != nil {
		return fmt.Errorf("decoding issues: %w", err)
	}

	if len(page.Issues) == 0 {
		fmt.Println("No issues found.")
		return nil
	}
	fmt.Printf("Issues (%d):\n", len(page.Issues))
	for i, issue := range page.Issues {
		fmt.Printf("  %d. [%d] %-40s %s (%s)\n", i+1, issue.ID, issue.Name, issue.CurrentStatus, issue.TableName)
	}
	return nil
}

func (c *Console) handleTable(ctx context.Context, tableName, schemaName string) error {
	issues, err := c.client.IssuesForTable(ctx, c.cfg.WorkspaceID, tableName, "", schemaName, nil)
	if err != nil {
		return err
	}
	fmt.Printf("Table %s.%s: %d issues\n", issues.Schema, issues.Table, issues.TotalIssues)
	for i, raw := range issues.Issues {
		var issue struct {
			ID            int64  `json:"id"`
			Name          string `json:"name"`
			CurrentStatus string `json:"currentStatus"`
		}
		if err := json.Unmarshal(raw, &issue); err != nil {
			continue
		}
		fmt.Printf("  %d. [%d] %s (%s)\n", i+1, issue.ID, issue.Name, issue.CurrentStatus)
	}
	return nil
}

func (c *Console) handleTrack(names []string) error {
	c.tracker.Track(names)
	return c.handleStatus()
}

func (c *Console) handleStatus() error {
	tracked := c.tracker.TrackedAssets()
	if tracked.TotalTables == 0 {
		fmt.Println("No assets tracked.")
		return nil
	}
	fmt.Printf("Tracked assets (%d tables, %d columns):\n", tracked.TotalTables, tracked.TotalColumns)
	for _, table := range tracked.Tables {
		fmt.Printf("  %s.%s.%s: %s\n", table.Database, table.Schema, table.Table, strings.Join(table.Columns, ", "))
	}
	return nil
}

func (c *Console) handleCommit(ctx context.Context) error {
	result := c.tracker.CreateLineageEdges(ctx, false)
	if result.Error != "" {
		return errors.New(result.Error)
	}
	if result.Message != "" {
		fmt.Println(result.Message)
		return nil
	}
	fmt.Printf("Created %d lineage edges.\n", result.EdgesCreated)
	for _, name := range result.AssetsNotInCatalog {
		fmt.Printf("  not in catalog: %s\n", name)
	}
	for _, msg := range result.Errors {
		fmt.Printf("  error: %s\n", msg)
	}
	if result.Success {
		c.tracker.Clear()
		fmt.Println("Tracked assets cleared.")
	}
	return nil
}

func (c *Console) handleCleanup(ctx context.Context, days int) error {
	result := c.tracker.CleanupOldEdges(ctx, days)
	if result.Error != "" {
		return errors.New(result.Error)
	}
	fmt.Printf("Deleted %d of %d agent edges older than %d days (cutoff %s).\n",
		result.EdgesDeleted, result.AgentEdgesChecked, result.RetentionDays, result.CutoffDate)
	for _, msg := range result.Errors {
		fmt.Printf("  error: %s\n", msg)
	}
	return nil
}

func (c *Console) handleSearch(ctx context.Context, pattern string) error {
	result, err := c.client.SearchLineage(ctx, pattern, c.cfg.WorkspaceID, 25)
	if err != nil {
		return err
	}
	if len(result.Results) == 0 {
		fmt.Println("No nodes found.")
		return nil
	}
	fmt.Printf("Nodes (%d):\n", len(result.Results))
	for i, node := range result.Results {
		path := node.NodeName
		if node.CatalogPath != nil && len(node.CatalogPath.PathParts) > 0 {
			path = strings.Join(node.CatalogPath.PathParts, " / ")
		}
		fmt.Printf("  %d. [%d] %-20s %s\n", i+1, node.ID, node.NodeType, path)
	}
	return nil
}

func (c *Console) handleCatalog(ctx context.Context, schema string) error {
	catalog, err := c.client.CatalogTables(ctx, bigeye.CatalogTablesRequest{
		WorkspaceID: c.cfg.WorkspaceID,
		SchemaName:  schema,
		PageSize:    50,
	})
	if err != nil {
		return err
	}
	if len(catalog.Tables) == 0 {
		fmt.Println("No tables found.")
		return nil
	}
	fmt.Printf("Catalog tables (%d):\n", len(catalog.Tables))
	for i, table := range catalog.Tables {
		fmt.Printf("  %d. [%d] %s.%s.%s\n", i+1, table.ID, table.WarehouseName, table.SchemaName, table.TableName)
	}
	return nil
}
