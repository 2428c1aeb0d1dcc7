package server

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/bigeyedata/bigeye-mcp-server/internal/bigeye"
)

const defaultAnalysisDepth = 5

// handleLineageGetGraph handles the lineage_get_graph tool request.
func (s *Server) handleLineageGetGraph(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := requestArgs(request)

	nodeID := int64Arg(args, "node_id")
	if nodeID == 0 {
		return mcp.NewToolResultError("missing or invalid 'node_id' argument"), nil
	}
	direction := stringArg(args, "direction")
	if direction == "" {
		direction = bigeye.DirectionBidirectional
	}

	s.logger.Debug("Getting lineage graph for node %d, direction %s", nodeID, direction)
	graph, err := s.client.GetLineageGraph(ctx, nodeID, direction, intArg(args, "max_depth", 0))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to get lineage graph: %v", err)), nil
	}
	return mcp.NewToolResultText(string(graph.Raw())), nil
}

// handleLineageGetNode handles the lineage_get_node tool request.
func (s *Server) handleLineageGetNode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := requestArgs(request)

	nodeID := int64Arg(args, "node_id")
	if nodeID == 0 {
		return mcp.NewToolResultError("missing or invalid 'node_id' argument"), nil
	}

	node, err := s.client.GetLineageNode(ctx, nodeID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to get lineage node: %v", err)), nil
	}
	s.logger.Debug("Found node %d: %s", nodeID, node.NodeName)
	return jsonResult(node)
}

// handleLineageGetNodeIssues handles the lineage_get_node_issues tool request.
func (s *Server) handleLineageGetNodeIssues(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := requestArgs(request)

	nodeID := int64Arg(args, "node_id")
	if nodeID == 0 {
		return mcp.NewToolResultError("missing or invalid 'node_id' argument"), nil
	}

	raw, err := s.client.GetLineageNodeIssues(ctx, nodeID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to get node issues: %v", err)), nil
	}
	return mcp.NewToolResultText(string(raw)), nil
}

// nodeSummary is the per-node shape shared by the analysis results.
type nodeSummary struct {
	NodeID      int64               `json:"node_id"`
	NodeName    string              `json:"node_name"`
	NodeType    string              `json:"node_type,omitempty"`
	IssueCount  int                 `json:"issue_count,omitempty"`
	CatalogPath *bigeye.CatalogPath `json:"catalog_path,omitempty"`
	IsRootCause bool                `json:"is_root_cause,omitempty"`
}

type pathEntry struct {
	NodeID     int64  `json:"node_id"`
	NodeName   string `json:"node_name"`
	IssueCount int    `json:"issue_count"`
	Depth      int    `json:"depth"`
}

type upstreamAnalysis struct {
	AnalysisSummary struct {
		TargetNodeID         int64 `json:"target_node_id"`
		MaxDepthSearched     int   `json:"max_depth_searched"`
		TotalUpstreamNodes   int   `json:"total_upstream_nodes"`
		NodesWithIssues      int   `json:"nodes_with_issues"`
		RootCausesIdentified int   `json:"root_causes_identified"`
	} `json:"analysis_summary"`
	RootCauses           []nodeSummary   `json:"root_causes"`
	IssuePropagationPath []pathEntry     `json:"issue_propagation_path"`
	UpstreamLineageGraph json.RawMessage `json:"upstream_lineage_graph"`
	Recommendations      []string        `json:"recommendations"`
}

// analyzeUpstreamCauses walks the upstream graph of a node and flags the
// issue-bearing nodes with no issue-bearing upstreams as root causes.
func (s *Server) analyzeUpstreamCauses(ctx context.Context, nodeID int64, maxDepth int) (*upstreamAnalysis, error) {
	graph, err := s.client.GetLineageGraph(ctx, nodeID, bigeye.DirectionUpstream, maxDepth)
	if err != nil {
		return nil, err
	}

	analysis := &upstreamAnalysis{
		RootCauses:           []nodeSummary{},
		IssuePropagationPath: []pathEntry{},
		UpstreamLineageGraph: graph.Raw(),
	}

	for _, key := range sortedGraphKeys(graph.Nodes) {
		node := graph.Nodes[key]
		if node.IssueCount == 0 {
			continue
		}

		hasUpstreamIssues := false
		for _, edge := range node.UpstreamEdges {
			upstream, ok := graph.Nodes[strconv.FormatInt(edge.UpstreamNodeID, 10)]
			if ok && upstream.IssueCount > 0 {
				hasUpstreamIssues = true
				break
			}
		}

		if !hasUpstreamIssues {
			analysis.RootCauses = append(analysis.RootCauses, nodeSummary{
				NodeID:      node.LineageNode.ID,
				NodeName:    node.LineageNode.NodeName,
				NodeType:    node.LineageNode.NodeType,
				IssueCount:  node.IssueCount,
				CatalogPath: node.LineageNode.CatalogPath,
				IsRootCause: true,
			})
		}
		analysis.IssuePropagationPath = append(analysis.IssuePropagationPath, pathEntry{
			NodeID:     node.LineageNode.ID,
			NodeName:   node.LineageNode.NodeName,
			IssueCount: node.IssueCount,
			Depth:      len(node.UpstreamEdges),
		})
	}

	sort.SliceStable(analysis.IssuePropagationPath, func(i, j int) bool {
		return analysis.IssuePropagationPath[i].Depth < analysis.IssuePropagationPath[j].Depth
	})

	analysis.AnalysisSummary.TargetNodeID = nodeID
	analysis.AnalysisSummary.MaxDepthSearched = maxDepth
	analysis.AnalysisSummary.TotalUpstreamNodes = len(graph.Nodes)
	analysis.AnalysisSummary.NodesWithIssues = len(analysis.IssuePropagationPath)
	analysis.AnalysisSummary.RootCausesIdentified = len(analysis.RootCauses)

	if len(analysis.RootCauses) > 0 {
		analysis.Recommendations = []string{
			"Focus remediation efforts on the identified root cause nodes",
			"Verify data quality in upstream source systems",
		}
	} else {
		analysis.Recommendations = []string{
			"No clear root causes found - issues may be at the maximum search depth",
			"Consider increasing max_depth or checking data sources outside the lineage graph",
		}
	}
	return analysis, nil
}

// handleAnalyzeUpstreamCauses handles the lineage_analyze_upstream_causes tool
// request.
func (s *Server) handleAnalyzeUpstreamCauses(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := requestArgs(request)

	nodeID := int64Arg(args, "node_id")
	if nodeID == 0 {
		return mcp.NewToolResultError("missing or invalid 'node_id' argument"), nil
	}
	maxDepth := intArg(args, "max_depth", defaultAnalysisDepth)

	s.logger.Debug("Analyzing upstream root causes for node %d", nodeID)
	analysis, err := s.analyzeUpstreamCauses(ctx, nodeID, maxDepth)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to analyze upstream causes: %v", err)), nil
	}
	s.logger.Debug("Identified %d potential root causes", len(analysis.RootCauses))
	return jsonResult(analysis)
}

// impactedNode is a downstream node entry in the impact analysis.
type impactedNode struct {
	NodeID         int64               `json:"node_id"`
	NodeName       string              `json:"node_name"`
	NodeType       string              `json:"node_type"`
	MetricCount    int                 `json:"metric_count"`
	ExistingIssues int                 `json:"existing_issues"`
	CatalogPath    *bigeye.CatalogPath `json:"catalog_path,omitempty"`
	Source         *bigeye.NodeSource  `json:"source,omitempty"`
}

type impactSeverity struct {
	Level   string   `json:"level"`
	Score   int      `json:"score"`
	Factors []string `json:"factors"`
}

type downstreamAnalysis struct {
	ImpactSummary struct {
		SourceNodeID             int64  `json:"source_node_id"`
		MaxDepthAnalyzed         int    `json:"max_depth_analyzed"`
		TotalImpactedNodes       int    `json:"total_impacted_nodes"`
		CriticalImpactsCount     int    `json:"critical_impacts_count"`
		IntegrationEntitiesCount int    `json:"integration_entities_count"`
		SeverityLevel            string `json:"severity_level"`
		SeverityScore            int    `json:"severity_score"`
	} `json:"impact_summary"`
	ImpactedNodes            []impactedNode  `json:"impacted_nodes"`
	CriticalImpacts          []impactedNode  `json:"critical_impacts"`
	IntegrationEntities      []impactedNode  `json:"integration_entities"`
	ImpactSeverity           impactSeverity  `json:"impact_severity"`
	StakeholderNotifications []string        `json:"stakeholder_notifications"`
	DownstreamLineageGraph   json.RawMessage `json:"downstream_lineage_graph"`
}

// integrationNodeTypes are downstream consumers outside the warehouse, such as
// BI tools and applications.
var integrationNodeTypes = map[string]bool{
	"BI_WORKBOOK": true,
	"BI_REPORT":   true,
	"APPLICATION": true,
}

// analyzeDownstreamImpact walks the downstream graph of a node and scores the
// blast radius of its data quality issues.
func (s *Server) analyzeDownstreamImpact(ctx context.Context, nodeID int64, maxDepth int, includeIntegrations bool) (*downstreamAnalysis, error) {
	graph, err := s.client.GetLineageGraph(ctx, nodeID, bigeye.DirectionDownstream, maxDepth)
	if err != nil {
		return nil, err
	}

	analysis := &downstreamAnalysis{
		ImpactedNodes:            []impactedNode{},
		CriticalImpacts:          []impactedNode{},
		IntegrationEntities:      []impactedNode{},
		StakeholderNotifications: []string{},
		DownstreamLineageGraph:   graph.Raw(),
	}

	for _, key := range sortedGraphKeys(graph.Nodes) {
		node := graph.Nodes[key]
		info := impactedNode{
			NodeID:         node.LineageNode.ID,
			NodeName:       node.LineageNode.NodeName,
			NodeType:       node.LineageNode.NodeType,
			MetricCount:    node.MetricCount,
			ExistingIssues: node.IssueCount,
			CatalogPath:    node.LineageNode.CatalogPath,
			Source:         node.LineageNode.Source,
		}

		if integrationNodeTypes[node.LineageNode.NodeType] {
			if includeIntegrations {
				analysis.IntegrationEntities = append(analysis.IntegrationEntities, info)
			}
		} else if node.MetricCount > 0 || node.IssueCount > 0 {
			analysis.CriticalImpacts = append(analysis.CriticalImpacts, info)
		}
		analysis.ImpactedNodes = append(analysis.ImpactedNodes, info)
	}

	severity := impactSeverity{Factors: []string{}}
	if len(analysis.ImpactedNodes) > 10 {
		severity.Score += 2
		severity.Factors = append(severity.Factors, "High number of impacted downstream nodes")
	}
	if len(analysis.IntegrationEntities) > 0 {
		severity.Score += 2
		severity.Factors = append(severity.Factors, "Business intelligence tools and reports affected")
	}
	if len(analysis.CriticalImpacts) > 3 {
		severity.Score++
		severity.Factors = append(severity.Factors, "Multiple downstream systems with existing metrics/issues")
	}
	switch {
	case severity.Score >= 4:
		severity.Level = "HIGH"
	case severity.Score >= 2:
		severity.Level = "MEDIUM"
	default:
		severity.Level = "LOW"
	}
	analysis.ImpactSeverity = severity

	if len(analysis.IntegrationEntities) > 0 {
		tools := map[string]bool{}
		for _, entity := range analysis.IntegrationEntities {
			name := "Unknown"
			if entity.Source != nil && entity.Source.Name != "" {
				name = entity.Source.Name
			}
			tools[name] = true
		}
		names := make([]string, 0, len(tools))
		for name := range tools {
			names = append(names, name)
		}
		sort.Strings(names)
		analysis.StakeholderNotifications = append(analysis.StakeholderNotifications,
			fmt.Sprintf("Notify BI teams - affected tools: %s", strings.Join(names, ", ")))
	}
	if len(analysis.CriticalImpacts) > 0 {
		analysis.StakeholderNotifications = append(analysis.StakeholderNotifications,
			"Alert data engineering teams about downstream data quality impacts")
	}

	analysis.ImpactSummary.SourceNodeID = nodeID
	analysis.ImpactSummary.MaxDepthAnalyzed = maxDepth
	analysis.ImpactSummary.TotalImpactedNodes = len(analysis.ImpactedNodes)
	analysis.ImpactSummary.CriticalImpactsCount = len(analysis.CriticalImpacts)
	analysis.ImpactSummary.IntegrationEntitiesCount = len(analysis.IntegrationEntities)
	analysis.ImpactSummary.SeverityLevel = severity.Level
	analysis.ImpactSummary.SeverityScore = severity.Score
	return analysis, nil
}

// handleAnalyzeDownstreamImpact handles the lineage_analyze_downstream_impact
// tool request.
func (s *Server) handleAnalyzeDownstreamImpact(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := requestArgs(request)

	nodeID := int64Arg(args, "node_id")
	if nodeID == 0 {
		return mcp.NewToolResultError("missing or invalid 'node_id' argument"), nil
	}

	s.logger.Debug("Analyzing downstream impact for node %d", nodeID)
	analysis, err := s.analyzeDownstreamImpact(ctx, nodeID,
		intArg(args, "max_depth", defaultAnalysisDepth),
		boolArg(args, "include_integration_entities", true),
	)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to analyze downstream impact: %v", err)), nil
	}
	s.logger.Debug("Found %d impacted nodes", len(analysis.ImpactedNodes))
	return jsonResult(analysis)
}

// handleTraceIssuePath handles the lineage_trace_issue_path tool request. It
// resolves the issue to its dataset's lineage node and combines root cause and
// impact analysis with the full bidirectional graph.
func (s *Server) handleTraceIssuePath(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := requestArgs(request)

	issueID := int64Arg(args, "issue_id")
	if issueID == 0 {
		return mcp.NewToolResultError("missing or invalid 'issue_id' argument"), nil
	}
	includeRootCause := boolArg(args, "include_root_cause_analysis", true)
	includeImpact := boolArg(args, "include_impact_analysis", true)
	maxDepth := intArg(args, "max_depth", defaultAnalysisDepth)

	s.logger.Debug("Tracing lineage path for issue %d", issueID)

	raw, err := s.client.FetchIssues(ctx, bigeye.FetchIssuesRequest{
		WorkspaceID: s.cfg.WorkspaceID,
		PageSize:    1000,
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to fetch issues: %v", err)), nil
	}

	var page struct {
		Issues []json.RawMessage `json:"issues"`
	}
	if err := json.Unmarshal(raw, &page); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to decode issues response: %v", err)), nil
	}

	var (
		targetRaw json.RawMessage
		target    struct {
			ID            int64  `json:"id"`
			Name          string `json:"name"`
			TableName     string `json:"tableName"`
			CurrentStatus string `json:"currentStatus"`
			Priority      string `json:"priority"`
			DatasetID     int64  `json:"datasetId"`
		}
	)
	for _, rawIssue := range page.Issues {
		var probe struct {
			ID int64 `json:"id"`
		}
		if err := json.Unmarshal(rawIssue, &probe); err != nil || probe.ID != issueID {
			continue
		}
		targetRaw = rawIssue
		if err := json.Unmarshal(rawIssue, &target); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to decode issue %d: %v", issueID, err)), nil
		}
		break
	}
	if targetRaw == nil {
		return mcp.NewToolResultError(fmt.Sprintf("issue %d not found", issueID)), nil
	}
	if target.DatasetID == 0 {
		return mcp.NewToolResultError(fmt.Sprintf("unable to determine dataset/lineage node for issue %d", issueID)), nil
	}
	s.logger.Debug("Found issue: %s", target.Name)

	lineageNodeID := target.DatasetID
	result := map[string]interface{}{
		"issue_details":   targetRaw,
		"lineage_node_id": lineageNodeID,
		"analysis_summary": map[string]interface{}{
			"issue_id":           issueID,
			"issue_name":         target.Name,
			"table_name":         target.TableName,
			"issue_status":       target.CurrentStatus,
			"issue_priority":     target.Priority,
			"max_depth_analyzed": maxDepth,
		},
	}

	var (
		rootCause *upstreamAnalysis
		impact    *downstreamAnalysis
	)
	if includeRootCause {
		s.logger.Debug("Performing root cause analysis")
		rootCause, err = s.analyzeUpstreamCauses(ctx, lineageNodeID, maxDepth)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to analyze upstream causes: %v", err)), nil
		}
		result["root_cause_analysis"] = rootCause
	}
	if includeImpact {
		s.logger.Debug("Performing impact analysis")
		impact, err = s.analyzeDownstreamImpact(ctx, lineageNodeID, maxDepth, true)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to analyze downstream impact: %v", err)), nil
		}
		result["impact_analysis"] = impact
	}

	s.logger.Debug("Getting complete lineage graph")
	fullGraph, err := s.client.GetLineageGraph(ctx, lineageNodeID, bigeye.DirectionBidirectional, maxDepth)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to get lineage graph: %v", err)), nil
	}
	result["full_lineage_graph"] = fullGraph.Raw()

	var remediation []string
	if rootCause != nil && len(rootCause.RootCauses) > 0 {
		remediation = append(remediation, "Address root causes in upstream data sources:")
		for i, rc := range rootCause.RootCauses {
			if i == 3 {
				break
			}
			remediation = append(remediation, fmt.Sprintf("  - Investigate %s", rc.NodeName))
		}
	}
	remediation = append(remediation, fmt.Sprintf("Directly address the issue: %s", target.Name))
	if impact != nil && impact.ImpactSummary.SeverityLevel == "HIGH" {
		remediation = append(remediation, "HIGH PRIORITY: Implement immediate monitoring")
	}
	result["remediation_plan"] = remediation

	s.logger.Debug("Lineage trace completed for issue %d", issueID)
	return jsonResult(result)
}

// sortedGraphKeys returns the node keys of a graph in stable order.
func sortedGraphKeys(nodes map[string]bigeye.GraphNode) []string {
	keys := make([]string, 0, len(nodes))
	for k := range nodes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
