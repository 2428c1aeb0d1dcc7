package server

import (
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
)

// requestArgs extracts the argument map from a tool request. A missing or
// malformed argument object yields an empty map, so handlers only validate
// individual fields.
func requestArgs(request mcp.CallToolRequest) map[string]interface{} {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return map[string]interface{}{}
	}
	return args
}

func stringArg(args map[string]interface{}, key string) string {
	v, _ := args[key].(string)
	return v
}

// int64Arg reads a numeric argument. JSON numbers arrive as float64; some
// clients send numbers as strings.
func int64Arg(args map[string]interface{}, key string) int64 {
	switch v := args[key].(type) {
	case float64:
		return int64(v)
	case json.Number:
		n, _ := v.Int64()
		return n
	case string:
		var n int64
		if err := json.Unmarshal([]byte(v), &n); err == nil {
			return n
		}
	}
	return 0
}

// intArg reads a numeric argument, falling back to def only when the key is
// absent. An explicit zero stays zero.
func intArg(args map[string]interface{}, key string, def int) int {
	if _, ok := args[key]; !ok {
		return def
	}
	return int(int64Arg(args, key))
}

func boolArg(args map[string]interface{}, key string, def bool) bool {
	v, ok := args[key].(bool)
	if !ok {
		return def
	}
	return v
}

func stringListArg(args map[string]interface{}, key string) []string {
	raw, ok := args[key].([]interface{})
	if !ok {
		return nil
	}
	var out []string
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func int64ListArg(args map[string]interface{}, key string) []int64 {
	raw, ok := args[key].([]interface{})
	if !ok {
		return nil
	}
	var out []int64
	for _, item := range raw {
		switch v := item.(type) {
		case float64:
			out = append(out, int64(v))
		case json.Number:
			if n, err := v.Int64(); err == nil {
				out = append(out, n)
			}
		}
	}
	return out
}

// jsonResult marshals v and returns it as a text tool result.
func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError("failed to marshal result: " + err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
