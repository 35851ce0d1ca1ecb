package registry

import (
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ParsedDescription splits a tool's raw description into the leading
// summary sentence and any parameter documentation that follows it.
// Search builds its embedding text from both parts separately so the
// argument docs weigh into matching without duplicating the summary.
type ParsedDescription struct {
	Main string `json:"main"`
	Args string `json:"args,omitempty"`
}

// ToolRecord is a single entry of a server's tool_list. Schema reuses
// the MCP SDK's Tool.InputSchema type so registered tool shapes stay
// compatible with the protocol the servers themselves speak.
type ToolRecord struct {
	Name              string            `json:"name"`
	Description       string            `json:"description"`
	ParsedDescription ParsedDescription `json:"parsed_description"`
	Schema            *mcp.Tool         `json:"schema,omitempty"`
}

// ParseDescription splits a free-form tool description into a summary
// and an "Args:" section if one is present. It is intentionally
// simple: everything before the first "Args:" marker is the summary
// and everything after it the args section; without a marker the whole
// trimmed description is the summary.
func ParseDescription(desc string) ParsedDescription {
	const marker = "Args:"
	if idx := strings.Index(desc, marker); idx >= 0 {
		return ParsedDescription{
			Main: strings.TrimSpace(desc[:idx]),
			Args: strings.TrimSpace(desc[idx+len(marker):]),
		}
	}
	return ParsedDescription{Main: strings.TrimSpace(desc)}
}
