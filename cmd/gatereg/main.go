// Command gatereg is the gateway registry control plane: it serves the
// Control API that registers, discovers, and security-scans MCP tool
// servers and A2A agents.
package main

import "github.com/gatereg/registry/cmd/gatereg/cmd"

func main() {
	cmd.Execute()
}
