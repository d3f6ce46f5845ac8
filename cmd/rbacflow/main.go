// Command rbacflow statically analyses a Grsecurity-style RBAC policy for
// information-flow vulnerabilities reachable from configured entry
// points. Run with no arguments for an interactive setup wizard, or see
// `rbacflow --help` for the full flag set.
package main

import (
	"os"

	"github.com/pthm/rbacflow/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
