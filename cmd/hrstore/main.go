/*
main.go - hrstore command entry point

EXAMPLES:
  # Fresh artifact, then inspect it
  hrstore init --data ./data/hr.json
  hrstore check --data ./data/hr.json

  # SQLite backend, JSON output
  hrstore --backend sqlite --data ./data/hr.db dashboard hr --format json

  # Nightly backup using the config file's backup section
  HRSTORE_CONFIG=/etc/hrstore.yaml hrstore backup

EXIT CODES:
  0 success
  1 store unusable (not initialized, corrupt) or record not found
  2 bad flags, config or arguments

SEE ALSO:
  - cli/root.go: command tree and global flags
*/
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/warp/hrstore/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := cli.NewRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "hrstore:", err)
	}
	os.Exit(cli.GetExitCode(err))
}
