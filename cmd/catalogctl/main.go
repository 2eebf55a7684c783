// Command catalogctl imports service catalogs and maintains the catalog
// store from the command line.
//
//	catalogctl import --sector Automotive BrakeJobs.csv EngineJobs.xlsx
//	catalogctl import --dry-run --detect-duplicates --sector Automotive BrakeJobs.csv
//	catalogctl counts --json
//	catalogctl reset --yes
//	catalogctl relocate <category-id> <sector-id>
//	catalogctl duplicates Brakes Brake Engine
//
// Settings come from the environment (and a .env file), the same variables
// the server reads. --dry-run runs against an empty in-memory store and
// needs no database.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
