// Command fam forecasts a ledger year by year from CUE specs.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"

	"github.com/roach88/fam/internal/cli"
)

func main() {
	// .env supplies FAM_DB, FAM_YEARS and FAM_CASH_ACCOUNT; the real
	// environment wins.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: reading .env: %v\n", err)
	}

	err := cli.NewRootCommand().Execute()
	if err != nil {
		var exitErr *cli.ExitError
		// Commands print their own errors; cobra flag and argument errors
		// arrive here unprinted.
		if !errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
	}
	os.Exit(cli.GetExitCode(err))
}
