package main

import (
	"fmt"
	"os"

	"github.com/fixdesk/fixdesk/internal/cli"
	apperrors "github.com/fixdesk/fixdesk/internal/errors"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(apperrors.GetCLIExitCode(err))
	}
}
