package main

import (
	"fmt"
	"os"

	"github.com/teranos/orx/cmd/orx/commands"
	"github.com/teranos/orx/errors"
	"github.com/teranos/orx/logger"
	"github.com/teranos/orx/proql"
)

func main() {
	defer logger.Cleanup()
	if err := commands.NewRootCmd().Execute(); err != nil {
		var pe *proql.ParseError
		if errors.As(err, &pe) {
			fmt.Fprintln(os.Stderr, pe.FormatError(proql.ErrorContextTerminal))
		} else {
			fmt.Fprintln(os.Stderr, "Error:", err)
			for _, hint := range errors.GetAllHints(err) {
				fmt.Fprintln(os.Stderr, "Hint:", hint)
			}
		}
		os.Exit(1)
	}
}
