// Package cli is the clipforge command line: one subcommand per capability
// plus an API server mode for the desktop shell.
package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func Main() {
	_ = godotenv.Load() // best-effort: load .env if present

	root := &cobra.Command{
		Use:          "clipforge",
		Short:        "Media processing engine: beat analysis, background removal, captions, reframing",
		SilenceUsage: true,
	}

	root.SetOut(os.Stdout)
	root.SetErr(os.Stderr)
	root.SilenceErrors = true

	root.PersistentFlags().String("config", "", "Path to YAML config file")

	root.AddCommand(
		beatsCmd(),
		tempoCmd(),
		splitCmd(),
		removeBGCmd(),
		chromaCmd(),
		captionsCmd(),
		reframeCmd(),
		serveCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
