package main

import (
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/vkngwrapper/blockpool/internal/config"
	"github.com/vkngwrapper/blockpool/internal/script"
	"golang.org/x/exp/slog"
)

func init() {
	rootCmd.AddCommand(newRunCmd())
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [script]",
		Short: "Run an allocation script",
		Long: `The run command executes every case of an allocation script against a fresh
pool and prints the block headers the case leaves behind, one line per case.
The script is read from stdin when no file is given.

A script starts with the number of cases, followed by a blank line. Each case
is a run of lines holding one integer each, and cases are separated by blank
lines. A positive n allocates n elements; -k deallocates the k-th allocated
block, counting from the start of the pool.

Example:
  poolrun run cases.txt
  poolrun run --element int32 --capacity 4096 < cases.txt
  poolrun run cases.txt --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScript(cmd, args)
		},
	}
	return cmd
}

func runScript(cmd *cobra.Command, args []string) error {
	input := cmd.InOrStdin()
	if len(args) == 1 {
		file, err := os.Open(args[0])
		if err != nil {
			return errors.Wrap(err, "failed to open script")
		}
		defer file.Close()
		input = file
	} else if file, ok := input.(*os.File); ok && isatty.IsTerminal(file.Fd()) {
		printInfo("Reading script from the terminal, finish with Ctrl-D\n")
	}

	return runCases(cmd.OutOrStdout(), input, settings, logger)
}

// runCases executes every case in the script on its own pool. A failing case still has its layout
// printed; the failures are reported together once every case has run.
func runCases(out io.Writer, input io.Reader, cfg *config.Config, logger *slog.Logger) error {
	cases, err := script.Parse(input)
	if err != nil {
		return err
	}

	runner := script.NewRunner(logger)
	failed := 0

	for _, scriptCase := range cases {
		p, err := newPool(cfg, logger)
		if err != nil {
			return err
		}

		runErr := runner.Run(p, scriptCase)
		if runErr != nil {
			failed++
			logger.Error("script case failed", slog.Int("line", scriptCase.Line), slog.Any("error", runErr))
		}

		if cfg.Output.JSON {
			err = script.WriteJSON(out, p)
		} else {
			err = script.WriteHeaders(out, p.Headers())
		}

		err = errors.CombineErrors(err, p.Close())
		if err != nil {
			return err
		}
	}

	if failed > 0 {
		return errors.Newf("%d of %d cases failed", failed, len(cases))
	}

	return nil
}
