// Command flowctl lists, inspects and runs EduGenius flows from the command line.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"edugenius/backend/internal/config"
	"edugenius/backend/internal/generation"
	"edugenius/backend/internal/logging"
)

func main() {
	root := newRootCmd(&app{newInvoker: generation.NewInvoker})
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app carries the state shared by every subcommand.
type app struct {
	configFile string
	newInvoker func(ctx context.Context, cfg *config.Config) (generation.Invoker, error)
	newLogger  func(mode string) (*logging.Logger, error)
}

func (a *app) logger(cfg *config.Config) (*logging.Logger, error) {
	if a.newLogger == nil {
		return logging.NewLogger(cfg.Log.Mode)
	}
	return a.newLogger(cfg.Log.Mode)
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "flowctl",
		Short:         "Inspect and run EduGenius prompt flows",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&a.configFile, "config", "", "Path to config file")

	root.AddCommand(newFlowsCmd(a))
	root.AddCommand(newAskCmd(a))
	root.AddCommand(newSolveImageCmd(a))
	root.AddCommand(newOutboxCmd(a))
	return root
}
