package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"edugenius/backend/internal/catalog"
	"edugenius/backend/internal/config"
	"edugenius/backend/internal/flow"
	"edugenius/backend/internal/schema"
	"edugenius/backend/internal/services"
)

// registry loads config and builds the flow registry. Listing and schema commands
// never invoke the backend, so they pass lazy=true and skip backend construction.
func (a *app) registry(ctx context.Context, lazy bool) (*flow.Registry, error) {
	cfg, err := config.LoadConfig(a.configFile)
	if err != nil {
		return nil, err
	}
	logger, err := a.logger(cfg)
	if err != nil {
		return nil, err
	}
	if lazy {
		return catalog.Load(unavailableInvoker{}, logger)
	}
	inv, err := a.newInvoker(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return catalog.Load(inv, logger)
}

func newFlowsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flows",
		Short: "List, describe and run flows",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List every registered flow",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := a.registry(cmd.Context(), true)
			if err != nil {
				return err
			}
			return printFlows(cmd.OutOrStdout(), reg.List())
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "schema <name>",
		Short: "Print the JSON Schemas and prompt placeholders of a flow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := a.registry(cmd.Context(), true)
			if err != nil {
				return err
			}
			f, err := reg.Get(args[0])
			if err != nil {
				return err
			}
			info := f.Info()
			doc := map[string]any{
				"input":  schema.JSONSchema(info.Input),
				"output": schema.JSONSchema(info.Output),
			}
			if info.Composed() {
				doc["steps"] = info.Steps
			} else {
				doc["placeholders"] = info.Placeholders
			}
			return writeJSON(cmd.OutOrStdout(), doc)
		},
	})

	var inputPath string
	run := &cobra.Command{
		Use:   "run <name>",
		Short: "Run a flow with a JSON object read from --input",
		Long: `Run a flow with a JSON object read from --input.

Use "-" to read the input from stdin. The output record is printed as JSON.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(cmd.InOrStdin(), inputPath)
			if err != nil {
				return err
			}
			reg, err := a.registry(cmd.Context(), false)
			if err != nil {
				return err
			}
			out, err := reg.Run(cmd.Context(), args[0], raw)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}
	run.Flags().StringVarP(&inputPath, "input", "i", "-", "JSON input file, or - for stdin")
	cmd.AddCommand(run)
	return cmd
}

func newAskCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask the AI tutor a question",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := a.registry(cmd.Context(), false)
			if err != nil {
				return err
			}
			out, err := services.NewStudyService(reg).AskTutor(cmd.Context(), services.AiTutorInput{Question: args[0]})
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), out.Answer)
			return err
		},
	}
}

func printFlows(w io.Writer, infos []flow.Info) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSTEPS\tDESCRIPTION")
	for _, info := range infos {
		steps := 1
		if info.Composed() {
			steps = len(info.Steps)
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\n", info.Name, steps, info.Description)
	}
	return tw.Flush()
}

func readInput(stdin io.Reader, path string) (map[string]any, error) {
	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("input must be a JSON object: %w", err)
	}
	return raw, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
