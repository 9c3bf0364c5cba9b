package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"dvrmanager/internal/identify"
	"dvrmanager/internal/logging"
	"dvrmanager/internal/planner"
	"dvrmanager/internal/queue"
)

func newResolveCommand(ctx *commandContext) *cobra.Command {
	var online bool

	cmd := &cobra.Command{
		Use:   "resolve filename",
		Short: "Preview how a recording would be identified and placed",
		Long: "Parses the filename the same way the daemon does and prints the " +
			"resolved identity and library destination without touching any " +
			"files. Pass --online to include a metadata lookup.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			name := filepath.Base(args[0])
			identity := identify.ParseFilename(name)

			if online {
				resolver := identify.NewResolver(cfg, logging.NewNop(), identify.NewIdentityCache())
				rec := &queue.Recording{SourcePath: args[0], FileName: name}
				if err := resolver.Execute(cmd.Context(), rec); err != nil {
					return err
				}
				identity, err = identify.ParseIdentity(rec.IdentityJSON)
				if err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Identity:   %s\n", identity.Describe())
			fmt.Fprintf(out, "Source:     %s\n", identity.Source)
			fmt.Fprintf(out, "Confidence: %.2f\n", identity.Confidence)
			if identity.Ambiguity != "" {
				fmt.Fprintf(out, "Ambiguity:  %s\n", identity.Ambiguity)
			}

			plan, err := planner.New(cfg).Plan(args[0], identity)
			if err != nil {
				return err
			}
			if plan.Duplicate {
				fmt.Fprintf(out, "Duplicate:  %s\n", plan.DuplicateOf)
			} else {
				fmt.Fprintf(out, "Placement:  %s\n", plan.DestPath)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&online, "online", false, "Query the metadata service instead of parsing locally")
	return cmd
}
