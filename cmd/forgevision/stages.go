// cmd/forgevision/stages.go
package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"forgevision/pkg/registry"

	"github.com/spf13/cobra"
)

func newStagesCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "stages",
		Short: "List (and validate) the pipeline stage registry",
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				reg *registry.StageRegistry
				err error
			)
			if path != "" {
				reg, err = registry.LoadRegistry(path)
			} else {
				reg, err = registry.Default()
			}
			if err != nil {
				return fmt.Errorf("invalid stage registry: %w", err)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "#\tTASK TYPE\tNAME\tFAILURES\n")
			for _, s := range reg.Stages {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", s.Order, s.TaskType, s.DisplayName, strings.Join(s.ErrorCodes, ","))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&path, "registry", "", "validate a registry file instead of the built-in one")
	return cmd
}
