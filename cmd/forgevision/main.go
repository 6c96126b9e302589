// cmd/forgevision/main.go
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var configPath string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "forgevision",
		Short:         "Industrial design synthesis dashboard",
		Long:          "ForgeVision turns a short product concept into a technical design brief and a rendered visual prototype.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a config YAML file (default: configs/config.yaml)")

	root.AddCommand(newServeCmd())
	root.AddCommand(newSynthesizeCmd())
	root.AddCommand(newStagesCmd())

	return root
}
