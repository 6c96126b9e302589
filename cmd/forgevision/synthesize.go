// cmd/forgevision/synthesize.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	apperrors "forgevision/internal/common/errors"
	"forgevision/internal/common/observability"
	"forgevision/internal/models"
	collectrequest "forgevision/internal/workers/design/collect-request"

	"github.com/spf13/cobra"
)

type synthesizeOptions struct {
	concept  string
	industry string
	style    string
	out      string
}

type cliOutput struct {
	ID          string               `json:"id"`
	Name        string               `json:"name"`
	Philosophy  string               `json:"philosophy"`
	Innovations []string             `json:"innovations"`
	Specs       models.Specs         `json:"specs"`
	ImagePrompt string               `json:"image_prompt"`
	Request     models.DesignRequest `json:"request"`
	Image       string               `json:"image,omitempty"`
}

func newSynthesizeCmd() *cobra.Command {
	opts := &synthesizeOptions{}

	cmd := &cobra.Command{
		Use:   "synthesize",
		Short: "Run one synthesis and write the prototype image",
		Example: `  forgevision synthesize --concept "modular heat-exchanger drone" \
      --industry "Renewable Systems" --style "Rugged Industrial" --out design.png`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSynthesize(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.concept, "concept", "", "product concept description (required)")
	cmd.Flags().StringVar(&opts.industry, "industry", models.Industries[0], "market segment")
	cmd.Flags().StringVar(&opts.style, "style", models.Styles[0], "aesthetic driver")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "design.png", "where to write the PNG; empty to skip")
	_ = cmd.MarkFlagRequired("concept")

	return cmd
}

func runSynthesize(cmd *cobra.Command, opts *synthesizeOptions) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	obs := observability.NewNoop()
	a, err := newApp(ctx, obs, true)
	if err != nil {
		return err
	}
	defer a.close()

	result, err := a.orchestrator.Run(ctx, models.NewSession(), &collectrequest.Input{
		Concept:   opts.concept,
		Industry:  opts.industry,
		Style:     opts.style,
		Submitted: true,
	})
	if err != nil {
		stdErr := apperrors.Normalize(err)
		return errors.New(stdErr.UserMessage())
	}

	out := cliOutput{
		ID:          result.ID,
		Name:        result.Brief.Name,
		Philosophy:  result.Brief.Philosophy,
		Innovations: result.Brief.Innovations,
		Specs:       result.Brief.Specs.Resolved(),
		ImagePrompt: result.Brief.ImagePrompt,
		Request:     result.Request,
	}

	if opts.out != "" {
		if err := os.WriteFile(opts.out, result.Image, 0o644); err != nil {
			return fmt.Errorf("write image: %w", err)
		}
		out.Image = opts.out
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
