package main

import (
	"context"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	cfgPkg "github.com/xhad/ragdemo/pkg/config"
)

func newAskCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ask [question]",
		Short: "Index the page and answer one question",
		Example: `  ragdemo ask "What ingredients are needed?"
  ragdemo ask --url https://example.com/recipe --selector article "How long does it cook?"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.TrimSpace(strings.Join(args, " "))
			if question == "" {
				question = cfgPkg.DefaultQuestion
			}
			return runAsk(cmd.Context(), opts, question)
		},
	}
}

func runAsk(ctx context.Context, opts *rootOptions, question string) error {
	a, err := newApp(ctx, opts.cfg, opts.log)
	if err != nil {
		return err
	}
	defer a.close()

	if err := index(ctx, a, opts.cfg.Loader.URL); err != nil {
		return err
	}

	state, err := ask(ctx, a, question)
	if err != nil {
		return err
	}
	return printState(color.Output, state)
}
