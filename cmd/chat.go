package main

import (
	"bufio"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newChatCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Index the page and answer questions interactively",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := newApp(ctx, opts.cfg, opts.log)
			if err != nil {
				return err
			}
			defer a.close()

			if err := index(ctx, a, opts.cfg.Loader.URL); err != nil {
				return err
			}

			color.Cyan("\nAsk about %s (type 'exit' to quit)", opts.cfg.Loader.URL)

			scanner := bufio.NewScanner(os.Stdin)
			userPrompt := color.New(color.FgGreen).PrintfFunc()
			assistantPrompt := color.New(color.FgCyan).PrintfFunc()

			for {
				userPrompt("\nYou: ")
				if !scanner.Scan() {
					break
				}

				question := strings.TrimSpace(scanner.Text())
				if question == "" {
					continue
				}
				if strings.ToLower(question) == "exit" {
					break
				}

				state, err := ask(ctx, a, question)
				if err != nil {
					// Any stage failure aborts the whole run.
					return err
				}
				assistantPrompt("\nAssistant: %s\n", state.Answer)
			}

			return scanner.Err()
		},
	}
}
