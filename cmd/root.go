package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	cfgPkg "github.com/xhad/ragdemo/pkg/config"
	"github.com/xhad/ragdemo/pkg/logging"
	"go.uber.org/zap"
)

type rootOptions struct {
	configPath string
	url        string
	selector   string
	provider   string
	model      string
	topK       int
	logLevel   string

	cfg *cfgPkg.Config
	log *zap.Logger
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "ragdemo",
		Short: "Answer questions about a web page with retrieval-augmented generation",
		Long: `ragdemo fetches a web page, splits its text into overlapping chunks,
embeds them into an in-memory vector index and answers questions by
retrieving the closest chunks and prompting a language model.

Without a subcommand it indexes the configured page and asks the
default question.`,
		SilenceUsage:      true,
		PersistentPreRunE: opts.load,
		PersistentPostRun: func(*cobra.Command, []string) {
			if opts.log != nil {
				_ = opts.log.Sync()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd.Context(), opts, cfgPkg.DefaultQuestion)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "Path to config file")
	flags.StringVar(&opts.url, "url", "", "Page to index")
	flags.StringVar(&opts.selector, "selector", "", "CSS selector of the content to extract")
	flags.StringVar(&opts.provider, "provider", "", "Model provider (openai or ollama)")
	flags.StringVar(&opts.model, "model", "", "Chat model to use")
	flags.IntVar(&opts.topK, "top-k", 0, "Number of chunks to retrieve")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	cmd.AddCommand(newAskCmd(opts), newChatCmd(opts), newServeCmd(opts))
	return cmd
}

func (o *rootOptions) load(cmd *cobra.Command, _ []string) error {
	cfg, err := cfgPkg.LoadConfig(o.configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("url") {
		cfg.Loader.URL = o.url
	}
	if flags.Changed("selector") {
		cfg.Loader.Selector = o.selector
	}
	if flags.Changed("provider") {
		cfg.LLM.Provider = o.provider
		// Model defaults depend on the provider.
		cfg.LLM.Model, cfg.LLM.EmbeddingModel = "", ""
	}
	if flags.Changed("model") {
		cfg.LLM.Model = o.model
	}
	if flags.Changed("top-k") {
		cfg.Store.TopK = o.topK
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = o.logLevel
	}
	cfgPkg.Finalize(cfg)

	if verrs := cfg.Validate(); len(verrs) > 0 {
		errs := make([]error, len(verrs))
		for i, e := range verrs {
			errs[i] = e
		}
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}

	log, err := logging.New(cfg.Log.Env, cfg.Log.Level)
	if err != nil {
		return err
	}

	o.cfg = cfg
	o.log = log
	return nil
}
