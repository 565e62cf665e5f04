package main

import (
	"github.com/spf13/cobra"
	"github.com/xhad/ragdemo/server"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var (
		addr   string
		stream bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Index the page and answer questions over a WebSocket",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if cmd.Flags().Changed("addr") {
				opts.cfg.Server.Addr = addr
			}
			if cmd.Flags().Changed("stream") {
				opts.cfg.Server.Streaming = stream
			}

			a, err := newApp(ctx, opts.cfg, opts.log)
			if err != nil {
				return err
			}
			defer a.close()

			if err := index(ctx, a, opts.cfg.Loader.URL); err != nil {
				return err
			}

			ws := server.NewWSServer(server.Config{
				Addr:      opts.cfg.Server.Addr,
				Streaming: opts.cfg.Server.Streaming,
				Logger:    opts.log,
			}, a.controller)
			return ws.ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "Listen address")
	cmd.Flags().BoolVar(&stream, "stream", false, "Stream answers as they are generated")
	return cmd
}
