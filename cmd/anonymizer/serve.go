package main

import (
	"github.com/spf13/cobra"

	"github.com/David-Botos/data-anonymizer/pkg/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the upload, inspect and anonymize HTTP API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Close()

		anon, err := rt.newAnonymizer()
		if err != nil {
			return err
		}

		addr := rt.cfg.HTTPAddr
		if serveAddr != "" {
			addr = serveAddr
		}

		srv, err := server.New(server.Options{
			Addr:              addr,
			OutputDir:         rt.cfg.OutputDir,
			MaxContentLength:  rt.cfg.MaxContentLength,
			AllowedExtensions: rt.cfg.AllowedExtensions,
			ConsistencyMode:   rt.cfg.ConsistencyMode,
		}, anon, rt.logger)
		if err != nil {
			return err
		}

		return srv.ListenAndServe(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default HTTP_ADDR)")
}
