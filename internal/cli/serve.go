package cli

import (
	"context"
	"io/fs"

	"github.com/spf13/cobra"

	"github.com/justestif/go-mood-classifier/internal/web"
	webfs "github.com/justestif/go-mood-classifier/web"
)

func newServeCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serves the evaluation report over HTTP",
		Long: `Starts a read-only web server with an HTML report page, JSON endpoints for
the report, predictions and clusters, and Prometheus metrics. Outputs are
read on every request.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context())
		},
	}
	cmd.Flags().String("addr", web.DefaultAddr, "listen address")
	a.bind(cmd.Flags(), "serve.addr", "addr")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	templatesFS, err := fs.Sub(webfs.TemplatesFS, "templates")
	if err != nil {
		return err
	}
	staticFS, err := fs.Sub(webfs.StaticFS, "static")
	if err != nil {
		return err
	}

	p := a.cfg.Paths
	srv, err := web.NewServer(web.ServerConfig{
		Addr: a.cfg.Serve.Addr,
		Files: web.Files{
			Report:      p.Report,
			Predictions: p.Predictions,
			Clusters:    p.Clusters,
		},
		TemplatesFS: templatesFS,
		StaticFS:    staticFS,
		Logger:      a.stage("serve"),
	})
	if err != nil {
		return err
	}
	return srv.Run(ctx)
}
