package cli

import (
	"net/http"

	"github.com/spf13/cobra"

	"github.com/gridmate/fieldsync/internal/httpapi"
	"github.com/gridmate/fieldsync/internal/registry"
)

// NewServeCommand starts the HTTP API.
func NewServeCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the synchronization HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			comps, err := buildComponents(root.ConfigPath)
			if err != nil {
				return err
			}
			hub := httpapi.NewEventHub()
			runner, err := comps.newRunner(hub)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			comps.registry.Load(ctx)
			if comps.cfg.Catalog.LocalPath != "" {
				watcher, err := registry.NewWatcher(comps.registry, comps.log)
				if err != nil {
					comps.log.Warnf("catalog watcher unavailable: %v", err)
				} else {
					watcher.Start(ctx)
				}
			}

			server := httpapi.NewServer(runner, comps.registry, comps.store, hub, httpapi.ServerConfig{
				JWTSecret:           comps.cfg.Server.JWTSecret,
				DefaultSourceColumn: comps.cfg.Sync.SourceColumn,
			}, comps.log)

			comps.log.Infof("fieldsync listening on %s", comps.cfg.Server.Addr)
			return http.ListenAndServe(comps.cfg.Server.Addr, server)
		},
	}
}
