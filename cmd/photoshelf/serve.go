package main

import (
	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/listenupapp/photoshelf/internal/config"
	"github.com/listenupapp/photoshelf/internal/di"
	"github.com/listenupapp/photoshelf/internal/logger"
)

func newServeCmd(flags *config.Flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Scan the library and serve the HTTP API until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			injector := di.NewContainer(*flags)
			if err := di.Bootstrap(ctx, injector); err != nil {
				return err
			}

			log := do.MustInvoke[*logger.Logger](injector)

			<-ctx.Done()
			log.Info("Shutting down server gracefully...")

			// The container shuts services down in reverse dependency order.
			if err := injector.Shutdown(); err != nil {
				log.Error("Shutdown error", "error", err)
			}

			log.Info("Goodbye")
			return nil
		},
	}

	cmd.Flags().StringVar(&flags.Port, "port", "", "HTTP port (default 8080)")
	cmd.Flags().StringVar(&flags.Watch, "watch", "", "Follow changes in the photo directory (true or false)")

	return cmd
}
