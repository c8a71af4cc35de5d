// Package main provides the entry point for the Photoshelf server and its maintenance commands.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/listenupapp/photoshelf/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. Persistent flags override the
// environment and .env file; unset flags leave them alone.
func newRootCmd() *cobra.Command {
	flags := &config.Flags{}

	root := &cobra.Command{
		Use:   "photoshelf",
		Short: "Serve and maintain a tagged photo library",
		Long: strings.TrimSpace(`
Photoshelf keeps a directory of photos, the tags applied to them and a cache
of small thumbnails. Tags live only for the lifetime of the process.
`),
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.EnvFile, "env-file", "", "Path to the .env file (default \".env\")")
	pf.StringVar(&flags.Env, "env", "", "Environment: development, staging or production")
	pf.StringVar(&flags.LogLevel, "log-level", "", "Log level: debug, info, warn or error")
	pf.StringVar(&flags.LibraryPath, "library", "", "Library directory (default ~/Photoshelf)")
	pf.StringVar(&flags.PhotosPath, "photos", "", "Source photo directory (default <library>/photos)")
	pf.StringVar(&flags.ThumbnailsPath, "thumbnails", "", "Thumbnail directory (default <library>/thumbnails)")
	pf.StringVar(&flags.ThumbnailWidth, "thumb-width", "", "Thumbnail width in pixels")
	pf.StringVar(&flags.ThumbnailHeight, "thumb-height", "", "Thumbnail height in pixels")
	pf.StringVar(&flags.ThumbnailQuality, "thumb-quality", "", "Thumbnail JPEG quality (1-100)")
	pf.StringVar(&flags.ScanWorkers, "workers", "", "Concurrent thumbnail workers during scans")

	root.AddCommand(
		newServeCmd(flags),
		newScanCmd(flags),
		newListCmd(flags),
		newImportCmd(flags),
		newRemoveCmd(flags),
	)

	return root
}
