package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/listenupapp/photoshelf/internal/config"
	"github.com/listenupapp/photoshelf/internal/di"
	"github.com/listenupapp/photoshelf/internal/library"
)

// openLibrary resolves the library and synchronizes it with the photo directory.
func openLibrary(ctx context.Context, flags *config.Flags) (*library.Library, library.Report, func(), error) {
	injector := di.NewContainer(*flags)
	closeFn := func() { _ = injector.Shutdown() }

	lib, err := di.Library(injector)
	if err != nil {
		closeFn()
		return nil, library.Report{}, nil, err
	}

	report, err := lib.Discover(ctx)
	if err != nil {
		closeFn()
		return nil, report, nil, err
	}
	return lib, report, closeFn, nil
}

func newScanCmd(flags *config.Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Register every stored photo and materialize missing thumbnails",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			lib, report, closeFn, err := openLibrary(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer closeFn()

			fmt.Fprintf(cmd.OutOrStdout(), "%d photos, %d thumbnails, %d missing\n",
				lib.Graph().Len(), report.Thumbnails, report.Missing)
			return nil
		},
	}
}

func newListCmd(flags *config.Flags) *cobra.Command {
	return &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List photos and the state of their thumbnails",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			lib, _, closeFn, err := openLibrary(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer closeFn()

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tTHUMBNAIL\tADDED")
			for _, p := range lib.Graph().Photos() {
				state, _ := p.ThumbnailState()
				fmt.Fprintf(tw, "%s\t%s\t%s\n", p.Name(), state, p.DateAdded().Format("2006-01-02 15:04"))
			}
			return tw.Flush()
		},
	}
}

func newImportCmd(flags *config.Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE...",
		Short: "Copy image files into the library as JPEG photos",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, _, closeFn, err := openLibrary(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer closeFn()

			for _, path := range args {
				p, err := lib.Import(cmd.Context(), path)
				if err != nil {
					return fmt.Errorf("import %s: %w", path, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", path, p.Name())
			}
			return nil
		},
	}
}

func newRemoveCmd(flags *config.Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "rm NAME...",
		Short: "Delete photos and their thumbnails",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, _, closeFn, err := openLibrary(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer closeFn()

			for _, name := range args {
				if err := lib.Remove(cmd.Context(), name); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", name)
			}
			return nil
		},
	}
}
