package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"gamedock/internal/archives"
)

func newExtractCommand(cctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "extract <archive> [dest]",
		Short: "Extract an archive with the detected tools",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := cctx.ensureLogger()
			if err != nil {
				return err
			}

			archive, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			dest := archives.DestinationPath(archive)
			if len(args) == 2 {
				if dest, err = filepath.Abs(args[1]); err != nil {
					return err
				}
			}

			if !archives.IsArchiveName(filepath.Base(archive)) {
				return fmt.Errorf("%s is not a recognized archive", filepath.Base(archive))
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			extractor := archives.NewExtractor(cfg, logger)
			if err := extractor.Extract(ctx, archive, dest); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Extracted to %s\n", dest)
			return nil
		},
	}
}
