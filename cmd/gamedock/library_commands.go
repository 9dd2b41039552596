package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"gamedock/internal/downloads"
	"gamedock/internal/events"
	"gamedock/internal/library"
	"gamedock/internal/pipeline"
)

func newLibraryCommand(ctx *commandContext) *cobra.Command {
	libraryCmd := &cobra.Command{
		Use:   "library",
		Short: "Inspect and manage the game library",
	}

	libraryCmd.AddCommand(newLibraryListCommand(ctx))
	libraryCmd.AddCommand(newLibraryRemoveCommand(ctx))
	libraryCmd.AddCommand(newLibraryFavoriteCommand(ctx))
	libraryCmd.AddCommand(newLibraryDeleteArchiveCommand(ctx))
	libraryCmd.AddCommand(newLibraryReExtractCommand(ctx))

	return libraryCmd
}

func newLibraryListCommand(cctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List library items",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cctx.withPipeline(func(ctx context.Context, p *pipeline.Pipeline) error {
				items, err := p.Library.List(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(items) == 0 {
					fmt.Fprintln(out, "Library is empty.")
					return nil
				}

				rows := make([][]string, 0, len(items))
				for _, item := range items {
					rows = append(rows, []string{
						fmt.Sprintf("%d", item.ID),
						truncate(item.Title, 40),
						yesNo(item.IsFavorite),
						item.Engine,
						item.GameVersion,
						formatTime(item.LastPlayedAt),
						yesNo(item.ArchivePath != ""),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Title", "Favorite", "Engine", "Version", "Last Played", "Archive"},
					rows,
					[]columnAlignment{alignRight},
				))
				return nil
			})
		},
	}
}

func newLibraryRemoveCommand(cctx *commandContext) *cobra.Command {
	var deleteExtracted bool
	var deleteArchive bool

	cmd := &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a library item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return cctx.withPipeline(func(ctx context.Context, p *pipeline.Pipeline) error {
				item, err := p.Library.GetByID(ctx, id)
				if err != nil {
					return err
				}
				if item == nil {
					return fmt.Errorf("library item %d not found", id)
				}
				if err := p.Library.Remove(ctx, id, library.RemoveOptions{
					DeleteExtracted: deleteExtracted,
					DeleteArchive:   deleteArchive,
				}); err != nil {
					return err
				}
				p.Hub.Publish(events.KindLibraryRemoved, events.LibraryRemoved{ItemID: id})
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %q from library\n", item.Title)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&deleteExtracted, "delete-files", false, "Also delete the extracted game folder")
	cmd.Flags().BoolVar(&deleteArchive, "delete-archive", false, "Also delete the retained archive")
	return cmd
}

func newLibraryFavoriteCommand(cctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "favorite <id>",
		Short: "Toggle the favorite flag on a library item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return cctx.withPipeline(func(ctx context.Context, p *pipeline.Pipeline) error {
				item, err := p.Library.ToggleFavorite(ctx, id)
				if err != nil {
					return err
				}
				state := "unfavorited"
				if item.IsFavorite {
					state = "favorited"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %q\n", state, item.Title)
				return nil
			})
		},
	}
}

func newLibraryDeleteArchiveCommand(cctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete-archive <id>",
		Short: "Delete the retained archive for a library item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return cctx.withPipeline(func(ctx context.Context, p *pipeline.Pipeline) error {
				item, err := p.Library.DeleteArchive(ctx, id)
				if errors.Is(err, library.ErrNoArchive) {
					return fmt.Errorf("library item %d has no retained archive", id)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted archive for %q\n", item.Title)
				return nil
			})
		},
	}
}

func newLibraryReExtractCommand(cctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reextract <id>",
		Short: "Re-extract a library item from its retained archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return cctx.withPipeline(func(ctx context.Context, p *pipeline.Pipeline) error {
				if err := p.Tracker.ReExtract(ctx, id); err != nil {
					if errors.Is(err, downloads.ErrArchiveMissing) {
						return fmt.Errorf("library item %d: %w", id, downloads.ErrArchiveMissing)
					}
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Re-extracted library item %d\n", id)
				return nil
			})
		},
	}
}
