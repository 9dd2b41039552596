package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"gamedock/internal/pipeline"
)

func newDownloadsCommand(ctx *commandContext) *cobra.Command {
	downloadsCmd := &cobra.Command{
		Use:   "downloads",
		Short: "Inspect and manage tracked downloads",
	}

	downloadsCmd.AddCommand(newDownloadsListCommand(ctx))
	downloadsCmd.AddCommand(newDownloadsRemoveCommand(ctx))
	downloadsCmd.AddCommand(newDownloadsClearCommand(ctx))
	downloadsCmd.AddCommand(newDownloadsCancelCommand(ctx))

	return downloadsCmd
}

func newDownloadsListCommand(cctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List tracked downloads",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cctx.withPipeline(func(ctx context.Context, p *pipeline.Pipeline) error {
				records, err := p.Downloads.List(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(records) == 0 {
					fmt.Fprintln(out, "No downloads tracked.")
					return nil
				}

				rows := make([][]string, 0, len(records))
				for _, record := range records {
					rows = append(rows, []string{
						fmt.Sprintf("%d", record.ID),
						truncate(record.Title(), 40),
						string(record.Status),
						formatProgress(record.Progress),
						formatBytes(record.TotalBytes),
						formatSpeed(record.Speed),
						record.ErrorMessage,
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Title", "Status", "Progress", "Size", "Speed", "Error"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
}

func newDownloadsRemoveCommand(cctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a download record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return cctx.withPipeline(func(ctx context.Context, p *pipeline.Pipeline) error {
				record, err := p.Downloads.GetByID(ctx, id)
				if err != nil {
					return err
				}
				if record == nil {
					return fmt.Errorf("download %d not found", id)
				}
				if err := p.Downloads.Remove(ctx, id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed download %d (%s)\n", id, record.Title())
				return nil
			})
		},
	}
}

func newDownloadsClearCommand(cctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every download record",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cctx.withPipeline(func(ctx context.Context, p *pipeline.Pipeline) error {
				stats, err := p.Downloads.Stats(ctx)
				if err != nil {
					return err
				}
				total := 0
				for _, count := range stats {
					total += count
				}
				if err := p.Downloads.Clear(ctx); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d download records\n", total)
				return nil
			})
		},
	}
}

func newDownloadsCancelCommand(cctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel an active download",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return cctx.withPipeline(func(ctx context.Context, p *pipeline.Pipeline) error {
				record, err := p.Downloads.GetByID(ctx, id)
				if err != nil {
					return err
				}
				if record == nil {
					return fmt.Errorf("download %d not found", id)
				}
				if record.Status.IsTerminal() {
					fmt.Fprintf(cmd.OutOrStdout(), "Download %d is already %s\n", id, record.Status)
					return nil
				}
				if err := p.Tracker.Cancel(ctx, id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cancelled download %d (%s)\n", id, record.Title())
				return nil
			})
		},
	}
}
