package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"gamedock/internal/events"
	"gamedock/internal/launcher"
	"gamedock/internal/pipeline"
)

func newLaunchCommand(cctx *commandContext) *cobra.Command {
	var exeFlag string
	var wineFlag bool
	var localeFlag string
	var argsFlag []string
	var saveFlag bool

	cmd := &cobra.Command{
		Use:   "launch <game-id>",
		Short: "Launch a library game and wait for it to exit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gameID, err := parseID(args[0])
			if err != nil {
				return err
			}
			return cctx.withPipeline(func(ctx context.Context, p *pipeline.Pipeline) error {
				gameCfg, err := p.GameConfigs.Load(ctx, gameID)
				if err != nil {
					return err
				}
				if exeFlag != "" {
					gameCfg.ExecutablePath = exeFlag
				}
				if cmd.Flags().Changed("wine") {
					gameCfg.UseWine = wineFlag
				}
				if cmd.Flags().Changed("locale") {
					gameCfg.Locale = localeFlag
				}
				if len(argsFlag) > 0 {
					gameCfg.Args = argsFlag
				}
				if saveFlag {
					if err := p.GameConfigs.Save(ctx, gameCfg); err != nil {
						return err
					}
				}

				stopped := make(chan events.GameStopped, 1)
				handle := p.Hub.SubscribeKind(events.KindGameStopped, func(e events.Event) {
					payload := e.Payload.(events.GameStopped)
					if payload.GameID == gameID {
						select {
						case stopped <- payload:
						default:
						}
					}
				})
				defer handle.Close()

				session, err := p.Launcher.Launch(ctx, gameID, launcher.Options{
					ExecutablePath: gameCfg.ExecutablePath,
					UseWine:        gameCfg.UseWine,
					Args:           gameCfg.Args,
					Locale:         gameCfg.Locale,
				})
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Launched %q (pid %d)\n", session.Title, session.PID)

				select {
				case payload := <-stopped:
					fmt.Fprintf(out, "Exited after %s (code %d)\n",
						formatDuration(payload.Duration), payload.ExitCode)
					return nil
				case <-ctx.Done():
					fmt.Fprintln(out, "Interrupted, stopping game...")
					stopCtx := context.Background()
					return p.Launcher.Stop(stopCtx, gameID)
				}
			})
		},
	}

	cmd.Flags().StringVar(&exeFlag, "exe", "", "Executable to launch (overrides the saved config)")
	cmd.Flags().BoolVar(&wineFlag, "wine", false, "Run through the translation layer")
	cmd.Flags().StringVar(&localeFlag, "locale", "", "Locale exported to the process (e.g. ja-JP)")
	cmd.Flags().StringArrayVar(&argsFlag, "arg", nil, "Extra argument passed to the game (repeatable)")
	cmd.Flags().BoolVar(&saveFlag, "save", false, "Persist the effective settings as the game's config")
	return cmd
}

func newRunningCommand(cctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "running",
		Short: "List game sessions supervised by this process",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cctx.withPipeline(func(ctx context.Context, p *pipeline.Pipeline) error {
				sessions := p.Launcher.Running()
				out := cmd.OutOrStdout()
				if len(sessions) == 0 {
					fmt.Fprintln(out, "No games running.")
					return nil
				}
				rows := make([][]string, 0, len(sessions))
				for _, session := range sessions {
					rows = append(rows, []string{
						fmt.Sprintf("%d", session.GameID),
						session.Title,
						fmt.Sprintf("%d", session.PID),
						session.StartedAt.Local().Format("15:04:05"),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Game", "Title", "PID", "Started"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
}
