package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"gamedock/internal/archives"
)

func newToolsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "Show archive tool availability",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			avail := archives.Detect(cfg)

			rows := [][]string{
				{"zip", yesNo(avail.Zip), orDash(avail.UnzipPath)},
				{"7z", yesNo(avail.SevenZip), orDash(avail.SevenZipPath)},
				{"rar", yesNo(avail.Rar), orDash(avail.UnrarPath)},
				{"tar", yesNo(avail.Tar), orDash(avail.TarPath)},
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable([]string{"Format", "Available", "Tool"}, rows, nil))

			for _, instruction := range avail.Missing {
				fmt.Fprintf(out, "missing %s (%s): %s\n",
					instruction.Tool,
					strings.Join(instruction.Formats, ", "),
					instruction.Text,
				)
			}
			return nil
		},
	}
}

func orDash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}
