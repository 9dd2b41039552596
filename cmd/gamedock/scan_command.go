package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"gamedock/internal/scanner"
)

func newScanCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "scan <directory>",
		Short:       "Scan a game folder for launch candidates",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			candidates, err := scanner.Scan(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(candidates) == 0 {
				fmt.Fprintln(out, "No launch candidates found.")
				return nil
			}

			rows := make([][]string, 0, len(candidates))
			for _, candidate := range candidates {
				rows = append(rows, []string{string(candidate.Type), candidate.Path})
			}
			fmt.Fprintln(out, renderTable([]string{"Type", "Path"}, rows, nil))
			return nil
		},
	}
}
