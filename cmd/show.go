package main

import (
	"os"

	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the fused record for one property",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		output, _ := cmd.Flags().GetString("output")

		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		p, err := loadTarget(ctx, cmd, initService(cfg, st))
		if err != nil {
			return err
		}
		return writeOutput(os.Stdout, output, p)
	},
}

func init() {
	addTargetFlags(showCmd)
	showCmd.Flags().String("output", outputJSON, "output format: json or yaml")
	rootCmd.AddCommand(showCmd)
}
