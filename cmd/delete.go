package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var deleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete a property and its address index entry",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		hash, err := resolveHash(ctx, cmd, initService(cfg, st))
		if err != nil {
			return err
		}
		if hash == "" {
			fmt.Fprintf(os.Stderr, "No property stored for %s.\n", targetLabel(cmd))
			return nil
		}
		existed, err := st.Delete(ctx, hash)
		if err != nil {
			return eris.Wrapf(err, "delete %s", hash)
		}
		if !existed {
			fmt.Fprintf(os.Stderr, "No property stored under %s.\n", hash)
			return nil
		}
		zap.L().Info("property deleted", zap.String("address_hash", hash))
		return nil
	},
}

func init() {
	addTargetFlags(deleteCmd)
	rootCmd.AddCommand(deleteCmd)
}
