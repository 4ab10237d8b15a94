package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/property-cli/internal/lead"
	"github.com/sells-group/property-cli/internal/model"
)

var leadCmd = &cobra.Command{
	Use:   "lead",
	Short: "Project a scored property into a CRM lead candidate",
	Long:  "Loads a property and shapes it into a lead candidate using a score from the external scoring model. Properties below the threshold are projected as cold leads.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		value, _ := cmd.Flags().GetFloat64("score")
		modelName, _ := cmd.Flags().GetString("model")
		threshold, _ := cmd.Flags().GetFloat64("threshold")
		output, _ := cmd.Flags().GetString("output")
		if threshold <= 0 {
			threshold = cfg.Lead.Threshold
		}

		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		p, err := loadTarget(ctx, cmd, initService(cfg, st))
		if err != nil {
			return err
		}

		score := &model.Score{Value: value, Model: modelName, ScoredAt: time.Now().UTC()}
		candidate, err := lead.NewProjector(threshold).Project(p, score)
		if err != nil {
			return err
		}
		zap.L().Info("lead projected",
			zap.String("address_hash", candidate.AddressHash),
			zap.String("tier", string(candidate.Tier)),
			zap.Bool("qualifies", lead.Qualifies(*score, threshold)),
		)
		return writeOutput(os.Stdout, output, candidate)
	},
}

func init() {
	addTargetFlags(leadCmd)
	f := leadCmd.Flags()
	f.Float64("score", 0, "score from the external scoring model (0 to 1)")
	f.String("model", "", "name of the scoring model")
	f.Float64("threshold", 0, "qualification threshold (default: lead.threshold)")
	f.String("output", outputJSON, "output format: json or yaml")
	_ = leadCmd.MarkFlagRequired("score")
	rootCmd.AddCommand(leadCmd)
}
