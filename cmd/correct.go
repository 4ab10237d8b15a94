package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/property-cli/internal/fusion"
	"github.com/sells-group/property-cli/internal/model"
)

var correctCmd = &cobra.Command{
	Use:   "correct",
	Short: "Retract distress signals or contacts found to be wrong",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		by, _ := cmd.Flags().GetString("by")
		signals, _ := cmd.Flags().GetStringSlice("signal")
		phones, _ := cmd.Flags().GetStringSlice("phone")
		emails, _ := cmd.Flags().GetStringSlice("email")
		output, _ := cmd.Flags().GetString("output")

		c, err := buildCorrection(by, signals, phones, emails)
		if err != nil {
			return err
		}

		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		svc := initService(cfg, st)
		hash, err := resolveHash(ctx, cmd, svc)
		if err != nil {
			return err
		}
		if hash == "" {
			fmt.Fprintf(os.Stderr, "No property stored for %s.\n", targetLabel(cmd))
			return nil
		}
		p, found, err := svc.Correct(ctx, hash, c)
		if err != nil {
			return err
		}
		if !found {
			fmt.Fprintf(os.Stderr, "No property stored under %s.\n", hash)
			return nil
		}
		return writeOutput(os.Stdout, output, p)
	},
}

func buildCorrection(by string, signals, phones, emails []string) (fusion.Correction, error) {
	c := fusion.Correction{By: by}
	for _, raw := range signals {
		s, ok := model.ParseSignal(raw)
		if !ok {
			return c, eris.Errorf("unknown distress signal: %s", raw)
		}
		c.Signals = append(c.Signals, s)
	}
	for _, v := range phones {
		c.Contacts = append(c.Contacts, model.Contact{Type: model.ContactPhone, Value: v})
	}
	for _, v := range emails {
		c.Contacts = append(c.Contacts, model.Contact{Type: model.ContactEmail, Value: v})
	}
	if len(c.Signals) == 0 && len(c.Contacts) == 0 {
		return c, eris.New("nothing to correct: pass --signal, --phone or --email")
	}
	return c, nil
}

func init() {
	addTargetFlags(correctCmd)
	f := correctCmd.Flags()
	f.String("by", os.Getenv("USER"), "who is making the correction")
	f.StringSlice("signal", nil, "distress signal to retract (repeatable)")
	f.StringSlice("phone", nil, "phone contact to retract (repeatable)")
	f.StringSlice("email", nil, "email contact to retract (repeatable)")
	f.String("output", outputJSON, "output format: json or yaml")
	rootCmd.AddCommand(correctCmd)
}
