package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/property-cli/internal/model"
	"github.com/sells-group/property-cli/internal/store"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "List stored properties matching a filter",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		signals, _ := cmd.Flags().GetStringSlice("signal")
		source, _ := cmd.Flags().GetString("source")
		limit, _ := cmd.Flags().GetInt("limit")
		output, _ := cmd.Flags().GetString("output")

		pred, err := scanPredicate(signals, source)
		if err != nil {
			return err
		}

		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		var props []*model.Property
		for p, err := range st.Scan(ctx, pred) {
			if err != nil {
				return eris.Wrap(err, "scan")
			}
			props = append(props, p)
			if limit > 0 && len(props) >= limit {
				break
			}
		}

		if output == outputTable {
			if len(props) == 0 {
				fmt.Fprintln(os.Stderr, "No properties found.")
				return nil
			}
			formatPropertyTable(os.Stdout, props)
			return nil
		}
		if props == nil {
			props = []*model.Property{}
		}
		return writeOutput(os.Stdout, output, props)
	},
}

// scanPredicate selects properties carrying every named signal and, when
// source is set, observed from that source.
func scanPredicate(signals []string, source string) (store.Predicate, error) {
	want := make([]model.DistressSignal, 0, len(signals))
	for _, raw := range signals {
		s, ok := model.ParseSignal(raw)
		if !ok {
			return nil, eris.Errorf("unknown distress signal: %s", raw)
		}
		want = append(want, s)
	}
	source = strings.TrimSpace(source)
	if len(want) == 0 && source == "" {
		return nil, nil
	}
	return func(p *model.Property) bool {
		for _, s := range want {
			if !model.HasSignal(p.DistressSignals, s) {
				return false
			}
		}
		return source == "" || p.HasSource(source)
	}, nil
}

func init() {
	f := scanCmd.Flags()
	f.StringSlice("signal", nil, "require a distress signal (repeatable)")
	f.String("source", "", "require an observation from this source")
	f.Int("limit", 0, "stop after this many properties (0 = all)")
	f.String("output", outputTable, "output format: table, json or yaml")
	rootCmd.AddCommand(scanCmd)
}
