package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/property-cli/internal/model"
)

// Output formats.
const (
	outputJSON  = "json"
	outputYAML  = "yaml"
	outputTable = "table"
)

// writeOutput renders v as indented JSON or YAML.
func writeOutput(w io.Writer, format string, v any) error {
	switch format {
	case outputJSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case outputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return eris.Wrap(err, "encode yaml")
		}
		return enc.Close()
	default:
		return eris.Errorf("unsupported output format: %s", format)
	}
}

// formatPropertyTable prints one summary line per property.
func formatPropertyTable(w io.Writer, props []*model.Property) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "HASH\tADDRESS\tOWNER\tSOURCES\tSIGNALS\tUPDATED")
	for _, p := range props {
		signals := make([]string, len(p.DistressSignals))
		for i, s := range p.DistressSignals {
			signals[i] = string(s)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			shortHash(p.AddressHash),
			p.NormalizedAddress,
			dash(p.OwnerName),
			strings.Join(p.SourceKeys(), ","),
			dash(strings.Join(signals, ",")),
			p.UpdatedAt.Format("2006-01-02 15:04"),
		)
	}
	tw.Flush() //nolint:errcheck
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
