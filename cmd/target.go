package main

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/property-cli/internal/ingest"
	"github.com/sells-group/property-cli/internal/model"
)

// addTargetFlags registers the --address / --hash pair used to pick one
// property.
func addTargetFlags(cmd *cobra.Command) {
	cmd.Flags().String("address", "", "raw address of the property")
	cmd.Flags().String("hash", "", "address hash of the property")
	cmd.MarkFlagsMutuallyExclusive("address", "hash")
	cmd.MarkFlagsOneRequired("address", "hash")
}

// findTarget loads the property picked by the target flags, or nil. An
// address is looked up through the normalized-address index.
func findTarget(ctx context.Context, cmd *cobra.Command, svc *ingest.Service) (*model.Property, error) {
	if hash, _ := cmd.Flags().GetString("hash"); hash != "" {
		p, err := svc.Get(ctx, hash)
		return p, eris.Wrapf(err, "get %s", hash)
	}
	raw, _ := cmd.Flags().GetString("address")
	p, err := svc.Lookup(ctx, raw)
	return p, eris.Wrapf(err, "lookup %q", raw)
}

// resolveHash returns the hash of the targeted property, or "" when none is
// stored.
func resolveHash(ctx context.Context, cmd *cobra.Command, svc *ingest.Service) (string, error) {
	if hash, _ := cmd.Flags().GetString("hash"); hash != "" {
		return hash, nil
	}
	p, err := findTarget(ctx, cmd, svc)
	if err != nil || p == nil {
		return "", err
	}
	return p.AddressHash, nil
}

// loadTarget is findTarget with a missing property reported as an error.
func loadTarget(ctx context.Context, cmd *cobra.Command, svc *ingest.Service) (*model.Property, error) {
	p, err := findTarget(ctx, cmd, svc)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, eris.Errorf("no property stored for %s", targetLabel(cmd))
	}
	return p, nil
}

func targetLabel(cmd *cobra.Command) string {
	if hash, _ := cmd.Flags().GetString("hash"); hash != "" {
		return hash
	}
	raw, _ := cmd.Flags().GetString("address")
	return raw
}
