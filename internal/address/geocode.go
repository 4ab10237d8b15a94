package address

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/property-cli/pkg/geocode"
)

// GeocodeStandardizer adapts a geocode.Client to the Standardizer interface
// using the matched address the geocoder returns.
type GeocodeStandardizer struct {
	client geocode.Client
}

// NewGeocodeStandardizer wraps client.
func NewGeocodeStandardizer(client geocode.Client) *GeocodeStandardizer {
	return &GeocodeStandardizer{client: client}
}

// Standardize implements Standardizer.
func (g *GeocodeStandardizer) Standardize(ctx context.Context, oneLine string) (*Standardized, error) {
	res, err := g.client.Standardize(ctx, geocode.AddressInput{Street: oneLine})
	if err != nil {
		return nil, eris.Wrap(err, "address: geocode standardize")
	}
	if res == nil || !res.Matched || res.MatchedAddress == "" {
		return nil, nil
	}
	return &Standardized{Address: res.MatchedAddress, Source: res.Source}, nil
}
