package store

import (
	"time"

	"github.com/sells-group/property-cli/internal/model"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testProperty(hash, normalized string) *model.Property {
	price := 150000.0
	hist := model.NewHistory(5)
	hist.Push(model.ChangeRecord{
		Timestamp: t0.Add(time.Hour),
		Source:    "county",
		ChangedFields: map[string]model.FieldChange{
			model.FieldOwnerName: {From: model.String("J. Doe").Ptr(), To: model.String("John Doe").Ptr()},
			model.AttributeField("bedrooms"): {From: nil, To: model.Number(3).Ptr()},
		},
	})
	return &model.Property{
		AddressHash:       hash,
		NormalizedAddress: normalized,
		RawAddresses:      map[string]string{"zillow": "123 Main St, Springfield, IL 62704"},
		OwnerName:         "John Doe",
		PriceHint:         &price,
		Attributes: map[string]model.Scalar{
			"bedrooms": model.Number(3),
			"pool":     model.Bool(true),
			"zoning":   model.String("R1"),
		},
		FieldSources: map[string]model.FieldOrigin{
			model.FieldOwnerName: {Source: "county", CapturedAt: t0.Add(time.Hour)},
		},
		Sources: []model.SourceRef{
			{SourceKey: "zillow", SourceURL: "https://zillow.example/1", CapturedAt: t0},
			{SourceKey: "county", CapturedAt: t0.Add(time.Hour)},
		},
		DistressSignals: []model.DistressSignal{model.SignalTaxDelinquent, model.SignalVacant},
		Contacts: []model.Contact{
			{Type: model.ContactPhone, Value: "2175550100", Confidence: 0.8, Source: "listing"},
		},
		History:   hist,
		StoredAt:  t0,
		UpdatedAt: t0.Add(time.Hour),
	}
}
