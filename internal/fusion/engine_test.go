package fusion

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/property-cli/internal/address"
	"github.com/sells-group/property-cli/internal/model"
)

var t0 = time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)

func price(v float64) *float64 { return &v }

func identity(t *testing.T, raw string) model.Identity {
	t.Helper()
	id, err := address.NormalizeText(raw)
	require.NoError(t, err)
	return id
}

func obsAt(source, addr string, at time.Time) model.Observation {
	return model.Observation{SourceKey: source, CapturedAt: at, Address: model.Address{Line1: addr}}
}

func fuse(t *testing.T, e *Engine, existing *model.Property, obs model.Observation) Result {
	t.Helper()
	res, err := e.Merge(existing, obs, identity(t, obs.Address.String()))
	require.NoError(t, err)
	return res
}

func TestMerge_FirstObservationCreatesProperty(t *testing.T) {
	t.Parallel()
	e := New()
	obs := obsAt("zillow", "123 Main St, Springfield, IL 62704", t0)
	obs.OwnerName = "J. Doe"
	obs.PriceHint = price(150000)

	res := fuse(t, e, nil, obs)
	p := res.Property

	assert.True(t, res.Created)
	assert.True(t, res.Changed)
	assert.Nil(t, res.Change)
	assert.Equal(t, []string{"zillow"}, p.SourceKeys())
	assert.Equal(t, "J. Doe", p.OwnerName)
	require.NotNil(t, p.PriceHint)
	assert.Equal(t, 150000.0, *p.PriceHint)
	assert.Zero(t, p.History.Len())
	assert.Equal(t, t0, p.StoredAt)
	assert.Equal(t, t0, p.UpdatedAt)
	assert.Equal(t, "123 Main St, Springfield, IL 62704", p.RawAddresses["zillow"])
	assert.Equal(t, model.FieldOrigin{Source: "zillow", CapturedAt: t0}, p.FieldSources[model.FieldOwnerName])
}

func TestMerge_HigherPrecedenceOverwritesOwner(t *testing.T) {
	t.Parallel()
	e := New()
	first := obsAt("zillow", "123 Main St, Springfield, IL 62704", t0)
	first.OwnerName = "J. Doe"
	first.PriceHint = price(150000)
	a := fuse(t, e, nil, first).Property

	second := obsAt("county", "123 main st springfield il 62704", t0.Add(time.Hour))
	second.OwnerName = "John Doe"
	res := fuse(t, e, a, second)
	b := res.Property

	assert.Equal(t, a.AddressHash, b.AddressHash)
	assert.Equal(t, "John Doe", b.OwnerName)
	assert.Equal(t, []string{"zillow", "county"}, b.SourceKeys())
	require.Equal(t, 1, b.History.Len())

	rec, _ := b.History.Last()
	assert.Equal(t, "county", rec.Source)
	assert.Equal(t, t0.Add(time.Hour), rec.Timestamp)
	assert.Equal(t, []string{model.FieldOwnerName}, rec.Fields())
	change := rec.ChangedFields[model.FieldOwnerName]
	assert.Equal(t, model.String("J. Doe"), *change.From)
	assert.Equal(t, model.String("John Doe"), *change.To)

	// Price was not reported by the county and stays as it was.
	assert.Equal(t, 150000.0, *b.PriceHint)
	assert.Equal(t, t0, b.StoredAt)
	assert.Equal(t, t0.Add(time.Hour), b.UpdatedAt)
}

func TestMerge_SourceKeysFoldCase(t *testing.T) {
	t.Parallel()
	e := New()
	p := fuse(t, e, nil, obsAt("zillow", "1 Main St", t0)).Property

	again := obsAt(" Zillow ", "1 Main St.", t0.Add(time.Hour))
	again.OwnerName = "Jane Roe"
	res := fuse(t, e, p, again)

	assert.Equal(t, []string{"zillow"}, res.Property.SourceKeys())
	assert.Equal(t, t0.Add(time.Hour), res.Property.Sources[0].CapturedAt)
	assert.Len(t, res.Property.RawAddresses, 1)
	assert.Equal(t, "1 Main St.", res.Property.RawAddresses["zillow"])
	assert.Equal(t, "zillow", res.Property.FieldSources[model.FieldOwnerName].Source)
	require.NotNil(t, res.Change)
	assert.Equal(t, "zillow", res.Change.Source)
	assert.True(t, res.Property.HasSource("ZILLOW"))
}

func TestMerge_LowerPrecedenceDoesNotOverwrite(t *testing.T) {
	t.Parallel()
	e := New()
	county := obsAt("county", "1 Main St", t0)
	county.OwnerName = "John Doe"
	p := fuse(t, e, nil, county).Property

	scraper := obsAt("zillow", "1 Main St", t0.Add(time.Hour))
	scraper.OwnerName = "Johnny D"
	res := fuse(t, e, p, scraper)

	assert.Equal(t, "John Doe", res.Property.OwnerName)
	assert.Nil(t, res.Change)
	assert.Zero(t, res.Property.History.Len())
	assert.True(t, res.Changed, "the new source is still recorded")
	assert.True(t, res.Property.HasSource("zillow"))
}

func TestMerge_LowerPrecedenceFillsAbsentField(t *testing.T) {
	t.Parallel()
	e := New()
	p := fuse(t, e, nil, obsAt("county", "1 Main St", t0)).Property

	manual := obsAt("manual", "1 Main St", t0.Add(time.Hour))
	manual.OwnerName = "Guess"
	res := fuse(t, e, p, manual)

	assert.Equal(t, "Guess", res.Property.OwnerName)
	require.NotNil(t, res.Change)
	assert.Nil(t, res.Change.ChangedFields[model.FieldOwnerName].From)
}

func TestMerge_TiePrefersMostRecentCapture(t *testing.T) {
	t.Parallel()
	e := New()
	newer := obsAt("redfin", "1 Main St", t0.Add(2*time.Hour))
	newer.PriceHint = price(200000)
	p := fuse(t, e, nil, newer).Property

	older := obsAt("zillow", "1 Main St", t0)
	older.PriceHint = price(180000)
	res := fuse(t, e, p, older)
	assert.Equal(t, 200000.0, *res.Property.PriceHint, "an older capture at the same tier loses")

	latest := obsAt("zillow", "1 Main St", t0.Add(3*time.Hour))
	latest.PriceHint = price(210000)
	res = fuse(t, e, res.Property, latest)
	assert.Equal(t, 210000.0, *res.Property.PriceHint)
}

func TestMerge_EqualValueRefreshesProvenanceOnly(t *testing.T) {
	t.Parallel()
	e := New()
	z := obsAt("zillow", "1 Main St", t0)
	z.OwnerName = "John Doe"
	p := fuse(t, e, nil, z).Property

	c := obsAt("county", "1 Main St", t0.Add(time.Hour))
	c.OwnerName = "John Doe"
	res := fuse(t, e, p, c)

	assert.Nil(t, res.Change)
	assert.Equal(t, "county", res.Property.FieldSources[model.FieldOwnerName].Source)
}

func TestMerge_AttributesKeyByKey(t *testing.T) {
	t.Parallel()
	e := New()
	first := obsAt("zillow", "1 Main St", t0)
	first.Attributes = map[string]model.Scalar{
		"bedrooms": model.Number(3),
		"sqft":     model.String("1,850"),
		"zoning":   model.String("R1"),
	}
	p := fuse(t, e, nil, first).Property
	assert.Equal(t, model.Number(1850), p.Attributes["sqft"], "known numeric keys are coerced")

	second := obsAt("county", "1 Main St", t0.Add(time.Hour))
	second.Attributes = map[string]model.Scalar{
		"bedrooms":   model.Number(4),
		"year_built": model.String("nineteen-eighty"),
		"pool":       model.Bool(true),
	}
	res := fuse(t, e, p, second)
	attrs := res.Property.Attributes

	assert.Equal(t, model.Number(4), attrs["bedrooms"])
	assert.Equal(t, model.Number(1850), attrs["sqft"], "keys absent from incoming are untouched")
	assert.Equal(t, model.String("R1"), attrs["zoning"])
	assert.Equal(t, model.Bool(true), attrs["pool"])
	assert.NotContains(t, attrs, "year_built", "invalid known values are ignored")

	require.NotNil(t, res.Change)
	assert.Equal(t, []string{"attributes.bedrooms", "attributes.pool"}, res.Change.Fields())
}

func TestMerge_SetsAreUnioned(t *testing.T) {
	t.Parallel()
	e := New()
	first := obsAt("zillow", "1 Main St", t0)
	first.DistressSignals = []model.DistressSignal{model.SignalVacant, model.SignalFSBO}
	first.Contacts = []model.Contact{
		{Type: model.ContactPhone, Value: "(217) 555-0100", Confidence: 0.6, Source: "description"},
	}
	p := fuse(t, e, nil, first).Property

	second := obsAt("attom", "1 Main St", t0.Add(time.Hour))
	second.DistressSignals = []model.DistressSignal{model.SignalFSBO, model.SignalTaxDelinquent}
	second.Contacts = []model.Contact{
		{Type: model.ContactPhone, Value: "217-555-0100", Confidence: 0.8, Source: "listing"},
		{Type: model.ContactEmail, Value: "Owner@Example.com", Confidence: 0.8, Source: "listing"},
	}
	res := fuse(t, e, p, second)
	q := res.Property

	assert.Equal(t, []model.DistressSignal{model.SignalFSBO, model.SignalTaxDelinquent, model.SignalVacant}, q.DistressSignals)
	require.Len(t, q.Contacts, 2)
	assert.Equal(t, model.Contact{Type: model.ContactPhone, Value: "2175550100", Confidence: 0.8, Source: "listing"}, q.Contacts[0])
	assert.Equal(t, "owner@example.com", q.Contacts[1].Value)
}

func TestMerge_ContactCollisionKeepsHigherConfidence(t *testing.T) {
	t.Parallel()
	e := New()
	first := obsAt("zillow", "1 Main St", t0)
	first.Contacts = []model.Contact{{Type: model.ContactPhone, Value: "2175550100", Confidence: 0.8, Source: "listing"}}
	p := fuse(t, e, nil, first).Property

	second := obsAt("redfin", "1 Main St", t0.Add(time.Hour))
	second.Contacts = []model.Contact{{Type: model.ContactPhone, Value: "+1 217 555 0100", Confidence: 0.6, Source: "description"}}
	q := fuse(t, e, p, second).Property

	require.Len(t, q.Contacts, 1)
	assert.Equal(t, 0.8, q.Contacts[0].Confidence)
	assert.Equal(t, "listing", q.Contacts[0].Source)
}

func TestMerge_Monotonic(t *testing.T) {
	t.Parallel()
	e := New()
	seed := obsAt("county", "1 Main St", t0)
	seed.DistressSignals = []model.DistressSignal{model.SignalProbate, model.SignalVacant}
	seed.Contacts = []model.Contact{
		{Type: model.ContactPhone, Value: "2175550100", Confidence: 0.9, Source: "listing"},
		{Type: model.ContactEmail, Value: "a@b.com", Confidence: 0.6, Source: "description"},
	}
	p := fuse(t, e, nil, seed).Property

	incoming := []model.Observation{
		obsAt("zillow", "1 Main St", t0.Add(time.Hour)),
		func() model.Observation {
			o := obsAt("manual", "1 Main St", t0.Add(2*time.Hour))
			o.DistressSignals = []model.DistressSignal{"NOT_A_SIGNAL"}
			o.Contacts = []model.Contact{{Type: model.ContactPhone, Value: "garbage"}, {Type: "fax", Value: "1"}}
			return o
		}(),
		func() model.Observation {
			o := obsAt("attom", "1 Main St", t0.Add(3*time.Hour))
			o.DistressSignals = []model.DistressSignal{model.SignalAuction}
			o.Contacts = []model.Contact{{Type: model.ContactPhone, Value: "2175550100", Confidence: 0.1}}
			return o
		}(),
	}
	for _, obs := range incoming {
		before := p
		p = fuse(t, e, before, obs).Property
		for _, s := range before.DistressSignals {
			assert.Contains(t, p.DistressSignals, s)
		}
		for _, c := range before.Contacts {
			idx := -1
			for i, d := range p.Contacts {
				if d.Key() == c.Key() {
					idx = i
				}
			}
			require.GreaterOrEqual(t, idx, 0, "contact %s dropped", c.Key())
			assert.GreaterOrEqual(t, p.Contacts[idx].Confidence, c.Confidence)
		}
		assert.Subset(t, p.SourceKeys(), before.SourceKeys())
	}
}

func TestMerge_Deterministic(t *testing.T) {
	t.Parallel()
	e := New()
	base := obsAt("zillow", "1 Main St", t0)
	base.OwnerName = "A"
	base.Attributes = map[string]model.Scalar{"bedrooms": model.Number(2), "a": model.String("x"), "b": model.Bool(false)}
	existing := fuse(t, e, nil, base).Property

	obs := obsAt("county", "1 Main St", t0.Add(time.Hour))
	obs.OwnerName = "B"
	obs.Attributes = map[string]model.Scalar{"bedrooms": model.Number(3), "a": model.String("y"), "c": model.Number(1)}
	obs.DistressSignals = []model.DistressSignal{model.SignalAsIs, model.SignalFSBO}

	first := fuse(t, e, existing, obs)
	second := fuse(t, e, existing, obs)
	assert.Equal(t, first, second)
	last1, _ := first.Property.History.Last()
	last2, _ := second.Property.History.Last()
	assert.Equal(t, last1, last2)
}

func TestMerge_DoesNotMutateExisting(t *testing.T) {
	t.Parallel()
	e := New()
	seed := obsAt("zillow", "1 Main St", t0)
	seed.OwnerName = "A"
	seed.Attributes = map[string]model.Scalar{"bedrooms": model.Number(2)}
	existing := fuse(t, e, nil, seed).Property
	snapshot := existing.Clone()

	obs := obsAt("county", "1 Main St", t0.Add(time.Hour))
	obs.OwnerName = "B"
	obs.Attributes = map[string]model.Scalar{"bedrooms": model.Number(5)}
	obs.DistressSignals = []model.DistressSignal{model.SignalVacant}
	_ = fuse(t, e, existing, obs)

	assert.Equal(t, snapshot, existing)
}

func TestMerge_HistoryBound(t *testing.T) {
	t.Parallel()
	const limit, extra = 4, 3
	e := New(WithHistoryLimit(limit))
	p := fuse(t, e, nil, obsAt("county", "1 Main St", t0)).Property

	for i := range limit + extra {
		o := obsAt("county", "1 Main St", t0.Add(time.Duration(i+1)*time.Minute))
		o.PriceHint = price(float64(100000 + i))
		p = fuse(t, e, p, o).Property
	}

	require.Equal(t, limit, p.History.Len())
	entries := p.History.Entries()
	for i, rec := range entries {
		want := float64(100000 + extra + i)
		got, _ := rec.ChangedFields[model.FieldPriceHint].To.Num()
		assert.Equal(t, want, got, "entry %d", i)
	}
}

func TestMerge_HistoryLimitAppliedToExisting(t *testing.T) {
	t.Parallel()
	wide := New(WithHistoryLimit(10))
	p := fuse(t, wide, nil, obsAt("county", "1 Main St", t0)).Property
	for i := range 6 {
		o := obsAt("county", "1 Main St", t0.Add(time.Duration(i+1)*time.Minute))
		o.OwnerName = fmt.Sprintf("owner %d", i)
		p = fuse(t, wide, p, o).Property
	}
	require.Equal(t, 6, p.History.Len())

	narrow := New(WithHistoryLimit(2))
	o := obsAt("county", "1 Main St", t0.Add(time.Hour))
	o.OwnerName = "final"
	p = fuse(t, narrow, p, o).Property
	assert.Equal(t, 2, p.History.Len())
	assert.Equal(t, 2, p.History.Limit())
}

func TestMerge_NoChangeIsUnchanged(t *testing.T) {
	t.Parallel()
	e := New()
	o := obsAt("zillow", "1 Main St", t0)
	o.OwnerName = "A"
	o.DistressSignals = []model.DistressSignal{model.SignalVacant}
	p := fuse(t, e, nil, o).Property

	res := fuse(t, e, p, o)
	assert.False(t, res.Changed)
	assert.Nil(t, res.Change)
	assert.Equal(t, p, res.Property)
}

func TestMerge_RepeatedSourceUpdatesCapture(t *testing.T) {
	t.Parallel()
	e := New()
	a := obsAt("zillow", "1 Main St", t0)
	a.SourceURL = "https://z.example/1"
	p := fuse(t, e, nil, a).Property

	b := obsAt("zillow", "1 Main St", t0.Add(time.Hour))
	p = fuse(t, e, p, b).Property
	require.Len(t, p.Sources, 1)
	assert.Equal(t, t0.Add(time.Hour), p.Sources[0].CapturedAt)
	assert.Equal(t, "https://z.example/1", p.Sources[0].SourceURL)

	stale := obsAt("zillow", "1 Main St", t0.Add(-time.Hour))
	stale.SourceURL = "https://z.example/old"
	p = fuse(t, e, p, stale).Property
	assert.Equal(t, t0.Add(time.Hour), p.Sources[0].CapturedAt)
	assert.Equal(t, "https://z.example/1", p.Sources[0].SourceURL)
}

func TestMerge_InvalidObservation(t *testing.T) {
	t.Parallel()
	e := New()
	id := identity(t, "1 Main St")

	_, err := e.Merge(nil, model.Observation{SourceKey: "zillow"}, id)
	assert.ErrorIs(t, err, ErrInvalidObservation)

	_, err = e.Merge(nil, obsAt("", "1 Main St", t0), id)
	assert.ErrorIs(t, err, ErrInvalidObservation)

	_, err = e.Merge(nil, obsAt("zillow", "1 Main St", t0), model.Identity{})
	assert.ErrorIs(t, err, ErrInvalidObservation)

	other := fuse(t, e, nil, obsAt("zillow", "2 Oak Ave", t0)).Property
	_, err = e.Merge(other, obsAt("zillow", "1 Main St", t0), id)
	assert.ErrorIs(t, err, ErrInvalidObservation)
}

func TestFuse(t *testing.T) {
	t.Parallel()
	e := New()
	o := obsAt("zillow", "1 Main St", t0)
	p, err := e.Fuse(nil, o, identity(t, "1 Main St"))
	require.NoError(t, err)
	assert.Equal(t, "1 main st", p.NormalizedAddress)

	_, err = e.Fuse(nil, model.Observation{}, model.Identity{})
	assert.ErrorIs(t, err, ErrInvalidObservation)
}

func TestMerge_CustomPolicy(t *testing.T) {
	t.Parallel()
	e := New(WithPolicy(NewPolicy([]Tier{
		{Name: "ops", Sources: []string{"manual"}},
		{Name: "county", Sources: []string{"county"}},
	})))
	c := obsAt("county", "1 Main St", t0.Add(time.Hour))
	c.OwnerName = "County Name"
	p := fuse(t, e, nil, c).Property

	m := obsAt("manual", "1 Main St", t0)
	m.OwnerName = "Operator Name"
	p = fuse(t, e, p, m).Property
	assert.Equal(t, "Operator Name", p.OwnerName)
}
