package fusion

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/property-cli/internal/model"
)

func seeded(t *testing.T, e *Engine) *model.Property {
	t.Helper()
	o := obsAt("zillow", "1 Main St", t0)
	o.DistressSignals = []model.DistressSignal{model.SignalVacant, model.SignalProbate}
	o.Contacts = []model.Contact{
		{Type: model.ContactPhone, Value: "2175550100", Confidence: 0.8, Source: "listing"},
		{Type: model.ContactEmail, Value: "old@example.com", Confidence: 0.6, Source: "description"},
	}
	return fuse(t, e, nil, o).Property
}

func TestRetract_RemovesAndRecords(t *testing.T) {
	t.Parallel()
	e := New()
	p := seeded(t, e)
	at := t0.Add(48 * time.Hour)

	res, err := e.Retract(p, Correction{
		By:       "ops",
		At:       at,
		Signals:  []model.DistressSignal{model.SignalVacant},
		Contacts: []model.Contact{{Type: model.ContactPhone, Value: "(217) 555-0100"}},
	})
	require.NoError(t, err)
	q := res.Property

	assert.Equal(t, []model.DistressSignal{model.SignalProbate}, q.DistressSignals)
	require.Len(t, q.Contacts, 1)
	assert.Equal(t, model.ContactEmail, q.Contacts[0].Type)
	assert.Equal(t, at, q.UpdatedAt)

	require.NotNil(t, res.Change)
	assert.Equal(t, "correction:ops", res.Change.Source)
	assert.Equal(t, []string{"contacts.phone:2175550100", "distress_signals.VACANT"}, res.Change.Fields())
	assert.Nil(t, res.Change.ChangedFields["distress_signals.VACANT"].To)

	// The input is untouched.
	assert.Len(t, p.DistressSignals, 2)
	assert.Len(t, p.Contacts, 2)
}

func TestRetract_NothingToRemove(t *testing.T) {
	t.Parallel()
	e := New()
	p := seeded(t, e)
	res, err := e.Retract(p, Correction{By: "ops", Signals: []model.DistressSignal{model.SignalAuction}})
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Nil(t, res.Change)
	assert.Equal(t, p, res.Property)
}

func TestRetract_Invalid(t *testing.T) {
	t.Parallel()
	e := New()
	_, err := e.Retract(nil, Correction{By: "ops"})
	assert.ErrorIs(t, err, ErrInvalidObservation)

	_, err = e.Retract(seeded(t, e), Correction{})
	assert.ErrorIs(t, err, ErrInvalidObservation)
}

func TestMergeContacts_Cleaning(t *testing.T) {
	t.Parallel()
	out, changed := mergeContacts(nil, []model.Contact{
		{Type: model.ContactPhone, Value: "555-0100", Confidence: 0.6},
		{Type: model.ContactEmail, Value: "not-an-email", Confidence: 0.6},
		{Type: model.ContactEmail, Value: " A@B.COM ", Confidence: 1.7},
		{Type: model.ContactEmail, Value: "a@b.com", Confidence: 0.5},
		{Type: "pager", Value: "123"},
	})
	assert.True(t, changed)
	require.Len(t, out, 1)
	assert.Equal(t, "a@b.com", out[0].Value)
	assert.Equal(t, 1.0, out[0].Confidence)

	same, changed := mergeContacts(out, nil)
	assert.False(t, changed)
	assert.Equal(t, out, same)
}
