package recurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generated(t *testing.T) []Occurrence {
	t.Helper()
	engine := NewEngine(NewHolidayCalendar())
	occs, err := engine.Generate(testSchedule(),
		time.Date(2019, time.January, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2019, time.January, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return occs
}

func keysOf(occs []Occurrence) map[Key]struct{} {
	keys := make(map[Key]struct{}, len(occs))
	for _, occ := range occs {
		keys[occ.Key()] = struct{}{}
	}
	return keys
}

func TestReconcileAddMissingEmptyStore(t *testing.T) {
	occs := generated(t)
	plan, err := Reconcile(occs, map[Key]struct{}{}, PolicyAddMissing)
	require.NoError(t, err)
	assert.Len(t, plan.ToInsert, len(occs))
	assert.Empty(t, plan.ToDelete)
}

func TestReconcileAddMissingIsIdempotent(t *testing.T) {
	occs := generated(t)

	first, err := Reconcile(occs, map[Key]struct{}{}, PolicyAddMissing)
	require.NoError(t, err)

	// Run again with the first plan's inserts persisted, nothing is added.
	second, err := Reconcile(occs, keysOf(first.ToInsert), PolicyAddMissing)
	require.NoError(t, err)
	assert.Empty(t, second.ToInsert)
	assert.Empty(t, second.ToDelete)
}

func TestReconcileAddMissingSkipsExistingKeys(t *testing.T) {
	occs := generated(t)
	existing := map[Key]struct{}{
		occs[0].Key(): {},
		occs[3].Key(): {},
	}

	plan, err := Reconcile(occs, existing, PolicyAddMissing)
	require.NoError(t, err)
	assert.Len(t, plan.ToInsert, len(occs)-2)
	for _, occ := range plan.ToInsert {
		_, ok := existing[occ.Key()]
		assert.False(t, ok)
	}
}

func TestReconcileReplaceAll(t *testing.T) {
	occs := generated(t)
	existing := map[Key]struct{}{
		{Date: "2018-06-01", Time: "09:00"}: {},
		occs[0].Key():                       {},
	}

	plan, err := Reconcile(occs, existing, PolicyReplaceAll)
	require.NoError(t, err)
	assert.Len(t, plan.ToInsert, len(occs))
	assert.Len(t, plan.ToDelete, len(existing))
}

func TestReconcileUnknownPolicy(t *testing.T) {
	_, err := Reconcile(nil, nil, Policy("purge"))
	assert.Error(t, err)
}

func TestPolicyValid(t *testing.T) {
	assert.True(t, PolicyAddMissing.Valid())
	assert.True(t, PolicyReplaceAll.Valid())
	assert.False(t, Policy("").Valid())
	assert.False(t, Policy("ADD_MISSING").Valid())
}
