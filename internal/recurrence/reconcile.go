package recurrence

import "fmt"

// Policy selects how a generated occurrence set is reconciled against
// persisted meetings.
type Policy string

const (
	// PolicyAddMissing inserts only occurrences whose natural key is absent
	// from storage. Running it twice against unchanged storage inserts
	// nothing the second time.
	PolicyAddMissing Policy = "add_missing"

	// PolicyReplaceAll deletes every persisted meeting and reinserts the
	// generated set. Destructive: it discards all notes edits, so callers
	// must require explicit confirmation before selecting it.
	PolicyReplaceAll Policy = "replace_all"
)

// Valid reports whether the policy is one of the known values.
func (p Policy) Valid() bool {
	return p == PolicyAddMissing || p == PolicyReplaceAll
}

// Plan is the write-set needed to bring storage in line with a generated
// occurrence sequence. Computing it has no side effects; the caller applies
// the plan transactionally.
type Plan struct {
	ToInsert []Occurrence
	ToDelete []Key
}

// Reconcile diffs generated occurrences against the keys currently in
// storage. The existing snapshot must be complete; reconciling against a
// partial snapshot is a caller error that produces duplicate inserts.
func Reconcile(generated []Occurrence, existing map[Key]struct{}, policy Policy) (Plan, error) {
	if !policy.Valid() {
		return Plan{}, fmt.Errorf("unknown reconciliation policy %q", policy)
	}

	if policy == PolicyReplaceAll {
		plan := Plan{ToInsert: append([]Occurrence(nil), generated...)}
		plan.ToDelete = make([]Key, 0, len(existing))
		for key := range existing {
			plan.ToDelete = append(plan.ToDelete, key)
		}
		return plan, nil
	}

	plan := Plan{ToInsert: make([]Occurrence, 0)}
	for _, occ := range generated {
		if _, ok := existing[occ.Key()]; ok {
			continue
		}
		plan.ToInsert = append(plan.ToInsert, occ)
	}
	return plan, nil
}
