package match

// DiscardReason explains why Resolve dropped an update.
type DiscardReason string

const (
	DiscardUnknownField   DiscardReason = "unknown_field"
	DiscardInvalidSource  DiscardReason = "invalid_source"
	DiscardWriteOnce      DiscardReason = "write_once"
	DiscardTerminalStatus DiscardReason = "terminal_status"
	DiscardSourcePriority DiscardReason = "source_priority"
	DiscardStaleIdentical DiscardReason = "stale_identical"
	DiscardNotNullable    DiscardReason = "not_nullable"
	DiscardLowerPriority  DiscardReason = "lower_priority"
)

type Discard struct {
	Update FieldUpdate
	Reason DiscardReason
}

// Resolution is the outcome of resolving one batch against a snapshot.
type Resolution struct {
	Changes   ChangeSet
	Discarded []Discard
}

// Resolve returns the subset of updates that may be written over current.
// It is deterministic for a fixed snapshot and performs no I/O.
func Resolve(current Record, updates []FieldUpdate, rules RuleSet) ChangeSet {
	return ResolveDetailed(current, updates, rules).Changes
}

// ResolveDetailed is Resolve with the discard reasons kept. Every update is
// checked against current only, never against writes staged earlier in the
// same batch. Staged writes to one field compete on Priority alone, and at
// equal priority the later one wins even over an accepted terminal status:
// [Finished, SecondHalf] stages SecondHalf.
func ResolveDetailed(current Record, updates []FieldUpdate, rules RuleSet) Resolution {
	out := Resolution{Changes: make(ChangeSet, len(updates))}

	for _, update := range updates {
		if reason, ok := evaluate(current, update, rules); !ok {
			out.Discarded = append(out.Discarded, Discard{Update: update, Reason: reason})
			continue
		}

		// Several accepted writes to one field in a batch: higher priority wins, ties keep the later one.
		if staged, exists := out.Changes[update.Field]; exists && update.Priority < staged.priority {
			out.Discarded = append(out.Discarded, Discard{Update: update, Reason: DiscardLowerPriority})
			continue
		}

		out.Changes[update.Field] = Change{
			Field: update.Field,
			Value: update.Value,
			Provenance: Provenance{
				Source:    update.Source,
				Timestamp: update.Timestamp,
			},
			priority: update.Priority,
		}
	}

	enforceTerminalInvariants(out.Changes)
	return out
}

func evaluate(current Record, update FieldUpdate, rules RuleSet) (DiscardReason, bool) {
	rule, ok := rules.Rule(update.Field)
	if !ok || !update.Field.Tracked() {
		return DiscardUnknownField, false
	}
	if !update.Source.Valid() {
		return DiscardInvalidSource, false
	}

	stored := current.Get(update.Field)

	if rule.WriteOnce && !stored.Value.IsNull() {
		return DiscardWriteOnce, false
	}

	if update.Field == FieldStatus {
		if current.CurrentStatus().IsTerminal() && !update.Value.Status().IsTerminal() {
			return DiscardTerminalStatus, false
		}
	}

	if update.Source == SourceWatchdog && rule.WatchdogOverride {
		return checkNullable(update, rule)
	}

	if !sourceAllowed(stored, update.Source, rule) {
		return DiscardSourcePriority, false
	}

	// Upstream timestamps are unreliable, so an older timestamp only drops a write when the value is unchanged too.
	if stored.Provenance.HasTimestamp() && update.Timestamp > 0 {
		if update.Timestamp <= stored.Provenance.Timestamp && update.Value.Equal(stored.Value) {
			return DiscardStaleIdentical, false
		}
	}

	return checkNullable(update, rule)
}

func sourceAllowed(stored TrackedValue, source Source, rule FieldRule) bool {
	if !stored.Value.IsNull() && stored.Provenance.Source == rule.PreferredSource {
		return source == rule.PreferredSource
	}

	if stored.Value.IsNull() || (rule.FallbackSource != "" && stored.Provenance.Source == rule.FallbackSource) {
		if source == rule.PreferredSource {
			return true
		}
		return rule.FallbackSource != "" && source == rule.FallbackSource
	}

	// Values written by any other producer carry no priority claim.
	return true
}

func checkNullable(update FieldUpdate, rule FieldRule) (DiscardReason, bool) {
	if update.Value.IsNull() && !rule.Nullable {
		return DiscardNotNullable, false
	}
	return "", true
}

// enforceTerminalInvariants clears the live minute and marks the match ended when a terminal status is accepted.
func enforceTerminalInvariants(changes ChangeSet) {
	status, ok := changes[FieldStatus]
	if !ok || !status.Value.Status().IsTerminal() {
		return
	}

	changes[FieldMinute] = Change{
		Field: FieldMinute,
		Value: Null(),
		Provenance: Provenance{
			Source:    SourceComputed,
			Timestamp: status.Provenance.Timestamp,
		},
	}
	changes[FieldEnded] = Change{
		Field:      FieldEnded,
		Value:      BoolValue(true),
		Provenance: status.Provenance,
	}
}
