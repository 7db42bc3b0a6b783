package match

// FieldRule stores the write policy for one field.
type FieldRule struct {
	PreferredSource Source
	// FallbackSource is empty when the field has no fallback.
	FallbackSource   Source
	WriteOnce        bool
	Nullable         bool
	WatchdogOverride bool
}

// RuleSet maps each writable field to its policy. Fields without a rule are not writable by producers.
type RuleSet map[Field]FieldRule

func (r RuleSet) Rule(field Field) (FieldRule, bool) {
	rule, ok := r[field]
	return rule, ok
}

func DefaultRules() RuleSet {
	return RuleSet{
		FieldStatus: {
			PreferredSource:  SourcePush,
			FallbackSource:   SourceAPI,
			WatchdogOverride: true,
		},
		FieldHomeScore: {
			PreferredSource:  SourcePush,
			FallbackSource:   SourceAPI,
			WatchdogOverride: true,
		},
		FieldAwayScore: {
			PreferredSource:  SourcePush,
			FallbackSource:   SourceAPI,
			WatchdogOverride: true,
		},
		FieldMinute: {
			PreferredSource:  SourceComputed,
			FallbackSource:   SourceAPI,
			Nullable:         true,
			WatchdogOverride: true,
		},
		FieldFirstHalfKickoff: {
			PreferredSource: SourcePush,
			FallbackSource:  SourceAPI,
			WriteOnce:       true,
		},
		FieldSecondHalfKickoff: {
			PreferredSource: SourcePush,
			FallbackSource:  SourceAPI,
			WriteOnce:       true,
		},
		FieldOvertimeKickoff: {
			PreferredSource: SourcePush,
			FallbackSource:  SourceAPI,
			WriteOnce:       true,
		},
		FieldProviderUpdateTime: {
			PreferredSource: SourcePush,
			FallbackSource:  SourceAPI,
		},
		FieldLastEventTime: {
			PreferredSource: SourcePush,
			FallbackSource:  SourceAPI,
		},
	}
}
