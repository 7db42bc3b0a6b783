package match

const (
	firstHalfMinuteCap   = 60
	secondHalfMinuteBase = 45
	secondHalfMinuteCap  = 105
	overtimeMinuteBase   = 90
	overtimeMinuteCap    = 130
	penaltyMinute        = 120

	// halfTimeGapMinutes estimates the break when the second-half kickoff is unknown.
	halfTimeGapMinutes = 15
)

// MinuteInput carries the phase and kickoff anchors (unix seconds, 0 when unknown).
type MinuteInput struct {
	Status            Status
	MatchTime         int64
	FirstHalfKickoff  int64
	SecondHalfKickoff int64
	OvertimeKickoff   int64
}

func MinuteInputFromRecord(r Record) MinuteInput {
	return MinuteInput{
		Status:            r.CurrentStatus(),
		MatchTime:         r.MatchTime,
		FirstHalfKickoff:  r.FirstHalfKickoff.Value.Int,
		SecondHalfKickoff: r.SecondHalfKickoff.Value.Int,
		OvertimeKickoff:   r.OvertimeKickoff.Value.Int,
	}
}

// CalculateMinute derives the elapsed match minute at now. ok is false for phases without a running clock.
func CalculateMinute(in MinuteInput, now int64) (minute int64, ok bool) {
	switch in.Status {
	case StatusFirstHalf:
		kickoff := in.FirstHalfKickoff
		if kickoff <= 0 {
			kickoff = in.MatchTime
		}
		if kickoff <= 0 {
			return 0, false
		}
		return clamp(elapsedMinutes(kickoff, now), 0, firstHalfMinuteCap), true

	case StatusSecondHalf:
		if in.SecondHalfKickoff > 0 {
			return clamp(secondHalfMinuteBase+elapsedMinutes(in.SecondHalfKickoff, now), secondHalfMinuteBase, secondHalfMinuteCap), true
		}
		kickoff := in.FirstHalfKickoff
		if kickoff <= 0 {
			kickoff = in.MatchTime
		}
		if kickoff <= 0 {
			return secondHalfMinuteBase, true
		}
		estimated := elapsedMinutes(kickoff, now) - halfTimeGapMinutes
		return clamp(estimated, secondHalfMinuteBase, secondHalfMinuteCap), true

	case StatusOvertime:
		if in.OvertimeKickoff <= 0 {
			return overtimeMinuteBase, true
		}
		return clamp(overtimeMinuteBase+elapsedMinutes(in.OvertimeKickoff, now), overtimeMinuteBase, overtimeMinuteCap), true

	case StatusPenaltyShootout:
		return penaltyMinute, true

	default:
		return 0, false
	}
}

func elapsedMinutes(from, now int64) int64 {
	diff := now - from
	if diff < 0 {
		return 0
	}
	return diff / 60
}

func clamp(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
