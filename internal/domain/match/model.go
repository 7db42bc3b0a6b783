package match

import (
	"strconv"
	"strings"
	"time"
)

// Status is the lifecycle phase of a match.
type Status string

const (
	StatusNotStarted      Status = "NOT_STARTED"
	StatusFirstHalf       Status = "FIRST_HALF"
	StatusHalfTime        Status = "HALF_TIME"
	StatusSecondHalf      Status = "SECOND_HALF"
	StatusOvertime        Status = "OVERTIME"
	StatusPenaltyShootout Status = "PENALTY_SHOOTOUT"
	StatusInterrupted     Status = "INTERRUPTED"
	StatusFinished        Status = "FINISHED"
	StatusAbandoned       Status = "ABANDONED"
	StatusPostponed       Status = "POSTPONED"
	StatusCancelled       Status = "CANCELLED"
	StatusCut             Status = "CUT"
	StatusDelayed         Status = "DELAYED"
)

func NormalizeStatus(value string) Status {
	return Status(strings.ToUpper(strings.TrimSpace(value)))
}

// IsTerminal reports whether no further live transitions may follow.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusFinished, StatusAbandoned, StatusPostponed, StatusCancelled, StatusCut, StatusDelayed:
		return true
	default:
		return false
	}
}

func (s Status) IsLive() bool {
	switch s {
	case StatusFirstHalf, StatusHalfTime, StatusSecondHalf, StatusOvertime, StatusPenaltyShootout, StatusInterrupted:
		return true
	default:
		return false
	}
}

// StatusFromProviderCode maps the push provider's numeric status ids.
func StatusFromProviderCode(code int) (Status, bool) {
	switch code {
	case 1:
		return StatusNotStarted, true
	case 2:
		return StatusFirstHalf, true
	case 3:
		return StatusHalfTime, true
	case 4:
		return StatusSecondHalf, true
	case 5, 6:
		return StatusOvertime, true
	case 7:
		return StatusPenaltyShootout, true
	case 8:
		return StatusFinished, true
	case 9:
		return StatusDelayed, true
	case 10:
		return StatusInterrupted, true
	case 11:
		return StatusCut, true
	case 12:
		return StatusCancelled, true
	case 13:
		return StatusPostponed, true
	case 14:
		return StatusAbandoned, true
	default:
		return "", false
	}
}

// Source identifies the producer of a field value.
type Source string

const (
	SourceAPI      Source = "api"
	SourcePush     Source = "push"
	SourceComputed Source = "computed"
	SourceWatchdog Source = "watchdog"
)

func (s Source) Valid() bool {
	switch s {
	case SourceAPI, SourcePush, SourceComputed, SourceWatchdog:
		return true
	default:
		return false
	}
}

// Field enumerates the mutable columns of a match record.
type Field uint8

const (
	FieldStatus Field = iota + 1
	FieldHomeScore
	FieldAwayScore
	FieldMinute
	FieldFirstHalfKickoff
	FieldSecondHalfKickoff
	FieldOvertimeKickoff
	FieldProviderUpdateTime
	FieldLastEventTime
	FieldEnded
)

// TrackedFields lists every field that carries provenance, in column order.
var TrackedFields = []Field{
	FieldStatus,
	FieldHomeScore,
	FieldAwayScore,
	FieldMinute,
	FieldFirstHalfKickoff,
	FieldSecondHalfKickoff,
	FieldOvertimeKickoff,
	FieldProviderUpdateTime,
	FieldLastEventTime,
}

var orderedFields = append(append([]Field(nil), TrackedFields...), FieldEnded)

var fieldNames = map[Field]string{
	FieldStatus:             "status",
	FieldHomeScore:          "home_score_display",
	FieldAwayScore:          "away_score_display",
	FieldMinute:             "minute",
	FieldFirstHalfKickoff:   "first_half_kickoff_ts",
	FieldSecondHalfKickoff:  "second_half_kickoff_ts",
	FieldOvertimeKickoff:    "overtime_kickoff_ts",
	FieldProviderUpdateTime: "provider_update_time",
	FieldLastEventTime:      "last_event_ts",
	FieldEnded:              "ended",
}

// String returns the column name of the field.
func (f Field) String() string {
	if name, ok := fieldNames[f]; ok {
		return name
	}
	return "field(" + strconv.Itoa(int(f)) + ")"
}

func (f Field) Valid() bool {
	_, ok := fieldNames[f]
	return ok
}

// Tracked reports whether the field stores (source, timestamp) provenance.
func (f Field) Tracked() bool {
	return f.Valid() && f != FieldEnded
}

func ParseField(name string) (Field, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for field, column := range fieldNames {
		if column == name {
			return field, true
		}
	}
	return 0, false
}

// Value is a nullable field value. Status is carried in Text, every other field in Int.
type Value struct {
	Valid bool
	Int   int64
	Text  string
}

func Null() Value {
	return Value{}
}

func IntValue(v int64) Value {
	return Value{Valid: true, Int: v}
}

func StatusValue(s Status) Value {
	return Value{Valid: true, Text: string(s)}
}

func BoolValue(v bool) Value {
	if v {
		return IntValue(1)
	}
	return IntValue(0)
}

func (v Value) IsNull() bool {
	return !v.Valid
}

func (v Value) Equal(other Value) bool {
	if v.Valid != other.Valid {
		return false
	}
	if !v.Valid {
		return true
	}
	return v.Int == other.Int && v.Text == other.Text
}

func (v Value) Status() Status {
	if !v.Valid {
		return ""
	}
	return Status(v.Text)
}

// IntPtr returns nil for null values.
func (v Value) IntPtr() *int64 {
	if !v.Valid {
		return nil
	}
	out := v.Int
	return &out
}

func (v Value) String() string {
	switch {
	case !v.Valid:
		return "null"
	case v.Text != "":
		return v.Text
	default:
		return strconv.FormatInt(v.Int, 10)
	}
}

// Provenance records which producer wrote a value and when it observed it.
// A zero Timestamp means the producer supplied none.
type Provenance struct {
	Source    Source
	Timestamp int64
}

func (p Provenance) HasTimestamp() bool {
	return p.Timestamp > 0
}

// TrackedValue is a field value paired with its provenance.
type TrackedValue struct {
	Value      Value
	Provenance Provenance
}

// Record is the authoritative row for one match.
type Record struct {
	ID string

	Status             TrackedValue
	HomeScore          TrackedValue
	AwayScore          TrackedValue
	Minute             TrackedValue
	FirstHalfKickoff   TrackedValue
	SecondHalfKickoff  TrackedValue
	OvertimeKickoff    TrackedValue
	ProviderUpdateTime TrackedValue
	LastEventTime      TrackedValue
	Ended              bool

	MatchTime     int64
	HomeTeamID    string
	AwayTeamID    string
	CompetitionID string
	SeasonID      string
	UpdatedAt     time.Time
}

// Get returns the tracked value stored for field.
func (r Record) Get(field Field) TrackedValue {
	switch field {
	case FieldStatus:
		return r.Status
	case FieldHomeScore:
		return r.HomeScore
	case FieldAwayScore:
		return r.AwayScore
	case FieldMinute:
		return r.Minute
	case FieldFirstHalfKickoff:
		return r.FirstHalfKickoff
	case FieldSecondHalfKickoff:
		return r.SecondHalfKickoff
	case FieldOvertimeKickoff:
		return r.OvertimeKickoff
	case FieldProviderUpdateTime:
		return r.ProviderUpdateTime
	case FieldLastEventTime:
		return r.LastEventTime
	case FieldEnded:
		return TrackedValue{Value: BoolValue(r.Ended)}
	default:
		return TrackedValue{}
	}
}

func (r *Record) set(field Field, v TrackedValue) {
	switch field {
	case FieldStatus:
		r.Status = v
	case FieldHomeScore:
		r.HomeScore = v
	case FieldAwayScore:
		r.AwayScore = v
	case FieldMinute:
		r.Minute = v
	case FieldFirstHalfKickoff:
		r.FirstHalfKickoff = v
	case FieldSecondHalfKickoff:
		r.SecondHalfKickoff = v
	case FieldOvertimeKickoff:
		r.OvertimeKickoff = v
	case FieldProviderUpdateTime:
		r.ProviderUpdateTime = v
	case FieldLastEventTime:
		r.LastEventTime = v
	case FieldEnded:
		r.Ended = v.Value.Valid && v.Value.Int != 0
	}
}

// Apply returns a copy of r with every change written in.
func (r Record) Apply(changes ChangeSet) Record {
	out := r
	for _, field := range changes.Fields() {
		change := changes[field]
		out.set(field, TrackedValue{Value: change.Value, Provenance: change.Provenance})
	}
	return out
}

// CurrentStatus is a convenience accessor for the status field.
func (r Record) CurrentStatus() Status {
	return r.Status.Value.Status()
}

// FieldUpdate is a proposed write from one producer. It is consumed once by Resolve.
type FieldUpdate struct {
	Field     Field
	Value     Value
	Source    Source
	Priority  int
	Timestamp int64
}

// Change is an accepted field write staged for persistence.
type Change struct {
	Field      Field
	Value      Value
	Provenance Provenance
	priority   int
}

// ChangeSet holds at most one accepted change per field.
type ChangeSet map[Field]Change

// Fields returns the changed fields in enum order.
func (c ChangeSet) Fields() []Field {
	out := make([]Field, 0, len(c))
	for _, field := range orderedFields {
		if _, ok := c[field]; ok {
			out = append(out, field)
		}
	}
	return out
}

// Names returns the business column names of the changed fields.
func (c ChangeSet) Names() []string {
	fields := c.Fields()
	out := make([]string, 0, len(fields))
	for _, field := range fields {
		out = append(out, field.String())
	}
	return out
}
