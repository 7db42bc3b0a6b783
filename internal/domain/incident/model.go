package incident

import (
	"fmt"
	"time"
)

// Type is the provider incident code.
type Type int

const (
	TypeGoal             Type = 1
	TypeCorner           Type = 2
	TypeYellowCard       Type = 3
	TypeRedCard          Type = 4
	TypeOffside          Type = 5
	TypeFreeKick         Type = 6
	TypeGoalKick         Type = 7
	TypePenaltyGoal      Type = 8
	TypeSubstitution     Type = 9
	TypeStart            Type = 10
	TypeMidfield         Type = 11
	TypeEnd              Type = 12
	TypeHalfTimeScore    Type = 13
	TypeCardUpgrade      Type = 15
	TypePenaltyMissed    Type = 16
	TypeOwnGoal          Type = 17
	TypeInjuryTime       Type = 19
	TypeShotOnTarget     Type = 21
	TypeShotOffTarget    Type = 22
	TypeAttack           Type = 23
	TypeDangerousAttack  Type = 24
	TypeBallPossession   Type = 25
	TypeOvertimeOver     Type = 26
	TypePenaltyKickEnded Type = 27
	TypeVAR              Type = 28
	TypePenaltyShootout  Type = 29
	TypePenaltyShootMiss Type = 30
)

// Category groups incident types for notifications.
type Category string

const (
	CategoryGoal         Category = "goal"
	CategoryCard         Category = "card"
	CategorySubstitution Category = "substitution"
	CategoryOther        Category = "other"
)

func (t Type) Category() Category {
	switch t {
	case TypeGoal, TypePenaltyGoal, TypeOwnGoal:
		return CategoryGoal
	case TypeYellowCard, TypeRedCard, TypeCardUpgrade:
		return CategoryCard
	case TypeSubstitution:
		return CategorySubstitution
	default:
		return CategoryOther
	}
}

// CardColor returns "yellow" or "red" for card incidents.
func (t Type) CardColor() string {
	switch t {
	case TypeYellowCard:
		return "yellow"
	case TypeRedCard, TypeCardUpgrade:
		return "red"
	default:
		return ""
	}
}

// Position is the team side an incident belongs to.
type Position int

const (
	PositionNeutral Position = 0
	PositionHome    Position = 1
	PositionAway    Position = 2
)

// Incident is one append-only match event.
type Incident struct {
	MatchID  string   `validate:"required"`
	Type     Type     `validate:"gt=0"`
	Time     int      `validate:"gte=0"`
	Position Position `validate:"gte=0,lte=2"`

	PlayerID      string
	PlayerName    string
	Assist1ID     string
	Assist1Name   string
	Assist2ID     string
	Assist2Name   string
	InPlayerID    string
	InPlayerName  string
	OutPlayerID   string
	OutPlayerName string

	HomeScore *int
	AwayScore *int

	VARReason int
	VARResult int
	Reason    int

	Source    string
	CreatedAt time.Time
}

// NaturalKey identifies an incident independently of the producer that reported it.
func (i Incident) NaturalKey() string {
	return NaturalKey(i.MatchID, i.Type, i.Time, i.Position)
}

func NaturalKey(matchID string, typ Type, minute int, position Position) string {
	return fmt.Sprintf("%s:%d:%d:%d", matchID, int(typ), minute, int(position))
}
