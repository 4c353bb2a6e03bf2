package domain

import (
	"fmt"
	"strings"
	"time"
)

// WagerStatus mirrors the status column of the battles table on the ledger.
type WagerStatus uint8

const (
	StatusOpen WagerStatus = iota
	StatusActive
	StatusResolved
	StatusCancelled
	StatusExpired
	StatusTie
)

func (s WagerStatus) String() string {
	switch s {
	case StatusOpen:
		return "OPEN"
	case StatusActive:
		return "ACTIVE"
	case StatusResolved:
		return "RESOLVED"
	case StatusCancelled:
		return "CANCELLED"
	case StatusExpired:
		return "EXPIRED"
	case StatusTie:
		return "TIE"
	}
	return fmt.Sprintf("STATUS(%d)", uint8(s))
}

// Terminal reports whether no further action can change the wager.
func (s WagerStatus) Terminal() bool {
	return s == StatusResolved || s == StatusCancelled || s == StatusExpired || s == StatusTie
}

// ParseWagerStatus accepts either the numeric ledger encoding or the name.
func ParseWagerStatus(s string) (WagerStatus, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "0", "OPEN":
		return StatusOpen, nil
	case "1", "ACTIVE":
		return StatusActive, nil
	case "2", "RESOLVED":
		return StatusResolved, nil
	case "3", "CANCELLED":
		return StatusCancelled, nil
	case "4", "EXPIRED":
		return StatusExpired, nil
	case "5", "TIE":
		return StatusTie, nil
	}
	return 0, fmt.Errorf("unknown wager status %q", s)
}

// Direction is the side of a price bet.
type Direction string

const (
	DirectionUp      Direction = "UP"
	DirectionDown    Direction = "DOWN"
	DirectionNeutral Direction = "NEUTRAL"
)

// Opposite returns the other side of a bet. NEUTRAL has no opposite.
func (d Direction) Opposite() Direction {
	switch d {
	case DirectionUp:
		return DirectionDown
	case DirectionDown:
		return DirectionUp
	}
	return DirectionNeutral
}

// Code is the uint8 encoding used by the contract (1 = UP, 2 = DOWN).
func (d Direction) Code() uint8 {
	switch d {
	case DirectionUp:
		return 1
	case DirectionDown:
		return 2
	}
	return 0
}

// DirectionFromCode decodes the contract encoding.
func DirectionFromCode(c uint8) (Direction, error) {
	switch c {
	case 1:
		return DirectionUp, nil
	case 2:
		return DirectionDown, nil
	}
	return "", fmt.Errorf("unknown direction code %d", c)
}

// ParseDirection normalizes UP/DOWN/NEUTRAL from free text.
func ParseDirection(s string) (Direction, error) {
	switch Direction(strings.ToUpper(strings.TrimSpace(s))) {
	case DirectionUp:
		return DirectionUp, nil
	case DirectionDown:
		return DirectionDown, nil
	case DirectionNeutral:
		return DirectionNeutral, nil
	}
	return "", fmt.Errorf("unknown direction %q", s)
}

// Role is our relation to a wager, derived locally from the configured account.
type Role string

const (
	RoleNone     Role = ""
	RoleCreator  Role = "creator"
	RoleOpponent Role = "opponent"
)

// Wager is the local mirror of one battle row on the ledger.
type Wager struct {
	ID         uint64
	Creator    string
	Opponent   string
	Stake      int64 // token base units, each side stakes this amount
	Direction  Direction
	OracleFeed uint64
	Duration   int64 // seconds
	StartPrice int64 // fixed-point, set on accept
	EndPrice   int64 // fixed-point, set on resolve
	CreatedAt  int64
	StartedAt  int64
	ExpiresAt  int64
	Status     WagerStatus
	Winner     string
	OurRole    Role
}

// RoleFor derives the role of account in the wager.
func (w Wager) RoleFor(account string) Role {
	switch account {
	case "":
		return RoleNone
	case w.Creator:
		return RoleCreator
	case w.Opponent:
		return RoleOpponent
	}
	return RoleNone
}

// MaturesAt is the earliest Unix second at which the wager may be resolved.
// Zero when the wager was never accepted.
func (w Wager) MaturesAt() int64 {
	if w.StartedAt == 0 {
		return 0
	}
	return w.StartedAt + w.Duration
}

// IsResolvable reports whether the wager is active and matured at now.
func (w Wager) IsResolvable(now time.Time) bool {
	return w.Status == StatusActive && w.StartedAt > 0 && w.MaturesAt() <= now.Unix()
}

// IsExpired reports whether an unaccepted wager has passed its acceptance window.
func (w Wager) IsExpired(now time.Time) bool {
	return w.Status == StatusOpen && w.ExpiresAt > 0 && w.ExpiresAt <= now.Unix()
}

// Validate checks what the ledger promises for a row.
func (w Wager) Validate() error {
	if w.Status == StatusActive && (w.StartedAt == 0 || w.StartPrice == 0) {
		return fmt.Errorf("wager %d: active without start time or start price", w.ID)
	}
	if w.Stake <= 0 {
		return fmt.Errorf("wager %d: non-positive stake %d", w.ID, w.Stake)
	}
	return nil
}

// Outcome is the result of a settled wager from one participant's point of view.
type Outcome string

const (
	OutcomeWin  Outcome = "win"
	OutcomeLoss Outcome = "loss"
	OutcomeTie  Outcome = "tie"
	OutcomeNone Outcome = "none" // cancelled or expired: stake refunded
)

// OutcomeFor returns how a terminal wager ended for account.
func (w Wager) OutcomeFor(account string) Outcome {
	switch w.Status {
	case StatusTie:
		return OutcomeTie
	case StatusResolved:
		if w.Winner == "" {
			return OutcomeTie
		}
		if w.Winner == account {
			return OutcomeWin
		}
		return OutcomeLoss
	}
	return OutcomeNone
}

// WagerSet is a synced snapshot of the wager table evaluated against a fixed instant.
// All queries are pure filters over the snapshot; none of them contact the ledger.
type WagerSet struct {
	Wagers  []Wager
	Account string
	Now     time.Time
}

func (s WagerSet) filter(keep func(Wager) bool) []Wager {
	var out []Wager
	for _, w := range s.Wagers {
		if keep(w) {
			out = append(out, w)
		}
	}
	return out
}

func (s WagerSet) Open() []Wager {
	return s.filter(func(w Wager) bool { return w.Status == StatusOpen })
}

func (s WagerSet) Active() []Wager {
	return s.filter(func(w Wager) bool { return w.Status == StatusActive })
}

// Resolvable returns active wagers whose StartedAt+Duration <= Now.
func (s WagerSet) Resolvable() []Wager {
	return s.filter(func(w Wager) bool { return w.IsResolvable(s.Now) })
}

// Expired returns open wagers whose ExpiresAt <= Now.
func (s WagerSet) Expired() []Wager {
	return s.filter(func(w Wager) bool { return w.IsExpired(s.Now) })
}

// Ours returns wagers where the account is creator or opponent.
func (s WagerSet) Ours() []Wager {
	return s.filter(func(w Wager) bool { return w.RoleFor(s.Account) != RoleNone })
}

// Acceptable returns open wagers not created by the account and not yet expired.
func (s WagerSet) Acceptable() []Wager {
	return s.filter(func(w Wager) bool {
		return w.Status == StatusOpen && w.Creator != s.Account && !w.IsExpired(s.Now)
	})
}

// OursInPlay counts our open and active wagers (the concurrency cap input).
func (s WagerSet) OursInPlay() int {
	n := 0
	for _, w := range s.Ours() {
		if w.Status == StatusOpen || w.Status == StatusActive {
			n++
		}
	}
	return n
}
