package model

import (
	"encoding/json"
	"fmt"
)

// Difficulty is one of the five fixed tiers a level is played on. The
// numeric value is the tier's rank; lower ranks are easier.
type Difficulty int

// Difficulties in increasing order. The zero value is not a valid tier so an
// unset field is never mistaken for Easy.
const (
	Easy Difficulty = iota + 1
	Normal
	Hard
	Expert
	ExpertPlus
)

var difficultyNames = [...]string{
	Easy:       "Easy",
	Normal:     "Normal",
	Hard:       "Hard",
	Expert:     "Expert",
	ExpertPlus: "Expert+",
}

// Difficulties returns every tier in rank order.
func Difficulties() []Difficulty {
	return []Difficulty{Easy, Normal, Hard, Expert, ExpertPlus}
}

// ParseDifficulty maps the exact text form ("Easy" ... "Expert+") to a tier.
// Matching is case-sensitive.
func ParseDifficulty(s string) (Difficulty, error) {
	for _, d := range Difficulties() {
		if difficultyNames[d] == s {
			return d, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidDifficulty, s)
}

// Valid reports whether d is one of the five tiers.
func (d Difficulty) Valid() bool {
	return d >= Easy && d <= ExpertPlus
}

// Rank returns the ordering key of d.
func (d Difficulty) Rank() int { return int(d) }

func (d Difficulty) String() string {
	if !d.Valid() {
		return fmt.Sprintf("Difficulty(%d)", int(d))
	}
	return difficultyNames[d]
}

// MarshalJSON encodes the text form.
func (d Difficulty) MarshalJSON() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDifficulty, int(d))
	}
	return json.Marshal(d.String())
}

// UnmarshalJSON decodes the text form.
func (d *Difficulty) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidDifficulty, string(b))
	}
	parsed, err := ParseDifficulty(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
