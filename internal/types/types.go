package types

import "strings"

// Direction is the trade direction of a setup.
type Direction string

const (
	DirectionLong    Direction = "long"
	DirectionShort   Direction = "short"
	DirectionNeutral Direction = "neutral"
)

// ParseDirection normalizes free-form direction text. Unknown values map to
// neutral so score math never has to branch on absence.
func ParseDirection(raw string) Direction {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "long", "buy":
		return DirectionLong
	case "short", "sell":
		return DirectionShort
	default:
		return DirectionNeutral
	}
}

// Profile identifies the trading horizon a setup is evaluated under.
type Profile string

const (
	ProfileSwing    Profile = "swing"
	ProfileIntraday Profile = "intraday"
	ProfilePosition Profile = "position"
)

// ParseProfile maps free-form profile text to a known profile, defaulting to
// intraday.
func ParseProfile(raw string) Profile {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "swing":
		return ProfileSwing
	case "position":
		return ProfilePosition
	default:
		return ProfileIntraday
	}
}

// IsSwing reports whether the profile uses the swing rule family.
func (p Profile) IsSwing() bool { return p == ProfileSwing }

// Asset is the minimal identity the playbook resolver matches on.
type Asset struct {
	ID     string `json:"id"`
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}
