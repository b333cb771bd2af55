// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"regexp"
	"strings"
)

// ═══════════════════════════════════════════════════════════════════════════
// ID Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// UserID represents a unique learner identifier. The identity service owns
// the format, so it is treated as an opaque token: non-empty, bounded, no
// whitespace.
type UserID string

// MaxIDLength bounds every externally supplied identifier.
const MaxIDLength = 64

// IsValid checks that the user ID is a plausible opaque identifier.
func (u UserID) IsValid() bool {
	s := string(u)
	return len(s) >= 1 && len(s) <= MaxIDLength && !strings.ContainsAny(s, " \t\n\r")
}

// String returns the string representation.
func (u UserID) String() string {
	return string(u)
}

// NewUserID creates a new UserID with validation.
func NewUserID(id string) (UserID, error) {
	uid := UserID(strings.TrimSpace(id))
	if !uid.IsValid() {
		return "", NewDomainError("shared", "NewUserID", ErrInvalidID, "invalid user ID format")
	}
	return uid, nil
}

// CampaignID represents a unique learning campaign identifier.
// Campaigns are authored externally, so the format is an opaque slug:
// lowercase alphanumerics, dashes and underscores.
type CampaignID string

var campaignIDRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{1,63}$`)

// IsValid checks if the campaign ID has a valid slug format.
func (c CampaignID) IsValid() bool {
	return campaignIDRegex.MatchString(string(c))
}

// String returns the string representation.
func (c CampaignID) String() string {
	return string(c)
}

// NewCampaignID creates a new CampaignID with validation.
func NewCampaignID(id string) (CampaignID, error) {
	cid := CampaignID(strings.ToLower(strings.TrimSpace(id)))
	if !cid.IsValid() {
		return "", NewDomainError("shared", "NewCampaignID", ErrInvalidID, "invalid campaign ID format")
	}
	return cid, nil
}

// ModuleID represents one video-plus-quiz unit within a campaign.
type ModuleID string

// IsValid checks that the module ID is non-empty and has no whitespace.
func (m ModuleID) IsValid() bool {
	s := string(m)
	return len(s) >= 1 && len(s) <= MaxIDLength && !strings.ContainsAny(s, " \t\n\r")
}

// String returns the string representation.
func (m ModuleID) String() string {
	return string(m)
}

// ═══════════════════════════════════════════════════════════════════════════
// XP Value Object (Experience Points)
// ═══════════════════════════════════════════════════════════════════════════

// XP represents experience points earned by a learner.
type XP int

const (
	// MinXP is the lower XP boundary.
	MinXP XP = 0

	// MaxXP is a sanity cap; no authored campaign set comes close.
	MaxXP XP = 1000000
)

// IsValid checks if the XP value is within valid range.
func (x XP) IsValid() bool {
	return x >= MinXP && x <= MaxXP
}

// Int returns the underlying int value.
func (x XP) Int() int {
	return int(x)
}

// Add adds XP, clamping at the boundaries.
func (x XP) Add(delta XP) XP {
	sum := x + delta
	if sum < MinXP {
		return MinXP
	}
	if sum > MaxXP {
		return MaxXP
	}
	return sum
}

// ═══════════════════════════════════════════════════════════════════════════
// Level Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Level represents the progression tier derived from XP. Levels start at 1.
type Level int

// IsValid checks that the level is at least 1.
func (l Level) IsValid() bool {
	return l >= 1
}

// Int returns the underlying int value.
func (l Level) Int() int {
	return int(l)
}

// ═══════════════════════════════════════════════════════════════════════════
// Percent Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Percent represents a whole-number completion percentage in [0,100].
type Percent int

// IsValid checks the percent range.
func (p Percent) IsValid() bool {
	return p >= 0 && p <= 100
}

// Int returns the underlying int value.
func (p Percent) Int() int {
	return int(p)
}

// Clamp forces the value into [0,100].
func (p Percent) Clamp() Percent {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
