package models

import (
	"strings"
	"time"
)

// Couple status values.
const (
	CoupleStatusCurrent   = "current"
	CoupleStatusSeparated = "separated"
	CoupleStatusWidowed   = "widowed"
)

// Couple links two people. At most one couple exists per unordered pair.
type Couple struct {
	ID         int64     `json:"id"`
	PartnerAID int64     `json:"partner_a_id"`
	PartnerBID int64     `json:"partner_b_id"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// PartnerOf returns the other member of the couple, or 0 if personID is not part of it.
func (c *Couple) PartnerOf(personID int64) int64 {
	switch personID {
	case c.PartnerAID:
		return c.PartnerBID
	case c.PartnerBID:
		return c.PartnerAID
	default:
		return 0
	}
}

// IsCurrent reports whether the couple counts for household membership.
func (c *Couple) IsCurrent() bool {
	return c.Status == CoupleStatusCurrent
}

// NormalizeCoupleStatus lower-cases and trims status, defaulting blank input to current.
// The second return value is false for unknown statuses.
func NormalizeCoupleStatus(status string) (string, bool) {
	s := strings.ToLower(strings.TrimSpace(status))
	switch s {
	case "":
		return CoupleStatusCurrent, true
	case CoupleStatusCurrent, CoupleStatusSeparated, CoupleStatusWidowed:
		return s, true
	default:
		return s, false
	}
}
