package services

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/tbourn/lead-qualifier/internal/domain"
)

// Score thresholds.
const (
	OfferThreshold     = 60
	QualifiedThreshold = 70
)

// Qualification is the scorer output.
type Qualification struct {
	Score       int  `json:"score"`
	ShouldOffer bool `json:"should_offer"`
	IsQualified bool `json:"is_qualified"`
}

// Score computes the 0..100 qualification score of a profile: budget (0-40),
// timeline (0-20), completeness (4 per present field, 0-20) and engagement
// by user-message count (5-20).
func Score(p domain.LeadProfile) Qualification {
	total := budgetPoints(p.BudgetRange) +
		timelinePoints(p.Timeline) +
		4*p.CompletedFields() +
		engagementPoints(p.TotalMessages)
	if total > 100 {
		total = 100
	}
	if total < 0 {
		total = 0
	}
	return qualify(total)
}

func qualify(score int) Qualification {
	return Qualification{
		Score:       score,
		ShouldOffer: score >= OfferThreshold,
		IsQualified: score >= QualifiedThreshold,
	}
}

var centsRE = regexp.MustCompile(`,\d{1,2}$`)

// BudgetAmount parses the integer amount out of a budget string such as
// "R$ 5.000" or "R$ 997,00". A trailing two-digit cents part is dropped
// before the remaining digits are joined; ok is false when no digits remain.
func BudgetAmount(s string) (amount int, ok bool) {
	s = centsRE.ReplaceAllString(strings.TrimSpace(s), "")
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(b.String())
	if err != nil {
		// Too many digits for an int; treat as the top bucket.
		return int(^uint(0) >> 1), true
	}
	return n, true
}

func budgetPoints(budget *string) int {
	if budget == nil || *budget == "" {
		return 0
	}
	n, _ := BudgetAmount(*budget)
	switch {
	case n >= 5000:
		return 40
	case n >= 2000:
		return 30
	case n >= 997:
		return 20
	default:
		return 5
	}
}

func timelinePoints(t *string) int {
	if t == nil {
		return 0
	}
	switch *t {
	case domain.TimelineShort:
		return 20
	case domain.TimelineMedium:
		return 15
	case domain.TimelineLong:
		return 10
	}
	return 0
}

func engagementPoints(userMessages int) int {
	switch {
	case userMessages >= 10:
		return 20
	case userMessages >= 5:
		return 15
	case userMessages >= 3:
		return 10
	default:
		return 5
	}
}
