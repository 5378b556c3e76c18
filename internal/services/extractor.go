package services

import (
	"context"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/tbourn/lead-qualifier/internal/domain"
)

// Extractor derives a partial lead profile from a conversation history.
// PatternExtractor is the regular-expression implementation; a model-based
// extractor can replace it without touching the orchestrator.
type Extractor interface {
	Extract(ctx context.Context, conversationID string, messages []domain.Message) (domain.LeadProfile, error)
}

// PatternExtractor matches keyword and regular-expression heuristics over
// the "role: content" transcript. Results are best effort.
type PatternExtractor struct {
	// UserTurnsOnly drops assistant turns from the transcript so that the
	// agent's own questions ("trabalho, estudo ou investimento?") are not
	// read back as answers.
	UserTurnsOnly bool
}

// Extract implements Extractor.
func (e PatternExtractor) Extract(_ context.Context, _ string, messages []domain.Message) (domain.LeadProfile, error) {
	var b strings.Builder
	users := 0
	for _, m := range messages {
		if m.Role == domain.RoleUser {
			users++
		}
		if m.Role == domain.RoleSystem || (e.UserTurnsOnly && m.Role != domain.RoleUser) {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(m.Role)
		b.WriteString(": ")
		b.WriteString(m.Content)
	}
	p := ExtractTranscript(b.String())
	p.TotalMessages = users
	return p, nil
}

const (
	capWord  = `\p{Lu}\p{Ll}+`
	particle = `(?:(?:da|de|do|das|dos|e)[ \t]+)?`
	capName  = capWord + `(?:[ \t]+` + particle + capWord + `)+`
)

var (
	namePhraseRE = regexp.MustCompile(`(?i:meu nome (?:é|eh|e)|me chamo)[ \t]*:?[ \t]+(` + capName + `)`)
	nameLowerRE  = regexp.MustCompile(`(?i)(?:meu nome (?:é|eh|e)|me chamo)[ \t]*:?[ \t]+(\p{L}+(?:[ \t]+\p{L}+){1,3})[ \t]*(?:[,.;!?\n]|$)`)
	nameLineRE   = regexp.MustCompile(`(?m)^user:[ \t]*(` + capName + `)[ \t]*$`)

	emailRE = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

	phoneRE     = regexp.MustCompile(`(?:\+?55[ \t]?)?\(?(\d{2})\)?[ \t-]?(\d{4,5})[ \t-]?(\d{4})`)
	phoneBareRE = regexp.MustCompile(`\b(\d{11})\b`)

	budgetRE = regexp.MustCompile(`(?i)r\$[ \t]*(\d+(?:[.,]\d+)*)`)

	titleCaser = cases.Title(language.BrazilianPortuguese)
)

// ExtractTranscript applies every rule to a transcript made of
// "role: content" lines. TotalMessages is left at zero.
func ExtractTranscript(transcript string) domain.LeadProfile {
	t := norm.NFC.String(transcript)
	lower := strings.ToLower(t)

	return domain.LeadProfile{
		Name:             extractName(t),
		Email:            extractEmail(t),
		Phone:            extractPhone(t),
		BudgetRange:      extractBudget(t),
		Timeline:         extractTimeline(lower),
		FamilySituation:  extractFamily(lower),
		ImmigrationGoals: extractGoal(lower),
	}
}

func extractName(t string) *string {
	if m := namePhraseRE.FindStringSubmatch(t); m != nil && validName(m[1]) {
		return strPtr(collapseSpaces(m[1]))
	}
	if m := nameLowerRE.FindStringSubmatch(t); m != nil && validName(m[1]) {
		return strPtr(titleName(m[1]))
	}
	if m := nameLineRE.FindStringSubmatch(t); m != nil && validName(m[1]) {
		return strPtr(collapseSpaces(m[1]))
	}
	return nil
}

// validName accepts candidates with at least two tokens, no '@' and at
// least one non-digit.
func validName(s string) bool {
	s = strings.TrimSpace(s)
	if len(strings.Fields(s)) < 2 || strings.Contains(s, "@") {
		return false
	}
	for _, r := range s {
		if r != ' ' && r != '\t' && (r < '0' || r > '9') {
			return true
		}
	}
	return false
}

// titleName title-cases a lowercase name, keeping connecting particles lower.
func titleName(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		lw := strings.ToLower(w)
		switch lw {
		case "da", "de", "do", "das", "dos", "e":
			if i > 0 {
				words[i] = lw
				continue
			}
		}
		words[i] = titleCaser.String(lw)
	}
	return strings.Join(words, " ")
}

func collapseSpaces(s string) string { return strings.Join(strings.Fields(s), " ") }

func extractEmail(t string) *string {
	if m := emailRE.FindString(t); m != "" {
		return strPtr(strings.ToLower(m))
	}
	return nil
}

// extractPhone returns the first Brazilian-style number (area code, 4-5
// digit prefix, 4 digit suffix) not glued to other digits, falling back to
// a bare 11-digit run. The country code is not kept.
func extractPhone(t string) *string {
	for _, loc := range phoneRE.FindAllStringSubmatchIndex(t, -1) {
		if loc[0] > 0 && isDigit(t[loc[0]-1]) {
			continue
		}
		if loc[1] < len(t) && isDigit(t[loc[1]]) {
			continue
		}
		return strPtr(t[loc[2]:loc[3]] + t[loc[4]:loc[5]] + t[loc[6]:loc[7]])
	}
	if m := phoneBareRE.FindStringSubmatch(t); m != nil {
		return strPtr(m[1])
	}
	return nil
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func extractBudget(t string) *string {
	if m := budgetRE.FindStringSubmatch(t); m != nil {
		return strPtr("R$ " + m[1])
	}
	return nil
}

func extractTimeline(lower string) *string {
	switch {
	case containsAny(lower, "urgente", "rápido", "logo"):
		return strPtr(domain.TimelineShort)
	case containsAny(lower, "médio prazo", "ano que vem"):
		return strPtr(domain.TimelineMedium)
	case containsAny(lower, "longo prazo", "futuro"):
		return strPtr(domain.TimelineLong)
	}
	return nil
}

func extractFamily(lower string) *string {
	switch {
	case containsAny(lower, "casado", "casada", "esposa", "marido"):
		if strings.Contains(lower, "filho") {
			return strPtr("Casado(a) com filhos")
		}
		return strPtr("Casado(a)")
	case containsAny(lower, "solteiro", "solteira"):
		return strPtr("Solteiro(a)")
	}
	return nil
}

func extractGoal(lower string) *string {
	switch {
	case strings.Contains(lower, "trabalh"):
		return strPtr("Trabalho")
	case strings.Contains(lower, "estud"):
		return strPtr("Estudo")
	case strings.Contains(lower, "invest"):
		return strPtr("Investimento")
	}
	return nil
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func strPtr(s string) *string { return &s }
