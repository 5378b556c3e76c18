package services

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// handoffKeywords are lowercase phrases that ask for a human agent, voice a
// complaint or cancellation, or claim an existing subscription.
var handoffKeywords = []string{
	"falar com consultor",
	"falar com humano",
	"atendente",
	"pessoa real",
	"alguém da equipe",
	"não entendi",
	"problema com assinatura",
	"já sou assinante",
	"reclamação",
	"cancelar",
}

// NeedsHuman reports whether the user's raw text matches any handoff phrase,
// case-insensitively. It only looks at the user's text, never the reply.
func NeedsHuman(text string) bool {
	lower := strings.ToLower(norm.NFC.String(text))
	for _, k := range handoffKeywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}
