package domain

// LeadProfile is the partial lead derived from a transcript. A nil field
// means no pattern matched, not that the value is known to be empty.
type LeadProfile struct {
	Name             *string `json:"name,omitempty"`
	Email            *string `json:"email,omitempty"`
	Phone            *string `json:"phone,omitempty"`
	FamilySituation  *string `json:"family_situation,omitempty"`
	ImmigrationGoals *string `json:"immigration_goals,omitempty"`
	BudgetRange      *string `json:"budget_range,omitempty"`
	Timeline         *string `json:"timeline,omitempty"`
	TotalMessages    int     `json:"total_messages"`
}

// HasAny reports whether at least one profile field was extracted.
// TotalMessages does not count.
func (p LeadProfile) HasAny() bool {
	for _, f := range p.fields() {
		if present(f) {
			return true
		}
	}
	return false
}

// CompletedFields counts the qualification attributes that are present:
// name, family situation, immigration goal, budget and timeline.
func (p LeadProfile) CompletedFields() int {
	n := 0
	for _, f := range []*string{p.Name, p.FamilySituation, p.ImmigrationGoals, p.BudgetRange, p.Timeline} {
		if present(f) {
			n++
		}
	}
	return n
}

func (p LeadProfile) fields() []*string {
	return []*string{p.Name, p.Email, p.Phone, p.FamilySituation, p.ImmigrationGoals, p.BudgetRange, p.Timeline}
}
