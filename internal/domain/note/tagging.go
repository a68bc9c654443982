package note

import "strings"

// Clinical pillars assigned by keyword matching.
const (
	PillarMetabolic = "Metabolic"
	PillarCardiac   = "Cardiac"
	PillarHighRisk  = "High Risk"
)

// Rule attaches Pillar when any trigger occurs in the lower-cased content.
type Rule struct {
	Triggers []string
	Pillar   string
}

// Rules are evaluated independently, in order. Matching is a plain
// substring test, so "bp" also fires inside longer words.
var Rules = []Rule{
	{Triggers: []string{"diabetes"}, Pillar: PillarMetabolic},
	{Triggers: []string{"bp", "hypertension"}, Pillar: PillarCardiac},
	{Triggers: []string{"urgent"}, Pillar: PillarHighRisk},
}

// DeriveTags returns the pillars whose rules match content, in rule order.
func DeriveTags(content string) []string {
	lower := strings.ToLower(content)
	tags := make([]string, 0, len(Rules))
	for _, rule := range Rules {
		for _, trigger := range rule.Triggers {
			if strings.Contains(lower, trigger) {
				tags = append(tags, rule.Pillar)
				break
			}
		}
	}
	return tags
}
