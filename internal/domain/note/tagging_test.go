package note

import (
	"reflect"
	"testing"
)

func TestDeriveTags(t *testing.T) {
	tests := []struct {
		content string
		want    []string
	}{
		{"Patient reports history of Diabetes and frequent thirst.", []string{PillarMetabolic}},
		{"URGENT: Blood pressure critical. Hypertension detected.", []string{PillarCardiac, PillarHighRisk}},
		{"Routine checkup. No issues.", []string{}},
		{"BP 150/95 recorded", []string{PillarCardiac}},
		{"diabetes with hypertension, urgent follow-up", []string{PillarMetabolic, PillarCardiac, PillarHighRisk}},
		{"bp and hypertension both mentioned", []string{PillarCardiac}},
		{"", []string{}},
	}

	for _, tt := range tests {
		got := DeriveTags(tt.content)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("DeriveTags(%q) = %v, want %v", tt.content, got, tt.want)
		}
	}
}

func TestDeriveTags_SubstringMatch(t *testing.T) {
	// "bp" matches inside unrelated words; the rules are plain substring tests.
	got := DeriveTags("Subpleural nodule")
	if len(got) != 1 || got[0] != PillarCardiac {
		t.Errorf("expected substring match on bp, got %v", got)
	}
}
