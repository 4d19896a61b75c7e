package advisor

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"

	"github.com/vaskular/vaskular-backend/internal/model"
)

func TestRenderPrompt_Golden(t *testing.T) {
	tests := []struct {
		name string
		rec  model.ScoreRecord
	}{
		{
			name: "prompt_whole_numbers",
			rec:  model.ScoreRecord{Circulation: 80, Oxygen: 95, SwellingRisk: 10, Fatigue: 20},
		},
		{
			name: "prompt_fractional_out_of_range",
			rec:  model.ScoreRecord{Circulation: 72.5, Oxygen: 98.25, SwellingRisk: -3, Fatigue: 140},
		},
	}

	g := goldie.New(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g.Assert(t, tt.name, []byte(RenderPrompt(&tt.rec)))
		})
	}
}

func TestRenderPrompt_ContainsValuesVerbatim(t *testing.T) {
	prompt := RenderPrompt(&model.ScoreRecord{Circulation: 80, Oxygen: 95, SwellingRisk: 10, Fatigue: 20})

	for _, want := range []string{"Circulation: 80%", "Oxygen: 95%", "Swelling Risk: 10%", "Fatigue: 20%"} {
		assert.Contains(t, prompt, want)
	}
	assert.Contains(t, prompt, "optimal recovery")
}
