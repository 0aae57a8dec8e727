package emitter

import (
	"testing"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/stretchr/testify/assert"
)

func TestStateFor(t *testing.T) {
	tests := []struct {
		name    string
		mapping *models.Mapping
		want    ResultState
	}{
		{name: "no mapping", mapping: nil, want: Pending},
		{name: "undecided", mapping: &models.Mapping{Score: models.Float(0.7)}, want: Pending},
		{name: "undecided with judgement", mapping: &models.Mapping{Judgement: models.Bool(false)}, want: Pending},
		{name: "decided true", mapping: &models.Mapping{Decided: true, Judgement: models.Bool(true)}, want: Active},
		{name: "decided similar", mapping: &models.Mapping{Decided: true}, want: Active},
		{name: "decided false", mapping: &models.Mapping{Decided: true, Judgement: models.Bool(false)}, want: Rejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StateFor(tt.mapping))
		})
	}
}

func TestResultState_String(t *testing.T) {
	assert.Equal(t, "pending", Pending.String())
	assert.Equal(t, "active", Active.String())
	assert.Equal(t, "rejected", Rejected.String())
}
