package models

import "testing"

func TestQueryInputValidate(t *testing.T) {
	tests := []struct {
		name          string
		input         QueryInput
		wantErr       bool
		wantTopK      int
		wantThreshold float64
	}{
		{
			name:    "empty query",
			input:   QueryInput{},
			wantErr: true,
		},
		{
			name:          "defaults applied",
			input:         QueryInput{Query: "q"},
			wantTopK:      3,
			wantThreshold: 0.6,
		},
		{
			name:          "explicit values kept",
			input:         QueryInput{Query: "q", TopK: 7, Threshold: 0.9},
			wantTopK:      7,
			wantThreshold: 0.9,
		},
		{
			name:          "top_k clamped to max",
			input:         QueryInput{Query: "q", TopK: 5000},
			wantTopK:      100,
			wantThreshold: 0.6,
		},
		{
			name:          "negative threshold clamped to zero",
			input:         QueryInput{Query: "q", Threshold: -0.5},
			wantTopK:      3,
			wantThreshold: 0,
		},
		{
			name:          "threshold clamped to one",
			input:         QueryInput{Query: "q", Threshold: 1.5},
			wantTopK:      3,
			wantThreshold: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.input.Validate(3, 100, 0.6)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if tt.input.TopK != tt.wantTopK {
				t.Errorf("TopK = %d, want %d", tt.input.TopK, tt.wantTopK)
			}
			if tt.input.Threshold != tt.wantThreshold {
				t.Errorf("Threshold = %v, want %v", tt.input.Threshold, tt.wantThreshold)
			}
		})
	}
}
