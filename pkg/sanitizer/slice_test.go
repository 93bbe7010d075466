package sanitizer

import (
	"reflect"
	"testing"
)

func TestNormalizeOrigins(t *testing.T) {
	tests := []struct {
		name  string
		input []string
		want  []string
	}{
		{
			name:  "lowercase and strip path",
			input: []string{"HTTPS://App.Example.com/editor/"},
			want:  []string{"https://app.example.com"},
		},
		{
			name:  "keep port",
			input: []string{"http://localhost:3000"},
			want:  []string{"http://localhost:3000"},
		},
		{
			name:  "wildcard passes through",
			input: []string{" * "},
			want:  []string{"*"},
		},
		{
			name:  "remove duplicates",
			input: []string{"https://a.example.com", "https://A.example.com/", "https://a.example.com"},
			want:  []string{"https://a.example.com"},
		},
		{
			name:  "drop entries without scheme",
			input: []string{"app.example.com", "", "https://b.example.com"},
			want:  []string{"https://b.example.com"},
		},
		{
			name:  "empty input",
			input: nil,
			want:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeOrigins(tt.input)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("NormalizeOrigins(%v) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
