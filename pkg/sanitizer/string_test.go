package sanitizer

import "testing"

func TestTrimAndNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "trim spaces",
			input: "  Follow-up visit  ",
			want:  "Follow-up visit",
		},
		{
			name:  "multiple spaces between words",
			input: "Follow-up    visit",
			want:  "Follow-up visit",
		},
		{
			name:  "tabs and newlines",
			input: "Follow-up\t\nvisit",
			want:  "Follow-up visit",
		},
		{
			name:  "control characters dropped",
			input: "Follow\x00-up\x07",
			want:  "Follow-up",
		},
		{
			name:  "empty string",
			input: "",
			want:  "",
		},
		{
			name:  "only whitespace",
			input: "   \t\n  ",
			want:  "",
		},
		{
			name:  "preserve special characters",
			input: " Café & Spa™ ",
			want:  "Café & Spa™",
		},
		{
			name:  "hebrew characters",
			input: " ביקור חוזר ",
			want:  "ביקור חוזר",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TrimAndNormalize(tt.input)
			if got != tt.want {
				t.Errorf("TrimAndNormalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
			if again := TrimAndNormalize(got); again != got {
				t.Errorf("TrimAndNormalize is not idempotent: %q -> %q", got, again)
			}
		})
	}
}

func TestNormalizeMultiline(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "keeps line breaks",
			input: "Bring scans\nFasting required",
			want:  "Bring scans\nFasting required",
		},
		{
			name:  "windows line endings",
			input: "Bring scans\r\nFasting required",
			want:  "Bring scans\nFasting required",
		},
		{
			name:  "squeezes blank lines",
			input: "Bring scans\n\n\n\nFasting required",
			want:  "Bring scans\n\nFasting required",
		},
		{
			name:  "drops leading and trailing blank lines",
			input: "\n\n  Bring scans  \n\n",
			want:  "Bring scans",
		},
		{
			name:  "normalizes inside lines",
			input: "Bring   scans\t please",
			want:  "Bring scans please",
		},
		{
			name:  "empty",
			input: " \n \n ",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeMultiline(tt.input)
			if got != tt.want {
				t.Errorf("NormalizeMultiline(%q) = %q, want %q", tt.input, got, tt.want)
			}
			if again := NormalizeMultiline(got); again != got {
				t.Errorf("NormalizeMultiline is not idempotent: %q -> %q", got, again)
			}
		})
	}
}
