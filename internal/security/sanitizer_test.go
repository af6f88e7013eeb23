package security

import "testing"

func TestTextSanitizer_Sanitize(t *testing.T) {
	s := NewTextSanitizer()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"plain text", "Irrigate north field today", "Irrigate north field today"},
		{"script removed", `Alert<script>alert(1)</script>`, "Alert"},
		{"tags stripped", `<b>Low</b> soil moisture`, "Low soil moisture"},
		{"entities restored", "Soil & water < 20%", "Soil & water < 20%"},
		{"event attribute", `<img src=x onerror=alert(1)>Check pump`, "Check pump"},
		{"trimmed", "  spaced  ", "spaced"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.Sanitize(tt.input); got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestTextSanitizer_Idempotent(t *testing.T) {
	s := NewTextSanitizer()
	input := `<p>Frost risk & high wind</p>`

	once := s.Sanitize(input)
	if twice := s.Sanitize(once); twice != once {
		t.Errorf("Sanitize is not idempotent: %q -> %q", once, twice)
	}
}
