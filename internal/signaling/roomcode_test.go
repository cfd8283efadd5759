package signaling

import (
	"errors"
	"testing"
)

func TestNormalizeRoomCode(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "AB12CD", want: "AB12CD"},
		{in: "ab12cd", want: "AB12CD"},
		{in: "xY9zQ1", want: "XY9ZQ1"},
		{in: "", wantErr: true},
		{in: "AB12C", wantErr: true},
		{in: "AB12CDE", wantErr: true},
		{in: "AB-2CD", wantErr: true},
		{in: "AB 2CD", wantErr: true},
		{in: "ÄB12CD", wantErr: true},
		{in: " ab12cd ", wantErr: true},
		{in: "ab12cd\n", wantErr: true},
		{in: "\tAB12CD", wantErr: true},
	}

	for _, tt := range tests {
		got, err := NormalizeRoomCode(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidRoomCode) {
				t.Errorf("NormalizeRoomCode(%q) error = %v, want ErrInvalidRoomCode", tt.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("NormalizeRoomCode(%q) unexpected error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("NormalizeRoomCode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestGenerateRoomCode(t *testing.T) {
	seen := make(map[string]bool)
	for range 50 {
		code, err := GenerateRoomCode()
		if err != nil {
			t.Fatalf("GenerateRoomCode error: %v", err)
		}
		normalized, err := NormalizeRoomCode(code)
		if err != nil || normalized != code {
			t.Fatalf("generated code %q is not a normalized room code", code)
		}
		seen[code] = true
	}
	if len(seen) < 2 {
		t.Error("GenerateRoomCode returned the same code every time")
	}
}
