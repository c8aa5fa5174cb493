package country

import "testing"

func TestToISO3(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"PK", "PAK"},
		{"pk", "PAK"},
		{"GB", "GBR"},
		{"UK", "GBR"},
		{"us", "USA"},
		{"", ""},
		{"ZZ", ""},
	}

	for _, tt := range tests {
		if got := ToISO3(tt.in); got != tt.want {
			t.Errorf("ToISO3(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
