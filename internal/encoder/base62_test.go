package encoder

import "testing"

func TestEncode(t *testing.T) {
	tests := []struct {
		name     string
		input    uint64
		expected string
	}{
		{"zero is empty", 0, ""},
		{"single digit", 5, "5"},
		{"ten becomes 'a'", 10, "a"},
		{"thirty-five becomes 'z'", 35, "z"},
		{"thirty-six becomes 'A'", 36, "A"},
		{"sixty-one becomes 'Z'", 61, "Z"},
		{"sixty-two becomes '10'", 62, "10"},
		{"counter seed", 3844, "100"},
		{"first generated alias", 3845, "101"},
		{"large number", 12345, "3d7"},
		{"million", 1000000, "4c92"},
		{"realistic ID", 123456789, "8m0Kx"},
		{"max uint64", ^uint64(0), "lYGhA16ahyf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Encode(tt.input)
			if result != tt.expected {
				t.Errorf("Encode(%d) = %q; want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected uint64
	}{
		{"empty", "", 0},
		{"letter 'a' is 10", "a", 10},
		{"letter 'Z' is 61", "Z", 61},
		{"'10' is 62", "10", 62},
		{"million", "4c92", 1000000},
		{"realistic ID", "8m0Kx", 123456789},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Decode(tt.input)
			if err != nil {
				t.Fatalf("Decode(%q) error: %v", tt.input, err)
			}
			if result != tt.expected {
				t.Errorf("Decode(%q) = %d; want %d", tt.input, result, tt.expected)
			}
		})
	}
}

func TestDecodeRejectsSeparators(t *testing.T) {
	for _, in := range []string{"ab-c", "a_b", "a b", "é"} {
		if _, err := Decode(in); err != ErrInvalidCharacter {
			t.Errorf("Decode(%q) error = %v; want ErrInvalidCharacter", in, err)
		}
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	testNumbers := []uint64{1, 10, 61, 62, 100, 1000, 3844, 12345, 999999, 123456789, ^uint64(0)}

	for _, num := range testNumbers {
		encoded := Encode(num)
		decoded, err := Decode(encoded)
		if err != nil || decoded != num {
			t.Errorf("Round trip failed: %d -> %s -> %d (%v)", num, encoded, decoded, err)
		}
	}
}

func TestIsValid(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"", false},
		{"promo", true},
		{"Promo2024", true},
		{"my-link", false},
		{"my_link", false},
		{"../admin", false},
	}
	for _, tt := range tests {
		if got := IsValid(tt.in); got != tt.want {
			t.Errorf("IsValid(%q) = %v; want %v", tt.in, got, tt.want)
		}
	}
}
