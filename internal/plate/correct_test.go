package plate

import (
	"sync"
	"testing"
)

func TestCorrect(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "digit zero in leading digit slot",
			input:    "0B34567",
			expected: "OB34567",
		},
		{
			// '4' at index 5 sits in a digit slot and is a digit, so it flips too.
			name:     "letters in digit slots are left alone",
			input:    "AB1234Z",
			expected: "AB123A2",
		},
		{
			name:     "empty",
			input:    "",
			expected: "",
		},
		{
			name:     "trailing newline passes through",
			input:    "OB34567\n",
			expected: "OB34567\n",
		},
		{
			name:     "every digit-slot swap",
			input:    "01__48",
			expected: "OI__AB",
		},
		{
			name:     "every letter-slot swap",
			input:    "__OI__ZAB",
			expected: "__01__248",
		},
		{
			name:     "digits without a look-alike stay",
			input:    "23__59",
			expected: "23__59",
		},
		{
			name:     "lowercase letters are not in the table",
			input:    "__oi__zab",
			expected: "__oi__zab",
		},
		{
			name:     "whitespace and symbols around a digit-slot swap",
			input:    " -\t 0\r\n",
			expected: " -\t O\r\n",
		},
		{
			name:     "symbols in every slot pass through",
			input:    " -\t.#\r\n",
			expected: " -\t.#\r\n",
		},
		{
			name:     "long tail is letter-expected",
			input:    "0000000OOOO",
			expected: "OO00OO00000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Correct(tt.input)
			if result != tt.expected {
				t.Errorf("Correct(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

// The corrector turns digits into letters in digit slots and letters into
// digits in letter slots. This pins that direction so a change to it is a
// deliberate decision rather than an accident.
func TestCorrectSwapDirection(t *testing.T) {
	if got := Correct("1"); got != "I" {
		t.Errorf("digit slot: Correct(%q) = %q, want %q", "1", got, "I")
	}
	if got := Correct("__I"); got != "__1" {
		t.Errorf("letter slot: Correct(%q) = %q, want %q", "__I", got, "__1")
	}
	if got := Correct("I"); got != "I" {
		t.Errorf("letter in digit slot: Correct(%q) = %q, want %q", "I", got, "I")
	}
	if got := Correct("__1"); got != "__1" {
		t.Errorf("digit in letter slot: Correct(%q) = %q, want %q", "__1", got, "__1")
	}
}

func TestCorrectConvergesForDefaultLayout(t *testing.T) {
	inputs := []string{"0B34567", "AB1234Z", "01OI48ZAB", "8888888", "BBBBBBB\n"}
	for _, in := range inputs {
		once := Correct(in)
		twice := Correct(once)
		if once != twice {
			t.Errorf("Correct(Correct(%q)) = %q, want %q", in, twice, once)
		}
	}
}

func TestCorrectNotIdempotentInGeneral(t *testing.T) {
	flip := Layout{
		Name:            "flip",
		Rule:            func(int) Class { return ClassLetter },
		LetterSlotSwaps: map[byte]byte{'O': 'Q', 'Q': 'O'},
	}

	once := flip.Correct("OQ")
	twice := flip.Correct(once)
	if once != "QO" {
		t.Fatalf("first pass = %q, want %q", once, "QO")
	}
	if twice == once {
		t.Errorf("second pass = %q, expected it to keep flipping", twice)
	}
}

func TestCorrectNonASCII(t *testing.T) {
	in := "0é0ÖO\xff8"
	out := Correct(in)
	if len(out) != len(in) {
		t.Fatalf("length changed: %d -> %d", len(in), len(out))
	}
	// index 0 is a digit slot; the multi-byte runes are copied through untouched.
	if out[0] != 'O' {
		t.Errorf("out[0] = %q, want 'O'", out[0])
	}
	if out[1:3] != "é" {
		t.Errorf("multi-byte rune was altered: %q", out[1:3])
	}
}

func TestLayoutWithCustomRule(t *testing.T) {
	allDigits := Layout{
		Name:           "digits-only",
		Rule:           func(int) Class { return ClassDigit },
		DigitSlotSwaps: DefaultLayout.DigitSlotSwaps,
	}
	if got := allDigits.Correct("0148"); got != "OIAB" {
		t.Errorf("Correct = %q, want %q", got, "OIAB")
	}

	none := Layout{Name: "none"}
	if got := none.Correct("0148"); got != "0148" {
		t.Errorf("nil rule should pass through, got %q", got)
	}
}

func TestPositionTableRule(t *testing.T) {
	rule := DefaultPositions.Rule()
	expected := map[int]Class{
		0: ClassDigit, 1: ClassDigit, 2: ClassLetter, 3: ClassLetter,
		4: ClassDigit, 5: ClassDigit, 6: ClassLetter, 7: ClassLetter, 100: ClassLetter,
	}
	for i, want := range expected {
		if got := rule(i); got != want {
			t.Errorf("rule(%d) = %v, want %v", i, got, want)
		}
	}

	bounded := PositionTable{Digit: []int{0}, Letter: []int{1}}.Rule()
	if got := bounded(5); got != ClassNone {
		t.Errorf("bounded(5) = %v, want none", got)
	}
}

func TestCorrectConcurrent(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if got := Correct("0B34567"); got != "OB34567" {
					t.Errorf("Correct = %q", got)
					return
				}
			}
		}()
	}
	wg.Wait()
}

func FuzzCorrect(f *testing.F) {
	for _, seed := range []string{"", "0B34567", "AB1234Z", "OB34567\n", "日本0O", "\x00\xff"} {
		f.Add(seed)
	}
	f.Fuzz(func(t *testing.T, s string) {
		out := Correct(s)
		if len(out) != len(s) {
			t.Fatalf("len(Correct(%q)) = %d, want %d", s, len(out), len(s))
		}
		for i := 0; i < len(s); i++ {
			if s[i] != out[i] && (s[i] >= 0x80 || !(isDigit(s[i]) || isLetter(s[i]))) {
				t.Fatalf("byte %d (%q) changed to %q", i, s[i], out[i])
			}
		}
	})
}
