package conversation

import "testing"

func TestWakeDetector_Substring(t *testing.T) {
	t.Parallel()

	d := NewWakeDetector("assistant", false)

	tests := []struct {
		text string
		want bool
	}{
		{"hey assistant please", true},
		{"HEY ASSISTANT", true},
		{"assistant", true},
		{"what time is it", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := d.Match(tt.text); got != tt.want {
			t.Errorf("Match(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestWakeDetector_EmptyWordNeverMatches(t *testing.T) {
	t.Parallel()

	d := NewWakeDetector("", true)
	if d.Match("anything at all") {
		t.Error("empty wake word matched")
	}
}

func TestWakeDetector_Phonetic(t *testing.T) {
	t.Parallel()

	exact := NewWakeDetector("assistant", false)
	fuzzy := NewWakeDetector("assistant", true)

	// Recognizers routinely drop doubled letters; the phonetic pass should
	// absorb that, the exact pass should not.
	misheard := "hey asistant what time is it"
	if exact.Match(misheard) {
		t.Error("substring matcher matched a misspelling")
	}
	if !fuzzy.Match(misheard) {
		t.Error("phonetic matcher missed a near-homophone")
	}

	// Phonetic matching must not loosen into matching unrelated words.
	if fuzzy.Match("turn on the kitchen lights") {
		t.Error("phonetic matcher matched unrelated text")
	}
}

func TestWakeDetector_PhoneticPhrase(t *testing.T) {
	t.Parallel()

	d := NewWakeDetector("echo form", true)
	if !d.Match("okay ecko form do the thing") {
		t.Error("phonetic matcher missed a misspelled phrase")
	}
}
