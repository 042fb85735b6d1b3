package runner

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		status int
		class  Classification
		glyph  string
	}{
		{200, ClassOK, "😎"},
		{500, ClassInternalServerError, "😡"},
		{408, ClassRequestTimeout, "⏱️"},
		{204, ClassNoContent, "😭"},
		{404, ClassNotFound, "❓"},
		{405, ClassMethodNotAllowed, "🚫"},
		{429, "429", "429"},
		{302, "302", "302"},
	}

	for _, tt := range tests {
		got := Classify(tt.status)
		if got != tt.class {
			t.Errorf("Classify(%d) = %q, want %q", tt.status, got, tt.class)
		}
		if got.Glyph() != tt.glyph {
			t.Errorf("Classify(%d).Glyph() = %q, want %q", tt.status, got.Glyph(), tt.glyph)
		}
		if again := Classify(tt.status); again != got {
			t.Errorf("Classify(%d) not stable: %q then %q", tt.status, got, again)
		}
	}
}

func TestClassification_Known(t *testing.T) {
	for _, c := range LegendOrder {
		if !c.Known() {
			t.Errorf("Expected %s to be known", c)
		}
	}
	if Classify(503).Known() {
		t.Error("Expected 503 to be unknown")
	}
	if len(LegendOrder) != len(knownClasses) {
		t.Errorf("Legend has %d entries, classifier knows %d", len(LegendOrder), len(knownClasses))
	}
}

func TestCallRecord_Glyph(t *testing.T) {
	rec := CallRecord{}
	if rec.Glyph() != GlyphTransportError {
		t.Errorf("Expected transport glyph for record without status, got %s", rec.Glyph())
	}
	rec.Status = 404
	rec.Class = Classify(404)
	if rec.Glyph() != "❓" {
		t.Errorf("Expected ❓, got %s", rec.Glyph())
	}
}
