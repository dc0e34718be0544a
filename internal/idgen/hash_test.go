package idgen

import (
	"errors"
	"strings"
	"testing"
	"time"
)

var sampleContent = Content{
	Title:   "Fix login",
	Creator: "dana",
	Created: time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC),
}

func TestHashID_Deterministic(t *testing.T) {
	id1 := HashID("tl-", sampleContent, 0, 5)
	id2 := HashID("tl-", sampleContent, 0, 5)

	if id1 != id2 {
		t.Errorf("HashID not deterministic: %q != %q", id1, id2)
	}
}

func TestHashID_Shape(t *testing.T) {
	for length := MinLength; length <= MaxLength; length++ {
		id := HashID("tl-", sampleContent, 0, length)
		if !strings.HasPrefix(id, "tl-") {
			t.Fatalf("missing prefix: %q", id)
		}
		suffix := strings.TrimPrefix(id, "tl-")
		if len(suffix) != length {
			t.Errorf("length %d: got %q", length, suffix)
		}
		for _, r := range suffix {
			if !(r >= '0' && r <= '9' || r >= 'a' && r <= 'z') {
				t.Errorf("non-base36 character %q in %q", r, id)
			}
		}
	}
}

func TestHashID_DifferentNonce(t *testing.T) {
	id0 := HashID("tl-", sampleContent, 0, 5)
	id1 := HashID("tl-", sampleContent, 1, 5)

	if id0 == id1 {
		t.Errorf("Different nonces should produce different IDs: both %q", id0)
	}
}

func TestHashID_DifferentContent(t *testing.T) {
	other := sampleContent
	other.Title = "Fix logout"
	if HashID("tl-", sampleContent, 0, 6) == HashID("tl-", other, 0, 6) {
		t.Error("Different titles should produce different IDs")
	}
}

func TestGenerate_SkipsTaken(t *testing.T) {
	first := HashID("tl-", sampleContent, 0, MinLength)
	second := HashID("tl-", sampleContent, 1, MinLength)

	got, err := Generate("tl-", sampleContent, 0, 0, func(id string) bool { return id == first })
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != second {
		t.Errorf("Generate = %q, want %q", got, second)
	}
}

func TestGenerate_GrowsLength(t *testing.T) {
	got, err := Generate("tl-", sampleContent, 0, 0, func(id string) bool {
		return len(id) == len("tl-")+MinLength
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(got) != len("tl-")+MinLength+1 {
		t.Errorf("Generate = %q, want length %d suffix", got, MinLength+1)
	}
}

func TestGenerate_MinLength(t *testing.T) {
	got, err := Generate("tl-", sampleContent, 6, 0, func(string) bool { return false })
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != HashID("tl-", sampleContent, 0, 6) {
		t.Errorf("Generate = %q, want 6-character hash", got)
	}
}

func TestGenerate_Exhausted(t *testing.T) {
	_, err := Generate("tl-", sampleContent, 0, 0, func(string) bool { return true })
	if !errors.Is(err, ErrExhausted) {
		t.Errorf("err = %v, want ErrExhausted", err)
	}
}

func TestNormalizePrefix(t *testing.T) {
	tests := map[string]string{
		"tl":    "tl-",
		"TL-":   "tl-",
		"-ops-": "ops-",
		"":      "",
		"  ":    "",
	}
	for in, want := range tests {
		if got := NormalizePrefix(in); got != want {
			t.Errorf("NormalizePrefix(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestAdaptiveLength(t *testing.T) {
	tests := []struct {
		name  string
		count int
		want  int
	}{
		{"zero issues", 0, MinLength},
		{"few issues", 10, MinLength},
		{"100 issues still length 3", 100, MinLength},
		{"200 issues need length 4", 200, 4},
		{"900 issues stay at length 4", 900, 4},
		{"1000 issues need length 5", 1000, 5},
		{"5000 issues stay at length 5", 5000, 5},
		{"6000 issues need length 6", 6000, 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AdaptiveLength(tt.count); got != tt.want {
				t.Errorf("AdaptiveLength(%d) = %d, want %d", tt.count, got, tt.want)
			}
		})
	}
}
