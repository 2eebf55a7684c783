package taxonomy

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"lowercases", "Oil Change", "oil change"},
		{"trims and collapses whitespace", "  Oil \t  Change\n", "oil change"},
		{"empty", "", ""},
		{"only whitespace", "   ", ""},
		{"full width compatibility form", "Ｂｒａｋｅｓ", "brakes"},
		{"german sharp s folds", "Straße", "strasse"},
		{"unicode preserved", "Ölwechsel", "ölwechsel"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeName(tt.input); got != tt.want {
				t.Errorf("NormalizeName(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestCleanName(t *testing.T) {
	if got := CleanName("  Pad   Replacement "); got != "Pad Replacement" {
		t.Errorf("CleanName = %q, want %q", got, "Pad Replacement")
	}
}

func TestKeys(t *testing.T) {
	sectorID := uuid.New()

	a := Category{SectorID: sectorID, Name: "Brake Jobs"}
	b := Category{SectorID: sectorID, Name: "  brake   JOBS"}
	if a.Key() != b.Key() {
		t.Errorf("keys differ: %+v vs %+v", a.Key(), b.Key())
	}

	c := Category{SectorID: uuid.New(), Name: "Brake Jobs"}
	if a.Key() == c.Key() {
		t.Error("keys under different parents must differ")
	}

	if (Sector{Name: "Automotive"}).Key().Parent != uuid.Nil {
		t.Error("sector key must have nil parent")
	}
}

func TestLevelParent(t *testing.T) {
	tests := map[Level]Level{
		LevelSector:      "",
		LevelCategory:    LevelSector,
		LevelSubcategory: LevelCategory,
		LevelJob:         LevelSubcategory,
	}
	for level, want := range tests {
		if got := level.Parent(); got != want {
			t.Errorf("%s.Parent() = %q, want %q", level, got, want)
		}
	}
}

// ============================================================================
// Error Tests
// ============================================================================

func TestError_Message(t *testing.T) {
	err := &Error{
		Kind:   KindStore,
		Stage:  "reconciling",
		Level:  LevelJob,
		Name:   "Oil Change",
		Parent: "Engine",
		Err:    errors.New("connection reset"),
	}

	msg := err.Error()
	for _, part := range []string{"StoreError", "reconciling", "job", "Oil Change", "Engine", "connection reset"} {
		if !strings.Contains(msg, part) {
			t.Errorf("message %q missing %q", msg, part)
		}
	}
}

func TestError_FileAndLine(t *testing.T) {
	err := NewValidationError(LevelJob, "X", 7, "name too long")
	err.File = "brakes.csv"
	if !strings.Contains(err.Error(), "brakes.csv:7") {
		t.Errorf("message %q missing file:line", err.Error())
	}
}

func TestError_UnwrapAndKind(t *testing.T) {
	base := &Error{Kind: KindReferential, Err: ErrMissingParent}
	wrapped := fmt.Errorf("reconcile: %w", base)

	if !errors.Is(wrapped, ErrMissingParent) {
		t.Error("errors.Is should reach the sentinel")
	}
	if !IsKind(wrapped, KindReferential) {
		t.Error("IsKind should find the referential error")
	}
	if IsKind(wrapped, KindStore) {
		t.Error("IsKind matched the wrong kind")
	}
	if IsRetryable(wrapped) {
		t.Error("referential errors are not retryable")
	}
}

func TestError_Retryable(t *testing.T) {
	tests := []struct {
		kind Kind
		want bool
	}{
		{KindParse, false},
		{KindValidation, false},
		{KindReferential, false},
		{KindStore, true},
	}
	for _, tt := range tests {
		err := &Error{Kind: tt.kind}
		if got := err.Retryable(); got != tt.want {
			t.Errorf("%s.Retryable() = %v, want %v", tt.kind, got, tt.want)
		}
	}
}
