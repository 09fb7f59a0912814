package nerr

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

// -----------------------------------------------------------------------------
// Construction
// -----------------------------------------------------------------------------

func TestNew(t *testing.T) {
	err := New(ErrInvalidKey, "unknown field key")

	if err.GetCode() != ErrInvalidKey {
		t.Errorf("GetCode() = %q, want %q", err.GetCode(), ErrInvalidKey)
	}
	if err.GetMessage() != "unknown field key" {
		t.Errorf("GetMessage() = %q, want %q", err.GetMessage(), "unknown field key")
	}
}

func TestNewf(t *testing.T) {
	err := Newf(ErrUnknownType, "type %q matched %d rows", "Profile", 2)

	want := `type "Profile" matched 2 rows`
	if err.GetMessage() != want {
		t.Errorf("GetMessage() = %q, want %q", err.GetMessage(), want)
	}
}

func TestErrorFormat(t *testing.T) {
	err := New(ErrInvalidKey, "unknown field key").
		WithKey("naame").
		WithTable("documents").
		WithHelp("did you mean 'name'?")

	got := err.Error()

	if !strings.HasPrefix(got, "[E1001] unknown field key") {
		t.Errorf("Error() should start with code and message, got %q", got)
	}
	// Context keys are sorted: help < key < table
	helpIdx := strings.Index(got, "help:")
	keyIdx := strings.Index(got, "key:")
	tableIdx := strings.Index(got, "table:")
	if helpIdx == -1 || keyIdx == -1 || tableIdx == -1 {
		t.Fatalf("Error() missing context lines: %q", got)
	}
	if !(helpIdx < keyIdx && keyIdx < tableIdx) {
		t.Errorf("context keys not sorted in output: %q", got)
	}
}

// -----------------------------------------------------------------------------
// Wrapping
// -----------------------------------------------------------------------------

func TestWrap(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := Wrap(ErrSQLExecution, cause, "failed to create index")

	if !errors.Is(err, cause) {
		t.Error("errors.Is should match the wrapped cause")
	}
	if !strings.Contains(err.Error(), "cause: connection refused") {
		t.Errorf("Error() should include cause, got %q", err.Error())
	}
}

func TestWrapNil(t *testing.T) {
	err := Wrap(ErrSQLExecution, nil, "no cause")
	if err.Unwrap() != nil {
		t.Error("Wrap(nil) should have no cause")
	}
}

// -----------------------------------------------------------------------------
// Code matching
// -----------------------------------------------------------------------------

func TestIs(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code Code
		want bool
	}{
		{"matching code", New(ErrInvalidPredicate, "bad array"), ErrInvalidPredicate, true},
		{"different code", New(ErrInvalidPredicate, "bad array"), ErrInvalidKey, false},
		{"wrapped nerr", fmt.Errorf("outer: %w", New(ErrNoIdentifyingKey, "no id")), ErrNoIdentifyingKey, true},
		{"plain error", fmt.Errorf("plain"), ErrInvalidKey, false},
		{"nil error", nil, ErrInvalidKey, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.code); got != tt.want {
				t.Errorf("Is() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestErrorsIsByCode(t *testing.T) {
	err := New(ErrIndexVerification, "definition mismatch")
	target := New(ErrIndexVerification, "different message")

	if !errors.Is(err, target) {
		t.Error("errors with the same code should match via errors.Is")
	}
}

func TestGetErrorCode(t *testing.T) {
	if got := GetErrorCode(nil); got != "" {
		t.Errorf("GetErrorCode(nil) = %q, want empty", got)
	}
	if got := GetErrorCode(fmt.Errorf("plain")); got != "" {
		t.Errorf("GetErrorCode(plain) = %q, want empty", got)
	}
	if got := GetErrorCode(New(ErrUnknownType, "x")); got != ErrUnknownType {
		t.Errorf("GetErrorCode() = %q, want %q", got, ErrUnknownType)
	}
}

// -----------------------------------------------------------------------------
// Fuzzy suggestions
// -----------------------------------------------------------------------------

func TestFindClosestMatch(t *testing.T) {
	options := []string{"name", "email", "created", "modified"}

	tests := []struct {
		input     string
		wantMatch string
		wantOK    bool
	}{
		{"naame", "name", true},
		{"emial", "email", true},
		{"craeted", "created", true},
		{"$naame", "name", true},
		{"zzzzzzzz", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			match, ok := FindClosestMatch(tt.input, options)
			if match != tt.wantMatch || ok != tt.wantOK {
				t.Errorf("FindClosestMatch(%q) = (%q, %v), want (%q, %v)",
					tt.input, match, ok, tt.wantMatch, tt.wantOK)
			}
		})
	}
}

func TestSuggestSimilar(t *testing.T) {
	got := SuggestSimilar("naame", []string{"name", "email"})
	want := "did you mean 'name'?"
	if got != want {
		t.Errorf("SuggestSimilar() = %q, want %q", got, want)
	}

	if got := SuggestSimilar("qqqqqqq", []string{"name"}); got != "" {
		t.Errorf("SuggestSimilar() = %q, want empty", got)
	}
}
