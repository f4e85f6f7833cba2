package validation

import (
	"regexp"
	"strings"
	"testing"
)

var emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

func TestOptional(t *testing.T) {
	tests := []struct {
		name   string
		value  string
		errMsg string
	}{
		{name: "empty allowed", value: ""},
		{name: "whitespace only allowed", value: "   "},
		{name: "within limit", value: "Ada Lovelace"},
		{name: "exactly at limit", value: strings.Repeat("a", 20)},
		{name: "unicode counted by rune", value: strings.Repeat("é", 20)},
		{name: "too long", value: strings.Repeat("a", 21), errMsg: "Full name cannot exceed 20 characters."},
		{name: "trimmed before counting", value: "  " + strings.Repeat("a", 20) + "  "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Optional("Full name", 20)(tt.value); got != tt.errMsg {
				t.Errorf("Optional() = %q, want %q", got, tt.errMsg)
			}
		})
	}
}

func TestPattern(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{name: "matches pattern", value: "ada@uni.edu"},
		{name: "empty string allowed", value: ""},
		{name: "whitespace trimmed before validation", value: "  ada@uni.edu  "},
		{name: "missing at sign", value: "ada.uni.edu", wantErr: true},
		{name: "missing domain dot", value: "ada@localhost", wantErr: true},
		{name: "embedded space", value: "ada lovelace@uni.edu", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Pattern("Email", emailRe)(tt.value)
			if tt.wantErr && err != "Email has an invalid format." {
				t.Errorf("Pattern() = %q, want format error", err)
			}
			if !tt.wantErr && err != "" {
				t.Errorf("Pattern() unexpected error: %v", err)
			}
		})
	}
}

func TestFieldValidator_MultipleFields(t *testing.T) {
	errs := New().
		Validate("full_name", "Ada", Optional("Full name", 10)).
		Validate("email", "ada@uni.edu", Optional("Email", 254), Pattern("Email", emailRe)).
		Errors()
	if len(errs) != 0 {
		t.Errorf("Expected no errors, got %v", errs)
	}
}

func TestFieldValidator_MultipleFieldsWithErrors(t *testing.T) {
	errs := New().
		Validate("full_name", strings.Repeat("x", 11), Optional("Full name", 10)).
		Validate("email", "nope", Optional("Email", 254), Pattern("Email", emailRe)).
		Errors()
	if len(errs) != 2 {
		t.Fatalf("Expected 2 errors, got %v", errs)
	}
	if errs["full_name"] != "Full name cannot exceed 10 characters." {
		t.Errorf("full_name = %q", errs["full_name"])
	}
	if errs["email"] != "Email has an invalid format." {
		t.Errorf("email = %q", errs["email"])
	}
}

func TestFieldValidator_StopsAtFirstError(t *testing.T) {
	long := strings.Repeat("x", 300)
	errs := New().Validate("email", long, Optional("Email", 254), Pattern("Email", emailRe)).Errors()
	// Length fails first; Pattern is never consulted.
	if errs["email"] != "Email cannot exceed 254 characters." {
		t.Errorf("email = %q", errs["email"])
	}
}

func TestFieldValidator_EmptyErrors(t *testing.T) {
	if errs := New().Errors(); len(errs) != 0 {
		t.Errorf("Expected empty errors map, got %v", errs)
	}
}
