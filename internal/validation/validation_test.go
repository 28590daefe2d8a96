package validation

import "testing"

func TestIsValidEmail(t *testing.T) {
	tests := []struct {
		name  string
		email string
		valid bool
	}{
		{name: "plain", email: "reader@example.com", valid: true},
		{name: "subdomain", email: "a.b@mail.example.org", valid: true},
		{name: "empty", email: "", valid: false},
		{name: "no at", email: "reader.example.com", valid: false},
		{name: "no tld", email: "reader@localhost", valid: false},
		{name: "display name", email: "Reader <reader@example.com>", valid: false},
		{name: "trailing dot", email: "reader@example.", valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidEmail(tt.email); got != tt.valid {
				t.Fatalf("IsValidEmail(%q) = %v, want %v", tt.email, got, tt.valid)
			}
		})
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  Reader@Example.COM "); got != "reader@example.com" {
		t.Fatalf("NormalizeEmail = %q", got)
	}
}

func TestIsValidUsername(t *testing.T) {
	tests := []struct {
		username string
		valid    bool
	}{
		{"ab", false},
		{"abc", true},
		{"otaku_99-fan", true},
		{"with space", false},
		{"кириллица", false},
		{"abcdefghijklmnopqrstuvwxyz01234", false},
	}

	for _, tt := range tests {
		if got := IsValidUsername(tt.username); got != tt.valid {
			t.Errorf("IsValidUsername(%q) = %v, want %v", tt.username, got, tt.valid)
		}
	}
}

func TestIsValidPassword(t *testing.T) {
	if IsValidPassword("short") {
		t.Error("short password accepted")
	}
	if !IsValidPassword("longenough") {
		t.Error("valid password rejected")
	}
	long := make([]byte, PasswordMaxLen+1)
	for i := range long {
		long[i] = 'a'
	}
	if IsValidPassword(string(long)) {
		t.Error("password longer than bcrypt limit accepted")
	}
}

func TestIsValidOTPCode(t *testing.T) {
	tests := []struct {
		code  string
		valid bool
	}{
		{"123456", true},
		{"12345", false},
		{"1234567", false},
		{"12a456", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := IsValidOTPCode(tt.code); got != tt.valid {
			t.Errorf("IsValidOTPCode(%q) = %v, want %v", tt.code, got, tt.valid)
		}
	}
}

func TestIsUUID(t *testing.T) {
	if !IsUUID("3f1c2a9e-7b4d-4c1e-9a55-0d2b6f8e1a77") {
		t.Error("valid uuid rejected")
	}
	if IsUUID("not-a-uuid") {
		t.Error("malformed id accepted")
	}
	if IsUUID("{3f1c2a9e-7b4d-4c1e-9a55-0d2b6f8e1a77}") {
		t.Error("braced uuid accepted")
	}
}

func TestMissingAddressField(t *testing.T) {
	if got := MissingAddressField("Main st 1", "Tokyo", "JP", "100-0001"); got != "" {
		t.Fatalf("complete address reported missing %q", got)
	}
	if got := MissingAddressField("Main st 1", "Tokyo", "JP", " "); got != "zipCode" {
		t.Fatalf("got %q, want zipCode", got)
	}
}
