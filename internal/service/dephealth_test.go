// dephealth_test.go — unit-тесты для построения probe path JWKS.
package service

import (
	"testing"
)

// TestJWKSPath проверяет построение probe path от issuer Cognito.
func TestJWKSPath(t *testing.T) {
	tests := []struct {
		name     string
		issuer   string
		expected string
	}{
		{
			name:     "issuer с pool id в path",
			issuer:   "https://cognito-idp.eu-west-1.amazonaws.com/eu-west-1_AbCdEf123",
			expected: "/eu-west-1_AbCdEf123/.well-known/jwks.json",
		},
		{
			name:     "issuer без path",
			issuer:   "https://auth.example.com",
			expected: "/.well-known/jwks.json",
		},
		{
			name:     "некорректный issuer — дефолтный path",
			issuer:   "://не-url",
			expected: "/.well-known/jwks.json",
		},
		{
			name:     "пустой issuer",
			issuer:   "",
			expected: "/.well-known/jwks.json",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := jwksPath(tt.issuer); got != tt.expected {
				t.Errorf("jwksPath(%q) = %q, ожидалось %q", tt.issuer, got, tt.expected)
			}
		})
	}
}
