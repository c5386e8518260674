package common

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePort(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		expected  int
		expectErr bool
	}{
		{
			name:     "regular port",
			input:    "9000",
			expected: 9000,
		},
		{
			name:     "ephemeral port",
			input:    "0",
			expected: 0,
		},
		{
			name:     "max port",
			input:    "65535",
			expected: 65535,
		},
		{
			name:     "surrounding whitespace",
			input:    " 8080 ",
			expected: 8080,
		},
		{
			name:      "too large",
			input:     "65536",
			expectErr: true,
		},
		{
			name:      "negative",
			input:     "-1",
			expectErr: true,
		},
		{
			name:      "not a number",
			input:     "http",
			expectErr: true,
		},
		{
			name:      "empty",
			input:     "",
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			port, err := ParsePort(tt.input)
			if tt.expectErr {
				assert.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidPort))
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.expected, port)
			}
		})
	}
}
