package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewWatchConfigDefaults(t *testing.T) {
	config := NewWatchConfig()

	assert.Equal(t, []string{".git", ".ipynb_checkpoints", "node_modules"}, config.IgnoreDirs)
	assert.Equal(t, 500, config.DebounceTime)
}

func TestWatchConfigValidate(t *testing.T) {
	tests := []struct {
		name          string
		config        *WatchConfig
		expectedError string
	}{
		{
			name:   "defaults are valid",
			config: NewWatchConfig(),
		},
		{
			name:   "zero debounce",
			config: &WatchConfig{DebounceTime: 0},
		},
		{
			name:          "negative debounce",
			config:        &WatchConfig{DebounceTime: -1},
			expectedError: "debounce time cannot be negative: -1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.expectedError != "" {
				assert.EqualError(t, err, tt.expectedError)
				return
			}
			assert.NoError(t, err)
		})
	}
}
