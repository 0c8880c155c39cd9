package cli

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidatePath(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "plain relative path", input: "config.yaml", wantErr: false},
		{name: "absolute path", input: "/etc/backtest/config.yaml", wantErr: false},
		{name: "empty path", input: "", wantErr: true},
		{name: "traversal attempt", input: "../../../etc/passwd", wantErr: true},
		{name: "shell injection", input: "config.yaml; rm -rf /", wantErr: true},
		{name: "command substitution", input: "$(whoami).yaml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePath(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateSymbol(t *testing.T) {
	assert.NoError(t, ValidateSymbol("AAPL"))
	assert.NoError(t, ValidateSymbol("EURUSD"))
	assert.NoError(t, ValidateSymbol("BRK.B"))
	assert.Error(t, ValidateSymbol(""))
	assert.Error(t, ValidateSymbol("AAPL; DROP TABLE"))
	assert.Error(t, ValidateSymbol(strings.Repeat("A", 64)))
}
