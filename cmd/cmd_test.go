package cmd

import (
	"os"
	"strings"
	"testing"
)

func TestExecute_UnknownCommand(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	os.Args = []string{"ragkit", "frobnicate"}
	err := Execute()
	if err == nil {
		t.Fatal("Execute() = nil, want error")
	}
	if !strings.Contains(err.Error(), "unknown command") {
		t.Errorf("Execute() error = %v", err)
	}
}

func TestExecute_Help(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	for _, arg := range []string{"help", "--help", "-h"} {
		os.Args = []string{"ragkit", arg}
		if err := Execute(); err != nil {
			t.Errorf("Execute() with %q error = %v", arg, err)
		}
	}
}

func TestParseRateEnv(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  int
	}{
		{name: "unset", value: "", want: 20},
		{name: "valid", value: "50", want: 50},
		{name: "zero", value: "0", want: 0},
		{name: "negative", value: "-1", want: 20},
		{name: "non-numeric", value: "lots", want: 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("RAGKIT_RATE_LIMIT", tt.value)
			if got := parseRateEnv("RAGKIT_RATE_LIMIT", 20); got != tt.want {
				t.Errorf("parseRateEnv() = %d, want %d", got, tt.want)
			}
		})
	}
}
