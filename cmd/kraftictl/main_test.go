package main

import (
	"strings"
	"testing"
)

func TestReportRevenueValidatesDates(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "bad from", args: []string{"report", "revenue", "--from", "May 1", "--to", "2026-05-31"}, want: "--from"},
		{name: "bad to", args: []string{"report", "revenue", "--from", "2026-05-01", "--to", "31.05.2026"}, want: "--to"},
		{name: "reversed", args: []string{"report", "revenue", "--from", "2026-05-31", "--to", "2026-05-01"}, want: "before"},
		{name: "missing flag", args: []string{"sessions", "issue"}, want: "user"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := newRootCommand()
			cmd.SetArgs(tt.args)
			err := cmd.Execute()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Execute() error = %v, want mention of %q", err, tt.want)
			}
		})
	}
}
