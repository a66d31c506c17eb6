package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigFlag(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "absent", args: []string{"agenda"}, want: ""},
		{name: "separate value", args: []string{"--config", "/tmp/a.toml", "agenda"}, want: "/tmp/a.toml"},
		{name: "equals form", args: []string{"agenda", "--config=/tmp/b.toml"}, want: "/tmp/b.toml"},
		{name: "missing value", args: []string{"agenda", "--config"}, want: ""},
		{name: "after terminator", args: []string{"new", "--", "--config", "x"}, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, configFlag(tt.args))
		})
	}
}

func TestCanRunWithoutContainer(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want bool
	}{
		{name: "no args", args: nil, want: true},
		{name: "help flag", args: []string{"--help"}, want: true},
		{name: "version flag", args: []string{"--version"}, want: true},
		{name: "help subcommand", args: []string{"help", "edit"}, want: true},
		{name: "subcommand help", args: []string{"agenda", "-h"}, want: true},
		{name: "regular command", args: []string{"agenda", "--from", "2024-03-01"}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, canRunWithoutContainer(tt.args))
		})
	}
}
