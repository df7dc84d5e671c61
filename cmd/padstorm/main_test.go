package main

import (
	"testing"
)

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		exit     bool
		code     int
		config   string
		listen   string
		replay   string
		logLevel string
		watch    bool
	}{
		{name: "defaults"},
		{name: "long", args: []string{"-config", "a.toml", "-listen", ":1", "-replay", "t.json", "-log-level", "debug", "-watch"},
			config: "a.toml", listen: ":1", replay: "t.json", logLevel: "debug", watch: true},
		{name: "short", args: []string{"-c", "b.toml", "-l", ":2", "-r", "u.json"},
			config: "b.toml", listen: ":2", replay: "u.json"},
		{name: "bad level", args: []string{"-log-level", "loud"}, exit: true, code: 1, logLevel: "loud"},
		{name: "unknown flag", args: []string{"-bogus"}, exit: true, code: 2},
		{name: "stray args", args: []string{"file.toml"}, exit: true, code: 2},
		{name: "help", args: []string{"-h"}, exit: true, code: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, exit, code := parseFlags(tt.args)
			if exit != tt.exit || code != tt.code {
				t.Fatalf("parseFlags() exit=%v code=%d, want exit=%v code=%d", exit, code, tt.exit, tt.code)
			}
			if exit {
				return
			}
			if opts.ConfigPath != tt.config || opts.Listen != tt.listen || opts.ReplayPath != tt.replay ||
				opts.LogLevel != tt.logLevel || opts.Watch != tt.watch {
				t.Errorf("parseFlags() = %+v", opts)
			}
		})
	}
}
