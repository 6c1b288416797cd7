// Command controlplane is the operator CLI for a single trading scope: it
// reconciles broker fills, runs the execution gate and scaling policy,
// validates the market regime, governs the traded universe, runs the
// constitutional governance pipeline, and serves a read-only HTTP/WS status
// surface. Every subcommand is a one-shot invocation except `scheduler run`
// and `ops serve`, which run as long-lived daemons until interrupted.
package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"
)

const appName = "controlplane"

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	if term.IsTerminal(int(os.Stderr.Fd())) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
	// Else: stderr isn't a terminal (piped, cron, systemd, a scheduler
	// daemon's log file) — leave zerolog's default JSON writer in place so
	// logs stay machine-parseable instead of carrying ANSI color codes.

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("controlplane: command failed")
		os.Exit(1)
	}
}
