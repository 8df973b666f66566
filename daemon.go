package main

import (
	"os"

	"github.com/jacobsa/daemonize"
)

// daemonEnv marks the re-invoked child so it mounts instead of
// daemonizing again.
const daemonEnv = "EXCLUDEFS_DAEMON"

// inDaemonChild reports whether this process is the daemonized child.
func inDaemonChild() bool {
	return os.Getenv(daemonEnv) != ""
}

// daemonizeSelf re-invokes the binary in the background and waits for
// the child to report its mount outcome.
func daemonizeSelf() error {
	exe, err := os.Executable()
	if err != nil {
		return err
	}
	env := append(os.Environ(), daemonEnv+"=1")
	return daemonize.Run(exe, os.Args[1:], env, os.Stdout)
}

// signalOutcome tells the waiting parent how the mount went. Harmless
// outside a daemonized child.
func signalOutcome(err error) {
	if inDaemonChild() {
		_ = daemonize.SignalOutcome(err)
	}
}
