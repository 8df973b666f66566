//go:build windows

package main

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// addSyslogHook reports that event-log output is unavailable; writing
// to the Windows event log requires administrator rights and an
// installed event source, so the caller falls back to the console.
func addSyslogHook(log *logrus.Logger) error {
	return errors.New("event log output requires administrator rights on Windows")
}
