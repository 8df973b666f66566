//go:build !windows

package main

import (
	"log/syslog"

	"github.com/sirupsen/logrus"
	logrussyslog "github.com/sirupsen/logrus/hooks/syslog"
)

// addSyslogHook routes log entries to the local syslog daemon.
func addSyslogHook(log *logrus.Logger) error {
	hook, err := logrussyslog.NewSyslogHook("", "", syslog.LOG_DEBUG|syslog.LOG_USER, "excludefs")
	if err != nil {
		return err
	}
	log.AddHook(hook)
	return nil
}
