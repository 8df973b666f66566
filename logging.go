package main

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// buildLogger assembles the logger from the observability options:
// console, rotating file and syslog sinks, debug level when op
// tracing is requested.
func buildLogger(opts *Options) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	log.SetLevel(logrus.InfoLevel)
	if opts.Debug {
		log.SetLevel(logrus.DebugLevel)
	}

	var writers []io.Writer
	if opts.LogInConsole {
		writers = append(writers, os.Stderr)
	}
	if opts.LogInFile != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   opts.LogInFile,
			MaxSize:    100, // megabytes
			MaxBackups: 3,
		})
	}
	if len(writers) == 0 {
		log.SetOutput(io.Discard)
	} else {
		log.SetOutput(io.MultiWriter(writers...))
	}

	if opts.LogInSyslog {
		if err := addSyslogHook(log); err != nil {
			// Degrade to the console so the message is seen.
			log.SetOutput(os.Stderr)
			log.Errorf("syslog logging unavailable: %v", err)
		}
	}
	return log
}
