package logging

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tomkat-cr/abstractgo/internal/apiclient"
)

// Config selects the level and output format.
type Config struct {
	Level  string
	Format string
	Output io.Writer
}

// New builds a logrus logger. Unknown levels fall back to info.
func New(cfg Config) *logrus.Logger {
	logger := logrus.New()
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	logger.SetOutput(out)

	level, err := logrus.ParseLevel(strings.TrimSpace(cfg.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if strings.EqualFold(cfg.Format, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: time.RFC3339})
	}
	return logger
}

// Discard returns a logger that drops everything.
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// RequestHooks reports API traffic through a logger.
type RequestHooks struct {
	log logrus.FieldLogger
}

// NewRequestHooks tags entries with component=apiclient.
func NewRequestHooks(log logrus.FieldLogger) *RequestHooks {
	return &RequestHooks{log: log.WithField("component", "apiclient")}
}

var _ apiclient.Hooks = (*RequestHooks)(nil)

func (h *RequestHooks) RequestStarted(_ context.Context, info apiclient.RequestInfo) {
	h.fields(info).Debug("request started")
}

func (h *RequestHooks) RequestRetried(_ context.Context, info apiclient.RequestInfo) {
	h.fields(info).WithField("attempt", info.Attempt).Warn("retrying request")
}

func (h *RequestHooks) RequestFinished(_ context.Context, info apiclient.RequestInfo, status int, elapsed time.Duration, err error) {
	entry := h.fields(info).WithFields(logrus.Fields{
		"status":   status,
		"duration": elapsed.Round(time.Millisecond).String(),
	})
	if err != nil {
		var detail string
		if netErr, ok := err.(*apiclient.NetworkError); ok {
			detail = netErr.Detail()
		} else {
			detail = err.Error()
		}
		entry.WithField("error", detail).Error("request failed")
		return
	}
	entry.Info("request finished")
}

func (h *RequestHooks) fields(info apiclient.RequestInfo) *logrus.Entry {
	return h.log.WithFields(logrus.Fields{
		"request_id": info.ID,
		"method":     info.Method,
		"url":        info.URL,
	})
}
