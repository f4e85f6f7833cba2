package bootstrap

import (
	"log/slog"

	"github.com/target/grant-portal/config"
	"github.com/target/grant-portal/internal/observability/notify/slack"
	"github.com/target/grant-portal/internal/observability/statsd"
	"github.com/target/grant-portal/internal/service/auditnotifier"
)

// ObservabilityContainer holds the metrics client and audit notifier.
type ObservabilityContainer struct {
	Metrics *statsd.Client // nil when metrics are disabled
	Audit   *auditnotifier.Service
}

// MetricsSink returns the metrics client as a sink, or nil when disabled.
//
//nolint:ireturn // callers treat a nil sink as disabled.
func (o ObservabilityContainer) MetricsSink() statsd.Sink {
	if o.Metrics == nil {
		return nil
	}
	return o.Metrics
}

// Close flushes and closes the metrics connection.
func (o ObservabilityContainer) Close() error {
	if o.Metrics == nil {
		return nil
	}
	return o.Metrics.Close()
}

// BuildObservability wires statsd metrics and audit notification sinks.
// Failures to initialise a sink are logged and the sink is skipped.
func BuildObservability(cfg config.ObservabilityConfig, logger *slog.Logger) ObservabilityContainer {
	if logger == nil {
		logger = slog.Default()
	}

	var metrics *statsd.Client
	if cfg.Metrics.IsEnabled() {
		client, err := statsd.NewClient(statsd.Config{
			Enabled: true,
			Address: cfg.Metrics.StatsdAddress,
			Prefix:  cfg.Metrics.Prefix,
			Logger:  logger,
		})
		if err != nil {
			logger.Error("failed to initialise statsd client", "error", err)
		} else {
			metrics = client
		}
	}

	return ObservabilityContainer{
		Metrics: metrics,
		Audit:   buildAuditNotifier(logger, cfg.Notifications),
	}
}

func buildAuditNotifier(logger *slog.Logger, cfg config.ObservabilityNotificationsConfig) *auditnotifier.Service {
	notifierLogger := logger.With("component", "audit_notifier")
	if !cfg.Enabled {
		return auditnotifier.NewService(auditnotifier.Options{Logger: notifierLogger})
	}

	var sinks []auditnotifier.SinkRegistration
	if cfg.Slack.Enabled {
		client, err := slack.NewClient(slack.Config{
			WebhookURL:    cfg.Slack.WebhookURL,
			Channel:       cfg.Slack.Channel,
			Username:      cfg.Slack.Username,
			Timeout:       cfg.Timeout,
			RetryLimit:    cfg.RetryLimit,
			UserURLPrefix: cfg.Slack.UserURLPrefix,
		})
		if err != nil {
			logger.Error("failed to initialise slack notifier", "error", err)
		} else {
			sinks = append(sinks, auditnotifier.SinkRegistration{Name: "slack", Sink: client})
		}
	}

	return auditnotifier.NewService(auditnotifier.Options{
		Logger:  notifierLogger,
		Sinks:   sinks,
		Actions: cfg.Actions,
	})
}
