package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestBotMetricsObserve(t *testing.T) {
	m := NewBotMetrics(prometheus.NewRegistry())
	m.ObserveInbound("text", "handled")
	m.ObserveOutbound("interactive_buttons", "sent")
	m.ObserveTurn("booking", "advanced")
	m.ObserveFlowCompleted("booking")
	m.ObserveUnrecognizedSelection()
	m.ObserveOracleQuery("answered")
	m.ObserveWebhookLatency("text", 0.5)
}

func TestBotMetricsNilSafe(t *testing.T) {
	var m *BotMetrics
	m.ObserveInbound("text", "handled")
	m.ObserveOutbound("text", "failed")
	m.ObserveTurn("manage", "reprompted")
	m.ObserveFlowCompleted("manage")
	m.ObserveUnrecognizedSelection()
	m.ObserveOracleQuery("no_match")
	m.ObserveWebhookLatency("text", 0.1)
}
