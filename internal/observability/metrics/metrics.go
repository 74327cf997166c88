package metrics

import "github.com/prometheus/client_golang/prometheus"

// BotMetrics exposes counters/histograms for the conversational flows.
type BotMetrics struct {
	inboundTotal       *prometheus.CounterVec
	outboundTotal      *prometheus.CounterVec
	turnsTotal         *prometheus.CounterVec
	flowCompletions    *prometheus.CounterVec
	unrecognizedTotal  prometheus.Counter
	oracleQueriesTotal *prometheus.CounterVec
	webhookLatency     *prometheus.HistogramVec
}

func NewBotMetrics(reg prometheus.Registerer) *BotMetrics {
	m := &BotMetrics{
		inboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "carezw",
			Subsystem: "webhook",
			Name:      "inbound_events_total",
			Help:      "Total inbound WhatsApp webhook events",
		}, []string{"event_type", "status"}),
		outboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "carezw",
			Subsystem: "messaging",
			Name:      "outbound_total",
			Help:      "Total outbound WhatsApp sends",
		}, []string{"kind", "status"}),
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "carezw",
			Subsystem: "dialog",
			Name:      "turns_total",
			Help:      "Dialogue turns by flow and outcome",
		}, []string{"flow", "outcome"}),
		flowCompletions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "carezw",
			Subsystem: "dialog",
			Name:      "flow_completions_total",
			Help:      "Conversations that reached a terminal state",
		}, []string{"flow"}),
		unrecognizedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "carezw",
			Subsystem: "dialog",
			Name:      "unrecognized_selections_total",
			Help:      "Structured selections with an id no branch handles",
		}),
		oracleQueriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "carezw",
			Subsystem: "dialog",
			Name:      "oracle_queries_total",
			Help:      "Free-text fallback queries by outcome",
		}, []string{"outcome"}),
		webhookLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "carezw",
			Subsystem: "webhook",
			Name:      "latency_seconds",
			Help:      "Latency of webhook event processing",
			Buckets:   prometheus.DefBuckets,
		}, []string{"event_type"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.inboundTotal, m.outboundTotal, m.turnsTotal,
		m.flowCompletions, m.unrecognizedTotal, m.oracleQueriesTotal, m.webhookLatency)
	return m
}

func (m *BotMetrics) ObserveInbound(eventType, status string) {
	if m == nil {
		return
	}
	m.inboundTotal.WithLabelValues(eventType, status).Inc()
}

func (m *BotMetrics) ObserveOutbound(kind, status string) {
	if m == nil {
		return
	}
	m.outboundTotal.WithLabelValues(kind, status).Inc()
}

func (m *BotMetrics) ObserveTurn(flow, outcome string) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(flow, outcome).Inc()
}

func (m *BotMetrics) ObserveFlowCompleted(flow string) {
	if m == nil {
		return
	}
	m.flowCompletions.WithLabelValues(flow).Inc()
}

func (m *BotMetrics) ObserveUnrecognizedSelection() {
	if m == nil {
		return
	}
	m.unrecognizedTotal.Inc()
}

func (m *BotMetrics) ObserveOracleQuery(outcome string) {
	if m == nil {
		return
	}
	m.oracleQueriesTotal.WithLabelValues(outcome).Inc()
}

func (m *BotMetrics) ObserveWebhookLatency(eventType string, seconds float64) {
	if m == nil {
		return
	}
	m.webhookLatency.WithLabelValues(eventType).Observe(seconds)
}
