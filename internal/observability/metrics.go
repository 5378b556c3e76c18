package observability

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// ChatMetrics counts pipeline outcomes. All methods are safe on a nil receiver.
type ChatMetrics struct {
	messages    *prometheus.CounterVec
	scores      *prometheus.HistogramVec
	handoffs    *prometheus.CounterVec
	completions prometheus.Counter
	crm         *prometheus.CounterVec
	webhooks    *prometheus.CounterVec
}

// NewChatMetrics registers the collectors on reg (the default registerer when nil).
func NewChatMetrics(reg prometheus.Registerer) *ChatMetrics {
	m := &ChatMetrics{
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leadbot",
			Subsystem: "chat",
			Name:      "messages_processed_total",
			Help:      "Messages answered, by channel.",
		}, []string{"channel"}),
		scores: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "leadbot",
			Subsystem: "chat",
			Name:      "lead_score",
			Help:      "Qualification score after each message.",
			Buckets:   []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		}, []string{"channel"}),
		handoffs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leadbot",
			Subsystem: "chat",
			Name:      "handoff_requests_total",
			Help:      "Messages that asked for a human agent.",
		}, []string{"channel"}),
		completions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "leadbot",
			Subsystem: "chat",
			Name:      "completion_failures_total",
			Help:      "Failed calls to the completion service.",
		}),
		crm: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leadbot",
			Subsystem: "crm",
			Name:      "forwards_total",
			Help:      "Lead forwards to the CRM, by outcome.",
		}, []string{"ok"}),
		webhooks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leadbot",
			Subsystem: "whatsapp",
			Name:      "webhooks_total",
			Help:      "Inbound WhatsApp webhooks, by outcome.",
		}, []string{"status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.messages, m.scores, m.handoffs, m.completions, m.crm, m.webhooks)
	return m
}

func (m *ChatMetrics) MessageProcessed(channel string, score int) {
	if m == nil {
		return
	}
	m.messages.WithLabelValues(channel).Inc()
	m.scores.WithLabelValues(channel).Observe(float64(score))
}

func (m *ChatMetrics) HandoffRequested(channel string) {
	if m == nil {
		return
	}
	m.handoffs.WithLabelValues(channel).Inc()
}

func (m *ChatMetrics) CompletionFailed() {
	if m == nil {
		return
	}
	m.completions.Inc()
}

func (m *ChatMetrics) CRMForward(ok bool) {
	if m == nil {
		return
	}
	m.crm.WithLabelValues(strconv.FormatBool(ok)).Inc()
}

// WebhookHandled counts a webhook by the status it was answered with
// (processed, ignored, duplicate, busy, rate_limited, error).
func (m *ChatMetrics) WebhookHandled(status string) {
	if m == nil {
		return
	}
	m.webhooks.WithLabelValues(status).Inc()
}
