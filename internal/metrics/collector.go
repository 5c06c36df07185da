// Package metrics exposes Prometheus collectors for the chat relay.
package metrics

import (
	"context"
	"time"

	"anonchat/backend/internal/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	commandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "anonchat_commands_total",
			Help: "Total number of handled events labeled by command and status",
		},
		[]string{"command", "status"},
	)
	commandDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "anonchat_command_duration_seconds",
			Help:    "Duration of event handling in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"command"},
	)
	stateTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "anonchat_state_transitions_total",
			Help: "Total number of conversation state transitions",
		},
		[]string{"from", "to"},
	)
	matchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "anonchat_matches_total",
		Help: "Total number of pairs created",
	})
	relayFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "anonchat_relay_failures_total",
		Help: "Total number of chats ended because a forward failed",
	})
	broadcastDeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "anonchat_broadcast_deliveries_total",
			Help: "Announcement deliveries labeled by outcome",
		},
		[]string{"outcome"},
	)
	waitingUsers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "anonchat_waiting_users",
		Help: "Users currently waiting in the queue",
	})
	activeChats = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "anonchat_active_chats",
		Help: "Pairs currently chatting",
	})
	usersByState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "anonchat_users_by_state",
			Help: "Number of known users per conversation state",
		},
		[]string{"state"},
	)
)

// RecordCommand increments command counters and records duration.
func RecordCommand(command, status string, duration time.Duration) {
	if command == "" {
		command = "unknown"
	}
	if status == "" {
		status = "unknown"
	}

	commandsTotal.WithLabelValues(command, status).Inc()
	commandDurationSeconds.WithLabelValues(command).Observe(duration.Seconds())
}

// RecordStateTransition tracks session state changes. It matches session.TransitionRecorder.
func RecordStateTransition(from, to models.ConversationState) {
	stateTransitionsTotal.WithLabelValues(string(from), string(to)).Inc()
}

func RecordMatch() { matchesTotal.Inc() }

func RecordRelayFailure() { relayFailuresTotal.Inc() }

// RecordBroadcast adds the outcome of one announcement.
func RecordBroadcast(success, failure int) {
	broadcastDeliveriesTotal.WithLabelValues("success").Add(float64(success))
	broadcastDeliveriesTotal.WithLabelValues("failure").Add(float64(failure))
}

// Source is what the collector polls.
type Source interface {
	WaitingCount() int
	ActiveChatCount() int
}

// StateSource reports per-state user counts.
type StateSource interface {
	CountByState() map[models.ConversationState]int
}

// Collector periodically refreshes the gauges.
type Collector struct {
	source   Source
	states   StateSource
	interval time.Duration
}

func NewCollector(source Source, states StateSource, interval time.Duration) *Collector {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Collector{source: source, states: states, interval: interval}
}

// Run polls until ctx is cancelled.
func (c *Collector) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		c.Collect()

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Collect refreshes every gauge once.
func (c *Collector) Collect() {
	if c.source != nil {
		waitingUsers.Set(float64(c.source.WaitingCount()))
		activeChats.Set(float64(c.source.ActiveChatCount()))
	}
	if c.states == nil {
		return
	}

	counts := c.states.CountByState()
	for _, state := range models.AllStates {
		usersByState.WithLabelValues(string(state)).Set(float64(counts[state]))
	}
}
