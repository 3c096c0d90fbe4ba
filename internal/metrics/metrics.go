// Package metrics owns the Prometheus registry of the bot.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

// Metrics groups the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	scoreDuration   *prometheus.HistogramVec
	leaderboardReqs *prometheus.CounterVec
	moves           *prometheus.CounterVec
	games           *prometheus.CounterVec
	events          *prometheus.CounterVec
	controlReqs     *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		scoreDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "guildbot_score_compute_seconds",
			Help:    "Duration of activity score computations",
			Buckets: prometheus.DefBuckets,
		}, []string{"result"}),
		leaderboardReqs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "guildbot_leaderboard_requests_total",
			Help: "Leaderboard lookups by cache result",
		}, []string{"cache"}),
		moves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "guildbot_chess_moves_total",
			Help: "Chess move submissions by outcome",
		}, []string{"outcome"}),
		games: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "guildbot_chess_games_total",
			Help: "Chess game lifecycle transitions",
		}, []string{"event"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "guildbot_events_total",
			Help: "Message events written to the event store",
		}, []string{"kind"}),
		controlReqs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "guildbot_control_requests_total",
			Help: "Control server requests by path and status",
		}, []string{"path", "code"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.scoreDuration,
		m.leaderboardReqs,
		m.moves,
		m.games,
		m.events,
		m.controlReqs,
	)
	return m
}

// Registry exposes the underlying registry for tests and custom collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the exposition format.
func (m *Metrics) Handler() fasthttp.RequestHandler {
	return fasthttpadaptor.NewFastHTTPHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}

func (m *Metrics) ObserveScore(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.scoreDuration.WithLabelValues(result).Observe(d.Seconds())
}

func (m *Metrics) LeaderboardLookup(cache string) {
	if m == nil {
		return
	}
	m.leaderboardReqs.WithLabelValues(cache).Inc()
}

func (m *Metrics) Move(outcome string) {
	if m == nil {
		return
	}
	m.moves.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Game(event string) {
	if m == nil {
		return
	}
	m.games.WithLabelValues(event).Inc()
}

func (m *Metrics) Event(kind string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(kind).Inc()
}

func (m *Metrics) ControlRequest(path string, code int) {
	if m == nil {
		return
	}
	m.controlReqs.WithLabelValues(path, strconv.Itoa(code)).Inc()
}
