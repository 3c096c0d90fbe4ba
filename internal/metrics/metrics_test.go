package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/valyala/fasthttp"
)

func TestCountersAndHandler(t *testing.T) {
	m := New()
	m.Move("accepted")
	m.Move("accepted")
	m.Move("illegal")
	m.ObserveScore("miss", 20*time.Millisecond)
	m.ControlRequest("/restart", fasthttp.StatusUnauthorized)

	if got := counterValue(t, m, "guildbot_chess_moves_total", "accepted"); got != 2 {
		t.Fatalf("accepted moves = %v", got)
	}
	if got := counterValue(t, m, "guildbot_control_requests_total", "401"); got != 1 {
		t.Fatalf("control counter = %v", got)
	}

	var ctx fasthttp.RequestCtx
	ctx.Request.SetRequestURI("/metrics")
	m.Handler()(&ctx)
	body := string(ctx.Response.Body())
	if ctx.Response.StatusCode() != fasthttp.StatusOK || !strings.Contains(body, "guildbot_chess_moves_total") {
		t.Fatalf("unexpected exposition: status=%d body=%q", ctx.Response.StatusCode(), body)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.Move("x")
	m.Game("created")
	m.Event("create")
	m.LeaderboardLookup("hit")
	m.ObserveScore("hit", time.Second)
	m.ControlRequest("/update", 202)
}

func counterValue(t *testing.T, m *Metrics, name, label string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, metric := range f.GetMetric() {
			for _, lp := range metric.GetLabel() {
				if lp.GetValue() == label {
					return metric.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}
