// Package control serves the operator HTTP surface: restart, update, health
// and metrics.
package control

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/park285/Cheese-Discord-bot/internal/metrics"
	"github.com/park285/Cheese-Discord-bot/internal/obslog"
)

// ExitRestart is the process status a supervisor treats as "start me again".
const ExitRestart = 3

// Action is an operator request accepted by the server.
type Action string

const (
	ActionRestart Action = "restart"
	ActionUpdate  Action = "update"
)

type tokenBody struct {
	Token string `json:"token"`
}

// Server validates control requests and forwards accepted ones on Actions.
type Server struct {
	token   []byte
	metrics *metrics.Metrics
	expose  fasthttp.RequestHandler
	actions chan Action
	log     *zap.Logger
	srv     *fasthttp.Server
}

func New(token string, m *metrics.Metrics) *Server {
	s := &Server{
		token:   []byte(token),
		metrics: m,
		actions: make(chan Action, 1),
		log:     obslog.Named("control"),
	}
	if m != nil {
		s.expose = m.Handler()
	}
	s.srv = &fasthttp.Server{
		Handler:      s.Handle,
		Name:         "guild-bot",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// Actions delivers accepted restart and update requests. At most one is
// buffered; further requests while one is pending are still answered 202.
func (s *Server) Actions() <-chan Action { return s.actions }

// ListenAndServe blocks until the listener fails or Shutdown is called.
func (s *Server) ListenAndServe(addr string) error {
	s.log.Info("control_listen", zap.String("addr", addr))
	return s.srv.ListenAndServe(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.ShutdownWithContext(ctx)
}

// Handle is the fasthttp entry point.
func (s *Server) Handle(ctx *fasthttp.RequestCtx) {
	path := string(ctx.Path())
	defer func() { s.metrics.ControlRequest(path, ctx.Response.StatusCode()) }()

	switch path {
	case "/healthz":
		ctx.SetContentType("text/plain; charset=utf-8")
		ctx.SetBodyString("ok")
	case "/metrics":
		if s.expose == nil {
			ctx.Error("metrics disabled", fasthttp.StatusNotFound)
			return
		}
		s.expose(ctx)
	case "/restart":
		s.handleAction(ctx, ActionRestart)
	case "/update":
		s.handleAction(ctx, ActionUpdate)
	default:
		ctx.Error("not found", fasthttp.StatusNotFound)
	}
}

func (s *Server) handleAction(ctx *fasthttp.RequestCtx, a Action) {
	if !ctx.IsPost() {
		ctx.Response.Header.Set("Allow", fasthttp.MethodPost)
		writeJSON(ctx, fasthttp.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var body tokenBody
	if err := json.Unmarshal(ctx.PostBody(), &body); err != nil {
		writeJSON(ctx, fasthttp.StatusBadRequest, "malformed json")
		return
	}
	if len(s.token) == 0 || subtle.ConstantTimeCompare([]byte(body.Token), s.token) != 1 {
		s.log.Warn("control_bad_token", zap.String("action", string(a)), zap.String("remote", ctx.RemoteIP().String()))
		writeJSON(ctx, fasthttp.StatusUnauthorized, "invalid token")
		return
	}
	select {
	case s.actions <- a:
	default:
	}
	s.log.Info("control_accepted", zap.String("action", string(a)))
	writeJSON(ctx, fasthttp.StatusAccepted, string(a)+" scheduled")
}

func writeJSON(ctx *fasthttp.RequestCtx, code int, msg string) {
	ctx.SetStatusCode(code)
	ctx.SetContentType("application/json")
	raw, _ := json.Marshal(map[string]string{"status": msg})
	ctx.SetBody(raw)
}

// RunUpdate executes command (split on whitespace) and returns its combined
// output.
func RunUpdate(ctx context.Context, command string) ([]byte, error) {
	args := strings.Fields(command)
	if len(args) == 0 {
		return nil, errors.New("update command is empty")
	}
	out, err := exec.CommandContext(ctx, args[0], args[1:]...).CombinedOutput()
	if err != nil {
		return out, fmt.Errorf("update %q: %w", command, err)
	}
	return out, nil
}
