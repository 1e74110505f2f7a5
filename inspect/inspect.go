// Package inspect serves a navigation controller over HTTP.
//
// Routes:
//
//	GET  /state                 current snapshot
//	GET  /resolve?path=/a/b     match tree of a path, without navigating
//	POST /navigate              {"to": "...", "replace": false, "state": ...}
//	POST /go?delta=-1           move through the stack
//	GET  /ws                    websocket stream, one snapshot per commit
//	GET  /metrics               Prometheus metrics, when a gatherer is set
//
// The inspector takes the controller's listener slot for the websocket
// stream, so a controller can have one inspector and no other listener.
package inspect

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vitalvas/waypoint/history"
)

// Option configures an Inspector.
type Option func(*config)

type config struct {
	logger      *slog.Logger
	gatherer    prometheus.Gatherer
	checkOrigin func(*http.Request) bool
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithGatherer serves the metrics of g on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(c *config) {
		c.gatherer = g
	}
}

// WithCheckOrigin sets the websocket origin check. By default only
// same-origin upgrades are accepted.
func WithCheckOrigin(fn func(*http.Request) bool) Option {
	return func(c *config) {
		c.checkOrigin = fn
	}
}

// Inspector is the HTTP handler over a controller.
type Inspector struct {
	ctrl     *history.Controller
	router   chi.Router
	hub      *hub
	logger   *slog.Logger
	unlisten func()
}

// New returns an inspector over ctrl. It fails with
// history.ErrListenerActive when ctrl already has a listener.
func New(ctrl *history.Controller, opts ...Option) (*Inspector, error) {
	cfg := config{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(&cfg)
	}

	i := &Inspector{
		ctrl:   ctrl,
		hub:    newHub(cfg.logger, cfg.checkOrigin),
		logger: cfg.logger,
	}

	unlisten, err := ctrl.Listen(func(s history.State) {
		i.hub.broadcast(i.stateView(s))
	})
	if err != nil {
		return nil, err
	}
	i.unlisten = unlisten

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(recovery(cfg.logger))
	r.Use(accessLog(cfg.logger))

	r.Get("/state", i.handleState)
	r.Get("/resolve", i.handleResolve)
	r.Post("/navigate", i.handleNavigate)
	r.Post("/go", i.handleGo)
	r.Get("/ws", i.handleWS)

	if cfg.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(cfg.gatherer, promhttp.HandlerOpts{}))
	}

	i.router = r

	return i, nil
}

// ServeHTTP implements http.Handler.
func (i *Inspector) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	i.router.ServeHTTP(w, r)
}

// Clients returns the number of connected websocket clients.
func (i *Inspector) Clients() int {
	return i.hub.count()
}

// Close releases the listener slot and disconnects websocket clients.
func (i *Inspector) Close() {
	i.unlisten()
	i.hub.close()
}

func (i *Inspector) handleState(w http.ResponseWriter, _ *http.Request) {
	responseJSON(w, http.StatusOK, i.stateView(i.ctrl.Snapshot()))
}

type resolveResponse struct {
	Path    string      `json:"path"`
	Matches []MatchView `json:"matches"`
}

func (i *Inspector) handleResolve(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		responseError(w, http.StatusBadRequest, "missing path")
		return
	}

	loc := history.ParsePath(path)
	responseJSON(w, http.StatusOK, resolveResponse{
		Path:    loc.Pathname,
		Matches: i.matchViews(i.ctrl.Resolve(loc.Pathname)),
	})
}

// NavigateRequest is the body of POST /navigate.
type NavigateRequest struct {
	To      string `json:"to"`
	Replace bool   `json:"replace,omitempty"`
	State   any    `json:"state,omitempty"`
}

func (i *Inspector) handleNavigate(w http.ResponseWriter, r *http.Request) {
	var req NavigateRequest

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		responseError(w, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}
	if req.To == "" {
		responseError(w, http.StatusBadRequest, "missing to")
		return
	}

	opts := []history.NavigateOption{history.WithState(req.State)}
	if req.Replace {
		opts = append(opts, history.WithReplace())
	}

	loc := i.ctrl.Navigate(req.To, opts...)

	i.logger.Info("navigate",
		"to", req.To,
		"path", loc.Path(),
		"replace", req.Replace,
		"request_id", RequestIDFromContext(r.Context()),
	)

	responseJSON(w, http.StatusAccepted, loc)
}

func (i *Inspector) handleGo(w http.ResponseWriter, r *http.Request) {
	delta, err := strconv.Atoi(r.URL.Query().Get("delta"))
	if err != nil {
		responseError(w, http.StatusBadRequest, "invalid delta")
		return
	}

	i.ctrl.Go(delta)
	w.WriteHeader(http.StatusNoContent)
}

func (i *Inspector) handleWS(w http.ResponseWriter, r *http.Request) {
	i.hub.serve(w, r, func() any {
		return i.stateView(i.ctrl.Snapshot())
	})
}
