package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/net/netutil"

	"github.com/vitalvas/waypoint/history"
	"github.com/vitalvas/waypoint/inspect"
	"github.com/vitalvas/waypoint/routefile"
)

func serveCmd(c *cli) *cobra.Command {
	var (
		routesPath string
		addr       string
		initial    string
		watch      bool
		anyOrigin  bool
		maxConns   int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a navigation controller over HTTP",
		Long: `Load a route table, start a navigation controller at the initial path
and serve it with the inspector API.

With --watch the table is reloaded when the file changes. A reload starts
a fresh controller at the current location; metrics restart from zero.

Examples:
  waypoint serve --routes routes.yaml
  waypoint serve --routes routes.toml --addr 127.0.0.1:9000 --watch`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			s := newServer(c.logger, initial, anyOrigin)
			defer s.close()

			return s.run(ctx, addr, routesPath, watch, maxConns)
		},
	}

	cmd.Flags().StringVarP(&routesPath, "routes", "r", "routes.yaml", "Route table (.yaml, .yml or .toml)")
	cmd.Flags().StringVarP(&addr, "addr", "a", "127.0.0.1:8080", "Listen address")
	cmd.Flags().StringVar(&initial, "initial", "/", "Initial path of the navigation stack")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Reload the route table when the file changes")
	cmd.Flags().BoolVar(&anyOrigin, "any-origin", false, "Accept websocket upgrades from any origin")
	cmd.Flags().IntVar(&maxConns, "max-conns", 0, "Maximum simultaneous connections, 0 for no limit")

	return cmd
}

// session is one controller with its inspector and route table.
type session struct {
	table *routefile.Table
	ctrl  *history.Controller
	insp  *inspect.Inspector
}

func (s *session) close() {
	s.insp.Close()
	s.ctrl.Close()
	s.table.Close()
}

// server serves the current session and swaps it on reload.
type server struct {
	logger    *slog.Logger
	initial   string
	anyOrigin bool

	mu      sync.RWMutex
	current *session
}

func newServer(logger *slog.Logger, initial string, anyOrigin bool) *server {
	return &server{logger: logger, initial: initial, anyOrigin: anyOrigin}
}

// install starts a session over table at the current location and closes
// the previous session. On error table is closed and the previous session
// keeps serving.
func (s *server) install(table *routefile.Table) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.initial
	if s.current != nil {
		path = s.current.ctrl.Snapshot().Location.Path()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	ctrl := history.New(history.NewMemoryStack(path), table.Root,
		history.WithLogger(s.logger),
		history.WithRegisterer(reg),
	)

	opts := []inspect.Option{
		inspect.WithLogger(s.logger),
		inspect.WithGatherer(reg),
	}
	if s.anyOrigin {
		opts = append(opts, inspect.WithCheckOrigin(func(*http.Request) bool { return true }))
	}

	insp, err := inspect.New(ctrl, opts...)
	if err != nil {
		ctrl.Close()
		table.Close()
		return err
	}

	prev := s.current
	s.current = &session{table: table, ctrl: ctrl, insp: insp}

	if prev != nil {
		prev.close()
	}

	s.logger.Info("routes installed", "routes", len(table.Names()), "path", path)

	return nil
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	cur := s.current
	s.mu.RUnlock()

	if cur == nil {
		http.Error(w, "no route table loaded", http.StatusServiceUnavailable)
		return
	}

	cur.insp.ServeHTTP(w, r)
}

func (s *server) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		s.current.close()
		s.current = nil
	}
}

// reload is the routefile.Watch callback.
func (s *server) reload(table *routefile.Table, err error) {
	if err != nil {
		s.logger.Error("loading routes", "error", err)
		return
	}
	if err := s.install(table); err != nil {
		s.logger.Error("installing routes", "error", err)
	}
}

func (s *server) run(ctx context.Context, addr, routesPath string, watch bool, maxConns int) error {
	reg := builtinRegistry()
	opts := []routefile.Option{routefile.WithLogger(s.logger)}

	watchErr := make(chan error, 1)

	if watch {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		loaded := make(chan struct{})
		var once sync.Once

		go func() {
			watchErr <- routefile.Watch(ctx, routesPath, reg, func(table *routefile.Table, err error) {
				s.reload(table, err)
				once.Do(func() { close(loaded) })
			}, opts...)
		}()

		select {
		case <-loaded:
		case err := <-watchErr:
			return err
		}
	} else {
		table, err := routefile.Load(routesPath, reg, opts...)
		if err != nil {
			return err
		}
		if err := s.install(table); err != nil {
			return err
		}
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening: %w", err)
	}
	if maxConns > 0 {
		ln = netutil.LimitListener(ln, maxConns)
	}

	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		s.logger.Info("serving", "addr", ln.Addr().String(), "routes", routesPath, "watch", watch, "max_conns", maxConns)
		serveErr <- srv.Serve(ln)
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving: %w", err)

	case err := <-watchErr:
		shutdown(srv, s.logger)
		if err != nil {
			return fmt.Errorf("watching routes: %w", err)
		}
		return nil

	case <-ctx.Done():
		shutdown(srv, s.logger)
		return nil
	}
}

func shutdown(srv *http.Server, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	logger.Info("shutting down")
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("shutdown", "error", err)
	}
}
