package server

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	xhttp "PatternLab/pkg/http"
	pkgkafka "PatternLab/pkg/kafka"
	applogger "PatternLab/pkg/logger"
	"PatternLab/pkg/queue"
)

// App owns the long-running parts of the process: the HTTP server, the optional
// job consumers and everything that needs closing on the way out.
type App struct {
	log             *applogger.Logger
	http            *xhttp.Server
	consumer        *pkgkafka.Consumer
	jobs            *queue.RedisQueue
	closers         []namedCloser
	shutdownTimeout time.Duration
}

type namedCloser struct {
	name string
	c    io.Closer
}

type Option func(*App)

// WithKafkaConsumer runs c alongside the HTTP server. Handlers must already be registered.
func WithKafkaConsumer(c *pkgkafka.Consumer) Option {
	return func(a *App) { a.consumer = c }
}

// WithJobQueue runs the Redis queue workers alongside the HTTP server.
func WithJobQueue(q *queue.RedisQueue) Option {
	return func(a *App) { a.jobs = q }
}

// WithCloser registers a resource closed after the servers stop, in reverse order.
func WithCloser(name string, c io.Closer) Option {
	return func(a *App) {
		if c != nil {
			a.closers = append(a.closers, namedCloser{name: name, c: c})
		}
	}
}

func WithShutdownTimeout(d time.Duration) Option {
	return func(a *App) { a.shutdownTimeout = d }
}

func New(l *applogger.Logger, httpServer *xhttp.Server, opts ...Option) *App {
	a := &App{log: l.With("app"), http: httpServer, shutdownTimeout: 10 * time.Second}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Run starts everything and blocks until SIGINT/SIGTERM or ctx is done.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if a.consumer != nil {
		if err := a.consumer.Start(); err != nil {
			a.log.Error("kafka consumer start failed", applogger.Error(err))
			return err
		}
		a.log.Info("kafka consumer started")
	}
	if a.jobs != nil {
		if err := a.jobs.Start(); err != nil {
			a.log.Error("job queue start failed", applogger.Error(err))
			a.shutdown()
			return err
		}
	}
	if err := a.http.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		a.shutdown()
		return err
	}

	<-ctx.Done()
	a.log.Info("shutdown signal received")
	a.shutdown()
	return nil
}

// shutdown stops intake first, then drains workers, then closes clients.
func (a *App) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()

	if err := a.http.Stop(ctx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}
	if a.jobs != nil {
		if err := a.jobs.Stop(ctx); err != nil {
			a.log.Warn("job queue stop error", applogger.Error(err))
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		nc := a.closers[i]
		if err := nc.c.Close(); err != nil {
			a.log.Warn("close error", applogger.String("resource", nc.name), applogger.Error(err))
		}
	}
	a.log.Info("shutdown complete")
}
