package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	zk "github.com/kellymclaughlin/tokio-zookeeper"
	"github.com/kellymclaughlin/tokio-zookeeper/proto"
)

var (
	configPath = flag.String("config", "", "path to zkload config.toml")

	logger *zap.Logger

	contents = []byte("hello")

	requestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zkload_requests_total",
			Help: "Requests issued by the load loop, by operation and outcome.",
		},
		[]string{"operation", "outcome"},
	)
)

func updateNodes(stopchan chan struct{}, tickerChan <-chan time.Time, enq *zk.Enqueuer, nodes []string) {
	for {
		select {
		case <-tickerChan:
			logger.Debug("ticker tick")
			for _, node := range nodes {
				logger.Info("creating node", zap.String("node", node), zap.Binary("content", contents))
				issue(enq, "create", &proto.CreateRequest{
					Path: node,
					Data: contents,
					ACL:  proto.WorldACL(proto.PermAll),
				})
				issue(enq, "getData", &proto.GetDataRequest{
					Path:  node,
					Watch: proto.GlobalWatch(),
				})
			}
		case <-stopchan:
			logger.Info("stopping node routine")
			return
		}
	}
}

// issue submits one request and waits for its reply off the ticker loop.
func issue(enq *zk.Enqueuer, name string, req proto.Request) {
	future := enq.Enqueue(req)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		reply, err := future.Wait(ctx)
		outcome := "ok"
		switch {
		case err != nil:
			outcome = "lost"
			logger.Warn("request not answered", zap.String("operation", name), zap.Error(err))
		case reply.Err != nil:
			outcome = "error"
			logger.Info("server error", zap.String("operation", name), zap.Error(reply.Err))
		default:
			logger.Debug("request done", zap.String("operation", name), zap.Int64("zxid", reply.Zxid))
		}
		requestCounter.With(prometheus.Labels{"operation": name, "outcome": outcome}).Inc()
	}()
}

func watchEvents(events <-chan proto.WatcherEvent) {
	for ev := range events {
		logger.Info("watch event", zap.Object("event", &ev))
	}
}

func handleCtrlC(c chan os.Signal, quit chan struct{}, enq *zk.Enqueuer, session *zk.Session) {
	sig := <-c
	fmt.Println("\nsignal: ", sig)
	close(quit)
	// releasing the last handle drives the clean-shutdown packet
	enq.Close()
	<-session.Done()
	os.Exit(0)
}

func main() {
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	loggerConfig := zap.NewDevelopmentConfig()
	loggerConfig.EncoderConfig = zapcore.EncoderConfig{
		LevelKey:      "L",
		TimeKey:       "",
		MessageKey:    "M",
		NameKey:       "N",
		CallerKey:     "",
		StacktraceKey: "S",
		EncodeLevel:   zapcore.CapitalColorLevelEncoder,
	}
	loggerConfig.Level.SetLevel(zap.InfoLevel)
	if cfg.Debug {
		loggerConfig.Level.SetLevel(zap.DebugLevel)
	}
	logger, _ = loggerConfig.Build()

	scope, _, closer := zk.RootScope()
	defer closer.Close()
	prometheus.MustRegister(requestCounter)
	http.Handle("/metrics", promhttp.Handler())
	go http.ListenAndServe(cfg.ListenAddr, nil)

	dialer := &zk.TCPDialer{
		Addr:           cfg.Server,
		SessionTimeout: cfg.SessionTimeout,
		MaxAttempts:    5,
		Backoff: zk.BackoffConfig{
			InitialDelay: 100 * time.Millisecond,
			MaxDelay:     5 * time.Second,
			Multiplier:   2,
			Jitter:       true,
		},
		Logger: logger,
	}
	session, err := zk.NewSession(cfg.Server, dialer,
		zk.WithLogger(logger),
		zk.WithMetricsScope(scope),
	)
	if err != nil {
		logger.Fatal("failed to connect", zap.String("server", cfg.Server), zap.Error(err))
	}
	enq := session.Enqueuer()

	quit := make(chan struct{})
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.Tick).C
	go watchEvents(session.Events())
	go updateNodes(quit, ticker, enq, cfg.Nodes)
	go handleCtrlC(c, quit, enq, session)

	<-session.Done()
	if err := session.Err(); err != nil {
		logger.Fatal("session failed", zap.Error(err))
	}
}
