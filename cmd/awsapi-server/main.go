// awsapi-server 对外提供 EC2 Query 和 S3 REST 协议的服务。
// EC2 请求转发给 CloudStack ， S3 请求转发给上游的 S3 兼容存储。
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/cmstar/go-awsapi/config"
	"github.com/cmstar/go-awsapi/telemetry"
	"github.com/cmstar/go-errx"
	"github.com/cmstar/go-logx"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	logger := logx.NewStdLogger(nil)

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Log(logx.LevelFatal, "load config", "Path", *configPath, "Err", err.Error())
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Log(logx.LevelFatal, "server exited", "Err", err.Error())
		os.Exit(1)
	}
}

// run 启动所有服务，阻塞到 ctx 结束或某个服务出错，然后在 ShutdownTimeout 内优雅退出。
func run(ctx context.Context, cfg *config.Config, logger logx.Logger) error {
	var cl closers
	defer cl.closeAll()

	shutdownTracer, err := telemetry.InitTracer(ctx, cfg.Telemetry.Tracing)
	if err != nil {
		return err
	}
	cl.add(func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(sctx); err != nil {
			logger.Log(logx.LevelWarn, "shutdown tracer", "Err", err.Error())
		}
	})

	store, err := buildCredentialStore(ctx, cfg.Credentials, &cl, logger)
	if err != nil {
		return err
	}

	verifier, err := buildVerifier(cfg.Auth, store, &cl, logger)
	if err != nil {
		return err
	}

	logFinder := logx.NewSingleLoggerLogFinder(logger)

	var servers []*http.Server
	newServer := func(addr string, h http.Handler) {
		servers = append(servers, &http.Server{
			Addr:         addr,
			Handler:      h,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  2 * time.Minute,
		})
	}

	if cfg.Server.Ec2ListenAddr != "" {
		newServer(cfg.Server.Ec2ListenAddr, buildEc2Handler(cfg, verifier, logFinder, &cl))
	}
	if cfg.Server.S3ListenAddr != "" {
		newServer(cfg.Server.S3ListenAddr, buildS3Handler(cfg, buildS3Engine(cfg, logger), verifier, logFinder, &cl))
	}
	if m := cfg.Telemetry.Metrics; m.Enabled {
		mux := http.NewServeMux()
		mux.Handle(m.Path, telemetry.Handler())
		newServer(m.ListenAddr, mux)
	}

	errCh := make(chan error, len(servers))
	var wg sync.WaitGroup
	for _, srv := range servers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.Log(logx.LevelInfo, "listening", "Addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- errx.Wrap(fmt.Sprintf("listen on %s", srv.Addr), err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Log(logx.LevelInfo, "shutting down")
	case runErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Log(logx.LevelError, "shutdown server", "Addr", srv.Addr, "Err", err.Error())
		}
	}
	wg.Wait()

	return runErr
}
