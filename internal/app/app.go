// Package app собирает сервис заказов: хранилища, сервисы, HTTP API, gRPC health,
// outbox worker и ops-эндпоинты.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	promgrpc "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/vladislavdragonenkov/orderprovider/internal/cart"
	healthcheck "github.com/vladislavdragonenkov/orderprovider/internal/health"
	"github.com/vladislavdragonenkov/orderprovider/internal/metrics"
	"github.com/vladislavdragonenkov/orderprovider/internal/service/order"
	"github.com/vladislavdragonenkov/orderprovider/internal/service/outbox"
	"github.com/vladislavdragonenkov/orderprovider/internal/telemetry"
	"github.com/vladislavdragonenkov/orderprovider/internal/transport/httpapi"
	"github.com/vladislavdragonenkov/orderprovider/internal/version"
)

const (
	serviceName     = "orderprovider"
	shutdownTimeout = 5 * time.Second
)

// Run запускает приложение и блокируется до отмены ctx или падения одного из серверов.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	_, shutdownTracing, err := telemetry.InitTracing(ctx, telemetry.Config{
		ServiceName: serviceName,
		Version:     version.Current().Version,
		Endpoint:    cfg.OTLPEndpoint,
		Insecure:    cfg.OTLPInsecure,
		SampleRatio: cfg.TraceSampleRatio,
	}, logger.WithField("layer", "telemetry"))
	if err != nil {
		return err
	}
	defer shutdownTracing(context.Background())

	deps, err := NewDependencies(ctx, cfg, logger.WithField("layer", "storage"))
	if err != nil {
		return err
	}
	defer func() {
		if err := deps.Close(); err != nil {
			logger.WithError(err).Warn("failed to close storage")
		}
	}()

	orderService := order.NewService(deps.Orders, deps.Users, deps.Promos,
		order.WithOutbox(deps.Outbox),
		order.WithTimeline(deps.Timeline),
		order.WithMetrics(metrics.NewOrderMetrics()),
		order.WithLogger(logger.WithField("layer", "orders")),
	)
	cartService := cart.NewService(deps.Carts, deps.Promos, logger.WithField("layer", "carts"))

	kafkaProducer, _ := initKafkaProducer(cfg.KafkaBrokers, logger)
	defer closeKafka(kafkaProducer, logger)
	stopWorker := startOutboxWorker(ctx, newOutboxWorker(deps.Outbox, kafkaProducer, cfg, logger))
	defer stopWorker()

	monitor := healthcheck.NewMonitor(version.Current().Version)
	deps.RegisterCheckers(monitor)
	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, monitor)
	defer shutdownHTTP(metricsSrv, logger)

	auth := httpapi.NewAuthenticator(cfg.JWTSecret, logger.WithField("layer", "auth"))
	router := httpapi.NewRouter(httpapi.NewHandler(orderService, cartService, logger.WithField("layer", "http")), auth)
	apiListener, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listen http: %w", err)
	}
	apiSrv := &http.Server{Handler: router, ReadHeaderTimeout: 5 * time.Second}

	grpcServer, healthServer := newGRPCServer(logger)
	grpcListener, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		_ = apiListener.Close()
		return fmt.Errorf("listen grpc: %w", err)
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Infof("HTTP API слушает %s", apiListener.Addr())
		if err := apiSrv.Serve(apiListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http api: %w", err)
		}
	}()
	go func() {
		logger.Infof("gRPC сервер слушает %s", grpcListener.Addr())
		if err := grpcServer.Serve(grpcListener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errCh <- fmt.Errorf("grpc: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем серверы")
		runErr = ctx.Err()
	case runErr = <-errCh:
		logger.WithError(runErr).Error("сервер завершился с ошибкой")
	}

	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	shutdownHTTP(apiSrv, logger)
	stopGRPC(grpcServer, logger)
	return runErr
}

// newGRPCServer создаёт gRPC сервер со стандартным health-сервисом и prometheus-интерцепторами.
func newGRPCServer(logger *log.Entry) (*grpc.Server, *health.Server) {
	grpcMetrics := promgrpc.NewServerMetrics()
	if err := prometheus.Register(grpcMetrics); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*promgrpc.ServerMetrics); ok {
				grpcMetrics = existing
			}
		} else {
			logger.WithError(err).Warn("failed to register grpc metrics")
		}
	}

	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(grpcMetrics.UnaryServerInterceptor()),
		grpc.ChainStreamInterceptor(grpcMetrics.StreamServerInterceptor()),
	)

	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(serviceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	reflection.Register(grpcServer)
	grpcMetrics.InitializeMetrics(grpcServer)

	return grpcServer, healthServer
}

func stopGRPC(srv *grpc.Server, logger *log.Entry) {
	stopped := make(chan struct{})
	go func() {
		srv.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(shutdownTimeout):
		logger.Warn("graceful stop превысил таймаут, принудительно останавливаем")
		srv.Stop()
	}
}

// startOutboxWorker запускает воркер в фоне и возвращает функцию остановки,
// которая дожидается завершения текущего цикла.
func startOutboxWorker(ctx context.Context, worker *outbox.Worker) func() {
	if worker == nil {
		return func() {}
	}

	workerCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Run(workerCtx)
	}()

	return func() {
		cancel()
		wg.Wait()
	}
}

// startMetricsServer запускает ops-сервер: /metrics и health-пробы.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, monitor *healthcheck.Monitor) *http.Server {
	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.Handler())
	monitor.Mount(router)

	srv := &http.Server{Addr: addr, Handler: router, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		logger.Infof("health checks: %s/healthz, %s/livez, %s/readyz", addr, addr, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}
