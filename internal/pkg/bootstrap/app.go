// internal/pkg/bootstrap/app.go
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	zlog "github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"medisaga/internal/pkg/nacos"
	"medisaga/internal/tracing"
)

const shutdownTimeout = 10 * time.Second

// Worker 后台组件。Start 不阻塞，Stop 等待其退出。
type Worker interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context)
}

type AppCtx struct {
	Mux    *http.ServeMux
	Nacos  *nacos.Client // 未启用 Nacos 时为 nil
	Config *Config
}

// AppInfo 包含了启动一个服务所需的特定信息
type AppInfo struct {
	ServiceName      string
	Port             int
	RegisterHandlers func(appCtx AppCtx)
	// Workers 在 HTTP 服务启动前按顺序启动，关停时逆序停止
	Workers []Worker
	// OnShutdown 在所有组件停止后调用，用于关闭连接
	OnShutdown func(ctx context.Context)
}

// StartService 启动 HTTP 服务与后台组件，阻塞直到收到 SIGINT/SIGTERM 或任一组件失败
func StartService(info AppInfo) error {
	cfg := GetCurrentConfig()
	if info.Port == 0 {
		info.Port = cfg.App.HTTPPort
	}

	tp, err := tracing.InitTracerProvider(info.ServiceName, cfg.Infra.Jaeger.Endpoint)
	if err != nil {
		return fmt.Errorf("failed to initialize tracer provider: %w", err)
	}

	var (
		namingClient *nacos.Client
		ip           string
	)
	if cfg.Infra.Nacos.Enabled {
		namingClient, err = nacos.NewNacosClient(cfg.Infra.Nacos.ServerAddrs, cfg.Infra.Nacos.Namespace, cfg.Infra.Nacos.Group)
		if err != nil {
			return fmt.Errorf("failed to initialize nacos client: %w", err)
		}
		if ip, err = GetOutboundIP(); err != nil {
			return fmt.Errorf("failed to get outbound IP address: %w", err)
		}
	}

	mux := http.NewServeMux()
	if info.RegisterHandlers != nil {
		info.RegisterHandlers(AppCtx{Mux: mux, Nacos: namingClient, Config: cfg})
	}
	server := &http.Server{
		Addr:              ":" + strconv.Itoa(info.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	started := make([]Worker, 0, len(info.Workers))
	for _, w := range info.Workers {
		if err := w.Start(gctx); err != nil {
			stopWorkers(started)
			return fmt.Errorf("failed to start worker: %w", err)
		}
		started = append(started, w)
	}

	g.Go(func() error {
		zlog.Info().Str("service", info.ServiceName).Int("port", info.Port).Msg("✅ HTTP server listening.")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("could not listen on %s: %w", server.Addr, err)
		}
		return nil
	})

	if namingClient != nil {
		if err := namingClient.RegisterServiceInstance(info.ServiceName, ip, info.Port); err != nil {
			zlog.Error().Err(err).Msg("🚨 Service registration failed, continuing without discovery.")
		}
	}

	g.Go(func() error {
		<-gctx.Done()
		zlog.Info().Str("service", info.ServiceName).Msg("🛑 Shutting down service...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		// 先注销，再停止接收流量
		if namingClient != nil {
			if err := namingClient.DeregisterServiceInstance(info.ServiceName, ip, info.Port); err != nil {
				zlog.Error().Err(err).Msg("Error deregistering from Nacos")
			}
			namingClient.Close()
		}
		if err := server.Shutdown(shutdownCtx); err != nil {
			zlog.Error().Err(err).Msg("Error shutting down http server")
		}
		stopWorkers(started)
		if info.OnShutdown != nil {
			info.OnShutdown(shutdownCtx)
		}
		if err := tp.Shutdown(shutdownCtx); err != nil {
			zlog.Error().Err(err).Msg("Error shutting down tracer provider")
		}
		zlog.Info().Str("service", info.ServiceName).Msg("✅ Service gracefully shut down.")
		return nil
	})

	return g.Wait()
}

func stopWorkers(workers []Worker) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for i := len(workers) - 1; i >= 0; i-- {
		workers[i].Stop(ctx)
	}
}

// GetOutboundIP 取本机对外通信使用的地址，UDP 拨号不会真正发包
func GetOutboundIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", err
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String(), nil
}

func newNacosConfigSource(cfg NacosConfig) (*nacos.ConfigClient, error) {
	cc, err := nacos.NewConfigClient(cfg.ServerAddrs, cfg.Namespace)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize nacos config client: %w", err)
	}
	return cc, nil
}
