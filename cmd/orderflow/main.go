// Package main запускает HTTP-сервер сервиса обработки заказов.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/orderflow/internal/carrier"
	"github.com/mmeshcher/orderflow/internal/config"
	"github.com/mmeshcher/orderflow/internal/events"
	"github.com/mmeshcher/orderflow/internal/handler"
	"github.com/mmeshcher/orderflow/internal/middleware"
	"github.com/mmeshcher/orderflow/internal/notify"
	"github.com/mmeshcher/orderflow/internal/repository"
	"github.com/mmeshcher/orderflow/internal/service"
	"github.com/mmeshcher/orderflow/internal/workflow"
)

const eventQueueSize = 256

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	var store service.Store
	if cfg.DatabaseURI != "" {
		repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
		if err != nil {
			sugar.Fatalw("database initialization error", "error", err.Error())
		}
		store = repo
	} else {
		sugar.Warn("DATABASE_URI is not set, orders are kept in memory")
		store = repository.NewMemoryRepository()
	}

	emitter := events.NewEmitter(logger, eventQueueSize)
	emitter.Subscribe(notify.NewLogListener(logger))

	if cfg.NotifyWebhookURL != "" {
		emitter.Subscribe(notify.NewWebhookListener(cfg.NotifyWebhookURL, logger))
		sugar.Infow("webhook notifications enabled", "url", cfg.NotifyWebhookURL)
	}

	var kafkaListener *notify.KafkaListener
	if brokers := cfg.Brokers(); len(brokers) > 0 {
		kafkaListener = notify.NewKafkaListener(brokers, cfg.KafkaTopic)
		emitter.Subscribe(kafkaListener)
		sugar.Infow("kafka notifications enabled", "brokers", brokers, "topic", cfg.KafkaTopic)
	}

	carriers := carrier.Default()
	machine := workflow.NewMachine(carriers)

	svc := service.NewService(store, machine, emitter, logger)
	defer svc.Close()

	if cfg.AdminAPIKey == "" {
		sugar.Warn("ADMIN_API_KEY is not set, operator login is disabled")
	}

	authMiddleware := middleware.NewAuthMiddleware(cfg.AuthSecret)
	h := handler.NewHandler(svc, carriers, cfg.AdminAPIKey, logger, authMiddleware)

	r := h.SetupRouter()

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Эмиттер останавливается только после HTTP-сервера, чтобы не потерять события
	// от запросов, которые ещё завершаются.
	emitterCtx, stopEmitter := context.WithCancel(context.Background())
	defer stopEmitter()

	// Доставка событий смены статуса подписчикам
	g.Go(func() error {
		emitter.Run(emitterCtx)
		return nil
	})

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting orderflow server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		defer stopEmitter()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	err = g.Wait()

	if kafkaListener != nil {
		if cerr := kafkaListener.Close(); cerr != nil {
			sugar.Errorw("kafka writer close error", "error", cerr)
		}
	}

	if err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
