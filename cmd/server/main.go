package main

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/maynagashev/fastsync/internal/cache"
	"github.com/maynagashev/fastsync/internal/handlers"
	appmiddleware "github.com/maynagashev/fastsync/internal/middleware"
	"github.com/maynagashev/fastsync/internal/repository"
	"github.com/maynagashev/fastsync/internal/services"
)

const (
	defaultReadTimeout  = 30 * time.Second
	defaultWriteTimeout = 30 * time.Second
	defaultIdleTimeout  = 60 * time.Second

	// Уровень сжатия gzip для JSON-ответов (снимки состояния и содержимое).
	gzipLevel = 5
)

// Структура для хранения инициализированных зависимостей.
type dependencies struct {
	registry    *repository.Registry
	syncHandler *handlers.SyncHandler
}

// main - точка входа. Вызывает run и обрабатывает ошибку.
func main() {
	if err := run(); err != nil {
		log.Printf("Ошибка выполнения сервера: %v", err)
		os.Exit(1)
	}
}

// run содержит основную логику запуска сервера и возвращает ошибку.
func run() error {
	log.Println("Запуск сервера синхронизации хранилищ...")

	cfg, err := parseFlags()
	if err != nil {
		return fmt.Errorf("ошибка конфигурации: %w", err)
	}

	// Инициализация зависимостей
	deps := setupDependencies(cfg)
	// Отложенное закрытие всех баз хранилищ
	defer func() {
		if closeErr := deps.registry.Close(); closeErr != nil {
			log.Printf("Ошибка закрытия баз хранилищ: %v", closeErr)
		}
	}()

	// Настройка роутера
	r := setupRouter(cfg, deps.syncHandler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
		IdleTimeout:  defaultIdleTimeout,
	}

	log.Printf("Каталог баз хранилищ: %s", cfg.DBBasePath)

	if cfg.useTLS() {
		log.Printf("Запуск HTTPS-сервера на порту %s...", cfg.Port)
		err = server.ListenAndServeTLS(cfg.CertFile, cfg.KeyFile)
	} else {
		log.Printf("Запуск HTTP-сервера на порту %s...", cfg.Port)
		err = server.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("ошибка запуска сервера: %w", err)
	}
	return nil
}

// setupDependencies инициализирует и возвращает все зависимости сервера.
// Базы хранилищ создаются лениво при первом запросе, здесь только реестр.
func setupDependencies(cfg *config) *dependencies {
	registry := repository.NewRegistry(cfg.DBBasePath)
	store := repository.NewStore(registry)
	stateCache := cache.NewMemoryCache()
	syncService := services.NewSyncService(store, stateCache)

	return &dependencies{
		registry:    registry,
		syncHandler: handlers.NewSyncHandler(syncService),
	}
}

// setupRouter настраивает и возвращает роутер chi.
func setupRouter(cfg *config, syncHandler *handlers.SyncHandler) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(gzipLevel, "application/json"))
	// Клиенты ходят из плагинов и десктопных приложений, origin не ограничиваем.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: false,
	}))

	// --- Маршруты --- //
	r.Route("/v1", func(r chi.Router) {
		// Публичная проверка живости
		r.Get("/health", syncHandler.Health)

		// Операции над хранилищем (требуют ключ API)
		r.Route("/{vaultID}", func(r chi.Router) {
			r.Use(appmiddleware.APIKey(cfg.APIKey))

			r.Post("/uploadChanges", syncHandler.UploadChanges)
			r.Get("/state", syncHandler.GetState)
			r.Post("/downloadFiles", syncHandler.DownloadFiles)
			r.Get("/fileHistory/{stableID}", syncHandler.FileHistory)
			r.Get("/allFiles", syncHandler.AllFiles)
			r.Post("/forcePushReset", syncHandler.ForcePushReset)
		})
	})
	return r
}
