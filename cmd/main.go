package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"tripsplit/internal/clients"
	"tripsplit/internal/config"
	"tripsplit/internal/domain"
	"tripsplit/internal/repository"
	"tripsplit/internal/service"
	"tripsplit/internal/transport/auth"
	"tripsplit/internal/transport/rest"
	"tripsplit/internal/transport/websocket"
	"tripsplit/pkg/database/postgres"
	"tripsplit/pkg/logging"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using system env or defaults")
	}
	logging.Setup()

	// top-level context which we can cancel on shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cfg := config.Load()

	var (
		store       repository.Store
		members     repository.MemberDirectory
		tokens      auth.TokenFinder
		redisClient *clients.RedisClient
	)

	if cfg.UseMemoryStore {
		slog.Info("running with in-memory store, data will not survive a restart")
		store = repository.NewMemoryStore()
		members = seedMemoryDirectory()
	} else {
		db, err := postgres.NewPostgresConnection(postgres.ConnectionInfo{
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Username: cfg.Postgres.User,
			DBName:   cfg.Postgres.DBName,
			SSLMode:  cfg.Postgres.SSLMode,
			Password: cfg.Postgres.Password,
		})
		if err != nil {
			log.Fatalf("postgres init error: %v", err)
		}
		if err := repository.RunMigrations(db); err != nil {
			log.Fatalf("migrations error: %v", err)
		}

		store = repository.NewPaymentRepository(db)
		members = repository.NewMemberRepository(db)
		tokens = repository.NewAccessTokenRepository(db)

		redisClient = mustInitRedis(cfg.Redis)
		defer redisClient.Close()
	}
	defer store.Close()

	var storage clients.ExportStorage
	var localStorage *clients.StorageClient
	if cfg.UseS3Storage {
		s3, err := clients.NewS3Client(ctx, clients.S3Config{
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			Bucket:          cfg.S3.Bucket,
			UseSSL:          cfg.S3.UseSSL,
			Region:          cfg.S3.Region,
			Prefix:          cfg.S3.Prefix,
		})
		if err != nil {
			log.Fatalf("s3 init error: %v", err)
		}
		storage = s3
	} else {
		local, err := clients.NewLocalStorage(cfg.ExportDir, cfg.FilesPublicPrefix, cfg.ExternalURL)
		if err != nil {
			log.Fatalf("storage init error: %v", err)
		}
		storage = local
		localStorage = local
	}

	wsHub := websocket.NewHub()
	go wsHub.Run(ctx)
	wsClient := clients.NewWebSocketClient(wsHub)

	quotaSvc := service.NewQuotaService(store, cfg.Quota)
	paymentSvc := service.NewPaymentService(store, members, quotaSvc, wsClient)
	settlementSvc := service.NewSettlementService(store, members, wsClient, cfg.SettleForwardOnly)
	balanceSvc := service.NewBalanceService(store)
	exportSvc := service.NewExportService(store, members, redisClient, storage, wsClient)

	handler := rest.NewHandler(paymentSvc, settlementSvc, balanceSvc, quotaSvc, exportSvc)

	protected := chi.NewRouter()
	protected.Use(chimw.RequestID)
	protected.Use(chimw.RealIP)
	protected.Use(chimw.Logger)
	protected.Use(chimw.Recoverer)
	protected.Use(chimw.Timeout(30 * time.Second))
	protected.Use(auth.BearerMiddleware(tokens, members))
	protected.Mount("/", handler.Routes())

	protected.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
		member, err := auth.GetMember(r.Context())
		if err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		slog.Info("ws connected", "member_id", member.ID)
		wsHub.HandleWebSocket(w, r, member.ID)
	})

	// public root so /files and /health stay reachable without a token
	root := chi.NewRouter()

	root.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if localStorage != nil {
		root.Get("/files/{file}", func(w http.ResponseWriter, r *http.Request) {
			file := chi.URLParam(r, "file")
			path := filepath.Join(localStorage.BaseDir, filepath.Base(file))
			if _, err := os.Stat(path); err != nil {
				if os.IsNotExist(err) {
					http.NotFound(w, r)
					return
				}
				http.Error(w, "failed to access file", http.StatusInternalServerError)
				return
			}

			// prefer original filename in Content-Disposition (strip random prefix)
			orig := file
			if idx := strings.IndexByte(file, '_'); idx >= 0 {
				orig = file[idx+1:]
			}
			w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", orig))

			http.ServeFile(w, r, path)
		})
	}

	root.Mount("/", protected)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      withCORS(root),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			srvErr <- err
			return
		}
		srvErr <- nil
	}()

	// delete stale export files so local disk does not fill up
	if localStorage != nil {
		go func() {
			ticker := time.NewTicker(5 * time.Minute)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if err := localStorage.CleanupOlderThan(30 * time.Minute); err != nil {
						slog.Warn("storage cleanup error", "error", err)
					}
				}
			}
		}()
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-srvErr:
		if err != nil {
			log.Fatalf("http server error: %v", err)
		}
	case sig := <-stop:
		slog.Info("shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("http server shutdown error", "error", err)
		}

		cancel()

		if err := store.Close(); err != nil {
			slog.Error("store close error", "error", err)
		}
		if redisClient != nil {
			redisClient.Close()
		}

		slog.Info("shutdown complete")
	}
}

func mustInitRedis(cfg config.RedisConfig) *clients.RedisClient {
	client, err := clients.NewRedisClient(clients.RedisConfig{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		MaxRetries:  cfg.MaxRetries,
		DialTimeout: time.Duration(cfg.DialTimeout) * time.Second,
		Timeout:     time.Duration(cfg.Timeout) * time.Second,
		Prefix:      cfg.Prefix,
	})
	if err != nil {
		log.Fatalf("redis init error: %v", err)
	}
	return client
}

// seedMemoryDirectory builds the demo membership used with the in-memory
// store: one trip, three members, the first of them an admin. Requests
// pick a member via the X-Member-ID header.
func seedMemoryDirectory() *repository.MemoryMemberDirectory {
	dir := repository.NewMemoryMemberDirectory()
	now := time.Now().UTC()
	demo := []domain.Member{
		{ID: "alice", DisplayName: "Alice", Tier: domain.TierFree, Role: domain.RoleAdmin, CreatedAt: now},
		{ID: "bob", DisplayName: "Bob", Tier: domain.TierFree, Role: domain.RoleMember, CreatedAt: now},
		{ID: "carol", DisplayName: "Carol", Tier: domain.TierPlus, Role: domain.RoleMember, CreatedAt: now},
	}
	ids := make([]string, len(demo))
	for i, m := range demo {
		dir.Members[m.ID] = m
		ids[i] = m.ID
	}
	dir.Trips["demo-trip"] = ids
	return dir
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")

			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PATCH,DELETE,OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Member-ID, X-Requested-With")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
