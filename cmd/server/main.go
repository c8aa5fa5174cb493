package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/MAnasLatif/kyc/internal/admin"
	"github.com/MAnasLatif/kyc/internal/config"
	"github.com/MAnasLatif/kyc/internal/controllers"
	"github.com/MAnasLatif/kyc/internal/database"
	"github.com/MAnasLatif/kyc/internal/repositories"
	"github.com/MAnasLatif/kyc/internal/routes"
	"github.com/MAnasLatif/kyc/internal/runs"
	"github.com/MAnasLatif/kyc/internal/services"
	"github.com/MAnasLatif/kyc/internal/shufti"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("failed to load config: %v", err)
	}

	setupLogging(&cfg.Logging)
	logCredentialStatus(cfg)

	if err := database.Connect(&cfg.Database); err != nil {
		logrus.Fatalf("failed to connect database: %v", err)
	}
	defer func() {
		if err := database.Close(); err != nil {
			logrus.Errorf("error closing database: %v", err)
		}
	}()

	if cfg.Database.Migrate {
		if err := database.RunMigrations(&cfg.Database); err != nil {
			logrus.Fatalf("failed to run migrations: %v", err)
		}
	}

	db := database.GetDB()
	counter := buildCounter(cfg)
	provider := shufti.NewClient(cfg.Shufti.APIURL, cfg.Shufti.ClientID, cfg.Shufti.SecretKey, cfg.Shufti.GetTimeout())

	// Initialize services
	kycService := services.NewKycService(
		repositories.NewSessionRepository(db),
		repositories.NewWebhookRepository(db),
		repositories.NewUserRepository(db),
		provider,
		counter,
		cfg,
	)

	// Initialize controllers
	kycController := controllers.NewKycController(kycService, cfg)

	// Setup router
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	router := gin.Default()
	router.Use(corsMiddleware())
	routes.SetupRoutes(router, kycController, cfg.Server.Mode)

	admin.Setup(router, kycService, cfg)

	addr := cfg.Server.Host + ":" + strconv.Itoa(cfg.Server.Port)
	go func() {
		logrus.WithFields(logrus.Fields{
			"addr":     addr,
			"max_runs": cfg.KYC.MaxRuns,
			"callback": cfg.KYC.CallbackURL,
		}).Infof("KYC server running (counter=%T)", counter)
		if err := router.Run(addr); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("failed to run server: %v", err)
		}
	}()

	waitForShutdown()
}

func setupLogging(cfg *config.LoggingConfig) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	if cfg.Format == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}
}

// logCredentialStatus reports whether provider credentials are present
// without exposing them.
func logCredentialStatus(cfg *config.Config) {
	if cfg.Shufti.ClientID == "" || cfg.Shufti.SecretKey == "" {
		logrus.Error("Shufti Pro credentials missing")
		return
	}
	logrus.WithFields(logrus.Fields{
		"client_id_prefix": prefix(cfg.Shufti.ClientID, 8),
		"client_id_len":    len(cfg.Shufti.ClientID),
	}).Info("Shufti Pro credentials loaded")
}

func prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// buildCounter picks the run-counter backend. Redis makes the limit hold
// across instances; if it is unreachable at startup the server still comes
// up with the per-instance in-memory counter.
func buildCounter(cfg *config.Config) runs.Counter {
	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			logrus.Errorf("Redis unreachable, falling back to in-memory run counter: %v", err)
			return runs.NewMemoryCounter(cfg.KYC.MaxRuns)
		}
		return runs.NewRedisCounter(client, "kyc_runs", cfg.KYC.MaxRuns)
	}
	return runs.NewMemoryCounter(cfg.KYC.MaxRuns)
}

func waitForShutdown() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logrus.Info("Shutting down server...")
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, Authorization, Signature, X-Cron-Secret")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
