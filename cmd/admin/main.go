package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/avelar/orgadmin/internal/admin/controller"
	"github.com/avelar/orgadmin/internal/admin/db"
	"github.com/avelar/orgadmin/internal/admin/events"
	"github.com/avelar/orgadmin/internal/admin/handlers"
	"github.com/avelar/orgadmin/internal/admin/identity"
	"github.com/avelar/orgadmin/internal/admin/reaper"
)

// Config struct for YAML configuration
type Config struct {
	HTTPPort      int      `yaml:"HTTP_PORT"`
	DBHost        string   `yaml:"DB_HOST"`
	DBPort        int      `yaml:"DB_PORT"`
	DBUser        string   `yaml:"DB_USER"`
	DBPassword    string   `yaml:"DB_PASSWORD"`
	DBName        string   `yaml:"DB_NAME"`
	DBSSLMode     string   `yaml:"DB_SSLMODE"`
	KafkaBrokers  []string `yaml:"KAFKA_BROKERS"`
	JWTSecret     string   `yaml:"JWT_SECRET"`
	Topic         string   `yaml:"TOPIC"`
	ReaperMinutes int      `yaml:"REAPER_INTERVAL_MINUTES"`
}

func main() {
	logger := initLogger()
	defer func(logger *zap.Logger) {
		err := logger.Sync()
		if err != nil {
			logger.Error("failed to sync logger", zap.Error(err))
		}
	}(logger)

	cfg, err := loadConfig()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	repo, err := db.NewRepository(initDatabase(cfg))
	if err != nil {
		log.Fatal("failed to initialize database", err)
	}
	defer repo.Close()

	producer, err := events.NewProducer(cfg.KafkaBrokers, logger, cfg.Topic)
	if err != nil {
		log.Fatal("failed to initialize Kafka producer", err)
	}
	defer producer.Close()

	clk := clock.New()
	idStore := identity.NewStore(repo)

	companySvc := controller.NewCompanyService(repo, producer, clk, logger)
	departmentSvc := controller.NewDepartmentService(repo, producer, logger)
	userSvc := controller.NewUserService(repo, idStore, producer, logger)

	seedSuperUser(userSvc, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	interval := time.Duration(cfg.ReaperMinutes) * time.Minute
	if interval <= 0 {
		interval = time.Hour
	}
	go reaper.New(repo, producer, clk, interval, logger).Run(ctx)

	handler := handlers.NewHandler(companySvc, departmentSvc, userSvc, cfg.JWTSecret, logger)
	server := handlers.NewServer(cfg.HTTPPort, logger)
	server.Register(handler)

	go func() {
		if err := server.Start(); err != nil {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	waitForShutdown(server, logger)
}

// initLogger initializes a Zap production logger.
func initLogger() *zap.Logger {
	logger, _ := zap.NewProduction()
	return logger
}

// loadConfig loads the YAML configuration with env overrides for
// secrets. A local .env file is honored when present.
func loadConfig() (*Config, error) {
	_ = godotenv.Load()

	configPath := filepath.Join("internal", "admin", "config", "config.yaml")
	file, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}
	var cfg Config
	err = yaml.Unmarshal(file, &cfg)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.JWTSecret = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		cfg.DBPassword = v
	}
	return &cfg, nil
}

// initDatabase initializes the database connection config.
func initDatabase(cfg *Config) *db.Config {
	return &db.Config{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		DBName:   cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
	}
}

// seedSuperUser creates the initial super user when seed credentials
// are configured and no such user exists yet.
func seedSuperUser(userSvc *controller.UserService, logger *zap.Logger) {
	email := os.Getenv("SUPER_USER_EMAIL")
	password := os.Getenv("SUPER_USER_PASSWORD")
	if email == "" || password == "" {
		logger.Info("super user credentials not set, skipping seed")
		return
	}
	if err := userSvc.EnsureSuperUser(context.Background(), "Super User", email, password); err != nil {
		logger.Fatal("failed to seed super user", zap.Error(err))
	}
}

// waitForShutdown blocks until an interrupt or SIGTERM is received, then shuts down the server.
func waitForShutdown(server *handlers.Server, logger *zap.Logger) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	server.Stop()
	logger.Info("Server stopped properly")
}
