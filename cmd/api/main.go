package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v2"

	"dcf_valuation/pkg/api/valuation"
	"dcf_valuation/pkg/core/benchmark"
	"dcf_valuation/pkg/core/pipeline"
)

// serverConfig is loaded from config/server.yaml; every field has a default
// so the binary runs with no config file at all.
type serverConfig struct {
	Addr             string `yaml:"addr"`
	BenchmarkOverlay string `yaml:"benchmarkOverlay"`
	Logging          struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
}

func initLogger(level, format string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	switch level {
	case "", "info":
		zapLevel = zapcore.InfoLevel
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "warn", "warning":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		return nil, fmt.Errorf("invalid log level: %s", level)
	}

	var cfg zap.Config
	switch format {
	case "console":
		cfg = zap.NewDevelopmentConfig()
	case "", "json":
		cfg = zap.NewProductionConfig()
	default:
		return nil, fmt.Errorf("invalid log format: %s", format)
	}
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)
	return cfg.Build()
}

func main() {
	configPath := flag.String("config", "config/server.yaml", "server configuration file")
	logLevel := flag.String("log-level", "", "override configured log level")
	flag.Parse()

	godotenv.Load()

	cfg := serverConfig{Addr: ":8080"}
	if data, err := os.ReadFile(*configPath); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			fmt.Fprintf(os.Stderr, "parse %s: %v\n", *configPath, err)
			os.Exit(1)
		}
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if addr := os.Getenv("VALUATION_ADDR"); addr != "" {
		cfg.Addr = addr
	}

	level := cfg.Logging.Level
	if *logLevel != "" {
		level = *logLevel
	}
	logger, err := initLogger(level, cfg.Logging.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if cfg.BenchmarkOverlay != "" {
		if err := benchmark.LoadOverlay(cfg.BenchmarkOverlay); err != nil {
			logger.Warn("benchmark overlay not loaded", zap.Error(err))
		} else {
			logger.Info("benchmark overlay loaded", zap.String("path", cfg.BenchmarkOverlay))
		}
	}

	handler := valuation.NewHandler(pipeline.New(), logger)
	http.HandleFunc("/api/valuation/run", handler.HandleRun)
	http.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})

	logger.Info("valuation API listening", zap.String("addr", cfg.Addr))
	if err := http.ListenAndServe(cfg.Addr, nil); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
