package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/arvikar/glb/internal/config"
	"github.com/arvikar/glb/internal/handler"
	"github.com/arvikar/glb/internal/httpclient"
	"github.com/arvikar/glb/internal/middleware"
	"github.com/arvikar/glb/internal/repository"
	"github.com/arvikar/glb/internal/service"
	"github.com/arvikar/glb/pkg/logger"
)

const (
	version         = "1.0.0"
	shutdownTimeout = 30 * time.Second
)

func main() {
	configFile := os.Getenv("GLB_CONFIG_FILE")
	if configFile == "" {
		configFile = "config.yaml"
	}

	cfg, err := config.LoadFromFile(configFile)
	if err != nil {
		fmt.Printf("failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
		File:   cfg.Logging.File,
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	log.Info("starting load balancer")

	lbConfig, err := cfg.ToLoadBalancerConfig()
	if err != nil {
		log.WithError(err).Fatal("invalid load balancer configuration")
	}

	log.WithFields(map[string]interface{}{
		"version":  version,
		"strategy": lbConfig.Strategy,
		"port":     lbConfig.Port,
		"backends": len(lbConfig.Backends),
		"process":  getProcessInfo(),
	}).Info("configuration loaded")

	shutdownCtx, shutdownSignal := context.WithCancel(context.Background())
	defer shutdownSignal()

	pool, err := repository.NewPool(lbConfig.Backends, shutdownCtx)
	if err != nil {
		log.WithError(err).Fatal("failed to build backend pool")
	}

	healthChecker, err := service.NewHealthChecker(lbConfig.HealthCheck, pool.All(), log)
	if err != nil {
		log.WithError(err).Fatal("failed to create health checker")
	}

	loadBalancer, err := service.NewLoadBalancer(pool, healthChecker, lbConfig.Strategy, log)
	if err != nil {
		log.WithError(err).Fatal("failed to create load balancer")
	}

	retryClient, err := httpclient.New(lbConfig.RetryBudget, lbConfig.RetryDelay, lbConfig.HealthCheck.Timeout, log)
	if err != nil {
		log.WithError(err).Fatal("failed to create retrying http client")
	}

	forwardHandler := handler.NewForwardHandler(loadBalancer, retryClient, log)
	healthHandler := handler.NewHealthHandler(loadBalancer, version)

	router := mux.NewRouter()
	router.HandleFunc("/readiness", healthHandler.ReadinessHandler).Methods(http.MethodGet)
	router.HandleFunc("/liveness", healthHandler.LivenessHandler).Methods(http.MethodGet)
	router.PathPrefix("/").Handler(forwardHandler)

	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.LoggingMiddleware(log))

	port := getPort(lbConfig.Port)
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.WithFields(map[string]interface{}{
			"port":     port,
			"strategy": lbConfig.Strategy,
			"backends": len(lbConfig.Backends),
		}).Info("starting http server")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("http server failed")
		}
	}()

	// The listener above accepts connections immediately; forwards produce a
	// synthesized 500 until this eager pass publishes the first healthy set.
	loadBalancer.Start(shutdownCtx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Info("shutdown signal received")

	shutdownSignal()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stopCancel()

	loadBalancer.Stop(stopCtx)

	if err := server.Shutdown(stopCtx); err != nil {
		log.WithError(err).Error("error shutting down http server")
	}

	log.Info("load balancer stopped gracefully")
}
