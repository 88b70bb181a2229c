package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ride-share/internal/ride-service/app"
	"ride-share/internal/ride-service/consumer"
	"ride-share/internal/ride-service/handler"
	"ride-share/internal/ride-service/service"
	"ride-share/pkg/auth"
	"ride-share/pkg/config"
	"ride-share/pkg/logger"
	"ride-share/pkg/websocket"
)

func main() {
	// Load config
	cfg, err := config.LoadConfig(".env")
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	log := logger.New("ride-service", os.Stdout, cfg.Log.Debug)
	log.Info("service_starting", fmt.Sprintf("Ride Service starting on port %d", cfg.Services.RideService))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := app.OpenStore(ctx, cfg, log)
	if err != nil {
		log.Error("store_connect_failed", err)
		os.Exit(1)
	}
	defer store.Close(context.Background())

	revoker, closeRevoker, err := app.OpenRevoker(ctx, cfg, log)
	if err != nil {
		log.Error("redis_connect_failed", err)
		os.Exit(1)
	}
	defer closeRevoker()

	publisher, err := app.OpenPublisher(cfg, log)
	if err != nil {
		log.Error("broker_connect_failed", err)
		os.Exit(1)
	}
	defer publisher.Close()

	jwtManager := auth.NewJWTManager(cfg.JWT.Secret, cfg.JWT.TTL, revoker)
	wsManager := websocket.NewManager(log)
	defer wsManager.CloseAll()

	// Notifications: broker -> dispatcher -> websocket
	dispatcher := consumer.NewDispatcher(wsManager, log)
	switch cfg.Events.Broker {
	case "rabbitmq":
		if err := consumer.NewRabbitMQConsumer(publisher.Rabbit, dispatcher, log).StartConsuming(); err != nil {
			log.Error("consumer_start_failed", err)
			os.Exit(1)
		}
	case "kafka":
		kc := consumer.NewKafkaConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.GroupID, dispatcher, log)
		defer kc.Close()
		go kc.Run(ctx)
	}

	clock := time.Now
	rides := handler.NewRideHandler(
		service.NewCreateRideUseCase(store, publisher, log, clock),
		service.NewRequestRideUseCase(store, publisher, log, clock),
		service.NewCancelRideRequestUseCase(store, publisher, log, clock),
		service.NewCancelRideUseCase(store, publisher, log, clock),
		service.NewFinalizeRideUseCase(store, publisher, log, clock),
		service.NewRideDirectory(store, log, clock),
		log,
	)
	vehicles := handler.NewVehicleHandler(service.NewVehicleService(store, log, clock), log)

	mux := http.NewServeMux()
	handler.RegisterRideRoutes(mux, jwtManager, rides, vehicles, handler.NewHealthHandler(store, log))
	mux.Handle("GET /ws/notifications", websocket.NewHandler(log, jwtManager, func(conn *websocket.Connection) {
		userID := conn.Claims.UserID
		wsManager.AddConnection(userID, conn)
		conn.ReadPump(
			func(msgType int, p []byte) {
				log.WithFields(logger.LogFields{"user_id": userID}).Debug("ws_message", "Message from client ignored")
			},
			func() { wsManager.RemoveConnection(userID, conn) },
		)
	}))

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Services.RideService),
		Handler:      handler.WithRequestID(log, mux),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("server_running", fmt.Sprintf("Ride Service running on %s", srv.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Error("server_failed", err)
		}
	case <-ctx.Done():
		log.Info("server_shutdown", "Shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server_shutdown_failed", err)
	}
	log.Info("server_stopped", "Server stopped gracefully")
}
