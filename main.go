package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"fastchat/internal/config"
	"fastchat/internal/database"
	"fastchat/internal/handlers"
	"fastchat/internal/logger"
	"fastchat/internal/middleware"
	"fastchat/internal/repository"
	"fastchat/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config: ", err)
	}

	zlog, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatal("Failed to init logger: ", err)
	}
	defer zlog.Sync()
	zlog.Info("starting chat API", zap.String("prefix", cfg.APIPrefix), zap.String("addr", cfg.Addr()))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.InitDB(ctx, cfg, zlog)
	if err != nil {
		zlog.Fatal("failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := database.Close(db); err != nil {
			zlog.Warn("failed to close database", zap.Error(err))
		}
	}()

	chats := repository.NewChatRepository(db)
	messages := repository.NewMessageRepository(db)

	r := mux.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(zlog.Named("http")))
	r.Use(middleware.Recover(zlog))
	r.Use(middleware.JSONContentType)

	handlers.InitHandlers(r, &handlers.Handler{
		Chats:    chats,
		Messages: messages,
		History:  service.NewHistoryService(chats, messages, zlog.Named("history")),
		Ping:     func(ctx context.Context) error { return database.Ping(ctx, db) },
		Log:      zlog.Named("chats"),
	}, cfg.APIPrefix)

	srv := &http.Server{
		Handler:      r,
		Addr:         cfg.Addr(),
		WriteTimeout: cfg.WriteTimeout,
		ReadTimeout:  cfg.ReadTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		zlog.Info("server listening", zap.String("addr", srv.Addr))
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			zlog.Error("server stopped", zap.Error(err))
		}
		return
	case <-ctx.Done():
	}

	zlog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Error("graceful shutdown failed", zap.Error(err))
	}
}
