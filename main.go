// Command viegym-sync-client runs the headless sync agent: it resolves the
// session, opens the realtime connection, keeps the notification and
// conversation stores synchronized, and optionally exposes Prometheus
// metrics.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/VieGym/viegym-sync-client/config"
	"github.com/VieGym/viegym-sync-client/internal/gateway"
	"github.com/VieGym/viegym-sync-client/internal/realtime"
	"github.com/VieGym/viegym-sync-client/internal/session"
	"github.com/VieGym/viegym-sync-client/logger"
	"github.com/VieGym/viegym-sync-client/services"
	"github.com/VieGym/viegym-sync-client/store"
	"github.com/VieGym/viegym-sync-client/types"
)

func main() {
	logger.InitLogger()
	log := logger.GetLogger()
	defer func() {
		_ = logger.Close()
	}()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	sess := session.New(cfg.Auth.Token)
	gw := gateway.NewClient(cfg.Gateway.BaseURL, sess,
		gateway.WithHTTPClient(&http.Client{Timeout: cfg.Gateway.Timeout()}))

	resolveCtx, cancel := context.WithTimeout(context.Background(), cfg.Gateway.Timeout())
	err = sess.Resolve(resolveCtx, gw)
	cancel()
	if err != nil {
		log.Fatalf("Failed to resolve session: %v", err)
	}

	if sess.TokenExpired() {
		log.Warnw("Auth token is expired; realtime connect will likely be rejected",
			"expiry", sess.TokenExpiry())
	}

	conn := realtime.NewConn(realtime.Options{
		Endpoint:            cfg.Realtime.Endpoint,
		Heartbeat:           cfg.Realtime.Heartbeat(),
		ReconnectDelay:      cfg.Realtime.ReconnectDelay(),
		MaxReconnectsPer10s: cfg.Realtime.MaxReconnectsPer10s,
	}, sess)

	notifStore := store.NewNotificationStore(gw, store.NewLogAlerter(cfg.Sync.SoundCue))
	convStore := store.NewConversationStore(sess.UserID(), gw)

	notifSync := services.NewNotificationSyncService(notifStore, conn)
	convSync := services.NewConversationSyncService(convStore, conn)
	likeSync := services.NewLikeSyncService(conn)

	runCtx := context.Background()
	if err := notifSync.Connect(runCtx, sess.UserID()); err != nil {
		log.Fatalf("Failed to start notification sync: %v", err)
	}
	if err := convSync.Start(runCtx, sess.UserID()); err != nil {
		log.Fatalf("Failed to start conversation sync: %v", err)
	}

	manifest, err := config.LoadTopicsManifest(cfg.TopicsManifest)
	if err != nil {
		log.Fatalf("Failed to load topics manifest: %v", err)
	}
	for _, postID := range manifest.LikePosts {
		if err := likeSync.Follow(runCtx, postID); err != nil {
			log.Warnw("Failed to follow like topic", "postID", postID, "error", err)
		}
	}
	for _, topic := range manifest.Topics {
		conn.Subscribe(topic, func(frame types.Frame) {
			log.Infow("Frame received", "destination", frame.Destination)
		})
	}

	// Seed local state from server truth before the first push arrives.
	seedCtx, seedCancel := context.WithTimeout(runCtx, cfg.Gateway.Timeout())
	if err := notifSync.Refresh(seedCtx, 0, cfg.Sync.NotificationPageSize); err != nil {
		log.Warnw("Initial notification refresh failed", "error", err)
	}
	if err := convStore.LoadConversations(seedCtx); err != nil {
		log.Warnw("Initial conversation load failed", "error", err)
	}
	seedCancel()

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
		go func() {
			log.Infow("Serving metrics", "addr", cfg.MetricsAddr)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Errorw("Metrics server failed", "error", err)
			}
		}()
	}

	log.Infow("Sync agent running",
		"userID", sess.UserID(),
		"conversations", len(convStore.Conversations()),
		"unread", notifStore.UnreadCount(),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down sync agent")

	convSync.Stop()
	notifSync.Disconnect()

	if metricsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = metricsServer.Shutdown(shutdownCtx)
		shutdownCancel()
	}
}
