package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"pixelweave-server/modules/common/storage"
	"pixelweave-server/modules/notification"
	"pixelweave-server/modules/payment"
	"pixelweave-server/modules/studio"
	"pixelweave-server/modules/user"
	"pixelweave-server/modules/wardrobe"
	"pixelweave-server/modules/worker"
)

var startTime = time.Now()

// newRouter - 전체 HTTP 라우트 구성
func newRouter(a *app, hub *notification.Hub, publisher notification.Publisher, runner *worker.Runner) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/", healthCheck).Methods("GET")
	r.HandleFunc("/health", healthCheck).Methods("GET")
	r.Handle("/ws", notification.NewHandler(hub, a.tokens, a.db))
	r.HandleFunc("/metrics", metricsHandler(a, hub, runner)).Methods("GET")

	sweeper := worker.NewSweeper(a.db, a.store, a.jobs, publisher, a.cfg.StaleJobAfter)
	worker.NewAdminHandler(a.cfg.AdminToken, a.jobs, a.queue, sweeper).RegisterRoutes(r)

	if local, ok := a.store.(*storage.Local); ok {
		r.PathPrefix("/media/").Handler(http.StripPrefix("/media/", http.FileServer(http.Dir(local.Root()))))
		log.Printf("🖼️  Serving local media from %s", local.Root())
	}

	api := r.PathPrefix("/api").Subrouter()
	protected := api.NewRoute().Subrouter()
	protected.Use(a.tokens.Middleware)

	provider := payment.NewStripeProvider(a.cfg.StripeSecretKey, a.cfg.StripeWebhookSecret)
	if a.cfg.StripeSecretKey == "" {
		log.Warn("⚠️  STRIPE_SECRET_KEY not set, checkout creation will fail")
	}
	payments := payment.NewService(a.db, a.ledger, provider, a.cfg.CreditPerDollar)

	payment.NewHandler(payments).RegisterRoutes(api, protected)
	wardrobe.NewHandler(a.jobs).RegisterRoutes(protected)
	studio.NewHandler(a.jobs).RegisterRoutes(protected)
	worker.NewCancelHandler(a.jobs, publisher).RegisterRoutes(protected)
	user.NewHandler(a.db).RegisterRoutes(protected)

	// mux 미들웨어는 매칭된 라우트에만 적용되므로 preflight 는 바깥에서 처리
	return enableCORS(r)
}

// CORS 미들웨어
func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Stripe-Signature")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// 헬스 체크 엔드포인트
func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"service": "pixelweave-server",
	})
}

// 서버 메트릭 조회 엔드포인트
func metricsHandler(a *app, hub *notification.Hub, runner *worker.Runner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		queueLen, err := a.queue.Len(ctx)
		if err != nil {
			log.Warnf("⚠️  Failed to read queue length: %v", err)
			queueLen = -1
		}

		body := map[string]any{
			"server": map[string]any{
				"uptime":    time.Since(startTime).String(),
				"startTime": startTime,
			},
			"notifications": hub.Snapshot(),
			"queue": map[string]any{
				"name":   "jobs:queue",
				"length": queueLen,
			},
		}
		if runner != nil {
			body["worker"] = runner.Metrics()
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(body)
	}
}
