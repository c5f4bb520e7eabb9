package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"github.com/exambank/scoring/internal/config"
	"github.com/exambank/scoring/internal/database"
	"github.com/exambank/scoring/internal/mastery"
	"github.com/exambank/scoring/internal/metrics"
	"github.com/exambank/scoring/internal/middleware"
	"github.com/exambank/scoring/internal/scoring"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println(".env not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Wire stores and services
	masteryAggregator := mastery.NewAggregator(mastery.NewStore(db), cfg.Scoring)
	scoringStore := scoring.NewStore(db)
	scoringService := scoring.NewService(
		scoring.NewResolver(scoringStore),
		scoringStore,
		masteryAggregator,
		cfg.Scoring,
	)
	calculator := metrics.NewCalculator(metrics.NewStore(db), cfg.Metrics)

	scoringHandler := scoring.NewHandler(scoringService)
	masteryHandler := mastery.NewHandler(masteryAggregator)
	metricsHandler := metrics.NewHandler(calculator)

	// Setup router
	r := mux.NewRouter()
	api := r.PathPrefix("/api/v1").Subrouter()

	protected := api.PathPrefix("").Subrouter()
	protected.Use(middleware.Auth([]byte(cfg.JWTSigningKey)))
	protected.HandleFunc("/submissions/score", scoringHandler.ScoreSubmission).Methods("POST")
	protected.HandleFunc("/students/{studentID}/mastery", masteryHandler.ListMastery).Methods("GET")
	protected.HandleFunc("/students/{studentID}/mastery/summary", masteryHandler.GetMasterySummary).Methods("GET")
	protected.HandleFunc("/students/{studentID}/mastery/{contextType}/{contextValue}", masteryHandler.GetMastery).Methods("GET")
	protected.HandleFunc("/contexts/difficulty", metricsHandler.ListDifficulty).Methods("GET")
	protected.HandleFunc("/contexts/{contextType}/{contextValue}/difficulty", metricsHandler.GetDifficulty).Methods("GET")
	protected.HandleFunc("/admin/difficulty/recompute", metricsHandler.Recompute).Methods("POST")

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// CORS
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	// Background difficulty recompute worker
	workerCtx, stopWorker := context.WithCancel(context.Background())
	go calculator.StartWorker(workerCtx)

	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: c.Handler(r),
	}

	go func() {
		log.Printf("Server starting on :%s", cfg.ServerPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down")
	stopWorker()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("WARN: shutdown: %v", err)
	}
}
