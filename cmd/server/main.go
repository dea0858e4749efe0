package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"echotype/internal/audio"
	"echotype/internal/config"
	"echotype/internal/database"
	"echotype/internal/generator"
	"echotype/internal/handlers"
	"echotype/internal/models"
	"echotype/internal/repository"
	"echotype/internal/security"
	"echotype/internal/service"
)

func main() {
	// Optional .env for local development; real deployments set the
	// environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := newLogger(cfg.Env)
	defer logger.Sync()
	log := logger.Sugar()

	db, err := database.Open(cfg)
	if err != nil {
		log.Fatalw("database open failed", "error", err)
	}
	defer db.Close()
	log.Infow("database connected", "type", cfg.Database.Type)

	if err := db.RunMigrations(cfg.MigrationsPath); err != nil {
		log.Fatalw("migrations failed", "error", err)
	}

	itemRepo := repository.NewItemRepository(db)
	exampleRepo := repository.NewExampleRepository(db)
	progressRepo := repository.NewProgressRepository(db)

	synth := audio.NewSynthesizer(cfg.Audio.CacheDir, cfg.Audio.Locale, cfg.Audio.SpeechRate)
	sink := audio.NewBufferSink()
	coordinator := audio.NewCoordinator(sink, log,
		audio.NewFilePlayback(&http.Client{Timeout: cfg.Audio.FetchTimeout}),
		audio.NewSpeechSynthesis(synth),
	)
	coordinator.LoadCues(cfg.Audio.CuesDir)
	coordinator.SetEnabled(cfg.Audio.SoundEnabled)

	gen := generator.NewClient(cfg.Generator.URL, cfg.Generator.Model, cfg.Generator.APIKey, cfg.Generator.Timeout)

	catalogService := service.NewCatalogService(itemRepo, synth, log)
	exampleService := service.NewExampleService(gen, exampleRepo, log)
	progressService := service.NewProgressService(progressRepo, log)

	ctx := context.Background()
	if err := catalogService.Seed(ctx, defaultSeeds()); err != nil {
		log.Warnw("catalog seed failed", "error", err)
	}
	go warmGroups(ctx, catalogService, itemRepo, log)

	practiceHandler := handlers.NewPracticeHandler(
		itemRepo, catalogService, exampleService, progressService,
		coordinator, log, cfg.Practice.SettleDelay,
	)
	audioHandler := handlers.NewAudioHandler(synth, sink, coordinator, log)

	limiter := security.NewRateLimiter(10, time.Minute)
	router := handlers.NewRouter(practiceHandler, audioHandler, limiter, log)

	addr := ":" + cfg.ServerPort
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warnw("shutdown incomplete", "error", err)
	}
	coordinator.Stop()
}

func newLogger(env string) *zap.Logger {
	if env == "local" {
		logger, err := zap.NewDevelopment()
		if err != nil {
			panic(err)
		}
		return logger
	}
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	return logger
}

// warmGroups pre-synthesizes speech for every seeded group so first
// playback is instant.
func warmGroups(ctx context.Context, catalog *service.CatalogService, items *repository.ItemRepository, log *zap.SugaredLogger) {
	groups, err := items.ListGroups(ctx)
	if err != nil {
		log.Warnw("audio warm-up skipped", "error", err)
		return
	}
	for _, group := range groups {
		catalog.WarmAudio(ctx, group.Key)
	}
}

// defaultSeeds are the groups shipped on first run. Seeding skips any
// group the user already has items in.
func defaultSeeds() []service.GroupSeed {
	return []service.GroupSeed{
		{
			GroupKey: "Tourism",
			Kind:     models.KindWord,
			Prompts: []string{
				"arrival", "departure", "luggage", "passport", "itinerary",
				"reservation", "souvenir", "destination", "customs", "boarding",
				"terminal", "currency", "voyage", "landmark", "guidebook",
				"embassy", "transit", "layover", "excursion", "hostel",
			},
		},
		{
			GroupKey: "Daily Routines",
			Kind:     models.KindSentence,
			Prompts: []string{
				"I go to school every morning",
				"She drinks coffee before work",
				"We have dinner at seven",
				"He walks the dog in the evening",
				"They clean the house on Sundays",
				"I check my email after breakfast",
				"The children brush their teeth at night",
				"We watch the news before bed",
				"She waters the plants every day",
				"He takes the bus to the office",
			},
		},
	}
}
