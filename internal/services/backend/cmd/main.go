package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/vitimonitor/vitimonitor/internal/cache"
	"github.com/vitimonitor/vitimonitor/internal/evaluate"
	"github.com/vitimonitor/vitimonitor/internal/ingest"
	"github.com/vitimonitor/vitimonitor/internal/model"
	"github.com/vitimonitor/vitimonitor/internal/planner"
	"github.com/vitimonitor/vitimonitor/internal/services/backend"
	"github.com/vitimonitor/vitimonitor/internal/signature"
	"github.com/vitimonitor/vitimonitor/internal/storage"
	"github.com/vitimonitor/vitimonitor/pkg/mqtt"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("backend: config error: %v", err)
	}

	// --- Store ---
	var store storage.Store
	if cfg.DatabaseURL != "" {
		pool, err := storage.Connect(ctx, cfg.DatabaseURL, cfg.DatabaseMaxConn)
		if err != nil {
			log.Fatalf("backend: postgres connect failed: %v", err)
		}
		defer pool.Close()
		pg := storage.NewPostgres(pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			log.Fatalf("backend: schema init failed: %v", err)
		}
		store = pg
	} else {
		log.Println("backend: DATABASE_URL non impostato, store in memoria")
		store = storage.NewMemory()
	}

	// --- Mirror time-series (opzionale) ---
	var mirror *storage.InfluxMirror
	if cfg.InfluxURL != "" {
		mirror = storage.NewInfluxMirror(cfg.InfluxURL, cfg.InfluxToken, cfg.InfluxOrg, cfg.InfluxBucket, "sensor_data")
		defer mirror.Close()
	}

	// --- Cache (opzionale) ---
	var anomalyCache *cache.Cache
	if cfg.RedisAddr != "" {
		anomalyCache = cache.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisTTL)
		defer anomalyCache.Close()
		if err := anomalyCache.Ping(ctx); err != nil {
			log.Printf("backend: redis non raggiungibile (%v), si continua senza cache", err)
		}
	}

	// --- Verifica firma ---
	var verifier signature.Verifier = signature.Prefix{}
	if cfg.Verifier == "hmac" {
		// Le chiavi sono in esadecimale, come quelle del simulatore: una
		// chiave malformata è un errore di configurazione, non va ignorata.
		v, err := signature.NewHMACFromHex(parseKeys(cfg.HMACKeys))
		if err != nil {
			log.Fatalf("backend: %v", err)
		}
		verifier = v
	}

	// ingest.Mirror è un'interfaccia: un *InfluxMirror nil va passato come
	// nil esplicito, non dentro l'interfaccia.
	var ingestMirror ingest.Mirror
	if mirror != nil {
		ingestMirror = mirror
	}

	pipeline := ingest.NewPipeline(store, verifier, ingestMirror)
	evaluator := evaluate.NewEvaluator(evaluate.Ranges{
		model.MetricTemperature:  {Low: cfg.TempMin, High: cfg.TempMax},
		model.MetricHumidityAir:  {Low: cfg.HumMin, High: cfg.HumMax},
		model.MetricHumiditySoil: {Low: cfg.SoilMin, High: cfg.SoilMax},
		model.MetricLuminosity:   {Low: cfg.LuxMin, High: cfg.LuxMax},
	})
	rules := planner.TriggerRules{
		TempAbove:    cfg.TriggerTempAbove,
		HumAirBelow:  cfg.TriggerHumBelow,
		HumSoilBelow: cfg.TriggerSoilBelow,
		LuxAbove:     cfg.TriggerLuxAbove,
	}
	plan := planner.NewPlanner(store, rules, cfg.ActivityLag)

	var recorder planner.Recorder
	if anomalyCache != nil {
		recorder = anomalyCache
	}
	runner := planner.NewRunner(store, evaluator, plan, recorder, cfg.EvaluationWindow)

	var health backend.HealthReporter
	if mirror != nil {
		health = mirror
	}
	svc := backend.NewService(backend.Options{
		Store:          store,
		Pipeline:       pipeline,
		Evaluator:      evaluator,
		Stress:         evaluate.StressThresholds{SoilMax: cfg.StressSoilMax, LuxMin: cfg.StressLuxMin},
		Planner:        plan,
		Runner:         runner,
		Cache:          anomalyCache,
		Mirror:         health,
		RequestTimeout: cfg.RequestTimeout,
	})

	// --- Consumer MQTT (opzionale) ---
	if cfg.MQTTEnabled {
		client, err := mqtt.NewClient(ctx, mqtt.Config{
			Host:     cfg.MQTTHost,
			Port:     cfg.MQTTPort,
			User:     cfg.MQTTUser,
			Password: cfg.MQTTPassword,
			ClientID: cfg.MQTTClientID,
		})
		if err != nil {
			log.Fatalf("backend: mqtt connect failed: %v", err)
		}
		consumer := mqtt.NewConsumer(client, cfg.MQTTTopic, svc.MessageHandler(ctx))
		go consumer.Consume(ctx)
		log.Printf("backend: consumer MQTT su %s", cfg.MQTTTopic)
	}

	svc.StartPlannerLoop(ctx, cfg.PlannerInterval)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           svc.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Printf("backend: HTTP in ascolto su :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("backend: http server error: %v", err)
		}
	}()

	<-ctx.Done()
	stop()

	shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shCtx)
	log.Println("backend: shutdown complete")
}

// parseKeys interpreta "sensor-01=aabbccdd,sensor-02=00112233" (valori hex).
func parseKeys(s string) map[string]string {
	out := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		if id, key, ok := strings.Cut(strings.TrimSpace(pair), "="); ok {
			out[id] = key
		}
	}
	return out
}
