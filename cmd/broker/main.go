// Package main runs the shipping-broker pipeline: the mail ingest →
// dedup → extraction → matching → outbound stage graph behind the task
// supervisor's HTTP control surface (spec.md §6).
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oceanline/broker/engine/console"
	"github.com/oceanline/broker/engine/embedindex"
	"github.com/oceanline/broker/engine/geocoder"
	"github.com/oceanline/broker/engine/geograph"
	"github.com/oceanline/broker/engine/mail"
	"github.com/oceanline/broker/engine/matching"
	"github.com/oceanline/broker/engine/oracle"
	"github.com/oceanline/broker/engine/pipeline"
	"github.com/oceanline/broker/engine/store"
	"github.com/oceanline/broker/engine/supervisor"
	"github.com/oceanline/broker/pkg/metrics"
	"github.com/oceanline/broker/pkg/mid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/time/rate"
)

// Config holds all environment-based configuration.
type Config struct {
	Port          string
	MetricsPort   int
	CORSOrigin    string
	MongoURI      string
	MongoDB       string
	GraphMailbox  string
	GraphTenantID string
	GraphClientID string
	GraphSecret   string
	SMTPAddr      string
	SMTPUser      string
	SMTPPass      string
	SMTPFrom      string
	OracleAPIKey  string
	GeocoderKey   string
	QdrantAddr    string
	QdrantColl    string
	Neo4jURL      string
	Neo4jUser     string
	Neo4jPass     string
	SubjectTmpl   string
	BodyTmpl      string
	AutoStart     bool
}

func loadConfig() Config {
	return Config{
		Port:          envOr("PORT", "8090"),
		MetricsPort:   envOrInt("METRICS_PORT", 9090),
		CORSOrigin:    envOr("CORS_ORIGIN", "*"),
		MongoURI:      envOr("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:       envOr("MONGO_DB", "broker"),
		GraphMailbox:  envOr("GRAPH_MAILBOX", ""),
		GraphTenantID: envOr("GRAPH_TENANT_ID", ""),
		GraphClientID: envOr("GRAPH_CLIENT_ID", ""),
		GraphSecret:   envOr("GRAPH_CLIENT_SECRET", ""),
		SMTPAddr:      envOr("SMTP_ADDR", ""),
		SMTPUser:      envOr("SMTP_USER", ""),
		SMTPPass:      envOr("SMTP_PASS", ""),
		SMTPFrom:      envOr("SMTP_FROM", ""),
		OracleAPIKey:  envOr("OPENAI_API_KEY", ""),
		GeocoderKey:   envOr("GEOCODER_API_KEY", ""),
		QdrantAddr:    envOr("QDRANT_ADDR", ""),
		QdrantColl:    envOr("QDRANT_COLLECTION", "broker_cargos"),
		Neo4jURL:      envOr("NEO4J_URL", ""),
		Neo4jUser:     envOr("NEO4J_USER", "neo4j"),
		Neo4jPass:     envOr("NEO4J_PASS", "password"),
		SubjectTmpl:   envOr("OUTBOUND_SUBJECT_TEMPLATE", ""),
		BodyTmpl:      envOr("OUTBOUND_BODY_TEMPLATE", ""),
		AutoStart:     envOr("AUTO_START", "true") == "true",
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var n int
	if _, err := fmt.Sscanf(v, "%d", &n); err != nil {
		return fallback
	}
	return n
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := loadConfig()

	if err := run(cfg, logger); err != nil {
		logger.Error("broker exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Connect to MongoDB ---
	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return fmt.Errorf("mongo connect: %w", err)
	}
	defer mongoClient.Disconnect(ctx)

	docStore := store.New(mongoClient.Database(cfg.MongoDB))
	if err := docStore.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("ensure indexes: %w", err)
	}

	// --- Build mail adapters ---
	var mailClient *mail.Client
	if cfg.GraphTenantID != "" && cfg.GraphClientID != "" {
		tokens, err := mail.NewAzureTokenSource(cfg.GraphTenantID, cfg.GraphClientID, cfg.GraphSecret)
		if err != nil {
			return fmt.Errorf("azure token source: %w", err)
		}
		mailClient = mail.NewClient(nil, tokens, cfg.GraphMailbox, logger)
	}
	var smtpSender *mail.SMTPSender
	if cfg.SMTPAddr != "" {
		smtpSender = mail.NewSMTPSender(cfg.SMTPAddr, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom)
	}

	// --- Build oracle, geocoder, matching engine ---
	oracleClient := oracle.New(cfg.OracleAPIKey)
	geo := geocoder.New(nil, cfg.GeocoderKey, docStore)
	if cfg.Neo4jURL != "" {
		neo4jDriver, err := neo4j.NewDriverWithContext(cfg.Neo4jURL, neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPass, ""))
		if err != nil {
			return fmt.Errorf("neo4j driver: %w", err)
		}
		defer neo4jDriver.Close(ctx)
		geo = geo.WithHierarchy(geograph.New(neo4jDriver))
	}

	var cargoIndex *embedindex.CargoIndex
	if cfg.QdrantAddr != "" {
		cargoIndex, err = embedindex.New(cfg.QdrantAddr, cfg.QdrantColl)
		if err != nil {
			return fmt.Errorf("embedindex connect: %w", err)
		}
	}
	matcher := matching.New(docStore, cargoIndex)

	templates, err := pipeline.LoadTemplates(cfg.SubjectTmpl, cfg.BodyTmpl)
	if err != nil {
		return fmt.Errorf("load templates: %w", err)
	}

	// --- Console broadcaster, supervisor, and metrics registry ---
	broadcaster := console.New(logger)
	sup := supervisor.New(logger)
	met := metrics.New()

	deps := &pipeline.Deps{
		Store:         docStore,
		Mail:          mailClient,
		SMTP:          smtpSender,
		Oracle:        oracleClient,
		Geocoder:      geo,
		Matcher:       matcher,
		Console:       broadcaster,
		Log:           logger,
		Templates:     templates,
		Metrics:       met,
		OracleLimiter: rate.NewLimiter(rate.Every(time.Second), 1),
		OutboundFrom:  cfg.SMTPFrom,
	}
	pipeline.RegisterAll(sup, deps)

	if cfg.AutoStart {
		for _, name := range []string{
			pipeline.TaskIngest,
			pipeline.TaskDedupPersist,
			"4_" + pipeline.TaskExtraction,
			pipeline.TaskMatchProducer,
			pipeline.TaskMatchConsumer,
			pipeline.TaskOutbound,
			pipeline.TaskCapacityReport,
		} {
			if err := sup.Start(ctx, name); err != nil {
				logger.Error("autostart task failed", "task", name, "err", err)
			}
		}
	}

	// --- Metrics endpoint, served on its own port ---
	met.ServeAsync(cfg.MetricsPort)

	// --- HTTP control surface ---
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", handleHealth)
	mux.HandleFunc("GET /describe", handleDescribe(sup))
	mux.HandleFunc("GET /start/{task_type}/{name}", handleTaskAction(ctx, sup.Start))
	mux.HandleFunc("GET /end/{task_type}/{name}", handleTaskAction(ctx, func(_ context.Context, name string) error { return sup.Stop(name) }))
	mux.HandleFunc("GET /logs", broadcaster.Handler())

	handler := mid.Chain(mux,
		mid.Recover(logger),
		mid.Logger(logger),
		mid.CORS(cfg.CORSOrigin),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("broker server starting", "port", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	sup.StopAll()

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func handleDescribe(sup *supervisor.Supervisor) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(sup.Describe())
	}
}

// handleTaskAction implements the "GET /{action}/{task_type}/{name}"
// control surface (spec.md §6). task_type is carried in the URL for
// dashboard readability; the supervisor itself keys tasks by name alone.
func handleTaskAction(rootCtx context.Context, action func(context.Context, string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("name")
		if name == "" {
			http.Error(w, `{"error":"task name required"}`, http.StatusBadRequest)
			return
		}
		if err := action(rootCtx, name); err != nil {
			http.Error(w, fmt.Sprintf(`{"error":%q}`, err.Error()), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok", "task": name})
	}
}
