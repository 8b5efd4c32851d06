package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fintelhq/fintel/internal/agents"
	"github.com/fintelhq/fintel/internal/cache"
	"github.com/fintelhq/fintel/internal/config"
	"github.com/fintelhq/fintel/internal/httpapi"
	"github.com/fintelhq/fintel/internal/knowledge"
	"github.com/fintelhq/fintel/internal/llm"
	"github.com/fintelhq/fintel/internal/models"
	"github.com/fintelhq/fintel/internal/orchestrator"
	"github.com/fintelhq/fintel/internal/streaming"
	"github.com/fintelhq/fintel/internal/tools"
	"github.com/fintelhq/fintel/internal/tracing"
)

func main() {
	_ = godotenv.Load()

	var (
		query      = flag.String("query", "", "one-shot research query; omit for interactive mode")
		timeframe  = flag.String("timeframe", "", "default timeframe hint for the query")
		serve      = flag.Bool("serve", false, "run the HTTP API instead of the CLI")
		configPath = flag.String("config", "", "path to YAML config (defaults to CONFIG_PATH)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := newLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	if err := tracing.Initialize(tracing.Config{
		Enabled:      cfg.Tracing.Enabled,
		ServiceName:  cfg.Tracing.ServiceName,
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
	}, logger); err != nil {
		logger.Warn("Tracing init failed, continuing without it", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mgr := config.NewManager(*configPath, cfg, logger)
	if *serve {
		if err := mgr.Start(ctx); err != nil {
			logger.Warn("Config hot-reload unavailable", zap.Error(err))
		}
	}

	events := streaming.NewManager(256)
	orch := buildOrchestrator(cfg, mgr, events, logger)

	if *serve {
		runServer(ctx, cancel, cfg, orch, events, logger)
		return
	}

	q := strings.TrimSpace(*query)
	if q == "" {
		q = promptQuery()
	}
	if q == "" {
		fmt.Fprintln(os.Stderr, "no query given")
		os.Exit(2)
	}

	runCtx, runCancel := context.WithTimeout(ctx, 5*time.Minute)
	defer runCancel()

	res, err := orch.Run(runCtx, q, *timeframe)
	if err != nil {
		// Fatal synthesis-layer failures exit non-zero; everything softer
		// is already folded into the answer as caveats.
		logger.Error("Run failed", zap.Error(err))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	printAnswer(res.Answer)
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var zcfg zap.Config
	if cfg.Format == "console" {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
	}
	if cfg.Level != "" {
		lvl, err := zap.ParseAtomicLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("parse log level %q: %w", cfg.Level, err)
		}
		zcfg.Level = lvl
	}
	return zcfg.Build()
}

func buildOrchestrator(cfg *config.Config, mgr *config.Manager, events *streaming.Manager, logger *zap.Logger) *orchestrator.Orchestrator {
	llmClient := llm.NewClient(llm.Config{
		BaseURL:      cfg.LLM.BaseURL,
		APIKey:       cfg.LLM.APIKey,
		PlannerModel: cfg.LLM.PlannerModel,
		WorkerModel:  cfg.LLM.WorkerModel,
		Timeout:      cfg.LLM.Timeout,
	}, logger)

	kb := knowledge.NewClient(knowledge.Config{
		Host:                    cfg.Knowledge.Host,
		Port:                    cfg.Knowledge.Port,
		Collection:              cfg.Knowledge.Collection,
		TopK:                    cfg.Knowledge.TopK,
		Timeout:                 cfg.Knowledge.Timeout,
		BreakerFailureThreshold: cfg.Knowledge.BreakerFailureThreshold,
		BreakerResetTimeout:     cfg.Knowledge.BreakerResetTimeout,
	}, logger)

	researchCache := cache.New(cache.Config{
		Enabled: cfg.Cache.Enabled,
		Addr:    cfg.Cache.Addr,
		TTL:     cfg.Cache.TTL,
	}, logger)

	sentiment := tools.NewSentimentTool(kb, llmClient, researchCache, cfg.LLM.WorkerModel, logger)
	performance := tools.NewPerformanceTool(kb, llmClient, researchCache, cfg.LLM.WorkerModel, logger)
	filter := tools.NewCompanyFilterTool(kb, llmClient, researchCache, cfg.LLM.WorkerModel, logger)

	var limiter *rate.Limiter
	if cfg.Orchestrator.ToolRateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.Orchestrator.ToolRateLimit), 1)
	}

	deps := orchestrator.Deps{
		Classifier:  agents.NewIntentClassifier(llmClient, cfg.LLM.PlannerModel, logger),
		Retriever:   agents.NewKnowledgeRetrievalAgent(kb, cfg.Knowledge.TopK, logger),
		Resolver:    agents.NewEntityResolver(filter, logger),
		Researcher:  agents.NewResearcherAgent(sentiment, performance, cfg.Orchestrator.ResearchWorkers, limiter, cfg.Orchestrator.CallTimeout, logger),
		Synthesizer: agents.NewSynthesizerAgent(llmClient, cfg.LLM.PlannerModel, logger),
		Reviewer:    agents.NewReviewerAgent(),
		Events:      events,
	}
	return orchestrator.New(deps, mgr.Snapshot, logger)
}

func runServer(ctx context.Context, cancel context.CancelFunc, cfg *config.Config, orch *orchestrator.Orchestrator, events *streaming.Manager, logger *zap.Logger) {
	mux := http.NewServeMux()
	api := httpapi.NewServer(orch, events, 5*time.Minute, logger)
	api.RegisterRoutes(mux)

	srv := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Service.Port),
		Handler:      mux,
		ReadTimeout:  cfg.Service.ReadTimeout,
		WriteTimeout: cfg.Service.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Metrics get their own listener so the API port stays clean behind a
	// load balancer.
	if cfg.Metrics.Enabled && cfg.Metrics.Port != cfg.Service.Port {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.Handler())
		go func() {
			addr := ":" + strconv.Itoa(cfg.Metrics.Port)
			logger.Info("Metrics server listening", zap.String("addr", addr))
			if err := http.ListenAndServe(addr, metricsMux); err != nil && err != http.ErrServerClosed {
				logger.Error("Metrics server failed", zap.Error(err))
			}
		}()
	}

	go func() {
		logger.Info("API server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("API server failed", zap.Error(err))
			cancel()
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("Shutting down", zap.String("signal", sig.String()))
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Service.GracefulTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Graceful shutdown incomplete", zap.Error(err))
	}
}

func promptQuery() string {
	fmt.Print("Enter query: ")
	reader := bufio.NewReader(os.Stdin)
	line, _ := reader.ReadString('\n')
	return strings.TrimSpace(line)
}

func printAnswer(answer *models.SynthesizedAnswer) {
	fmt.Println(answer.Markdown)
	if len(answer.Caveats) > 0 {
		fmt.Println()
		fmt.Println("Caveats:")
		for _, c := range answer.Caveats {
			fmt.Printf("  - %s\n", c)
		}
	}
	fmt.Println()
	fmt.Printf("Confidence: %.0f%%\n", answer.Confidence*100)
}
