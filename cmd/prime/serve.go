package main

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/prime/internal/access"
	"github.com/gosuda/prime/internal/analyzer"
	"github.com/gosuda/prime/internal/audit"
	"github.com/gosuda/prime/internal/config"
	"github.com/gosuda/prime/internal/decision"
	"github.com/gosuda/prime/internal/domain"
	"github.com/gosuda/prime/internal/escalation"
	primeslack "github.com/gosuda/prime/internal/messenger/slack"
	"github.com/gosuda/prime/internal/notify"
	"github.com/gosuda/prime/internal/pipeline"
	"github.com/gosuda/prime/internal/rules"
	"github.com/gosuda/prime/internal/screen"
	"github.com/gosuda/prime/internal/server"
	"github.com/gosuda/prime/internal/store/postgres"
	redisstore "github.com/gosuda/prime/internal/store/redis"
)

func runServe(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Storage: tickets and audit events.
	var (
		tickets domain.TicketRepository
		sink    domain.AuditSink
	)
	switch cfg.Store {
	case config.StorePostgres:
		if cfg.Database.MaxConns > math.MaxInt32 {
			return fmt.Errorf("database max_conns %d out of int32 range", cfg.Database.MaxConns)
		}
		store, err := postgres.New(ctx, cfg.Database.DSN(), int32(cfg.Database.MaxConns)) //nolint:gosec // bounds checked above
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.Migrate(ctx); err != nil {
			return err
		}
		tickets, sink = store.Tickets(), store.Audit()
		log.Info().Str("host", cfg.Database.Host).Msg("postgres: connected")
	default:
		jsonl, err := audit.NewJSONLSink(cfg.AuditPath)
		if err != nil {
			return err
		}
		defer jsonl.Close()

		tickets, sink = escalation.NewMemoryRepository(), jsonl
		log.Warn().Str("audit_path", cfg.AuditPath).Msg("memory store: escalation tickets do not survive restarts")
	}

	// Optional Redis fan-out for live review clients.
	var (
		auditOpts []audit.Option
		queueOpts []escalation.Option
		deps      server.Deps
	)
	if cfg.Redis.Addr != "" {
		pubsub, err := redisstore.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return err
		}
		defer pubsub.Close()

		auditOpts = append(auditOpts, audit.WithPublisher(pubsub))
		queueOpts = append(queueOpts, escalation.WithPublisher(pubsub))
		deps.Subscriber = pubsub
		log.Info().Str("addr", cfg.Redis.Addr).Msg("redis: connected")
	}

	if cfg.Slack.BotToken != "" {
		registry := notify.NewRegistry()
		registry.Register(primeslack.NewFromToken(cfg.Slack.BotToken))
		queueOpts = append(queueOpts, escalation.WithNotifier(notify.New(registry, notify.Target{
			Platform:  "slack",
			ChannelID: cfg.Slack.ReviewChannel,
		})))
		log.Info().Str("channel", cfg.Slack.ReviewChannel).Int("messengers", registry.Len()).Msg("slack: reviewer notifications enabled")
	}

	auditLog, err := audit.New(ctx, sink, auditOpts...)
	if err != nil {
		return err
	}

	ruleStore, err := rules.Load(cfg.Policy.RulesPath)
	if err != nil {
		return err
	}
	log.Info().Int("rules", ruleStore.Len()).Msg("rules loaded")

	table := access.DefaultTable()
	enforcer := access.NewEnforcer(table, access.DefaultOperations(), auditLog)
	queue := escalation.NewQueue(tickets, enforcer, auditLog, queueOpts...)

	p := pipeline.New(
		enforcer,
		screen.New(auditLog),
		analyzer.New(newClassifier(cfg.Classifier), ruleStore, table, auditLog, analyzer.WithTimeout(cfg.Classifier.Timeout)),
		decision.NewEngine(ruleStore, decision.Policy{HardRejectSeverity: cfg.Policy.HardRejectSeverity}, auditLog),
		queue,
	)

	deps.Requests = p
	deps.Escalations = queue
	deps.Audit = audit.NewReader(auditLog, table)
	deps.Access = enforcer

	srv := server.New(ctx, cfg, deps)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(ctx)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	log.Info().Msg("stopped")
	return nil
}

func newClassifier(cfg config.ClassifierConfig) analyzer.Classifier {
	local := analyzer.RuleClassifier{}
	if cfg.Mode == config.ClassifierRules {
		return local
	}

	remote := analyzer.NewHTTPClassifier(cfg.URL, cfg.APIKey, cfg.Model, &http.Client{Timeout: cfg.Timeout})
	if cfg.Mode == config.ClassifierHTTP {
		return remote
	}
	return analyzer.Multi{local, remote}
}
