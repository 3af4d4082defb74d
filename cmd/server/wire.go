package main

import (
	"context"
	"errors"
	"log"

	"github.com/developia-II/slang-translator-backend/internal/config"
	"github.com/developia-II/slang-translator-backend/internal/database"
	"github.com/developia-II/slang-translator-backend/internal/services"
	"github.com/developia-II/slang-translator-backend/internal/store"
)

// stack holds the wired services shared by every command.
type stack struct {
	cfg        *config.Config
	lexicon    *services.LexiconService
	pipeline   *services.ValidationPipeline
	translator *services.Translator
	notifier   services.Notifier
	closers    []func() error
}

// wire connects to Mongo and builds the services. The model client is only created
// when withLLM is set; the maintenance commands never call it.
func wire(ctx context.Context, cfg *config.Config, withLLM bool) (*stack, error) {
	if err := database.Connect(cfg.MongoURI, cfg.DBName); err != nil {
		return nil, err
	}
	rt := &stack{cfg: cfg, closers: []func() error{database.Disconnect}}

	lexStore := store.NewMongoLexicon(database.DB)
	subStore := store.NewMongoSubmissions(database.DB)
	if err := lexStore.EnsureIndexes(ctx); err != nil {
		rt.Close()
		return nil, err
	}
	if err := subStore.EnsureIndexes(ctx); err != nil {
		rt.Close()
		return nil, err
	}
	rt.lexicon = services.NewLexiconService(lexStore)

	var llm services.LLM
	if withLLM {
		var err error
		llm, err = services.NewLLM(cfg.LLM)
		if err != nil {
			rt.Close()
			return nil, err
		}
		log.Printf("wire: llm provider=%s", llm.Name())
	}

	quota, closeQuota := services.NewQuota(ctx, cfg.Redis, cfg.Policy.DailySubmissionLimit)
	rt.closers = append(rt.closers, closeQuota)
	rt.notifier = services.NewNotifier(cfg.Kafka)
	rt.closers = append(rt.closers, rt.notifier.Close)

	rt.pipeline = services.NewValidationPipeline(services.PipelineDeps{
		Submissions: subStore,
		Lexicon:     rt.lexicon,
		LLM:         llm,
		Search:      services.NewSearcher(ctx, cfg.Search),
		Quota:       quota,
		Notifier:    rt.notifier,
	}, validationConfig(cfg))
	rt.translator = services.NewTranslator(rt.lexicon, llm, services.TranslatorConfig{
		MaxInputRunes:          cfg.Policy.MaxInputRunes,
		LowConfidenceThreshold: cfg.Policy.LowConfidenceThreshold,
	})
	return rt, nil
}

func validationConfig(cfg *config.Config) services.ValidationConfig {
	p := cfg.Policy
	vc := services.DefaultValidationConfig()
	vc.Thresholds = services.Thresholds{
		AutoApproveConfidence: p.AutoApproveConfidence,
		AutoApproveMinUsage:   p.AutoApproveMinUsage,
		RejectBelow:           p.RejectBelow,
	}
	vc.CommunityApproveUpvotes = p.CommunityApproveUpvotes
	vc.DailySubmissionLimit = p.DailySubmissionLimit
	vc.Timeout = p.ValidationTimeout
	vc.StuckAfter = p.StuckAfter
	if cfg.Search.MaxSnippets > 0 {
		vc.MaxSnippets = cfg.Search.MaxSnippets
	}
	return vc
}

// Close releases connections in reverse order of creation.
func (rt *stack) Close() {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		log.Printf("wire: shutdown: %v", err)
	}
}
