package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/easeaico/roleplay-relay/internal/character"
	"github.com/easeaico/roleplay-relay/internal/completion"
	"github.com/easeaico/roleplay-relay/internal/config"
	"github.com/easeaico/roleplay-relay/internal/memory"
	"github.com/easeaico/roleplay-relay/internal/models"
	"github.com/easeaico/roleplay-relay/internal/prompt"
	"github.com/easeaico/roleplay-relay/internal/roleplay"
	"github.com/easeaico/roleplay-relay/internal/session"
	"github.com/easeaico/roleplay-relay/internal/sheets"
	"github.com/easeaico/roleplay-relay/internal/storage"
	"github.com/easeaico/roleplay-relay/internal/vectorhttp"
)

// app owns the wired service and the resources to release.
type app struct {
	service *roleplay.Service
	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

type rowStores struct {
	characters character.Repo
	memories   memory.MemoryRepo
	log        roleplay.ConversationLog
	synopses   roleplay.SynopsisRepo
}

func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	a := &app{}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	var (
		rows rowStores
		pg   *storage.Store
	)
	openPostgres := func() (*storage.Store, error) {
		if pg != nil {
			return pg, nil
		}
		store, err := storage.NewStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		pg = store
		return pg, nil
	}

	switch cfg.RowStore {
	case config.RowStoreSheets:
		client, err := sheets.NewClient(ctx, cfg.GoogleCredsJSON, cfg.SpreadsheetID)
		if err != nil {
			return nil, err
		}
		rows = rowStores{
			characters: sheets.NewCharacterRepo(client),
			memories:   sheets.NewMemoryRepo(client),
			log:        sheets.NewConversationLog(client),
			synopses:   sheets.NewSynopsisRepo(client),
		}
	default:
		store, err := openPostgres()
		if err != nil {
			return nil, err
		}
		rows = rowStores{
			characters: store.Characters,
			memories:   store.Memories,
			log:        store.Log,
			synopses:   store.Synopses,
		}
	}

	var (
		vectors   memory.VectorStore
		retriever memory.Retriever = memory.NewFlatRetriever(rows.memories)
	)
	if cfg.VectorEnabled() {
		v, err := newVectorStore(ctx, cfg, openPostgres)
		if err != nil {
			return nil, err
		}
		vectors = v
		retriever = memory.NewVectorRetriever(vectors, cfg.TopK)
	}

	style, err := config.LoadStyleProfile(cfg.StyleProfilePath)
	if err != nil {
		return nil, err
	}
	style = style.WithSampling(cfg.Temperature, cfg.MaxTokens)

	llm, err := models.New(ctx, models.Options{
		Provider: cfg.LLMProvider,
		Model:    cfg.LLMModel,
		APIKey:   cfg.OpenAIKey,
		BaseURL:  cfg.LLMBaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}

	intros, err := newIntroStore(ctx, cfg, a)
	if err != nil {
		return nil, err
	}

	a.service = roleplay.NewService(roleplay.Deps{
		Catalog:   character.NewCatalog(rows.characters, cfg.ServeDisabledCharacters),
		Retriever: retriever,
		Admin:     memory.NewAdmin(rows.memories, vectors),
		Log:       rows.log,
		Synopses:  rows.synopses,
		Assembler: prompt.NewAssembler(style),
		Completer: completion.NewClient(llm, style, completion.RefusalPhrases(style.RefusalPhrases)),
		Tracker:   session.NewTracker(intros, rows.log, cfg.IntimacyStep),
	}, roleplay.Options{
		HistoryLimit:   cfg.HistoryLimit,
		SynopsisEvery:  cfg.SynopsisEvery,
		SynopsisWindow: style.SynopsisWindow,
		DefaultMode:    style.DefaultMode,
		ImageBaseURL:   cfg.ImageBaseURL,
	})

	slog.Info("relay configured",
		"row_store", cfg.RowStore,
		"memory_mode", cfg.MemoryMode,
		"llm_provider", cfg.LLMProvider,
		"llm_model", cfg.LLMModel,
		"intro_store", cfg.IntroStore)
	ok = true
	return a, nil
}

func newVectorStore(ctx context.Context, cfg config.Config, openPostgres func() (*storage.Store, error)) (memory.VectorStore, error) {
	embedder, err := memory.NewEmbedder(ctx, cfg.GoogleAPIKey, cfg.EmbeddingModel)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	switch cfg.VectorBackend {
	case config.VectorBackendHTTP:
		return vectorhttp.NewClient(cfg.VectorStoreURL, cfg.VectorAPIPath, cfg.VectorCollection, embedder), nil
	default:
		store, err := openPostgres()
		if err != nil {
			return nil, err
		}
		return store.NewVectorStore(embedder), nil
	}
}

func newIntroStore(ctx context.Context, cfg config.Config, a *app) (session.IntroStore, error) {
	if cfg.IntroStore != config.IntroStoreSQLite {
		return session.NewMemoryIntroStore(), nil
	}
	store, err := session.NewSQLiteIntroStore(ctx, cfg.IntroDBPath)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() { _ = store.Close() })
	return store, nil
}
