package commands

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/54b3r/chartchat-go/internal/catalog"
	"github.com/54b3r/chartchat-go/internal/chat"
	"github.com/54b3r/chartchat-go/internal/config"
	"github.com/54b3r/chartchat-go/internal/llm"
	"github.com/54b3r/chartchat-go/internal/mention"
	"github.com/54b3r/chartchat-go/internal/retrieval"
	"github.com/54b3r/chartchat-go/internal/store"
	"github.com/54b3r/chartchat-go/internal/vectorstore"
)

// assistant bundles the fully wired chat pipeline for a CLI command.
type assistant struct {
	conv     *chat.Conversation
	service  *retrieval.Service
	store    *vectorstore.Store
	sessions store.SessionStore
	session  string
}

// Close releases the session store, if one was opened.
func (a *assistant) Close() {
	if a.sessions != nil {
		_ = a.sessions.Close()
	}
}

// buildAssistant wires catalog, vector store, model clients, retrieval and
// conversation from the loaded config. Missing embeddings or an unopenable
// history DB degrade with a warning; a missing catalog is fatal.
func buildAssistant(cfg config.Config, log *slog.Logger) (*assistant, error) {
	cat, err := catalog.LoadFile(cfg.Data.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("load catalog %s: %w", cfg.Data.CatalogPath, err)
	}
	log.Info("catalog loaded",
		slog.String("path", cfg.Data.CatalogPath),
		slog.Int("entries", cat.Size()),
	)

	stopwords, err := mention.LoadStopwords(cfg.Data.StopwordsPath)
	if err != nil {
		log.Warn("stopwords unavailable, continuing without",
			slog.String("path", cfg.Data.StopwordsPath),
			slog.Any("error", err),
		)
	}
	extractor := mention.NewExtractor(cat.Groups(), stopwords)

	// A missing embeddings file is a degraded state, not a fatal one:
	// retrieval falls back to exact substring search.
	vs := vectorstore.New()
	if err := vs.LoadFile(cfg.Data.EmbeddingsPath); err != nil {
		log.Warn("embeddings unavailable, semantic retrieval disabled",
			slog.String("path", cfg.Data.EmbeddingsPath),
			slog.Any("error", err),
		)
	} else {
		log.Info("embeddings loaded",
			slog.Int("records", vs.Size()),
			slog.Int("dimension", vs.Dimension()),
		)
	}

	llmCfg := llm.Config{BaseURL: cfg.API.BaseURL, APIKey: cfg.API.APIKey}
	embedder := llm.NewEmbeddingClient(llmCfg, cfg.API.EmbeddingModel)
	completer := llm.NewCompletionClient(llmCfg)

	service := retrieval.NewService(embedder, vs, cat, extractor)

	sessions, sessionID := openSessions(cfg, log)

	conv := chat.NewConversation(completer, service, extractor, cat, sessions, sessionID, chat.Options{
		GenerationModel:  cfg.API.GenerationModel,
		ValidationModel:  cfg.API.ValidationModel,
		TopK:             cfg.Retrieval.TopK,
		UseHybrid:        cfg.Retrieval.UseHybrid,
		Sampling:         samplingFromConfig(cfg.API.Sampling),
		MaxContextTokens: cfg.History.MaxContextTokens,
	})

	return &assistant{
		conv:     conv,
		service:  service,
		store:    vs,
		sessions: sessions,
		session:  sessionID,
	}, nil
}

// openSessions opens the history store per config. DBPath "disabled" turns
// persistence off; any open failure degrades to in-memory history with a
// warning. The returned session id is generated when the config has none.
func openSessions(cfg config.Config, log *slog.Logger) (store.SessionStore, string) {
	sessionID := cfg.History.Session
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	if cfg.History.DBPath == "disabled" {
		log.Info("history disabled via config")
		return nil, sessionID
	}

	dbPath := cfg.History.DBPath
	if dbPath == "" {
		p, err := store.DefaultDBPath()
		if err != nil {
			log.Warn("history: could not resolve default DB path, disabling", slog.Any("error", err))
			return nil, sessionID
		}
		dbPath = p
	}

	sessions, err := store.Open(dbPath)
	if err != nil {
		log.Warn("history: failed to open store, disabling",
			slog.String("path", dbPath),
			slog.Any("error", err),
		)
		return nil, sessionID
	}

	log.Info("history store opened",
		slog.String("path", dbPath),
		slog.String("session", sessionID),
	)
	return sessions, sessionID
}

// samplingFromConfig maps the YAML sampling section onto the llm package's
// sampling parameters, falling back to the defaults for an all-zero section.
func samplingFromConfig(s config.SamplingConfig) llm.Sampling {
	if s == (config.SamplingConfig{}) {
		return llm.DefaultSampling()
	}
	return llm.Sampling{
		Temperature:      s.Temperature,
		MaxTokens:        s.MaxTokens,
		TopP:             s.TopP,
		FrequencyPenalty: s.FrequencyPenalty,
		PresencePenalty:  s.PresencePenalty,
	}
}
