package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	chromago "github.com/amikos-tech/chroma-go/pkg/api/v2"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
	"google.golang.org/genai"

	"github/itish2003/docqa/config"
	"github/itish2003/docqa/controller"
	"github/itish2003/docqa/services"
)

// app holds the wired service graph and the resources to release at exit.
type app struct {
	service    services.RAGService
	sessions   *services.SessionRegistry
	controller *controller.RAGController
	closers    []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Printf("Warning: Failed to release resource: %v", err)
		}
	}
}

// providerClients are the model clients built from the provider config. Only
// the field matching the configured provider is set.
type providerClients struct {
	openai *openai.LLM
	gemini *genai.Client
}

func buildApp(ctx context.Context, cfg *config.AppConfig) (*app, error) {
	a := &app{}

	if err := services.ConfigurePDFLicense(cfg.PDF.LicenseKey); err != nil {
		log.Printf("Warning: PDF extraction unavailable: %v", err)
	}

	policy := services.NewCallPolicy(
		cfg.Provider.Timeout,
		cfg.Provider.MaxRetries,
		cfg.Provider.RequestsPerSecond,
		cfg.Provider.Burst,
	)
	httpClient := &http.Client{Timeout: cfg.Provider.Timeout}

	clients, generator, err := buildGenerator(ctx, cfg, httpClient)
	if err != nil {
		return nil, err
	}

	embedder, err := buildEmbedder(cfg, clients, httpClient, policy)
	if err != nil {
		return nil, err
	}

	translator, err := buildTranslator(ctx, cfg, generator, policy)
	if err != nil {
		return nil, err
	}

	store, err := buildVectorStore(cfg, a)
	if err != nil {
		a.Close()
		return nil, err
	}

	chunker, err := services.NewChunker(services.ChunkerConfig{
		Strategy: cfg.Chunker.Strategy,
		Size:     cfg.Chunker.Size,
		Overlap:  *cfg.Chunker.Overlap,
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	uploads, err := services.NewUploadStore(cfg.Server.UploadDir, cfg.Server.RetainUploads, cfg.Server.MaxUploadBytes)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.sessions = services.NewSessionRegistry(cfg.Session.MaxSessions)
	a.service = services.NewRAGService(services.RAGDependencies{
		Uploads:          uploads,
		Chunker:          chunker,
		Translator:       translator,
		Indexer:          services.NewIndexingService(store, embedder),
		Embedder:         embedder,
		Answerer:         services.NewAnswerer(generator, policy, cfg.Retrieval.MaxContextChars),
		Sessions:         a.sessions,
		TopK:             cfg.Retrieval.TopK,
		IndexLanguage:    cfg.Translation.IndexLanguage,
		CollectionPrefix: cfg.VectorStore.CollectionPrefix,
		IncludeSources:   true,
	})
	a.controller = controller.NewRAGController(a.service, cfg.Server.MaxUploadBytes)
	return a, nil
}

func buildGenerator(ctx context.Context, cfg *config.AppConfig, httpClient *http.Client) (providerClients, services.Generator, error) {
	var clients providerClients
	switch cfg.Provider.Name {
	case "gemini":
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:     cfg.Provider.APIKey,
			Backend:    genai.BackendGeminiAPI,
			HTTPClient: httpClient,
		})
		if err != nil {
			return clients, nil, fmt.Errorf("create Gemini client: %w", err)
		}
		log.Println("Successfully connected to Google Gemini.")
		clients.gemini = client
		return clients, services.NewGeminiGenerator(client, cfg.Provider.GenerationModel), nil
	default:
		opts := []openai.Option{
			openai.WithToken(cfg.Provider.APIKey),
			openai.WithModel(cfg.Provider.GenerationModel),
			openai.WithEmbeddingModel(cfg.Provider.EmbeddingModel),
			openai.WithHTTPClient(httpClient),
		}
		if cfg.Provider.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.Provider.BaseURL))
		}
		llm, err := openai.New(opts...)
		if err != nil {
			return clients, nil, fmt.Errorf("create OpenAI client: %w", err)
		}
		clients.openai = llm
		return clients, services.NewLangchainGenerator(llm), nil
	}
}

func buildEmbedder(cfg *config.AppConfig, clients providerClients, httpClient *http.Client, policy *services.CallPolicy) (embeddings.Embedder, error) {
	var client embeddings.EmbedderClient
	switch cfg.Provider.Embedding {
	case "ollama":
		client = services.NewOllamaEmbeddingClient(httpClient, cfg.Provider.OllamaURL, cfg.Provider.EmbeddingModel)
	case "gemini":
		client = services.NewGeminiEmbeddingClient(clients.gemini, cfg.Provider.EmbeddingModel)
	default:
		client = clients.openai
	}
	log.Printf("Using %s embeddings (%s)", cfg.Provider.Embedding, cfg.Provider.EmbeddingModel)
	return services.NewEmbedder(client, policy, cfg.Provider.EmbeddingBatch)
}

func buildTranslator(ctx context.Context, cfg *config.AppConfig, generator services.Generator, policy *services.CallPolicy) (*services.TranslationService, error) {
	var provider services.TranslationProvider
	switch cfg.Translation.Provider {
	case "google":
		g, err := services.NewGoogleTranslator(ctx, cfg.Translation.APIKey)
		if err != nil {
			return nil, fmt.Errorf("create Google Translate client: %w", err)
		}
		provider = g
	case "none":
		provider = services.PassthroughTranslator{}
	default:
		provider = services.NewLLMTranslator(generator)
	}
	return services.NewTranslationService(services.WhatlangDetector{}, provider, policy, cfg.Translation.DefaultLanguage), nil
}

func buildVectorStore(cfg *config.AppConfig, a *app) (services.VectorStore, error) {
	if cfg.VectorStore.Type == "memory" {
		log.Println("Using in-memory vector store; indexes are lost on restart.")
		return services.NewMemoryVectorStore(), nil
	}

	chromaClient, err := chromago.NewHTTPClient(chromago.WithBaseURL(cfg.VectorStore.ChromaURL))
	if err != nil {
		return nil, fmt.Errorf("create chroma client: %w", err)
	}
	a.closers = append(a.closers, chromaClient.Close)
	log.Printf("Using Chroma vector store at %s", cfg.VectorStore.ChromaURL)
	return services.NewChromaVectorStore(chromaClient), nil
}
