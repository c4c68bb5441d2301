package admin

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/cloo-solutions/docqa/internal/config"
	"github.com/cloo-solutions/docqa/internal/ingest"
	"github.com/cloo-solutions/docqa/internal/openai"
	"github.com/cloo-solutions/docqa/internal/service"
	"github.com/cloo-solutions/docqa/internal/storage"
)

// Pipeline holds the components every docqad command is built from
type Pipeline struct {
	Config    *config.Config
	Index     *service.IndexService
	QA        *service.QAService
	Documents *service.DocumentService
	Mirror    *storage.S3Client
}

// NewPipeline wires the loader, embedder, index and answer chain from cfg.
// S3 is only contacted when credentials are configured.
func NewPipeline(ctx context.Context, cfg *config.Config) (*Pipeline, error) {
	if err := ingest.SetLicenseKey(cfg.UnidocLicenseKey); err != nil {
		log.Printf("pdf extraction: %v (PDF files may fail to load)", err)
	}

	factory := openai.NewFactory(openai.Config{
		BaseURL:             cfg.EmbeddingBaseURL,
		APIKey:              cfg.EmbeddingAPIKey,
		EmbeddingDimensions: cfg.EmbeddingDimensions,
		RequestsPerSecond:   cfg.EmbeddingRPS,
		Timeout:             cfg.EmbeddingTimeout,
	})
	open := func(ctx context.Context, name string) (service.EmbeddingModel, error) {
		m, err := factory.Open(ctx, name)
		if err != nil {
			return nil, err
		}
		return m, nil
	}
	models := service.NewFallbackModelLoader(open, cfg.EmbeddingModels...)

	store := storage.NewFileArtifactStore(cfg.ArtifactPath)
	index := service.NewIndexService(
		ingest.NewLoader(cfg.DataDirs, ingest.NewPDFExtractor()),
		models,
		service.NewEmbedder(models, cfg.EmbedBatchSize),
		store,
		service.NewStalenessDetector(store, cfg.DataDirs),
		service.IndexConfig{
			Chunking:       service.ChunkConfig{WindowWords: cfg.ChunkWords, OverlapWords: cfg.ChunkOverlap},
			TopK:           cfg.TopK,
			RebuildTimeout: cfg.RebuildTimeout,
		},
	)

	answers, err := newAnswerGenerator(cfg)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		Config: cfg,
		Index:  index,
		QA:     service.NewQAService(index, answers, cfg.TopK),
	}

	var mirror service.DocumentMirror
	if cfg.HasS3() {
		client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			Prefix:          cfg.S3Prefix,
			UsePathStyle:    cfg.S3Endpoint != "",
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 client: %w", err)
		}
		if err := client.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("failed to ensure S3 bucket: %w", err)
		}
		log.Printf("S3 bucket '%s' ready", cfg.S3Bucket)
		p.Mirror = client
		mirror = client
	}
	p.Documents = service.NewDocumentService(cfg.UploadDir(), mirror, index)

	return p, nil
}

func newAnswerGenerator(cfg *config.Config) (*service.AnswerGenerator, error) {
	synonyms := service.DefaultSynonymTable()
	if cfg.SynonymsFile != "" {
		t, err := service.LoadSynonymTable(cfg.SynonymsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load synonyms: %w", err)
		}
		synonyms = t
	}

	var providers []service.AnswerProvider
	if cfg.HasGroq() {
		chat := openai.DefaultChatConfig()
		chat.BaseURL = cfg.GroqAPIURL
		chat.APIKey = cfg.GroqAPIKey
		chat.Model = cfg.GroqModel
		providers = append(providers, service.NewChatProvider(openai.NewChatClient(chat)))
	}
	if cfg.HasHuggingFace() {
		httpClient := &http.Client{Timeout: cfg.ProviderTimeout}
		providers = append(providers, service.NewHuggingFaceProvider(cfg.HFAPIURL, cfg.HFAPIToken, httpClient))
	}
	if len(providers) == 0 {
		log.Println("no answer provider configured, using extractive answers only")
	}

	return service.NewAnswerGenerator(cfg.ProviderTimeout, service.NewExtractiveProvider(synonyms), providers...), nil
}
