package config

import (
	"log/slog"
	"time"
)

const (
	IS_PROD                         = false
	LOG_LEVEL_PROD                  = slog.LevelInfo
	FALLBACK_REDIS_TO_INTERNALSTORE = true //if redis init fails, it falls back to an internal in-memory store
	TRACE_ID_KEY                    = "traceId"
	RATE_LIMIT_PER_SECOND           = 2
	BURST_RATE_LIMIT_PER_SECOND     = 5

	//ingestion
	SupportedSchemaVersion        = "1.0"
	UnknownJournal                = "unknown"
	UnknownSection                = "unknown"
	MinYear                       = 1900
	MaxUploadChunks               = 5000
	EmbeddingOutputDimensionality = 1536
	EmbeddingBatchSize            = 100 //provider max batch
	EmbeddingMaxConcurrentCalls   = 4   //0 disables the shared semaphore
	FileChunkSize                 = 1000
	FileChunkOverlap              = 150

	//retry
	EmbeddingMaxAttempts    = 3
	EmbeddingInitialBackoff = 500 * time.Millisecond
	EmbeddingMaxBackoff     = 10 * time.Second
	EmbeddingJitter         = 0.2
	EmbeddingCallTimeout    = 30 * time.Second

	//retrieval
	DefaultK        = 10
	MaxK            = 50
	MaxStoreTopK    = 1000
	DefaultMinScore = 0.0
	FilterOverFetch = 4 //post-filter multiplier when the store can't push a filter down

	//synthesis
	GenerationTimeout         = 30 * time.Second
	ModelTemperature  float32 = 0.3
	MaxOutputTokens           = 1024

	RequestsPerNewWorkerCount int64 = 10
	MaxWorkerCount            int64 = 10
	MinWorkerCount            int64 = 1
	IdleWorkerTimeout               = 1 * time.Minute

	//serverTimeouts
	ReadTimeout            = 5 * time.Second
	WriteTimeout           = 60 * time.Second
	IdleTimeout            = 120 * time.Second
	ShutdownContextTimeout = 10 * time.Second
	SearchRequestTimeout   = 45 * time.Second
	JobTimeout             = 5 * time.Minute

	//server listening port
	ServerListenAddr = ":3000"

	//job requests buffer limit
	BufferLimit = 100

	//vectorDB
	VectorCollectionName    = "journal_chunks"
	QdrantConnectionTimeout = 30 * time.Second
	QdrantHost              = "localhost"
	QdrantGrpcPort          = 6334
	QdrantUseTLS            = false
	QdrantPoolSize          = 1 //2-5 is preferred for prod according to documentation
	ChromemPath             = "./data/chromem"

	//ledger
	LedgerDriver = "sqlite"
	LedgerDSN    = "./data/journal.db"

	//models
	GeminiModelName      = "gemini-2.5-flash-lite"
	GoogleEmbeddingModel = "gemini-embedding-001"
	OpenAIEmbeddingModel = "text-embedding-3-small"
	OpenAIChatModel      = "llama-3.1-8b-instant"
	OpenAIBaseURL        = "https://api.groq.com/openai/v1"
	AnthropicModelName   = "claude-3-5-haiku-latest"

	MaxIdleConns        = 50
	MaxIdleConnsPerHost = 25
	IdleConnTimeout     = 60 * time.Second

	//redis
	redisHost = "127.0.0.1"
	redisPort = "6379"
	RedisAddr = redisHost + ":" + redisPort

	RedisJobStore    = 0
	RedisJobStoreTTL = 24 * time.Hour
)
