package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	CORS       CORSConfig
	Log        LogConfig
	Consensus  ConsensusConfig
	Mint       MintConfig
	Chain      ChainConfig
	GitHub     GitHubConfig
	GSOC       GSOCConfig
	Ingest     IngestConfig
	Sync       SyncConfig
	Reputation ReputationConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// JWTConfig holds the shared secret used to verify tokens minted by the auth provider.
type JWTConfig struct {
	Secret string
	Issuer string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// ConsensusConfig tunes the mint-eligibility rule.
type ConsensusConfig struct {
	MinVotes int
	MinMean  float64
}

// MintConfig mirrors the typed-data domain of the deployed redemption contract.
type MintConfig struct {
	DomainName        string
	DomainVersion     string
	ChainID           int64
	VerifyingContract string
	SignerKey         string
	MetadataBaseURL   string
	SignTimeout       time.Duration
}

// ChainConfig points at the RPC node used to confirm redemptions.
type ChainConfig struct {
	RPCURL  string
	Timeout time.Duration
}

// GitHubConfig configures the source adapter.
type GitHubConfig struct {
	Token     string
	BaseURL   string
	SyncLimit int
}

// GSOCConfig configures the GSOC organizations client.
type GSOCConfig struct {
	BaseURL string
	Timeout time.Duration
}

// IngestConfig holds the bcrypt hash of the ingest API key.
type IngestConfig struct {
	APIKeyHash string
}

// SyncConfig configures the background project sync queue.
type SyncConfig struct {
	Workers    int
	Retries    int
	RetryDelay time.Duration
}

// ReputationConfig governs leaderboard caching.
type ReputationConfig struct {
	CacheEnabled bool
	CacheTTL     time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret: v.GetString("JWT_SECRET"),
		Issuer: v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Consensus = ConsensusConfig{
		MinVotes: v.GetInt("CONSENSUS_MIN_VOTES"),
		MinMean:  v.GetFloat64("CONSENSUS_MIN_MEAN"),
	}

	cfg.Mint = MintConfig{
		DomainName:        v.GetString("MINT_DOMAIN_NAME"),
		DomainVersion:     v.GetString("MINT_DOMAIN_VERSION"),
		ChainID:           v.GetInt64("MINT_CHAIN_ID"),
		VerifyingContract: v.GetString("MINT_VERIFYING_CONTRACT"),
		SignerKey:         v.GetString("MINT_SIGNER_KEY"),
		MetadataBaseURL:   strings.TrimRight(v.GetString("MINT_METADATA_BASE_URL"), "/"),
		SignTimeout:       parseDuration(v.GetString("MINT_SIGN_TIMEOUT"), 2*time.Second),
	}

	cfg.Chain = ChainConfig{
		RPCURL:  v.GetString("CHAIN_RPC_URL"),
		Timeout: parseDuration(v.GetString("CHAIN_RPC_TIMEOUT"), 10*time.Second),
	}

	cfg.GitHub = GitHubConfig{
		Token:     v.GetString("GITHUB_TOKEN"),
		BaseURL:   v.GetString("GITHUB_BASE_URL"),
		SyncLimit: v.GetInt("GITHUB_SYNC_LIMIT"),
	}

	cfg.GSOC = GSOCConfig{
		BaseURL: v.GetString("GSOC_BASE_URL"),
		Timeout: parseDuration(v.GetString("GSOC_TIMEOUT"), 15*time.Second),
	}

	cfg.Ingest = IngestConfig{
		APIKeyHash: v.GetString("INGEST_API_KEY_HASH"),
	}

	cfg.Sync = SyncConfig{
		Workers:    v.GetInt("SYNC_WORKERS"),
		Retries:    v.GetInt("SYNC_RETRIES"),
		RetryDelay: parseDuration(v.GetString("SYNC_RETRY_DELAY"), 30*time.Second),
	}

	cfg.Reputation = ReputationConfig{
		CacheEnabled: v.GetBool("ENABLE_CACHE"),
		CacheTTL:     parseDuration(v.GetString("REPUTATION_CACHE_TTL"), 5*time.Minute),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "contribmint")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("CONSENSUS_MIN_VOTES", 2)
	v.SetDefault("CONSENSUS_MIN_MEAN", 3.0)

	v.SetDefault("MINT_DOMAIN_NAME", "ContribMint")
	v.SetDefault("MINT_DOMAIN_VERSION", "1")
	v.SetDefault("MINT_CHAIN_ID", 1337)
	v.SetDefault("MINT_VERIFYING_CONTRACT", "0x5FbDB2315678afecb367f032d93F642f64180aa3")
	v.SetDefault("MINT_SIGNER_KEY", "")
	v.SetDefault("MINT_METADATA_BASE_URL", "http://localhost:8080/api/v1/metadata")
	v.SetDefault("MINT_SIGN_TIMEOUT", "2s")

	v.SetDefault("CHAIN_RPC_URL", "")
	v.SetDefault("CHAIN_RPC_TIMEOUT", "10s")

	v.SetDefault("GITHUB_TOKEN", "")
	v.SetDefault("GITHUB_BASE_URL", "")
	v.SetDefault("GITHUB_SYNC_LIMIT", 50)

	v.SetDefault("GSOC_BASE_URL", "https://api.gsocorganizations.dev")
	v.SetDefault("GSOC_TIMEOUT", "15s")

	v.SetDefault("INGEST_API_KEY_HASH", "")

	v.SetDefault("SYNC_WORKERS", 2)
	v.SetDefault("SYNC_RETRIES", 3)
	v.SetDefault("SYNC_RETRY_DELAY", "30s")

	v.SetDefault("ENABLE_CACHE", false)
	v.SetDefault("REPUTATION_CACHE_TTL", "5m")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
