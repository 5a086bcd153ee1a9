// Command rawdump streams a Fjord raw table to stdout as NDJSON, reading
// the table through concurrent server-split cursor partitions.
//
// Usage:
//
//	rawdump -config rawdump.yaml [-db sensors] [-table readings] [-limit 1000]
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/fjorddata/fjord-go/pkg/auth"
	"github.com/fjorddata/fjord-go/pkg/client"
	"github.com/fjorddata/fjord-go/pkg/logging"
	"github.com/fjorddata/fjord-go/pkg/raw"
)

type oauthConfig struct {
	TokenURL     string   `yaml:"token_url"`
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	Scopes       []string `yaml:"scopes"`
}

type config struct {
	Project string `yaml:"project"`
	BaseURL string `yaml:"base_url"`

	// Token is a pre-issued static token. OAuth2 takes precedence when
	// both are set.
	Token  string       `yaml:"token"`
	OAuth2 *oauthConfig `yaml:"oauth2"`

	Database   string   `yaml:"database"`
	Table      string   `yaml:"table"`
	Columns    []string `yaml:"columns"`
	Partitions int      `yaml:"partitions"`
	PageSize   int      `yaml:"page_size"`
	Limit      int      `yaml:"limit"`

	LogLevel string `yaml:"log_level"`
}

func loadConfig(path string) (config, error) {
	var cfg config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment overrides for containerized runs
	cfg.Project = getEnv("FJORD_PROJECT", cfg.Project)
	cfg.BaseURL = getEnv("FJORD_BASE_URL", cfg.BaseURL)
	cfg.Token = getEnv("FJORD_TOKEN", cfg.Token)
	cfg.LogLevel = getEnv("FJORD_LOG_LEVEL", cfg.LogLevel)

	if cfg.Project == "" {
		return cfg, fmt.Errorf("project is required")
	}
	if cfg.Token == "" && cfg.OAuth2 == nil {
		return cfg, fmt.Errorf("either token or oauth2 credentials are required")
	}
	return cfg, nil
}

func credentials(cfg config) (client.CredentialsProvider, error) {
	if cfg.OAuth2 != nil {
		provider, err := auth.NewClientCredentialsProvider(auth.ClientCredentialsConfig{
			TokenURL:     cfg.OAuth2.TokenURL,
			ClientID:     cfg.OAuth2.ClientID,
			ClientSecret: cfg.OAuth2.ClientSecret,
			Scopes:       cfg.OAuth2.Scopes,
		})
		if err != nil {
			return nil, err
		}
		return auth.NewCachingProvider(provider, 0), nil
	}
	return auth.NewStaticTokenProvider(cfg.Token), nil
}

// run streams the table to out, one JSON row per line.
func run(ctx context.Context, cfg config, out io.Writer) error {
	creds, err := credentials(cfg)
	if err != nil {
		return err
	}

	clientCfg := client.DefaultConfig(cfg.Project, creds, "fjord-rawdump/1.0")
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	c, err := client.New(clientCfg)
	if err != nil {
		return err
	}
	defer c.Close()

	reader, err := raw.NewService(c).ReadRowsParallel(ctx, cfg.Database, cfg.Table, raw.RowOptions{
		Columns:    cfg.Columns,
		Partitions: cfg.Partitions,
		PageSize:   cfg.PageSize,
		Limit:      cfg.Limit,
	})
	if err != nil {
		return fmt.Errorf("start parallel read: %w", err)
	}
	defer reader.Close(context.Background())

	w := bufio.NewWriter(out)
	enc := json.NewEncoder(w)
	written := 0

	for {
		chunk, ok, err := reader.Next(ctx)
		if err != nil {
			return fmt.Errorf("read rows: %w", err)
		}
		if !ok {
			break
		}
		for _, row := range chunk {
			if err := enc.Encode(row); err != nil {
				return fmt.Errorf("write row: %w", err)
			}
			written++
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}

	log.Info().
		Str("database", cfg.Database).
		Str("table", cfg.Table).
		Int("rows", written).
		Int("partitions", reader.Partitions()).
		Msg("Dump complete")
	return nil
}

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	db := flag.String("db", "", "database name (overrides config)")
	table := flag.String("table", "", "table name (overrides config)")
	limit := flag.Int("limit", 0, "max rows to dump (overrides config, 0 = all)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rawdump: %v\n", err)
		os.Exit(2)
	}
	if *db != "" {
		cfg.Database = *db
	}
	if *table != "" {
		cfg.Table = *table
	}
	if *limit > 0 {
		cfg.Limit = *limit
	}
	if cfg.Database == "" || cfg.Table == "" {
		fmt.Fprintf(os.Stderr, "rawdump: database and table are required\n")
		os.Exit(2)
	}

	logCfg := logging.DefaultConfig()
	if cfg.LogLevel != "" {
		logCfg.Level = logging.LogLevel(cfg.LogLevel)
	}
	logging.Setup(logCfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, os.Stdout); err != nil {
		log.Fatal().Err(err).Msg("Dump failed")
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
