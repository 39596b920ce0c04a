package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// GlobalFlags are the CLI flags that feed into configuration loading.
type GlobalFlags struct {
	ConfigPath string
	RPCURL     string
	AgentID    string
	Timeout    string
	Retries    int
	Debug      bool
}

// Settings is the resolved runtime configuration: defaults, overridden
// by the yaml config file, overridden by ONCHAINQA_* env vars,
// overridden by flags.
type Settings struct {
	RPCURL          string
	AgentID         string
	Timeout         time.Duration
	Retries         int
	CacheTTL        time.Duration
	LLMEndpoint     string
	LLMAPIKey       string
	LLMModel        string
	LLMMaxTokens    int
	IPFSAPIURL      string
	ArchivePath     string
	ArchiveLockPath string
	Debug           bool
}

type fileConfig struct {
	RPCURL  string `yaml:"rpc_url"`
	AgentID string `yaml:"agent_id"`
	Timeout string `yaml:"timeout"`
	Retries *int   `yaml:"retries"`
	Cache   struct {
		TTL string `yaml:"ttl"`
	} `yaml:"cache"`
	LLM struct {
		Endpoint  string `yaml:"endpoint"`
		APIKey    string `yaml:"api_key"`
		APIKeyEnv string `yaml:"api_key_env"`
		Model     string `yaml:"model"`
		MaxTokens *int   `yaml:"max_tokens"`
	} `yaml:"llm"`
	IPFS struct {
		APIURL string `yaml:"api_url"`
	} `yaml:"ipfs"`
	Archive struct {
		Path     string `yaml:"path"`
		LockPath string `yaml:"lock_path"`
	} `yaml:"archive"`
}

func Load(flags GlobalFlags) (Settings, error) {
	settings, err := defaultSettings()
	if err != nil {
		return Settings{}, err
	}

	cfgPath, err := resolveConfigPath(flags.ConfigPath)
	if err != nil {
		return Settings{}, err
	}
	if err := applyFileConfig(cfgPath, &settings); err != nil {
		return Settings{}, err
	}

	applyEnv(&settings)

	if err := applyFlags(flags, &settings); err != nil {
		return Settings{}, err
	}

	if settings.Timeout <= 0 {
		settings.Timeout = 30 * time.Second
	}
	if settings.Retries < 0 {
		settings.Retries = 0
	}
	if settings.CacheTTL <= 0 {
		settings.CacheTTL = 5 * time.Minute
	}
	return settings, nil
}

func defaultSettings() (Settings, error) {
	archivePath, lockPath, err := defaultArchivePaths()
	if err != nil {
		return Settings{}, err
	}
	return Settings{
		RPCURL:          "https://mainnet.base.org",
		AgentID:         "cli_agent",
		Timeout:         30 * time.Second,
		Retries:         2,
		CacheTTL:        5 * time.Minute,
		LLMEndpoint:     "https://api.openai.com/v1",
		LLMModel:        "gpt-4o-mini",
		LLMMaxTokens:    512,
		IPFSAPIURL:      "http://127.0.0.1:5001",
		ArchivePath:     archivePath,
		ArchiveLockPath: lockPath,
	}, nil
}

func resolveConfigPath(input string) (string, error) {
	if strings.TrimSpace(input) != "" {
		return input, nil
	}
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "onchainqa", "config.yaml"), nil
}

func defaultArchivePaths() (string, string, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", "", err
		}
		base = filepath.Join(home, ".cache")
	}
	dir := filepath.Join(base, "onchainqa")
	return filepath.Join(dir, "traces.db"), filepath.Join(dir, "traces.lock"), nil
}

func applyFileConfig(path string, settings *Settings) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}

	var cfg fileConfig
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return fmt.Errorf("parse config yaml: %w", err)
	}

	if cfg.RPCURL != "" {
		settings.RPCURL = cfg.RPCURL
	}
	if cfg.AgentID != "" {
		settings.AgentID = cfg.AgentID
	}
	if cfg.Timeout != "" {
		d, err := time.ParseDuration(cfg.Timeout)
		if err != nil {
			return fmt.Errorf("config timeout: %w", err)
		}
		settings.Timeout = d
	}
	if cfg.Retries != nil {
		settings.Retries = *cfg.Retries
	}
	if cfg.Cache.TTL != "" {
		d, err := time.ParseDuration(cfg.Cache.TTL)
		if err != nil {
			return fmt.Errorf("config cache.ttl: %w", err)
		}
		settings.CacheTTL = d
	}
	if cfg.LLM.Endpoint != "" {
		settings.LLMEndpoint = cfg.LLM.Endpoint
	}
	if cfg.LLM.APIKey != "" {
		settings.LLMAPIKey = cfg.LLM.APIKey
	}
	if cfg.LLM.APIKeyEnv != "" {
		settings.LLMAPIKey = os.Getenv(cfg.LLM.APIKeyEnv)
	}
	if cfg.LLM.Model != "" {
		settings.LLMModel = cfg.LLM.Model
	}
	if cfg.LLM.MaxTokens != nil {
		settings.LLMMaxTokens = *cfg.LLM.MaxTokens
	}
	if cfg.IPFS.APIURL != "" {
		settings.IPFSAPIURL = cfg.IPFS.APIURL
	}
	if cfg.Archive.Path != "" {
		settings.ArchivePath = cfg.Archive.Path
	}
	if cfg.Archive.LockPath != "" {
		settings.ArchiveLockPath = cfg.Archive.LockPath
	}
	return nil
}

func applyEnv(settings *Settings) {
	if v := os.Getenv("ONCHAINQA_RPC_URL"); v != "" {
		settings.RPCURL = v
	}
	if v := os.Getenv("ONCHAINQA_AGENT_ID"); v != "" {
		settings.AgentID = v
	}
	if v := os.Getenv("ONCHAINQA_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			settings.Timeout = d
		}
	}
	if v := os.Getenv("ONCHAINQA_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			settings.Retries = n
		}
	}
	if v := os.Getenv("ONCHAINQA_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			settings.CacheTTL = d
		}
	}
	if v := os.Getenv("ONCHAINQA_LLM_ENDPOINT"); v != "" {
		settings.LLMEndpoint = v
	}
	if v := os.Getenv("ONCHAINQA_LLM_API_KEY"); v != "" {
		settings.LLMAPIKey = v
	}
	if v := os.Getenv("ONCHAINQA_LLM_MODEL"); v != "" {
		settings.LLMModel = v
	}
	if v := os.Getenv("ONCHAINQA_IPFS_API_URL"); v != "" {
		settings.IPFSAPIURL = v
	}
	if v := os.Getenv("ONCHAINQA_ARCHIVE_PATH"); v != "" {
		settings.ArchivePath = v
	}
	if v := os.Getenv("ONCHAINQA_ARCHIVE_LOCK_PATH"); v != "" {
		settings.ArchiveLockPath = v
	}
	if v := os.Getenv("ONCHAINQA_DEBUG"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			settings.Debug = b
		}
	}
}

func applyFlags(flags GlobalFlags, settings *Settings) error {
	if strings.TrimSpace(flags.RPCURL) != "" {
		settings.RPCURL = strings.TrimSpace(flags.RPCURL)
	}
	if strings.TrimSpace(flags.AgentID) != "" {
		settings.AgentID = strings.TrimSpace(flags.AgentID)
	}
	if flags.Timeout != "" {
		d, err := time.ParseDuration(flags.Timeout)
		if err != nil {
			return fmt.Errorf("parse --timeout: %w", err)
		}
		settings.Timeout = d
	}
	if flags.Retries >= 0 {
		settings.Retries = flags.Retries
	}
	if flags.Debug {
		settings.Debug = true
	}
	return nil
}
