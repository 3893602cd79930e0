package config

import (
	"flag"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the runtime configuration of the analyzer. The API token is
// deliberately absent: it comes from the environment only, never from a file
// that could end up in version control.
type Config struct {
	AccountID         string
	BaseURL           string
	ReferenceCurrency string
	ReportDir         string
	JournalDir        string
	HTTPTimeout       time.Duration
}

type configTmp struct {
	AccountID         string        `yaml:"account_id"`
	BaseURL           string        `yaml:"base_url"`
	ReferenceCurrency string        `yaml:"reference_currency"`
	ReportDir         string        `yaml:"report_dir"`
	JournalDir        string        `yaml:"journal_dir"`
	HTTPTimeout       time.Duration `yaml:"http_timeout"`
}

// Get reads configuration from a yaml file when --config is passed, from
// flags otherwise.
func Get() (Config, error) {
	configPath := flag.String("config", "", "path to yaml config")
	accountID := flag.String("account", "", "brokerage account id (first account is used when empty)")
	baseURL := flag.String("baseurl", "", "REST gateway base url")
	reference := flag.String("currency", "rub", "reference currency for valuation")
	reportDir := flag.String("reportdir", "./reports", "directory for report files")
	journalDir := flag.String("journaldir", "./wal/valuations", "directory for the valuation journal")
	timeout := flag.Duration("timeout", 30*time.Second, "HTTP request timeout")
	flag.Parse()

	if *configPath != "" {
		return getYaml(*configPath)
	}

	cfg := Config{
		AccountID:         *accountID,
		BaseURL:           *baseURL,
		ReferenceCurrency: *reference,
		ReportDir:         *reportDir,
		JournalDir:        *journalDir,
		HTTPTimeout:       *timeout,
	}
	return withDefaults(cfg), nil
}

func getYaml(path string) (Config, error) {
	f, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var tmp configTmp
	if err := yaml.Unmarshal(f, &tmp); err != nil {
		return Config{}, fmt.Errorf("incorrect yaml config %s: %w", path, err)
	}

	cfg := Config{
		AccountID:         tmp.AccountID,
		BaseURL:           tmp.BaseURL,
		ReferenceCurrency: tmp.ReferenceCurrency,
		ReportDir:         tmp.ReportDir,
		JournalDir:        tmp.JournalDir,
		HTTPTimeout:       tmp.HTTPTimeout,
	}
	return withDefaults(cfg), nil
}

func withDefaults(cfg Config) Config {
	if cfg.ReferenceCurrency == "" {
		cfg.ReferenceCurrency = "rub"
	}
	if cfg.ReportDir == "" {
		cfg.ReportDir = "./reports"
	}
	if cfg.JournalDir == "" {
		cfg.JournalDir = "./wal/valuations"
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 30 * time.Second
	}
	return cfg
}
