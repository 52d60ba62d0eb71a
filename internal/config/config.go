package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/vehicle-scraper/internal/db"
	"github.com/sells-group/vehicle-scraper/internal/model"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig            `yaml:"store" mapstructure:"store"`
	Log      LogConfig              `yaml:"log" mapstructure:"log"`
	HTTP     HTTPConfig             `yaml:"http" mapstructure:"http"`
	Scrape   ScrapeConfig           `yaml:"scrape" mapstructure:"scrape"`
	Augment  AugmentConfig          `yaml:"augment" mapstructure:"augment"`
	Location LocationConfig         `yaml:"location" mapstructure:"location"`
	Models   map[string]ModelConfig `yaml:"models" mapstructure:"models"`
}

// StoreConfig configures the Postgres connection.
type StoreConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// PoolConfig returns the pool sizing for db.Open.
func (s StoreConfig) PoolConfig() db.PoolConfig {
	return db.PoolConfig{MaxConns: s.MaxConns, MinConns: s.MinConns}
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// HTTPConfig configures outbound marketplace requests.
type HTTPConfig struct {
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries" mapstructure:"max_retries"`
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
}

// ScrapeConfig configures the collection run.
type ScrapeConfig struct {
	Sources        []string `yaml:"sources" mapstructure:"sources"`
	MaxAPICalls    int      `yaml:"max_api_calls" mapstructure:"max_api_calls"`
	RowConcurrency int      `yaml:"row_concurrency" mapstructure:"row_concurrency"`
}

// AugmentConfig configures the augmentation run.
type AugmentConfig struct {
	// Sources is the detail-source preference order.
	Sources     []string `yaml:"sources" mapstructure:"sources"`
	Concurrency int      `yaml:"concurrency" mapstructure:"concurrency"`
	Checkpoint  int      `yaml:"checkpoint" mapstructure:"checkpoint"`
	CooldownMs  int      `yaml:"cooldown_ms" mapstructure:"cooldown_ms"`
	// EdmundsMake is the make slug used in edmunds detail URLs when a
	// vehicle does not carry its own make.
	EdmundsMake string `yaml:"edmunds_make" mapstructure:"edmunds_make"`
}

// LocationConfig is the buyer's search origin.
type LocationConfig struct {
	Lat   float64 `yaml:"lat" mapstructure:"lat"`
	Lon   float64 `yaml:"lon" mapstructure:"lon"`
	Zip   string  `yaml:"zip" mapstructure:"zip"`
	City  string  `yaml:"city" mapstructure:"city"`
	State string  `yaml:"state" mapstructure:"state"`
	DMA   int     `yaml:"dma" mapstructure:"dma"`
}

// ModelConfig describes one target model: the names written to the
// vehicles table, the search filters, and each marketplace's own codes.
type ModelConfig struct {
	Make     string       `yaml:"make" mapstructure:"make"`
	Model    string       `yaml:"model" mapstructure:"model"`
	MinYear  int          `yaml:"min_year" mapstructure:"min_year"`
	MaxPrice int          `yaml:"max_price" mapstructure:"max_price"`
	MaxMiles int          `yaml:"max_miles" mapstructure:"max_miles"`
	Radius   int          `yaml:"radius" mapstructure:"radius"`
	Params   SourceParams `yaml:"params" mapstructure:"params"`
}

// Naming returns the make/model pair stored on inserted vehicles.
func (m ModelConfig) Naming() model.Naming {
	return model.Naming{Make: m.Make, Model: m.Model}
}

// SourceParams holds per-marketplace query codes. A nil entry means the
// model is not searchable on that marketplace.
type SourceParams struct {
	AutoTrader *AutoTraderParams `yaml:"auto_trader" mapstructure:"auto_trader"`
	Autolist   *AutolistParams   `yaml:"autolist" mapstructure:"autolist"`
	CarsCom    *CarsComParams    `yaml:"cars_com" mapstructure:"cars_com"`
	Edmunds    *EdmundsParams    `yaml:"edmunds" mapstructure:"edmunds"`
}

// AutoTraderParams are autotrader.com make/model codes.
type AutoTraderParams struct {
	MakeCodeList  string `yaml:"make_code_list" mapstructure:"make_code_list"`
	ModelCodeList string `yaml:"model_code_list" mapstructure:"model_code_list"`
}

// AutolistParams are autolist.com make/model names.
type AutolistParams struct {
	Make  string `yaml:"make" mapstructure:"make"`
	Model string `yaml:"model" mapstructure:"model"`
}

// CarsComParams are cars.com numeric ids.
type CarsComParams struct {
	MkID  string `yaml:"mk_id" mapstructure:"mk_id"`
	MdID  string `yaml:"md_id" mapstructure:"md_id"`
	MlgID string `yaml:"mlg_id" mapstructure:"mlg_id"`
}

// EdmundsParams are edmunds.com make/model slugs.
type EdmundsParams struct {
	Make  string `yaml:"make" mapstructure:"make"`
	Model string `yaml:"model" mapstructure:"model"`
}

// HasParams reports whether the model carries query params for src.
func (p SourceParams) HasParams(src model.Source) bool {
	switch src {
	case model.SourceAutoTrader:
		return p.AutoTrader != nil
	case model.SourceAutolist:
		return p.Autolist != nil
	case model.SourceCarsDotCom:
		return p.CarsCom != nil
	case model.SourceEdmunds:
		return p.Edmunds != nil
	default:
		return false
	}
}

// ModelKeys returns the configured model keys in sorted order.
func (c *Config) ModelKeys() []string {
	keys := make([]string, 0, len(c.Models))
	for k := range c.Models {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Validate checks that required fields are present for the given command.
// Mode is one of "collect", "augment", or "migrate".
func (c *Config) Validate(mode string) error {
	var missing []string

	if c.Store.DatabaseURL == "" {
		missing = append(missing, "store.database_url")
	}

	switch mode {
	case "collect":
		missing = append(missing, c.validateCollect()...)
	case "augment":
		missing = append(missing, c.validateAugment()...)
	case "migrate":
	default:
		return eris.Errorf("config: unknown validation mode %q", mode)
	}

	if len(missing) > 0 {
		return eris.Errorf("config: missing or invalid fields for %s: %s", mode, strings.Join(missing, ", "))
	}
	return nil
}

func (c *Config) validateCollect() []string {
	var missing []string

	if c.Location.Zip == "" {
		missing = append(missing, "location.zip")
	}
	if c.Location.Lat == 0 || c.Location.Lon == 0 {
		missing = append(missing, "location.lat/lon")
	}
	if c.Scrape.MaxAPICalls < 1 {
		missing = append(missing, "scrape.max_api_calls (must be >= 1)")
	}
	if c.Scrape.RowConcurrency < 1 || c.Scrape.RowConcurrency > 64 {
		missing = append(missing, "scrape.row_concurrency (must be 1-64)")
	}
	if len(c.Models) == 0 {
		missing = append(missing, "models")
	}

	sources, err := model.ParseSources(c.Scrape.Sources)
	if err != nil {
		return append(missing, fmt.Sprintf("scrape.sources (%v)", err))
	}
	if len(sources) == 0 {
		missing = append(missing, "scrape.sources")
	}

	for _, key := range c.ModelKeys() {
		mc := c.Models[key]
		if mc.Make == "" || mc.Model == "" {
			missing = append(missing, fmt.Sprintf("models.%s.make/model", key))
		}
		if mc.Radius <= 0 {
			missing = append(missing, fmt.Sprintf("models.%s.radius", key))
		}
		for _, src := range sources {
			if !mc.Params.HasParams(src) {
				missing = append(missing, fmt.Sprintf("models.%s.params.%s", key, paramKey(src)))
			}
		}
	}
	return missing
}

func (c *Config) validateAugment() []string {
	var missing []string

	if _, err := model.ParseSources(c.Augment.Sources); err != nil {
		missing = append(missing, fmt.Sprintf("augment.sources (%v)", err))
	} else if len(c.Augment.Sources) == 0 {
		missing = append(missing, "augment.sources")
	}
	if c.Augment.Concurrency < 1 || c.Augment.Concurrency > 64 {
		missing = append(missing, "augment.concurrency (must be 1-64)")
	}
	if c.Augment.CooldownMs < 0 {
		missing = append(missing, "augment.cooldown_ms (must be >= 0)")
	}
	return missing
}

func paramKey(src model.Source) string {
	if src == model.SourceCarsDotCom {
		return "cars_com"
	}
	return src.String()
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SCRAPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.database_url", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("http.timeout_secs", 10)
	v.SetDefault("http.max_retries", 3)
	v.SetDefault("http.user_agent", "")
	v.SetDefault("scrape.sources", []string{"auto_trader", "autolist", "cars.com"})
	v.SetDefault("scrape.max_api_calls", 50)
	v.SetDefault("scrape.row_concurrency", 8)
	v.SetDefault("augment.sources", []string{"autolist", "edmunds"})
	v.SetDefault("augment.concurrency", 8)
	v.SetDefault("augment.checkpoint", 25)
	v.SetDefault("augment.cooldown_ms", 1000)
	v.SetDefault("augment.edmunds_make", "jeep")
	v.SetDefault("location.dma", 807)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
