package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/alejandrodnm/polystrat/internal/risk"
	"github.com/alejandrodnm/polystrat/internal/strategy"
)

// Config es la configuración completa del motor de estrategias.
type Config struct {
	Engine     EngineConfig              `yaml:"engine"`
	Risk       RiskConfig                `yaml:"risk"`
	Strategies map[string]StrategyConfig `yaml:"strategies"`
	Dispatch   DispatchConfig            `yaml:"dispatch"`
	Feed       FeedConfig                `yaml:"feed"`
	Storage    StorageConfig             `yaml:"storage"`
	Log        LogConfig                 `yaml:"log"`
}

// EngineConfig controla el loop de evaluación.
type EngineConfig struct {
	TickSeconds      int  `yaml:"tick_seconds"`
	MaxErrors        int  `yaml:"max_errors"`         // errores consecutivos antes de marcar la estrategia en error
	MaxSignalHistory int  `yaml:"max_signal_history"`
	AutoStart        bool `yaml:"auto_start"`
}

// RiskConfig es el espejo YAML de risk.Config. Los límites son punteros:
// ausente en el YAML significa sin límite.
type RiskConfig struct {
	Enabled              bool     `yaml:"enabled"`
	MaxPositionSize      *float64 `yaml:"max_position_size"`
	MinPositionSize      *float64 `yaml:"min_position_size"`
	MaxTotalExposure     *float64 `yaml:"max_total_exposure"`
	MaxExposurePerMarket *float64 `yaml:"max_exposure_per_market"`
	MaxPositions         *int     `yaml:"max_positions"`
	MaxDailyVolume       *float64 `yaml:"max_daily_volume"`
	MaxDailyTrades       *int     `yaml:"max_daily_trades"`
	MaxDailyLoss         *float64 `yaml:"max_daily_loss"`
	BlacklistedMarkets   []string `yaml:"blacklisted_markets"`
	WhitelistedMarkets   []string `yaml:"whitelisted_markets"`
}

// StrategyConfig es la configuración por estrategia.
type StrategyConfig struct {
	Enabled              bool           `yaml:"enabled"`
	AutoExecute          bool           `yaml:"auto_execute"`
	MinSignalIntervalSec int            `yaml:"min_signal_interval_seconds"`
	IncludeMarkets       []string       `yaml:"include_markets"`
	ExcludeMarkets       []string       `yaml:"exclude_markets"`
	Parameters           map[string]any `yaml:"parameters"`
}

// DispatchConfig controla el rate limiting hacia el sink de órdenes.
type DispatchConfig struct {
	OrdersPerSecond float64 `yaml:"orders_per_second"`
	Burst           int     `yaml:"burst"`
}

// FeedConfig controla el provider simulado en modo dry-run.
type FeedConfig struct {
	Markets int     `yaml:"markets"`
	Seed    int64   `yaml:"seed"`
	Balance float64 `yaml:"balance"`
}

// StorageConfig controla dónde se persisten las señales.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // ruta al archivo SQLite, ":memory:", o vacío para desactivar
}

// LogConfig controla el formato, nivel y destino del logging.
type LogConfig struct {
	Level      string `yaml:"level"`  // debug | info | warn | error
	Format     string `yaml:"format"` // text | json
	File       string `yaml:"file"`   // vacío = stderr
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Los valores del .env sobreescriben los del YAML para las keys que correspondan.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	return &cfg, nil
}

// TickInterval devuelve el intervalo del loop como time.Duration.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.Engine.TickSeconds) * time.Second
}

// RiskLimits convierte la sección de riesgo al tipo del guard.
func (c *Config) RiskLimits() risk.Config {
	return risk.Config{
		Enabled:              c.Risk.Enabled,
		MaxPositionSize:      c.Risk.MaxPositionSize,
		MinPositionSize:      c.Risk.MinPositionSize,
		MaxTotalExposure:     c.Risk.MaxTotalExposure,
		MaxExposurePerMarket: c.Risk.MaxExposurePerMarket,
		MaxPositions:         c.Risk.MaxPositions,
		MaxDailyVolume:       c.Risk.MaxDailyVolume,
		MaxDailyTrades:       c.Risk.MaxDailyTrades,
		MaxDailyLoss:         c.Risk.MaxDailyLoss,
		BlacklistedMarkets:   c.Risk.BlacklistedMarkets,
		WhitelistedMarkets:   c.Risk.WhitelistedMarkets,
	}
}

// StrategySettings convierte la sección de una estrategia al tipo del motor.
// Si el nombre no aparece en el YAML devuelve la configuración por defecto.
func (c *Config) StrategySettings(name string) strategy.Config {
	sc, ok := c.Strategies[name]
	if !ok {
		return strategy.DefaultConfig()
	}
	params := sc.Parameters
	if params == nil {
		params = map[string]any{}
	}
	return strategy.Config{
		Enabled:               sc.Enabled,
		AutoExecute:           sc.AutoExecute,
		IncludeMarkets:        sc.IncludeMarkets,
		ExcludeMarkets:        sc.ExcludeMarkets,
		MinSignalIntervalSecs: sc.MinSignalIntervalSec,
		Parameters:            params,
	}
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("STORAGE_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("RISK_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Risk.Enabled = b
		}
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	if cfg.Engine.TickSeconds <= 0 {
		cfg.Engine.TickSeconds = 10
	}
	if cfg.Engine.MaxErrors <= 0 {
		cfg.Engine.MaxErrors = 5
	}
	if cfg.Engine.MaxSignalHistory <= 0 {
		cfg.Engine.MaxSignalHistory = 1000
	}
	if cfg.Dispatch.OrdersPerSecond < 0 {
		cfg.Dispatch.OrdersPerSecond = 0
	}
	if cfg.Dispatch.Burst <= 0 {
		cfg.Dispatch.Burst = 1
	}
	if cfg.Feed.Markets <= 0 {
		cfg.Feed.Markets = 5
	}
	if cfg.Feed.Seed == 0 {
		cfg.Feed.Seed = time.Now().UnixNano()
	}
	if cfg.Feed.Balance <= 0 {
		cfg.Feed.Balance = 1000
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	if cfg.Log.MaxSizeMB <= 0 {
		cfg.Log.MaxSizeMB = 20
	}
	if cfg.Log.MaxBackups <= 0 {
		cfg.Log.MaxBackups = 3
	}
}
