// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// Components depend on this rather than on *Config so tests can substitute it.
type Interface interface {
	Logger() LoggerConfig
	Browser() BrowserConfig
	Automation() AutomationConfig
	Vision() VisionConfig
	Engine() EngineConfig
	Database() DatabaseConfig

	// Setters for values commonly overridden from CLI flags.
	SetBrowserHeadless(bool)
	SetEngineWorkerConcurrency(int)
	SetAutomationDetectionMethod(string)
	SetAutomationSubmit(bool)
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg     LoggerConfig     `mapstructure:"logger" yaml:"logger"`
	BrowserCfg    BrowserConfig    `mapstructure:"browser" yaml:"browser"`
	AutomationCfg AutomationConfig `mapstructure:"automation" yaml:"automation"`
	VisionCfg     VisionConfig     `mapstructure:"vision" yaml:"vision"`
	EngineCfg     EngineConfig     `mapstructure:"engine" yaml:"engine"`
	DatabaseCfg   DatabaseConfig   `mapstructure:"database" yaml:"database"`
}

var _ Interface = (*Config)(nil)

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig         { return c.LoggerCfg }
func (c *Config) Browser() BrowserConfig       { return c.BrowserCfg }
func (c *Config) Automation() AutomationConfig { return c.AutomationCfg }
func (c *Config) Vision() VisionConfig         { return c.VisionCfg }
func (c *Config) Engine() EngineConfig         { return c.EngineCfg }
func (c *Config) Database() DatabaseConfig     { return c.DatabaseCfg }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetBrowserHeadless(b bool)        { c.BrowserCfg.Headless = b }
func (c *Config) SetEngineWorkerConcurrency(w int) { c.EngineCfg.WorkerConcurrency = w }
func (c *Config) SetAutomationSubmit(b bool)       { c.AutomationCfg.Submit = b }
func (c *Config) SetAutomationDetectionMethod(m string) {
	c.AutomationCfg.DetectionMethod = m
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// Viewport is a screen resolution in CSS pixels.
type Viewport struct {
	Width  int64 `mapstructure:"width" yaml:"width"`
	Height int64 `mapstructure:"height" yaml:"height"`
}

// BrowserConfig holds settings for the browser process and its fingerprint.
type BrowserConfig struct {
	Headless        bool     `mapstructure:"headless" yaml:"headless"`
	ExecPath        string   `mapstructure:"exec_path" yaml:"exec_path"`
	IgnoreTLSErrors bool     `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	Args            []string `mapstructure:"args" yaml:"args"`
	// LaunchTimeout bounds browser start up and the first CDP round trip.
	LaunchTimeout time.Duration `mapstructure:"launch_timeout" yaml:"launch_timeout"`
	// Fingerprint pools. One entry of each is chosen per session.
	Viewports  []Viewport   `mapstructure:"viewports" yaml:"viewports"`
	UserAgents []string     `mapstructure:"user_agents" yaml:"user_agents"`
	Languages  []string     `mapstructure:"languages" yaml:"languages"`
	Locale     string       `mapstructure:"locale" yaml:"locale"`
	TimezoneID string       `mapstructure:"timezone_id" yaml:"timezone_id"`
	Typing     TypingConfig `mapstructure:"typing" yaml:"typing"`
}

// TypingConfig tunes the humanized keystroke cadence.
type TypingConfig struct {
	MeanDelay time.Duration `mapstructure:"mean_delay" yaml:"mean_delay"`
	MinDelay  time.Duration `mapstructure:"min_delay" yaml:"min_delay"`
	MaxDelay  time.Duration `mapstructure:"max_delay" yaml:"max_delay"`
	// TypoRate is the per keystroke probability of a corrected neighbor-key typo.
	TypoRate float64 `mapstructure:"typo_rate" yaml:"typo_rate"`
}

// AutomationConfig holds the knobs of the detection and filling pipeline.
type AutomationConfig struct {
	DetectionMethod   string        `mapstructure:"detection_method" yaml:"detection_method"`
	Submit            bool          `mapstructure:"submit" yaml:"submit"`
	OperationTimeout  time.Duration `mapstructure:"operation_timeout" yaml:"operation_timeout"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	PostLoadWait      time.Duration `mapstructure:"post_load_wait" yaml:"post_load_wait"`
	MaxTabIterations  int           `mapstructure:"max_tab_iterations" yaml:"max_tab_iterations"`
	TabStepDelay      time.Duration `mapstructure:"tab_step_delay" yaml:"tab_step_delay"`
	MergeThreshold    float64       `mapstructure:"merge_threshold" yaml:"merge_threshold"`
	LabelRadius       float64       `mapstructure:"label_radius" yaml:"label_radius"`
	UploadProximity   float64       `mapstructure:"upload_proximity" yaml:"upload_proximity"`
	SettleDelay       time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`
	Screenshots       bool          `mapstructure:"screenshots" yaml:"screenshots"`
}

// VisionConfig configures the visual detection provider.
type VisionConfig struct {
	// Provider is "heuristic" or "gemini". Gemini falls back to the heuristic
	// when no API key is available.
	Provider       string        `mapstructure:"provider" yaml:"provider"`
	Model          string        `mapstructure:"model" yaml:"model"`
	APIKey         string        `mapstructure:"api_key" yaml:"api_key"`
	APITimeout     time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
	RequestsPerMin float64       `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
	// Heuristic tuning.
	MinFieldWidth  int `mapstructure:"min_field_width" yaml:"min_field_width"`
	MaxFieldWidth  int `mapstructure:"max_field_width" yaml:"max_field_width"`
	MinFieldHeight int `mapstructure:"min_field_height" yaml:"min_field_height"`
	MaxFieldHeight int `mapstructure:"max_field_height" yaml:"max_field_height"`
	EdgeThreshold  int `mapstructure:"edge_threshold" yaml:"edge_threshold"`
}

// EngineConfig configures the task processing worker pool.
type EngineConfig struct {
	QueueSize          int           `mapstructure:"queue_size" yaml:"queue_size"`
	WorkerConcurrency  int           `mapstructure:"worker_concurrency" yaml:"worker_concurrency"`
	DefaultTaskTimeout time.Duration `mapstructure:"default_task_timeout" yaml:"default_task_timeout"`
}

// DatabaseConfig holds the database connection details for the result recorder.
type DatabaseConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	URL     string `mapstructure:"url" yaml:"url"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "formpilot")
	v.SetDefault("logger.log_file", "formpilot.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.launch_timeout", "30s")
	v.SetDefault("browser.viewports", []map[string]interface{}{
		{"width": 1920, "height": 1080},
		{"width": 1366, "height": 768},
		{"width": 1440, "height": 900},
		{"width": 1536, "height": 864},
	})
	v.SetDefault("browser.user_agents", []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
	})
	v.SetDefault("browser.languages", []string{"en-US", "en"})
	v.SetDefault("browser.locale", "en-US")
	v.SetDefault("browser.timezone_id", "America/New_York")
	v.SetDefault("browser.typing.mean_delay", "90ms")
	v.SetDefault("browser.typing.min_delay", "50ms")
	v.SetDefault("browser.typing.max_delay", "150ms")
	v.SetDefault("browser.typing.typo_rate", 0.0)

	// -- Automation --
	v.SetDefault("automation.detection_method", "hybrid")
	v.SetDefault("automation.submit", false)
	v.SetDefault("automation.operation_timeout", "3s")
	v.SetDefault("automation.navigation_timeout", "30s")
	v.SetDefault("automation.post_load_wait", "2s")
	v.SetDefault("automation.max_tab_iterations", 100)
	v.SetDefault("automation.tab_step_delay", "100ms")
	v.SetDefault("automation.merge_threshold", 50.0)
	v.SetDefault("automation.label_radius", 100.0)
	v.SetDefault("automation.upload_proximity", 200.0)
	v.SetDefault("automation.settle_delay", "3s")
	v.SetDefault("automation.screenshots", true)

	// -- Vision --
	v.SetDefault("vision.provider", "heuristic")
	v.SetDefault("vision.model", "gemini-2.5-flash")
	v.SetDefault("vision.api_timeout", "60s")
	v.SetDefault("vision.requests_per_minute", 10.0)
	v.SetDefault("vision.min_field_width", 60)
	v.SetDefault("vision.max_field_width", 900)
	v.SetDefault("vision.min_field_height", 18)
	v.SetDefault("vision.max_field_height", 70)
	v.SetDefault("vision.edge_threshold", 40)

	// -- Engine --
	v.SetDefault("engine.queue_size", 100)
	v.SetDefault("engine.worker_concurrency", 2)
	v.SetDefault("engine.default_task_timeout", "5m")

	// -- Database --
	v.SetDefault("database.enabled", false)
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Bind environment variables for sensitive data.
	_ = v.BindEnv("vision.api_key", "FORMPILOT_VISION_API_KEY", "GEMINI_API_KEY")
	_ = v.BindEnv("database.url", "FORMPILOT_DATABASE_URL")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if cfg.VisionCfg.Provider == ProviderGemini && cfg.VisionCfg.APIKey == "" {
		cfg.VisionCfg.APIKey = os.Getenv("GEMINI_API_KEY")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Vision provider names.
const (
	ProviderHeuristic = "heuristic"
	ProviderGemini    = "gemini"
)

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.EngineCfg.WorkerConcurrency <= 0 {
		return fmt.Errorf("engine.worker_concurrency must be a positive integer")
	}
	if len(c.BrowserCfg.Viewports) == 0 {
		return fmt.Errorf("browser.viewports must contain at least one entry")
	}
	for i, vp := range c.BrowserCfg.Viewports {
		if vp.Width <= 0 || vp.Height <= 0 {
			return fmt.Errorf("browser.viewports[%d] must have positive dimensions", i)
		}
	}
	if len(c.BrowserCfg.UserAgents) == 0 {
		return fmt.Errorf("browser.user_agents must contain at least one entry")
	}
	if err := c.AutomationCfg.Validate(); err != nil {
		return fmt.Errorf("automation configuration invalid: %w", err)
	}
	if err := c.VisionCfg.Validate(); err != nil {
		return fmt.Errorf("vision configuration invalid: %w", err)
	}
	if c.DatabaseCfg.Enabled && c.DatabaseCfg.URL == "" {
		return fmt.Errorf("database.url is required when database.enabled is true")
	}
	return nil
}

// Validate checks the AutomationConfig settings.
func (a *AutomationConfig) Validate() error {
	switch a.DetectionMethod {
	case "", "dom", "visual", "tab", "hybrid":
	default:
		return fmt.Errorf("detection_method %q must be one of dom, visual, tab, hybrid", a.DetectionMethod)
	}
	if a.OperationTimeout <= 0 {
		return fmt.Errorf("operation_timeout must be a positive duration")
	}
	if a.MaxTabIterations <= 0 {
		return fmt.Errorf("max_tab_iterations must be greater than 0")
	}
	if a.MergeThreshold <= 0 {
		return fmt.Errorf("merge_threshold must be greater than 0")
	}
	return nil
}

// Validate checks the VisionConfig settings.
func (vc *VisionConfig) Validate() error {
	switch vc.Provider {
	case "", ProviderHeuristic, ProviderGemini:
	default:
		return fmt.Errorf("provider %q must be heuristic or gemini", vc.Provider)
	}
	if vc.MinFieldWidth > vc.MaxFieldWidth || vc.MinFieldHeight > vc.MaxFieldHeight {
		return fmt.Errorf("field size bounds are inverted")
	}
	return nil
}
