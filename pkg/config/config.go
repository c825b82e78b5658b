// Package config provides configuration loading for portal credentials,
// retry schedules and worker tunables from a YAML file with sane defaults.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// RetryProfile is one named retry policy: attempts plus wait schedule, the
// last schedule entry reused for attempts beyond its length.
type RetryProfile struct {
	MaxAttempts int             `yaml:"max_attempts" validate:"gte=1"`
	Schedule    []time.Duration `yaml:"schedule"     validate:"required,min=1"`
}

// RetryConfig groups the retry profiles by operation class, mirroring how
// the portals differ in how patient each class of action should be.
type RetryConfig struct {
	Login      RetryProfile `yaml:"login"`
	Navigation RetryProfile `yaml:"navigation"`
	FormFill   RetryProfile `yaml:"form_fill"`
	Submit     RetryProfile `yaml:"submit"`
}

// VisionNextConfig configures the direct-form portal.
type VisionNextConfig struct {
	PortalURL          string `yaml:"portal_url" validate:"required,url"`
	Username           string `yaml:"username"   validate:"required"`
	Password           string `yaml:"password"   validate:"required"`
	DefaultWarehouse   string `yaml:"default_warehouse"`
	DefaultAgent       string `yaml:"default_agent"`
	DefaultPaymentType string `yaml:"default_payment_type"`
	DefaultPaymentTerm string `yaml:"default_payment_term"`
	DefaultBranch      string `yaml:"default_branch" validate:"required"`
}

// TecComConfig configures the upload-and-poll portal.
type TecComConfig struct {
	PortalURL      string `yaml:"portal_url" validate:"required,url"`
	Username       string `yaml:"username"   validate:"required"`
	Password       string `yaml:"password"   validate:"required"`
	SupplierOption string `yaml:"supplier_option" validate:"required"`

	// ConfirmPollCeiling bounds each confirmation poll loop wall-clock;
	// ConfirmPollInterval is the fixed wait between page checks.
	ConfirmPollCeiling  time.Duration `yaml:"confirm_poll_ceiling"  validate:"gt=0"`
	ConfirmPollInterval time.Duration `yaml:"confirm_poll_interval" validate:"gt=0"`
}

// BrowserConfig configures the shared browser launcher parameters.
type BrowserConfig struct {
	Headless       bool          `yaml:"headless"`
	WindowWidth    int           `yaml:"window_width"`
	WindowHeight   int           `yaml:"window_height"`
	Locale         string        `yaml:"locale"`
	DownloadDir    string        `yaml:"download_dir"`
	DefaultTimeout time.Duration `yaml:"default_timeout"`
}

// DispatcherConfig configures per-supplier queueing.
type DispatcherConfig struct {
	QueueSize      int           `yaml:"queue_size"      validate:"gte=1"`
	DequeueTimeout time.Duration `yaml:"dequeue_timeout" validate:"gt=0"`
}

type Config struct {
	ScreenshotDir string           `yaml:"screenshot_dir" validate:"required"`
	Browser       BrowserConfig    `yaml:"browser"`
	Dispatcher    DispatcherConfig `yaml:"dispatcher"`
	Retry         RetryConfig      `yaml:"retry"`
	VisionNext    VisionNextConfig `yaml:"visionnext"`
	TecCom        TecComConfig     `yaml:"teccom"`
}

// Default returns the configuration used when no file overrides it.
// Credentials are intentionally empty: validation forces them to be set.
func Default() *Config {
	return &Config{
		ScreenshotDir: "screenshots",
		Browser: BrowserConfig{
			Headless:       true,
			WindowWidth:    1920,
			WindowHeight:   1080,
			Locale:         "tr-TR",
			DownloadDir:    "downloads",
			DefaultTimeout: 30 * time.Second,
		},
		Dispatcher: DispatcherConfig{
			QueueSize:      64,
			DequeueTimeout: 5 * time.Second,
		},
		Retry: RetryConfig{
			Login: RetryProfile{
				MaxAttempts: 3,
				Schedule:    []time.Duration{5 * time.Second, 15 * time.Second, 30 * time.Second},
			},
			Navigation: RetryProfile{
				MaxAttempts: 3,
				Schedule:    []time.Duration{2 * time.Second, 5 * time.Second, 10 * time.Second},
			},
			FormFill: RetryProfile{
				MaxAttempts: 2,
				Schedule:    []time.Duration{3 * time.Second, 10 * time.Second},
			},
			Submit: RetryProfile{
				MaxAttempts: 3,
				Schedule:    []time.Duration{5 * time.Second, 15 * time.Second, 30 * time.Second},
			},
		},
		VisionNext: VisionNextConfig{
			PortalURL:          "https://mutlu.visionnext.com.tr/Prm/UserAccount/Login",
			DefaultWarehouse:   "A. Merkez Depo",
			DefaultAgent:       "CASTROL DALAY",
			DefaultPaymentType: "Açık Hesap",
			DefaultPaymentTerm: "60 Gün",
			DefaultBranch:      "CASTROL BATMAN DALAY PETROL",
		},
		TecCom: TecComConfig{
			PortalURL:           "https://teccom.tecalliance.net/newapp/auth/welcome",
			SupplierOption:      "FILTRON-MANN+HUMMEL Türkiye",
			ConfirmPollCeiling:  5 * time.Minute,
			ConfirmPollInterval: 5 * time.Second,
		},
	}
}

// YAML has no duration scalar, so structs carrying time.Duration fields
// decode through a raw shadow struct with string durations ("5s", "2m30s").
// Pointer fields distinguish "absent" from an explicit zero value, keeping
// partial overrides merging onto the defaults.

func (p *RetryProfile) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		MaxAttempts *int     `yaml:"max_attempts"`
		Schedule    []string `yaml:"schedule"`
	}

	if err := value.Decode(&raw); err != nil {
		return err
	}

	if raw.MaxAttempts != nil {
		p.MaxAttempts = *raw.MaxAttempts
	}

	if len(raw.Schedule) > 0 {
		schedule := make([]time.Duration, 0, len(raw.Schedule))

		for _, s := range raw.Schedule {
			d, err := time.ParseDuration(s)
			if err != nil {
				return fmt.Errorf("retry schedule entry %q: %w", s, err)
			}

			schedule = append(schedule, d)
		}

		p.Schedule = schedule
	}

	return nil
}

func (c *TecComConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		PortalURL           *string `yaml:"portal_url"`
		Username            *string `yaml:"username"`
		Password            *string `yaml:"password"`
		SupplierOption      *string `yaml:"supplier_option"`
		ConfirmPollCeiling  *string `yaml:"confirm_poll_ceiling"`
		ConfirmPollInterval *string `yaml:"confirm_poll_interval"`
	}

	if err := value.Decode(&raw); err != nil {
		return err
	}

	setString(&c.PortalURL, raw.PortalURL)
	setString(&c.Username, raw.Username)
	setString(&c.Password, raw.Password)
	setString(&c.SupplierOption, raw.SupplierOption)

	if err := setDuration(&c.ConfirmPollCeiling, raw.ConfirmPollCeiling, "confirm_poll_ceiling"); err != nil {
		return err
	}

	return setDuration(&c.ConfirmPollInterval, raw.ConfirmPollInterval, "confirm_poll_interval")
}

func (c *BrowserConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Headless       *bool   `yaml:"headless"`
		WindowWidth    *int    `yaml:"window_width"`
		WindowHeight   *int    `yaml:"window_height"`
		Locale         *string `yaml:"locale"`
		DownloadDir    *string `yaml:"download_dir"`
		DefaultTimeout *string `yaml:"default_timeout"`
	}

	if err := value.Decode(&raw); err != nil {
		return err
	}

	if raw.Headless != nil {
		c.Headless = *raw.Headless
	}

	if raw.WindowWidth != nil {
		c.WindowWidth = *raw.WindowWidth
	}

	if raw.WindowHeight != nil {
		c.WindowHeight = *raw.WindowHeight
	}

	setString(&c.Locale, raw.Locale)
	setString(&c.DownloadDir, raw.DownloadDir)

	return setDuration(&c.DefaultTimeout, raw.DefaultTimeout, "default_timeout")
}

func (c *DispatcherConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		QueueSize      *int    `yaml:"queue_size"`
		DequeueTimeout *string `yaml:"dequeue_timeout"`
	}

	if err := value.Decode(&raw); err != nil {
		return err
	}

	if raw.QueueSize != nil {
		c.QueueSize = *raw.QueueSize
	}

	return setDuration(&c.DequeueTimeout, raw.DequeueTimeout, "dequeue_timeout")
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func setDuration(dst *time.Duration, src *string, field string) error {
	if src == nil {
		return nil
	}

	d, err := time.ParseDuration(*src)
	if err != nil {
		return fmt.Errorf("%s %q: %w", field, *src, err)
	}

	*dst = d

	return nil
}

// Load reads the YAML file at path on top of the defaults and validates the
// result.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	return nil
}
