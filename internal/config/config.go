// Package config holds runtime settings and the persisted label content.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Settings is the runtime configuration of the device.
type Settings struct {
	Listen         string        `yaml:"listen"`
	ReadTimeout    time.Duration `yaml:"readTimeout"`
	MaxHeaderBytes int           `yaml:"maxHeaderBytes"`
	MaxBodyBytes   int           `yaml:"maxBodyBytes"`
	StorePath      string        `yaml:"storePath"`
	LogLevel       string        `yaml:"logLevel"` // empty: LOG_LEVEL, then info
	MetricsAddr    string        `yaml:"metricsAddr,omitempty"`

	Panel PanelSettings `yaml:"panel"`
	AP    APSettings    `yaml:"ap"`
}

// PanelSettings describes the display and how it is wired.
type PanelSettings struct {
	Width        int  `yaml:"width"`
	Height       int  `yaml:"height"`       // visible rows
	SourceHeight int  `yaml:"sourceHeight"` // rows the browser canvas sends
	QRBox        int  `yaml:"qrBox"`
	Rotated      bool `yaml:"rotated"`

	SPI  string `yaml:"spi"`
	DC   string `yaml:"dc"`
	RST  string `yaml:"rst"`
	Busy string `yaml:"busy"`
}

// APSettings configures the provisioning access point.
type APSettings struct {
	SSIDPrefix string `yaml:"ssidPrefix"`
	Password   string `yaml:"password"`
	Addr       string `yaml:"addr"` // address shown on the boot screen
}

// Default returns the built-in settings.
func Default() Settings {
	return Settings{
		Listen:         ":80",
		ReadTimeout:    2 * time.Second,
		MaxHeaderBytes: 4096,
		MaxBodyBytes:   16384,
		StorePath:      "label.yaml",
		Panel: PanelSettings{
			Width:        250,
			Height:       122,
			SourceHeight: 128,
			QRBox:        100,
			DC:           "GPIO25",
			RST:          "GPIO17",
			Busy:         "GPIO24",
		},
		AP: APSettings{
			SSIDPrefix: "Cargotchi",
			Password:   "cargotchi1234",
			Addr:       "192.168.4.1",
		},
	}
}

// Load reads settings from path on top of Default, then applies CARGOTCHI_*
// environment overrides and validates the result. An empty path skips the
// file.
func Load(path string) (Settings, error) {
	s := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Settings{}, fmt.Errorf("read config: %w", err)
		}
		if err := decodeStrict(data, &s); err != nil {
			return Settings{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := s.applyEnv(os.LookupEnv); err != nil {
		return Settings{}, err
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// decodeStrict rejects unknown keys and trailing documents.
func decodeStrict(data []byte, v any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("config contains multiple documents")
	}
	return nil
}

type lookupFunc func(string) (string, bool)

func (s *Settings) applyEnv(lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
		return nil
	}

	str("CARGOTCHI_LISTEN", &s.Listen)
	str("CARGOTCHI_STORE_PATH", &s.StorePath)
	str("CARGOTCHI_LOG_LEVEL", &s.LogLevel)
	str("CARGOTCHI_METRICS_ADDR", &s.MetricsAddr)
	str("CARGOTCHI_AP_SSID_PREFIX", &s.AP.SSIDPrefix)
	str("CARGOTCHI_AP_PASSWORD", &s.AP.Password)
	str("CARGOTCHI_AP_ADDR", &s.AP.Addr)

	if v, ok := lookup("CARGOTCHI_READ_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("CARGOTCHI_READ_TIMEOUT: %w", err)
		}
		s.ReadTimeout = d
	}
	if err := num("CARGOTCHI_MAX_HEADER_BYTES", &s.MaxHeaderBytes); err != nil {
		return err
	}
	return num("CARGOTCHI_MAX_BODY_BYTES", &s.MaxBodyBytes)
}

// Validate checks that the settings are usable together.
func (s Settings) Validate() error {
	var errs []error
	if s.Listen == "" {
		errs = append(errs, errors.New("listen address is empty"))
	}
	if s.ReadTimeout <= 0 {
		errs = append(errs, fmt.Errorf("readTimeout must be positive, got %v", s.ReadTimeout))
	}
	if s.MaxHeaderBytes < 64 {
		errs = append(errs, fmt.Errorf("maxHeaderBytes must be at least 64, got %d", s.MaxHeaderBytes))
	}
	if s.Panel.Width <= 0 || s.Panel.Height <= 0 {
		errs = append(errs, fmt.Errorf("panel size %dx%d is invalid", s.Panel.Width, s.Panel.Height))
	}
	if s.Panel.SourceHeight < s.Panel.Height {
		errs = append(errs, fmt.Errorf("panel sourceHeight %d is below visible height %d", s.Panel.SourceHeight, s.Panel.Height))
	}
	if need := s.MinBodyBytes(); s.MaxBodyBytes < need {
		errs = append(errs, fmt.Errorf("maxBodyBytes %d cannot hold a %dx%d bitmap (%d bytes)", s.MaxBodyBytes, s.Panel.Width, s.Panel.SourceHeight, need))
	}
	if s.Panel.QRBox <= 0 {
		errs = append(errs, fmt.Errorf("panel qrBox must be positive, got %d", s.Panel.QRBox))
	}
	if s.AP.SSIDPrefix == "" {
		errs = append(errs, errors.New("ap ssidPrefix is empty"))
	}
	if n := len(s.AP.Password); n < 8 || n > 63 {
		errs = append(errs, fmt.Errorf("ap password must be 8 to 63 characters, got %d", n))
	}
	if s.StorePath == "" {
		errs = append(errs, errors.New("storePath is empty"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// MinBodyBytes is the body size of an image_data post covering the full
// source canvas.
func (s Settings) MinBodyBytes() int {
	return len("image_data=") + 2*((s.Panel.Width+7)/8)*s.Panel.SourceHeight
}

// YAML renders s as a YAML document.
func (s Settings) YAML() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
