package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Label is the content shown on the label, edited from the configuration
// page.
type Label struct {
	Phone   string `yaml:"phone"`
	Message string `yaml:"message"`
}

// DefaultLabel is used until a label has been saved.
func DefaultLabel() Label {
	return Label{
		Phone:   "010-1234-5678",
		Message: "잠시 외출 중입니다.\n택배는 문 앞에 부탁해요!",
	}
}

// Store persists a Label as a YAML file.
type Store struct {
	path string
	log  zerolog.Logger
}

// NewStore returns a Store backed by path.
func NewStore(path string, log zerolog.Logger) *Store {
	return &Store{path: path, log: log}
}

// Path returns the backing file.
func (s *Store) Path() string { return s.path }

// storedLabel distinguishes a key saved as "" from a key that is absent.
type storedLabel struct {
	Phone   *string `yaml:"phone"`
	Message *string `yaml:"message"`
}

// Load returns the saved label. A missing or unreadable file yields
// DefaultLabel. Keys absent from a saved file fall back to their defaults;
// keys saved empty stay empty.
func (s *Store) Load() Label {
	def := DefaultLabel()
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.log.Warn().Err(err).Str("path", s.path).Msg("label store unreadable, using defaults")
		}
		return def
	}

	var stored storedLabel
	if err := yaml.Unmarshal(data, &stored); err != nil {
		s.log.Warn().Err(err).Str("path", s.path).Msg("label store corrupt, using defaults")
		return def
	}
	l := def
	if stored.Phone != nil {
		l.Phone = *stored.Phone
	}
	if stored.Message != nil {
		l.Message = *stored.Message
	}
	return l
}

// Save atomically replaces the stored label.
func (s *Store) Save(l Label) error {
	data, err := yaml.Marshal(l)
	if err != nil {
		return fmt.Errorf("encode label: %w", err)
	}

	pending, err := renameio.NewPendingFile(s.path)
	if err != nil {
		return fmt.Errorf("create pending label file: %w", err)
	}
	defer func() {
		if err := pending.Cleanup(); err != nil {
			s.log.Debug().Err(err).Msg("cleanup pending label file")
		}
	}()

	if _, err := pending.Write(data); err != nil {
		return fmt.Errorf("write label: %w", err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("replace label file: %w", err)
	}
	s.log.Info().Str("path", s.path).Msg("label saved")
	return nil
}
