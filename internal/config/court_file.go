package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// CourtFile is the on-disk description of a court. Unset fields keep their defaults.
type CourtFile struct {
	Name          string `toml:"name" yaml:"name"`
	Timezone      string `toml:"timezone" yaml:"timezone"`
	OpenHour      *int   `toml:"open_hour" yaml:"open_hour"`
	LastSlotHour  *int   `toml:"last_slot_hour" yaml:"last_slot_hour"`
	BookingBuffer string `toml:"booking_buffer" yaml:"booking_buffer"`
	HorizonDays   *int   `toml:"horizon_days" yaml:"horizon_days"`
	PendingTTL    string `toml:"pending_ttl" yaml:"pending_ttl"`
}

// LoadCourtFile decodes a .toml, .yaml or .yml court file.
func LoadCourtFile(path string) (CourtFile, error) {
	var file CourtFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.DecodeFile(path, &file); err != nil {
			return CourtFile{}, fmt.Errorf("failed to load court file: %w", err)
		}
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return CourtFile{}, fmt.Errorf("failed to load court file: %w", err)
		}
		if err := yaml.Unmarshal(data, &file); err != nil {
			return CourtFile{}, fmt.Errorf("failed to parse court file: %w", err)
		}
	default:
		return CourtFile{}, fmt.Errorf("unsupported court file extension %q", filepath.Ext(path))
	}
	return file, nil
}

func (f CourtFile) apply(court *Court) error {
	if f.Name != "" {
		court.Name = f.Name
	}
	if f.Timezone != "" {
		court.Timezone = f.Timezone
	}
	if f.OpenHour != nil {
		court.OpenHour = *f.OpenHour
	}
	if f.LastSlotHour != nil {
		court.LastSlotHour = *f.LastSlotHour
	}
	if f.HorizonDays != nil {
		court.HorizonDays = *f.HorizonDays
	}
	if f.BookingBuffer != "" {
		d, err := time.ParseDuration(f.BookingBuffer)
		if err != nil {
			return fmt.Errorf("booking_buffer: %w", err)
		}
		court.BookingBuffer = d
	}
	if f.PendingTTL != "" {
		d, err := time.ParseDuration(f.PendingTTL)
		if err != nil {
			return fmt.Errorf("pending_ttl: %w", err)
		}
		court.PendingTTL = d
	}
	return nil
}
