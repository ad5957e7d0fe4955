// Package remoteconfig reads the device's remotely managed settings.
package remoteconfig

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/i474232898/weather-display/internal/tz"
)

// ErrInvalid is returned for records that fail validation.
var ErrInvalid = errors.New("invalid remote config")

var validate = validator.New()

// Config is the per-device record kept in the remote store.
type Config struct {
	Lat     float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lon     float64 `json:"lon" validate:"gte=-180,lte=180"`
	PosixTZ string  `json:"posix_tz" validate:"required"`
}

// Parse decodes and validates a stored record.
func Parse(b []byte) (Config, error) {
	var c Config
	if err := json.Unmarshal(b, &c); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := validate.Struct(c); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if _, err := c.Location(); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return c, nil
}

// Location resolves the configured timezone.
func (c Config) Location() (*time.Location, error) {
	return tz.Load(c.PosixTZ)
}
