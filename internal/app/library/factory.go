package library

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/swingdeck/internal/infra/config"
	"github.com/osa030/swingdeck/internal/infra/spotify"
	"github.com/osa030/swingdeck/internal/infra/swing"
)

// NewClientFromConfig creates the remote catalog client selected by the backend configuration.
func NewClientFromConfig(ctx context.Context, cfg config.BackendConfig) (Client, error) {
	zlog.Debug().Msgf("creating catalog backend: type=%s", cfg.Type)

	switch cfg.Type {
	case "swing":
		var sc swing.Config
		if err := decodeSettings(cfg.Settings, &sc); err != nil {
			return nil, errors.Wrap(err, "invalid swing settings")
		}
		client, err := swing.New(sc)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create swing client")
		}
		zlog.Info().Msgf("using swing catalog: base_url=%s", sc.BaseURL)
		return client, nil

	case "spotify":
		var sc spotify.Config
		if err := decodeSettings(cfg.Settings, &sc); err != nil {
			return nil, errors.Wrap(err, "invalid spotify settings")
		}
		client, err := spotify.New(ctx, sc)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create spotify client")
		}
		zlog.Info().Msgf("using spotify catalog: market=%s", sc.Market)
		return client, nil

	default:
		return nil, errors.Newf("unsupported catalog backend: %s", cfg.Type)
	}
}

// decodeSettings decodes a backend settings map into out, then applies
// defaults and validation tags.
func decodeSettings(settings map[string]any, out any) error {
	if err := mapstructure.Decode(settings, out); err != nil {
		return errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(out); err != nil {
		return errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(out); err != nil {
		return errors.Wrap(err, "validation failed")
	}
	return nil
}
