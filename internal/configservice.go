package internal

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"

	"github.com/derWhity/stagehand/internal/ctxhelper"
	"github.com/derWhity/stagehand/internal/log"
	"github.com/derWhity/stagehand/internal/models"
)

const (
	// EnvPrefix is the prefix of all environment variables overriding the configuration file
	EnvPrefix = "STAGEHAND_"
	// Separates the nesting levels inside the names of environment variables, e.g. STAGEHAND_DATABASE__HOST
	envNestingSeparator = "__"
)

// ConfigService loads and stores the application's configuration
type ConfigService interface {
	// Load loads the application config from its default file location
	Load(ctx context.Context) error
	// LoadFromFile loads the configuration from the given JSON file. Environment variables take precedence over the
	// values in the file.
	LoadFromFile(ctx context.Context, filename string) error
	// Write writes the current application configuration to the default file name
	Write(ctx context.Context) error
	// WriteToFile writes the current application configuration to a JSON file
	WriteToFile(ctx context.Context, filename string) error
	// GetConfig retuns the current application configuration
	GetConfig(ctx context.Context) models.AppConfig
}

// -- ConfigService implementation -------------------------------------------------------------------------------------

type configService struct {
	configFilename string
	config         *models.AppConfig
	logger         *logrus.Entry
}

// NewConfigService creates a new configuration service instance with the given default file name
func NewConfigService(configFilename string, logger *logrus.Entry) ConfigService {
	return &configService{
		configFilename: configFilename,
		logger:         logger,
	}
}

// Load loads the application config from its default file location
func (s *configService) Load(ctx context.Context) error {
	return s.LoadFromFile(ctx, s.configFilename)
}

// LoadFromFile loads the configuration from the given JSON file. A missing file leaves the defaults in place.
func (s *configService) LoadFromFile(ctx context.Context, filename string) error {
	logger := ctxhelper.Logger(ctx, s.logger).WithField(log.FldFile, filename)
	logger.Info("Loading configuration file")
	conf, err := models.GetDefaultConfig()
	if err != nil {
		return errors.Wrap(err, "LoadFromFile: Failed to create default config")
	}
	f, err := os.Open(filename)
	switch {
	case os.IsNotExist(err):
		logger.Warn("Configuration file does not exist - using defaults")
	case err != nil:
		return errors.Wrap(err, "LoadFromFile: cannot load configuration file")
	default:
		defer f.Close()
		if err = json.NewDecoder(f).Decode(conf); err != nil {
			return errors.Wrap(err, "LoadFromFile: Failed to decode configuration file")
		}
	}
	if err := applyEnv(conf); err != nil {
		return errors.Wrap(err, "LoadFromFile: Failed to apply environment variables")
	}
	if err := validator.New().Struct(conf); err != nil {
		return errors.Wrap(err, "LoadFromFile: Invalid configuration")
	}
	s.config = conf
	return nil
}

// applyEnv overrides the configuration values that have been set through STAGEHAND_ environment variables
func applyEnv(conf *models.AppConfig) error {
	k := koanf.New(".")
	provider := env.Provider(EnvPrefix, ".", func(key string) string {
		key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
		return strings.ReplaceAll(key, envNestingSeparator, ".")
	})
	if err := k.Load(provider, nil); err != nil {
		return err
	}
	if len(k.Keys()) == 0 {
		return nil
	}
	return k.UnmarshalWithConf("", conf, koanf.UnmarshalConf{Tag: "json"})
}

// Write writes the current application configuration to the default file name
func (s *configService) Write(ctx context.Context) error {
	return s.WriteToFile(ctx, s.configFilename)
}

// WriteToFile writes the current application configuration to a JSON file
func (s *configService) WriteToFile(ctx context.Context, filename string) error {
	logger := ctxhelper.Logger(ctx, s.logger)
	logger.WithField(log.FldFile, filename).Info("Writing configuration file")
	f, err := os.Create(filename)
	if err != nil {
		return errors.Wrapf(err, "WriteToFile: Cannot open configuration file '%s' to write to", filename)
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "    ")
	conf := s.GetConfig(ctx)
	if err := enc.Encode(&conf); err != nil {
		return errors.Wrap(err, "WriteToFile: Failed to serialize configuration data")
	}
	return nil
}

// GetConfig retuns the current application configuration
func (s *configService) GetConfig(ctx context.Context) models.AppConfig {
	var ret models.AppConfig
	if s.config != nil {
		ret = *s.config
	} else {
		if tmp, err := models.GetDefaultConfig(); err == nil {
			ret = *tmp
		}
	}
	return ret
}
