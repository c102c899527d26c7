package graphmap

import (
	"os"

	"github.com/hashicorp/go-multierror"
	validator "gopkg.in/go-playground/validator.v9"
	"gopkg.in/yaml.v3"

	"github.com/skuid/graphmap/mapping"
	"github.com/skuid/graphmap/sqlengine"
)

// EngineConfig is one database and the data maps it serves
type EngineConfig struct {
	sqlengine.ConnectionProps `yaml:",inline"`
	DataMaps                  []string `yaml:"dataMaps"`
}

/*
Config describes a runtime:

	mappings: [maps/artists.yaml, maps/paintings.json]
	defaultEngine: main
	engines:
	  main:
	    connString: postgres://localhost:5432/gallery?sslmode=disable
	    maxOpenConns: 10
	cacheSize: 5000
	commitGroups:
	  ARTIST: [artists]

With a single engine it is the default one.
*/
type Config struct {
	Mappings             []string                `yaml:"mappings" validate:"required,min=1,dive,required"`
	Engines              map[string]EngineConfig `yaml:"engines" validate:"required,min=1,dive"`
	DefaultEngine        string                  `yaml:"defaultEngine"`
	CacheSize            int                     `yaml:"cacheSize" validate:"min=0"`
	CommitGroups         map[string][]string     `yaml:"commitGroups"`
	ApplyDBLayerDefaults bool                    `yaml:"applyDbLayerDefaults"`
}

// LoadConfig reads a YAML config file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseConfig(data)
}

// ParseConfig reads a YAML config and validates it
func ParseConfig(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the structure of the config and that every engine it
// refers to is configured
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		fieldErrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return err
		}
		var errs *multierror.Error
		for _, fe := range fieldErrs {
			errs = multierror.Append(errs, mapping.NewConfigError("config", "%s failed on '%s'", fe.Namespace(), fe.Tag()))
		}
		return errs.ErrorOrNil()
	}

	var errs *multierror.Error
	if c.DefaultEngine != "" {
		if _, ok := c.Engines[c.DefaultEngine]; !ok {
			errs = multierror.Append(errs, mapping.NewConfigError("config", "default engine %s is not configured", c.DefaultEngine))
		}
	}
	served := make(map[string]string)
	for name, e := range c.Engines {
		for _, m := range e.DataMaps {
			if other, ok := served[m]; ok && other != name {
				errs = multierror.Append(errs, mapping.NewConfigError(m, "data map is served by engines %s and %s", other, name))
				continue
			}
			served[m] = name
		}
	}
	return errs.ErrorOrNil()
}
