package model

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"go.yaml.in/yaml/v4"
)

// document mirrors Config with pointer fields so that an absent key can be
// told apart from a zero value.
type document struct {
	TiDB *connectionDocument `toml:"tidb" yaml:"tidb" validate:"required"`
}

type connectionDocument struct {
	Host         *string              `toml:"host" yaml:"host" validate:"required"`
	Port         *int                 `toml:"port" yaml:"port"`
	Username     *string              `toml:"username" yaml:"username" validate:"required"`
	Password     *Secret              `toml:"password" yaml:"password" validate:"required"`
	DatabaseName *string              `toml:"databaseName" yaml:"databaseName" validate:"required"`
	SSLCA        *string              `toml:"sslCa" yaml:"sslCa"`
	PoolOptions  *poolOptionsDocument `toml:"pool_options" yaml:"pool_options" validate:"required"`
}

type poolOptionsDocument struct {
	MaxConnections *int   `toml:"maxConnections" yaml:"maxConnections" validate:"required"`
	MinConnections *int   `toml:"minConnections" yaml:"minConnections" validate:"required"`
	AcquireTimeout *int64 `toml:"acquireTimeout" yaml:"acquireTimeout" validate:"required"`
	IdleTimeout    *int64 `toml:"idleTimeout" yaml:"idleTimeout" validate:"required"`
	MaxLifetime    *int64 `toml:"maxLifetime" yaml:"maxLifetime" validate:"required"`
	IsLazy         *bool  `toml:"isLazy" yaml:"isLazy" validate:"required"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("toml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ParseTOML decodes a TOML document with a [tidb] table.
func ParseTOML(data []byte) (*Config, error) {
	var doc document
	if err := toml.Unmarshal(data, &doc); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return nil, &ConfigError{Err: errors.Wrapf(err, "decode toml at line %d column %d", row, col)}
		}
		return nil, &ConfigError{Err: errors.Wrap(err, "decode toml")}
	}
	return doc.config()
}

// ParseYAML decodes the same shape from YAML.
func ParseYAML(data []byte) (*Config, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &ConfigError{Err: errors.Wrap(err, "decode yaml")}
	}
	return doc.config()
}

// LoadFile reads path and decodes it according to its extension.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Err: errors.Wrap(err, "read config file")}
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		return ParseTOML(data)
	case ".yaml", ".yml":
		return ParseYAML(data)
	default:
		return nil, &ConfigError{Err: errors.Errorf("unsupported config format %q", ext)}
	}
}

// EncodeTOML renders c with the document's field names. The password is
// written as is; use Config.Redacted for output meant for people.
func EncodeTOML(c Config) ([]byte, error) {
	return toml.Marshal(c)
}

func EncodeYAML(c Config) ([]byte, error) {
	return yaml.Marshal(c)
}

func (d *document) config() (*Config, error) {
	if err := checkRequired(d); err != nil {
		return nil, err
	}

	t := d.TiDB
	port := DefaultPort
	if t.Port != nil {
		port = *t.Port
	}
	var ca string
	if t.SSLCA != nil {
		ca = *t.SSLCA
	}
	p := t.PoolOptions

	return &Config{
		TiDB: ConnectionConfig{
			Host:         *t.Host,
			Port:         port,
			Username:     *t.Username,
			Password:     *t.Password,
			DatabaseName: *t.DatabaseName,
			SSLCA:        ca,
			PoolOptions: PoolOptions{
				MaxConnections: *p.MaxConnections,
				MinConnections: *p.MinConnections,
				AcquireTimeout: *p.AcquireTimeout,
				IdleTimeout:    *p.IdleTimeout,
				MaxLifetime:    *p.MaxLifetime,
				IsLazy:         *p.IsLazy,
			},
		},
	}, nil
}

func checkRequired(d *document) error {
	err := validate.Struct(d)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &ConfigError{Err: err}
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		// drop the leading Go type name
		_, path, _ := strings.Cut(fe.Namespace(), ".")
		fields = append(fields, path)
	}
	return &ConfigError{
		Field: strings.Join(fields, ", "),
		Err:   errors.New("required field is missing"),
	}
}
