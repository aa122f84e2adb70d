// Package config loads the server configuration from flags, environment
// variables prefixed with BLOCKSEAL_ and an optional YAML file.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	OptionNameConfig      = "config"
	OptionNameDBDir       = "db-dir"
	OptionNamePort        = "port"
	OptionNameTLS         = "tls"
	OptionNameCertFile    = "cert-file"
	OptionNameKeyFile     = "key-file"
	OptionNameBlockSize   = "block-size"
	OptionNameHasher      = "hasher"
	OptionNameCipher      = "cipher"
	OptionNameCipherKey   = "cipher-key"
	OptionNameCipherNonce = "cipher-nonce"
	OptionNameMSB         = "msb"
	OptionNameCacheSize   = "cache-size"
	OptionNameWorkers     = "workers"
	OptionNameLogLevel    = "log-level"
	OptionNameLogOutput   = "log-output"
	OptionNameMetricsAddr = "metrics-addr"
	OptionNameMaxPixels   = "max-pixels"
)

const envPrefix = "blockseal"

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	DBDir       string
	Port        int
	TLS         bool
	CertFile    string
	KeyFile     string
	BlockSize   int
	Hasher      string
	Cipher      string
	CipherKey   []byte
	CipherNonce []byte
	MSB         bool
	CacheSize   int
	Workers     int
	LogLevel    string
	LogOutputs  []string
	// MetricsAddr is the listen address of the metrics endpoint, disabled
	// when empty
	MetricsAddr string
	// MaxPixels bounds the raster of an incoming image
	MaxPixels int

	// BaseDir anchors the relative paths of the configuration
	BaseDir string
}

// SetFlags defines every option on flags with its default value
func SetFlags(flags *pflag.FlagSet) {
	flags.String(OptionNameConfig, "", "YAML config file")
	flags.String(OptionNameDBDir, "blockseal.db", "the ledger and blob DB directory")
	flags.Int(OptionNamePort, 10000, "the server port")
	flags.Bool(OptionNameTLS, false, "connection uses TLS if true, else plain TCP")
	flags.String(OptionNameCertFile, "x509/server_cert.pem", "the TLS cert file")
	flags.String(OptionNameKeyFile, "x509/server_key.pem", "the TLS key file")
	flags.Int(OptionNameBlockSize, 128, "block edge length in pixels")
	flags.String(OptionNameHasher, "sha256", "leaf hash function: sha256, keccak256 or blake3")
	flags.String(OptionNameCipher, "aes-ctr", "block cipher: aes-ctr or chacha20")
	flags.String(OptionNameCipherKey, "", "hex encoded cipher key")
	flags.String(OptionNameCipherNonce, "", "hex encoded cipher nonce")
	flags.Bool(OptionNameMSB, true, "seal the most significant bit plane instead of the full pixels")
	flags.Int(OptionNameCacheSize, 1024, "number of blobs kept in the read cache, 0 disables it")
	flags.Int(OptionNameWorkers, 0, "blocks processed at once, GOMAXPROCS if 0")
	flags.String(OptionNameLogLevel, "info", "log level: debug, info, warn or error")
	flags.StringSlice(OptionNameLogOutput, []string{"stdout"}, "log output paths")
	flags.String(OptionNameMetricsAddr, ":9090", "prometheus metrics listen address, empty to disable")
	flags.Int(OptionNameMaxPixels, 1<<26, "largest width times height accepted for an image")
}

// New returns a viper instance bound to flags and the environment, with the
// config file named by the config flag read in
func New(flags *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	if err := v.BindPFlags(flags); err != nil {
		return nil, err
	}

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	if file := v.GetString(OptionNameConfig); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	return v, nil
}

// Load reads and validates the configuration out of v
func Load(v *viper.Viper) (Config, error) {
	c := Config{
		DBDir:       v.GetString(OptionNameDBDir),
		Port:        v.GetInt(OptionNamePort),
		TLS:         v.GetBool(OptionNameTLS),
		CertFile:    v.GetString(OptionNameCertFile),
		KeyFile:     v.GetString(OptionNameKeyFile),
		BlockSize:   v.GetInt(OptionNameBlockSize),
		Hasher:      v.GetString(OptionNameHasher),
		Cipher:      v.GetString(OptionNameCipher),
		MSB:         v.GetBool(OptionNameMSB),
		CacheSize:   v.GetInt(OptionNameCacheSize),
		Workers:     v.GetInt(OptionNameWorkers),
		LogLevel:    v.GetString(OptionNameLogLevel),
		LogOutputs:  v.GetStringSlice(OptionNameLogOutput),
		MetricsAddr: v.GetString(OptionNameMetricsAddr),
		MaxPixels:   v.GetInt(OptionNameMaxPixels),
	}

	if file := v.ConfigFileUsed(); file != "" {
		c.BaseDir = filepath.Dir(file)
	}

	var err error
	if c.CipherKey, err = decodeHex(OptionNameCipherKey, v.GetString(OptionNameCipherKey)); err != nil {
		return Config{}, err
	}
	if c.CipherNonce, err = decodeHex(OptionNameCipherNonce, v.GetString(OptionNameCipherNonce)); err != nil {
		return Config{}, err
	}

	if err := c.Validate(); err != nil {
		return Config{}, err
	}

	return c, nil
}

// Validate checks the values no later stage would reject with a clear error
func (c Config) Validate() error {
	switch {
	case c.DBDir == "":
		return fmt.Errorf("%w: %s is empty", ErrInvalidConfig, OptionNameDBDir)
	case c.Port <= 0 || c.Port > 65535:
		return fmt.Errorf("%w: %s %d", ErrInvalidConfig, OptionNamePort, c.Port)
	case c.BlockSize <= 0:
		return fmt.Errorf("%w: %s %d", ErrInvalidConfig, OptionNameBlockSize, c.BlockSize)
	case c.CacheSize < 0:
		return fmt.Errorf("%w: %s %d", ErrInvalidConfig, OptionNameCacheSize, c.CacheSize)
	case c.MaxPixels <= 0:
		return fmt.Errorf("%w: %s %d", ErrInvalidConfig, OptionNameMaxPixels, c.MaxPixels)
	case c.Workers < 0:
		return fmt.Errorf("%w: %s %d", ErrInvalidConfig, OptionNameWorkers, c.Workers)
	case len(c.CipherKey) == 0:
		return fmt.Errorf("%w: %s is required", ErrInvalidConfig, OptionNameCipherKey)
	case len(c.CipherNonce) == 0:
		return fmt.Errorf("%w: %s is required", ErrInvalidConfig, OptionNameCipherNonce)
	case c.TLS && (c.CertFile == "" || c.KeyFile == ""):
		return fmt.Errorf("%w: TLS needs %s and %s", ErrInvalidConfig, OptionNameCertFile, OptionNameKeyFile)
	}

	return nil
}

// Path returns the absolute path of rel. Relative paths are anchored at the
// directory of the config file, or the working directory without one.
func (c Config) Path(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}

	return filepath.Join(c.BaseDir, rel)
}

func decodeHex(name, value string) ([]byte, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(value, "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %s", ErrInvalidConfig, name, err.Error())
	}

	return b, nil
}
