// Package config defines configuration keys and their defaults.
package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Configuration keys.
const (
	KeyPrompt          = "prompt"
	KeyHistoryFile     = "history_file"
	KeyQueryFormat     = "query.format"
	KeyLogLevel        = "log.level"
	KeyLogJSON         = "log.json"
	KeyOTelEndpoint    = "otel.endpoint"
	KeyCipherAlgorithm = "cipher.algorithm"
	KeySTSRegion       = "sts.region"
	KeySTSDuration     = "sts.duration_seconds"
	KeyVerbose         = "verbose"
)

// Defaults.
const (
	DefaultPrompt          = "vitool:>"
	DefaultQueryFormat     = "table"
	DefaultLogLevel        = "warn"
	DefaultCipherAlgorithm = "PBEWithMD5AndDES"
	DefaultSTSRegion       = "us-east-1"
	DefaultSTSDuration     = 1000
	EnvPrefix              = "VITOOL"
	FileName               = ".vitool.yaml"
)

// Config is the resolved process configuration.
type Config struct {
	Prompt          string
	HistoryFile     string
	QueryFormat     string
	LogLevel        string
	LogJSON         bool
	OTelEndpoint    string
	CipherAlgorithm string
	STSRegion       string
	STSDuration     int32
	Verbose         bool
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyPrompt, DefaultPrompt)
	v.SetDefault(KeyHistoryFile, defaultHistoryFile())
	v.SetDefault(KeyQueryFormat, DefaultQueryFormat)
	v.SetDefault(KeyLogLevel, DefaultLogLevel)
	v.SetDefault(KeyLogJSON, false)
	v.SetDefault(KeyOTelEndpoint, "")
	v.SetDefault(KeyCipherAlgorithm, DefaultCipherAlgorithm)
	v.SetDefault(KeySTSRegion, DefaultSTSRegion)
	v.SetDefault(KeySTSDuration, DefaultSTSDuration)
	v.SetDefault(KeyVerbose, false)
}

// Prepare configures file lookup and environment binding. An empty cfgFile
// means ~/.vitool.yaml. Keys map to VITOOL_ variables with dots replaced by
// underscores, e.g. VITOOL_QUERY_FORMAT.
func Prepare(v *viper.Viper, cfgFile string) {
	SetDefaults(v)
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else if home, err := os.UserHomeDir(); err == nil {
		v.SetConfigFile(filepath.Join(home, FileName))
		v.SetConfigType("yaml")
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load reads the config file if there is one. A missing file is not an
// error, an unreadable or malformed one is.
func Load(v *viper.Viper) (Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, err
		}
	}
	return FromViper(v), nil
}

// FromViper snapshots v.
func FromViper(v *viper.Viper) Config {
	return Config{
		Prompt:          v.GetString(KeyPrompt),
		HistoryFile:     v.GetString(KeyHistoryFile),
		QueryFormat:     v.GetString(KeyQueryFormat),
		LogLevel:        v.GetString(KeyLogLevel),
		LogJSON:         v.GetBool(KeyLogJSON),
		OTelEndpoint:    v.GetString(KeyOTelEndpoint),
		CipherAlgorithm: v.GetString(KeyCipherAlgorithm),
		STSRegion:       v.GetString(KeySTSRegion),
		STSDuration:     v.GetInt32(KeySTSDuration),
		Verbose:         v.GetBool(KeyVerbose),
	}
}

func defaultHistoryFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".vitool_history")
}
