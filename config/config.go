package config

import (
	"strings"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

//Configuration keys. Each can also be set through the environment variable of the same name in upper case with
//underscores, e.g. DISCORD_TOKEN.
const (
	DiscordTokenKey      = "discord-token"
	PortKey              = "port"
	CommandPrefixKey     = "command-prefix"
	StorageBackendKey    = "storage-backend"
	MappingsFileKey      = "mappings-file"
	LevelDBPathKey       = "leveldb-path"
	RethinkDBAddressKey  = "rethinkdb-address"
	RethinkDBDatabaseKey = "rethinkdb-database"
	CallTimeoutKey       = "call-timeout"
	StatusIntervalKey    = "status-interval"
	MemoryWarnMBKey      = "memory-warn-mb"
	MemberCacheSizeKey   = "member-cache-size"
	SelfPingURLKey       = "self-ping-url"
	SelfPingIntervalKey  = "self-ping-interval"
	DevUserIDKey         = "dev-user-id"
	DebugKey             = "debug"
)

const configName = ".rolebot"

//ErrMissingToken is returned when no Discord bot token has been configured
var ErrMissingToken = errors.New("no Discord token found. Make sure to set DISCORD_TOKEN in your .env file")

//Config holds everything needed to run the bot
type Config struct {
	DiscordToken      string
	Port              int
	CommandPrefix     string
	StorageBackend    string
	MappingsFile      string
	LevelDBPath       string
	RethinkDBAddress  string
	RethinkDBDatabase string
	CallTimeout       time.Duration
	StatusInterval    time.Duration
	MemoryWarnMB      float64
	MemberCacheSize   int
	SelfPingURL       string
	SelfPingInterval  time.Duration
	DevUserID         string
	Debug             bool
}

//NewViperWithDefaults returns a viper instance with every default set and environment variables bound
func NewViperWithDefaults() *viper.Viper {
	v := viper.New()
	v.SetDefault(PortKey, 8080)
	v.SetDefault(CommandPrefixKey, "!")
	v.SetDefault(StorageBackendKey, "file")
	v.SetDefault(MappingsFileKey, "role_mappings.json")
	v.SetDefault(LevelDBPathKey, "~/.rolebot")
	v.SetDefault(RethinkDBAddressKey, "localhost:28015")
	v.SetDefault(RethinkDBDatabaseKey, "rolebot")
	v.SetDefault(CallTimeoutKey, 10*time.Second)
	v.SetDefault(StatusIntervalKey, 10*time.Minute)
	v.SetDefault(MemoryWarnMBKey, 450)
	v.SetDefault(MemberCacheSizeKey, 1024)
	v.SetDefault(SelfPingURLKey, "")
	v.SetDefault(SelfPingIntervalKey, 4*time.Minute)
	v.SetDefault(DevUserIDKey, "")
	v.SetDefault(DebugKey, false)

	//Replace hyphens with underscores in environment variables
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

//ReadConfigFile reads the given config file, or looks for .rolebot.yaml in the home and working directories
//when path is empty. A missing config file is not an error since everything can be set from the environment.
func ReadConfigFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return errors.Wrapf(err, "failed to read config file [%s]", path)
		}
		logrus.Infof("Using config file: %v", v.ConfigFileUsed())
		return nil
	}

	home, err := homedir.Dir()
	if err == nil {
		v.AddConfigPath(home)
	}
	v.AddConfigPath(".")
	v.SetConfigName(configName)
	err = v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	switch {
	case err == nil:
		logrus.Infof("Using config file: %v", v.ConfigFileUsed())
	case errors.As(err, &notFound):
		logrus.Debug("No config file found, using environment only")
	default:
		return errors.Wrap(err, "failed to read config file")
	}
	return nil
}

//Load builds a Config from viper and validates it
func Load(v *viper.Viper) (*Config, error) {
	cfg := Config{
		DiscordToken:      strings.TrimSpace(v.GetString(DiscordTokenKey)),
		Port:              v.GetInt(PortKey),
		CommandPrefix:     v.GetString(CommandPrefixKey),
		StorageBackend:    strings.ToLower(v.GetString(StorageBackendKey)),
		MappingsFile:      v.GetString(MappingsFileKey),
		LevelDBPath:       v.GetString(LevelDBPathKey),
		RethinkDBAddress:  v.GetString(RethinkDBAddressKey),
		RethinkDBDatabase: v.GetString(RethinkDBDatabaseKey),
		CallTimeout:       v.GetDuration(CallTimeoutKey),
		StatusInterval:    v.GetDuration(StatusIntervalKey),
		MemoryWarnMB:      v.GetFloat64(MemoryWarnMBKey),
		MemberCacheSize:   v.GetInt(MemberCacheSizeKey),
		SelfPingURL:       strings.TrimSpace(v.GetString(SelfPingURLKey)),
		SelfPingInterval:  v.GetDuration(SelfPingIntervalKey),
		DevUserID:         v.GetString(DevUserIDKey),
		Debug:             v.GetBool(DebugKey),
	}

	if cfg.DiscordToken == "" {
		return nil, ErrMissingToken
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, errors.Errorf("%v must be between 1 and 65535, got %d", PortKey, cfg.Port)
	}
	if cfg.CommandPrefix == "" {
		return nil, errors.Errorf("%v must not be empty", CommandPrefixKey)
	}
	for key, d := range map[string]time.Duration{
		CallTimeoutKey:      cfg.CallTimeout,
		StatusIntervalKey:   cfg.StatusInterval,
		SelfPingIntervalKey: cfg.SelfPingInterval,
	} {
		if d <= 0 {
			return nil, errors.Errorf("%v must be a positive duration, got %v", key, d)
		}
	}
	if cfg.MemberCacheSize < 0 {
		return nil, errors.Errorf("%v must not be negative", MemberCacheSizeKey)
	}
	return &cfg, nil
}
