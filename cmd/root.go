package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/callummance/rolebot/bot"
	"github.com/callummance/rolebot/config"
	"github.com/callummance/rolebot/db"
	"github.com/callummance/rolebot/discord"
	"github.com/callummance/rolebot/health"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/prometheus/common/version"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const appName = "rolebot"
const shutdownTimeout = 5 * time.Second

const privilegedIntentsHelp = `
===== ERROR: PRIVILEGED INTENTS REQUIRED =====
You need to enable privileged intents in the Discord Developer Portal.

Please follow these steps:
1. Go to https://discord.com/developers/applications/
2. Select your bot application
3. Go to the 'Bot' tab
4. Scroll down to 'Privileged Gateway Intents'
5. Enable 'SERVER MEMBERS INTENT' and 'MESSAGE CONTENT INTENT'
6. Click 'Save Changes'
7. Restart the bot
`

const authenticationHelp = `
===== ERROR: INVALID DISCORD TOKEN =====
Discord rejected the bot token. Copy a fresh token from the 'Bot' tab of your application at
https://discord.com/developers/applications/ and set it as DISCORD_TOKEN.
`

var cfgFile string

var v = config.NewViperWithDefaults()

//rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   appName,
	Short: "Discord bot which hands out roles for reactions",
	Long: `rolebot lets server administrators post reaction role messages.

Members who react to one of these messages with a listed emoji are given the matching role,
and lose it again when they remove their reaction. A small health endpoint reports whether
the bot is connected.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.ReadConfigFile(v, cfgFile); err != nil {
			return err
		}
		cfg, err := config.Load(v)
		if err != nil {
			return err
		}
		return run(cfg)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.Print(appName))
	},
}

//Execute adds all child commands to the root command and sets flags appropriately
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		reportStartupError(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(loadDotEnv)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default is $HOME/.rolebot.yaml)")

	flags := rootCmd.Flags()
	flags.String(config.DiscordTokenKey, "", "Discord bot token")
	flags.Int(config.PortKey, 8080, "Health server listening port")
	flags.String(config.CommandPrefixKey, "!", "Prefix for bot commands")
	flags.String(config.StorageBackendKey, db.BackendFile, "Where role mappings are stored: file, leveldb or rethinkdb")
	flags.String(config.MappingsFileKey, "role_mappings.json", "Path of the role mappings file")
	flags.String(config.LevelDBPathKey, "~/.rolebot", "Directory of the LevelDB role mapping store")
	flags.String(config.RethinkDBAddressKey, "localhost:28015", "Address of the RethinkDB server")
	flags.String(config.RethinkDBDatabaseKey, "rolebot", "RethinkDB database name")
	flags.Duration(config.CallTimeoutKey, 10*time.Second, "Timeout for each Discord API call")
	flags.Duration(config.StatusIntervalKey, 10*time.Minute, "How often presence and health status are refreshed")
	flags.Float64(config.MemoryWarnMBKey, 450, "Memory usage in MB above which a warning is logged")
	flags.Int(config.MemberCacheSizeKey, 1024, "Number of guild members fetched from the API to keep cached")
	flags.String(config.SelfPingURLKey, "", "Public URL of this bot to ping periodically, disabled when empty")
	flags.Duration(config.SelfPingIntervalKey, 4*time.Minute, "How often the self ping URL is requested")
	flags.String(config.DevUserIDKey, "", "Discord user id which may always run admin commands")
	flags.Bool(config.DebugKey, false, "Enable debug logging")

	//Bind all flags to viper
	if err := v.BindPFlags(flags); err != nil {
		logrus.Fatalf("Error binding flags to viper: %v", err)
	}

	rootCmd.AddCommand(versionCmd)
}

func loadDotEnv() {
	err := godotenv.Load()
	if err != nil && !os.IsNotExist(err) {
		logrus.Warnf("Failed to load .env file due to error %v", err)
	}
}

func configureLogging(debug bool) {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
}

//reportStartupError prints errors which stop the bot from starting in a way an operator can act on
func reportStartupError(err error) {
	switch {
	case errors.Is(err, config.ErrMissingToken):
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	case errors.Is(err, discord.ErrPrivilegedIntents):
		fmt.Fprint(os.Stderr, privilegedIntentsHelp)
	case errors.Is(err, discord.ErrAuthenticationFailed):
		fmt.Fprint(os.Stderr, authenticationHelp)
	default:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
}

func run(cfg *config.Config) error {
	configureLogging(cfg.Debug)
	logrus.Infof("Starting %v %v", appName, version.Info())

	backend, err := db.OpenBackend(db.BackendOptions{
		Kind:              cfg.StorageBackend,
		MappingsFile:      cfg.MappingsFile,
		LevelDBPath:       cfg.LevelDBPath,
		RethinkDBAddress:  cfg.RethinkDBAddress,
		RethinkDBDatabase: cfg.RethinkDBDatabase,
	})
	if err != nil {
		return errors.Wrap(err, "failed to open role mapping storage")
	}
	store := db.NewMappingStore(backend)

	source, err := discord.New(cfg.DiscordToken, discord.Options{
		CallTimeout:     cfg.CallTimeout,
		MemberCacheSize: cfg.MemberCacheSize,
		Debug:           cfg.Debug,
	})
	if err != nil {
		_ = store.Close()
		return errors.Wrap(err, "failed to create discord client")
	}

	status := health.NewStatus()
	server := health.NewServer(status, cfg.Port, cfg.Debug)
	server.Start()
	var pinger *health.Pinger
	if cfg.SelfPingURL != "" {
		pinger = health.NewPinger(cfg.SelfPingURL, cfg.SelfPingInterval)
		pinger.Start()
	}

	roleBot := bot.New(source, store, status, bot.Options{
		CommandPrefix:  cfg.CommandPrefix,
		DevUserID:      cfg.DevUserID,
		StatusInterval: cfg.StatusInterval,
		MemoryWarnMB:   cfg.MemoryWarnMB,
	})

	if err := source.Open(roleBot); err != nil {
		shutdown(nil, roleBot, pinger, server)
		return err
	}

	logrus.Infof("Bot is now running. Press ^+C to exit.")
	addURL, err := source.BotAddURL()
	if err != nil {
		logrus.Errorf("Failed to generate bot add URL due to error %v", err)
	} else {
		logrus.Infof("Go to `%v` to add bot to your server", addURL)
	}

	closeChan := make(chan os.Signal, 1)
	signal.Notify(closeChan, syscall.SIGINT, syscall.SIGTERM)
	<-closeChan

	shutdown(source, roleBot, pinger, server)
	fmt.Println("Goodbye!")
	return nil
}

func shutdown(source *discord.EventSource, roleBot *bot.RoleBot, pinger *health.Pinger, server *health.Server) {
	if source != nil {
		source.Close()
	}
	roleBot.Close()
	if pinger != nil {
		pinger.Stop()
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logrus.Warnf("Failed to shut down health server cleanly: %v", err)
	}
}
