package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/quantkb/finconcept/internal/logger"
	"github.com/quantkb/finconcept/types"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	configName = ".finconcept"
	envPrefix  = "FINCONCEPT"
)

// GlobalAppConfig holds the global application configuration instance.
var GlobalAppConfig types.AppConfig

// validate is a single instance of Validate, it caches struct info
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// validateAppConfig performs validation on the AppConfig struct.
func validateAppConfig(config *types.AppConfig) error {
	errs := validate.Struct(config)
	if errs != nil {
		return errs
	}
	return nil
}

// InitConfig reads in config file and ENV variables if set.
func InitConfig() {
	// Load .env file first if present
	if err := godotenv.Load(); err != nil {
		// It's okay if .env file doesn't exist.
	}

	// Environment variable handling must be set up BEFORE reading the config
	// file, so that env vars can influence config loading if needed.
	viper.SetEnvPrefix(envPrefix)                          // e.g., FINCONCEPT_VERBOSE
	viper.AutomaticEnv()                                   // Read in environment variables that match
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // Replace dots with underscores in env var names

	cfgFileFlag := viper.GetString("config") // Value from --config flag

	// Determine the project config directory before the full unmarshal, so
	// the config file itself can be located. The value from the loaded file
	// wins afterwards.
	potentialProjectConfigDir := viper.GetString("project.rootDir")
	if potentialProjectConfigDir == "" {
		potentialProjectConfigDir = ".finconcept"
	}

	if cfgFileFlag != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFileFlag)
	} else {
		// Check if potentialProjectConfigDir (e.g., ./.finconcept) exists
		if _, err := os.Stat(potentialProjectConfigDir); !os.IsNotExist(err) {
			// Project-specific config directory exists. Prioritize it.
			viper.AddConfigPath(potentialProjectConfigDir) // e.g., look in ./.finconcept/
			viper.SetConfigName(configName)                // configName is ".finconcept" -> ./.finconcept/.finconcept.yaml
		} else {
			// Project-specific config dir not found, fallback to home and current directory
			home, err := os.UserHomeDir()
			cobra.CheckErr(err)
			viper.AddConfigPath(home)       // $HOME/.finconcept.yaml
			viper.AddConfigPath(".")        // ./.finconcept.yaml (legacy project root config)
			viper.SetConfigName(configName) // Still looking for a file named ".finconcept"
		}
	}

	// Attempt to read the configuration file.
	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("verbose") {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	} else {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			if cfgFileFlag != "" {
				// A specific config file was provided by flag but not found.
				fmt.Fprintln(os.Stderr, "Error: Specified config file not found:", cfgFileFlag)
			} else if viper.GetBool("verbose") {
				// Config file not found by search paths, which is fine.
				fmt.Fprintln(os.Stderr, "No config file found. Using defaults and environment variables.")
			}
		} else {
			// Config file was found but another error was produced (e.g., parsing error).
			fmt.Fprintln(os.Stderr, "Error reading config file:", viper.ConfigFileUsed(), "-", err)
		}
	}

	// Set default values
	viper.SetDefault("project.rootDir", ".finconcept")

	viper.SetDefault("cache.file", "concepts.db")
	viper.SetDefault("cache.ttlHours", 720.0)
	viper.SetDefault("cache.maxEntries", 5000)

	// Defaults for knowledge sources
	viper.SetDefault("sources.primary", "dbpedia")
	viper.SetDefault("sources.enabled", []string{"dbpedia", "wikidata"})
	viper.SetDefault("sources.dbpedia.baseUrl", "https://lookup.dbpedia.org")
	viper.SetDefault("sources.dbpedia.dataUrl", "https://dbpedia.org/sparql")
	viper.SetDefault("sources.dbpedia.requestTimeoutSeconds", 15)
	viper.SetDefault("sources.dbpedia.maxRetries", 2)
	viper.SetDefault("sources.dbpedia.minIntervalMs", 250)
	viper.SetDefault("sources.dbpedia.maxResults", 10)
	viper.SetDefault("sources.wikidata.baseUrl", "https://www.wikidata.org/w/api.php")
	viper.SetDefault("sources.wikidata.requestTimeoutSeconds", 15)
	viper.SetDefault("sources.wikidata.maxRetries", 2)
	viper.SetDefault("sources.wikidata.minIntervalMs", 250)
	viper.SetDefault("sources.wikidata.maxResults", 10)

	viper.SetDefault("scoring.tablesFile", "")
	viper.SetDefault("scoring.watch", false)

	viper.SetDefault("telemetry.enabled", false)

	// After all sources are configured, unmarshal into GlobalAppConfig
	if err := viper.Unmarshal(&GlobalAppConfig); err != nil {
		fmt.Fprintf(os.Stderr, "Error unmarshaling config: %s\n", err)
		os.Exit(1) // Exit if unmarshaling fails
	}

	// Ensure critical fields are set, falling back to Viper's defaults if
	// empty after unmarshal. This handles config files that exist but are
	// missing these specific nested keys.
	if GlobalAppConfig.Project.RootDir == "" {
		GlobalAppConfig.Project.RootDir = viper.GetString("project.rootDir")
	}
	if GlobalAppConfig.Cache.File == "" {
		GlobalAppConfig.Cache.File = viper.GetString("cache.file")
	}
	if GlobalAppConfig.Cache.MaxEntries == 0 {
		GlobalAppConfig.Cache.MaxEntries = viper.GetInt("cache.maxEntries")
	}
	if GlobalAppConfig.Sources.Primary == "" {
		GlobalAppConfig.Sources.Primary = viper.GetString("sources.primary")
	}
	if len(GlobalAppConfig.Sources.Enabled) == 0 {
		GlobalAppConfig.Sources.Enabled = viper.GetStringSlice("sources.enabled")
	}

	// Validate the populated configuration
	if err := validateAppConfig(&GlobalAppConfig); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration validation error: %s\n", err)
		os.Exit(1) // Exit if validation fails
	}

	// Crash reports land under the project config directory.
	logger.SetBasePath(GlobalAppConfig.Project.RootDir)

	// Route structured logs from the internal packages to stderr, at debug
	// level when --verbose is set.
	level := slog.LevelWarn
	if viper.GetBool("verbose") {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// GetConfig returns a pointer to the global types.AppConfig instance.
func GetConfig() *types.AppConfig {
	return &GlobalAppConfig
}
