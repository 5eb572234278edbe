package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/atelier-ml/atelier/internal/templates"
	"github.com/atelier-ml/atelier/internal/utils/pathutil"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	PrecisionFloat16 = "float16"
	PrecisionFloat32 = "float32"
)

const atelierPrefix = "ATELIER"

type Config struct {
	AtelierHome       string `mapstructure:"atelier_home"`
	Environment       string `mapstructure:"environment"`
	ModelsDir         string `mapstructure:"models_dir"`
	TempDir           string `mapstructure:"temp_dir"`
	DBFile            string `mapstructure:"db_file"`
	CatalogFile       string `mapstructure:"catalog_file"`
	ConfigFile        string `mapstructure:"config_file"`
	Precision         string `mapstructure:"precision"`
	ScanDirectory     string `mapstructure:"scan_directory"`
	AutoscanOnStartup bool   `mapstructure:"autoscan_on_startup"`
	HFToken           string `mapstructure:"hf_token"`
}

var config *Config

// LoadEnvAndConfigFiles resolves the atelier home directory, materializes
// the default .env and config.yaml on first run, and loads both into viper.
func LoadEnvAndConfigFiles() error {
	atelierHome, err := getAtelierHome()
	if err != nil {
		return err
	}

	modelsDir, err := getModelsDir(atelierHome)
	if err != nil {
		return err
	}

	tempDir, err := getTempDir(atelierHome)
	if err != nil {
		return err
	}

	if err := createAtelierHomeDirs(atelierHome); err != nil {
		return err
	}

	viper.Set("atelier_home", atelierHome)
	viper.Set("models_dir", modelsDir)
	viper.Set("temp_dir", tempDir)
	viper.SetDefault("db_file", filepath.Join(atelierHome, "atelier.db"))
	viper.SetDefault("catalog_file", filepath.Join(atelierHome, "catalog.yaml"))
	viper.SetDefault("precision", DefaultPrecision)
	viper.SetDefault("environment", "dev")

	envFile := viper.GetString("env_file")
	if envFile == "" {
		envFile = filepath.Join(atelierHome, ".env")
	}

	configFile := viper.GetString("config_file")
	if configFile == "" {
		configFile = filepath.Join(atelierHome, "config.yaml")
		viper.Set("config_file", configFile)
	}

	if _, err := os.Stat(envFile); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat .env file: %w", err)
		}

		if err := templates.WriteEnv(envFile); err != nil {
			return fmt.Errorf("failed to create .env file: %w", err)
		}
	}

	if _, err := os.Stat(configFile); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config.yaml file: %w", err)
		}

		if err := templates.WriteConfig(configFile); err != nil {
			return fmt.Errorf("failed to create config.yaml file: %w", err)
		}
	}

	if err := godotenv.Load(envFile); err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix(atelierPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(`.`, `_`, `-`, `_`))
	viper.SetConfigFile(configFile)

	if err := LoadConfig(false); err != nil {
		if errors.As(err, &viper.ConfigFileNotFoundError{}) {
			fmt.Println("No config file found. Using default config.")
		} else {
			return err
		}
	}

	return nil
}

func LoadConfig(reload bool) error {
	if config != nil && !reload {
		return fmt.Errorf("config already loaded")
	}

	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config: %w", err)
	}

	config = &Config{}
	err := viper.Unmarshal(config)
	if err != nil {
		return fmt.Errorf("error unmarshalling config: %w", err)
	}

	return nil
}

func IsLoaded() bool {
	return config != nil
}

func GetConfig() *Config {
	if config == nil {
		panic("config not loaded")
	}

	return config
}

// Returns the atelier home directory path.
// It attempts to retrieve the home directory from the following sources in order:
// 1. The `atelier_home` flag from viper.
// 2. The `ATELIER_HOME` environment variable.
// 3. The default atelier home directory.
func getAtelierHome() (string, error) {
	atelierHome := viper.GetString("atelier_home")
	if atelierHome == "" {
		atelierHome = os.Getenv("ATELIER_HOME")
		if atelierHome == "" {
			atelierHome = DefaultAtelierHome
		}
	}

	atelierHome, err := pathutil.ExpandPath(atelierHome)
	if err != nil {
		return "", fmt.Errorf("failed to expand atelier home path: %w", err)
	}

	return atelierHome, nil
}

func getModelsDir(atelierHome string) (string, error) {
	if atelierHome == "" {
		return "", ErrHomeNotSet
	}

	modelsDir := viper.GetString("models_dir")
	if modelsDir == "" {
		modelsDir = filepath.Join(atelierHome, "models")
	}

	modelsDir, err := pathutil.ExpandPath(modelsDir)
	if err != nil {
		return "", ErrHomeExpandFailed
	}

	return modelsDir, nil
}

func getTempDir(atelierHome string) (string, error) {
	if atelierHome == "" {
		return "", ErrHomeNotSet
	}

	tempDir := viper.GetString("temp_dir")
	if tempDir == "" {
		tempDir = filepath.Join(atelierHome, "temp")
	}

	tempDir, err := pathutil.ExpandPath(tempDir)
	if err != nil {
		return "", ErrHomeExpandFailed
	}

	return tempDir, nil
}

func createAtelierHomeDirs(atelierHome string) error {
	subdirs := []string{"models", "temp"}
	if err := os.MkdirAll(atelierHome, os.ModePerm); err != nil {
		return fmt.Errorf("failed to create atelier home directory: %w", err)
	}

	for _, subdir := range subdirs {
		dir := filepath.Join(atelierHome, subdir)
		if err := os.MkdirAll(dir, os.ModePerm); err != nil {
			return fmt.Errorf("failed to create %s directory: %w", subdir, err)
		}
	}

	return nil
}
