package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fivetwenty-io/jsonapi-client/internal/constants"
	"github.com/fivetwenty-io/jsonapi-client/pkg/jsonapi"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the persisted CLI configuration. Token holds either a static
// access token or, when ClientID is set, the last OAuth2 token issued.
type Config struct {
	API            string                            `json:"api,omitempty"              yaml:"api,omitempty"`
	Token          string                            `json:"token,omitempty"            yaml:"token,omitempty"`
	TokenExpiresAt string                            `json:"token_expires_at,omitempty" yaml:"token_expires_at,omitempty"`
	RefreshToken   string                            `json:"refresh_token,omitempty"    yaml:"refresh_token,omitempty"`
	ClientID       string                            `json:"client_id,omitempty"        yaml:"client_id,omitempty"`
	ClientSecret   string                            `json:"client_secret,omitempty"    yaml:"client_secret,omitempty"`
	TokenURL       string                            `json:"token_url,omitempty"        yaml:"token_url,omitempty"`
	Output         string                            `json:"output,omitempty"           yaml:"output,omitempty"`
	Cache          string                            `json:"cache,omitempty"            yaml:"cache,omitempty"`
	NATSURL        string                            `json:"nats_url,omitempty"         yaml:"nats_url,omitempty"`
	Queries        map[string]map[string]interface{} `json:"queries,omitempty"          yaml:"queries,omitempty"`
}

// configKeys lists the keys accepted by config set and unset, in display
// order.
var configKeys = []string{
	"api", "token", "token_expires_at", "refresh_token", "client_id",
	"client_secret", "token_url", "output", "cache", "nats_url",
}

// NewConfigCommand creates the config command group.
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage CLI configuration",
		Long:  "View and modify the jsonapi CLI configuration file",
	}

	cmd.AddCommand(newConfigShowCommand())
	cmd.AddCommand(newConfigSetCommand())
	cmd.AddCommand(newConfigUnsetCommand())

	return cmd
}

func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Long:  "Display the current configuration with secrets masked",
		RunE: func(cmd *cobra.Command, args []string) error {
			config := loadConfig().masked()

			format, err := outputFormat(cmd)
			if err != nil {
				return err
			}

			if format != FormatTable {
				return writeStructured(cmd.OutOrStdout(), format, config)
			}

			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.Header("Property", "Value")

			for _, key := range configKeys {
				value, _ := config.get(key)
				if value == "" {
					value = constants.NotAvailable
				}

				_ = table.Append(key, value)
			}

			_ = table.Append("saved queries", fmt.Sprint(len(config.Queries)))

			if err := table.Render(); err != nil {
				return fmt.Errorf("failed to render table: %w", err)
			}

			return nil
		},
	}
}

func newConfigSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Set a configuration value",
		Long:  "Set a configuration value. Keys: " + strings.Join(configKeys, ", "),
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			config := loadConfig()

			err := config.set(args[0], args[1])
			if err != nil {
				return err
			}

			err = saveConfig(config)
			if err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Set %s\n", args[0])

			return nil
		},
	}
}

func newConfigUnsetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "unset KEY",
		Short: "Unset a configuration value",
		Long:  "Remove a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			config := loadConfig()

			err := config.unset(args[0])
			if err != nil {
				return err
			}

			err = saveConfig(config)
			if err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Unset %s\n", args[0])

			return nil
		},
	}
}

// loadConfig reads the configuration through viper, so flags and JSONAPI_*
// environment variables override the file.
func loadConfig() *Config {
	config := &Config{
		API:            viper.GetString("api"),
		Token:          viper.GetString("token"),
		TokenExpiresAt: viper.GetString("token_expires_at"),
		RefreshToken:   viper.GetString("refresh_token"),
		ClientID:       viper.GetString("client_id"),
		ClientSecret:   viper.GetString("client_secret"),
		TokenURL:       viper.GetString("token_url"),
		Output:         viper.GetString("output"),
		Cache:          viper.GetString("cache"),
		NATSURL:        viper.GetString("nats_url"),
		Queries:        make(map[string]map[string]interface{}),
	}

	for name, raw := range viper.GetStringMap("queries") {
		if definition, ok := raw.(map[string]interface{}); ok {
			config.Queries[name] = definition
		}
	}

	return config
}

// saveConfig writes the configuration file and reloads viper from it.
func saveConfig(config *Config) error {
	configFile, err := configFilePath()
	if err != nil {
		return err
	}

	err = os.MkdirAll(filepath.Dir(configFile), constants.ConfigDirPerm)
	if err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	err = os.WriteFile(configFile, data, constants.ConfigFilePerm)
	if err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	viper.SetConfigFile(configFile)

	err = viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("failed to reload config: %w", err)
	}

	return nil
}

func configFilePath() (string, error) {
	configFile := viper.ConfigFileUsed()

	if configFile == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get user home directory: %w", err)
		}

		configFile = filepath.Join(home, constants.ConfigDirName, constants.ConfigFileName+"."+constants.ConfigFileType)
	}

	info, err := os.Stat(configFile)
	if err == nil && !info.Mode().IsRegular() {
		return "", fmt.Errorf("%w: %s", constants.ErrNotRegularFile, configFile)
	}

	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("failed to stat config file: %w", err)
	}

	return configFile, nil
}

func (c *Config) get(key string) (string, bool) {
	switch key {
	case "api":
		return c.API, true
	case "token":
		return c.Token, true
	case "token_expires_at":
		return c.TokenExpiresAt, true
	case "refresh_token":
		return c.RefreshToken, true
	case "client_id":
		return c.ClientID, true
	case "client_secret":
		return c.ClientSecret, true
	case "token_url":
		return c.TokenURL, true
	case "output":
		return c.Output, true
	case "cache":
		return c.Cache, true
	case "nats_url":
		return c.NATSURL, true
	default:
		return "", false
	}
}

func (c *Config) set(key, value string) error {
	switch key {
	case "api":
		c.API = value
	case "token":
		c.Token = value
		c.TokenExpiresAt = ""
	case "token_expires_at":
		c.TokenExpiresAt = value
	case "refresh_token":
		c.RefreshToken = value
	case "client_id":
		c.ClientID = value
	case "client_secret":
		c.ClientSecret = value
	case "token_url":
		c.TokenURL = value
	case "output":
		switch value {
		case FormatTable, FormatJSON, FormatYAML:
			c.Output = value
		default:
			return fmt.Errorf("%w: %s", constants.ErrUnsupportedFormat, value)
		}
	case "cache":
		switch jsonapi.CacheType(value) {
		case jsonapi.CacheTypeNone, jsonapi.CacheTypeMemory, jsonapi.CacheTypeNATS:
			c.Cache = value
		default:
			return fmt.Errorf("%w: %s", constants.ErrInvalidCacheBackend, value)
		}
	case "nats_url":
		c.NATSURL = value
	default:
		return fmt.Errorf("%w: %s", constants.ErrUnknownConfigKey, key)
	}

	return nil
}

func (c *Config) unset(key string) error {
	if _, ok := c.get(key); !ok {
		return fmt.Errorf("%w: %s", constants.ErrUnknownConfigKey, key)
	}

	switch key {
	case "output":
		c.Output = ""
	case "cache":
		c.Cache = ""
	default:
		return c.set(key, "")
	}

	return nil
}

// masked returns a copy safe to display.
func (c *Config) masked() *Config {
	clone := *c
	clone.Token = maskSecret(c.Token)
	clone.RefreshToken = maskSecret(c.RefreshToken)
	clone.ClientSecret = maskSecret(c.ClientSecret)

	return &clone
}
