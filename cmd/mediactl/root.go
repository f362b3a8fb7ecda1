package main

import (
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"mediashare/internal/registry/client"
)

const defaultServer = "http://localhost:8080"

// cli carries per-invocation state so tests can build isolated command trees.
type cli struct {
	v       *viper.Viper
	out     io.Writer
	cfgFile string
}

func newRootCmd(out io.Writer) *cobra.Command {
	c := &cli{v: viper.New(), out: out}

	root := &cobra.Command{
		Use:           "mediactl",
		Short:         "Manage fractional ownership of media assets",
		Long:          `mediactl talks to a mediashare registry: register assets, transfer shares and inspect who owns what.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.initConfig()
		},
	}

	root.PersistentFlags().StringVarP(&c.cfgFile, "config", "c", "",
		"config file (default: ~/.config/mediactl/config.yaml)")
	root.PersistentFlags().String("server", defaultServer, "registry base URL")
	root.PersistentFlags().String("token", "", "bearer token identifying the caller")
	root.PersistentFlags().String("output", "json", "output format: json or text")
	_ = c.v.BindPFlag("server", root.PersistentFlags().Lookup("server"))
	_ = c.v.BindPFlag("token", root.PersistentFlags().Lookup("token"))
	_ = c.v.BindPFlag("output", root.PersistentFlags().Lookup("output"))

	root.AddCommand(
		c.createCmd(),
		c.transferCmd(),
		c.showCmd(),
		c.listCmd(),
		c.holdingsCmd(),
		c.whoamiCmd(),
		c.tokenCmd(),
	)
	return root
}

// initConfig layers flags over MEDIACTL_* variables over the config file.
func (c *cli) initConfig() error {
	c.v.SetEnvPrefix("mediactl")
	c.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	c.v.AutomaticEnv()

	if c.cfgFile != "" {
		c.v.SetConfigFile(c.cfgFile)
	} else {
		home, _ := os.UserHomeDir()
		c.v.AddConfigPath(filepath.Join(home, ".config", "mediactl"))
		c.v.SetConfigName("config")
		c.v.SetConfigType("yaml")
	}
	if err := c.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || c.cfgFile != "" {
			return err
		}
	}
	switch c.v.GetString("output") {
	case "json", "text":
		return nil
	default:
		return errors.New("--output must be json or text")
	}
}

func (c *cli) client() *client.Client {
	return client.New(c.v.GetString("server"), client.WithToken(c.v.GetString("token")))
}

func (c *cli) requireToken() error {
	if c.v.GetString("token") == "" {
		return errors.New("a token is required: pass --token or set MEDIACTL_TOKEN")
	}
	return nil
}

func (c *cli) textOutput() bool {
	return c.v.GetString("output") == "text"
}

func (c *cli) printJSON(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
