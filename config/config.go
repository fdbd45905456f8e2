// Package config centralizes the compositor CLI's runtime configuration:
// an XDG-conventional home directory, environment overrides, and an
// optional config.yaml, all read through viper. Adapted from the
// teacher's own config/config.go, trading its box/mcp/device-proxy
// settings for the ones a compose run actually needs.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

var v *viper.Viper

func init() {
	v = viper.New()

	v.SetDefault("compositor.home", filepath.Join(xdg.Home, ".compositor"))
	v.SetDefault("compositor.workers", 0) // 0 = runtime.NumCPU()
	v.SetDefault("output.format", "mp4")

	v.AutomaticEnv()
	v.BindEnv("compositor.home", "COMPOSITOR_HOME")
	v.BindEnv("compositor.workers", "COMPOSITOR_WORKERS")
	v.BindEnv("output.format", "COMPOSITOR_OUTPUT_FORMAT")

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	for _, path := range []string{".", "$HOME/.compositor", "/etc/compositor"} {
		v.AddConfigPath(os.ExpandEnv(path))
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			panic(fmt.Sprintf("fatal error reading config file: %s", err))
		}
	}
}

// Home returns the compositor's home directory, which the compose
// command creates if it is missing.
func Home() string {
	return v.GetString("compositor.home")
}

// Workers returns the configured worker pool size, or 0 to mean "let the
// scheduler pick runtime.NumCPU()".
func Workers() int {
	return v.GetInt("compositor.workers")
}

// OutputFormat returns the default output container ("mp4" or "webm")
// when the CLI isn't told otherwise.
func OutputFormat() string {
	return v.GetString("output.format")
}
