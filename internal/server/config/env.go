package config

import "github.com/caarlos0/env/v11"

// parseEnv overlays Config with the environment variables named in its env
// tags. Unset variables leave the current value alone; a malformed value
// (for example a bad duration) panics like the JSON and flag stages do.
func parseEnv(config *Config) {
	if err := env.Parse(config); err != nil {
		panic(err)
	}
}
