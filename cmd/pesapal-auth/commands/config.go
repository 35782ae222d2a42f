package commands

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/dotenv"
	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/urfave/cli/v3"

	"github.com/florianilch/pesapal-auth-proxy/internal/app"
)

// envPrefix marks the variables that configure the gateway. PESAPAL_BASE_URL
// maps to base_url, PESAPAL_SERVER__PORT to server.port.
const envPrefix = "PESAPAL_"

// defaultEnvFile is read when present and --env-file is not given.
const defaultEnvFile = ".env"

// listKeys hold comma-separated values when set through PESAPAL_* variables.
var listKeys = []string{"cors.allowed_origins"}

// configSources names the files layered underneath the process environment.
// Empty paths are skipped.
type configSources struct {
	ConfigFile string // TOML
	EnvFile    string // dotenv, PESAPAL_* keys only
}

// resolveSources picks the config files for cmd. An explicit --env-file must
// exist; the implicit ./.env is optional.
func resolveSources(cmd *cli.Command) configSources {
	src := configSources{ConfigFile: cmd.String("config")}

	if cmd.IsSet("env-file") {
		src.EnvFile = cmd.String("env-file")
	} else if _, err := os.Stat(defaultEnvFile); err == nil {
		src.EnvFile = defaultEnvFile
	}

	return src
}

// loadConfig builds the gateway configuration. Later layers win:
// TOML file, then .env file, then PESAPAL_* variables, then CLI flags.
// Defaults fill whatever is left, credentials excepted.
func loadConfig(src configSources, cmd *cli.Command, environFunc func() []string) (*app.Config, error) {
	k := koanf.New(".")

	if src.ConfigFile != "" {
		if err := k.Load(file.Provider(src.ConfigFile), toml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	// Same key mapping as the process environment, so a .env file can hold
	// exactly the variables the service would otherwise be started with.
	if src.EnvFile != "" {
		if err := k.Load(file.Provider(src.EnvFile), dotenv.ParserEnv(envPrefix, ".", envKey)); err != nil {
			return nil, fmt.Errorf("loading env file: %w", err)
		}
	}

	envProvider := env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(key, value string) (string, any) {
			return envKey(key), value
		},
		EnvironFunc: environFunc,
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	if cmd != nil {
		if err := k.Load(confmap.Provider(flagValues(cmd), "."), nil); err != nil {
			return nil, fmt.Errorf("loading CLI flags: %w", err)
		}
	}

	if err := splitListValues(k); err != nil {
		return nil, err
	}

	config := &app.Config{}
	if err := k.UnmarshalWithConf("", config, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := config.ApplyDefaults(); err != nil {
		return nil, fmt.Errorf("applying defaults: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", describeValidationError(err))
	}

	return config, nil
}

// envKey maps PESAPAL_UPSTREAM__MAX_RETRIES to upstream.max_retries.
func envKey(name string) string {
	stripped := strings.TrimPrefix(name, envPrefix)
	return strings.ToLower(strings.ReplaceAll(stripped, "__", "."))
}

// splitListValues turns "a, b" into ["a", "b"] for list keys that arrived as
// a single string. TOML arrays are left alone.
func splitListValues(k *koanf.Koanf) error {
	split := make(map[string]any)
	for _, key := range listKeys {
		raw, ok := k.Get(key).(string)
		if !ok {
			continue
		}

		items := []string{}
		for _, item := range strings.Split(raw, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		split[key] = items
	}

	if err := k.Load(confmap.Provider(split, "."), nil); err != nil {
		return fmt.Errorf("splitting list values: %w", err)
	}
	return nil
}

// flagValues collects explicitly set flags as config keys.
// --log-level becomes log_level, --server--port would become server.port.
func flagValues(cmd *cli.Command) map[string]any {
	values := make(map[string]any)

	for _, name := range cmd.FlagNames() {
		// Unset flags would shadow the environment with their defaults
		if !cmd.IsSet(name) {
			continue
		}
		// File locations, not settings
		if name == "config" || name == "env-file" {
			continue
		}

		if value := cmd.Value(name); value != nil {
			key := strings.ReplaceAll(name, "--", ".")
			key = strings.ReplaceAll(key, "-", "_")
			values[key] = value
		}
	}

	return values
}

// describeValidationError names the environment variables behind missing
// required settings, leaving other validation errors untouched.
func describeValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	var missing []string
	for _, fe := range validationErrs {
		if fe.Tag() != "required" {
			return err
		}
		// Namespace is "Config.<key>[.<key>]" with json tag names
		_, key, _ := strings.Cut(fe.Namespace(), ".")
		missing = append(missing, envPrefix+strings.ToUpper(strings.ReplaceAll(key, ".", "__")))
	}

	return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
}
