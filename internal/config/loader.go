package config

import (
	"os"
	"path/filepath"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// ConfigFileName is the name of the config file.
const ConfigFileName = "aliasgraph.yaml"

// ConfigFileNameAlt is the alternate name of the config file.
const ConfigFileNameAlt = "aliasgraph.yml"

// maxUpwardSearchLevels limits how far up the directory tree FindProjectRoot looks.
const maxUpwardSearchLevels = 10

// UnmarshalConf returns the koanf decoding setup for out. Durations are
// parsed from strings such as "250ms" and comma-separated strings become
// slices, so both can come from environment variables.
func UnmarshalConf(out any) koanf.UnmarshalConf {
	return koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
				mapstructure.TextUnmarshallerHookFunc(),
			),
			Result:           out,
			WeaklyTypedInput: true,
		},
	}
}

// LoadFromDir loads a ProjectConfig from the config file in dir, with
// defaults applied. It returns nil, nil if dir has no config file.
func LoadFromDir(dir string) (*ProjectConfig, error) {
	configPath := FindConfigFile(dir)
	if configPath == "" {
		return nil, nil
	}

	k := koanf.New(".")
	if err := k.Load(confmap.Provider(Defaults(), "."), nil); err != nil {
		return nil, err
	}
	if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
		return nil, err
	}

	var cfg ProjectConfig
	if err := k.UnmarshalWithConf("", &cfg, UnmarshalConf(&cfg)); err != nil {
		return nil, err
	}
	ApplyDefaults(&cfg)
	return &cfg, nil
}

// FindConfigFile returns the config file in dir, or "" if there is none.
func FindConfigFile(dir string) string {
	for _, name := range []string{ConfigFileName, ConfigFileNameAlt} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// FindProjectRoot walks up from startDir to the nearest directory holding a
// config file. It returns "" if none is found.
func FindProjectRoot(startDir string) string {
	dir := startDir
	for i := 0; i < maxUpwardSearchLevels; i++ {
		if FindConfigFile(dir) != "" {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
	return ""
}
