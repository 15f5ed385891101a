package config

import (
	"bytes"
	"path/filepath"
	"strings"

	"github.com/0xPolygonHermez/zkevm-node/log"
	"github.com/0xPolygonHermez/zkevm-xcall/db"
	"github.com/0xPolygonHermez/zkevm-xcall/devnet"
	"github.com/0xPolygonHermez/zkevm-xcall/metrics"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Config struct
type Config struct {
	Log      log.Config
	Database db.Config
	Metrics  metrics.Config
	Devnet   devnet.Config
}

// Load reads the default values, then the config file when one is given,
// then XCALL_ prefixed environment variables
func Load(configFilePath string) (*Config, error) {
	var cfg Config
	v := viper.New()
	v.SetConfigType("toml")

	err := v.ReadConfig(bytes.NewBuffer([]byte(DefaultValues)))
	if err != nil {
		return nil, err
	}
	if configFilePath != "" {
		dirName, fileName := filepath.Split(configFilePath)

		fileExtension := strings.TrimPrefix(filepath.Ext(fileName), ".")
		fileNameWithoutExtension := strings.TrimSuffix(fileName, "."+fileExtension)

		v.AddConfigPath(dirName)
		v.SetConfigName(fileNameWithoutExtension)
		v.SetConfigType(fileExtension)
		err = v.MergeInConfig()
		if err != nil {
			_, ok := err.(viper.ConfigFileNotFoundError)
			if !ok {
				return nil, errors.Wrap(err, "reading config file")
			}
			log.Infof("config file %s not found, using defaults", configFilePath)
		}
	}
	v.AutomaticEnv()
	replacer := strings.NewReplacer(".", "_")
	v.SetEnvKeyReplacer(replacer)
	v.SetEnvPrefix("XCALL")

	err = v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)))
	if err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Devnet.ChainA.NetworkID == "" || c.Devnet.ChainB.NetworkID == "" {
		return errors.New("both devnet chains need a NetworkID")
	}
	if c.Devnet.ChainA.NetworkID == c.Devnet.ChainB.NetworkID {
		return errors.Errorf("devnet chains share NetworkID %s", c.Devnet.ChainA.NetworkID)
	}
	if len(c.Devnet.ChainA.Connections) != len(c.Devnet.ChainB.Connections) {
		return errors.Errorf("devnet chains deploy %d and %d connections",
			len(c.Devnet.ChainA.Connections), len(c.Devnet.ChainB.Connections))
	}
	return nil
}
