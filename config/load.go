package config

import (
	"fmt"
	"io/ioutil"

	"github.com/hashicorp/hcl"
)

// Load applies an HCL config file. File settings fill in params still at
// their defaults; params already set explicitly keep their values.
func (c *Config) Load(configFile string) error {
	b, err := ioutil.ReadFile(configFile)
	if err != nil {
		return err
	}
	return c.load(b)
}

func (c *Config) load(b []byte) error {
	var cfg map[string]interface{}

	err := hcl.Decode(&cfg, string(b))
	if err != nil {
		return err
	}
	for name, val := range cfg {
		param, ok := c.params[name]
		if !ok {
			return fmt.Errorf("config: %s is not a config variable", name)
		}
		if (param.opts & NoConfigFile) != 0 {
			return fmt.Errorf("config: %s can't be set in config file", name)
		}

		if param.by == byDefault {
			err := param.val.SetValue(val)
			if err != nil {
				return fmt.Errorf("config: %s: %s", param.name, err)
			}
			param.by = byConfig
		}
	}

	return nil
}
