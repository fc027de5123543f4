// Package config holds the typed runtime parameters of a graft process:
// registered with defaults by the code that owns them, overridden by an
// HCL config file and then by explicit --param flags.
package config

import (
	"fmt"
	"sort"
)

type Value interface {
	Set(string) error
	SetValue(interface{}) error
	String() string
}

type Option int

const (
	Default      Option = 0
	NoConfigFile Option = 1 << iota // can not be specified in a config file
)

type setBy int

const (
	byDefault setBy = iota
	byConfig
	byFlag
)

type param struct {
	name string
	val  Value
	opts Option
	by   setBy
}

type Config struct {
	params map[string]*param
}

func New() *Config {
	return &Config{
		params: map[string]*param{},
	}
}

func (c *Config) addParam(val Value, name string, opts Option) {
	if _, ok := c.params[name]; ok {
		panic(fmt.Sprintf("config: param redefined: %s", name))
	}
	c.params[name] = &param{name: name, val: val, opts: opts}
}

func (c *Config) BoolParam(p *bool, name string, b bool, opts Option) *bool {
	*p = b
	c.addParam((*boolValue)(p), name, opts)
	return p
}

func (c *Config) IntParam(p *int, name string, i int, opts Option) *int {
	*p = i
	c.addParam((*intValue)(p), name, opts)
	return p
}

func (c *Config) Uint64Param(p *uint64, name string, u uint64, opts Option) *uint64 {
	*p = u
	c.addParam((*uint64Value)(p), name, opts)
	return p
}

func (c *Config) StringParam(p *string, name string, s string, opts Option) *string {
	*p = s
	c.addParam((*stringValue)(p), name, opts)
	return p
}

// Set applies an explicit name=value override; explicit settings win over
// the config file regardless of order.
func (c *Config) Set(name, val string) error {
	param, ok := c.params[name]
	if !ok {
		return fmt.Errorf("config: %s is not a param", name)
	}
	err := param.val.Set(val)
	if err != nil {
		return fmt.Errorf("config: param %s: %s", name, err)
	}
	param.by = byFlag
	return nil
}

// List calls fn for every param in name order.
func (c *Config) List(fn func(name, val string)) {
	names := make([]string, 0, len(c.params))
	for name := range c.params {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fn(name, c.params[name].val.String())
	}
}
