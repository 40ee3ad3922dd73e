/*
 * MIT License
 *
 * Copyright (c) 2024 Dr.NP
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package config loads and validates the server configuration file. The
// file format is whatever viper accepts (json, yaml, toml); sizes parse
// from strings like "16MB" and durations from strings like "60s".
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"

	libdur "github.com/nabbar/golib/duration"
	liberr "github.com/nabbar/golib/errors"
	libsiz "github.com/nabbar/golib/size"

	"github.com/spf13/viper"
)

const (
	DefaultWorkers    = 4
	DefaultBacklog    = 1024
	DefaultMaxClients = 4096
	DefaultMaxPacket  = libsiz.SizeMega
	DefaultHighWater  = 16 * libsiz.SizeMega
)

var (
	DefaultTick          = libdur.ParseDuration(time.Second)
	DefaultDrainDeadline = libdur.ParseDuration(10 * time.Second)
)

// Config is the full configuration of one bsp-server process.
type Config struct {
	Core    Core     `mapstructure:"core" json:"core" yaml:"core" toml:"core"`
	Servers []Server `mapstructure:"servers" json:"servers" yaml:"servers" toml:"servers" validate:"dive"`
	Modules []Module `mapstructure:"modules" json:"modules" yaml:"modules" toml:"modules" validate:"dive"`
}

// Core carries the process-wide knobs.
type Core struct {
	// AppID identifies this application instance towards the manager.
	AppID int `mapstructure:"app_id" json:"app_id" yaml:"app_id" toml:"app_id" validate:"gte=0"`

	// Workers is the fixed worker-thread count; 0 selects the default.
	Workers int `mapstructure:"static_workers" json:"static_workers" yaml:"static_workers" toml:"static_workers" validate:"gte=0,lte=1024"`

	// LogDir is where log files are written; empty disables file logs.
	LogDir string `mapstructure:"log_dir" json:"log_dir" yaml:"log_dir" toml:"log_dir"`

	// DisableLog turns off file logging even when LogDir is set.
	DisableLog bool `mapstructure:"disable_log" json:"disable_log" yaml:"disable_log" toml:"disable_log"`

	// ScriptIdentifier is the script program handed to the host.
	ScriptIdentifier string `mapstructure:"script_identifier" json:"script_identifier" yaml:"script_identifier" toml:"script_identifier"`

	// DebugHexInput / DebugHexOutput arm the traffic dump hooks.
	DebugHexInput  bool `mapstructure:"debug_hex_input" json:"debug_hex_input" yaml:"debug_hex_input" toml:"debug_hex_input"`
	DebugHexOutput bool `mapstructure:"debug_hex_output" json:"debug_hex_output" yaml:"debug_hex_output" toml:"debug_hex_output"`

	// TickInterval is the event-loop timer stride.
	TickInterval libdur.Duration `mapstructure:"tick_interval" json:"tick_interval" yaml:"tick_interval" toml:"tick_interval"`

	// DrainDeadline bounds outbound drain at graceful shutdown.
	DrainDeadline libdur.Duration `mapstructure:"drain_deadline" json:"drain_deadline" yaml:"drain_deadline" toml:"drain_deadline"`

	// WriteHighWater is the outbound buffer cap per connection.
	WriteHighWater libsiz.Size `mapstructure:"write_high_water" json:"write_high_water" yaml:"write_high_water" toml:"write_high_water"`

	// Manager configures the control channel towards the manager daemon.
	Manager Manager `mapstructure:"manager" json:"manager" yaml:"manager" toml:"manager"`

	// Script process hooks (function names in the script program).
	OnLoad      string `mapstructure:"script_func_on_load" json:"script_func_on_load" yaml:"script_func_on_load" toml:"script_func_on_load"`
	OnReload    string `mapstructure:"script_func_on_reload" json:"script_func_on_reload" yaml:"script_func_on_reload" toml:"script_func_on_reload"`
	OnExit      string `mapstructure:"script_func_on_exit" json:"script_func_on_exit" yaml:"script_func_on_exit" toml:"script_func_on_exit"`
	OnSubLoad   string `mapstructure:"script_func_on_sub_load" json:"script_func_on_sub_load" yaml:"script_func_on_sub_load" toml:"script_func_on_sub_load"`
	OnSubReload string `mapstructure:"script_func_on_sub_reload" json:"script_func_on_sub_reload" yaml:"script_func_on_sub_reload" toml:"script_func_on_sub_reload"`
	OnSubExit   string `mapstructure:"script_func_on_sub_exit" json:"script_func_on_sub_exit" yaml:"script_func_on_sub_exit" toml:"script_func_on_sub_exit"`
}

// Manager configures the worker side of the control channel.
type Manager struct {
	// Path is the manager control socket path.
	Path string `mapstructure:"path" json:"path" yaml:"path" toml:"path"`

	// Independent skips dialing the manager entirely.
	Independent bool `mapstructure:"independent" json:"independent" yaml:"independent" toml:"independent"`
}

// Module names one script-host module preloaded before first load.
type Module struct {
	Name string `mapstructure:"name" json:"name" yaml:"name" toml:"name" validate:"required"`
}

// Load reads and validates a configuration file.
func Load(file string) (*Config, liberr.Error) {
	v := viper.New()
	v.SetConfigFile(file)

	if err := v.ReadInConfig(); err != nil {
		return nil, ErrorConfigRead.Error(err)
	}

	var c Config

	err := v.Unmarshal(&c, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		libsiz.ViperDecoderHook(),
		libdur.ViperDecoderHook(),
	)))

	if err != nil {
		return nil, ErrorConfigDecode.Error(err)
	}

	c.SetDefaults()

	if e := c.Validate(); e != nil {
		return nil, e
	}

	return &c, nil
}

// SetDefaults fills every zero field owning a platform default.
func (c *Config) SetDefaults() {
	if c.Core.Workers < 1 {
		c.Core.Workers = DefaultWorkers
	}

	if c.Core.TickInterval < 1 {
		c.Core.TickInterval = DefaultTick
	}

	if c.Core.DrainDeadline < 1 {
		c.Core.DrainDeadline = DefaultDrainDeadline
	}

	if c.Core.WriteHighWater < 1 {
		c.Core.WriteHighWater = DefaultHighWater
	}

	for i := range c.Servers {
		c.Servers[i].SetDefaults()
	}
}

// Validate checks the whole configuration against the awaiting model.
func (c *Config) Validate() liberr.Error {
	err := validator.New().Struct(c)

	if e, ok := err.(*validator.InvalidValidationError); ok {
		return ErrorConfigValidate.Error(e)
	}

	out := ErrorConfigValidate.Error(nil)

	if err != nil {
		for _, e := range err.(validator.ValidationErrors) {
			//nolint goerr113
			out.Add(fmt.Errorf("config field '%s' is not validated by constraint '%s'", e.Field(), e.ActualTag()))
		}
	}

	for i := range c.Servers {
		if e := c.Servers[i].Check(); e != nil {
			out.Add(e)
		}
	}

	if out.HasParent() {
		return out
	}

	return nil
}
