// Package config loads the chatroom client configuration from a YAML file and from
// command line sections, and turns it into session wiring.
package config

import (
	"os"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/go-go-golems/chatroom/pkg/history"
	"github.com/go-go-golems/chatroom/pkg/relay"
)

// File is the on-disk client configuration.
type File struct {
	Server       string      `yaml:"server"`
	WSBase       string      `yaml:"ws_base"`
	PerRoom      *bool       `yaml:"per_room"`
	Username     string      `yaml:"username"`
	Token        string      `yaml:"token"`
	Room         string      `yaml:"room"`
	RoomName     string      `yaml:"room_name"`
	Capacity     int         `yaml:"capacity"`
	HistoryOrder string      `yaml:"history_order"`
	SendMode     string      `yaml:"send_mode"`
	Relay        *RelayBlock `yaml:"relay"`
}

// RelayBlock mirrors the relay flags.
type RelayBlock struct {
	Enabled     bool   `yaml:"enabled"`
	Backend     string `yaml:"backend"`
	Addr        string `yaml:"redis_addr"`
	Group       string `yaml:"redis_group"`
	Consumer    string `yaml:"redis_consumer"`
	TopicPrefix string `yaml:"topic_prefix"`
}

// Load reads a YAML config file from path.
func Load(path string) (*File, error) {
	path, err := homedir.Expand(path)
	if err != nil {
		return nil, errors.Wrapf(err, "config: expand %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "config: read %s", path)
	}
	return Parse(data)
}

// Parse unmarshals and validates YAML bytes.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(err, "config: parse")
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *File) validate() error {
	var errs []string
	if f.Capacity < 0 {
		errs = append(errs, "capacity must not be negative")
	}
	if f.HistoryOrder != "" {
		if _, err := history.ParseOrder(f.HistoryOrder); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if f.SendMode != "" {
		if _, err := ParseSendMode(f.SendMode); err != nil {
			errs = append(errs, err.Error())
		}
	}
	for _, u := range []struct{ key, v string }{{"server", f.Server}, {"ws_base", f.WSBase}} {
		if u.v != "" && !strings.Contains(u.v, "://") {
			errs = append(errs, u.key+" must be an absolute URL")
		}
	}
	if f.Relay != nil && f.Relay.Backend != "" {
		switch relay.Backend(f.Relay.Backend) {
		case relay.BackendMemory, relay.BackendRedis:
		default:
			errs = append(errs, "relay.backend must be memory or redis")
		}
	}
	if len(errs) > 0 {
		return errors.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
