package relay

import (
	"github.com/go-go-golems/glazed/pkg/cmds/fields"
	"github.com/go-go-golems/glazed/pkg/cmds/schema"
	"github.com/pkg/errors"
)

const SectionSlug = "relay"

type Backend string

const (
	BackendMemory Backend = "memory"
	BackendRedis  Backend = "redis"
)

// Settings holds the event relay configuration.
type Settings struct {
	Enabled     bool   `glazed:"relay-enabled"`
	Backend     string `glazed:"relay-backend"`
	Addr        string `glazed:"redis-addr"`
	Group       string `glazed:"redis-group"`
	Consumer    string `glazed:"redis-consumer"`
	TopicPrefix string `glazed:"relay-topic-prefix"`
}

func DefaultSettings() Settings {
	return Settings{
		Backend:     string(BackendMemory),
		Addr:        "localhost:6379",
		Group:       "chatroom",
		Consumer:    "chatroom-1",
		TopicPrefix: "chatroom",
	}
}

func (s Settings) Validate() error {
	switch Backend(s.Backend) {
	case BackendMemory:
	case BackendRedis:
		if s.Addr == "" {
			return errors.New("relay: redis backend needs redis-addr")
		}
		if s.Group == "" || s.Consumer == "" {
			return errors.New("relay: redis backend needs redis-group and redis-consumer")
		}
	default:
		return errors.Errorf("relay: unknown backend %q (memory|redis)", s.Backend)
	}
	return nil
}

// NewSection returns the glazed section for relay settings.
func NewSection() (schema.Section, error) {
	d := DefaultSettings()
	return schema.NewSection(
		SectionSlug,
		"Session event relay (Watermill over memory or Redis Streams)",
		schema.WithFields(
			fields.New("relay-enabled", fields.TypeBool, fields.WithDefault(false), fields.WithHelp("Publish session events to the relay")),
			fields.New("relay-backend", fields.TypeString, fields.WithDefault(d.Backend), fields.WithHelp("Relay transport (memory|redis)")),
			fields.New("redis-addr", fields.TypeString, fields.WithDefault(d.Addr), fields.WithHelp("Redis address host:port")),
			fields.New("redis-group", fields.TypeString, fields.WithDefault(d.Group), fields.WithHelp("Redis consumer group")),
			fields.New("redis-consumer", fields.TypeString, fields.WithDefault(d.Consumer), fields.WithHelp("Redis consumer name")),
			fields.New("relay-topic-prefix", fields.TypeString, fields.WithDefault(d.TopicPrefix), fields.WithHelp("Topic prefix; topics are <prefix>.<roomId>")),
		),
	)
}
