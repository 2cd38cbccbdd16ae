package relay

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	rstream "github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/go-go-golems/chatroom/pkg/session"
)

// Source is anything emitting session events: a *session.Session or a *session.Manager.
type Source interface {
	Subscribe(fn session.Listener) session.Subscription
}

// Relay publishes session events to a watermill topic per room and lets other
// processes watch them.
type Relay struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber

	prefix string
	client *redis.Client
	logger zerolog.Logger
}

// Build constructs a Relay on the configured backend.
func Build(s Settings, logger zerolog.Logger) (*Relay, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	logger = logger.With().Str("component", "relay").Str("backend", s.Backend).Logger()
	wl := NewWatermillLogger(logger)
	r := &Relay{prefix: s.TopicPrefix, logger: logger}
	if r.prefix == "" {
		r.prefix = DefaultSettings().TopicPrefix
	}

	if Backend(s.Backend) == BackendMemory {
		ch := gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: 64,
			// keeps per-topic order across publishes
			BlockPublishUntilSubscriberAck: true,
		}, wl)
		r.Publisher = ch
		r.Subscriber = ch
		return r, nil
	}

	client := redis.NewClient(&redis.Options{Addr: s.Addr})
	marshaler := rstream.DefaultMarshallerUnmarshaller{}

	pub, err := rstream.NewPublisher(rstream.PublisherConfig{
		Client:     client,
		Marshaller: marshaler,
	}, wl)
	if err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "create redis publisher")
	}

	sub, err := rstream.NewSubscriber(rstream.SubscriberConfig{
		Client:        client,
		Unmarshaller:  marshaler,
		ConsumerGroup: s.Group,
		Consumer:      s.Consumer,
	}, wl)
	if err != nil {
		_ = pub.Close()
		_ = client.Close()
		return nil, errors.Wrap(err, "create redis subscriber")
	}

	r.Publisher = pub
	r.Subscriber = sub
	r.client = client
	return r, nil
}

// Topic is the topic carrying events of roomID.
func (r *Relay) Topic(roomID string) string {
	return r.prefix + "." + roomID
}

// Publish sends one event to its room topic.
func (r *Relay) Publish(e session.Event) error {
	env := EnvelopeFromEvent(e)
	payload, err := json.Marshal(env)
	if err != nil {
		return errors.Wrap(err, "encode relay envelope")
	}
	msg := message.NewMessage(uuid.NewString(), payload)
	msg.Metadata.Set(MetaSessionID, env.SessionID)
	msg.Metadata.Set(MetaEventType, env.Type)
	return errors.Wrapf(r.Publisher.Publish(r.Topic(e.Room.ID), msg), "publish to %s", r.Topic(e.Room.ID))
}

// Attach publishes every event of src until the returned subscription is cancelled.
// Publish failures are logged; the session is never affected by the relay.
func (r *Relay) Attach(src Source) session.Subscription {
	return src.Subscribe(func(e session.Event) {
		if err := r.Publish(e); err != nil {
			r.logger.Warn().Err(err).Str("event_type", string(e.Type)).Msg("relay publish failed")
		}
	})
}

// Watch streams decoded envelopes of roomID until ctx is done. Undecodable
// messages are acknowledged and skipped.
func (r *Relay) Watch(ctx context.Context, roomID string) (<-chan Envelope, error) {
	msgs, err := r.Subscriber.Subscribe(ctx, r.Topic(roomID))
	if err != nil {
		return nil, errors.Wrapf(err, "subscribe to %s", r.Topic(roomID))
	}
	out := make(chan Envelope, 16)
	go func() {
		defer close(out)
		for msg := range msgs {
			msg.Ack()
			env, err := DecodeEnvelope(msg.Payload)
			if err != nil {
				r.logger.Warn().Err(err).Str("message_id", msg.UUID).Msg("skipping relay message")
				continue
			}
			select {
			case out <- env:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// EnsureGroupAtTail creates the consumer group for roomID's stream at the tail ($)
// so a new watcher does not replay the whole stream. It is a no-op on the memory backend.
func (r *Relay) EnsureGroupAtTail(ctx context.Context, roomID, group string) error {
	if r.client == nil {
		return nil
	}
	stream := r.Topic(roomID)
	err := r.client.XGroupCreateMkStream(ctx, stream, group, "$").Err()
	if err != nil {
		if strings.Contains(err.Error(), "BUSYGROUP") {
			return nil
		}
		return errors.Wrapf(err, "create consumer group %s on %s", group, stream)
	}
	r.logger.Info().Str("stream", stream).Str("group", group).Msg("created redis consumer group at $ (tail)")
	return nil
}

func (r *Relay) Close() error {
	var errs []error
	if err := r.Publisher.Close(); err != nil {
		errs = append(errs, err)
	}
	// the memory backend shares one GoChannel for both sides
	if r.client != nil {
		if err := r.Subscriber.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if r.client != nil {
		if err := r.client.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errors.Wrap(errs[0], "close relay")
	}
	return nil
}
