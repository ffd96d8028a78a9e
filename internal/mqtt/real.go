package mqtt

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/sony/gobreaker"

	"github.com/sweeney/irrigation-controller/internal/logic"
)

const (
	// DefaultBufferSize is the number of messages kept while disconnected.
	DefaultBufferSize = 256

	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
)

var errTimeout = errors.New("timeout")

// Options configures a RealClient.
type Options struct {
	Broker     string
	ClientID   string
	Topics     Topics
	OnCommand  CommandHandler // nil disables the command subscription
	BufferSize int
}

// RealClient publishes to and receives commands from an actual MQTT broker.
// The broker being unreachable never blocks the caller: messages are kept in
// a ring buffer and replayed once a connection is established.
type RealClient struct {
	client    paho.Client
	topics    Topics
	onCommand CommandHandler
	breaker   *gobreaker.CircuitBreaker

	mu            sync.Mutex
	buf           *ringBuffer
	everConnected bool

	cancel context.CancelFunc
	done   chan struct{}
}

// NewRealClient creates a client and starts connecting in the background.
func NewRealClient(opts Options) *RealClient {
	c := newRealClient(opts)
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.connectLoop(ctx)
	return c
}

func newRealClient(opts Options) *RealClient {
	size := opts.BufferSize
	if size <= 0 {
		size = DefaultBufferSize
	}
	c := &RealClient{
		topics:    opts.Topics,
		onCommand: opts.OnCommand,
		buf:       newRingBuffer(size),
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     "mqtt-publish",
		Interval: time.Minute,
		Timeout:  30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("mqtt: breaker %s %s -> %s", name, from, to)
		},
	})

	will, _ := FormatSystemPayload(SystemEvent{Event: "OFFLINE"})
	popts := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectTimeout(connectTimeout/2).
		SetWill(opts.Topics.System, string(will), 1, true).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Printf("mqtt: connection lost: %v", err)
		})
	c.client = paho.NewClient(popts)
	return c
}

// connectLoop retries the first connection until it succeeds or the client
// is closed. Later drops are handled by paho's auto-reconnect.
func (c *RealClient) connectLoop(ctx context.Context) {
	defer close(c.done)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.MaxInterval = time.Minute
	bo.MaxElapsedTime = 0

	err := backoff.RetryNotify(func() error {
		token := c.client.Connect()
		if !token.WaitTimeout(connectTimeout) {
			return errTimeout
		}
		return token.Error()
	}, backoff.WithContext(bo, ctx), func(err error, next time.Duration) {
		log.Printf("mqtt: connect failed: %v (retry in %v)", err, next.Round(time.Second))
	})
	if err != nil && ctx.Err() == nil {
		log.Printf("mqtt: gave up connecting: %v", err)
	}
}

func (c *RealClient) onConnect(client paho.Client) {
	if c.onCommand != nil {
		token := client.Subscribe(c.topics.CommandFilter(), 1, func(_ paho.Client, msg paho.Message) {
			c.dispatch(msg.Topic(), msg.Payload())
		})
		if !token.WaitTimeout(connectTimeout) {
			log.Printf("mqtt: subscribe %s: %v", c.topics.CommandFilter(), errTimeout)
		} else if err := token.Error(); err != nil {
			log.Printf("mqtt: subscribe %s: %v", c.topics.CommandFilter(), err)
		}
	}

	c.mu.Lock()
	reconnect := c.everConnected
	c.everConnected = true
	c.mu.Unlock()

	if reconnect {
		payload, _ := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "RECONNECTED"})
		if err := c.send(bufferedMsg{topic: c.topics.System, payload: payload, qos: 1, retained: true}); err != nil {
			log.Printf("mqtt: %v", err)
		}
	}
	log.Printf("mqtt: connected (reconnect=%v)", reconnect)
	c.flush()
}

// dispatch parses an inbound command message and hands it to the handler.
func (c *RealClient) dispatch(topic string, payload []byte) {
	cmd, err := ParseCommand(c.topics.CommandName(topic), payload)
	if err != nil {
		log.Printf("mqtt: ignoring %s: %v", topic, err)
		return
	}
	c.onCommand(cmd)
}

// Publish sends a transition event to the MQTT broker.
func (c *RealClient) Publish(event logic.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	// QoS 0 (at-most-once), not retained
	return c.publish(bufferedMsg{topic: c.topics.Events, payload: payload})
}

// PublishState sends the retained state snapshot.
func (c *RealClient) PublishState(snap logic.Snapshot, t time.Time) error {
	payload, err := FormatStatePayload(snap, t)
	if err != nil {
		return fmt.Errorf("format state payload: %w", err)
	}
	return c.publish(bufferedMsg{topic: c.topics.State, payload: payload, qos: 1, retained: true})
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (c *RealClient) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	// QoS 1 (at-least-once) for lifecycle events
	return c.publish(bufferedMsg{topic: c.topics.System, payload: payload, qos: 1, retained: event.Retained})
}

func (c *RealClient) publish(msg bufferedMsg) error {
	if !c.client.IsConnectionOpen() {
		c.mu.Lock()
		c.buf.push(msg)
		c.mu.Unlock()
		return nil
	}
	if err := c.send(msg); err != nil {
		return err
	}
	c.flush()
	return nil
}

// send publishes one message through the breaker. Failed messages go back
// into the buffer.
func (c *RealClient) send(msg bufferedMsg) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		token := c.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
		if !token.WaitTimeout(publishTimeout) {
			return nil, errTimeout
		}
		return nil, token.Error()
	})
	if err != nil {
		c.mu.Lock()
		c.buf.push(msg)
		c.mu.Unlock()
		return fmt.Errorf("publish %s: %w", msg.topic, err)
	}
	return nil
}

// flush replays buffered messages in order, stopping at the first failure.
func (c *RealClient) flush() {
	c.mu.Lock()
	pending := c.buf.drainAll()
	c.mu.Unlock()
	if len(pending) == 0 {
		return
	}

	for i, msg := range pending {
		if err := c.send(msg); err != nil {
			log.Printf("mqtt: replay stopped: %v", err)
			c.mu.Lock()
			for _, rest := range pending[i+1:] {
				c.buf.push(rest)
			}
			c.mu.Unlock()
			return
		}
	}
	log.Printf("mqtt: replayed %d buffered messages", len(pending))
}

// Buffered returns the number of messages waiting for a connection.
func (c *RealClient) Buffered() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.len()
}

// IsConnected reports whether the broker connection is currently up.
func (c *RealClient) IsConnected() bool {
	return c.client.IsConnectionOpen()
}

// Close stops connection attempts and disconnects from the broker.
func (c *RealClient) Close() error {
	if c.cancel != nil {
		c.cancel()
		<-c.done
	}
	if c.client.IsConnected() {
		c.client.Disconnect(1000) // 1 second timeout
	}
	return nil
}
