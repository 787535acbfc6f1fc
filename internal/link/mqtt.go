package link

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/banshee-data/sensor.link/internal/monitoring"
)

const (
	DefaultTopicPrefix = "sensorlink"
	disconnectQuiesce  = 250 // milliseconds
)

// MQTTOptions configures an MQTT-backed link.
type MQTTOptions struct {
	Broker         string
	TopicPrefix    string
	ClientID       string
	QoS            byte
	ConnectTimeout time.Duration
}

// MQTTLink routes messages through a broker. Each node subscribes to
// <prefix>/<localID>/# and publishes to <prefix>/<dest><path>. The source
// node travels in the payload as SrcLen(1) | Src | Payload.
type MQTTLink struct {
	client     mqtt.Client
	localID    string
	prefix     string
	qos        byte
	hub        *hub
	stats      counters
	done       chan struct{}
	monitoring atomic.Bool
}

// NewMQTTLink connects to the broker and returns a link named localID.
func NewMQTTLink(ctx context.Context, localID string, opts MQTTOptions) (*MQTTLink, error) {
	if opts.Broker == "" {
		return nil, errors.New("mqtt broker address is required")
	}
	clientID := opts.ClientID
	if clientID == "" {
		clientID = "sensorlink-" + uuid.NewString()
	}
	timeout := opts.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	var l *MQTTLink
	clientOpts := mqtt.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(timeout).
		SetOnConnectHandler(func(c mqtt.Client) {
			// A clean session loses subscriptions on reconnect.
			if l != nil && l.monitoring.Load() {
				if err := l.subscribe(context.Background()); err != nil {
					monitoring.Logf("mqtt link %s: resubscribe failed: %v", localID, err)
				}
			}
		}).
		SetConnectionLostHandler(func(c mqtt.Client, err error) {
			monitoring.Logf("mqtt link %s: connection lost: %v", localID, err)
		})

	client := mqtt.NewClient(clientOpts)
	l = newMQTTLink(client, localID, opts)
	if err := waitToken(ctx, client.Connect()); err != nil {
		return nil, fmt.Errorf("connect to mqtt broker %s: %w", opts.Broker, err)
	}
	monitoring.Logf("mqtt link %s connected to %s as %s", localID, opts.Broker, clientID)
	return l, nil
}

func newMQTTLink(client mqtt.Client, localID string, opts MQTTOptions) *MQTTLink {
	prefix := strings.Trim(opts.TopicPrefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return &MQTTLink{
		client:  client,
		localID: localID,
		prefix:  prefix,
		qos:     opts.QoS,
		hub:     newHub(),
		done:    make(chan struct{}),
	}
}

// TopicFor returns the topic a message for dest under path is published on.
func TopicFor(prefix, dest, path string) string {
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return prefix + "/" + dest + path
}

// ParseTopic splits a topic produced by TopicFor back into dest and path.
func ParseTopic(prefix, topic string) (dest, path string, ok bool) {
	rest, found := strings.CutPrefix(topic, prefix+"/")
	if !found || rest == "" {
		return "", "", false
	}
	dest, tail, hasPath := strings.Cut(rest, "/")
	if dest == "" {
		return "", "", false
	}
	if hasPath {
		path = "/" + tail
	}
	return dest, path, true
}

func (l *MQTTLink) LocalID() string { return l.localID }

func (l *MQTTLink) Subscribe() (string, chan Message) { return l.hub.subscribe() }

func (l *MQTTLink) Unsubscribe(id string) { l.hub.unsubscribe(id) }

func (l *MQTTLink) Stats() Stats { return l.stats.snapshot() }

// Send publishes payload and waits for the broker to accept it.
func (l *MQTTLink) Send(ctx context.Context, dest, path string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return l.stats.sendResult(err)
	}
	if l.hub.isClosing() {
		return l.stats.sendResult(ErrClosed)
	}
	if len(l.localID) > maxFieldLen {
		return l.stats.sendResult(fmt.Errorf("%w: source id of %d bytes", ErrEnvelopeTooLarge, len(l.localID)))
	}

	body := make([]byte, 0, 1+len(l.localID)+len(payload))
	body = append(body, byte(len(l.localID)))
	body = append(body, l.localID...)
	body = append(body, payload...)

	tok := l.client.Publish(TopicFor(l.prefix, dest, path), l.qos, false, body)
	return l.stats.sendResult(waitToken(ctx, tok))
}

// Monitor subscribes to this node's topic tree and blocks until ctx is done
// or the link is closed.
func (l *MQTTLink) Monitor(ctx context.Context) error {
	l.monitoring.Store(true)
	defer l.monitoring.Store(false)

	if err := l.subscribe(ctx); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		return nil
	}
}

func (l *MQTTLink) subscribe(ctx context.Context) error {
	topic := l.prefix + "/" + l.localID + "/#"
	tok := l.client.Subscribe(topic, l.qos, func(_ mqtt.Client, m mqtt.Message) {
		l.handleMessage(m.Topic(), m.Payload())
	})
	if err := waitToken(ctx, tok); err != nil {
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}
	return nil
}

func (l *MQTTLink) handleMessage(topic string, payload []byte) {
	dest, path, ok := ParseTopic(l.prefix, topic)
	if !ok || dest != l.localID || len(payload) < 1 {
		l.stats.dropped.Add(1)
		return
	}
	srcLen := int(payload[0])
	if len(payload) < 1+srcLen {
		l.stats.dropped.Add(1)
		return
	}
	if l.hub.isClosing() {
		return
	}
	l.stats.received.Add(1)
	l.hub.publish(Message{
		Source:  string(payload[1 : 1+srcLen]),
		Dest:    dest,
		Path:    path,
		Payload: append([]byte(nil), payload[1+srcLen:]...),
	})
}

// Close disconnects from the broker. Closing twice is a no-op.
func (l *MQTTLink) Close() error {
	if !l.hub.close() {
		return nil
	}
	close(l.done)
	l.client.Disconnect(disconnectQuiesce)
	return nil
}

func (l *MQTTLink) AttachAdminRoutes(mux *http.ServeMux) {
	attachAdminRoutes(mux, l)
}

// waitToken waits for a paho token without outliving ctx.
func waitToken(ctx context.Context, tok mqtt.Token) error {
	select {
	case <-tok.Done():
		return tok.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
