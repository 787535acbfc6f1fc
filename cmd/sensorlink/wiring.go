package main

import (
	"context"
	"fmt"

	"github.com/banshee-data/sensor.link/internal/config"
	"github.com/banshee-data/sensor.link/internal/db"
	"github.com/banshee-data/sensor.link/internal/link"
)

// Roles a node can take.
const (
	roleEmitter  = "emitter"
	roleReceiver = "receiver"
	roleBoth     = "both"
)

func parseRole(role string, dev bool) (string, error) {
	if role == "" {
		if dev {
			return roleBoth, nil
		}
		return roleEmitter, nil
	}
	switch role {
	case roleEmitter, roleReceiver, roleBoth:
		return role, nil
	}
	return "", fmt.Errorf("unknown role %q: expected emitter, receiver or both", role)
}

// applyStoredLink overrides the transport section of cfg with the first
// enabled stored link config. It reports the name of the profile applied.
func applyStoredLink(cfg *config.LinkConfig, stored []db.LinkConfig) (string, bool) {
	for _, s := range stored {
		if !s.Enabled {
			continue
		}
		transport := s.Transport
		cfg.Transport = &transport
		if s.PeerID != "" {
			peer := s.PeerID
			cfg.PeerID = &peer
		}
		switch s.Transport {
		case config.TransportSerial:
			cfg.Serial = &config.SerialConfig{
				Port:     s.PortPath,
				BaudRate: s.BaudRate,
				DataBits: s.DataBits,
				StopBits: s.StopBits,
				Parity:   s.Parity,
			}
		case config.TransportMQTT:
			// Keep qos and client_id from the file.
			mqtt := config.MQTTConfig{}
			if cfg.MQTT != nil {
				mqtt = *cfg.MQTT
			}
			mqtt.Broker = s.Broker
			mqtt.TopicPrefix = s.TopicPrefix
			cfg.MQTT = &mqtt
		}
		return s.Name, true
	}
	return "", false
}

// openLinks returns the link this node sends and receives on. For the
// loopback transport the second return value is the peer end so a single
// process can run both roles; it is nil for real transports.
func openLinks(ctx context.Context, cfg *config.LinkConfig) (link.Link, link.Link, error) {
	node := cfg.GetNodeID()

	switch cfg.GetTransport() {
	case config.TransportLoopback:
		a, b := link.NewLoopbackPair(node, cfg.GetPeerID())
		return a, b, nil

	case config.TransportSerial:
		opts := link.PortOptions{
			BaudRate: cfg.Serial.BaudRate,
			DataBits: cfg.Serial.DataBits,
			StopBits: cfg.Serial.StopBits,
			Parity:   cfg.Serial.Parity,
		}
		l, err := link.NewRealSerialLink(cfg.Serial.Port, opts, node)
		if err != nil {
			return nil, nil, err
		}
		return l, nil, nil

	case config.TransportMQTT:
		l, err := link.NewMQTTLink(ctx, node, link.MQTTOptions{
			Broker:      cfg.MQTT.Broker,
			TopicPrefix: cfg.MQTT.TopicPrefix,
			ClientID:    cfg.MQTT.ClientID,
			QoS:         cfg.GetMQTTQoS(),
		})
		if err != nil {
			return nil, nil, err
		}
		return l, nil, nil
	}
	return nil, nil, fmt.Errorf("unknown transport %q", cfg.GetTransport())
}
