package db

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/banshee-data/sensor.link/internal/link"
)

// ErrNotFound is returned when a link config ID does not exist.
var ErrNotFound = errors.New("link config not found")

// LinkConfig is a stored transport profile for one peer link.
type LinkConfig struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Transport   string `json:"transport"`
	PeerID      string `json:"peer_id"`
	PortPath    string `json:"port_path"`
	BaudRate    int    `json:"baud_rate"`
	DataBits    int    `json:"data_bits"`
	StopBits    int    `json:"stop_bits"`
	Parity      string `json:"parity"`
	Broker      string `json:"broker"`
	TopicPrefix string `json:"topic_prefix"`
	Enabled     bool   `json:"enabled"`
	Description string `json:"description"`
	CreatedAt   int64  `json:"created_at"`
	UpdatedAt   int64  `json:"updated_at"`
}

// Validate checks the fields a transport needs and fills serial defaults.
func (c *LinkConfig) Validate() error {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return errors.New("name is required")
	}
	switch c.Transport {
	case "serial":
		if c.PortPath == "" {
			return errors.New("port_path is required for serial transport")
		}
		opts, err := c.PortOptions().Normalize()
		if err != nil {
			return err
		}
		c.BaudRate, c.DataBits, c.StopBits, c.Parity = opts.BaudRate, opts.DataBits, opts.StopBits, opts.Parity
	case "mqtt":
		if c.Broker == "" {
			return errors.New("broker is required for mqtt transport")
		}
	case "loopback":
	default:
		return fmt.Errorf("unknown transport %q", c.Transport)
	}
	if c.TopicPrefix == "" {
		c.TopicPrefix = link.DefaultTopicPrefix
	}
	if c.Parity == "" {
		c.Parity = "N"
	}
	return nil
}

// PortOptions returns the serial parameters of c.
func (c *LinkConfig) PortOptions() link.PortOptions {
	return link.PortOptions{
		BaudRate: c.BaudRate,
		DataBits: c.DataBits,
		StopBits: c.StopBits,
		Parity:   c.Parity,
	}
}

const linkConfigColumns = `id, name, transport, peer_id, port_path, baud_rate, data_bits, stop_bits,
	parity, broker, topic_prefix, enabled, description, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLinkConfig(row rowScanner) (LinkConfig, error) {
	var c LinkConfig
	var enabled int
	err := row.Scan(&c.ID, &c.Name, &c.Transport, &c.PeerID, &c.PortPath, &c.BaudRate, &c.DataBits,
		&c.StopBits, &c.Parity, &c.Broker, &c.TopicPrefix, &enabled, &c.Description, &c.CreatedAt, &c.UpdatedAt)
	c.Enabled = enabled == 1
	return c, err
}

func (db *DB) queryLinkConfigs(query string, args ...any) ([]LinkConfig, error) {
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query link configs: %w", err)
	}
	defer rows.Close()

	configs := []LinkConfig{}
	for rows.Next() {
		c, err := scanLinkConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan link config: %w", err)
		}
		configs = append(configs, c)
	}
	return configs, rows.Err()
}

// GetLinkConfigs returns all link configurations
func (db *DB) GetLinkConfigs() ([]LinkConfig, error) {
	return db.queryLinkConfigs(`SELECT ` + linkConfigColumns + `
	          FROM link_config
	          ORDER BY created_at ASC, id ASC`)
}

// GetEnabledLinkConfigs returns all enabled link configurations
func (db *DB) GetEnabledLinkConfigs() ([]LinkConfig, error) {
	return db.queryLinkConfigs(`SELECT ` + linkConfigColumns + `
	          FROM link_config
	          WHERE enabled = 1
	          ORDER BY created_at ASC, id ASC`)
}

// GetLinkConfig returns a single link configuration by ID, or nil if it
// does not exist.
func (db *DB) GetLinkConfig(id int) (*LinkConfig, error) {
	c, err := scanLinkConfig(db.QueryRow(`SELECT `+linkConfigColumns+`
	          FROM link_config
	          WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get link config: %w", err)
	}
	return &c, nil
}

// CreateLinkConfig validates and inserts c, setting its ID and timestamps.
func (db *DB) CreateLinkConfig(c *LinkConfig) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid link config: %w", err)
	}

	query := `INSERT INTO link_config (name, transport, peer_id, port_path, baud_rate, data_bits, stop_bits,
	              parity, broker, topic_prefix, enabled, description)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	          RETURNING id, created_at, updated_at`

	err := db.QueryRow(query, c.Name, c.Transport, c.PeerID, c.PortPath, c.BaudRate, c.DataBits, c.StopBits,
		c.Parity, c.Broker, c.TopicPrefix, boolToInt(c.Enabled), c.Description).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create link config: %w", err)
	}
	return nil
}

// UpdateLinkConfig validates c and overwrites the stored row with the same ID.
func (db *DB) UpdateLinkConfig(c *LinkConfig) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid link config: %w", err)
	}

	query := `UPDATE link_config
	          SET name = ?, transport = ?, peer_id = ?, port_path = ?, baud_rate = ?, data_bits = ?,
	              stop_bits = ?, parity = ?, broker = ?, topic_prefix = ?, enabled = ?, description = ?,
	              updated_at = strftime('%s', 'now')
	          WHERE id = ?`

	result, err := db.Exec(query, c.Name, c.Transport, c.PeerID, c.PortPath, c.BaudRate, c.DataBits,
		c.StopBits, c.Parity, c.Broker, c.TopicPrefix, boolToInt(c.Enabled), c.Description, c.ID)
	if err != nil {
		return fmt.Errorf("failed to update link config: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: id %d", ErrNotFound, c.ID)
	}
	return nil
}

// DeleteLinkConfig deletes a link configuration
func (db *DB) DeleteLinkConfig(id int) error {
	result, err := db.Exec(`DELETE FROM link_config WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete link config: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
