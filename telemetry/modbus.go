// Package telemetry reads live reservoir level and suction pressure from
// a Modbus transmitter on the pump-house network, when a site has one
// configured. Most sites do not, and take the level as a CLI argument
// instead; the planner only constructs a Client when an address is
// present in config, and then reads only the level through it.
package telemetry

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/goburrow/modbus"
)

// Register addresses for the level/pressure transmitter this client
// targets: a single holding-register pair reporting level (mm) and one
// reporting suction pressure (millibar), both as unsigned 32-bit values.
const (
	registerLevelMM           = 0
	registerSuctionPressureMB = 2
)

// Client wraps a Modbus TCP connection to a reservoir transmitter.
type Client struct {
	client  modbus.Client
	handler *modbus.TCPClientHandler
}

// NewTCPClient connects to a transmitter at address ("host:port") with
// the given slave ID.
func NewTCPClient(address string, slaveID byte) (*Client, error) {
	handler := modbus.NewTCPClientHandler(address)
	handler.SlaveId = slaveID
	handler.Timeout = 2 * time.Second

	if err := handler.Connect(); err != nil {
		return nil, fmt.Errorf("telemetry: connect %s: %w", address, err)
	}
	return &Client{client: modbus.NewClient(handler), handler: handler}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.handler != nil {
		return c.handler.Close()
	}
	return nil
}

// ReadLevel returns the reservoir level in metres.
func (c *Client) ReadLevel() (float64, error) {
	data, err := c.client.ReadHoldingRegisters(registerLevelMM, 2)
	if err != nil {
		return 0, fmt.Errorf("telemetry: read level: %w", err)
	}
	mm := binary.BigEndian.Uint32(data)
	return float64(mm) / 1000.0, nil
}

// ReadSuctionPressure returns the latest suction pressure in bar.
func (c *Client) ReadSuctionPressure() (float64, error) {
	data, err := c.client.ReadHoldingRegisters(registerSuctionPressureMB, 2)
	if err != nil {
		return 0, fmt.Errorf("telemetry: read suction pressure: %w", err)
	}
	mb := binary.BigEndian.Uint32(data)
	return float64(mb) / 1000.0, nil
}
