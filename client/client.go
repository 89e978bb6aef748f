// Package client provides a small line-oriented client for the relay
// protocol, suitable for tooling and integration tests. It intentionally
// stays synchronous: one command out, server lines read back one at a time.
package client

import (
	"bufio"
	"net"
	"strings"
	"time"
)

// Config holds connection settings for the relay client.
type Config struct {
	// Address is the "host:port" of the relay server.
	Address string
	// DialTimeout is the max duration for establishing the connection.
	DialTimeout time.Duration
	// ReadTimeout is the max duration to wait for one server line; 0 means no timeout.
	ReadTimeout time.Duration
	// WriteTimeout is the max duration for a single command write; 0 means no timeout.
	WriteTimeout time.Duration
}

// DefaultConfig returns a Config with 5 second timeouts for the given address.
func DefaultConfig(address string) Config {
	return Config{
		Address:      address,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
}

// Client is a connected relay protocol client. It is not safe for concurrent
// use; callers needing concurrency should serialize access themselves.
type Client struct {
	config Config
	conn   net.Conn
	reader *bufio.Reader
}

// Dial connects to the relay server at config.Address.
func Dial(config Config) (*Client, error) {
	dialer := net.Dialer{Timeout: config.DialTimeout}
	conn, err := dialer.Dial("tcp", config.Address)
	if err != nil {
		return nil, err
	}

	return &Client{
		config: config,
		conn:   conn,
		reader: bufio.NewReader(conn),
	}, nil
}

// SetReadTimeout adjusts the per-line read timeout; 0 disables it.
func (c *Client) SetReadTimeout(d time.Duration) {
	c.config.ReadTimeout = d
}

// Send writes one command line to the server.
func (c *Client) Send(command string) error {
	if c.config.WriteTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout)); err != nil {
			return err
		}
	}

	_, err := c.conn.Write([]byte(command + "\n"))
	return err
}

// ReadLine blocks for the next server line, stripped of its line ending.
func (c *Client) ReadLine() (string, error) {
	if c.config.ReadTimeout > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout)); err != nil {
			return "", err
		}
	}

	line, err := c.reader.ReadString('\n')
	if err != nil {
		return "", err
	}

	return strings.TrimRight(line, "\r\n"), nil
}

// Login sends LOGIN for name and returns the server's reply line
// (OK or an ERR reason).
func (c *Client) Login(name string) (string, error) {
	if err := c.Send("LOGIN " + name); err != nil {
		return "", err
	}

	return c.ReadLine()
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
