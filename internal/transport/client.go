package transport

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"time"
)

// DefaultExchangeTimeout bounds one command round trip from the controller
// side. It sits well above the agent's response poll window.
const DefaultExchangeTimeout = 2 * time.Second

// Client is a controller-side connection to the agent's socket. One client
// maps to one exclusive channel; commands run strictly in sequence.
type Client struct {
	conn    net.Conn
	reader  *bufio.Reader
	timeout time.Duration
}

// Dial connects to the agent socket. A non-positive timeout falls back to
// DefaultExchangeTimeout.
func Dial(socketPath string, timeout time.Duration) (*Client, error) {
	if timeout <= 0 {
		timeout = DefaultExchangeTimeout
	}
	conn, err := net.DialTimeout("unix", socketPath, timeout)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", socketPath, err)
	}
	return &Client{
		conn:    conn,
		reader:  bufio.NewReader(conn),
		timeout: timeout,
	}, nil
}

// Exchange sends one command line and waits for its response line.
func (c *Client) Exchange(command string) (string, error) {
	if err := c.conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
		return "", fmt.Errorf("setting deadline: %w", err)
	}

	if _, err := fmt.Fprintln(c.conn, command); err != nil {
		return "", fmt.Errorf("sending command: %w", err)
	}

	line, err := c.reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
