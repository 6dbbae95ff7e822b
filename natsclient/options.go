package natsclient

import (
	"errors"
	"time"
)

// ClientOption configures a Client.
type ClientOption func(*Client) error

// WithCredentials sets username/password authentication.
func WithCredentials(username, password string) ClientOption {
	return func(c *Client) error {
		c.username = username
		c.password = password
		return nil
	}
}

// WithToken sets token authentication.
func WithToken(token string) ClientOption {
	return func(c *Client) error {
		c.token = token
		return nil
	}
}

// WithClientName sets the connection name reported to the server.
func WithClientName(name string) ClientOption {
	return func(c *Client) error {
		c.clientName = name
		return nil
	}
}

// WithTimeout sets the connect timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) error {
		if timeout <= 0 {
			return errors.New("timeout must be positive")
		}
		c.timeout = timeout
		return nil
	}
}

// WithReconnect tunes the automatic reconnect behavior. maxReconnects of -1
// means retry forever.
func WithReconnect(maxReconnects int, wait time.Duration) ClientOption {
	return func(c *Client) error {
		if wait <= 0 {
			return errors.New("reconnect wait must be positive")
		}
		c.maxReconnects = maxReconnects
		c.reconnectWait = wait
		return nil
	}
}

// WithCircuitBreaker tunes how many consecutive connect failures open the
// circuit and how long it stays open.
func WithCircuitBreaker(threshold int32, resetWait time.Duration) ClientOption {
	return func(c *Client) error {
		if threshold <= 0 || resetWait <= 0 {
			return errors.New("threshold and reset wait must be positive")
		}
		c.circuitThreshold = threshold
		c.circuitResetWait = resetWait
		return nil
	}
}
