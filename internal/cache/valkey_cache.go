package cache

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/valkey-io/valkey-go"
)

// ParseValkeyURL extracts connection details from a valkey://, redis:// or rediss:// URL.
// A path of /N selects database N.
func ParseValkeyURL(valkeyURL string) (valkey.ClientOption, error) {
	var opt valkey.ClientOption

	u, err := url.Parse(valkeyURL)
	if err != nil {
		return opt, fmt.Errorf("invalid URL format: %w", err)
	}

	switch u.Scheme {
	case "valkey", "redis":
	case "valkeys", "rediss":
		opt.TLSConfig = &tls.Config{ServerName: u.Hostname(), MinVersion: tls.VersionTLS12}
	default:
		return opt, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	if u.Host == "" {
		return opt, fmt.Errorf("missing host in URL")
	}
	opt.InitAddress = []string{u.Host}

	if u.User != nil {
		opt.Username = u.User.Username()
		opt.Password, _ = u.User.Password()
	}

	if db := strings.Trim(u.Path, "/"); db != "" {
		n, err := strconv.Atoi(db)
		if err != nil || n < 0 {
			return opt, fmt.Errorf("invalid database %q in URL", db)
		}
		opt.SelectDB = n
	}
	return opt, nil
}

// NewValkeyClient connects to Valkey and verifies the connection with a PING
func NewValkeyClient(ctx context.Context, valkeyURL string) (valkey.Client, error) {
	opt, err := ParseValkeyURL(valkeyURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Valkey URL: %w", err)
	}

	client, err := valkey.NewClient(opt)
	if err != nil {
		return nil, fmt.Errorf("failed to create Valkey client: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Valkey: %w", err)
	}
	return client, nil
}

// valkeyCache implements Cache interface using Valkey
type valkeyCache struct {
	client valkey.Client
	prefix string
}

// NewValkeyCache creates a cache over an existing client. Keys are stored under prefix.
func NewValkeyCache(client valkey.Client, prefix string) Cache {
	return &valkeyCache{client: client, prefix: prefix}
}

// Get retrieves a value from Valkey
func (c *valkeyCache) Get(ctx context.Context, key string) ([]byte, error) {
	result := c.client.Do(ctx, c.client.B().Get().Key(c.prefix+key).Build())
	if err := result.Error(); err != nil {
		if valkey.IsValkeyNil(err) {
			return nil, nil // Key doesn't exist
		}
		return nil, &CacheError{Operation: "get", Key: key, Err: err}
	}

	data, err := result.AsBytes()
	if err != nil {
		return nil, &CacheError{Operation: "get", Key: key, Err: err}
	}
	return data, nil
}

// Set stores a value in Valkey with expiration
func (c *valkeyCache) Set(ctx context.Context, key string, value []byte, expiration time.Duration) error {
	var cmd valkey.Completed
	if expiration > 0 {
		cmd = c.client.B().Set().Key(c.prefix + key).Value(valkey.BinaryString(value)).Ex(expiration).Build()
	} else {
		cmd = c.client.B().Set().Key(c.prefix + key).Value(valkey.BinaryString(value)).Build()
	}

	if err := c.client.Do(ctx, cmd).Error(); err != nil {
		return &CacheError{Operation: "set", Key: key, Err: err}
	}
	return nil
}

// Delete removes a key from Valkey
func (c *valkeyCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Do(ctx, c.client.B().Del().Key(c.prefix+key).Build()).Error(); err != nil {
		return &CacheError{Operation: "delete", Key: key, Err: err}
	}
	return nil
}

// Exists checks if a key exists in Valkey
func (c *valkeyCache) Exists(ctx context.Context, key string) (bool, error) {
	count, err := c.client.Do(ctx, c.client.B().Exists().Key(c.prefix+key).Build()).AsInt64()
	if err != nil {
		return false, &CacheError{Operation: "exists", Key: key, Err: err}
	}
	return count > 0, nil
}

// Close is a no-op: the client is owned by whoever created it
func (c *valkeyCache) Close() error {
	return nil
}

// Health checks Valkey health
func (c *valkeyCache) Health(ctx context.Context) error {
	if err := c.client.Do(ctx, c.client.B().Ping().Build()).Error(); err != nil {
		return fmt.Errorf("Valkey health check failed: %w", err)
	}
	return nil
}
