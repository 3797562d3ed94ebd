package sshmcp

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// Defaults applied by NewConnectionConfig.
const (
	DefaultPort              = 22
	DefaultTimeout           = 30 * time.Second
	DefaultKeepaliveInterval = 60 * time.Second
	MinTimeout               = time.Second
)

// AuthMethod selects which credential a connection authenticates with.
type AuthMethod string

const (
	// AuthPassword authenticates with ConnectionConfig.Password.
	AuthPassword AuthMethod = "password"
	// AuthPrivateKey authenticates with the key at PrivateKeyPath, or with
	// the default identities under ~/.ssh when LookForKeys is set.
	AuthPrivateKey AuthMethod = "private_key"
	// AuthAgent authenticates with keys held by the SSH agent.
	AuthAgent AuthMethod = "agent"
)

// ParseAuthMethod converts a user-supplied string to an AuthMethod.
// An empty string yields AuthPrivateKey.
func ParseAuthMethod(s string) (AuthMethod, error) {
	switch AuthMethod(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return AuthPrivateKey, nil
	case AuthPassword:
		return AuthPassword, nil
	case AuthPrivateKey, "key", "privatekey":
		return AuthPrivateKey, nil
	case AuthAgent:
		return AuthAgent, nil
	default:
		return "", &ConfigError{Field: "auth_method", Reason: fmt.Sprintf("%q is not one of password, private_key, agent", s)}
	}
}

// ConnectionConfig describes one endpoint, its credentials and tunables.
// It is a plain value: build it with NewConnectionConfig and copy it freely.
//
// Only the credential matching AuthMethod is used to authenticate; the other
// credential fields are ignored.
type ConnectionConfig struct {
	Host       string
	Port       int
	Username   string
	AuthMethod AuthMethod

	Password       string
	PrivateKeyPath string
	Passphrase     string

	Timeout           time.Duration // Connect timeout. Must be at least one second.
	KeepaliveInterval time.Duration // Zero disables keepalives.
	Compress          bool
	LookForKeys       bool // Try ~/.ssh/id_* when no key path is given.
	AllowAgent        bool // Fall back to agent keys for key auth.
}

// NewConnectionConfig builds a validated ConnectionConfig.
// Defaults: port 22, private_key auth, 30s timeout, 60s keepalive,
// LookForKeys and AllowAgent enabled.
func NewConnectionConfig(host, username string, opts ...ConfigOption) (ConnectionConfig, error) {
	cfg := ConnectionConfig{
		Host:              host,
		Port:              DefaultPort,
		Username:          username,
		AuthMethod:        AuthPrivateKey,
		Timeout:           DefaultTimeout,
		KeepaliveInterval: DefaultKeepaliveInterval,
		LookForKeys:       true,
		AllowAgent:        true,
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.Validate(); err != nil {
		return ConnectionConfig{}, err
	}

	return cfg, nil
}

// Validate checks field ranges. It performs no I/O.
func (c ConnectionConfig) Validate() error {
	if strings.TrimSpace(c.Host) == "" {
		return &ConfigError{Field: "host", Reason: "cannot be empty"}
	}

	if strings.TrimSpace(c.Username) == "" {
		return &ConfigError{Field: "username", Reason: "cannot be empty"}
	}

	if c.Port < 1 || c.Port > 65535 {
		return &ConfigError{Field: "port", Reason: fmt.Sprintf("%d is outside 1-65535", c.Port)}
	}

	if c.Timeout < MinTimeout {
		return &ConfigError{Field: "timeout", Reason: fmt.Sprintf("%s is below the 1s minimum", c.Timeout)}
	}

	if c.KeepaliveInterval < 0 {
		return &ConfigError{Field: "keepalive_interval", Reason: "cannot be negative"}
	}

	switch c.AuthMethod {
	case AuthPassword, AuthPrivateKey, AuthAgent:
	default:
		return &ConfigError{Field: "auth_method", Reason: fmt.Sprintf("%q is not one of password, private_key, agent", c.AuthMethod)}
	}

	return nil
}

// Address returns host:port suitable for net.Dial.
func (c ConnectionConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// String describes the endpoint without credentials.
func (c ConnectionConfig) String() string {
	return fmt.Sprintf("%s@%s", c.Username, c.Address())
}
