package sshmcp_test

import (
	"testing"
	"time"

	"github.com/ruffel/sshmcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConnectionConfig_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := sshmcp.NewConnectionConfig("10.0.0.5", "ops")
	require.NoError(t, err)

	assert.Equal(t, sshmcp.ConnectionConfig{
		Host:              "10.0.0.5",
		Port:              22,
		Username:          "ops",
		AuthMethod:        sshmcp.AuthPrivateKey,
		Timeout:           30 * time.Second,
		KeepaliveInterval: 60 * time.Second,
		LookForKeys:       true,
		AllowAgent:        true,
	}, cfg)
	assert.Equal(t, "10.0.0.5:22", cfg.Address())
	assert.Equal(t, "ops@10.0.0.5:22", cfg.String())
}

func TestNewConnectionConfig_Options(t *testing.T) {
	t.Parallel()

	cfg, err := sshmcp.NewConnectionConfig("::1", "root",
		sshmcp.WithPort(2222),
		sshmcp.WithPassword("pw"),
		sshmcp.WithTimeout(5*time.Second),
		sshmcp.WithKeepaliveInterval(0),
		sshmcp.WithCompression(true),
		sshmcp.WithLookForKeys(false),
		sshmcp.WithAllowAgent(false),
	)
	require.NoError(t, err)

	assert.Equal(t, sshmcp.AuthPassword, cfg.AuthMethod)
	assert.Equal(t, "pw", cfg.Password)
	assert.Equal(t, 2222, cfg.Port)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Zero(t, cfg.KeepaliveInterval)
	assert.True(t, cfg.Compress)
	assert.False(t, cfg.LookForKeys)
	assert.False(t, cfg.AllowAgent)
	assert.Equal(t, "[::1]:2222", cfg.Address())
}

func TestNewConnectionConfig_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		host      string
		user      string
		opts      []sshmcp.ConfigOption
		wantField string
	}{
		{name: "empty host", host: "", user: "ops", wantField: "host"},
		{name: "blank host", host: "   ", user: "ops", wantField: "host"},
		{name: "empty username", host: "h", user: "", wantField: "username"},
		{name: "port zero", host: "h", user: "ops", opts: []sshmcp.ConfigOption{sshmcp.WithPort(0)}, wantField: "port"},
		{name: "port out of range", host: "h", user: "ops", opts: []sshmcp.ConfigOption{sshmcp.WithPort(70000)}, wantField: "port"},
		{name: "timeout below minimum", host: "h", user: "ops", opts: []sshmcp.ConfigOption{sshmcp.WithTimeout(500 * time.Millisecond)}, wantField: "timeout"},
		{name: "negative keepalive", host: "h", user: "ops", opts: []sshmcp.ConfigOption{sshmcp.WithKeepaliveInterval(-time.Second)}, wantField: "keepalive_interval"},
		{name: "unknown auth method", host: "h", user: "ops", opts: []sshmcp.ConfigOption{sshmcp.WithAuthMethod("kerberos")}, wantField: "auth_method"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := sshmcp.NewConnectionConfig(tt.host, tt.user, tt.opts...)
			require.ErrorIs(t, err, sshmcp.ErrInvalidConfiguration)

			var cfgErr *sshmcp.ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.wantField, cfgErr.Field)
		})
	}
}

func TestNewConnectionConfig_MinimumTimeoutAccepted(t *testing.T) {
	t.Parallel()

	cfg, err := sshmcp.NewConnectionConfig("h", "ops", sshmcp.WithTimeout(time.Second))
	require.NoError(t, err)
	assert.Equal(t, time.Second, cfg.Timeout)
}

func TestParseAuthMethod(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    sshmcp.AuthMethod
		wantErr bool
	}{
		{in: "", want: sshmcp.AuthPrivateKey},
		{in: "password", want: sshmcp.AuthPassword},
		{in: " Password ", want: sshmcp.AuthPassword},
		{in: "private_key", want: sshmcp.AuthPrivateKey},
		{in: "key", want: sshmcp.AuthPrivateKey},
		{in: "privatekey", want: sshmcp.AuthPrivateKey},
		{in: "agent", want: sshmcp.AuthAgent},
		{in: "kerberos", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()

			got, err := sshmcp.ParseAuthMethod(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, sshmcp.ErrInvalidConfiguration)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
