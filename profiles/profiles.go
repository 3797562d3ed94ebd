// Package profiles persists the saved default login and named host profiles
// used to open sessions without repeating connection details.
//
// The file format follows the path extension (json or yaml). The
// default login can be overridden from the environment with SSHMCP_DEFAULT_*
// variables, e.g. SSHMCP_DEFAULT_PASSWORD.
package profiles

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/ruffel/sshmcp"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides.
const EnvPrefix = "SSHMCP"

var (
	// ErrNoDefault is returned when no default login has been saved.
	ErrNoDefault = errors.New("no default login configured")
	// ErrHostNotFound is returned for unknown host profile names.
	ErrHostNotFound = errors.New("host not found")
)

// Login holds the connection details of one endpoint.
type Login struct {
	Host           string `json:"host"                       mapstructure:"host"`
	Port           int    `json:"port,omitempty"             mapstructure:"port"`
	Username       string `json:"username"                   mapstructure:"username"`
	Password       string `json:"password,omitempty"         mapstructure:"password"`
	PrivateKeyPath string `json:"private_key_path,omitempty" mapstructure:"private_key_path"`
	Passphrase     string `json:"passphrase,omitempty"       mapstructure:"passphrase"`
	AuthMethod     string `json:"auth_method,omitempty"      mapstructure:"auth_method"`
	Timeout        int    `json:"timeout,omitempty"          mapstructure:"timeout"` // seconds
}

// Host is a named Login.
type Host struct {
	Name  string `json:"name" mapstructure:"name"`
	Login `mapstructure:",squash"`
}

// File is the on-disk document.
type File struct {
	Default *Login `json:"default,omitempty" mapstructure:"default"`
	Hosts   []Host `json:"hosts,omitempty"   mapstructure:"hosts"`
}

var loginKeys = []string{
	"host", "port", "username", "password",
	"private_key_path", "passphrase", "auth_method", "timeout",
}

// DefaultPath returns $SSHMCP_CONFIG, or ~/.config/sshmcp/config.json.
func DefaultPath() string {
	if p := os.Getenv(EnvPrefix + "_CONFIG"); p != "" {
		return expandTilde(p)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}

	return filepath.Join(home, ".config", "sshmcp", "config.json")
}

// Store reads and writes a profile file. Methods are safe for concurrent use
// within one process.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore returns a store backed by path, or DefaultPath when path is empty.
func NewStore(path string) *Store {
	if path == "" {
		path = DefaultPath()
	}

	return &Store{path: expandTilde(path)}
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads the file with environment overrides applied. A missing file
// yields an empty File.
func (s *Store) Load() (*File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.read(true)
}

// Save replaces the file contents with f.
func (s *Store) Save(f *File) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.write(f)
}

// Default returns the saved default login.
func (s *Store) Default() (Login, error) {
	f, err := s.Load()
	if err != nil {
		return Login{}, err
	}

	if f.Default == nil {
		return Login{}, ErrNoDefault
	}

	return *f.Default, nil
}

// SetDefault saves l as the default login, keeping host profiles.
func (s *Store) SetDefault(l Login) error {
	return s.update(func(f *File) error {
		f.Default = &l

		return nil
	})
}

// Host returns the profile called name.
func (s *Store) Host(name string) (Host, error) {
	f, err := s.Load()
	if err != nil {
		return Host{}, err
	}

	for _, h := range f.Hosts {
		if h.Name == name {
			return h, nil
		}
	}

	return Host{}, fmt.Errorf("%w: %q", ErrHostNotFound, name)
}

// Hosts returns every profile ordered by name.
func (s *Store) Hosts() ([]Host, error) {
	f, err := s.Load()
	if err != nil {
		return nil, err
	}

	hosts := slices.Clone(f.Hosts)
	slices.SortFunc(hosts, func(a, b Host) int {
		return strings.Compare(a.Name, b.Name)
	})

	return hosts, nil
}

// AddHost saves h, replacing any profile with the same name.
func (s *Store) AddHost(h Host) error {
	if strings.TrimSpace(h.Name) == "" {
		return &sshmcp.ConfigError{Field: "name", Reason: "cannot be empty"}
	}

	return s.update(func(f *File) error {
		for i := range f.Hosts {
			if f.Hosts[i].Name == h.Name {
				f.Hosts[i] = h

				return nil
			}
		}

		f.Hosts = append(f.Hosts, h)

		return nil
	})
}

// RemoveHost deletes the profile called name.
func (s *Store) RemoveHost(name string) error {
	return s.update(func(f *File) error {
		n := len(f.Hosts)

		f.Hosts = slices.DeleteFunc(f.Hosts, func(h Host) bool { return h.Name == name })
		if len(f.Hosts) == n {
			return fmt.Errorf("%w: %q", ErrHostNotFound, name)
		}

		return nil
	})
}

// update applies fn to the file as stored on disk, without environment
// overrides, so overrides are never persisted.
func (s *Store) update(fn func(*File) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.read(false)
	if err != nil {
		return err
	}

	if err := fn(f); err != nil {
		return err
	}

	return s.write(f)
}

func (s *Store) read(withEnv bool) (*File, error) {
	v := viper.New()
	v.SetConfigFile(s.path)

	if withEnv {
		v.SetEnvPrefix(EnvPrefix)
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

		for _, k := range loginKeys {
			_ = v.BindEnv("default." + k)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.Is(err, fs.ErrNotExist) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read profiles %s: %w", s.path, err)
		}
	}

	f := &File{}
	if err := v.Unmarshal(f); err != nil {
		return nil, fmt.Errorf("failed to decode profiles %s: %w", s.path, err)
	}

	return f, nil
}

func (s *Store) write(f *File) error {
	raw, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("failed to encode profiles: %w", err)
	}

	settings := map[string]any{}
	if err := json.Unmarshal(raw, &settings); err != nil {
		return fmt.Errorf("failed to encode profiles: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("failed to create profile directory: %w", err)
	}

	// The file holds passwords; create it private before viper writes it.
	fh, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("failed to write profiles %s: %w", s.path, err)
	}

	_ = fh.Close()

	v := viper.New()
	if err := v.MergeConfigMap(settings); err != nil {
		return fmt.Errorf("failed to encode profiles: %w", err)
	}

	if err := v.WriteConfigAs(s.path); err != nil {
		return fmt.Errorf("failed to write profiles %s: %w", s.path, err)
	}

	return os.Chmod(s.path, 0o600)
}

// ToConnectionConfig converts l to a validated connection config. Unset
// fields take the connection defaults. Without an explicit auth method a
// login with a password uses password auth, otherwise key auth.
func (l Login) ToConnectionConfig(opts ...sshmcp.ConfigOption) (sshmcp.ConnectionConfig, error) {
	base := []sshmcp.ConfigOption{}

	if l.Port != 0 {
		base = append(base, sshmcp.WithPort(l.Port))
	}

	if l.Timeout > 0 {
		base = append(base, sshmcp.WithTimeout(time.Duration(l.Timeout)*time.Second))
	}

	method := sshmcp.AuthPrivateKey
	if l.Password != "" {
		method = sshmcp.AuthPassword
	}

	if l.AuthMethod != "" {
		m, err := sshmcp.ParseAuthMethod(l.AuthMethod)
		if err != nil {
			return sshmcp.ConnectionConfig{}, err
		}

		method = m
	}

	base = append(base, func(c *sshmcp.ConnectionConfig) {
		c.Password = l.Password
		c.PrivateKeyPath = expandTilde(l.PrivateKeyPath)
		c.Passphrase = l.Passphrase
		c.AuthMethod = method
	})

	return sshmcp.NewConnectionConfig(l.Host, l.Username, append(base, opts...)...)
}

func expandTilde(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	return filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
}
