// Package dispatch maps named tool calls onto the session registry, the
// saved profiles and key generation. Every call renders plain text so the
// same table can back the MCP server and the CLI.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/ruffel/sshmcp"
	"github.com/ruffel/sshmcp/internal/logging"
	"github.com/ruffel/sshmcp/profiles"
	sshprovider "github.com/ruffel/sshmcp/providers/ssh"
)

// ParamType is the JSON type of a tool parameter.
type ParamType string

const (
	String  ParamType = "string"
	Integer ParamType = "integer"
	Boolean ParamType = "boolean"
)

// Param describes one tool argument.
type Param struct {
	Name        string
	Type        ParamType
	Description string
	Required    bool
	Enum        []string
	Default     any
}

// Handler runs a tool and returns its text output.
type Handler func(ctx context.Context, args Args) (string, error)

// Tool is one entry in the dispatch table.
type Tool struct {
	Name        string
	Description string
	Params      []Param
	Handler     Handler
}

// Result is the rendered outcome of a call.
type Result struct {
	Text    string
	IsError bool
}

// AliasResolver turns an OpenSSH config alias into a connection config.
type AliasResolver func(alias string, opts ...sshmcp.ConfigOption) (sshmcp.ConnectionConfig, error)

// Dispatcher routes tool calls by name.
type Dispatcher struct {
	registry *sshmcp.Registry
	profiles *profiles.Store
	resolve  AliasResolver
	logger   zerolog.Logger

	tools  []Tool
	byName map[string]int
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the dispatcher logger.
func WithLogger(l zerolog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = l
	}
}

// WithAliasResolver overrides how ssh_connect resolves the alias argument.
// The default reads ~/.ssh/config.
func WithAliasResolver(fn AliasResolver) Option {
	return func(d *Dispatcher) {
		d.resolve = fn
	}
}

// New builds the dispatch table over registry and store.
func New(registry *sshmcp.Registry, store *profiles.Store, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		registry: registry,
		profiles: store,
		logger:   zerolog.Nop(),
		resolve: func(alias string, opts ...sshmcp.ConfigOption) (sshmcp.ConnectionConfig, error) {
			return sshprovider.ResolveAlias(alias, "", opts...)
		},
	}

	for _, opt := range opts {
		opt(d)
	}

	d.tools = d.table()
	d.byName = make(map[string]int, len(d.tools))

	for i, t := range d.tools {
		d.byName[t.Name] = i
	}

	return d
}

// Tools returns the dispatch table in registration order.
func (d *Dispatcher) Tools() []Tool {
	return d.tools
}

// Tool returns the named tool.
func (d *Dispatcher) Tool(name string) (Tool, bool) {
	i, ok := d.byName[name]
	if !ok {
		return Tool{}, false
	}

	return d.tools[i], true
}

// Call runs the named tool. Failures are rendered as "Error: <message>" and
// flagged; they are never returned as Go errors.
func (d *Dispatcher) Call(ctx context.Context, name string, args map[string]any) Result {
	tool, ok := d.Tool(name)
	if !ok {
		d.logger.Warn().Str("tool", name).Msg("unknown tool")

		return Result{Text: "Unknown tool: " + name, IsError: true}
	}

	log := d.logger.With().Str("tool", name).Logger()
	log.Debug().Interface("args", logging.RedactArgs(args)).Msg("call")

	start := time.Now()

	text, err := tool.Handler(logging.WithContext(ctx, log), Args(args))
	if err != nil {
		log.Warn().Str("error", logging.Redact(err.Error())).Dur("elapsed", time.Since(start)).Msg("call failed")

		return Result{Text: "Error: " + err.Error(), IsError: true}
	}

	log.Debug().Dur("elapsed", time.Since(start)).Msg("call done")

	return Result{Text: text}
}

// Args are the decoded JSON arguments of a call.
type Args map[string]any

// errMissing reports a required argument that was absent or empty.
var errMissing = errors.New("missing required argument")

// String returns the string argument key, or def when absent.
func (a Args) String(key, def string) string {
	v, ok := a[key]
	if !ok || v == nil {
		return def
	}

	switch val := v.(type) {
	case string:
		return val
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

// Require returns the non-empty string argument key.
func (a Args) Require(key string) (string, error) {
	s := strings.TrimSpace(a.String(key, ""))
	if s == "" {
		return "", fmt.Errorf("%w %q", errMissing, key)
	}

	return a.String(key, ""), nil
}

// Int returns the integer argument key, or def when absent. JSON numbers
// arrive as float64; numeric strings are accepted too.
func (a Args) Int(key string, def int) (int, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return def, nil
	}

	switch val := v.(type) {
	case int:
		return val, nil
	case int64:
		return int(val), nil
	case float64:
		if val != math.Trunc(val) {
			return 0, fmt.Errorf("argument %q must be an integer, got %v", key, val)
		}

		return int(val), nil
	case json.Number:
		n, err := val.Int64()
		if err != nil {
			return 0, fmt.Errorf("argument %q must be an integer: %w", key, err)
		}

		return int(n), nil
	case string:
		if strings.TrimSpace(val) == "" {
			return def, nil
		}

		n, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			return 0, fmt.Errorf("argument %q must be an integer: %w", key, err)
		}

		return n, nil
	default:
		return 0, fmt.Errorf("argument %q must be an integer, got %T", key, v)
	}
}

// Bool returns the boolean argument key, or def when absent.
func (a Args) Bool(key string, def bool) (bool, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return def, nil
	}

	switch val := v.(type) {
	case bool:
		return val, nil
	case string:
		b, err := strconv.ParseBool(val)
		if err != nil {
			return false, fmt.Errorf("argument %q must be a boolean: %w", key, err)
		}

		return b, nil
	default:
		return false, fmt.Errorf("argument %q must be a boolean, got %T", key, v)
	}
}

// Seconds returns the duration argument key given in whole seconds.
func (a Args) Seconds(key string, def int) (time.Duration, error) {
	n, err := a.Int(key, def)
	if err != nil {
		return 0, err
	}

	if n < 0 {
		return 0, fmt.Errorf("argument %q cannot be negative", key)
	}

	return time.Duration(n) * time.Second, nil
}
