package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/argus-mc/argus/pkg/log"
)

const (
	// DefaultConfigPath is used when ARGUS_CONFIG_PATH is unset.
	DefaultConfigPath = "config/argus.json"

	// ConfigPathEnv overrides the config file location.
	ConfigPathEnv = "ARGUS_CONFIG_PATH"

	defaultApplicationMessage = "Access Denied: Please apply in Discord."
	defaultCacheFile          = "config/argus_db.json"
)

// Settings holds the recognised configuration fields. The schema is closed:
// Update rejects unknown field names.
type Settings struct {
	BotToken           string  `json:"botToken"`
	GuildID            *uint64 `json:"guildId"`
	WhitelistRoleID    *uint64 `json:"whitelistRoleId"`
	AdminRoleID        *uint64 `json:"adminRoleId"`
	LogChannelID       *uint64 `json:"logChannelId"`
	ApplicationMessage string  `json:"applicationMessage"`
	EnforcementEnabled bool    `json:"enforcementEnabled"`
	CacheFile          string  `json:"cacheFile"`
	DiscordInviteURL   *string `json:"discordInviteUrl"`
}

// Defaults returns the settings written to disk on first start.
func Defaults() Settings {
	return Settings{
		ApplicationMessage: defaultApplicationMessage,
		EnforcementEnabled: false,
		CacheFile:          defaultCacheFile,
	}
}

// IsConfigured reports whether the Discord side can be started: a bot token
// plus guild, whitelist role and admin role ids.
func (s Settings) IsConfigured() bool {
	return strings.TrimSpace(s.BotToken) != "" &&
		s.GuildID != nil &&
		s.WhitelistRoleID != nil &&
		s.AdminRoleID != nil
}

// ConfigError represents configuration load/write/parse failures.
type ConfigError struct {
	Operation string
	Path      string
	Cause     error
}

func (e ConfigError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("config %s failed for %s: %v", e.Operation, e.Path, e.Cause)
	}
	return fmt.Sprintf("config %s failed for %s", e.Operation, e.Path)
}

func (e ConfigError) Unwrap() error {
	return e.Cause
}

// fieldSpec describes one entry of the closed schema.
type fieldSpec struct {
	name        string
	sample      string
	description string
	get         func(Settings) string
	set         func(*Settings, string) error
}

func optionalUint64(dst **uint64, raw string) error {
	n, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return fmt.Errorf("must be a number")
	}
	*dst = &n
	return nil
}

func renderUint64(v *uint64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatUint(*v, 10)
}

var fields = []fieldSpec{
	{
		name:        "botToken",
		sample:      "MTA0...bot-token",
		description: "Discord bot token.",
		get:         func(s Settings) string { return s.BotToken },
		set:         func(s *Settings, v string) error { s.BotToken = v; return nil },
	},
	{
		name:        "guildId",
		sample:      "123456789012345678",
		description: "Discord guild (server) id the bot operates in.",
		get:         func(s Settings) string { return renderUint64(s.GuildID) },
		set:         func(s *Settings, v string) error { return optionalUint64(&s.GuildID, v) },
	},
	{
		name:        "whitelistRoleId",
		sample:      "123456789012345678",
		description: "Role whose members are allowed to join the server.",
		get:         func(s Settings) string { return renderUint64(s.WhitelistRoleID) },
		set:         func(s *Settings, v string) error { return optionalUint64(&s.WhitelistRoleID, v) },
	},
	{
		name:        "adminRoleId",
		sample:      "123456789012345678",
		description: "Role allowed to use moderation commands.",
		get:         func(s Settings) string { return renderUint64(s.AdminRoleID) },
		set:         func(s *Settings, v string) error { return optionalUint64(&s.AdminRoleID, v) },
	},
	{
		name:        "logChannelId",
		sample:      "123456789012345678",
		description: "Channel that receives audit embeds.",
		get:         func(s Settings) string { return renderUint64(s.LogChannelID) },
		set:         func(s *Settings, v string) error { return optionalUint64(&s.LogChannelID, v) },
	},
	{
		name:        "applicationMessage",
		sample:      defaultApplicationMessage,
		description: "Message shown to players who are denied access.",
		get:         func(s Settings) string { return s.ApplicationMessage },
		set:         func(s *Settings, v string) error { s.ApplicationMessage = v; return nil },
	},
	{
		name:        "enforcementEnabled",
		sample:      "false",
		description: "When false, adverse decisions are audited only (dry-run).",
		get:         func(s Settings) string { return strconv.FormatBool(s.EnforcementEnabled) },
		set: func(s *Settings, v string) error {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("must be true or false")
			}
			s.EnforcementEnabled = b
			return nil
		},
	},
	{
		name:        "cacheFile",
		sample:      defaultCacheFile,
		description: "Path of the JSON cache snapshot.",
		get:         func(s Settings) string { return s.CacheFile },
		set: func(s *Settings, v string) error {
			if strings.TrimSpace(v) == "" {
				return fmt.Errorf("must not be blank")
			}
			s.CacheFile = v
			return nil
		},
	},
	{
		name:        "discordInviteUrl",
		sample:      "https://discord.gg/example",
		description: "Invite appended to denial messages; blank clears it.",
		get: func(s Settings) string {
			if s.DiscordInviteURL == nil {
				return ""
			}
			return *s.DiscordInviteURL
		},
		set: func(s *Settings, v string) error {
			v = strings.TrimSpace(v)
			if v == "" {
				s.DiscordInviteURL = nil
				return nil
			}
			s.DiscordInviteURL = &v
			return nil
		},
	},
}

func fieldByName(name string) *fieldSpec {
	for i := range fields {
		if fields[i].name == name {
			return &fields[i]
		}
	}
	return nil
}

// FieldNames returns the schema field names in declaration order.
func FieldNames() []string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.name
	}
	return names
}

// Sample returns a sample value for a field.
func Sample(field string) (string, error) {
	f := fieldByName(field)
	if f == nil {
		return "", fmt.Errorf("unknown setting %q", field)
	}
	return f.sample, nil
}

// Describe returns the human description of a field.
func Describe(field string) (string, error) {
	f := fieldByName(field)
	if f == nil {
		return "", fmt.Errorf("unknown setting %q", field)
	}
	return f.description, nil
}

// ResolveConfigPath returns the config file path, honoring ARGUS_CONFIG_PATH.
func ResolveConfigPath() string {
	if v := os.Getenv(ConfigPathEnv); v != "" {
		return v
	}
	return DefaultConfigPath
}

// Manager owns the settings file: typed access plus load/save.
type Manager struct {
	mu   sync.RWMutex
	path string
	cfg  Settings
}

// NewManager creates a manager for path; an empty path resolves via
// ResolveConfigPath.
func NewManager(path string) *Manager {
	if path == "" {
		path = ResolveConfigPath()
	}
	return &Manager{path: path, cfg: Defaults()}
}

// Path returns the config file path.
func (m *Manager) Path() string {
	return m.path
}

// Load reads the config file. If it does not exist, the defaults are written to
// it first. Parent directories are always ensured.
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		err = ConfigError{Operation: "mkdir", Path: m.path, Cause: err}
		log.Errorf("%v", err)
		return err
	}

	data, err := os.ReadFile(m.path)
	if os.IsNotExist(err) {
		m.cfg = Defaults()
		if werr := m.writeLocked(); werr != nil {
			return werr
		}
		log.Infof(log.Application, "Wrote default settings to %s", m.path)
		return nil
	}
	if err != nil {
		err = ConfigError{Operation: "read", Path: m.path, Cause: err}
		log.Errorf("%v", err)
		return err
	}

	cfg := Defaults()
	if err := json.Unmarshal(data, &cfg); err != nil {
		err = ConfigError{Operation: "parse", Path: m.path, Cause: err}
		log.Errorf("%v", err)
		return err
	}
	m.cfg = cfg
	return nil
}

// Save persists the current settings.
func (m *Manager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writeLocked()
}

func (m *Manager) writeLocked() error {
	data, err := json.MarshalIndent(m.cfg, "", "  ")
	if err != nil {
		return ConfigError{Operation: "marshal", Path: m.path, Cause: err}
	}
	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return ConfigError{Operation: "mkdir", Path: m.path, Cause: err}
	}
	if err := os.WriteFile(m.path, data, 0o644); err != nil {
		err := ConfigError{Operation: "write", Path: m.path, Cause: err}
		log.Errorf("%v", err)
		return err
	}
	return nil
}

// Current returns a copy of the settings.
func (m *Manager) Current() Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

// OverrideBotToken sets the bot token for this process only. The config file
// is not rewritten, so tokens sourced from the environment stay out of it.
func (m *Manager) OverrideBotToken(token string) {
	m.mu.Lock()
	m.cfg.BotToken = token
	m.mu.Unlock()
}

// IsConfigured reports whether the Discord side can be started.
func (m *Manager) IsConfigured() bool {
	return m.Current().IsConfigured()
}

// Get returns the string rendering of a field ("" when unset).
func (m *Manager) Get(field string) (string, error) {
	f := fieldByName(field)
	if f == nil {
		return "", fmt.Errorf("unknown setting %q", field)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return f.get(m.cfg), nil
}

// Update validates and coerces value into field, then persists the file.
func (m *Manager) Update(field, value string) error {
	f := fieldByName(field)
	if f == nil {
		return fmt.Errorf("unknown setting %q", field)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := f.set(&m.cfg, value); err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	return m.writeLocked()
}
