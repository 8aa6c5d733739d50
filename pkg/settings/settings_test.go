package settings

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager(filepath.Join(t.TempDir(), "argus.json"))
}

func TestLoadWritesDefaults(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)
	if err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if _, err := os.Stat(m.Path()); err != nil {
		t.Fatalf("defaults file not written: %v", err)
	}

	cfg := m.Current()
	if cfg.EnforcementEnabled {
		t.Fatal("enforcement must default to off")
	}
	if cfg.CacheFile == "" || cfg.ApplicationMessage == "" {
		t.Fatalf("defaults missing: %+v", cfg)
	}
	if m.IsConfigured() {
		t.Fatal("fresh config must not be configured")
	}
}

func TestUpdateRoundTrip(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)
	if err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	steps := map[string]string{
		"botToken":           "secret",
		"guildId":            "123456789012345678",
		"whitelistRoleId":    "10",
		"adminRoleId":        "11",
		"logChannelId":       "12",
		"enforcementEnabled": "true",
		"discordInviteUrl":   "https://discord.gg/example",
	}
	for field, value := range steps {
		if err := m.Update(field, value); err != nil {
			t.Fatalf("Update(%s): %v", field, err)
		}
	}
	if !m.IsConfigured() {
		t.Fatal("configured after all ids set")
	}

	// A second manager on the same file must see everything.
	m2 := NewManager(m.Path())
	if err := m2.Load(); err != nil {
		t.Fatalf("reload: %v", err)
	}
	cfg := m2.Current()
	if cfg.GuildID == nil || *cfg.GuildID != 123456789012345678 {
		t.Fatalf("guildId lost: %+v", cfg.GuildID)
	}
	if !cfg.EnforcementEnabled {
		t.Fatal("enforcementEnabled lost")
	}
	if cfg.DiscordInviteURL == nil || *cfg.DiscordInviteURL != "https://discord.gg/example" {
		t.Fatal("invite url lost")
	}
}

func TestUpdateValidation(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)
	if err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if err := m.Update("guildId", "not-a-number"); err == nil {
		t.Fatal("non-numeric guildId accepted")
	}
	if err := m.Update("enforcementEnabled", "maybe"); err == nil {
		t.Fatal("non-boolean enforcement accepted")
	}
	if err := m.Update("cacheFile", "  "); err == nil {
		t.Fatal("blank cacheFile accepted")
	}
	if err := m.Update("nope", "x"); err == nil {
		t.Fatal("unknown field accepted")
	}
}

func TestBlankInviteClears(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)
	if err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := m.Update("discordInviteUrl", "https://discord.gg/x"); err != nil {
		t.Fatalf("set invite: %v", err)
	}
	if err := m.Update("discordInviteUrl", "   "); err != nil {
		t.Fatalf("clear invite: %v", err)
	}
	if m.Current().DiscordInviteURL != nil {
		t.Fatal("blank value did not clear the invite url")
	}
}

func TestOverrideBotTokenStaysOutOfFile(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)
	if err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	m.OverrideBotToken("env-secret")

	if m.Current().BotToken != "env-secret" {
		t.Fatal("override not visible in memory")
	}

	data, err := os.ReadFile(m.Path())
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	var onDisk Settings
	if err := json.Unmarshal(data, &onDisk); err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if onDisk.BotToken != "" {
		t.Fatal("env token leaked into the config file")
	}
}

func TestFieldMetadata(t *testing.T) {
	t.Parallel()

	for _, name := range FieldNames() {
		if _, err := Sample(name); err != nil {
			t.Errorf("Sample(%s): %v", name, err)
		}
		if _, err := Describe(name); err != nil {
			t.Errorf("Describe(%s): %v", name, err)
		}
	}
	if _, err := Sample("bogus"); err == nil {
		t.Error("Sample accepted unknown field")
	}
}
