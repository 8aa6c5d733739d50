package discord

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"

	"github.com/argus-mc/argus/pkg/audit"
	"github.com/argus-mc/argus/pkg/core"
	"github.com/argus-mc/argus/pkg/settings"
	"github.com/argus-mc/argus/pkg/store"
	"github.com/argus-mc/argus/pkg/token"
)

func newTestBridge(t *testing.T) (*Bridge, *core.Core) {
	t.Helper()

	dir := t.TempDir()
	st := settings.NewManager(filepath.Join(dir, "argus.json"))
	if err := st.Load(); err != nil {
		t.Fatalf("settings load: %v", err)
	}
	for field, value := range map[string]string{
		"guildId":         "100",
		"whitelistRoleId": "10",
		"adminRoleId":     "11",
		"cacheFile":       filepath.Join(dir, "cache.json"),
	} {
		if err := st.Update(field, value); err != nil {
			t.Fatalf("settings update %s: %v", field, err)
		}
	}

	c := core.New(st, store.NewStore(), token.NewService(), audit.NewLogger(), nil)
	c.SetClock(func() time.Time { return time.UnixMilli(1_700_000_000_000) })
	return NewBridge(st, c), c
}

func memberInteraction(roles ...string) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			Member: &discordgo.Member{
				User:  &discordgo.User{ID: "9", Username: "mod"},
				Roles: roles,
			},
		},
	}
}

func TestCommandDefinitions(t *testing.T) {
	t.Parallel()

	defs := commandDefinitions()
	if len(defs) != 2 {
		t.Fatalf("got %d commands, want 2", len(defs))
	}
	if defs[0].Name != "link" || defs[1].Name != "whitelist" {
		t.Fatalf("names: %s, %s", defs[0].Name, defs[1].Name)
	}
	if len(defs[1].Options) != len(whitelistSubcommands) {
		t.Fatalf("whitelist has %d subcommands, want %d", len(defs[1].Options), len(whitelistSubcommands))
	}
	for _, sub := range defs[1].Options {
		if sub.Type != discordgo.ApplicationCommandOptionSubCommand {
			t.Errorf("%s is not a subcommand", sub.Name)
		}
	}
}

func TestPublicSubcommandsExist(t *testing.T) {
	t.Parallel()

	known := make(map[string]bool, len(whitelistSubcommands))
	for _, sub := range whitelistSubcommands {
		known[sub.Name] = true
	}
	for name := range publicSubcommands {
		if !known[name] {
			t.Errorf("public subcommand %q is not defined", name)
		}
	}
}

func TestIsAdmin(t *testing.T) {
	t.Parallel()

	b, _ := newTestBridge(t)
	if !b.isAdmin(memberInteraction("11", "999")) {
		t.Fatal("admin role member not recognized")
	}
	if b.isAdmin(memberInteraction("999")) {
		t.Fatal("non-admin recognized as admin")
	}
	if b.isAdmin(&discordgo.InteractionCreate{Interaction: &discordgo.Interaction{}}) {
		t.Fatal("DM interaction recognized as admin")
	}
}

func TestInvoker(t *testing.T) {
	t.Parallel()

	id, name, err := invoker(memberInteraction())
	if err != nil || id != 9 || name != "mod" {
		t.Fatalf("invoker = %d %q %v", id, name, err)
	}

	dm := &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{User: &discordgo.User{ID: "5", Username: "dm"}},
	}
	id, name, err = invoker(dm)
	if err != nil || id != 5 || name != "dm" {
		t.Fatalf("dm invoker = %d %q %v", id, name, err)
	}

	if _, _, err := invoker(&discordgo.InteractionCreate{Interaction: &discordgo.Interaction{}}); err == nil {
		t.Fatal("interaction without user accepted")
	}
}

func TestResolvePlayer(t *testing.T) {
	t.Parallel()

	b, c := newTestBridge(t)
	id := uuid.New()
	c.Store.Upsert(id, store.PlayerRecord{MCName: store.Str("Notch"), DiscordID: store.U64(42)})

	byUUID := map[string]*discordgo.ApplicationCommandInteractionDataOption{
		"player": {Name: "player", Value: id.String()},
	}
	if got, err := b.resolvePlayer(byUUID); err != nil || got != id {
		t.Fatalf("by uuid: %v %v", got, err)
	}

	byName := map[string]*discordgo.ApplicationCommandInteractionDataOption{
		"player": {Name: "player", Value: "notch"},
	}
	if got, err := b.resolvePlayer(byName); err != nil || got != id {
		t.Fatalf("by name: %v %v", got, err)
	}

	byDiscord := map[string]*discordgo.ApplicationCommandInteractionDataOption{
		"discord": {Name: "discord", Value: "42"},
	}
	if got, err := b.resolvePlayer(byDiscord); err != nil || got != id {
		t.Fatalf("by discord: %v %v", got, err)
	}

	unknown := map[string]*discordgo.ApplicationCommandInteractionDataOption{
		"player": {Name: "player", Value: "stranger"},
	}
	if _, err := b.resolvePlayer(unknown); err == nil {
		t.Fatal("unknown name resolved")
	}

	// Unknown UUIDs are acceptable for whitelist add only.
	fresh := uuid.New()
	freshOpts := map[string]*discordgo.ApplicationCommandInteractionDataOption{
		"player": {Name: "player", Value: fresh.String()},
	}
	if got, err := b.resolvePlayerAllowUnknown(freshOpts); err != nil || got != fresh {
		t.Fatalf("allow-unknown: %v %v", got, err)
	}
}

func TestOptionHelpers(t *testing.T) {
	t.Parallel()

	opts := optionMap([]*discordgo.ApplicationCommandInteractionDataOption{
		{Name: "reason", Value: "spam"},
		{Name: "duration_minutes", Value: float64(90)},
	})

	if s, ok := stringOption(opts, "reason"); !ok || s != "spam" {
		t.Fatalf("stringOption = %q %t", s, ok)
	}
	if _, ok := stringOption(opts, "missing"); ok {
		t.Fatal("missing string option reported present")
	}
	if n, ok := intOption(opts, "duration_minutes"); !ok || n != 90 {
		t.Fatalf("intOption = %d %t", n, ok)
	}
	if _, ok := intOption(opts, "missing"); ok {
		t.Fatal("missing int option reported present")
	}
}

func TestRenderHelpers(t *testing.T) {
	t.Parallel()

	if got := renderPendingApplications(nil); got != "No pending applications." {
		t.Fatalf("empty list = %q", got)
	}
	apps := []store.WhitelistApplication{{ID: "app-1", MCName: "Notch", DiscordID: 42}}
	if got := renderPendingApplications(apps); !strings.Contains(got, "app-1") || !strings.Contains(got, "Notch") {
		t.Fatalf("rendered = %q", got)
	}

	id := uuid.New()
	if got := renderEvents(id, nil); !strings.HasPrefix(got, "No events for ") {
		t.Fatalf("empty events = %q", got)
	}
	events := []store.EventEntry{
		{Type: store.EventWarn, Message: store.Str("spam"), AtEpochMillis: 1_700_000_000_000},
	}
	got := renderEvents(id, events)
	if !strings.Contains(got, "warn") || !strings.Contains(got, "spam") {
		t.Fatalf("rendered events = %q", got)
	}

	help := renderHelp()
	for _, sub := range whitelistSubcommands {
		if !strings.Contains(help, "/whitelist "+sub.Name) {
			t.Errorf("help missing %s", sub.Name)
		}
	}
}

func TestRenderMy(t *testing.T) {
	t.Parallel()

	b, c := newTestBridge(t)
	if got := b.renderMy(42); !strings.Contains(got, "No linked Minecraft account") {
		t.Fatalf("unlinked = %q", got)
	}

	id := uuid.New()
	c.Store.Upsert(id, store.PlayerRecord{
		DiscordID: store.U64(42),
		WarnCount: 3,
		BanReason: store.Str("griefing"),
	})
	got := b.renderMy(42)
	if !strings.Contains(got, "Warnings: 3") || !strings.Contains(got, "griefing (permanent)") {
		t.Fatalf("linked = %q", got)
	}
}
