package core

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/argus-mc/argus/pkg/audit"
	"github.com/argus-mc/argus/pkg/mojang"
	"github.com/argus-mc/argus/pkg/settings"
	"github.com/argus-mc/argus/pkg/store"
	"github.com/argus-mc/argus/pkg/token"
)

// RoleStatus is the bridge's live verdict about a Discord user. Indeterminate
// is reserved for transient failures and instructs the core to keep cached
// state unchanged.
type RoleStatus int

const (
	RoleIndeterminate RoleStatus = iota
	RoleHasRole
	RoleMissingRole
	RoleNotInGuild
)

func (s RoleStatus) String() string {
	switch s {
	case RoleHasRole:
		return "HasRole"
	case RoleMissingRole:
		return "MissingRole"
	case RoleNotInGuild:
		return "NotInGuild"
	default:
		return "Indeterminate"
	}
}

// LiveQueryTimeout bounds the single live role query a login may perform.
const LiveQueryTimeout = 2 * time.Second

// LoginResult is the verdict of OnPlayerLogin.
type LoginResult struct {
	Allow           bool
	Message         string
	RevokeWhitelist bool
}

func allowResult() LoginResult {
	return LoginResult{Allow: true}
}

func denyResult(message string, revokeWhitelist bool) LoginResult {
	return LoginResult{Message: message, RevokeWhitelist: revokeWhitelist}
}

// Bridge is the contract the core needs from the Discord side. A nil bridge
// (or one that has not started) maps every live query to Indeterminate.
type Bridge interface {
	CheckWhitelistStatus(discordID uint64, timeout time.Duration) RoleStatus
	Start() error
	Stop() error
}

// ProfileResolver resolves a username to a game profile.
type ProfileResolver interface {
	LookupProfile(name string) (mojang.Profile, error)
}

// NotFoundError reports a missing application or player record.
type NotFoundError struct {
	Message string
}

func (e NotFoundError) Error() string { return e.Message }

// InvalidStateError reports a rejected state transition.
type InvalidStateError struct {
	Message string
}

func (e InvalidStateError) Error() string { return e.Message }

// Core owns the decision engine and its collaborators. Construct one per
// process; tests construct a fresh Core with fakes for the bridge and clock.
type Core struct {
	Settings *settings.Manager
	Store    *store.Store
	Tokens   *token.Service
	Audit    *audit.Logger
	Resolver ProfileResolver

	// Late-bound capabilities populated from the host/bridge side.
	BanMirror   func(id uuid.UUID, mcName string, reason string, untilEpochMillis *int64)
	UnbanMirror func(id uuid.UUID)
	Messenger   func(id uuid.UUID, message string)

	mu                     sync.RWMutex
	bridge                 Bridge
	discordStarted         atomic.Bool
	discordStartedOverride *bool

	now func() time.Time
}

// New assembles a Core. The bridge is attached later via SetBridge.
func New(st *settings.Manager, db *store.Store, tokens *token.Service, aud *audit.Logger, resolver ProfileResolver) *Core {
	return &Core{
		Settings: st,
		Store:    db,
		Tokens:   tokens,
		Audit:    aud,
		Resolver: resolver,
		now:      time.Now,
	}
}

// SetBridge attaches (or detaches, with nil) the Discord bridge.
func (c *Core) SetBridge(b Bridge) {
	c.mu.Lock()
	c.bridge = b
	c.mu.Unlock()
}

// SetDiscordStartedOverride forces the discord-up flag for tests; nil restores
// the real startup flag.
func (c *Core) SetDiscordStartedOverride(v *bool) {
	c.mu.Lock()
	c.discordStartedOverride = v
	c.mu.Unlock()
}

// SetClock replaces the time source (tests only).
func (c *Core) SetClock(now func() time.Time) {
	c.now = now
}

func (c *Core) discordUp() bool {
	c.mu.RLock()
	override := c.discordStartedOverride
	c.mu.RUnlock()
	if override != nil {
		return *override
	}
	return c.discordStarted.Load()
}

func (c *Core) nowMillis() int64 {
	return c.now().UnixMilli()
}

// NowMillis exposes the engine clock as epoch milliseconds.
func (c *Core) NowMillis() int64 {
	return c.nowMillis()
}

// ActiveBanMessage renders the denial message for an active ban, if any.
func (c *Core) ActiveBanMessage(rec store.PlayerRecord) (string, bool) {
	return activeBan(rec, c.nowMillis())
}

func (c *Core) cachePath() string {
	return c.Settings.Current().CacheFile
}

func (c *Core) enqueueSave() {
	c.Store.EnqueueSave(c.cachePath())
}

// checkRole performs the bounded live role query; absence of a bridge is
// Indeterminate, never an error.
func (c *Core) checkRole(discordID uint64) RoleStatus {
	c.mu.RLock()
	b := c.bridge
	c.mu.RUnlock()
	if b == nil {
		return RoleIndeterminate
	}
	return b.CheckWhitelistStatus(discordID, LiveQueryTimeout)
}

// inviteSuffix renders the optional " (Join: {invite})" denial suffix.
func (c *Core) inviteSuffix() string {
	cfg := c.Settings.Current()
	if cfg.DiscordInviteURL == nil {
		return ""
	}
	return fmt.Sprintf(" (Join: %s)", *cfg.DiscordInviteURL)
}

// Initialize loads settings and the cache snapshot.
func (c *Core) Initialize() error {
	if err := c.Settings.Load(); err != nil {
		return err
	}
	c.Store.Load(c.cachePath())
	return nil
}

// StartDiscord starts the bridge. Idempotent; returns success without
// starting when the bot token or guild id is unset.
func (c *Core) StartDiscord() error {
	if c.discordStarted.Load() {
		return nil
	}
	cfg := c.Settings.Current()
	if cfg.BotToken == "" || cfg.GuildID == nil {
		return nil
	}
	c.mu.RLock()
	b := c.bridge
	c.mu.RUnlock()
	if b == nil {
		return nil
	}
	if err := b.Start(); err != nil {
		return err
	}
	c.discordStarted.Store(true)
	return nil
}

// StopDiscord stops the bridge if it is running.
func (c *Core) StopDiscord() error {
	if !c.discordStarted.Load() {
		return nil
	}
	c.mu.RLock()
	b := c.bridge
	c.mu.RUnlock()
	c.discordStarted.Store(false)
	if b == nil {
		return nil
	}
	return b.Stop()
}

// ReloadConfig re-initializes settings and cache and restarts the bridge.
func (c *Core) ReloadConfig() error {
	if err := c.StopDiscord(); err != nil {
		return err
	}
	if err := c.Initialize(); err != nil {
		return err
	}
	return c.StartDiscord()
}

// FlushSaves waits for pending cache saves (shutdown path).
func (c *Core) FlushSaves(timeout time.Duration) bool {
	return c.Store.FlushSaves(timeout)
}

// displayName picks the best available name for a record.
func displayName(rec store.PlayerRecord, id uuid.UUID) string {
	if rec.MCName != nil {
		return *rec.MCName
	}
	return id.String()
}
