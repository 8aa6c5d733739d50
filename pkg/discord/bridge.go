package discord

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/argus-mc/argus/pkg/audit"
	"github.com/argus-mc/argus/pkg/core"
	"github.com/argus-mc/argus/pkg/log"
	"github.com/argus-mc/argus/pkg/settings"
)

// Bridge implements core.Bridge on top of discordgo: live role queries,
// member-update fan-in, slash commands and audit embed dispatch.
type Bridge struct {
	settings *settings.Manager
	core     *core.Core

	mu         sync.Mutex
	session    *discordgo.Session
	registered []*discordgo.ApplicationCommand
}

// NewBridge wires a bridge to the core. Start connects it.
func NewBridge(st *settings.Manager, c *core.Core) *Bridge {
	return &Bridge{settings: st, core: c}
}

// Start connects the session, registers event handlers and slash commands.
func (b *Bridge) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.session != nil {
		return nil
	}

	cfg := b.settings.Current()
	s, err := NewSession(cfg.BotToken)
	if err != nil {
		return err
	}

	s.AddHandler(b.onInteractionCreate)
	s.AddHandler(b.onGuildMemberUpdate)

	b.session = s
	if err := b.registerCommandsLocked(); err != nil {
		log.Errorf("failed to register slash commands: %v", err)
	}
	return nil
}

// Stop removes registered commands and closes the session.
func (b *Bridge) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.session == nil {
		return nil
	}

	cfg := b.settings.Current()
	if cfg.GuildID != nil && b.session.State != nil && b.session.State.User != nil {
		guildID := strconv.FormatUint(*cfg.GuildID, 10)
		for _, cmd := range b.registered {
			if err := b.session.ApplicationCommandDelete(b.session.State.User.ID, guildID, cmd.ID); err != nil {
				log.Errorf("failed to delete command %s: %v", cmd.Name, err)
			}
		}
	}
	b.registered = nil

	err := b.session.Close()
	b.session = nil
	return err
}

// CheckWhitelistStatus queries the guild member live, bounded by timeout.
// Unknown-member errors are authoritative negatives; everything transient
// maps to Indeterminate.
func (b *Bridge) CheckWhitelistStatus(discordID uint64, timeout time.Duration) core.RoleStatus {
	b.mu.Lock()
	s := b.session
	b.mu.Unlock()
	if s == nil {
		return core.RoleIndeterminate
	}

	cfg := b.settings.Current()
	if cfg.GuildID == nil || cfg.WhitelistRoleID == nil {
		return core.RoleIndeterminate
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	member, err := s.GuildMember(
		strconv.FormatUint(*cfg.GuildID, 10),
		strconv.FormatUint(discordID, 10),
		discordgo.WithContext(ctx),
	)
	if err != nil {
		var restErr *discordgo.RESTError
		if errors.As(err, &restErr) && restErr.Message != nil {
			switch restErr.Message.Code {
			case discordgo.ErrCodeUnknownMember, discordgo.ErrCodeUnknownUser:
				return core.RoleNotInGuild
			}
		}
		log.Errorf("live role query for %d failed: %v", discordID, err)
		return core.RoleIndeterminate
	}

	want := strconv.FormatUint(*cfg.WhitelistRoleID, 10)
	for _, role := range member.Roles {
		if role == want {
			return core.RoleHasRole
		}
	}
	return core.RoleMissingRole
}

// DispatchAudit sends an audit entry to the configured log channel as an
// embed. Best-effort: failures are logged, never propagated.
func (b *Bridge) DispatchAudit(e audit.Entry) {
	b.mu.Lock()
	s := b.session
	b.mu.Unlock()
	if s == nil {
		return
	}

	cfg := b.settings.Current()
	if cfg.LogChannelID == nil {
		return
	}

	embed := &discordgo.MessageEmbed{
		Title:       e.Action,
		Description: e.Description,
		Timestamp:   e.At.Format(time.RFC3339),
	}
	if e.Subject != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name: "Subject", Value: e.Subject, Inline: true,
		})
	}
	if e.Actor != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name: "Actor", Value: e.Actor, Inline: true,
		})
	}
	for k, v := range e.Metadata {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name: k, Value: v, Inline: true,
		})
	}

	channelID := strconv.FormatUint(*cfg.LogChannelID, 10)
	if _, err := s.ChannelMessageSendEmbed(channelID, embed); err != nil {
		log.Errorf("audit dispatch to channel %s failed: %v", channelID, err)
	}
}

// onGuildMemberUpdate fans role and identity changes into the core.
func (b *Bridge) onGuildMemberUpdate(_ *discordgo.Session, m *discordgo.GuildMemberUpdate) {
	cfg := b.settings.Current()
	if cfg.GuildID == nil || m.GuildID != strconv.FormatUint(*cfg.GuildID, 10) {
		return
	}
	if m.User == nil {
		return
	}

	discordID, err := strconv.ParseUint(m.User.ID, 10, 64)
	if err != nil {
		log.Errorf("member update with unparseable user id %q", m.User.ID)
		return
	}

	roles := make([]uint64, 0, len(m.Roles))
	for _, r := range m.Roles {
		id, err := strconv.ParseUint(r, 10, 64)
		if err != nil {
			continue
		}
		roles = append(roles, id)
	}

	b.core.NotifyRoleSet(discordID, roles)
	b.core.NotifyIdentityChange(discordID, m.User.Username, m.Nick)
}
