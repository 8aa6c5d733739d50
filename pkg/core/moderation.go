package core

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/argus-mc/argus/pkg/store"
)

// LinkDiscordUser consumes a link token on behalf of a Discord user and binds
// the token's game account to them.
func (c *Core) LinkDiscordUser(tok string, discordID uint64, discordName, discordNick string) (string, error) {
	entry, err := c.Tokens.Consume(tok)
	if err != nil {
		return "", err
	}

	pdata, _ := c.Store.Get(entry.UUID)
	pdata.DiscordID = store.U64(discordID)
	pdata.DiscordName = store.Str(discordName)
	if discordNick != "" {
		pdata.DiscordNick = store.Str(discordNick)
	}
	pdata.HasAccess = store.Bool(true)
	if pdata.MCName == nil && entry.MCName != "" {
		pdata.MCName = store.Str(entry.MCName)
	}
	c.Store.Upsert(entry.UUID, pdata)

	c.Store.AppendEvent(store.EventEntry{
		Type:            store.EventLink,
		TargetUUID:      store.Str(entry.UUID.String()),
		TargetDiscordID: store.U64(discordID),
		AtEpochMillis:   c.nowMillis(),
	})
	c.Audit.Message(fmt.Sprintf("Linked minecraft user %s (%s) to Discord user %s (%d)",
		displayName(pdata, entry.UUID), entry.UUID, discordName, discordID))
	if c.Messenger != nil {
		c.Messenger(entry.UUID, "Linked Discord user: "+discordName)
	}
	c.enqueueSave()
	return "Linked successfully.", nil
}

// WhitelistAdd grants access to a game account. mcName may be empty to keep
// the cached name.
func (c *Core) WhitelistAdd(id uuid.UUID, mcName, actorLabel string) string {
	pdata, _ := c.Store.Get(id)
	pdata.HasAccess = store.Bool(true)
	if mcName != "" {
		pdata.MCName = store.Str(mcName)
	}
	c.Store.Upsert(id, pdata)

	c.Store.AppendEvent(store.EventEntry{
		Type:          store.EventWhitelistAdd,
		TargetUUID:    store.Str(id.String()),
		Message:       store.Str("by " + actorLabel),
		AtEpochMillis: c.nowMillis(),
	})
	c.Audit.Event("whitelist_add", displayName(pdata, id), actorLabel, "", nil)
	c.enqueueSave()
	return fmt.Sprintf("Whitelisted %s", displayName(pdata, id))
}

// WhitelistRemove revokes access from a game account.
func (c *Core) WhitelistRemove(id uuid.UUID, actorLabel string) string {
	pdata, _ := c.Store.Get(id)
	pdata.HasAccess = store.Bool(false)
	c.Store.Upsert(id, pdata)

	c.Store.AppendEvent(store.EventEntry{
		Type:          store.EventWhitelistRemove,
		TargetUUID:    store.Str(id.String()),
		Message:       store.Str("by " + actorLabel),
		AtEpochMillis: c.nowMillis(),
	})
	c.Audit.Event("whitelist_remove", displayName(pdata, id), actorLabel, "", nil)
	c.enqueueSave()
	return fmt.Sprintf("Removed %s from whitelist", displayName(pdata, id))
}

// WhitelistStatus renders a human-readable summary for a game account.
func (c *Core) WhitelistStatus(id uuid.UUID) string {
	pdata, ok := c.Store.Get(id)
	if !ok {
		return fmt.Sprintf("No entry for %s", id)
	}
	var b strings.Builder
	access := "unknown"
	if pdata.HasAccess != nil {
		access = fmt.Sprintf("%t", *pdata.HasAccess)
	}
	fmt.Fprintf(&b, "hasAccess=%s", access)
	if pdata.MCName != nil {
		fmt.Fprintf(&b, " mcName=%s", *pdata.MCName)
	}
	if pdata.DiscordID != nil {
		fmt.Fprintf(&b, " discordId=%d", *pdata.DiscordID)
	}
	if _, banned := activeBan(pdata, c.nowMillis()); banned {
		b.WriteString(" banned=true")
	}
	return b.String()
}

// BanPlayer records a ban; a nil untilEpochMillis is permanent. The ban is
// mirrored to the host when a BanMirror hook is registered.
func (c *Core) BanPlayer(id uuid.UUID, actorID uint64, reason string, untilEpochMillis *int64) string {
	pdata, _ := c.Store.Get(id)
	pdata.BanReason = store.Str(reason)
	pdata.BanUntilEpochMillis = untilEpochMillis
	pdata.HasAccess = store.Bool(false)
	c.Store.Upsert(id, pdata)

	if c.BanMirror != nil {
		mcName := ""
		if pdata.MCName != nil {
			mcName = *pdata.MCName
		}
		c.BanMirror(id, mcName, reason, untilEpochMillis)
	}

	c.Store.AppendEvent(store.EventEntry{
		Type:             store.EventBan,
		TargetUUID:       store.Str(id.String()),
		ActorDiscordID:   store.U64(actorID),
		Message:          store.Str(reason),
		UntilEpochMillis: untilEpochMillis,
		AtEpochMillis:    c.nowMillis(),
	})
	c.Audit.Event("ban", displayName(pdata, id), fmt.Sprintf("%d", actorID), reason, nil)
	c.enqueueSave()
	return fmt.Sprintf("Banned %s", displayName(pdata, id))
}

// UnbanPlayer clears a ban and mirrors the unban to the host.
func (c *Core) UnbanPlayer(id uuid.UUID, actorID uint64, reason string) string {
	pdata, _ := c.Store.Get(id)
	pdata.BanReason = nil
	pdata.BanUntilEpochMillis = nil
	c.Store.Upsert(id, pdata)

	if c.UnbanMirror != nil {
		c.UnbanMirror(id)
	}

	var msg *string
	if reason != "" {
		msg = store.Str(reason)
	}
	c.Store.AppendEvent(store.EventEntry{
		Type:           store.EventUnban,
		TargetUUID:     store.Str(id.String()),
		ActorDiscordID: store.U64(actorID),
		Message:        msg,
		AtEpochMillis:  c.nowMillis(),
	})
	c.Audit.Event("unban", displayName(pdata, id), fmt.Sprintf("%d", actorID), reason, nil)
	c.enqueueSave()
	return fmt.Sprintf("Unbanned %s", displayName(pdata, id))
}

// WarnPlayer increments the warn counter and records the warning.
func (c *Core) WarnPlayer(id uuid.UUID, actorID uint64, reason string) string {
	pdata, _ := c.Store.Get(id)
	pdata.WarnCount++
	c.Store.Upsert(id, pdata)

	c.Store.AppendEvent(store.EventEntry{
		Type:           store.EventWarn,
		TargetUUID:     store.Str(id.String()),
		ActorDiscordID: store.U64(actorID),
		Message:        store.Str(reason),
		AtEpochMillis:  c.nowMillis(),
	})
	c.Audit.Event("warn", displayName(pdata, id), fmt.Sprintf("%d", actorID), reason, nil)
	c.enqueueSave()
	return fmt.Sprintf("Warned %s (%d warnings)", displayName(pdata, id), pdata.WarnCount)
}

// CommentOnPlayer appends a moderator note without touching the record.
func (c *Core) CommentOnPlayer(id uuid.UUID, actorID uint64, note string) string {
	c.Store.AppendEvent(store.EventEntry{
		Type:           store.EventComment,
		TargetUUID:     store.Str(id.String()),
		ActorDiscordID: store.U64(actorID),
		Message:        store.Str(note),
		AtEpochMillis:  c.nowMillis(),
	})
	c.Audit.Event("comment", id.String(), fmt.Sprintf("%d", actorID), note, nil)
	c.enqueueSave()
	return "Comment recorded"
}
