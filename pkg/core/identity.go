package core

import (
	"fmt"

	"github.com/argus-mc/argus/pkg/store"
)

// NotifyIdentityChange handles a bridge notification that a Discord user's
// name or nick changed. If no record is linked to the user, the change is
// audited without persistence.
func (c *Core) NotifyIdentityChange(discordID uint64, discordName, discordNick string) {
	id, pdata, ok := c.Store.FindByDiscordID(discordID)
	if !ok {
		c.Audit.Message(fmt.Sprintf("Discord identity changed for unlinked user %d: name=%s nick=%s",
			discordID, discordName, discordNick))
		return
	}

	changed := false
	if discordName != "" && (pdata.DiscordName == nil || *pdata.DiscordName != discordName) {
		old := "(none)"
		if pdata.DiscordName != nil {
			old = *pdata.DiscordName
		}
		c.Audit.Message(fmt.Sprintf("Discord name changed: %s -> %s (%d)", old, discordName, discordID))
		pdata.DiscordName = store.Str(discordName)
		changed = true
	}
	var newNick *string
	if discordNick != "" {
		newNick = store.Str(discordNick)
	}
	if !strPtrEqual(pdata.DiscordNick, newNick) {
		old := "(none)"
		if pdata.DiscordNick != nil {
			old = *pdata.DiscordNick
		}
		now := "(none)"
		if newNick != nil {
			now = *newNick
		}
		c.Audit.Message(fmt.Sprintf("Discord nick changed: %s -> %s (%d)", old, now, discordID))
		pdata.DiscordNick = newNick
		changed = true
	}

	if changed {
		c.Store.Upsert(id, pdata)
		c.enqueueSave()
	}
}

// NotifyRoleSet handles a bridge notification carrying a Discord user's full
// role set. Access and admin flags are recomputed from the configured role
// ids.
func (c *Core) NotifyRoleSet(discordID uint64, roleIDs []uint64) {
	cfg := c.Settings.Current()

	hasAccess := false
	isAdmin := false
	for _, r := range roleIDs {
		if cfg.WhitelistRoleID != nil && r == *cfg.WhitelistRoleID {
			hasAccess = true
		}
		if cfg.AdminRoleID != nil && r == *cfg.AdminRoleID {
			isAdmin = true
		}
	}

	id, pdata, ok := c.Store.FindByDiscordID(discordID)
	if !ok {
		c.Audit.Message(fmt.Sprintf("Role update for unlinked Discord user %d: access=%t admin=%t",
			discordID, hasAccess, isAdmin))
		return
	}

	pdata.HasAccess = store.Bool(hasAccess)
	pdata.IsAdmin = isAdmin
	c.Store.Upsert(id, pdata)
	c.Audit.Message(fmt.Sprintf("Role update: %s (%d) access=%t admin=%t",
		displayName(pdata, id), discordID, hasAccess, isAdmin))
	c.enqueueSave()
}

func strPtrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
