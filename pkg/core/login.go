package core

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/argus-mc/argus/pkg/store"
)

// denyPrefix marks user-visible denial messages.
const denyPrefix = "[argus] "

// activeBan returns the denial message for an active ban. A nil
// banUntilEpochMillis with a set reason is a permanent ban.
func activeBan(rec store.PlayerRecord, nowMillis int64) (string, bool) {
	if rec.BanUntilEpochMillis != nil {
		if *rec.BanUntilEpochMillis <= nowMillis {
			return "", false
		}
		reason := "Banned"
		if rec.BanReason != nil {
			reason = *rec.BanReason
		}
		remaining := (*rec.BanUntilEpochMillis - nowMillis + 999) / 1000
		return fmt.Sprintf("%s%s (%ds remaining)", denyPrefix, reason, remaining), true
	}
	if rec.BanReason != nil {
		return fmt.Sprintf("%s%s (permanent)", denyPrefix, *rec.BanReason), true
	}
	return "", false
}

// OnPlayerLogin decides whether a login proceeds. Cache-first: the only
// remote call is a single bounded role query, and only when the cached state
// would otherwise deny a linked player.
func (c *Core) OnPlayerLogin(id uuid.UUID, name string, isOp, isLegacyWhitelisted, whitelistEnabled bool) LoginResult {
	if isOp || !whitelistEnabled {
		return allowResult()
	}

	configured := c.Settings.IsConfigured()
	discordUp := c.discordUp()
	nowMillis := c.nowMillis()
	pdata, exists := c.Store.Get(id)

	// Unconfigured or bridge down: only an active ban can deny; the host's
	// vanilla whitelist stands otherwise.
	if !configured || !discordUp {
		if exists {
			if msg, banned := activeBan(pdata, nowMillis); banned {
				return denyResult(msg, false)
			}
		}
		return allowResult()
	}

	if exists {
		pdata = c.syncMCName(id, pdata, name)
	}

	enforce := c.Settings.Current().EnforcementEnabled

	// Live role query: at most one per login, and only when the cache would
	// otherwise deny a linked player.
	haveLive := false
	var live RoleStatus
	if exists && pdata.DiscordID != nil && (pdata.HasAccess == nil || !*pdata.HasAccess) {
		live = c.checkRole(*pdata.DiscordID)
		haveLive = true
	}

	effectiveAccess := pdata.HasAccess
	lossAudited := false
	if haveLive {
		switch live {
		case RoleHasRole:
			effectiveAccess = store.Bool(true)
		case RoleMissingRole:
			effectiveAccess = store.Bool(false)
		case RoleNotInGuild:
			effectiveAccess = store.Bool(false)
			c.Audit.Message(fmt.Sprintf("%sAccess revoked: left Discord guild: %s (%s)", dryRunPrefix(enforce), name, id))
			lossAudited = true
		case RoleIndeterminate:
			// Transient failure: do no harm, keep cached state.
		}
		if enforce && !boolPtrEqual(pdata.HasAccess, effectiveAccess) {
			pdata.HasAccess = effectiveAccess
			c.Store.Upsert(id, pdata)
			c.enqueueSave()
		}
	}

	if exists {
		if msg, banned := activeBan(pdata, nowMillis); banned {
			return denyResult(msg, false)
		}
	}

	// Legacy whitelist grace: previously whitelisted players without a link
	// get a one-time kick carrying a link token.
	if isLegacyWhitelisted && (!exists || pdata.DiscordID == nil) {
		if tok, err := c.Tokens.Issue(id, name); err == nil {
			if !c.Store.HasEvent(store.EventFirstLegacyKick, id) {
				c.Store.AppendEvent(store.EventEntry{
					Type:          store.EventFirstLegacyKick,
					TargetUUID:    store.Str(id.String()),
					AtEpochMillis: nowMillis,
				})
				c.enqueueSave()
			}
			c.Audit.Message(fmt.Sprintf("Previously whitelisted but unlinked: %s (%s) -- kicked with link token", name, id))
			if enforce {
				msg := fmt.Sprintf("%sVerification Required: /link %s in Discord%s", denyPrefix, tok, c.inviteSuffix())
				return denyResult(msg, true)
			}
			c.Audit.Message(fmt.Sprintf("[DRY-RUN] Would deny legacy-unlinked %s (%s)", name, id))
			return allowResult()
		}
		// Token issue failure falls through to a conservative allow.
	}

	if effectiveAccess != nil && *effectiveAccess {
		if !c.Store.HasEvent(store.EventFirstAllow, id) {
			c.Store.AppendEvent(store.EventEntry{
				Type:          store.EventFirstAllow,
				TargetUUID:    store.Str(id.String()),
				AtEpochMillis: nowMillis,
			})
			c.enqueueSave()
			c.Audit.Message(fmt.Sprintf("First login seen (allow): %s (%s)", name, id))
		}
		return allowResult()
	}

	if effectiveAccess != nil && !*effectiveAccess && !lossAudited {
		reason := "cached access revoked"
		if haveLive && live == RoleMissingRole {
			reason = "missing Discord whitelist role"
		}
		c.Audit.Message(fmt.Sprintf("%sAccess not granted for %s (%s): %s", dryRunPrefix(enforce), name, id, reason))
	}

	// Strangers and revoked players fall through to the host's own checks.
	return allowResult()
}

// syncMCName keeps the cached MC name in step with the login name.
func (c *Core) syncMCName(id uuid.UUID, pdata store.PlayerRecord, name string) store.PlayerRecord {
	if pdata.MCName == nil {
		pdata.MCName = store.Str(name)
		c.Store.Upsert(id, pdata)
		return pdata
	}
	if *pdata.MCName != name {
		c.Audit.Message(fmt.Sprintf("MC name changed: %s -> %s (%s)", *pdata.MCName, name, id))
		pdata.MCName = store.Str(name)
		c.Store.Upsert(id, pdata)
		c.enqueueSave()
	}
	return pdata
}

// OnPlayerJoin returns an optional message for the joining player: a
// disconnect reason (access revoked / link required) or a greeting. An empty
// string means nothing to show.
func (c *Core) OnPlayerJoin(id uuid.UUID, isOp, whitelistEnabled bool, nameHint string) string {
	configured := c.Settings.IsConfigured()
	pdata, exists := c.Store.Get(id)

	if isOp {
		if configured && (!exists || pdata.DiscordID == nil) {
			if tok, err := c.Tokens.Issue(id, nameHint); err == nil {
				return fmt.Sprintf("Please link your Discord account: /link %s in Discord%s", tok, c.inviteSuffix())
			}
		} else if exists && pdata.DiscordName != nil {
			return "Welcome " + *pdata.DiscordName
		}
		return ""
	}

	if whitelistEnabled && configured {
		if !exists || pdata.DiscordID == nil {
			return c.linkRequiredMessage(id, nameHint)
		}
		if msg := c.refreshAccessOnJoin(id, pdata); msg != "" {
			return msg
		}
		pdata, exists = c.Store.Get(id)
	}

	if exists && (pdata.HasAccess == nil || *pdata.HasAccess) {
		name := nameHint
		switch {
		case pdata.DiscordName != nil:
			name = *pdata.DiscordName
		case pdata.MCName != nil:
			name = *pdata.MCName
		}
		if name == "" {
			name = "player"
		}
		return "Welcome " + name
	}
	return ""
}

func (c *Core) linkRequiredMessage(id uuid.UUID, nameHint string) string {
	tok, err := c.Tokens.Issue(id, nameHint)
	if err != nil {
		return ""
	}
	if c.Settings.Current().EnforcementEnabled {
		return fmt.Sprintf("%sLink required: /link %s in Discord%s", denyPrefix, tok, c.inviteSuffix())
	}
	return fmt.Sprintf("Please link your Discord account: /link %s in Discord%s", tok, c.inviteSuffix())
}

// refreshAccessOnJoin re-checks the live role for a linked player on join and
// persists the verdict. Indeterminate means do not act.
func (c *Core) refreshAccessOnJoin(id uuid.UUID, pdata store.PlayerRecord) string {
	status := c.checkRole(*pdata.DiscordID)
	if status == RoleIndeterminate {
		return ""
	}

	enforce := c.Settings.Current().EnforcementEnabled
	pdata.HasAccess = store.Bool(status == RoleHasRole)
	c.Store.Upsert(id, pdata)
	c.enqueueSave()

	name := displayName(pdata, id)
	switch status {
	case RoleNotInGuild:
		c.Audit.Message(fmt.Sprintf("%sAccess revoked: left Discord guild: %s (%s)", dryRunPrefix(enforce), name, id))
		if enforce {
			return denyPrefix + "Access revoked: left Discord guild"
		}
	case RoleMissingRole:
		c.Audit.Message(fmt.Sprintf("%sAccess revoked: missing Discord whitelist role: %s (%s)", dryRunPrefix(enforce), name, id))
		if enforce {
			return denyPrefix + "Access revoked: missing Discord whitelist role"
		}
	}
	return ""
}

func dryRunPrefix(enforce bool) string {
	if enforce {
		return ""
	}
	return "[DRY-RUN] "
}

func boolPtrEqual(a, b *bool) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
