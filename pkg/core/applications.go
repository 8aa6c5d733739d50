package core

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/argus-mc/argus/pkg/store"
)

// SubmitApplication resolves mcName to a profile and stores a pending
// whitelist application. Profile lookup failures propagate verbatim.
func (c *Core) SubmitApplication(discordID uint64, mcName string) (string, error) {
	profile, err := c.Resolver.LookupProfile(mcName)
	if err != nil {
		return "", err
	}

	app := store.WhitelistApplication{
		ID:                     uuid.NewString(),
		DiscordID:              discordID,
		MCName:                 profile.Name,
		ResolvedUUID:           store.Str(profile.UUID.String()),
		Status:                 store.StatusPending,
		SubmittedAtEpochMillis: c.nowMillis(),
	}
	c.Store.AddApplication(app)

	c.Store.AppendEvent(store.EventEntry{
		Type:            store.EventApplySubmit,
		TargetUUID:      store.Str(profile.UUID.String()),
		TargetDiscordID: store.U64(discordID),
		Message:         store.Str("Applied as " + profile.Name),
		AtEpochMillis:   c.nowMillis(),
	})
	c.Audit.Event("apply_submit", profile.Name, fmt.Sprintf("%d", discordID), "", nil)
	c.enqueueSave()
	return app.ID, nil
}

// ListPendingApplications returns pending applications, oldest first.
func (c *Core) ListPendingApplications() []store.WhitelistApplication {
	var pending []store.WhitelistApplication
	for _, app := range c.Store.Applications() {
		if app.Status == store.StatusPending {
			pending = append(pending, app)
		}
	}
	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].SubmittedAtEpochMillis < pending[j].SubmittedAtEpochMillis
	})
	return pending
}

// ApproveApplication transitions a pending application to approved and grants
// the applicant access.
func (c *Core) ApproveApplication(id string, actorDiscordID uint64, reason string) (string, error) {
	app, ok := c.Store.GetApplication(id)
	if !ok {
		return "", NotFoundError{Message: "Application not found: " + id}
	}
	if app.Status != store.StatusPending {
		return "", InvalidStateError{Message: "Application already decided"}
	}
	if app.ResolvedUUID == nil {
		return "", InvalidStateError{Message: "Application missing resolved UUID"}
	}
	playerID, err := uuid.Parse(*app.ResolvedUUID)
	if err != nil {
		return "", InvalidStateError{Message: "Application has invalid resolved UUID: " + *app.ResolvedUUID}
	}

	// The transition is the atomic claim; a concurrent double-decision loses
	// here and reports "already decided".
	decided := c.decideApplication(id, store.StatusApproved, actorDiscordID, reason)
	if decided == nil {
		return "", InvalidStateError{Message: "Application already decided"}
	}

	pdata, _ := c.Store.Get(playerID)
	pdata.HasAccess = store.Bool(true)
	pdata.MCName = store.Str(app.MCName)
	pdata.DiscordID = store.U64(app.DiscordID)
	c.Store.Upsert(playerID, pdata)

	var msg *string
	if reason != "" {
		msg = store.Str(reason)
	}
	c.Store.AppendEvent(store.EventEntry{
		Type:            store.EventApplyApprove,
		TargetUUID:      store.Str(playerID.String()),
		TargetDiscordID: store.U64(app.DiscordID),
		ActorDiscordID:  store.U64(actorDiscordID),
		Message:         msg,
		AtEpochMillis:   c.nowMillis(),
	})
	c.Audit.Event("apply_approve", app.MCName, fmt.Sprintf("%d", actorDiscordID), reason, nil)
	c.enqueueSave()
	return fmt.Sprintf("Approved %s", app.MCName), nil
}

// DenyApplication transitions a pending application to denied.
func (c *Core) DenyApplication(id string, actorDiscordID uint64, reason string) (string, error) {
	app, ok := c.Store.GetApplication(id)
	if !ok {
		return "", NotFoundError{Message: "Application not found: " + id}
	}
	if app.Status != store.StatusPending {
		return "", InvalidStateError{Message: "Application already decided"}
	}

	decided := c.decideApplication(id, store.StatusDenied, actorDiscordID, reason)
	if decided == nil {
		return "", InvalidStateError{Message: "Application already decided"}
	}

	var msg *string
	if reason != "" {
		msg = store.Str(reason)
	}
	c.Store.AppendEvent(store.EventEntry{
		Type:            store.EventApplyDeny,
		TargetDiscordID: store.U64(app.DiscordID),
		TargetUUID:      app.ResolvedUUID,
		ActorDiscordID:  store.U64(actorDiscordID),
		Message:         msg,
		AtEpochMillis:   c.nowMillis(),
	})
	c.Audit.Event("apply_deny", app.MCName, fmt.Sprintf("%d", actorDiscordID), reason, nil)
	c.enqueueSave()
	return fmt.Sprintf("Denied application %s", app.MCName), nil
}

// decideApplication performs the pending -> decided transition atomically.
func (c *Core) decideApplication(id string, status store.ApplicationStatus, actorDiscordID uint64, reason string) *store.WhitelistApplication {
	nowMillis := c.nowMillis()
	return c.Store.UpdateApplication(id, func(app store.WhitelistApplication) *store.WhitelistApplication {
		if app.Status != store.StatusPending {
			return nil
		}
		app.Status = status
		if reason != "" {
			app.Reason = store.Str(reason)
		}
		app.DecidedAtEpochMillis = store.I64(nowMillis)
		app.DecidedByDiscordID = store.U64(actorDiscordID)
		return &app
	})
}
