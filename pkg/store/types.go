package store

// EventType enumerates the audit event kinds kept in the cache.
type EventType string

const (
	EventLink            EventType = "link"
	EventWhitelistAdd    EventType = "whitelist_add"
	EventWhitelistRemove EventType = "whitelist_remove"
	EventApplySubmit     EventType = "apply_submit"
	EventApplyApprove    EventType = "apply_approve"
	EventApplyDeny       EventType = "apply_deny"
	EventWarn            EventType = "warn"
	EventBan             EventType = "ban"
	EventUnban           EventType = "unban"
	EventComment         EventType = "comment"
	EventFirstAllow      EventType = "first_allow"
	EventFirstLegacyKick EventType = "first_legacy_kick"
)

// PlayerRecord is the cached state for one game account, keyed by UUID.
// Records are value types: mutation replaces the whole record via Upsert.
type PlayerRecord struct {
	DiscordID           *uint64 `json:"discordId"`
	HasAccess           *bool   `json:"hasAccess"`
	IsAdmin             bool    `json:"isAdmin"`
	MCName              *string `json:"mcName"`
	DiscordName         *string `json:"discordName"`
	DiscordNick         *string `json:"discordNick"`
	BanReason           *string `json:"banReason"`
	BanUntilEpochMillis *int64  `json:"banUntilEpochMillis"`
	WarnCount           int     `json:"warnCount"`
}

// EventEntry is one append-only audit record. Entries are never mutated.
type EventEntry struct {
	Type             EventType `json:"type"`
	TargetUUID       *string   `json:"targetUuid"`
	TargetDiscordID  *uint64   `json:"targetDiscordId"`
	ActorDiscordID   *uint64   `json:"actorDiscordId"`
	Message          *string   `json:"message"`
	UntilEpochMillis *int64    `json:"untilEpochMillis"`
	AtEpochMillis    int64     `json:"atEpochMillis"`
}

// ApplicationStatus is the workflow state of a whitelist application.
type ApplicationStatus string

const (
	StatusPending  ApplicationStatus = "pending"
	StatusApproved ApplicationStatus = "approved"
	StatusDenied   ApplicationStatus = "denied"
)

// WhitelistApplication is one whitelist request made from Discord.
type WhitelistApplication struct {
	ID                     string            `json:"id"`
	DiscordID              uint64            `json:"discordId"`
	MCName                 string            `json:"mcName"`
	ResolvedUUID           *string           `json:"resolvedUuid"`
	Status                 ApplicationStatus `json:"status"`
	Reason                 *string           `json:"reason"`
	SubmittedAtEpochMillis int64             `json:"submittedAtEpochMillis"`
	DecidedAtEpochMillis   *int64            `json:"decidedAtEpochMillis"`
	DecidedByDiscordID     *uint64           `json:"decidedByDiscordId"`
}

// Pointer helpers for building records; optional fields are pointers so that
// the snapshot serializes absent values as null.

func Str(v string) *string { return &v }

func Bool(v bool) *bool { return &v }

func U64(v uint64) *uint64 { return &v }

func I64(v int64) *int64 { return &v }

// snapshotFile is the on-disk shape of the cache. Unknown keys on input are
// tolerated by encoding/json.
type snapshotFile struct {
	Players      map[string]PlayerRecord `json:"players"`
	Events       []EventEntry            `json:"events"`
	Applications []WhitelistApplication  `json:"applications"`
}
