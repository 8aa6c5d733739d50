package core

import (
	"testing"

	"github.com/argus-mc/argus/pkg/store"
)

func TestNotifyRoleSet(t *testing.T) {
	t.Parallel()

	c, _ := newTestCore(t)
	id := seedPlayer(c, store.PlayerRecord{DiscordID: store.U64(42)})

	// Whitelist role 10 and admin role 11 match the test settings.
	c.NotifyRoleSet(42, []uint64{10, 11, 999})
	rec, _ := c.Store.Get(id)
	if rec.HasAccess == nil || !*rec.HasAccess || !rec.IsAdmin {
		t.Fatalf("role grant not applied: %+v", rec)
	}

	c.NotifyRoleSet(42, []uint64{999})
	rec, _ = c.Store.Get(id)
	if rec.HasAccess == nil || *rec.HasAccess || rec.IsAdmin {
		t.Fatalf("role loss not applied: %+v", rec)
	}
}

func TestNotifyRoleSetUnlinkedUser(t *testing.T) {
	t.Parallel()

	c, _ := newTestCore(t)
	c.NotifyRoleSet(777, []uint64{10})
	if len(c.Store.Players()) != 0 {
		t.Fatal("role update for unlinked user created a record")
	}
}

func TestNotifyIdentityChange(t *testing.T) {
	t.Parallel()

	c, _ := newTestCore(t)
	id := seedPlayer(c, store.PlayerRecord{
		DiscordID:   store.U64(42),
		DiscordName: store.Str("old_name"),
	})

	c.NotifyIdentityChange(42, "new_name", "nick")
	rec, _ := c.Store.Get(id)
	if rec.DiscordName == nil || *rec.DiscordName != "new_name" {
		t.Fatalf("name not updated: %v", rec.DiscordName)
	}
	if rec.DiscordNick == nil || *rec.DiscordNick != "nick" {
		t.Fatalf("nick not updated: %v", rec.DiscordNick)
	}

	// Clearing the nick persists as nil.
	c.NotifyIdentityChange(42, "new_name", "")
	rec, _ = c.Store.Get(id)
	if rec.DiscordNick != nil {
		t.Fatalf("nick not cleared: %v", rec.DiscordNick)
	}
}

func TestNotifyIdentityChangeUnlinkedUser(t *testing.T) {
	t.Parallel()

	c, _ := newTestCore(t)
	c.NotifyIdentityChange(777, "ghost", "")
	if len(c.Store.Players()) != 0 {
		t.Fatal("identity update for unlinked user created a record")
	}
}
