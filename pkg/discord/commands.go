package discord

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"

	"github.com/argus-mc/argus/pkg/log"
	"github.com/argus-mc/argus/pkg/store"
	"github.com/argus-mc/argus/pkg/util"
)

// subcommandMeta centralizes the /whitelist subcommand definitions.
type subcommandMeta struct {
	Name        string
	Description string
	Args        []argMeta
}

type argMeta struct {
	Type        discordgo.ApplicationCommandOptionType
	Name        string
	Description string
	Required    bool
}

// publicSubcommands may be used without the admin role.
var publicSubcommands = map[string]bool{
	"apply": true,
	"my":    true,
	"help":  true,
}

var playerArg = argMeta{
	Type: discordgo.ApplicationCommandOptionString, Name: "player",
	Description: "Player UUID or Minecraft name", Required: true,
}

var whitelistSubcommands = []subcommandMeta{
	{
		Name: "add", Description: "Grant a player access.",
		Args: []argMeta{
			playerArg,
			{Type: discordgo.ApplicationCommandOptionString, Name: "mcname", Description: "Minecraft name to record"},
			{Type: discordgo.ApplicationCommandOptionUser, Name: "discord", Description: "Discord user to look up instead"},
		},
	},
	{
		Name: "remove", Description: "Revoke a player's access.",
		Args: []argMeta{
			playerArg,
			{Type: discordgo.ApplicationCommandOptionUser, Name: "discord", Description: "Discord user to look up instead"},
		},
	},
	{
		Name: "status", Description: "Show a player's whitelist status.",
		Args: []argMeta{
			playerArg,
			{Type: discordgo.ApplicationCommandOptionUser, Name: "discord", Description: "Discord user to look up instead"},
		},
	},
	{
		Name: "apply", Description: "Apply for whitelist access.",
		Args: []argMeta{
			{Type: discordgo.ApplicationCommandOptionString, Name: "mcname", Description: "Your Minecraft name", Required: true},
		},
	},
	{Name: "list-applications", Description: "List pending whitelist applications."},
	{
		Name: "approve", Description: "Approve a whitelist application.",
		Args: []argMeta{
			{Type: discordgo.ApplicationCommandOptionString, Name: "application", Description: "Application id", Required: true},
			{Type: discordgo.ApplicationCommandOptionString, Name: "reason", Description: "Decision note"},
		},
	},
	{
		Name: "deny", Description: "Deny a whitelist application.",
		Args: []argMeta{
			{Type: discordgo.ApplicationCommandOptionString, Name: "application", Description: "Application id", Required: true},
			{Type: discordgo.ApplicationCommandOptionString, Name: "reason", Description: "Decision note"},
		},
	},
	{
		Name: "comment", Description: "Attach a note to a player.",
		Args: []argMeta{
			playerArg,
			{Type: discordgo.ApplicationCommandOptionString, Name: "note", Description: "The note", Required: true},
		},
	},
	{
		Name: "review", Description: "Show the last events for a player.",
		Args: []argMeta{playerArg},
	},
	{
		Name: "warn", Description: "Warn a player.",
		Args: []argMeta{
			playerArg,
			{Type: discordgo.ApplicationCommandOptionString, Name: "reason", Description: "Warn reason", Required: true},
		},
	},
	{
		Name: "ban", Description: "Ban a player.",
		Args: []argMeta{
			playerArg,
			{Type: discordgo.ApplicationCommandOptionString, Name: "reason", Description: "Ban reason", Required: true},
			{Type: discordgo.ApplicationCommandOptionInteger, Name: "duration_minutes", Description: "Ban duration; omit for permanent"},
		},
	},
	{
		Name: "unban", Description: "Unban a player.",
		Args: []argMeta{
			playerArg,
			{Type: discordgo.ApplicationCommandOptionString, Name: "reason", Description: "Unban reason"},
		},
	},
	{Name: "my", Description: "Show your own warnings and ban state."},
	{Name: "help", Description: "Show command help."},
}

func buildWhitelistOptions() []*discordgo.ApplicationCommandOption {
	var opts []*discordgo.ApplicationCommandOption
	for _, sub := range whitelistSubcommands {
		var subOpts []*discordgo.ApplicationCommandOption
		for _, arg := range sub.Args {
			subOpts = append(subOpts, &discordgo.ApplicationCommandOption{
				Type:        arg.Type,
				Name:        arg.Name,
				Description: arg.Description,
				Required:    arg.Required,
			})
		}
		opts = append(opts, &discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Name:        sub.Name,
			Description: sub.Description,
			Options:     subOpts,
		})
	}
	return opts
}

func commandDefinitions() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        "link",
			Description: "Link your Minecraft account with a token shown in-game.",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "token",
					Description: "The link token",
					Required:    true,
				},
			},
		},
		{
			Name:        "whitelist",
			Description: "Whitelist management.",
			Options:     buildWhitelistOptions(),
		},
	}
}

func (b *Bridge) registerCommandsLocked() error {
	cfg := b.settings.Current()
	if cfg.GuildID == nil || b.session.State == nil || b.session.State.User == nil {
		return fmt.Errorf("session or guild not ready")
	}
	guildID := strconv.FormatUint(*cfg.GuildID, 10)
	appID := b.session.State.User.ID

	for _, def := range commandDefinitions() {
		created, err := b.session.ApplicationCommandCreate(appID, guildID, def)
		if err != nil {
			return fmt.Errorf("create command %s: %w", def.Name, err)
		}
		b.registered = append(b.registered, created)
	}
	log.Infof(log.DiscordEvents, "Registered %d slash commands in guild %s", len(b.registered), guildID)
	return nil
}

func (b *Bridge) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	data := i.ApplicationCommandData()

	var reply string
	var err error
	switch data.Name {
	case "link":
		reply, err = b.handleLink(i, data)
	case "whitelist":
		reply, err = b.handleWhitelist(i, data)
	default:
		return
	}

	if err != nil {
		reply = "Error: " + err.Error()
	}
	if reply == "" {
		reply = "Done."
	}
	b.respondEphemeral(s, i, reply)
}

func (b *Bridge) respondEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		log.Errorf("interaction respond failed: %v", err)
	}
}

// invoker returns the Discord id and display label of the command caller.
func invoker(i *discordgo.InteractionCreate) (uint64, string, error) {
	var user *discordgo.User
	if i.Member != nil {
		user = i.Member.User
	} else {
		user = i.User
	}
	if user == nil {
		return 0, "", fmt.Errorf("interaction without a user")
	}
	id, err := strconv.ParseUint(user.ID, 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("unparseable user id %q", user.ID)
	}
	return id, user.Username, nil
}

func (b *Bridge) isAdmin(i *discordgo.InteractionCreate) bool {
	cfg := b.settings.Current()
	if cfg.AdminRoleID == nil || i.Member == nil {
		return false
	}
	want := strconv.FormatUint(*cfg.AdminRoleID, 10)
	for _, r := range i.Member.Roles {
		if r == want {
			return true
		}
	}
	return false
}

func (b *Bridge) handleLink(i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) (string, error) {
	opts := optionMap(data.Options)
	tok, _ := stringOption(opts, "token")

	discordID, name, err := invoker(i)
	if err != nil {
		return "", err
	}
	nick := ""
	if i.Member != nil {
		nick = i.Member.Nick
	}
	return b.core.LinkDiscordUser(strings.TrimSpace(tok), discordID, name, nick)
}

func (b *Bridge) handleWhitelist(i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) (string, error) {
	if len(data.Options) == 0 || data.Options[0].Type != discordgo.ApplicationCommandOptionSubCommand {
		return "", fmt.Errorf("missing subcommand")
	}
	sub := data.Options[0]
	opts := optionMap(sub.Options)

	if !publicSubcommands[sub.Name] && !b.isAdmin(i) {
		return "You do not have permission to use this command.", nil
	}

	actorID, actorLabel, err := invoker(i)
	if err != nil {
		return "", err
	}

	switch sub.Name {
	case "add":
		id, err := b.resolvePlayerAllowUnknown(opts)
		if err != nil {
			return "", err
		}
		mcname, _ := stringOption(opts, "mcname")
		return b.core.WhitelistAdd(id, mcname, actorLabel), nil
	case "remove":
		id, err := b.resolvePlayer(opts)
		if err != nil {
			return "", err
		}
		return b.core.WhitelistRemove(id, actorLabel), nil
	case "status":
		id, err := b.resolvePlayer(opts)
		if err != nil {
			return "", err
		}
		return b.core.WhitelistStatus(id), nil
	case "apply":
		mcname, _ := stringOption(opts, "mcname")
		appID, err := b.core.SubmitApplication(actorID, mcname)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Application submitted (id %s).", appID), nil
	case "list-applications":
		return renderPendingApplications(b.core.ListPendingApplications()), nil
	case "approve":
		appID, _ := stringOption(opts, "application")
		reason, _ := stringOption(opts, "reason")
		return b.core.ApproveApplication(appID, actorID, reason)
	case "deny":
		appID, _ := stringOption(opts, "application")
		reason, _ := stringOption(opts, "reason")
		return b.core.DenyApplication(appID, actorID, reason)
	case "comment":
		id, err := b.resolvePlayer(opts)
		if err != nil {
			return "", err
		}
		note, _ := stringOption(opts, "note")
		return b.core.CommentOnPlayer(id, actorID, note), nil
	case "review":
		id, err := b.resolvePlayer(opts)
		if err != nil {
			return "", err
		}
		return renderEvents(id, b.core.Store.EventsFor(id, 10)), nil
	case "warn":
		id, err := b.resolvePlayer(opts)
		if err != nil {
			return "", err
		}
		reason, _ := stringOption(opts, "reason")
		return b.core.WarnPlayer(id, actorID, reason), nil
	case "ban":
		id, err := b.resolvePlayer(opts)
		if err != nil {
			return "", err
		}
		reason, _ := stringOption(opts, "reason")
		var until *int64
		if minutes, ok := intOption(opts, "duration_minutes"); ok {
			until = store.I64(b.core.NowMillis() + minutes*60_000)
		}
		return b.core.BanPlayer(id, actorID, reason, until), nil
	case "unban":
		id, err := b.resolvePlayer(opts)
		if err != nil {
			return "", err
		}
		reason, _ := stringOption(opts, "reason")
		return b.core.UnbanPlayer(id, actorID, reason), nil
	case "my":
		return b.renderMy(actorID), nil
	case "help":
		return renderHelp(), nil
	default:
		return "", fmt.Errorf("unknown subcommand %q", sub.Name)
	}
}

// resolvePlayer maps the player/discord options to a known game UUID.
func (b *Bridge) resolvePlayer(opts map[string]*discordgo.ApplicationCommandInteractionDataOption) (uuid.UUID, error) {
	if opt, ok := opts["discord"]; ok {
		discordID, err := strconv.ParseUint(opt.Value.(string), 10, 64)
		if err != nil {
			return uuid.Nil, fmt.Errorf("invalid discord user id")
		}
		if id, _, ok := b.core.Store.FindByDiscordID(discordID); ok {
			return id, nil
		}
		return uuid.Nil, fmt.Errorf("no player linked to that Discord user")
	}

	raw, _ := stringOption(opts, "player")
	raw = strings.TrimSpace(raw)
	if id, err := util.ParseUUID(raw); err == nil {
		return id, nil
	}
	if id, _, ok := b.core.Store.FindByName(raw); ok {
		return id, nil
	}
	return uuid.Nil, fmt.Errorf("no entry for %q", raw)
}

// resolvePlayerAllowUnknown additionally accepts a bare UUID with no existing
// record (whitelist add creates records lazily).
func (b *Bridge) resolvePlayerAllowUnknown(opts map[string]*discordgo.ApplicationCommandInteractionDataOption) (uuid.UUID, error) {
	id, err := b.resolvePlayer(opts)
	if err == nil {
		return id, nil
	}
	raw, _ := stringOption(opts, "player")
	if parsed, perr := util.ParseUUID(strings.TrimSpace(raw)); perr == nil {
		return parsed, nil
	}
	return uuid.Nil, err
}

func (b *Bridge) renderMy(discordID uint64) string {
	_, rec, ok := b.core.Store.FindByDiscordID(discordID)
	if !ok {
		return "No linked Minecraft account. Use /link with the token shown in-game."
	}
	out := fmt.Sprintf("Warnings: %d", rec.WarnCount)
	if msg, banned := b.core.ActiveBanMessage(rec); banned {
		out += "\nBan: " + msg
	}
	return out
}

func renderPendingApplications(apps []store.WhitelistApplication) string {
	if len(apps) == 0 {
		return "No pending applications."
	}
	var sb strings.Builder
	for _, app := range apps {
		fmt.Fprintf(&sb, "%s — %s (discord %d)\n", app.ID, app.MCName, app.DiscordID)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func renderEvents(id uuid.UUID, events []store.EventEntry) string {
	if len(events) == 0 {
		return fmt.Sprintf("No events for %s", id)
	}
	var sb strings.Builder
	for _, e := range events {
		fmt.Fprintf(&sb, "%s: %s", formatMillis(e.AtEpochMillis), e.Type)
		if e.Message != nil {
			fmt.Fprintf(&sb, " — %s", *e.Message)
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatMillis(ms int64) string {
	return time.UnixMilli(ms).UTC().Format("2006-01-02 15:04")
}

func renderHelp() string {
	var sb strings.Builder
	sb.WriteString("/link token — link your Minecraft account\n")
	for _, sub := range whitelistSubcommands {
		fmt.Fprintf(&sb, "/whitelist %s — %s\n", sub.Name, sub.Description)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func optionMap(opts []*discordgo.ApplicationCommandInteractionDataOption) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	m := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(opts))
	for _, o := range opts {
		m[o.Name] = o
	}
	return m
}

func stringOption(opts map[string]*discordgo.ApplicationCommandInteractionDataOption, name string) (string, bool) {
	o, ok := opts[name]
	if !ok {
		return "", false
	}
	s, ok := o.Value.(string)
	return s, ok
}

func intOption(opts map[string]*discordgo.ApplicationCommandInteractionDataOption, name string) (int64, bool) {
	o, ok := opts[name]
	if !ok {
		return 0, false
	}
	switch v := o.Value.(type) {
	case float64:
		return int64(v), true
	case int64:
		return v, true
	default:
		return 0, false
	}
}
