package discord

import (
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/argus-mc/argus/pkg/log"
)

// NewSession creates and connects a Discord session with the intents the
// bridge needs: guild metadata and member (role/identity) updates.
func NewSession(token string) (*discordgo.Session, error) {
	if token == "" {
		return nil, fmt.Errorf("discord bot token is empty")
	}

	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}

	s.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMembers

	log.Info(log.DiscordEvents, "Connecting to Discord...")
	if err := s.Open(); err != nil {
		return nil, fmt.Errorf("failed to connect to Discord: %w", err)
	}

	if s.State != nil && s.State.User != nil {
		log.Infof(log.DiscordEvents, "Authenticated as %s", s.State.User.Username)
	}
	return s, nil
}
