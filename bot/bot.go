// Package bot connects the streak engine to Discord. The Router holds all
// command behavior; this file only owns the session lifecycle.
package bot

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"streakbot/core"
)

// Config holds the bot's connection settings.
type Config struct {
	Token  string
	Prefix string
}

// Bot is a Discord front end over the Router.
type Bot struct {
	session *discordgo.Session
	router  *Router
	logger  *slog.Logger
}

// New creates the bot but does not connect; call Start.
func New(cfg Config, router *Router, logger *slog.Logger) (*Bot, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("discord token is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentMessageContent

	b := &Bot{session: session, router: router, logger: logger}
	session.AddHandler(b.onMessageCreate)
	return b, nil
}

// Start opens the gateway connection.
func (b *Bot) Start() error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("open discord session: %w", err)
	}
	b.logger.Info("discord bot connected", "user", b.session.State.User.Username)
	return nil
}

// Stop closes the gateway connection.
func (b *Bot) Stop() error {
	return b.session.Close()
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}

	msg := Message{
		UserID:      core.UserID(m.Author.ID),
		DisplayName: m.Author.GlobalName,
		Handle:      m.Author.Username,
		Content:     m.Content,
	}
	if msg.DisplayName == "" {
		msg.DisplayName = m.Author.Username
	}

	reply, handled := b.router.Handle(context.Background(), msg)
	if !handled || reply == "" {
		return
	}
	if _, err := s.ChannelMessageSend(m.ChannelID, reply); err != nil {
		b.logger.Warn("failed to send reply", "channel", m.ChannelID, "error", err)
	}
}
