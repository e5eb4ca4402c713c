package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"timesheet/internal/config"
	"timesheet/internal/db"
	"timesheet/internal/db/models"
	"timesheet/internal/logging"

	"github.com/bwmarrin/discordgo"
)

// Linker redeems the one-time codes users get from the timesheet app.
type Linker interface {
	RedeemLinkCode(ctx context.Context, code, discordUserID string) (*models.Conversation, error)
}

// Bot runs the Discord side of the service: slash commands for members and
// the DM channels that notifications are delivered to.
type Bot struct {
	config     config.Bot
	timesheet  config.Timesheet
	store      db.Store
	linker     Linker
	session    *discordgo.Session
	shutdownCh chan struct{}
	isShutdown bool
	mu         sync.Mutex
	wg         sync.WaitGroup
}

func New(cfg config.Bot, timesheet config.Timesheet, store db.Store) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, fmt.Errorf("error creating Discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsDirectMessages

	return &Bot{
		config:     cfg,
		timesheet:  timesheet,
		store:      store,
		session:    session,
		shutdownCh: make(chan struct{}),
	}, nil
}

// SetLinker wires the /link command. It must be called before Start.
func (b *Bot) SetLinker(l Linker) {
	b.linker = l
}

// Session is shared with the notifier so both use one gateway connection.
func (b *Bot) Session() *discordgo.Session {
	return b.session
}

// OpenDM returns the DM channel id of a Discord user, creating it if needed.
func (b *Bot) OpenDM(discordUserID string) (string, error) {
	channel, err := b.session.UserChannelCreate(discordUserID)
	if err != nil {
		return "", fmt.Errorf("error opening DM channel: %w", err)
	}
	return channel.ID, nil
}

// Helper function to register commands for a guild
func (b *Bot) registerGuildCommands(guildID string) error {
	maxRetries := 3
	var lastErr error

	for i := 0; i < maxRetries; i++ {
		_, err := b.session.ApplicationCommandBulkOverwrite(b.config.DiscordClientID, guildID, commands)
		if err == nil {
			logging.Logger.Infof("Event ID: BOT_COMMANDS_REGISTERED, Description: Registered %d commands for guild %s", len(commands), guildID)
			return nil
		}
		lastErr = err
		logging.Logger.Warnf("Event ID: BOT_COMMANDS_RETRY, Description: Attempt %d to register commands for guild %s failed: %v", i+1, guildID, err)
		time.Sleep(time.Second * time.Duration(i+1))
	}
	return fmt.Errorf("failed to register commands after %d attempts: %v", maxRetries, lastErr)
}

// Start opens the gateway session and blocks until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	logging.Logger.Info("Event ID: BOT_STARTING, Description: Starting Discord bot")

	// Keep trying to open session until successful
	for {
		err := b.session.Open()
		if err == nil {
			logging.Logger.Infof("Event ID: BOT_SESSION_OPENED, Description: Session opened (Session ID: %s)", b.session.State.SessionID)
			break
		}
		logging.Logger.Warnf("Event ID: BOT_SESSION_RETRY, Description: Error opening Discord session: %v. Retrying in 5 seconds", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Second):
		}
	}

	b.session.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		if i.Type == discordgo.InteractionApplicationCommand {
			b.handleCommand(s, i)
		}
	})

	for _, guild := range b.session.State.Guilds {
		if err := b.registerGuildCommands(guild.ID); err != nil {
			logging.Logger.Errorf("Event ID: BOT_COMMANDS_FAILED, Description: %v", err)
		}
	}
	b.session.AddHandler(b.handleGuildCreate)

	logging.Logger.Info("Event ID: BOT_RUNNING, Description: Discord bot is running")

	<-ctx.Done()
	return b.Shutdown()
}

// Shutdown removes the commands and closes the session. It is safe to call
// more than once.
func (b *Bot) Shutdown() error {
	b.mu.Lock()
	if b.isShutdown {
		b.mu.Unlock()
		return nil
	}
	b.isShutdown = true
	close(b.shutdownCh)
	b.mu.Unlock()

	// Wait for all handlers to complete
	b.wg.Wait()

	for _, guild := range b.session.State.Guilds {
		registered, err := b.session.ApplicationCommands(b.config.DiscordClientID, guild.ID)
		if err != nil {
			logging.Logger.Warnf("Event ID: BOT_COMMANDS_LIST_FAILED, Description: Guild %s: %v", guild.ID, err)
			continue
		}
		for _, cmd := range registered {
			if err := b.session.ApplicationCommandDelete(b.config.DiscordClientID, guild.ID, cmd.ID); err != nil {
				logging.Logger.Warnf("Event ID: BOT_COMMAND_REMOVE_FAILED, Description: Guild %s, command %s: %v", guild.ID, cmd.Name, err)
			}
		}
	}

	if err := b.session.Close(); err != nil {
		return fmt.Errorf("error closing Discord session: %w", err)
	}
	logging.Logger.Info("Event ID: BOT_STOPPED, Description: Discord bot shut down")
	return nil
}

func (b *Bot) handleGuildCreate(s *discordgo.Session, g *discordgo.GuildCreate) {
	logging.Logger.Infof("Event ID: BOT_GUILD_JOINED, Description: Bot joined guild %s (%s)", g.Name, g.ID)
	if err := b.registerGuildCommands(g.ID); err != nil {
		logging.Logger.Errorf("Event ID: BOT_COMMANDS_FAILED, Description: %v", err)
	}
}

// shuttingDown reports whether new interactions should be refused.
func (b *Bot) shuttingDown() bool {
	select {
	case <-b.shutdownCh:
		return true
	default:
		return false
	}
}
