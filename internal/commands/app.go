package commands

import (
	"context"
	"fmt"

	"timesheet/internal/api"
	"timesheet/internal/auth"
	"timesheet/internal/bot"
	"timesheet/internal/cards"
	"timesheet/internal/config"
	"timesheet/internal/db"
	"timesheet/internal/graph"
	"timesheet/internal/logging"
	"timesheet/internal/reminder"
	"timesheet/internal/service"
)

// app holds the wired components shared by the serve and remind commands.
type app struct {
	cfg       *config.Config
	db        *db.DB
	directory *graph.Client
	cards     *cards.Renderer
	notifier  *bot.Router
	// discord is nil when no bot token is configured
	discord  *bot.Bot
	services *service.Services
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	database, err := db.New(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	a := &app{
		cfg:       cfg,
		db:        database,
		directory: graph.New(ctx, cfg.Graph),
		cards:     cards.NewRenderer(cfg.App.Name, cfg.Bot.CardCacheTTL),
		notifier:  &bot.Router{},
	}

	if cfg.Bot.AppID != "" {
		a.notifier.BotFramework = bot.NewConnector(ctx, cfg.Bot)
	} else {
		logging.Logger.Warn("Event ID: BOT_FRAMEWORK_DISABLED, Description: No bot app id configured")
	}

	deps := service.Deps{
		Store:     database,
		Directory: a.directory,
		Notifier:  a.notifier,
		Cards:     a.cards,
		Timesheet: cfg.Timesheet,
		Locale:    cfg.Locale(),
	}

	if cfg.Bot.DiscordToken != "" {
		a.discord, err = bot.New(cfg.Bot, cfg.Timesheet, database)
		if err != nil {
			database.Close()
			return nil, err
		}
		a.notifier.Discord = bot.NewDiscordNotifier(a.discord.Session())
		deps.Discord = a.discord
	} else {
		logging.Logger.Warn("Event ID: DISCORD_DISABLED, Description: No Discord token configured")
	}

	deps.LinkCodeTTL = cfg.Bot.LinkCodeTTL
	a.services = service.New(deps)
	if a.discord != nil {
		a.discord.SetLinker(a.services.Notifications)
	}
	return a, nil
}

func (a *app) reminderJob() *reminder.Job {
	return reminder.NewJob(a.db, a.directory, a.notifier, a.cards, a.cfg.Locale(), a.cfg.Timesheet.Location())
}

func (a *app) apiOptions() (*api.Options, error) {
	validator, err := auth.NewValidator(a.cfg.Auth.Issuer, a.cfg.Auth.Audience, a.cfg.Auth.SigningSecret, a.cfg.Auth.PublicKeysPEM)
	if err != nil {
		return nil, fmt.Errorf("failed to create token validator: %w", err)
	}

	opts := &api.Options{
		Services:       a.services,
		Validator:      validator,
		Authorizer:     auth.NewAuthorizer(auth.NewFacts(a.db, a.directory), a.cfg.Auth.CacheTTL),
		Locales:        a.cfg.Locales(),
		AllowedOrigins: a.cfg.Server.AllowedOrigins,
	}
	if a.cfg.Bot.AppID != "" {
		opts.BotValidator, err = auth.NewValidator(a.cfg.Bot.ActivityIssuer, a.cfg.Bot.AppID, a.cfg.Bot.ActivitySigningSecret, a.cfg.Bot.ActivityPublicKeysPEM)
		if err != nil {
			return nil, fmt.Errorf("failed to create activity validator: %w", err)
		}
	}
	return opts, nil
}

func (a *app) Close() {
	a.db.Close()
}
