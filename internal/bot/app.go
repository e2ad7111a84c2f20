// Package bot wires the listing services to the Telegram runtime.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jmoiron/sqlx"

	"github.com/MyhlovetsVladyslav/bookbot/core/logger"
	coretelegram "github.com/MyhlovetsVladyslav/bookbot/core/telegram"
	"github.com/MyhlovetsVladyslav/bookbot/core/telegram/router"
	"github.com/MyhlovetsVladyslav/bookbot/core/telegram/sender"
	"github.com/MyhlovetsVladyslav/bookbot/internal/chat"
	"github.com/MyhlovetsVladyslav/bookbot/internal/config"
	"github.com/MyhlovetsVladyslav/bookbot/internal/expiry"
	"github.com/MyhlovetsVladyslav/bookbot/internal/flow"
	"github.com/MyhlovetsVladyslav/bookbot/internal/media"
	"github.com/MyhlovetsVladyslav/bookbot/internal/moderation"
	"github.com/MyhlovetsVladyslav/bookbot/internal/post"
	"github.com/MyhlovetsVladyslav/bookbot/internal/post/postgres"

	tele "gopkg.in/telebot.v4"
)

// Deps are the transport and storage the App runs on.
type Deps struct {
	Store     post.Store
	Messenger chat.Messenger
	// Bot and Dispatcher are handed to the runtime; nil lets it build its own.
	Bot        *tele.Bot
	Dispatcher *sender.Dispatcher
	Scheduler  media.Scheduler
	// Close releases the storage on shutdown.
	Close func() error
}

// App is the assembled bookbot.
type App struct {
	cfg  *config.Config
	deps Deps

	registry *coretelegram.Registry
	flow     *flow.Machine
	mod      *moderation.Service
	sweeper  *expiry.Sweeper

	wg sync.WaitGroup
}

// New builds the bot, its outbound dispatcher and the Postgres-backed services.
func New(cfg *config.Config, db *sqlx.DB) (*App, error) {
	if cfg == nil || db == nil {
		return nil, fmt.Errorf("bot: config and database are required")
	}
	tb, err := coretelegram.NewBot(cfg.CoreConfig())
	if err != nil {
		return nil, err
	}
	dispatcher := sender.NewDispatcher(sender.Options{MaxRetries: 2})
	return NewWithDeps(cfg, Deps{
		Store:      postgres.New(db),
		Messenger:  chat.NewTelebot(tb, dispatcher),
		Bot:        tb,
		Dispatcher: dispatcher,
		Close:      db.Close,
	})
}

// NewWithDeps assembles the services on the given transport and storage.
func NewWithDeps(cfg *config.Config, deps Deps) (*App, error) {
	if deps.Store == nil || deps.Messenger == nil {
		return nil, fmt.Errorf("bot: store and messenger are required")
	}
	l := cfg.Listing
	locks := post.NewLocks()

	a := &App{cfg: cfg, deps: deps, registry: coretelegram.NewRegistry()}
	a.mod = moderation.New(deps.Store, deps.Messenger, locks, moderation.Options{
		ModeratorChatID: l.ModeratorChatID,
		ChannelID:       l.ChannelID,
	})
	a.flow = flow.New(deps.Store, deps.Messenger, a.mod, locks, flow.Options{
		Variant:   l.PostVariant(),
		Moderated: l.IsModerated(),
		MaxPhotos: l.MaxPhotos,
		MinWords:  l.MinWords,
		MaxWords:  l.MaxWords,
		Tiers:     l.PriceTiers,
		Media: media.Options{
			AlbumDebounce:  l.AlbumDebounce,
			NoticeDebounce: l.NotifyDebounce,
			StaleAfter:     l.AlbumStaleAfter,
			SweepInterval:  l.AlbumSweepInterval,
			Scheduler:      deps.Scheduler,
		},
	})
	a.sweeper = expiry.New(deps.Store, deps.Messenger, expiry.Options{
		After:    l.ExpireAfter,
		Interval: l.SweepInterval,
		OnExpired: func(e post.Expired) {
			a.flow.Forget(e.SubmitterID)
		},
	})

	if err := a.register(); err != nil {
		return nil, err
	}
	logger.TWire.Info("bot assembled",
		slog.String("event", "assembled"),
		slog.String("variant", l.Variant),
		slog.Bool("moderated", l.IsModerated()),
		slog.Int("max_photos", l.MaxPhotos),
	)
	return a, nil
}

// TelegramRunOptions describes the routes and the background workers.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	core := a.cfg.CoreConfig()
	routes := router.CommandRoutes(a.registry, router.CommandRouteOptions{
		AdminID:       core.Telegram.AdminID,
		OnAdminReject: a.onAdminReject,
	})
	routes = append(routes, router.CallbackRoute(a.registry, router.CallbackOptions{KeepSpinner: true}))
	routes = append(routes, router.MessageRoutes(a.registry, router.MessageOptions{
		Text:  a.onText,
		Photo: a.onPhoto,
	})...)

	return coretelegram.RunOptions{
		Config:      core,
		Bot:         a.deps.Bot,
		Registry:    a.registry,
		Dispatcher:  a.deps.Dispatcher,
		Middlewares: coretelegram.DefaultMiddlewares(core, a.onLimited),
		Routes:      routes,
		OnStart:     a.start,
		OnStop:      a.stop,
	}, nil
}

func (a *App) start(ctx context.Context, _ coretelegram.Runtime) error {
	a.wg.Add(2)
	go func() {
		defer a.wg.Done()
		a.flow.Aggregator().Run(ctx)
	}()
	go func() {
		defer a.wg.Done()
		a.sweeper.Run(ctx)
	}()
	return nil
}

func (a *App) stop(ctx context.Context, _ coretelegram.Runtime) error {
	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		logger.TWire.Warn("workers still running at shutdown", slog.String("event", "shutdown"))
	}
	if a.deps.Close != nil {
		return a.deps.Close()
	}
	return nil
}
