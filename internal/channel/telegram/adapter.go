// Package telegram connects the bridge to the Telegram Bot API by long polling.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/memohai/immich-bridge/internal/bridge"
	"github.com/memohai/immich-bridge/internal/config"
)

// pollTimeout is the long polling timeout in seconds.
const pollTimeout = 30

// tgbotapi keeps a single package-level logger.
var setLoggerOnce sync.Once

// Handler consumes inbound events. *bridge.Service implements it.
type Handler interface {
	Dispatch(ctx context.Context, ev bridge.Event, t bridge.Transport)
}

// Adapter owns the bot connection and implements bridge.Transport and
// bridge.Notifier on top of it.
type Adapter struct {
	logger *slog.Logger
	token  string
	apiURL string
	http   *http.Client

	mu         sync.Mutex
	bot        *tgbotapi.BotAPI
	cancel     context.CancelFunc
	cancelWork context.CancelFunc
	wg         sync.WaitGroup
}

// NewAdapter creates an adapter for the configured bot. A nil httpClient uses
// a client without timeout, since file downloads can be large.
func NewAdapter(log *slog.Logger, cfg config.Config, httpClient *http.Client) *Adapter {
	if log == nil {
		log = slog.Default()
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	log = log.With(slog.String("adapter", "telegram"))
	setLoggerOnce.Do(func() {
		_ = tgbotapi.SetLogger(&slogBotLogger{log: log})
	})
	return &Adapter{
		logger: log,
		token:  cfg.Telegram.BotToken,
		apiURL: strings.TrimRight(cfg.Telegram.APIURL, "/"),
		http:   httpClient,
	}
}

// UsesLocalAPI reports whether a self-hosted Bot API server is configured.
func (a *Adapter) UsesLocalAPI() bool {
	return a.apiURL != ""
}

func (a *Adapter) endpoint() string {
	if a.apiURL == "" {
		return tgbotapi.APIEndpoint
	}
	return a.apiURL + "/bot%s/%s"
}

// connect authenticates the bot (getMe) without starting to poll.
func (a *Adapter) connect() (*tgbotapi.BotAPI, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.bot != nil {
		return a.bot, nil
	}
	if strings.TrimSpace(a.token) == "" {
		return nil, errors.New("telegram bot token is required")
	}
	bot, err := tgbotapi.NewBotAPIWithClient(a.token, a.endpoint(), a.http)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	a.bot = bot
	a.logger.Info("connected",
		slog.String("bot", bot.Self.UserName),
		slog.Bool("local_api", a.UsesLocalAPI()))
	return bot, nil
}

// Start connects and polls for updates until Stop is called or ctx ends.
// Every accepted update is handled on its own goroutine. Handlers keep
// running after polling stops; Stop drains them.
func (a *Adapter) Start(ctx context.Context, handler Handler) error {
	if handler == nil {
		return errors.New("telegram handler is required")
	}
	bot, err := a.connect()
	if err != nil {
		a.logger.Error("create bot failed", slog.Any("error", err))
		return err
	}
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = pollTimeout
	updates := bot.GetUpdatesChan(updateConfig)
	connCtx, cancel := context.WithCancel(ctx)
	workCtx, cancelWork := context.WithCancel(context.WithoutCancel(ctx))

	a.mu.Lock()
	a.cancel = cancel
	a.cancelWork = cancelWork
	a.mu.Unlock()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		for {
			select {
			case <-connCtx.Done():
				bot.StopReceivingUpdates()
				return
			case update, ok := <-updates:
				if !ok {
					a.logger.Info("updates channel closed")
					return
				}
				ev, ok := toEvent(update.Message)
				if !ok {
					continue
				}
				a.logger.Debug("inbound received",
					slog.Int("update_id", update.UpdateID),
					slog.Int("message_id", update.Message.MessageID),
					slog.Int64("user_id", resolveTelegramSender(update.Message).ID))
				a.wg.Add(1)
				go func() {
					defer a.wg.Done()
					handler.Dispatch(workCtx, ev, a)
				}()
			}
		}
	}()
	return nil
}

// Stop ends polling and waits for in-flight events. When ctx ends first the
// remaining handlers are cancelled and ctx's error is returned.
func (a *Adapter) Stop(ctx context.Context) error {
	a.mu.Lock()
	cancel, cancelWork := a.cancel, a.cancelWork
	a.cancel, a.cancelWork = nil, nil
	a.mu.Unlock()
	if cancel == nil {
		return nil
	}
	a.logger.Info("stop")
	cancel()
	defer cancelWork()

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		a.logger.Warn("stop timed out, cancelling in-flight events")
		return ctx.Err()
	}
}

// Reply answers the message described by to.
func (a *Adapter) Reply(_ context.Context, to bridge.Envelope, text string) error {
	bot, err := a.connect()
	if err != nil {
		return err
	}
	message := tgbotapi.NewMessage(to.ChatID, text)
	if to.MessageID > 0 {
		message.ReplyToMessageID = to.MessageID
	}
	if _, err := bot.Send(message); err != nil {
		return fmt.Errorf("send reply: %w", err)
	}
	return nil
}

// Notify sends text to the private chat of userID.
func (a *Adapter) Notify(_ context.Context, userID int64, text string) error {
	bot, err := a.connect()
	if err != nil {
		return err
	}
	if _, err := bot.Send(tgbotapi.NewMessage(userID, text)); err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	return nil
}

var (
	_ bridge.Transport = (*Adapter)(nil)
	_ bridge.Notifier  = (*Adapter)(nil)
)
