package bot

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// botAPI is the subset of *tgbotapi.BotAPI used here.
type botAPI interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Config configures the Telegram bot.
type Config struct {
	Token string
	// MaxConcurrent bounds how many messages are handled at once (default: 16).
	MaxConcurrent int
	// PollTimeout is the long-poll timeout in seconds (default: 60).
	PollTimeout int
}

// Bot long-polls Telegram and hands every message to a Handler on its own
// goroutine. A second address from the same chat does not cancel the first.
type Bot struct {
	api      botAPI
	handler  *Handler
	limit    int
	pollSecs int
	log      *zap.Logger
}

// New connects to the Telegram Bot API with cfg.Token.
func New(cfg Config, v Verifier, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("connecting to Telegram: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("authorized on Telegram", zap.String("username", api.Self.UserName))
	return newBot(api, cfg, v, logger), nil
}

func newBot(api botAPI, cfg Config, v Verifier, logger *zap.Logger) *Bot {
	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 16
	}
	if cfg.PollTimeout == 0 {
		cfg.PollTimeout = 60
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Bot{
		api:      api,
		limit:    cfg.MaxConcurrent,
		pollSecs: cfg.PollTimeout,
		log:      logger.Named("telegram"),
	}
	b.handler = NewHandler(v, b, logger)
	return b
}

// keyboard is the persistent reply keyboard shown after /start.
func keyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(ButtonCheck)),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(ButtonAbout)),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = false
	return kb
}

// Send implements Sender.
func (b *Bot) Send(_ context.Context, chatID int64, reply Reply) error {
	msg := tgbotapi.NewMessage(chatID, reply.Text)
	if reply.Keyboard {
		msg.ReplyMarkup = keyboard()
	}
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("sending message to chat %d: %w", chatID, err)
	}
	return nil
}

// registerCommands publishes the command menu shown by Telegram clients.
func (b *Bot) registerCommands() error {
	cfg := tgbotapi.NewSetMyCommands(
		tgbotapi.BotCommand{Command: CommandStart, Description: "Начать"},
		tgbotapi.BotCommand{Command: CommandCheck, Description: "Проверить NFT"},
	)
	if _, err := b.api.Request(cfg); err != nil {
		return fmt.Errorf("setting bot commands: %w", err)
	}
	return nil
}

// Run polls for updates until ctx is done, then waits for in-flight
// messages to finish. At most MaxConcurrent messages are handled at once;
// while every slot is busy Run waits for one to free up or for ctx to end,
// whichever comes first. A message received but not yet started when ctx
// ends is dropped.
func (b *Bot) Run(ctx context.Context) error {
	if err := b.registerCommands(); err != nil {
		b.log.Warn("command menu not registered", zap.Error(err))
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.pollSecs
	updates := b.api.GetUpdatesChan(u)

	var g errgroup.Group
	slots := make(chan struct{}, b.limit)

	// In-flight checks run to completion on shutdown.
	handleCtx := context.WithoutCancel(ctx)

	stop := func() error {
		b.api.StopReceivingUpdates()
		g.Wait()
		b.log.Info("bot stopped")
		return nil
	}

	b.log.Info("bot started")
	for {
		select {
		case <-ctx.Done():
			return stop()
		case upd, ok := <-updates:
			if !ok {
				g.Wait()
				return fmt.Errorf("update channel closed")
			}
			in, ok := toIncoming(upd)
			if !ok {
				continue
			}
			select {
			case slots <- struct{}{}:
			case <-ctx.Done():
				b.log.Debug("dropping message on shutdown", zap.Int64("chat_id", in.ChatID))
				return stop()
			}
			g.Go(func() error {
				defer func() { <-slots }()
				if err := b.handler.Handle(handleCtx, in); err != nil {
					b.log.Error("failed to handle message", zap.Int64("chat_id", in.ChatID), zap.Error(err))
				}
				return nil
			})
		}
	}
}

// toIncoming extracts the fields the handler needs. Updates without a text
// message are skipped.
func toIncoming(upd tgbotapi.Update) (Incoming, bool) {
	msg := upd.Message
	if msg == nil || msg.Chat == nil || msg.Text == "" {
		return Incoming{}, false
	}
	in := Incoming{ChatID: msg.Chat.ID, Text: msg.Text}
	if msg.IsCommand() {
		in.Command = msg.Command()
	}
	return in, true
}
