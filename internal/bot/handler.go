// Package bot connects the verification service to Telegram.
package bot

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/maybehotcarl/nftbot/pkg/verify"
)

// Incoming is one inbound chat message.
type Incoming struct {
	ChatID int64
	// Command is set (without the slash) when the message is a bot command.
	Command string
	Text    string
}

// Sender delivers replies to a chat.
type Sender interface {
	Send(ctx context.Context, chatID int64, reply Reply) error
}

// Verifier runs a wallet verification.
type Verifier interface {
	Verify(ctx context.Context, address string) verify.Report
}

// Handler routes inbound messages. It keeps no per-chat state: every
// non-command text is treated as a wallet address.
type Handler struct {
	verifier Verifier
	sender   Sender
	log      *zap.Logger
}

// NewHandler creates a message router.
func NewHandler(v Verifier, s Sender, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{verifier: v, sender: s, log: logger.Named("bot")}
}

// Handle processes one message. The returned error is the first delivery
// failure, if any; verification itself cannot fail.
func (h *Handler) Handle(ctx context.Context, in Incoming) error {
	if in.Command != "" {
		switch in.Command {
		case CommandStart:
			return h.sender.Send(ctx, in.ChatID, Reply{Text: TextGreeting, Keyboard: true})
		case CommandCheck:
			return h.sender.Send(ctx, in.ChatID, Reply{Text: TextPrompt})
		default:
			h.log.Debug("ignoring unknown command", zap.String("command", in.Command))
			return nil
		}
	}

	switch in.Text {
	case ButtonCheck:
		return h.sender.Send(ctx, in.ChatID, Reply{Text: TextPrompt})
	case ButtonAbout:
		return h.sender.Send(ctx, in.ChatID, Reply{Text: TextAbout})
	}
	return h.checkWallet(ctx, in)
}

func (h *Handler) checkWallet(ctx context.Context, in Incoming) error {
	address := strings.TrimSpace(in.Text)
	if !verify.ValidAddress(address) {
		return h.sender.Send(ctx, in.ChatID, Reply{Text: TextRejected})
	}

	if err := h.sender.Send(ctx, in.ChatID, InProgress(address)); err != nil {
		// The user may still get the result; keep going.
		h.log.Warn("failed to send progress notice", zap.Int64("chat_id", in.ChatID), zap.Error(err))
	}

	report := h.verifier.Verify(ctx, address)
	if err := h.sender.Send(ctx, in.ChatID, ResultReply(report)); err != nil {
		return fmt.Errorf("sending result: %w", err)
	}
	return nil
}
