package bot

import (
	"fmt"

	"github.com/maybehotcarl/nftbot/pkg/verify"
)

// Keyboard buttons. Their exact text is routed like a command.
const (
	ButtonCheck = "🔍 Проверить NFT"
	ButtonAbout = "ℹ️ О боте"
)

// Commands understood by the bot.
const (
	CommandStart = "start"
	CommandCheck = "check"
)

// Outbound texts.
const (
	TextGreeting   = "👋 Привет! Я бот для проверки NFT на Solana.\n\nВыбери действие ниже:"
	TextAbout      = "🤖 Этот бот проверяет наличие NFT на Solana-кошельке."
	TextPrompt     = "🔹 Введите адрес Solana-кошелька для проверки."
	TextRejected   = "⚠️ Введите корректный Solana-адрес!"
	TextMember     = "✅ У кошелька есть NFT из коллекции Trinity!"
	TextNotMember  = "❌ У кошелька нет NFT из коллекции Trinity."
	textInProgress = "🔍 Проверяем NFT у %s..."
)

// Reply is one outbound message.
type Reply struct {
	Text string
	// Keyboard attaches the persistent two-button keyboard.
	Keyboard bool
}

// InProgress is sent before the remote query starts.
func InProgress(address string) Reply {
	return Reply{Text: fmt.Sprintf(textInProgress, address)}
}

// ResultReply renders the outcome of a verification.
func ResultReply(report verify.Report) Reply {
	switch report.Outcome {
	case verify.OutcomeMember:
		return Reply{Text: TextMember}
	case verify.OutcomeNotMember:
		return Reply{Text: TextNotMember}
	default:
		return Reply{Text: TextRejected}
	}
}
