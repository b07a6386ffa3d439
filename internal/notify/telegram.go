package notify

import (
	"fmt"
	"strings"

	"staybook/internal/domain"
	"staybook/internal/events"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// Subscriber is the part of the event bus the notifier needs.
type Subscriber interface {
	Subscribe(eventType string, handler events.EventHandler)
}

// TelegramNotifier tells the hosts about new, cancelled and expired bookings.
type TelegramNotifier struct {
	bot      domain.TelegramSender
	chatIDs  []int64
	currency string
	logger   *zerolog.Logger
}

func NewTelegramNotifier(bot domain.TelegramSender, chatIDs []int64, currency string, logger *zerolog.Logger) *TelegramNotifier {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &TelegramNotifier{bot: bot, chatIDs: chatIDs, currency: currency, logger: logger}
}

// Attach subscribes the notifier to the booking events it reports.
func (n *TelegramNotifier) Attach(bus Subscriber) {
	for _, eventType := range []string{
		events.EventBookingCreated,
		events.EventBookingCancelled,
		events.EventBookingExpired,
	} {
		bus.Subscribe(eventType, n.Handle)
	}
}

// Handle formats the event and sends it to every configured chat.
// Send failures are logged per chat; the first one is returned.
func (n *TelegramNotifier) Handle(event *events.Event) error {
	var payload events.BookingEventPayload
	if err := event.Decode(&payload); err != nil {
		return fmt.Errorf("decode %s payload: %w", event.Type, err)
	}

	text := n.format(event.Type, payload)
	if text == "" {
		return nil
	}

	return n.broadcast(text, event.Type)
}

func (n *TelegramNotifier) broadcast(text, kind string) error {
	var firstErr error
	for _, chatID := range n.chatIDs {
		msg := tgbotapi.NewMessage(chatID, text)
		if _, err := n.bot.Send(msg); err != nil {
			n.logger.Error().Err(err).Int64("chat_id", chatID).Str("kind", kind).Msg("notify: send error")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (n *TelegramNotifier) format(eventType string, p events.BookingEventPayload) string {
	var title string
	switch eventType {
	case events.EventBookingCreated:
		title = "🆕 Новая бронь"
	case events.EventBookingCancelled:
		title = "❌ Бронь отменена"
	case events.EventBookingExpired:
		title = "⌛ Бронь не оплачена и снята"
	default:
		return ""
	}

	var sb strings.Builder
	sb.WriteString(title)
	sb.WriteString(" ")
	sb.WriteString(p.BookingCode)
	sb.WriteString("\n\n")

	homestay := p.HomestayName
	if homestay == "" {
		homestay = fmt.Sprintf("#%d", p.HomestayID)
	}
	fmt.Fprintf(&sb, "🏠 %s\n", homestay)
	fmt.Fprintf(&sb, "👤 %s\n", p.GuestName)
	fmt.Fprintf(&sb, "📅 %s → %s\n", p.CheckIn, p.CheckOut)
	fmt.Fprintf(&sb, "💰 %s", FormatMoney(p.TotalAmount, n.currency))
	if p.AmountPaid > 0 {
		fmt.Fprintf(&sb, " (оплачено %s)", FormatMoney(p.AmountPaid, n.currency))
	}
	if p.RefundDue > 0 {
		fmt.Fprintf(&sb, "\n↩️ К возврату: %s", FormatMoney(p.RefundDue, n.currency))
	}
	if p.Reason != "" {
		fmt.Fprintf(&sb, "\n📝 %s", p.Reason)
	}
	return sb.String()
}

// FormatMoney renders minor units as "1 234.50 IDR".
func FormatMoney(amount int64, currency string) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	major := fmt.Sprintf("%d", amount/100)
	// группы по три цифры
	var grouped strings.Builder
	for i, r := range major {
		if i > 0 && (len(major)-i)%3 == 0 {
			grouped.WriteByte(' ')
		}
		grouped.WriteRune(r)
	}
	out := fmt.Sprintf("%s%s.%02d", sign, grouped.String(), amount%100)
	if currency != "" {
		out += " " + currency
	}
	return out
}
