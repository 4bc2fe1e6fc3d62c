package telegram

import (
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/soaringjerry/checkbot/internal/services"
)

// ToEvent converts a Bot API update into an interview event. Updates that do
// not carry a user message are reported with ok=false.
func ToEvent(upd tgbotapi.Update) (services.Event, bool) {
	msg := upd.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return services.Event{}, false
	}
	ev := services.Event{
		UserID:       msg.From.ID,
		ChatID:       msg.Chat.ID,
		LanguageCode: msg.From.LanguageCode,
	}

	switch {
	case msg.IsCommand():
		switch strings.ToLower(msg.Command()) {
		case "start":
			ev.Kind = services.EventStart
		case "cancel":
			ev.Kind = services.EventCancel
		case "reset":
			ev.Kind = services.EventReset
		default:
			ev.Kind = services.EventUnknown
			ev.Text = msg.Text
		}
	case msg.Contact != nil:
		ev.Kind = services.EventContact
		ev.Phone = msg.Contact.PhoneNumber
		ev.ContactUserID = msg.Contact.UserID
	case len(msg.Photo) > 0:
		ev.Kind = services.EventPhoto
		ev.Photos = make([]services.PhotoVariant, 0, len(msg.Photo))
		for _, p := range msg.Photo {
			ev.Photos = append(ev.Photos, services.PhotoVariant{
				FileID:   p.FileID,
				Width:    p.Width,
				Height:   p.Height,
				FileSize: p.FileSize,
			})
		}
	case msg.Text != "":
		ev.Kind = services.EventText
		ev.Text = msg.Text
	default:
		ev.Kind = services.EventUnknown
	}
	return ev, true
}

// RenderReply builds the outgoing message. A contact request and a list of
// options each render as a one-time reply keyboard.
func RenderReply(chatID int64, reply services.Reply) tgbotapi.MessageConfig {
	msg := tgbotapi.NewMessage(chatID, reply.Text)
	switch {
	case reply.RequestContact:
		label := "📱"
		if len(reply.Options) > 0 {
			label = reply.Options[0]
		}
		kb := tgbotapi.NewReplyKeyboard(tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButtonContact(label),
		))
		kb.OneTimeKeyboard = true
		kb.ResizeKeyboard = true
		msg.ReplyMarkup = kb
	case len(reply.Options) > 0:
		row := make([]tgbotapi.KeyboardButton, 0, len(reply.Options))
		for _, opt := range reply.Options {
			row = append(row, tgbotapi.NewKeyboardButton(opt))
		}
		kb := tgbotapi.NewReplyKeyboard(row)
		kb.OneTimeKeyboard = true
		kb.ResizeKeyboard = true
		msg.ReplyMarkup = kb
	case reply.RemoveKeyboard:
		msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
	}
	return msg
}
