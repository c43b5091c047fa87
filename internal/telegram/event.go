package telegram

import (
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"chat-archive/internal/ingest"
)

const fileLocatorPrefix = "tg://file/"

// EventFromMessage converts a Telegram message into an inbound event. Fields
// Telegram did not provide are left empty for validation to reject.
func EventFromMessage(msg *tgbotapi.Message) ingest.Event {
	ev := ingest.Event{
		Content:     msg.Text,
		Attachments: attachments(msg),
	}
	if msg.MessageID != 0 {
		ev.SourceMessageID = strconv.Itoa(msg.MessageID)
	}
	if msg.Date != 0 {
		ev.Timestamp = msg.Time().UTC()
	}
	if ev.Content == "" {
		ev.Content = msg.Caption
	}
	if msg.Chat != nil {
		ev.ChannelID = strconv.FormatInt(msg.Chat.ID, 10)
		ev.ChannelDisplayName = chatName(msg.Chat)
	}
	switch {
	case msg.From != nil:
		ev.AuthorID = strconv.FormatInt(msg.From.ID, 10)
		ev.AuthorDisplayName = userName(msg.From)
	case msg.SenderChat != nil:
		ev.AuthorID = strconv.FormatInt(msg.SenderChat.ID, 10)
		ev.AuthorDisplayName = chatName(msg.SenderChat)
	}
	return ev
}

func attachments(msg *tgbotapi.Message) []ingest.Attachment {
	var out []ingest.Attachment
	if n := len(msg.Photo); n > 0 {
		// sizes are ascending; keep the largest rendition only
		p := msg.Photo[n-1]
		out = append(out, ingest.Attachment{LocatorURL: fileLocatorPrefix + p.FileID, ContentType: "image/jpeg", SizeBytes: int64(p.FileSize)})
	}
	if d := msg.Document; d != nil {
		out = append(out, ingest.Attachment{LocatorURL: fileLocatorPrefix + d.FileID, ContentType: d.MimeType, SizeBytes: int64(d.FileSize)})
	}
	if v := msg.Video; v != nil {
		out = append(out, ingest.Attachment{LocatorURL: fileLocatorPrefix + v.FileID, ContentType: v.MimeType, SizeBytes: int64(v.FileSize)})
	}
	if a := msg.Audio; a != nil {
		out = append(out, ingest.Attachment{LocatorURL: fileLocatorPrefix + a.FileID, ContentType: a.MimeType, SizeBytes: int64(a.FileSize)})
	}
	if v := msg.Voice; v != nil {
		out = append(out, ingest.Attachment{LocatorURL: fileLocatorPrefix + v.FileID, ContentType: v.MimeType, SizeBytes: int64(v.FileSize)})
	}
	if s := msg.Sticker; s != nil {
		out = append(out, ingest.Attachment{LocatorURL: fileLocatorPrefix + s.FileID, ContentType: "image/webp", SizeBytes: int64(s.FileSize)})
	}
	return out
}

func chatName(c *tgbotapi.Chat) string {
	if c.Title != "" {
		return c.Title
	}
	if c.UserName != "" {
		return "@" + c.UserName
	}
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

func userName(u *tgbotapi.User) string {
	if u.UserName != "" {
		return u.UserName
	}
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}
