package telegram

import (
	"errors"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// maxFloodWait bounds how long a rate-limited send may hold a reply.
const maxFloodWait = 30 * time.Second

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// floodSender retries a send once when Telegram answers "Too Many
// Requests" with a retry_after no longer than maxFloodWait.
type floodSender struct {
	send  func(c tgbotapi.Chattable) (tgbotapi.Message, error)
	sleep func(time.Duration)
	log   zerolog.Logger
}

func newFloodSender(api *tgbotapi.BotAPI, log zerolog.Logger) floodSender {
	return floodSender{send: api.Send, sleep: time.Sleep, log: log}
}

func (s floodSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	sent, err := s.send(c)
	wait, ok := retryAfter(err)
	if !ok || wait > maxFloodWait {
		return sent, err
	}
	s.log.Warn().Dur("retry_after", wait).Msg("rate limited, retrying send")
	s.sleep(wait)
	return s.send(c)
}

func retryAfter(err error) (time.Duration, bool) {
	if err == nil {
		return 0, false
	}
	var secs int
	var p *tgbotapi.Error
	var v tgbotapi.Error
	switch {
	case errors.As(err, &p):
		secs = p.RetryAfter
	case errors.As(err, &v):
		secs = v.RetryAfter
	}
	if secs <= 0 {
		return 0, false
	}
	return time.Duration(secs) * time.Second, true
}
