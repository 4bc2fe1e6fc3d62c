package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/soaringjerry/checkbot/internal/observability"
	"github.com/soaringjerry/checkbot/internal/services"
)

// Options configure the Bot API client.
type Options struct {
	Token        string
	APIEndpoint  string // fmt pattern taking token and method
	FileEndpoint string // fmt pattern taking token and file path
	HTTPClient   *http.Client
	Retries      uint
}

// Bot sends replies and fetches uploaded files through the Telegram Bot API.
type Bot struct {
	api          *tgbotapi.BotAPI
	client       *http.Client
	fileEndpoint string
	retries      uint
	newBackOff   func() backoff.BackOff
}

// New connects to the Bot API and checks the token with getMe.
func New(opts Options) (*Bot, error) {
	if opts.Token == "" {
		return nil, errors.New("telegram token is required")
	}
	if opts.APIEndpoint == "" {
		opts.APIEndpoint = tgbotapi.APIEndpoint
	}
	if opts.FileEndpoint == "" {
		opts.FileEndpoint = tgbotapi.FileEndpoint
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	_ = tgbotapi.SetLogger(slogAdapter{log: observability.WithFields("component", "telegram")})

	api, err := tgbotapi.NewBotAPIWithClient(opts.Token, opts.APIEndpoint, opts.HTTPClient)
	if err != nil {
		return nil, fmt.Errorf("telegram getMe: %w", err)
	}
	return &Bot{
		api:          api,
		client:       opts.HTTPClient,
		fileEndpoint: opts.FileEndpoint,
		retries:      opts.Retries,
		newBackOff:   func() backoff.BackOff { return backoff.NewExponentialBackOff() },
	}, nil
}

// Username returns the bot's @name as reported by getMe.
func (b *Bot) Username() string {
	return b.api.Self.UserName
}

// Send renders reply as a message with a reply keyboard and delivers it,
// retrying transient failures.
func (b *Bot) Send(ctx context.Context, chatID int64, reply services.Reply) error {
	msg := RenderReply(chatID, reply)
	_, err := retry(ctx, b, func() (tgbotapi.Message, error) {
		return b.api.Send(msg)
	})
	if err != nil {
		return fmt.Errorf("telegram send to %d: %w", chatID, err)
	}
	return nil
}

// Download writes the file identified by fileID to dst.
func (b *Bot) Download(ctx context.Context, fileID string, dst io.Writer) error {
	file, err := retry(ctx, b, func() (tgbotapi.File, error) {
		return b.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	})
	if err != nil {
		return fmt.Errorf("telegram getFile %s: %w", fileID, err)
	}
	url := fmt.Sprintf(b.fileEndpoint, b.api.Token, file.FilePath)

	resp, err := retry(ctx, b, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		resp, err := b.client.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			err := fmt.Errorf("file download status %d", resp.StatusCode)
			if resp.StatusCode >= 400 && resp.StatusCode < 500 {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		return resp, nil
	})
	if err != nil {
		return fmt.Errorf("telegram download %s: %w", fileID, err)
	}
	defer resp.Body.Close()
	if _, err := io.Copy(dst, resp.Body); err != nil {
		return fmt.Errorf("telegram download %s: %w", fileID, err)
	}
	return nil
}

// SetWebhook registers url with Telegram. Deliveries carry secret in the
// X-Telegram-Bot-Api-Secret-Token header.
func (b *Bot) SetWebhook(ctx context.Context, url, secret string) error {
	params := tgbotapi.Params{"url": url, "allowed_updates": `["message"]`}
	if secret != "" {
		params["secret_token"] = secret
	}
	_, err := retry(ctx, b, func() (*tgbotapi.APIResponse, error) {
		return b.api.MakeRequest("setWebhook", params)
	})
	if err != nil {
		return fmt.Errorf("telegram setWebhook: %w", err)
	}
	return nil
}

// Poll feeds long-polled updates into d until ctx is done. Any webhook is
// removed first, since Telegram refuses getUpdates while one is set.
func (b *Bot) Poll(ctx context.Context, d *Dispatcher, timeout int) error {
	if _, err := b.api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return fmt.Errorf("telegram deleteWebhook: %w", err)
	}
	u := tgbotapi.NewUpdate(0)
	u.Timeout = timeout
	u.AllowedUpdates = []string{"message"}
	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return nil
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			ev, ok := ToEvent(upd)
			if !ok {
				continue
			}
			if err := d.Submit(ctx, upd.UpdateID, ev); err != nil {
				return err
			}
		}
	}
}

// retry runs op with the bot's backoff. Bot API client errors other than
// rate limiting are permanent.
func retry[T any](ctx context.Context, b *Bot, op func() (T, error)) (T, error) {
	return backoff.Retry(ctx, func() (T, error) {
		res, err := op()
		if err == nil {
			return res, nil
		}
		var apiErr *tgbotapi.Error
		if errors.As(err, &apiErr) {
			switch {
			case apiErr.RetryAfter > 0:
				return res, backoff.RetryAfter(apiErr.RetryAfter)
			case apiErr.Code >= 400 && apiErr.Code < 500 && apiErr.Code != http.StatusTooManyRequests:
				return res, backoff.Permanent(err)
			}
		}
		return res, err
	}, backoff.WithBackOff(b.newBackOff()), backoff.WithMaxTries(b.retries+1))
}

type slogAdapter struct {
	log *slog.Logger
}

func (a slogAdapter) Println(v ...interface{}) {
	a.log.Debug(fmt.Sprint(v...))
}

func (a slogAdapter) Printf(format string, v ...interface{}) {
	a.log.Debug(fmt.Sprintf(format, v...))
}
