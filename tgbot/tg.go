package tgbot

import (
	"context"
	"fmt"
	"strings"
	"time"

	tg "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"bumpbot/auth"
	"bumpbot/reminder"
)

const (
	cbqGoToTask = "gototask"
	cbqMarkDone = "markdone"
	cbqStop     = "stop"
)

const (
	cmdStart    = "start"
	cmdGoToTask = "gototask"
	cmdMarkDone = "markdone"
	cmdStop     = "stop"
)

var (
	keyboardStart = tg.NewInlineKeyboardMarkup(
		tg.NewInlineKeyboardRow(
			tg.NewInlineKeyboardButtonData("Yes ✅", cbqGoToTask),
		),
	)
	keyboardReminder = tg.NewInlineKeyboardMarkup(
		tg.NewInlineKeyboardRow(
			tg.NewInlineKeyboardButtonData("Done ✅", cbqMarkDone),
			tg.NewInlineKeyboardButtonData("Stop reminders ❌", cbqStop),
		),
	)
)

const (
	txtEnterCode         = "Enter the access code to use the bot 🔒"
	txtCodeAccepted      = "Success ✅ You can use the bot 📊"
	txtCodeRejected      = "❌ Wrong code. Try again."
	txtCodeNotConfigured = "The access code is not set up on the server. Ask the administrator to configure it."
	txtAuthorizeFirst    = "Enter the access code first."
	txtStartPrompt       = "Shall we start?👽"
	txtReminder          = "📊 Bump the listing 🔥"
	txtStopped           = "❌ Reminders stopped."
	txtStoppedHow        = "❌ Reminders stopped. To start again press 'Shall we start?👽' → Yes ✅"
	txtUnknownCommand    = "I don't know this command. Try /start"

	fmtFirstReminder = "🕒 Great! First reminder in %s."
	fmtBumped        = "✅ Listing bumped! Next reminder in %s."
)

// API is the slice of the Telegram client the bot talks through.
type API interface {
	Send(c tg.Chattable) (tg.Message, error)
	Request(c tg.Chattable) (*tg.APIResponse, error)
}

// TBot routes inbound Telegram events into the authorization gate and the
// reminder engine. Reminders is assigned after construction because the
// engine's delivery callback is SendReminder.
type TBot struct {
	Bot         API
	Gate        *auth.Gate
	Reminders   *reminder.Manager
	Logger      *zap.SugaredLogger
	RemindAfter time.Duration
}

func New(api API, gate *auth.Gate, remindAfter time.Duration, l *zap.SugaredLogger) *TBot {
	return &TBot{
		Bot:         api,
		Gate:        gate,
		Logger:      l,
		RemindAfter: remindAfter,
	}
}

// Run dispatches updates until ctx is cancelled or the channel closes.
func (b *TBot) Run(ctx context.Context, updates tg.UpdatesChannel) {
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}

			switch {
			case u.Message != nil && u.Message.IsCommand():
				go b.HandleCommand(u.Message)
			case u.Message != nil:
				go b.HandleMessage(u.Message)
			case u.CallbackQuery != nil:
				go b.HandleCallback(u.CallbackQuery)
			}
		}
	}
}

func (b *TBot) HandleCommand(msg *tg.Message) {
	usr := msg.From.ID

	switch msg.Command() {
	case cmdStart:
		if !b.Gate.IsAuthorized(usr) {
			b.SendMessage(usr, txtEnterCode, nil)
			return
		}
		b.sendStartPrompt(usr)

	case cmdGoToTask:
		if !b.Gate.IsAuthorized(usr) {
			b.SendMessage(usr, txtAuthorizeFirst, nil)
			return
		}
		b.Reminders.Arm(usr, b.RemindAfter)
		b.SendMessage(usr, fmt.Sprintf(fmtFirstReminder, formatDelay(b.RemindAfter)), nil)

	case cmdMarkDone:
		if !b.Gate.IsAuthorized(usr) {
			b.SendMessage(usr, txtAuthorizeFirst, nil)
			return
		}
		b.Reminders.Arm(usr, b.RemindAfter)
		b.SendMessage(usr, fmt.Sprintf(fmtBumped, formatDelay(b.RemindAfter)), nil)

	case cmdStop:
		if !b.Gate.IsAuthorized(usr) {
			b.SendMessage(usr, txtAuthorizeFirst, nil)
			return
		}
		b.Reminders.Cancel(usr)
		b.SendMessage(usr, txtStoppedHow, nil)

	default:
		b.SendMessage(usr, txtUnknownCommand, nil)
	}
}

// HandleMessage handles free text. For a user that hasn't passed the gate yet
// any text is an access code attempt; for an authorized user the text has no
// meaning here, so re-show the entry point rather than stay silent.
func (b *TBot) HandleMessage(msg *tg.Message) {
	usr := msg.From.ID

	if b.Gate.IsAuthorized(usr) {
		b.sendStartPrompt(usr)
		return
	}

	ok, err := b.Gate.Authorize(usr, strings.TrimSpace(msg.Text))
	switch {
	case err != nil:
		b.Logger.Warnw("access code is not configured", "user", usr)
		b.SendMessage(usr, txtCodeNotConfigured, nil)
	case !ok:
		b.SendMessage(usr, txtCodeRejected, nil)
	default:
		b.Logger.Infow("user authorized", "user", usr)
		b.SendMessage(usr, txtCodeAccepted, nil)
		b.sendStartPrompt(usr)
	}
}

func (b *TBot) HandleCallback(cbq *tg.CallbackQuery) {
	usr := cbq.From.ID

	if !b.Gate.IsAuthorized(usr) {
		b.answerCallback(cbq.ID, txtAuthorizeFirst)
		b.SendMessage(usr, txtEnterCode, nil)
		return
	}

	switch cbq.Data {
	case cbqGoToTask:
		b.Reminders.Arm(usr, b.RemindAfter)
		txt := fmt.Sprintf(fmtFirstReminder, formatDelay(b.RemindAfter))
		b.answerCallback(cbq.ID, txt)
		b.ReplaceMessage(usr, cbq.Message.MessageID, txt)

	case cbqMarkDone:
		b.Reminders.Arm(usr, b.RemindAfter)
		txt := fmt.Sprintf(fmtBumped, formatDelay(b.RemindAfter))
		b.answerCallback(cbq.ID, txt)
		b.ReplaceMessage(usr, cbq.Message.MessageID, txt)

	case cbqStop:
		b.Reminders.Cancel(usr)
		b.answerCallback(cbq.ID, txtStopped)
		b.ReplaceMessage(usr, cbq.Message.MessageID, txtStopped)
		b.sendStartPrompt(usr)
	}
}

// SendReminder is the delivery callback the reminder engine fires. One
// best-effort attempt; the engine logs the failure and waits for the user.
func (b *TBot) SendReminder(usr int64) error {
	m := tg.NewMessage(usr, txtReminder)
	m.ReplyMarkup = keyboardReminder

	_, err := b.Bot.Send(m)
	return errors.Wrap(err, "failed sending reminder")
}

// sendStartPrompt shows the entry point. It is addressed by user id so both
// the message and the callback paths reply through the same helper.
func (b *TBot) sendStartPrompt(usr int64) {
	b.SendMessage(usr, txtStartPrompt, &keyboardStart)
}

func (b *TBot) SendMessage(usr int64, txt string, kbMarkup *tg.InlineKeyboardMarkup) error {
	m := tg.NewMessage(usr, txt)
	if kbMarkup != nil {
		m.ReplyMarkup = kbMarkup
	}

	_, err := b.Bot.Send(m)
	if err != nil {
		b.Logger.Errorw("failed sending message", "user", usr, "err", err)
	}
	return err
}

// ReplaceMessage edits a previously sent message in place. Best-effort: the
// message may be gone or unchanged, neither is worth more than a debug line.
func (b *TBot) ReplaceMessage(usr int64, msgID int, txt string) {
	upd := tg.NewEditMessageText(usr, msgID, txt)
	if _, err := b.Bot.Request(upd); err != nil && !strings.Contains(err.Error(), "message is not modified") {
		b.Logger.Debugw("failed updating message text", "user", usr, "err", err)
	}
}

func (b *TBot) answerCallback(id, txt string) {
	if _, err := b.Bot.Request(tg.NewCallback(id, txt)); err != nil {
		b.Logger.Debugw("failed answering callback", "err", err)
	}
}

func formatDelay(d time.Duration) string {
	if d > 0 && d%time.Hour == 0 {
		h := int(d / time.Hour)
		if h == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", h)
	}
	return d.String()
}
