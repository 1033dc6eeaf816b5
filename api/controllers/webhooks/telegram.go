package webhooks

import (
	"context"
	"errors"
	"net/http"

	"github.com/angelmondragon/chatshop/api/responses"
	"github.com/angelmondragon/chatshop/api/validators"
	"github.com/angelmondragon/chatshop/internal/bot"
	"github.com/angelmondragon/chatshop/internal/dispatch"
	pkgerrors "github.com/angelmondragon/chatshop/pkg/errors"
	"github.com/angelmondragon/chatshop/pkg/logger"
	"github.com/angelmondragon/chatshop/pkg/telegram"
)

// EventHandler processes one chat event.
type EventHandler interface {
	Handle(ctx context.Context, ev bot.Event) error
}

// UpdateGuard drops redelivered updates.
type UpdateGuard interface {
	CheckAndMark(ctx context.Context, updateID int64) (bool, error)
	Delete(ctx context.Context, updateID int64) error
}

// Submitter queues work on a per-key mailbox.
type Submitter interface {
	Submit(key string, task dispatch.Task) error
}

// TelegramWebhook accepts an update, drops redeliveries and queues the event
// on its user's mailbox. Handling happens after the response is written, so
// Telegram never waits on the commerce backend.
func TelegramWebhook(handler EventHandler, queue Submitter, guard UpdateGuard, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if handler == nil || queue == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook handler unavailable"))
			return
		}

		var update telegram.Update
		if err := validators.DecodeJSONBody(r, &update); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		ctx = logg.WithField(ctx, "update_id", update.UpdateID)

		if guard != nil {
			seen, err := guard.CheckAndMark(ctx, update.UpdateID)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
				return
			}
			if seen {
				logg.Debug(ctx, "duplicate update dropped")
				responses.WriteSuccess(w, nil)
				return
			}
		}

		ev, ok := bot.EventFromUpdate(update)
		if !ok {
			logg.Debug(ctx, "update ignored")
			responses.WriteSuccess(w, nil)
			return
		}

		updateID := update.UpdateID
		err := queue.Submit(ev.ChatID, func(taskCtx context.Context) {
			taskCtx = logg.WithField(taskCtx, "update_id", updateID)
			if err := handler.Handle(taskCtx, ev); err != nil {
				logg.Error(taskCtx, "event handling failed", err)
			}
		})
		if err != nil {
			if guard != nil {
				_ = guard.Delete(ctx, update.UpdateID)
			}
			code := pkgerrors.CodeInternal
			if errors.Is(err, dispatch.ErrBusy) || errors.Is(err, dispatch.ErrClosed) {
				code = pkgerrors.CodeDependency
			}
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(code, err, "queue update"))
			return
		}
		responses.WriteSuccess(w, nil)
	}
}
