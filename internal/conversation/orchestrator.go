// Package conversation runs one user message through history, prompt and model
// and writes the exchange back to history.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"salyqbot/internal/history"
	"salyqbot/internal/llm"
	"salyqbot/internal/logging"
	"salyqbot/internal/prompt"
	"salyqbot/internal/storage"
)

const (
	// ImagePlaceholder is recorded in history for messages without text.
	ImagePlaceholder = "[image]"

	StorageUnavailable = "ERROR: history storage is unavailable, please try again later"

	ClearDone     = "Done"
	ClearNotFound = "User not found"
)

var ErrEmptyMessage = errors.New("message has neither text nor image")

// Inbound is a user message as seen by the transports.
type Inbound struct {
	UserID int64
	Text   string
	Image  *llm.Image
}

// Replier delivers the single reply for an inbound message.
type Replier interface {
	Reply(ctx context.Context, text string) error
}

type ReplyFunc func(ctx context.Context, text string) error

func (f ReplyFunc) Reply(ctx context.Context, text string) error { return f(ctx, text) }

type Orchestrator struct {
	store    history.Store
	model    llm.Client
	prompts  *prompt.Assembler
	recorder storage.Recorder

	locks *keyedMutex
	seen  sync.Map // int64 -> struct{}
	now   func() time.Time
}

// New wires the pipeline. recorder may be nil.
func New(store history.Store, model llm.Client, prompts *prompt.Assembler, recorder storage.Recorder) *Orchestrator {
	return &Orchestrator{
		store:    store,
		model:    model,
		prompts:  prompts,
		recorder: recorder,
		locks:    newKeyedMutex(),
		now:      time.Now,
	}
}

// Handle answers one message. Messages of the same user are processed one at
// a time; the work is not cancelled when ctx is.
func (o *Orchestrator) Handle(ctx context.Context, in Inbound, r Replier) error {
	if in.Text == "" && in.Image == nil {
		return ErrEmptyMessage
	}
	ctx = context.WithoutCancel(ctx)
	if logging.RequestID(ctx) == "" {
		ctx = logging.NewRequestContext(ctx, in.UserID)
	}
	log := logging.WithCtx(ctx)

	unlock := o.locks.Lock(in.UserID)
	defer unlock()

	if err := o.register(ctx, in.UserID); err != nil {
		return o.storageFailure(ctx, r, "register", err)
	}
	blob, err := o.store.ReadHistory(ctx, in.UserID)
	if err != nil {
		return o.storageFailure(ctx, r, "read history", err)
	}

	req := o.prompts.Build(blob, in.Text, in.Image)

	started := o.now()
	reply, err := o.model.Query(ctx, req)
	var failureKind string
	if err != nil {
		f := llm.AsFailure(err)
		reply = f.Error()
		failureKind = string(f.Kind)
		log.Warn("model query failed",
			zap.String("kind", failureKind),
			zap.Int("status", f.StatusCode),
			zap.Duration("elapsed", o.now().Sub(started)),
		)
	} else {
		log.Debug("model replied", zap.Duration("elapsed", o.now().Sub(started)), zap.Int("reply_len", len(reply)))
	}

	deliverErr := r.Reply(ctx, reply)
	if deliverErr != nil {
		log.Error("failed to deliver reply", zap.Error(deliverErr))
	}

	utterance := in.Text
	if utterance == "" {
		utterance = ImagePlaceholder
	}
	if err := o.store.AppendTurn(ctx, in.UserID, utterance+"\n"+reply); err != nil {
		log.Error("failed to append turn", zap.Error(err))
		return fmt.Errorf("append turn: %w", err)
	}

	o.record(ctx, storage.Event{
		Timestamp:         o.now().UTC(),
		UserID:            in.UserID,
		UserMessage:       utterance,
		AssistantResponse: reply,
		HasImage:          in.Image != nil,
		FailureKind:       failureKind,
	})

	if deliverErr != nil {
		return fmt.Errorf("deliver reply: %w", deliverErr)
	}
	return nil
}

// Register creates the user record. Used by /start.
func (o *Orchestrator) Register(ctx context.Context, userID int64) error {
	if err := o.store.EnsureUser(ctx, userID); err != nil {
		return fmt.Errorf("ensure user %d: %w", userID, err)
	}
	o.seen.Store(userID, struct{}{})
	return nil
}

// History returns the stored transcript or history.NoHistory.
func (o *Orchestrator) History(ctx context.Context, userID int64) (string, error) {
	blob, err := o.store.ReadHistory(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("read history %d: %w", userID, err)
	}
	return blob, nil
}

// Clear wipes the transcript and returns the outcome text shown to the user.
func (o *Orchestrator) Clear(ctx context.Context, userID int64) (string, error) {
	unlock := o.locks.Lock(userID)
	defer unlock()

	err := o.store.ClearHistory(ctx, userID)
	switch {
	case errors.Is(err, history.ErrUserNotFound):
		return ClearNotFound, nil
	case err != nil:
		return "", fmt.Errorf("clear history %d: %w", userID, err)
	}
	return ClearDone, nil
}

func (o *Orchestrator) register(ctx context.Context, userID int64) error {
	if _, ok := o.seen.Load(userID); ok {
		return nil
	}
	return o.Register(ctx, userID)
}

func (o *Orchestrator) storageFailure(ctx context.Context, r Replier, op string, err error) error {
	logging.WithCtx(ctx).Error("history storage failed", zap.String("op", op), zap.Error(err))
	if rerr := r.Reply(ctx, StorageUnavailable); rerr != nil {
		logging.WithCtx(ctx).Error("failed to deliver reply", zap.Error(rerr))
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (o *Orchestrator) record(ctx context.Context, ev storage.Event) {
	if o.recorder == nil {
		return
	}
	if err := o.recorder.AppendInteraction(ev); err != nil {
		logging.WithCtx(ctx).Warn("failed to record interaction", zap.Error(err))
	}
}
