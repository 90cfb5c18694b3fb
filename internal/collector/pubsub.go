package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"

	"github.com/trafficlens/trafficlens/internal/area"
)

// Command names accepted on the control subscription.
const (
	CommandStartTraining  = "start_training"
	CommandPauseTraining  = "pause_training"
	CommandCancelTraining = "cancel_training"
)

// errBadCommand marks payloads that parse as JSON but do not describe a
// valid command. They are dropped rather than redelivered.
var errBadCommand = errors.New("invalid command")

// CommandMessage is the payload of a training control message.
type CommandMessage struct {
	Command string `json:"command"`
	AreaID  string `json:"area_id"`
}

// PubSubHandler consumes training control commands for the collector.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	scheduler        *Scheduler
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the command handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	Scheduler        *Scheduler
	Logger           zerolog.Logger
}

// NewPubSubHandler creates a command handler bound to a subscription.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)

	// Commands mutate a single run slot, so they are handled one at a
	// time. Pause and cancel block until the run winds down, which can
	// take a full route sweep.
	subscriber.ReceiveSettings.MaxOutstandingMessages = 1
	subscriber.ReceiveSettings.MaxExtension = 10 * time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		scheduler:        cfg.Scheduler,
		logger:           cfg.Logger,
	}, nil
}

// Start begins processing command messages. It blocks until ctx is
// cancelled.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting command handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		h.handleMessage(ctx, msg)
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

func (h *PubSubHandler) handleMessage(ctx context.Context, msg *pubsub.Message) {
	logger := h.logger.With().
		Str("message_id", msg.ID).
		Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
		Logger()

	logger.Debug().Msg("received command message")

	// Parse message. A payload that cannot be parsed fails the same way
	// on every redelivery, so it is dropped.
	var cmd CommandMessage
	if err := json.Unmarshal(msg.Data, &cmd); err != nil {
		logger.Error().Err(err).Msg("dropping malformed command")
		msg.Ack()
		return
	}

	cmdLogger := logger.With().
		Str("command", cmd.Command).
		Str("area_id", cmd.AreaID).
		Logger()

	if err := h.dispatch(ctx, cmd); err != nil {
		switch {
		case errors.Is(err, errBadCommand):
			cmdLogger.Warn().Err(err).Msg("dropping invalid command")
			msg.Ack()
		case isStateConflict(err):
			// The command does not apply to the current run state, and
			// redelivering it would not change that.
			cmdLogger.Warn().Err(err).Msg("command not applicable")
			msg.Ack()
		default:
			cmdLogger.Error().Err(err).Msg("command failed")
			msg.Nack()
		}
		return
	}

	cmdLogger.Info().Msg("command applied")
	msg.Ack()
}

func (h *PubSubHandler) dispatch(ctx context.Context, cmd CommandMessage) error {
	if cmd.AreaID == "" {
		return fmt.Errorf("%w: missing area_id", errBadCommand)
	}

	switch cmd.Command {
	case CommandStartTraining:
		_, err := h.scheduler.Start(ctx, cmd.AreaID)
		return err
	case CommandPauseTraining:
		return h.scheduler.Pause(cmd.AreaID)
	case CommandCancelTraining:
		return h.scheduler.Cancel(cmd.AreaID)
	default:
		return fmt.Errorf("%w: unknown command %q", errBadCommand, cmd.Command)
	}
}

// isStateConflict reports errors that describe the current run or area
// state rather than a transient failure.
func isStateConflict(err error) bool {
	return errors.Is(err, ErrRunActive) ||
		errors.Is(err, ErrNoActiveRun) ||
		errors.Is(err, area.ErrAreaNotFound)
}
