package usecase

import (
	"context"
	"errors"
	"fmt"

	"quantcore/internal/ml"
	applogger "quantcore/pkg/logger"
	"quantcore/pkg/queue"
)

// TrainMessageType is the queue message type training requests flow
// under.
const TrainMessageType = "model.train"

// TrainPayload is the queued training request.
type TrainPayload struct {
	Ticker string `json:"ticker"`
	TrainOptions
}

// TrainJob consumes queued training requests. Insufficient history is
// terminal for the message, not a retryable failure.
type TrainJob struct {
	svc *TrainingService
	log *applogger.Logger
}

func NewTrainJob(svc *TrainingService, log *applogger.Logger) *TrainJob {
	return &TrainJob{svc: svc, log: log}
}

func (j *TrainJob) Name() string { return "train_model" }
func (j *TrainJob) Type() string { return TrainMessageType }

func (j *TrainJob) Handle(ctx context.Context, payload interface{}) error {
	p, err := queue.ParsePayload[TrainPayload](payload)
	if err != nil {
		return fmt.Errorf("train payload: %w", err)
	}
	if p.Ticker == "" {
		return errors.New("train payload: ticker is required")
	}

	if _, err := j.svc.Train(ctx, p.Ticker, p.TrainOptions); err != nil {
		var ide *ml.InsufficientDataError
		if errors.As(err, &ide) {
			j.log.Warn("training skipped", applogger.String("ticker", p.Ticker), applogger.Error(err))
			return nil
		}
		return err
	}
	return nil
}
