package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/qrcatalog-backend/pkg/logger"
)

type fanoutRepairer interface {
	Run(ctx context.Context) (int, error)
}

// FanoutRepairJobParams wires the repair job.
type FanoutRepairJobParams struct {
	Logger   *logger.Logger
	Repairer fanoutRepairer
}

type fanoutRepairJob struct {
	logg     *logger.Logger
	repairer fanoutRepairer
}

// NewFanoutRepairJob returns the job that resumes stalled order fan-outs.
func NewFanoutRepairJob(params FanoutRepairJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repairer == nil {
		return nil, fmt.Errorf("fan-out repairer required")
	}
	return &fanoutRepairJob{logg: params.Logger, repairer: params.Repairer}, nil
}

func (j *fanoutRepairJob) Name() string { return "fanout-repair" }

func (j *fanoutRepairJob) Run(ctx context.Context) error {
	repaired, err := j.repairer.Run(ctx)
	if repaired > 0 {
		j.logg.Info(j.logg.WithField(ctx, "repaired", repaired), "resumed stalled order fan-outs")
	}
	if err != nil {
		return fmt.Errorf("fan-out repair: %w", err)
	}
	return nil
}
