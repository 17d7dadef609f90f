package plan

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/TNO-ropt/ropt-everest/pkg/config"
	"github.com/TNO-ropt/ropt-everest/pkg/engine"
)

// WorkflowJobStep runs external workflow jobs declared in the
// configuration's install_workflow_jobs section. It carries no source tag:
// workflow jobs emit no evaluation events.
type WorkflowJobStep struct {
	plan *Plan
}

// Name implements Step.
func (s *WorkflowJobStep) Name() string { return "workflow_job" }

// Tag implements Step.
func (s *WorkflowJobStep) Tag() string { return "" }

// Run executes the given job lines in order. Each line names an installed
// workflow job followed by its arguments; the job's configured arguments
// come first. The report maps each job name to its completion state and
// captured output. Every job runs even after a failure; a failed job makes
// the whole run fail once all jobs ran.
func (s *WorkflowJobStep) Run(ctx context.Context, jobs []string) (map[string]any, error) {
	installed := make(map[string]config.WorkflowJobConfig, len(s.plan.cfg.InstallWorkflowJobs))
	for _, job := range s.plan.cfg.InstallWorkflowJobs {
		installed[job.Name] = job
	}

	if s.plan.metrics != nil {
		s.plan.metrics.RecordStepStarted(s.Name())
	}
	start := time.Now()

	report := make(map[string]any, len(jobs))
	failed := false
	for _, line := range jobs {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		job, ok := installed[fields[0]]
		if !ok {
			return nil, engine.NewConfigError(
				fmt.Sprintf("unknown workflow job %q", fields[0]), nil,
			).WithComponent("workflow_job")
		}

		args := append(append([]string{}, job.Args...), fields[1:]...)
		logger := s.plan.logger.WithStep(s.Name()).WithField("job", job.Name)
		logger.Debug("running workflow job")

		output, err := exec.CommandContext(ctx, job.Executable, args...).CombinedOutput()
		completed := err == nil
		if !completed {
			failed = true
			logger.WithError(err).Error("workflow job failed")
		}
		report[job.Name] = map[string]any{
			"completed": completed,
			"output":    string(output),
		}
	}

	if failed {
		if s.plan.metrics != nil {
			s.plan.metrics.RecordStepCompleted(s.Name(), "error", time.Since(start))
		}
		return report, engine.NewIOError("workflow job failed", nil).WithComponent("workflow_job")
	}
	if s.plan.metrics != nil {
		s.plan.metrics.RecordStepCompleted(s.Name(), engine.ExitStepFinished.String(), time.Since(start))
	}
	return report, nil
}
