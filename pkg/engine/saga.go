package engine

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tripsmith/tripsmith/pkg/config"
	"github.com/tripsmith/tripsmith/pkg/models"
)

// saga is the mutable runtime state of one workflow instance. The
// executor goroutine owns its progression; the mutex guards concurrent
// observers (status, cancel, SLA checks).
type saga struct {
	workflowID    string
	sagaID        string
	correlationID string
	templateName  string
	template      *config.WorkflowTemplate

	mu          sync.Mutex
	status      models.SagaStatus
	slaStatus   models.SLAStatus
	startTime   time.Time
	endTime     *time.Time
	currentStep string
	completed   []string
	failed      map[string]bool
	retries     map[string]int
	stepResults map[string]any
	errs        []models.StepError
	data        map[string]any

	// cancelRun aborts the executor goroutine.
	cancelRun context.CancelFunc
}

func newSaga(workflowID, correlationID string, template *config.WorkflowTemplate, input StartInput) *saga {
	return &saga{
		workflowID:    workflowID,
		sagaID:        input.SagaID,
		correlationID: correlationID,
		templateName:  template.Name,
		template:      template,
		status:        models.SagaStatusRunning,
		slaStatus:     models.SLAStatusOK,
		startTime:     time.Now(),
		failed:        make(map[string]bool),
		retries:       make(map[string]int),
		stepResults:   make(map[string]any),
		data:          input.Data,
	}
}

func (s *saga) terminal() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status.Terminal()
}

// setTerminal moves the saga into a terminal status. It reports false
// when the saga is already terminal; terminal states never transition.
func (s *saga) setTerminal(status models.SagaStatus) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.Terminal() {
		return false
	}
	s.status = status
	now := time.Now()
	s.endTime = &now
	s.currentStep = ""
	return true
}

func (s *saga) setCurrentStep(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentStep = id
}

// setSLAStatus records a new SLA classification and reports the previous
// one. Terminal sagas are left untouched.
func (s *saga) setSLAStatus(status models.SLAStatus) (old models.SLAStatus, changed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.Terminal() || s.slaStatus == status {
		return s.slaStatus, false
	}
	old = s.slaStatus
	s.slaStatus = status
	return old, true
}

func (s *saga) retryCount(stepID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.retries[stepID]
}

func (s *saga) incrementRetry(stepID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retries[stepID]++
}

func (s *saga) appendError(stepID, message string, retryCount int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = append(s.errs, models.StepError{
		Step:       stepID,
		Message:    message,
		RetryCount: retryCount,
		Timestamp:  time.Now(),
	})
}

func (s *saga) firstError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.errs) == 0 {
		return ""
	}
	return s.errs[0].Message
}

func (s *saga) markFailed(stepID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed[stepID] = true
	s.currentStep = ""
}

func (s *saga) unmarkFailed(stepID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failed, stepID)
}

// completeStep records a successful step: ordered completion list,
// declared outputs into step results, retry counter reset.
func (s *saga) completeStep(step *config.StepConfig, outputs map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed = append(s.completed, step.ID)
	for _, key := range step.Outputs {
		if v, ok := outputs[key]; ok {
			s.stepResults[key] = v
		}
	}
	s.retries[step.ID] = 0
	s.currentStep = ""
}

func (s *saga) completedSteps() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.completed))
	copy(out, s.completed)
	return out
}

// nextReadyStep returns the first step in declaration order whose
// dependencies are all completed and which is neither completed nor
// permanently failed, or nil when no step is runnable.
func (s *saga) nextReadyStep() *config.StepConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	done := make(map[string]bool, len(s.completed))
	for _, id := range s.completed {
		done[id] = true
	}
	for i := range s.template.Steps {
		step := &s.template.Steps[i]
		if done[step.ID] || s.failed[step.ID] {
			continue
		}
		ready := true
		for _, dep := range step.DependsOn {
			if !done[dep] {
				ready = false
				break
			}
		}
		if ready {
			return step
		}
	}
	return nil
}

func (s *saga) allStepsCompleted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.completed) == len(s.template.Steps)
}

// resolveInputs maps the step's declared input keys to accumulated step
// results. Keys no earlier step produced are simply absent.
func (s *saga) resolveInputs(step *config.StepConfig) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	inputs := make(map[string]any, len(step.Inputs))
	for _, key := range step.Inputs {
		if v, ok := s.stepResults[key]; ok {
			inputs[key] = v
		}
	}
	return inputs
}

func (s *saga) dataCopy() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]any, len(s.data))
	for k, v := range s.data {
		out[k] = v
	}
	return out
}

// snapshot copies the saga state for callers. RetryCount reflects the
// current step; it reads zero between steps and after a success.
func (s *saga) snapshot() *models.SagaSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := &models.SagaSnapshot{
		WorkflowID:     s.workflowID,
		SagaID:         s.sagaID,
		TemplateName:   s.templateName,
		Status:         s.status,
		SLAStatus:      s.slaStatus,
		StartTime:      s.startTime,
		CurrentStep:    s.currentStep,
		CompletedSteps: append([]string(nil), s.completed...),
		RetryCount:     s.retries[s.currentStep],
		CorrelationID:  s.correlationID,
	}
	if s.endTime != nil {
		end := *s.endTime
		snap.EndTime = &end
	}
	if len(s.failed) > 0 {
		snap.FailedSteps = make([]string, 0, len(s.failed))
		for id := range s.failed {
			snap.FailedSteps = append(snap.FailedSteps, id)
		}
		sort.Strings(snap.FailedSteps)
	}
	if len(s.stepResults) > 0 {
		snap.StepResults = make(map[string]any, len(s.stepResults))
		for k, v := range s.stepResults {
			snap.StepResults[k] = v
		}
	}
	if len(s.errs) > 0 {
		snap.Errors = append([]models.StepError(nil), s.errs...)
	}
	if len(s.data) > 0 {
		snap.Data = make(map[string]any, len(s.data))
		for k, v := range s.data {
			snap.Data[k] = v
		}
	}
	return snap
}
