// internal/pipeline/orchestrator.go
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "forgevision/internal/common/errors"
	"forgevision/internal/common/logger"
	"forgevision/internal/common/metrics"
	"forgevision/internal/common/observability"
	"forgevision/internal/models"
	"forgevision/internal/session"
	collectrequest "forgevision/internal/workers/design/collect-request"
	rendervisual "forgevision/internal/workers/design/render-visual"
	synthesizebrief "forgevision/internal/workers/design/synthesize-brief"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	StageCollect    = collectrequest.TaskType
	StageSynthesize = synthesizebrief.TaskType
	StageRender     = rendervisual.TaskType
	StagePersist    = "store-result"
)

const (
	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
	OutcomeRejected = "rejected"
)

type Synthesizer interface {
	Execute(ctx context.Context, input *synthesizebrief.Input) (*synthesizebrief.Output, error)
}

type Renderer interface {
	Execute(ctx context.Context, input *rendervisual.Input) (*rendervisual.Output, error)
}

// Orchestrator runs collect, synthesize and render for one session and owns
// that session's current result.
type Orchestrator struct {
	collector   *collectrequest.Handler
	synthesizer Synthesizer
	renderer    Renderer
	store       session.Store
	obs         *observability.Observability
	logger      logger.Logger
	locks       *sessionLocks
	now         func() time.Time
}

func New(collector *collectrequest.Handler, synthesizer Synthesizer, renderer Renderer, store session.Store, obs *observability.Observability, log logger.Logger) *Orchestrator {
	return &Orchestrator{
		collector:   collector,
		synthesizer: synthesizer,
		renderer:    renderer,
		store:       store,
		obs:         obs,
		logger:      log.With(map[string]interface{}{"component": "pipeline"}),
		locks:       newSessionLocks(),
		now:         time.Now,
	}
}

// Run executes the pipeline. The returned error, when non-nil, is always a
// *errors.StandardError. A request that is not ready to synthesize is
// rejected without touching the current result; any other run clears it
// first and stores a new one only on full success.
func (o *Orchestrator) Run(ctx context.Context, sess *models.Session, input *collectrequest.Input) (result *models.RenderResult, err error) {
	if sess == nil || sess.ID == "" {
		return nil, apperrors.NewInternalError(errors.New("pipeline run without a session"))
	}

	ctx, span := o.obs.StartSpan(ctx, "pipeline.run", attribute.String("session.id", sess.ID))
	defer span.End()

	log := o.logger.With(map[string]interface{}{"sessionId": sess.ID})

	if !collectrequest.Ready(input) {
		metrics.PipelineRuns.WithLabelValues(OutcomeRejected).Inc()
		return nil, apperrors.NewInvalidRequestError("a product concept description is required")
	}

	unlock := o.locks.Lock(sess.ID)
	defer unlock()

	metrics.PipelineRunsActive.Inc()
	defer metrics.PipelineRunsActive.Dec()

	start := o.now()
	defer func() {
		outcome := OutcomeSuccess
		if err != nil {
			outcome = OutcomeFailure
			span.SetStatus(codes.Error, err.Error())
		}
		metrics.PipelineRuns.WithLabelValues(outcome).Inc()
		o.obs.RecordRun(ctx, outcome)
		o.obs.RecordRunDuration(ctx, o.now().Sub(start), outcome)
	}()

	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = o.fail(log, "orchestrator", fmt.Errorf("panic: %v", r))
		}
	}()

	if err := o.store.Clear(ctx, sess.ID); err != nil {
		log.Error("failed to clear current result", map[string]interface{}{"error": err.Error()})
		return nil, apperrors.NewInternalError(fmt.Errorf("clear current result: %w", err))
	}

	var req *models.DesignRequest
	if err := o.stage(ctx, StageCollect, func(ctx context.Context) error {
		var err error
		req, err = o.collector.Execute(input)
		return err
	}); err != nil {
		return nil, o.fail(log, StageCollect, err)
	}

	var brief *synthesizebrief.Output
	if err := o.stage(ctx, StageSynthesize, func(ctx context.Context) error {
		var err error
		brief, err = o.synthesizer.Execute(ctx, &synthesizebrief.Input{
			Concept:  req.Concept,
			Industry: req.Industry,
			Style:    req.Style,
		})
		return err
	}); err != nil {
		return nil, o.fail(log, StageSynthesize, err)
	}

	var visual *rendervisual.Output
	if err := o.stage(ctx, StageRender, func(ctx context.Context) error {
		var err error
		visual, err = o.renderer.Execute(ctx, &rendervisual.Input{Prompt: brief.Brief.ImagePrompt})
		return err
	}); err != nil {
		return nil, o.fail(log, StageRender, err)
	}

	result = &models.RenderResult{
		ID:          uuid.NewString(),
		Request:     *req,
		Brief:       brief.Brief,
		Image:       visual.Image,
		ContentType: visual.ContentType,
		Width:       visual.Width,
		Height:      visual.Height,
		CreatedAt:   o.now().UTC(),
	}

	if err := o.stage(ctx, StagePersist, func(ctx context.Context) error {
		return o.store.Put(ctx, sess.ID, result)
	}); err != nil {
		return nil, o.fail(log, StagePersist, err)
	}

	log.Info("design synthesized", map[string]interface{}{
		"resultId": result.ID,
		"summary":  result.Summary(),
		"strategy": string(brief.Strategy),
	})

	return result, nil
}

// Current returns the session's result, or nil when there is none.
func (o *Orchestrator) Current(ctx context.Context, sess *models.Session) (*models.RenderResult, error) {
	if sess == nil {
		return nil, nil
	}
	result, err := o.store.Get(ctx, sess.ID)
	if errors.Is(err, session.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewInternalError(fmt.Errorf("load current result: %w", err))
	}
	return result, nil
}

// stage runs fn under its own span and duration metric. A panic inside fn
// becomes an ordinary error.
func (o *Orchestrator) stage(ctx context.Context, name string, fn func(context.Context) error) (err error) {
	ctx, span := o.obs.StartSpan(ctx, "pipeline."+name, attribute.String("stage", name))
	start := o.now()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s stage: %v", name, r)
		}
		metrics.PipelineStageDuration.WithLabelValues(name).Observe(o.now().Sub(start).Seconds())
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	return fn(ctx)
}

func (o *Orchestrator) fail(log logger.Logger, stage string, err error) *apperrors.StandardError {
	stdErr := classify(err).WithMetadata("stage", stage)

	metrics.PipelineStageFailures.WithLabelValues(stage, string(stdErr.Code)).Inc()

	log.Warn("pipeline stage failed", map[string]interface{}{
		"stage":     stage,
		"errorCode": string(stdErr.Code),
		"category":  apperrors.GetErrorCategory(stdErr.Code),
		"error":     err.Error(),
	})

	return stdErr
}

// classify maps stage sentinels onto the failure taxonomy. Anything not
// recognised is an internal error.
func classify(err error) *apperrors.StandardError {
	switch {
	case errors.Is(err, collectrequest.ErrInvalidRequest), errors.Is(err, collectrequest.ErrNotSubmitted):
		return apperrors.NewInvalidRequestError(detail(err, collectrequest.ErrInvalidRequest, collectrequest.ErrNotSubmitted))
	case errors.Is(err, synthesizebrief.ErrSynthesisFailed):
		return withDetail(apperrors.NewSynthesisFailureError(err), err, synthesizebrief.ErrSynthesisFailed)
	case errors.Is(err, synthesizebrief.ErrBlueprintParse):
		return withDetail(apperrors.NewBlueprintParseFailureError(err), err, synthesizebrief.ErrBlueprintParse)
	case errors.Is(err, synthesizebrief.ErrInvalidBlueprint):
		return withDetail(apperrors.NewInvalidBlueprintFailureError(err), err, synthesizebrief.ErrInvalidBlueprint)
	case errors.Is(err, rendervisual.ErrRenderFailure):
		return withDetail(apperrors.NewRenderFailureError(err), err, rendervisual.ErrRenderFailure)
	default:
		return apperrors.Normalize(err)
	}
}

func withDetail(stdErr *apperrors.StandardError, err error, sentinels ...error) *apperrors.StandardError {
	stdErr.Details = detail(err, sentinels...)
	return stdErr
}

// detail strips the "CODE: " prefix a stage adds when wrapping.
func detail(err error, sentinels ...error) string {
	msg := err.Error()
	for _, s := range sentinels {
		msg = strings.TrimPrefix(msg, s.Error())
	}
	return strings.TrimSpace(strings.TrimPrefix(msg, ":"))
}
