package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	apperrors "forgevision/internal/common/errors"
	"forgevision/internal/common/logger"
	"forgevision/internal/common/observability"
	"forgevision/internal/models"
	"forgevision/internal/session"
	collectrequest "forgevision/internal/workers/design/collect-request"
	rendervisual "forgevision/internal/workers/design/render-visual"
	synthesizebrief "forgevision/internal/workers/design/synthesize-brief"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// ==========================
// Fakes
// ==========================

type textFunc func(ctx context.Context, prompt string) (string, error)

func (f textFunc) GenerateJSON(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

type imageFunc func(ctx context.Context, req rendervisual.ImageRequest) ([]byte, error)

func (f imageFunc) GenerateImage(ctx context.Context, req rendervisual.ImageRequest) ([]byte, error) {
	return f(ctx, req)
}

type faultyStore struct {
	session.Store
	clearErr error
	putErr   error
}

func (s *faultyStore) Clear(ctx context.Context, id string) error {
	if s.clearErr != nil {
		return s.clearErr
	}
	return s.Store.Clear(ctx, id)
}

func (s *faultyStore) Put(ctx context.Context, id string, r *models.RenderResult) error {
	if s.putErr != nil {
		return s.putErr
	}
	return s.Store.Put(ctx, id, r)
}

type panickingRenderer struct{}

func (panickingRenderer) Execute(context.Context, *rendervisual.Input) (*rendervisual.Output, error) {
	panic("renderer exploded")
}

// ==========================
// Test Helpers
// ==========================

const droneJSON = "```json\n" + `{"name":"X","philosophy":"P","innovations":["I1"],"specs":{"materials":"Titanium"},"image_prompt":"a titanium drone"}` + "\n```"

func testPNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 3))))
	return buf.Bytes()
}

func staticText(text string) textFunc {
	return func(context.Context, string) (string, error) { return text, nil }
}

func staticImage(data []byte) imageFunc {
	return func(context.Context, rendervisual.ImageRequest) ([]byte, error) { return data, nil }
}

func newTestOrchestrator(t *testing.T, text synthesizebrief.TextGenerator, img rendervisual.ImageGenerator, store session.Store) *Orchestrator {
	log := logger.NewTestLogger(t)
	synth := synthesizebrief.NewHandler(&synthesizebrief.Config{Timeout: time.Second}, text, log)
	render := rendervisual.NewHandler(&rendervisual.Config{Timeout: time.Second, Width: 1024, Height: 768}, img, log)
	return New(collectrequest.NewHandler(log), synth, render, store, observability.NewNoop(), log)
}

func validInput() *collectrequest.Input {
	return &collectrequest.Input{
		Concept:   "autonomous inspection drone",
		Industry:  "Aerospace & Defense",
		Style:     "High-Tech Prototype",
		Submitted: true,
	}
}

func seed(t *testing.T, store session.Store, sess *models.Session) {
	t.Helper()
	require.NoError(t, store.Put(context.Background(), sess.ID, &models.RenderResult{
		ID:    "previous",
		Brief: models.DesignBrief{Name: "Old", ImagePrompt: "old"},
		Image: []byte("old"),
	}))
}

func requireCode(t *testing.T, err error, code apperrors.ErrorCode) *apperrors.StandardError {
	t.Helper()
	require.Error(t, err)
	stdErr, ok := apperrors.AsStandardError(err)
	require.True(t, ok, "expected StandardError, got %T", err)
	assert.Equal(t, code, stdErr.Code)
	return stdErr
}

// ==========================
// Success
// ==========================

func TestOrchestrator_Run_Success(t *testing.T) {
	store := session.NewMemoryStore(time.Hour)
	sess := models.NewSession()
	seed(t, store, sess)
	pngData := testPNG(t)

	o := newTestOrchestrator(t, staticText(droneJSON), staticImage(pngData), store)

	result, err := o.Run(context.Background(), sess, validInput())

	require.NoError(t, err)
	assert.NotEmpty(t, result.ID)
	assert.NotEqual(t, "previous", result.ID)
	assert.Equal(t, "X", result.Brief.Name)
	assert.Equal(t, []string{"I1"}, result.Brief.Innovations)
	assert.Equal(t, "Titanium", result.Brief.Specs.Materials())
	assert.Equal(t, models.DefaultDimensions, result.Brief.Specs.Dimensions())
	assert.Equal(t, pngData, result.Image)
	assert.Equal(t, "image/png", result.ContentType)
	assert.Equal(t, "autonomous inspection drone", result.Request.Concept)
	assert.False(t, result.CreatedAt.IsZero())

	current, err := o.Current(context.Background(), sess)
	require.NoError(t, err)
	assert.Equal(t, result.ID, current.ID)
	assert.Equal(t, 0, o.locks.len())
}

func TestOrchestrator_Run_ArrayBrief(t *testing.T) {
	store := session.NewMemoryStore(time.Hour)
	var gotPrompt string
	img := imageFunc(func(_ context.Context, req rendervisual.ImageRequest) ([]byte, error) {
		gotPrompt = req.Prompt
		return testPNG(t), nil
	})

	o := newTestOrchestrator(t, staticText(`[{"image_prompt":"a turbine"}]`), img, store)
	result, err := o.Run(context.Background(), models.NewSession(), validInput())

	require.NoError(t, err)
	assert.Equal(t, "a turbine", gotPrompt)
	assert.Equal(t, models.DefaultName, result.Brief.Name)
	assert.Equal(t, models.DefaultPhilosophy, result.Brief.Philosophy)
	assert.Equal(t, []string{models.DefaultInnovation}, result.Brief.Innovations)
}

// ==========================
// Failures
// ==========================

func TestOrchestrator_Run_NotJSON(t *testing.T) {
	store := session.NewMemoryStore(time.Hour)
	sess := models.NewSession()
	seed(t, store, sess)

	var imageCalls int32
	img := imageFunc(func(context.Context, rendervisual.ImageRequest) ([]byte, error) {
		atomic.AddInt32(&imageCalls, 1)
		return nil, nil
	})

	o := newTestOrchestrator(t, staticText("Not JSON at all"), img, store)
	result, err := o.Run(context.Background(), sess, validInput())

	assert.Nil(t, result)
	stdErr := requireCode(t, err, apperrors.ErrCodeBlueprintParseFailure)
	assert.Equal(t, StageSynthesize, stdErr.Metadata["stage"])
	assert.True(t, errors.Is(err, synthesizebrief.ErrBlueprintParse))
	assert.Equal(t, int32(0), atomic.LoadInt32(&imageCalls))

	current, err := o.Current(context.Background(), sess)
	require.NoError(t, err)
	assert.Nil(t, current)
}

func TestOrchestrator_Run_RenderFailureClearsPrior(t *testing.T) {
	store := session.NewMemoryStore(time.Hour)
	sess := models.NewSession()
	seed(t, store, sess)

	img := imageFunc(func(context.Context, rendervisual.ImageRequest) ([]byte, error) {
		return nil, errors.New("503 service unavailable")
	})

	o := newTestOrchestrator(t, staticText(droneJSON), img, store)
	result, err := o.Run(context.Background(), sess, validInput())

	assert.Nil(t, result)
	stdErr := requireCode(t, err, apperrors.ErrCodeRenderFailure)
	assert.Equal(t, "503 service unavailable", stdErr.Details)
	assert.Equal(t, "Synthesis Failure: Visual prototype rendering failed: 503 service unavailable", stdErr.UserMessage())

	_, err = store.Get(context.Background(), sess.ID)
	assert.True(t, errors.Is(err, session.ErrNotFound))
}

func TestOrchestrator_Run_Classification(t *testing.T) {
	tests := []struct {
		name  string
		input *collectrequest.Input
		text  textFunc
		code  apperrors.ErrorCode
		stage string
	}{
		{
			name:  "unknown industry",
			input: &collectrequest.Input{Concept: "drone", Industry: "Fashion", Submitted: true},
			text:  staticText(droneJSON),
			code:  apperrors.ErrCodeInvalidRequest,
			stage: StageCollect,
		},
		{
			name: "text service error",
			text: func(context.Context, string) (string, error) {
				return "", errors.New("quota exceeded")
			},
			code:  apperrors.ErrCodeSynthesisFailure,
			stage: StageSynthesize,
		},
		{
			name:  "missing image prompt",
			text:  staticText(`{"name":"X"}`),
			code:  apperrors.ErrCodeInvalidBlueprintFailure,
			stage: StageSynthesize,
		},
		{
			name:  "empty array",
			text:  staticText(`[]`),
			code:  apperrors.ErrCodeInvalidBlueprintFailure,
			stage: StageSynthesize,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := session.NewMemoryStore(time.Hour)
			sess := models.NewSession()
			seed(t, store, sess)

			input := tt.input
			if input == nil {
				input = validInput()
			}

			o := newTestOrchestrator(t, tt.text, staticImage(testPNG(t)), store)
			result, err := o.Run(context.Background(), sess, input)

			assert.Nil(t, result)
			stdErr := requireCode(t, err, tt.code)
			assert.Equal(t, tt.stage, stdErr.Metadata["stage"])
			assert.NotContains(t, stdErr.Details, string(tt.code)+":")

			_, err = store.Get(context.Background(), sess.ID)
			assert.True(t, errors.Is(err, session.ErrNotFound))
		})
	}
}

func TestOrchestrator_Run_NotReadyKeepsResult(t *testing.T) {
	store := session.NewMemoryStore(time.Hour)
	sess := models.NewSession()
	seed(t, store, sess)

	o := newTestOrchestrator(t, staticText(droneJSON), staticImage(testPNG(t)), store)

	for _, in := range []*collectrequest.Input{
		nil,
		{Concept: "drone"},
		{Concept: "   ", Submitted: true},
	} {
		_, err := o.Run(context.Background(), sess, in)
		requireCode(t, err, apperrors.ErrCodeInvalidRequest)
	}

	current, err := o.Current(context.Background(), sess)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, "previous", current.ID)
}

func TestOrchestrator_Run_PanicIsInternal(t *testing.T) {
	store := session.NewMemoryStore(time.Hour)
	log := logger.NewTestLogger(t)
	synth := synthesizebrief.NewHandler(&synthesizebrief.Config{}, staticText(droneJSON), log)
	o := New(collectrequest.NewHandler(log), synth, panickingRenderer{}, store, observability.NewNoop(), log)

	result, err := o.Run(context.Background(), models.NewSession(), validInput())

	assert.Nil(t, result)
	stdErr := requireCode(t, err, apperrors.ErrCodeInternal)
	assert.Equal(t, StageRender, stdErr.Metadata["stage"])
	assert.Contains(t, stdErr.Details, "renderer exploded")
	assert.Equal(t, 0, o.locks.len())
}

func TestOrchestrator_Run_StoreFailures(t *testing.T) {
	t.Run("clear", func(t *testing.T) {
		store := &faultyStore{Store: session.NewMemoryStore(time.Hour), clearErr: errors.New("redis down")}
		o := newTestOrchestrator(t, staticText(droneJSON), staticImage(testPNG(t)), store)

		_, err := o.Run(context.Background(), models.NewSession(), validInput())
		requireCode(t, err, apperrors.ErrCodeInternal)
	})

	t.Run("put", func(t *testing.T) {
		store := &faultyStore{Store: session.NewMemoryStore(time.Hour), putErr: errors.New("redis down")}
		o := newTestOrchestrator(t, staticText(droneJSON), staticImage(testPNG(t)), store)

		result, err := o.Run(context.Background(), models.NewSession(), validInput())
		assert.Nil(t, result)
		stdErr := requireCode(t, err, apperrors.ErrCodeInternal)
		assert.Equal(t, StagePersist, stdErr.Metadata["stage"])
	})
}

func TestOrchestrator_Run_RequiresSession(t *testing.T) {
	o := newTestOrchestrator(t, staticText(droneJSON), staticImage(testPNG(t)), session.NewMemoryStore(0))

	_, err := o.Run(context.Background(), nil, validInput())
	requireCode(t, err, apperrors.ErrCodeInternal)
}

// ==========================
// Concurrency
// ==========================

func TestOrchestrator_Run_SerializesPerSession(t *testing.T) {
	store := session.NewMemoryStore(time.Hour)
	pngData := testPNG(t)

	var inFlight, maxInFlight int32
	text := textFunc(func(context.Context, string) (string, error) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			m := atomic.LoadInt32(&maxInFlight)
			if n <= m || atomic.CompareAndSwapInt32(&maxInFlight, m, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return droneJSON, nil
	})

	log := logger.NewNoOpLogger()
	synth := synthesizebrief.NewHandler(&synthesizebrief.Config{}, text, log)
	render := rendervisual.NewHandler(&rendervisual.Config{}, staticImage(pngData), log)
	o := New(collectrequest.NewHandler(log), synth, render, store, observability.NewNoop(), log)

	sess := models.NewSession()
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = o.Run(context.Background(), sess, validInput())
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&maxInFlight))
	assert.Equal(t, 0, o.locks.len())
}

func TestSessionLocks_IndependentSessions(t *testing.T) {
	locks := newSessionLocks()

	unlockA := locks.Lock("a")
	done := make(chan struct{})
	go func() {
		unlockB := locks.Lock("b")
		unlockB()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on session b blocked behind session a")
	}
	unlockA()
	assert.Equal(t, 0, locks.len())
}

func TestDetail(t *testing.T) {
	err := errors.New("RENDER_FAILURE: status 500")
	assert.Equal(t, "status 500", detail(err, rendervisual.ErrRenderFailure))
	assert.Equal(t, "", detail(collectrequest.ErrNotSubmitted, collectrequest.ErrNotSubmitted))
}

// ==========================
// Tracing
// ==========================

func tracedOrchestrator(t *testing.T, text synthesizebrief.TextGenerator, img rendervisual.ImageGenerator) (*Orchestrator, *tracetest.SpanRecorder) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	log := logger.NewTestLogger(t)
	synth := synthesizebrief.NewHandler(&synthesizebrief.Config{Timeout: time.Second}, text, log)
	render := rendervisual.NewHandler(&rendervisual.Config{Timeout: time.Second, Width: 1024, Height: 768}, img, log)
	o := New(collectrequest.NewHandler(log), synth, render, session.NewMemoryStore(time.Hour), observability.NewWithTracer(tp), log)
	return o, recorder
}

func spanNames(spans []sdktrace.ReadOnlySpan) []string {
	names := make([]string, 0, len(spans))
	for _, s := range spans {
		names = append(names, s.Name())
	}
	return names
}

func TestOrchestrator_Run_RecordsStageSpans(t *testing.T) {
	o, recorder := tracedOrchestrator(t, staticText(droneJSON), staticImage(testPNG(t)))

	_, err := o.Run(context.Background(), models.NewSession(), validInput())
	require.NoError(t, err)

	assert.Equal(t, []string{
		"pipeline." + StageCollect,
		"pipeline." + StageSynthesize,
		"pipeline." + StageRender,
		"pipeline." + StagePersist,
		"pipeline.run",
	}, spanNames(recorder.Ended()))

	for _, span := range recorder.Ended() {
		assert.NotEqual(t, codes.Error, span.Status().Code, span.Name())
	}
}

func TestOrchestrator_Run_FailedStageSpan(t *testing.T) {
	o, recorder := tracedOrchestrator(t, staticText("Not JSON at all"), staticImage(testPNG(t)))

	_, err := o.Run(context.Background(), models.NewSession(), validInput())
	require.Error(t, err)

	spans := recorder.Ended()
	assert.Equal(t, []string{
		"pipeline." + StageCollect,
		"pipeline." + StageSynthesize,
		"pipeline.run",
	}, spanNames(spans))

	synth := spans[1]
	assert.Equal(t, codes.Error, synth.Status().Code)
	require.NotEmpty(t, synth.Events())
	assert.Equal(t, "exception", synth.Events()[0].Name)

	assert.Equal(t, codes.Error, spans[2].Status().Code)
}
