package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zombor/label-scan/internal/history"
	"github.com/zombor/label-scan/internal/imagesource"
	"github.com/zombor/label-scan/internal/scanning"
)

var (
	// ErrInvalidTransition is returned when an operation is not valid in the current view
	ErrInvalidTransition = errors.New("operation not valid in the current view")

	// ErrAnalysisPending is returned when a second submission is attempted
	ErrAnalysisPending = errors.New("an analysis is already in progress")

	// ErrNoImage is returned when submitting without an acquired image
	ErrNoImage = errors.New("no image to analyze")

	// ErrEntryNotFound is returned when opening a history entry that no longer exists
	ErrEntryNotFound = errors.New("history entry not found")

	// ErrAssistantUnavailable is returned by Ask when no assistant is configured
	ErrAssistantUnavailable = errors.New("assistant not configured")
)

// IDGenerator generates history entry IDs
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type uuidGenerator struct{}

func (g *uuidGenerator) Generate() string {
	return uuid.NewString()
}

type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Options holds the optional collaborators of a Workflow
type Options struct {
	// Camera is the capture device; nil means every camera start fails as unavailable
	Camera imagesource.Device
	// Assistant answers follow-up questions in the report view; may be nil
	Assistant scanning.Assistant
	// RequestTimeout bounds one analysis call; zero means no limit
	RequestTimeout time.Duration
}

// Workflow is the scan state machine. Every exported method is one named
// transition; the state is never assigned from outside.
type Workflow struct {
	analyzer    scanning.Analyzer
	store       *history.Store
	opts        Options
	idGenerator IDGenerator
	timeSource  TimeSource

	mu      sync.Mutex
	state   State
	image   *imagesource.AcquiredImage
	session *imagesource.CameraSession
	// visit changes every time the scan view is entered or left
	visit uint64
	// request identifies the outstanding analysis; a result for any other value is stale
	request uint64
	cancel  context.CancelFunc

	inflight sync.WaitGroup

	notifyMu  sync.Mutex
	listeners []func(State)
}

// New creates a Workflow in the dashboard view. The store must already be loaded.
func New(analyzer scanning.Analyzer, store *history.Store, opts Options) *Workflow {
	return NewWithDeps(analyzer, store, opts, &uuidGenerator{}, &defaultTimeSource{})
}

// NewWithDeps creates a Workflow with custom dependencies for testing
func NewWithDeps(analyzer scanning.Analyzer, store *history.Store, opts Options, idGen IDGenerator, timeSrc TimeSource) *Workflow {
	return &Workflow{
		analyzer:    analyzer,
		store:       store,
		opts:        opts,
		idGenerator: idGen,
		timeSource:  timeSrc,
		state:       Dashboard{},
	}
}

// State returns the active view
func (w *Workflow) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Subscribe registers fn to be called with the new state after every transition.
// fn must not call back into the Workflow.
func (w *Workflow) Subscribe(fn func(State)) {
	w.notifyMu.Lock()
	defer w.notifyMu.Unlock()
	w.listeners = append(w.listeners, fn)
}

// Wait blocks until no analysis goroutine is running
func (w *Workflow) Wait() {
	w.inflight.Wait()
}

// notify hands listeners the latest state, so the final notification always
// matches the final transition even when goroutines race
func (w *Workflow) notify() {
	w.notifyMu.Lock()
	defer w.notifyMu.Unlock()

	state := w.State()
	for _, fn := range w.listeners {
		fn(state)
	}
}

func invalid(op string, from State) error {
	return fmt.Errorf("%w: cannot %s from %s", ErrInvalidTransition, op, from.Name())
}

// SelectCategory moves from the dashboard to the scan view for category
func (w *Workflow) SelectCategory(category scanning.Category) error {
	if !category.Valid() {
		return fmt.Errorf("unknown category %q", category)
	}

	w.mu.Lock()
	if _, ok := w.state.(Dashboard); !ok {
		defer w.mu.Unlock()
		return invalid("select a category", w.state)
	}
	w.enterScan(category)
	w.mu.Unlock()

	w.notify()
	return nil
}

// PickFromGallery replaces the current image with one chosen by picker. Any open
// camera is stopped first. A cancelled pick leaves the view untouched.
func (w *Workflow) PickFromGallery(ctx context.Context, picker imagesource.Picker) error {
	w.mu.Lock()
	scan, err := w.acquiring("pick an image")
	if err != nil {
		w.mu.Unlock()
		return err
	}
	cameraOpen := scan.CameraOpen
	w.stopCamera()
	scan.CameraOpen = false
	w.state = scan
	visit := w.visit
	w.mu.Unlock()
	if cameraOpen {
		w.notify()
	}

	img, pickErr := picker.Pick(ctx)

	w.mu.Lock()
	if w.visit != visit {
		w.mu.Unlock()
		slog.Debug("Discarding image picked after leaving the scan view")
		return nil
	}
	scan = w.state.(Scan)
	switch {
	case scan.Pending:
		w.mu.Unlock()
		return ErrAnalysisPending
	case errors.Is(pickErr, imagesource.ErrCancelled):
		w.mu.Unlock()
		return nil
	case pickErr != nil:
		scan.Failure = newFailure(ImageUnreadable, pickErr)
		w.state = scan
		w.mu.Unlock()
		w.notify()
		return scan.Failure
	}
	// a camera started while the picker was open gives way to the picked image
	w.stopCamera()
	w.setImage(img)
	w.mu.Unlock()

	w.notify()
	return nil
}

// StartCamera claims the camera for live capture. On failure the scan view shows
// a DeviceUnavailable message and gallery pick remains available.
func (w *Workflow) StartCamera(ctx context.Context) error {
	w.mu.Lock()
	scan, err := w.acquiring("start the camera")
	if err != nil {
		w.mu.Unlock()
		return err
	}
	if w.session.Active() {
		w.mu.Unlock()
		return nil
	}
	visit := w.visit
	w.mu.Unlock()

	session, startErr := imagesource.StartCamera(ctx, w.opts.Camera)

	w.mu.Lock()
	if w.visit != visit {
		w.mu.Unlock()
		session.Stop()
		return nil
	}
	scan = w.state.(Scan)
	if scan.Pending {
		w.mu.Unlock()
		session.Stop()
		return ErrAnalysisPending
	}
	if startErr != nil {
		scan.CameraOpen = false
		scan.Failure = classify(startErr)
		w.state = scan
		w.mu.Unlock()
		w.notify()
		return scan.Failure
	}
	if w.session.Active() {
		// lost a race with another start; keep the first session
		w.mu.Unlock()
		session.Stop()
		return nil
	}
	w.session = session
	scan.CameraOpen = true
	scan.Failure = nil
	w.state = scan
	w.mu.Unlock()

	w.notify()
	return nil
}

// CaptureFrame grabs the live frame as the new image and stops the camera.
// If no frame can be read the camera stays open so the user can try again.
func (w *Workflow) CaptureFrame() error {
	w.mu.Lock()
	scan, err := w.acquiring("capture a frame")
	if err != nil {
		w.mu.Unlock()
		return err
	}
	if !w.session.Active() {
		w.mu.Unlock()
		return invalid("capture without an open camera", scan)
	}

	img, captureErr := w.session.CaptureFrame()
	if captureErr != nil {
		scan.Failure = classify(captureErr)
		w.state = scan
		w.mu.Unlock()
		w.notify()
		return scan.Failure
	}

	w.stopCamera()
	w.setImage(img)
	w.mu.Unlock()

	w.notify()
	return nil
}

// StopCamera releases the camera if one is open. It is valid in every view.
func (w *Workflow) StopCamera() {
	w.mu.Lock()
	w.stopCamera()
	scan, ok := w.state.(Scan)
	changed := ok && scan.CameraOpen
	if changed {
		scan.CameraOpen = false
		w.state = scan
	}
	w.mu.Unlock()

	if changed {
		w.notify()
	}
}

// Submit starts analysing the current image. It returns immediately; the
// outcome arrives as a transition to the report view or a failure in the scan view.
func (w *Workflow) Submit(ctx context.Context) error {
	w.mu.Lock()
	scan, ok := w.state.(Scan)
	if !ok {
		defer w.mu.Unlock()
		return invalid("submit", w.state)
	}
	if scan.Pending {
		w.mu.Unlock()
		return ErrAnalysisPending
	}
	if w.image == nil {
		w.mu.Unlock()
		return ErrNoImage
	}

	w.stopCamera()
	w.request++
	id := w.request
	img := w.image
	category := scan.Category

	// the request outlives the caller's context; only leaving the scan view or the timeout ends it
	var (
		reqCtx context.Context
		cancel context.CancelFunc
	)
	if w.opts.RequestTimeout > 0 {
		reqCtx, cancel = context.WithTimeout(context.WithoutCancel(ctx), w.opts.RequestTimeout)
	} else {
		reqCtx, cancel = context.WithCancel(context.WithoutCancel(ctx))
	}
	w.cancel = cancel

	scan.CameraOpen = false
	scan.Pending = true
	scan.Failure = nil
	w.state = scan
	w.inflight.Add(1)
	w.mu.Unlock()

	w.notify()

	go func() {
		defer w.inflight.Done()
		defer cancel()

		report, err := w.analyzer.Analyze(reqCtx, img, category)
		w.finish(id, category, report, err)
	}()
	return nil
}

func (w *Workflow) finish(id uint64, category scanning.Category, report *scanning.SafetyReport, err error) {
	w.mu.Lock()
	scan, inScan := w.state.(Scan)
	if id != w.request || !inScan || !scan.Pending {
		w.mu.Unlock()
		slog.Warn("Discarding stale analysis result", "category", category, "error", err)
		return
	}
	w.cancel = nil

	if err == nil && report == nil {
		err = fmt.Errorf("%w: empty report", scanning.ErrMalformedResponse)
	}
	if err != nil {
		slog.Error("Failed to analyze label", "category", category, "error", err)
		scan.Pending = false
		scan.Failure = classify(err)
		w.state = scan
		w.mu.Unlock()
		w.notify()
		return
	}

	entry := history.NewEntry(w.idGenerator.Generate(), category, *report, w.timeSource.Now())
	if err := w.store.Record(entry); err != nil {
		slog.Error("Failed to record scan history", "entry", entry.ID, "error", err)
	}

	w.leaveScan()
	w.state = reportState(entry, false)
	w.mu.Unlock()

	w.notify()
}

// DismissFailure clears the failure message in the scan view
func (w *Workflow) DismissFailure() error {
	w.mu.Lock()
	scan, ok := w.state.(Scan)
	if !ok {
		defer w.mu.Unlock()
		return invalid("dismiss a message", w.state)
	}
	scan.Failure = nil
	w.state = scan
	w.mu.Unlock()

	w.notify()
	return nil
}

// ScanAnother starts a fresh scan of the report's category
func (w *Workflow) ScanAnother() error {
	w.mu.Lock()
	report, ok := w.state.(Report)
	if !ok {
		defer w.mu.Unlock()
		return invalid("scan another", w.state)
	}
	w.enterScan(report.Category)
	w.mu.Unlock()

	w.notify()
	return nil
}

// GoToDashboard returns to the dashboard. Leaving the scan view stops the camera
// and abandons any outstanding analysis.
func (w *Workflow) GoToDashboard() {
	w.mu.Lock()
	if _, ok := w.state.(Dashboard); ok {
		w.mu.Unlock()
		return
	}
	if _, ok := w.state.(Scan); ok {
		w.leaveScan()
	}
	w.state = Dashboard{}
	w.mu.Unlock()

	w.notify()
}

// OpenHistory shows the stored scans
func (w *Workflow) OpenHistory() error {
	w.mu.Lock()
	if _, ok := w.state.(Dashboard); !ok {
		defer w.mu.Unlock()
		return invalid("open history", w.state)
	}
	w.state = History{Entries: w.store.Entries()}
	w.mu.Unlock()

	w.notify()
	return nil
}

// ViewEntry replays a stored report without contacting the analysis service
func (w *Workflow) ViewEntry(id string) error {
	w.mu.Lock()
	if _, ok := w.state.(History); !ok {
		defer w.mu.Unlock()
		return invalid("open a history entry", w.state)
	}
	entry, found := w.store.Get(id)
	if !found {
		w.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrEntryNotFound, id)
	}
	w.state = reportState(entry, true)
	w.mu.Unlock()

	w.notify()
	return nil
}

// ClearHistory empties the history and stays in the history view
func (w *Workflow) ClearHistory() error {
	w.mu.Lock()
	if _, ok := w.state.(History); !ok {
		defer w.mu.Unlock()
		return invalid("clear history", w.state)
	}
	if err := w.store.Clear(); err != nil {
		w.mu.Unlock()
		return err
	}
	w.state = History{Entries: []history.Entry{}}
	w.mu.Unlock()

	w.notify()
	return nil
}

// Ask sends a follow-up question about the report on screen to the assistant
func (w *Workflow) Ask(ctx context.Context, query string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", fmt.Errorf("question is empty")
	}

	w.mu.Lock()
	report, ok := w.state.(Report)
	if !ok {
		defer w.mu.Unlock()
		return "", invalid("ask the assistant", w.state)
	}
	w.mu.Unlock()

	if w.opts.Assistant == nil {
		return "", ErrAssistantUnavailable
	}

	reply, err := w.opts.Assistant.Ask(ctx, scanning.AssistantRequest{
		Query:    query,
		Context:  &report.Report,
		Category: report.Category,
	})
	if err != nil {
		return "", fmt.Errorf("asking assistant: %w", err)
	}
	return reply, nil
}

// acquiring returns the scan state if a new image may be acquired. Caller holds mu.
func (w *Workflow) acquiring(op string) (Scan, error) {
	scan, ok := w.state.(Scan)
	if !ok {
		return Scan{}, invalid(op, w.state)
	}
	if scan.Pending {
		return Scan{}, ErrAnalysisPending
	}
	return scan, nil
}

// setImage replaces the acquired image and refreshes the scan state. Caller holds mu.
func (w *Workflow) setImage(img *imagesource.AcquiredImage) {
	w.image = img
	scan := w.state.(Scan)
	scan.HasImage = true
	scan.ImageName = img.Name
	scan.ImageMime = img.MimeType
	scan.CameraOpen = w.session.Active()
	scan.Failure = nil
	w.state = scan
}

// enterScan starts a fresh scan view. Caller holds mu.
func (w *Workflow) enterScan(category scanning.Category) {
	w.visit++
	w.image = nil
	w.state = Scan{Category: category}
}

// leaveScan releases everything owned by the scan view. Caller holds mu.
func (w *Workflow) leaveScan() {
	w.stopCamera()
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
	w.request++
	w.visit++
	w.image = nil
}

// stopCamera stops the session if any. Caller holds mu.
func (w *Workflow) stopCamera() {
	w.session.Stop()
	w.session = nil
}
