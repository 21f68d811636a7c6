// Package sequencer drives one fill request end to end: navigate, check for a
// challenge, fill every field, submit, settle and harvest.
package sequencer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/autoform/api/schemas"
	"github.com/xkilldash9x/autoform/internal/browser/dom"
	"github.com/xkilldash9x/autoform/internal/config"
	"github.com/xkilldash9x/autoform/internal/dictionary"
	"github.com/xkilldash9x/autoform/internal/engine/blockdetect"
	"github.com/xkilldash9x/autoform/internal/engine/filler"
	"github.com/xkilldash9x/autoform/internal/engine/harvest"
	"github.com/xkilldash9x/autoform/internal/engine/scoring"
	"github.com/xkilldash9x/autoform/internal/engine/submit"
	"github.com/xkilldash9x/autoform/internal/observability"
)

// State is a step of the fill state machine.
type State string

const (
	StateNavigating State = "NAVIGATING"
	StateBlockCheck State = "BLOCK_CHECK"
	StateFilling    State = "FILLING"
	StateSubmitting State = "SUBMITTING"
	StateSettling   State = "SETTLING"
	StateHarvesting State = "HARVESTING"
	StateDone       State = "DONE"
	StateBlocked    State = "BLOCKED"
	StateError      State = "ERROR"
)

// ErrSessionUnavailable is returned when no browser page could be opened.
var ErrSessionUnavailable = errors.New("browser session unavailable")

// Sequencer runs fill plans. It is safe for concurrent use; all per-request
// state lives in Run.
type Sequencer struct {
	browser   schemas.BrowserManager
	detector  *blockdetect.Detector
	filler    *filler.Filler
	locator   *submit.Locator
	harvester *harvest.Harvester
	netCfg    config.NetworkConfig
	pacing    time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

// New wires the engine components from configuration.
func New(cfg config.Interface, browser schemas.BrowserManager, logger *zap.Logger) *Sequencer {
	if logger == nil {
		logger = zap.NewNop()
	}
	dict := dictionary.Default().WithOverrides(cfg.Dictionary().Synonyms)
	return &Sequencer{
		browser:   browser,
		detector:  blockdetect.New(cfg.Detector()),
		filler:    filler.New(dict, scoring.NewScorer(cfg.Scoring()), cfg.Filler(), logger),
		locator:   submit.New(cfg.Submit()),
		harvester: harvest.New(cfg.Harvest(), cfg.Network(), logger),
		netCfg:    cfg.Network(),
		pacing:    cfg.Filler().Pacing,
		logger:    logger.Named("sequencer"),
		now:       time.Now,
	}
}

// flow is the state of one request.
type flow struct {
	plan   *schemas.FillPlan
	page   schemas.Page
	resp   *schemas.FillResponse
	events *observability.EventLog
	state  State
	logger *zap.Logger
}

func (f *flow) enter(s State) {
	f.logger.Debug("State transition.", zap.String("from", string(f.state)), zap.String("to", string(s)))
	f.state = s
}

// Run executes the plan. The response is never nil. The error is a
// *ValidationError when the plan was rejected, or wraps ErrSessionUnavailable
// when no page could be opened; flow failures are reported in the response
// with reason "exception" and a nil error.
func (s *Sequencer) Run(ctx context.Context, plan *schemas.FillPlan) (*schemas.FillResponse, error) {
	id := uuid.NewString()
	logger := s.logger.With(zap.String("uuid", id))
	events := observability.NewEventLog(logger)
	resp := &schemas.FillResponse{UUID: id, StartedAt: s.now().UTC()}
	finish := func() *schemas.FillResponse {
		resp.FinishedAt = s.now().UTC()
		resp.Log = events.Entries()
		return resp
	}

	var keys []string
	if plan != nil {
		for _, f := range plan.Payload {
			keys = append(keys, f.Name)
		}
	}
	events.Add(observability.StageFillStart, "New request", map[string]any{"uuid": id, "planKeys": keys})

	if err := Validate(plan); err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			stage := observability.StagePlanInvalid
			if verr.Reason == schemas.ReasonBadPortal {
				stage = observability.StagePortalInvalid
			}
			events.Add(stage, verr.Msg, nil)
			resp.Reason = verr.Reason
		}
		return finish(), err
	}

	page, err := s.browser.NewPage(ctx)
	if err != nil {
		events.Add(observability.StageError, "Could not open browser session", map[string]any{"err": err.Error()})
		resp.Reason = schemas.ReasonServerError
		resp.Error = err.Error()
		return finish(), fmt.Errorf("%w: %v", ErrSessionUnavailable, err)
	}
	var once sync.Once
	release := func() {
		once.Do(func() {
			closeCtx, cancel := s.detached(ctx)
			defer cancel()
			if err := page.Close(closeCtx); err != nil {
				logger.Warn("Failed to close page session.", zap.Error(err))
			}
		})
	}
	defer release()

	f := &flow{plan: plan, page: page, resp: resp, events: events, logger: logger}
	if err := s.drive(ctx, f); err != nil {
		f.enter(StateError)
		*resp = schemas.FillResponse{
			UUID:      resp.UUID,
			StartedAt: resp.StartedAt,
			Reason:    schemas.ReasonException,
			Error:     err.Error(),
			Evidence:  s.bestEffortScreenshot(ctx, page, logger),
		}
		release()
		events.Add(observability.StageError, "Exception inside browser", map[string]any{"err": err.Error()})
		return finish(), nil
	}
	release()
	if f.state == StateDone {
		events.Add(observability.StageDone, "Process completed", nil)
	}
	return finish(), nil
}

// drive walks the states from NAVIGATING to DONE or BLOCKED. Any returned
// error moves the flow to ERROR.
func (s *Sequencer) drive(ctx context.Context, f *flow) error {
	f.enter(StateNavigating)
	if err := s.navigate(ctx, f); err != nil {
		return err
	}

	f.enter(StateBlockCheck)
	verdict, err := s.checkBlock(ctx, f.page)
	if err != nil {
		return err
	}
	if verdict.Blocked {
		shot, err := f.page.Screenshot(ctx)
		if err != nil {
			return fmt.Errorf("failed to capture challenge evidence: %w", err)
		}
		f.resp.Evidence = shot
		if err := s.identify(ctx, f); err != nil {
			return err
		}
		f.enter(StateBlocked)
		f.resp.Reason = schemas.ReasonCaptchaDetected
		f.events.Add(observability.StageCaptcha, "Captcha detected", map[string]any{"kind": verdict.Kind, "marker": verdict.Marker})
		return nil
	}

	f.enter(StateFilling)
	if err := s.fillAll(ctx, f); err != nil {
		return err
	}

	f.enter(StateSubmitting)
	clicked, err := s.submit(ctx, f)
	if err != nil {
		return err
	}

	if clicked {
		f.enter(StateSettling)
		if err := f.page.WaitNetworkIdle(ctx, s.netCfg.QuietPeriod, s.netCfg.SubmitSettleTimeout); err != nil {
			f.logger.Debug("Network did not settle after submit.", zap.Error(err))
		}
	}

	f.enter(StateHarvesting)
	if err := s.harvest(ctx, f); err != nil {
		return err
	}

	f.enter(StateDone)
	f.resp.OK = true
	return nil
}

func (s *Sequencer) navigate(ctx context.Context, f *flow) error {
	f.events.Add(observability.StageNavigate, "Opening portal", map[string]any{"url": f.plan.PortalURL})

	navCtx, cancel := context.WithTimeout(ctx, s.netCfg.NavigationTimeout)
	defer cancel()
	if err := f.page.Navigate(navCtx, f.plan.PortalURL); err != nil {
		return fmt.Errorf("navigation to %s failed: %w", f.plan.PortalURL, err)
	}
	if err := f.page.WaitNetworkIdle(ctx, s.netCfg.QuietPeriod, s.netCfg.PostLoadTimeout); err != nil {
		f.logger.Debug("Network did not settle after navigation, proceeding.", zap.Error(err))
	}
	return nil
}

func (s *Sequencer) checkBlock(ctx context.Context, page schemas.Page) (blockdetect.Verdict, error) {
	source, err := page.Snapshot(ctx)
	if err != nil {
		return blockdetect.Verdict{}, fmt.Errorf("failed to snapshot page for challenge check: %w", err)
	}
	doc, err := dom.ParseSnapshot(source)
	if err != nil {
		return blockdetect.Verdict{}, err
	}
	return s.detector.Inspect(doc), nil
}

func (s *Sequencer) fillAll(ctx context.Context, f *flow) error {
	report := make(map[string]schemas.FieldReport)
	for i, field := range f.plan.Payload {
		if i > 0 {
			if err := pause(ctx, s.pacing); err != nil {
				return err
			}
		}
		outcome, err := s.filler.Fill(ctx, f.page, field)
		if err != nil {
			return err
		}
		r := outcome.Report()
		report[field.Name] = r
		f.events.Add(observability.StageFill, "Field "+field.Name, map[string]any{"ok": r.OK, "value": r.Value, "syns": r.Synonyms})
	}
	f.resp.FillReport = report
	return nil
}

// pause waits d after the previous field finished, however long that fill took.
func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Sequencer) submit(ctx context.Context, f *flow) (bool, error) {
	source, err := f.page.Snapshot(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to snapshot page for submit: %w", err)
	}
	doc, err := dom.ParseSnapshot(source)
	if err != nil {
		return false, err
	}

	match, found := s.locator.Find(doc)
	if found {
		if err := f.page.Click(ctx, match.Address.String()); err != nil {
			return false, fmt.Errorf("failed to click submit control %q: %w", match.Text, err)
		}
	}
	data := map[string]any{"clicked": found}
	if found {
		data["control"] = match.Text
	}
	f.events.Add(observability.StageSubmit, "Submit attempt", data)
	return found, nil
}

func (s *Sequencer) harvest(ctx context.Context, f *flow) error {
	shot, err := f.page.Screenshot(ctx)
	if err != nil {
		return fmt.Errorf("failed to capture evidence: %w", err)
	}
	f.resp.Evidence = shot

	artifact := s.harvester.Harvest(ctx, f.page)
	f.resp.Harvested = true
	data := map[string]any{"found": artifact != nil}
	if artifact != nil {
		if artifact.Reference != "" {
			href := artifact.Reference
			f.resp.PDFHref = &href
			data["pdfHref"] = href
		}
		f.resp.InvoicePDF = artifact.Payload
		f.resp.PDFError = artifact.Error
		if artifact.Error != "" {
			data["err"] = artifact.Error
		}
	}
	f.events.Add(observability.StageHarvest, "Document harvest", data)

	return s.identify(ctx, f)
}

// identify records the page title and final URL.
func (s *Sequencer) identify(ctx context.Context, f *flow) error {
	title, err := f.page.Title(ctx)
	if err != nil {
		return fmt.Errorf("failed to read page title: %w", err)
	}
	current, err := f.page.URL(ctx)
	if err != nil {
		return fmt.Errorf("failed to read page url: %w", err)
	}
	f.resp.PageTitle = title
	f.resp.FinalURL = current
	return nil
}

// bestEffortScreenshot captures evidence after a failure. It runs on a
// context detached from the request so an expired deadline does not prevent
// the capture; a failure is logged and swallowed.
func (s *Sequencer) bestEffortScreenshot(ctx context.Context, page schemas.Page, logger *zap.Logger) []byte {
	shotCtx, cancel := s.detached(ctx)
	defer cancel()
	shot, err := page.Screenshot(shotCtx)
	if err != nil {
		logger.Debug("Could not capture error evidence.", zap.Error(err))
		return nil
	}
	return shot
}

// detached derives a context that survives cancellation of ctx, bounded by
// the operation timeout.
func (s *Sequencer) detached(ctx context.Context) (context.Context, context.CancelFunc) {
	base := context.WithoutCancel(ctx)
	if s.netCfg.OperationTimeout <= 0 {
		return context.WithCancel(base)
	}
	return context.WithTimeout(base, s.netCfg.OperationTimeout)
}
