// Package service runs one exercise session: it probes capabilities, drives
// the fixed-rate fusion tick and fans results out to cue sinks and the
// companion telemetry publisher.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/okian/repsense/internal/adapters/mq/queue"
	"github.com/okian/repsense/internal/adapters/mq/worker"
	"github.com/okian/repsense/internal/config"
	"github.com/okian/repsense/internal/domain/calibration"
	"github.com/okian/repsense/internal/domain/capability"
	"github.com/okian/repsense/internal/domain/cue"
	"github.com/okian/repsense/internal/domain/fusion"
	"github.com/okian/repsense/internal/domain/ingest"
	"github.com/okian/repsense/internal/domain/model"
	"github.com/okian/repsense/internal/domain/phase"
	"github.com/okian/repsense/internal/domain/telemetry"
	"github.com/okian/repsense/pkg/logger"
	"github.com/okian/repsense/pkg/metrics"

	"github.com/google/uuid"
)

const (
	defaultPublishTimeout = 20 * time.Millisecond
	latencyWindow         = 512
	dispatchQueueSize     = 32
)

// TickResult is everything one tick produced.
type TickResult struct {
	Frame      ingest.Frame
	Transition ingest.Transition
	State      fusion.BodyState
	Phase      phase.Result
	Cue        *cue.Event
	Latency    time.Duration
}

// Service implements one session at a time. Start and Stop bracket a
// session; Ingest may be called from any goroutine.
type Service struct {
	mu sync.RWMutex

	// Configuration
	cfg            config.Config
	family         phase.Family
	prober         capability.Prober
	sinks          []worker.Sink
	publisher      telemetry.Publisher
	publishTimeout time.Duration
	rules          []cue.Rule
	manual         bool
	now            func() time.Time

	// Pipeline, owned by the tick
	gate       *capability.Gate
	sync       *ingest.Synchronizer
	tracker    *ingest.Tracker
	calibrator *calibration.Calibrator
	engine     *fusion.Engine
	machine    *phase.Machine
	cues       *cue.Engine
	cadence    *telemetry.Cadence
	queue      *queue.InMemoryQueue
	dispatcher *worker.Dispatcher
	dispatchCx context.CancelFunc

	// State
	started   bool
	sessionID string
	startedAt time.Time
	report    capability.Report
	wearable  capability.ReachabilityState
	lastErr   error
	last      fusion.BodyState
	latencies *ingest.Ring[time.Duration]
	counters  counters
	stopCh    chan struct{}
	loopDone  chan struct{}

	logger logger.Logger
}

type counters struct {
	ticks              uint64
	cues               uint64
	cuesDropped        uint64
	invalidTransitions uint64
	drift              uint64
	telemetryPublished uint64
	telemetryErrors    uint64
}

// New constructs a Service. It fails when the configured exercise or rule
// set is invalid.
func New(opts ...Option) (*Service, error) {
	s := &Service{
		cfg:            *config.New(),
		publishTimeout: defaultPublishTimeout,
		now:            time.Now,
		latencies:      ingest.NewRing[time.Duration](latencyWindow),
	}

	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("session")
	}

	prof, err := phase.Lookup(s.cfg.Exercise)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSession, err)
	}
	s.family = prof.Family

	rules := s.rules
	if rules == nil && len(s.cfg.CueRules) > 0 {
		if rules, err = cue.RulesFromConfig(s.cfg.CueRules); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidSession, err)
		}
	}
	if rules == nil {
		rules = cue.DefaultRules(s.family)
	}
	if s.cues, err = cue.NewEngine(rules, cue.WithLogger(s.logger.Named("cue"))); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSession, err)
	}

	s.machine, err = phase.NewMachine(prof,
		phase.WithHysteresis(s.cfg.HysteresisTicks, s.cfg.DegradedHysteresisTicks),
		phase.WithLogger(s.logger.Named("phase")))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSession, err)
	}

	s.gate = capability.NewGate(s.prober, capability.WithLogger(s.logger.Named("capability")))
	s.sync = ingest.NewSynchronizer(
		ingest.WithCapacity(s.cfg.BufferCapacity),
		ingest.WithMaxSkew(s.cfg.MaxSkew()),
		ingest.WithLogger(s.logger.Named("ingest")),
	)
	s.tracker = ingest.NewTracker()
	s.calibrator = calibration.New(
		calibration.WithNeutralFrames(s.cfg.NeutralFrames),
		calibration.WithNeutralMinConfidence(s.cfg.NeutralMinConfidence),
		calibration.WithTimeout(s.cfg.CalibrationTimeout()),
		calibration.WithDriftThreshold(s.cfg.DriftThresholdDeg),
		calibration.WithLogger(s.logger.Named("calibration")),
	)
	s.engine = fusion.NewEngine(
		fusion.WithWeights(s.cfg.CameraWeight, s.cfg.ConsistencyWeight),
		fusion.WithLowConfidence(s.cfg.LowConfidence),
		fusion.WithLogger(s.logger.Named("fusion")),
	)
	s.cadence = telemetry.NewCadence(s.cfg.TelemetryEveryTicks)

	return s, nil
}

// Start probes capabilities, begins calibration and, unless ticks are
// manual, starts the tick loop. Capability problems never fail Start; they
// are reported through Status.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.sessionID = uuid.NewString()
	s.startedAt = s.now()
	s.lastErr = nil
	s.last = fusion.BodyState{}

	s.counters = counters{}
	s.latencies.Clear()

	// Edges observed during earlier sessions carry into this one.
	s.report = s.gate.Probe(ctx, s.wearable.Current())
	s.wearable.Advance(s.report.Wearable)
	s.sync.Restrict(s.report.Sources)
	metrics.UpdateDegradationMode(string(s.report.Mode), model.ModeNames())

	if s.report.Err != nil {
		s.lastErr = s.report.Err
	} else if err := s.calibrator.Begin(ctx, s.report.Sources); err != nil {
		return err
	}

	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(dispatchQueueSize))
	s.dispatcher = worker.NewDispatcher(s.queue, s.sinks, worker.WithLogger(s.logger.Named("dispatcher")))
	dctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.dispatchCx = cancel
	go s.dispatcher.Run(dctx)

	s.started = true
	if !s.manual {
		s.stopCh = make(chan struct{})
		s.loopDone = make(chan struct{})
		go s.run(context.WithoutCancel(ctx), s.stopCh, s.loopDone)
	}

	s.logger.Info(ctx, "session started",
		logger.String("session", s.sessionID),
		logger.String("exercise", string(s.family)),
		logger.String("mode", string(s.report.Mode)),
		logger.String("sources", s.report.Sources.String()),
		logger.Bool("fallback", s.report.FallbackModeEnabled),
	)
	return nil
}

// run ticks at the configured rate until stop is closed.
func (s *Service) run(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.cfg.TickPeriod())
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			if _, err := s.Tick(ctx, now.Sub(s.startedAt)); errors.Is(err, ErrNotStarted) {
				return
			}
		}
	}
}

// Stop ends the session: the tick loop exits, buffered samples and queued
// cues are discarded and every timer resets. No partial state is emitted.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	stop, done := s.stopCh, s.loopDone
	s.stopCh, s.loopDone = nil, nil
	s.mu.Unlock()

	// The loop calls Tick, which takes the lock.
	if stop != nil {
		close(stop)
		<-done
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx := context.Background()
	drained := s.sync.Drain()
	dropped := s.queue.Drain(ctx)
	_ = s.queue.Close()
	if err := s.dispatcher.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "dispatcher shutdown", logger.Error(err))
	}
	s.dispatchCx()

	s.tracker.Reset()
	s.calibrator.Reset()
	s.engine.Reset()
	s.machine.Reset()
	s.cues.Reset()
	s.cadence.Reset()

	s.logger.Info(ctx, "session stopped",
		logger.String("session", s.sessionID),
		logger.Int("drainedSamples", drained),
		logger.Int("droppedCues", dropped),
	)
}

// Ingest buffers one sample. It is safe to call from sensor callbacks.
func (s *Service) Ingest(sample model.SensorSample) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started {
		return ErrNotStarted
	}
	return s.sync.Push(sample)
}

// ObserveWearable records an edge-triggered wearable reachability event.
// A wearable becoming ready mid-session is used from the next session.
func (s *Service) ObserveWearable(ctx context.Context, r capability.Reachability) bool {
	if !s.wearable.Advance(r) {
		return false
	}
	s.logger.Info(ctx, "wearable reachability advanced", logger.String("reachability", r.String()))
	return true
}

// Recalibrate restarts the neutral capture. After a failure it retries with
// the session's sources; once calibrated, the current profile stays active
// until the new capture completes.
func (s *Service) Recalibrate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return ErrNotStarted
	}
	if s.report.Err != nil {
		return s.report.Err
	}
	switch s.calibrator.State() {
	case calibration.StateCalibrated:
		return s.calibrator.Recalibrate(ctx)
	case calibration.StateFailed, calibration.StateIdle:
		s.lastErr = nil
		return s.calibrator.Begin(ctx, s.report.Sources)
	}
	return nil
}

// Tick runs one complete pass for tick time t: align, calibrate, fuse,
// phase, cue and telemetry, in that order.
func (s *Service) Tick(ctx context.Context, t time.Duration) (TickResult, error) {
	start := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return TickResult{}, ErrNotStarted
	}

	var res TickResult
	res.Frame = s.sync.Align(ctx, t)
	res.Transition = s.tracker.Observe(res.Frame.Present)
	if res.Transition.Changed {
		metrics.UpdateDegradationMode(string(res.Transition.Mode), model.ModeNames())
	}
	if res.Transition.Edge != ingest.EdgeNone {
		metrics.RecordUnsupportedEdge(res.Transition.Edge.String())
		s.logger.Warn(ctx, "unsupported mode edge",
			logger.String("edge", res.Transition.Edge.String()),
			logger.String("mode", string(res.Transition.Mode)),
			logger.String("present", res.Frame.Present.String()),
		)
	}

	profile := s.calibrator.Profile()
	res.State = s.engine.Tick(ctx, &res.Frame, profile)
	if err := s.calibrator.Observe(ctx, &res.Frame, res.State.Features); err != nil {
		s.lastErr = err
	}
	if err := s.calibrator.CheckDrift(ctx, res.State.Features); err != nil {
		s.counters.drift++
	}

	current := s.machine.Phase()
	if profile != nil {
		res.Phase = s.machine.Step(ctx, res.State)
		if res.Phase.Invalid != nil {
			s.counters.invalidTransitions++
		}
		current = res.Phase.Phase
		if ev, ok := s.cues.Evaluate(ctx, res.State, current); ok {
			s.counters.cues++
			res.Cue = &ev
			if !s.queue.Enqueue(ctx, ev) {
				s.counters.cuesDropped++
			}
		}
	} else {
		res.Phase = phase.Result{Phase: current, Previous: current, Reps: s.machine.Reps()}
	}

	if s.publisher != nil && s.cadence.Due() {
		s.publish(ctx, telemetry.Build(s.family, res.State, current, s.machine.Reps()))
	}

	s.last = res.State
	s.counters.ticks++
	res.Latency = time.Since(start)
	s.latencies.Push(res.Latency)
	metrics.RecordTick(float64(res.Latency.Microseconds()) / 1000)
	return res, nil
}

func (s *Service) publish(ctx context.Context, p telemetry.Payload) {
	pctx, cancel := context.WithTimeout(ctx, s.publishTimeout)
	defer cancel()
	if err := s.publisher.Publish(pctx, p); err != nil {
		s.counters.telemetryErrors++
		metrics.RecordTelemetryError()
		s.logger.Error(ctx, "telemetry publish failed", logger.Error(err))
		return
	}
	s.counters.telemetryPublished++
	metrics.RecordTelemetryPublished()
}
