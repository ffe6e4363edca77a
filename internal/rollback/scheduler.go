package rollback

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/yndnr/goudanet-go/internal/core/domain"
	"github.com/yndnr/goudanet-go/internal/rollback/state"
	"github.com/yndnr/goudanet-go/internal/telemetry/metric"
)

const maxFrame = domain.Frame(math.MaxInt32)

// Game is the deterministic simulation driven by the scheduler.
// *state.Store implements it.
type Game interface {
	Snapshot() state.Snapshot
	Restore(state.Snapshot) error
	Advance(frame domain.Frame, inputs []domain.PlayerInput) error
	Checksum() uint64
}

// Config configures a Scheduler.
type Config struct {
	// Handles is the number of participants; handles are [0, Handles).
	Handles int

	// LocalHandles are the participants whose input is added locally.
	LocalHandles []domain.Handle

	// MaxPrediction is the number of unconfirmed frames allowed.
	MaxPrediction int

	// InputDelay postpones local input by this many frames.
	InputDelay int

	// ChecksumInterval spaces desync checkpoints; 0 disables detection.
	ChecksumInterval int

	// OnConfirmed is called once per frame, in frame order, when the frame
	// becomes confirmed.
	OnConfirmed func(ConfirmedFrame)

	Logger  *slog.Logger
	Metrics *metric.Registry
}

// ConfigFromDescriptor derives the scheduler settings of a session.
func ConfigFromDescriptor(d domain.SessionDescriptor) Config {
	return Config{
		Handles:          len(d.Participants),
		LocalHandles:     d.LocalHandles(),
		MaxPrediction:    d.MaxPrediction,
		InputDelay:       d.InputDelay,
		ChecksumInterval: d.ChecksumInterval,
	}
}

// ConfirmedFrame describes a frame whose inputs are final.
type ConfirmedFrame struct {
	Frame  domain.Frame
	Inputs []domain.PlayerInput
	// Checksum is the state checksum after the frame.
	Checksum uint64
}

// StepResult reports what one AdvanceFrame did.
type StepResult struct {
	// Frame is the frame simulated for the first time.
	Frame domain.Frame

	// RolledBack is set when mispredicted frames were re-simulated first.
	RolledBack bool
	// RollbackFrom is the first re-simulated frame.
	RollbackFrom domain.Frame
	// Replayed is the number of re-simulated frames.
	Replayed int

	// Predicted counts the predicted inputs Frame was simulated with.
	Predicted int

	// Confirmed is the newest confirmed frame after the step.
	Confirmed domain.Frame
}

// FrameState is the lifecycle state of a frame.
type FrameState int

const (
	Pending FrameState = iota
	Predicted
	Confirmed
	Discarded
)

func (s FrameState) String() string {
	switch s {
	case Pending:
		return "pending"
	case Predicted:
		return "predicted"
	case Confirmed:
		return "confirmed"
	case Discarded:
		return "discarded"
	default:
		return fmt.Sprintf("FrameState(%d)", int(s))
	}
}

// Scheduler predicts, advances and corrects a Game.
type Scheduler struct {
	cfg     Config
	game    Game
	logger  *slog.Logger
	metrics *metric.Registry

	queues []*inputQueue
	locals []domain.Handle
	ring   *snapshotRing
	desync *desyncDetector

	current   domain.Frame // next frame to simulate for the first time
	confirmed domain.Frame
	released  domain.Frame

	inputs []domain.PlayerInput
	fatal  error
}

// New creates a scheduler for a Game that has not been advanced yet.
func New(game Game, cfg Config) (*Scheduler, error) {
	if cfg.Handles <= 0 || cfg.Handles > domain.MaxParticipants {
		return nil, domain.ErrInvalidSessionConfig.WithDetailsf("%d handles", cfg.Handles)
	}
	if cfg.MaxPrediction < 0 || cfg.MaxPrediction > domain.MaxPredictionLimit {
		return nil, domain.ErrInvalidSessionConfig.WithDetailsf("max prediction %d", cfg.MaxPrediction)
	}
	if cfg.InputDelay < 0 || cfg.InputDelay > domain.MaxInputDelay {
		return nil, domain.ErrInvalidSessionConfig.WithDetailsf("input delay %d", cfg.InputDelay)
	}
	if len(cfg.LocalHandles) == 0 {
		return nil, domain.ErrNoLocalParticipant
	}

	s := &Scheduler{
		cfg:       cfg,
		game:      game,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
		queues:    make([]*inputQueue, cfg.Handles),
		ring:      newSnapshotRing(cfg.MaxPrediction + 2),
		desync:    newDesyncDetector(cfg.ChecksumInterval),
		confirmed: domain.NullFrame,
		released:  domain.NullFrame,
		inputs:    make([]domain.PlayerInput, cfg.Handles),
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	local := make([]bool, cfg.Handles)
	for _, h := range cfg.LocalHandles {
		if int(h) >= cfg.Handles {
			return nil, domain.ErrInvalidHandle.WithDetailsf("local handle %d of %d", h, cfg.Handles)
		}
		if local[h] {
			return nil, domain.ErrDuplicateHandle.WithDetailsf("local handle %d", h)
		}
		local[h] = true
		s.locals = append(s.locals, h)
	}
	for h := range s.queues {
		s.queues[h] = newInputQueue(domain.Handle(h), local[h])
	}

	// Frames before the delay has elapsed run on neutral local input.
	for _, h := range s.locals {
		for f := 0; f < cfg.InputDelay; f++ {
			s.queues[h].add(domain.Frame(f), domain.PlayerInput{})
		}
	}
	return s, nil
}

// CurrentFrame returns the next frame to be simulated for the first time.
func (s *Scheduler) CurrentFrame() domain.Frame {
	return s.current
}

// ConfirmedFrame returns the newest confirmed frame, or NullFrame.
func (s *Scheduler) ConfirmedFrame() domain.Frame {
	return s.confirmed
}

// LastReceived returns the newest frame with a real input for h.
func (s *Scheduler) LastReceived(h domain.Handle) domain.Frame {
	if int(h) >= len(s.queues) {
		return domain.NullFrame
	}
	return s.queues[h].last
}

// FrameState returns the lifecycle state of f.
func (s *Scheduler) FrameState(f domain.Frame) FrameState {
	switch {
	case f >= s.current:
		return Pending
	case f > s.confirmed:
		return Predicted
	case f <= s.released:
		return Discarded
	default:
		return Confirmed
	}
}

// FrameAdvantage returns how far this peer runs ahead of the slowest
// remote input it has received.
func (s *Scheduler) FrameAdvantage() int {
	slowest := s.current - 1
	for _, q := range s.queues {
		if !q.local && !q.frozen && q.last < slowest {
			slowest = q.last
		}
	}
	return int(s.current - 1 - slowest)
}

// Status returns a metrics view of the scheduler.
func (s *Scheduler) Status() metric.Status {
	return metric.Status{
		CurrentFrame:   int32(s.current),
		ConfirmedFrame: int32(s.confirmed),
		FrameAdvantage: int32(s.FrameAdvantage()),
	}
}

// Err returns the fatal error that stopped the scheduler, if any.
func (s *Scheduler) Err() error {
	return s.fatal
}

// AddLocalInput adds the input of local handle h for the current frame
// plus the input delay.
func (s *Scheduler) AddLocalInput(h domain.Handle, in domain.PlayerInput) error {
	q, err := s.queue(h, true)
	if err != nil {
		return err
	}
	f := s.current + domain.Frame(s.cfg.InputDelay)
	if q.last >= f {
		return domain.ErrInputAlreadyAdded.WithDetailsf("handle %d frame %d", h, f)
	}
	if !q.add(f, in) {
		return domain.ErrMissingLocalInput.WithDetailsf("handle %d: frame %d after %d", h, f, q.last)
	}
	return nil
}

// AddRemoteInput adds the real input of remote handle h for frame f. It
// reports false when the input was ignored as a duplicate, stale or out of
// order.
func (s *Scheduler) AddRemoteInput(h domain.Handle, f domain.Frame, in domain.PlayerInput) (bool, error) {
	q, err := s.queue(h, false)
	if err != nil {
		return false, err
	}
	if f < 0 || f >= s.confirmed+queueLength {
		s.metrics.RecordInput("out_of_window")
		return false, nil
	}
	if !q.add(f, in) {
		s.metrics.RecordInput("stale")
		return false, nil
	}
	s.metrics.RecordInput("accepted")
	return true, nil
}

// AddRemoteChecksum checks a peer's checksum report. A mismatch is fatal.
func (s *Scheduler) AddRemoteChecksum(h domain.Handle, f domain.Frame, checksum uint64) error {
	if _, err := s.queue(h, false); err != nil {
		return err
	}
	if err := s.desync.remote(h, f, checksum); err != nil {
		s.fail(err)
		return err
	}
	return nil
}

// LatestChecksum returns the newest local checkpoint for sending to peers.
func (s *Scheduler) LatestChecksum() (ChecksumReport, bool) {
	return s.desync.report()
}

// LocalInputs returns up to max real inputs of local handle h starting at
// frame from.
func (s *Scheduler) LocalInputs(h domain.Handle, from domain.Frame, max int) []domain.FramedInput {
	q, err := s.queue(h, true)
	if err != nil {
		return nil
	}
	if from < 0 {
		from = 0
	}
	var out []domain.FramedInput
	for f := from; f <= q.last && len(out) < max; f++ {
		in, ok := q.realAt(f)
		if !ok {
			s.logger.Warn("local input no longer retained",
				"handle", h,
				"frame", f,
			)
			break
		}
		out = append(out, domain.FramedInput{Frame: f, Input: in})
	}
	return out
}

// Disconnect freezes remote handle h at its last real input. The frozen
// input counts as confirmed from then on, so the session keeps advancing.
func (s *Scheduler) Disconnect(h domain.Handle) error {
	q, err := s.queue(h, false)
	if err != nil {
		return err
	}
	if !q.frozen {
		q.frozen = true
		s.logger.Warn("participant input frozen",
			"handle", h,
			"last_frame", q.last,
		)
	}
	return nil
}

// CanAdvance reports whether AdvanceFrame would stay inside the prediction
// window. It is meant to be checked before collecting local input.
func (s *Scheduler) CanAdvance() bool {
	if s.fatal != nil {
		return false
	}
	through := s.current
	for _, q := range s.queues {
		if q.local {
			continue
		}
		if c := q.confirmedThrough(); c < through {
			through = c
		}
	}
	return int(s.current-through) <= s.cfg.MaxPrediction
}

// AdvanceFrame corrects any mispredicted frames, then simulates the
// current frame and moves to the next one.
func (s *Scheduler) AdvanceFrame() (StepResult, error) {
	if s.fatal != nil {
		return StepResult{}, s.fatal
	}
	for _, h := range s.locals {
		if s.queues[h].last < s.current {
			return StepResult{}, domain.ErrMissingLocalInput.WithDetailsf("handle %d frame %d", h, s.current)
		}
	}
	if !s.CanAdvance() {
		s.metrics.IncStall()
		return StepResult{}, domain.ErrPredictionThreshold.WithDetailsf("frame %d, confirmed %d", s.current, s.confirmed)
	}

	res := StepResult{Frame: s.current, RollbackFrom: domain.NullFrame}
	if target := s.firstIncorrect(); target != domain.NullFrame {
		replayed, err := s.rollbackTo(target)
		if err != nil {
			s.fail(err)
			return res, err
		}
		res.RolledBack = true
		res.RollbackFrom = target
		res.Replayed = replayed
	}

	predicted, err := s.simulate(s.current)
	if err != nil {
		s.fail(err)
		return res, err
	}
	res.Predicted = predicted
	s.current++
	s.metrics.ObserveAdvance()
	s.metrics.AddPredicted(predicted)

	if err := s.updateConfirmed(); err != nil {
		s.fail(err)
		return res, err
	}
	s.releaseSnapshots()
	res.Confirmed = s.confirmed
	return res, nil
}

func (s *Scheduler) queue(h domain.Handle, local bool) (*inputQueue, error) {
	if int(h) >= len(s.queues) {
		return nil, domain.ErrInvalidHandle.WithDetailsf("handle %d of %d", h, len(s.queues))
	}
	q := s.queues[h]
	if q.local != local {
		kind := "remote"
		if local {
			kind = "local"
		}
		return nil, domain.ErrInvalidHandle.WithDetailsf("handle %d is not %s", h, kind)
	}
	return q, nil
}

func (s *Scheduler) firstIncorrect() domain.Frame {
	first := domain.NullFrame
	for _, q := range s.queues {
		if f := q.firstIncorrect; f != domain.NullFrame && (first == domain.NullFrame || f < first) {
			first = f
		}
	}
	return first
}

// rollbackTo restores the snapshot taken at the start of target and
// re-simulates every frame up to the current one.
func (s *Scheduler) rollbackTo(target domain.Frame) (int, error) {
	saved, ok := s.ring.at(target)
	if !ok {
		return 0, domain.ErrSnapshotMissing.WithDetailsf("frame %d, current %d", target, s.current)
	}
	if err := s.game.Restore(saved.snap); err != nil {
		return 0, fmt.Errorf("restore frame %d: %w", target, err)
	}
	for _, q := range s.queues {
		q.resetIncorrect()
	}

	replayed := 0
	for f := target; f < s.current; f++ {
		if _, err := s.simulate(f); err != nil {
			return replayed, err
		}
		replayed++
	}

	s.metrics.ObserveRollback(replayed)
	s.logger.Debug("rolled back",
		"from", target,
		"to", s.current,
		"frames", replayed,
	)
	return replayed, nil
}

// simulate saves the snapshot for f and advances the game through f.
func (s *Scheduler) simulate(f domain.Frame) (int, error) {
	if !s.ring.save(f, s.game.Snapshot(), s.game.Checksum()) {
		return 0, fmt.Errorf("rollback: snapshot slot for frame %d still retained", f)
	}
	predicted := 0
	for h, q := range s.queues {
		in, p := q.input(f)
		s.inputs[h] = in
		if p {
			predicted++
		}
	}
	if err := s.game.Advance(f, s.inputs); err != nil {
		return predicted, fmt.Errorf("advance frame %d: %w", f, err)
	}
	return predicted, nil
}

func (s *Scheduler) updateConfirmed() error {
	through := s.current - 1
	for _, q := range s.queues {
		if c := q.confirmedThrough(); c < through {
			through = c
		}
	}

	for f := s.confirmed + 1; f <= through; f++ {
		checksum, err := s.checksumAfter(f)
		if err != nil {
			return err
		}
		if s.cfg.OnConfirmed != nil {
			inputs := make([]domain.PlayerInput, len(s.queues))
			for h, q := range s.queues {
				in, ok := q.realAt(f)
				if !ok {
					in = q.lastReal()
				}
				inputs[h] = in
			}
			s.cfg.OnConfirmed(ConfirmedFrame{Frame: f, Inputs: inputs, Checksum: checksum})
		}
		s.confirmed = f
		if err := s.desync.confirm(f, checksum); err != nil {
			return err
		}
	}
	s.metrics.SetConfirmedFrame(int32(s.confirmed))
	return nil
}

// checksumAfter returns the checksum of the state at the end of f, which
// is the state at the start of f+1.
func (s *Scheduler) checksumAfter(f domain.Frame) (uint64, error) {
	if f+1 == s.current {
		return s.game.Checksum(), nil
	}
	saved, ok := s.ring.at(f + 1)
	if !ok {
		return 0, domain.ErrSnapshotMissing.WithDetailsf("checksum after frame %d", f)
	}
	return saved.checksum, nil
}

// releaseSnapshots drops snapshots of frames that are confirmed and
// outside the prediction window.
func (s *Scheduler) releaseSnapshots() {
	through := s.current - domain.Frame(s.cfg.MaxPrediction) - 1
	if s.confirmed < through {
		through = s.confirmed
	}
	if through > s.released {
		s.ring.release(through)
		s.released = through
	}
}

func (s *Scheduler) fail(err error) {
	if s.fatal != nil {
		return
	}
	s.fatal = err
	if domain.IsDomainError(err, domain.ErrDesync.Code) {
		s.metrics.IncDesync()
		s.logger.Error("desync detected",
			"error", err,
			"frame", s.current,
		)
		return
	}
	s.logger.Error("scheduler stopped",
		"error", err,
		"frame", s.current,
	)
}
