package rollback

import (
	"github.com/yndnr/goudanet-go/internal/core/domain"
)

// queueLength is the number of frames an input queue retains. It must cover
// the furthest a peer can lag behind our acknowledgements: twice the largest
// prediction window plus the largest input delay, with slack.
const queueLength = 128

// inputQueue holds one handle's inputs and what the scheduler used for each
// simulated frame.
type inputQueue struct {
	handle domain.Handle
	local  bool

	real   [queueLength]domain.PlayerInput
	frames [queueLength]domain.Frame

	used       [queueLength]domain.PlayerInput
	usedFrames [queueLength]domain.Frame
	predicted  [queueLength]bool

	// last is the newest frame with a real input. Real inputs arrive in
	// strictly increasing order, so every frame up to last is known.
	last domain.Frame

	// firstIncorrect is the earliest frame whose prediction was wrong.
	firstIncorrect domain.Frame

	// frozen marks a disconnected participant: its input holds the last
	// real value forever and counts as confirmed.
	frozen bool
}

func newInputQueue(h domain.Handle, local bool) *inputQueue {
	q := &inputQueue{
		handle:         h,
		local:          local,
		last:           domain.NullFrame,
		firstIncorrect: domain.NullFrame,
	}
	for i := range q.frames {
		q.frames[i] = domain.NullFrame
		q.usedFrames[i] = domain.NullFrame
	}
	return q
}

func slot(f domain.Frame) int {
	return int(uint32(f) % queueLength)
}

// add stores the real input for f. Only f == last+1 is accepted; anything
// older is a duplicate and anything newer arrived out of order.
func (q *inputQueue) add(f domain.Frame, in domain.PlayerInput) bool {
	if f != q.last+1 || q.frozen {
		return false
	}
	i := slot(f)
	q.real[i] = in
	q.frames[i] = f
	q.last = f

	if q.usedFrames[i] == f && q.predicted[i] {
		if q.used[i] != in {
			if q.firstIncorrect == domain.NullFrame || f < q.firstIncorrect {
				q.firstIncorrect = f
			}
		} else {
			q.predicted[i] = false
		}
	}
	return true
}

// input returns the input to simulate f with, recording it as used. The
// bool reports whether the input is a prediction.
func (q *inputQueue) input(f domain.Frame) (domain.PlayerInput, bool) {
	var in domain.PlayerInput
	predicted := false
	if f <= q.last {
		in = q.real[slot(f)]
	} else {
		in = q.lastReal()
		predicted = !q.frozen
	}
	i := slot(f)
	q.used[i] = in
	q.usedFrames[i] = f
	q.predicted[i] = predicted
	return in, predicted
}

// lastReal is the prediction source: the newest real input, or the zero
// input before any has arrived.
func (q *inputQueue) lastReal() domain.PlayerInput {
	if q.last == domain.NullFrame {
		return domain.PlayerInput{}
	}
	return q.real[slot(q.last)]
}

// realAt returns the stored real input for f if it is still retained.
func (q *inputQueue) realAt(f domain.Frame) (domain.PlayerInput, bool) {
	if f < 0 || f > q.last {
		return domain.PlayerInput{}, false
	}
	i := slot(f)
	if q.frames[i] != f {
		return domain.PlayerInput{}, false
	}
	return q.real[i], true
}

// confirmedThrough is the newest frame whose input is final.
func (q *inputQueue) confirmedThrough() domain.Frame {
	if q.frozen {
		return maxFrame
	}
	return q.last
}

func (q *inputQueue) resetIncorrect() {
	q.firstIncorrect = domain.NullFrame
}
