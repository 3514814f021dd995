package gpu

import (
	"fmt"

	"vizgpu/core"
	"vizgpu/driver"
	"vizgpu/shader"
)

// PingPongState is the lifecycle of a PingPong executor.
type PingPongState int

const (
	Uninitialized PingPongState = iota
	Primed
	Steady
)

func (s PingPongState) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Primed:
		return "primed"
	case Steady:
		return "steady"
	}
	return "unknown"
}

// Params are uniform values applied before a step, by binding name.
type Params map[string][]float32

// PingPong runs a job whose output feeds its own input, alternating two
// surfaces. With parity 0 the job reads A and writes B; with parity 1 the
// roles are reversed. A surface is never read and written in one draw.
type PingPong struct {
	job   *Job
	input string
	a, b  *Surface

	parity int
	state  PingPongState
	steps  int

	// Clear, if set, clears the write surface before each draw.
	Clear *core.Color

	display      *Job
	displayInput string
	displayOpts  DrawOptions
}

// NewPingPong wraps job, whose sampler input is rebound to the read
// surface on every step. A and B must be distinct surfaces of the same
// size and format.
func NewPingPong(job *Job, input string, a, b *Surface) (*PingPong, error) {
	d, class, ok := job.prog.sig.Lookup(input)
	if !ok {
		return nil, &UnknownBindingError{Name: input}
	}
	if class != shader.ClassSampler {
		return nil, &BindingTypeError{Name: input, Want: "sampler", Got: declString(d)}
	}
	if a == nil || b == nil || a == b {
		return nil, fmt.Errorf("gpu: ping-pong needs two distinct surfaces")
	}
	aw, ah := a.Size()
	bw, bh := b.Size()
	if aw != bw || ah != bh || a.format != b.format {
		return nil, fmt.Errorf("gpu: ping-pong surfaces differ: %s and %s", a, b)
	}
	return &PingPong{job: job, input: input, a: a, b: b}, nil
}

func (pp *PingPong) State() PingPongState { return pp.state }
func (pp *PingPong) Steps() int           { return pp.steps }
func (pp *PingPong) Parity() int          { return pp.parity }
func (pp *PingPong) Job() *Job            { return pp.job }

// Read is the surface the next step reads.
func (pp *PingPong) Read() *Surface {
	if pp.parity == 0 {
		return pp.a
	}
	return pp.b
}

// Write is the surface the next step writes.
func (pp *PingPong) Write() *Surface {
	if pp.parity == 0 {
		return pp.b
	}
	return pp.a
}

// Current is the most recently written surface.
func (pp *PingPong) Current() *Surface { return pp.Read() }

// SetDisplay adds a second draw after every step. The display job's input
// is bound to the surface the step just wrote.
func (pp *PingPong) SetDisplay(job *Job, input string, opts DrawOptions) error {
	if _, class, ok := job.prog.sig.Lookup(input); !ok || class != shader.ClassSampler {
		return &UnknownBindingError{Name: input}
	}
	pp.display, pp.displayInput, pp.displayOpts = job, input, opts
	return nil
}

func (pp *PingPong) checkTargets(s *Session) error {
	if pp.a.format == driver.TextureFormatFloat && !s.Supports(driver.FeatureFloatRenderTargets) {
		return fmt.Errorf("gpu: ping-pong over %s surfaces: %w", pp.a.format, ErrCapabilityUnsupported)
	}
	return nil
}

// Init seeds surface A by drawing the job once with its input bound to B,
// so B's payload is the initial state.
func (pp *PingPong) Init(s *Session) error {
	if err := pp.checkTargets(s); err != nil {
		return err
	}
	if err := pp.job.Rebind(pp.input, pp.b); err != nil {
		return err
	}
	if err := pp.prime(s, pp.job); err != nil {
		return err
	}
	return nil
}

// InitWith seeds surface A with a separate job instead of the wrapped one.
func (pp *PingPong) InitWith(s *Session, seed *Job) error {
	if err := pp.checkTargets(s); err != nil {
		return err
	}
	return pp.prime(s, seed)
}

func (pp *PingPong) prime(s *Session, seed *Job) error {
	for _, obj := range []Uploadable{pp.a, pp.b} {
		if err := s.EnsureUploaded(obj); err != nil {
			return err
		}
	}
	if err := pp.job.Upload(s); err != nil {
		return err
	}
	if seed != pp.job {
		if err := seed.Upload(s); err != nil {
			return err
		}
	}
	if err := seed.Bind(s); err != nil {
		return err
	}
	if err := seed.Draw(s, DrawOptions{Target: pp.a, Clear: pp.Clear}); err != nil {
		return fmt.Errorf("gpu: ping-pong init: %w", err)
	}
	pp.parity = 0
	pp.state = Primed
	Logger().Debug("ping-pong primed", "job", pp.job.String(), "surface", pp.a.String())
	return nil
}

// Step applies params, draws the job from the read surface into the write
// surface and swaps them. A failed draw leaves the executor unchanged.
func (pp *PingPong) Step(s *Session, params Params) error {
	if pp.state == Uninitialized {
		return ErrNotPrimed
	}
	for name, values := range params {
		if err := pp.job.UpdateUniform(s, name, values...); err != nil {
			return err
		}
	}
	read, write := pp.Read(), pp.Write()
	if err := pp.job.Rebind(pp.input, read); err != nil {
		return err
	}
	if err := pp.job.Bind(s); err != nil {
		return err
	}
	if err := pp.job.Draw(s, DrawOptions{Target: write, Clear: pp.Clear}); err != nil {
		return fmt.Errorf("gpu: ping-pong step %d: %w", pp.steps+1, err)
	}
	pp.parity ^= 1
	pp.steps++
	pp.state = Steady

	if pp.display != nil {
		if err := pp.drawDisplay(s, write); err != nil {
			return err
		}
	}
	return nil
}

func (pp *PingPong) drawDisplay(s *Session, src *Surface) error {
	if err := pp.display.Rebind(pp.displayInput, src); err != nil {
		return err
	}
	if err := pp.display.Upload(s); err != nil {
		return err
	}
	if err := pp.display.Bind(s); err != nil {
		return err
	}
	if err := pp.display.Draw(s, pp.displayOpts); err != nil {
		return fmt.Errorf("gpu: ping-pong display: %w", err)
	}
	return nil
}
