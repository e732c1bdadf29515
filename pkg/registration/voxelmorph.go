// Package registration composes a feature-extraction network, a
// stationary-velocity-field exponentiation stage and a grid-sampling warp
// into a VoxelMorph-style deformable registration forward pass. The network
// itself is an external collaborator behind the FeatureNetwork interface;
// this package owns the choreography: shape validation, velocity
// extraction, multi-resolution exponentiation, warping, and propagation of
// segmentation maps through the same deformation.
package registration

import (
	"fmt"
	"math"

	"voxelreg/pkg/spatial"
	"voxelreg/pkg/tensor"
)

// FeatureNetwork maps the channel-concatenated source and target images
// (batch, 2*channel, *spatial) to a raw velocity field
// (batch, dim, *spatial).
type FeatureNetwork interface {
	Velocity(sourceAndTarget *tensor.Dense) (*tensor.Dense, error)
}

// Board receives named intermediate tensors for visualization. Calls are
// fire-and-forget: implementations must not fail the forward pass, and a
// nil board disables emission entirely.
type Board interface {
	Observe(tag string, t *tensor.Dense)
}

// Options configures a registration pipeline.
type Options struct {
	// Dim is the spatial dimensionality of the inputs (1, 2 or 3).
	Dim int
	// Downsample is the per-axis factor between the native lattice and
	// the velocity integration lattice; a single value broadcasts.
	// Defaults to 2 on every axis.
	Downsample []float64
	// Exp integrates the velocity; defaults to scaling-and-squaring.
	Exp spatial.Exponentiator
	// ResizeInterp and ResizeBound control velocity/grid resizing.
	ResizeInterp spatial.Interp
	ResizeBound  spatial.Bound
	// Pull controls the image warp.
	Pull spatial.PullOptions
	// Board optionally receives intermediate tensors.
	Board Board
}

// Result carries the outputs of one forward pass. DeformedSourceSeg is nil
// when no source segmentation was supplied. Velocity is returned in
// (batch, *spatial, dim) layout for downstream loss computation.
type Result struct {
	DeformedSource    *tensor.Dense
	DeformedSourceSeg *tensor.Dense
	Velocity          *tensor.Dense
}

// Pipeline is the registration orchestrator. It holds no per-call state;
// every forward pass is independent.
type Pipeline struct {
	dim        int
	net        FeatureNetwork
	downsample []float64
	exp        spatial.Exponentiator
	rsInterp   spatial.Interp
	rsBound    spatial.Bound
	pull       spatial.PullOptions
	board      Board
}

// New builds a pipeline around the given feature network.
func New(net FeatureNetwork, opts Options) (*Pipeline, error) {
	if net == nil {
		return nil, fmt.Errorf("registration: feature network must not be nil")
	}
	if opts.Dim < 1 || opts.Dim > 3 {
		return nil, fmt.Errorf("registration: dimensionality must be 1, 2 or 3, got %d", opts.Dim)
	}
	down := opts.Downsample
	switch len(down) {
	case 0:
		down = make([]float64, opts.Dim)
		for i := range down {
			down[i] = 2
		}
	case 1:
		v := down[0]
		down = make([]float64, opts.Dim)
		for i := range down {
			down[i] = v
		}
	case opts.Dim:
		down = append([]float64(nil), down...)
	default:
		return nil, fmt.Errorf("registration: downsample length %d is neither 1 nor %d", len(down), opts.Dim)
	}
	for _, f := range down {
		if f < 1 {
			return nil, fmt.Errorf("registration: downsample factors must be >= 1, got %v", down)
		}
	}
	exp := opts.Exp
	if exp == nil {
		ss := spatial.DefaultScalingSquaring()
		exp = ss
	}
	return &Pipeline{
		dim:        opts.Dim,
		net:        net,
		downsample: down,
		exp:        exp,
		rsInterp:   opts.ResizeInterp,
		rsBound:    opts.ResizeBound,
		pull:       opts.Pull,
		board:      opts.Board,
	}, nil
}

// Exp exponentiates a (batch, *spatial, dim) velocity field at the
// integration resolution and resamples the result back to the native
// lattice: a transformation grid, or a displacement field when requested.
func (p *Pipeline) Exp(velocity *tensor.Dense, displacement bool) (*tensor.Dense, error) {
	shape := velocity.Shape()
	if len(shape) != p.dim+2 || shape[len(shape)-1] != p.dim {
		return nil, fmt.Errorf("%w: velocity must be (batch, %d spatial dims, %d), got shape %v",
			ErrShapeMismatch, p.dim, p.dim, shape)
	}
	native := shape[1 : len(shape)-1]
	small := make([]int, p.dim)
	for i := range small {
		small[i] = int(math.Round(float64(native[i]) / p.downsample[i]))
		if small[i] < 1 {
			small[i] = 1
		}
	}

	velSmall, err := spatial.Resize(velocity, small, spatial.KindDisplacement, p.rsInterp, p.rsBound)
	if err != nil {
		return nil, err
	}
	grid, err := p.exp.Exponentiate(velSmall, displacement)
	if err != nil {
		return nil, err
	}
	kind := spatial.KindGrid
	if displacement {
		kind = spatial.KindDisplacement
	}
	return spatial.Resize(grid, native, kind, p.rsInterp, p.rsBound)
}

// Forward registers source to target. Segmentation maps are optional; when
// a source segmentation is present it is carried through the same
// deformation, with the grid resized if the segmentation lives at a
// different resolution.
func (p *Pipeline) Forward(source, target, sourceSeg, targetSeg *tensor.Dense) (*Result, error) {
	if source == nil || target == nil {
		return nil, fmt.Errorf("%w: source and target are required", ErrShapeMismatch)
	}
	if err := checkPair("image", p.dim, source, target); err != nil {
		return nil, err
	}
	if sourceSeg != nil && targetSeg != nil {
		if err := checkPair("segmentation", p.dim, sourceSeg, targetSeg); err != nil {
			return nil, err
		}
	}

	batch := source.Shape()[0]
	if b := target.Shape()[0]; b > batch {
		batch = b
	}
	src := expandBatch(source, batch)
	tgt := expandBatch(target, batch)

	cat, err := tensor.ConcatChannel(src, tgt)
	if err != nil {
		return nil, err
	}
	rawVel, err := p.net.Velocity(cat)
	if err != nil {
		return nil, fmt.Errorf("registration: feature network: %w", err)
	}
	wantVel := append([]int{batch, p.dim}, src.Shape()[2:]...)
	if !tensor.SameShape(rawVel.Shape(), wantVel) {
		return nil, fmt.Errorf("%w: feature network returned shape %v, want %v",
			ErrShapeMismatch, rawVel.Shape(), wantVel)
	}
	velocity := tensor.ChannelLast(rawVel)

	grid, err := p.Exp(velocity, false)
	if err != nil {
		return nil, err
	}
	deformed, err := spatial.Pull(src, grid, p.pull)
	if err != nil {
		return nil, err
	}

	var deformedSeg *tensor.Dense
	if sourceSeg != nil {
		segGrid := grid
		if !tensor.SameShape(sourceSeg.Shape()[2:], src.Shape()[2:]) {
			if segGrid, err = spatial.Resize(grid, sourceSeg.Shape()[2:], spatial.KindGrid, p.rsInterp, p.rsBound); err != nil {
				return nil, err
			}
		}
		seg := expandBatch(sourceSeg, batch)
		if deformedSeg, err = spatial.Pull(seg, segGrid, p.pull); err != nil {
			return nil, err
		}
	}

	if p.board != nil {
		p.board.Observe("velocity", velocity)
		p.board.Observe("grid", grid)
		p.board.Observe("deformed_source", deformed)
	}
	return &Result{
		DeformedSource:    deformed,
		DeformedSourceSeg: deformedSeg,
		Velocity:          velocity,
	}, nil
}
