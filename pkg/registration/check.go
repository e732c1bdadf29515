package registration

import (
	"errors"
	"fmt"

	"voxelreg/pkg/tensor"
)

// ErrShapeMismatch is wrapped by every input-contract violation reported by
// the pipeline, so callers can test with errors.Is.
var ErrShapeMismatch = errors.New("shape mismatch")

// checkPair validates a source/target pair before any numeric work: equal
// rank, equal spatial extents, and compatible batch sizes (equal, or a
// broadcastable batch of 1 on the target side).
func checkPair(name string, dim int, source, target *tensor.Dense) error {
	for _, t := range []*tensor.Dense{source, target} {
		if t.Dims() != dim+2 {
			return fmt.Errorf("%w: %s tensors must be (batch, channel, %d spatial dims), got shape %v",
				ErrShapeMismatch, name, dim, t.Shape())
		}
	}
	sb, tb := source.Shape()[0], target.Shape()[0]
	if sb != tb && tb != 1 && sb != 1 {
		return fmt.Errorf("%w: %s batch sizes %d and %d are not broadcast-compatible",
			ErrShapeMismatch, name, sb, tb)
	}
	if !tensor.SameShape(source.Shape()[2:], target.Shape()[2:]) {
		return fmt.Errorf("%w: %s spatial shapes %v and %v differ",
			ErrShapeMismatch, name, source.Shape()[2:], target.Shape()[2:])
	}
	return nil
}

// expandBatch repeats a batch-1 tensor to the requested batch size;
// tensors already at the target size pass through.
func expandBatch(t *tensor.Dense, batch int) *tensor.Dense {
	if t.Shape()[0] == batch {
		return t
	}
	shape := append([]int(nil), t.Shape()...)
	shape[0] = batch
	out := tensor.New(shape...)
	n := t.Len()
	for b := 0; b < batch; b++ {
		copy(out.Data()[b*n:(b+1)*n], t.Data())
	}
	return out
}
