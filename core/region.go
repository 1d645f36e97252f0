package core

import "image"

type regionOp struct {
	add  bool
	rect image.Rectangle
}

// Region is an area built from a sequence of rectangle additions and
// subtractions, in the manner of wl_region. Later operations override
// earlier ones, so membership is decided by the last operation whose
// rectangle contains the point.
type Region struct {
	ops []regionOp
}

func (r *Region) Add(rect image.Rectangle) {
	r.ops = append(r.ops, regionOp{add: true, rect: rect})
}

func (r *Region) Subtract(rect image.Rectangle) {
	r.ops = append(r.ops, regionOp{add: false, rect: rect})
}

func (r *Region) Contains(p image.Point) bool {
	in := false
	for _, op := range r.ops {
		if p.In(op.rect) {
			in = op.add
		}
	}
	return in
}

func (r *Region) Empty() bool {
	for _, op := range r.ops {
		if op.add && !op.rect.Empty() {
			return false
		}
	}
	return true
}

func (r *Region) Clone() *Region {
	if r == nil {
		return nil
	}
	ops := make([]regionOp, len(r.ops))
	copy(ops, r.ops)
	return &Region{ops: ops}
}
