package scenario

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"multilateration-sim/internal/common"
)

// Project maps object positions onto the plane spanned by their two leading
// principal components, centred on the mean position. Positions with two
// or fewer components are zero-padded to 2-D instead.
func Project(objects []Object) (map[string]common.Vector, error) {
	projected := make(map[string]common.Vector, len(objects))
	if len(objects) == 0 {
		return projected, nil
	}

	dim := objects[0].GetPosition().Dimension()
	for _, obj := range objects[1:] {
		if d := obj.GetPosition().Dimension(); d != dim {
			return nil, fmt.Errorf("object %s: dimension %d, want %d", obj.GetID(), d, dim)
		}
	}

	if dim <= 2 {
		for _, obj := range objects {
			projected[obj.GetID()] = obj.GetPosition().Resize(2)
		}
		return projected, nil
	}
	if len(objects) == 1 {
		projected[objects[0].GetID()] = common.NewVector(2)
		return projected, nil
	}

	data := mat.NewDense(len(objects), dim, nil)
	for i, obj := range objects {
		data.SetRow(i, obj.GetPosition())
	}
	for j := range dim {
		col := mat.Col(nil, j, data)
		mean := stat.Mean(col, nil)
		for i := range col {
			data.Set(i, j, col[i]-mean)
		}
	}

	var pc stat.PC
	if !pc.PrincipalComponents(data, nil) {
		return nil, errors.New("principal component analysis failed")
	}
	var vecs mat.Dense
	pc.VectorsTo(&vecs)
	_, k := vecs.Dims()
	k = min(k, 2)

	var reduced mat.Dense
	reduced.Mul(data, vecs.Slice(0, dim, 0, k))
	for i, obj := range objects {
		pos := common.NewVector(2)
		for j := range k {
			pos[j] = reduced.At(i, j)
		}
		projected[obj.GetID()] = pos
	}
	return projected, nil
}
