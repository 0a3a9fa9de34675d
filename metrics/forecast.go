package metrics

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/sciforecast/pkg/errors"
	"github.com/YuminosukeSato/sciforecast/timeseries"
)

// AlignFrames pairs the cells of yTrue and yPred that share an index entry and column name and
// are observed (not NaN) in both. It fails when nothing overlaps.
func AlignFrames(yTrue, yPred *timeseries.Frame) (truth, pred *mat.VecDense, err error) {
	rows := make(map[string]int, yPred.Len())
	for i, idx := range yPred.Index() {
		rows[idx.String()+"\x00"+idx.Instance()] = i
	}
	predCols := yPred.Columns()
	var t, p []float64
	for j, name := range yTrue.Columns() {
		pj := -1
		for k, c := range predCols {
			if c == name {
				pj = k
				break
			}
		}
		if pj < 0 {
			continue
		}
		for i, idx := range yTrue.Index() {
			pi, ok := rows[idx.String()+"\x00"+idx.Instance()]
			if !ok {
				continue
			}
			tv, pv := yTrue.At(i, j), yPred.At(pi, pj)
			if math.IsNaN(tv) || math.IsNaN(pv) {
				continue
			}
			t = append(t, tv)
			p = append(p, pv)
		}
	}
	if len(t) == 0 {
		return nil, nil, errors.NewValueError("AlignFrames", "no overlapping observations between truth and prediction")
	}
	return mat.NewVecDense(len(t), t), mat.NewVecDense(len(p), p), nil
}

// FrameMAPE is MAPE over the aligned cells of two frames.
func FrameMAPE(yTrue, yPred *timeseries.Frame) (float64, error) {
	t, p, err := AlignFrames(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return MAPE(t, p)
}

// FrameMAE is MAE over the aligned cells of two frames.
func FrameMAE(yTrue, yPred *timeseries.Frame) (float64, error) {
	t, p, err := AlignFrames(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return MAE(t, p)
}
