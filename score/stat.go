package score

import (
	"io"
	"log"
	"math"
	"sort"

	"github.com/kshedden/statmodel/glm"
	"github.com/kshedden/statmodel/statmodel"
	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"
)

var glmConfig = &glm.Config{
	Family:    glm.NewFamily(glm.BinomialFamily),
	FitMethod: "IRLS",
	Log:       log.New(io.Discard, "", 0),
}

// usable reports whether a prediction can be scored at all.
func usable(pred, y []float64) bool {
	if len(pred) != len(y) || len(pred) < 3 {
		return false
	}
	for _, v := range pred {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	for _, v := range pred[1:] {
		if v != pred[0] {
			return true
		}
	}
	return false
}

// TStat is the t statistic of the slope of y on pred: from the Pearson
// correlation for a continuous y, or the Wald z of a logistic regression when
// binary (y in {0, 1}). NaN when the prediction is missing or constant.
func TStat(pred, y []float64, binary bool) float64 {
	if !usable(pred, y) {
		return math.NaN()
	}

	if binary {
		return logisticZ(pred, y)
	}

	r := stat.Correlation(pred, y, nil)
	n := float64(len(pred))
	if r >= 1 || r <= -1 {
		return math.Copysign(math.Inf(1), r)
	}
	return r * math.Sqrt((n-2)/(1-r*r))
}

func logisticZ(pred, y []float64) (z float64) {
	defer func() {
		if recover() != nil {
			// statmodel panics on singular designs
			z = math.NaN()
		}
	}()

	mean, std := stat.MeanStdDev(pred, nil)
	x := make([]statmodel.Dtype, len(pred))
	outcome := make([]statmodel.Dtype, len(y))
	constants := make([]statmodel.Dtype, len(y))
	for i := range pred {
		x[i] = statmodel.Dtype((pred[i] - mean) / std)
		outcome[i] = statmodel.Dtype(y[i])
		constants[i] = 1
	}

	names := []string{"outcome", "constants", "pred"}
	dataset := statmodel.NewDataset([][]statmodel.Dtype{outcome, constants, x}, names)
	model, err := glm.NewGLM(dataset, "outcome", names[1:], glmConfig)
	if err != nil {
		return math.NaN()
	}

	result := model.Fit()
	params, se := result.Params(), result.StdErr()
	if len(params) < 2 || !(se[1] > 0) {
		return math.NaN()
	}

	return params[1] / se[1]
}

// Correlation is the Pearson correlation of pred and y, NaN if undefined.
func Correlation(pred, y []float64) float64 {
	if !usable(pred, y) {
		return math.NaN()
	}
	return stat.Correlation(pred, y, nil)
}

// AUC is the area under the ROC curve of pred for the binary outcome y.
func AUC(pred, y []float64) float64 {
	if !usable(pred, y) {
		return math.NaN()
	}

	idx := make([]int, len(pred))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return pred[idx[a]] < pred[idx[b]] })

	sorted := make([]float64, len(pred))
	classes := make([]bool, len(pred))
	cases := 0
	for k, i := range idx {
		sorted[k] = pred[i]
		classes[k] = y[i] == 1
		if classes[k] {
			cases++
		}
	}
	if cases == 0 || cases == len(pred) {
		return math.NaN()
	}

	tpr, fpr, _ := stat.ROC(nil, sorted, classes, nil)
	return integrate.Trapezoidal(fpr, tpr)
}
