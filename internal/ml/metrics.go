package ml

import "fmt"

// DecisionThreshold separates the positive class: p > DecisionThreshold
const DecisionThreshold = 0.5

// Evaluation summarizes classifier quality on a labelled set
type Evaluation struct {
	Samples   int     `json:"samples"`
	Positives int     `json:"positives"`
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
}

// Evaluate scores every row and compares the verdict against y
func Evaluate(c Classifier, X [][]float64, y []int) (Evaluation, error) {
	if len(X) != len(y) {
		return Evaluation{}, fmt.Errorf("evaluation set has %d rows and %d labels", len(X), len(y))
	}

	var tp, fp, tn, fn int
	for i, row := range X {
		p, err := c.PredictProbability(row)
		if err != nil {
			return Evaluation{}, err
		}
		predicted := p > DecisionThreshold
		switch {
		case predicted && y[i] == 1:
			tp++
		case predicted:
			fp++
		case y[i] == 1:
			fn++
		default:
			tn++
		}
	}

	ev := Evaluation{Samples: len(X), Positives: tp + fn}
	if len(X) > 0 {
		ev.Accuracy = float64(tp+tn) / float64(len(X))
	}
	if tp+fp > 0 {
		ev.Precision = float64(tp) / float64(tp+fp)
	}
	if tp+fn > 0 {
		ev.Recall = float64(tp) / float64(tp+fn)
	}
	if ev.Precision+ev.Recall > 0 {
		ev.F1 = 2 * ev.Precision * ev.Recall / (ev.Precision + ev.Recall)
	}
	return ev, nil
}
