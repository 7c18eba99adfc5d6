package scoring

import (
	"errors"
	"math"
	"testing"

	"github.com/cognicore/topicclf/pkg/topicclf/internalerr"
)

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestMetrics(t *testing.T) {
	yTrue := []string{"a", "a", "a", "b"}
	yPred := []string{"a", "a", "b", "b"}

	if got := Accuracy(yTrue, yPred); !approx(got, 0.75) {
		t.Errorf("accuracy = %v", got)
	}
	// recall a = 2/3, b = 1
	if got := BalancedAccuracy(yTrue, yPred); !approx(got, (2.0/3.0+1)/2) {
		t.Errorf("balanced accuracy = %v", got)
	}
	// precision a = 1, b = 1/2
	if got := PrecisionMacro(yTrue, yPred); !approx(got, 0.75) {
		t.Errorf("precision macro = %v", got)
	}
	f1a := 2 * 1 * (2.0 / 3.0) / (1 + 2.0/3.0)
	f1b := 2 * 0.5 * 1 / 1.5
	if got := F1Macro(yTrue, yPred); !approx(got, (f1a+f1b)/2) {
		t.Errorf("f1 macro = %v", got)
	}
	if got := F1Weighted(yTrue, yPred); !approx(got, (3*f1a+f1b)/4) {
		t.Errorf("f1 weighted = %v", got)
	}
	if got := RecallMacro(yTrue, yPred); !approx(got, (2.0/3.0+1)/2) {
		t.Errorf("recall macro = %v", got)
	}
}

func TestMetricsPerfect(t *testing.T) {
	y := []string{"x", "y", "z"}
	for _, name := range Names() {
		m, err := Lookup(name)
		if err != nil {
			t.Fatal(err)
		}
		if got := m(y, y); !approx(got, 1) {
			t.Errorf("%s on perfect predictions = %v", name, got)
		}
	}
}

func TestLookupUnknown(t *testing.T) {
	if _, err := Lookup("roc_auc"); !errors.Is(err, internalerr.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestScoreMultiOutput(t *testing.T) {
	yTrue := [][]string{{"a", "x"}, {"b", "y"}}
	yPred := [][]string{{"a", "y"}, {"b", "y"}}
	got, err := Score(Accuracy, yTrue, yPred)
	if err != nil {
		t.Fatal(err)
	}
	// column 0: 1.0, column 1: 0.5
	if !approx(got, 0.75) {
		t.Fatalf("score = %v, want 0.75", got)
	}

	if _, err := Score(Accuracy, yTrue, yPred[:1]); !errors.Is(err, internalerr.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for length mismatch, got %v", err)
	}
	if _, err := Score(Accuracy, nil, nil); !errors.Is(err, internalerr.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for empty input, got %v", err)
	}
}
