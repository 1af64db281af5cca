package classify

import (
	"context"
	"sort"
	"strings"
)

// UnsafeLabel is the tag carrying the unsafe-content score.
const UnsafeLabel = "unsafe"

// Label is a classifier tag and its confidence in [0, 1].
type Label struct {
	Name       string
	Confidence float64
}

// Classifier scores files against a label vocabulary.
type Classifier interface {
	Classify(ctx context.Context, path string, labels []string) ([]Label, error)
}

// BatchClassifier scores several files in one request. Results are returned
// in input order.
type BatchClassifier interface {
	Classifier
	ClassifyBatch(ctx context.Context, paths []string, labels []string) ([][]Label, error)
}

// NSFWScorer reports the unsafe-content score of an image.
type NSFWScorer interface {
	UnsafeScore(ctx context.Context, path string) (float64, error)
}

// Filter keeps labels whose confidence is at least threshold, ordered by
// descending confidence then name.
func Filter(labels []Label, threshold float64) []Label {
	kept := make([]Label, 0, len(labels))
	for _, label := range labels {
		name := strings.TrimSpace(label.Name)
		if name == "" || label.Confidence < threshold {
			continue
		}
		kept = append(kept, Label{Name: name, Confidence: label.Confidence})
	}
	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].Confidence != kept[j].Confidence {
			return kept[i].Confidence > kept[j].Confidence
		}
		return kept[i].Name < kept[j].Name
	})
	return kept
}

// Names returns the label names in order.
func Names(labels []Label) []string {
	out := make([]string, 0, len(labels))
	for _, label := range labels {
		out = append(out, label.Name)
	}
	return out
}

// Score returns the confidence for name, or 0 when absent.
func Score(labels []Label, name string) float64 {
	for _, label := range labels {
		if strings.EqualFold(label.Name, name) {
			return label.Confidence
		}
	}
	return 0
}
