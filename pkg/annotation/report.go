package annotation

import (
	"log/slog"

	"github.com/kittclouds/readmark/internal/logx"
)

// Failure records one annotation that could not be applied.
type Failure struct {
	ID  string `json:"id"`
	Err error  `json:"-"`
}

// Report summarizes an apply-all pass. Failures never abort a pass; they are
// collected here instead.
type Report struct {
	Applied []string  `json:"applied"`
	Failed  []Failure `json:"failed"`
}

// Ok records a successful apply.
func (r *Report) Ok(id string) {
	r.Applied = append(r.Applied, id)
}

// Fail records and logs a skipped annotation.
func (r *Report) Fail(a Annotation, err error) {
	r.Failed = append(r.Failed, Failure{ID: a.ID, Err: err})
	logx.Logger().Warn("annotation skipped",
		slog.String("annotation_id", a.ID),
		slog.String("source_id", a.SourceID),
		slog.String("locator_type", string(a.Locator.Type)),
		slog.Any("err", err),
	)
}

// FailedIDs lists the ids of failed annotations.
func (r *Report) FailedIDs() []string {
	ids := make([]string, len(r.Failed))
	for i, f := range r.Failed {
		ids[i] = f.ID
	}
	return ids
}

// Merge appends other's entries to r.
func (r *Report) Merge(other Report) {
	r.Applied = append(r.Applied, other.Applied...)
	r.Failed = append(r.Failed, other.Failed...)
}
