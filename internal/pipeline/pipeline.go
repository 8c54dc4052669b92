// Package pipeline runs the segmentation stages in order: recode sentinels,
// filter by missing data, transform, cluster and compare. Everything is
// learned from the reference dataset once and applied unchanged to targets.
package pipeline

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/KaramelBytes/segloom-cli/internal/clean"
	"github.com/KaramelBytes/segloom-cli/internal/cluster"
	"github.com/KaramelBytes/segloom-cli/internal/codex"
	"github.com/KaramelBytes/segloom-cli/internal/compare"
	"github.com/KaramelBytes/segloom-cli/internal/dataset"
	"github.com/KaramelBytes/segloom-cli/internal/metrics"
	"github.com/KaramelBytes/segloom-cli/internal/transform"
)

// DatasetSummary records the sizes of one dataset through the stages.
type DatasetSummary struct {
	Name     string         `json:"name"`
	Rows     int            `json:"rows"`
	Columns  int            `json:"columns"`
	Kept     int            `json:"kept"`
	SetAside int            `json:"set_aside"`
	Unseen   map[string]int `json:"unseen_levels,omitempty"`
}

// Pipeline binds the attribute metadata and options of a run.
type Pipeline struct {
	codex *codex.Codex
	opt   Options
	log   *zap.Logger
	rec   *metrics.Recorder
}

// New returns a pipeline. A nil logger or recorder is replaced by a no-op
// logger and a fresh recorder.
func New(cx *codex.Codex, opt Options, log *zap.Logger, rec *metrics.Recorder) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	if rec == nil {
		rec = metrics.New()
	}
	return &Pipeline{codex: cx, opt: opt, log: log, rec: rec}
}

func (p *Pipeline) Metrics() *metrics.Recorder { return p.rec }

func (p *Pipeline) stage(stage string, t *dataset.Table) {
	p.log.Debug("Stage complete",
		zap.String("stage", stage),
		zap.String("dataset", t.Name()),
		zap.Int("rows", t.NumRows()),
		zap.Int("columns", t.NumCols()))
	p.rec.Columns(t.Name(), stage, t.NumCols())
}

func (p *Pipeline) recode(t *dataset.Table) (*dataset.Table, error) {
	defer p.rec.Stage("recode", t.Name())()
	p.rec.Rows(t.Name(), "loaded", t.NumRows())
	out, err := clean.Recode(t, p.codex)
	if err != nil {
		return nil, err
	}
	p.stage("recode", out)
	return out, nil
}

func (p *Pipeline) filter(plan clean.Plan, t *dataset.Table) (*clean.Split, error) {
	defer p.rec.Stage("filter", t.Name())()
	split, err := plan.Apply(t)
	if err != nil {
		return nil, err
	}
	p.rec.Rows(t.Name(), "kept", split.Kept.NumRows())
	p.rec.Rows(t.Name(), "set_aside", split.SetAside.NumRows())
	p.stage("filter", split.Kept)
	return split, nil
}

func (p *Pipeline) project(f *transform.Fitted, t *dataset.Table) (*transform.Projection, error) {
	defer p.rec.Stage("transform", t.Name())()
	proj, err := f.Apply(t)
	if err != nil {
		return nil, err
	}
	p.rec.Unseen(t.Name(), proj.Unseen)
	p.log.Debug("Projected",
		zap.String("dataset", t.Name()),
		zap.Int("rows", t.NumRows()),
		zap.Int("components", f.Components()))
	return proj, nil
}

func (p *Pipeline) proportions(name string, labels []int, k, setAside int) (compare.Distribution, error) {
	if !p.opt.IncludeSetAside {
		setAside = -1
	}
	d, err := compare.Proportions(name, labels, k, setAside)
	if err != nil {
		return compare.Distribution{}, err
	}
	for i, c := range d.Clusters {
		p.rec.ClusterShare(name, c, d.Shares[i])
	}
	return d, nil
}

// reference holds the intermediate results of the reference fit.
type reference struct {
	plan    clean.Plan
	stats   []clean.ColumnMissing
	split   *clean.Split
	fitted  *transform.Fitted
	reduced *mat.Dense
}

func (p *Pipeline) fitReference(ctx context.Context, ref *dataset.Table) (*reference, error) {
	recoded, err := p.recode(ref)
	if err != nil {
		return nil, err
	}
	plan, stats, err := clean.FitPlan(recoded, p.opt.Thresholds)
	if err != nil {
		return nil, err
	}
	if len(plan.Dropped) > 0 {
		p.log.Info("Dropping sparse columns", zap.Strings("columns", plan.Dropped))
	}
	split, err := p.filter(plan, recoded)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	done := p.rec.Stage("fit_transform", ref.Name())
	fitted, err := transform.Fit(split.Kept, transform.Options{
		Impute:         p.opt.Impute,
		Components:     p.opt.Components,
		VarianceTarget: p.opt.VarianceTarget,
		Kinds:          p.codex.Kinds(plan.Columns),
		MixedAsNumeric: p.opt.MixedAsNumeric,
	})
	done()
	if err != nil {
		return nil, fmt.Errorf("fit transform: %w", err)
	}
	if n := len(fitted.Skipped()); n > 0 {
		p.log.Info("Skipping mixed-type columns", zap.Strings("columns", fitted.Skipped()))
	}
	proj, err := p.project(fitted, split.Kept)
	if err != nil {
		return nil, err
	}
	return &reference{plan: plan, stats: stats, split: split, fitted: fitted, reduced: proj.Reduced}, nil
}

// Elbow fits the reference stages and sweeps k over the configured range.
func (p *Pipeline) Elbow(ctx context.Context, ref *dataset.Table) ([]cluster.ElbowPoint, int, error) {
	r, err := p.fitReference(ctx, ref)
	if err != nil {
		return nil, 0, err
	}
	return p.sweep(ctx, r.reduced, ref.Name())
}

func (p *Pipeline) sweep(ctx context.Context, x *mat.Dense, name string) ([]cluster.ElbowPoint, int, error) {
	defer p.rec.Stage("elbow", name)()
	points, err := cluster.Sweep(ctx, x, p.opt.KMeans, p.opt.ElbowMinK, p.opt.ElbowMaxK)
	if err != nil {
		return nil, 0, err
	}
	k := cluster.SuggestElbow(points)
	p.log.Info("Elbow sweep", zap.Int("from", points[0].K), zap.Int("to", points[len(points)-1].K), zap.Int("suggested_k", k))
	return points, k, nil
}

// Fit learns every stage from the reference dataset.
func (p *Pipeline) Fit(ctx context.Context, ref *dataset.Table) (*Artifact, error) {
	r, err := p.fitReference(ctx, ref)
	if err != nil {
		return nil, err
	}
	a := newArtifact()
	a.Plan = r.plan
	a.Transform = r.fitted
	a.ColumnMissing = r.stats
	a.RowDistribution = clean.RowMissingDistribution(r.split.Counts)
	a.IncludeSetAside = p.opt.IncludeSetAside

	k := p.opt.Clusters
	if k == 0 {
		if a.Elbow, a.SuggestedK, err = p.sweep(ctx, r.reduced, ref.Name()); err != nil {
			return nil, err
		}
		k = a.SuggestedK
	}
	km := p.opt.KMeans
	km.K = k
	done := p.rec.Stage("fit_clusters", ref.Name())
	a.Model, err = km.Fit(r.reduced)
	done()
	if err != nil {
		return nil, fmt.Errorf("fit clusters: %w", err)
	}
	labels, err := a.Model.Predict(r.reduced)
	if err != nil {
		return nil, err
	}
	if a.Proportions, err = p.proportions(ref.Name(), labels, k, r.split.SetAside.NumRows()); err != nil {
		return nil, err
	}
	a.Reference = DatasetSummary{
		Name:     ref.Name(),
		Rows:     ref.NumRows(),
		Columns:  ref.NumCols(),
		Kept:     r.split.Kept.NumRows(),
		SetAside: r.split.SetAside.NumRows(),
	}
	p.rec.Model(a.Transform.Components(), k, a.Transform.ExplainedVariance())
	p.log.Info("Reference fitted",
		zap.String("artifact", a.ID),
		zap.Int("components", a.Transform.Components()),
		zap.Int("clusters", k),
		zap.Float64("inertia", a.Model.Inertia()))
	return a, nil
}

// dropExtras removes the configured target-only columns, reporting those
// that were not present.
func (p *Pipeline) dropExtras(t *dataset.Table) (*dataset.Table, []string, error) {
	var present, warnings []string
	for _, c := range p.opt.TargetExtraColumns {
		if _, ok := t.ColumnIndex(c); ok {
			present = append(present, c)
		} else {
			warnings = append(warnings, fmt.Sprintf("extra column %s not found in %s", c, t.Name()))
		}
	}
	if len(present) == 0 {
		return t, warnings, nil
	}
	out, err := t.Drop(present...)
	if err != nil {
		return nil, nil, err
	}
	p.log.Debug("Dropped target-only columns", zap.Strings("columns", present))
	return out, warnings, nil
}

// Apply runs a fitted artifact on a target dataset and compares cluster
// proportions with the reference. The artifact is not modified.
func (p *Pipeline) Apply(ctx context.Context, a *Artifact, target *dataset.Table) (*Report, error) {
	if err := a.check(); err != nil {
		return nil, err
	}
	trimmed, warnings, err := p.dropExtras(target)
	if err != nil {
		return nil, err
	}
	recoded, err := p.recode(trimmed)
	if err != nil {
		return nil, err
	}
	split, err := p.filter(a.Plan, recoded)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	proj, err := p.project(a.Transform, split.Kept)
	if err != nil {
		return nil, err
	}
	labels, err := a.Model.Predict(proj.Reduced)
	if err != nil {
		return nil, err
	}
	if len(labels) != split.Kept.NumRows() {
		return nil, &dataset.ShapeError{Stage: "predict " + target.Name(), What: "labels", Want: split.Kept.NumRows(), Got: len(labels)}
	}
	setAside := split.SetAside.NumRows()
	if !a.IncludeSetAside {
		setAside = -1
	}
	dist, err := compare.Proportions(target.Name(), labels, a.Model.K(), setAside)
	if err != nil {
		return nil, err
	}
	for i, c := range dist.Clusters {
		p.rec.ClusterShare(target.Name(), c, dist.Shares[i])
	}
	rows, err := compare.Compare(a.Proportions, dist, p.opt.Margin)
	if err != nil {
		return nil, err
	}

	rep := &Report{
		ArtifactID: a.ID,
		Reference:  a.Reference,
		Target: DatasetSummary{
			Name:     target.Name(),
			Rows:     target.NumRows(),
			Columns:  target.NumCols(),
			Kept:     split.Kept.NumRows(),
			SetAside: split.SetAside.NumRows(),
			Unseen:   proj.Unseen,
		},
		Dropped:         a.Plan.Dropped,
		Skipped:         a.Transform.Skipped(),
		Components:      a.Transform.Components(),
		Explained:       a.Transform.ExplainedVariance(),
		K:               a.Model.K(),
		Elbow:           a.Elbow,
		SuggestedK:      a.SuggestedK,
		Thresholds:      a.Plan.Thresholds,
		RowDistribution: a.RowDistribution,
		Comparison:      rows,
		Warnings:        warnings,
	}
	for _, col := range sortedKeys(proj.Unseen) {
		rep.Warnings = append(rep.Warnings, fmt.Sprintf("%s: %d values in %s not seen in the reference", col, proj.Unseen[col], target.Name()))
	}
	for _, r := range compare.Notable(rows) {
		prof, err := compare.Describe(a.Transform, a.Model, r.Cluster, p.opt.ProfileTop)
		if err != nil {
			return nil, err
		}
		prof.Verdict = r.Verdict
		rep.Profiles = append(rep.Profiles, prof)
	}
	p.log.Info("Target compared",
		zap.String("dataset", target.Name()),
		zap.Int("kept", split.Kept.NumRows()),
		zap.Int("set_aside", split.SetAside.NumRows()),
		zap.Int("notable_clusters", len(rep.Profiles)))
	return rep, nil
}

// Run fits on the reference and applies the result to the target.
func (p *Pipeline) Run(ctx context.Context, ref, target *dataset.Table) (*Artifact, *Report, error) {
	a, err := p.Fit(ctx, ref)
	if err != nil {
		return nil, nil, fmt.Errorf("reference %s: %w", ref.Name(), err)
	}
	rep, err := p.Apply(ctx, a, target)
	if err != nil {
		return a, nil, fmt.Errorf("target %s: %w", target.Name(), err)
	}
	return a, rep, nil
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
