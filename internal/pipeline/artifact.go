package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/KaramelBytes/segloom-cli/internal/clean"
	"github.com/KaramelBytes/segloom-cli/internal/cluster"
	"github.com/KaramelBytes/segloom-cli/internal/compare"
	"github.com/KaramelBytes/segloom-cli/internal/dataset"
	"github.com/KaramelBytes/segloom-cli/internal/transform"
	"github.com/KaramelBytes/segloom-cli/internal/utils"
)

// Artifact is everything learned from the reference dataset. Applying it to
// another dataset never changes it.
type Artifact struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`

	Reference       DatasetSummary        `json:"reference"`
	Plan            clean.Plan            `json:"filter_plan"`
	Transform       *transform.Fitted     `json:"transform"`
	Model           *cluster.Model        `json:"model"`
	Elbow           []cluster.ElbowPoint  `json:"elbow,omitempty"`
	SuggestedK      int                   `json:"suggested_k,omitempty"`
	Proportions     compare.Distribution  `json:"reference_proportions"`
	IncludeSetAside bool                  `json:"include_set_aside"`
	RowDistribution clean.RowDistribution `json:"row_distribution"`
	ColumnMissing   []clean.ColumnMissing `json:"column_missing,omitempty"`
}

func newArtifact() *Artifact {
	return &Artifact{ID: uuid.NewString(), CreatedAt: time.Now().UTC()}
}

// check asserts that the stored stages fit together.
func (a *Artifact) check() error {
	if a.Transform == nil || a.Model == nil {
		return errors.New("artifact: missing transform or model")
	}
	if err := dataset.CompareColumns("artifact transform", a.Plan.Columns, a.Transform.Columns()); err != nil {
		return err
	}
	if a.Model.Dims() != a.Transform.Components() {
		return &dataset.ShapeError{Stage: "artifact model", What: "dimensions", Want: a.Transform.Components(), Got: a.Model.Dims()}
	}
	return nil
}

// SaveArtifact writes a as indented JSON.
func SaveArtifact(path string, a *Artifact) error {
	if err := utils.WriteJSON(path, a); err != nil {
		return fmt.Errorf("save artifact: %w", err)
	}
	return nil
}

// LoadArtifact reads an artifact written by SaveArtifact and checks that its
// stages are consistent.
func LoadArtifact(path string) (*Artifact, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	var a Artifact
	if err := json.Unmarshal(b, &a); err != nil {
		return nil, fmt.Errorf("parse artifact %s: %w", path, err)
	}
	if err := a.check(); err != nil {
		return nil, fmt.Errorf("artifact %s: %w", path, err)
	}
	return &a, nil
}
