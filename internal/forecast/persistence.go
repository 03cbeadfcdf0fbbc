package forecast

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// persistedModel is the on-disk shape of Model, matching spec §4.7's
// three-artifact split (model, dow_corrections, clip_ratio) even though
// Go serializes all three through one json.Marshal call per file, rather
// than joblib's pickle format.
type persistedModel struct {
	Trees        []*treeNode `json:"trees"`
	LearningRate float64     `json:"learningRate"`
	BaseValue    float64     `json:"baseValue"`
	Features     []string    `json:"features"`
}

type persistedDOW struct {
	Correction [7]float64 `json:"dowCorrection"`
}

type persistedClipRatio struct {
	ClipRatio float64 `json:"clipRatio"`
}

// ArtifactPaths names the three files a Model is split across, per spec §4.7.
type ArtifactPaths struct {
	Model         string // revenue_model.joblib
	DOWCorrection string // dow_corrections.json
	ClipRatio     string // clip_ratio.json
}

// DefaultArtifactPaths anchors the three artifact files under dir.
func DefaultArtifactPaths(dir string) ArtifactPaths {
	return ArtifactPaths{
		Model:         filepath.Join(dir, "revenue_model.joblib"),
		DOWCorrection: filepath.Join(dir, "dow_corrections.json"),
		ClipRatio:     filepath.Join(dir, "clip_ratio.json"),
	}
}

// Save persists the three artifacts. Each file is written to a temp path
// alongside its destination and renamed into place, so a crash or power
// loss mid-write never leaves a truncated artifact for the next startup's
// Load to trip over, per spec §5.
func (m *Model) Save(paths ArtifactPaths) error {
	if err := writeJSON(paths.Model, persistedModel{
		Trees: m.Trees, LearningRate: m.LearningRate, BaseValue: m.BaseValue, Features: m.Features,
	}); err != nil {
		return err
	}
	if err := writeJSON(paths.DOWCorrection, persistedDOW{Correction: m.DOWCorrection}); err != nil {
		return err
	}
	return writeJSON(paths.ClipRatio, persistedClipRatio{ClipRatio: m.ClipRatio})
}

// Load reads a Model back from the three artifact files. Returns
// os.ErrNotExist (wrapped) if any file is missing — callers treat that as
// "not ready, no model until train() runs" per spec §4.7.
func Load(paths ArtifactPaths) (*Model, error) {
	var pm persistedModel
	if err := readJSON(paths.Model, &pm); err != nil {
		return nil, err
	}
	var dow persistedDOW
	if err := readJSON(paths.DOWCorrection, &dow); err != nil {
		return nil, err
	}
	var clip persistedClipRatio
	if err := readJSON(paths.ClipRatio, &clip); err != nil {
		return nil, err
	}
	return &Model{
		Trees: pm.Trees, LearningRate: pm.LearningRate, BaseValue: pm.BaseValue,
		Features: pm.Features, DOWCorrection: dow.Correction, ClipRatio: clip.ClipRatio,
	}, nil
}

// writeJSON writes v to path atomically: marshal, write to path+".tmp",
// then rename over the destination. Rename is atomic on the same
// filesystem, so readers never observe a partially written file.
func writeJSON(path string, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func readJSON(path string, v interface{}) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}
