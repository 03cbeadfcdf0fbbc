package forecast

import (
	"math"
	"path/filepath"
	"testing"
	"time"
)

func syntheticRevenue(days int, start time.Time, spikeDays map[int]bool) ([]time.Time, []float64) {
	dates := make([]time.Time, days)
	revenue := make([]float64, days)
	for i := 0; i < days; i++ {
		d := start.AddDate(0, 0, i)
		dates[i] = d
		base := 1000.0 + float64(i)*2
		weekdayBoost := map[time.Weekday]float64{
			time.Monday: 0, time.Tuesday: 20, time.Wednesday: 40, time.Thursday: 30,
			time.Friday: 80, time.Saturday: 150, time.Sunday: -50,
		}[d.Weekday()]
		v := base + weekdayBoost
		if spikeDays != nil && spikeDays[i] {
			v *= 4
		}
		revenue[i] = v
	}
	return dates, revenue
}

func TestWinsorize_ClipsSpikesAndRaisesRatio(t *testing.T) {
	spikes := map[int]bool{}
	for i := 0; i < 400; i += 25 {
		spikes[i] = true
	}
	_, revenue := syntheticRevenue(400, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), spikes)
	clipped, ratio := winsorize(revenue)
	if ratio < 1.0 {
		t.Errorf("clip_ratio = %v, want >= 1.0 with injected spikes", ratio)
	}
	maxClipped := 0.0
	for _, v := range clipped {
		if v > maxClipped {
			maxClipped = v
		}
	}
	maxOriginal := 0.0
	for _, v := range revenue {
		if v > maxOriginal {
			maxOriginal = v
		}
	}
	if maxClipped >= maxOriginal {
		t.Error("expected clipping to reduce the maximum value")
	}
}

func TestWinsorize_RatioCloseToOneWithoutSpikes(t *testing.T) {
	_, revenue := syntheticRevenue(400, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), nil)
	_, ratio := winsorize(revenue)
	if math.Abs(ratio-1.0) > 0.05 {
		t.Errorf("clip_ratio = %v, want close to 1.0 on spike-free data", ratio)
	}
}

func TestTrain_ProducesReadyModelWithBoundedDOWCorrection(t *testing.T) {
	dates, revenue := syntheticRevenue(400, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), nil)
	model, err := Train(dates, revenue)
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	if len(model.Trees) == 0 {
		t.Fatal("expected at least one boosted tree")
	}
	for d, c := range model.DOWCorrection {
		if c < 0.70 || c > 1.30 {
			t.Errorf("DOWCorrection[%d] = %v, out of [0.70,1.30]", d, c)
		}
	}
}

func TestTrain_InsufficientData(t *testing.T) {
	dates, revenue := syntheticRevenue(20, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), nil)
	_, err := Train(dates, revenue)
	if err != ErrInsufficientData {
		t.Fatalf("err = %v, want ErrInsufficientData", err)
	}
}

func TestPredictRemainderOfMonth_NonNegativeAndCoversRemainingDays(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	today := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	days := int(today.Sub(start).Hours()/24) + 1
	dates, revenue := syntheticRevenue(days, start, nil)

	model, err := Train(dates, revenue)
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	preds, err := model.PredictRemainderOfMonth(dates, revenue)
	if err != nil {
		t.Fatalf("PredictRemainderOfMonth: %v", err)
	}
	wantDays := 30 - today.Day()
	if len(preds) != wantDays {
		t.Fatalf("len(preds) = %d, want %d remaining days in June", len(preds), wantDays)
	}
	for _, p := range preds {
		if p.PredictedRevenue < 0 {
			t.Errorf("predicted revenue %v is negative", p.PredictedRevenue)
		}
	}
}

func TestSaveLoad_RoundTripsPredictions(t *testing.T) {
	dates, revenue := syntheticRevenue(400, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), nil)
	model, err := Train(dates, revenue)
	if err != nil {
		t.Fatalf("Train: %v", err)
	}

	dir := t.TempDir()
	paths := DefaultArtifactPaths(dir)
	if err := model.Save(paths); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(paths)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	origPreds, err := model.PredictRemainderOfMonth(dates, revenue)
	if err != nil {
		t.Fatalf("original PredictRemainderOfMonth: %v", err)
	}
	loadedPreds, err := loaded.PredictRemainderOfMonth(dates, revenue)
	if err != nil {
		t.Fatalf("loaded PredictRemainderOfMonth: %v", err)
	}
	if len(origPreds) != len(loadedPreds) {
		t.Fatalf("prediction count mismatch: %d vs %d", len(origPreds), len(loadedPreds))
	}
	for i := range origPreds {
		if origPreds[i] != loadedPreds[i] {
			t.Errorf("prediction %d mismatch: %+v vs %+v", i, origPreds[i], loadedPreds[i])
		}
	}
}

func TestLoad_MissingFilesErrors(t *testing.T) {
	paths := DefaultArtifactPaths(filepath.Join(t.TempDir(), "missing"))
	if _, err := Load(paths); err == nil {
		t.Fatal("expected error loading from a directory with no artifacts")
	}
}
