package detector

import (
	"context"
	"errors"
	"image"
	"reflect"
	"testing"

	"github.com/ayusman/dryfire/testdata"
)

func TestScanner_Bounds(t *testing.T) {
	s := NewScanner(3, 3, 1)

	tests := []struct {
		row, col int
		want     image.Rectangle
	}{
		{0, 0, image.Rect(0, 0, 213, 160)},
		{0, 1, image.Rect(213, 0, 426, 160)},
		{1, 2, image.Rect(426, 160, 640, 320)},
		{2, 2, image.Rect(426, 320, 640, 480)},
	}

	for _, tt := range tests {
		if got := s.Bounds(tt.row, tt.col, 640, 480); got != tt.want {
			t.Errorf("Bounds(%d, %d) = %v, expected %v", tt.row, tt.col, got, tt.want)
		}
	}

	t.Run("sectors tile the frame", func(t *testing.T) {
		covered := 0
		for r := 0; r < 3; r++ {
			for c := 0; c < 3; c++ {
				b := s.Bounds(r, c, 100, 50)
				covered += b.Dx() * b.Dy()
			}
		}
		if covered != 100*50 {
			t.Errorf("expected sectors to cover 5000 pixels, got %d", covered)
		}
	})
}

func TestScanner_Sectors(t *testing.T) {
	s := NewScanner(0, 0, 0)

	rows, cols := s.Dimensions()
	if rows != DefaultSectorRows || cols != DefaultSectorCols {
		t.Fatalf("expected default %dx%d grid, got %dx%d", DefaultSectorRows, DefaultSectorCols, rows, cols)
	}
	if s.Workers() < 1 {
		t.Errorf("expected at least one worker, got %d", s.Workers())
	}

	if err := s.SetSectorEnabled(1, 2, false); err != nil {
		t.Fatalf("SetSectorEnabled failed: %v", err)
	}
	if s.SectorEnabled(1, 2) {
		t.Error("expected sector (1,2) disabled")
	}
	if s.SectorEnabled(5, 5) {
		t.Error("expected out of range sector to report disabled")
	}
	if err := s.SetSectorEnabled(3, 0, true); !errors.Is(err, ErrSectorOutOfRange) {
		t.Errorf("expected ErrSectorOutOfRange, got %v", err)
	}

	grid := s.Sectors()
	grid[0][0] = false
	if !s.SectorEnabled(0, 0) {
		t.Error("expected Sectors to return a copy")
	}

	if err := s.SetSectors([][]bool{{true}}); !errors.Is(err, ErrSectorOutOfRange) {
		t.Errorf("expected ErrSectorOutOfRange for wrong shape, got %v", err)
	}
	if err := s.SetSectors(grid); err != nil {
		t.Fatalf("SetSectors failed: %v", err)
	}
	if s.SectorEnabled(0, 0) {
		t.Error("expected sector (0,0) disabled after SetSectors")
	}
}

// warmFilter runs n background frames through a fresh filter.
func warmFilter(t *testing.T, s *Scanner, width, height, n int) *PixelFilter {
	t.Helper()
	filter := NewPixelFilter(width, height, 5)
	bg := testdata.Uniform(width, height, testdata.Background)
	for i := 0; i < n; i++ {
		res := s.Scan(context.Background(), bg, filter, true)
		filter.EndFrame(res.Candidates.Len() + res.ThresholdedPixels)
	}
	return filter
}

func TestScanner_Scan(t *testing.T) {
	s := NewScanner(3, 3, 4)
	filter := warmFilter(t, s, 60, 30, 6)

	shotFrame := testdata.WithDisk(testdata.Uniform(60, 30, testdata.Background), 30, 15, 3, testdata.Blowout)
	res := s.Scan(context.Background(), shotFrame, filter, true)

	if res.SectorsScanned != 9 || res.SectorsAborted != 0 {
		t.Errorf("expected 9 sectors scanned, got %d scanned %d aborted", res.SectorsScanned, res.SectorsAborted)
	}
	if res.ScannedPixels != 60*30 {
		t.Errorf("expected %d scanned pixels, got %d", 60*30, res.ScannedPixels)
	}
	if res.Candidates.Len() != 29 {
		t.Errorf("expected 29 candidates, got %d", res.Candidates.Len())
	}
	for _, p := range res.Candidates.Pixels() {
		if !testdata.InDisk(p.X, p.Y, 30, 15, 3) {
			t.Errorf("unexpected candidate at (%d,%d)", p.X, p.Y)
		}
	}
}

func TestScanner_DisabledSector(t *testing.T) {
	s := NewScanner(3, 3, 4)
	filter := warmFilter(t, s, 60, 30, 6)
	if err := s.SetSectorEnabled(1, 1, false); err != nil {
		t.Fatal(err)
	}

	shotFrame := testdata.WithDisk(testdata.Uniform(60, 30, testdata.Background), 30, 15, 3, testdata.Blowout)
	res := s.Scan(context.Background(), shotFrame, filter, true)

	if res.Candidates.Len() != 0 {
		t.Errorf("expected no candidates in disabled sector, got %d", res.Candidates.Len())
	}
	if res.SectorsScanned != 8 {
		t.Errorf("expected 8 sectors scanned, got %d", res.SectorsScanned)
	}
	if res.ScannedPixels != 60*30-20*10 {
		t.Errorf("expected %d scanned pixels, got %d", 60*30-20*10, res.ScannedPixels)
	}
}

func TestScanner_WorkerCountDoesNotChangeResult(t *testing.T) {
	bg := testdata.Uniform(90, 60, testdata.Background)
	shotFrame := testdata.WithDisk(bg, 15, 10, 3, testdata.Blowout)
	shotFrame = testdata.WithDisk(shotFrame, 45, 30, 4, testdata.Blowout)
	shotFrame = testdata.WithRect(shotFrame, image.Rect(70, 50, 90, 51), testdata.Blowout)
	// A spot straddling a sector boundary.
	shotFrame = testdata.WithDisk(shotFrame, 30, 40, 3, testdata.Blowout)

	run := func(workers int) ScanResult {
		s := NewScanner(3, 3, workers)
		filter := warmFilter(t, s, 90, 60, 6)
		return s.Scan(context.Background(), shotFrame, filter, true)
	}

	single := run(1)
	parallel := run(8)

	if single.Candidates.Len() == 0 {
		t.Fatal("expected candidates")
	}
	if !reflect.DeepEqual(single.Candidates.Points(), parallel.Candidates.Points()) {
		t.Error("expected identical candidate order for 1 and 8 workers")
	}
	if single.ThresholdedPixels != parallel.ThresholdedPixels || single.BrightPixels != parallel.BrightPixels {
		t.Error("expected identical counters for 1 and 8 workers")
	}

	a := BuildClusters(single.Candidates, 6)
	b := BuildClusters(parallel.Candidates, 6)
	if len(a) != len(b) {
		t.Fatalf("expected same cluster count, got %d and %d", len(a), len(b))
	}
	for i := range a {
		if a[i].CenterX != b[i].CenterX || a[i].CenterY != b[i].CenterY || a[i].Size() != b[i].Size() {
			t.Errorf("cluster %d differs: (%f,%f,%d) vs (%f,%f,%d)",
				i, a[i].CenterX, a[i].CenterY, a[i].Size(), b[i].CenterX, b[i].CenterY, b[i].Size())
		}
	}
}

func TestScanner_CancelledScanDiscardsSectors(t *testing.T) {
	s := NewScanner(3, 3, 2)
	filter := NewPixelFilter(30, 30, 5)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := s.Scan(ctx, testdata.Uniform(30, 30, testdata.Blowout), filter, true)
	if res.SectorsAborted != 9 || res.SectorsScanned != 0 {
		t.Errorf("expected all sectors aborted, got %d scanned %d aborted", res.SectorsScanned, res.SectorsAborted)
	}
	if res.Candidates.Len() != 0 || res.ScannedPixels != 0 {
		t.Errorf("expected empty result, got %d candidates %d pixels", res.Candidates.Len(), res.ScannedPixels)
	}
	if filter.LumAverages().At(15, 15) != Uninitialized {
		t.Error("expected averages untouched by a cancelled scan")
	}
}
