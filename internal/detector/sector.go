package detector

import (
	"context"
	"errors"
	"fmt"
	"image"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ayusman/dryfire/internal/frame"
)

// Default sector grid.
const (
	DefaultSectorRows = 3
	DefaultSectorCols = 3
)

// ErrSectorOutOfRange is returned when a sector index is outside the grid.
var ErrSectorOutOfRange = errors.New("sector outside grid")

// ScanResult is the merged output of one scan.
type ScanResult struct {
	// Candidates holds the candidate pixels in sector order, row-major
	// within each sector.
	Candidates *PixelSet
	// BrightPixels counts pixels whose average is excessively bright.
	BrightPixels int
	// ThresholdedPixels counts pixels suppressed by the dynamic threshold.
	ThresholdedPixels int
	// ScannedPixels counts pixels visited in completed sectors.
	ScannedPixels  int
	SectorsScanned int
	SectorsAborted int
}

// Scanner partitions frames into a grid of sectors and scans the enabled
// sectors concurrently.
type Scanner struct {
	rows    int
	cols    int
	enabled []bool
	workers int
	mu      sync.RWMutex
}

// sectorResult is the task-local accumulator for one sector.
type sectorResult struct {
	candidates  []Pixel
	bright      int
	thresholded int
	scanned     int
	done        bool
}

// NewScanner creates a scanner with all sectors enabled. Non-positive rows or
// cols fall back to the 3x3 default; non-positive workers uses one worker
// per CPU.
func NewScanner(rows, cols, workers int) *Scanner {
	if rows <= 0 {
		rows = DefaultSectorRows
	}
	if cols <= 0 {
		cols = DefaultSectorCols
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	enabled := make([]bool, rows*cols)
	for i := range enabled {
		enabled[i] = true
	}

	return &Scanner{
		rows:    rows,
		cols:    cols,
		enabled: enabled,
		workers: workers,
	}
}

// Dimensions returns the number of sector rows and columns.
func (s *Scanner) Dimensions() (rows, cols int) {
	return s.rows, s.cols
}

// Workers returns the maximum number of concurrently scanned sectors.
func (s *Scanner) Workers() int {
	return s.workers
}

// SetSectorEnabled enables or disables one sector.
func (s *Scanner) SetSectorEnabled(row, col int, enabled bool) error {
	if row < 0 || col < 0 || row >= s.rows || col >= s.cols {
		return fmt.Errorf("%w: (%d,%d) in %dx%d", ErrSectorOutOfRange, row, col, s.rows, s.cols)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled[row*s.cols+col] = enabled
	return nil
}

// SectorEnabled reports whether a sector is enabled. Out of range sectors
// report false.
func (s *Scanner) SectorEnabled(row, col int) bool {
	if row < 0 || col < 0 || row >= s.rows || col >= s.cols {
		return false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enabled[row*s.cols+col]
}

// Sectors returns a copy of the enabled grid indexed [row][col].
func (s *Scanner) Sectors() [][]bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	grid := make([][]bool, s.rows)
	for r := range grid {
		grid[r] = make([]bool, s.cols)
		copy(grid[r], s.enabled[r*s.cols:(r+1)*s.cols])
	}
	return grid
}

// SetSectors replaces the enabled grid. The grid must match the scanner
// dimensions.
func (s *Scanner) SetSectors(grid [][]bool) error {
	if len(grid) != s.rows {
		return fmt.Errorf("%w: got %d rows, want %d", ErrSectorOutOfRange, len(grid), s.rows)
	}
	for r, row := range grid {
		if len(row) != s.cols {
			return fmt.Errorf("%w: row %d has %d columns, want %d", ErrSectorOutOfRange, r, len(row), s.cols)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for r, row := range grid {
		copy(s.enabled[r*s.cols:(r+1)*s.cols], row)
	}
	return nil
}

// Bounds returns the pixel rectangle covered by a sector in a frame of the
// given size. Adjacent sectors share no pixels.
func (s *Scanner) Bounds(row, col, width, height int) image.Rectangle {
	return image.Rect(
		col*width/s.cols,
		row*height/s.rows,
		(col+1)*width/s.cols,
		(row+1)*height/s.rows,
	)
}

// Scan walks every enabled sector of f through filter. Sectors run
// concurrently on at most Workers goroutines. A sector interrupted by ctx is
// discarded; the result contains every sector that completed.
func (s *Scanner) Scan(ctx context.Context, f frame.Frame, filter *PixelFilter, detecting bool) ScanResult {
	width, height := f.Cols(), f.Rows()

	s.mu.RLock()
	enabled := make([]bool, len(s.enabled))
	copy(enabled, s.enabled)
	s.mu.RUnlock()

	results := make([]sectorResult, s.rows*s.cols)

	var g errgroup.Group
	g.SetLimit(s.workers)

	for i, on := range enabled {
		if !on {
			continue
		}
		bounds := s.Bounds(i/s.cols, i%s.cols, width, height)
		res := &results[i]
		g.Go(func() error {
			scanSector(ctx, f, filter, bounds, detecting, res)
			return nil
		})
	}
	_ = g.Wait()

	merged := ScanResult{Candidates: NewPixelSet(0)}
	for i := range results {
		res := &results[i]
		if !enabled[i] {
			continue
		}
		if !res.done {
			merged.SectorsAborted++
			continue
		}
		merged.SectorsScanned++
		merged.BrightPixels += res.bright
		merged.ThresholdedPixels += res.thresholded
		merged.ScannedPixels += res.scanned
		for _, p := range res.candidates {
			merged.Candidates.Add(p)
		}
	}

	return merged
}

// scanSector visits a sector top to bottom, left to right. res.done stays
// false when ctx is cancelled before the sector finishes.
func scanSector(ctx context.Context, f frame.Frame, filter *PixelFilter, bounds image.Rectangle, detecting bool, res *sectorResult) {
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		if ctx.Err() != nil {
			return
		}
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			px, result := filter.Update(f.HSV(x, y), x, y, detecting)
			switch result {
			case FilterCandidate:
				res.candidates = append(res.candidates, px)
			case FilterBright:
				res.bright++
			case FilterThresholded:
				res.thresholded++
			}
			res.scanned++
		}
	}
	res.done = true
}
