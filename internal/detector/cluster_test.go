package detector

import (
	"image"
	"math"
	"testing"
)

const epsilon = 1e-9

func pixelSet(points ...image.Point) *PixelSet {
	s := NewPixelSet(len(points))
	for _, p := range points {
		s.Add(Pixel{X: p.X, Y: p.Y, Lum: MaxLuminance})
	}
	return s
}

func diskPoints(cx, cy, r int) []image.Point {
	var pts []image.Point
	for y := cy - r; y <= cy+r; y++ {
		for x := cx - r; x <= cx+r; x++ {
			dx, dy := x-cx, y-cy
			if dx*dx+dy*dy <= r*r {
				pts = append(pts, image.Point{X: x, Y: y})
			}
		}
	}
	return pts
}

func rectPoints(r image.Rectangle) []image.Point {
	var pts []image.Point
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			pts = append(pts, image.Point{X: x, Y: y})
		}
	}
	return pts
}

func TestPixelSet(t *testing.T) {
	s := NewPixelSet(0)
	if !s.Add(Pixel{X: 1, Y: 2}) {
		t.Fatal("expected first add to succeed")
	}
	if s.Add(Pixel{X: 1, Y: 2, Lum: 5}) {
		t.Error("expected duplicate coordinate to be rejected")
	}
	s.Add(Pixel{X: 0, Y: 0})

	if s.Len() != 2 {
		t.Errorf("expected 2 pixels, got %d", s.Len())
	}
	if p, ok := s.Get(1, 2); !ok || p.Lum != 0 {
		t.Errorf("expected original pixel kept, got %+v", p)
	}
	pts := s.Points()
	if pts[0] != (image.Point{X: 1, Y: 2}) || pts[1] != (image.Point{}) {
		t.Errorf("expected insertion order, got %v", pts)
	}
}

func TestScaledMinConnectedness(t *testing.T) {
	tests := []struct {
		size, minShot int
		want          float64
	}{
		{6, 6, 3},
		{29, 6, 3.69},
		{81, 6, 5.25},
		{500, 6, MaxConnectednessScale},
	}

	for _, tt := range tests {
		got := ScaledMinConnectedness(tt.size, tt.minShot)
		if math.Abs(got-tt.want) > 1e-6 {
			t.Errorf("ScaledMinConnectedness(%d, %d) = %f, expected %f", tt.size, tt.minShot, got, tt.want)
		}
	}
}

func TestBuildClusters_Disk(t *testing.T) {
	clusters := BuildClusters(pixelSet(diskPoints(20, 15, 3)...), 6)
	if len(clusters) != 1 {
		t.Fatalf("expected 1 cluster, got %d", len(clusters))
	}

	c := clusters[0]
	if c.Size() != 29 {
		t.Errorf("expected 29 pixels, got %d", c.Size())
	}
	if math.Abs(c.CenterX-20) > epsilon || math.Abs(c.CenterY-15) > epsilon {
		t.Errorf("expected centre (20,15), got (%f,%f)", c.CenterX, c.CenterY)
	}
	if c.Width() != 6 || c.Height() != 6 {
		t.Errorf("expected 6x6 bounding box, got %dx%d", c.Width(), c.Height())
	}
	if c.AvgConnectedness < ScaledMinConnectedness(29, 6) {
		t.Errorf("connectedness %f below required", c.AvgConnectedness)
	}
}

func TestBuildClusters_Connectedness(t *testing.T) {
	set := pixelSet(rectPoints(image.Rect(0, 0, 3, 3))...)
	BuildClusters(set, 6)

	centre, _ := set.Get(1, 1)
	if centre.Connectedness != MaxConnectedness {
		t.Errorf("expected centre connectedness 8, got %d", centre.Connectedness)
	}
	corner, _ := set.Get(0, 0)
	if corner.Connectedness != 3 {
		t.Errorf("expected corner connectedness 3, got %d", corner.Connectedness)
	}
	edge, _ := set.Get(1, 0)
	if edge.Connectedness != 5 {
		t.Errorf("expected edge connectedness 5, got %d", edge.Connectedness)
	}
}

func TestBuildClusters_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		points []image.Point
		reason string
	}{
		{"too few pixels", rectPoints(image.Rect(0, 0, 2, 2)), "too few pixels"},
		{"thin line", rectPoints(image.Rect(0, 0, 20, 1)), "low connectedness"},
		{"wide bar", rectPoints(image.Rect(0, 0, 20, 2)), "aspect ratio"},
		{"tall bar", rectPoints(image.Rect(0, 0, 3, 9)), "aspect ratio"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set := pixelSet(tt.points...)
			if clusters := BuildClusters(set, 6); len(clusters) != 0 {
				t.Fatalf("expected cluster rejected, got %d clusters", len(clusters))
			}
			c := NewCluster(set.Pixels())
			if got := c.rejectReason(6); got != tt.reason {
				t.Errorf("expected reason %q, got %q", tt.reason, got)
			}
		})
	}
}

func TestCluster_RejectLowDensity(t *testing.T) {
	// Corners and centre of a 5x5 box: square and well connected on paper,
	// but far too sparse for its size.
	c := NewCluster([]*Pixel{
		{X: 0, Y: 0, Connectedness: 8},
		{X: 4, Y: 0, Connectedness: 8},
		{X: 2, Y: 2, Connectedness: 8},
		{X: 0, Y: 4, Connectedness: 8},
		{X: 4, Y: 4, Connectedness: 8},
	})

	if c.Density() >= MinDensity {
		t.Fatalf("expected density below %f, got %f", MinDensity, c.Density())
	}
	if got := c.rejectReason(3); got != "low density" {
		t.Errorf("expected reason %q, got %q", "low density", got)
	}
}

func TestBuildClusters_SortedBySize(t *testing.T) {
	pts := diskPoints(10, 10, 3)
	pts = append(pts, diskPoints(40, 10, 5)...)
	clusters := BuildClusters(pixelSet(pts...), 6)

	if len(clusters) != 2 {
		t.Fatalf("expected 2 clusters, got %d", len(clusters))
	}
	if clusters[0].Size() != 81 || clusters[1].Size() != 29 {
		t.Errorf("expected sizes [81 29], got [%d %d]", clusters[0].Size(), clusters[1].Size())
	}
}

func TestBuildClusters_ExcessivePixelsStopEarly(t *testing.T) {
	var pts []image.Point
	for i := 0; i < 3; i++ {
		pts = append(pts, rectPoints(image.Rect(i*20, 0, i*20+11, 11))...)
	}
	if len(pts) <= ExcessivePixelCutoff {
		t.Fatalf("test needs more than %d candidates, has %d", ExcessivePixelCutoff, len(pts))
	}

	clusters := BuildClusters(pixelSet(pts...), 6)
	if len(clusters) != ExcessivePixelRegionCount+1 {
		t.Errorf("expected %d clusters before giving up, got %d", ExcessivePixelRegionCount+1, len(clusters))
	}

	// Below the cutoff every region is grown.
	clusters = BuildClusters(pixelSet(pts[:242]...), 6)
	if len(clusters) != 2 {
		t.Errorf("expected 2 clusters below cutoff, got %d", len(clusters))
	}
}

func TestCluster_Density(t *testing.T) {
	single := NewCluster([]*Pixel{{X: 3, Y: 3}})
	if single.Density() != 1 {
		t.Errorf("expected zero-area density 1, got %f", single.Density())
	}

	c := NewCluster(pixelSet(diskPoints(0, 0, 3)...).Pixels())
	want := 29 / (math.Pi * 9)
	if math.Abs(c.Density()-want) > epsilon {
		t.Errorf("expected density %f, got %f", want, c.Density())
	}
}

func TestNewCluster_CentroidFallback(t *testing.T) {
	c := NewCluster([]*Pixel{{X: 0, Y: 0}, {X: 4, Y: 2}})
	if c.CenterX != 2 || c.CenterY != 1 {
		t.Errorf("expected plain mean (2,1), got (%f,%f)", c.CenterX, c.CenterY)
	}
}
