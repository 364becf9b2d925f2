package detector

import (
	"image"
	"math"
	"sort"

	"github.com/rs/zerolog/log"
)

// Cluster heuristics.
const (
	// ExcessivePixelCutoff is the candidate count above which a frame is
	// considered too noisy to cluster fully.
	ExcessivePixelCutoff = 300
	// ExcessivePixelRegionCount is the number of regions grown before the
	// flood fill gives up on a noisy frame.
	ExcessivePixelRegionCount = 1

	MinConnectedness       = 3.0
	MinConnectednessFactor = 0.03
	MaxConnectednessScale  = 6.0
	// MaxConnectedness is the connectedness of a fully interior pixel.
	MaxConnectedness = 8

	MinAspectRatio = 0.5
	MaxAspectRatio = 1.5
	MinDensity     = 0.69
)

// neighbours are the 8-neighbourhood offsets.
var neighbours = [8]image.Point{
	{X: -1, Y: -1}, {X: 0, Y: -1}, {X: 1, Y: -1},
	{X: -1, Y: 0}, {X: 1, Y: 0},
	{X: -1, Y: 1}, {X: 0, Y: 1}, {X: 1, Y: 1},
}

// Cluster is a connected group of candidate pixels.
type Cluster struct {
	Pixels  []*Pixel
	CenterX float64
	CenterY float64
	MinX    int
	MinY    int
	MaxX    int
	MaxY    int
	// AvgConnectedness is the mean Connectedness of the member pixels.
	AvgConnectedness float64

	members map[image.Point]struct{}
}

// NewCluster builds a cluster from pixels whose Connectedness is already
// set. The centre is the connectedness-weighted centroid; when every pixel
// is isolated it falls back to the plain mean.
func NewCluster(pixels []*Pixel) *Cluster {
	c := &Cluster{
		Pixels:  pixels,
		members: make(map[image.Point]struct{}, len(pixels)),
	}
	if len(pixels) == 0 {
		return c
	}

	c.MinX, c.MinY = pixels[0].X, pixels[0].Y
	c.MaxX, c.MaxY = pixels[0].X, pixels[0].Y

	var sumX, sumY, weightedX, weightedY float64
	totalConnectedness := 0

	for _, p := range pixels {
		c.members[p.Point()] = struct{}{}

		c.MinX = min(c.MinX, p.X)
		c.MinY = min(c.MinY, p.Y)
		c.MaxX = max(c.MaxX, p.X)
		c.MaxY = max(c.MaxY, p.Y)

		sumX += float64(p.X)
		sumY += float64(p.Y)
		weightedX += float64(p.X * p.Connectedness)
		weightedY += float64(p.Y * p.Connectedness)
		totalConnectedness += p.Connectedness
	}

	n := float64(len(pixels))
	c.AvgConnectedness = float64(totalConnectedness) / n

	if totalConnectedness > 0 {
		c.CenterX = weightedX / float64(totalConnectedness)
		c.CenterY = weightedY / float64(totalConnectedness)
	} else {
		c.CenterX = sumX / n
		c.CenterY = sumY / n
	}

	return c
}

// Size returns the number of member pixels.
func (c *Cluster) Size() int { return len(c.Pixels) }

// Contains reports whether (x, y) is a member pixel.
func (c *Cluster) Contains(x, y int) bool {
	_, ok := c.members[image.Point{X: x, Y: y}]
	return ok
}

// Width returns the bounding box width (MaxX - MinX).
func (c *Cluster) Width() int { return c.MaxX - c.MinX }

// Height returns the bounding box height (MaxY - MinY).
func (c *Cluster) Height() int { return c.MaxY - c.MinY }

// AspectRatio returns (width+1)/(height+1).
func (c *Cluster) AspectRatio() float64 {
	return float64(c.Width()+1) / float64(c.Height()+1)
}

// Density returns the member count divided by the area of a circle with
// radius (width+height)/4. A zero-area box counts as area 1.
func (c *Cluster) Density() float64 {
	r := float64(c.Width()+c.Height()) / 4
	area := math.Pi * r * r
	if area <= 0 {
		area = 1
	}
	return float64(c.Size()) / area
}

// ScaledMinConnectedness is the connectedness a cluster of the given size
// must reach. Larger clusters are held to a higher bar.
func ScaledMinConnectedness(size, minShotDimension int) float64 {
	scaled := MinConnectedness + float64(size-minShotDimension)*MinConnectednessFactor
	return math.Min(scaled, MaxConnectednessScale)
}

// rejectReason returns why the cluster cannot be a shot, or "" when it is
// plausible.
func (c *Cluster) rejectReason(minShotDimension int) string {
	switch {
	case c.Size() < minShotDimension:
		return "too few pixels"
	case c.AvgConnectedness < ScaledMinConnectedness(c.Size(), minShotDimension):
		return "low connectedness"
	case c.AspectRatio() < MinAspectRatio || c.AspectRatio() > MaxAspectRatio:
		return "aspect ratio"
	case c.Density() < MinDensity:
		return "low density"
	}
	return ""
}

// BuildClusters groups candidate pixels into 8-connected regions with an
// iterative flood fill and keeps the regions that look like a laser dot.
// Connectedness is written into the candidate pixels as a side effect.
//
// On a noisy frame (more than ExcessivePixelCutoff candidates) the fill stops
// once more than ExcessivePixelRegionCount regions exist; pixels not yet
// reached are dropped for this frame.
func BuildClusters(candidates *PixelSet, minShotDimension int) []*Cluster {
	if candidates == nil || candidates.Len() == 0 {
		return nil
	}

	regionOf := make(map[image.Point]int, candidates.Len())
	var regions [][]*Pixel
	noisy := candidates.Len() > ExcessivePixelCutoff

	for _, seed := range candidates.Pixels() {
		if _, assigned := regionOf[seed.Point()]; assigned {
			continue
		}
		if noisy && len(regions) > ExcessivePixelRegionCount {
			log.Debug().
				Int("candidates", candidates.Len()).
				Int("regions", len(regions)).
				Msg("Excessive candidate pixels, stopped growing regions")
			break
		}

		id := len(regions)
		regionOf[seed.Point()] = id
		stack := []*Pixel{seed}
		var members []*Pixel

		for len(stack) > 0 {
			p := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			members = append(members, p)

			connectedness := 0
			for _, off := range neighbours {
				n, ok := candidates.Get(p.X+off.X, p.Y+off.Y)
				if !ok {
					continue
				}
				connectedness++
				if _, assigned := regionOf[n.Point()]; !assigned {
					regionOf[n.Point()] = id
					stack = append(stack, n)
				}
			}
			p.Connectedness = connectedness
		}

		regions = append(regions, members)
	}

	var clusters []*Cluster
	for _, members := range regions {
		for _, p := range members {
			delete(regionOf, p.Point())
		}

		c := NewCluster(members)
		if reason := c.rejectReason(minShotDimension); reason != "" {
			log.Debug().
				Str("reason", reason).
				Int("size", c.Size()).
				Float64("x", c.CenterX).
				Float64("y", c.CenterY).
				Float64("connectedness", c.AvgConnectedness).
				Float64("aspect", c.AspectRatio()).
				Float64("density", c.Density()).
				Msg("Cluster rejected")
			continue
		}
		clusters = append(clusters, c)
	}

	sort.SliceStable(clusters, func(i, j int) bool {
		return clusters[i].Size() > clusters[j].Size()
	})

	return clusters
}
