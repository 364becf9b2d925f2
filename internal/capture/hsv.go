package capture

import (
	"errors"
	"fmt"

	"gocv.io/x/gocv"

	"github.com/ayusman/dryfire/internal/frame"
)

// ErrUnsupportedMat is returned for matrices that are not 8-bit, 3-channel.
var ErrUnsupportedMat = errors.New("expected an 8-bit 3-channel frame")

// ToHSV converts a BGR frame from the camera into an HSV frame.Buffer. The
// returned buffer owns its pixels; mat can be closed afterwards.
//
// Algorithm:
// 1. Reject empty or non 3-channel input
// 2. Convert BGR to HSV (hue 0-179, OpenCV scale)
// 3. Copy the HSV bytes out of the Mat
func ToHSV(mat *gocv.Mat) (*frame.Buffer, error) {
	if mat == nil || mat.Empty() {
		return nil, frame.ErrInvalidSize
	}
	if mat.Type() != gocv.MatTypeCV8UC3 {
		return nil, fmt.Errorf("%w: got type %v", ErrUnsupportedMat, mat.Type())
	}

	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(*mat, &hsv, gocv.ColorBGRToHSV)

	return frame.NewBufferFromBytes(hsv.Cols(), hsv.Rows(), hsv.ToBytes())
}

// FromHSV renders an HSV buffer back into a BGR Mat, for playback through a
// MockCamera and for debug streams. The caller must close the returned Mat.
func FromHSV(buf *frame.Buffer) (gocv.Mat, error) {
	hsv, err := gocv.NewMatFromBytes(buf.Rows(), buf.Cols(), gocv.MatTypeCV8UC3, buf.Bytes())
	if err != nil {
		return gocv.NewMat(), err
	}
	defer hsv.Close()

	bgr := gocv.NewMat()
	gocv.CvtColor(hsv, &bgr, gocv.ColorHSVToBGR)
	return bgr, nil
}
