package process

import (
	"errors"
	"image"
	"os"

	"gocv.io/x/gocv"
)

// ErrEmptyImage is returned when there are no pixels to encode.
var ErrEmptyImage = errors.New("empty image")

// EncodeJPEG returns img as JPEG bytes.
func EncodeJPEG(img gocv.Mat) ([]byte, error) {
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, img)
	if err != nil {
		return nil, err
	}
	defer buf.Close()
	b := buf.GetBytes()
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

// WriteThumb writes a JPEG of img scaled to fit within size, preserving aspect.
func WriteThumb(path string, img gocv.Mat, size image.Point) error {
	crop := FitRect(image.Rect(0, 0, img.Cols(), img.Rows()), image.Rectangle{Max: size})
	if crop.Empty() {
		return ErrEmptyImage
	}
	region := img.Region(crop)
	defer region.Close()

	tmat := gocv.NewMat()
	defer tmat.Close()
	gocv.Resize(region, &tmat, size, 0, 0, gocv.InterpolationArea)

	jpeg, err := EncodeJPEG(tmat)
	if err != nil {
		return err
	}
	return os.WriteFile(path, jpeg, 0644)
}
