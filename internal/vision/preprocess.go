package vision

import (
	"image"

	"golang.org/x/image/draw"
)

// imageToFloat32CHW converts an image to CHW float32 format with normalization:
//
//	pixel = (pixel - mean) / std
func imageToFloat32CHW(img image.Image, targetW, targetH int, mean, std [3]float32) []float32 {
	resized := resizeImage(img, targetW, targetH)
	w, h := targetW, targetH
	data := make([]float32, 3*h*w)

	for y := 0; y < h; y++ {
		row := resized.Pix[y*resized.Stride:]
		for x := 0; x < w; x++ {
			p := row[x*4 : x*4+3]
			idx := y*w + x
			data[0*h*w+idx] = (float32(p[0]) - mean[0]) / std[0] // R
			data[1*h*w+idx] = (float32(p[1]) - mean[1]) / std[1] // G
			data[2*h*w+idx] = (float32(p[2]) - mean[2]) / std[2] // B
		}
	}
	return data
}

// imageToGray resizes img and returns its luma plane as raw 0-255 floats.
func imageToGray(img image.Image, targetW, targetH int) []float32 {
	resized := resizeImage(img, targetW, targetH)
	data := make([]float32, targetW*targetH)
	for y := 0; y < targetH; y++ {
		row := resized.Pix[y*resized.Stride:]
		for x := 0; x < targetW; x++ {
			p := row[x*4 : x*4+3]
			data[y*targetW+x] = 0.299*float32(p[0]) + 0.587*float32(p[1]) + 0.114*float32(p[2])
		}
	}
	return data
}

func preprocessForObjects(img image.Image, targetW, targetH int) []float32 {
	return imageToFloat32CHW(img, targetW, targetH, [3]float32{0, 0, 0}, [3]float32{255, 255, 255})
}

func preprocessForFaces(img image.Image, targetW, targetH int) []float32 {
	return imageToFloat32CHW(img, targetW, targetH, [3]float32{127, 127, 127}, [3]float32{128, 128, 128})
}

// resizeImage scales img to the target size with bilinear interpolation.
func resizeImage(img image.Image, targetW, targetH int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, targetW, targetH))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

// cropBox extracts the region of bbox from img, clamped to the image bounds.
// It returns nil when the clamped region is empty.
func cropBox(img image.Image, bbox [4]float32) image.Image {
	r := image.Rect(int(bbox[0]), int(bbox[1]), int(bbox[2]), int(bbox[3])).Intersect(img.Bounds())
	if r.Empty() {
		return nil
	}
	crop := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(crop, crop.Bounds(), img, r.Min, draw.Src)
	return crop
}

// toRect converts float corners to an integer rectangle.
func toRect(bbox [4]float32) image.Rectangle {
	return image.Rect(int(bbox[0]), int(bbox[1]), int(bbox[2]), int(bbox[3]))
}
