// internal/escpos/raster.go
package escpos

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	xdraw "golang.org/x/image/draw"

	"pos-print-bridge/internal/fallback"
	"pos-print-bridge/internal/model"
)

// RasterMode names the technique used to turn a logo into printer dots
type RasterMode string

const (
	RasterThreshold RasterMode = "threshold"
	RasterDither    RasterMode = "dither"
	RasterColumn    RasterMode = "bitImageColumn"
)

const (
	// MaxRasterHeight is the tallest image a single GS v 0 block can address
	MaxRasterHeight = 2303

	// MaxImageSide and MaxImagePixels bound a logo before its pixels are decoded
	MaxImageSide   = 8192
	MaxImagePixels = 4096 * 4096
)

var (
	ErrImageTooTall  = errors.New("image too tall for raster block")
	ErrBlankImage    = errors.New("image has no printable dots")
	ErrInvalidWidth  = errors.New("image width must be a positive multiple of 8")
	ErrUnknownFormat = errors.New("unsupported image format")
	ErrImageTooLarge = errors.New("image dimensions too large")
)

// Raster is an encoded image command ready for the printer
type Raster struct {
	Mode   RasterMode
	Width  int
	Height int
	Data   []byte
}

func (r *Raster) clone() *Raster {
	if r == nil {
		return nil
	}
	c := *r
	c.Data = append([]byte(nil), r.Data...)
	return &c
}

// RasterRequest is the input of a raster strategy
type RasterRequest struct {
	Image image.Image
	Width int
}

// DecodeImage decodes PNG or JPEG bytes. The header is checked first so an
// oversized image fails before its pixels are allocated.
func DecodeImage(data []byte) (image.Image, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, decodeError(fmt.Errorf("%w: %v", ErrUnknownFormat, err))
	}
	if format != "png" && format != "jpeg" {
		return nil, decodeError(fmt.Errorf("%w: %s", ErrUnknownFormat, format))
	}
	if cfg.Width <= 0 || cfg.Height <= 0 ||
		cfg.Width > MaxImageSide || cfg.Height > MaxImageSide ||
		cfg.Width*cfg.Height > MaxImagePixels {
		return nil, decodeError(fmt.Errorf("%w: %dx%d", ErrImageTooLarge, cfg.Width, cfg.Height))
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, decodeError(fmt.Errorf("%w: %v", ErrUnknownFormat, err))
	}
	return img, nil
}

func decodeError(err error) error {
	return &model.ImageError{Stage: "decode", Err: err}
}

// RasterStrategies returns the raster techniques in preference order
func RasterStrategies() *fallback.Chain[RasterRequest, *Raster] {
	return fallback.NewChain(
		fallback.Strategy[RasterRequest, *Raster]{
			Name: string(RasterThreshold),
			Try: func(_ context.Context, req RasterRequest) (*Raster, error) {
				return RasterizeThreshold(req.Image, req.Width)
			},
		},
		fallback.Strategy[RasterRequest, *Raster]{
			Name: string(RasterDither),
			Try: func(_ context.Context, req RasterRequest) (*Raster, error) {
				return RasterizeDither(req.Image, req.Width)
			},
		},
		fallback.Strategy[RasterRequest, *Raster]{
			Name: string(RasterColumn),
			Try: func(_ context.Context, req RasterRequest) (*Raster, error) {
				return RasterizeColumn(req.Image, req.Width)
			},
		},
	)
}

// RasterizeThreshold converts the image with a fixed mid-gray threshold
func RasterizeThreshold(img image.Image, width int) (*Raster, error) {
	gray, err := scaleToGray(img, width)
	if err != nil {
		return nil, err
	}
	if gray.Bounds().Dy() > MaxRasterHeight {
		return nil, fmt.Errorf("%w: %d dots", ErrImageTooTall, gray.Bounds().Dy())
	}

	pixels, black := threshold(gray)
	if black == 0 {
		return nil, ErrBlankImage
	}

	return &Raster{
		Mode:   RasterThreshold,
		Width:  width,
		Height: gray.Bounds().Dy(),
		Data:   rasterCommand(pixels, width, gray.Bounds().Dy()),
	}, nil
}

// RasterizeDither converts the image with Floyd-Steinberg error diffusion
func RasterizeDither(img image.Image, width int) (*Raster, error) {
	gray, err := scaleToGray(img, width)
	if err != nil {
		return nil, err
	}
	if gray.Bounds().Dy() > MaxRasterHeight {
		return nil, fmt.Errorf("%w: %d dots", ErrImageTooTall, gray.Bounds().Dy())
	}

	pixels := ditherFloydSteinberg(gray)
	return &Raster{
		Mode:   RasterDither,
		Width:  width,
		Height: gray.Bounds().Dy(),
		Data:   rasterCommand(pixels, width, gray.Bounds().Dy()),
	}, nil
}

// RasterizeColumn converts the image to 24-dot column bit image bands
func RasterizeColumn(img image.Image, width int) (*Raster, error) {
	gray, err := scaleToGray(img, width)
	if err != nil {
		return nil, err
	}

	height := gray.Bounds().Dy()
	pixels := ditherFloydSteinberg(gray)

	var buf bytes.Buffer
	buf.Write(ESC_POS_COMMANDS.LINE_SPACING_24)
	for band := 0; band < height; band += 24 {
		buf.Write(ESC_POS_COMMANDS.BIT_IMAGE_COLUMN)
		buf.WriteByte(byte(width % 256))
		buf.WriteByte(byte(width / 256))
		for x := 0; x < width; x++ {
			for slice := 0; slice < 3; slice++ {
				var b byte
				for bit := 0; bit < 8; bit++ {
					y := band + slice*8 + bit
					if y < height && pixels[y*width+x] == 1 {
						b |= 0x80 >> bit
					}
				}
				buf.WriteByte(b)
			}
		}
		buf.Write(ESC_POS_COMMANDS.LINE_FEED)
	}
	buf.Write(ESC_POS_COMMANDS.LINE_SPACING_DEFAULT)

	return &Raster{
		Mode:   RasterColumn,
		Width:  width,
		Height: height,
		Data:   buf.Bytes(),
	}, nil
}

// scaleToGray scales the image to width dots keeping its aspect ratio,
// composited over white so transparent areas do not print.
func scaleToGray(img image.Image, width int) (*image.Gray, error) {
	if img == nil {
		return nil, errors.New("nil image")
	}
	if width <= 0 || width%8 != 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidWidth, width)
	}

	src := img.Bounds()
	if src.Dx() == 0 || src.Dy() == 0 {
		return nil, errors.New("empty image")
	}
	height := (src.Dy()*width + src.Dx()/2) / src.Dx()
	if height < 1 {
		height = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.Draw(dst, dst.Bounds(), image.White, image.Point{}, xdraw.Src)
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, src, xdraw.Over, nil)

	gray := image.NewGray(dst.Bounds())
	xdraw.Draw(gray, gray.Bounds(), dst, dst.Bounds().Min, xdraw.Src)
	return gray, nil
}

// threshold returns row-major pixels (1 = black) and the black dot count
func threshold(gray *image.Gray) ([]byte, int) {
	bounds := gray.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	pixels := make([]byte, width*height)

	black := 0
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if gray.GrayAt(bounds.Min.X+x, bounds.Min.Y+y).Y < 128 {
				pixels[y*width+x] = 1
				black++
			}
		}
	}
	return pixels, black
}

// ditherFloydSteinberg returns row-major pixels (1 = black) after error diffusion
func ditherFloydSteinberg(gray *image.Gray) []byte {
	bounds := gray.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	pixels := make([]byte, width*height)

	vals := make([]int, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			vals[y*width+x] = int(gray.GrayAt(bounds.Min.X+x, bounds.Min.Y+y).Y)
		}
	}

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			old := vals[y*width+x]
			level := 255
			if old < 128 {
				level = 0
				pixels[y*width+x] = 1
			}
			diff := old - level

			if x+1 < width {
				vals[y*width+x+1] += diff * 7 / 16
			}
			if y+1 < height {
				if x > 0 {
					vals[(y+1)*width+x-1] += diff * 3 / 16
				}
				vals[(y+1)*width+x] += diff * 5 / 16
				if x+1 < width {
					vals[(y+1)*width+x+1] += diff / 16
				}
			}
		}
	}
	return pixels
}

// rasterCommand packs pixels into a single GS v 0 block. width is a multiple of 8.
func rasterCommand(pixels []byte, width, height int) []byte {
	widthBytes := width / 8
	out := make([]byte, 0, len(ESC_POS_COMMANDS.RASTER_IMAGE)+5+widthBytes*height)
	out = append(out, ESC_POS_COMMANDS.RASTER_IMAGE...)
	out = append(out,
		0x00, // normal density
		byte(widthBytes%256), byte(widthBytes/256),
		byte(height%256), byte(height/256),
	)

	for y := 0; y < height; y++ {
		row := pixels[y*width : (y+1)*width]
		for bx := 0; bx < widthBytes; bx++ {
			var b byte
			for bit := 0; bit < 8; bit++ {
				if row[bx*8+bit] == 1 {
					b |= 0x80 >> bit
				}
			}
			out = append(out, b)
		}
	}
	return out
}
