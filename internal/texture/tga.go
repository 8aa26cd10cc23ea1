// Package texture loads source textures for atlas compositing.
package texture

import (
	"errors"
	"fmt"
	"image"
)

// TGA image types.
const (
	TGATypeTrueColor    = 2
	TGATypeGray         = 3
	TGATypeTrueColorRLE = 10
	TGATypeGrayRLE      = 11
)

var ErrTGATruncated = errors.New("tga: data truncated")

// DecodeTGA decodes an uncompressed or RLE compressed true-colour or
// grayscale TGA file.
func DecodeTGA(data []byte) (*image.NRGBA, error) {
	if len(data) < 18 {
		return nil, ErrTGATruncated
	}

	idLength := int(data[0])
	colorMapType := data[1]
	imageType := data[2]
	width := int(data[12]) | int(data[13])<<8
	height := int(data[14]) | int(data[15])<<8
	bpp := int(data[16])
	descriptor := data[17]

	if colorMapType != 0 {
		return nil, fmt.Errorf("tga: color-mapped images not supported")
	}
	gray := imageType == TGATypeGray || imageType == TGATypeGrayRLE
	switch imageType {
	case TGATypeTrueColor, TGATypeTrueColorRLE:
		if bpp != 24 && bpp != 32 {
			return nil, fmt.Errorf("tga: unsupported bit depth %d", bpp)
		}
	case TGATypeGray, TGATypeGrayRLE:
		if bpp != 8 && bpp != 16 {
			return nil, fmt.Errorf("tga: unsupported grayscale bit depth %d", bpp)
		}
	default:
		return nil, fmt.Errorf("tga: unsupported image type %d", imageType)
	}
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("tga: empty image %dx%d", width, height)
	}

	offset := 18 + idLength
	if offset > len(data) {
		return nil, ErrTGATruncated
	}

	d := &tgaDecoder{
		img:         image.NewNRGBA(image.Rect(0, 0, width, height)),
		src:         data[offset:],
		width:       width,
		height:      height,
		bytesPP:     bpp / 8,
		gray:        gray,
		topToBottom: descriptor&0x20 != 0,
		rightToLeft: descriptor&0x10 != 0,
	}

	var err error
	if imageType == TGATypeTrueColorRLE || imageType == TGATypeGrayRLE {
		err = d.decodeRLE()
	} else {
		err = d.decodeRaw()
	}
	if err != nil {
		return nil, err
	}
	return d.img, nil
}

type tgaDecoder struct {
	img           *image.NRGBA
	src           []byte
	pos           int
	width, height int
	bytesPP       int
	gray          bool
	topToBottom   bool
	rightToLeft   bool
}

// pixel reads one pixel at the current position as RGBA.
func (d *tgaDecoder) pixel() ([4]byte, bool) {
	if d.pos+d.bytesPP > len(d.src) {
		return [4]byte{}, false
	}
	p := d.src[d.pos : d.pos+d.bytesPP]
	d.pos += d.bytesPP

	if d.gray {
		a := byte(255)
		if d.bytesPP == 2 {
			a = p[1]
		}
		return [4]byte{p[0], p[0], p[0], a}, true
	}
	a := byte(255)
	if d.bytesPP == 4 {
		a = p[3]
	}
	// stored as BGR(A)
	return [4]byte{p[2], p[1], p[0], a}, true
}

// set writes the i-th pixel in file order.
func (d *tgaDecoder) set(i int, c [4]byte) {
	x, y := i%d.width, i/d.width
	if d.rightToLeft {
		x = d.width - 1 - x
	}
	if !d.topToBottom {
		y = d.height - 1 - y
	}
	copy(d.img.Pix[d.img.PixOffset(x, y):], c[:])
}

func (d *tgaDecoder) decodeRaw() error {
	n := d.width * d.height
	if len(d.src) < n*d.bytesPP {
		return ErrTGATruncated
	}
	for i := 0; i < n; i++ {
		c, _ := d.pixel()
		d.set(i, c)
	}
	return nil
}

func (d *tgaDecoder) decodeRLE() error {
	n := d.width * d.height
	for i := 0; i < n; {
		if d.pos >= len(d.src) {
			return ErrTGATruncated
		}
		packet := d.src[d.pos]
		d.pos++
		count := int(packet&0x7F) + 1

		if packet&0x80 != 0 {
			// run of one repeated pixel
			c, ok := d.pixel()
			if !ok {
				return ErrTGATruncated
			}
			for j := 0; j < count && i < n; j++ {
				d.set(i, c)
				i++
			}
			continue
		}
		for j := 0; j < count && i < n; j++ {
			c, ok := d.pixel()
			if !ok {
				return ErrTGATruncated
			}
			d.set(i, c)
			i++
		}
	}
	return nil
}
