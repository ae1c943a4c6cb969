package qr

import (
	"bytes"
	"errors"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	pkgerrors "github.com/angelmondragon/qrcatalog-backend/pkg/errors"
	"github.com/makiuchi-d/gozxing"
	zxingqr "github.com/makiuchi-d/gozxing/qrcode"
)

// Decode returns the payload of the first QR symbol found in data. Detection runs on the
// image as captured, then once more on a grayscale copy with the try-harder hint.
// It fails with NotFound when no symbol is present and DecodeFailure when the image or
// symbol cannot be read.
func (c *Codec) Decode(data []byte) (string, error) {
	if len(data) == 0 {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "image is empty")
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDecodeFailure, err, "unsupported or corrupt image")
	}

	text, firstErr := detect(img, nil)
	if firstErr == nil {
		return text, nil
	}

	text, err = detect(toGray(img), map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_TRY_HARDER: true,
	})
	if err == nil {
		return text, nil
	}

	if isNotFound(firstErr) && isNotFound(err) {
		return "", pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "no qr code detected in image")
	}
	return "", pkgerrors.Wrap(pkgerrors.CodeDecodeFailure, err, "qr code could not be decoded")
}

func detect(img image.Image, hints map[gozxing.DecodeHintType]interface{}) (string, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", err
	}
	result, err := zxingqr.NewQRCodeReader().Decode(bmp, hints)
	if err != nil {
		return "", err
	}
	return result.GetText(), nil
}

func toGray(img image.Image) *image.Gray {
	bounds := img.Bounds()
	gray := image.NewGray(bounds)
	draw.Draw(gray, bounds, img, bounds.Min, draw.Src)
	return gray
}

func isNotFound(err error) bool {
	var nf gozxing.NotFoundException
	return errors.As(err, &nf)
}
