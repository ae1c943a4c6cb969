// Package qr renders catalog references as QR images and recovers payloads from captured pictures.
//
// Two payload kinds exist. A dynamic payload is a JSON record rendered at request time from the
// current product document; a static payload is a bare identifier or resolvable URL that never
// changes once printed. The codec does not tag which kind it carries; consumers classify the
// decoded text themselves.
package qr

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/angelmondragon/qrcatalog-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/qrcatalog-backend/pkg/errors"
	goqrcode "github.com/skip2/go-qrcode"
)

const (
	// ModulePixels is the edge length of one QR module in rendered images.
	ModulePixels = 10
	// QuietZone is the border width in modules; go-qrcode always renders four.
	QuietZone = 4

	dataURIPrefix = "data:image/png;base64,"
)

// Codec encodes and decodes catalog QR symbols.
type Codec struct {
	baseURL string
	level   goqrcode.RecoveryLevel
}

func NewCodec(cfg config.QRConfig) *Codec {
	return &Codec{
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.PublicBaseURL), "/"),
		level:   goqrcode.Low,
	}
}

// CanonicalJSON serializes v the way dynamic payloads are embedded: map keys sorted,
// no HTML escaping, no trailing newline.
func CanonicalJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "payload is not serializable")
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// EncodeDynamic renders the canonical JSON of payload as a PNG.
func (c *Codec) EncodeDynamic(payload any) ([]byte, error) {
	content, err := CanonicalJSON(payload)
	if err != nil {
		return nil, err
	}
	return c.render(string(content))
}

// EncodeStatic renders a bare identifier as a PNG.
func (c *Codec) EncodeStatic(identifier string) ([]byte, error) {
	if strings.TrimSpace(identifier) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "identifier is required")
	}
	return c.render(identifier)
}

// ProductURL is the resolvable address printed into static product codes.
func (c *Codec) ProductURL(storeID, productID string) string {
	return fmt.Sprintf("%s/store/%s/product/%s", c.baseURL, storeID, productID)
}

// EncodeProductURL renders ProductURL and returns it as a PNG data URI.
func (c *Codec) EncodeProductURL(storeID, productID string) (string, error) {
	if strings.TrimSpace(storeID) == "" || strings.TrimSpace(productID) == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "store id and product id are required")
	}
	png, err := c.render(c.ProductURL(storeID, productID))
	if err != nil {
		return "", err
	}
	return DataURI(png), nil
}

// Matrix returns the module grid for content, quiet zone included.
func (c *Codec) Matrix(content string) ([][]bool, error) {
	code, err := c.symbol(content)
	if err != nil {
		return nil, err
	}
	return code.Bitmap(), nil
}

// DataURI wraps PNG bytes for inline embedding.
func DataURI(png []byte) string {
	return dataURIPrefix + base64.StdEncoding.EncodeToString(png)
}

// IsDataURI reports whether value is already an inline PNG.
func IsDataURI(value string) bool {
	return strings.HasPrefix(value, "data:")
}

func (c *Codec) render(content string) ([]byte, error) {
	code, err := c.symbol(content)
	if err != nil {
		return nil, err
	}
	png, err := code.PNG(-ModulePixels)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "render qr png")
	}
	return png, nil
}

func (c *Codec) symbol(content string) (*goqrcode.QRCode, error) {
	if content == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "qr content is required")
	}
	code, err := goqrcode.New(content, c.level)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "content does not fit a single qr symbol")
	}
	return code, nil
}
