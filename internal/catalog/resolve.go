package catalog

import (
	"encoding/json"
	"net/url"
	"strings"

	"github.com/angelmondragon/qrcatalog-backend/pkg/docstore"
	pkgerrors "github.com/angelmondragon/qrcatalog-backend/pkg/errors"
)

// ReferenceKind classifies decoded QR text.
type ReferenceKind string

const (
	ReferenceDynamic    ReferenceKind = "dynamic"
	ReferenceProductURL ReferenceKind = "product_url"
	ReferenceQRImage    ReferenceKind = "qr_image"
	ReferenceIdentifier ReferenceKind = "identifier"
)

// ScanReference is what a decoded code points at. Identifier references carry only ProductID.
type ScanReference struct {
	Kind      ReferenceKind `json:"kind"`
	StoreID   string        `json:"store_id,omitempty"`
	ProductID string        `json:"product_id"`
	Payload   *QRPayload    `json:"payload,omitempty"`
}

// ResolveScan classifies text produced by any of the three payload conventions: a dynamic
// JSON record, a /store/{s}/product/{p} URL (absolute or not) or QR image path, or a bare id.
func ResolveScan(text string) (*ScanReference, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "scan text is empty")
	}

	if strings.HasPrefix(text, "{") {
		var payload QRPayload
		if err := json.Unmarshal([]byte(text), &payload); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "scan payload is not valid json")
		}
		if payload.ID == "" || payload.StoreID == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "scan payload missing id or store_id")
		}
		return &ScanReference{Kind: ReferenceDynamic, StoreID: payload.StoreID, ProductID: payload.ID, Payload: &payload}, nil
	}

	path := text
	if u, err := url.Parse(text); err == nil && u.Scheme != "" {
		path = u.Path
	}
	if strings.Contains(path, "/") {
		segments := strings.Split(strings.Trim(path, "/"), "/")
		if ref := matchPath(segments); ref != nil {
			return ref, nil
		}
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unrecognized scan reference").
			WithDetails(map[string]any{"text": text})
	}

	if err := docstore.ValidateKey(text); err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unrecognized scan reference").
			WithDetails(map[string]any{"text": text})
	}
	return &ScanReference{Kind: ReferenceIdentifier, ProductID: text}, nil
}

func matchPath(segments []string) *ScanReference {
	var kind ReferenceKind
	var storeID, productID string
	switch {
	case len(segments) >= 4 && segments[len(segments)-4] == "store" && segments[len(segments)-2] == "product":
		kind, storeID, productID = ReferenceProductURL, segments[len(segments)-3], segments[len(segments)-1]
	case len(segments) == 4 && segments[0] == "api" && segments[1] == "qr":
		kind, storeID, productID = ReferenceQRImage, segments[2], segments[3]
	case len(segments) == 5 && segments[0] == "api" && segments[1] == "v1" && segments[2] == "qr":
		kind, storeID, productID = ReferenceQRImage, segments[3], segments[4]
	default:
		return nil
	}
	if docstore.ValidateKey(storeID) != nil || docstore.ValidateKey(productID) != nil {
		return nil
	}
	return &ScanReference{Kind: kind, StoreID: storeID, ProductID: productID}
}
