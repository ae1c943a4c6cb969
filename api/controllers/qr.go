package controllers

import (
	"errors"
	"io"
	"net/http"

	"github.com/angelmondragon/qrcatalog-backend/api/responses"
	"github.com/angelmondragon/qrcatalog-backend/internal/catalog"
	pkgerrors "github.com/angelmondragon/qrcatalog-backend/pkg/errors"
	"github.com/angelmondragon/qrcatalog-backend/pkg/logger"
)

type qrDecoder interface {
	Decode(data []byte) (string, error)
}

// DecodeResponse is the decoded text plus, when recognizable, what it points at.
type DecodeResponse struct {
	Data      string                 `json:"data"`
	Reference *catalog.ScanReference `json:"reference"`
}

// QRImage renders the dynamic product QR code as a PNG.
func QRImage(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		storeID, err := pathParam(r, "storeId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := pathParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		png, err := svc.QRImage(r.Context(), storeID, productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WritePNG(w, png)
	}
}

// QRDecode reads the multipart "file" upload and returns the first QR symbol's text.
func QRDecode(decoder qrDecoder, maxBytes int64, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes+1<<10)
		if err := r.ParseMultipartForm(maxBytes); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "upload too large").WithDetails(map[string]any{"max_bytes": maxBytes}))
				return
			}
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid multipart upload"))
			return
		}
		defer func() { _ = r.MultipartForm.RemoveAll() }()

		file, _, err := r.FormFile("file")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "file is required"))
			return
		}
		defer file.Close()

		data, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read upload"))
			return
		}
		if int64(len(data)) > maxBytes {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "upload too large").WithDetails(map[string]any{"max_bytes": maxBytes}))
			return
		}

		text, err := decoder.Decode(data)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := DecodeResponse{Data: text}
		if ref, err := catalog.ResolveScan(text); err == nil {
			resp.Reference = ref
		}
		responses.WriteSuccess(w, resp)
	}
}
