package api

import (
	"errors"
	"mime"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/erazemk/hsefield/internal/imaging"
)

// PhotosHandler normalizes uploaded photos into data URIs the client embeds
// in report payloads.
type PhotosHandler struct {
	Log logrus.FieldLogger
}

// Upload handles POST /api/photos. It accepts a multipart form with a
// "photo" file or a raw image body.
func (h *PhotosHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, imaging.MaxUploadSize)

	var (
		uri string
		err error
	)
	if isMultipart(r) {
		if err := r.ParseMultipartForm(imaging.MaxUploadSize); err != nil {
			jsonError(w, http.StatusBadRequest, "file too large or invalid multipart form")
			return
		}
		file, _, ferr := r.FormFile("photo")
		if ferr != nil {
			jsonError(w, http.StatusBadRequest, "photo file required")
			return
		}
		defer file.Close()
		uri, err = imaging.Normalize(file)
	} else {
		uri, err = imaging.Normalize(r.Body)
	}

	if err != nil {
		if errors.Is(err, imaging.ErrImage) {
			h.Log.WithError(err).Warn("photo rejected")
			jsonError(w, http.StatusUnprocessableEntity, "photo could not be processed")
			return
		}
		h.Log.WithError(err).Error("failed to process photo")
		jsonError(w, http.StatusInternalServerError, "failed to process photo")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"dataUri": uri})
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && strings.HasPrefix(mediaType, "multipart/")
}
