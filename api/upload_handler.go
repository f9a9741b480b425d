package api

import (
	"errors"
	"net/http"

	"github.com/rpupo63/portfolio-cms/errs"
	"github.com/rpupo63/portfolio-cms/storage"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const uploadFormField = "image"

type uploadHandler struct {
	responder Responder
	logger    zerolog.Logger
	blobs     storage.BlobStore
	maxBytes  int64
}

func newUploadHandler(blobs storage.BlobStore, maxBytes int64) uploadHandler {
	logger := log.With().Str("handlerName", "uploadHandler").Logger()

	return uploadHandler{
		responder: NewResponder(logger),
		logger:    logger,
		blobs:     blobs,
		maxBytes:  maxBytes,
	}
}

// uploadImage stores an image and returns its public URL
// @Summary Upload image
// @Tags Projects
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param image formData file true "Image file"
// @Success 200 {object} UploadResponse
// @Failure 400 {object} ErrorResponse "Bad Request - No file or not an image"
// @Failure 413 {object} ErrorResponse
// @Router /projects/upload [post]
func (h uploadHandler) uploadImage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// room for the multipart framing around the file
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+1<<20)

		if err := r.ParseMultipartForm(h.maxBytes); err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				h.responder.WriteError(w, errs.NewMaxBodySizeExceededError(h.maxBytes))
				return
			}
			h.responder.WriteError(w, errs.NewMalformedPayloadError("multipart", err))
			return
		}
		defer r.MultipartForm.RemoveAll()

		files := r.MultipartForm.File[uploadFormField]
		if len(files) == 0 {
			h.responder.WriteError(w, errs.NewMissingRequiredFieldError(uploadFormField))
			return
		}

		url, err := h.blobs.Upload(r.Context(), files[0])
		if err != nil {
			switch {
			case errors.Is(err, storage.ErrTooLarge):
				h.responder.WriteError(w, errs.NewMaxBodySizeExceededError(h.maxBytes))
			case errors.Is(err, storage.ErrNotAnImage):
				h.responder.WriteError(w, errs.NewInvalidFieldError(uploadFormField, "only image files are allowed"))
			default:
				h.responder.WriteError(w, errs.NewStorageError("upload image", err))
			}
			return
		}

		h.logger.Info().Str("url", url).Int64("size", files[0].Size).Msg("image uploaded")
		h.responder.WriteJSON(w, UploadResponse{URL: url})
	}
}
