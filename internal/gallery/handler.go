package gallery

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/lanternfly/gallery/internal/response"
)

// FileField is the multipart field carrying the image.
const FileField = "file"

const (
	// multipartOverhead is the slack allowed on top of the file ceiling for
	// boundaries, part headers and other form fields.
	multipartOverhead = 1 << 20
	// multipartMemory is how much of the form is kept in memory before
	// spilling to temporary files.
	multipartMemory = 32 << 20
)

// Handler holds HTTP handlers for the gallery endpoints.
type Handler struct {
	svc *Service
	log zerolog.Logger
}

// NewHandler creates a new gallery Handler.
func NewHandler(svc *Service, log zerolog.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

type uploadData struct {
	OK  bool   `json:"ok" example:"true"`
	URL string `json:"url" example:"https://acct.blob.core.windows.net/lanternfly-images/20250101T120000-a.png"`
}

type galleryData struct {
	OK      bool     `json:"ok" example:"true"`
	Gallery []string `json:"gallery"`
}

// Upload godoc
//
//	@Summary		Upload an image
//	@Description	Store one image under a timestamped name and return its public URL.
//	@Tags			gallery
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			file	formData	file	true	"Image (jpeg, png, gif or webp, at most 10 MiB)"
//	@Success		200		{object}	uploadData
//	@Failure		400		{object}	response.Envelope
//	@Failure		413		{object}	response.Envelope
//	@Failure		415		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/upload [post]
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.svc.MaxSize()+multipartOverhead)

	req, cleanup, err := h.readForm(r)
	defer cleanup()
	if err != nil {
		h.fail(w, r, err)
		return
	}

	obj, err := h.svc.Upload(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	response.OK(w, uploadData{OK: true, URL: obj.URL})
}

// Gallery godoc
//
//	@Summary		List gallery
//	@Description	Return the public URL of every stored image, in store order.
//	@Tags			gallery
//	@Produce		json
//	@Success		200	{object}	galleryData
//	@Failure		500	{object}	response.Envelope
//	@Router			/gallery [get]
func (h *Handler) Gallery(w http.ResponseWriter, r *http.Request) {
	urls, err := h.svc.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	response.OK(w, galleryData{OK: true, Gallery: urls})
}

// readForm parses the multipart body and extracts the file part. The
// returned cleanup removes any temporary files the parser created.
func (h *Handler) readForm(r *http.Request) (UploadRequest, func(), error) {
	noop := func() {}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) || r.ContentLength > h.svc.MaxSize()+multipartOverhead {
			return UploadRequest{}, noop, h.svc.tooLarge()
		}
		// Not multipart, or no parts at all: there is no file to speak of.
		return UploadRequest{}, noop, ErrMissingFile
	}

	form := r.MultipartForm
	cleanup := func() { _ = form.RemoveAll() }

	files := form.File[FileField]
	if len(files) == 0 {
		return UploadRequest{}, cleanup, ErrMissingFile
	}

	fh := files[0]
	f, err := fh.Open()
	if err != nil {
		return UploadRequest{}, cleanup, err
	}

	req := UploadRequest{
		File:        f,
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Parts:       len(files),
	}
	return req, func() {
		_ = f.Close()
		cleanup()
	}, nil
}

// fail writes the error envelope. Storage failures are logged as incidents;
// validation failures only at debug level.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusCode(err)
	evt := h.log.Debug()
	if !IsClientError(err) {
		evt = h.log.Error()
	}
	evt.Err(err).
		Str("request_id", middleware.GetReqID(r.Context())).
		Str("path", r.URL.Path).
		Int("status", status).
		Msg("request failed")

	response.Error(w, status, err.Error())
}
