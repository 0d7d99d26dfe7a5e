package web

import (
	"bufio"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/vbonduro/gallery/internal/domain"
	"github.com/vbonduro/gallery/internal/imagecodec"
	"github.com/vbonduro/gallery/internal/service"
	"github.com/vbonduro/gallery/internal/view"
)

// maxFormOverhead leaves room for the text fields and multipart framing on
// top of the largest accepted image.
const maxFormOverhead = 1 << 20

// sniffLen matches the amount of data net/http uses for content sniffing.
const sniffLen = 512

type photoListResponse struct {
	Photos []*domain.Photo `json:"photos"`
	Total  int             `json:"total"`
}

func (s *Server) handleListPhotos(w http.ResponseWriter, r *http.Request) {
	c, err := criteriaFromQuery(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	photos := s.service.Query(c)
	writeJSON(w, http.StatusOK, photoListResponse{Photos: photos, Total: len(photos)}, s.logger)
}

func criteriaFromQuery(r *http.Request) (view.Criteria, error) {
	q := r.URL.Query()
	c := view.Criteria{Search: q.Get("q")}

	c.Category = domain.CategoryAll
	if raw := q.Get("category"); raw != "" {
		f, err := domain.ParseFilter(raw)
		if err != nil {
			return view.Criteria{}, err
		}
		c.Category = f
	}

	c.Sort = domain.SortNewest
	if raw := q.Get("sort"); raw != "" {
		m, err := domain.ParseSortMode(raw)
		if err != nil {
			return view.Criteria{}, err
		}
		c.Sort = m
	}
	return c, nil
}

func (s *Server) handleSubmitPhoto(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, imagecodec.MaxUploadSize+maxFormOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeAPIError(w, http.StatusRequestEntityTooLarge, "validation_error", "file too large, maximum is 20MB")
			return
		}
		writeAPIError(w, http.StatusBadRequest, "invalid_form", "failed to parse form")
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("image")
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, "validation_error", "please choose an image to upload")
		return
	}
	defer closeWithLog(file, "upload file", s.logger)

	// Peek keeps the sniffed bytes in the stream handed to the encoder.
	br := bufio.NewReaderSize(file, sniffLen)
	head, _ := br.Peek(sniffLen)
	mimeType := imagecodec.DetectMIME(header.Header.Get("Content-Type"), head)

	photo, err := s.service.Submit(r.Context(), service.SubmitForm{
		Title:    r.FormValue("title"),
		Author:   r.FormValue("author"),
		Category: r.FormValue("category"),
		Location: r.FormValue("location"),
	}, service.Upload{
		MimeType: mimeType,
		Size:     header.Size,
		Body:     br,
	})
	if err != nil {
		if !errors.Is(err, domain.ErrValidation) {
			s.logger.Error("submit photo failed", "filename", header.Filename, "error", err)
		}
		writeDomainError(w, err)
		return
	}

	w.Header().Set("Location", "/api/photos/"+photo.ID)
	writeJSON(w, http.StatusCreated, photo, s.logger)
}

func (s *Server) handleGetPhoto(w http.ResponseWriter, r *http.Request) {
	photo, err := s.service.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, photo, s.logger)
}

func (s *Server) handleGetImage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	photo, err := s.service.Get(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	mimeType, data, err := imagecodec.Decode(photo.Src)
	if err != nil {
		s.logger.Error("decode stored image failed", "photo_id", id, "error", err)
		writeAPIError(w, http.StatusInternalServerError, "internal_error", "stored image is unreadable")
		return
	}

	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "private, max-age=86400, immutable")
	if _, err := w.Write(data); err != nil {
		s.logger.Error("write image failed", "photo_id", id, "error", err)
	}
}

func (s *Server) handleToggleLike(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	photo, ok := s.service.ToggleLike(r.Context(), id)
	if !ok {
		writeAPIError(w, http.StatusNotFound, "not_found", "photo not found")
		return
	}
	writeJSON(w, http.StatusOK, photo, s.logger)
}
