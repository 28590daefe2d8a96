package handler

import (
	"errors"
	"math"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mmeshcher/ink-panels/internal/media"
	"github.com/mmeshcher/ink-panels/internal/model"
	"github.com/mmeshcher/ink-panels/internal/service"
)

const maxUploadSize = 10 << 20

type mangaResponse struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Author        string    `json:"author"`
	Description   string    `json:"description"`
	Price         float64   `json:"price"`
	OriginalPrice *float64  `json:"originalPrice,omitempty"`
	Image         string    `json:"image"`
	Volumes       int       `json:"volumes"`
	Genre         []string  `json:"genre"`
	Rating        float64   `json:"rating"`
	ReviewCount   int       `json:"reviewCount"`
	Stock         int       `json:"stock"`
	Badges        []string  `json:"badges"`
	IsNewRelease  bool      `json:"isNewRelease"`
	CreatedAt     time.Time `json:"createdAt"`
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func toMangaResponse(m model.Manga) mangaResponse {
	resp := mangaResponse{
		ID:           m.ID,
		Title:        m.Title,
		Author:       m.Author,
		Description:  m.Description,
		Price:        model.AmountFromCents(m.PriceCents),
		Image:        m.ImageURL,
		Volumes:      m.Volumes,
		Genre:        nonNil(m.Genre),
		Rating:       m.Rating,
		ReviewCount:  m.ReviewCount,
		Stock:        m.Stock,
		Badges:       nonNil(m.Badges),
		IsNewRelease: m.IsNewRelease,
		CreatedAt:    m.CreatedAt,
	}
	if m.OriginalPriceCents != nil {
		v := model.AmountFromCents(*m.OriginalPriceCents)
		resp.OriginalPrice = &v
	}
	return resp
}

func centsPtr(amount *float64) *int64 {
	if amount == nil {
		return nil
	}
	v := model.CentsFromAmount(*amount)
	return &v
}

// ListManga возвращает каталог, новые позиции первыми.
func (h *Handler) ListManga(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListManga(r.Context())
	if err != nil {
		h.handleError(w, r, "list manga", err)
		return
	}

	resp := make([]mangaResponse, 0, len(list))
	for _, m := range list {
		resp = append(resp, toMangaResponse(m))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetManga возвращает позицию каталога по идентификатору.
func (h *Handler) GetManga(w http.ResponseWriter, r *http.Request) {
	m, err := h.service.GetManga(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleError(w, r, "get manga", err)
		return
	}
	writeJSON(w, http.StatusOK, toMangaResponse(*m))
}

type createMangaRequest struct {
	Title         string   `json:"title"`
	Author        string   `json:"author"`
	Description   string   `json:"description"`
	Price         *float64 `json:"price"`
	OriginalPrice *float64 `json:"originalPrice"`
	Image         string   `json:"image"`
	Volumes       *int     `json:"volumes"`
	Genre         []string `json:"genre"`
	Rating        float64  `json:"rating"`
	ReviewCount   int      `json:"reviewCount"`
	Stock         int      `json:"stock"`
	Badges        []string `json:"badges"`
	IsNewRelease  bool     `json:"isNewRelease"`
}

func (req createMangaRequest) input() (service.MangaInput, error) {
	if req.Price == nil {
		return service.MangaInput{}, errors.New("price is required")
	}
	if req.Volumes == nil {
		return service.MangaInput{}, errors.New("volumes is required")
	}
	return service.MangaInput{
		Title:              req.Title,
		Author:             req.Author,
		Description:        req.Description,
		PriceCents:         model.CentsFromAmount(*req.Price),
		OriginalPriceCents: centsPtr(req.OriginalPrice),
		ImageURL:           req.Image,
		Volumes:            *req.Volumes,
		Genre:              req.Genre,
		Rating:             req.Rating,
		ReviewCount:        req.ReviewCount,
		Stock:              req.Stock,
		Badges:             req.Badges,
		IsNewRelease:       req.IsNewRelease,
	}, nil
}

func isMultipart(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "multipart/form-data"
}

// splitList разбирает повторяющееся поле формы или список через запятую.
func splitList(values []string) []string {
	var res []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				res = append(res, part)
			}
		}
	}
	return res
}

func formFloat(r *http.Request, name string) (*float64, error) {
	raw := strings.TrimSpace(r.FormValue(name))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, errors.New(name + " must be a number")
	}
	return &v, nil
}

func formInt(r *http.Request, name string) (*int, error) {
	raw := strings.TrimSpace(r.FormValue(name))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, errors.New(name + " must be an integer")
	}
	return &v, nil
}

// readMangaForm разбирает multipart-форму создания позиции. Файл обложки передаётся в поле image.
func readMangaForm(w http.ResponseWriter, r *http.Request) (createMangaRequest, *media.File, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize+1<<20)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		return createMangaRequest{}, nil, errors.New("invalid multipart form")
	}

	req := createMangaRequest{
		Title:       r.FormValue("title"),
		Author:      r.FormValue("author"),
		Description: r.FormValue("description"),
		Genre:       splitList(r.MultipartForm.Value["genre"]),
		Badges:      splitList(r.MultipartForm.Value["badges"]),
	}
	req.IsNewRelease, _ = strconv.ParseBool(r.FormValue("isNewRelease"))

	var err error
	if req.Price, err = formFloat(r, "price"); err != nil {
		return req, nil, err
	}
	if req.OriginalPrice, err = formFloat(r, "originalPrice"); err != nil {
		return req, nil, err
	}
	rating, err := formFloat(r, "rating")
	if err != nil {
		return req, nil, err
	}
	if rating != nil {
		req.Rating = *rating
	}
	if req.Volumes, err = formInt(r, "volumes"); err != nil {
		return req, nil, err
	}
	for name, dst := range map[string]*int{"stock": &req.Stock, "reviewCount": &req.ReviewCount} {
		v, err := formInt(r, name)
		if err != nil {
			return req, nil, err
		}
		if v != nil {
			*dst = *v
		}
	}

	file, header, err := r.FormFile("image")
	switch {
	case errors.Is(err, http.ErrMissingFile):
		req.Image = r.FormValue("image")
		return req, nil, nil
	case err != nil:
		return req, nil, errors.New("invalid image file")
	}

	return req, &media.File{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	}, nil
}

// CreateManga добавляет позицию в каталог. Принимает JSON или multipart-форму с файлом обложки.
func (h *Handler) CreateManga(w http.ResponseWriter, r *http.Request) {
	var (
		req  createMangaRequest
		file *media.File
		err  error
	)

	if isMultipart(r) {
		req, file, err = readMangaForm(w, r)
		if r.MultipartForm != nil {
			defer r.MultipartForm.RemoveAll()
		}
	} else if err = decodeJSON(r, &req); err != nil {
		err = errors.New("invalid request body")
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	in, err := req.input()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	m, err := h.service.CreateManga(r.Context(), in, file)
	if err != nil {
		h.handleError(w, r, "create manga", err)
		return
	}

	writeJSON(w, http.StatusCreated, toMangaResponse(*m))
}

type updateMangaRequest struct {
	Title         *string   `json:"title"`
	Author        *string   `json:"author"`
	Description   *string   `json:"description"`
	Price         *float64  `json:"price"`
	OriginalPrice *float64  `json:"originalPrice"`
	Image         *string   `json:"image"`
	Volumes       *int      `json:"volumes"`
	Genre         *[]string `json:"genre"`
	Rating        *float64  `json:"rating"`
	ReviewCount   *int      `json:"reviewCount"`
	Stock         *int      `json:"stock"`
	Badges        *[]string `json:"badges"`
	IsNewRelease  *bool     `json:"isNewRelease"`
}

// UpdateManga применяет частичное обновление позиции каталога.
func (h *Handler) UpdateManga(w http.ResponseWriter, r *http.Request) {
	var req updateMangaRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	m, err := h.service.UpdateManga(r.Context(), chi.URLParam(r, "id"), model.MangaPatch{
		Title:              req.Title,
		Author:             req.Author,
		Description:        req.Description,
		PriceCents:         centsPtr(req.Price),
		OriginalPriceCents: centsPtr(req.OriginalPrice),
		ImageURL:           req.Image,
		Volumes:            req.Volumes,
		Genre:              req.Genre,
		Rating:             req.Rating,
		ReviewCount:        req.ReviewCount,
		Stock:              req.Stock,
		Badges:             req.Badges,
		IsNewRelease:       req.IsNewRelease,
	})
	if err != nil {
		h.handleError(w, r, "update manga", err)
		return
	}

	writeJSON(w, http.StatusOK, toMangaResponse(*m))
}

// DeleteManga удаляет позицию каталога.
func (h *Handler) DeleteManga(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteManga(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.handleError(w, r, "delete manga", err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Manga removed"})
}
