package api

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"time"

	"snipbin/cfg"
	"snipbin/pkg/domain"
	"snipbin/svc/svc"
	"snipbin/svc/util"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/hlog"
)

const (
	// a character may take six bytes once JSON escaped
	escapedCharBytes = 6
	requestOverhead  = 64 * 1024
)

type Hdl struct {
	paste *svc.Paste
	cfg   *cfg.Cfg
	now   func() time.Time
}

func (h *Hdl) CreatePaste(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)
	requestID := util.GetRequestID(r.Context())
	contentType := r.Header.Get("Content-Type")
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || mediaType != "application/json" {
		log.Warn().
			Str("content_type", contentType).
			Str("request_id", requestID).
			Msg("invalid Content-Type header")
		writeErrStatus(w, http.StatusUnsupportedMediaType, domain.ErrInvalidRequest, requestID)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, int64(h.cfg.MaxPasteSize)*escapedCharBytes+requestOverhead)
	var req CreateReq
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case err == io.EOF:
			log.Warn().Msg("empty request body")
		case errors.As(err, &maxErr):
			log.Warn().Int64("limit", maxErr.Limit).Msg("request body too large")
			writeErr(w, domain.ErrPasteTooLarge, requestID)
			return
		default:
			log.Warn().Err(err).Msg("invalid request")
		}
		writeErr(w, domain.ErrInvalidRequest, requestID)
		return
	}
	params, err := validateCreate(req, h.cfg)
	if err != nil {
		log.Warn().Err(err).Msg("create rejected")
		writeErr(w, err, requestID)
		return
	}
	paste, err := h.paste.Create(r.Context(), params)
	if err != nil {
		log.Error().Err(err).Msg("failed to create paste")
		writeErr(w, err, requestID)
		return
	}
	log.Info().
		Str("paste_id", paste.ID).
		Str("expiry", string(params.Expiry)).
		Int("tags", len(paste.Tags)).
		Msg("paste created")
	writeJSON(w, http.StatusCreated, paste)
}

func (h *Hdl) ListPastes(w http.ResponseWriter, r *http.Request) {
	requestID := util.GetRequestID(r.Context())
	page, limit, err := parsePaging(r, h.cfg.DefaultPageSize, h.cfg.MaxPageSize)
	if err != nil {
		writeErr(w, err, requestID)
		return
	}
	pastes, err := h.paste.LatestPaged(r.Context(), page, limit)
	if err != nil {
		writeErr(w, err, requestID)
		return
	}
	writeJSON(w, http.StatusOK, pastes)
}

func (h *Hdl) lookup(w http.ResponseWriter, r *http.Request) *domain.Paste {
	requestID := util.GetRequestID(r.Context())
	id := chi.URLParam(r, "id")
	if !util.ValidID(id) {
		writeErr(w, domain.ErrPasteNotFound, requestID)
		return nil
	}
	paste, err := h.paste.Get(r.Context(), id)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Str("paste_id", id).Msg("get failed")
		writeErr(w, err, requestID)
		return nil
	}
	if paste == nil {
		writeErr(w, domain.ErrPasteNotFound, requestID)
		return nil
	}
	return paste
}

func (h *Hdl) GetPaste(w http.ResponseWriter, r *http.Request) {
	if paste := h.lookup(w, r); paste != nil {
		writeJSON(w, http.StatusOK, paste)
	}
}

func (h *Hdl) GetRaw(w http.ResponseWriter, r *http.Request) {
	paste := h.lookup(w, r)
	if paste == nil {
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, paste.Text)
}

func (h *Hdl) Search(w http.ResponseWriter, r *http.Request) {
	requestID := util.GetRequestID(r.Context())
	filters, err := parseSearch(r, h.cfg, h.now())
	if err != nil {
		writeErr(w, err, requestID)
		return
	}
	page, limit, err := parsePaging(r, h.cfg.DefaultPageSize, h.cfg.MaxPageSize)
	if err != nil {
		writeErr(w, err, requestID)
		return
	}
	res, err := h.paste.Search(r.Context(), filters, page, limit)
	if err != nil {
		writeErr(w, err, requestID)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Hdl) Suggest(w http.ResponseWriter, r *http.Request) {
	requestID := util.GetRequestID(r.Context())
	q, err := parseQuery(r.URL.Query().Get("q"), h.cfg)
	if err != nil {
		writeErr(w, err, requestID)
		return
	}
	_, limit, err := parsePaging(r, h.cfg.QuickMatchLimit, h.cfg.MaxPageSize)
	if err != nil {
		writeErr(w, err, requestID)
		return
	}
	matches, err := h.paste.QuickMatches(r.Context(), q, limit)
	if err != nil {
		writeErr(w, err, requestID)
		return
	}
	writeJSON(w, http.StatusOK, matches)
}

func (h *Hdl) SuggestTags(w http.ResponseWriter, r *http.Request) {
	requestID := util.GetRequestID(r.Context())
	q, err := parseQuery(r.URL.Query().Get("q"), h.cfg)
	if err != nil {
		writeErr(w, err, requestID)
		return
	}
	_, limit, err := parsePaging(r, h.cfg.TagSuggestLimit, h.cfg.MaxPageSize)
	if err != nil {
		writeErr(w, err, requestID)
		return
	}
	tags, err := h.paste.TagSuggestions(r.Context(), q, limit)
	if err != nil {
		writeErr(w, err, requestID)
		return
	}
	writeJSON(w, http.StatusOK, tags)
}

type OptionsResp struct {
	Syntax      []string        `json:"syntax"`
	Expiry      []domain.Expiry `json:"expiry"`
	TimeWindows []string        `json:"time_windows"`
	Limits      LimitsResp      `json:"limits"`
}
type LimitsResp struct {
	MaxPasteSize    int `json:"max_paste_size"`
	MaxTitleLength  int `json:"max_title_length"`
	MaxTags         int `json:"max_tags"`
	MaxQueryLength  int `json:"max_query_length"`
	DefaultPageSize int `json:"default_page_size"`
	MaxPageSize     int `json:"max_page_size"`
}

func (h *Hdl) GetOptions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, OptionsResp{
		Syntax:      domain.SyntaxOptions,
		Expiry:      domain.ExpiryOptions,
		TimeWindows: []string{"all", "1h", "24h", "7d", "30d"},
		Limits: LimitsResp{
			MaxPasteSize:    h.cfg.MaxPasteSize,
			MaxTitleLength:  h.cfg.MaxTitleLength,
			MaxTags:         h.cfg.MaxTags,
			MaxQueryLength:  h.cfg.MaxQueryLength,
			DefaultPageSize: h.cfg.DefaultPageSize,
			MaxPageSize:     h.cfg.MaxPageSize,
		},
	})
}

type errBody struct {
	Error     domain.ErrDetail `json:"error"`
	RequestID string           `json:"request_id"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		util.Warn().Err(err).Msg("failed to encode response")
	}
}

// writeErr maps err to its status and code. 5xx bodies never carry the
// underlying message.
func writeErr(w http.ResponseWriter, err error, requestID string) {
	writeErrStatus(w, domain.Status(err), err, requestID)
}

func writeErrStatus(w http.ResponseWriter, status int, err error, requestID string) {
	detail := domain.ToResp(err).Error
	if status >= 500 {
		detail = domain.ToResp(domain.ErrInternalServer).Error
		if e := domain.ToResp(err).Error; e.Code == domain.ErrIDGenerationFailed.Code {
			detail = e
		}
		util.Error().
			Err(err).
			Str("request_id", requestID).
			Msg("internal error with detailed info")
	}
	writeJSON(w, status, errBody{Error: detail, RequestID: requestID})
}
