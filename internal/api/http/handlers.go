package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httplog/v2"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/vadimbarashkov/petit/internal/models"
	"github.com/vadimbarashkov/petit/internal/qrcode"
	"github.com/vadimbarashkov/petit/internal/service"
	"github.com/vadimbarashkov/petit/pkg/response"
)

const maxSuggestLength = 64

func handlePing(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "pong")
}

type shortcodeHandler struct {
	svc      ShortcodeService
	validate *validator.Validate
	opts     Options
}

func newShortcodeHandler(svc ShortcodeService, validate *validator.Validate, opts Options) *shortcodeHandler {
	return &shortcodeHandler{
		svc:      svc,
		validate: validate,
		opts:     opts,
	}
}

func isForm(r *http.Request) bool {
	return render.GetRequestContentType(r) == render.ContentTypeForm
}

// renderError writes the mapped status for err. Only unexpected failures
// are attached to the request log.
func renderError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := errorStatus(err)
	if status >= http.StatusInternalServerError {
		httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})
	}

	render.Status(r, status)
	render.JSON(w, r, errorResponse(status))
}

// decodeJSON reports false after writing a 400 when the body is empty or
// malformed.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := render.DecodeJSON(r.Body, v); err != nil {
		render.Status(r, http.StatusBadRequest)
		if errors.Is(err, io.EOF) {
			render.JSON(w, r, emptyRequestBodyResponse)
		} else {
			render.JSON(w, r, invalidRequestBodyResponse)
		}
		return false
	}
	return true
}

func parseForm(w http.ResponseWriter, r *http.Request) bool {
	if err := r.ParseForm(); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, invalidRequestBodyResponse)
		return false
	}
	return true
}

func (h *shortcodeHandler) decodeCreate(w http.ResponseWriter, r *http.Request) (createAttributes, bool) {
	if isForm(r) {
		if !parseForm(w, r) {
			return createAttributes{}, false
		}
		return createAttributes{
			Name:        r.PostForm.Get("name"),
			Destination: r.PostForm.Get("destination"),
			SSL:         r.PostForm.Get("ssl"),
		}, true
	}

	var req createRequest
	if !decodeJSON(w, r, &req) {
		return createAttributes{}, false
	}
	return req.Data.Attributes, true
}

func (h *shortcodeHandler) decodeModify(w http.ResponseWriter, r *http.Request) (modifyAttributes, bool) {
	if isForm(r) {
		if !parseForm(w, r) {
			return modifyAttributes{}, false
		}

		var attrs modifyAttributes
		if r.PostForm.Has("destination") {
			destination := r.PostForm.Get("destination")
			attrs.Destination = &destination
		}
		if r.PostForm.Has("ssl") {
			attrs.SSL = r.PostForm.Get("ssl")
		}
		return attrs, true
	}

	var req modifyRequest
	if !decodeJSON(w, r, &req) {
		return modifyAttributes{}, false
	}
	return req.Data.Attributes, true
}

func (h *shortcodeHandler) create(w http.ResponseWriter, r *http.Request) {
	const op = "api.http.shortcodeHandler.create"

	attrs, ok := h.decodeCreate(w, r)
	if !ok {
		return
	}

	if err := h.validate.Struct(attrs); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.ValidationErrorDocument(err))
		return
	}

	sc, err := h.svc.Create(r.Context(), service.CreateInput{
		Name:        attrs.Name,
		Destination: attrs.Destination,
		SSL:         models.ParseSSL(attrs.SSL),
	})
	if err != nil {
		renderError(w, r, op, err)
		return
	}

	w.Header().Set("Location", selfLink(h.opts.APIBaseURL, sc.Name))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.Single(toResource(sc, h.opts)))
}

func (h *shortcodeHandler) listByDestination(w http.ResponseWriter, r *http.Request) {
	const op = "api.http.shortcodeHandler.listByDestination"

	destination := strings.TrimSpace(r.URL.Query().Get("destination"))
	if destination == "" {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.ErrorDocument(http.StatusBadRequest, "The destination query parameter is required."))
		return
	}

	scs, err := h.svc.ReadByDestination(r.Context(), destination)
	if err != nil {
		renderError(w, r, op, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, toCollection(scs, h.opts))
}

func (h *shortcodeHandler) get(w http.ResponseWriter, r *http.Request) {
	const op = "api.http.shortcodeHandler.get"

	sc, err := h.svc.Read(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		renderError(w, r, op, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, response.Single(toResource(sc, h.opts)))
}

func (h *shortcodeHandler) modify(w http.ResponseWriter, r *http.Request) {
	const op = "api.http.shortcodeHandler.modify"

	attrs, ok := h.decodeModify(w, r)
	if !ok {
		return
	}

	if err := h.validate.Struct(attrs); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.ValidationErrorDocument(err))
		return
	}

	in := service.UpdateInput{Destination: attrs.Destination}
	if attrs.SSL != nil {
		ssl := models.ParseSSL(attrs.SSL)
		in.SSL = &ssl
	}

	sc, err := h.svc.Modify(r.Context(), chi.URLParam(r, "name"), in)
	if err != nil {
		renderError(w, r, op, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, response.Single(toResource(sc, h.opts)))
}

func (h *shortcodeHandler) delete(w http.ResponseWriter, r *http.Request) {
	const op = "api.http.shortcodeHandler.delete"

	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "name")); err != nil {
		renderError(w, r, op, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, response.MetaDocument(map[string]any{"deleted": true}))
}

func (h *shortcodeHandler) qrCode(w http.ResponseWriter, r *http.Request) {
	const op = "api.http.shortcodeHandler.qrCode"

	size := qrcode.DefaultSize
	if v := r.URL.Query().Get("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < qrcode.MinSize || n > qrcode.MaxSize {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.ErrorDocument(http.StatusBadRequest,
				fmt.Sprintf("size must be an integer between %d and %d.", qrcode.MinSize, qrcode.MaxSize)))
			return
		}
		size = n
	}

	sc, err := h.svc.Read(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		renderError(w, r, op, err)
		return
	}

	png, err := qrcode.Generate(generatedLink(h.opts.ServiceBaseURL, sc.Name), size)
	if err != nil {
		renderError(w, r, op, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

func (h *shortcodeHandler) suggest(w http.ResponseWriter, r *http.Request) {
	const op = "api.http.shortcodeHandler.suggest"

	size := h.opts.SuggestLength
	if size <= 0 {
		size = service.DefaultSuggestLength
	}
	if v := r.URL.Query().Get("min_length"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxSuggestLength {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.ErrorDocument(http.StatusBadRequest,
				fmt.Sprintf("min_length must be an integer between 1 and %d.", maxSuggestLength)))
			return
		}
		size = n
	}

	name, err := h.svc.Suggest(r.Context(), size)
	if err != nil {
		renderError(w, r, op, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, response.Single(response.Resource{
		Type:       suggestionsType,
		ID:         name,
		Attributes: suggestionAttributes{Name: name},
	}))
}
