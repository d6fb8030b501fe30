package httpx

import (
	"fmt"
	"html"
	"net/http"
	"net/url"

	"github.com/wikimesh/ssohub/internal/domain/sso"
	"github.com/wikimesh/ssohub/internal/service"
)

// statusHeader carries the machine-readable outcome on every handshake
// response, regardless of body shape. The frontend script keys off it for the
// 1x1 and icon types, whose bodies are a fixed image.
const statusHeader = "X-SSO-Status"

// ResponseShaper turns a step outcome into the body shape the `type` query
// parameter asked for. The shapes are a wire contract with the deployed
// frontend snippets and must not drift.
type ResponseShaper struct {
	// IconPath, when set, is served for type=icon instead of the embedded
	// transparent pixel.
	IconPath string
}

// shapeInput bundles what a single response needs.
type shapeInput struct {
	typ    sso.ResponseType
	status sso.Status
	result *service.StepResult
}

// Write renders the outcome. Redirect hops (non-terminal, successful) are
// always 302 regardless of type; only terminal responses take a shape.
func (rs *ResponseShaper) Write(w http.ResponseWriter, r *http.Request, in shapeInput) {
	w.Header().Set(statusHeader, in.status.Slug())
	setCacheHeaders(w, in.result != nil && in.result.Cacheable)

	if in.result != nil && in.result.RedirectURL != "" && in.status.OK() {
		http.Redirect(w, r, in.result.RedirectURL, http.StatusFound)
		return
	}

	switch in.typ {
	case sso.TypeScript:
		rs.writeScript(w, in)
	case sso.TypeJSON:
		rs.writeJSON(w, in)
	case sso.TypeIcon:
		rs.writeImage(w, r, true)
	case sso.TypeRedirect:
		rs.writeRedirect(w, r, in)
	default:
		rs.writeImage(w, r, false)
	}
}

// writeScript emits text/javascript. The status travels in a leading comment
// so the payload stays valid JS whatever the outcome.
func (rs *ResponseShaper) writeScript(w http.ResponseWriter, in shapeInput) {
	w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
	body := "/* " + in.status.String() + " */\n"
	if in.result != nil && in.result.Script != "" {
		body += in.result.Script + "\n"
	}
	fmt.Fprint(w, body)
}

type statusPayload struct {
	Status    string `json:"status"`
	UserName  string `json:"username,omitempty"`
	ToolsList string `json:"toolslist,omitempty"`
}

func (rs *ResponseShaper) writeJSON(w http.ResponseWriter, in shapeInput) {
	p := statusPayload{Status: in.status.String()}
	if in.result != nil {
		p.UserName = in.result.UserName
		p.ToolsList = in.result.ToolsList
	}
	code := http.StatusOK
	if !in.status.OK() {
		code = statusHTTPCode(in.status)
	}
	WriteJSON(w, code, p)
}

// writeImage serves the transparent pixel (or the configured icon file). The
// body is identical for every outcome; the status lives only in the header.
func (rs *ResponseShaper) writeImage(w http.ResponseWriter, r *http.Request, icon bool) {
	if icon && rs.IconPath != "" {
		http.ServeFile(w, r, rs.IconPath)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(transparentPixelPNG)
}

// writeRedirect handles the terminal of a type=redirect chain. On success the
// browser goes to the verified return URL; recoverable failures go there too
// with the outcome appended, so the destination page can explain. Without a
// usable return URL we fall back to a minimal HTML page.
func (rs *ResponseShaper) writeRedirect(w http.ResponseWriter, r *http.Request, in shapeInput) {
	target := ""
	if in.result != nil {
		target = in.result.ReturnURL
	}
	if target != "" {
		if !in.status.OK() {
			target = appendQueryParam(target, "sso_error", in.status.Slug())
		}
		http.Redirect(w, r, target, http.StatusFound)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(statusHTTPCode(in.status))
	fmt.Fprintf(w, "<!DOCTYPE html><html><body><p>%s</p>"+
		"<p><a href=\"javascript:history.back()\">Go back</a></p></body></html>",
		html.EscapeString(in.status.String()))
}

func appendQueryParam(rawURL, key, value string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String()
}

// setCacheHeaders allows shared caching only for steps that vary by cookie
// alone; anything touching per-user state must never be cached.
func setCacheHeaders(w http.ResponseWriter, cacheable bool) {
	if cacheable {
		w.Header().Add("Vary", "Cookie")
		w.Header().Set("Cache-Control", "public, max-age=60")
		return
	}
	w.Header().Set("Cache-Control", "no-store")
}

// statusHTTPCode maps protocol outcomes to HTTP codes for the shapes where the
// code is visible (json, error pages). Image and script shapes always 200.
func statusHTTPCode(status sso.Status) int {
	switch status {
	case sso.StatusOK:
		return http.StatusOK
	case sso.StatusInternalError, sso.StatusInconsistency:
		return http.StatusInternalServerError
	case sso.StatusBadCredentials, sso.StatusWrongAttempt:
		return http.StatusUnauthorized
	case sso.StatusWikiNotFound:
		return http.StatusNotFound
	default:
		return http.StatusBadRequest
	}
}
