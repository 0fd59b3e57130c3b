package api

import (
	"net/http"
	"net/url"
	"time"

	"chousei/internal/identity"
)

// cookieJar adapts one request/response pair to the identity component's
// key-value contract: the browser's cookie jar is the durable local
// storage. Values written during a request are visible to later reads in
// the same request.
type cookieJar struct {
	r       *http.Request
	w       http.ResponseWriter
	written map[string]string
}

func (c *cookieJar) Get(key string) (string, bool) {
	if v, ok := c.written[key]; ok {
		return v, true
	}
	cookie, err := c.r.Cookie(key)
	if err != nil {
		return "", false
	}
	value, err := url.QueryUnescape(cookie.Value)
	if err != nil {
		return "", false
	}
	return value, true
}

func (c *cookieJar) Set(key, value string) error {
	http.SetCookie(c.w, &http.Cookie{
		Name:     key,
		Value:    url.QueryEscape(value),
		Path:     "/",
		Expires:  time.Now().Add(365 * 24 * time.Hour),
		SameSite: http.SameSiteLaxMode,
	})
	if c.written == nil {
		c.written = map[string]string{}
	}
	c.written[key] = value
	return nil
}

func (h *Handler) identity(w http.ResponseWriter, r *http.Request) *identity.Manager {
	return identity.NewManager(&cookieJar{r: r, w: w})
}
