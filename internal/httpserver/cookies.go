package httpserver

import (
	"net/http"
	"time"
)

const RefreshCookieName = "refreshToken"

type CookieConfig struct {
	Path   string
	Secure bool
}

func (cc CookieConfig) path() string {
	if cc.Path == "" {
		return "/"
	}
	return cc.Path
}

func (cc CookieConfig) Create(name, value string, exp time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     cc.path(),
		Expires:  exp,
		MaxAge:   maxAge(exp),
		HttpOnly: true,
		Secure:   cc.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (cc CookieConfig) Delete(name string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     cc.path(),
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   cc.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func maxAge(exp time.Time) int {
	secs := int(time.Until(exp).Seconds())
	if secs <= 0 {
		return -1
	}
	return secs
}
