package httpx

import "net/http"

const userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36"

// BrowserHeaders are sent with every provider request.
func BrowserHeaders() http.Header {
	h := http.Header{}
	h.Set("user-agent", userAgent)
	h.Set("accept-language", "en-US,en;q=0.9")
	h.Set("sec-ch-ua", `"Google Chrome";v="125", "Chromium";v="125", "Not.A/Brand";v="24"`)
	h.Set("sec-ch-ua-mobile", "?0")
	h.Set("sec-ch-ua-platform", `"macOS"`)
	h.Set("sec-fetch-dest", "empty")
	h.Set("sec-fetch-mode", "cors")
	h.Set("pragma", "no-cache")
	h.Set("priority", "u=1, i")
	h.Set("cache-control", "no-cache")
	return h
}

// With returns a copy of base with extra overriding matching keys.
func With(base http.Header, extra map[string]string) http.Header {
	h := base.Clone()
	for k, v := range extra {
		h.Set(k, v)
	}
	return h
}
