package cart

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
)

// NewProxy forwards /api/cart/... to the cart service at target as /cart/...
func NewProxy(target string) (http.Handler, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("invalid cart service url %q: %w", target, err)
	}

	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(u)
			pr.SetXForwarded()
			pr.Out.URL.Path = strings.TrimPrefix(pr.In.URL.Path, "/api")
			pr.Out.URL.RawPath = ""
			if u.Path != "" && u.Path != "/" {
				pr.Out.URL.Path = strings.TrimSuffix(u.Path, "/") + pr.Out.URL.Path
			}
			pr.Out.Host = u.Host
		},
	}, nil
}
