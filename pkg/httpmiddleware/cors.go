package httpmiddleware

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSConfig configures the CORS middleware.
type CORSConfig struct {
	// AllowOrigins lists the origins permitted to make cross-origin
	// requests. Empty, or a single "*" entry, allows every origin.
	AllowOrigins []string

	// AllowMethods lists the methods permitted in actual requests.
	// Empty defaults to "GET, POST, PUT, PATCH, DELETE, OPTIONS".
	AllowMethods []string

	// AllowHeaders lists the request headers clients may send. When empty
	// the preflight response echoes Access-Control-Request-Headers back.
	AllowHeaders []string

	// ExposeHeaders lists response headers scripts may read.
	ExposeHeaders []string

	// AllowCredentials permits cookies and authorization headers on
	// cross-origin requests. Incompatible with the wildcard origin; when
	// both are set the middleware echoes the specific origin instead.
	AllowCredentials bool

	// MaxAge is the preflight cache lifetime in seconds. Zero omits the
	// header, negative sends "0".
	MaxAge int
}

// corsPolicy is CORSConfig resolved into precomputed header values.
type corsPolicy struct {
	wildcard      bool
	origins       map[string]string
	methods       string
	headers       string
	exposeHeaders string
	credentials   bool
	maxAge        string
}

func newCORSPolicy(cfg CORSConfig) *corsPolicy {
	p := &corsPolicy{
		wildcard:      len(cfg.AllowOrigins) == 0,
		origins:       make(map[string]string, len(cfg.AllowOrigins)),
		methods:       strings.Join(cfg.AllowMethods, ", "),
		headers:       strings.Join(cfg.AllowHeaders, ", "),
		exposeHeaders: strings.Join(cfg.ExposeHeaders, ", "),
		credentials:   cfg.AllowCredentials,
	}
	for _, o := range cfg.AllowOrigins {
		if o == "*" {
			p.wildcard = true
			break
		}
		p.origins[strings.ToLower(o)] = o
	}
	// Browsers reject "*" together with credentials, so match and echo the
	// concrete origin instead.
	if p.credentials {
		p.wildcard = false
	}
	if p.methods == "" {
		p.methods = "GET, POST, PUT, PATCH, DELETE, OPTIONS"
	}
	switch {
	case cfg.MaxAge > 0:
		p.maxAge = strconv.Itoa(cfg.MaxAge)
	case cfg.MaxAge < 0:
		p.maxAge = "0"
	}
	return p
}

// allowOrigin returns the Access-Control-Allow-Origin value for the given
// request origin, or "" when the origin is not allowed. Matching is
// case-insensitive; the configured spelling is echoed back.
func (p *corsPolicy) allowOrigin(origin string) string {
	if p.wildcard {
		return "*"
	}
	return p.origins[strings.ToLower(origin)]
}

// CORS returns a middleware handling Cross-Origin Resource Sharing.
// Preflight requests (OPTIONS carrying Access-Control-Request-Method) are
// answered with 204 and never reach the wrapped handler. Vary headers are
// emitted so shared caches do not serve one origin's response to another.
func CORS(cfg CORSConfig) Middleware {
	policy := newCORSPolicy(cfg)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				// Same-origin request. Still vary on Origin when responses
				// differ per origin.
				if !policy.wildcard {
					w.Header().Add("Vary", "Origin")
				}
				next.ServeHTTP(w, r)
				return
			}

			allowed := policy.allowOrigin(origin)

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				policy.preflight(w, r, allowed)
				return
			}

			if !policy.wildcard {
				w.Header().Add("Vary", "Origin")
			}
			if allowed != "" {
				w.Header().Set("Access-Control-Allow-Origin", allowed)
				if policy.credentials {
					w.Header().Set("Access-Control-Allow-Credentials", "true")
				}
				if policy.exposeHeaders != "" {
					w.Header().Set("Access-Control-Expose-Headers", policy.exposeHeaders)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (p *corsPolicy) preflight(w http.ResponseWriter, r *http.Request, allowed string) {
	h := w.Header()
	h.Add("Vary", "Origin")
	h.Add("Vary", "Access-Control-Request-Method")
	h.Add("Vary", "Access-Control-Request-Headers")

	// Disallowed origins get an empty 204 with no CORS headers; the browser
	// blocks the actual request.
	if allowed != "" {
		h.Set("Access-Control-Allow-Origin", allowed)
		h.Set("Access-Control-Allow-Methods", p.methods)
		if p.headers != "" {
			h.Set("Access-Control-Allow-Headers", p.headers)
		} else if rh := r.Header.Get("Access-Control-Request-Headers"); rh != "" {
			h.Set("Access-Control-Allow-Headers", rh)
		}
		if p.credentials {
			h.Set("Access-Control-Allow-Credentials", "true")
		}
		if p.maxAge != "" {
			h.Set("Access-Control-Max-Age", p.maxAge)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}
