package providers

import (
	"net/http"
	"threadmark/internal/structures"
)

// UnmatchedEndpoint labels requests for paths outside the route table.
const UnmatchedEndpoint = "unmatched"

// EndpointResolver maps a request path to a bounded endpoint label.
type EndpointResolver interface {
	Endpoint(path string) string
}

type RouterProviderInterface interface {
	EndpointResolver
	Get(url string, handler http.Handler)
	Post(url string, handler http.Handler)
	GetRoutes() []structures.Route
}

// RouterProvider collects exact-path routes, each bound to one method.
type RouterProvider struct {
	routes []structures.Route
	known  map[string]struct{}
}

func (rp *RouterProvider) add(method, url string, handler http.Handler) {
	rp.routes = append(rp.routes, structures.Route{
		Url:     url,
		Method:  method,
		Handler: methodHandler(method, handler),
	})
	rp.known[url] = struct{}{}
}

func (rp *RouterProvider) Get(url string, handler http.Handler) {
	rp.add(http.MethodGet, url, handler)
}

func (rp *RouterProvider) Post(url string, handler http.Handler) {
	rp.add(http.MethodPost, url, handler)
}

func (rp *RouterProvider) GetRoutes() []structures.Route {
	return rp.routes
}

// Endpoint returns path when it is registered, UnmatchedEndpoint otherwise.
func (rp *RouterProvider) Endpoint(path string) string {
	if _, ok := rp.known[path]; ok {
		return path
	}
	return UnmatchedEndpoint
}

func NewRouterProvider() RouterProviderInterface {
	return &RouterProvider{known: make(map[string]struct{})}
}

func methodHandler(method string, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			w.Header().Set("Allow", method)
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
