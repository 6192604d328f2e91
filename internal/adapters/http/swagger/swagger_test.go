package swagger

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/smartystreets/goconvey/convey"
)

func TestSwaggerHandler(t *testing.T) {
	convey.Convey("Given the docs routes", t, func() {
		mux := http.NewServeMux()
		Register(context.Background(), mux)

		serve := func(method, path string, header http.Header) *httptest.ResponseRecorder {
			req := httptest.NewRequest(method, path, http.NoBody)
			for k, v := range header {
				req.Header[k] = v
			}
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)
			return w
		}

		convey.Convey("When fetching the OpenAPI document", func() {
			w := serve(http.MethodGet, "/openapi.yaml", nil)

			convey.Convey("Then every prediction route is described", func() {
				convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
				convey.So(w.Header().Get("Content-Type"), convey.ShouldEqual, "application/yaml; charset=utf-8")
				for _, route := range []string{"/predict:", "/predict-cancellation:", "/predict/batch:", "/models:", "/healthz:"} {
					convey.So(w.Body.String(), convey.ShouldContainSubstring, route)
				}
			})

			convey.Convey("Then a matching ETag revalidates without a body", func() {
				etag := w.Header().Get("ETag")
				convey.So(etag, convey.ShouldNotBeEmpty)
				again := serve(http.MethodGet, "/openapi.yaml", http.Header{"If-None-Match": {etag}})
				convey.So(again.Code, convey.ShouldEqual, http.StatusNotModified)
				convey.So(again.Body.Len(), convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When fetching the docs page", func() {
			w := serve(http.MethodGet, "/api-docs", nil)
			convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
			convey.So(w.Header().Get("Content-Type"), convey.ShouldEqual, "text/html; charset=utf-8")
			convey.So(w.Body.String(), convey.ShouldContainSubstring, "flightrisk API Docs")
			convey.So(w.Body.String(), convey.ShouldContainSubstring, "/openapi.yaml")
		})

		convey.Convey("When posting to a docs route", func() {
			w := serve(http.MethodPost, "/openapi.yaml", nil)
			convey.So(w.Code, convey.ShouldEqual, http.StatusMethodNotAllowed)
			convey.So(w.Header().Get("Allow"), convey.ShouldEqual, "GET, HEAD")
		})
	})

	convey.Convey("Given a nil mux", t, func() {
		convey.So(func() { Register(context.Background(), nil) }, convey.ShouldPanic)
	})
}
