package binder_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/vowbill/pkg/binder"
)

type checkoutBody struct {
	PriceRef    string `json:"price_ref"`
	Mode        string `json:"mode"`
	WorkspaceID string `json:"workspace_id"`
}

func jsonRequest(body, contentType string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/billing/checkout", strings.NewReader(body))
	if contentType != "" {
		r.Header.Set("Content-Type", contentType)
	}
	return r
}

func TestJSON(t *testing.T) {
	t.Parallel()
	bind := binder.JSON()

	t.Run("decodes body", func(t *testing.T) {
		t.Parallel()
		var v checkoutBody
		err := bind(jsonRequest(`{"price_ref":"price_pro","mode":"subscription","workspace_id":"W1"}`, "application/json; charset=utf-8"), &v)
		require.NoError(t, err)
		assert.Equal(t, checkoutBody{PriceRef: "price_pro", Mode: "subscription", WorkspaceID: "W1"}, v)
	})

	t.Run("empty body is allowed", func(t *testing.T) {
		t.Parallel()
		var v checkoutBody
		require.NoError(t, bind(jsonRequest("", ""), &v))
		assert.Empty(t, v.PriceRef)
	})

	t.Run("rejections", func(t *testing.T) {
		t.Parallel()
		cases := []struct {
			name        string
			body        string
			contentType string
			want        error
		}{
			{"missing content type", `{"mode":"x"}`, "", binder.ErrMissingContentType},
			{"form content type", `mode=x`, "application/x-www-form-urlencoded", binder.ErrUnsupportedMediaType},
			{"unknown field", `{"price":"x"}`, "application/json", binder.ErrFailedToParseJSON},
			{"trailing data", `{"mode":"x"}{"mode":"y"}`, "application/json", binder.ErrFailedToParseJSON},
			{"broken json", `{"mode":`, "application/json", binder.ErrFailedToParseJSON},
			{"wrong type", `{"mode":1}`, "application/json", binder.ErrFailedToParseJSON},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				t.Parallel()
				var v checkoutBody
				assert.ErrorIs(t, bind(jsonRequest(tc.body, tc.contentType), &v), tc.want)
			})
		}
	})

	t.Run("size limit", func(t *testing.T) {
		t.Parallel()
		var v checkoutBody
		body := `{"price_ref":"` + strings.Repeat("a", 64) + `"}`
		err := binder.JSONWithLimit(32)(jsonRequest(body, "application/json"), &v)
		assert.ErrorIs(t, err, binder.ErrRequestTooLarge)
	})
}

type listRequest struct {
	WorkspaceID string   `path:"workspaceID"`
	Limit       int      `query:"limit"`
	Before      *int64   `query:"before"`
	Status      []string `query:"status"`
	Verbose     bool     `query:"verbose"`
	Ignored     string
}

func TestPathAndQuery(t *testing.T) {
	t.Parallel()
	params := map[string]string{"workspaceID": "W1"}
	extract := func(_ *http.Request, name string) string { return params[name] }

	t.Run("binds tagged fields", func(t *testing.T) {
		t.Parallel()
		r := httptest.NewRequest(http.MethodGet, "/billing/payments?limit=20&before=1780315200&status=paid&status=refunded&verbose=true&ignored=x", nil)

		var v listRequest
		require.NoError(t, binder.Path(extract)(r, &v))
		require.NoError(t, binder.Query()(r, &v))

		assert.Equal(t, "W1", v.WorkspaceID)
		assert.Equal(t, 20, v.Limit)
		require.NotNil(t, v.Before)
		assert.Equal(t, int64(1780315200), *v.Before)
		assert.Equal(t, []string{"paid", "refunded"}, v.Status)
		assert.True(t, v.Verbose)
		assert.Empty(t, v.Ignored)
	})

	t.Run("invalid number", func(t *testing.T) {
		t.Parallel()
		r := httptest.NewRequest(http.MethodGet, "/billing/payments?limit=ten", nil)
		var v listRequest
		assert.ErrorIs(t, binder.Query()(r, &v), binder.ErrFailedToParseQuery)
	})

	t.Run("invalid target", func(t *testing.T) {
		t.Parallel()
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		var v listRequest
		assert.ErrorIs(t, binder.Query()(r, v), binder.ErrInvalidTarget)
		assert.ErrorIs(t, binder.Path(extract)(r, nil), binder.ErrInvalidTarget)
	})
}
