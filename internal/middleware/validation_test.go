package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "energypulse/internal/errors"
)

type correlationBody struct {
	DatasetIDs []string `json:"datasetIds" validate:"required,min=2,unique,dive,required"`
}

func TestValidator_DecodeJSON(t *testing.T) {
	errorHandler := apierrors.NewErrorHandler(quietLogger(), false)
	v := NewValidator(quietLogger(), errorHandler)

	tests := []struct {
		name       string
		body       string
		wantOK     bool
		wantStatus int
	}{
		{"valid", `{"datasetIds":["a","b"]}`, true, 0},
		{"too few", `{"datasetIds":["a"]}`, false, http.StatusBadRequest},
		{"duplicates", `{"datasetIds":["a","a"]}`, false, http.StatusBadRequest},
		{"blank id", `{"datasetIds":["a",""]}`, false, http.StatusBadRequest},
		{"malformed", `{"datasetIds":`, false, http.StatusBadRequest},
		{"empty", ``, false, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/analysis/correlations", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()

			var body correlationBody
			ok := v.DecodeJSON(rec, req, &body)

			assert.Equal(t, tt.wantOK, ok)
			if !tt.wantOK {
				assert.Equal(t, tt.wantStatus, rec.Code)
			}
		})
	}
}

func TestValidator_FieldNamesUseJSONTags(t *testing.T) {
	v := NewValidator(quietLogger(), apierrors.NewErrorHandler(quietLogger(), false))

	err := v.Struct(correlationBody{DatasetIDs: []string{"only"}})
	require.Error(t, err)

	apiErr, ok := err.(*apierrors.APIError)
	require.True(t, ok)
	details := apiErr.Details.(apierrors.ValidationErrors)
	require.Len(t, details.Errors, 1)
	assert.Equal(t, "datasetIds", details.Errors[0].Field)
	assert.Equal(t, "datasetIds must contain at least 2 items", details.Errors[0].Message)
}

func TestValidator_BodyTooLarge(t *testing.T) {
	v := NewValidator(quietLogger(), apierrors.NewErrorHandler(quietLogger(), false))
	v.maxBodySize = 16

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"datasetIds":["aaaaaaaa","bbbbbbbb"]}`))
	rec := httptest.NewRecorder()

	var body correlationBody
	assert.False(t, v.DecodeJSON(rec, req, &body))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestContentTypeValidator(t *testing.T) {
	handler := ContentTypeValidator(apierrors.NewErrorHandler(quietLogger(), false), "application/json")(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

	tests := []struct {
		method      string
		contentType string
		want        int
	}{
		{http.MethodGet, "", http.StatusOK},
		{http.MethodPost, "application/json; charset=utf-8", http.StatusOK},
		{http.MethodPost, "", http.StatusBadRequest},
		{http.MethodPost, "text/plain", http.StatusUnsupportedMediaType},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.contentType, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/", strings.NewReader("{}"))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestQueryParamValidator(t *testing.T) {
	v := NewQueryParamValidator(apierrors.NewErrorHandler(quietLogger(), false))

	t.Run("int default and range", func(t *testing.T) {
		rec := httptest.NewRecorder()
		n, ok := v.ValidateInt(rec, httptest.NewRequest(http.MethodGet, "/", nil), "limit", 1, 10, 5)
		assert.True(t, ok)
		assert.Equal(t, 5, n)

		rec = httptest.NewRecorder()
		_, ok = v.ValidateInt(rec, httptest.NewRequest(http.MethodGet, "/?limit=11", nil), "limit", 1, 10, 5)
		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("float", func(t *testing.T) {
		rec := httptest.NewRecorder()
		f, ok := v.ValidateFloat(rec, httptest.NewRequest(http.MethodGet, "/?sigma=2.5", nil), "sigma", 0.1, 10, 3)
		assert.True(t, ok)
		assert.Equal(t, 2.5, f)

		rec = httptest.NewRecorder()
		_, ok = v.ValidateFloat(rec, httptest.NewRequest(http.MethodGet, "/?sigma=abc", nil), "sigma", 0.1, 10, 3)
		assert.False(t, ok)
	})

	t.Run("bool", func(t *testing.T) {
		rec := httptest.NewRecorder()
		b, ok := v.ValidateBool(rec, httptest.NewRequest(http.MethodGet, "/?anomalies=true", nil), "anomalies", false)
		assert.True(t, ok)
		assert.True(t, b)
	})

	t.Run("enum is case insensitive", func(t *testing.T) {
		rec := httptest.NewRecorder()
		s, ok := v.ValidateEnum(rec, httptest.NewRequest(http.MethodGet, "/?period=MONTH", nil), "period", []string{"day", "month"}, "day")
		assert.True(t, ok)
		assert.Equal(t, "month", s)

		rec = httptest.NewRecorder()
		_, ok = v.ValidateEnum(rec, httptest.NewRequest(http.MethodGet, "/?period=decade", nil), "period", []string{"day", "month"}, "day")
		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
