package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"expensetracker/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMonthParams(t *testing.T) {
	tests := []struct {
		name      string
		query     url.Values
		wantYear  int
		wantMonth int
		wantErr   string
	}{
		{name: "both values provided", query: url.Values{"year": {"2024"}, "month": {"12"}}, wantYear: 2024, wantMonth: 12},
		{name: "empty means current", query: url.Values{}, wantYear: 0, wantMonth: 0},
		{name: "whitespace is trimmed", query: url.Values{"month": {" 3 "}}, wantMonth: 3},
		{name: "month out of range", query: url.Values{"month": {"13"}}, wantErr: "month"},
		{name: "year not a number", query: url.Values{"year": {"abc"}}, wantErr: "year"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMonthParams(tt.query)
			if tt.wantErr != "" {
				var qe *queryError
				require.ErrorAs(t, err, &qe)
				assert.Equal(t, tt.wantErr, qe.field)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantYear, got.Year)
			assert.Equal(t, tt.wantMonth, got.Month)
		})
	}
}

func TestParseTrendParams(t *testing.T) {
	got, err := ParseTrendParams(url.Values{})
	require.NoError(t, err)
	assert.Equal(t, 6, got.Months)

	got, err = ParseTrendParams(url.Values{"months": {"12"}, "year": {"2025"}, "month": {"2"}})
	require.NoError(t, err)
	assert.Equal(t, TrendParams{MonthParams: MonthParams{Year: 2025, Month: 2}, Months: 12}, got)

	_, err = ParseTrendParams(url.Values{"months": {"0"}})
	assert.Error(t, err)
}

func TestParseExpenseFilter(t *testing.T) {
	f, err := ParseExpenseFilter(url.Values{
		"from": {"2025-01-01"}, "to": {"2025-01-31"}, "category": {" food\x00 "}, "limit": {"20"}, "offset": {"40"},
	})
	require.NoError(t, err)
	assert.Equal(t, core.NewDate(2025, 1, 1), f.From)
	assert.Equal(t, core.NewDate(2025, 1, 31), f.To)
	assert.Equal(t, "food", f.Category)
	assert.Equal(t, 20, f.Limit)
	assert.Equal(t, 40, f.Offset)

	for _, q := range []url.Values{
		{"from": {"01/02/2025"}},
		{"from": {"2025-02-01"}, "to": {"2025-01-01"}},
		{"limit": {"100000"}},
		{"offset": {"-1"}},
	} {
		_, err := ParseExpenseFilter(q)
		assert.Error(t, err, q.Encode())
	}
}

func TestBindJSON(t *testing.T) {
	type payload struct {
		Title string `json:"title" validate:"required"`
	}

	tests := []struct {
		name        string
		body        string
		contentType string
		check       func(t *testing.T, err error)
	}{
		{"valid", `{"title":"ok"}`, "application/json", func(t *testing.T, err error) { assert.NoError(t, err) }},
		{"empty body", ``, "application/json", func(t *testing.T, err error) {
			var m *malformedRequestError
			assert.ErrorAs(t, err, &m)
		}},
		{"two objects", `{"title":"a"}{"title":"b"}`, "application/json", func(t *testing.T, err error) {
			var m *malformedRequestError
			assert.ErrorAs(t, err, &m)
		}},
		{"wrong content type", `title=x`, "application/x-www-form-urlencoded", func(t *testing.T, err error) {
			var m *malformedRequestError
			assert.ErrorAs(t, err, &m)
		}},
		{"missing required", `{}`, "application/json", func(t *testing.T, err error) {
			assert.Equal(t, map[string]string{"title": "is required"}, ToDetails(err))
		}},
		{"amount error surfaces", `{"title":"x","amount":"1.2.3"}`, "", func(t *testing.T, err error) {
			assert.True(t, errors.Is(err, core.ErrInvalidAmount))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			if tt.name == "amount error surfaces" {
				var dst struct {
					Title  string     `json:"title"`
					Amount core.Money `json:"amount"`
				}
				tt.check(t, bindJSON(httptest.NewRecorder(), req, &dst))
				return
			}
			var dst payload
			tt.check(t, bindJSON(httptest.NewRecorder(), req, &dst))
		})
	}
}

func TestSanitizeInput(t *testing.T) {
	assert.Equal(t, "hello world", sanitizeInput("  hello\x01 world\x07 "))
	assert.Equal(t, "line\nbreak", sanitizeInput("line\nbreak"))
}
