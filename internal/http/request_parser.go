// Package http provides the JSON API server and its handlers.
//
// This file implements utilities for parsing and validating request data:
// JSON bodies bound to validated DTOs and the query parameters shared by the
// list and report endpoints.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"expensetracker/internal/core"
	"expensetracker/internal/services"
	"expensetracker/internal/storage"
)

const maxBodyBytes = 1 << 20

// malformedRequestError marks bodies that are not valid JSON.
type malformedRequestError struct {
	msg string
}

func (e *malformedRequestError) Error() string { return e.msg }

// queryError is a bad query parameter; it renders as a 422 with details.
type queryError struct {
	field string
	msg   string
}

func (e *queryError) Error() string { return e.field + ": " + e.msg }

// bindJSON decodes the body into dst and validates it.
func bindJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	if err := decodeJSON(w, r, dst); err != nil {
		return err
	}
	return validate.Struct(dst)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		return &malformedRequestError{msg: "content type must be application/json"}
	}

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return &malformedRequestError{msg: "request body is empty"}
		case errors.As(err, &syntaxErr), errors.Is(err, io.ErrUnexpectedEOF):
			return &malformedRequestError{msg: "malformed JSON"}
		case errors.As(err, &typeErr):
			if typeErr.Field != "" {
				return &queryError{field: typeErr.Field, msg: "has the wrong type"}
			}
			return &malformedRequestError{msg: "malformed JSON"}
		case errors.As(err, &maxErr):
			return &malformedRequestError{msg: "request body too large"}
		default:
			// Errors from field unmarshalers (money, dates) are domain errors.
			return err
		}
	}
	if dec.More() {
		return &malformedRequestError{msg: "request body must contain a single JSON object"}
	}
	return nil
}

// MonthParams holds parsed year/month values from request parameters.
// Zero means "current".
type MonthParams struct {
	Year  int
	Month int
}

// ParseMonthParams extracts year and month from query parameters.
func ParseMonthParams(query url.Values) (MonthParams, error) {
	var params MonthParams
	var err error
	if params.Year, err = intParam(query, "year", 0, 1970, 9999); err != nil {
		return MonthParams{}, err
	}
	if params.Month, err = intParam(query, "month", 0, 1, 12); err != nil {
		return MonthParams{}, err
	}
	return params, nil
}

// TrendParams selects the months of a trend report.
type TrendParams struct {
	MonthParams
	Months int
}

// ParseTrendParams extracts months (1..36, default 6) and the end month.
func ParseTrendParams(query url.Values) (TrendParams, error) {
	mp, err := ParseMonthParams(query)
	if err != nil {
		return TrendParams{}, err
	}
	months, err := intParam(query, "months", services.DefaultTrendMonths, 1, services.MaxTrendMonths)
	if err != nil {
		return TrendParams{}, err
	}
	return TrendParams{MonthParams: mp, Months: months}, nil
}

// ParseExpenseFilter reads from, to, category, limit and offset.
func ParseExpenseFilter(query url.Values) (storage.ExpenseFilter, error) {
	var f storage.ExpenseFilter
	var err error
	if f.From, err = dateParam(query, "from"); err != nil {
		return f, err
	}
	if f.To, err = dateParam(query, "to"); err != nil {
		return f, err
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
		return f, &queryError{field: "to", msg: "must not be before from"}
	}
	f.Category = sanitizeInput(query.Get("category"))
	if f.Limit, err = intParam(query, "limit", 0, 1, services.MaxPageSize); err != nil {
		return f, err
	}
	if f.Offset, err = intParam(query, "offset", 0, 0, 1<<31-1); err != nil {
		return f, err
	}
	return f, nil
}

// boolParam is true for "1", "true" or "yes".
func boolParam(query url.Values, name string) bool {
	switch strings.ToLower(strings.TrimSpace(query.Get(name))) {
	case "1", "true", "yes":
		return true
	}
	return false
}

func intParam(query url.Values, name string, def, min, max int) (int, error) {
	v := strings.TrimSpace(query.Get(name))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, &queryError{field: name, msg: "must be a number"}
	}
	if n < min || n > max {
		return 0, &queryError{field: name, msg: fmt.Sprintf("must be between %d and %d", min, max)}
	}
	return n, nil
}

func dateParam(query url.Values, name string) (core.Date, error) {
	v := strings.TrimSpace(query.Get(name))
	if v == "" {
		return core.Date{}, nil
	}
	d, err := core.ParseDate(v)
	if err != nil {
		return core.Date{}, &queryError{field: name, msg: "must be a date in YYYY-MM-DD format"}
	}
	return d, nil
}
