package handler_test

import (
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
)

// TestErrors checks the errors (and their paths and extensions) returned for failing queries
func TestErrors(t *testing.T) {
	errorData := map[string]struct {
		query     string
		variables JsonObject

		message string        // expected error message (substring)
		path    []interface{} // expected error path (nil if not checked)
		code    string        // expected extensions code (if any)
	}{
		"Error":      {`{ fail }`, nil, "failed", []interface{}{"fail"}, ""},
		"Extensions": {`{ coded }`, nil, "coded failure", []interface{}{"coded"}, "TEST_CODE"},
		"Panic":      {`{ panics }`, nil, "panic", []interface{}{"panics"}, ""},
		"NonNull":    {`{ required { name } }`, nil, "non-nullable", []interface{}{"required"}, ""},
		"ListPath":   {`{ items { name bad } }`, nil, "bad x", []interface{}{"items", 0.0, "bad"}, ""},
		"Unknown":    {`{ unknown }`, nil, "Cannot query field", nil, ""},
		"MissingArg": {`{ len }`, nil, "required", nil, ""},
		"Syntax":     {`{ message `, nil, "Expected Name", nil, ""},
		"NoVariable": {`query($a: Int!) { add(a: $a) }`, nil, "must be defined", nil, ""},
		"Subscribe":  {`subscription { ticks(n: 1) }`, nil, "websocket", nil, ""},
	}

	h := newHandler(t)
	for name, data := range errorData {
		status, result := post(t, h, data.query, data.variables)
		Assertf(t, status == http.StatusOK, "%-10s: expected status OK got %d", name, status)
		if len(result.Errors) != 1 {
			Assertf(t, false, "%-10s: expected 1 error got %v", name, result.Errors)
			continue
		}
		got := result.Errors[0]
		Assertf(t, strings.Contains(got.Message, data.message), "%-10s: expected message containing %q got %q", name, data.message, got.Message)
		if data.path != nil {
			Assertf(t, reflect.DeepEqual(got.Path, data.path), "%-10s: expected path %v got %v", name, data.path, got.Path)
		}
		if data.code != "" {
			Assertf(t, got.Extensions["code"] == data.code, "%-10s: expected code %q got %v", name, data.code, got.Extensions)
		}
		Assertf(t, result.Data == nil, "%-10s: expected no data got %v", name, result.Data)
	}
}

func TestBadRequests(t *testing.T) {
	h := newHandler(t)

	writer := httptest.NewRecorder()
	h.ServeHTTP(writer, httptest.NewRequest(http.MethodPut, "/graphql", nil))
	Assertf(t, writer.Code == http.StatusMethodNotAllowed, "Method  : expected status 405 got %d", writer.Code)

	writer = httptest.NewRecorder()
	h.ServeHTTP(writer, httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader("{")))
	Assertf(t, writer.Code == http.StatusBadRequest, "BadJSON : expected status 400 got %d", writer.Code)

	writer = httptest.NewRecorder()
	h.ServeHTTP(writer, httptest.NewRequest(http.MethodGet, "/graphql?query=%7Bmessage%7D&variables=%7B", nil))
	Assertf(t, writer.Code == http.StatusBadRequest, "BadVars : expected status 400 got %d", writer.Code)
}
