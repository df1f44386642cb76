package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/andrewwphillips/libraryql/internal/handler"
	"github.com/andrewwphillips/libraryql/internal/schema"
)

// testSchema must match the testQuery, testMutation and testSubscription structs (checked by schema.Check)
const testSchema = `
type Query {
	message: String!
	len(s: String!): Int!
	add(a: Int!, b: Int = 2): Int!
	echo(s: String): String
	tags: [String!]!
	item: Item
	items: [Item!]!
	fail: Int
	coded: Int
	panics: Int
	missing: Item
	required: Item!
	sum(values: [Int!]!): Int!
	user: String
}
type Item { name: String! count: Int bad: Int }
type Mutation { incr(by: Int!): Int! }
type Subscription { ticks(n: Int!): Int! item: Item! }
`

type (
	testItem struct {
		Name  string
		Count *int
		Bad   func() (int, error)
	}
	testQuery struct {
		Message  string
		Len      func(string) int   `egg:"len(s)"`
		Add      func(int, int) int `egg:"add(a,b)"`
		Echo     func(*string) *string `egg:"echo(s)"`
		Tags     []string
		Item     *testItem
		Items    []testItem
		Fail     func() (int, error)
		Coded    func() (int, error)
		Panics   func() int
		Missing  *testItem
		Required *testItem
		Sum      func([]int) int `egg:"sum(values)"`
		User     func(context.Context) *string
	}
	testMutation struct {
		Incr func(int) int `egg:"incr(by)"`
	}
	testSubscription struct {
		Ticks func(context.Context, int) (<-chan int, error) `egg:"ticks(n)"`
		Item  func(context.Context) (<-chan testItem, error)
	}

	// codedError adds a code to the GraphQL error extensions
	codedError struct{}

	userKey struct{}
)

func (codedError) Error() string { return "coded failure" }
func (codedError) Extensions() map[string]interface{} {
	return map[string]interface{}{"code": "TEST_CODE"}
}

func newQuery() testQuery {
	three := 3
	return testQuery{
		Message: "hello",
		Len:     func(s string) int { return len(s) },
		Add:     func(a, b int) int { return a + b },
		Echo:    func(s *string) *string { return s },
		Item:    &testItem{Name: "a", Count: &three},
		Items: []testItem{
			{Name: "x", Bad: func() (int, error) { return 0, errors.New("bad x") }},
			{Name: "y", Bad: func() (int, error) { return 0, errors.New("bad y") }},
		},
		Fail:   func() (int, error) { return 0, errors.New("failed") },
		Coded:  func() (int, error) { return 0, codedError{} },
		Panics: func() int { panic("oops") },
		Sum: func(values []int) (r int) {
			for _, v := range values {
				r += v
			}
			return
		},
		User: func(ctx context.Context) *string {
			if u, ok := ctx.Value(userKey{}).(string); ok {
				return &u
			}
			return nil
		},
	}
}

// newMutation returns a mutation whose results depend on the order the mutations are run
func newMutation() testMutation {
	var mu sync.Mutex
	total := 0
	return testMutation{
		Incr: func(by int) int {
			mu.Lock()
			defer mu.Unlock()
			total += by
			return total
		},
	}
}

func newSubscription() testSubscription {
	return testSubscription{
		Ticks: func(ctx context.Context, n int) (<-chan int, error) {
			if n < 0 {
				return nil, errors.New("n must not be negative")
			}
			ch := make(chan int)
			go func() {
				defer close(ch)
				for i := 1; i <= n; i++ {
					select {
					case ch <- i:
					case <-ctx.Done():
						return
					}
				}
			}()
			return ch, nil
		},
		Item: func(ctx context.Context) (<-chan testItem, error) {
			ch := make(chan testItem, 1)
			ch <- testItem{Name: "first"}
			go func() {
				<-ctx.Done()
				close(ch)
			}()
			return ch, nil
		},
	}
}

// newHandler creates a handler for testSchema.  The "Bearer bad" credential is rejected
// and "Bearer <name>" makes <name> the current user.
func newHandler(t *testing.T, options ...func(*handler.Handler)) *handler.Handler {
	t.Helper()
	s := schema.MustLoad(testSchema)
	q, m, sub := newQuery(), newMutation(), newSubscription()
	if err := schema.Check(s, q, m, sub); err != nil {
		t.Fatalf("test resolvers do not match schema: %v", err)
	}
	authenticate := func(ctx context.Context, authorization string) (context.Context, error) {
		name := strings.TrimPrefix(authorization, "Bearer ")
		switch name {
		case "":
			return ctx, nil
		case "bad":
			return ctx, errors.New("invalid token")
		}
		return context.WithValue(ctx, userKey{}, name), nil
	}
	options = append([]func(*handler.Handler){handler.Authenticate(authenticate)}, options...)
	return handler.New(s, [3]interface{}{q, m, sub}, options...)
}

type (
	// JsonObject is what json.Unmarshal produces when it decodes a JSON object
	JsonObject = map[string]interface{}

	gqlError struct {
		Message    string
		Path       []interface{}
		Extensions map[string]interface{}
	}
	gqlResponse struct {
		Data   interface{}
		Errors []gqlError
	}
)

// post sends a query to the handler (POST) returning the HTTP status and decoded response
func post(t *testing.T, h http.Handler, query string, variables JsonObject, header ...string) (int, gqlResponse) {
	t.Helper()
	body, err := json.Marshal(JsonObject{"query": query, "variables": variables})
	if err != nil {
		t.Fatalf("encoding request: %v", err)
	}
	request := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(string(body)))
	request.Header.Add("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		request.Header.Add(header[i], header[i+1])
	}
	return record(t, h, request)
}

// get sends a query using an HTTP GET request
func get(t *testing.T, h http.Handler, query string) (int, gqlResponse) {
	t.Helper()
	request := httptest.NewRequest(http.MethodGet, "/graphql?query="+url.QueryEscape(query), nil)
	return record(t, h, request)
}

func record(t *testing.T, h http.Handler, request *http.Request) (int, gqlResponse) {
	t.Helper()
	writer := httptest.NewRecorder()
	h.ServeHTTP(writer, request)

	var result gqlResponse
	if writer.Body.Len() > 0 {
		if err := json.NewDecoder(writer.Body).Decode(&result); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
	}
	return writer.Code, result
}

func Assertf(t *testing.T, succeeded bool, format string, args ...interface{}) {
	const (
		succeed = "\u2713" // tick
		failed  = "XXXXX"  //"\u2717" // cross
	)

	t.Helper()
	if !succeeded {
		t.Errorf("%-6s"+format, append([]interface{}{failed}, args...)...)
	} else {
		t.Logf("%-6s"+format, append([]interface{}{succeed}, args...)...)
	}
}

// postBody sends a request body (which may include operationName) to the handler
func postBody(t *testing.T, h http.Handler, body JsonObject) (int, gqlResponse) {
	t.Helper()
	buf, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("encoding request: %v", err)
	}
	request := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(string(buf)))
	return record(t, h, request)
}

func handlerNoConcurrency() []func(*handler.Handler) {
	return []func(*handler.Handler){handler.NoConcurrency(true)}
}
