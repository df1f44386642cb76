package libraryql_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/andrewwphillips/libraryql"
	"github.com/andrewwphillips/libraryql/internal/config"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type gqlResponse struct {
	Data   map[string]interface{} `json:"data"`
	Errors []struct {
		Message    string                 `json:"message"`
		Path       []interface{}          `json:"path"`
		Extensions map[string]interface{} `json:"extensions"`
	} `json:"errors"`
}

func testConfig(mods ...func(*config.Config)) *config.Config {
	cfg := config.Default()
	cfg.Store = config.StoreMemory
	cfg.Auth.Secret = "test secret"
	cfg.Auth.HashCost = bcrypt.MinCost
	for _, mod := range mods {
		mod(cfg)
	}
	return cfg
}

func newServer(t *testing.T, mods ...func(*config.Config)) *httptest.Server {
	t.Helper()
	s, err := libraryql.New(context.Background(), testConfig(mods...), libraryql.WithLogger(zap.NewNop()))
	require.NoError(t, err)
	server := httptest.NewServer(s)
	t.Cleanup(func() {
		server.Close()
		assert.NoError(t, s.Close(context.Background()))
	})
	return server
}

func post(t *testing.T, url, token, query string, vars map[string]interface{}) (int, gqlResponse) {
	t.Helper()
	body, err := json.Marshal(map[string]interface{}{"query": query, "variables": vars})
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, url+"/graphql", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var r gqlResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&r))
	return resp.StatusCode, r
}

// login creates a user and returns a token for them
func login(t *testing.T, url string) string {
	t.Helper()
	_, r := post(t, url, "", `mutation { createUser(username: "mluukkai", favoriteGenre: "refactoring") { id } }`, nil)
	require.Empty(t, r.Errors)
	_, r = post(t, url, "", `mutation { login(username: "mluukkai", password: "secret") { value } }`, nil)
	require.Empty(t, r.Errors)
	return r.Data["login"].(map[string]interface{})["value"].(string)
}

const addBook = `mutation ($title: String!, $author: String!, $published: Int, $genres: [String!]!) {
  addBook(title: $title, author: $author, published: $published, genres: $genres) { title author { name } }
}`

func TestCatalog(t *testing.T) {
	server := newServer(t)
	token := login(t, server.URL)

	books := []map[string]interface{}{
		{"title": "Clean Code", "author": "Robert Martin", "published": 2008, "genres": []string{"refactoring"}},
		{"title": "Agile software development", "author": "Robert Martin", "published": 2002, "genres": []string{"agile", "patterns"}},
		{"title": "Refactoring, edition 2", "author": "Martin Fowler", "published": 2018, "genres": []string{"refactoring"}},
	}
	for _, b := range books {
		status, r := post(t, server.URL, token, addBook, b)
		require.Equal(t, http.StatusOK, status)
		require.Empty(t, r.Errors, "adding %v", b["title"])
	}

	_, r := post(t, server.URL, "", `{ bookCount authorCount }`, nil)
	assert.Equal(t, map[string]interface{}{"bookCount": 3.0, "authorCount": 2.0}, r.Data)

	_, r = post(t, server.URL, "", `{ allBooks(genre: "refactoring") { title } }`, nil)
	assert.Equal(t, []interface{}{
		map[string]interface{}{"title": "Clean Code"},
		map[string]interface{}{"title": "Refactoring, edition 2"},
	}, r.Data["allBooks"])

	_, r = post(t, server.URL, "", `{ allAuthors { name bookCount born } }`, nil)
	assert.Equal(t, []interface{}{
		map[string]interface{}{"name": "Robert Martin", "bookCount": 2.0, "born": nil},
		map[string]interface{}{"name": "Martin Fowler", "bookCount": 1.0, "born": nil},
	}, r.Data["allAuthors"])

	_, r = post(t, server.URL, token, `mutation { editAuthor(name: "Martin Fowler", setBornTo: 1963) { name born } }`, nil)
	assert.Empty(t, r.Errors)
	assert.Equal(t, map[string]interface{}{"name": "Martin Fowler", "born": 1963.0}, r.Data["editAuthor"])

	_, r = post(t, server.URL, token, `{ me { username favoriteGenre } }`, nil)
	assert.Equal(t, map[string]interface{}{"username": "mluukkai", "favoriteGenre": "refactoring"}, r.Data["me"])

	_, r = post(t, server.URL, "", `{ me { username } }`, nil)
	assert.Nil(t, r.Data["me"])
}

func TestErrorCodes(t *testing.T) {
	server := newServer(t)
	token := login(t, server.URL)

	data := map[string]struct {
		token    string
		query    string
		vars     map[string]interface{}
		status   int
		code     string
		contains string
	}{
		"no token": {
			query:  addBook,
			vars:   map[string]interface{}{"title": "Clean Code", "author": "Robert Martin", "genres": []string{}},
			status: http.StatusOK, code: "UNAUTHENTICATED", contains: "Not authenticated",
		},
		"bad token": {
			token: "not.a.token", query: `{ bookCount }`,
			status: http.StatusUnauthorized, code: "INVALID_TOKEN", contains: "invalid token",
		},
		"short title": {
			token: token, query: addBook,
			vars:   map[string]interface{}{"title": "C", "author": "Robert Martin", "genres": []string{}},
			status: http.StatusOK, code: "BAD_USER_INPUT", contains: "Book title too short",
		},
		"no author": {
			token: token, query: `mutation { editAuthor(name: "Nobody Here", setBornTo: 1900) { name } }`,
			status: http.StatusOK, code: "NOT_FOUND", contains: "Author not found",
		},
		"wrong password": {
			query:  `mutation { login(username: "mluukkai", password: "wrong") { value } }`,
			status: http.StatusOK, code: "BAD_USER_INPUT", contains: "Wrong credentials",
		},
	}

	for name, d := range data {
		t.Run(name, func(t *testing.T) {
			status, r := post(t, server.URL, d.token, d.query, d.vars)
			assert.Equal(t, d.status, status)
			require.Len(t, r.Errors, 1)
			assert.Contains(t, r.Errors[0].Message, d.contains)
			assert.Equal(t, d.code, r.Errors[0].Extensions["code"])
		})
	}
}

func TestHealth(t *testing.T) {
	server := newServer(t)
	resp, err := http.Get(server.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))
}

// subscribe opens a websocket to the server and starts a bookAdded subscription
func subscribe(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	dialer := websocket.Dialer{Subprotocols: []string{"graphql-transport-ws"}}
	conn, resp, err := dialer.Dial(strings.Replace(url, "http://", "ws://", 1)+"/graphql", nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"type": "connection_init", "payload": map[string]interface{}{}}))
	var ack map[string]interface{}
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, conn.ReadJSON(&ack))
	require.Equal(t, "connection_ack", ack["type"])

	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"id":      "1",
		"type":    "subscribe",
		"payload": map[string]interface{}{"query": `subscription { bookAdded { title author { name } } }`},
	}))
	return conn
}

// keepAdding adds books (with different titles) until the context is cancelled.  The
// subscription is started asynchronously so we can't tell when the first book will be seen.
func keepAdding(ctx context.Context, url, token string) {
	for i := 0; ; i++ {
		body, _ := json.Marshal(map[string]interface{}{
			"query":     addBook,
			"variables": map[string]interface{}{"title": fmt.Sprintf("Book %d", i), "author": "Robert Martin", "genres": []string{}},
		})
		req, _ := http.NewRequestWithContext(ctx, http.MethodPost, url+"/graphql", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)
		if resp, err := http.DefaultClient.Do(req); err == nil {
			_ = resp.Body.Close()
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(20 * time.Millisecond):
		}
	}
}

func TestBookAdded(t *testing.T) {
	mr := miniredis.RunT(t)
	withRedis := func(cfg *config.Config) { cfg.Redis.Addr = mr.Addr() }

	data := map[string]struct {
		mods  []func(*config.Config)
		other bool // publish through a second server
	}{
		"local": {},
		"redis": {mods: []func(*config.Config){withRedis}},
		"relay": {mods: []func(*config.Config){withRedis}, other: true},
	}

	for name, d := range data {
		t.Run(name, func(t *testing.T) {
			receiver := newServer(t, d.mods...)
			publisher := receiver
			if d.other {
				publisher = newServer(t, d.mods...)
			}
			token := login(t, publisher.URL)
			conn := subscribe(t, receiver.URL)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			go keepAdding(ctx, publisher.URL, token)

			var msg struct {
				ID      string `json:"id"`
				Type    string `json:"type"`
				Payload struct {
					Data struct {
						BookAdded struct {
							Title  string `json:"title"`
							Author struct {
								Name string `json:"name"`
							} `json:"author"`
						} `json:"bookAdded"`
					} `json:"data"`
				} `json:"payload"`
			}
			require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
			for msg.Type != "next" {
				require.NoError(t, conn.ReadJSON(&msg))
				require.NotEqual(t, "error", msg.Type)
			}
			assert.Equal(t, "1", msg.ID)
			assert.True(t, strings.HasPrefix(msg.Payload.Data.BookAdded.Title, "Book "), "title %q", msg.Payload.Data.BookAdded.Title)
			assert.Equal(t, "Robert Martin", msg.Payload.Data.BookAdded.Author.Name)
		})
	}
}

func TestServeShutdown(t *testing.T) {
	s, err := libraryql.New(context.Background(), testConfig(), libraryql.WithLogger(zap.NewNop()))
	require.NoError(t, err)
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, l) }()

	url := "http://" + l.Addr().String()
	resp, err := http.Get(url + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	conn := subscribe(t, url)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}

	// the open subscription is ended by the shutdown
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var msg map[string]interface{}
		if err = conn.ReadJSON(&msg); err != nil {
			break
		}
	}
	var netErr net.Error
	assert.False(t, errors.As(err, &netErr) && netErr.Timeout(), "expected connection closed, got %v", err)
}
