package transport

import (
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func http2Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ProtoMajor != 2 {
			w.WriteHeader(http.StatusHTTPVersionNotSupported)
			return
		}
		if _, pass, _ := r.BasicAuth(); pass != testPassword {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"path":"`+r.URL.Path+`"}`)
	})
}

func TestSession_Request(t *testing.T) {
	creds := newTestAPI(t, http2Handler(), true)

	s, err := NewSession(context.Background(), creds)
	require.NoError(t, err)
	defer s.Close()

	resp, err := s.Request(context.Background(), RequestOptions{URL: "Help"})
	require.NoError(t, err)
	require.True(t, resp.OK(), "status %d", resp.Status())
	require.False(t, resp.Redirected())

	var body struct {
		Path string `json:"path"`
	}
	require.NoError(t, resp.JSON(&body))
	require.Equal(t, "/Help", body.Path)
	require.False(t, s.Closed())
}

func TestSession_MultipleRequests(t *testing.T) {
	creds := newTestAPI(t, http2Handler(), true)

	s, err := NewSession(context.Background(), creds)
	require.NoError(t, err)
	defer s.Close()

	for i := 0; i < 3; i++ {
		resp, err := s.Request(context.Background(), RequestOptions{URL: "/Help"})
		require.NoError(t, err)
		require.True(t, resp.OK())
	}
	require.False(t, s.Closed())
}

func TestSession_ClosedSessionFails(t *testing.T) {
	creds := newTestAPI(t, http2Handler(), true)

	s, err := NewSession(context.Background(), creds)
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	require.True(t, s.Closed())

	_, err = s.Request(context.Background(), RequestOptions{URL: "/Help"})
	require.ErrorIs(t, err, ErrSessionClosed)
}

func TestSession_RequiresHTTP2(t *testing.T) {
	creds := newTestAPI(t, http2Handler(), false)

	_, err := NewSession(context.Background(), creds)
	require.Error(t, err)
	require.Equal(t, KindOther, Classify(err))
}
