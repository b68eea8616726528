package apollo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatch(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantKind ErrorKind
		wantName string
		wantOrg  string
	}{
		{
			name:   "success",
			status: http.StatusOK,
			body: `{
				"person": {
					"name": "Jane Doe",
					"first_name": "Jane",
					"last_name": "Doe",
					"title": "VP Sales",
					"email": "jane@example.com",
					"organization": {"name": "Acme Co", "industry": "SaaS", "estimated_num_employees": 120}
				}
			}`,
			wantName: "Jane Doe",
			wantOrg:  "Acme Co",
		},
		{
			name:     "rate_limited",
			status:   http.StatusTooManyRequests,
			body:     `{"error": "rate limit exceeded"}`,
			wantKind: KindRateLimited,
		},
		{
			name:     "unauthorized",
			status:   http.StatusUnauthorized,
			body:     `{"error": "invalid api key"}`,
			wantKind: KindUnauthorized,
		},
		{
			name:     "bad_request",
			status:   http.StatusUnprocessableEntity,
			body:     `{"error": "email is malformed"}`,
			wantKind: KindBadRequest,
		},
		{
			name:     "not_found_status",
			status:   http.StatusNotFound,
			body:     `{"error": "not found"}`,
			wantKind: KindNotFound,
		},
		{
			name:     "not_found_empty_person",
			status:   http.StatusOK,
			body:     `{"person": {}}`,
			wantKind: KindNotFound,
		},
		{
			name:     "server_error",
			status:   http.StatusBadGateway,
			body:     `upstream unavailable`,
			wantKind: KindUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/people/match", r.URL.Path)
				assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client := NewClient("test-key", WithBaseURL(srv.URL))

			rec, err := client.Match(context.Background(), "jane@example.com")

			if tt.wantKind != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantKind, KindOf(err))
				assert.Nil(t, rec)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, rec)
			assert.Equal(t, tt.wantName, rec.Person.Name)
			assert.Equal(t, "VP Sales", rec.Person.Title)
			assert.Equal(t, tt.wantOrg, rec.Organization.Name)
			assert.Equal(t, 120, rec.Organization.EstimatedNumEmployees)
		})
	}
}

func TestKindOf_NonApolloError(t *testing.T) {
	assert.Equal(t, KindUnknown, KindOf(assert.AnError))
}

func TestMatch_TruncatesLongErrorBody(t *testing.T) {
	long := make([]byte, 1000)
	for i := range long {
		long[i] = 'x'
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write(long)
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := client.Match(context.Background(), "jane@example.com")
	require.Error(t, err)
	assert.Less(t, len(err.Error()), 300)
}
