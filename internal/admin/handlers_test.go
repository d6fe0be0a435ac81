package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/taxsync/internal/config"
	"github.com/roach88/taxsync/internal/store"
	"github.com/roach88/taxsync/internal/taxonomy"
	"github.com/roach88/taxsync/internal/tenant"
	"github.com/roach88/taxsync/internal/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const (
	category taxonomy.ID = "wsuwp_university_category"
	tenantID             = "pullman"
	termsPath            = "/v1/tenants/pullman/taxonomies/wsuwp_university_category/terms"
)

func testSchema() *taxonomy.Schema {
	return &taxonomy.Schema{
		Version: "2024090101",
		Taxonomies: []taxonomy.Managed{{
			Definition: taxonomy.Definition{
				Taxonomy: category,
				Groups: []taxonomy.Group{
					{Name: "Sports", Children: []taxonomy.Child{
						{Name: "Intercollegiate", Leaves: []string{"Baseball", "Football"}},
					}},
					{Name: "Research"},
				},
			},
		}},
	}
}

type fixture struct {
	registry *tenant.Registry
	router   *gin.Engine
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()

	reg := tenant.NewRegistry(cfg, testSchema(), tenant.WithLogger(testutil.DiscardLogger()))
	t.Cleanup(func() { reg.Close() })

	opts = append([]Option{WithLogger(testutil.DiscardLogger())}, opts...)
	return &fixture{
		registry: reg,
		router:   NewRouter(NewHandlers(reg, opts...)),
	}
}

// provisioned returns a fixture whose tenant already holds the schema tree.
func provisioned(t *testing.T, opts ...Option) (*fixture, *store.Tree) {
	t.Helper()
	f := newFixture(t, opts...)
	_, err := f.registry.Provision(context.Background(), tenantID)
	require.NoError(t, err)
	tn, err := f.registry.Tenant(context.Background(), tenantID)
	require.NoError(t, err)
	tree, err := tn.Store.Tree(context.Background(), category)
	require.NoError(t, err)
	return f, tree
}

func (f *fixture) do(t *testing.T, method, path string, body any, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func nodeID(t *testing.T, tree *store.Tree, path ...string) taxonomy.TermID {
	t.Helper()
	n, ok := tree.Find(path...)
	require.True(t, ok, "%v", path)
	return n.ID
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "2024090101")
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))
}

func TestRequestIDEchoed(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodGet, "/healthz", nil, requestIDHeader, "req-42")
	assert.Equal(t, "req-42", w.Header().Get(requestIDHeader))
}

func TestTerms_PageLoadSchedulesUpdateOnce(t *testing.T) {
	f := newFixture(t)
	_, err := f.registry.Open(context.Background(), tenantID)
	require.NoError(t, err)

	first := f.do(t, http.MethodGet, termsPath, nil)
	require.Equal(t, http.StatusOK, first.Code)
	resp := decode[TermsResponse](t, first)
	assert.True(t, resp.UpdateScheduled)
	assert.Equal(t, 0, resp.Tree.Count)

	second := decode[TermsResponse](t, f.do(t, http.MethodGet, termsPath, nil))
	assert.False(t, second.UpdateScheduled, "ticket already outstanding")

	status := decode[StatusResponse](t, f.do(t, http.MethodGet, "/v1/tenants/pullman/status", nil))
	assert.Equal(t, tenantID, status.Tenant)
	assert.False(t, status.Current)
	require.NotNil(t, status.Pending)
}

func TestTerms_ReturnsTreeWhenCurrent(t *testing.T) {
	f, _ := provisioned(t)

	w := f.do(t, http.MethodGet, termsPath, nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[TermsResponse](t, w)
	assert.False(t, resp.UpdateScheduled)
	assert.Equal(t, 5, resp.Tree.Count)
	require.Len(t, resp.Tree.Roots, 2)
	assert.Equal(t, "Research", resp.Tree.Roots[0].Name)
	assert.Equal(t, "Sports", resp.Tree.Roots[1].Name)
}

func TestTerms_LookupErrors(t *testing.T) {
	f, _ := provisioned(t)

	tests := []struct {
		name   string
		path   string
		status int
		code   string
	}{
		{"unknown tenant", "/v1/tenants/spokane/taxonomies/wsuwp_university_category/terms", http.StatusNotFound, CodeUnknownTenant},
		{"invalid tenant", "/v1/tenants/Spokane/taxonomies/wsuwp_university_category/terms", http.StatusBadRequest, CodeInvalidTenant},
		{"unmanaged taxonomy", "/v1/tenants/pullman/taxonomies/post_tag/terms", http.StatusNotFound, CodeUnknownTaxonomy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, http.MethodGet, tt.path, nil)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, decode[ErrorResponse](t, w).Code)
		})
	}
}

func TestInsert_InsertAfter(t *testing.T) {
	f, tree := provisioned(t)
	sports := nodeID(t, tree, "Sports")
	research := nodeID(t, tree, "Research")
	intercollegiate := nodeID(t, tree, "Sports", "Intercollegiate")
	baseball := nodeID(t, tree, "Sports", "Intercollegiate", "Baseball")

	tests := []struct {
		name   string
		parent taxonomy.TermID
		term   string
		after  taxonomy.TermID
	}{
		{"first at root follows root", taxonomy.RootID, "Extension", taxonomy.RootID},
		{"last at root follows last sibling", taxonomy.RootID, "Zoology", sports},
		{"between siblings", intercollegiate, "Crew", baseball},
		{"only child follows parent", research, "Centers", research},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, http.MethodPost, termsPath, InsertRequest{Parent: tt.parent, Name: tt.term})
			require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

			resp := decode[InsertResponse](t, w)
			assert.Equal(t, tt.term, resp.Term.Name)
			assert.Equal(t, tt.parent, resp.Term.Parent)
			assert.Equal(t, category, resp.Term.Taxonomy)
			assert.Equal(t, tt.after, resp.InsertAfter)
		})
	}

	// The page reflects inserts immediately.
	resp := decode[TermsResponse](t, f.do(t, http.MethodGet, termsPath, nil))
	_, ok := resp.Tree.Find("Sports", "Intercollegiate", "Crew")
	assert.True(t, ok)
}

func TestInsert_Rejections(t *testing.T) {
	f, tree := provisioned(t)
	sports := nodeID(t, tree, "Sports")

	tests := []struct {
		name   string
		body   any
		status int
		code   string
	}{
		{"missing name", map[string]any{"parent": 0}, http.StatusBadRequest, CodeInvalidRequest},
		{"blank name", InsertRequest{Name: "   "}, http.StatusBadRequest, CodeInvalidRequest},
		{"negative parent", map[string]any{"parent": -1, "name": "X"}, http.StatusBadRequest, CodeInvalidRequest},
		{"malformed body", "not an object", http.StatusBadRequest, CodeInvalidRequest},
		{"unknown parent", InsertRequest{Parent: 9999, Name: "X"}, http.StatusBadRequest, CodeUnknownParent},
		{"duplicate sibling", InsertRequest{Parent: sports, Name: "Intercollegiate"}, http.StatusConflict, CodeDuplicateTerm},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, http.MethodPost, termsPath, tt.body)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, decode[ErrorResponse](t, w).Code)
		})
	}

	// Nothing partial was written.
	tn, err := f.registry.Tenant(context.Background(), tenantID)
	require.NoError(t, err)
	all, err := tn.Store.ListTerms(context.Background(), category, taxonomy.AnyParent())
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestInsert_RequiresToken(t *testing.T) {
	f, _ := provisioned(t, WithAdminToken("s3cret"))
	body := InsertRequest{Name: "Extension"}

	w := f.do(t, http.MethodPost, termsPath, body)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, CodeUnauthorized, decode[ErrorResponse](t, w).Code)

	w = f.do(t, http.MethodPost, termsPath, body, "Authorization", "Bearer wrong")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(t, http.MethodPost, termsPath, body, "Authorization", "bearer s3cret")
	assert.Equal(t, http.StatusCreated, w.Code)

	// Reads stay open.
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, termsPath, nil).Code)
}

func TestProvisionAndUpdate(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/v1/tenants/vancouver/provision", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	run := decode[RunResponse](t, w)
	assert.Equal(t, "vancouver", run.Tenant)
	assert.Equal(t, "2024090101", run.Version)
	require.Len(t, run.Reports, 1)
	assert.Equal(t, 5, run.Reports[0].Created)

	w = f.do(t, http.MethodPost, "/v1/tenants/vancouver/update", nil)
	require.Equal(t, http.StatusOK, w.Code)
	run = decode[RunResponse](t, w)
	assert.Equal(t, 0, run.Reports[0].Created)
	assert.Equal(t, 5, run.Reports[0].Matched)

	status := decode[StatusResponse](t, f.do(t, http.MethodGet, "/v1/tenants/vancouver/status", nil))
	assert.True(t, status.Current)

	w = f.do(t, http.MethodPost, "/v1/tenants/Bad/provision", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodGet, "/healthz", nil)

	w := f.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "taxsync_admin_requests_total")
}

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"Bearer abc123", "abc123"},
		{"bearer ABC", "ABC"},
		{"Basic abc123", ""},
		{"Bearer", ""},
		{"", ""},
	}
	for _, tt := range tests {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.header != "" {
			c.Request.Header.Set("Authorization", tt.header)
		}
		assert.Equal(t, tt.want, extractBearerToken(c), tt.header)
	}
}
