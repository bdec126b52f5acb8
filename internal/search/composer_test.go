package search

import (
	"context"
	"errors"
	"testing"

	"github.com/jobstream-labs/jobstream/internal/model"
	"github.com/jobstream-labs/jobstream/pkg/config"
	apperrors "github.com/jobstream-labs/jobstream/pkg/errors"
)

type fakeContextStore struct {
	user    model.User
	userErr error
	queries []string
	clicks  []string
	descs   []string
}

func (s *fakeContextStore) GetUser(ctx context.Context, userID string) (model.User, error) {
	if s.userErr != nil {
		return model.User{}, s.userErr
	}
	return s.user, nil
}

func (s *fakeContextStore) RecentSearchQueries(ctx context.Context, userID string, limit int) ([]string, error) {
	if limit < len(s.queries) {
		return s.queries[:limit], nil
	}
	return s.queries, nil
}

func (s *fakeContextStore) RecentClickedJobIDs(ctx context.Context, userID string, limit int) ([]string, error) {
	if limit < len(s.clicks) {
		return s.clicks[:limit], nil
	}
	return s.clicks, nil
}

func (s *fakeContextStore) Descriptions(ctx context.Context, ids []string) ([]string, error) {
	return s.descs[:len(ids)], nil
}

type fakeQuerier struct {
	ids      []string
	dists    []float64
	gotK     int
	queryErr error
}

func (q *fakeQuerier) Query(ctx context.Context, vector []float32, k int) ([]string, []float64, error) {
	q.gotK = k
	if q.queryErr != nil {
		return nil, nil, q.queryErr
	}
	return q.ids, q.dists, nil
}

type capturingEmbedder struct {
	lastText string
}

func (e *capturingEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	e.lastText = text
	return []float32{1, 2, 3, 4}, nil
}

func (e *capturingEmbedder) EmbedRecord(ctx context.Context, p model.Posting) ([]float32, error) {
	return e.EmbedText(ctx, p.FlatText())
}

func (e *capturingEmbedder) EmbedRecords(ctx context.Context, ps []model.Posting) ([][]float32, error) {
	out := make([][]float32, len(ps))
	for i := range ps {
		out[i], _ = e.EmbedRecord(ctx, ps[i])
	}
	return out, nil
}

func searchCfg() config.SearchConfig {
	return config.SearchConfig{
		DefaultK:       10,
		HistoryLimit:   5,
		DescTruncation: -1,
		MetadataCutoff: 10,
	}
}

func TestUserDataEmptyProfile(t *testing.T) {
	got := UserData(model.User{})
	if got != ", , " {
		t.Errorf("UserData(empty) = %q, want %q", got, ", , ")
	}
}

func TestUserDataFlattensSections(t *testing.T) {
	user := model.User{
		Skills: []string{"go", "sql"},
		WorkHistory: []map[string]string{
			{"company": "Acme", "title": "Engineer"},
		},
		Preferences: map[string]string{"location": "remote"},
	}
	got := UserData(user)
	want := "go, sql, Acme, Engineer, remote"
	if got != want {
		t.Errorf("UserData = %q, want %q", got, want)
	}
}

func TestTruncate(t *testing.T) {
	cases := []struct {
		in   string
		n    int
		want string
	}{
		{"longer than four", 4, "long"},
		{"ab", 4, "ab"},
		{"no truncation applies here", -1, "no truncation applies here"},
		{"", 4, ""},
	}
	for _, tc := range cases {
		if got := Truncate(tc.in, tc.n); got != tc.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tc.in, tc.n, got, tc.want)
		}
	}
}

func TestSearchComposesContextualQuery(t *testing.T) {
	store := &fakeContextStore{
		user:    model.User{Skills: []string{"go"}},
		queries: []string{"backend engineer", "platform"},
		clicks:  []string{"id-1", "id-2"},
		descs:   []string{"builds pipelines", "operates postgres"},
	}
	querier := &fakeQuerier{ids: []string{"a", "b", "c"}, dists: []float64{0.1, 0.2, 0.3}}
	embedder := &capturingEmbedder{}
	c := NewComposer(store, querier, embedder, nil, searchCfg(), nil)

	result, err := c.Search(context.Background(), "user-1", "data engineer")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	want := "data engineer, go, , , backend engineer, platform, builds pipelines, operates postgres"
	if embedder.lastText != want {
		t.Errorf("embedded %q, want %q", embedder.lastText, want)
	}
	if querier.gotK != 10 {
		t.Errorf("queried k=%d, want 10", querier.gotK)
	}
	if len(result.IDs) != 3 || result.IDs[0] != "a" {
		t.Errorf("got %v, want ranked ids [a b c]", result.IDs)
	}
}

func TestSearchTruncatesClickedDescriptions(t *testing.T) {
	cfg := searchCfg()
	cfg.DescTruncation = 4
	store := &fakeContextStore{
		clicks: []string{"id-1", "id-2"},
		descs:  []string{"longest", "longish"},
	}
	embedder := &capturingEmbedder{}
	c := NewComposer(store, &fakeQuerier{}, embedder, nil, cfg, nil)

	if _, err := c.Search(context.Background(), "user-1", "q"); err != nil {
		t.Fatalf("Search: %v", err)
	}
	want := "q, , , , , long, long"
	if embedder.lastText != want {
		t.Errorf("embedded %q, want %q", embedder.lastText, want)
	}
}

func TestSearchEmptyQueryRejected(t *testing.T) {
	c := NewComposer(&fakeContextStore{}, &fakeQuerier{}, &capturingEmbedder{}, nil, searchCfg(), nil)
	_, err := c.Search(context.Background(), "user-1", "")
	if !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestSearchUnknownUser(t *testing.T) {
	store := &fakeContextStore{userErr: apperrors.New(apperrors.ErrUserNotFound, 404, "no such user")}
	c := NewComposer(store, &fakeQuerier{}, &capturingEmbedder{}, nil, searchCfg(), nil)
	_, err := c.Search(context.Background(), "ghost", "query")
	if !errors.Is(err, apperrors.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}
