package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/elastic/go-elasticsearch/v9"

	"github.com/Skotchmaster/retail_console/internal/models"
)

var ErrSearch = errors.New("elasticsearch request failed")

func NewClient(ctx context.Context, url, user, password string) (*elasticsearch.Client, error) {
	l := slog.Default().With("component", "es")
	l.Info("es_connecting", "url", url)

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{url},
		Username:  user,
		Password:  password,
	})
	if err != nil {
		return nil, fmt.Errorf("create es client: %w", err)
	}

	res, err := client.Info(client.Info.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("es info: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("es info: %s: %s: %w", res.Status(), body, ErrSearch)
	}

	l.Info("es_connected")
	return client, nil
}

type MemberDocument struct {
	ID           string      `json:"id"`
	Email        string      `json:"email"`
	FullName     string      `json:"fullName"`
	PhoneNumber  string      `json:"phoneNumber"`
	RoleMember   models.Role `json:"roleMember"`
	IsBanned     bool        `json:"isBanned"`
	StoreID      string      `json:"storeId,omitempty"`
	WorkBranchID string      `json:"workBranchId,omitempty"`
}

func DocumentFor(m *models.Member) MemberDocument {
	d := MemberDocument{
		ID:          m.ID,
		Email:       m.Email,
		FullName:    m.FullName,
		PhoneNumber: m.PhoneNumber,
		RoleMember:  m.RoleMember,
		IsBanned:    m.IsBanned,
	}
	if m.StoreID != nil {
		d.StoreID = *m.StoreID
	}
	if m.WorkBranchID != nil {
		d.WorkBranchID = *m.WorkBranchID
	}
	return d
}

type Query struct {
	Text         string
	Role         models.Role
	IsBanned     *bool
	StoreID      string
	WorkBranchID string
	From         int
	Size         int
}

type MemberIndex struct {
	Client *elasticsearch.Client
	Index  string
}

func NewMemberIndex(client *elasticsearch.Client, index string) *MemberIndex {
	return &MemberIndex{Client: client, Index: index}
}

func (x *MemberIndex) Upsert(ctx context.Context, m *models.Member) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(DocumentFor(m)); err != nil {
		return fmt.Errorf("encode member document: %w", err)
	}

	res, err := x.Client.Index(x.Index, &buf,
		x.Client.Index.WithContext(ctx),
		x.Client.Index.WithDocumentID(m.ID),
	)
	if err != nil {
		return fmt.Errorf("index member %s: %w", m.ID, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("index member %s: %s: %w", m.ID, res.Status(), ErrSearch)
	}
	return nil
}

func (x *MemberIndex) Delete(ctx context.Context, id string) error {
	res, err := x.Client.Delete(x.Index, id, x.Client.Delete.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("delete member %s: %w", id, err)
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("delete member %s: %s: %w", id, res.Status(), ErrSearch)
	}
	return nil
}

// Search returns the ids of matching members in relevance order together
// with the total hit count.
func (x *MemberIndex) Search(ctx context.Context, q Query) (int64, []string, error) {
	var filters []map[string]any
	term := func(field string, value any) {
		filters = append(filters, map[string]any{"term": map[string]any{field: value}})
	}
	if q.Role != "" {
		term("roleMember.keyword", q.Role)
	}
	if q.IsBanned != nil {
		term("isBanned", *q.IsBanned)
	}
	if q.StoreID != "" {
		term("storeId.keyword", q.StoreID)
	}
	if q.WorkBranchID != "" {
		term("workBranchId.keyword", q.WorkBranchID)
	}

	body := map[string]any{
		"query": map[string]any{
			"bool": map[string]any{
				"must": map[string]any{
					"multi_match": map[string]any{
						"query":     q.Text,
						"fields":    []string{"fullName^2", "email", "phoneNumber"},
						"fuzziness": "AUTO",
					},
				},
				"filter": filters,
			},
		},
		"_source": []string{"id"},
		"from":    q.From,
		"size":    q.Size,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return 0, nil, fmt.Errorf("encode search body: %w", err)
	}

	res, err := x.Client.Search(
		x.Client.Search.WithContext(ctx),
		x.Client.Search.WithIndex(x.Index),
		x.Client.Search.WithBody(&buf),
		x.Client.Search.WithTrackTotalHits(true),
	)
	if err != nil {
		return 0, nil, fmt.Errorf("search members: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return 0, nil, fmt.Errorf("search members: %s: %w", res.Status(), ErrSearch)
	}

	var r struct {
		Hits struct {
			Total struct{ Value int64 } `json:"total"`
			Hits  []struct {
				Source MemberDocument `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return 0, nil, fmt.Errorf("decode search response: %w", err)
	}

	ids := make([]string, len(r.Hits.Hits))
	for i, hit := range r.Hits.Hits {
		ids[i] = hit.Source.ID
	}
	return r.Hits.Total.Value, ids, nil
}
