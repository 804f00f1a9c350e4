package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"sybil/internal/models"
	"sybil/internal/repository"
)

// IngestService is the inbound surface for fetch adapters. Submission
// is idempotent: the content hash is the global dedup key, so
// re-delivering the same payload returns the stored row.
type IngestService struct {
	Repo   repository.Repository
	Logger *zap.Logger
}

type RegisterSourceParams struct {
	Name     string
	Kind     models.SourceKind
	Endpoint string
	Config   map[string]any
}

func (s *IngestService) RegisterSource(ctx context.Context, params RegisterSourceParams) (*models.Source, error) {
	if s == nil || s.Repo == nil {
		return nil, nil
	}
	name := strings.TrimSpace(params.Name)
	if name == "" {
		return nil, fmt.Errorf("source name is required")
	}
	item := &models.Source{
		ID:           uuid.NewString(),
		Name:         name,
		Kind:         params.Kind,
		Endpoint:     params.Endpoint,
		Active:       true,
		HealthStatus: "ok",
		FetchConfig:  marshalMeta(params.Config),
	}
	if err := s.Repo.UpsertSource(ctx, item); err != nil {
		return nil, err
	}
	return s.Repo.GetSourceByName(ctx, name)
}

type SubmitRawItemParams struct {
	SourceName  string
	ExternalID  *string
	URL         string
	Title       *string
	Body        *string
	ContentHash string
	FetchedAt   time.Time
	Meta        map[string]any
}

// SubmitRawItem persists one immutable raw content item. The returned
// bool reports whether the item already existed.
func (s *IngestService) SubmitRawItem(ctx context.Context, params SubmitRawItemParams) (*models.RawItem, bool, error) {
	if s == nil || s.Repo == nil {
		return nil, false, nil
	}
	if strings.TrimSpace(params.URL) == "" {
		return nil, false, fmt.Errorf("url is required")
	}
	source, err := s.Repo.GetSourceByName(ctx, params.SourceName)
	if err != nil {
		return nil, false, err
	}
	if source == nil {
		return nil, false, &repository.IntegrityError{Entity: "source", Key: params.SourceName, Err: fmt.Errorf("unknown source")}
	}
	sourceID := source.ID

	hash := strings.TrimSpace(params.ContentHash)
	if hash == "" {
		hash = HashContent(params.URL, params.Title, params.Body)
	}
	fetchedAt := params.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = time.Now().UTC()
	}

	item := &models.RawItem{
		ID:          uuid.NewString(),
		SourceID:    sourceID,
		ExternalID:  params.ExternalID,
		URL:         params.URL,
		Title:       params.Title,
		ContentText: params.Body,
		ContentHash: hash,
		FetchedAt:   fetchedAt,
		Meta:        marshalMeta(params.Meta),
	}
	stored, existed, err := s.Repo.UpsertRawItem(ctx, item)
	if err != nil {
		return nil, false, err
	}
	if !existed {
		if terr := s.Repo.TouchSource(ctx, sourceID, fetchedAt, "ok"); terr != nil && s.Logger != nil {
			s.Logger.Warn("touch source failed", zap.String("source_id", sourceID), zap.Error(terr))
		}
	}
	return stored, existed, nil
}

// HashContent derives the dedup hash for a raw item when the adapter
// did not supply one: sha256 over url, title, and body.
func HashContent(url string, title, body *string) string {
	h := sha256.New()
	h.Write([]byte(url))
	h.Write([]byte{0})
	if title != nil {
		h.Write([]byte(*title))
	}
	h.Write([]byte{0})
	if body != nil {
		h.Write([]byte(*body))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func marshalMeta(m map[string]any) datatypes.JSON {
	if len(m) == 0 {
		return nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil
	}
	return datatypes.JSON(raw)
}
