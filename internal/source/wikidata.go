package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/quantkb/finconcept/models"
	"github.com/quantkb/finconcept/types"
)

// SourceWikidata is the source tag for the Wikidata connector.
const SourceWikidata = "wikidata"

const defaultWikidataAPIURL = "https://www.wikidata.org/w/api.php"

// relatedProperties are the claims mined for related concepts:
// instance of, subclass of, part of, has part.
var relatedProperties = []string{"P31", "P279", "P361", "P527"}

// maxRelatedIDs caps how many claim targets get their labels resolved.
const maxRelatedIDs = 12

// wikidataAPI talks to the MediaWiki action API: wbsearchentities for
// search, wbgetentities for details and claim traversal.
type wikidataAPI struct {
	http       *httpAPI
	apiURL     string
	maxResults int
}

// NewWikidata builds the Wikidata connector. Zero-valued config fields
// fall back to the public endpoint.
func NewWikidata(cfg types.EndpointConfig, deps Deps) Connector {
	apiURL := cfg.BaseURL
	if apiURL == "" {
		apiURL = defaultWikidataAPIURL
	}
	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	return newConnector(&wikidataAPI{
		http:       newHTTPAPI(SourceWikidata, cfg, deps.Logger),
		apiURL:     apiURL,
		maxResults: maxResults,
	}, deps)
}

func (w *wikidataAPI) name() string { return SourceWikidata }

type wikidataError struct {
	Code string `json:"code"`
	Info string `json:"info"`
}

type wikidataSearchResponse struct {
	Search []wikidataSearchHit `json:"search"`
	Error  *wikidataError      `json:"error"`
}

type wikidataSearchHit struct {
	ID          string   `json:"id"`
	Label       string   `json:"label"`
	Description string   `json:"description"`
	Aliases     []string `json:"aliases"`
}

type wikidataText struct {
	Language string `json:"language"`
	Value    string `json:"value"`
}

type wikidataClaim struct {
	Mainsnak struct {
		Snaktype  string `json:"snaktype"`
		Datavalue struct {
			Type  string          `json:"type"`
			Value json.RawMessage `json:"value"`
		} `json:"datavalue"`
	} `json:"mainsnak"`
}

type wikidataEntity struct {
	ID           string                     `json:"id"`
	Labels       map[string]wikidataText    `json:"labels"`
	Descriptions map[string]wikidataText    `json:"descriptions"`
	Aliases      map[string][]wikidataText  `json:"aliases"`
	Claims       map[string][]wikidataClaim `json:"claims"`
}

type wikidataEntitiesResponse struct {
	Entities map[string]wikidataEntity `json:"entities"`
	Error    *wikidataError            `json:"error"`
}

func (w *wikidataAPI) search(ctx context.Context, query, typeHint string) ([]models.ExternalConceptData, error) {
	// wbsearchentities has no type filter beyond item/property; the hint
	// only influences scoring downstream.
	_ = typeHint

	params := url.Values{}
	params.Set("action", "wbsearchentities")
	params.Set("search", query)
	params.Set("language", "en")
	params.Set("uselang", "en")
	params.Set("type", "item")
	params.Set("limit", strconv.Itoa(w.maxResults))
	params.Set("format", "json")

	var resp wikidataSearchResponse
	if err := w.http.getJSON(ctx, "search", w.apiURL+"?"+params.Encode(), &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, types.NewSourceError(SourceWikidata, "search", 0, fmt.Errorf("%s: %s", resp.Error.Code, resp.Error.Info))
	}

	now := time.Now().UTC()
	results := make([]models.ExternalConceptData, 0, len(resp.Search))
	for i, hit := range resp.Search {
		if hit.ID == "" {
			continue
		}
		results = append(results, models.ExternalConceptData{
			ExternalID:  hit.ID,
			Source:      SourceWikidata,
			Label:       hit.Label,
			Description: hit.Description,
			Aliases:     hit.Aliases,
			// The API returns rank order but no score; decay by position
			Confidence: 1.0 / (1.0 + 0.3*float64(i)),
			FetchedAt:  now,
		})
	}
	return results, nil
}

func (w *wikidataAPI) details(ctx context.Context, id string) (*models.ExternalConceptData, error) {
	entity, err := w.getEntity(ctx, "details", id, "labels|descriptions|aliases|claims")
	if err != nil {
		return nil, err
	}
	if entity == nil {
		return nil, nil
	}

	data := &models.ExternalConceptData{
		ExternalID:  id,
		Source:      SourceWikidata,
		Label:       entity.Labels["en"].Value,
		Description: entity.Descriptions["en"].Value,
		FetchedAt:   time.Now().UTC(),
	}
	for _, alias := range entity.Aliases["en"] {
		if alias.Value != "" {
			data.Aliases = append(data.Aliases, alias.Value)
		}
	}

	// Instance-of and subclass-of labels double as type names
	typeIDs := claimTargets(entity, "P31")
	typeIDs = append(typeIDs, claimTargets(entity, "P279")...)
	if len(typeIDs) > 0 {
		labels, err := w.labelsFor(ctx, "details", capIDs(typeIDs, maxRelatedIDs))
		if err != nil {
			return data, nil
		}
		for _, tid := range typeIDs {
			if label := labels[tid]; label != "" {
				data.Types = append(data.Types, label)
			}
		}
	}
	return data, nil
}

func (w *wikidataAPI) related(ctx context.Context, id string) ([]models.ExternalConceptData, error) {
	entity, err := w.getEntity(ctx, "related", id, "claims")
	if err != nil {
		return nil, err
	}
	if entity == nil {
		return nil, nil
	}

	var ids []string
	seen := make(map[string]bool)
	for _, property := range relatedProperties {
		for _, target := range claimTargets(entity, property) {
			if target == id || seen[target] {
				continue
			}
			seen[target] = true
			ids = append(ids, target)
		}
	}
	ids = capIDs(ids, maxRelatedIDs)
	if len(ids) == 0 {
		return nil, nil
	}

	labels, err := w.labelsFor(ctx, "related", ids)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	results := make([]models.ExternalConceptData, 0, len(ids))
	for _, target := range ids {
		label := labels[target]
		if label == "" {
			continue
		}
		results = append(results, models.ExternalConceptData{
			ExternalID: target,
			Source:     SourceWikidata,
			Label:      label,
			FetchedAt:  now,
		})
	}
	return results, nil
}

// getEntity fetches one entity, returning nil when the ID is unknown.
func (w *wikidataAPI) getEntity(ctx context.Context, op, id, props string) (*wikidataEntity, error) {
	params := url.Values{}
	params.Set("action", "wbgetentities")
	params.Set("ids", id)
	params.Set("props", props)
	params.Set("languages", "en")
	params.Set("format", "json")

	var resp wikidataEntitiesResponse
	if err := w.http.getJSON(ctx, op, w.apiURL+"?"+params.Encode(), &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, types.NewSourceError(SourceWikidata, op, 0, fmt.Errorf("%s: %s", resp.Error.Code, resp.Error.Info))
	}
	entity, ok := resp.Entities[id]
	if !ok {
		return nil, nil
	}
	return &entity, nil
}

// labelsFor resolves English labels for a batch of entity IDs.
func (w *wikidataAPI) labelsFor(ctx context.Context, op string, ids []string) (map[string]string, error) {
	params := url.Values{}
	params.Set("action", "wbgetentities")
	params.Set("ids", strings.Join(ids, "|"))
	params.Set("props", "labels")
	params.Set("languages", "en")
	params.Set("format", "json")

	var resp wikidataEntitiesResponse
	if err := w.http.getJSON(ctx, op, w.apiURL+"?"+params.Encode(), &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, types.NewSourceError(SourceWikidata, op, 0, fmt.Errorf("%s: %s", resp.Error.Code, resp.Error.Info))
	}

	labels := make(map[string]string, len(resp.Entities))
	for id, entity := range resp.Entities {
		labels[id] = entity.Labels["en"].Value
	}
	return labels, nil
}

// claimTargets extracts entity-valued claim targets for one property.
func claimTargets(entity *wikidataEntity, property string) []string {
	var ids []string
	for _, claim := range entity.Claims[property] {
		if claim.Mainsnak.Datavalue.Type != "wikibase-entityid" {
			continue
		}
		var target struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(claim.Mainsnak.Datavalue.Value, &target); err != nil || target.ID == "" {
			continue
		}
		ids = append(ids, target.ID)
	}
	return ids
}

func capIDs(ids []string, limit int) []string {
	if len(ids) <= limit {
		return ids
	}
	return ids[:limit]
}
