package source

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/quantkb/finconcept/models"
	"github.com/quantkb/finconcept/types"
)

// SourceDBpedia is the source tag for the DBpedia connector.
const SourceDBpedia = "dbpedia"

const (
	defaultDBpediaLookupURL = "https://lookup.dbpedia.org"
	defaultDBpediaSparqlURL = "https://dbpedia.org/sparql"

	defaultMaxResults = 10
)

// Lookup highlights query terms with <B> tags in labels and comments.
var markupPattern = regexp.MustCompile(`<[^>]*>`)

const dbpediaDetailsQuery = `PREFIX rdf: <http://www.w3.org/1999/02/22-rdf-syntax-ns#>
PREFIX rdfs: <http://www.w3.org/2000/01/rdf-schema#>
PREFIX dbo: <http://dbpedia.org/ontology/>
SELECT ?label ?abstract ?type WHERE {
  <%s> rdfs:label ?label .
  FILTER (lang(?label) = "en")
  OPTIONAL { <%s> dbo:abstract ?abstract . FILTER (lang(?abstract) = "en") }
  OPTIONAL { <%s> rdf:type ?type . FILTER (isIRI(?type)) }
} LIMIT 50`

const dbpediaRelatedQuery = `PREFIX rdfs: <http://www.w3.org/2000/01/rdf-schema#>
PREFIX dct: <http://purl.org/dc/terms/>
SELECT DISTINCT ?related ?label WHERE {
  <%s> dct:subject ?cat .
  ?related dct:subject ?cat .
  ?related rdfs:label ?label .
  FILTER (?related != <%s>)
  FILTER (lang(?label) = "en")
} LIMIT 30`

// dbpediaAPI talks to the DBpedia Lookup service for search and to the
// SPARQL endpoint for details and related concepts.
type dbpediaAPI struct {
	http       *httpAPI
	lookupURL  string
	sparqlURL  string
	maxResults int
}

// NewDBpedia builds the DBpedia connector. Zero-valued config fields fall
// back to the public endpoints.
func NewDBpedia(cfg types.EndpointConfig, deps Deps) Connector {
	lookupURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if lookupURL == "" {
		lookupURL = defaultDBpediaLookupURL
	}
	sparqlURL := strings.TrimSuffix(cfg.DataURL, "/")
	if sparqlURL == "" {
		sparqlURL = defaultDBpediaSparqlURL
	}
	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	return newConnector(&dbpediaAPI{
		http:       newHTTPAPI(SourceDBpedia, cfg, deps.Logger),
		lookupURL:  lookupURL,
		sparqlURL:  sparqlURL,
		maxResults: maxResults,
	}, deps)
}

func (d *dbpediaAPI) name() string { return SourceDBpedia }

type dbpediaSearchResponse struct {
	Docs []dbpediaDoc `json:"docs"`
}

// dbpediaDoc mirrors the Lookup service's field-per-array document shape.
type dbpediaDoc struct {
	Resource      []string `json:"resource"`
	Label         []string `json:"label"`
	Comment       []string `json:"comment"`
	Category      []string `json:"category"`
	TypeName      []string `json:"typeName"`
	RedirectLabel []string `json:"redirectlabel"`
	Score         []string `json:"score"`
}

func (doc *dbpediaDoc) scoreValue() float64 {
	raw := firstOf(doc.Score)
	if raw == "" {
		return 0
	}
	score, err := strconv.ParseFloat(raw, 64)
	if err != nil || score < 0 {
		return 0
	}
	return score
}

func (d *dbpediaAPI) search(ctx context.Context, query, typeHint string) ([]models.ExternalConceptData, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("maxResults", strconv.Itoa(d.maxResults))
	params.Set("format", "JSON")
	if typeHint != "" {
		params.Set("typeName", typeHint)
	}

	var resp dbpediaSearchResponse
	if err := d.http.getJSON(ctx, "search", d.lookupURL+"/api/search?"+params.Encode(), &resp); err != nil {
		return nil, err
	}

	// Lookup scores are unbounded reference counts; normalize against the
	// best hit in this result set so confidence lands in [0,1].
	var maxScore float64
	scores := make([]float64, len(resp.Docs))
	for i := range resp.Docs {
		scores[i] = resp.Docs[i].scoreValue()
		if scores[i] > maxScore {
			maxScore = scores[i]
		}
	}

	now := time.Now().UTC()
	results := make([]models.ExternalConceptData, 0, len(resp.Docs))
	for i, doc := range resp.Docs {
		id := firstOf(doc.Resource)
		if id == "" {
			continue
		}
		var confidence float64
		if maxScore > 0 {
			confidence = scores[i] / maxScore
		}
		results = append(results, models.ExternalConceptData{
			ExternalID:  id,
			Source:      SourceDBpedia,
			Label:       stripMarkup(firstOf(doc.Label)),
			Description: stripMarkup(firstOf(doc.Comment)),
			Aliases:     stripMarkupAll(doc.RedirectLabel),
			Categories:  categoryNames(doc.Category),
			Types:       stripMarkupAll(doc.TypeName),
			Confidence:  confidence,
			FetchedAt:   now,
		})
	}
	return results, nil
}

func (d *dbpediaAPI) details(ctx context.Context, id string) (*models.ExternalConceptData, error) {
	if !validResourceIRI(id) {
		return nil, types.NewSourceError(SourceDBpedia, "details", 0, fmt.Errorf("invalid resource id %q", id))
	}

	var resp sparqlResponse
	query := fmt.Sprintf(dbpediaDetailsQuery, id, id, id)
	if err := d.http.getJSON(ctx, "details", d.sparqlRequest(query), &resp); err != nil {
		return nil, err
	}
	if len(resp.Results.Bindings) == 0 {
		return nil, nil
	}

	data := &models.ExternalConceptData{
		ExternalID: id,
		Source:     SourceDBpedia,
		FetchedAt:  time.Now().UTC(),
	}
	seenTypes := make(map[string]bool)
	for _, binding := range resp.Results.Bindings {
		if v, ok := binding["label"]; ok && data.Label == "" {
			data.Label = v.Value
		}
		if v, ok := binding["abstract"]; ok && data.Description == "" {
			data.Description = v.Value
		}
		if v, ok := binding["type"]; ok {
			name := localName(v.Value)
			if name != "" && !seenTypes[name] {
				seenTypes[name] = true
				data.Types = append(data.Types, name)
			}
		}
	}
	return data, nil
}

func (d *dbpediaAPI) related(ctx context.Context, id string) ([]models.ExternalConceptData, error) {
	if !validResourceIRI(id) {
		return nil, types.NewSourceError(SourceDBpedia, "related", 0, fmt.Errorf("invalid resource id %q", id))
	}

	var resp sparqlResponse
	query := fmt.Sprintf(dbpediaRelatedQuery, id, id)
	if err := d.http.getJSON(ctx, "related", d.sparqlRequest(query), &resp); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	seen := make(map[string]bool)
	var results []models.ExternalConceptData
	for _, binding := range resp.Results.Bindings {
		related, ok := binding["related"]
		if !ok || related.Value == "" || seen[related.Value] {
			continue
		}
		seen[related.Value] = true
		results = append(results, models.ExternalConceptData{
			ExternalID: related.Value,
			Source:     SourceDBpedia,
			Label:      binding["label"].Value,
			FetchedAt:  now,
		})
	}
	return results, nil
}

func (d *dbpediaAPI) sparqlRequest(query string) string {
	params := url.Values{}
	params.Set("query", query)
	params.Set("format", "application/sparql-results+json")
	return d.sparqlURL + "?" + params.Encode()
}

// sparqlResponse is the SELECT result envelope of the SPARQL JSON format.
type sparqlResponse struct {
	Results struct {
		Bindings []map[string]sparqlValue `json:"bindings"`
	} `json:"results"`
}

type sparqlValue struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// validResourceIRI rejects identifiers that would break out of the angle
// brackets of an interpolated SPARQL term.
func validResourceIRI(id string) bool {
	return id != "" && !strings.ContainsAny(id, "<>\"{} \n\t")
}

func firstOf(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

func stripMarkup(s string) string {
	return strings.TrimSpace(markupPattern.ReplaceAllString(s, ""))
}

func stripMarkupAll(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, 0, len(values))
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		v = stripMarkup(v)
		if v == "" || seen[strings.ToLower(v)] {
			continue
		}
		seen[strings.ToLower(v)] = true
		out = append(out, v)
	}
	return out
}

// categoryNames turns category URIs into readable names:
// ".../Category:Financial_ratios" becomes "Financial ratios".
func categoryNames(uris []string) []string {
	if len(uris) == 0 {
		return nil
	}
	out := make([]string, 0, len(uris))
	seen := make(map[string]bool, len(uris))
	for _, uri := range uris {
		name := uri
		if idx := strings.LastIndex(name, "Category:"); idx >= 0 {
			name = name[idx+len("Category:"):]
		} else {
			name = localName(name)
		}
		name = strings.TrimSpace(strings.ReplaceAll(name, "_", " "))
		if name == "" || seen[strings.ToLower(name)] {
			continue
		}
		seen[strings.ToLower(name)] = true
		out = append(out, name)
	}
	return out
}

// localName returns the fragment after the last '/' or '#' of a URI.
func localName(uri string) string {
	if idx := strings.LastIndexAny(uri, "/#"); idx >= 0 {
		return uri[idx+1:]
	}
	return uri
}
