package ingest

import (
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/archivelab/newspaper-search/internal/core/domain"
)

var (
	nameDatePage = regexp.MustCompile(`^(.+?)_(\d{4}-\d{2}-\d{2})(?:_p?(\d+))?$`)
	dateNamePage = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})_(.+?)(?:_p?(\d+))?$`)
)

// MetadataParser derives issue metadata from storage keys of the form
// "daily_worker/1936/daily_worker_1936-05-01.txt" (optionally with a
// trailing page suffix, and date-first naming also accepted). Corpus
// files carry provenance in their names rather than sidecar records.
type MetadataParser struct{}

func NewMetadataParser() *MetadataParser {
	return &MetadataParser{}
}

func (p *MetadataParser) Parse(issueKey string) (domain.NewspaperMetadata, error) {
	stem := path.Base(issueKey)
	if ext := path.Ext(stem); ext != "" {
		stem = strings.TrimSuffix(stem, ext)
	}

	var nameRaw, dateRaw, pageRaw string
	if m := nameDatePage.FindStringSubmatch(stem); m != nil {
		nameRaw, dateRaw, pageRaw = m[1], m[2], m[3]
	} else if m := dateNamePage.FindStringSubmatch(stem); m != nil {
		dateRaw, nameRaw, pageRaw = m[1], m[2], m[3]
	} else {
		return domain.NewspaperMetadata{}, fmt.Errorf("issue key %q has no recognizable name/date pattern", issueKey)
	}

	pubDate, err := time.Parse("2006-01-02", dateRaw)
	if err != nil {
		return domain.NewspaperMetadata{}, fmt.Errorf("issue key %q: bad date: %w", issueKey, err)
	}

	meta := domain.NewspaperMetadata{
		NewspaperName:   displayName(nameRaw),
		PublicationDate: pubDate,
		Language:        "en",
	}
	if pageRaw != "" {
		meta.PageNumber, _ = strconv.Atoi(pageRaw)
	}
	return meta, nil
}

func displayName(raw string) string {
	words := strings.Split(strings.ReplaceAll(raw, "_", " "), " ")
	for i, word := range words {
		if word == "" {
			continue
		}
		words[i] = strings.ToUpper(word[:1]) + word[1:]
	}
	return strings.Join(words, " ")
}
