package applications

import (
	"sort"

	"github.com/jonathan/applyai/internal/db"
	"github.com/jonathan/applyai/internal/types"
)

// LatestPerType keeps the highest version of each document type, in canonical
// type order. Input order does not matter.
func LatestPerType(docs []db.Document) []db.Document {
	latest := latestByType(docs)
	out := make([]db.Document, 0, len(latest))
	for _, doc := range latest {
		out = append(out, doc)
	}
	sort.Slice(out, func(i, j int) bool {
		return types.DocumentOrder(out[i].Type) < types.DocumentOrder(out[j].Type)
	})
	return out
}

func latestByType(docs []db.Document) map[types.DocumentType]db.Document {
	latest := make(map[types.DocumentType]db.Document, len(docs))
	for _, doc := range docs {
		if cur, ok := latest[doc.Type]; !ok || doc.Version > cur.Version {
			latest[doc.Type] = doc
		}
	}
	return latest
}

// DisplayContent returns the user's edit when present, else the generated content.
func DisplayContent(doc *db.Document) string {
	if doc.EditedContent != nil {
		return *doc.EditedContent
	}
	if doc.Content != nil {
		return *doc.Content
	}
	return ""
}
