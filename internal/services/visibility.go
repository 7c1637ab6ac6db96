package services

import "github.com/planflow/backend/internal/models"

// Visible reports whether the given authority may see a document.
//
// Official documents are visible to every project member and to global
// admins. Private and pending documents are visible only to their creator and
// to global admins — members sharing the creator's planning role get no
// special access. The same predicate guards both list and get-by-id paths.
func Visible(auth *Authority, doc *models.Document) bool {
	if auth == nil || doc == nil {
		return false
	}
	if auth.IsAdmin() {
		return true
	}
	if auth.Level == NoAccess || auth.ProjectID != doc.ProjectID {
		return false
	}
	if doc.Status == models.StatusOfficial {
		return true
	}
	return doc.CreatedBy == auth.UserID
}

// FilterDocuments returns the subset of docs visible to the authority,
// preserving order.
func FilterDocuments(auth *Authority, docs []models.Document) []models.Document {
	visible := make([]models.Document, 0, len(docs))
	for i := range docs {
		if Visible(auth, &docs[i]) {
			visible = append(visible, docs[i])
		}
	}
	return visible
}
