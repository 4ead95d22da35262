package models

import "github.com/denysvitali/foldgen/pkg/folding"

// FoldRequest asks for the folds of a file on the server or of inline source
type FoldRequest struct {
	Path   string `json:"path,omitempty"`
	Source string `json:"source,omitempty"`
}

// FoldResponse carries a computed fold list and its fixture encoding
type FoldResponse struct {
	Path    string         `json:"path,omitempty"`
	Folds   []folding.Fold `json:"folds"`
	Encoded string         `json:"encoded"`
	Cached  bool           `json:"cached,omitempty"`
}

// NewFoldResponse builds a response for folds computed for path
func NewFoldResponse(path string, folds []folding.Fold) FoldResponse {
	if folds == nil {
		folds = []folding.Fold{}
	}
	return FoldResponse{
		Path:    path,
		Folds:   folds,
		Encoded: string(folding.Marshal(folds)),
	}
}

// FixturesRequest lists the source files to write fixtures for
type FixturesRequest struct {
	Paths []string `json:"paths" binding:"required"`
}

// FixturesResponse lists the fixtures written, in request order
type FixturesResponse struct {
	Written []string `json:"written"`
	Error   string   `json:"error,omitempty"`
}

// ErrorResponse is returned for failed requests
type ErrorResponse struct {
	Error string `json:"error"`
}
