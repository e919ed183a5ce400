// Package faceclient compares a stored reference face with a new photo.
package faceclient

import "context"

// Match is one face in the target image that matched the source face.
// Similarity is on a 0..100 scale.
type Match struct {
	Similarity float64 `json:"similarity"`
}

// CompareResult holds the faces found in the target image.
type CompareResult struct {
	Matches        []Match `json:"matches"`
	UnmatchedFaces int     `json:"unmatchedFaces"`
}

// Comparer compares the faces in two stored images.
// sourceKey and targetKey are object-storage keys.
type Comparer interface {
	CompareFaces(ctx context.Context, sourceKey, targetKey string, threshold float64) (*CompareResult, error)
}

// Skip is a stand-in comparer for local development that reports every
// comparison as a strong match.
type Skip struct{}

// CompareFaces always returns a single 99% match.
func (Skip) CompareFaces(_ context.Context, _, _ string, _ float64) (*CompareResult, error) {
	return &CompareResult{Matches: []Match{{Similarity: 99}}}, nil
}
