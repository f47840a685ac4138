package tools

import "github.com/sammcj/tripnow-mcp/types"

// CredentialCandidates are the metadata keys checked for the API key, in order
var CredentialCandidates = []string{
	"TRIPNOW_API_KEY",
	"tripnow-api-key",
	"tripnow_api_key",
	"TRIPNOW-API-KEY",
	"TripNow-Api-Key",
	"tripnowapikey",
}

// CredentialResolver finds the TripNow API key for a call
type CredentialResolver struct {
	// ConfigKey is the process-wide key. When set it is used regardless of metadata.
	ConfigKey string
}

// Resolve returns the configured key, or the first non-empty candidate in
// metadata. Values are used verbatim. It fails with *types.CredentialError
// when neither has one.
func (r CredentialResolver) Resolve(metadata map[string]string) (string, error) {
	if r.ConfigKey != "" {
		return r.ConfigKey, nil
	}

	for _, name := range CredentialCandidates {
		if key := metadata[name]; key != "" {
			return key, nil
		}
	}

	return "", &types.CredentialError{Candidates: CredentialCandidates}
}
