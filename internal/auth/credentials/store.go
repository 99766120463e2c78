// Package credentials persists the session's token material between runs.
//
// The bundle is the only durable session state. Token fields are written
// exclusively by the session manager from server auth responses over the
// configured origin; nothing else in the process may mint or edit tokens.
// The file backend keeps the bundle outside anything reachable by rendered
// or remote content, with owner-only permissions.
package credentials

// Bundle is the persisted credential material.
type Bundle struct {
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Email        string `json:"email,omitempty"`
}

// IsZero reports whether no field is set.
func (b Bundle) IsZero() bool {
	return b.AccessToken == "" && b.RefreshToken == "" && b.Email == ""
}

// merge overlays non-empty fields of in over b. Omitted fields keep their
// stored values so a partial save never silently drops credentials.
func (b Bundle) merge(in Bundle) Bundle {
	if in.AccessToken != "" {
		b.AccessToken = in.AccessToken
	}
	if in.RefreshToken != "" {
		b.RefreshToken = in.RefreshToken
	}
	if in.Email != "" {
		b.Email = in.Email
	}
	return b
}

// Store is the persistence port for the credential bundle.
//
// Error contract:
// - Load never fails on absence or corruption; both yield a zero Bundle.
// - Save merges non-empty fields over the stored bundle.
// - Replace overwrites the whole bundle; a new login replaces, it never merges.
// - Clear is idempotent.
type Store interface {
	Load() (Bundle, error)
	Save(Bundle) error
	Replace(Bundle) error
	Clear() error
}
