package domain

import "context"

// PreferenceStore is the key-value persistence used for the session and the
// last UI state. Values are JSON-encoded. Get on a missing key reports
// found == false with a nil error.
type PreferenceStore interface {
	Get(ctx context.Context, key string, dst any) (found bool, err error)
	Set(ctx context.Context, key string, value any) error
	Remove(ctx context.Context, key string) error
}
