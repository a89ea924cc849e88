package manifest

import "errors"

// ErrManifestEmpty is returned when a loaded catalogue has no fields.
var ErrManifestEmpty = errors.New("manifest: catalogue has no fields")
