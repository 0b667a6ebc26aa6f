package affine

import "errors"

var (
	// ErrManifestMismatch reports a persisted shape that does not match the
	// storage being loaded into.
	ErrManifestMismatch = errors.New("affine: stored shape does not match storage")

	// ErrUnknownItemKind reports a manifest item kind this package does not
	// recognize.
	ErrUnknownItemKind = errors.New("affine: unknown item kind in manifest")
)
