package types

// Version is the canonical project version.
// The CLI and the embedded converter script share this version per the
// lockstep versioning policy.
const Version = "0.2.0"
