package types

// FileProbe records the existence check for one required input file.
// Probes are created during validation and are immutable afterwards.
type FileProbe struct {
	// Path is the probed file location.
	Path string
	// Found reports whether the file existed at probe time.
	Found bool
}

// MissingPaths returns the paths of all probes that were not found,
// preserving probe order.
func MissingPaths(probes []FileProbe) []string {
	var missing []string
	for _, p := range probes {
		if !p.Found {
			missing = append(missing, p.Path)
		}
	}
	return missing
}
