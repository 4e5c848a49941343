// Package features turns loaded sensor series into fixed-size feature
// vectors: six time-domain statistics plus the dominant spectral peak.
// The feature name set is identical for every sensor, which keeps
// cross-sensor feature tables rectangular.
package features
