// Package plot builds render-ready chart artifacts from loaded sensor
// streams: raw time series and one-sided frequency spectra. Artifacts
// are plain data (labels, axis metadata, decimated point series) meant
// for JSON transport; rendering is the front end's job.
package plot
