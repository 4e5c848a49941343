// Package analysis ranks (feature, sensor) pairs by how well they
// separate OK from KO sessions. It fits one seeded classifier per sensor
// (random forest, single tree, or logistic regression), estimates an
// indicative accuracy with stratified cross-validation, and orders
// features globally by importance weighted with that accuracy. Results
// are deterministic for a given table and seed.
package analysis
