// Package main hosts the faultscope CLI entrypoint and command graph.
//
// The Cobra-based command tree covers the whole surface: dataset
// indexing, one-shot questions and the interactive chat loop, direct
// analysis and feature extraction without the language model, chart
// artifacts, preflight status, the HTTP API server, and configuration
// scaffolding. It centralizes configuration resolution and logger setup
// so subcommands can focus on user experience instead of wiring.
//
// Keep this package lean: add new functionality by extending the
// internal packages first, then surface it through dedicated commands
// or flags here.
package main
