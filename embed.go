package trexim

import "embed"

// EmbeddedAssets holds the browser analytics client served at
// /public/analytics.js.
//
//go:embed embedded/*
var EmbeddedAssets embed.FS
