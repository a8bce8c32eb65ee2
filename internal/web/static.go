package web

import (
	"embed"
)

// staticFiles holds the embedded HTML/CSS/JS; the binary is self-contained.
//
//go:embed static/*
var staticFiles embed.FS
