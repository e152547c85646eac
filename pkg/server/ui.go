package server

import _ "embed"

// indexHTML is the tabbed single-page UI served at /.
//
//go:embed index.html
var indexHTML string
