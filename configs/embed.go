// Package configs provides the embedded configuration template.
//
// The template is embedded at build time with go:embed so it ships with
// every distribution. 'quill config init' writes it to ~/.quill/config.yaml
// as a starting point; internal/config supplies the same values as hardcoded
// defaults when no file exists.
package configs

import _ "embed"

// ConfigTemplate is the annotated default configuration written by
// 'quill config init'.
//
//go:embed config.example.yaml
var ConfigTemplate string
