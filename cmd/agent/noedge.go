//go:build !edge

package main

// edgeBuild is false in standard builds (no `edge` tag), which include the
// full tool set and all LLM providers.
const edgeBuild = false
