// Package server implements the MCP (Model Context Protocol) server for circle detection.
//
// This package provides a JSON-RPC 2.0 server that exposes the Hough circle
// detector and its intermediate stages through the MCP protocol, so that an
// AI client can locate circles in an image and tune the detector on the way.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// Image Cache:
//   - image_load: Decode a base64 image and keep it under an id
//   - image_release: Drop a cached image
//
// Detection:
//   - circles_detect: Full pipeline, optionally with diagnostic images
//
// Pipeline Stages:
//   - circles_edge_map: Smoothing and edge extraction only
//   - circles_accumulator: Up to center voting, with per-radius vote peaks
//
// Test Images:
//   - circles_synthesize: Draw a synthetic scene
//
// Cross-checking:
//   - circles_reference: Compare against OpenCV (builds with the gocv tag)
//
// # Images
//
// Images travel inside requests as base64 and the server never touches the
// file system. Tools that analyze an image take either "image" or an
// "image_id" from image_load, plus an optional "region" to restrict the
// analysis. Decoded images above the configured pixel limit are rejected.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32602 for invalid arguments, -32000 for any other failure
//   - message: Human-readable error description
//   - data: Additional error details (typically the Go error string)
package server
