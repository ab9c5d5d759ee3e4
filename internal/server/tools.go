package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

var regionNames = []string{"top-left", "top-right", "bottom-left", "bottom-right", "top-half", "bottom-half", "left-half", "right-half", "center"}

// withImageSource adds the image, image_id and region properties shared by
// every tool that analyzes an image.
func withImageSource(props map[string]interface{}) map[string]interface{} {
	props["image"] = map[string]interface{}{
		"type":        "string",
		"description": "Base64-encoded image (PNG, JPEG, GIF, BMP, TIFF or WebP). A data: URI prefix is accepted. Either image or image_id is required.",
	}
	props["image_id"] = map[string]interface{}{
		"type":        "string",
		"description": "Identifier returned by image_load",
	}
	props["region"] = map[string]interface{}{
		"type":        "object",
		"description": "Optional region of interest. Results keep the coordinates of the full image.",
		"properties": map[string]interface{}{
			"name": map[string]interface{}{
				"type":        "string",
				"enum":        regionNames,
				"description": "Named region; takes precedence over x1..y2",
			},
			"x1": map[string]interface{}{"type": "integer", "description": "Left edge X coordinate (0-based)"},
			"y1": map[string]interface{}{"type": "integer", "description": "Top edge Y coordinate (0-based)"},
			"x2": map[string]interface{}{"type": "integer", "description": "Right edge X coordinate (exclusive)"},
			"y2": map[string]interface{}{"type": "integer", "description": "Bottom edge Y coordinate (exclusive)"},
		},
	}
	return props
}

// withEdgeParams adds the preprocessing and edge extraction properties.
func withEdgeParams(props map[string]interface{}) map[string]interface{} {
	props["low_threshold"] = map[string]interface{}{
		"type":        "number",
		"description": "Lower hysteresis threshold on the Sobel magnitude (0-255 scale). Defaults to half of high_threshold when only that is given.",
	}
	props["high_threshold"] = map[string]interface{}{
		"type":        "number",
		"description": "Upper hysteresis threshold. Edges at or above it always survive.",
	}
	props["blur_sigma"] = map[string]interface{}{
		"type":        "number",
		"description": "Gaussian smoothing sigma in pixels. 0 disables smoothing.",
	}
	props["connectivity"] = map[string]interface{}{
		"type":        "integer",
		"enum":        []int{4, 8},
		"description": "Neighborhood used to link weak edges",
	}
	return props
}

// withVoteParams adds the radius and accumulator properties.
func withVoteParams(props map[string]interface{}) map[string]interface{} {
	props["radius_min"] = map[string]interface{}{
		"type":        "integer",
		"description": "Smallest radius searched, in pixels (>= 1)",
	}
	props["radius_max"] = map[string]interface{}{
		"type":        "integer",
		"description": "Largest radius searched, in pixels (inclusive)",
	}
	props["radius_step"] = map[string]interface{}{
		"type":        "integer",
		"description": "Spacing between searched radii",
	}
	props["accumulator_mode"] = map[string]interface{}{
		"type":        "string",
		"enum":        []string{"auto", "dense", "sparse"},
		"description": "Vote storage. auto picks dense unless the accumulator would be too large.",
	}
	return props
}

// withPeakParams adds the peak extraction properties.
func withPeakParams(props map[string]interface{}) map[string]interface{} {
	props["accumulator_threshold"] = map[string]interface{}{
		"type":        "integer",
		"description": "Minimum votes for a center to be considered",
	}
	props["min_center_distance"] = map[string]interface{}{
		"type":        "number",
		"description": "Detections closer than this to a stronger one are dropped",
	}
	return props
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Image Cache
		{
			Name:        "image_load",
			Description: "Decode a base64 image, keep it in memory and return an image_id with its dimensions and format. Use the id to run several tools on the same image without resending it.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"image": map[string]interface{}{
						"type":        "string",
						"description": "Base64-encoded image",
					},
				},
				"required": []string{"image"},
			},
		},
		{
			Name:        "image_release",
			Description: "Drop an image loaded with image_load.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"image_id": map[string]interface{}{
						"type":        "string",
						"description": "Identifier returned by image_load",
					},
				},
				"required": []string{"image_id"},
			},
		},

		// Detection
		{
			Name:        "circles_detect",
			Description: "Detect circles with the Hough gradient method. Returns centers, radii and vote counts ordered by votes. Unset parameters use the server defaults.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": withPeakParams(withVoteParams(withEdgeParams(withImageSource(map[string]interface{}{
					"refine": map[string]interface{}{
						"type":        "boolean",
						"description": "Fit each circle to its edge pixels for sub-pixel precision",
					},
					"diagnostics": map[string]interface{}{
						"type":        "boolean",
						"description": "Also return the grayscale, blurred, edge and accumulator projection images as base64 PNG",
						"default":     false,
					},
				})))),
			},
		},

		// Pipeline Stages
		{
			Name:        "circles_edge_map",
			Description: "Run smoothing and edge extraction only. Returns the edge pixel count and the binary edge map as base64 PNG. Use it to tune thresholds before detecting.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": withEdgeParams(withImageSource(map[string]interface{}{})),
			},
		},
		{
			Name:        "circles_accumulator",
			Description: "Run the pipeline up to center voting. Returns the searched radii, the strongest vote per radius and the vote projection over all radii as base64 PNG.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": withVoteParams(withEdgeParams(withImageSource(map[string]interface{}{}))),
			},
		},

		// Test Images
		{
			Name:        "circles_synthesize",
			Description: "Draw black circles on a white canvas and return it as base64 PNG. Without circles, returns the 500x500 five-circle demo scene together with suggested_params tuned for its thin outlines.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"width": map[string]interface{}{
						"type":        "integer",
						"description": "Canvas width. Default 500",
						"default":     500,
					},
					"height": map[string]interface{}{
						"type":        "integer",
						"description": "Canvas height. Default 500",
						"default":     500,
					},
					"circles": map[string]interface{}{
						"type":        "array",
						"description": "Circles to draw",
						"items": map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"x":      map[string]interface{}{"type": "integer"},
								"y":      map[string]interface{}{"type": "integer"},
								"radius": map[string]interface{}{"type": "integer"},
							},
							"required": []string{"x", "y", "radius"},
						},
					},
					"thickness": map[string]interface{}{
						"type":        "integer",
						"description": "Outline thickness in pixels; 0 draws filled disks. Default 2",
						"default":     2,
					},
				},
			},
		},

		// Cross-checking
		{
			Name:        "circles_reference",
			Description: "Run both this detector and OpenCV's HoughCircles on the same image and compare the results. Requires a server built with OpenCV support.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": withPeakParams(withVoteParams(withEdgeParams(withImageSource(map[string]interface{}{
					"median_blur": map[string]interface{}{
						"type":        "integer",
						"description": "Odd aperture of the median filter applied before OpenCV detection. 0 disables it.",
					},
					"center_tolerance": map[string]interface{}{
						"type":        "number",
						"description": "Maximum center distance for two circles to match. Default 3",
					},
					"radius_tolerance": map[string]interface{}{
						"type":        "number",
						"description": "Maximum radius difference for two circles to match. Default 3",
					},
				})))),
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
