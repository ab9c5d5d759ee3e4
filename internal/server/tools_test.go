package server

import (
	"encoding/json"
	"testing"
)

func TestGetToolDefinitions(t *testing.T) {
	tools := GetToolDefinitions()

	if len(tools) == 0 {
		t.Fatal("GetToolDefinitions returned empty slice")
	}

	expectedTools := []string{
		"image_load",
		"image_release",
		"circles_detect",
		"circles_edge_map",
		"circles_accumulator",
		"circles_synthesize",
		"circles_reference",
	}

	toolMap := make(map[string]Tool)
	for _, tool := range tools {
		if _, dup := toolMap[tool.Name]; dup {
			t.Errorf("Duplicate tool %s", tool.Name)
		}
		toolMap[tool.Name] = tool
	}

	for _, name := range expectedTools {
		if _, ok := toolMap[name]; !ok {
			t.Errorf("Expected tool %s not found", name)
		}
	}
	if len(tools) != len(expectedTools) {
		t.Errorf("Expected %d tools, got %d", len(expectedTools), len(tools))
	}
}

func TestToolDefinitions_Structure(t *testing.T) {
	for _, tool := range GetToolDefinitions() {
		t.Run(tool.Name, func(t *testing.T) {
			if tool.Description == "" {
				t.Error("Tool description is empty")
			}
			if tool.InputSchema == nil {
				t.Fatal("Tool InputSchema is nil")
			}
			if tool.InputSchema["type"] != "object" {
				t.Errorf("InputSchema type: got %v, want 'object'", tool.InputSchema["type"])
			}
			if _, ok := tool.InputSchema["properties"].(map[string]interface{}); !ok {
				t.Error("InputSchema properties should be a map")
			}

			// The schema must serialize for tools/list
			if _, err := json.Marshal(tool); err != nil {
				t.Errorf("Failed to marshal tool: %v", err)
			}
		})
	}
}

func TestToolDefinitions_ImageSource(t *testing.T) {
	toolsTakingImages := []string{
		"circles_detect",
		"circles_edge_map",
		"circles_accumulator",
		"circles_reference",
	}

	toolMap := make(map[string]Tool)
	for _, tool := range GetToolDefinitions() {
		toolMap[tool.Name] = tool
	}

	for _, name := range toolsTakingImages {
		t.Run(name, func(t *testing.T) {
			props := toolMap[name].InputSchema["properties"].(map[string]interface{})
			for _, key := range []string{"image", "image_id", "region", "high_threshold", "low_threshold"} {
				if _, ok := props[key]; !ok {
					t.Errorf("missing property %s", key)
				}
			}
		})
	}
}

func TestToolDefinitions_DetectParameters(t *testing.T) {
	var detect Tool
	for _, tool := range GetToolDefinitions() {
		if tool.Name == "circles_detect" {
			detect = tool
		}
	}

	props := detect.InputSchema["properties"].(map[string]interface{})
	for _, key := range []string{
		"radius_min", "radius_max", "radius_step",
		"accumulator_threshold", "min_center_distance",
		"blur_sigma", "connectivity", "accumulator_mode",
		"refine", "diagnostics",
	} {
		if _, ok := props[key]; !ok {
			t.Errorf("circles_detect missing property %s", key)
		}
	}

	region := props["region"].(map[string]interface{})
	regionProps := region["properties"].(map[string]interface{})
	name := regionProps["name"].(map[string]interface{})
	enum, ok := name["enum"].([]string)
	if !ok || len(enum) != 9 {
		t.Errorf("region name should enumerate 9 regions, got %v", name["enum"])
	}
}

func TestHandleToolsList(t *testing.T) {
	s := New()
	resp := s.handleToolsList(&MCPRequest{JSONRPC: "2.0", ID: "list-1"})

	if resp.ID != "list-1" {
		t.Errorf("ID: got %v, want list-1", resp.ID)
	}
	result := resp.Result.(map[string]interface{})
	if _, ok := result["tools"].([]Tool); !ok {
		t.Error("tools should be a slice of Tool")
	}
}
