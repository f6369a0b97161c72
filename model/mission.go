package model

import "encoding/json"

// Mission is the project metadata shared with sibling planning tools.
type Mission struct {
	Name        string `json:"name,omitempty"`
	Summary     string `json:"summary,omitempty"`
	ProjectCode string `json:"project_code,omitempty"`
	OriginTool  string `json:"origin_tool,omitempty"`

	AO    json.RawMessage `json:"ao,omitempty"`
	Tasks json.RawMessage `json:"tasks,omitempty"`
}

// DefaultMission names a freshly created plan.
func DefaultMission() Mission {
	return Mission{
		Name:        "Mesh Architect Plan",
		ProjectCode: "MESH-GHOST-347",
		OriginTool:  "mesh",
	}
}
