// Package export writes activity spans to CSV and JSON files.
package export

import (
	"fmt"

	"github.com/sadopc/toki/internal/store"
)

// Catalog resolves the ids a span carries to display names.
type Catalog struct {
	Projects  map[string]*store.Project
	WorkItems map[string]*store.WorkItem
}

// NewCatalog indexes projects and work items by id.
func NewCatalog(projects []store.Project, items []store.WorkItem) Catalog {
	c := Catalog{
		Projects:  make(map[string]*store.Project, len(projects)),
		WorkItems: make(map[string]*store.WorkItem, len(items)),
	}
	for i := range projects {
		c.Projects[projects[i].ID] = &projects[i]
	}
	for i := range items {
		c.WorkItems[items[i].ID] = &items[i]
	}
	return c
}

func (c Catalog) projectName(id string) string {
	if id == "" {
		return ""
	}
	if p, ok := c.Projects[id]; ok {
		return p.Name
	}
	return "Unknown"
}

func (c Catalog) issue(id string) string {
	if wi, ok := c.WorkItems[id]; ok {
		return wi.ExternalID
	}
	return ""
}

func formatDuration(secs int64) string {
	h := secs / 3600
	m := (secs % 3600) / 60
	s := secs % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
