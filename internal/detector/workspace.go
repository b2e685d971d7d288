package detector

import (
	"encoding/json"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

var editorNames = []string{"cursor", "visual studio code", "code", "vscode"}

var sourceExts = map[string]bool{
	"rs": true, "ts": true, "js": true, "py": true, "go": true, "java": true, "cpp": true,
	"c": true, "h": true, "md": true, "json": true, "toml": true, "yaml": true, "yml": true,
}

// ProjectFromTitle extracts a project name from an editor window title such
// as "main.go — toki — Cursor". It returns "" when no name can be found.
func ProjectFromTitle(title string) string {
	var parts []string
	for _, p := range strings.FieldsFunc(title, func(r rune) bool { return r == '—' || r == '–' || r == '-' }) {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}

	isEditor := func(s string) bool {
		for _, name := range editorNames {
			if strings.EqualFold(s, name) {
				return true
			}
		}
		return false
	}

	switch len(parts) {
	case 0, 1:
		return ""
	case 2:
		first, second := parts[0], parts[1]
		if isEditor(second) {
			return first
		}
		if i := strings.LastIndexByte(first, '.'); i >= 0 && len(first)-i-1 <= 4 {
			return second
		}
		return first
	}

	end := len(parts)
	if isEditor(parts[end-1]) {
		end--
	}
	for i := end - 1; i >= 0; i-- {
		p := parts[i]
		if j := strings.LastIndexByte(p, '.'); j >= 0 && sourceExts[p[j+1:]] {
			continue
		}
		return p
	}
	return parts[max(end-1, 0)]
}

// DefaultStoragePaths lists the editor state files consulted for the last
// open workspace.
func DefaultStoragePaths() []string {
	cfg, err := os.UserConfigDir()
	if err != nil {
		return nil
	}
	return []string{
		filepath.Join(cfg, "Cursor", "User", "globalStorage", "storage.json"),
		filepath.Join(cfg, "Code", "User", "globalStorage", "storage.json"),
		filepath.Join(cfg, "Code", "storage.json"),
	}
}

type editorStorage struct {
	WindowsState *struct {
		LastActiveWindow *struct {
			Folder string `json:"folder"`
		} `json:"lastActiveWindow"`
		OpenedWindows []struct {
			Folder string `json:"folder"`
		} `json:"openedWindows"`
	} `json:"windowsState"`
	OpenedPathsList *struct {
		Entries []struct {
			FolderURI string `json:"folderUri"`
		} `json:"entries"`
	} `json:"openedPathsList"`
}

func (s *editorStorage) folders() []string {
	var uris []string
	if ws := s.WindowsState; ws != nil {
		if ws.LastActiveWindow != nil && ws.LastActiveWindow.Folder != "" {
			uris = append(uris, ws.LastActiveWindow.Folder)
		}
		for _, w := range ws.OpenedWindows {
			if w.Folder != "" {
				uris = append(uris, w.Folder)
			}
		}
	}
	if s.OpenedPathsList != nil {
		for _, e := range s.OpenedPathsList.Entries {
			if e.FolderURI != "" {
				uris = append(uris, e.FolderURI)
			}
		}
	}
	var paths []string
	for _, u := range uris {
		if p, ok := fileURIPath(u); ok {
			paths = append(paths, p)
		}
	}
	return paths
}

func fileURIPath(uri string) (string, bool) {
	u, err := url.Parse(uri)
	if err != nil || u.Scheme != "file" || u.Path == "" {
		return "", false
	}
	return filepath.FromSlash(u.Path), true
}

// LastWorkspace returns the editor workspace folder matching the project
// named in title, falling back to the most recently active folder. State
// files are consulted newest first.
func LastWorkspace(title string, storagePaths []string) (string, bool) {
	type candidate struct {
		path    string
		modTime time.Time
	}
	var files []candidate
	for _, p := range storagePaths {
		if info, err := os.Stat(p); err == nil {
			files = append(files, candidate{p, info.ModTime()})
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].modTime.After(files[j].modTime) })

	var states [][]string
	for _, f := range files {
		data, err := os.ReadFile(f.path)
		if err != nil {
			continue
		}
		var st editorStorage
		if err := json.Unmarshal(data, &st); err != nil {
			continue
		}
		states = append(states, st.folders())
	}

	if project := ProjectFromTitle(title); project != "" {
		lower := strings.ToLower(project)
		for _, folders := range states {
			for _, f := range folders {
				if strings.EqualFold(filepath.Base(f), project) {
					return f, true
				}
			}
			for _, f := range folders {
				name := strings.ToLower(filepath.Base(f))
				if strings.Contains(name, lower) || strings.Contains(lower, name) {
					return f, true
				}
			}
		}
	}

	for _, folders := range states {
		if len(folders) > 0 {
			return folders[0], true
		}
	}
	return "", false
}
