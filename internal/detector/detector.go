package detector

import (
	"context"
	"path/filepath"

	"github.com/rs/zerolog"
)

// Detector resolves the work item a sample belongs to.
type Detector struct {
	log          zerolog.Logger
	storagePaths []string
}

func New(log zerolog.Logger) *Detector {
	return &Detector{
		log:          log.With().Str("component", "detector").Logger(),
		storagePaths: DefaultStoragePaths(),
	}
}

// WithStoragePaths overrides the editor state files used by WorkingDir.
func (d *Detector) WithStoragePaths(paths []string) *Detector {
	d.storagePaths = paths
	return d
}

// Detect returns the issue reference for workingDir and title, trying in
// order the checkout's branch, its HEAD commit message, the directory path,
// and finally the window title. Either argument may be empty.
func (d *Detector) Detect(ctx context.Context, workingDir, title string) *IssueRef {
	if workingDir != "" {
		if root, ok := FindRepoRoot(workingDir); ok {
			if ref := d.fromGit(ctx, root); ref != nil {
				return ref
			}
		}
		if ref, ok := Parse(filepath.ToSlash(workingDir)); ok {
			ref.Source = SourcePath
			return &ref
		}
	}
	if title != "" {
		if ref, ok := Parse(title); ok {
			ref.Source = SourceWindowTitle
			return &ref
		}
	}
	return nil
}

func (d *Detector) fromGit(ctx context.Context, root string) *IssueRef {
	branch, err := CurrentBranch(ctx, root)
	if err != nil {
		d.log.Debug().Err(err).Str("repo", root).Msg("read branch")
	} else if ref, ok := Parse(branch); ok {
		ref.Source = SourceBranch
		return &ref
	}

	msg, err := HeadMessage(ctx, root)
	if err != nil {
		d.log.Debug().Err(err).Str("repo", root).Msg("read head commit")
		return nil
	}
	if ref, ok := Parse(msg); ok {
		ref.Source = SourceCommit
		return &ref
	}
	return nil
}

// WorkingDir guesses the directory the user is working in from the editor's
// last workspace, using title to pick among open folders.
func (d *Detector) WorkingDir(title string) string {
	dir, ok := LastWorkspace(title, d.storagePaths)
	if !ok {
		return ""
	}
	if root, ok := FindRepoRoot(dir); ok {
		return root
	}
	return dir
}
