package acpserver

import (
	"os"
	"path/filepath"

	"github.com/swissarmyhammer/agentcore/internal/project"
	"github.com/swissarmyhammer/agentcore/pkg/acp"
)

// ValidateWorkspace enforces the protocol's absolute-cwd and
// Git-repository-rooted requirements for session/new (§1 Non-goals: "any
// attempt to run without a Git-repository-rooted workspace directory").
// Project detection is delegated to internal/project, which also hands
// back the repository-stable ProjectID sessions are tagged with.
func ValidateWorkspace(cwd string) (*project.Info, error) {
	if !filepath.IsAbs(cwd) {
		return nil, acp.New(acp.ErrWorkingDirectoryNotAbsolute,
			"cwd must be an absolute path: "+cwd, map[string]any{"cwd": cwd})
	}

	info, statErr := os.Stat(cwd)
	if statErr != nil || !info.IsDir() {
		return nil, acp.New(acp.ErrWorkingDirectoryNotFound,
			"working directory not found: "+cwd, map[string]any{"cwd": cwd})
	}

	proj, err := project.FromDirectory(cwd)
	if err != nil || proj.VCS == nil {
		return nil, acp.New(acp.ErrWorkingDirectoryNotFound,
			"cwd is not inside a Git repository: "+cwd, map[string]any{"cwd": cwd})
	}
	return proj, nil
}

// WorkspaceStateDir is the persisted-state root for a workspace, co-located
// with its Git root (§6.1 "Persisted state layout").
func WorkspaceStateDir(gitRoot string) string {
	return filepath.Join(gitRoot, ".swissarmyhammer")
}
