package adapters

import (
	"bytes"
	"fmt"
	"strings"

	sgdiff "github.com/sourcegraph/go-diff/diff"

	"github.com/kirillm/action-guard/internal/domain"
)

// Build and deploy action types.
const (
	TypeApplyPatch       = "apply_patch"
	TypeForcePush        = "force_push"
	TypeStagingDeploy    = "staging_deploy"
	TypeProductionDeploy = "production_deploy"
)

// PatchStats size of a unified diff.
type PatchStats struct {
	Files        []string
	LinesAdded   int
	LinesDeleted int
}

// Lines total changed lines.
func (s PatchStats) Lines() int { return s.LinesAdded + s.LinesDeleted }

// ParsePatch counts files and changed lines in a multi-file unified diff.
func ParsePatch(patch []byte) (PatchStats, error) {
	fileDiffs, err := sgdiff.ParseMultiFileDiff(patch)
	if err != nil {
		return PatchStats{}, fmt.Errorf("parse patch: %w", err)
	}

	var stats PatchStats
	for _, fd := range fileDiffs {
		stats.Files = append(stats.Files, patchFileName(fd))
		for _, h := range fd.Hunks {
			for _, line := range bytes.Split(h.Body, []byte("\n")) {
				switch {
				case bytes.HasPrefix(line, []byte("+")):
					stats.LinesAdded++
				case bytes.HasPrefix(line, []byte("-")):
					stats.LinesDeleted++
				}
			}
		}
	}
	return stats, nil
}

func patchFileName(fd *sgdiff.FileDiff) string {
	name := fd.NewName
	if name == "" || name == "/dev/null" {
		name = fd.OrigName
	}
	for _, prefix := range []string{"a/", "b/"} {
		if strings.HasPrefix(name, prefix) {
			return strings.TrimPrefix(name, prefix)
		}
	}
	return name
}

// BuildAdapter builds actions for the build/deploy engine.
type BuildAdapter struct {
	base
}

// NewBuildAdapter creates the adapter.
func NewBuildAdapter(factory *domain.ActionFactory) *BuildAdapter {
	return &BuildAdapter{base: newBase(factory)}
}

func (a *BuildAdapter) Engine() domain.Engine { return domain.EngineBuild }

// ApplyPatch proposes applying a patch. Size signals come from the diff
// itself; the touched files are kept so file snapshots can restore them.
func (a *BuildAdapter) ApplyPatch(description string, patch []byte, root string) (domain.Action, error) {
	stats, err := ParsePatch(patch)
	if err != nil {
		return domain.Action{}, err
	}

	files := make([]string, 0, len(stats.Files))
	for _, f := range stats.Files {
		files = append(files, joinURL(root, f))
	}

	return a.factory.New(domain.EngineBuild, domain.CategoryBuild, TypeApplyPatch).
		Description(description).
		Param("files", files).
		Param("lines_added", stats.LinesAdded).
		Param("lines_deleted", stats.LinesDeleted).
		Changes(stats.Lines(), len(stats.Files)).
		Reversible(true).
		Build()
}

// Deploy proposes a release of version to env. Deploys are reversible by
// redeploying the previous version.
func (a *BuildAdapter) Deploy(env, version, previous string, urgency domain.Urgency) (domain.Action, error) {
	env = strings.ToLower(env)
	production := env == "prod" || env == "production"

	actionType := TypeStagingDeploy
	if production {
		actionType = TypeProductionDeploy
	}
	if urgency == "" {
		urgency = domain.UrgencyNormal
	}

	return a.factory.New(domain.EngineBuild, domain.CategoryDeployment, actionType).
		Description(fmt.Sprintf("Deploy %s to %s", version, env)).
		Param("env", env).
		Param("version", version).
		Param("previous", previous).
		AffectsProduction(production).
		Reversible(previous != "").
		Urgency(urgency).
		Build()
}

// ForcePush rewrites remote history and cannot be undone by the guard.
func (a *BuildAdapter) ForcePush(branch string) (domain.Action, error) {
	return a.factory.New(domain.EngineBuild, domain.CategoryBuild, TypeForcePush).
		Description("Force push "+branch).
		Param("branch", branch).
		AffectsProduction(branch == "main" || branch == "master").
		Build()
}

func joinURL(root, name string) string {
	if root == "" {
		return name
	}
	return strings.TrimSuffix(root, "/") + "/" + strings.TrimPrefix(name, "/")
}
