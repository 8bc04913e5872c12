package rollback

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/viant/afs"

	"github.com/kirillm/action-guard/internal/domain"
	"github.com/kirillm/action-guard/pkg/utils"
)

// StateFiles is the checkpoint state key holding file snapshots.
const StateFiles = "files"

// ParamFiles is the action param listing file URLs the action will touch.
const ParamFiles = "files"

// FileSnapshot content of one file before execution.
type FileSnapshot struct {
	URL     string
	Existed bool
	Content []byte
}

// FileSnapshots captures and restores files through afs, so any afs URL
// (file://, mem://, s3://, gs://) can be protected.
type FileSnapshots struct {
	fs     afs.Service
	logger *utils.Logger
}

// NewFileSnapshots creates the handler; nil fs means afs.New().
func NewFileSnapshots(fs afs.Service, logger *utils.Logger) *FileSnapshots {
	if fs == nil {
		fs = afs.New()
	}
	if logger == nil {
		logger = utils.Default()
	}
	return &FileSnapshots{fs: fs, logger: logger.Component("rollback-files")}
}

// Register wires capture and restore for actionType into m.
func (f *FileSnapshots) Register(m *Manager, actionType string) {
	m.RegisterCapturer(actionType, f.Capture)
	m.RegisterHandler(actionType, f.Restore)
}

// Capture reads every URL listed in the action's "files" param.
func (f *FileSnapshots) Capture(ctx context.Context, action domain.Action) (map[string]interface{}, error) {
	urls, err := fileURLs(action.Params[ParamFiles])
	if err != nil {
		return nil, err
	}

	snapshots := make([]FileSnapshot, 0, len(urls))
	for _, url := range urls {
		exists, err := f.fs.Exists(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("check %s: %w", url, err)
		}
		snap := FileSnapshot{URL: url, Existed: exists}
		if exists {
			data, err := f.fs.DownloadWithURL(ctx, url)
			if err != nil {
				return nil, fmt.Errorf("read %s: %w", url, err)
			}
			snap.Content = data
		}
		snapshots = append(snapshots, snap)
	}

	return map[string]interface{}{StateFiles: snapshots}, nil
}

// Restore writes captured content back and deletes files that did not exist.
func (f *FileSnapshots) Restore(ctx context.Context, cp *domain.RollbackCheckpoint) error {
	snapshots, ok := cp.State[StateFiles].([]FileSnapshot)
	if !ok {
		return fmt.Errorf("checkpoint %s has no file snapshots", cp.ID)
	}

	var errs []error
	for _, snap := range snapshots {
		if err := f.restoreOne(ctx, snap); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f *FileSnapshots) restoreOne(ctx context.Context, snap FileSnapshot) error {
	current, exists, err := f.read(ctx, snap.URL)
	if err != nil {
		return err
	}

	if !snap.Existed {
		if !exists {
			return nil
		}
		if err := f.fs.Delete(ctx, snap.URL); err != nil {
			return fmt.Errorf("delete %s: %w", snap.URL, err)
		}
		f.logger.Info("removed %s created by rolled back action", snap.URL)
		return nil
	}

	if exists && bytes.Equal(current, snap.Content) {
		return nil
	}

	if diff, err := Diff(snap.URL, current, snap.Content); err == nil && diff != "" {
		f.logger.Info("restoring %s:\n%s", snap.URL, diff)
	}
	if err := f.fs.Upload(ctx, snap.URL, os.FileMode(0o644), bytes.NewReader(snap.Content)); err != nil {
		return fmt.Errorf("restore %s: %w", snap.URL, err)
	}
	return nil
}

func (f *FileSnapshots) read(ctx context.Context, url string) ([]byte, bool, error) {
	exists, err := f.fs.Exists(ctx, url)
	if err != nil {
		return nil, false, fmt.Errorf("check %s: %w", url, err)
	}
	if !exists {
		return nil, false, nil
	}
	data, err := f.fs.DownloadWithURL(ctx, url)
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", url, err)
	}
	return data, true, nil
}

// Diff returns a unified diff turning current into restored.
func Diff(url string, current, restored []byte) (string, error) {
	ud := difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(current)),
		B:        difflib.SplitLines(string(restored)),
		FromFile: url + " (current)",
		ToFile:   url + " (checkpoint)",
		Context:  3,
	}
	return difflib.GetUnifiedDiffString(ud)
}

func fileURLs(v interface{}) ([]string, error) {
	switch t := v.(type) {
	case []string:
		return t, nil
	case string:
		return []string{t}, nil
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, item := range t {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("files param: unexpected element %T", item)
			}
			out = append(out, s)
		}
		return out, nil
	case nil:
		return nil, fmt.Errorf("files param is missing")
	default:
		return nil, fmt.Errorf("files param: unexpected type %T", v)
	}
}
