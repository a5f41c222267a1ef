package orchestrator

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/renameio/v2"

	"warden/internal/api"
	"warden/pkg/logging"
)

// StatusFile is the name of the snapshot file written under the state dir.
const StatusFile = "status.json"

func (o *Orchestrator) snapshots() []api.StateSnapshot {
	snaps := make([]api.StateSnapshot, 0, len(o.byName))
	for _, inst := range o.instances {
		if inst != nil {
			snaps = append(snaps, inst.snapshot())
		}
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].Name < snaps[j].Name })
	return snaps
}

// dumpStatus logs every instance and, with a state dir, replaces
// status.json atomically.
func (o *Orchestrator) dumpStatus() error {
	snaps := o.snapshots()
	for _, s := range snaps {
		logging.Info("Status", "%s: %s pid=%d restarts=%d last=%s reason=%q",
			s.Name, s.State, s.PID, s.RestartCount, s.LastExit, s.Reason)
	}
	if o.stateDir == "" {
		return nil
	}

	data, err := api.EncodeSnapshots(snaps)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(o.stateDir, 0o755); err != nil {
		return fmt.Errorf("failed to create state dir: %w", err)
	}
	path := filepath.Join(o.stateDir, StatusFile)
	if err := renameio.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	logging.Debug("Status", "Wrote %s", path)
	return nil
}
