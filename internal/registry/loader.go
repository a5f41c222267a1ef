package registry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"warden/internal/api"
	"warden/internal/config"
	"warden/pkg/logging"
)

// maxParallelParse bounds concurrent definition parsing.
const maxParallelParse = 8

// Loader reads service definitions from a directory, one YAML file per
// service.
type Loader struct {
	Dir      string
	Defaults config.Defaults
}

// NewLoader creates a loader for dir.
func NewLoader(dir string, defaults config.Defaults) *Loader {
	return &Loader{Dir: dir, Defaults: defaults}
}

type parsed struct {
	path string
	def  api.ServiceDefinition
	err  error
}

// Load returns the valid definitions in Dir sorted by name. Malformed
// files are logged and skipped. When two files define the same name, the
// first in lexical file order wins.
func (l *Loader) Load(ctx context.Context) ([]api.ServiceDefinition, error) {
	defs, errs, err := l.LoadWithErrors(ctx)
	if err != nil {
		return nil, err
	}
	for _, e := range errs {
		logging.Warn("Registry", "Skipping definition: %v", e)
	}
	return defs, nil
}

// LoadWithErrors is Load returning the per-file errors instead of logging
// them.
func (l *Loader) LoadWithErrors(ctx context.Context) ([]api.ServiceDefinition, []*api.ConfigError, error) {
	files, err := definitionFiles(l.Dir)
	if err != nil {
		return nil, nil, err
	}

	results := make([]parsed, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelParse)
	for i, path := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			def, err := l.parseFile(path)
			results[i] = parsed{path: path, def: def, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var (
		defs []api.ServiceDefinition
		errs []*api.ConfigError
		seen = make(map[string]string)
	)
	for _, r := range results {
		if r.err != nil {
			errs = append(errs, asConfigError(r.path, r.err))
			continue
		}
		if first, dup := seen[r.def.Name]; dup {
			errs = append(errs, &api.ConfigError{
				Path:    r.path,
				Service: r.def.Name,
				Err:     fmt.Errorf("duplicate service name, already defined in %s", filepath.Base(first)),
			})
			continue
		}
		seen[r.def.Name] = r.path
		defs = append(defs, r.def)
	}

	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	logging.Debug("Registry", "Loaded %d definitions from %s (%d rejected)", len(defs), l.Dir, len(errs))
	return defs, errs, nil
}

// definitionFiles lists the YAML files of dir in lexical order. A missing
// directory has no definitions.
func definitionFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Info("Registry", "Services directory %s does not exist", dir)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read services directory %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !isYAMLFile(e.Name()) || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

func (l *Loader) parseFile(path string) (api.ServiceDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return api.ServiceDefinition{}, err
	}
	def, err := Parse(data, NameFromPath(path))
	if err != nil {
		return api.ServiceDefinition{}, err
	}
	applyDefaults(&def, l.Defaults)
	if err := Validate(def); err != nil {
		return api.ServiceDefinition{}, &api.ConfigError{Path: path, Service: def.Name, Err: err}
	}
	return def, nil
}

// Parse decodes one definition. defaultName is used when the document
// has no name.
func Parse(data []byte, defaultName string) (api.ServiceDefinition, error) {
	var def api.ServiceDefinition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return api.ServiceDefinition{}, fmt.Errorf("malformed yaml: %w", err)
	}
	if def.Name == "" {
		def.Name = defaultName
	}
	if def.Type == "" {
		def.Type = api.TypeSimple
	}
	return def, nil
}

// NameFromPath derives the default service name from a definition file.
func NameFromPath(path string) string {
	name := filepath.Base(path)
	name = strings.TrimSuffix(name, ".yaml")
	return strings.TrimSuffix(name, ".yml")
}

func applyDefaults(def *api.ServiceDefinition, d config.Defaults) {
	if def.IsVirtual() {
		return
	}
	if def.StartTimeout == 0 {
		def.StartTimeout = d.StartTimeout
	}
	if def.StopTimeout == 0 {
		def.StopTimeout = d.StopTimeout
	}
	if def.Restart.Mode == "" {
		def.Restart.Mode = d.RestartPolicy
		if def.Restart.Mode == "" {
			def.Restart.Mode = api.RestartNever
		}
	}
	if def.Restart.Delay == 0 {
		def.Restart.Delay = d.RestartDelay
	}
	if def.Restart.Backoff == "" {
		def.Restart.Backoff = api.BackoffConstant
	}
}

func asConfigError(path string, err error) *api.ConfigError {
	var cerr *api.ConfigError
	if errors.As(err, &cerr) {
		return cerr
	}
	return &api.ConfigError{Path: path, Err: err}
}

// isYAMLFile checks if a file path is a YAML file.
func isYAMLFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
