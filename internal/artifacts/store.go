// Package artifacts resolves the local files of a model: the GGUF weights and
// the JSON configuration that accompanies them.
package artifacts

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"poemd/internal/common/fsutil"
	"poemd/pkg/types"
)

// ErrWeightsNotFound is returned when the store holds no weights file.
var ErrWeightsNotFound = errors.New("weights file not found")

// Store is a local directory holding one model's artifacts.
type Store struct {
	dir          string
	weightsFile  string
	configFile   string
	chatTemplate string
}

// Bundle is the set of local files a runtime needs to construct a model.
type Bundle struct {
	Dir         string
	WeightsPath string
	// ConfigPath is empty when config loading is disabled.
	ConfigPath string
	Config     ModelConfig
	// ChatTemplate overrides the template derived from Config.
	ChatTemplate string
}

// TemplateName returns the explicit chat template, else the architecture.
func (b Bundle) TemplateName() string {
	if b.ChatTemplate != "" {
		return b.ChatTemplate
	}
	return b.Config.Architecture()
}

// Open resolves the model's local directory (expanding a leading '~').
// The directory does not have to exist yet.
func Open(mc types.ModelConfiguration) (*Store, error) {
	if strings.TrimSpace(mc.LocalDir) == "" {
		return nil, fmt.Errorf("model %q: local_dir is empty", mc.ID)
	}
	base, err := fsutil.ExpandHome(mc.LocalDir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	return &Store{dir: abs, weightsFile: mc.WeightsFile, configFile: mc.ConfigFile, chatTemplate: mc.ChatTemplate}, nil
}

// Dir returns the absolute directory of the store.
func (s *Store) Dir() string { return s.dir }

// WeightsPath returns the weights file path. With an explicit weights filename
// only that file counts; otherwise the first *.gguf (lexical order) is used,
// looking one directory level down when the top level has none.
func (s *Store) WeightsPath() (string, bool) {
	if s.weightsFile != "" {
		p := filepath.Join(s.dir, filepath.FromSlash(s.weightsFile))
		return p, fsutil.FileExists(p)
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return "", false
	}
	if name, ok := firstGGUF(entries); ok {
		return filepath.Join(s.dir, name), true
	}
	var nested []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		sub, err := os.ReadDir(filepath.Join(s.dir, e.Name()))
		if err != nil {
			continue
		}
		if name, ok := firstGGUF(sub); ok {
			nested = append(nested, filepath.Join(e.Name(), name))
		}
	}
	if len(nested) == 0 {
		return "", false
	}
	sort.Strings(nested)
	return filepath.Join(s.dir, nested[0]), true
}

func firstGGUF(entries []os.DirEntry) (string, bool) {
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".gguf") {
			continue
		}
		names = append(names, e.Name())
	}
	if len(names) == 0 {
		return "", false
	}
	sort.Strings(names)
	return names[0], true
}

// Present reports whether the weights file exists. It is the only check made
// before loading; file contents are not verified.
func (s *Store) Present() bool {
	_, ok := s.WeightsPath()
	return ok
}

// Bundle collects the local files and parses the JSON configuration.
func (s *Store) Bundle() (Bundle, error) {
	wp, ok := s.WeightsPath()
	if !ok {
		return Bundle{}, fmt.Errorf("%s: %w", s.dir, ErrWeightsNotFound)
	}
	b := Bundle{Dir: s.dir, WeightsPath: wp, ChatTemplate: s.chatTemplate}
	if s.configFile == "" {
		return b, nil
	}
	b.ConfigPath = filepath.Join(s.dir, s.configFile)
	cfg, err := ReadModelConfig(b.ConfigPath)
	if err != nil {
		return Bundle{}, err
	}
	b.Config = cfg
	return b, nil
}
