package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

type SourceKind string

const (
	SourceDefault SourceKind = "default"
	SourceFile    SourceKind = "file"
)

// Source is where an effective value came from.
type Source struct {
	Kind   SourceKind
	File   string
	Line   int
	Column int
}

func (s Source) String() string {
	if s.Kind == SourceFile && s.File != "" {
		return fmt.Sprintf("%s:%d:%d", s.File, s.Line, s.Column)
	}
	return string(s.Kind)
}

type LoadResult struct {
	Config  *Config
	Sources map[string]Source // YAML-path -> last writer source (file only)
	Files   []string          // all loaded files, in load order
}

// Load reads the merged configuration from the standard location and returns an
// effective config ready for use by the daemon.
func Load() (*Config, error) {
	res, err := LoadWithSources()
	if err != nil {
		return nil, err
	}
	return res.Config, nil
}

// LoadWithSources loads config and returns file-level sources for introspection.
func LoadWithSources() (*LoadResult, error) {
	path, err := DefaultConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFromPath(path)
}

// LoadFromPath loads path and its includes. A missing file yields the defaults.
func LoadFromPath(path string) (*LoadResult, error) {
	l := newFileLoader()

	exists, err := pathExists(path)
	if err != nil {
		return nil, err
	}
	if exists {
		if err := l.load(path, nil); err != nil {
			return nil, err
		}
	}

	cfg, err := BuildEffectiveConfig(l.raw)
	if err != nil {
		return nil, attachSourceContext(err, l.sources)
	}
	if err := cfg.Validate(); err != nil {
		return nil, attachSourceContext(err, l.sources)
	}

	return &LoadResult{
		Config:  cfg,
		Sources: l.sources,
		Files:   l.files,
	}, nil
}

// fileLoader merges a config file and its includes depth first. Included
// files are applied before the including file, so the includer wins.
type fileLoader struct {
	raw     RawConfig
	sources map[string]Source
	files   []string
	seen    map[string]struct{}
}

func newFileLoader() *fileLoader {
	return &fileLoader{
		sources: make(map[string]Source),
		seen:    make(map[string]struct{}),
	}
}

func (l *fileLoader) load(path string, stack []string) error {
	canon, err := canonicalPath(path)
	if err != nil {
		return err
	}
	for _, existing := range stack {
		if existing == canon {
			return fmt.Errorf("include cycle detected: %s -> %s", strings.Join(stack, " -> "), canon)
		}
	}
	if _, ok := l.seen[canon]; ok {
		// Already merged through another include.
		return nil
	}
	l.seen[canon] = struct{}{}

	data, err := os.ReadFile(canon)
	if err != nil {
		return fmt.Errorf("%s: failed to read: %w", canon, err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%s: failed to parse yaml: %w", canon, err)
	}
	var raw RawConfig
	if err := decodeStrictYAML(data, &raw); err != nil {
		return fmt.Errorf("%s: %w", canon, err)
	}
	if err := resolveAssetPaths(&raw, canon); err != nil {
		return fmt.Errorf("%s: %w", canon, err)
	}

	root := rootMapping(&doc)
	for _, ref := range includeRefs(root, canon) {
		paths, err := expandInclude(canon, ref.Value)
		if err != nil {
			return fmt.Errorf("%s:%d:%d: include %q: %w", ref.Source.File, ref.Source.Line, ref.Source.Column, ref.Value, err)
		}
		for _, inc := range paths {
			if err := l.load(inc, append(stack, canon)); err != nil {
				return err
			}
		}
	}

	l.raw = l.raw.merge(raw)
	collectSources(root, canon, "", l.sources)
	l.files = append(l.files, canon)
	return nil
}

// resolveAssetPaths makes relative image and font paths relative to the
// file that sets them, so included fragments can ship their own assets.
func resolveAssetPaths(raw *RawConfig, file string) error {
	var paths []*string
	if raw.Background != nil {
		paths = append(paths, raw.Background.Wallpaper)
	}
	if raw.Cursor != nil {
		paths = append(paths, raw.Cursor.Image)
	}
	if raw.Theme != nil {
		paths = append(paths, raw.Theme.Font)
	}
	for _, p := range paths {
		if p == nil || *p == "" {
			continue
		}
		resolved, err := resolvePathRelativeToFile(file, *p)
		if err != nil {
			return err
		}
		*p = resolved
	}
	return nil
}

type includeRef struct {
	Value  string
	Source Source
}

func decodeStrictYAML(data []byte, out any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return nil
}

func canonicalPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %q: %w", path, err)
	}
	real, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return abs, nil
	}
	return real, nil
}

// expandInclude resolves an include to files. A directory expands to its
// *.yaml and *.yml files in name order.
func expandInclude(baseFile string, include string) ([]string, error) {
	path, err := resolvePathRelativeToFile(baseFile, include)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, ent := range entries {
		if ent.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(ent.Name())) {
		case ".yaml", ".yml":
			files = append(files, filepath.Join(path, ent.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

func resolvePathRelativeToFile(baseFile string, include string) (string, error) {
	if include == "" {
		return "", fmt.Errorf("path is empty")
	}
	include, err := expandHome(include)
	if err != nil {
		return "", err
	}
	if filepath.IsAbs(include) {
		return include, nil
	}
	return filepath.Join(filepath.Dir(baseFile), include), nil
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, strings.TrimPrefix(path[1:], "/")), nil
}

func pathExists(path string) (bool, error) {
	_, err := os.Stat(path)
	switch {
	case err == nil:
		return true, nil
	case os.IsNotExist(err):
		return false, nil
	default:
		return false, err
	}
}

// rootMapping returns the top-level mapping of a parsed document, or nil.
func rootMapping(doc *yaml.Node) *yaml.Node {
	node := doc
	if node != nil && node.Kind == yaml.DocumentNode && len(node.Content) > 0 {
		node = node.Content[0]
	}
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}
	return node
}

func fileSource(file string, n *yaml.Node) Source {
	return Source{Kind: SourceFile, File: file, Line: n.Line, Column: n.Column}
}

// collectSources records the position of every key under node. Sequences
// are tracked as a whole.
func collectSources(node *yaml.Node, file string, prefix string, out map[string]Source) {
	if node == nil {
		return
	}
	switch node.Kind {
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			key, val := node.Content[i], node.Content[i+1]
			path := key.Value
			if prefix != "" {
				path = prefix + "." + key.Value
			}
			out[path] = fileSource(file, val)
			collectSources(val, file, path, out)
		}
	case yaml.SequenceNode:
		if prefix != "" {
			out[prefix] = fileSource(file, node)
		}
	}
}

func includeRefs(root *yaml.Node, file string) []includeRef {
	if root == nil {
		return nil
	}
	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value != "include" {
			continue
		}
		val := root.Content[i+1]
		switch val.Kind {
		case yaml.ScalarNode:
			return []includeRef{{Value: val.Value, Source: fileSource(file, val)}}
		case yaml.SequenceNode:
			refs := make([]includeRef, 0, len(val.Content))
			for _, item := range val.Content {
				if item.Kind == yaml.ScalarNode {
					refs = append(refs, includeRef{Value: item.Value, Source: fileSource(file, item)})
				}
			}
			return refs
		}
		return nil
	}
	return nil
}

// attachSourceContext adds the file position of the offending key to a
// ValidationError.
func attachSourceContext(err error, sources map[string]Source) error {
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Path == "" {
		return err
	}
	if src, ok := sources[verr.Path]; ok {
		verr.Source = src
	}
	return verr
}
