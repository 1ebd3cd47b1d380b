package detector

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"go/parser"
	"go/token"
	"io/fs"
	"path"
	"regexp"
	"strings"

	lru "github.com/hashicorp/golang-lru"

	"github.com/openkraft/issuegate/internal/domain"
)

const defaultCacheSize = 1024

// NameDetector implements domain.NameResolver. Module names come from build
// descriptors found on the way from a file up to its workspace root; package
// names come from the package or namespace declaration of the file itself.
//
// Descriptor lookups are cached per workspace and directory. Workspaces
// change between builds, so pipelines take a fresh detector per build from
// ForRun.
type NameDetector struct {
	size int
	dirs *lru.Cache
}

func New() *NameDetector {
	return NewWithCacheSize(defaultCacheSize)
}

func NewWithCacheSize(size int) *NameDetector {
	if size <= 0 {
		size = defaultCacheSize
	}
	dirs, _ := lru.New(size)
	return &NameDetector{size: size, dirs: dirs}
}

// ForRun returns a detector with the same cache size and an empty cache.
func (d *NameDetector) ForRun() domain.NameResolver {
	return NewWithCacheSize(d.size)
}

// descriptor reads a module name from one kind of build file. An empty name
// means the file does not define one.
type descriptor struct {
	matches func(name string) bool
	name    func(file string, content []byte) string
}

// descriptors are checked in order; the first one yielding a name wins.
var descriptors = []descriptor{
	{matches: is("pom.xml"), name: mavenName},
	{matches: is("build.xml"), name: antName},
	{matches: is("package.json"), name: npmName},
	{matches: is("go.mod"), name: goModuleName},
	{matches: is("build.gradle", "build.gradle.kts"), name: directoryName},
	{matches: hasSuffix(".csproj"), name: projectFileName},
}

func is(names ...string) func(string) bool {
	return func(name string) bool {
		for _, n := range names {
			if n == name {
				return true
			}
		}
		return false
	}
}

func hasSuffix(suffix string) func(string) bool {
	return func(name string) bool { return strings.HasSuffix(name, suffix) }
}

// ModuleName walks up from the directory of file to root and returns the
// first module name found. It never looks above root.
func (d *NameDetector) ModuleName(ctx context.Context, ws domain.Workspace, root, file string) (string, error) {
	root = strings.TrimSuffix(root, "/")
	dir := path.Dir(file)
	for {
		name, err := d.moduleIn(ctx, ws, dir)
		if err != nil {
			return "", err
		}
		if name != "" {
			return name, nil
		}
		parent := path.Dir(dir)
		if dir == root || parent == dir || !strings.HasPrefix(dir, root+"/") {
			return "", nil
		}
		dir = parent
	}
}

func (d *NameDetector) moduleIn(ctx context.Context, ws domain.Workspace, dir string) (string, error) {
	key := ws.ID() + "\x00" + dir
	if v, ok := d.dirs.Get(key); ok {
		return v.(string), nil
	}

	entries, err := ws.ReadDir(ctx, dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			d.dirs.Add(key, "")
			return "", nil
		}
		return "", fmt.Errorf("listing %s: %w", dir, err)
	}

	name, err := d.readDescriptors(ctx, ws, dir, entries)
	if err != nil {
		return "", err
	}
	d.dirs.Add(key, name)
	return name, nil
}

func (d *NameDetector) readDescriptors(ctx context.Context, ws domain.Workspace, dir string, entries []domain.DirEntry) (string, error) {
	for _, desc := range descriptors {
		for _, e := range entries {
			if e.IsDir || !desc.matches(e.Name) {
				continue
			}
			file := path.Join(dir, e.Name)
			content, err := ws.ReadFile(ctx, file)
			if err != nil {
				return "", fmt.Errorf("reading %s: %w", file, err)
			}
			if name := desc.name(file, content); name != "" {
				return name, nil
			}
		}
	}

	for _, e := range entries {
		if e.IsDir && e.Name == "META-INF" {
			return d.manifestName(ctx, ws, path.Join(dir, e.Name, "MANIFEST.MF"))
		}
	}
	return "", nil
}

func (d *NameDetector) manifestName(ctx context.Context, ws domain.Workspace, file string) (string, error) {
	content, err := ws.ReadFile(ctx, file)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("reading %s: %w", file, err)
	}
	return bundleName(content), nil
}

func mavenName(_ string, content []byte) string {
	var pom struct {
		Name       string `xml:"name"`
		ArtifactID string `xml:"artifactId"`
	}
	if err := xml.Unmarshal(content, &pom); err != nil {
		return ""
	}
	if name := strings.TrimSpace(pom.Name); name != "" {
		return name
	}
	return strings.TrimSpace(pom.ArtifactID)
}

func antName(_ string, content []byte) string {
	var project struct {
		Name string `xml:"name,attr"`
	}
	if err := xml.Unmarshal(content, &project); err != nil {
		return ""
	}
	return strings.TrimSpace(project.Name)
}

func npmName(_ string, content []byte) string {
	var pkg struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(content, &pkg); err != nil {
		return ""
	}
	return strings.TrimSpace(pkg.Name)
}

var goModule = regexp.MustCompile(`(?m)^\s*module\s+"?([^\s"]+)"?`)

func goModuleName(_ string, content []byte) string {
	if m := goModule.FindSubmatch(content); m != nil {
		return string(m[1])
	}
	return ""
}

func directoryName(file string, _ []byte) string {
	return path.Base(path.Dir(file))
}

func projectFileName(file string, _ []byte) string {
	return strings.TrimSuffix(path.Base(file), path.Ext(file))
}

// bundleName prefers Bundle-Name and falls back to Bundle-SymbolicName
// without directives. Localized names ("%key") are ignored.
func bundleName(content []byte) string {
	headers := map[string]string{}
	var last string
	sc := bufio.NewScanner(bytes.NewReader(content))
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.HasPrefix(line, " ") && last != "" {
			headers[last] += strings.TrimPrefix(line, " ")
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		last = strings.TrimSpace(key)
		headers[last] = strings.TrimSpace(value)
	}

	if name := headers["Bundle-Name"]; name != "" && !strings.HasPrefix(name, "%") {
		return name
	}
	symbolic, _, _ := strings.Cut(headers["Bundle-SymbolicName"], ";")
	return strings.TrimSpace(symbolic)
}

var (
	jvmPackage   = regexp.MustCompile(`(?m)^\s*package\s+([\w.]+)\s*;?`)
	csNamespace  = regexp.MustCompile(`(?m)^\s*namespace\s+([\w.]+)`)
	jvmLanguages = map[string]bool{".java": true, ".kt": true, ".kts": true, ".scala": true, ".groovy": true}
)

// PackageName returns the declared package of a source file, or "" if the
// language is not supported or no declaration exists.
func (d *NameDetector) PackageName(file string, content []byte) string {
	ext := strings.ToLower(path.Ext(file))
	switch {
	case jvmLanguages[ext]:
		if m := jvmPackage.FindSubmatch(content); m != nil {
			return string(m[1])
		}
	case ext == ".cs":
		if m := csNamespace.FindSubmatch(content); m != nil {
			return string(m[1])
		}
	case ext == ".go":
		f, err := parser.ParseFile(token.NewFileSet(), file, content, parser.PackageClauseOnly)
		if err == nil {
			return f.Name.Name
		}
	}
	return ""
}
