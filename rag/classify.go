package rag

import (
	"path"
	"strings"
)

// FileType is the closed classification used for source-quality breakdowns.
type FileType string

const (
	FileTypeCode    FileType = "code"
	FileTypeDocs    FileType = "docs"
	FileTypeTest    FileType = "test"
	FileTypeConfig  FileType = "config"
	FileTypeCatalog FileType = "catalog"
)

var codeExtensions = map[string]bool{
	".go": true, ".js": true, ".jsx": true, ".ts": true, ".tsx": true,
	".py": true, ".java": true, ".rb": true, ".rs": true, ".c": true,
	".h": true, ".cpp": true, ".hpp": true, ".cs": true, ".php": true,
	".kt": true, ".swift": true, ".scala": true, ".sh": true, ".sql": true,
}

var configExtensions = map[string]bool{
	".yaml": true, ".yml": true, ".toml": true, ".ini": true, ".env": true,
	".properties": true, ".conf": true,
}

var catalogFiles = map[string]bool{
	"package.json": true, "package-lock.json": true, "go.mod": true,
	"go.sum": true, "cargo.toml": true, "cargo.lock": true,
	"requirements.txt": true, "pipfile": true, "gemfile": true,
	"pom.xml": true, "build.gradle": true, "composer.json": true,
}

// ClassifyFile maps a repository path to its FileType. The classification is
// a pure function over the path; content is never inspected.
func ClassifyFile(p string) FileType {
	base := strings.ToLower(path.Base(p))
	ext := path.Ext(base)

	if catalogFiles[base] {
		return FileTypeCatalog
	}

	if isTestPath(base, p) && codeExtensions[ext] {
		return FileTypeTest
	}

	switch {
	case codeExtensions[ext]:
		return FileTypeCode
	case ext == ".md" || ext == ".rst" || ext == ".txt" || base == "readme" || base == "license":
		return FileTypeDocs
	case configExtensions[ext] || ext == ".json" || ext == ".xml":
		return FileTypeConfig
	default:
		return FileTypeDocs
	}
}

func isTestPath(base, full string) bool {
	if strings.HasSuffix(base, "_test.go") {
		return true
	}
	name := strings.TrimSuffix(base, path.Ext(base))
	if strings.HasSuffix(name, ".test") || strings.HasSuffix(name, ".spec") ||
		strings.HasPrefix(name, "test_") {
		return true
	}
	lower := "/" + strings.ToLower(full)
	return strings.Contains(lower, "/test/") || strings.Contains(lower, "/tests/") ||
		strings.Contains(lower, "/__tests__/")
}

// ModuleOf derives a coarse module label from a repository path: the first
// directory segment, or "root" for top-level files.
func ModuleOf(p string) string {
	p = strings.TrimPrefix(p, "/")
	if i := strings.IndexByte(p, '/'); i > 0 {
		return p[:i]
	}
	return "root"
}
