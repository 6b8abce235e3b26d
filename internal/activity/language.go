package activity

import (
	"path/filepath"
	"strings"
)

// languages maps extensions to editor language ids, which are what stored
// histories use as language keys.
var languages = map[string]string{
	".c":     "c",
	".h":     "c",
	".cc":    "cpp",
	".cpp":   "cpp",
	".hpp":   "cpp",
	".cs":    "csharp",
	".css":   "css",
	".dart":  "dart",
	".go":    "go",
	".html":  "html",
	".java":  "java",
	".js":    "javascript",
	".mjs":   "javascript",
	".json":  "json",
	".jsx":   "javascriptreact",
	".kt":    "kotlin",
	".lua":   "lua",
	".md":    "markdown",
	".php":   "php",
	".py":    "python",
	".rb":    "ruby",
	".rs":    "rust",
	".scala": "scala",
	".sh":    "shellscript",
	".sql":   "sql",
	".swift": "swift",
	".tex":   "latex",
	".toml":  "toml",
	".ts":    "typescript",
	".tsx":   "typescriptreact",
	".vue":   "vue",
	".xml":   "xml",
	".yaml":  "yaml",
	".yml":   "yaml",
	".zig":   "zig",
}

var fileNames = map[string]string{
	"Dockerfile": "dockerfile",
	"Makefile":   "makefile",
	"go.mod":     "go.mod",
}

// LanguageOf returns the language identifier for path, or "" if unknown.
func LanguageOf(path string) string {
	base := filepath.Base(path)
	if lang, ok := fileNames[base]; ok {
		return lang
	}
	return languages[strings.ToLower(filepath.Ext(base))]
}
