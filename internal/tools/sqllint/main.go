// Command sqllint checks SQL constants: each must open with a unique
// "--sql <uuid>" marker and use SQLite "?" placeholders.
package main

import (
	"flag"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

var (
	sqlKeyword       = regexp.MustCompile(`(?i)\b(select|insert|update|delete|with|pragma)\b`)
	markerLine       = regexp.MustCompile(`^--sql [0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)
	numberedArgument = regexp.MustCompile(`\$[0-9]+`)
)

type finding struct {
	pos     token.Position
	name    string
	message string
}

func (f finding) String() string {
	return fmt.Sprintf("%s:%d %s (%s)", f.pos.Filename, f.pos.Line, f.message, f.name)
}

// linter remembers markers across files so duplicates are caught repo-wide.
type linter struct {
	fset    *token.FileSet
	markers map[string]token.Position
}

func newLinter() *linter {
	return &linter{fset: token.NewFileSet(), markers: make(map[string]token.Position)}
}

func main() {
	flag.Parse()
	targets := flag.Args()
	if len(targets) == 0 {
		targets = []string{"internal/sqlinline"}
	}

	l := newLinter()
	var findings []finding
	for _, target := range targets {
		fs, err := l.lintPath(target)
		if err != nil {
			fmt.Fprintf(os.Stderr, "sqllint: %v\n", err)
			os.Exit(1)
		}
		findings = append(findings, fs...)
	}
	if len(findings) > 0 {
		fmt.Fprintf(os.Stderr, "sqllint: %d problem(s)\n", len(findings))
		for _, f := range findings {
			fmt.Fprintln(os.Stderr, "  "+f.String())
		}
		os.Exit(1)
	}
}

func (l *linter) lintPath(target string) ([]finding, error) {
	var out []finding
	err := filepath.WalkDir(target, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != target && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".go" || strings.HasSuffix(path, "_test.go") {
			return nil
		}
		fs, err := l.lintFile(path)
		out = append(out, fs...)
		return err
	})
	return out, err
}

func (l *linter) lintFile(path string) ([]finding, error) {
	file, err := parser.ParseFile(l.fset, path, nil, 0)
	if err != nil {
		return nil, err
	}
	var out []finding
	ast.Inspect(file, func(n ast.Node) bool {
		spec, ok := n.(*ast.ValueSpec)
		if !ok {
			return true
		}
		for i, value := range spec.Values {
			lit, ok := value.(*ast.BasicLit)
			if !ok || lit.Kind != token.STRING {
				continue
			}
			query, err := unquote(lit.Value)
			if err != nil || !sqlKeyword.MatchString(query) {
				continue
			}
			name := "_"
			if i < len(spec.Names) {
				name = spec.Names[i].Name
			}
			out = append(out, l.check(l.fset.Position(lit.Pos()), name, query)...)
		}
		return true
	})
	return out, nil
}

func (l *linter) check(pos token.Position, name, query string) []finding {
	var out []finding
	marker := firstLine(query)
	switch prev, seen := l.markers[marker]; {
	case !markerLine.MatchString(marker):
		out = append(out, finding{pos, name, "missing or invalid --sql <uuid> marker"})
	case seen:
		out = append(out, finding{pos, name, fmt.Sprintf("marker already used at %s:%d", prev.Filename, prev.Line)})
	default:
		l.markers[marker] = pos
	}
	if numberedArgument.MatchString(query) {
		out = append(out, finding{pos, name, "numbered $N placeholder, use ?"})
	}
	return out
}

func firstLine(s string) string {
	s = strings.TrimLeft(s, "\n\r \t")
	if i := strings.IndexAny(s, "\n\r"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

func unquote(v string) (string, error) {
	if strings.HasPrefix(v, "`") {
		return strings.Trim(v, "`"), nil
	}
	return strconv.Unquote(v)
}
