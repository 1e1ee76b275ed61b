// Command sqllint checks that every inline SQL constant starts with a unique
// "--sql <uuid>" marker so statements can be traced in pg_stat_statements.
package main

import (
	"flag"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

var (
	sqlKeywordPattern = regexp.MustCompile(`(?i)\b(select|insert|update|delete|with)\b`)
	markerPattern     = regexp.MustCompile(`^--sql ([0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12})$`)
)

type finding struct {
	file    string
	name    string
	line    int
	message string
}

func (f finding) String() string {
	return fmt.Sprintf("%s:%d %s (%s)", f.file, f.line, f.message, f.name)
}

// statement is a string constant that looks like SQL.
type statement struct {
	file   string
	name   string
	line   int
	marker string
}

func main() {
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: sqllint [dir|file.go ...] (default internal/sqlinline)")
	}
	flag.Parse()
	targets := flag.Args()
	if len(targets) == 0 {
		targets = []string{"internal/sqlinline"}
	}
	os.Exit(run(targets, os.Stderr))
}

func run(targets []string, out io.Writer) int {
	findings, err := lint(targets)
	if err != nil {
		fmt.Fprintf(out, "sqllint: %v\n", err)
		return 1
	}
	if len(findings) == 0 {
		return 0
	}
	fmt.Fprintln(out, "sqllint: SQL audit marker problems")
	for _, f := range findings {
		fmt.Fprintf(out, "  %s\n", f)
	}
	return 1
}

func lint(targets []string) ([]finding, error) {
	var stmts []statement
	var findings []finding
	for _, target := range targets {
		files, err := goFiles(target)
		if err != nil {
			return nil, err
		}
		for _, path := range files {
			s, f, err := scanFile(path)
			if err != nil {
				return nil, err
			}
			stmts = append(stmts, s...)
			findings = append(findings, f...)
		}
	}
	return append(findings, duplicates(stmts)...), nil
}

func goFiles(target string) ([]string, error) {
	info, err := os.Stat(target)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		if filepath.Ext(target) == ".go" {
			return []string{target}, nil
		}
		return nil, nil
	}
	var files []string
	err = filepath.WalkDir(target, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != target && (strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") || name == "vendor") {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) == ".go" && !strings.HasSuffix(path, "_test.go") {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

func scanFile(path string) ([]statement, []finding, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, nil, parser.ParseComments)
	if err != nil {
		return nil, nil, err
	}
	var stmts []statement
	var findings []finding
	ast.Inspect(file, func(n ast.Node) bool {
		vs, ok := n.(*ast.ValueSpec)
		if !ok {
			return true
		}
		for _, value := range vs.Values {
			bl, ok := value.(*ast.BasicLit)
			if !ok || bl.Kind != token.STRING {
				continue
			}
			raw, err := unquote(bl.Value)
			if err != nil || !sqlKeywordPattern.MatchString(raw) {
				continue
			}
			pos := fset.Position(bl.Pos())
			name := joinNames(vs.Names)
			m := markerPattern.FindStringSubmatch(firstLine(raw))
			if m == nil {
				findings = append(findings, finding{
					file:    path,
					line:    pos.Line,
					name:    name,
					message: "missing or invalid --sql <uuid> marker",
				})
				continue
			}
			stmts = append(stmts, statement{file: path, name: name, line: pos.Line, marker: m[1]})
		}
		return true
	})
	return stmts, findings, nil
}

func duplicates(stmts []statement) []finding {
	first := make(map[string]statement, len(stmts))
	var findings []finding
	for _, s := range stmts {
		prev, seen := first[s.marker]
		if !seen {
			first[s.marker] = s
			continue
		}
		findings = append(findings, finding{
			file:    s.file,
			line:    s.line,
			name:    s.name,
			message: fmt.Sprintf("marker %s already used by %s", s.marker, prev.name),
		})
	}
	return findings
}

func firstLine(s string) string {
	s = strings.TrimLeft(s, "\n\r \t")
	if idx := strings.IndexAny(s, "\n\r"); idx >= 0 {
		return strings.TrimSpace(s[:idx])
	}
	return strings.TrimSpace(s)
}

func unquote(v string) (string, error) {
	if len(v) == 0 {
		return v, nil
	}
	if v[0] == '`' {
		return v[1 : len(v)-1], nil
	}
	return strconv.Unquote(v)
}

func joinNames(idents []*ast.Ident) string {
	parts := make([]string, 0, len(idents))
	for _, ident := range idents {
		if ident != nil {
			parts = append(parts, ident.Name)
		}
	}
	return strings.Join(parts, ",")
}
