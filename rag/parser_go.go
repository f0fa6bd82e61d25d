package rag

import (
	"go/ast"
	"go/parser"
	"go/token"
	"net/http"
	"strings"

	"github.com/BaSui01/ragflow/types"
)

// semanticUnit is one parsed declaration from a source file. Units carry the
// exact source text of the declaration, including any attached doc comment.
type semanticUnit struct {
	Content string
	Name    string
	Role    types.SemanticRole
}

// parseGoSource extracts top-level declarations from Go source. Functions and
// methods become function units and type declarations become class units; the
// package clause, imports and top-level const/var blocks form the preamble
// returned alongside the units.
func parseGoSource(source string) (preamble string, units []semanticUnit, err error) {
	fset := token.NewFileSet()
	file, perr := parser.ParseFile(fset, "source.go", source, parser.ParseComments)
	if perr != nil {
		return "", nil, types.NewError(types.ErrParseFailure, "go source does not parse").
			WithCause(perr).
			WithHTTPStatus(http.StatusUnprocessableEntity)
	}

	var head strings.Builder
	for _, decl := range file.Decls {
		start, end := declSpan(fset, decl)
		text := source[start:end]

		switch d := decl.(type) {
		case *ast.FuncDecl:
			units = append(units, semanticUnit{
				Content: text,
				Name:    funcName(d),
				Role:    types.RoleFunction,
			})
		case *ast.GenDecl:
			switch d.Tok {
			case token.TYPE:
				units = append(units, semanticUnit{
					Content: text,
					Name:    typeName(d),
					Role:    types.RoleClass,
				})
			default:
				// Imports, consts and vars travel with the first unit so
				// chunks keep enough context to read on their own.
				head.WriteString(text)
				head.WriteString("\n\n")
			}
		}
	}

	pkgEnd := fset.Position(file.Name.End()).Offset
	preamble = strings.TrimSpace(source[:pkgEnd]) + "\n\n" + head.String()
	return preamble, units, nil
}

// declSpan returns the byte range of decl in the original source, widened to
// cover the doc comment when one is attached.
func declSpan(fset *token.FileSet, decl ast.Decl) (int, int) {
	start := decl.Pos()
	switch d := decl.(type) {
	case *ast.FuncDecl:
		if d.Doc != nil {
			start = d.Doc.Pos()
		}
	case *ast.GenDecl:
		if d.Doc != nil {
			start = d.Doc.Pos()
		}
	}
	return fset.Position(start).Offset, fset.Position(decl.End()).Offset
}

// funcName qualifies methods with their receiver type, mirroring how readers
// refer to them.
func funcName(d *ast.FuncDecl) string {
	if d.Recv == nil || len(d.Recv.List) == 0 {
		return d.Name.Name
	}
	return receiverTypeName(d.Recv.List[0].Type) + "." + d.Name.Name
}

func receiverTypeName(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.StarExpr:
		return receiverTypeName(t.X)
	case *ast.Ident:
		return t.Name
	case *ast.IndexExpr:
		return receiverTypeName(t.X)
	case *ast.IndexListExpr:
		return receiverTypeName(t.X)
	default:
		return ""
	}
}

func typeName(d *ast.GenDecl) string {
	for _, spec := range d.Specs {
		if ts, ok := spec.(*ast.TypeSpec); ok {
			return ts.Name.Name
		}
	}
	return ""
}
