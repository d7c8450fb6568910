// Package svcstate implements a static check for service types that smuggle
// per-call state through instance fields.
//
// A service constructed once and shared across concurrent jobs must receive
// per-call state as method parameters. The check reports any exported Set* or
// With* method that writes a pointer-receiver field which a different exported
// method of the same type later reads: that pairing makes the call sequence
// Set-then-operate, which races when the instance is shared.
//
// Constructor functions and unexported methods are out of scope; fields
// assigned only at construction time are lifetime-fixed configuration, not
// per-call state. Value-receiver writes mutate a local copy and are ignored,
// so copy-on-write With* builders pass the check.
package svcstate

import (
	"go/ast"
	"go/token"
	"strings"

	"golang.org/x/tools/go/analysis"
)

var Analyzer = &analysis.Analyzer{
	Name: "svcstate",
	Doc:  "reports exported Set*/With* methods that stash per-call state in fields read by other exported methods",
	Run:  run,
}

// fieldWrite is one assignment to a receiver field inside an exported Set* method.
type fieldWrite struct {
	method string
	field  string
	pos    token.Pos
}

// methodAccess summarizes one method's receiver field usage.
type methodAccess struct {
	name     string
	exported bool
	setter   bool
	writes   []fieldWrite
	reads    map[string]bool
}

func run(pass *analysis.Pass) (interface{}, error) {
	// Group methods by receiver type name, per package.
	byType := map[string][]*methodAccess{}

	for _, file := range pass.Files {
		for _, decl := range file.Decls {
			fn, ok := decl.(*ast.FuncDecl)
			if !ok || fn.Recv == nil || len(fn.Recv.List) == 0 || fn.Body == nil {
				continue
			}
			typeName := receiverTypeName(fn.Recv.List[0].Type)
			if typeName == "" {
				continue
			}
			recvName := receiverIdentName(fn.Recv.List[0])
			_, pointerRecv := fn.Recv.List[0].Type.(*ast.StarExpr)

			acc := &methodAccess{
				name:     fn.Name.Name,
				exported: fn.Name.IsExported(),
				setter:   strings.HasPrefix(fn.Name.Name, "Set") || strings.HasPrefix(fn.Name.Name, "With"),
				reads:    map[string]bool{},
			}
			collectAccesses(fn, recvName, pointerRecv, acc)
			byType[typeName] = append(byType[typeName], acc)
		}
	}

	for _, methods := range byType {
		// Fields read by each exported method.
		readers := map[string][]string{}
		for _, m := range methods {
			if !m.exported {
				continue
			}
			for field := range m.reads {
				readers[field] = append(readers[field], m.name)
			}
		}

		for _, m := range methods {
			if !m.exported || !m.setter {
				continue
			}
			for _, w := range m.writes {
				for _, reader := range readers[w.field] {
					if reader == m.name {
						continue
					}
					pass.Reportf(w.pos, "%s stores per-call state in field %s read by %s; pass it as a parameter instead",
						m.name, w.field, reader)
					break
				}
			}
		}
	}

	return nil, nil
}

// collectAccesses records receiver field writes and reads in a method body.
// Assignment targets count as writes; every other receiver selector counts
// as a read. Compound assignments (+=) count as both. Writes through a value
// receiver only touch the method's copy and are not recorded.
func collectAccesses(fn *ast.FuncDecl, recvName string, pointerRecv bool, acc *methodAccess) {
	if recvName == "" {
		return
	}

	writeTargets := map[*ast.SelectorExpr]bool{}
	ast.Inspect(fn.Body, func(n ast.Node) bool {
		assign, ok := n.(*ast.AssignStmt)
		if !ok {
			return true
		}
		for _, lhs := range assign.Lhs {
			sel, ok := lhs.(*ast.SelectorExpr)
			if !ok || !isIdent(sel.X, recvName) {
				continue
			}
			writeTargets[sel] = true
			if assign.Tok != token.ASSIGN && assign.Tok != token.DEFINE {
				// compound assignment also reads the field
				acc.reads[sel.Sel.Name] = true
			}
			if !pointerRecv {
				continue
			}
			acc.writes = append(acc.writes, fieldWrite{
				method: acc.name,
				field:  sel.Sel.Name,
				pos:    sel.Pos(),
			})
		}
		return true
	})

	ast.Inspect(fn.Body, func(n ast.Node) bool {
		sel, ok := n.(*ast.SelectorExpr)
		if !ok || !isIdent(sel.X, recvName) {
			return true
		}
		if !writeTargets[sel] {
			acc.reads[sel.Sel.Name] = true
		}
		return true
	})
}

func receiverTypeName(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.StarExpr:
		return receiverTypeName(t.X)
	case *ast.IndexExpr:
		return receiverTypeName(t.X)
	case *ast.IndexListExpr:
		return receiverTypeName(t.X)
	}
	return ""
}

func receiverIdentName(field *ast.Field) string {
	if len(field.Names) == 0 {
		return ""
	}
	return field.Names[0].Name
}

func isIdent(expr ast.Expr, name string) bool {
	id, ok := expr.(*ast.Ident)
	return ok && id.Name == name
}
