package sql

import (
	"fmt"

	"github.com/minisql/minisql/internal/storage"
)

// Parser is a recursive-descent parser over a single statement's tokens,
// with one token of lookahead.
type Parser struct {
	tok     *Tokenizer
	current Token
	err     error
}

// NewParser tokenizes the start of stmt and prepares to parse it.
func NewParser(stmt string) *Parser {
	p := &Parser{tok: NewTokenizer(stmt)}
	p.advance()
	return p
}

func (p *Parser) advance() {
	if p.err != nil {
		return
	}
	tk, err := p.tok.Next()
	if err != nil {
		p.err = err
		return
	}
	p.current = tk
}

func (p *Parser) fail(msg string) {
	if p.err == nil {
		p.err = &ParseError{Pos: p.current.Pos, Msg: msg}
	}
}

func (p *Parser) expectKeyword(kw string) {
	if p.err != nil {
		return
	}
	if p.current.Kind != TokKeyword || p.current.Text != kw {
		p.fail(fmt.Sprintf("expected %q, got %q", kw, p.current.Text))
		return
	}
	p.advance()
}

func (p *Parser) expectPunct(s string) {
	if p.err != nil {
		return
	}
	if p.current.Kind != TokPunct || p.current.Text != s {
		p.fail(fmt.Sprintf("expected %q, got %q", s, p.current.Text))
		return
	}
	p.advance()
}

func (p *Parser) expectIdent() string {
	if p.err != nil {
		return ""
	}
	if p.current.Kind != TokIdent {
		p.fail(fmt.Sprintf("expected identifier, got %q", p.current.Text))
		return ""
	}
	name := p.current.Text
	p.advance()
	return name
}

func (p *Parser) atKeyword(kw string) bool {
	return p.err == nil && p.current.Kind == TokKeyword && p.current.Text == kw
}

func (p *Parser) atPunct(s string) bool {
	return p.err == nil && p.current.Kind == TokPunct && p.current.Text == s
}

// Parse parses one complete statement. The caller is responsible for
// splitting input on the `;` terminator beforehand (§6).
func (p *Parser) Parse() (Statement, error) {
	stmt := p.parseStatement()
	if p.err != nil {
		return nil, p.err
	}
	return stmt, nil
}

func (p *Parser) parseStatement() Statement {
	switch {
	case p.atKeyword("select"):
		return p.parseSelect()
	case p.atKeyword("insert"):
		return p.parseInsert()
	case p.atKeyword("delete"):
		return p.parseDelete()
	case p.atKeyword("create"):
		return p.parseCreate()
	case p.atKeyword("drop"):
		return p.parseDrop()
	case p.atKeyword("execfile"):
		p.advance()
		if p.current.Kind != TokString {
			p.fail("expected quoted path after execfile")
			return nil
		}
		path := p.current.Text
		p.advance()
		return &ExecFile{Path: path}
	case p.atKeyword("exit") || p.atKeyword("quit"):
		p.advance()
		return &Exit{}
	default:
		p.fail(fmt.Sprintf("unexpected token %q", p.current.Text))
		return nil
	}
}

func (p *Parser) parseSelect() Statement {
	p.expectKeyword("select")
	if p.err != nil {
		return nil
	}
	if p.current.Kind != TokStar {
		p.fail("only SELECT * is supported")
		return nil
	}
	p.advance()
	p.expectKeyword("from")
	table := p.expectIdent()
	where := p.parseOptionalWhere()
	if p.err != nil {
		return nil
	}
	return &Select{Table: table, Where: where}
}

func (p *Parser) parseDelete() Statement {
	p.expectKeyword("delete")
	p.expectKeyword("from")
	table := p.expectIdent()
	where := p.parseOptionalWhere()
	if p.err != nil {
		return nil
	}
	return &Delete{Table: table, Where: where}
}

func (p *Parser) parseOptionalWhere() []WherePredicate {
	if p.err != nil || !p.atKeyword("where") {
		return nil
	}
	p.advance()
	var preds []WherePredicate
	for {
		col := p.expectIdent()
		op := p.parseCompareOp()
		val := p.parseLiteral()
		if p.err != nil {
			return nil
		}
		preds = append(preds, WherePredicate{Column: col, Op: op, Value: val})
		if p.atKeyword("and") {
			p.advance()
			continue
		}
		break
	}
	return preds
}

func (p *Parser) parseCompareOp() storage.CompareOp {
	if p.err != nil {
		return storage.OpEq
	}
	if p.current.Kind != TokOp {
		p.fail(fmt.Sprintf("expected comparison operator, got %q", p.current.Text))
		return storage.OpEq
	}
	var op storage.CompareOp
	switch p.current.Text {
	case "=":
		op = storage.OpEq
	case "<>":
		op = storage.OpNe
	case "<":
		op = storage.OpLt
	case ">":
		op = storage.OpGt
	case "<=":
		op = storage.OpLe
	case ">=":
		op = storage.OpGe
	default:
		p.fail("unknown operator " + p.current.Text)
		return storage.OpEq
	}
	p.advance()
	return op
}

func (p *Parser) parseLiteral() any {
	if p.err != nil {
		return nil
	}
	switch p.current.Kind {
	case TokString:
		v := p.current.Text
		p.advance()
		return v
	case TokInt:
		v := p.current.Int
		p.advance()
		return v
	case TokFloat:
		v := p.current.Float
		p.advance()
		return v
	default:
		p.fail(fmt.Sprintf("expected a literal value, got %q", p.current.Text))
		return nil
	}
}

func (p *Parser) parseInsert() Statement {
	p.expectKeyword("insert")
	p.expectKeyword("into")
	table := p.expectIdent()
	p.expectKeyword("values")
	p.expectPunct("(")
	var values []any
	for {
		values = append(values, p.parseLiteral())
		if p.err != nil {
			return nil
		}
		if p.atPunct(",") {
			p.advance()
			continue
		}
		break
	}
	p.expectPunct(")")
	if p.err != nil {
		return nil
	}
	return &Insert{Table: table, Values: values}
}

func (p *Parser) parseDrop() Statement {
	p.expectKeyword("drop")
	if p.err != nil {
		return nil
	}
	switch {
	case p.atKeyword("table"):
		p.advance()
		name := p.expectIdent()
		if p.err != nil {
			return nil
		}
		return &DropTable{Name: name}
	case p.atKeyword("index"):
		p.advance()
		name := p.expectIdent()
		if p.err != nil {
			return nil
		}
		return &DropIndex{Name: name}
	default:
		p.fail("expected TABLE or INDEX after DROP")
		return nil
	}
}

func (p *Parser) parseCreate() Statement {
	p.expectKeyword("create")
	if p.err != nil {
		return nil
	}
	switch {
	case p.atKeyword("table"):
		return p.parseCreateTable()
	case p.atKeyword("index"):
		return p.parseCreateIndex()
	default:
		p.fail("expected TABLE or INDEX after CREATE")
		return nil
	}
}

func (p *Parser) parseCreateTable() Statement {
	p.expectKeyword("table")
	name := p.expectIdent()
	p.expectPunct("(")
	if p.err != nil {
		return nil
	}

	var cols []ColumnDef
	primary := ""
	for {
		if p.atKeyword("primary") {
			p.advance()
			p.expectKeyword("key")
			p.expectPunct("(")
			primary = p.expectIdent()
			p.expectPunct(")")
			if p.err != nil {
				return nil
			}
		} else {
			colName := p.expectIdent()
			typ := p.parseTypeName()
			unique := false
			if p.atKeyword("unique") {
				p.advance()
				unique = true
			}
			if p.err != nil {
				return nil
			}
			cols = append(cols, ColumnDef{Name: colName, Type: typ, Unique: unique})
		}
		if p.atPunct(",") {
			p.advance()
			continue
		}
		break
	}
	p.expectPunct(")")
	if p.err != nil {
		return nil
	}
	if primary == "" {
		p.fail("CREATE TABLE requires a PRIMARY KEY clause")
		return nil
	}
	return &CreateTable{Name: name, Columns: cols, Primary: primary}
}

func (p *Parser) parseTypeName() storage.TypeCode {
	if p.err != nil {
		return 0
	}
	switch {
	case p.atKeyword("int"):
		p.advance()
		return storage.IntTypeCode
	case p.atKeyword("float"):
		p.advance()
		return storage.FloatTypeCode
	case p.atKeyword("char"):
		p.advance()
		p.expectPunct("(")
		if p.err != nil {
			return 0
		}
		if p.current.Kind != TokInt {
			p.fail("expected CHAR(n) length")
			return 0
		}
		n := int(p.current.Int)
		p.advance()
		p.expectPunct(")")
		if n < 1 || n > 255 {
			p.fail("CHAR length must be between 1 and 255")
			return 0
		}
		return storage.CharType(n)
	default:
		p.fail(fmt.Sprintf("expected a type name, got %q", p.current.Text))
		return 0
	}
}

func (p *Parser) parseCreateIndex() Statement {
	p.expectKeyword("index")
	name := p.expectIdent()
	p.expectKeyword("on")
	table := p.expectIdent()
	p.expectPunct("(")
	col := p.expectIdent()
	p.expectPunct(")")
	if p.err != nil {
		return nil
	}
	return &CreateIndex{Name: name, Table: table, Column: col}
}
