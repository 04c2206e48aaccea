package engine

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Condition — разобранное булево условие.
//
// Грамматика:
//
//	expr    := and ('||' and)*
//	and     := cmp ('&&' cmp)*
//	cmp     := unary (('==' | '!=') unary)?
//	unary   := '!' unary | primary
//	primary := string | number | true | false | null | ident | '(' expr ')'
//
// Идентификаторы — имена извлечённых полей. Ничего, кроме сравнения и
// логических операций, условие выполнить не может.
type Condition struct {
	src  string
	root node
}

// ParseCondition разбирает условие. Пустая строка даёт nil без ошибки.
func ParseCondition(src string) (*Condition, error) {
	if strings.TrimSpace(src) == "" {
		return nil, nil
	}

	tokens, err := tokenize(src)
	if err != nil {
		return nil, err
	}

	p := &parser{tokens: tokens}
	root, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokEOF {
		return nil, fmt.Errorf("%w: unexpected %q at %d", ErrConditionSyntax, p.peek().text, p.peek().pos)
	}

	return &Condition{src: src, root: root}, nil
}

// String возвращает исходный текст условия.
func (c *Condition) String() string {
	if c == nil {
		return ""
	}
	return c.src
}

// Eval вычисляет условие над набором переменных.
// Nil-условие никогда не выполняется.
func (c *Condition) Eval(vars map[string]any) (bool, error) {
	if c == nil {
		return false, nil
	}
	v, err := c.root.eval(vars)
	if err != nil {
		return false, err
	}
	return truthy(v), nil
}

// EvalCondition разбирает и вычисляет условие за один вызов.
func EvalCondition(src string, vars map[string]any) (bool, error) {
	c, err := ParseCondition(src)
	if err != nil {
		return false, err
	}
	return c.Eval(vars)
}

// --- Lexer ---

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokString
	tokNumber
	tokTrue
	tokFalse
	tokNull
	tokEq
	tokNeq
	tokAnd
	tokOr
	tokNot
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

func tokenize(src string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++

		case c == '(':
			tokens = append(tokens, token{tokLParen, "(", i})
			i++
		case c == ')':
			tokens = append(tokens, token{tokRParen, ")", i})
			i++

		case strings.HasPrefix(src[i:], "=="):
			tokens = append(tokens, token{tokEq, "==", i})
			i += 2
		case strings.HasPrefix(src[i:], "!="):
			tokens = append(tokens, token{tokNeq, "!=", i})
			i += 2
		case strings.HasPrefix(src[i:], "&&"):
			tokens = append(tokens, token{tokAnd, "&&", i})
			i += 2
		case strings.HasPrefix(src[i:], "||"):
			tokens = append(tokens, token{tokOr, "||", i})
			i += 2
		case c == '!':
			tokens = append(tokens, token{tokNot, "!", i})
			i++

		case c == '"' || c == '\'':
			s, n, err := readString(src[i:], c)
			if err != nil {
				return nil, fmt.Errorf("%w: %v at %d", ErrConditionSyntax, err, i)
			}
			tokens = append(tokens, token{tokString, s, i})
			i += n

		case isDigit(c) || (c == '-' && i+1 < len(src) && isDigit(src[i+1])):
			start := i
			i++
			for i < len(src) && (isDigit(src[i]) || src[i] == '.' || src[i] == 'e' || src[i] == 'E') {
				i++
			}
			tokens = append(tokens, token{tokNumber, src[start:i], start})

		case isIdentStart(c):
			start := i
			for i < len(src) && isIdentPart(src[i]) {
				i++
			}
			word := src[start:i]
			switch word {
			case "true":
				tokens = append(tokens, token{tokTrue, word, start})
			case "false":
				tokens = append(tokens, token{tokFalse, word, start})
			case "null", "nil", "undefined":
				tokens = append(tokens, token{tokNull, word, start})
			default:
				tokens = append(tokens, token{tokIdent, word, start})
			}

		default:
			return nil, fmt.Errorf("%w: unexpected character %q at %d", ErrConditionSyntax, c, i)
		}
	}
	tokens = append(tokens, token{tokEOF, "", len(src)})
	return tokens, nil
}

// readString читает строковый литерал в кавычках quote, поддерживая \-экранирование.
func readString(src string, quote byte) (string, int, error) {
	var b strings.Builder
	for i := 1; i < len(src); i++ {
		c := src[i]
		if c == '\\' && i+1 < len(src) {
			i++
			switch src[i] {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			default:
				b.WriteByte(src[i])
			}
			continue
		}
		if c == quote {
			return b.String(), i + 1, nil
		}
		b.WriteByte(c)
	}
	return "", 0, fmt.Errorf("unterminated string")
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c) || c == '.'
}

// --- Parser ---

type parser struct {
	tokens []token
	pos    int
}

func (p *parser) peek() token { return p.tokens[p.pos] }

func (p *parser) next() token {
	t := p.tokens[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) parseOr() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokOr {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = orNode{left, right}
	}
	return left, nil
}

func (p *parser) parseAnd() (node, error) {
	left, err := p.parseCmp()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokAnd {
		p.next()
		right, err := p.parseCmp()
		if err != nil {
			return nil, err
		}
		left = andNode{left, right}
	}
	return left, nil
}

func (p *parser) parseCmp() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	switch p.peek().kind {
	case tokEq, tokNeq:
		op := p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return cmpNode{left: left, right: right, negate: op.kind == tokNeq}, nil
	}
	return left, nil
}

func (p *parser) parseUnary() (node, error) {
	if p.peek().kind == tokNot {
		p.next()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return notNode{operand}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (node, error) {
	t := p.next()
	switch t.kind {
	case tokString:
		return literal{t.text}, nil
	case tokNumber:
		f, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: bad number %q at %d", ErrConditionSyntax, t.text, t.pos)
		}
		return literal{f}, nil
	case tokTrue:
		return literal{true}, nil
	case tokFalse:
		return literal{false}, nil
	case tokNull:
		return literal{nil}, nil
	case tokIdent:
		return ident{t.text}, nil
	case tokLParen:
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.next().kind != tokRParen {
			return nil, fmt.Errorf("%w: missing ')' for '(' at %d", ErrConditionSyntax, t.pos)
		}
		return inner, nil
	case tokEOF:
		return nil, fmt.Errorf("%w: unexpected end of expression", ErrConditionSyntax)
	default:
		return nil, fmt.Errorf("%w: unexpected %q at %d", ErrConditionSyntax, t.text, t.pos)
	}
}

// --- AST ---

type node interface {
	eval(vars map[string]any) (any, error)
}

type literal struct{ value any }

func (l literal) eval(map[string]any) (any, error) { return l.value, nil }

type ident struct{ name string }

func (n ident) eval(vars map[string]any) (any, error) {
	if v, ok := vars[n.name]; ok {
		return v, nil
	}
	// "data.status": корень обязан быть известной переменной, вложенный путь может отсутствовать
	if root, rest, ok := strings.Cut(n.name, "."); ok {
		if base, known := vars[root]; known {
			v, _ := Lookup(base, rest)
			return v, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownVariable, n.name)
}

type notNode struct{ operand node }

func (n notNode) eval(vars map[string]any) (any, error) {
	v, err := n.operand.eval(vars)
	if err != nil {
		return nil, err
	}
	return !truthy(v), nil
}

type andNode struct{ left, right node }

func (n andNode) eval(vars map[string]any) (any, error) {
	l, err := n.left.eval(vars)
	if err != nil {
		return nil, err
	}
	if !truthy(l) {
		return false, nil
	}
	r, err := n.right.eval(vars)
	if err != nil {
		return nil, err
	}
	return truthy(r), nil
}

type orNode struct{ left, right node }

func (n orNode) eval(vars map[string]any) (any, error) {
	l, err := n.left.eval(vars)
	if err != nil {
		return nil, err
	}
	if truthy(l) {
		return true, nil
	}
	r, err := n.right.eval(vars)
	if err != nil {
		return nil, err
	}
	return truthy(r), nil
}

type cmpNode struct {
	left, right node
	negate      bool
}

func (n cmpNode) eval(vars map[string]any) (any, error) {
	l, err := n.left.eval(vars)
	if err != nil {
		return nil, err
	}
	r, err := n.right.eval(vars)
	if err != nil {
		return nil, err
	}
	eq := looseEqual(l, r)
	if n.negate {
		return !eq, nil
	}
	return eq, nil
}

// looseEqual сравнивает значения из JSON-ответа с литералами.
//
// Числа сравниваются численно, в том числе числовая строка с числом
// ("2" == 2). Остальные типы сравниваются строго.
func looseEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	_, aIsNum := numeric(a)
	_, bIsNum := numeric(b)
	if aIsNum || bIsNum {
		af, aok := toNumber(a)
		bf, bok := toNumber(b)
		return aok && bok && af == bf
	}

	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	default:
		return fmt.Sprint(a) == fmt.Sprint(b)
	}
}

// numeric возвращает число, если значение имеет числовой тип.
func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// toNumber дополнительно к numeric принимает числовые строки.
func toNumber(v any) (float64, bool) {
	if f, ok := numeric(v); ok {
		return f, true
	}
	if s, ok := v.(string); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		return f, err == nil
	}
	return 0, false
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case []any:
		return len(x) > 0
	case map[string]any:
		return len(x) > 0
	}
	if f, ok := numeric(v); ok {
		return f != 0
	}
	return true
}
